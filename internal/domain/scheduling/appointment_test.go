package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/backend/internal/domain/shared"
)

func newTestAppointment(t *testing.T) *Appointment {
	t.Helper()
	a, err := NewAppointment(uuid.New(), uuid.New(), "2024-01-01", "09:00", "11:30", ServiceDeep, decimal.NewFromInt(180))
	require.NoError(t, err)
	return a
}

func TestNewAppointment(t *testing.T) {
	tenantID, clientID := uuid.New(), uuid.New()

	t.Run("creates scheduled appointment", func(t *testing.T) {
		a, err := NewAppointment(tenantID, clientID, "2024-01-01", "09:00", "11:00", "", decimal.NewFromInt(120))
		require.NoError(t, err)
		assert.Equal(t, tenantID, a.TenantID)
		assert.Equal(t, AppointmentStatusScheduled, a.Status)
		assert.Equal(t, ServiceStandard, a.ServiceType)
		assert.Equal(t, 1, a.GetVersion())
	})

	tests := []struct {
		name     string
		tenantID uuid.UUID
		clientID uuid.UUID
		date     string
		start    string
		end      string
		price    decimal.Decimal
		contains string
	}{
		{"nil tenant", uuid.Nil, clientID, "2024-01-01", "09:00", "10:00", decimal.Zero, "No active company"},
		{"missing client", tenantID, uuid.Nil, "2024-01-01", "09:00", "10:00", decimal.Zero, "Client is required"},
		{"bad date", tenantID, clientID, "01/02/2024", "09:00", "10:00", decimal.Zero, "YYYY-MM-DD"},
		{"bad start", tenantID, clientID, "2024-01-01", "9am", "10:00", decimal.Zero, "Start time"},
		{"end before start", tenantID, clientID, "2024-01-01", "10:00", "09:00", decimal.Zero, "after start"},
		{"negative price", tenantID, clientID, "2024-01-01", "09:00", "10:00", decimal.NewFromInt(-1), "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAppointment(tt.tenantID, tt.clientID, tt.date, tt.start, tt.end, ServiceStandard, tt.price)
			assert.Nil(t, a)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestAppointment_Lifecycle(t *testing.T) {
	t.Run("reschedule moves the day", func(t *testing.T) {
		a := newTestAppointment(t)
		require.NoError(t, a.Reschedule("2024-01-02", "13:00", "15:00"))
		assert.Equal(t, "2024-01-02", a.Date)
		assert.Equal(t, "13:00", a.StartTime)
		assert.Equal(t, 2, a.GetVersion())
	})

	t.Run("complete then cancel fails", func(t *testing.T) {
		a := newTestAppointment(t)
		at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, a.Start())
		require.NoError(t, a.Complete(at))
		assert.Equal(t, AppointmentStatusCompleted, a.Status)
		assert.Equal(t, at, *a.CompletedAt)

		err := a.Cancel()
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Error(t, a.Reschedule("2024-01-03", "09:00", "10:00"))
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		a := newTestAppointment(t)
		require.NoError(t, a.Cancel())
		require.NoError(t, a.Cancel())
		assert.Equal(t, AppointmentStatusCancelled, a.Status)
		assert.Error(t, a.Start())
	})
}

func TestAppointment_Commission(t *testing.T) {
	a := newTestAppointment(t)
	assert.True(t, a.Commission().IsZero(), "no technician means no commission")

	require.NoError(t, a.AssignTechnician(uuid.New(), decimal.RequireFromString("0.35")))
	assert.Equal(t, "63", a.Commission().String())

	assert.Error(t, a.AssignTechnician(uuid.New(), decimal.RequireFromString("1.5")))
}
