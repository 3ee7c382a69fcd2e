package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/infrastructure/cache"
	"github.com/tidyops/backend/internal/infrastructure/persistence"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
)

type sseEvent struct {
	Name string
	ID   string
	Data json.RawMessage
}

// openStream connects to path on a live server and returns the parsed events.
// The channel closes when the server ends the stream.
func openStream(t *testing.T, f *handlerFixture, path string) <-chan sseEvent {
	t.Helper()
	srv := httptest.NewServer(f.engine)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	events := make(chan sseEvent, 64)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		var ev sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
				ev = sseEvent{}
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "id: "):
				ev.ID = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
			}
		}
	}()
	return events
}

// nextEvent returns the next event named name, skipping any others
func nextEvent(t *testing.T, events <-chan sseEvent, name string) sseEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream ended while waiting for %q", name)
			if ev.Name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %q event within 5s", name)
		}
	}
}

// waitForClients returns the first settled client list state of length n
func waitForClients(t *testing.T, events <-chan sseEvent, n int) StreamState[ClientResponse] {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream ended while waiting for %d clients", n)
			if ev.Name != StreamEventState {
				continue
			}
			var state StreamState[ClientResponse]
			require.NoError(t, json.Unmarshal(ev.Data, &state))
			if !state.IsLoading && len(state.Data) == n {
				return state
			}
		case <-timeout:
			t.Fatalf("no state with %d clients within 5s", n)
		}
	}
}

func TestStreamHandler_Clients(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)
	events := openStream(t, f, "/api/v1/clients/stream")

	state := waitForClients(t, events, 0)
	assert.Equal(t, f.companyA, state.CompanyID)
	assert.Empty(t, state.Error)
	assert.Eventually(t, func() bool { return f.stream.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// a write through the API
	amy := f.createClient(t, "Amy")
	state = waitForClients(t, events, 1)
	assert.Equal(t, amy.ID, state.Data[0].ID)

	// a write by another process, announced on the change feed
	remote, err := crm.NewClient(f.companyA, "Bob")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormClientRepository(f.db.DB).Save(context.Background(), remote))
	f.invalidator.Handle(cache.ChangeMessage{TenantID: f.companyA, Entity: cache.EntityClients, Origin: "other-instance"})
	waitForClients(t, events, 2)

	hb := nextEvent(t, events, StreamEventHeartbeat)
	assert.NotEmpty(t, hb.ID)
	assert.Contains(t, string(hb.Data), "timestamp")
}

func TestStreamHandler_ClosesOnCompanySwitch(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)
	events := openStream(t, f, "/api/v1/clients/stream")
	waitForClients(t, events, 0)

	code, _ := f.do(t, http.MethodPost, "/api/v1/session/switch-company", SwitchCompanyRequest{CompanyID: f.companyB.String()})
	require.Equal(t, http.StatusOK, code)

	ev := nextEvent(t, events, StreamEventClosed)
	var closed StreamClosed
	require.NoError(t, json.Unmarshal(ev.Data, &closed))
	assert.Contains(t, []string{StreamClosedCompanyChanged, StreamClosedWorkspace}, closed.Reason)

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond, "server ends the stream")
	assert.Eventually(t, func() bool { return f.stream.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStreamHandler_Appointments(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)
	client := f.createClient(t, "Amy")
	appt := f.createAppointment(t, client.ID, "2024-03-15", "09:00", "11:00")

	events := openStream(t, f, "/api/v1/appointments/stream?date=2024-03-15")
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok)
			if ev.Name != StreamEventState {
				continue
			}
			var state StreamState[AppointmentResponse]
			require.NoError(t, json.Unmarshal(ev.Data, &state))
			if state.IsLoading {
				continue
			}
			require.Len(t, state.Data, 1)
			assert.Equal(t, appt.ID, state.Data[0].ID)
			return
		case <-timeout:
			t.Fatal("no settled appointment state within 5s")
		}
	}
}

func TestStreamHandler_Rejections(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)

	code, env := f.do(t, http.MethodGet, "/api/v1/appointments/stream", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)

	f.stream.maxClients = 1
	f.stream.clients.Store(1)
	code, env = f.do(t, http.MethodGet, "/api/v1/clients/stream", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeUnavailable, env.Error.Code)
	assert.Equal(t, 1, f.stream.ClientCount(), "rejected stream is not counted")
}
