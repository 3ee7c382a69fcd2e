package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
)

func TestClientHandler_Update(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)
	client := f.createClient(t, "Amy")
	path := "/api/v1/clients/" + client.ID.String()

	code, env := f.do(t, http.MethodPut, path, ClientRequest{Name: "Amy Chen", Email: "amy@example.com", Phone: "+1 555 0100"})
	require.Equal(t, http.StatusOK, code)
	updated := decode[ClientResponse](t, env.Data)
	assert.Equal(t, client.ID, updated.ID)
	assert.Equal(t, "Amy Chen", updated.Name)
	assert.Equal(t, "amy@example.com", updated.Email)

	code, env = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Amy Chen", decode[ClientResponse](t, env.Data).Name)

	code, env = f.do(t, http.MethodPut, path, map[string]string{"email": "amy@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
	require.NotEmpty(t, env.Error.Details)
	assert.Equal(t, "name", env.Error.Details[0].Field)

	code, env = f.do(t, http.MethodPut, "/api/v1/clients/"+uuid.NewString(), ClientRequest{Name: "Ghost"})
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)
}

func TestClientHandler_MoveStage(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)
	client := f.createClient(t, "Amy")
	require.Equal(t, crm.StageLead, client.Stage)
	path := "/api/v1/clients/" + client.ID.String() + "/stage"

	code, env := f.do(t, http.MethodPut, path, MoveStageRequest{Stage: "quoted"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, crm.PipelineStage("quoted"), decode[ClientResponse](t, env.Data).Stage)

	code, env = f.do(t, http.MethodPut, path, MoveStageRequest{Stage: "archived"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
	require.NotEmpty(t, env.Error.Details)
	assert.Equal(t, "stage", env.Error.Details[0].Field)

	code, env = f.do(t, http.MethodPut, "/api/v1/clients/"+uuid.NewString()+"/stage", MoveStageRequest{Stage: "won"})
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)
}

func TestClientHandler_Delete(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)
	client := f.createClient(t, "Amy")
	f.createClient(t, "Bob")
	path := "/api/v1/clients/" + client.ID.String()

	code, _ := f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, code)

	code, env := f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)

	code, env = f.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)

	code, env = f.do(t, http.MethodGet, "/api/v1/clients", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Total)
}

func TestClientHandler_ListInactive(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)
	idle := f.createClient(t, "Amy")
	served := f.createClient(t, "Bob")
	appt := f.createAppointment(t, served.ID, "2024-03-15", "09:00", "11:00")
	code, _ := f.do(t, http.MethodPut, "/api/v1/appointments/"+appt.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, code)

	for _, path := range []string{"/api/v1/clients/inactive", "/api/v1/clients/inactive?days=7"} {
		t.Run(path, func(t *testing.T) {
			code, env := f.do(t, http.MethodGet, path, nil)
			require.Equal(t, http.StatusOK, code)
			items := decode[[]ClientResponse](t, env.Data)
			require.Len(t, items, 1)
			assert.Equal(t, idle.ID, items[0].ID)
		})
	}

	t.Run("rejects a negative window", func(t *testing.T) {
		code, env := f.do(t, http.MethodGet, "/api/v1/clients/inactive?days=-1", nil)
		assert.Equal(t, http.StatusBadRequest, code)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		require.NotEmpty(t, env.Error.Details)
		assert.Equal(t, "days", env.Error.Details[0].Field)
	})

	t.Run("rejects a non-numeric window", func(t *testing.T) {
		code, env := f.do(t, http.MethodGet, "/api/v1/clients/inactive?days=abc", nil)
		assert.Equal(t, http.StatusBadRequest, code)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeInvalidJSON, env.Error.Code)
	})
}

func TestClientHandler_InvalidID(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/v1/clients/42", nil},
		{http.MethodPut, "/api/v1/clients/42", ClientRequest{Name: "Amy"}},
		{http.MethodPut, "/api/v1/clients/42/stage", MoveStageRequest{Stage: "won"}},
		{http.MethodDelete, "/api/v1/clients/42", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			code, env := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
			require.NotEmpty(t, env.Error.Details)
			assert.Equal(t, "id", env.Error.Details[0].Field)
		})
	}
}
