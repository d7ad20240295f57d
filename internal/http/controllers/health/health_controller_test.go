package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	dto "github.com/dropDatabas3/lazyauth/internal/http/dto/health"
)

type names []string

func (n names) Names() []string { return n }

func TestHealthz(t *testing.T) {
	c := NewHealthController("1.2.3", names{"github", "google"})

	rec := httptest.NewRecorder()
	c.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1.2.3", rec.Header().Get("X-Service-Version"))

	var body dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, dto.HealthResponse{Status: "healthy", Service: "lazyauth", Version: "1.2.3", Providers: []string{"github", "google"}}, body)
}
