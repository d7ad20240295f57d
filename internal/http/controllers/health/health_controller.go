// Package health contiene el controller para health checks.
package health

import (
	"net/http"

	dto "github.com/dropDatabas3/lazyauth/internal/http/dto/health"
	"github.com/dropDatabas3/lazyauth/internal/http/helpers"
	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
)

// ProviderLister lista los providers configurados (providers.Registry).
type ProviderLister interface {
	Names() []string
}

// HealthController maneja las rutas de health check.
type HealthController struct {
	version   string
	providers ProviderLister
}

// NewHealthController crea un nuevo controller de health check.
func NewHealthController(version string, providers ProviderLister) *HealthController {
	return &HealthController{version: version, providers: providers}
}

// Healthz maneja GET /healthz. El proceso no arranca sin configuración
// válida, así que si responde está sano; no hay dependencias que chequear.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := dto.HealthResponse{
		Status:  "healthy",
		Service: "lazyauth",
		Version: c.version,
	}
	if c.providers != nil {
		resp.Providers = c.providers.Names()
	}

	if c.version != "" {
		w.Header().Set("X-Service-Version", c.version)
	}

	logger.From(r.Context()).Debug("health check completed",
		logger.Layer("controller"),
		logger.Int("providers_count", len(resp.Providers)),
	)

	helpers.WriteJSON(w, http.StatusOK, resp)
}
