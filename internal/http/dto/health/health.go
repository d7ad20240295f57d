// Package health contiene el DTO de /healthz.
package health

// HealthResponse GET /healthz
type HealthResponse struct {
	Status    string   `json:"status"`
	Service   string   `json:"service"`
	Version   string   `json:"version,omitempty"`
	Providers []string `json:"providers,omitempty"`
}
