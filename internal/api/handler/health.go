package handler

import (
	"context"
	"net/http"

	"github.com/clinicore/clinicore/internal/api/middleware"
	"github.com/clinicore/clinicore/internal/api/response"
)

// Pinger verifies connectivity to the profile store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	storePinger Pinger
	version     string
}

// NewHealthHandler creates a new HealthHandler. storePinger may be nil, in
// which case the store check is skipped.
func NewHealthHandler(storePinger Pinger, version string) *HealthHandler {
	return &HealthHandler{
		storePinger: storePinger,
		version:     version,
	}
}

type storeStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status       string       `json:"status"`
	Version      string       `json:"version"`
	ProfileStore *storeStatus `json:"profileStore,omitempty"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data := healthData{
		Status:  "healthy",
		Version: h.version,
	}

	if h.storePinger != nil {
		connected := h.storePinger.Ping(r.Context()) == nil
		if !connected {
			data.Status = "degraded"
		}
		data.ProfileStore = &storeStatus{Connected: connected}
	}

	response.Success(w, http.StatusOK, data, requestID)
}
