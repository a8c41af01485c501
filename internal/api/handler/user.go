package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore/internal/api/middleware"
	"github.com/clinicore/clinicore/internal/api/response"
	"github.com/clinicore/clinicore/internal/api/validation"
	"github.com/clinicore/clinicore/internal/authz"
	"github.com/clinicore/clinicore/internal/identity"
	"github.com/clinicore/clinicore/internal/metrics"
	"github.com/clinicore/clinicore/internal/profile"
	"github.com/clinicore/clinicore/internal/provision"
)

type userResponse struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Birthdate string `json:"birthdate"`
	Address   string `json:"address"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

func toUserResponse(p *profile.Profile) userResponse {
	return userResponse{
		UID:       p.UID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Birthdate: p.Birthdate,
		Address:   p.Address,
		Role:      p.Role.String(),
		CreatedAt: p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// UserHandler handles the privileged user-management endpoints.
type UserHandler struct {
	svc     *provision.Service
	metrics *metrics.Metrics
}

// NewUserHandler creates a new UserHandler. m may be nil in tests.
func NewUserHandler(svc *provision.Service, m *metrics.Metrics) *UserHandler {
	return &UserHandler{svc: svc, metrics: m}
}

// Create handles POST /users: the account-provisioning operation.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req provision.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if len(fieldErrors) > 0 {
		h.countProvision("invalid_argument")
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	created, err := h.svc.Create(r.Context(), caller, req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.countProvision(outcomeLabel(err))
		writeProvisionError(w, err, requestID)
		return
	}
	h.countProvision("success")

	status := http.StatusCreated
	if created.Replayed {
		status = http.StatusOK
	}
	response.Success(w, status, toUserResponse(&created.Profile), requestID)
}

// List handles GET /users: the roster visible to the caller.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	profiles, err := h.svc.List(r.Context(), caller)
	if err != nil {
		writeProvisionError(w, err, requestID)
		return
	}

	items := make([]userResponse, 0, len(profiles))
	for i := range profiles {
		items = append(items, toUserResponse(&profiles[i]))
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// Delete handles DELETE /users/{uid}: the account-deprovisioning operation.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	uid := chi.URLParam(r, "uid")

	if err := h.svc.Delete(r.Context(), caller, uid); err != nil {
		h.countDeprovision(outcomeLabel(err))
		writeProvisionError(w, err, requestID)
		return
	}
	h.countDeprovision("success")

	response.NoContent(w)
}

// writeProvisionError maps service sentinel errors to envelope codes. Denials
// and precondition failures carry their own codes; everything else is the
// external-operation failure bucket.
func writeProvisionError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, provision.ErrUnauthenticated):
		response.Err(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required", requestID)
	case errors.Is(err, provision.ErrInvalidArgument):
		response.Err(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), requestID)
	case errors.Is(err, authz.ErrInsufficientPrivilege):
		response.Err(w, http.StatusForbidden, "INSUFFICIENT_PRIVILEGE", "Permission denied", requestID)
	case errors.Is(err, authz.ErrInvalidTargetRole):
		response.Err(w, http.StatusForbidden, "INVALID_TARGET_ROLE", "Requested role cannot be assigned", requestID)
	case errors.Is(err, authz.ErrRoleNotFound):
		response.Err(w, http.StatusForbidden, "ROLE_NOT_FOUND", "Caller has no assigned role", requestID)
	case errors.Is(err, provision.ErrNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
	case errors.Is(err, identity.ErrEmailTaken):
		response.Err(w, http.StatusConflict, "CONFLICT", "Email already registered", requestID)
	default:
		slog.Error("provisioning operation failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Operation failed", requestID)
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, provision.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, provision.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, authz.ErrInsufficientPrivilege),
		errors.Is(err, authz.ErrInvalidTargetRole),
		errors.Is(err, authz.ErrRoleNotFound):
		return "denied"
	case errors.Is(err, provision.ErrNotFound):
		return "not_found"
	case errors.Is(err, identity.ErrEmailTaken):
		return "conflict"
	}
	return "internal"
}

func (h *UserHandler) countProvision(outcome string) {
	if h.metrics != nil {
		h.metrics.ProvisionTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *UserHandler) countDeprovision(outcome string) {
	if h.metrics != nil {
		h.metrics.DeprovisionTotal.WithLabelValues(outcome).Inc()
	}
}
