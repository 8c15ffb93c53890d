package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/middleware"
	"salon-loyalty-api/internal/models"
	"salon-loyalty-api/internal/service"
	"salon-loyalty-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service       *service.Service
	maxBodySize   int64
	secureCookies bool
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize   int64
	SecureCookies bool
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultHandlerOptions().MaxBodySize
	}
	return &Handler{
		service:       svc,
		maxBodySize:   opts.MaxBodySize,
		secureCookies: opts.SecureCookies,
	}
}

// RegisterCustomer handles POST /api/customers/register
func (h *Handler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.RegisterCustomer(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.setSession(w, middleware.CustomerCookie, res.Token)
	h.respond(w, http.StatusCreated, "Registration successful", res)
}

// LoginCustomer handles POST /api/customers/login
func (h *Handler) LoginCustomer(w http.ResponseWriter, r *http.Request) {
	var req models.CustomerLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.LoginCustomer(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.setSession(w, middleware.CustomerCookie, res.Token)
	h.respond(w, http.StatusOK, "Login successful", res)
}

// LogoutCustomer handles POST /api/customers/logout
func (h *Handler) LogoutCustomer(w http.ResponseWriter, r *http.Request) {
	h.clearSession(w, middleware.CustomerCookie)
	h.respond(w, http.StatusOK, "Logout successful", nil)
}

// Profile handles GET /api/customers/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	customer, err := h.service.Profile(r.Context(), middleware.Subject(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "", customer)
}

// UpdateProfile handles PUT /api/customers/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	customer, err := h.service.UpdateProfile(r.Context(), middleware.Subject(r.Context()), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "Profile updated successfully", customer)
}

// CheckIn handles POST /api/customers/checkin
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req models.CheckInRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.CheckIn(r.Context(), middleware.Subject(r.Context()), req.Code)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "Check-in successful! You earned "+strconv.Itoa(res.PointsEarned)+" points.", res)
}

// Visits handles GET /api/customers/visits
func (h *Handler) Visits(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	visits, err := h.service.Visits(r.Context(), middleware.Subject(r.Context()), page, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "", visits)
}

// AvailableRewards handles GET /api/customers/rewards
func (h *Handler) AvailableRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.service.AvailableRewards(r.Context(), middleware.Subject(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "", rewards)
}

// ClaimedRewards handles GET /api/customers/rewards/claimed
func (h *Handler) ClaimedRewards(w http.ResponseWriter, r *http.Request) {
	claimed, err := h.service.ClaimedRewards(r.Context(), middleware.Subject(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "", map[string]any{"claimed_rewards": claimed})
}

// RedeemReward handles POST /api/customers/rewards/{rewardId}/redeem
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	rewardID := validation.SanitizeString(chi.URLParam(r, "rewardId"))

	redemption, err := h.service.RedeemReward(r.Context(), middleware.Subject(r.Context()), rewardID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "Reward redeemed successfully", redemption)
}

// LoginBusiness handles POST /api/business/login
func (h *Handler) LoginBusiness(w http.ResponseWriter, r *http.Request) {
	var req models.BusinessLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.LoginBusiness(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.setSession(w, middleware.BusinessCookie, res.Token)
	h.respond(w, http.StatusOK, "Login successful", res)
}

// LogoutBusiness handles POST /api/business/logout
func (h *Handler) LogoutBusiness(w http.ResponseWriter, r *http.Request) {
	h.clearSession(w, middleware.BusinessCookie)
	h.respond(w, http.StatusOK, "Logout successful", nil)
}

// Dashboard handles GET /api/business/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "", dash)
}

// CurrentCodes handles GET /api/business/codes
func (h *Handler) CurrentCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.CurrentCodes(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "", codes)
}

// Customers handles GET /api/business/customers
func (h *Handler) Customers(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	customers, err := h.service.Customers(r.Context(), r.URL.Query().Get("search"), page, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "", customers)
}

// Rewards handles GET /api/business/rewards
func (h *Handler) Rewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.service.Rewards(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "", map[string]any{"rewards": rewards})
}

// CreateReward handles POST /api/business/rewards
func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var in models.RewardInput
	if !h.decode(w, r, &in) {
		return
	}

	reward, err := h.service.CreateReward(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, "Reward created successfully", reward)
}

// UpdateReward handles PUT /api/business/rewards/{rewardId}
func (h *Handler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	var in models.RewardInput
	if !h.decode(w, r, &in) {
		return
	}

	id := validation.SanitizeString(chi.URLParam(r, "rewardId"))
	reward, err := h.service.UpdateReward(r.Context(), id, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "Reward updated successfully", reward)
}

// DeleteReward handles DELETE /api/business/rewards/{rewardId}
func (h *Handler) DeleteReward(w http.ResponseWriter, r *http.Request) {
	id := validation.SanitizeString(chi.URLParam(r, "rewardId"))
	if err := h.service.DeleteReward(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "Reward deleted successfully", nil)
}

// UpdateSettings handles PUT /api/business/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.BusinessSettings
	if !h.decode(w, r, &settings) {
		return
	}

	business, err := h.service.UpdateSettings(r.Context(), middleware.Subject(r.Context()), settings)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "Settings updated successfully", business.Settings)
}

// AwardPoints handles POST /api/business/award-points
func (h *Handler) AwardPoints(w http.ResponseWriter, r *http.Request) {
	var req models.AwardPointsRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.CustomerID = validation.SanitizeString(req.CustomerID)

	customer, err := h.service.AwardPoints(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "Awarded "+strconv.Itoa(req.Points)+" points to "+customer.FullName(), map[string]any{
		"customer_id":      customer.ID,
		"points_awarded":   req.Points,
		"total_points":     customer.TotalPoints,
		"available_points": customer.AvailablePoints,
	})
}

// DeactivateCustomer handles DELETE /api/business/customers/{customerId}
func (h *Handler) DeactivateCustomer(w http.ResponseWriter, r *http.Request) {
	id := validation.SanitizeString(chi.URLParam(r, "customerId"))
	if err := h.service.DeactivateCustomer(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, "Customer deactivated successfully", nil)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.respondJSON(w, http.StatusServiceUnavailable, models.Response{Success: false, Message: "database unavailable"})
		return
	}
	h.respond(w, http.StatusOK, "OK", nil)
}

// decode reads a size-limited JSON body into dst and writes the error
// response itself when that fails.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondJSON(w, http.StatusBadRequest, models.Response{Message: "request body is required"})
		case errors.As(err, &tooLarge):
			h.respondJSON(w, http.StatusRequestEntityTooLarge, models.Response{Message: "request body too large"})
		default:
			h.respondJSON(w, http.StatusBadRequest, models.Response{Message: "invalid JSON in request body"})
		}
		return false
	}
	return true
}

func pageParams(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return page, limit
}

func (h *Handler) setSession(w http.ResponseWriter, name, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.service.TokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSession(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// respond sends a success envelope.
func (h *Handler) respond(w http.ResponseWriter, status int, message string, data interface{}) {
	h.respondJSON(w, status, models.Response{Success: true, Message: message, Data: data})
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps err to its status and writes a failure envelope.
// Server-side failures are logged and their details withheld.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	h.respondJSON(w, status, models.Response{
		Success: false,
		Message: apperr.Message(err),
		Errors:  validation.Fields(err),
	})
}
