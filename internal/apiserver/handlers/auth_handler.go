package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stackpulse/stackpulse/internal/lockout"
)

// LockoutGuard tracks failed attempts per principal
type LockoutGuard interface {
	RecordFailure(principal string) (lockout.State, error)
	RecordSuccess(principal string)
	State(principal string) lockout.State
}

// AuthHandler exposes the attempt lockout guard
type AuthHandler struct {
	guard LockoutGuard
}

// NewAuthHandler creates a new lockout handler
func NewAuthHandler(guard LockoutGuard) (*AuthHandler, error) {
	if guard == nil {
		return nil, errors.New("lockout guard is required")
	}
	return &AuthHandler{guard: guard}, nil
}

// RegisterRoutes mounts the lockout endpoints on r
func (h *AuthHandler) RegisterRoutes(r chi.Router, principalValidator func(http.Handler) http.Handler) {
	r.Route("/auth/{principal}", func(r chi.Router) {
		r.Use(principalValidator)

		r.Post("/failures", h.RecordFailure)
		r.Post("/success", h.RecordSuccess)
		r.Get("/lock", h.GetLock)
	})
}

// RecordFailure counts a failed attempt. A locked principal gets 423 with the
// current state in the body.
// @Summary Record failed attempt
// @Tags auth
// @Produce json
// @Param principal path string true "Principal"
// @Success 200 {object} lockout.State
// @Failure 423 {object} lockout.State
// @Router /auth/{principal}/failures [post]
func (h *AuthHandler) RecordFailure(w http.ResponseWriter, r *http.Request) {
	state, err := h.guard.RecordFailure(chi.URLParam(r, "principal"))
	if errors.Is(err, lockout.ErrLocked) {
		writeJSON(w, http.StatusLocked, state)
		return
	}
	if err != nil {
		writeServiceError(w, err, "record_failure_failed")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// RecordSuccess clears the principal's attempts and lock
// @Summary Record successful attempt
// @Tags auth
// @Param principal path string true "Principal"
// @Success 204
// @Router /auth/{principal}/success [post]
func (h *AuthHandler) RecordSuccess(w http.ResponseWriter, r *http.Request) {
	h.guard.RecordSuccess(chi.URLParam(r, "principal"))
	w.WriteHeader(http.StatusNoContent)
}

// GetLock returns the principal's attempt count and lock
// @Summary Lock state
// @Tags auth
// @Produce json
// @Param principal path string true "Principal"
// @Success 200 {object} lockout.State
// @Router /auth/{principal}/lock [get]
func (h *AuthHandler) GetLock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.guard.State(chi.URLParam(r, "principal")))
}
