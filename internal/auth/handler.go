package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/store"
	"github.com/frahmantamala/datashare/internal/transport"
	"github.com/frahmantamala/datashare/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Sessions Sessions
}

func NewHandler(svc ServiceAPI, sessions Sessions, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Sessions:    sessions,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	tokens, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	if err := dto.Validate(); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), dto.RefreshToken)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// Logout drops the caller's session store, cancelling any fetch it has in
// flight. Access tokens stay valid until they expire.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, r, internal.ErrNotAuthenticated)
		return
	}

	claims, err := h.Service.ValidateAccessToken(token)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.Sessions.Drop(claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the resolved identity of the caller.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller := internal.CallerFromContext(r.Context())
	if !caller.Authenticated() {
		h.WriteAppError(w, r, internal.ErrNotAuthenticated)
		return
	}
	h.WriteJSON(w, http.StatusOK, caller)
}

// AuthMiddleware resolves the caller from the stored user record and attaches
// the caller's session store to the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteAppError(w, r, internal.ErrNotAuthenticated)
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}

		caller, err := h.Service.ResolveCaller(r.Context(), claims)
		if err != nil {
			h.Logger.Warn("auth middleware: caller not resolved", "user_id", claims.UserID, "error", err)
			h.WriteAppError(w, r, err)
			return
		}

		ctx := internal.ContextWithCaller(r.Context(), caller)
		ctx = store.NewContext(ctx, h.Sessions.Session(caller))
		ctx = logger.With(ctx, "user_id", caller.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
