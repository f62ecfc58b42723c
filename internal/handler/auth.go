package handler

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/pavelanni/examprep/internal/auth"
	"github.com/pavelanni/examprep/internal/model"
)

const minPasswordLen = 6

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        model.User `json:"user"`
}

// requireAuth is middleware that checks for a valid bearer token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := auth.BearerToken(r)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := h.auth.Parse(tok)
		if err != nil {
			slog.Debug("rejected token", "error", err)
			writeError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		id, err := claims.UserID()
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := h.store.GetUserByID(r.Context(), id)
		if err != nil {
			slog.Error("failed to get user", "id", id, "error", err)
			writeError(w, r, http.StatusInternalServerError, "InternalError")
			return
		}
		if user == nil || !user.Active {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeError(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, http.StatusForbidden, "Forbidden")
		})
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if _, err := mail.ParseAddress(email); err != nil || len(c.Password) < minPasswordLen {
		writeError(w, r, http.StatusBadRequest, "RegisterError")
		return
	}

	existing, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError")
		return
	}
	if existing != nil {
		writeError(w, r, http.StatusConflict, "EmailTaken")
		return
	}

	hash, err := auth.HashPassword(c.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError")
		return
	}
	displayName := strings.TrimSpace(c.DisplayName)
	if displayName == "" {
		displayName = email
	}
	u := model.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         model.UserRoleCandidate,
		Active:       true,
	}
	u.ID, err = h.store.CreateUser(r.Context(), u)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "InternalError")
		return
	}
	h.writeToken(w, r, http.StatusCreated, u)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if strings.TrimSpace(c.Email) == "" || c.Password == "" {
		writeError(w, r, http.StatusBadRequest, "LoginError")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), c.Email)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError")
		return
	}
	if user == nil || !user.Active || !auth.CheckPassword(user.PasswordHash, c.Password) {
		writeError(w, r, http.StatusUnauthorized, "LoginError")
		return
	}
	h.writeToken(w, r, http.StatusOK, *user)
}

func (h *Handler) writeToken(w http.ResponseWriter, r *http.Request, status int, u model.User) {
	tok, err := h.auth.Issue(u)
	if err != nil {
		slog.Error("failed to issue token", "user", u.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError")
		return
	}
	writeJSON(w, status, tokenResponse{AccessToken: tok, TokenType: "Bearer", User: u})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}
