package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/taskdeck/internal/apperrors"
	"github.com/taskdeck/taskdeck/internal/audit"
)

// SignupRequest represents the signup request payload
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned after signup and login
type SessionResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// MeResponse describes the authenticated user
type MeResponse struct {
	UserID      uuid.UUID  `json:"user_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	OrgID       *uuid.UUID `json:"org_id,omitempty"`
	Role        string     `json:"role"`
}

func isValidEmail(email string) bool {
	if email == "" || len(email) > 320 {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

// HandleSignup processes user registration: POST /api/v1/auth/signup
func HandleSignup(pool *pgxpool.Pool, auditor *audit.Writer, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		email := strings.TrimSpace(req.Email)
		if !isValidEmail(email) {
			apperrors.WriteBadRequest(w, r, "Invalid email address")
			return
		}
		if len(req.Password) < 8 {
			apperrors.WriteBadRequest(w, r, "Password must be at least 8 characters")
			return
		}
		displayName := strings.TrimSpace(req.DisplayName)
		if displayName == "" {
			displayName = strings.Split(email, "@")[0]
		}

		passwordHash, err := HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash password")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		userID := uuid.New()
		_, err = pool.Exec(r.Context(), `
			INSERT INTO users (id, email, password_hash, display_name)
			VALUES ($1, $2, $3, $4)
		`, userID, email, passwordHash, displayName)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
				apperrors.WriteConflict(w, r, "Email address already registered")
				return
			}
			log.Error().Err(err).Str("email", email).Msg("Failed to insert user")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		// Audit failures must not block the signup.
		_ = auditor.LogUserSignup(r.Context(), userID, email)

		token, err := CreateToken(userID, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create token")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}
		SetSessionCookie(w, token, sessionDays, isProduction)

		log.Info().
			Str("user_id", userID.String()).
			Str("email", email).
			Msg("User signed up successfully")

		apperrors.WriteSuccess(w, r, http.StatusCreated, SessionResponse{UserID: userID, Email: email})
	}
}

// HandleLogin processes user login: POST /api/v1/auth/login
func HandleLogin(pool *pgxpool.Pool, auditor *audit.Writer, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		email := strings.TrimSpace(req.Email)
		if email == "" || req.Password == "" {
			apperrors.WriteBadRequest(w, r, "Email and password are required")
			return
		}

		var userID uuid.UUID
		var passwordHash string
		err := pool.QueryRow(r.Context(), `
			SELECT id, password_hash FROM users WHERE lower(email) = lower($1)
		`, email).Scan(&userID, &passwordHash)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Same response as a wrong password, no account enumeration.
				_ = auditor.LogLoginFailed(r.Context(), email, r.RemoteAddr)
				apperrors.WriteUnauthorized(w, r, "Invalid email or password")
				return
			}
			log.Error().Err(err).Msg("Failed to load user for login")
			apperrors.WriteInternalError(w, r, "Something went wrong")
			return
		}

		if err := VerifyPassword(passwordHash, req.Password); err != nil {
			_ = auditor.LogLoginFailed(r.Context(), email, r.RemoteAddr)
			apperrors.WriteUnauthorized(w, r, "Invalid email or password")
			return
		}

		token, err := CreateToken(userID, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create token")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}
		SetSessionCookie(w, token, sessionDays, isProduction)

		csrfToken, err := GenerateCSRFToken()
		if err == nil {
			SetCSRFCookie(w, csrfToken, isProduction)
		}

		log.Info().Str("user_id", userID.String()).Msg("User logged in")

		apperrors.WriteSuccess(w, r, http.StatusOK, SessionResponse{UserID: userID, Email: email})
	}
}

// HandleLogout clears the session: POST /api/v1/auth/logout
func HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ClearSessionCookie(w)
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"logged_out": true})
	}
}

// HandleMe returns the authenticated user: GET /api/v1/auth/me
func HandleMe(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := GetUserID(r.Context())

		var resp MeResponse
		var orgID uuid.NullUUID
		err := pool.QueryRow(r.Context(), `
			SELECT id, email, display_name, org_id, role FROM users WHERE id = $1
		`, userID).Scan(&resp.UserID, &resp.Email, &resp.DisplayName, &orgID, &resp.Role)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				ClearSessionCookie(w)
				apperrors.WriteUnauthorized(w, r, "Session no longer valid")
				return
			}
			log.Error().Err(err).Msg("Failed to load current user")
			apperrors.WriteInternalError(w, r, "Something went wrong")
			return
		}
		if orgID.Valid {
			id := orgID.UUID
			resp.OrgID = &id
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, resp)
	}
}
