package auth

import (
	"net/http"

	authsvc "github.com/drfintrack/fintrack-auth/internal/auth"
	"github.com/drfintrack/fintrack-auth/internal/middleware"
	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/drfintrack/fintrack-auth/pkg/httputil"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const msgInvalidRequest = "Invalid request"

// Handler serves the /api/auth endpoints.
type Handler struct {
	svc *authsvc.Service
}

// NewHandler creates a new auth handler
func NewHandler(svc *authsvc.Service) *Handler {
	return &Handler{svc: svc}
}

type errorResponse struct {
	Success                   bool   `json:"success"`
	Message                   string `json:"message"`
	Requires2FA               bool   `json:"requires2FA,omitempty"`
	RequiresEmailVerification bool   `json:"requiresEmailVerification,omitempty"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type sessionResponse struct {
	Success bool              `json:"success"`
	Token   string            `json:"token"`
	User    models.PublicUser `json:"user"`
	Message string            `json:"message,omitempty"`
}

type twoFactorChallenge struct {
	Success     bool   `json:"success"`
	Requires2FA bool   `json:"requires2FA"`
	Message     string `json:"message"`
}

type profileResponse struct {
	Success bool              `json:"success"`
	User    models.PublicUser `json:"user"`
}

type setupResponse struct {
	Success bool   `json:"success"`
	Secret  string `json:"secret"`
	QRCode  string `json:"qrCode"`
}

type backupCodesResponse struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	BackupCodes []string `json:"backupCodes"`
}

// RegisterHandler handles POST /register
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req authsvc.RegisterInput
	if err := httputil.ParseJSONBody(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	session, err := h.svc.Register(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, sessionResponse{
		Success: true,
		Token:   session.Token,
		User:    session.User,
		Message: "Registration successful. Please verify your email.",
	})
}

// LoginHandler handles POST /login. A 2FA account without a code gets a
// 200 challenge instead of a token.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req authsvc.LoginInput
	if err := httputil.ParseJSONBody(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	req.IPAddress = clientIP(r)
	req.Device = deviceLabel(r.UserAgent())

	result, err := h.svc.Login(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}

	if result.Requires2FA {
		httputil.RespondWithJSON(w, http.StatusOK, twoFactorChallenge{
			Success:     true,
			Requires2FA: true,
			Message:     authsvc.MsgTwoFactorRequired,
		})
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, sessionResponse{
		Success: true,
		Token:   result.Session.Token,
		User:    result.Session.User,
	})
}

// VerifyEmailHandler handles GET /verify-email/{token}
func (h *Handler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.VerifyEmail(r.Context(), mux.Vars(r)["token"]); err != nil {
		respondError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Email verified successfully"})
}

// ResendVerificationHandler handles POST /resend-verification
func (h *Handler) ResendVerificationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	if err := h.svc.ResendVerification(r.Context(), userID); err != nil {
		respondError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Verification email sent"})
}

// ForgotPasswordHandler handles POST /forgot-password
func (h *Handler) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := httputil.ParseJSONBody(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		respondError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Password reset email sent"})
}

// ResetPasswordHandler handles POST /reset-password/{token}
func (h *Handler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := httputil.ParseJSONBody(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), mux.Vars(r)["token"], req.Password); err != nil {
		respondError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Password reset successful"})
}

// MeHandler handles GET /me
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	profile, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, profileResponse{Success: true, User: *profile})
}

// SetupTwoFactorHandler handles POST /2fa/setup
func (h *Handler) SetupTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	setup, err := h.svc.SetupTwoFactor(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, setupResponse{Success: true, Secret: setup.Secret, QRCode: setup.QRCode})
}

type codeRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// VerifyTwoFactorHandler handles POST /2fa/verify
func (h *Handler) VerifyTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.codeRequest(w, r)
	if !ok {
		return
	}
	codes, err := h.svc.VerifyTwoFactor(r.Context(), userID, req.Token)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, backupCodesResponse{
		Success:     true,
		Message:     "2FA enabled successfully",
		BackupCodes: codes,
	})
}

// DisableTwoFactorHandler handles POST /2fa/disable
func (h *Handler) DisableTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.codeRequest(w, r)
	if !ok {
		return
	}
	if err := h.svc.DisableTwoFactor(r.Context(), userID, req.Token, req.Password); err != nil {
		respondError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, messageResponse{Success: true, Message: "2FA disabled successfully"})
}

// RegenerateBackupCodesHandler handles POST /2fa/backup-codes
func (h *Handler) RegenerateBackupCodesHandler(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.codeRequest(w, r)
	if !ok {
		return
	}
	codes, err := h.svc.RegenerateBackupCodes(r.Context(), userID, req.Token)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, backupCodesResponse{
		Success:     true,
		Message:     "New backup codes generated",
		BackupCodes: codes,
	})
}

func (h *Handler) codeRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, codeRequest, bool) {
	var req codeRequest
	userID, ok := currentUserID(w, r)
	if !ok {
		return uuid.Nil, req, false
	}
	if err := httputil.ParseJSONBody(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, msgInvalidRequest)
		return uuid.Nil, req, false
	}
	return userID, req, true
}

func currentUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		debug.Error("Protected route %s reached without identity", r.URL.Path)
		httputil.RespondWithError(w, http.StatusUnauthorized, "Not authorized to access this route")
		return uuid.Nil, false
	}
	return identity.ID, true
}

// respondError maps service errors to HTTP. Internal causes are logged and
// replaced by the generic message.
func respondError(w http.ResponseWriter, err error) {
	authErr, ok := authsvc.AsError(err)
	if !ok {
		debug.Error("Unclassified error: %v", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, authsvc.MsgServerError)
		return
	}
	if authErr.Kind == authsvc.KindInternal {
		debug.Error("%v", authErr)
	}

	httputil.RespondWithJSON(w, statusFor(authErr.Kind), errorResponse{
		Message:                   authErr.Message,
		Requires2FA:               authErr.Requires2FA,
		RequiresEmailVerification: authErr.RequiresEmailVerification,
	})
}

func statusFor(kind authsvc.Kind) int {
	switch kind {
	case authsvc.KindBadRequest, authsvc.KindConflict:
		return http.StatusBadRequest
	case authsvc.KindUnauthorized:
		return http.StatusUnauthorized
	case authsvc.KindForbidden:
		return http.StatusForbidden
	case authsvc.KindNotFound:
		return http.StatusNotFound
	case authsvc.KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
