// Package auth orchestrates registration, login, email verification,
// password reset and the two-factor lifecycle on top of the credential
// store, token manager, mailer and attempt limiter.
package auth

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/drfintrack/fintrack-auth/internal/email"
	"github.com/drfintrack/fintrack-auth/internal/limiter"
	"github.com/drfintrack/fintrack-auth/internal/mfa"
	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/drfintrack/fintrack-auth/internal/repository"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/drfintrack/fintrack-auth/pkg/jwt"
	"github.com/drfintrack/fintrack-auth/pkg/password"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultIssuer      = "FinTrack"
	defaultMailTimeout = 30 * time.Second
)

// Mailer sends the account emails. *email.Service satisfies it.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, name, token string) error
	SendPasswordResetEmail(ctx context.Context, to, name, token string) error
	SendTwoFactorSetupEmail(ctx context.Context, to, name string, backupCodes []string) error
	SendLoginNotification(ctx context.Context, to, name string, details email.LoginDetails) error
}

// Options tunes the service.
type Options struct {
	// Issuer labels TOTP secrets in authenticator apps.
	Issuer         string
	PasswordPolicy password.Policy
	// MailTimeout bounds each email send, including detached ones.
	MailTimeout time.Duration
}

// Service implements the account operations exposed over HTTP.
type Service struct {
	users       repository.UserStore
	tokens      *jwt.Manager
	mailer      Mailer
	attempts    limiter.Limiter
	totp        *mfa.TOTP
	validate    *validator.Validate
	policy      password.Policy
	mailTimeout time.Duration
	pending     sync.WaitGroup
}

// NewService wires the service. A nil limiter disables attempt limiting.
func NewService(users repository.UserStore, tokens *jwt.Manager, mailer Mailer, attempts limiter.Limiter, opts Options) *Service {
	if attempts == nil {
		attempts = limiter.Noop{}
	}
	if opts.Issuer == "" {
		opts.Issuer = defaultIssuer
	}
	if opts.MailTimeout <= 0 {
		opts.MailTimeout = defaultMailTimeout
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		users:       users,
		tokens:      tokens,
		mailer:      mailer,
		attempts:    attempts,
		totp:        mfa.NewTOTP(opts.Issuer),
		validate:    validate,
		policy:      opts.PasswordPolicy,
		mailTimeout: opts.MailTimeout,
	}
}

// Wait blocks until every detached email send has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is an issued session token together with the public user.
type Session struct {
	Token string
	User  models.PublicUser
}

// Register creates an unverified account, sends the verification email and
// signs the user in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	if err := s.validate.Struct(in); err != nil {
		return nil, badRequest(validationMessage(err))
	}
	if err := s.checkPolicy(in.Password); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, internal("check email", err)
	}
	if exists {
		return nil, newError(KindConflict, MsgUserExists)
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, internal("hash password", err)
	}
	user := models.NewUser(in.Name, in.Email, hash)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, newError(KindConflict, MsgUserExists)
		}
		return nil, internal("create user", err)
	}

	if err := s.sendVerification(ctx, user); err != nil {
		debug.Warning("Failed to send verification email for user %s: %v", user.ID, err)
	}

	token, err := s.tokens.IssueSession(user.ID.String())
	if err != nil {
		return nil, internal("issue session", err)
	}
	debug.Info("Registered user %s", user.ID)
	return &Session{Token: token, User: user.Public()}, nil
}

// LoginInput carries credentials plus the client details recorded in the
// login history.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Token is the optional second factor: a TOTP code or a backup code.
	Token     string `json:"token"`
	IPAddress string `json:"-"`
	Device    string `json:"-"`
}

// LoginResult is either a session or a request for the second factor.
type LoginResult struct {
	Requires2FA bool
	Session     *Session
}

// Login checks the password and, for 2FA accounts, the second factor.
// Without a code a 2FA account gets Requires2FA and no token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = normalizeEmail(in.Email)
	if in.Email == "" || in.Password == "" {
		return nil, unauthorized(MsgInvalidCredentials)
	}

	user, err := s.users.FindByEmail(ctx, in.Email, repository.FindOptions{WithSecrets: true})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, unauthorized(MsgInvalidCredentials)
		}
		return nil, internal("find user", err)
	}

	if !password.Matches(user.PasswordHash, in.Password) {
		if err := s.recordFailedLogin(ctx, user.ID, in); err != nil {
			return nil, err
		}
		debug.Info("Failed login for user %s", user.ID)
		return nil, unauthorized(MsgInvalidCredentials)
	}

	if user.TwoFactorEnabled {
		if in.Token == "" {
			return &LoginResult{Requires2FA: true}, nil
		}
		if err := s.checkSecondFactor(ctx, user, in.Token, true); err != nil {
			authErr, ok := AsError(err)
			if !ok || authErr.Kind == KindInternal {
				return nil, err
			}
			if recErr := s.recordFailedLogin(ctx, user.ID, in); recErr != nil {
				return nil, recErr
			}
			debug.Info("Failed second factor for user %s", user.ID)
			authErr.Requires2FA = true
			return nil, authErr
		}
	}

	event := models.LoginEvent{
		Timestamp:  time.Now().UTC(),
		IPAddress:  in.IPAddress,
		Device:     in.Device,
		Successful: true,
	}
	if err := s.users.RecordLogin(ctx, user.ID, event); err != nil {
		return nil, internal("record login", err)
	}
	user.LastLogin = &models.LastLogin{Timestamp: event.Timestamp, IPAddress: event.IPAddress, Device: event.Device}

	s.detach("login_notification", user.ID, func(ctx context.Context) error {
		return s.mailer.SendLoginNotification(ctx, user.Email, user.Name, email.LoginDetails{
			Timestamp: event.Timestamp,
			IPAddress: event.IPAddress,
			Device:    event.Device,
		})
	})

	token, err := s.tokens.IssueSession(user.ID.String())
	if err != nil {
		return nil, internal("issue session", err)
	}
	debug.Info("User %s logged in", user.ID)
	return &LoginResult{Session: &Session{Token: token, User: user.Public()}}, nil
}

// VerifyEmail marks the account behind an email-verification token as verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	id, ok := s.subjectOf(token, jwt.PurposeEmailVerification)
	if !ok {
		return badRequest(MsgInvalidToken)
	}
	user, err := s.findUser(ctx, id, false)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return badRequest(MsgAlreadyVerified)
	}
	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(MsgUserNotFound)
		}
		return internal("set email verified", err)
	}
	debug.Info("Email verified for user %s", user.ID)
	return nil
}

// ResendVerification sends a fresh verification email. Delivery failure is
// reported to the caller.
func (s *Service) ResendVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.findUser(ctx, userID, false)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return badRequest(MsgAlreadyVerified)
	}
	if err := s.sendVerification(ctx, user); err != nil {
		return &Error{Kind: KindInternal, Message: MsgVerificationSendFailed, Err: err}
	}
	return nil
}

// ForgotPassword emails a password-reset link to a registered address.
func (s *Service) ForgotPassword(ctx context.Context, address string) error {
	address = normalizeEmail(address)
	if address == "" {
		return notFound(MsgUserNotFound)
	}
	user, err := s.users.FindByEmail(ctx, address, repository.FindOptions{})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(MsgUserNotFound)
		}
		return internal("find user", err)
	}

	token, err := s.tokens.IssuePasswordReset(user.ID.String())
	if err != nil {
		return internal("issue reset token", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.Name, token); err != nil {
		return &Error{Kind: KindInternal, Message: MsgResetSendFailed, Err: err}
	}
	return nil
}

// ResetPassword replaces the password of the account behind a reset token.
// Existing sessions stay valid until they expire.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	id, ok := s.subjectOf(token, jwt.PurposePasswordReset)
	if !ok {
		return badRequest(MsgInvalidToken)
	}
	if err := s.checkPolicy(newPassword); err != nil {
		return err
	}
	user, err := s.findUser(ctx, id, false)
	if err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return internal("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(MsgUserNotFound)
		}
		return internal("update password", err)
	}
	debug.Info("Password reset for user %s", user.ID)
	return nil
}

// Me returns the caller's profile including the last successful login.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error) {
	user, err := s.findUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

func (s *Service) sendVerification(ctx context.Context, user *models.User) error {
	token, err := s.tokens.IssueEmailVerification(user.ID.String())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()
	return s.mailer.SendVerificationEmail(ctx, user.Email, user.Name, token)
}

// detach runs send in the background with its own deadline. Failures are
// logged only.
func (s *Service) detach(kind string, userID uuid.UUID, send func(ctx context.Context) error) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.mailTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			debug.WithFields(logrus.Fields{
				"email_type": kind,
				"user_id":    userID.String(),
			}).WithError(err).Error("Detached email delivery failed")
		}
	}()
}

func (s *Service) findUser(ctx context.Context, id uuid.UUID, withSecrets bool) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id, repository.FindOptions{WithSecrets: withSecrets})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(MsgUserNotFound)
		}
		return nil, internal("find user", err)
	}
	return user, nil
}

func (s *Service) subjectOf(token string, purpose jwt.Purpose) (uuid.UUID, bool) {
	claims, ok := s.tokens.Verify(token, purpose)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *Service) checkPolicy(plain string) error {
	if plain == "" {
		return badRequest("Password is required")
	}
	if err := password.Validate(plain, s.policy); err != nil {
		var policyErr *password.ValidationError
		if errors.As(err, &policyErr) {
			return badRequest(policyErr.Message)
		}
		return badRequest(err.Error())
	}
	return nil
}

func (s *Service) recordFailedLogin(ctx context.Context, userID uuid.UUID, in LoginInput) error {
	failed := models.LoginEvent{
		Timestamp: time.Now().UTC(),
		IPAddress: in.IPAddress,
		Device:    in.Device,
	}
	if err := s.users.RecordLogin(ctx, userID, failed); err != nil {
		return internal("record failed login", err)
	}
	return nil
}

// normalizeEmail trims surrounding whitespace. Addresses are otherwise
// matched exactly as stored.
func normalizeEmail(address string) string {
	return strings.TrimSpace(address)
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Invalid request"
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return "Please provide " + fe.Field()
	case "email":
		return "Please provide a valid email"
	default:
		return "Invalid " + fe.Field()
	}
}
