package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/vpportal/vpportal/shared/config"
	"github.com/vpportal/vpportal/shared/domain"
	"github.com/vpportal/vpportal/shared/errors"
	"github.com/vpportal/vpportal/shared/logger"
	"github.com/vpportal/vpportal/shared/middleware/metrics"
	"github.com/vpportal/vpportal/shared/utils"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.Unauthorized("Invalid credentials")
	ErrUserExists         = errors.BadRequest("User already exists")
	ErrUserExistsRace     = errors.Conflict("User already exists")
	ErrWrongEmailDomain   = errors.BadRequest("Please use your Woxsen email address for registration")
	ErrNoPending          = errors.BadRequest("No pending registration found. Please register again.")
	ErrOTPExpired         = errors.BadRequest("OTP has expired. Please register again.")
	ErrInvalidOTP         = errors.BadRequest("Invalid OTP. Please try again.")
	ErrUserNotFound       = errors.NotFound("User not found")
	ErrAlreadyVerified    = errors.BadRequest("Email already verified")
	ErrNoUserWithEmail    = errors.NotFound("No user found with this email")
	ErrInvalidResetToken  = errors.BadRequest("Invalid or expired reset token")
	ErrPasswordTooLong    = errors.BadRequest("Password must be at most 72 bytes long")
)

// otpLength is fixed; codes are always six ASCII digits.
const otpLength = 6

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (domain.Email, error)
	VerifyEmail(ctx context.Context, email domain.Email, otp string) (string, domain.User, error)
	ResendOTP(ctx context.Context, userId domain.UserId, email domain.Email) error
	Login(ctx context.Context, email domain.Email, password domain.Password) (string, domain.User, error)
	Me(ctx context.Context, userId domain.UserId) (domain.User, error)
	ForgotPassword(ctx context.Context, email domain.Email, origin string) error
	ResetPassword(ctx context.Context, rawToken string, password domain.Password) (string, error)
}

type RegisterInput struct {
	Name     string
	Email    domain.Email
	Password domain.Password
	Role     domain.Role
	School   string
	Phone    string
}

type Auth struct {
	storage    UserStorage
	pending    PendingStore
	email      Email
	jwt        Jwt
	cfg        *config.Public
	now        func() time.Time
	bcryptCost int
}

func NewAuth(storage UserStorage, pending PendingStore, email Email, jwt Jwt, cfg *config.Public) *Auth {
	return &Auth{
		storage:    storage,
		pending:    pending,
		email:      email,
		jwt:        jwt,
		cfg:        cfg,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (a *Auth) passwordTooShort() error {
	return errors.BadRequest(fmt.Sprintf("Password must be at least %d characters long", a.cfg.MinPasswordLength))
}

func (a *Auth) hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), a.bcryptCost)
	if stderrors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		logger.Log.Error("failed to hash secret", "error", err)
		return "", err
	}
	return string(h), nil
}

// Register stages the signup and mails an OTP. No user exists until the OTP
// is verified.
func (a *Auth) Register(ctx context.Context, input RegisterInput) (domain.Email, error) {
	email := domain.NormalizeEmail(input.Email)

	if err := a.email.IsCorrect(email); err != nil {
		return "", err
	}
	if len(input.Password) < a.cfg.MinPasswordLength {
		return "", a.passwordTooShort()
	}

	_, err := a.storage.UserByEmail(ctx, email)
	if err == nil {
		return "", ErrUserExists
	}
	if !errors.IsNotFound(err) {
		return "", err
	}

	if !strings.HasSuffix(email, a.cfg.AllowedEmailSuffix) {
		metrics.AuthEvent("register", "wrong_domain")
		return "", ErrWrongEmailDomain
	}

	passHash, err := a.hash(input.Password)
	if err != nil {
		return "", err
	}
	p := domain.PendingRegistration{
		Email:    email,
		Name:     strings.TrimSpace(input.Name),
		PassHash: passHash,
		Role:     input.Role,
		School:   input.School,
		Phone:    input.Phone,
	}
	if err := a.stageAndSend(ctx, p, "Email Verification - VP Portal", verificationBody); err != nil {
		return "", err
	}

	metrics.AuthEvent("register", "staged")
	return email, nil
}

// stageAndSend issues a fresh OTP for p, stores it and mails the code. The
// entry is removed again when the email cannot be sent.
func (a *Auth) stageAndSend(ctx context.Context, p domain.PendingRegistration, subject string, body func(name, otp string, ttl time.Duration) string) error {
	otp := utils.GenerateOTP(otpLength)
	otpHash, err := a.hash(otp)
	if err != nil {
		return err
	}
	p.OTPHash = otpHash
	p.Expires = a.now().Add(a.cfg.OTPTTL)

	if err := a.pending.Put(ctx, p); err != nil {
		return err
	}

	if err := a.email.Send(p.Email, subject, body(p.Name, otp, a.cfg.OTPTTL)); err != nil {
		logger.Log.Error("failed to send otp email", "email", p.Email, "error", err)
		if delErr := a.pending.Delete(ctx, p.Email); delErr != nil {
			logger.Log.Error("failed to drop pending registration", "email", p.Email, "error", delErr)
		}
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

// VerifyEmail checks the OTP and promotes the pending entry to a verified
// user (or marks an existing user verified).
func (a *Auth) VerifyEmail(ctx context.Context, email domain.Email, otp string) (string, domain.User, error) {
	email = domain.NormalizeEmail(email)
	otp = strings.TrimSpace(otp)

	p, err := a.pending.Get(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			metrics.AuthEvent("verify_email", "no_pending")
			return "", domain.User{}, ErrNoPending
		}
		return "", domain.User{}, err
	}

	if p.Expired(a.now()) {
		if err := a.pending.Delete(ctx, email); err != nil {
			return "", domain.User{}, err
		}
		metrics.AuthEvent("verify_email", "expired")
		return "", domain.User{}, ErrOTPExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.OTPHash), []byte(otp)); err != nil {
		metrics.AuthEvent("verify_email", "invalid_otp")
		return "", domain.User{}, ErrInvalidOTP
	}

	user, err := a.promote(ctx, p)
	if err != nil {
		return "", domain.User{}, err
	}

	if err := a.pending.Delete(ctx, email); err != nil {
		// The user exists already, a leftover entry only expires later.
		logger.Log.Error("failed to drop pending registration", "email", email, "error", err)
	}

	token, err := a.jwt.NewToken(user)
	if err != nil {
		return "", domain.User{}, err
	}
	metrics.AuthEvent("verify_email", "success")
	return token, user, nil
}

func (a *Auth) promote(ctx context.Context, p domain.PendingRegistration) (domain.User, error) {
	if p.UserId != "" {
		if err := a.storage.MarkEmailVerified(ctx, p.UserId); err != nil {
			if errors.IsNotFound(err) {
				return domain.User{}, ErrUserNotFound
			}
			return domain.User{}, err
		}
		user, err := a.storage.UserById(ctx, p.UserId)
		if err != nil {
			if errors.IsNotFound(err) {
				return domain.User{}, ErrUserNotFound
			}
			return domain.User{}, err
		}
		return user, nil
	}

	user := domain.User{
		Name:          p.Name,
		Email:         p.Email,
		PassHash:      p.PassHash,
		Role:          p.Role,
		School:        p.School,
		Phone:         p.Phone,
		EmailVerified: true,
		CreatedAt:     a.now().UTC(),
	}
	id, err := a.storage.CreateUser(ctx, user)
	if err != nil {
		if errors.IsConflict(err) {
			// a concurrent verification for the same email won
			metrics.AuthEvent("verify_email", "duplicate")
			return domain.User{}, ErrUserExistsRace
		}
		return domain.User{}, err
	}
	user.Id = id
	return user, nil
}

// ResendOTP issues a new code either for a known user id or for an email
// with a pending registration or an unverified account.
func (a *Auth) ResendOTP(ctx context.Context, userId domain.UserId, email domain.Email) error {
	p, err := a.resendTarget(ctx, userId, domain.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if err := a.stageAndSend(ctx, p, "New OTP - Email Verification", resendBody); err != nil {
		return err
	}
	metrics.AuthEvent("resend_otp", "sent")
	return nil
}

func (a *Auth) resendTarget(ctx context.Context, userId domain.UserId, email domain.Email) (domain.PendingRegistration, error) {
	if userId != "" {
		user, err := a.storage.UserById(ctx, userId)
		if err != nil {
			if errors.IsNotFound(err) {
				return domain.PendingRegistration{}, ErrUserNotFound
			}
			return domain.PendingRegistration{}, err
		}
		if user.EmailVerified {
			return domain.PendingRegistration{}, ErrAlreadyVerified
		}
		return pendingFromUser(user), nil
	}

	p, err := a.pending.Get(ctx, email)
	if err == nil {
		return p, nil
	}
	if !errors.IsNotFound(err) {
		return domain.PendingRegistration{}, err
	}

	user, err := a.storage.UserByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return domain.PendingRegistration{}, ErrNoPending
		}
		return domain.PendingRegistration{}, err
	}
	if user.EmailVerified {
		return domain.PendingRegistration{}, ErrAlreadyVerified
	}
	return pendingFromUser(user), nil
}

func pendingFromUser(user domain.User) domain.PendingRegistration {
	return domain.PendingRegistration{
		Email:    user.Email,
		Name:     user.Name,
		PassHash: user.PassHash,
		Role:     user.Role,
		School:   user.School,
		Phone:    user.Phone,
		UserId:   user.Id,
	}
}

// Login returns the same error for unknown emails and wrong passwords.
func (a *Auth) Login(ctx context.Context, email domain.Email, password domain.Password) (string, domain.User, error) {
	email = domain.NormalizeEmail(email)

	user, err := a.storage.UserByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			metrics.AuthEvent("login", "invalid_credentials")
			return "", domain.User{}, ErrInvalidCredentials
		}
		return "", domain.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PassHash), []byte(password)); err != nil {
		metrics.AuthEvent("login", "invalid_credentials")
		return "", domain.User{}, ErrInvalidCredentials
	}

	token, err := a.jwt.NewToken(user)
	if err != nil {
		return "", domain.User{}, err
	}
	metrics.AuthEvent("login", "success")
	return token, user, nil
}

func (a *Auth) Me(ctx context.Context, userId domain.UserId) (domain.User, error) {
	user, err := a.storage.UserById(ctx, userId)
	if err != nil {
		if errors.IsNotFound(err) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// ForgotPassword mails a single-use reset link. origin (scheme://host of the
// incoming request) is used when no reset_url_base is configured.
func (a *Auth) ForgotPassword(ctx context.Context, email domain.Email, origin string) error {
	email = domain.NormalizeEmail(email)

	user, err := a.storage.UserByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return ErrNoUserWithEmail
		}
		return err
	}

	rawToken, err := utils.GenerateResetToken()
	if err != nil {
		return err
	}
	if err := a.storage.SetResetToken(ctx, user.Id, utils.HashToken(rawToken), a.now().Add(a.cfg.ResetTokenTTL)); err != nil {
		return err
	}

	base := a.cfg.ResetURLBase
	if base == "" {
		base = origin
	}
	resetURL := strings.TrimRight(base, "/") + "/reset-password/" + rawToken

	if err := a.email.Send(user.Email, "Password Reset Request", resetBody(resetURL, a.cfg.ResetTokenTTL)); err != nil {
		logger.Log.Error("failed to send reset email", "user_id", user.Id, "error", err)
		if clearErr := a.storage.SetResetToken(ctx, user.Id, "", time.Time{}); clearErr != nil {
			logger.Log.Error("failed to clear reset token", "user_id", user.Id, "error", clearErr)
		}
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	metrics.AuthEvent("forgot_password", "sent")
	return nil
}

func (a *Auth) ResetPassword(ctx context.Context, rawToken string, password domain.Password) (string, error) {
	tokenHash := utils.HashToken(rawToken)
	now := a.now()

	user, err := a.storage.UserByResetToken(ctx, tokenHash, now)
	if err != nil {
		if errors.IsNotFound(err) {
			metrics.AuthEvent("reset_password", "invalid_token")
			return "", ErrInvalidResetToken
		}
		return "", err
	}

	if len(password) < a.cfg.MinPasswordLength {
		return "", a.passwordTooShort()
	}

	passHash, err := a.hash(password)
	if err != nil {
		return "", err
	}
	if err := a.storage.ConsumeResetToken(ctx, user.Id, tokenHash, now, passHash); err != nil {
		if errors.IsNotFound(err) {
			metrics.AuthEvent("reset_password", "invalid_token")
			return "", ErrInvalidResetToken
		}
		return "", err
	}
	user.PassHash = passHash

	token, err := a.jwt.NewToken(user)
	if err != nil {
		return "", err
	}
	metrics.AuthEvent("reset_password", "success")
	return token, nil
}

func minutes(d time.Duration) int {
	return int(d / time.Minute)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`(`, `\(`, `)`, `\)`, `<`, `\<`, `>`, `\>`, `#`, `\#`, `!`, `\!`,
	`~`, `\~`, `|`, `\|`, `{`, `\{`, `}`, `\}`, `&`, `\&`,
)

// escapeMarkdown makes user input render as literal text inside a single
// paragraph line of a mail body.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(strings.Join(strings.Fields(s), " "))
}

func verificationBody(name, otp string, ttl time.Duration) string {
	return fmt.Sprintf(`## Verify Your Email

Dear %s,

Thank you for registering. Please use the following OTP to verify your email address:

# %s

This OTP will expire in %d minutes.

Best regards,
VP Portal Team
`, escapeMarkdown(name), otp, minutes(ttl))
}

func resendBody(name, otp string, ttl time.Duration) string {
	return fmt.Sprintf(`## Verify Your Email

Dear %s,

Your new OTP for email verification is:

# %s

This OTP will expire in %d minutes.

Best regards,
VP Portal Team
`, escapeMarkdown(name), otp, minutes(ttl))
}

func resetBody(resetURL string, ttl time.Duration) string {
	return fmt.Sprintf(`You are receiving this email because you (or someone else) has requested to reset your password. Click the link below to reset your password:

%s

This link will expire in %d minutes.
`, resetURL, minutes(ttl))
}

var _ AuthService = (*Auth)(nil)
