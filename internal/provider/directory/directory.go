package directory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/screenhall/screenhall/internal/email"
	"github.com/screenhall/screenhall/internal/provider"
	"github.com/screenhall/screenhall/internal/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// accountRepo is the storage interface consumed by Directory.
type accountRepo interface {
	Create(ctx context.Context, a *Account) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByLink(ctx context.Context, providerName, subjectID string) (*Account, error)
	Link(ctx context.Context, accountID uuid.UUID, providerName, subjectID string) error
	SetDisplayName(ctx context.Context, id uuid.UUID, name string) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	CreateResetToken(ctx context.Context, accountID uuid.UUID, token string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, token string) (*Account, error)
}

// HandshakeBroker runs the third-party sign-in handshake and reports what
// the external provider asserted about the user.
type HandshakeBroker interface {
	Handshake(ctx context.Context) (*ExternalIdentity, error)
}

// Directory implements provider.Provider against the account repository.
// Every failure leaving this package for the UI is a *provider.Error.
type Directory struct {
	repo     accountRepo
	mailer   email.Sender
	broker   HandshakeBroker
	resetURL string // base URL reset links point at
	stream   *session.Broadcaster
	attempts *attemptLimiter
	logger   *zap.Logger
}

// New creates a Directory. broker may be nil when the third-party path is
// not configured. The auth stream is primed to signed-out at construction:
// no token persistence means every process starts without a session.
func New(repo accountRepo, mailer email.Sender, broker HandshakeBroker, resetURL string, logger *zap.Logger) *Directory {
	d := &Directory{
		repo:     repo,
		mailer:   mailer,
		broker:   broker,
		resetURL: resetURL,
		stream:   session.NewBroadcaster(),
		attempts: newAttemptLimiter(rate.Every(20*time.Second), 5),
		logger:   logger,
	}
	d.stream.Publish(nil)
	return d
}

// AuthStream exposes the directory's auth-state stream.
func (d *Directory) AuthStream() provider.AuthStream { return d.stream }

// VerifyCredentials checks an email/password pair. Sign-in attempts are
// throttled per address.
func (d *Directory) VerifyCredentials(ctx context.Context, emailAddr, password string) (*provider.Identity, error) {
	if !d.attempts.allow(emailAddr) {
		return nil, provider.NewError(provider.CodeTooManyRequests, errors.New("sign-in throttled"))
	}

	a, err := d.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, provider.NewError(provider.CodeUserNotFound, err)
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if a.PasswordHash == "" {
		// Handshake-only account; there is no password to match.
		return nil, provider.NewError(provider.CodeWrongPassword, errors.New("no password set"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, provider.NewError(provider.CodeWrongPassword, err)
	}

	ident := a.Identity()
	d.stream.Publish(ident)
	return ident, nil
}

// CreateCredentials registers a new email/password account.
func (d *Directory) CreateCredentials(ctx context.Context, emailAddr, password string) (*provider.Identity, error) {
	if _, err := mail.ParseAddress(emailAddr); err != nil {
		return nil, provider.NewError(provider.CodeInvalidEmail, err)
	}
	if len(password) < 6 {
		return nil, provider.NewError(provider.CodeWeakPassword, errors.New("password too short"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a := &Account{Email: emailAddr, PasswordHash: string(hash)}
	if err := d.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, provider.NewError(provider.CodeEmailInUse, err)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	d.logger.Info("account created", zap.String("account_id", a.ID.String()))
	ident := a.Identity()
	d.stream.Publish(ident)
	return ident, nil
}

// UpdateDisplayName sets the display name on an account. An empty name
// clears it.
func (d *Directory) UpdateDisplayName(ctx context.Context, id, name string) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("parse account id: %w", err)
	}
	if err := d.repo.SetDisplayName(ctx, accountID, name); err != nil {
		if errors.Is(err, ErrNotFound) {
			return provider.NewError(provider.CodeUserNotFound, err)
		}
		return err
	}
	return nil
}

// BeginHandshake runs the configured third-party handshake and signs the
// resulting identity in, creating or linking the directory account as
// needed.
func (d *Directory) BeginHandshake(ctx context.Context) (*provider.Identity, error) {
	if d.broker == nil {
		return nil, errors.New("no handshake broker configured")
	}
	ext, err := d.broker.Handshake(ctx)
	if err != nil {
		return nil, err
	}
	ident, err := d.RegisterHandshake(ctx, ext)
	if err != nil {
		return nil, err
	}
	d.stream.Publish(ident)
	return ident, nil
}

// RegisterHandshake resolves an external identity to a directory account:
// an existing link wins, then an existing account with the same email is
// linked, then a fresh account is created.
func (d *Directory) RegisterHandshake(ctx context.Context, ext *ExternalIdentity) (*provider.Identity, error) {
	a, err := d.repo.GetByLink(ctx, ext.Provider, ext.SubjectID)
	if err == nil {
		return a.Identity(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup linked account: %w", err)
	}

	existing, err := d.repo.GetByEmail(ctx, ext.Email)
	if err == nil {
		if linkErr := d.repo.Link(ctx, existing.ID, ext.Provider, ext.SubjectID); linkErr != nil {
			d.logger.Warn("link handshake identity to existing account",
				zap.String("account_id", existing.ID.String()),
				zap.Error(linkErr),
			)
		}
		return existing.Identity(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup account by email: %w", err)
	}

	a = &Account{
		Email:       ext.Email,
		DisplayName: ext.DisplayName,
		AvatarURL:   ext.AvatarURL,
	}
	if err := d.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create handshake account: %w", err)
	}
	if err := d.repo.Link(ctx, a.ID, ext.Provider, ext.SubjectID); err != nil {
		d.logger.Warn("link handshake identity after create", zap.Error(err))
	}

	d.logger.Info("account created via handshake",
		zap.String("account_id", a.ID.String()),
		zap.String("provider", ext.Provider),
	)
	return a.Identity(), nil
}

// SendResetMessage emails a single-use reset link to the account holder.
func (d *Directory) SendResetMessage(ctx context.Context, emailAddr string) error {
	a, err := d.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return provider.NewError(provider.CodeUserNotFound, err)
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	expires := time.Now().UTC().Add(1 * time.Hour)
	if err := d.repo.CreateResetToken(ctx, a.ID, token, expires); err != nil {
		return fmt.Errorf("persist reset token: %w", err)
	}

	link := d.resetURL + "/reset-password?token=" + token
	body := fmt.Sprintf(
		"Hello,\n\nReset your Screenhall password:\n\n  %s\n\nThis link expires in 1 hour.\n\nIf you did not request a reset, ignore this email — your password has not changed.\n",
		link,
	)
	if err := d.mailer.Send(ctx, a.Email, "Reset your Screenhall password", body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// CompleteReset consumes a reset token and sets the new password.
func (d *Directory) CompleteReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 6 {
		return provider.NewError(provider.CodeWeakPassword, errors.New("password too short"))
	}

	a, err := d.repo.ConsumeResetToken(ctx, token)
	if err != nil {
		// ErrNotFound stays unwrappable: an unknown, expired, or spent
		// token is the caller's fault, not a service fault.
		return fmt.Errorf("consume reset token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := d.repo.SetPasswordHash(ctx, a.ID, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	d.logger.Info("password reset", zap.String("account_id", a.ID.String()))
	return nil
}

// SignOut publishes the signed-out state on the auth stream.
func (d *Directory) SignOut(context.Context) error {
	d.stream.Publish(nil)
	return nil
}

// generateResetToken returns a hex-encoded 256-bit random token.
func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
