// Package flow drives the sign-up, sign-in, and password-reset flows: one
// state machine per mounted auth surface, coordinating provider calls and
// profile reconciliation, then closing the overlay or navigating on
// success.
package flow

import (
	"context"
	"sync"

	"github.com/screenhall/screenhall/internal/messages"
	"github.com/screenhall/screenhall/internal/profile"
	"github.com/screenhall/screenhall/internal/provider"
	"go.uber.org/zap"
)

// Mode selects between the sign-in and sign-up sub-flows.
type Mode int

const (
	SignIn Mode = iota
	SignUp
)

func (m Mode) String() string {
	if m == SignUp {
		return "sign_up"
	}
	return "sign_in"
}

// Phase is the submission state. A failure returns the controller to Idle
// with an error message set; it is never a dead end.
type Phase int

const (
	Idle Phase = iota
	Submitting
	Succeeded
)

// EntryContext describes how the flow surface was entered.
type EntryContext struct {
	// EmbeddedInOverlay: success closes the overlay instead of navigating.
	EmbeddedInOverlay bool
	// ForceSignUp seeds the initial mode to SignUp (the "sign up" header
	// entry point).
	ForceSignUp bool
	// ReturnDestination is where to navigate after a full-page success.
	// Empty means the default landing location.
	ReturnDestination string
}

// DefaultDestination is where a full-page flow lands when no return
// destination was recorded at entry.
const DefaultDestination = "/"

// Overlay is the overlay-visibility collaborator closed on an embedded
// success. Satisfied by *gate.Gate.
type Overlay interface {
	Close()
}

// Navigator receives the post-success destination for full-page flows.
type Navigator func(destination string)

// Controller is the auth flow state machine. All methods are safe for
// concurrent use; the Submitting phase is the sole re-entrancy guard, so a
// second submission while one is in flight is a no-op.
type Controller struct {
	provider   provider.Provider
	reconciler *profile.Reconciler
	overlay    Overlay
	navigate   Navigator
	entry      EntryContext
	logger     *zap.Logger

	mu           sync.Mutex
	phase        Phase
	mode         Mode
	resetMode    bool
	email        string
	username     string
	password     string
	showPassword bool
	errMsg       *messages.Message
	resetMsg     *messages.Message
}

// New creates a Controller. overlay and navigate may be nil when the
// corresponding exit path cannot occur.
func New(p provider.Provider, rec *profile.Reconciler, overlay Overlay, navigate Navigator, entry EntryContext, logger *zap.Logger) *Controller {
	c := &Controller{
		provider:   p,
		reconciler: rec,
		overlay:    overlay,
		navigate:   navigate,
		entry:      entry,
		logger:     logger,
	}
	if entry.ForceSignUp {
		c.mode = SignUp
	}
	return c
}

// View is a read-only snapshot of the controller's reactive fields.
type View struct {
	Mode         Mode
	ResetMode    bool
	Phase        Phase
	Loading      bool
	Email        string
	Username     string
	Password     string
	ShowPassword bool
	Error        *messages.Message
	ResetMessage *messages.Message
}

// View snapshots the current state under one lock.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Mode:         c.mode,
		ResetMode:    c.resetMode,
		Phase:        c.phase,
		Loading:      c.phase == Submitting,
		Email:        c.email,
		Username:     c.username,
		Password:     c.password,
		ShowPassword: c.showPassword,
		Error:        c.errMsg,
		ResetMessage: c.resetMsg,
	}
}

// ─── Local state transitions ─────────────────────────────────────────────────

// SetEmail sets the email form field.
func (c *Controller) SetEmail(v string) { c.mu.Lock(); c.email = v; c.mu.Unlock() }

// SetUsername sets the optional username form field (sign-up only).
func (c *Controller) SetUsername(v string) { c.mu.Lock(); c.username = v; c.mu.Unlock() }

// SetPassword sets the password form field.
func (c *Controller) SetPassword(v string) { c.mu.Lock(); c.password = v; c.mu.Unlock() }

// ToggleShowPassword flips the reveal-password flag.
func (c *Controller) ToggleShowPassword() {
	c.mu.Lock()
	c.showPassword = !c.showPassword
	c.mu.Unlock()
}

// ToggleMode switches between sign-in and sign-up. Form fields are kept.
func (c *Controller) ToggleMode() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == SignIn {
		c.mode = SignUp
	} else {
		c.mode = SignIn
	}
}

// EnterResetMode shows the reset sub-flow atop the current mode. The prior
// reset outcome is cleared so the sub-flow starts fresh.
func (c *Controller) EnterResetMode() {
	c.mu.Lock()
	c.resetMode = true
	c.resetMsg = nil
	c.mu.Unlock()
}

// ExitResetMode returns to the prior mode. Mode and form fields survive:
// the reset sub-flow is laid atop the main flow, not a fork of it.
func (c *Controller) ExitResetMode() {
	c.mu.Lock()
	c.resetMode = false
	c.mu.Unlock()
}

// ─── Submissions ─────────────────────────────────────────────────────────────

// SubmitAuth runs the sign-in or sign-up sub-flow with the current form
// fields. A no-op while a submission is already in flight.
func (c *Controller) SubmitAuth(ctx context.Context) {
	c.mu.Lock()
	if c.phase == Submitting {
		c.mu.Unlock()
		return
	}
	mode := c.mode
	email, username, password := c.email, c.username, c.password
	if msg, ok := validate(mode, email, password); !ok {
		c.errMsg = &msg
		c.mu.Unlock()
		return
	}
	c.phase = Submitting
	c.errMsg = nil
	c.mu.Unlock()

	ident, err := c.authenticate(ctx, mode, email, username, password)
	if err != nil {
		c.fail(mode.String(), err)
		return
	}
	c.succeed(ctx, mode.String(), ident, profile.MethodEmail, username)
}

// authenticate issues the provider calls for one email/password submission.
func (c *Controller) authenticate(ctx context.Context, mode Mode, email, username, password string) (*provider.Identity, error) {
	if mode == SignUp {
		ident, err := c.provider.CreateCredentials(ctx, email, password)
		if err != nil {
			return nil, err
		}
		// The display-name update is issued even for an empty username so
		// the provider record matches the form exactly.
		if err := c.provider.UpdateDisplayName(ctx, ident.ID, username); err != nil {
			return nil, err
		}
		ident.DisplayName = username
		return ident, nil
	}
	return c.provider.VerifyCredentials(ctx, email, password)
}

// SubmitHandshake runs the third-party (Google) sign-in handshake. A no-op
// while a submission is already in flight. A user-cancelled handshake
// surfaces its own non-alarming message category.
func (c *Controller) SubmitHandshake(ctx context.Context) {
	c.mu.Lock()
	if c.phase == Submitting {
		c.mu.Unlock()
		return
	}
	c.phase = Submitting
	c.errMsg = nil
	c.mu.Unlock()

	ident, err := c.provider.BeginHandshake(ctx)
	if err != nil {
		c.fail("google", err)
		return
	}
	c.succeed(ctx, "google", ident, profile.MethodGoogle, "")
}

// RequestReset asks the provider to send a reset message. Success and
// failure both land in the reset message slot, distinguished by category.
// Independent of mode; a no-op while a submission is in flight.
func (c *Controller) RequestReset(ctx context.Context, email string) {
	c.mu.Lock()
	if c.phase == Submitting {
		c.mu.Unlock()
		return
	}
	if email == "" {
		msg := messages.NormalizeCode(provider.CodeInvalidEmail)
		c.resetMsg = &msg
		c.mu.Unlock()
		return
	}
	c.phase = Submitting
	c.resetMsg = nil
	c.mu.Unlock()

	var msg messages.Message
	if err := c.provider.SendResetMessage(ctx, email); err != nil {
		msg = messages.Normalize(err)
		resetRequests.WithLabelValues("failure").Inc()
	} else {
		msg = messages.ResetConfirmation()
		resetRequests.WithLabelValues("success").Inc()
	}

	c.mu.Lock()
	c.phase = Idle
	c.resetMsg = &msg
	c.mu.Unlock()
}

// ─── Outcomes ────────────────────────────────────────────────────────────────

// fail normalizes the provider error into UI state and returns to Idle.
// Form values are retained so the user can correct and resubmit.
func (c *Controller) fail(method string, err error) {
	msg := messages.Normalize(err)
	authAttempts.WithLabelValues(method, "failure").Inc()
	if !msg.Success() && msg.Category != messages.HandshakeCancelled {
		c.logger.Info("auth submission failed",
			zap.String("method", method),
			zap.String("category", msg.Category.String()),
		)
	}

	c.mu.Lock()
	c.phase = Idle
	c.errMsg = &msg
	c.mu.Unlock()
}

// succeed reconciles the profile, then performs exactly one post-success
// action: close the overlay, or navigate. A reconciliation failure is
// logged and counted but does not undo the successful authentication.
func (c *Controller) succeed(ctx context.Context, method string, ident *provider.Identity, profileMethod, suppliedUsername string) {
	if err := c.reconciler.Ensure(ctx, ident, profileMethod, suppliedUsername); err != nil {
		c.logger.Warn("profile reconciliation failed after successful auth",
			zap.String("identity_id", ident.ID),
			zap.Error(err),
		)
		reconcileFailures.Inc()
	}
	authAttempts.WithLabelValues(method, "success").Inc()

	c.mu.Lock()
	c.phase = Succeeded
	c.mu.Unlock()

	if c.entry.EmbeddedInOverlay {
		if c.overlay != nil {
			c.overlay.Close()
		}
		return
	}
	dest := c.entry.ReturnDestination
	if dest == "" {
		dest = DefaultDestination
	}
	if c.navigate != nil {
		c.navigate(dest)
	}
}

// validate fast-fails a submission before any provider round trip. The
// provider remains the authority and may still reject on its own grounds.
func validate(mode Mode, email, password string) (messages.Message, bool) {
	if email == "" {
		return messages.NormalizeCode(provider.CodeInvalidEmail), false
	}
	if mode == SignUp && len(password) < 6 {
		return messages.NormalizeCode(provider.CodeWeakPassword), false
	}
	if password == "" {
		return messages.NormalizeCode(provider.CodeWrongPassword), false
	}
	return messages.Message{}, true
}
