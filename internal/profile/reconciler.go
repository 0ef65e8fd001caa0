package profile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/screenhall/screenhall/internal/provider"
	"go.uber.org/zap"
)

// Reconciler ensures exactly one profile record exists per identity,
// synthesizing defaults the first time only. It runs on every sign-in, so
// the existence check is the idempotence authority: an existing record is
// never touched.
//
// The read-then-write pair is a check-then-act race when the same identity
// signs in from two contexts at once. That race is accepted: it happens at
// most around a once-per-identity write, and the stores drop the losing
// duplicate insert.
type Reconciler struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewReconciler creates a Reconciler over the given store.
func NewReconciler(store Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger, now: time.Now}
}

// Ensure creates the profile record for ident if none exists. method names
// how the identity was obtained (MethodEmail or MethodGoogle) and appears
// in the synthesized bio. suppliedUsername, when non-empty, takes priority
// over every derived username.
func (r *Reconciler) Ensure(ctx context.Context, ident *provider.Identity, method, suppliedUsername string) error {
	_, err := r.store.Read(ctx, ident.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("reconcile profile %s: %w", ident.ID, err)
	}

	p := &Profile{
		Email:     ident.Email,
		Username:  defaultUsername(ident, method, suppliedUsername),
		Avatar:    defaultAvatar(ident, suppliedUsername),
		Bio:       fmt.Sprintf("New explorer via %s. Ready to dive into the cinematic world!", method),
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.Write(ctx, ident.ID, p); err != nil {
		return fmt.Errorf("reconcile profile %s: %w", ident.ID, err)
	}

	r.logger.Info("profile created",
		zap.String("identity_id", ident.ID),
		zap.String("username", p.Username),
		zap.String("method", method),
	)
	return nil
}

// defaultUsername picks the profile username: the supplied value first, then
// the provider display name, then the email local part for handshake
// identities, then a generated name for email signups.
func defaultUsername(ident *provider.Identity, method, supplied string) string {
	if supplied != "" {
		return supplied
	}
	if ident.DisplayName != "" {
		return ident.DisplayName
	}
	if method == MethodGoogle {
		if local := localPart(ident.Email); local != "" {
			return local
		}
	}
	return generateUsername(ident.Email)
}

var (
	usernameAdjectives = []string{"Creative", "Bold", "Swift", "Curious", "Epic"}
	usernameNouns      = []string{"Explorer", "Creator", "Voyager", "Dreamer", "Star"}
)

// generateUsername builds an adjective+noun+email-prefix name. The prefix
// keeps short common emails from colliding constantly.
func generateUsername(email string) string {
	adj := usernameAdjectives[rand.IntN(len(usernameAdjectives))]
	noun := usernameNouns[rand.IntN(len(usernameNouns))]

	prefix := alphanumeric(localPart(email))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return adj + noun + prefix
}

// defaultAvatar keeps the provider's avatar when present, otherwise builds
// an initials placeholder on a random hue.
func defaultAvatar(ident *provider.Identity, suppliedUsername string) string {
	if ident.AvatarURL != "" {
		return ident.AvatarURL
	}

	name := ident.DisplayName
	if name == "" {
		name = suppliedUsername
	}
	initials := initialsOf(name, ident.Email)
	hue := rand.IntN(360)
	return fmt.Sprintf("https://via.placeholder.com/100/%s/fff?text=%s", hueToHex(hue), initials)
}

// initialsOf returns up to two uppercase initials from name, falling back
// to the first character of email.
func initialsOf(name, email string) string {
	parts := strings.Fields(name)
	if len(parts) > 1 {
		return strings.ToUpper(firstRune(parts[0]) + firstRune(parts[1]))
	}
	if len(parts) == 1 {
		return strings.ToUpper(firstRune(parts[0]))
	}
	if email != "" {
		return strings.ToUpper(firstRune(email))
	}
	return "?"
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

func alphanumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hueToHex renders HSL(hue, 70%, 60%) as an RGB hex string for the
// placeholder service.
func hueToHex(hue int) string {
	const s, l = 0.70, 0.60
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(float64(hue)/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case hue < 60:
		r, g, b = c, x, 0
	case hue < 120:
		r, g, b = x, c, 0
	case hue < 180:
		r, g, b = 0, c, x
	case hue < 240:
		r, g, b = 0, x, c
	case hue < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return fmt.Sprintf("%02x%02x%02x",
		int(math.Round((r+m)*255)),
		int(math.Round((g+m)*255)),
		int(math.Round((b+m)*255)),
	)
}
