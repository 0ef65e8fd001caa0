package profile_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/screenhall/screenhall/internal/profile"
	"github.com/screenhall/screenhall/internal/provider"
	"go.uber.org/zap"
)

func newReconciler(store profile.Store) *profile.Reconciler {
	return profile.NewReconciler(store, zap.NewNop())
}

func TestEnsure_createsExactlyOneRecord(t *testing.T) {
	store := profile.NewMemoryStore()
	rec := newReconciler(store)
	ident := &provider.Identity{ID: "u1", Email: "alice@example.com"}

	for i := 0; i < 3; i++ {
		if err := rec.Ensure(context.Background(), ident, profile.MethodEmail, ""); err != nil {
			t.Fatalf("Ensure #%d: %v", i+1, err)
		}
	}

	if store.Len() != 1 {
		t.Errorf("store has %d records, want 1", store.Len())
	}
}

func TestEnsure_neverOverwritesExistingProfile(t *testing.T) {
	store := profile.NewMemoryStore()
	rec := newReconciler(store)
	ident := &provider.Identity{ID: "u1", Email: "alice@example.com"}

	if err := rec.Ensure(context.Background(), ident, profile.MethodEmail, "OriginalName"); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	// A later sign-in with different inputs must leave the record alone.
	if err := rec.Ensure(context.Background(), ident, profile.MethodGoogle, "Impostor"); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}

	p, err := store.Read(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if p.Username != "OriginalName" {
		t.Errorf("username = %q, want OriginalName", p.Username)
	}
	if !strings.Contains(p.Bio, profile.MethodEmail) {
		t.Errorf("bio = %q, want mention of Email", p.Bio)
	}
}

func TestEnsure_emailSignupGeneratesUsernameWithPrefix(t *testing.T) {
	store := profile.NewMemoryStore()
	rec := newReconciler(store)
	ident := &provider.Identity{ID: "u1", Email: "a@x.com"}

	if err := rec.Ensure(context.Background(), ident, profile.MethodEmail, ""); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	p, _ := store.Read(context.Background(), "u1")
	if !strings.Contains(p.Username, "a") {
		t.Errorf("username %q does not contain email prefix %q", p.Username, "a")
	}
	if !strings.Contains(p.Bio, "Email") {
		t.Errorf("bio = %q, want mention of Email", p.Bio)
	}
	if p.CreatedAt.IsZero() {
		t.Error("created_at not stamped")
	}
}

func TestEnsure_longLocalPartTruncatedToThreeChars(t *testing.T) {
	store := profile.NewMemoryStore()
	rec := newReconciler(store)
	ident := &provider.Identity{ID: "u1", Email: "bartholomew@example.com"}

	if err := rec.Ensure(context.Background(), ident, profile.MethodEmail, ""); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	p, _ := store.Read(context.Background(), "u1")
	if !strings.HasSuffix(p.Username, "bar") {
		t.Errorf("username %q should end with 3-char prefix %q", p.Username, "bar")
	}
}

func TestEnsure_googleIdentityUsesDisplayName(t *testing.T) {
	store := profile.NewMemoryStore()
	rec := newReconciler(store)
	ident := &provider.Identity{
		ID:          "g1",
		Email:       "carol@gmail.com",
		DisplayName: "Carol Danvers",
		AvatarURL:   "https://lh3.example/photo.jpg",
	}

	if err := rec.Ensure(context.Background(), ident, profile.MethodGoogle, ""); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	p, _ := store.Read(context.Background(), "g1")
	if p.Username != "Carol Danvers" {
		t.Errorf("username = %q, want provider display name", p.Username)
	}
	if p.Avatar != "https://lh3.example/photo.jpg" {
		t.Errorf("avatar = %q, want provider avatar kept", p.Avatar)
	}
	if !strings.Contains(p.Bio, "Google") {
		t.Errorf("bio = %q, want mention of Google", p.Bio)
	}
}

func TestEnsure_googleIdentityWithoutNameFallsBackToLocalPart(t *testing.T) {
	store := profile.NewMemoryStore()
	rec := newReconciler(store)
	ident := &provider.Identity{ID: "g2", Email: "dave@gmail.com"}

	if err := rec.Ensure(context.Background(), ident, profile.MethodGoogle, ""); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	p, _ := store.Read(context.Background(), "g2")
	if p.Username != "dave" {
		t.Errorf("username = %q, want email local part", p.Username)
	}
}

func TestEnsure_synthesizesPlaceholderAvatar(t *testing.T) {
	store := profile.NewMemoryStore()
	rec := newReconciler(store)
	ident := &provider.Identity{ID: "u1", Email: "erin@example.com"}

	if err := rec.Ensure(context.Background(), ident, profile.MethodEmail, ""); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	p, _ := store.Read(context.Background(), "u1")
	if !strings.HasPrefix(p.Avatar, "https://via.placeholder.com/100/") {
		t.Errorf("avatar = %q, want placeholder URL", p.Avatar)
	}
	if !strings.HasSuffix(p.Avatar, "text=E") {
		t.Errorf("avatar = %q, want initials from email", p.Avatar)
	}
}

func TestEnsure_whitespaceNamesFallBackToEmailInitial(t *testing.T) {
	store := profile.NewMemoryStore()
	rec := newReconciler(store)

	// A handshake identity can carry a whitespace-only display name, and a
	// sign-up form a whitespace-only username. Neither yields an initial,
	// so the avatar degrades to the email's first letter.
	cases := []struct {
		id       string
		ident    *provider.Identity
		username string
	}{
		{"w1", &provider.Identity{ID: "w1", Email: "walt@example.com", DisplayName: " "}, ""},
		{"w2", &provider.Identity{ID: "w2", Email: "wanda@example.com"}, "  "},
	}
	for _, tc := range cases {
		if err := rec.Ensure(context.Background(), tc.ident, profile.MethodGoogle, tc.username); err != nil {
			t.Fatalf("Ensure %s: %v", tc.id, err)
		}
		p, _ := store.Read(context.Background(), tc.id)
		if !strings.HasSuffix(p.Avatar, "text=W") {
			t.Errorf("avatar = %q, want initial from email", p.Avatar)
		}
	}
}

type failingStore struct {
	readErr  error
	writeErr error
}

func (s *failingStore) Read(context.Context, string) (*profile.Profile, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return nil, profile.ErrNotFound
}

func (s *failingStore) Write(context.Context, string, *profile.Profile) error {
	return s.writeErr
}

func TestEnsure_propagatesStoreErrors(t *testing.T) {
	ident := &provider.Identity{ID: "u1", Email: "a@x.com"}

	readFail := errors.New("store down")
	rec := newReconciler(&failingStore{readErr: readFail})
	if err := rec.Ensure(context.Background(), ident, profile.MethodEmail, ""); !errors.Is(err, readFail) {
		t.Errorf("read failure not propagated: %v", err)
	}

	writeFail := errors.New("disk full")
	rec = newReconciler(&failingStore{writeErr: writeFail})
	if err := rec.Ensure(context.Background(), ident, profile.MethodEmail, ""); !errors.Is(err, writeFail) {
		t.Errorf("write failure not propagated: %v", err)
	}
}
