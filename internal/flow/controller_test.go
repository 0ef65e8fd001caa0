package flow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/screenhall/screenhall/internal/flow"
	"github.com/screenhall/screenhall/internal/messages"
	"github.com/screenhall/screenhall/internal/profile"
	"github.com/screenhall/screenhall/internal/provider"
	"github.com/screenhall/screenhall/internal/session"
	"go.uber.org/zap"
)

// ── Stub provider ─────────────────────────────────────────────────────────

type stubProvider struct {
	mu sync.Mutex

	verifyCalls    int
	createCalls    int
	displayCalls   int
	handshakeCalls int
	resetCalls     int

	lastEmail       string
	lastPassword    string
	lastDisplayName string
	lastResetEmail  string

	verifyErr    error
	createErr    error
	handshakeErr error
	resetErr     error

	identity *provider.Identity

	// When set, VerifyCredentials blocks until the channel is closed.
	verifyGate chan struct{}

	stream *session.Broadcaster
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		identity: &provider.Identity{ID: "u1", Email: "a@x.com"},
		stream:   session.NewBroadcaster(),
	}
}

func (p *stubProvider) VerifyCredentials(_ context.Context, email, password string) (*provider.Identity, error) {
	p.mu.Lock()
	p.verifyCalls++
	p.lastEmail, p.lastPassword = email, password
	gate := p.verifyGate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	cp := *p.identity
	return &cp, nil
}

func (p *stubProvider) CreateCredentials(_ context.Context, email, password string) (*provider.Identity, error) {
	p.mu.Lock()
	p.createCalls++
	p.lastEmail, p.lastPassword = email, password
	p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	cp := *p.identity
	cp.Email = email
	return &cp, nil
}

func (p *stubProvider) UpdateDisplayName(_ context.Context, _, name string) error {
	p.mu.Lock()
	p.displayCalls++
	p.lastDisplayName = name
	p.mu.Unlock()
	return nil
}

func (p *stubProvider) BeginHandshake(context.Context) (*provider.Identity, error) {
	p.mu.Lock()
	p.handshakeCalls++
	p.mu.Unlock()
	if p.handshakeErr != nil {
		return nil, p.handshakeErr
	}
	cp := *p.identity
	return &cp, nil
}

func (p *stubProvider) SendResetMessage(_ context.Context, email string) error {
	p.mu.Lock()
	p.resetCalls++
	p.lastResetEmail = email
	p.mu.Unlock()
	return p.resetErr
}

func (p *stubProvider) SignOut(context.Context) error {
	p.stream.Publish(nil)
	return nil
}

func (p *stubProvider) AuthStream() provider.AuthStream { return p.stream }

// ── Helpers ───────────────────────────────────────────────────────────────

type recordingOverlay struct {
	mu     sync.Mutex
	closed int
}

func (o *recordingOverlay) Close() {
	o.mu.Lock()
	o.closed++
	o.mu.Unlock()
}

func newController(p provider.Provider, store profile.Store, entry flow.EntryContext) (*flow.Controller, *recordingOverlay, *[]string) {
	overlay := &recordingOverlay{}
	var visited []string
	rec := profile.NewReconciler(store, zap.NewNop())
	c := flow.New(p, rec, overlay, func(dest string) { visited = append(visited, dest) }, entry, zap.NewNop())
	return c, overlay, &visited
}

// ── Tests ─────────────────────────────────────────────────────────────────

func TestSubmitAuth_signUpIssuesCreateThenDisplayNameThenProfile(t *testing.T) {
	p := newStubProvider()
	store := profile.NewMemoryStore()
	c, _, visited := newController(p, store, flow.EntryContext{ForceSignUp: true})

	c.SetEmail("a@x.com")
	c.SetPassword("secret1")
	c.SubmitAuth(context.Background())

	if p.createCalls != 1 || p.lastEmail != "a@x.com" || p.lastPassword != "secret1" {
		t.Errorf("create called %d times with (%q, %q)", p.createCalls, p.lastEmail, p.lastPassword)
	}
	if p.displayCalls != 1 || p.lastDisplayName != "" {
		t.Errorf("display-name update: calls=%d name=%q, want one call with empty name", p.displayCalls, p.lastDisplayName)
	}

	created, err := store.Read(context.Background(), "u1")
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if !strings.Contains(created.Username, "a") {
		t.Errorf("generated username %q missing email prefix", created.Username)
	}
	if !strings.Contains(created.Bio, "Email") {
		t.Errorf("bio = %q, want mention of Email", created.Bio)
	}
	if len(*visited) != 1 || (*visited)[0] != flow.DefaultDestination {
		t.Errorf("navigation = %v, want default destination", *visited)
	}
	if got := c.View().Phase; got != flow.Succeeded {
		t.Errorf("phase = %v, want Succeeded", got)
	}
}

func TestSubmitAuth_wrongPasswordReturnsToIdleWithMappedMessage(t *testing.T) {
	p := newStubProvider()
	p.verifyErr = provider.NewError(provider.CodeWrongPassword, errors.New("mismatch"))
	c, _, _ := newController(p, profile.NewMemoryStore(), flow.EntryContext{})

	c.SetEmail("a@x.com")
	c.SetPassword("nope123")
	c.SubmitAuth(context.Background())

	v := c.View()
	if v.Phase != flow.Idle {
		t.Errorf("phase = %v, want Idle", v.Phase)
	}
	if v.Error == nil || v.Error.Category != messages.WrongPassword {
		t.Fatalf("error = %+v, want WrongPassword", v.Error)
	}
	if v.Error.Text != "Incorrect password. Try again." {
		t.Errorf("error text = %q", v.Error.Text)
	}
	// Form values survive a failure.
	if v.Email != "a@x.com" || v.Password != "nope123" {
		t.Errorf("form fields cleared: email=%q password=%q", v.Email, v.Password)
	}
}

func TestSubmitAuth_reentrancyGuard(t *testing.T) {
	p := newStubProvider()
	p.verifyGate = make(chan struct{})
	c, _, _ := newController(p, profile.NewMemoryStore(), flow.EntryContext{})

	c.SetEmail("a@x.com")
	c.SetPassword("secret1")

	done := make(chan struct{})
	go func() {
		c.SubmitAuth(context.Background())
		close(done)
	}()

	// Wait until the first submission is in flight.
	deadline := time.After(time.Second)
	for c.View().Phase != flow.Submitting {
		select {
		case <-deadline:
			t.Fatal("first submission never entered Submitting")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	c.SubmitAuth(context.Background()) // must be a no-op

	close(p.verifyGate)
	<-done

	if p.verifyCalls != 1 {
		t.Errorf("provider called %d times, want 1", p.verifyCalls)
	}
}

func TestSubmitAuth_validationSkipsProviderRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		mode     flow.EntryContext
		email    string
		password string
		want     messages.Category
	}{
		{"empty email", flow.EntryContext{}, "", "secret1", messages.InvalidEmail},
		{"empty password sign-in", flow.EntryContext{}, "a@x.com", "", messages.WrongPassword},
		{"short password sign-up", flow.EntryContext{ForceSignUp: true}, "a@x.com", "short", messages.WeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newStubProvider()
			c, _, _ := newController(p, profile.NewMemoryStore(), tc.mode)
			c.SetEmail(tc.email)
			c.SetPassword(tc.password)

			c.SubmitAuth(context.Background())

			if p.verifyCalls+p.createCalls != 0 {
				t.Error("provider was called despite validation failure")
			}
			v := c.View()
			if v.Error == nil || v.Error.Category != tc.want {
				t.Errorf("error = %+v, want category %v", v.Error, tc.want)
			}
		})
	}
}

func TestSubmitHandshake_successReconcilesWithGoogleMethod(t *testing.T) {
	p := newStubProvider()
	p.identity = &provider.Identity{ID: "g1", Email: "carol@gmail.com", DisplayName: "Carol"}
	store := profile.NewMemoryStore()
	c, overlay, _ := newController(p, store, flow.EntryContext{EmbeddedInOverlay: true})

	c.SubmitHandshake(context.Background())

	created, err := store.Read(context.Background(), "g1")
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if !strings.Contains(created.Bio, "Google") {
		t.Errorf("bio = %q, want mention of Google", created.Bio)
	}
	if created.Username != "Carol" {
		t.Errorf("username = %q, want provider display name", created.Username)
	}
	if overlay.closed != 1 {
		t.Errorf("overlay closed %d times, want 1", overlay.closed)
	}
}

func TestSubmitHandshake_cancelledIsSoftFailure(t *testing.T) {
	p := newStubProvider()
	p.handshakeErr = &provider.Error{Code: provider.CodePopupClosed, Cancelled: true}
	c, overlay, _ := newController(p, profile.NewMemoryStore(), flow.EntryContext{EmbeddedInOverlay: true})

	c.SubmitHandshake(context.Background())

	v := c.View()
	if v.Phase != flow.Idle {
		t.Errorf("phase = %v, want Idle", v.Phase)
	}
	if v.Error == nil || v.Error.Category != messages.HandshakeCancelled {
		t.Errorf("error = %+v, want HandshakeCancelled", v.Error)
	}
	if overlay.closed != 0 {
		t.Error("overlay closed on a cancelled handshake")
	}
}

func TestSucceed_overlayClosesInsteadOfNavigating(t *testing.T) {
	p := newStubProvider()
	c, overlay, visited := newController(p, profile.NewMemoryStore(), flow.EntryContext{EmbeddedInOverlay: true})

	c.SetEmail("a@x.com")
	c.SetPassword("secret1")
	c.SubmitAuth(context.Background())

	if overlay.closed != 1 {
		t.Errorf("overlay closed %d times, want 1", overlay.closed)
	}
	if len(*visited) != 0 {
		t.Errorf("navigated to %v inside an overlay", *visited)
	}
}

func TestSucceed_navigatesToRecordedDestination(t *testing.T) {
	p := newStubProvider()
	c, _, visited := newController(p, profile.NewMemoryStore(), flow.EntryContext{ReturnDestination: "/movies/42"})

	c.SetEmail("a@x.com")
	c.SetPassword("secret1")
	c.SubmitAuth(context.Background())

	if len(*visited) != 1 || (*visited)[0] != "/movies/42" {
		t.Errorf("navigation = %v, want /movies/42", *visited)
	}
}

func TestSucceed_reconcileFailureDoesNotUndoLogin(t *testing.T) {
	p := newStubProvider()
	broken := &writeFailStore{}
	c, overlay, _ := newController(p, broken, flow.EntryContext{EmbeddedInOverlay: true})

	c.SetEmail("a@x.com")
	c.SetPassword("secret1")
	c.SubmitAuth(context.Background())

	v := c.View()
	if v.Phase != flow.Succeeded {
		t.Errorf("phase = %v, want Succeeded despite reconcile failure", v.Phase)
	}
	if v.Error != nil {
		t.Errorf("error = %+v, want none", v.Error)
	}
	if overlay.closed != 1 {
		t.Error("overlay not closed")
	}
}

type writeFailStore struct{}

func (writeFailStore) Read(context.Context, string) (*profile.Profile, error) {
	return nil, profile.ErrNotFound
}

func (writeFailStore) Write(context.Context, string, *profile.Profile) error {
	return errors.New("store down")
}

func TestRequestReset_outcomesDifferByCategory(t *testing.T) {
	p := newStubProvider()
	c, _, _ := newController(p, profile.NewMemoryStore(), flow.EntryContext{})

	c.RequestReset(context.Background(), "b@x.com")
	v := c.View()
	if v.ResetMessage == nil || v.ResetMessage.Category != messages.ResetSent {
		t.Fatalf("reset message = %+v, want ResetSent", v.ResetMessage)
	}
	if !v.ResetMessage.Success() {
		t.Error("success outcome not marked Success")
	}
	if p.lastResetEmail != "b@x.com" {
		t.Errorf("reset requested for %q", p.lastResetEmail)
	}

	p.resetErr = provider.NewError(provider.CodeUserNotFound, errors.New("no row"))
	c.RequestReset(context.Background(), "ghost@x.com")
	v = c.View()
	if v.ResetMessage == nil || v.ResetMessage.Category != messages.NoAccount {
		t.Fatalf("reset message = %+v, want NoAccount", v.ResetMessage)
	}
	if v.ResetMessage.Success() {
		t.Error("failure outcome marked Success")
	}
}

func TestResetMode_togglePreservesModeAndFields(t *testing.T) {
	p := newStubProvider()
	c, _, _ := newController(p, profile.NewMemoryStore(), flow.EntryContext{ForceSignUp: true})

	c.SetEmail("a@x.com")
	c.SetUsername("Cinephile")
	c.SetPassword("secret1")

	c.EnterResetMode()
	if v := c.View(); !v.ResetMode || v.Mode != flow.SignUp {
		t.Errorf("after enter: resetMode=%v mode=%v", v.ResetMode, v.Mode)
	}

	c.ExitResetMode()
	v := c.View()
	if v.ResetMode {
		t.Error("still in reset mode after exit")
	}
	if v.Mode != flow.SignUp {
		t.Errorf("mode = %v, want SignUp restored", v.Mode)
	}
	if v.Email != "a@x.com" || v.Username != "Cinephile" || v.Password != "secret1" {
		t.Errorf("form fields cleared: %+v", v)
	}
}

func TestToggleMode_flipsBetweenSignInAndSignUp(t *testing.T) {
	p := newStubProvider()
	c, _, _ := newController(p, profile.NewMemoryStore(), flow.EntryContext{})

	if v := c.View(); v.Mode != flow.SignIn {
		t.Fatalf("initial mode = %v, want SignIn", v.Mode)
	}
	c.ToggleMode()
	if v := c.View(); v.Mode != flow.SignUp {
		t.Errorf("mode = %v, want SignUp", v.Mode)
	}
	c.ToggleMode()
	if v := c.View(); v.Mode != flow.SignIn {
		t.Errorf("mode = %v, want SignIn", v.Mode)
	}
}
