package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/screenhall/screenhall/internal/provider"
	"github.com/screenhall/screenhall/internal/provider/directory"
	"github.com/screenhall/screenhall/internal/session"
)

// HandshakeBroker runs a third-party sign-in handshake on the local machine
// and reports the verified external identity.
type HandshakeBroker interface {
	Handshake(ctx context.Context) (*directory.ExternalIdentity, error)
}

// Client is the Screenhall SDK entry point. It implements the identity
// provider contract over HTTP and maintains a local auth state stream.
type Client struct {
	base       string
	httpClient *http.Client
	broker     HandshakeBroker
	stream     *session.Broadcaster
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithHandshakeBroker enables third-party sign-in. Without a broker,
// BeginHandshake fails with a cancelled error.
func WithHandshakeBroker(b HandshakeBroker) Option {
	return func(c *Client) error {
		c.broker = b
		return nil
	}
}

// New creates a new SDK Client connected to base.
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithHandshakeBroker(broker),
//	)
func New(base string, opts ...Option) (*Client, error) {
	c := &Client{
		base:       base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		stream:     session.NewBroadcaster(),
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	// No persisted sessions: every client starts signed out, and the
	// stream resolves immediately.
	c.stream.Publish(nil)
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// AuthStream exposes the client's local auth state stream.
func (c *Client) AuthStream() provider.AuthStream {
	return c.stream
}

// VerifyCredentials checks an email/password pair against the service and,
// on success, publishes the signed-in identity.
func (c *Client) VerifyCredentials(ctx context.Context, email, password string) (*provider.Identity, error) {
	ident, err := c.postIdentity(ctx, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	c.stream.Publish(ident)
	return ident, nil
}

// CreateCredentials registers a new account and publishes the identity.
func (c *Client) CreateCredentials(ctx context.Context, email, password string) (*provider.Identity, error) {
	ident, err := c.postIdentity(ctx, "/api/v1/auth/signup", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	c.stream.Publish(ident)
	return ident, nil
}

// UpdateDisplayName sets the display name on an existing account.
func (c *Client) UpdateDisplayName(ctx context.Context, id, name string) error {
	_, err := c.post(ctx, "/api/v1/auth/display-name", map[string]string{
		"id":           id,
		"display_name": name,
	})
	return err
}

// BeginHandshake runs the local third-party handshake, registers the
// resulting identity with the service, and publishes it.
func (c *Client) BeginHandshake(ctx context.Context) (*provider.Identity, error) {
	if c.broker == nil {
		return nil, &provider.Error{
			Code:      provider.CodePopupClosed,
			Cancelled: true,
			Err:       fmt.Errorf("no handshake broker configured"),
		}
	}

	ext, err := c.broker.Handshake(ctx)
	if err != nil {
		return nil, err
	}

	ident, err := c.postIdentity(ctx, "/api/v1/auth/handshake", ext)
	if err != nil {
		return nil, err
	}
	c.stream.Publish(ident)
	return ident, nil
}

// SendResetMessage asks the service to mail a password-reset link.
func (c *Client) SendResetMessage(ctx context.Context, email string) error {
	_, err := c.post(ctx, "/api/v1/auth/reset", map[string]string{"email": email})
	return err
}

// CompleteReset redeems a reset token for a new password.
func (c *Client) CompleteReset(ctx context.Context, token, newPassword string) error {
	_, err := c.post(ctx, "/api/v1/auth/reset/complete", map[string]string{
		"token":    token,
		"password": newPassword,
	})
	return err
}

// SignOut clears the local auth state.
func (c *Client) SignOut(_ context.Context) error {
	c.stream.Publish(nil)
	return nil
}

// ─── HTTP plumbing ───────────────────────────────────────────────────────────

type identityEnvelope struct {
	Identity *provider.Identity `json:"identity"`
}

type errorEnvelope struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (c *Client) postIdentity(ctx context.Context, path string, payload any) (*provider.Identity, error) {
	body, err := c.post(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	var env identityEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, provider.NewError(provider.CodeNetworkFailed, fmt.Errorf("decode %s response: %w", path, err))
	}
	if env.Identity == nil {
		return nil, provider.NewError(provider.CodeNetworkFailed, fmt.Errorf("%s: response carried no identity", path))
	}
	return env.Identity, nil
}

// post sends a JSON payload and returns the response body. Transport
// failures surface as network errors; non-2xx responses are decoded into
// provider errors carrying the service's code.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.NewError(provider.CodeNetworkFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, provider.NewError(provider.CodeNetworkFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeError(status int, body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Code != "" {
		return provider.NewError(env.Code, fmt.Errorf("service returned %d: %s", status, env.Error))
	}
	return provider.NewError("", fmt.Errorf("service returned %d: %s", status, body))
}
