// Package google runs the Google sign-in handshake for native Screenhall
// surfaces: a loopback redirect listener, the browser hand-off, the code
// exchange, and the userinfo fetch. The caller gets back an
// ExternalIdentity or a provider.Error; abandoning the browser window maps
// to the cancelled popup code.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/screenhall/screenhall/internal/provider"
	"github.com/screenhall/screenhall/internal/provider/directory"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Broker implements directory.HandshakeBroker for Google.
type Broker struct {
	cfg         oauth2.Config
	states      *stateSigner
	openBrowser func(url string) error
	httpClient  *http.Client
	logger      *zap.Logger
}

// New creates a Broker with the given OAuth client credentials.
func New(clientID, clientSecret string, logger *zap.Logger) (*Broker, error) {
	signer, err := newStateSigner()
	if err != nil {
		return nil, fmt.Errorf("init state signer: %w", err)
	}
	return &Broker{
		cfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     googleoauth.Endpoint,
		},
		states:      signer,
		openBrowser: openBrowser,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}, nil
}

type callbackResult struct {
	code string
	err  error
}

// Handshake runs the full browser handshake. It blocks until the redirect
// lands on the loopback listener, the user denies the request, or ctx is
// cancelled; the latter two surface as a cancelled provider.Error.
func (b *Broker) Handshake(ctx context.Context) (*directory.ExternalIdentity, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, provider.NewError(provider.CodeNetworkFailed, err)
	}
	defer ln.Close()

	cfg := b.cfg
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())

	state, err := b.states.issue()
	if err != nil {
		return nil, fmt.Errorf("issue handshake state: %w", err)
	}

	results := make(chan callbackResult, 1)
	srv := &http.Server{Handler: b.callbackHandler(state, results)}
	go srv.Serve(ln) //nolint:errcheck
	defer srv.Close()

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
	if err := b.openBrowser(url); err != nil {
		b.logger.Warn("could not open browser; visit the URL manually",
			zap.String("url", url),
			zap.Error(err),
		)
	}

	var code string
	select {
	case <-ctx.Done():
		return nil, &provider.Error{Code: provider.CodePopupClosed, Cancelled: true, Err: ctx.Err()}
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		code = res.code
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, provider.NewError(provider.CodeNetworkFailed, err)
	}

	return b.fetchUserInfo(ctx, tok.AccessToken)
}

// callbackHandler validates the redirect and forwards exactly one result.
func (b *Broker) callbackHandler(wantState string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if errCode := q.Get("error"); errCode != "" {
			msg := "Sign-in was cancelled. You can close this window."
			var err error = &provider.Error{
				Code:      provider.CodePopupClosed,
				Cancelled: true,
				Err:       fmt.Errorf("provider returned %s", errCode),
			}
			if errCode != "access_denied" {
				msg = "Sign-in failed. You can close this window."
				err = provider.NewError(provider.CodeNetworkFailed, fmt.Errorf("provider returned %s", errCode))
			}
			fmt.Fprintln(w, msg)
			select {
			case results <- callbackResult{err: err}:
			default:
			}
			return
		}

		if err := b.states.verify(q.Get("state")); err != nil || q.Get("state") != wantState {
			http.Error(w, "invalid handshake state", http.StatusBadRequest)
			select {
			case results <- callbackResult{err: fmt.Errorf("invalid handshake state")}:
			default:
			}
			return
		}

		fmt.Fprintln(w, "Signed in. You can close this window and return to Screenhall.")
		select {
		case results <- callbackResult{code: q.Get("code")}:
		default:
		}
	})
}

// fetchUserInfo calls the Google userinfo API.
func (b *Broker) fetchUserInfo(ctx context.Context, accessToken string) (*directory.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, provider.NewError(provider.CodeNetworkFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, provider.NewError(provider.CodeNetworkFailed, err)
	}
	if resp.StatusCode >= 400 {
		return nil, provider.NewError(provider.CodeNetworkFailed, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, body))
	}

	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse userinfo: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, errors.New("userinfo missing id or email")
	}

	return &directory.ExternalIdentity{
		Provider:    "google",
		SubjectID:   info.ID,
		Email:       info.Email,
		DisplayName: info.Name,
		AvatarURL:   info.Picture,
	}, nil
}

// openBrowser launches the platform browser at url.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
