// Command screenhall is the command-line client for a Screenhall service:
// sign in, sign up, third-party sign-in, and password resets, with the
// same flow semantics the web surface uses.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/screenhall/screenhall/internal/flow"
	"github.com/screenhall/screenhall/internal/gate"
	"github.com/screenhall/screenhall/internal/profile"
	"github.com/screenhall/screenhall/internal/provider/google"
	"github.com/screenhall/screenhall/internal/session"
	"github.com/screenhall/screenhall/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serviceURL string
	cfgFile    string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "screenhall",
	Short: "Screenhall CLI",
	Long: `screenhall is the command-line client for a Screenhall service.

It signs you in or up, runs the Google sign-in handshake, and requests
password resets against the service configured with --service.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.screenhall")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serviceURL == "" {
			serviceURL = viper.GetString("service_url")
		}
		if serviceURL == "" {
			serviceURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.screenhall/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service", "", "Screenhall service URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log flow internals")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(googleCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger() *zap.Logger {
	if verbose {
		l, _ := zap.NewDevelopment()
		return l
	}
	return zap.NewNop()
}

// stack bundles the wired client-side pieces one command invocation uses.
type stack struct {
	client  *client.Client
	session *session.Session
	flow    *flow.Controller
}

func newStack(logger *zap.Logger, entry flow.EntryContext, opts ...client.Option) (*stack, error) {
	c, err := client.New(serviceURL, opts...)
	if err != nil {
		return nil, err
	}

	sess := session.Attach(c.AuthStream(), logger)
	rec := profile.NewReconciler(c.Profiles(), logger)
	overlay := gate.New(sess)

	navigate := func(destination string) {
		if verbose {
			fmt.Printf("(would navigate to %s)\n", destination)
		}
	}

	ctrl := flow.New(c, rec, overlay, navigate, entry, logger)
	return &stack{client: c, session: sess, flow: ctrl}, nil
}

// report prints the flow outcome and returns an error for failed attempts
// so the command exits non-zero.
func (s *stack) report() error {
	v := s.flow.View()
	if v.Error != nil {
		return fmt.Errorf("%s", v.Error.Text)
	}

	ident, _ := s.session.Current()
	if ident == nil {
		return fmt.Errorf("sign-in did not complete")
	}

	fmt.Printf("Signed in as %s", ident.Email)
	if ident.DisplayName != "" {
		fmt.Printf(" (%s)", ident.DisplayName)
	}
	fmt.Println()

	p, err := s.client.Profiles().Read(context.Background(), ident.ID)
	if err == nil {
		fmt.Printf("Username: %s\nBio:      %s\n", p.Username, p.Bio)
	}
	return nil
}

// prompt reads one line from stdin after printing a label.
func prompt(label string) string {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// ── login ────────────────────────────────────────────────────────────────────

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		email := loginEmail
		if email == "" {
			email = prompt("Email: ")
		}
		password := loginPassword
		if password == "" {
			password = prompt("Password: ")
		}

		s, err := newStack(logger, flow.EntryContext{})
		if err != nil {
			return err
		}
		s.flow.SetEmail(email)
		s.flow.SetPassword(password)
		s.flow.SubmitAuth(cmd.Context())
		return s.report()
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (prompted when empty)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when empty)")
}

// ── signup ───────────────────────────────────────────────────────────────────

var (
	signupEmail    string
	signupUsername string
	signupPassword string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		email := signupEmail
		if email == "" {
			email = prompt("Email: ")
		}
		password := signupPassword
		if password == "" {
			password = prompt("Password (6+ characters): ")
		}

		s, err := newStack(logger, flow.EntryContext{ForceSignUp: true})
		if err != nil {
			return err
		}
		s.flow.SetEmail(email)
		s.flow.SetUsername(signupUsername)
		s.flow.SetPassword(password)
		s.flow.SubmitAuth(cmd.Context())
		return s.report()
	},
}

func init() {
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "Account email (prompted when empty)")
	signupCmd.Flags().StringVar(&signupUsername, "username", "", "Display name (generated when empty)")
	signupCmd.Flags().StringVar(&signupPassword, "password", "", "Account password (prompted when empty)")
}

// ── google ───────────────────────────────────────────────────────────────────

var googleCmd = &cobra.Command{
	Use:   "google",
	Short: "Sign in with Google",
	Long: `Sign in with Google via a browser handshake.

A local listener receives the redirect; configure the OAuth client with
oauth.google.client_id and oauth.google.client_secret (config file or
environment).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		clientID := viper.GetString("oauth.google.client_id")
		clientSecret := viper.GetString("oauth.google.client_secret")
		if clientID == "" || clientSecret == "" {
			return fmt.Errorf("oauth.google.client_id and oauth.google.client_secret must be configured")
		}
		broker, err := google.New(clientID, clientSecret, logger)
		if err != nil {
			return err
		}

		s, err := newStack(logger, flow.EntryContext{}, client.WithHandshakeBroker(broker))
		if err != nil {
			return err
		}
		fmt.Println("Opening browser for Google sign-in...")
		s.flow.SubmitHandshake(cmd.Context())
		return s.report()
	},
}

// ── reset ────────────────────────────────────────────────────────────────────

var resetEmail string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Request a password reset link",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		email := resetEmail
		if email == "" {
			email = prompt("Email: ")
		}

		s, err := newStack(logger, flow.EntryContext{})
		if err != nil {
			return err
		}
		s.flow.EnterResetMode()
		s.flow.RequestReset(cmd.Context(), email)

		v := s.flow.View()
		if v.ResetMessage == nil {
			return fmt.Errorf("reset request did not complete")
		}
		if !v.ResetMessage.Success() {
			return fmt.Errorf("%s", v.ResetMessage.Text)
		}
		fmt.Println(v.ResetMessage.Text)
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetEmail, "email", "", "Account email (prompted when empty)")
}

// ── like ─────────────────────────────────────────────────────────────────────

var likeCmd = &cobra.Command{
	Use:   "like <movie-id>",
	Short: "Like a movie (requires signing in first)",
	Long: `Like a movie. Without a signed-in session the action is withheld
and the sign-in gate opens instead, exactly as the web surface does:

  screenhall like tt0111161`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		c, err := client.New(serviceURL)
		if err != nil {
			return err
		}
		sess := session.Attach(c.AuthStream(), logger)
		g := gate.New(sess)

		g.Guard(func() {
			fmt.Printf("Added %s to your likes.\n", args[0])
		})
		if g.IsOpen() {
			fmt.Println("Sign in to like movies: run `screenhall login` first.")
		}
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("screenhall", version)
	},
}
