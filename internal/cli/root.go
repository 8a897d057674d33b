// Package cli implements capsulectl, a terminal client for the time capsule
// service.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"

	"timecapsule/pkg/apperr"
	"timecapsule/pkg/client"
)

// Option customizes the command tree, mostly for tests.
type Option func(*app)

// WithDial routes every request through d.
func WithDial(d fasthttp.DialFunc) Option {
	return func(a *app) { a.dial = d }
}

// WithLookup replaces os.LookupEnv.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(a *app) { a.lookup = fn }
}

// WithInput replaces stdin for confirmation prompts.
func WithInput(r io.Reader) Option {
	return func(a *app) { a.in = r }
}

type app struct {
	cfgPath string
	cfg     *Config
	client  *client.Client

	dial   fasthttp.DialFunc
	lookup func(string) (string, bool)
	in     io.Reader

	// flag overrides
	baseURL   string
	apiKey    string
	userID    string
	signature string
	timeout   time.Duration
}

// Execute runs capsulectl against os.Args.
func Execute(version, commit string) {
	root := NewRootCmd(version, commit)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apperr.UserMessage(err))
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd(version, commit string, opts ...Option) *cobra.Command {
	a := &app{lookup: os.LookupEnv, in: os.Stdin}
	for _, o := range opts {
		o(a)
	}

	root := &cobra.Command{
		Use:   "capsulectl",
		Short: "Create, list and watch time capsules",
		Long: `capsulectl talks to a time capsule server. Capsules and entries with a
lock date stay sealed until that moment; watch shows the live countdown.`,
		Version:           fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "config file path (default is $HOME/.capsulectl.yaml)")
	pf.StringVar(&a.baseURL, "base-url", "", "server URL")
	pf.StringVar(&a.apiKey, "api-key", "", "API key")
	pf.StringVar(&a.userID, "user", "", "user email")
	pf.StringVar(&a.signature, "signature", "", "signature issued for the user")
	pf.DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		a.signCmd(),
		a.registerCmd(),
		a.createCmd(),
		a.entryCmd(),
		a.uploadCmd(),
		a.listCmd(),
		a.showCmd(),
		a.watchCmd(),
	)
	return root
}

// load layers the profile: file < .env and environment < flags.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load(".env")

	path := a.cfgPath
	if path == "" {
		path = DefaultConfigPath()
		a.cfgPath = path
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(a.lookup)

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if flags.Changed("api-key") {
		cfg.APIKey = a.apiKey
	}
	if flags.Changed("user") {
		cfg.UserID = a.userID
	}
	if flags.Changed("signature") {
		cfg.Signature = a.signature
	}
	a.cfg = cfg

	copts := []client.Option{client.WithTimeout(a.timeout)}
	if a.dial != nil {
		copts = append(copts, client.WithDial(a.dial))
	}
	a.client = client.New(copts...)
	return nil
}
