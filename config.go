package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind            string
	graceWindow     time.Duration
	leaderboardFile string
	port            int
	prefix          string
	profile         bool
	redis           string
	tickInterval    time.Duration
	tlsCert         string
	tlsKey          string
	verbose         bool
	version         bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.graceWindow <= 0 {
		return fmt.Errorf("invalid grace window (must be positive): %s", c.graceWindow)
	}
	if c.tickInterval <= 0 {
		return fmt.Errorf("invalid tick interval (must be positive): %s", c.tickInterval)
	}
	if c.redis == "" && c.leaderboardFile == "" {
		return errors.New("either --redis or --leaderboard-file must be set")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("XOARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "xoarena",
		Short:         "A realtime multiplayer XO arena with matchmaking, spectating, and a persistent leaderboard.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: XOARENA_BIND)")
	fs.DurationVar(&cfg.graceWindow, "grace-window", 30*time.Second, "time a disconnected player's room is kept alive awaiting rejoin (env: XOARENA_GRACE_WINDOW)")
	fs.StringVar(&cfg.leaderboardFile, "leaderboard-file", "leaderboard.json", "path to the JSON leaderboard file, used when --redis is unset (env: XOARENA_LEADERBOARD_FILE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: XOARENA_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: XOARENA_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: XOARENA_PROFILE)")
	fs.StringVar(&cfg.redis, "redis", "", "redis address for the leaderboard store (env: XOARENA_REDIS)")
	fs.DurationVar(&cfg.tickInterval, "tick-interval", time.Second, "how often expired disconnect deadlines are checked (env: XOARENA_TICK_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: XOARENA_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: XOARENA_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: XOARENA_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: XOARENA_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("xoarena v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
