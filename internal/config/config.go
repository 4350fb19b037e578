// internal/config/config.go
//
// Command-line and environment configuration.
// Every flag can also be set through GAMEDLE_<FLAG> (dashes become
// underscores); a .env file is loaded by main before the command is built.
// The mode registry can be replaced with a YAML/JSON/TOML file (--modes-file).

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/robalobadob/gamedle/internal/game"
)

const envPrefix = "GAMEDLE"

// Config holds every runtime setting.
type Config struct {
	Bind string
	Port int

	LogLevel  string
	LogPretty bool

	Store        string // memory | redis
	RedisURL     string
	RedisPrefix  string
	SessionTTL   time.Duration
	ReapInterval time.Duration

	Catalog string // sqlite | static
	DBPath  string

	Stats       string // sqlite | mongo | none
	StatsBuffer int
	MongoURI    string
	MongoDB     string

	DailySalt      string
	JWTSecret      string
	CookieName     string
	ClientOrigin   string
	RequestTimeout time.Duration

	ModesFile string
	Modes     []game.Mode // resolved by Load; DefaultModes when no file is given
}

// Addr returns host:port for the listener.
func (c *Config) Addr() string { return fmt.Sprintf("%s:%d", c.Bind, c.Port) }

// Validate checks option combinations.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.Store {
	case "memory":
		if c.ReapInterval <= 0 {
			return errors.New("--reap-interval must be positive with --store=memory")
		}
	case "redis":
		if c.RedisURL == "" {
			return errors.New("--redis-url is required with --store=redis")
		}
	default:
		return fmt.Errorf("unknown store %q (memory|redis)", c.Store)
	}
	switch c.Catalog {
	case "static":
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("--db is required with --catalog=sqlite")
		}
	default:
		return fmt.Errorf("unknown catalog %q (sqlite|static)", c.Catalog)
	}
	switch c.Stats {
	case "none":
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("--db is required with --stats=sqlite")
		}
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("--mongo-uri is required with --stats=mongo")
		}
	default:
		return fmt.Errorf("unknown stats sink %q (sqlite|mongo|none)", c.Stats)
	}
	if c.SessionTTL <= 0 {
		return errors.New("--session-ttl must be positive")
	}
	if c.ClientOrigin == "*" {
		return errors.New("--client-origin cannot be * with credentialed CORS")
	}
	return nil
}

// Load resolves derived settings (the mode registry) and validates.
func (c *Config) Load() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ModesFile == "" {
		c.Modes = game.DefaultModes()
		return nil
	}
	modes, err := LoadModes(c.ModesFile)
	if err != nil {
		return err
	}
	c.Modes = modes
	return nil
}

// LoadModes reads a "modes" list from a config file.
func LoadModes(path string) ([]game.Mode, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var modes []game.Mode
	if err := v.UnmarshalKey("modes", &modes); err != nil {
		return nil, fmt.Errorf("parse modes in %s: %w", path, err)
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("%s: no modes defined", path)
	}
	for _, m := range modes {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return modes, nil
}

// NewCommand builds the root command. run is called with the loaded config.
// Subcommands may be added by the caller.
func NewCommand(cfg *Config, version string, run func(cmd *cobra.Command, cfg *Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "gamedle",
		Short:   "Guess-the-game server: cover, daily, hi-lo and timeline rounds over HTTP and websockets.",
		Args:    cobra.ExactArgs(0),
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: GAMEDLE_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 5175, "port to listen on (env: GAMEDLE_PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "zerolog level: trace|debug|info|warn|error (env: GAMEDLE_LOG_LEVEL)")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", false, "human-readable console logs (env: GAMEDLE_LOG_PRETTY)")

	fs.StringVar(&cfg.Store, "store", "memory", "session store: memory|redis (env: GAMEDLE_STORE)")
	fs.StringVar(&cfg.RedisURL, "redis-url", "", "redis URL, e.g. redis://localhost:6379/0 (env: GAMEDLE_REDIS_URL)")
	fs.StringVar(&cfg.RedisPrefix, "redis-prefix", "session", "redis key prefix (env: GAMEDLE_REDIS_PREFIX)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", time.Hour, "lifetime of an idle round (env: GAMEDLE_SESSION_TTL)")
	fs.DurationVar(&cfg.ReapInterval, "reap-interval", time.Minute, "memory store sweep interval (env: GAMEDLE_REAP_INTERVAL)")

	fs.StringVar(&cfg.Catalog, "catalog", "sqlite", "games catalog: sqlite|static (env: GAMEDLE_CATALOG)")
	fs.StringVar(&cfg.DBPath, "db", "./data/gamedle.db", "sqlite database path (env: GAMEDLE_DB)")

	fs.StringVar(&cfg.Stats, "stats", "sqlite", "play statistics sink: sqlite|mongo|none (env: GAMEDLE_STATS)")
	fs.IntVar(&cfg.StatsBuffer, "stats-buffer", 256, "queued stats records before dropping (env: GAMEDLE_STATS_BUFFER)")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", "", "mongodb URI for --stats=mongo (env: GAMEDLE_MONGO_URI)")
	fs.StringVar(&cfg.MongoDB, "mongo-db", "gamedle", "mongodb database name (env: GAMEDLE_MONGO_DB)")

	fs.StringVar(&cfg.DailySalt, "daily-salt", "local_dev_salt", "HMAC salt for the game of the day (env: GAMEDLE_DAILY_SALT)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "HS256 secret for player tokens; empty disables auth (env: GAMEDLE_JWT_SECRET)")
	fs.StringVar(&cfg.CookieName, "cookie-name", "gamedle_token", "auth cookie name (env: GAMEDLE_COOKIE_NAME)")
	fs.StringVar(&cfg.ClientOrigin, "client-origin", "http://localhost:5173", "allowed CORS/websocket origin (env: GAMEDLE_CLIENT_ORIGIN)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", 10*time.Second, "HTTP handler timeout (env: GAMEDLE_REQUEST_TIMEOUT)")

	fs.StringVar(&cfg.ModesFile, "modes-file", "", "YAML/JSON/TOML file with a modes list (env: GAMEDLE_MODES_FILE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("gamedle v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
