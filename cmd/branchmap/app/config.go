package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/branchmap/pkg/constants"
)

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "BRANCHMAP"

// APIConfig holds the inspection API settings.
type APIConfig struct {
	URL           string
	Token         string
	Auth          string
	PageSize      int
	RatePerSecond float64
}

// StoreConfig selects the outcome store.
type StoreConfig struct {
	Driver string // sqlite3, pgx or empty
	DSN    string
}

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Reference data and sources
	CatalogPath  string
	Spreadsheets []string
	Sheet        string
	API          APIConfig

	// Resolution
	MaxDistanceKm float64
	StopWords     []string
	HintFromLabel bool
	Timezone      string

	// Reporting period: explicit days win over a year
	PeriodYear  int
	PeriodStart string
	PeriodEnd   string

	Store StoreConfig

	// LogLevel is set only by the --log-level flag; EnvLogLevel comes from
	// LOG_LEVEL or the config file and ranks below -v/-q.
	LogLevel    string
	EnvLogLevel string
	LogFormat   string
	LogOutput   string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (applied later by UpdateFromFlags)
// 2. BRANCHMAP_* environment variables
// 3. .env files
// 4. Config file (configFile, or .branchmap.yaml in $HOME or the working directory)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Unprefixed names kept for parity with other tools.
	_ = v.BindEnv("log_level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("log_format", EnvPrefix+"_LOG_FORMAT", "LOG_FORMAT")
	_ = v.BindEnv("log_output", EnvPrefix+"_LOG_OUTPUT", "LOG_OUTPUT")

	if configFile == "" {
		configFile = v.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".branchmap")
		// Missing default config files are fine.
		_ = v.ReadInConfig()
	}

	return &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no-color") || os.Getenv("NO_COLOR") != "",
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		CatalogPath:  v.GetString("catalog"),
		Spreadsheets: v.GetStringSlice("spreadsheets"),
		Sheet:        v.GetString("sheet"),
		API: APIConfig{
			URL:           v.GetString("api.url"),
			Token:         v.GetString("api.token"),
			Auth:          v.GetString("api.auth"),
			PageSize:      v.GetInt("api.page_size"),
			RatePerSecond: v.GetFloat64("api.rate_per_second"),
		},

		MaxDistanceKm: v.GetFloat64("max_distance_km"),
		StopWords:     v.GetStringSlice("stop_words"),
		HintFromLabel: v.GetBool("hint_from_label"),
		Timezone:      v.GetString("timezone"),

		PeriodYear:  v.GetInt("period.year"),
		PeriodStart: v.GetString("period.start"),
		PeriodEnd:   v.GetString("period.end"),

		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
			DSN:    v.GetString("store.dsn"),
		},

		EnvLogLevel: v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
		LogOutput:   v.GetString("log_output"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog", "branches.yaml")
	v.SetDefault("max_distance_km", constants.DefaultMaxDistanceKm)
	v.SetDefault("api.page_size", constants.DefaultPageSize)
	v.SetDefault("api.rate_per_second", constants.DefaultRatePerSecond)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = c.Verbose || verbose
	c.Quiet = c.Quiet || quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// godotenv never overrides variables that are already set, so .env.local
// only fills what .env left out.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
