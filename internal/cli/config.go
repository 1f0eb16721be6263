package cli

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-odm/mongodb"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable read by the CLI, e.g.
// ODMQ_DRIVER or ODMQ_MONGODB_URI.
const EnvPrefix = "ODMQ"

// Supported values of Config.Driver.
const (
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

// SQLiteConfig holds the settings of the embedded store.
type SQLiteConfig struct {
	DSN    string `mapstructure:"dsn"`
	Prefix string `mapstructure:"prefix"`
}

// Config is the CLI configuration, merged from defaults, an optional config
// file, ODMQ_* environment variables and command-line flags, in increasing
// order of precedence.
type Config struct {
	Driver              string         `mapstructure:"driver"`
	Schema              string         `mapstructure:"schema"`
	Collection          string         `mapstructure:"collection"`
	LogLevel            string         `mapstructure:"log_level"`
	OverwriteDuplicates bool           `mapstructure:"overwrite_duplicates"`
	SQLite              SQLiteConfig   `mapstructure:"sqlite"`
	MongoDB             mongodb.Config `mapstructure:"mongodb"`
}

// flagKeys maps persistent flag names onto configuration keys.
var flagKeys = map[string]string{
	"driver":     "driver",
	"schema":     "schema",
	"collection": "collection",
	"log-level":  "log_level",
	"dsn":        "sqlite.dsn",
	"mongo-uri":  "mongodb.uri",
	"database":   "mongodb.database",
}

func setDefaults(v *viper.Viper) {
	mongo := mongodb.DefaultConfig()
	v.SetDefault("driver", DriverSQLite)
	v.SetDefault("schema", "")
	v.SetDefault("collection", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("overwrite_duplicates", false)
	v.SetDefault("sqlite.dsn", "odm.db")
	v.SetDefault("sqlite.prefix", "")
	v.SetDefault("mongodb.uri", mongo.URI)
	v.SetDefault("mongodb.database", mongo.Database)
	v.SetDefault("mongodb.connect_timeout", mongo.ConnectTimeout)
}

// LoadConfig builds the configuration. path names an optional config file;
// flags, when non-nil, override every other source for the flags that were
// set explicitly.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the driver selection and the settings it needs.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.SQLite.DSN == "" {
			return fmt.Errorf("sqlite.dsn is required for the %s driver", DriverSQLite)
		}
	case DriverMongoDB:
		if err := c.MongoDB.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid driver %q: must be %s or %s", c.Driver, DriverSQLite, DriverMongoDB)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// NewLogger builds a console logger writing to stderr at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	return zc.Build()
}
