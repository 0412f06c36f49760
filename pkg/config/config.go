package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/soundprediction/go-graphrank/pkg/types"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Graph schema the analyses read from and write to
	Schema SchemaConfig `mapstructure:"schema"`

	// Server configuration, only used by the server command
	Server ServerConfig `mapstructure:"server"`

	// History configuration; an empty path disables run history
	History HistoryConfig `mapstructure:"history"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// DatabaseConfig holds the property-graph store connection parameters
type DatabaseConfig struct {
	URI      string `mapstructure:"uri" validate:"required"`
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Database string `mapstructure:"database"`
}

// SchemaConfig names the node label, key property and relationship kinds.
// Cypher cannot parameterize these, so each must be a plain identifier.
type SchemaConfig struct {
	Label             string   `mapstructure:"label" validate:"required,cypherident"`
	KeyProperty       string   `mapstructure:"key_property" validate:"required,cypherident"`
	RelationshipKinds []string `mapstructure:"relationship_kinds" validate:"required,min=1,dive,cypherident"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"` // gin mode
}

// HistoryConfig holds the optional DuckDB run history location
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// Environment variables read for the store connection. NEO4J_PASSWORD is
// accepted as an alias of NEO4J_PASS.
const (
	EnvURI          = "NEO4J_URI"
	EnvUser         = "NEO4J_USER"
	EnvPass         = "NEO4J_PASS"
	EnvPassword     = "NEO4J_PASSWORD"
	EnvDatabase     = "NEO4J_DATABASE"
	EnvHistoryPath  = "GRAPHRANK_HISTORY_PATH"
	defaultEnvFile  = ".env"
	defaultDatabase = "neo4j"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an optional YAML/JSON/TOML file.
	ConfigFile string
	// EnvFile is an optional dotenv file; defaults to ".env" in the working
	// directory. A missing file is not an error.
	EnvFile string
	// LogLevel, when set, overrides log.level.
	LogLevel string
}

// Load builds a Config from defaults, the optional config file, the optional
// dotenv file and the process environment, in increasing precedence, and
// validates it. Every failure wraps types.ErrConfiguration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: unable to read config file: %w", types.ErrConfiguration, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("%w: unable to decode config: %w", types.ErrConfiguration, err)
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = defaultEnvFile
	}
	dotenv, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}

	overrideWithEnv(config, func(key string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return dotenv[key]
	})
	if opts.LogLevel != "" {
		config.Log.Level = strings.ToLower(opts.LogLevel)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// setDefaults sets default configuration values. Connection credentials have
// no defaults: their absence must surface as a configuration error.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("database.database", defaultDatabase)

	v.SetDefault("schema.label", "Person")
	v.SetDefault("schema.key_property", "name")
	v.SetDefault("schema.relationship_kinds", []string{"FRIENDS_WITH", "PARTICIPATES_IN"})

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
}

// readEnvFile loads KEY=VALUE pairs from a dotenv file.
func readEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: unable to stat env file: %w", types.ErrConfiguration, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: unable to read env file: %w", types.ErrConfiguration, err)
	}

	// viper lower-cases keys
	values := make(map[string]string)
	for _, key := range v.AllKeys() {
		values[strings.ToUpper(key)] = v.GetString(key)
	}
	return values, nil
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config, lookup func(string) string) {
	if uri := lookup(EnvURI); uri != "" {
		config.Database.URI = uri
	}
	if user := lookup(EnvUser); user != "" {
		config.Database.Username = user
	}
	if pass := lookup(EnvPass); pass != "" {
		config.Database.Password = pass
	} else if pass := lookup(EnvPassword); pass != "" {
		config.Database.Password = pass
	}
	if database := lookup(EnvDatabase); database != "" {
		config.Database.Database = database
	}
	if path := lookup(EnvHistoryPath); path != "" {
		config.History.Path = path
	}
}

// Validate checks the configuration and reports every invalid field in a
// single error wrapping types.ErrConfiguration.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if !errors.As(err, &invalid) {
			return fmt.Errorf("%w: %w", types.ErrConfiguration, err)
		}

		fields := make([]string, 0, len(invalid))
		for _, fe := range invalid {
			fields = append(fields, describe(fe))
		}
		return fmt.Errorf("%w: %s", types.ErrConfiguration, strings.Join(fields, "; "))
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("cypherident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	})
	return v
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		if hint, ok := envHints[field]; ok {
			return fmt.Sprintf("%s is required (set %s)", field, hint)
		}
		return field + " is required"
	case "cypherident":
		return fmt.Sprintf("%s %q is not a valid identifier", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

var envHints = map[string]string{
	"Database.URI":      EnvURI,
	"Database.Username": EnvUser,
	"Database.Password": EnvPass,
}
