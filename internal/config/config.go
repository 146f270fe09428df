package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
)

// DefaultPath — config.yaml в рабочем каталоге.
const DefaultPath = "config.yaml"

type Config struct {
	Port            string         `yaml:"port" env:"RAPID_PORT" env-default:"8080"`
	Env             string         `yaml:"env" env:"RAPID_ENV" env-default:"local"`
	DSLDir          string         `yaml:"dsl_dir" env:"RAPID_DSL_DIR" env-default:"dsl"`
	DictionariesDir string         `yaml:"dictionaries_dir" env:"RAPID_DICTIONARIES_DIR" env-default:"reference/dictionaries"`
	AutoSync        bool           `yaml:"auto_sync" env:"RAPID_AUTO_SYNC" env-default:"true"`
	Database        DatabaseConfig `yaml:"database"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url" env:"RAPID_DB_URL"`
	DefaultSchema   string        `yaml:"default_schema" env:"RAPID_DB_DEFAULT_SCHEMA" env-default:"public"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"RAPID_DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"RAPID_DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"RAPID_DB_CONN_MAX_LIFETIME" env-default:"30m"`
}

// Load читает YAML (если файл есть), потом ENV, потом флаги из args.
// Путь к файлу: -config, иначе RAPID_CONFIG, иначе config.yaml.
func Load(args []string) (*Config, error) {
	flags := flag.NewFlagSet("rapidmeta", flag.ContinueOnError)
	path := flags.String("config", "", "Path to config YAML")
	port := flags.String("port", "", "HTTP port")
	dsl := flags.String("dsl", "", "Path to DSL directory")
	dicts := flags.String("dictionaries", "", "Path to option dictionaries")
	db := flags.String("db", "", "Postgres URL")
	autoSync := flags.String("auto-sync", "", "Synchronize schema on boot (true/false)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfgPath := strings.TrimSpace(*path)
	if cfgPath == "" {
		cfgPath = os.Getenv("RAPID_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = DefaultPath
	}

	cfg, err := read(cfgPath)
	if err != nil {
		return nil, err
	}

	// Flags overrides
	if v := strings.TrimSpace(*port); v != "" {
		cfg.Port = v
	}
	if v := strings.TrimSpace(*dsl); v != "" {
		cfg.DSLDir = v
	}
	if v := strings.TrimSpace(*dicts); v != "" {
		cfg.DictionariesDir = v
	}
	if v := strings.TrimSpace(*db); v != "" {
		cfg.Database.URL = v
	}
	if v := strings.TrimSpace(*autoSync); v != "" {
		cfg.AutoSync = parseBool(v)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		// без файла: только ENV и значения по умолчанию
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return cfg, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database url is required (RAPID_DB_URL or -db)")
	}
	if strings.TrimSpace(c.Database.DefaultSchema) == "" {
		c.Database.DefaultSchema = "public"
	}
	return nil
}

// RedactedDatabaseURL — URL базы без пароля, для логов.
func (c *Config) RedactedDatabaseURL() string {
	u, err := url.Parse(c.Database.URL)
	if err != nil {
		return "[unparsable]"
	}
	return u.Redacted()
}

// NewLogger: production JSON вне local/dev, иначе цветной development.
func (c *Config) NewLogger() (*zap.Logger, error) {
	switch c.Env {
	case "local", "dev", "development", "":
		cfg := zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		return cfg.Build()
	default:
		return zap.NewProduction()
	}
}
