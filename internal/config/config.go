// Package config loads application configuration from file and environment
// and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/corine-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Generalize GeneralizeConfig `yaml:"generalize" mapstructure:"generalize"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run bookkeeping backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// EngineConfig selects and tunes the geometry engine.
type EngineConfig struct {
	// Driver is "planar", "postgis" or "auto". Auto probes the configured
	// database for PostGIS and falls back to the planar engine.
	Driver      string  `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string  `yaml:"database_url" mapstructure:"database_url"`
	SRID        int     `yaml:"srid" mapstructure:"srid"`
	SnapGrid    float64 `yaml:"snap_grid" mapstructure:"snap_grid"`
}

// GeneralizeConfig holds the defaults of the generalization loop. Command
// line flags override the threshold parameters per invocation.
type GeneralizeConfig struct {
	FromValue         int     `yaml:"from_value" mapstructure:"from_value"`
	ToValue           int     `yaml:"to_value" mapstructure:"to_value"`
	ByValue           int     `yaml:"by_value" mapstructure:"by_value"`
	NeighborMode      string  `yaml:"neighbor_mode" mapstructure:"neighbor_mode"`
	MMU               float64 `yaml:"mmu" mapstructure:"mmu"`
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	ChangeCodeField   string  `yaml:"change_code_field" mapstructure:"change_code_field"`
	RevisionCodeField string  `yaml:"revision_code_field" mapstructure:"revision_code_field"`
	PriorityCodeField string  `yaml:"priority_code_field" mapstructure:"priority_code_field"`
	PriorityPriField  string  `yaml:"priority_pri_field" mapstructure:"priority_pri_field"`
	MemoryCheck       bool    `yaml:"memory_check" mapstructure:"memory_check"`
	KeepIntermediates bool    `yaml:"keep_intermediates" mapstructure:"keep_intermediates"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CORINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "corine.db")
	v.SetDefault("engine.driver", "auto")
	v.SetDefault("engine.database_url", "")
	v.SetDefault("engine.srid", 3035)
	v.SetDefault("engine.snap_grid", 0.01)
	v.SetDefault("generalize.from_value", 3)
	v.SetDefault("generalize.to_value", 23)
	v.SetDefault("generalize.by_value", 5)
	v.SetDefault("generalize.neighbor_mode", "touches")
	v.SetDefault("generalize.mmu", 25.0)
	v.SetDefault("generalize.change_code_field", "CHCODE")
	v.SetDefault("generalize.revision_code_field", "REVCODE")
	v.SetDefault("generalize.priority_code_field", "CODE")
	v.SetDefault("generalize.priority_pri_field", "PRI")
	v.SetDefault("generalize.workers", 0)
	v.SetDefault("generalize.memory_check", true)
	v.SetDefault("generalize.keep_intermediates", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects configurations the run could not start with. Threshold
// sequence validation happens in the iteration controller, which also sees
// flag overrides.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: postgres store requires store.database_url")
	}

	switch c.Engine.Driver {
	case "planar", "postgis", "auto":
	default:
		return eris.Errorf("config: unknown engine driver %q", c.Engine.Driver)
	}
	if c.Engine.Driver == "postgis" && c.Engine.DatabaseURL == "" && c.Store.DatabaseURL == "" {
		return eris.New("config: postgis engine requires engine.database_url")
	}

	if _, err := model.ParseNeighborMode(c.Generalize.NeighborMode); err != nil {
		return err
	}
	if c.Generalize.MMU <= 0 {
		return eris.Errorf("config: mmu must be positive, got %v", c.Generalize.MMU)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
