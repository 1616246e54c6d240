// Package config loads the evtop configuration: process-level settings and
// the view definitions the engine turns into tables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for evtop.
type Config struct {
	Server ServerConfig
	Engine EngineConfig
	Log    LogConfig
	MQTT   MQTTConfig
	Views  []ViewConfig
}

type ServerConfig struct {
	Enabled      bool
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
}

type EngineConfig struct {
	// RefreshIntervalMS is the table flush cadence in milliseconds.
	RefreshIntervalMS int
	// Output is the presenter: none, raw or json.
	Output string
	// UseDefaults substitutes type defaults for missed extractions.
	UseDefaults bool
	// QueueSize is the event queue capacity between source and engine.
	QueueSize int
	// JSONFirstRow/JSONLastRow bound the JSON presenter's row window.
	JSONFirstRow int
	JSONLastRow  int
}

type LogConfig struct {
	Level  string
	Format string
}

type MQTTConfig struct {
	Enabled  bool
	Broker   string
	Topic    string
	ClientID string
	QoS      int
	Username string
	Password string
}

// ViewConfig is one table definition.
type ViewConfig struct {
	Name string `mapstructure:"name"`
	// Mode is "table" or "list".
	Mode string `mapstructure:"mode"`
	// Filter is the event filter expression, compiled at configure time.
	Filter string `mapstructure:"filter"`
	// SortCol is the initial 1-based sorting column (0 = none).
	SortCol int `mapstructure:"sort_col"`
	// ViewDepth resolves %depth tokens in field names.
	ViewDepth int            `mapstructure:"view_depth"`
	Columns   []ColumnConfig `mapstructure:"columns"`
}

// ColumnConfig is one view column.
type ColumnConfig struct {
	Field string `mapstructure:"field"`
	Name  string `mapstructure:"name"`
	// Aggregation and GroupByAggregation name the fold operators
	// (NONE, SUM, AVG, TIME_AVG, MIN, MAX).
	Aggregation        string `mapstructure:"aggregation"`
	GroupByAggregation string `mapstructure:"groupby_aggregation"`
	IsKey              bool   `mapstructure:"is_key"`
	IsGroupByKey       bool   `mapstructure:"is_groupby_key"`
}

// Load reads evtop.toml plus EVTOP_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("EVTOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("evtop")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/evtop/")
	v.AddConfigPath("$HOME/.evtop/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{
		Server: ServerConfig{
			Enabled:      v.GetBool("server.enabled"),
			Host:         v.GetString("server.host"),
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetInt("server.read_timeout"),
			WriteTimeout: v.GetInt("server.write_timeout"),
		},
		Engine: EngineConfig{
			RefreshIntervalMS: v.GetInt("engine.refresh_interval_ms"),
			Output:            v.GetString("engine.output"),
			UseDefaults:       v.GetBool("engine.use_defaults"),
			QueueSize:         v.GetInt("engine.queue_size"),
			JSONFirstRow:      v.GetInt("engine.json_first_row"),
			JSONLastRow:       v.GetInt("engine.json_last_row"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		MQTT: MQTTConfig{
			Enabled:  v.GetBool("mqtt.enabled"),
			Broker:   v.GetString("mqtt.broker"),
			Topic:    v.GetString("mqtt.topic"),
			ClientID: v.GetString("mqtt.client_id"),
			QoS:      v.GetInt("mqtt.qos"),
			Username: v.GetString("mqtt.username"),
			Password: v.GetString("mqtt.password"),
		},
	}

	if err := v.UnmarshalKey("views", &cfg.Views); err != nil {
		return nil, fmt.Errorf("invalid views configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the cross-field constraints Load cannot express.
func (c *Config) Validate() error {
	if c.Engine.RefreshIntervalMS <= 0 {
		return fmt.Errorf("engine.refresh_interval_ms must be positive, got %d", c.Engine.RefreshIntervalMS)
	}

	for i, view := range c.Views {
		if view.Name == "" {
			return fmt.Errorf("views[%d]: missing name", i)
		}
		if len(view.Columns) == 0 {
			return fmt.Errorf("view %q: no columns", view.Name)
		}
		for j, col := range view.Columns {
			if col.Field == "" {
				return fmt.Errorf("view %q: column %d has no field", view.Name, j)
			}
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8172)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("engine.refresh_interval_ms", 1000)
	v.SetDefault("engine.output", "none")
	v.SetDefault("engine.use_defaults", false)
	v.SetDefault("engine.queue_size", 8192)
	v.SetDefault("engine.json_first_row", 0)
	v.SetDefault("engine.json_last_row", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "evtop/events")
	v.SetDefault("mqtt.client_id", "evtop")
	v.SetDefault("mqtt.qos", 1)
}
