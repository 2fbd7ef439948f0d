package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// TranscriberConfig drives the transcription pipeline: which recognizer
// backend runs, which language the user selected, and how results are
// post-processed.
type TranscriberConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Mode              string   `yaml:"mode"` // mock, exec
	Command           string   `yaml:"command"`
	ModelPath         string   `yaml:"model_path"`
	Language          string   `yaml:"language"`
	Locales           []string `yaml:"locales"`
	FormattingEnabled *bool    `yaml:"formatting_enabled"`
	FormatMode        string   `yaml:"format_mode"` // basic, exec
	FormatCommand     string   `yaml:"format_command"`
	Authorization     string   `yaml:"authorization"` // granted, denied, restricted, undetermined
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRecords    int    `yaml:"max_records"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	History     HistoryConfig     `yaml:"history"`
}

func Default() Config {
	return Config{
		RuntimeName: "scribe-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Transcriber: TranscriberConfig{
			Enabled:        true,
			Mode:           "mock",
			Language:       "en",
			FormatMode:     "basic",
			Authorization:  "granted",
			TimeoutSeconds: 120,
		},
		History: HistoryConfig{
			Path:          "./data/scribe-history.db",
			RetentionDays: 30,
			MaxRecords:    10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FormattingOn reports the formatting flag, defaulting to true when the
// config never set it.
func (c TranscriberConfig) FormattingOn() bool {
	if c.FormattingEnabled == nil {
		return true
	}
	return *c.FormattingEnabled
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "SCRIBE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "SCRIBE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SCRIBE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SCRIBE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SCRIBE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SCRIBE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SCRIBE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SCRIBE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "SCRIBE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SCRIBE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "SCRIBE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SCRIBE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SCRIBE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SCRIBE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SCRIBE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SCRIBE_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.Transcriber.Enabled, "SCRIBE_TRANSCRIBER_ENABLED")
	overrideString(&cfg.Transcriber.Mode, "SCRIBE_TRANSCRIBER_MODE")
	overrideString(&cfg.Transcriber.Command, "SCRIBE_TRANSCRIBER_COMMAND")
	overrideString(&cfg.Transcriber.ModelPath, "SCRIBE_TRANSCRIBER_MODEL_PATH")
	overrideString(&cfg.Transcriber.Language, "SCRIBE_TRANSCRIBER_LANGUAGE")
	overrideStringSlice(&cfg.Transcriber.Locales, "SCRIBE_TRANSCRIBER_LOCALES")
	overrideBoolPtr(&cfg.Transcriber.FormattingEnabled, "SCRIBE_TRANSCRIBER_FORMATTING_ENABLED")
	overrideString(&cfg.Transcriber.FormatMode, "SCRIBE_TRANSCRIBER_FORMAT_MODE")
	overrideString(&cfg.Transcriber.FormatCommand, "SCRIBE_TRANSCRIBER_FORMAT_COMMAND")
	overrideString(&cfg.Transcriber.Authorization, "SCRIBE_TRANSCRIBER_AUTHORIZATION")
	overrideInt(&cfg.Transcriber.TimeoutSeconds, "SCRIBE_TRANSCRIBER_TIMEOUT_SECONDS")
	overrideString(&cfg.History.Path, "SCRIBE_HISTORY_PATH")
	overrideInt(&cfg.History.RetentionDays, "SCRIBE_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxRecords, "SCRIBE_HISTORY_MAX_RECORDS")
	overrideBool(&cfg.History.VacuumOnStart, "SCRIBE_HISTORY_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBoolPtr(target **bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = &parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Transcriber.Enabled {
		switch cfg.Transcriber.Mode {
		case "mock", "exec":
		default:
			return errors.New("transcriber.mode must be one of mock|exec")
		}
		if cfg.Transcriber.Mode == "exec" && cfg.Transcriber.Command == "" {
			return errors.New("transcriber.command must be set when mode=exec")
		}
		switch cfg.Transcriber.FormatMode {
		case "basic", "exec":
		default:
			return errors.New("transcriber.format_mode must be one of basic|exec")
		}
		if cfg.Transcriber.FormatMode == "exec" && cfg.Transcriber.FormatCommand == "" {
			return errors.New("transcriber.format_command must be set when format_mode=exec")
		}
		switch cfg.Transcriber.Authorization {
		case "granted", "denied", "restricted", "undetermined":
		default:
			return errors.New("transcriber.authorization must be one of granted|denied|restricted|undetermined")
		}
		if cfg.Transcriber.TimeoutSeconds <= 0 {
			return errors.New("transcriber.timeout_seconds must be positive")
		}
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.History.MaxRecords < 0 {
		return errors.New("history.max_records must be >= 0")
	}
	return nil
}
