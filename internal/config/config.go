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
	LogLevel         string  `yaml:"log_level"`
	OTLPEndpoint     string  `yaml:"otlp_endpoint"`
	OTLPInsecure     bool    `yaml:"otlp_insecure"`
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
	PrometheusBind   string  `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Device      DeviceConfig      `yaml:"device"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Suppressor  SuppressorConfig  `yaml:"suppressor"`
	VAD         VADConfig         `yaml:"vad"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Scorer      ScorerConfig      `yaml:"scorer"`
	Escalation  EscalationConfig  `yaml:"escalation"`
	Retention   RetentionConfig   `yaml:"retention"`
	Alerts      AlertsConfig      `yaml:"alerts"`
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

type DeviceConfig struct {
	ID                string `yaml:"id"`
	Role              string `yaml:"role"`
	HeartbeatInterval int    `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int    `yaml:"heartbeat_timeout_ms"`
}

type PipelineConfig struct {
	DeadlineMarginMS int    `yaml:"deadline_margin_ms"`
	QueueDepth       int    `yaml:"queue_depth"`
	SessionDefault   string `yaml:"session_default"`
}

type SuppressorConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Mode        string `yaml:"mode"` // passthrough, exec
	Command     string `yaml:"command"`
	MinBudgetMS int    `yaml:"min_budget_ms"`
}

type VADConfig struct {
	Enabled          bool    `yaml:"enabled"`
	FrameMS          int     `yaml:"frame_ms"`
	SpeechThreshold  float64 `yaml:"speech_threshold"`
	SilenceThreshold float64 `yaml:"silence_threshold"`
	SpeechFrames     int     `yaml:"speech_frames"`
	SilenceFrames    int     `yaml:"silence_frames"`
}

type TranscriberConfig struct {
	Mode            string `yaml:"mode"` // mock, exec
	FastCommand     string `yaml:"fast_command"`
	AccurateCommand string `yaml:"accurate_command"`
	ModelPath       string `yaml:"model_path"`
	Language        string `yaml:"language"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	FastCutoverMS   int    `yaml:"fast_cutover_ms"`
}

type KeywordTier struct {
	Tier  string   `yaml:"tier"`
	Terms []string `yaml:"terms"`
}

type ScorerConfig struct {
	KeywordTiers        []KeywordTier `yaml:"keyword_tiers"`
	ClassifierEnabled   bool          `yaml:"classifier_enabled"`
	ClassifierMode      string        `yaml:"classifier_mode"` // mock, exec, http
	ClassifierCommand   string        `yaml:"classifier_command"`
	ClassifierEndpoint  string        `yaml:"classifier_endpoint"`
	ClassifierThreshold float64       `yaml:"classifier_threshold"`
}

type EscalationConfig struct {
	WindowMS   int `yaml:"window_ms"`
	CooldownMS int `yaml:"cooldown_ms"`
}

type RetentionConfig struct {
	Mode             string `yaml:"mode"` // memory, sqlite
	Path             string `yaml:"path"`
	Capacity         int    `yaml:"capacity"`
	StoreTranscripts bool   `yaml:"store_transcripts"`
}

type AlertSinkConfig struct {
	Type      string `yaml:"type"` // log, exec, webhook
	Command   string `yaml:"command"`
	URL       string `yaml:"url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type AlertsConfig struct {
	Sinks []AlertSinkConfig `yaml:"sinks"`
}

func Default() Config {
	return Config{
		RuntimeName: "vigil-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:         "info",
			OTLPEndpoint:     "",
			OTLPInsecure:     true,
			TraceSampleRatio: 1.0,
			PrometheusBind:   ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Device: DeviceConfig{
			ID:                "vigil-node-1",
			Role:              "detector",
			HeartbeatInterval: 2000,
			HeartbeatTimeout:  6000,
		},
		Pipeline: PipelineConfig{
			DeadlineMarginMS: 1000,
			QueueDepth:       4,
			SessionDefault:   "default",
		},
		Suppressor: SuppressorConfig{
			Enabled:     false,
			Mode:        "passthrough",
			MinBudgetMS: 500,
		},
		VAD: VADConfig{
			Enabled:          true,
			FrameMS:          20,
			SpeechThreshold:  0.015,
			SilenceThreshold: 0.008,
			SpeechFrames:     3,
			SilenceFrames:    30,
		},
		Transcriber: TranscriberConfig{
			Mode:          "mock",
			SampleRate:    16000,
			Channels:      1,
			Language:      "en",
			FastCutoverMS: 2000,
		},
		Scorer: ScorerConfig{
			KeywordTiers: []KeywordTier{
				{Tier: "serious", Terms: []string{"hate", "kill", "violence"}},
				{Tier: "mild", Terms: []string{"stupid", "idiot"}},
			},
			ClassifierEnabled:   false,
			ClassifierMode:      "mock",
			ClassifierThreshold: 0.5,
		},
		Escalation: EscalationConfig{
			WindowMS:   30000,
			CooldownMS: 60000,
		},
		Retention: RetentionConfig{
			Mode:             "memory",
			Path:             "./data/vigil-decisions.db",
			Capacity:         2,
			StoreTranscripts: false,
		},
		Alerts: AlertsConfig{
			Sinks: []AlertSinkConfig{{Type: "log"}},
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

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VIGIL_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VIGIL_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VIGIL_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VIGIL_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VIGIL_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VIGIL_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VIGIL_TELEMETRY_OTLP_INSECURE")
	overrideFloat(&cfg.Telemetry.TraceSampleRatio, "VIGIL_TELEMETRY_TRACE_SAMPLE_RATIO")
	overrideString(&cfg.Telemetry.PrometheusBind, "VIGIL_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "VIGIL_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VIGIL_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VIGIL_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VIGIL_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VIGIL_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VIGIL_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VIGIL_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VIGIL_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Device.ID, "VIGIL_DEVICE_ID")
	overrideString(&cfg.Device.Role, "VIGIL_DEVICE_ROLE")
	overrideInt(&cfg.Device.HeartbeatInterval, "VIGIL_DEVICE_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Device.HeartbeatTimeout, "VIGIL_DEVICE_HEARTBEAT_TIMEOUT_MS")
	overrideInt(&cfg.Pipeline.DeadlineMarginMS, "VIGIL_PIPELINE_DEADLINE_MARGIN_MS")
	overrideInt(&cfg.Pipeline.QueueDepth, "VIGIL_PIPELINE_QUEUE_DEPTH")
	overrideString(&cfg.Pipeline.SessionDefault, "VIGIL_PIPELINE_SESSION_DEFAULT")
	overrideBool(&cfg.Suppressor.Enabled, "VIGIL_SUPPRESSOR_ENABLED")
	overrideString(&cfg.Suppressor.Mode, "VIGIL_SUPPRESSOR_MODE")
	overrideString(&cfg.Suppressor.Command, "VIGIL_SUPPRESSOR_COMMAND")
	overrideInt(&cfg.Suppressor.MinBudgetMS, "VIGIL_SUPPRESSOR_MIN_BUDGET_MS")
	overrideBool(&cfg.VAD.Enabled, "VIGIL_VAD_ENABLED")
	overrideInt(&cfg.VAD.FrameMS, "VIGIL_VAD_FRAME_MS")
	overrideFloat(&cfg.VAD.SpeechThreshold, "VIGIL_VAD_SPEECH_THRESHOLD")
	overrideFloat(&cfg.VAD.SilenceThreshold, "VIGIL_VAD_SILENCE_THRESHOLD")
	overrideInt(&cfg.VAD.SpeechFrames, "VIGIL_VAD_SPEECH_FRAMES")
	overrideInt(&cfg.VAD.SilenceFrames, "VIGIL_VAD_SILENCE_FRAMES")
	overrideString(&cfg.Transcriber.Mode, "VIGIL_TRANSCRIBER_MODE")
	overrideString(&cfg.Transcriber.FastCommand, "VIGIL_TRANSCRIBER_FAST_COMMAND")
	overrideString(&cfg.Transcriber.AccurateCommand, "VIGIL_TRANSCRIBER_ACCURATE_COMMAND")
	overrideString(&cfg.Transcriber.ModelPath, "VIGIL_TRANSCRIBER_MODEL_PATH")
	overrideString(&cfg.Transcriber.Language, "VIGIL_TRANSCRIBER_LANGUAGE")
	overrideInt(&cfg.Transcriber.SampleRate, "VIGIL_TRANSCRIBER_SAMPLE_RATE")
	overrideInt(&cfg.Transcriber.Channels, "VIGIL_TRANSCRIBER_CHANNELS")
	overrideInt(&cfg.Transcriber.FastCutoverMS, "VIGIL_TRANSCRIBER_FAST_CUTOVER_MS")
	overrideBool(&cfg.Scorer.ClassifierEnabled, "VIGIL_SCORER_CLASSIFIER_ENABLED")
	overrideString(&cfg.Scorer.ClassifierMode, "VIGIL_SCORER_CLASSIFIER_MODE")
	overrideString(&cfg.Scorer.ClassifierCommand, "VIGIL_SCORER_CLASSIFIER_COMMAND")
	overrideString(&cfg.Scorer.ClassifierEndpoint, "VIGIL_SCORER_CLASSIFIER_ENDPOINT")
	overrideFloat(&cfg.Scorer.ClassifierThreshold, "VIGIL_SCORER_CLASSIFIER_THRESHOLD")
	overrideInt(&cfg.Escalation.WindowMS, "VIGIL_ESCALATION_WINDOW_MS")
	overrideInt(&cfg.Escalation.CooldownMS, "VIGIL_ESCALATION_COOLDOWN_MS")
	overrideString(&cfg.Retention.Mode, "VIGIL_RETENTION_MODE")
	overrideString(&cfg.Retention.Path, "VIGIL_RETENTION_PATH")
	overrideInt(&cfg.Retention.Capacity, "VIGIL_RETENTION_CAPACITY")
	overrideBool(&cfg.Retention.StoreTranscripts, "VIGIL_RETENTION_STORE_TRANSCRIPTS")
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

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
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
	if cfg.Device.ID == "" {
		return errors.New("device.id must not be empty")
	}
	if cfg.Device.HeartbeatInterval <= 0 {
		return errors.New("device.heartbeat_interval_ms must be positive")
	}
	if cfg.Device.HeartbeatTimeout <= cfg.Device.HeartbeatInterval {
		return errors.New("device.heartbeat_timeout_ms must be greater than heartbeat interval")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Telemetry.TraceSampleRatio < 0 || cfg.Telemetry.TraceSampleRatio > 1 {
		return errors.New("telemetry.trace_sample_ratio must be between 0 and 1")
	}
	if cfg.Pipeline.DeadlineMarginMS <= 0 {
		return errors.New("pipeline.deadline_margin_ms must be positive")
	}
	if cfg.Pipeline.QueueDepth <= 0 {
		return errors.New("pipeline.queue_depth must be >= 1")
	}
	if cfg.Suppressor.Enabled {
		switch cfg.Suppressor.Mode {
		case "passthrough", "exec":
		default:
			return errors.New("suppressor.mode must be one of passthrough|exec")
		}
		if cfg.Suppressor.Mode == "exec" && cfg.Suppressor.Command == "" {
			return errors.New("suppressor.command must be set when mode=exec")
		}
	}
	if cfg.VAD.Enabled {
		if cfg.VAD.FrameMS <= 0 {
			return errors.New("vad.frame_ms must be positive")
		}
		if cfg.VAD.SpeechThreshold <= 0 {
			return errors.New("vad.speech_threshold must be positive")
		}
		if cfg.VAD.SilenceThreshold <= 0 || cfg.VAD.SilenceThreshold > cfg.VAD.SpeechThreshold {
			return errors.New("vad.silence_threshold must be positive and not exceed speech_threshold")
		}
		if cfg.VAD.SpeechFrames <= 0 || cfg.VAD.SilenceFrames <= 0 {
			return errors.New("vad.speech_frames and vad.silence_frames must be positive")
		}
	}
	switch cfg.Transcriber.Mode {
	case "mock", "exec":
	default:
		return errors.New("transcriber.mode must be one of mock|exec")
	}
	if cfg.Transcriber.Mode == "exec" && cfg.Transcriber.FastCommand == "" {
		return errors.New("transcriber.fast_command must be set when mode=exec")
	}
	if cfg.Transcriber.SampleRate <= 0 {
		return errors.New("transcriber.sample_rate must be positive")
	}
	if cfg.Transcriber.Channels <= 0 {
		return errors.New("transcriber.channels must be positive")
	}
	for _, kt := range cfg.Scorer.KeywordTiers {
		switch kt.Tier {
		case "mild", "serious":
		default:
			return errors.New("scorer.keyword_tiers tier must be one of mild|serious")
		}
	}
	if cfg.Scorer.ClassifierEnabled {
		switch cfg.Scorer.ClassifierMode {
		case "mock", "exec", "http":
		default:
			return errors.New("scorer.classifier_mode must be one of mock|exec|http")
		}
		if cfg.Scorer.ClassifierMode == "exec" && cfg.Scorer.ClassifierCommand == "" {
			return errors.New("scorer.classifier_command must be set when classifier_mode=exec")
		}
		if cfg.Scorer.ClassifierMode == "http" && cfg.Scorer.ClassifierEndpoint == "" {
			return errors.New("scorer.classifier_endpoint must be set when classifier_mode=http")
		}
		if cfg.Scorer.ClassifierThreshold <= 0 || cfg.Scorer.ClassifierThreshold > 1 {
			return errors.New("scorer.classifier_threshold must be in (0, 1]")
		}
	}
	if cfg.Escalation.WindowMS <= 0 {
		return errors.New("escalation.window_ms must be positive")
	}
	if cfg.Escalation.CooldownMS <= 0 {
		return errors.New("escalation.cooldown_ms must be positive")
	}
	switch cfg.Retention.Mode {
	case "memory", "sqlite":
	default:
		return errors.New("retention.mode must be one of memory|sqlite")
	}
	if cfg.Retention.Mode == "sqlite" && cfg.Retention.Path == "" {
		return errors.New("retention.path must not be empty when mode=sqlite")
	}
	if cfg.Retention.Capacity <= 0 {
		return errors.New("retention.capacity must be >= 1")
	}
	for _, sink := range cfg.Alerts.Sinks {
		switch sink.Type {
		case "log":
		case "exec":
			if sink.Command == "" {
				return errors.New("alerts sink command must be set for type=exec")
			}
		case "webhook":
			if sink.URL == "" {
				return errors.New("alerts sink url must be set for type=webhook")
			}
		default:
			return errors.New("alerts sink type must be one of log|exec|webhook")
		}
	}
	return nil
}
