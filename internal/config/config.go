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
	Bind        string `yaml:"bind"`
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
	OutputDir string `yaml:"output_dir"`
	WorkDir   string `yaml:"work_dir"`
}

type PipelineConfig struct {
	MaxChunkChars   int    `yaml:"max_chunk_chars"`
	ChunkingEnabled bool   `yaml:"chunking_enabled"`
	Concurrency     int    `yaml:"concurrency"`
	FailurePolicy   string `yaml:"failure_policy"` // fail_fast, fail_complete
	SynthTimeoutMS  int    `yaml:"synth_timeout_ms"`
	RetryAttempts   int    `yaml:"retry_attempts"`
	RetryBackoffMS  int    `yaml:"retry_backoff_ms"`
}

type SynthConfig struct {
	Mode         string `yaml:"mode"` // mock, exec, http
	Command      string `yaml:"command"`
	Endpoint     string `yaml:"endpoint"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	DefaultVoice string `yaml:"default_voice"`
	Format       string `yaml:"format"` // mp3, wav
}

type MergeConfig struct {
	Mode       string `yaml:"mode"` // ffmpeg, wav
	FFmpegPath string `yaml:"ffmpeg_path"`
}

type JobsConfig struct {
	RetentionMinutes int `yaml:"retention_minutes"`
	MaxConcurrent    int `yaml:"max_concurrent"`
}

type EventLogConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"` // ephemeral, persistent
	RetentionDays int    `yaml:"retention_days"`
	MaxJobs       int    `yaml:"max_jobs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Storage     StorageConfig   `yaml:"storage"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Synth       SynthConfig     `yaml:"synth"`
	Merge       MergeConfig     `yaml:"merge"`
	Jobs        JobsConfig      `yaml:"jobs"`
	EventLog    EventLogConfig  `yaml:"event_log"`
	Bus         BusConfig       `yaml:"bus"`
}

func Default() Config {
	return Config{
		ServiceName: "text-to-audio-converter",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:        "0.0.0.0",
			Port:        8080,
			MaxUploadMB: 50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Storage: StorageConfig{
			UploadDir: "./data/uploads",
			OutputDir: "./data/output",
			WorkDir:   "",
		},
		Pipeline: PipelineConfig{
			MaxChunkChars:   4500,
			ChunkingEnabled: true,
			Concurrency:     2,
			FailurePolicy:   "fail_fast",
			SynthTimeoutMS:  45000,
			RetryAttempts:   2,
			RetryBackoffMS:  500,
		},
		Synth: SynthConfig{
			Mode:         "mock",
			DefaultVoice: "en-US-SteffanNeural",
			Format:       "mp3",
		},
		Merge: MergeConfig{
			Mode:       "ffmpeg",
			FFmpegPath: "ffmpeg",
		},
		Jobs: JobsConfig{
			RetentionMinutes: 60,
			MaxConcurrent:    2,
		},
		EventLog: EventLogConfig{
			Path:          "./data/job-events.db",
			RetentionMode: "persistent",
			RetentionDays: 7,
			MaxJobs:       10000,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
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
	overrideString(&cfg.ServiceName, "TTA_SERVICE_NAME")
	overrideString(&cfg.Environment, "TTA_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "TTA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "TTA_HTTP_PORT")
	overrideInt(&cfg.HTTP.MaxUploadMB, "TTA_HTTP_MAX_UPLOAD_MB")
	overrideString(&cfg.Telemetry.LogLevel, "TTA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "TTA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "TTA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "TTA_TELEMETRY_PROMETHEUS_BIND")
	overrideString(&cfg.Storage.UploadDir, "TTA_STORAGE_UPLOAD_DIR")
	overrideString(&cfg.Storage.OutputDir, "TTA_STORAGE_OUTPUT_DIR")
	overrideString(&cfg.Storage.WorkDir, "TTA_STORAGE_WORK_DIR")
	overrideInt(&cfg.Pipeline.MaxChunkChars, "TTA_PIPELINE_MAX_CHUNK_CHARS")
	overrideBool(&cfg.Pipeline.ChunkingEnabled, "TTA_PIPELINE_CHUNKING_ENABLED")
	overrideInt(&cfg.Pipeline.Concurrency, "TTA_PIPELINE_CONCURRENCY")
	overrideString(&cfg.Pipeline.FailurePolicy, "TTA_PIPELINE_FAILURE_POLICY")
	overrideInt(&cfg.Pipeline.SynthTimeoutMS, "TTA_PIPELINE_SYNTH_TIMEOUT_MS")
	overrideInt(&cfg.Pipeline.RetryAttempts, "TTA_PIPELINE_RETRY_ATTEMPTS")
	overrideInt(&cfg.Pipeline.RetryBackoffMS, "TTA_PIPELINE_RETRY_BACKOFF_MS")
	overrideString(&cfg.Synth.Mode, "TTA_SYNTH_MODE")
	overrideString(&cfg.Synth.Command, "TTA_SYNTH_COMMAND")
	overrideString(&cfg.Synth.Endpoint, "TTA_SYNTH_ENDPOINT")
	overrideString(&cfg.Synth.APIKey, "TTA_SYNTH_API_KEY")
	overrideString(&cfg.Synth.Model, "TTA_SYNTH_MODEL")
	overrideString(&cfg.Synth.DefaultVoice, "TTA_SYNTH_DEFAULT_VOICE")
	overrideString(&cfg.Synth.Format, "TTA_SYNTH_FORMAT")
	overrideString(&cfg.Merge.Mode, "TTA_MERGE_MODE")
	overrideString(&cfg.Merge.FFmpegPath, "TTA_MERGE_FFMPEG_PATH")
	overrideInt(&cfg.Jobs.RetentionMinutes, "TTA_JOBS_RETENTION_MINUTES")
	overrideInt(&cfg.Jobs.MaxConcurrent, "TTA_JOBS_MAX_CONCURRENT")
	overrideString(&cfg.EventLog.Path, "TTA_EVENT_LOG_PATH")
	overrideString(&cfg.EventLog.RetentionMode, "TTA_EVENT_LOG_RETENTION_MODE")
	overrideInt(&cfg.EventLog.RetentionDays, "TTA_EVENT_LOG_RETENTION_DAYS")
	overrideInt(&cfg.EventLog.MaxJobs, "TTA_EVENT_LOG_MAX_JOBS")
	overrideBool(&cfg.EventLog.VacuumOnStart, "TTA_EVENT_LOG_VACUUM_ON_START")
	overrideBool(&cfg.Bus.Enabled, "TTA_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "TTA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "TTA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "TTA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "TTA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "TTA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "TTA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "TTA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "TTA_BUS_CONNECT_TIMEOUT_MS")
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
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		return errors.New("http.max_upload_mb must be positive")
	}
	if cfg.Storage.UploadDir == "" {
		return errors.New("storage.upload_dir must not be empty")
	}
	if cfg.Storage.OutputDir == "" {
		return errors.New("storage.output_dir must not be empty")
	}
	if cfg.Pipeline.MaxChunkChars <= 0 {
		return errors.New("pipeline.max_chunk_chars must be positive")
	}
	if cfg.Pipeline.Concurrency <= 0 {
		return errors.New("pipeline.concurrency must be >= 1")
	}
	switch cfg.Pipeline.FailurePolicy {
	case "fail_fast", "fail_complete":
	default:
		return errors.New("pipeline.failure_policy must be one of fail_fast|fail_complete")
	}
	if cfg.Pipeline.SynthTimeoutMS <= 0 {
		return errors.New("pipeline.synth_timeout_ms must be positive")
	}
	if cfg.Pipeline.RetryAttempts < 0 {
		return errors.New("pipeline.retry_attempts must be >= 0")
	}
	if cfg.Pipeline.RetryBackoffMS < 0 {
		return errors.New("pipeline.retry_backoff_ms must be >= 0")
	}
	switch cfg.Synth.Mode {
	case "mock", "exec", "http":
	default:
		return errors.New("synth.mode must be one of mock|exec|http")
	}
	if cfg.Synth.Mode == "exec" && cfg.Synth.Command == "" {
		return errors.New("synth.command must be set when mode=exec")
	}
	if cfg.Synth.Mode == "http" && cfg.Synth.Endpoint == "" {
		return errors.New("synth.endpoint must be set when mode=http")
	}
	if cfg.Synth.DefaultVoice == "" {
		return errors.New("synth.default_voice must not be empty")
	}
	switch cfg.Synth.Format {
	case "mp3", "wav":
	default:
		return errors.New("synth.format must be one of mp3|wav")
	}
	switch cfg.Merge.Mode {
	case "ffmpeg", "wav":
	default:
		return errors.New("merge.mode must be one of ffmpeg|wav")
	}
	if cfg.Merge.Mode == "ffmpeg" && cfg.Merge.FFmpegPath == "" {
		return errors.New("merge.ffmpeg_path must not be empty when mode=ffmpeg")
	}
	if cfg.Merge.Mode == "wav" && cfg.Synth.Format != "wav" {
		return errors.New("merge.mode=wav requires synth.format=wav")
	}
	if cfg.Jobs.RetentionMinutes < 0 {
		return errors.New("jobs.retention_minutes must be >= 0")
	}
	if cfg.Jobs.MaxConcurrent <= 0 {
		return errors.New("jobs.max_concurrent must be >= 1")
	}
	switch cfg.EventLog.RetentionMode {
	case "ephemeral", "persistent":
	default:
		return errors.New("event_log.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.EventLog.RetentionMode == "persistent" && cfg.EventLog.Path == "" {
		return errors.New("event_log.path must not be empty when retention is persistent")
	}
	if cfg.EventLog.RetentionDays < 0 {
		return errors.New("event_log.retention_days must be >= 0")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	return nil
}
