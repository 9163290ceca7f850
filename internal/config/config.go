// Package config loads Nexira's runtime configuration from a YAML file with
// environment-variable overrides, in the teacher's hybrid style (see
// intelligencedev-manifold's config.go / internal/agentd's env-first
// overrides), adapted to a single consistent struct tree.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig configures the Postgres-backed Store.
type DatabaseConfig struct {
	ConnectionString string `yaml:"connection_string"`
	EmbeddingDims    int    `yaml:"embedding_dims"`
}

// OpenAIConfig configures the OpenAI-compatible LLM client (also used for
// self-hosted OpenAI-API-shaped backends exposing the Chat Completions
// endpoint).
type OpenAIConfig struct {
	APIKey      string         `yaml:"api_key"`
	BaseURL     string         `yaml:"base_url"`
	Model       string         `yaml:"model"`
	LogPayloads bool           `yaml:"log_payloads"`
	ExtraParams map[string]any `yaml:"extra_params,omitempty"`
}

// AnthropicPromptCacheConfig controls Anthropic prompt-caching scope.
type AnthropicPromptCacheConfig struct {
	Enabled       bool `yaml:"enabled"`
	CacheSystem   bool `yaml:"cache_system"`
	CacheTools    bool `yaml:"cache_tools"`
	CacheMessages bool `yaml:"cache_messages"`
}

// AnthropicConfig configures the Anthropic LLM client.
type AnthropicConfig struct {
	APIKey      string                     `yaml:"api_key"`
	BaseURL     string                     `yaml:"base_url"`
	Model       string                     `yaml:"model"`
	PromptCache AnthropicPromptCacheConfig `yaml:"prompt_cache"`
	ExtraParams map[string]any             `yaml:"extra_params,omitempty"`
}

// GoogleConfig configures the Gemini LLM client.
type GoogleConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout int    `yaml:"timeout_seconds"`
}

// LLMClientConfig selects and configures the active LLM Gate backend.
type LLMClientConfig struct {
	Provider  string          `yaml:"provider"` // "openai" | "local" | "anthropic" | "google"
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Google    GoogleConfig    `yaml:"google"`

	// ContextWindow, ThreadCount and GPULayers are hardware options applied
	// by the LLM Gate (spec.md §4.3) to self-hosted backends.
	ContextWindow int `yaml:"context_window"`
	ThreadCount   int `yaml:"thread_count"`
	GPULayers     int `yaml:"gpu_layers"`
}

// PersonalityConfig tunes the Personality Engine (spec.md §4.4).
type PersonalityConfig struct {
	Speed float64 `yaml:"speed"`
}

// MemoryConfig tunes the Memory Engine (spec.md §4.5).
type MemoryConfig struct {
	EpisodeThreshold    int `yaml:"episode_threshold"`
	MinConfirmations    int `yaml:"min_confirmations"`
	RecentEpisodeCount  int `yaml:"recent_episode_count"`
	PromptBudgetChars   int `yaml:"prompt_budget_chars"`
	MessageSnippetChars int `yaml:"message_snippet_chars"`
}

// SchedulerConfig tunes the Scheduler (spec.md §4.11).
type SchedulerConfig struct {
	TickInterval           time.Duration `yaml:"tick_interval"`
	ConsolidationHour      int           `yaml:"consolidation_hour"`
	DailyEmailHour         int           `yaml:"daily_email_hour"`
	DailyEmailMinute       int           `yaml:"daily_email_minute"`
	BackupHourOffset       int           `yaml:"backup_hour_offset"`
	IdleResearchBudget     int           `yaml:"idle_research_budget"`
	CreativeJournaling     bool          `yaml:"creative_journaling_enabled"`
	PhilosophicalJournal   bool          `yaml:"philosophical_journaling_enabled"`
	PhilosophicalEveryRuns int           `yaml:"philosophical_every_runs"`
}

// ActionsConfig tunes the Action Pipeline (spec.md §4.13).
type ActionsConfig struct {
	MaxCodeBlocks     int           `yaml:"max_code_blocks"`
	ExecutableLangs   []string      `yaml:"executable_languages"`
	ExecTimeout       time.Duration `yaml:"exec_timeout"`
	MaxOutputBytes    int           `yaml:"max_output_bytes"`
	OllamaURL         string        `yaml:"ollama_url"`
	ImageGenModelName string        `yaml:"image_gen_model_name"`
	MCPServerEnabled  bool          `yaml:"mcp_server_enabled,omitempty"`
}

// BackupConfig tunes nightly backups (spec.md §6).
type BackupConfig struct {
	Dir         string `yaml:"dir"`
	MaxBackups  int    `yaml:"max_backups"`
	S3Bucket    string `yaml:"s3_bucket,omitempty"`
	S3KeyPrefix string `yaml:"s3_key_prefix,omitempty"`
}

// S3SSEConfig configures server-side encryption for offsite backup objects.
type S3SSEConfig struct {
	Mode     string `yaml:"mode,omitempty"` // "", "AES256", or "aws:kms"
	KMSKeyID string `yaml:"kms_key_id,omitempty"`
}

// S3Config configures the optional S3-compatible offsite backup sink
// (internal/objectstore.NewS3Store). Populated from BackupConfig's
// S3Bucket/S3KeyPrefix plus environment-sourced credentials; left zero when
// no bucket is configured, in which case Backup runs local-only.
type S3Config struct {
	Bucket                string      `yaml:"bucket"`
	Prefix                string      `yaml:"prefix,omitempty"`
	Region                string      `yaml:"region,omitempty"`
	Endpoint              string      `yaml:"endpoint,omitempty"`
	AccessKey             string      `yaml:"access_key,omitempty"`
	SecretKey             string      `yaml:"secret_key,omitempty"`
	UsePathStyle          bool        `yaml:"use_path_style,omitempty"`
	TLSInsecureSkipVerify bool        `yaml:"tls_insecure_skip_verify,omitempty"`
	SSE                   S3SSEConfig `yaml:"sse,omitempty"`
}

// ObsConfig controls OpenTelemetry settings.
type ObsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OTLP           string `yaml:"otlp_endpoint"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
}

// SecretBoxConfig configures the Secret Box (spec.md §4.2).
type SecretBoxConfig struct {
	KeyPath string `yaml:"key_path"`
}

// RedisConfig configures the optional Redis-backed scheduler lock.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// KafkaConfig configures the best-effort ActivityEvent publish sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// ClickHouseConfig configures the optional self-awareness analytics sink.
type ClickHouseConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

// Config is the root configuration tree for the Nexira runtime.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DataPath string `yaml:"data_path"`
	AIName   string `yaml:"ai_name,omitempty"` // empty until the name-selection flow runs
	UserName string `yaml:"user_name,omitempty"` // operator's preferred address; defaults to "the collaborator"

	Database    DatabaseConfig    `yaml:"database"`
	LLMClient   LLMClientConfig   `yaml:"llm_client"`
	Personality PersonalityConfig `yaml:"personality"`
	Memory      MemoryConfig      `yaml:"memory"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Actions     ActionsConfig     `yaml:"actions"`
	Backup      BackupConfig      `yaml:"backup"`
	OTel        ObsConfig         `yaml:"otel"`
	SecretBox   SecretBoxConfig   `yaml:"secret_box"`
	Redis       RedisConfig       `yaml:"redis,omitempty"`
	Kafka       KafkaConfig       `yaml:"kafka,omitempty"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse,omitempty"`

	SMTPHost     string `yaml:"smtp_host,omitempty"`
	SMTPPort     int    `yaml:"smtp_port,omitempty"`
	SMTPUser     string `yaml:"smtp_user,omitempty"`
	SMTPPassword string `yaml:"smtp_password,omitempty"` // stored encrypted via Secret Box at rest

	MoltbookAPIBase string `yaml:"moltbook_api_base,omitempty"`
	MoltbookToken   string `yaml:"moltbook_token,omitempty"`

	EmailRecipient    string `yaml:"email_recipient,omitempty"`
	DailyEmailEnabled bool   `yaml:"daily_email_enabled,omitempty"`
}

func setDefaults(c *Config) {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.DataPath == "" {
		c.DataPath = "data"
	}
	if c.Personality.Speed <= 0 {
		c.Personality.Speed = 0.02
	}
	if c.Memory.EpisodeThreshold <= 0 {
		c.Memory.EpisodeThreshold = 20
	}
	if c.Memory.MinConfirmations <= 0 {
		c.Memory.MinConfirmations = 2
	}
	if c.Memory.RecentEpisodeCount <= 0 {
		c.Memory.RecentEpisodeCount = 5
	}
	if c.Memory.PromptBudgetChars <= 0 {
		c.Memory.PromptBudgetChars = 4000
	}
	if c.Memory.MessageSnippetChars <= 0 {
		c.Memory.MessageSnippetChars = 300
	}
	if c.Scheduler.TickInterval <= 0 {
		c.Scheduler.TickInterval = 30 * time.Second
	}
	if c.Scheduler.ConsolidationHour == 0 && c.Scheduler.DailyEmailHour == 0 {
		c.Scheduler.ConsolidationHour = 3
		c.Scheduler.DailyEmailHour = 8
	}
	if c.Scheduler.IdleResearchBudget <= 0 {
		c.Scheduler.IdleResearchBudget = 2
	}
	if c.Scheduler.PhilosophicalEveryRuns <= 0 {
		c.Scheduler.PhilosophicalEveryRuns = 3
	}
	if c.Actions.MaxCodeBlocks <= 0 {
		c.Actions.MaxCodeBlocks = 3
	}
	if len(c.Actions.ExecutableLangs) == 0 {
		c.Actions.ExecutableLangs = []string{"python", "bash", "node"}
	}
	if c.Actions.ExecTimeout <= 0 {
		c.Actions.ExecTimeout = 10 * time.Second
	}
	if c.Actions.MaxOutputBytes <= 0 {
		c.Actions.MaxOutputBytes = 2048
	}
	if c.Actions.OllamaURL == "" {
		c.Actions.OllamaURL = "http://localhost:11434"
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "data/backups"
	}
	if c.Backup.MaxBackups <= 0 {
		c.Backup.MaxBackups = 7
	}
	if c.OTel.ServiceName == "" {
		c.OTel.ServiceName = "nexira"
	}
	if c.SecretBox.KeyPath == "" {
		c.SecretBox.KeyPath = "data/nexira.key"
	}
	if c.Database.EmbeddingDims <= 0 {
		c.Database.EmbeddingDims = 768
	}
}

// applyEnvOverrides mirrors the teacher root main.go's godotenv+env-var
// precedence: environment variables always win over the YAML file.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("NEXIRA_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("NEXIRA_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("NEXIRA_DATA_PATH"); v != "" {
		c.DataPath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.ConnectionString = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLMClient.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLMClient.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLMClient.Anthropic.APIKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.LLMClient.Google.APIKey = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.OTel.OTLP = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

// Load reads the YAML config at path, applies environment overrides and
// defaults, and returns the resolved Config. A missing .env file at the
// working directory is tolerated (godotenv.Load error is ignored), matching
// the teacher's root main.go loadConfig idiom.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if cfg.Database.ConnectionString == "" {
		return Config{}, fmt.Errorf("database.connection_string (or DATABASE_URL) is required")
	}

	log.Info().Str("provider", cfg.LLMClient.Provider).Str("data_path", cfg.DataPath).Msg("configuration loaded")
	return cfg, nil
}
