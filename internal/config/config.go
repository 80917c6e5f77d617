// Package config provides the configuration schema, loader, and provider
// registry for the Assessly interview service.
package config

// LogLevel controls log verbosity for the Assessly server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// DefaultInstructions is the interviewer persona handed to the realtime
// channel when interview.instructions is not set. The candidate's name is
// substituted for %s at session start.
const DefaultInstructions = `You are a Lead AWS Networking Engineer conducting a high-stakes 8-minute technical interview for %s.
TONE: Professional, architectural, direct.
BEHAVIOR:
1. Ask scenario-based networking questions.
2. If the user is silent or doesn't know, move to a completely different AWS networking topic immediately.
3. Monitor time. Ensure you cover multiple domains: VPC, Hybrid (DX/VPN), Security (WAF/Shield/NACL), and DNS (Route53).
The session ends exactly at 8 minutes.`

// DefaultVoice is the interviewer voice used when interview.voice is not set.
const DefaultVoice = "Kore"

// DefaultDurationSeconds is the interview length used when
// interview.duration_seconds is not set.
const DefaultDurationSeconds = 480

// Config is the root configuration structure for Assessly.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Interview InterviewConfig `yaml:"interview"`
	Relay     RelayConfig     `yaml:"relay"`
}

// ServerConfig holds network and logging settings for the Assessly server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists origin patterns permitted to open the media
	// WebSocket. Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	// Live is the realtime speech channel the interview runs over.
	Live ProviderEntry `yaml:"live"`

	// Eval is the one-shot completion backend that grades transcripts.
	Eval ProviderEntry `yaml:"eval"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "gemini-live", "openai-realtime").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// InterviewConfig shapes the interview session itself.
type InterviewConfig struct {
	// DurationSeconds is the interview length. Defaults to 480.
	DurationSeconds int `yaml:"duration_seconds"`

	// Voice is the interviewer's voice name. Defaults to "Kore".
	Voice string `yaml:"voice"`

	// Instructions is the interviewer persona. May contain one %s verb that
	// receives the candidate's name. Defaults to [DefaultInstructions].
	Instructions string `yaml:"instructions"`

	// SnapshotIntervalSeconds is how often a camera snapshot is forwarded to
	// the AI peer. Defaults to 1.
	SnapshotIntervalSeconds int `yaml:"snapshot_interval_seconds"`
}

// RelayConfig configures delivery of finished evaluations.
type RelayConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig holds Telegram Bot API credentials. Leave both fields empty
// to disable chat delivery.
type TelegramConfig struct {
	// BotToken is the bot token from @BotFather.
	BotToken string `yaml:"bot_token"`

	// ChatID is the destination chat for interview reports.
	ChatID string `yaml:"chat_id"`

	// BaseURL overrides the Bot API host. Used in tests.
	BaseURL string `yaml:"base_url"`
}

// Enabled reports whether Telegram delivery is configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// ApplyDefaults fills unset interview fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Interview.DurationSeconds <= 0 {
		c.Interview.DurationSeconds = DefaultDurationSeconds
	}
	if c.Interview.Voice == "" {
		c.Interview.Voice = DefaultVoice
	}
	if c.Interview.Instructions == "" {
		c.Interview.Instructions = DefaultInstructions
	}
	if c.Interview.SnapshotIntervalSeconds <= 0 {
		c.Interview.SnapshotIntervalSeconds = 1
	}
}
