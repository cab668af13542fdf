package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"TweetWatch/internal/domain"
)

// PathEnv names the environment variable holding the YAML config path.
const PathEnv = "TWEETWATCH_CONFIG"

const (
	dbDriverEnv        = "TWEETWATCH_DB_DRIVER"
	dbDSNEnv           = "TWEETWATCH_DB_DSN"
	logLevelEnv        = "TWEETWATCH_LOG_LEVEL"
	httpAddrEnv        = "TWEETWATCH_HTTP_ADDR"
	twitterTokenEnv    = "TWITTER_BEARER_TOKEN"
	sentimentAPIKeyEnv = "SENTIMENT_API_KEY"
	chatGPTAPIKeyEnv   = "CHATGPT_API_KEY"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Reminders RemindersConfig `yaml:"reminders"`
	Twitter   TwitterConfig   `yaml:"twitter"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	ChatGPT   ChatGPTConfig   `yaml:"chatgpt"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Server    ServerConfig    `yaml:"server"`
	Watches   []WatchConfig   `yaml:"watches"`
}

// Duration accepts Go duration strings such as "90s" or "10m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses the scalar with time.ParseDuration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration back to its string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// LoggingConfig selects slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig picks the state store driver: sqlite, postgres or memory.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ScheduleConfig holds the watch reminder timing.
type ScheduleConfig struct {
	DueTime Duration `yaml:"dueTime"`
	Period  Duration `yaml:"period"`
}

// RuntimeConfig tunes the per-entity mailboxes.
type RuntimeConfig struct {
	TurnTimeout Duration `yaml:"turnTimeout"`
	MailboxSize int      `yaml:"mailboxSize"`
	LockPath    string   `yaml:"lockPath"`
}

// RemindersConfig controls redelivery of failed reminder turns.
type RemindersConfig struct {
	RetryDelay Duration `yaml:"retryDelay"`
	MaxRetries int      `yaml:"maxRetries"`
}

// TwitterConfig groups settings for the tweet search backends.
type TwitterConfig struct {
	Backends    []string `yaml:"backends"`
	Endpoint    string   `yaml:"endpoint"`
	BearerToken string   `yaml:"bearerToken"`
	HTMLBaseURL string   `yaml:"htmlBaseUrl"`
	Timeout     Duration `yaml:"timeout"`
	Limit       int      `yaml:"limit"`
}

// SentimentConfig describes the scoring backend.
type SentimentConfig struct {
	Backend       string   `yaml:"backend"`
	Endpoint      string   `yaml:"endpoint"`
	APIKey        string   `yaml:"apiKey"`
	Timeout       Duration `yaml:"timeout"`
	RatePerSecond float64  `yaml:"ratePerSecond"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string   `yaml:"endpoint"`
	Model        string   `yaml:"model"`
	APIKey       string   `yaml:"apiKey"`
	SystemPrompt string   `yaml:"systemPrompt"`
	Timeout      Duration `yaml:"timeout"`
}

// TelegramConfig wires all data required to send digests.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// Enabled reports whether digests should be sent.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// ServerConfig is the HTTP listener of the daemon.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WatchConfig declares a watch entity known at boot.
type WatchConfig struct {
	ID        string `yaml:"id"`
	Account   string `yaml:"account"`
	Query     string `yaml:"query"`
	AutoStart bool   `yaml:"autoStart"`
}

// Load reads .env, the YAML file named by TWEETWATCH_CONFIG (if any) and
// applies environment overrides on top of the defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(PathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Parse(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML onto cfg; keys absent from raw keep their current value.
func Parse(raw []byte, cfg *Config) error {
	return yaml.Unmarshal(raw, cfg)
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{dbDriverEnv, &c.Database.Driver},
		{dbDSNEnv, &c.Database.DSN},
		{logLevelEnv, &c.Logging.Level},
		{httpAddrEnv, &c.Server.Addr},
		{twitterTokenEnv, &c.Twitter.BearerToken},
		{sentimentAPIKeyEnv, &c.Sentiment.APIKey},
		{chatGPTAPIKeyEnv, &c.ChatGPT.APIKey},
		{telegramTokenEnv, &c.Telegram.BotToken},
		{telegramChatIDEnv, &c.Telegram.ChatID},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	if c.Schedule.DueTime.Duration < 0 {
		errs = append(errs, fmt.Errorf("schedule.dueTime must not be negative"))
	}
	if c.Schedule.Period.Duration <= 0 {
		errs = append(errs, fmt.Errorf("schedule.period must be positive"))
	}
	if c.Runtime.TurnTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("runtime.turnTimeout must be positive"))
	}
	if c.Reminders.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("reminders.maxRetries must not be negative"))
	}

	if len(c.Twitter.Backends) == 0 {
		errs = append(errs, fmt.Errorf("twitter.backends must list at least one backend"))
	}
	for _, name := range c.Twitter.Backends {
		if name != "api" && name != "html" {
			errs = append(errs, fmt.Errorf("unknown twitter backend %q", name))
		}
	}

	switch c.Sentiment.Backend {
	case "ml", "chatgpt", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown sentiment.backend %q", c.Sentiment.Backend))
	}
	if c.Sentiment.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("sentiment.ratePerSecond must not be negative"))
	}

	seen := make(map[string]struct{}, len(c.Watches))
	for i, w := range c.Watches {
		if strings.TrimSpace(w.ID) == "" {
			errs = append(errs, fmt.Errorf("watches[%d].id is required", i))
			continue
		}
		if err := domain.ValidateEntityID(w.ID); err != nil {
			errs = append(errs, fmt.Errorf("watches[%d].id: %w", i, err))
		}
		if _, dup := seen[w.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate watch id %q", w.ID))
		}
		seen[w.ID] = struct{}{}
	}

	return errors.Join(errs...)
}

// Watch returns the configured watch with the given id.
func (c Config) Watch(id string) (WatchConfig, bool) {
	for _, w := range c.Watches {
		if w.ID == id {
			return w, true
		}
	}
	return WatchConfig{}, false
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "data/tweetwatch.db"},
		Schedule:  ScheduleConfig{DueTime: Duration{time.Minute}, Period: Duration{10 * time.Minute}},
		Runtime:   RuntimeConfig{TurnTimeout: Duration{2 * time.Minute}, MailboxSize: 16, LockPath: "data/tweetwatch.lock"},
		Reminders: RemindersConfig{RetryDelay: Duration{30 * time.Second}, MaxRetries: 3},
		Twitter: TwitterConfig{
			Backends:    []string{"api", "html"},
			Endpoint:    "https://api.twitter.com",
			HTMLBaseURL: "https://nitter.net",
			Timeout:     Duration{15 * time.Second},
			Limit:       20,
		},
		Sentiment: SentimentConfig{
			Backend:       "ml",
			Endpoint:      "http://localhost:8000",
			Timeout:       Duration{10 * time.Second},
			RatePerSecond: 5,
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "Rate the sentiment of the tweet from 0 (negative) to 1 (positive). Reply with the number only.",
			Timeout:      Duration{20 * time.Second},
		},
		Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		Server:   ServerConfig{Addr: ":8080"},
	}
}
