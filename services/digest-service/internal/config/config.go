package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the explicit configuration handed to every component at construction.
// It is decoded once from viper; nothing reads viper after Load returns.
type Config struct {
	GitHub      GitHubConfig
	Digest      DigestConfig
	Subscribers SubscribersConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Mailer      MailerConfig
	SMTP        SMTPConfig
	Server      ServerConfig
	Log         LogConfig
}

type GitHubConfig struct {
	Token     string
	APIURL    string
	UserAgent string
	Timeout   time.Duration
	RateLimit float64 // requests per second shared by all workers, 0 disables pacing
	RateBurst int
}

type DigestConfig struct {
	Window         time.Duration
	Endpoints      []string
	Workers        int
	Subject        string
	UnsubscribeURL string
	Interval       time.Duration // 0 runs a single cycle
}

type SubscribersConfig struct {
	Source   string // file, postgres or redis
	File     string
	RedisKey string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Addr string
}

type MailerConfig struct {
	Type string // smtp or log
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

type ServerConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceRedis    = "redis"

	MailerSMTP = "smtp"
	MailerLog  = "log"

	EndpointReceivedEvents = "received_events"
	EndpointEvents         = "events"
)

// ConfigError reports configuration that makes a run impossible.
// It is fatal and raised before any subscriber is processed.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// SetDefaults registers default values and environment bindings on v.
// The legacy variable names used by the PHP deployment are still honored.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("github.user_agent", "GitHub-Timeline-Updates")
	v.SetDefault("github.timeout", 10*time.Second)
	v.SetDefault("github.rate_limit", 0)
	v.SetDefault("github.rate_burst", 1)

	v.SetDefault("digest.window", 24*time.Hour)
	v.SetDefault("digest.endpoints", []string{EndpointReceivedEvents, EndpointEvents})
	v.SetDefault("digest.workers", 4)
	v.SetDefault("digest.subject", "New GitHub Timeline Updates")
	v.SetDefault("digest.unsubscribe_url", "http://localhost:8000/unsubscribe.php")
	v.SetDefault("digest.interval", time.Duration(0))

	v.SetDefault("subscribers.source", SourceFile)
	v.SetDefault("subscribers.file", "registered_emails.txt")
	v.SetDefault("subscribers.redis_key", "subscribers")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("mailer.type", MailerSMTP)
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from_email", "noreply@yourdomain.com")
	v.SetDefault("smtp.from_name", "GitHub Timeline Updates")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix("TIMELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("github.token", "TIMELINE_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("smtp.username", "TIMELINE_SMTP_USERNAME", "SMTP_USERNAME")
	_ = v.BindEnv("smtp.password", "TIMELINE_SMTP_PASSWORD", "SMTP_PASSWORD")
	_ = v.BindEnv("smtp.from_email", "TIMELINE_SMTP_FROM_EMAIL", "FROM_EMAIL")
	_ = v.BindEnv("smtp.from_name", "TIMELINE_SMTP_FROM_NAME", "FROM_NAME")
	_ = v.BindEnv("database.url", "TIMELINE_DATABASE_URL", "DATABASE_URL")
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Decode(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode reads v into a Config without validating it. Commands that need only
// part of the configuration check what they use themselves.
func Decode(v *viper.Viper) *Config {
	return &Config{
		GitHub: GitHubConfig{
			Token:     v.GetString("github.token"),
			APIURL:    v.GetString("github.api_url"),
			UserAgent: v.GetString("github.user_agent"),
			Timeout:   v.GetDuration("github.timeout"),
			RateLimit: v.GetFloat64("github.rate_limit"),
			RateBurst: v.GetInt("github.rate_burst"),
		},
		Digest: DigestConfig{
			Window:         v.GetDuration("digest.window"),
			Endpoints:      splitList(v.GetStringSlice("digest.endpoints")),
			Workers:        v.GetInt("digest.workers"),
			Subject:        v.GetString("digest.subject"),
			UnsubscribeURL: v.GetString("digest.unsubscribe_url"),
			Interval:       v.GetDuration("digest.interval"),
		},
		Subscribers: SubscribersConfig{
			Source:   v.GetString("subscribers.source"),
			File:     v.GetString("subscribers.file"),
			RedisKey: v.GetString("subscribers.redis_key"),
		},
		Database: DatabaseConfig{URL: v.GetString("database.url")},
		Redis:    RedisConfig{Addr: v.GetString("redis.addr")},
		Mailer:   MailerConfig{Type: v.GetString("mailer.type")},
		SMTP: SMTPConfig{
			Host:      v.GetString("smtp.host"),
			Port:      v.GetInt("smtp.port"),
			Username:  v.GetString("smtp.username"),
			Password:  v.GetString("smtp.password"),
			FromEmail: v.GetString("smtp.from_email"),
			FromName:  v.GetString("smtp.from_name"),
		},
		Server: ServerConfig{Addr: v.GetString("server.addr")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
}

// splitList accepts both list values and comma separated strings. Values from
// the environment arrive as one string that viper only splits on whitespace.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// Validate returns a *ConfigError listing every problem found.
func (c *Config) Validate() error {
	cerr := &ConfigError{}

	if c.GitHub.Token == "" {
		cerr.Missing = append(cerr.Missing, "github.token")
	}
	if c.GitHub.Timeout <= 0 {
		cerr.Invalid = append(cerr.Invalid, "github.timeout must be positive")
	}
	if c.GitHub.RateLimit < 0 {
		cerr.Invalid = append(cerr.Invalid, "github.rate_limit must not be negative")
	}
	if c.Digest.Window <= 0 {
		cerr.Invalid = append(cerr.Invalid, "digest.window must be positive")
	}
	if len(c.Digest.Endpoints) == 0 {
		cerr.Missing = append(cerr.Missing, "digest.endpoints")
	}
	for _, e := range c.Digest.Endpoints {
		if e != EndpointReceivedEvents && e != EndpointEvents {
			cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("digest.endpoints %q (want received_events or events)", e))
		}
	}
	if c.Digest.Workers < 1 {
		cerr.Invalid = append(cerr.Invalid, "digest.workers must be at least 1")
	}
	if c.Digest.Interval < 0 {
		cerr.Invalid = append(cerr.Invalid, "digest.interval must not be negative")
	}

	switch c.Subscribers.Source {
	case SourceFile:
		if c.Subscribers.File == "" {
			cerr.Missing = append(cerr.Missing, "subscribers.file")
		}
	case SourcePostgres:
		if c.Database.URL == "" {
			cerr.Missing = append(cerr.Missing, "database.url")
		}
	case SourceRedis:
		if c.Redis.Addr == "" {
			cerr.Missing = append(cerr.Missing, "redis.addr")
		}
	default:
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("subscribers.source %q (want file, postgres or redis)", c.Subscribers.Source))
	}

	switch c.Mailer.Type {
	case MailerSMTP:
		if c.SMTP.Host == "" {
			cerr.Missing = append(cerr.Missing, "smtp.host")
		}
		if c.SMTP.Username == "" {
			cerr.Missing = append(cerr.Missing, "smtp.username")
		}
		if c.SMTP.Password == "" {
			cerr.Missing = append(cerr.Missing, "smtp.password")
		}
		if c.SMTP.FromEmail == "" {
			cerr.Missing = append(cerr.Missing, "smtp.from_email")
		}
	case MailerLog:
	default:
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("mailer.type %q (want smtp or log)", c.Mailer.Type))
	}

	if len(cerr.Missing) > 0 || len(cerr.Invalid) > 0 {
		return cerr
	}
	return nil
}
