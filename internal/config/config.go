// Package config loads runtime settings: defaults, then an optional .env
// file, then an optional TOML file, then MAILMARKS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/MrSnakeDoc/mailmarks/internal/redis"
	"github.com/MrSnakeDoc/mailmarks/internal/utils"
)

// Mail providers.
const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

const redacted = "***REDACTED***"

type Config struct {
	// Pipeline
	ContentDir     string        `toml:"content_dir"`     // where bookmark files are written and read
	OutputPath     string        `toml:"output_path"`     // rendered index page
	ViewsDir       string        `toml:"views_dir"`       // views.md and views.html
	PollInterval   time.Duration `toml:"poll_interval"`   // delay between ingestion batches
	ProcessedLabel string        `toml:"processed_label"` // label marking ingested messages
	MaxResults     int           `toml:"max_results"`     // messages listed per batch
	RunOnce        bool          `toml:"run_once"`        // ingest a single batch then exit
	StrictDatetime bool          `toml:"strict_datetime"` // malformed datetime aborts the index build

	// Mail provider
	Provider         string `toml:"provider"`          // "gmail" | "imap"
	GmailCredentials string `toml:"gmail_credentials"` // OAuth client secrets JSON
	GmailToken       string `toml:"gmail_token"`       // persisted OAuth token JSON
	GmailQueryLabel  string `toml:"gmail_query_label"` // label listed for new messages
	IMAPServer       string `toml:"imap_server"`
	IMAPPort         int    `toml:"imap_port"`
	IMAPUsername     string `toml:"imap_username"`
	IMAPPassword     string `toml:"imap_password"`
	IMAPFolder       string `toml:"imap_folder"`

	// Redis ledger (empty address = disabled)
	RedisAddr           string        `toml:"redis_addr"`
	RedisUser           string        `toml:"redis_username"`
	RedisPassword       string        `toml:"redis_password"`
	RedisDB             int           `toml:"redis_db"`
	RedisDT             time.Duration `toml:"redis_dial_timeout"`
	RedisRT             time.Duration `toml:"redis_read_timeout"`
	RedisWT             time.Duration `toml:"redis_write_timeout"`
	RedisMaxWait        time.Duration `toml:"redis_max_wait"`
	RedisPingTimeout    time.Duration `toml:"redis_ping_timeout"`
	RedisPoolSize       int           `toml:"redis_pool_size"`
	RedisConnectTimeout time.Duration `toml:"redis_connect_timeout"`
	RedisRetryInterval  time.Duration `toml:"redis_retry_interval"`
	RedisWarnThreshold  int           `toml:"redis_warn_threshold"`

	// Logging
	LogLevel  string `toml:"log_level"`  // "debug" | "info" | "warn" | "error"
	PrettyLog bool   `toml:"pretty_log"` // true => zap dev (color), false => zap prod (JSON)

	// Preview server
	ListenPort      string        `toml:"listen_port"`      // ex: ":8080"
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"` // ex: 5s
	AllowedCIDRS    []string      `toml:"allowed_cidrs"`    // restrict POST /reload to these IPs/CIDRs
	TrustProxy      bool          `toml:"trust_proxy"`      // trust X-Forwarded-For headers
	RebuildInterval time.Duration `toml:"rebuild_interval"` // periodic index rebuild, 0 = off
	WatchContent    bool          `toml:"watch_content"`    // rebuild when content files change
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		ContentDir:     "vault/inbox",
		OutputPath:     "docs/index.html",
		ViewsDir:       "docs",
		PollInterval:   300 * time.Second,
		ProcessedLabel: "Processed",
		MaxResults:     10,

		Provider:         ProviderGmail,
		GmailCredentials: "secrets/credentials.json",
		GmailToken:       "secrets/token.json",
		GmailQueryLabel:  "SENT",
		IMAPPort:         993,
		IMAPFolder:       "Sent",

		RedisDT:             5 * time.Second,
		RedisRT:             3 * time.Second,
		RedisWT:             3 * time.Second,
		RedisMaxWait:        10 * time.Second,
		RedisPingTimeout:    5 * time.Second,
		RedisPoolSize:       10,
		RedisConnectTimeout: 30 * time.Second,
		RedisRetryInterval:  2 * time.Second,
		RedisWarnThreshold:  3,

		LogLevel:  "info",
		PrettyLog: true,

		ListenPort:      ":8080",
		ShutdownTimeout: 5 * time.Second,
		TrustProxy:      false,
		RebuildInterval: 5 * time.Minute,
		WatchContent:    true,
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("MAILMARKS_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	// Pipeline
	c.ContentDir = getenv("MAILMARKS_CONTENT_DIR", c.ContentDir)
	c.OutputPath = getenv("MAILMARKS_OUTPUT_PATH", c.OutputPath)
	c.ViewsDir = getenv("MAILMARKS_VIEWS_DIR", c.ViewsDir)
	c.PollInterval = mustDuration("MAILMARKS_POLL_INTERVAL", c.PollInterval)
	c.ProcessedLabel = getenv("MAILMARKS_PROCESSED_LABEL", c.ProcessedLabel)
	c.MaxResults = getenvInt("MAILMARKS_MAX_RESULTS", c.MaxResults)
	c.RunOnce = mustBool("MAILMARKS_RUN_ONCE", c.RunOnce)
	c.StrictDatetime = mustBool("MAILMARKS_STRICT_DATETIME", c.StrictDatetime)

	// Mail provider
	c.Provider = strings.ToLower(getenv("MAILMARKS_PROVIDER", c.Provider))
	c.GmailCredentials = getenv("MAILMARKS_GMAIL_CREDENTIALS", c.GmailCredentials)
	c.GmailToken = getenv("MAILMARKS_GMAIL_TOKEN", c.GmailToken)
	c.GmailQueryLabel = getenv("MAILMARKS_GMAIL_QUERY_LABEL", c.GmailQueryLabel)
	c.IMAPServer = getenv("MAILMARKS_IMAP_SERVER", c.IMAPServer)
	c.IMAPPort = getenvInt("MAILMARKS_IMAP_PORT", c.IMAPPort)
	c.IMAPUsername = getenv("MAILMARKS_IMAP_USERNAME", c.IMAPUsername)
	c.IMAPPassword = getenv("MAILMARKS_IMAP_PASSWORD", c.IMAPPassword)
	c.IMAPFolder = getenv("MAILMARKS_IMAP_FOLDER", c.IMAPFolder)

	// Redis
	c.RedisAddr = getenv("MAILMARKS_REDIS_ADDR", c.RedisAddr)
	c.RedisUser = getenv("MAILMARKS_REDIS_USERNAME", c.RedisUser)
	c.RedisPassword = getenv("MAILMARKS_REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getenvInt("MAILMARKS_REDIS_DB", c.RedisDB)
	c.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", c.RedisDT)
	c.RedisRT = mustDuration("REDIS_READ_TIMEOUT", c.RedisRT)
	c.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", c.RedisWT)
	c.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", c.RedisMaxWait)
	c.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", c.RedisPingTimeout)
	c.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", c.RedisPoolSize)
	c.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", c.RedisConnectTimeout)
	c.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", c.RedisRetryInterval)
	c.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", c.RedisWarnThreshold)

	// Logging
	c.LogLevel = getenv("MAILMARKS_LOG_LEVEL", c.LogLevel)
	c.PrettyLog = mustBool("MAILMARKS_PRETTY_LOG", c.PrettyLog)

	// Preview server
	c.ListenPort = getenv("MAILMARKS_LISTEN_PORT", c.ListenPort)
	c.ShutdownTimeout = mustDuration("MAILMARKS_SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	if v := os.Getenv("MAILMARKS_ALLOWED_CIDRS"); v != "" {
		c.AllowedCIDRS = parseAllowedIPs(v)
	}
	c.TrustProxy = mustBool("MAILMARKS_TRUST_PROXY", c.TrustProxy)
	c.RebuildInterval = mustDuration("MAILMARKS_REBUILD_INTERVAL", c.RebuildInterval)
	c.WatchContent = mustBool("MAILMARKS_WATCH_CONTENT", c.WatchContent)
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ContentDir) == "" {
		errs = append(errs, errors.New("content directory is empty"))
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		errs = append(errs, errors.New("output path is empty"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be > 0, got %v", c.ShutdownTimeout))
	}
	if c.RebuildInterval < 0 {
		errs = append(errs, fmt.Errorf("rebuild interval must be >= 0, got %v", c.RebuildInterval))
	}
	for _, entry := range c.AllowedCIDRS {
		if !validIPOrCIDR(entry) {
			errs = append(errs, fmt.Errorf("invalid allowed CIDR or IP %q", entry))
		}
	}

	return errors.Join(errs...)
}

// ValidateIngest checks the settings the ingest command needs on top of
// Validate.
func (c *Config) ValidateIngest() error {
	var errs []error

	if c.PollInterval <= 0 && !c.RunOnce {
		errs = append(errs, fmt.Errorf("poll interval must be > 0, got %v", c.PollInterval))
	}
	if strings.TrimSpace(c.ProcessedLabel) == "" {
		errs = append(errs, errors.New("processed label is empty"))
	}
	if c.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("max results must be > 0, got %d", c.MaxResults))
	}

	switch c.Provider {
	case ProviderGmail:
		if c.GmailCredentials == "" {
			errs = append(errs, errors.New("gmail credentials file is required"))
		}
		if c.GmailToken == "" {
			errs = append(errs, errors.New("gmail token file is required"))
		}
	case ProviderIMAP:
		if c.IMAPServer == "" {
			errs = append(errs, errors.New("MAILMARKS_IMAP_SERVER is required for the imap provider"))
		}
		if c.IMAPUsername == "" || c.IMAPPassword == "" {
			errs = append(errs, errors.New("imap username and password are required"))
		}
		if c.IMAPPort <= 0 || c.IMAPPort > 65535 {
			errs = append(errs, fmt.Errorf("invalid imap port %d", c.IMAPPort))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q (want %q or %q)", c.Provider, ProviderGmail, ProviderIMAP))
	}

	return errors.Join(errs...)
}

// RedisEnabled reports whether the ingestion ledger is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// RedisOptions returns the connection settings of the ledger.
func (c *Config) RedisOptions() redis.ConnectOptions {
	return redis.ConnectOptions{
		Addr:           c.RedisAddr,
		User:           c.RedisUser,
		Password:       c.RedisPassword,
		DB:             c.RedisDB,
		DialTimeout:    c.RedisDT,
		ReadTimeout:    c.RedisRT,
		WriteTimeout:   c.RedisWT,
		PoolSize:       c.RedisPoolSize,
		ConnectTimeout: c.RedisConnectTimeout,
		RetryInterval:  c.RedisRetryInterval,
		MaxWait:        c.RedisMaxWait,
		PingTimeout:    c.RedisPingTimeout,
		WarnThreshold:  c.RedisWarnThreshold,
	}
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = redacted
	}
	if cp.RedisUser != "" {
		cp.RedisUser = redacted
	}
	if cp.IMAPPassword != "" {
		cp.IMAPPassword = redacted
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare numbers are seconds.
		if s, err := strconv.Atoi(v); err == nil {
			return time.Duration(s) * time.Second
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func validIPOrCIDR(s string) bool {
	_, ok := utils.ParsePrefix(s)
	return ok
}
