package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the collection pipeline
type Config struct {
	// Remote service and cookie credentials
	Twitter TwitterConfig `yaml:"twitter" json:"twitter"`

	// Where the JSON documents live
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Following-collection schedule ramp
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Per-resource collection policy
	Following CollectionConfig `yaml:"following" json:"following"`
	Timeline  CollectionConfig `yaml:"timeline" json:"timeline"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Relational export
	Export ExportConfig `yaml:"export" json:"export"`

	// Cross-process run lock
	Lock LockConfig `yaml:"lock" json:"lock"`

	// Prometheus metrics
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TwitterConfig holds remote-service configuration
type TwitterConfig struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	BearerToken string        `yaml:"bearer_token" json:"bearer_token"`
	Username    string        `yaml:"username" json:"username"`
	AuthToken   string        `yaml:"auth_token" json:"auth_token"`
	CSRFToken   string        `yaml:"csrf_token" json:"csrf_token"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// StorageConfig holds document locations. Relative file names resolve against DataDir.
type StorageConfig struct {
	DataDir        string `yaml:"data_dir" json:"data_dir"`
	FollowingFile  string `yaml:"following_file" json:"following_file"`
	TweetsFile     string `yaml:"tweets_file" json:"tweets_file"`
	SessionLogFile string `yaml:"session_log_file" json:"session_log_file"`
	ProfileFile    string `yaml:"profile_file" json:"profile_file"`
	Timezone       string `yaml:"timezone" json:"timezone"`
}

// ScheduleConfig holds the following-collection ramp bounds
type ScheduleConfig struct {
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval"`
	MaxInterval time.Duration `yaml:"max_interval" json:"max_interval"`
}

// CollectionConfig holds the paging, budget and backoff policy for one resource
type CollectionConfig struct {
	PageSize            int           `yaml:"page_size" json:"page_size"`
	TargetItems         int           `yaml:"target_items" json:"target_items"`
	Budget              time.Duration `yaml:"budget" json:"budget"`
	MaxEmptyPages       int           `yaml:"max_empty_pages" json:"max_empty_pages"`
	DelayMin            time.Duration `yaml:"delay_min" json:"delay_min"`
	DelayMax            time.Duration `yaml:"delay_max" json:"delay_max"`
	LongPauseChance     float64       `yaml:"long_pause_chance" json:"long_pause_chance"`
	LongPauseMin        time.Duration `yaml:"long_pause_min" json:"long_pause_min"`
	LongPauseMax        time.Duration `yaml:"long_pause_max" json:"long_pause_max"`
	RateLimitCooldown   time.Duration `yaml:"rate_limit_cooldown" json:"rate_limit_cooldown"`
	ServerErrorCooldown time.Duration `yaml:"server_error_cooldown" json:"server_error_cooldown"`
	UnexpectedCooldown  time.Duration `yaml:"unexpected_cooldown" json:"unexpected_cooldown"`
}

// RateLimitConfig holds client-side request pacing
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// ExportConfig holds relational export targets
type ExportConfig struct {
	SQLitePath  string `yaml:"sqlite_path" json:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`
}

// LockConfig holds the optional redis run lock
type LockConfig struct {
	RedisURL string        `yaml:"redis_url" json:"redis_url"`
	Key      string        `yaml:"key" json:"key"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
	ListenAddr   string `yaml:"listen_addr" json:"listen_addr"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Type       string `yaml:"type" json:"type"`
	AMQPURL    string `yaml:"amqp_url" json:"amqp_url"`
	Exchange   string `yaml:"exchange" json:"exchange"`
	Queue      string `yaml:"queue" json:"queue"`
	RoutingKey string `yaml:"routing_key" json:"routing_key"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			BaseURL:   "https://api.twitter.com",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Timeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir:        DefaultDataDir(),
			FollowingFile:  "following.json",
			TweetsFile:     "tweets.json",
			SessionLogFile: "logging.json",
			ProfileFile:    "user_config.json",
			Timezone:       "America/Chicago",
		},
		Schedule: ScheduleConfig{
			MinInterval: 72 * time.Hour,
			MaxInterval: 168 * time.Hour,
		},
		Following: CollectionConfig{
			PageSize:            200,
			TargetItems:         0,
			Budget:              time.Hour,
			MaxEmptyPages:       2,
			DelayMin:            2 * time.Second,
			DelayMax:            8 * time.Second,
			LongPauseChance:     0.1,
			LongPauseMin:        15 * time.Second,
			LongPauseMax:        30 * time.Second,
			RateLimitCooldown:   60 * time.Second,
			ServerErrorCooldown: 30 * time.Second,
			UnexpectedCooldown:  10 * time.Second,
		},
		Timeline: CollectionConfig{
			PageSize:            200,
			TargetItems:         200,
			Budget:              time.Hour,
			MaxEmptyPages:       0,
			DelayMin:            5 * time.Second,
			DelayMax:            30 * time.Second,
			RateLimitCooldown:   300 * time.Second,
			ServerErrorCooldown: 30 * time.Second,
			UnexpectedCooldown:  10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         1,
		},
		Export: ExportConfig{
			SQLitePath: filepath.Join(DefaultDataDir(), "twitter_data.db"),
		},
		Lock: LockConfig{
			Key: "twpipeline:run",
			TTL: 3 * time.Hour,
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			Type:       "none",
			Exchange:   "twpipeline",
			Queue:      "twpipeline.sessions",
			RoutingKey: "session.completed",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultDataDir returns $XDG_DATA_HOME/twpipeline or ~/.local/share/twpipeline
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "twpipeline")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", "twpipeline")
}

// Path resolves a storage file name against DataDir
func (s StorageConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.DataDir, name)
}

// Location loads the reference timezone
func (s StorageConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	// Remote service
	setString("TWPIPELINE_BASE_URL", &c.Twitter.BaseURL)
	setString("TWPIPELINE_BEARER_TOKEN", &c.Twitter.BearerToken)
	setString("TWPIPELINE_USERNAME", &c.Twitter.Username)
	setString("TWPIPELINE_AUTH_TOKEN", &c.Twitter.AuthToken)
	setString("TWPIPELINE_CSRF_TOKEN", &c.Twitter.CSRFToken)
	setString("TWPIPELINE_USER_AGENT", &c.Twitter.UserAgent)

	// Storage
	setString("TWPIPELINE_DATA_DIR", &c.Storage.DataDir)
	setString("TWPIPELINE_TIMEZONE", &c.Storage.Timezone)

	// Schedule
	setDuration("TWPIPELINE_SCHEDULE_MIN_INTERVAL", &c.Schedule.MinInterval)
	setDuration("TWPIPELINE_SCHEDULE_MAX_INTERVAL", &c.Schedule.MaxInterval)

	// Collection
	setInt("TWPIPELINE_FOLLOWING_MAX_EMPTY_PAGES", &c.Following.MaxEmptyPages)
	setDuration("TWPIPELINE_FOLLOWING_BUDGET", &c.Following.Budget)
	setInt("TWPIPELINE_TIMELINE_TARGET", &c.Timeline.TargetItems)
	setDuration("TWPIPELINE_TIMELINE_BUDGET", &c.Timeline.Budget)

	// Rate limiting
	setInt("TWPIPELINE_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)

	// Export, lock, metrics
	setString("TWPIPELINE_SQLITE_PATH", &c.Export.SQLitePath)
	setString("TWPIPELINE_POSTGRES_DSN", &c.Export.PostgresDSN)
	setString("TWPIPELINE_REDIS_URL", &c.Lock.RedisURL)
	setString("TWPIPELINE_METRICS_TEXTFILE", &c.Metrics.TextfilePath)
	setString("TWPIPELINE_METRICS_ADDR", &c.Metrics.ListenAddr)

	// Notifications
	if v := os.Getenv("TWPIPELINE_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	setString("TWPIPELINE_NOTIFICATION_TYPE", &c.Notifications.Type)
	setString("TWPIPELINE_AMQP_URL", &c.Notifications.AMQPURL)

	// Logging level
	setString("TWPIPELINE_LOG_LEVEL", &c.Logging.Level)
	setString("TWPIPELINE_LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".twpipeline.yaml",
		".twpipeline.yml",
		filepath.Join(home, ".config", "twpipeline", "config.yaml"),
		filepath.Join(home, ".config", "twpipeline", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Twitter.BaseURL == "" {
		errs = append(errs, errors.New("twitter base URL is required"))
	}
	if c.Twitter.Timeout <= 0 {
		errs = append(errs, errors.New("twitter timeout must be positive"))
	}

	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}
	if _, err := c.Storage.Location(); err != nil {
		errs = append(errs, err)
	}

	if c.Schedule.MinInterval <= 0 {
		errs = append(errs, errors.New("schedule min interval must be positive"))
	}
	if c.Schedule.MaxInterval <= c.Schedule.MinInterval {
		errs = append(errs, errors.New("schedule max interval must exceed min interval"))
	}

	errs = append(errs, c.Following.validate("following")...)
	errs = append(errs, c.Timeline.validate("timeline")...)

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Lock.RedisURL != "" && c.Lock.TTL <= 0 {
		errs = append(errs, errors.New("lock ttl must be positive"))
	}

	// Validate logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	// Validate notification type
	validNotifTypes := map[string]bool{
		"none": true, "desktop": true, "amqp": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.Type)] {
		errs = append(errs, errors.New("invalid notification type"))
	}
	if c.Notifications.Enabled && strings.EqualFold(c.Notifications.Type, "amqp") && c.Notifications.AMQPURL == "" {
		errs = append(errs, errors.New("amqp notifications require amqp_url"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func (cc CollectionConfig) validate(name string) []error {
	var errs []error
	if cc.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("%s page size must be positive", name))
	}
	if cc.Budget <= 0 {
		errs = append(errs, fmt.Errorf("%s budget must be positive", name))
	}
	if cc.TargetItems < 0 || cc.MaxEmptyPages < 0 {
		errs = append(errs, fmt.Errorf("%s target and max empty pages cannot be negative", name))
	}
	if cc.DelayMin < 0 || cc.DelayMax < cc.DelayMin {
		errs = append(errs, fmt.Errorf("%s delay range is invalid", name))
	}
	if cc.LongPauseChance < 0 || cc.LongPauseChance > 1 {
		errs = append(errs, fmt.Errorf("%s long pause chance must be within [0,1]", name))
	}
	if cc.LongPauseMax < cc.LongPauseMin {
		errs = append(errs, fmt.Errorf("%s long pause range is invalid", name))
	}
	if cc.RateLimitCooldown <= 0 || cc.ServerErrorCooldown <= 0 || cc.UnexpectedCooldown <= 0 {
		errs = append(errs, fmt.Errorf("%s cooldowns must be positive", name))
	}
	return errs
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dataDir, ok := flags["data-dir"].(string); ok && dataDir != "" {
		c.Storage.DataDir = dataDir
	}
	if username, ok := flags["username"].(string); ok && username != "" {
		c.Twitter.Username = username
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Twitter.BaseURL = baseURL
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if target, ok := flags["timeline-target"].(int); ok && target > 0 {
		c.Timeline.TargetItems = target
	}
	if sqlitePath, ok := flags["sqlite-path"].(string); ok && sqlitePath != "" {
		c.Export.SQLitePath = sqlitePath
	}
	if addr, ok := flags["listen-addr"].(string); ok && addr != "" {
		c.Metrics.ListenAddr = addr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".twpipeline.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
