// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"net/netip"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName                    string   `mapstructure:"appname"`
	AppPort                    string   `mapstructure:"appport"`
	Environment                string   `mapstructure:"environment"`
	LogLevel                   LogLevel `mapstructure:"loglevel"`
	PrivateKey                 string   `mapstructure:"privatekey"`
	LoginSessionTimeoutSeconds int      `mapstructure:"loginsessiontimeoutseconds"`
	AdminEmail                 string   `mapstructure:"adminemail"`
	PublicBaseURL              string   `mapstructure:"publicbaseurl"`

	// Visitor tracking
	VisitSessionTimeoutSeconds int    `mapstructure:"visitsessiontimeoutseconds"`
	ScanSessionTimeoutSeconds  int    `mapstructure:"scansessiontimeoutseconds"`
	QRAcquisitionTag           string `mapstructure:"qracquisitiontag"`

	// Reverse proxy. ProxyHeader names the header carrying the client address;
	// when TrustedProxies is set it is only honoured for requests arriving from
	// one of those addresses or CIDR ranges.
	ProxyHeader    string   `mapstructure:"proxyheader"`
	TrustedProxies []string `mapstructure:"trustedproxies"`
	trustedRanges  []netip.Prefix

	// Analytics
	TimelineDays              int `mapstructure:"timelinedays"`
	AnalyticsQueryConcurrency int `mapstructure:"analyticsqueryconcurrency"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Data retention settings. Zero keeps events forever.
	EventRetentionDays int `mapstructure:"eventretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "slimmers")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("loginsessiontimeoutseconds", 604800) // 1 week
		v.SetDefault("publicbaseurl", "http://localhost:3000")
		v.SetDefault("visitsessiontimeoutseconds", 1800)
		v.SetDefault("scansessiontimeoutseconds", 86400)
		v.SetDefault("qracquisitiontag", "qr_code")
		v.SetDefault("proxyheader", "X-Forwarded-For")
		v.SetDefault("trustedproxies", []string{})
		v.SetDefault("timelinedays", 30)
		v.SetDefault("analyticsqueryconcurrency", 4)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("publicdir", "public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("eventretentiondays", 0)

		v.BindEnv("appname", "SLIMMERS_APP_NAME")
		v.BindEnv("appport", "SLIMMERS_APP_PORT")
		v.BindEnv("environment", "SLIMMERS_ENV")
		v.BindEnv("loglevel", "SLIMMERS_LOG_LEVEL")
		v.BindEnv("privatekey", "SLIMMERS_PRIVATE_KEY")
		v.BindEnv("loginsessiontimeoutseconds", "SLIMMERS_LOGIN_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("adminemail", "SLIMMERS_ADMIN_EMAIL")
		v.BindEnv("publicbaseurl", "SLIMMERS_PUBLIC_BASE_URL")
		v.BindEnv("visitsessiontimeoutseconds", "SLIMMERS_VISIT_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("scansessiontimeoutseconds", "SLIMMERS_SCAN_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("qracquisitiontag", "SLIMMERS_QR_ACQUISITION_TAG")
		v.BindEnv("proxyheader", "SLIMMERS_PROXY_HEADER")
		v.BindEnv("trustedproxies", "SLIMMERS_TRUSTED_PROXIES")
		v.BindEnv("timelinedays", "SLIMMERS_TIMELINE_DAYS")
		v.BindEnv("analyticsqueryconcurrency", "SLIMMERS_ANALYTICS_QUERY_CONCURRENCY")
		v.BindEnv("storagepath", "SLIMMERS_STORAGE_PATH")
		v.BindEnv("publicdir", "SLIMMERS_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "SLIMMERS_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "SLIMMERS_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "SLIMMERS_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "SLIMMERS_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "SLIMMERS_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "SLIMMERS_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "SLIMMERS_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "SLIMMERS_DB_MAX_IDLE_CONNS")
		v.BindEnv("eventretentiondays", "SLIMMERS_EVENT_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique SLIMMERS_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.DatabaseType != SQLiteDatabase {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.QRAcquisitionTag == "" {
		return fmt.Errorf("qr acquisition tag cannot be empty")
	}
	if c.TimelineDays <= 0 {
		return fmt.Errorf("timeline days must be positive, got %d", c.TimelineDays)
	}
	if c.AnalyticsQueryConcurrency <= 0 {
		return fmt.Errorf("analytics query concurrency must be positive, got %d", c.AnalyticsQueryConcurrency)
	}
	if c.VisitSessionTimeoutSeconds <= 0 || c.ScanSessionTimeoutSeconds <= 0 {
		return fmt.Errorf("visitor session timeouts must be positive")
	}
	if c.EventRetentionDays < 0 {
		return fmt.Errorf("event retention days cannot be negative, got %d", c.EventRetentionDays)
	}

	ranges, err := ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		return err
	}
	c.trustedRanges = ranges

	return nil
}

// ParseTrustedProxies turns addresses and CIDR ranges into prefixes. Bare
// addresses become single-host prefixes.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var ranges []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy range %q: %w", entry, err)
			}
			ranges = append(ranges, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy address %q: %w", entry, err)
		}
		addr = addr.Unmap()
		ranges = append(ranges, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return ranges, nil
}

// TrustedProxyRanges returns the parsed TrustedProxies.
func (c *Config) TrustedProxyRanges() []netip.Prefix {
	return c.trustedRanges
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetLoginSessionTimeout returns the login session timeout in seconds.
func (c *Config) GetLoginSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// Test runs use a single connection; otherwise 10 so the analytics fan-out can read concurrently.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	if c.Environment == Test {
		return 1
	}
	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}
	if c.Environment == Test {
		return 1
	}
	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
