package config

import "time"

type Config struct {
	ConfigVersion int            `yaml:"configVersion"`
	Agent         AgentConfig    `yaml:"agent"`
	Server        ServerConfig   `yaml:"server"`
	Backend       BackendConfig  `yaml:"backend"`
	Sync          SyncConfig     `yaml:"sync"`
	Severity      SeverityConfig `yaml:"severity"`
	SQLi          SQLiConfig     `yaml:"sqli"`
	Sessions      SessionsConfig `yaml:"sessions"`
	RegExps       []RegExp       `yaml:"regexps"`
	Rules         []Rule         `yaml:"rules"`
	Logging       LoggingConfig  `yaml:"logging"`
	Metrics       MetricsConfig  `yaml:"metrics"`

	baseDir string `yaml:"-"`
}

type AgentConfig struct {
	ID string `yaml:"id"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type BackendConfig struct {
	URL           string        `yaml:"url"`
	HeartbeatPath string        `yaml:"heartbeatPath"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	Breaker       BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"maxFailures"`
	OpenTimeout time.Duration `yaml:"openTimeout"`
}

// SyncConfig controls the heartbeat. The heartbeat runs unless Enabled is
// explicitly false.
type SyncConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func (s SyncConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

func (s *SyncConfig) Disable() {
	off := false
	s.Enabled = &off
}

// SeverityConfig holds the inclusive upper confidence bounds of the MINOR
// and MAJOR tiers. Anything above Major is CRITICAL.
type SeverityConfig struct {
	Minor int `yaml:"minor"`
	Major int `yaml:"major"`
}

type SQLiConfig struct {
	Oracle     string `yaml:"oracle"`
	Confidence int    `yaml:"confidence"`
}

type SessionsConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

type RegExp struct {
	ID      string `yaml:"id"`
	Pattern string `yaml:"pattern"`
}

type Rule struct {
	ID          string   `yaml:"id"`
	IsEnabled   bool     `yaml:"isEnabled"`
	ShouldBlock bool     `yaml:"shouldBlock"`
	RegExps     []string `yaml:"regExps"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	ReportJournal string `yaml:"reportJournal"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

const (
	OracleLibinjection = "libinjection"
	OracleNone         = "none"
)

const (
	defaultListen        = "127.0.0.1:7070"
	defaultHeartbeatPath = "/api/v1/heartbeat"
	defaultTimeout       = 10 * time.Second
	defaultMaxFailures   = 5
	defaultOpenTimeout   = 60 * time.Second
	defaultInterval      = 30 * time.Second
	minInterval          = time.Second
	defaultMinor         = 60
	defaultMajor         = 90
	defaultConfidence    = 95
	defaultCapacity      = 10000
	defaultSessionTTL    = 5 * time.Minute
)

func (c *Config) BaseDir() string {
	return c.baseDir
}

func (c *Config) ResolvePath(path string) string {
	return c.resolvePath(path)
}

// ApplyDefaults fills zero values with the agent defaults. Explicit values
// are left alone so Validate can still reject them.
func (c *Config) ApplyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Backend.HeartbeatPath == "" {
		c.Backend.HeartbeatPath = defaultHeartbeatPath
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = defaultTimeout
	}
	if c.Backend.Breaker.MaxFailures == 0 {
		c.Backend.Breaker.MaxFailures = defaultMaxFailures
	}
	if c.Backend.Breaker.OpenTimeout == 0 {
		c.Backend.Breaker.OpenTimeout = defaultOpenTimeout
	}
	if c.Sync.Enabled == nil {
		on := true
		c.Sync.Enabled = &on
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = defaultInterval
	}
	if c.Severity.Minor == 0 && c.Severity.Major == 0 {
		c.Severity.Minor = defaultMinor
		c.Severity.Major = defaultMajor
	}
	if c.SQLi.Oracle == "" {
		c.SQLi.Oracle = OracleLibinjection
	}
	if c.SQLi.Confidence == 0 {
		c.SQLi.Confidence = defaultConfidence
	}
	if c.Sessions.Capacity == 0 {
		c.Sessions.Capacity = defaultCapacity
	}
	if c.Sessions.TTL == 0 {
		c.Sessions.TTL = defaultSessionTTL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}
