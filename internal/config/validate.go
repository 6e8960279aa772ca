package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.ConfigVersion != 1 {
		v.Add("configVersion must be 1")
	}

	if err := validateListen(c.Server.Listen); err != nil {
		v.Add("server.listen invalid: %v", err)
	}

	if c.Metrics.Enabled {
		if err := validateListen(c.Metrics.Listen); err != nil {
			v.Add("metrics.listen invalid: %v", err)
		}
	}

	if c.Sync.IsEnabled() {
		if c.Backend.URL == "" {
			v.Add("backend.url is required unless sync.enabled is false")
		} else if err := validateURL(c.Backend.URL); err != nil {
			v.Add("backend.url invalid: %v", err)
		}
		if !strings.HasPrefix(c.Backend.HeartbeatPath, "/") {
			v.Add("backend.heartbeatPath must start with /")
		}
		if c.Sync.Interval < minInterval {
			v.Add("sync.interval must be at least %s", minInterval)
		}
	}
	if c.Backend.Timeout < 0 {
		v.Add("backend.timeout must be >= 0")
	}
	if c.Backend.Breaker.Enabled && c.Backend.Breaker.OpenTimeout < 0 {
		v.Add("backend.breaker.openTimeout must be > 0")
	}

	if c.Severity.Minor < 0 || c.Severity.Minor > 100 {
		v.Add("severity.minor must be within 0..100")
	}
	if c.Severity.Major < 0 || c.Severity.Major > 100 {
		v.Add("severity.major must be within 0..100")
	}
	if c.Severity.Minor >= c.Severity.Major {
		v.Add("severity.minor must be lower than severity.major")
	}

	switch c.SQLi.Oracle {
	case OracleLibinjection, OracleNone:
	default:
		v.Add("sqli.oracle must be libinjection|none")
	}
	if c.SQLi.Confidence < 0 || c.SQLi.Confidence > 100 {
		v.Add("sqli.confidence must be within 0..100")
	}

	if c.Sessions.Capacity < 0 {
		v.Add("sessions.capacity must be > 0")
	}
	if c.Sessions.TTL < 0 {
		v.Add("sessions.ttl must be > 0")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		v.Add("logging.level must be debug|info|warn|error")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		v.Add("logging.format must be json|console")
	}
	if c.Logging.ReportJournal != "" {
		if err := ensureWritable(c.resolvePath(c.Logging.ReportJournal)); err != nil {
			v.Add("logging.reportJournal invalid: %v", err)
		}
	}

	regexpIDs := map[string]struct{}{}
	for i, re := range c.RegExps {
		if re.ID == "" {
			v.Add("regexps[%d].id is required", i)
		} else if _, exists := regexpIDs[re.ID]; exists {
			v.Add("regexps[%d].id %q is duplicated", i, re.ID)
		} else {
			regexpIDs[re.ID] = struct{}{}
		}

		if re.Pattern == "" {
			v.Add("regexps[%d].pattern is required", i)
		} else if _, err := regexp.Compile(re.Pattern); err != nil {
			v.Add("regexps[%d].pattern invalid: %v", i, err)
		}
	}

	ruleIDs := map[string]struct{}{}
	for i, rule := range c.Rules {
		if rule.ID == "" {
			v.Add("rules[%d].id is required", i)
		} else if _, exists := ruleIDs[rule.ID]; exists {
			v.Add("rules[%d].id %q is duplicated", i, rule.ID)
		} else {
			ruleIDs[rule.ID] = struct{}{}
		}

		for _, id := range rule.RegExps {
			if _, exists := regexpIDs[id]; !exists {
				v.Add("rules[%d].regExps references unknown regexp %q", i, id)
			}
		}
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("must include scheme and host")
	}
	return nil
}

func ensureWritable(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	file, err := os.CreateTemp(dir, "raspd-validate-*")
	if err != nil {
		return err
	}
	name := file.Name()
	if err := file.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
