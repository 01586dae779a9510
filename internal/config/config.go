package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	appLog "tecal/internal/log"
	"tecal/internal/schedule"
	"tecal/internal/timeedit"
)

// RuleConfig is one filter step as written in YAML:
//
//	- name: lab group A only
//	  within:
//	    - {undervisningstyp: [Laboration, Seminarium]}
//	  keep:
//	    information: Grupp A
//
// Each map in Within is one OR-group: an event is in the group if it matches
// any value of any field. Groups are intersected. Keep entries must all match.
type RuleConfig struct {
	Name   string              `yaml:"name,omitempty" json:"name,omitempty"`
	Within []map[string]Values `yaml:"within,omitempty" json:"within,omitempty"`
	Keep   map[string]string   `yaml:"keep,omitempty" json:"keep,omitempty"`
}

// Values is one or more alternatives for a field. YAML accepts a scalar or
// a sequence.
type Values []string

func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*v = Values{s}
	case yaml.SequenceNode:
		var ss []string
		if err := node.Decode(&ss); err != nil {
			return err
		}
		*v = ss
	default:
		return fmt.Errorf("line %d: expected a value or a list of values", node.Line)
	}
	return nil
}

func (v Values) MarshalYAML() (any, error) {
	if len(v) == 1 {
		return v[0], nil
	}
	return []string(v), nil
}

// Config is the top-level tecal configuration.
type Config struct {
	// Input is a TimeEdit export path or an http(s) URL.
	Input string `yaml:"input" json:"input"`

	// Output is the Google Calendar CSV target.
	Output string `yaml:"output" json:"output"`

	// ICSOutput, if set, also writes an iCalendar file.
	ICSOutput string `yaml:"ics_output,omitempty" json:"ics_output,omitempty"`

	// HeaderLines is the number of metadata lines above the CSV header.
	HeaderLines int `yaml:"header_lines" json:"header_lines"`

	// Timezone is the IANA zone of the export's wall-clock times (e.g.
	// "Europe/Stockholm"). Only the ICS output uses it.
	Timezone string `yaml:"timezone" json:"timezone"`

	// CacheDir holds the HTTP cache for URL inputs.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is the minimum level logged: debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Rules []RuleConfig `yaml:"rules,omitempty" json:"rules,omitempty"`
}

const defaultLogLevel = "warn"

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Input:       "schema.csv",
		Output:      "calendar.csv",
		HeaderLines: timeedit.DefaultHeaderLines,
		Timezone:    "Europe/Stockholm",
		CacheDir:    "./cache/timeedit",
		LogLevel:    defaultLogLevel,
		Rules:       []RuleConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.Output == "" {
		c.Output = "calendar.csv"
	}
	if c.HeaderLines == 0 {
		c.HeaderLines = timeedit.DefaultHeaderLines
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Stockholm"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./cache/timeedit"
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Rules == nil {
		c.Rules = []RuleConfig{}
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level resolves LogLevel.
func (c *Config) Level() (appLog.Level, error) {
	level, err := appLog.ParseLevel(c.LogLevel)
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return level, nil
}

// ReadOptions returns the reader settings for Input.
func (c *Config) ReadOptions() timeedit.ReadOptions {
	return timeedit.ReadOptions{HeaderLines: c.HeaderLines}
}

// FilterRules converts the configured rules into schedule rules. Datetime
// values that don't parse are reported with the rule's position and name.
func (c *Config) FilterRules() ([]schedule.Rule, error) {
	out := make([]schedule.Rule, 0, len(c.Rules))
	for i, rc := range c.Rules {
		r, err := rc.Rule()
		if err != nil {
			return nil, fmt.Errorf("config: rule %d (%s): %w", i+1, rc.Name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Rule converts one RuleConfig.
func (rc RuleConfig) Rule() (schedule.Rule, error) {
	r := schedule.Rule{Name: rc.Name}
	for _, group := range rc.Within {
		cs, err := groupCriteria(group)
		if err != nil {
			return schedule.Rule{}, err
		}
		r.Within = append(r.Within, cs)
	}
	keep, err := schedule.ParseCriteria(rc.Keep)
	if err != nil {
		return schedule.Rule{}, err
	}
	r.Keep = keep
	return r, nil
}

// groupCriteria flattens an OR-group into one criterion per value, fields
// in sorted order and values in the order written.
func groupCriteria(group map[string]Values) ([]schedule.Criterion, error) {
	fields := make([]string, 0, len(group))
	for f := range group {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var out []schedule.Criterion
	for _, f := range fields {
		for _, v := range group[f] {
			c, err := schedule.ParseCriterion(f, v)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// Load reads configuration from the given YAML path and normalizes it.
// Unlike Save it never creates the file; use Init for that.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	if _, err := cfg.FilterRules(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes DefaultConfig to path unless a file already exists there.
func Init(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("config: %s already exists", path)
	}
	cfg := DefaultConfig()
	cfg.Rules = []RuleConfig{{
		Name:   "example: keep only lab group A",
		Within: []map[string]Values{{"undervisningstyp": {"Laboration"}}},
		Keep:   map[string]string{"information": "Grupp A"},
	}}
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
