// Package config resolves stash settings from defaults, the optional
// config.json in the state directory, environment variables and CLI flags,
// in that order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	stasherr "github.com/stashd/stash/internal/errors"
)

// Environment variables honored like the predecessor tool.
const (
	EnvDBPath             = "STASH_DB_PATH"
	EnvExcludedApps       = "STASH_EXCLUDED_APPS"
	EnvSensitiveRegex     = "STASH_SENSITIVE_REGEX"
	EnvSensitiveRegexFile = "STASH_SENSITIVE_REGEX_FILE"
	EnvClipboardState     = "STASH_CLIPBOARD_STATE"
)

// Config holds resolved application settings.
type Config struct {
	// MaxItems caps the number of active history entries.
	MaxItems int64 `json:"max_items,omitempty"`

	// MaxDedupeSearch bounds the dedup probe to the most recent N active
	// rows. Zero or negative disables dedup.
	MaxDedupeSearch int64 `json:"max_dedupe_search,omitempty"`

	// PreviewWidth bounds preview strings in display cells.
	PreviewWidth int `json:"preview_width,omitempty"`

	// DBPath overrides the state-directory database location.
	DBPath string `json:"db_path,omitempty"`

	// ExcludedApps lists window classes whose captures are refused.
	ExcludedApps []string `json:"excluded_apps,omitempty"`

	// SensitiveRegex rejects textual payloads it matches. The credential
	// file, when present, takes precedence over this value.
	SensitiveRegex string `json:"sensitive_regex,omitempty"`

	// MinSize rejects payloads strictly shorter than this many bytes.
	MinSize int `json:"min_size,omitempty"`

	// MaxSize rejects payloads larger than this many bytes.
	MaxSize int `json:"max_size,omitempty"`

	// AcceptMime, when non-empty, is a mime allowlist.
	AcceptMime []string `json:"accept_mime,omitempty"`

	// MimePreference is the default watch selection preference:
	// any, text or image.
	MimePreference string `json:"mime_preference,omitempty"`

	// ExpireAfter, when set, stamps every watch capture with a TTL.
	// Duration syntax, e.g. "90s", "2h", "7d".
	ExpireAfter string `json:"expire_after,omitempty"`

	// ReapInterval is the watch-loop reaper period.
	ReapInterval time.Duration `json:"-"`

	// ReadDeadline bounds a single selection read.
	ReadDeadline time.Duration `json:"-"`

	// DBMaxOpenConns / DBMaxIdleConns tune the SQLite pool; zero keeps
	// the database/sql defaults.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// JSON carriers for the duration fields above.
	ReapIntervalRaw string `json:"reap_interval,omitempty"`
	ReadDeadlineRaw string `json:"read_deadline,omitempty"`
}

// DefaultConfig returns the built-in defaults, matching the predecessor's.
func DefaultConfig() *Config {
	return &Config{
		MaxItems:        750,
		MaxDedupeSearch: 100,
		PreviewWidth:    100,
		MinSize:         1,
		MaxSize:         5 * 1000 * 1000,
		ReapInterval:    30 * time.Second,
		ReadDeadline:    250 * time.Millisecond,
	}
}

// StateDir returns the stash state directory per the XDG convention.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "stash")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "stash")
	}
	return filepath.Join(home, ".local", "state", "stash")
}

// DefaultDBPath returns the database location honoring STASH_DB_PATH.
func DefaultDBPath() string {
	if p := os.Getenv(EnvDBPath); p != "" {
		return p
	}
	return filepath.Join(StateDir(), "stash.db")
}

// Load reads baseDir/config.json merged over the defaults. A missing file
// yields the defaults.
func Load(baseDir string) (*Config, error) {
	raw, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg := Merge(DefaultConfig(), raw)
	if err := cfg.resolveDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv resolves the full precedence chain short of CLI flags:
// defaults < config.json < environment.
func LoadWithEnv(baseDir string) (*Config, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if p := os.Getenv(EnvDBPath); p != "" {
		cfg.DBPath = p
	}
	if csv := os.Getenv(EnvExcludedApps); csv != "" {
		cfg.ExcludedApps = SplitCSV(csv)
	}
	if re := os.Getenv(EnvSensitiveRegex); re != "" {
		cfg.SensitiveRegex = re
	}
}

// ResolveSensitiveRegex applies the credential-file override: when the
// service manager provides a file path, its contents win over the
// environment and config values. Read once at start.
func (c *Config) ResolveSensitiveRegex() error {
	path := os.Getenv(EnvSensitiveRegexFile)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return stasherr.NewIo(fmt.Sprintf("read sensitive regex file %s", path), err)
	}
	c.SensitiveRegex = strings.TrimSpace(string(data))
	return nil
}

// loadFileRaw returns a zero-valued config when the file does not exist.
func loadFileRaw(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, stasherr.NewIo("read config", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, stasherr.NewIo("parse config", err)
	}
	return cfg, nil
}

// Merge combines base and overlay configs. Overlay scalars win when
// non-zero; slices win when non-empty.
func Merge(base, overlay *Config) *Config {
	result := *base
	if overlay.MaxItems != 0 {
		result.MaxItems = overlay.MaxItems
	}
	if overlay.MaxDedupeSearch != 0 {
		result.MaxDedupeSearch = overlay.MaxDedupeSearch
	}
	if overlay.PreviewWidth != 0 {
		result.PreviewWidth = overlay.PreviewWidth
	}
	if overlay.DBPath != "" {
		result.DBPath = overlay.DBPath
	}
	if len(overlay.ExcludedApps) != 0 {
		result.ExcludedApps = overlay.ExcludedApps
	}
	if overlay.SensitiveRegex != "" {
		result.SensitiveRegex = overlay.SensitiveRegex
	}
	if overlay.MinSize != 0 {
		result.MinSize = overlay.MinSize
	}
	if overlay.MaxSize != 0 {
		result.MaxSize = overlay.MaxSize
	}
	if len(overlay.AcceptMime) != 0 {
		result.AcceptMime = overlay.AcceptMime
	}
	if overlay.MimePreference != "" {
		result.MimePreference = overlay.MimePreference
	}
	if overlay.ExpireAfter != "" {
		result.ExpireAfter = overlay.ExpireAfter
	}
	if overlay.DBMaxOpenConns != 0 {
		result.DBMaxOpenConns = overlay.DBMaxOpenConns
	}
	if overlay.DBMaxIdleConns != 0 {
		result.DBMaxIdleConns = overlay.DBMaxIdleConns
	}
	if overlay.ReapIntervalRaw != "" {
		result.ReapIntervalRaw = overlay.ReapIntervalRaw
	}
	if overlay.ReadDeadlineRaw != "" {
		result.ReadDeadlineRaw = overlay.ReadDeadlineRaw
	}
	return &result
}

func (c *Config) resolveDurations() error {
	if c.ReapIntervalRaw != "" {
		d, err := ParseDuration(c.ReapIntervalRaw)
		if err != nil {
			return err
		}
		c.ReapInterval = d
	}
	if c.ReadDeadlineRaw != "" {
		d, err := ParseDuration(c.ReadDeadlineRaw)
		if err != nil {
			return err
		}
		c.ReadDeadline = d
	}
	return nil
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ParseDuration parses the decimal-plus-unit syntax used by --expire-after:
// suffixes s, m, h, d. Zero and negative durations are a usage error.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, stasherr.NewUsage("invalid duration %q: want <number><s|m|h|d>", s)
	}
	unit := s[len(s)-1]
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, stasherr.NewUsage("invalid duration %q: want <number><s|m|h|d>", s)
	}
	var d time.Duration
	switch unit {
	case 's':
		d = time.Duration(n) * time.Second
	case 'm':
		d = time.Duration(n) * time.Minute
	case 'h':
		d = time.Duration(n) * time.Hour
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	default:
		return 0, stasherr.NewUsage("invalid duration unit %q: want s, m, h or d", string(unit))
	}
	if d <= 0 {
		return 0, stasherr.NewUsage("duration must be positive, got %q", s)
	}
	return d, nil
}
