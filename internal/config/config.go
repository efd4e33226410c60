// Package config loads and saves the roster YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"roster-cli/internal/logging"
	"roster-cli/internal/model"
	"roster-cli/internal/order"
	"roster-cli/internal/store"
)

const (
	MinColumns     = 1
	MaxColumns     = 6
	DefaultColumns = 3
	DefaultAddr    = "127.0.0.1:8340"
)

type Config struct {
	Collection string        `yaml:"collection"`
	Store      StoreConfig   `yaml:"store"`
	Display    DisplayConfig `yaml:"display"`
	Logging    LoggingConfig `yaml:"logging"`
	Web        WebConfig     `yaml:"web"`
}

type StoreConfig struct {
	// Backend is sqlite|pebble|memory.
	Backend string `yaml:"backend"`
	// Path is the SQLite file or Pebble directory; empty uses the data dir.
	Path string `yaml:"path,omitempty"`
}

// DisplayConfig mirrors the settings page of the team grid.
type DisplayConfig struct {
	SortOrder       string `yaml:"sort_order"`
	Columns         int    `yaml:"columns"`
	CardStyle       string `yaml:"card_style"`
	HoverStyle      string `yaml:"hover_style"`
	FocusStyle      string `yaml:"focus_style"`
	ShowFocusOnLoad bool   `yaml:"show_focus_on_load"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

func Default() *Config {
	return &Config{
		Collection: model.DefaultCollection,
		Store:      StoreConfig{Backend: string(store.KindSQLite)},
		Display: DisplayConfig{
			SortOrder:  string(order.SortManual),
			Columns:    DefaultColumns,
			CardStyle:  "style1",
			HoverStyle: "shadow",
			FocusStyle: "modal",
		},
		Logging: LoggingConfig{Level: "warn", Encoding: "console"},
		Web:     WebConfig{Addr: DefaultAddr},
	}
}

// Dir is $XDG_CONFIG_HOME/roster, falling back to ~/.config/roster.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); v != "" {
		return filepath.Join(v, "roster"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "roster"), nil
}

// Path resolves the config file: ROSTER_CONFIG wins over the default location.
func Path() (string, error) {
	if v := strings.TrimSpace(os.Getenv("ROSTER_CONFIG")); v != "" {
		return v, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path (defaults when it does not exist), applies env overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("ROSTER_BACKEND")); v != "" {
		c.Store.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("ROSTER_DB")); v != "" {
		c.Store.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("ROSTER_COLLECTION")); v != "" {
		c.Collection = v
	}
	if v := strings.TrimSpace(os.Getenv("ROSTER_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("ROSTER_ADDR")); v != "" {
		c.Web.Addr = v
	}
}

// Save writes the config atomically, creating the directory when needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return atomicWriteFile(dir, "config.yaml.*.tmp", path, data, 0o644)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func (c *Config) Validate() error {
	if _, err := store.ParseKind(c.Store.Backend); err != nil {
		return err
	}
	if _, err := store.NormalizeCollection(c.Collection); err != nil {
		return err
	}
	if _, err := order.ParseSortMode(c.Display.SortOrder); err != nil {
		return err
	}
	if c.Display.Columns < MinColumns || c.Display.Columns > MaxColumns {
		return model.ValidationError{Field: "display.columns", Reason: fmt.Sprintf("must be between %d and %d", MinColumns, MaxColumns)}
	}
	if err := oneOf("display.card_style", c.Display.CardStyle, "style1", "style2"); err != nil {
		return err
	}
	if err := oneOf("display.hover_style", c.Display.HoverStyle, "shadow", "grow"); err != nil {
		return err
	}
	if err := oneOf("display.focus_style", c.Display.FocusStyle, "modal", "anchor"); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return model.ValidationError{Field: "logging.level", Reason: err.Error()}
	}
	if err := oneOf("logging.encoding", c.Logging.Encoding, "console", "json"); err != nil {
		return err
	}
	if strings.TrimSpace(c.Web.Addr) == "" {
		return model.ValidationError{Field: "web.addr", Reason: "must not be empty"}
	}
	return nil
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return model.ValidationError{Field: field, Reason: "expected " + strings.Join(allowed, "|")}
}

// Keys lists the settable keys in a stable order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(c *Config, v string) error{
	"collection":    func(c *Config, v string) error { c.Collection = v; return nil },
	"store.backend": func(c *Config, v string) error { c.Store.Backend = v; return nil },
	"store.path":    func(c *Config, v string) error { c.Store.Path = v; return nil },
	"display.sort_order": func(c *Config, v string) error {
		m, err := order.ParseSortMode(v)
		if err != nil {
			return err
		}
		c.Display.SortOrder = string(m)
		return nil
	},
	"display.columns": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return model.ValidationError{Field: "display.columns", Reason: "must be an integer"}
		}
		c.Display.Columns = n
		return nil
	},
	"display.card_style":  func(c *Config, v string) error { c.Display.CardStyle = v; return nil },
	"display.hover_style": func(c *Config, v string) error { c.Display.HoverStyle = v; return nil },
	"display.focus_style": func(c *Config, v string) error { c.Display.FocusStyle = v; return nil },
	"display.show_focus_on_load": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return model.ValidationError{Field: "display.show_focus_on_load", Reason: "must be true or false"}
		}
		c.Display.ShowFocusOnLoad = b
		return nil
	},
	"logging.level":    func(c *Config, v string) error { c.Logging.Level = v; return nil },
	"logging.encoding": func(c *Config, v string) error { c.Logging.Encoding = v; return nil },
	"web.addr":         func(c *Config, v string) error { c.Web.Addr = v; return nil },
}

// Set assigns one dotted key and re-validates. On error c is left unchanged.
func (c *Config) Set(key, value string) error {
	fn, ok := setters[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return model.ValidationError{Field: "key", Reason: fmt.Sprintf("unknown setting %q", key)}
	}
	next := *c
	if err := fn(&next, strings.TrimSpace(value)); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Get returns one dotted key formatted as a string.
func (c *Config) Get(key string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "collection":
		return c.Collection, nil
	case "store.backend":
		return c.Store.Backend, nil
	case "store.path":
		return c.Store.Path, nil
	case "display.sort_order":
		return c.Display.SortOrder, nil
	case "display.columns":
		return strconv.Itoa(c.Display.Columns), nil
	case "display.card_style":
		return c.Display.CardStyle, nil
	case "display.hover_style":
		return c.Display.HoverStyle, nil
	case "display.focus_style":
		return c.Display.FocusStyle, nil
	case "display.show_focus_on_load":
		return strconv.FormatBool(c.Display.ShowFocusOnLoad), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.encoding":
		return c.Logging.Encoding, nil
	case "web.addr":
		return c.Web.Addr, nil
	default:
		return "", model.ValidationError{Field: "key", Reason: fmt.Sprintf("unknown setting %q", key)}
	}
}

func (c *Config) SortMode() order.SortMode {
	m, err := order.ParseSortMode(c.Display.SortOrder)
	if err != nil {
		return order.SortManual
	}
	return m
}

func (c *Config) StoreOptions() (store.Options, error) {
	kind, err := store.ParseKind(c.Store.Backend)
	if err != nil {
		return store.Options{}, err
	}
	return store.Options{Kind: kind, Path: c.Store.Path}, nil
}
