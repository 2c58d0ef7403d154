// Package config loads the forms handler settings from a YAML file with
// environment overrides and reloads them when the file changes.
//
// Keys mirror the plugin's historical config.yml:
//
//	enhanced-ui: true
//	packName: FormsHandlerUI
//	violation:
//	  policy: warn            # or "disconnect"
//	  disconnect-message: Protocol violation
//	filter:
//	  mode: allow             # or "deny"
//	  packets: [115, 129]
//	redis:
//	  addr: localhost:6379    # empty disables the Redis reporter
//	  stream: formshandler:violations
//
// Every key can be overridden by the FORMS_* environment variable named in
// its struct tag. Slices use ';' as separator.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is matched by every validation failure returned from Load.
var ErrInvalid = errors.New("invalid config")

// Action selects what happens to a client that commits a protocol
// violation.
type Action string

const (
	// ActionWarn reports the violation, resets the session and keeps the
	// connection.
	ActionWarn Action = "warn"
	// ActionDisconnect reports the violation and drops the connection.
	ActionDisconnect Action = "disconnect"
)

func (a *Action) UnmarshalText(b []byte) error {
	switch v := Action(strings.ToLower(strings.TrimSpace(string(b)))); v {
	case ActionWarn, ActionDisconnect:
		*a = v
		return nil
	default:
		return fmt.Errorf("%w: unknown violation policy %q", ErrInvalid, b)
	}
}

// FilterMode selects how Filter.Packets is read.
type FilterMode string

const (
	// FilterAllow permits only the listed packets while a form is open.
	FilterAllow FilterMode = "allow"
	// FilterDeny rejects only the listed packets while a form is open.
	FilterDeny FilterMode = "deny"
)

func (m *FilterMode) UnmarshalText(b []byte) error {
	switch v := FilterMode(strings.ToLower(strings.TrimSpace(string(b)))); v {
	case FilterAllow, FilterDeny:
		*m = v
		return nil
	default:
		return fmt.Errorf("%w: unknown filter mode %q", ErrInvalid, b)
	}
}

type Config struct {
	// EnhancedUI sends visual pseudo-buttons with the markers understood by
	// the resource pack. ENV: FORMS_ENHANCED_UI
	EnhancedUI bool `yaml:"enhanced-ui" env:"FORMS_ENHANCED_UI,strict"`
	// PackName is the resource pack rendering enhanced forms.
	// ENV: FORMS_PACK_NAME
	PackName string `yaml:"packName" env:"FORMS_PACK_NAME"`
	// Listen is the address the example websocket server binds.
	// ENV: FORMS_LISTEN
	Listen string `yaml:"listen" env:"FORMS_LISTEN"`

	Violation Violation `yaml:"violation"`
	Filter    Filter    `yaml:"filter"`
	Redis     Redis     `yaml:"redis"`
}

type Violation struct {
	// ENV: FORMS_VIOLATION_POLICY
	Policy Action `yaml:"policy" env:"FORMS_VIOLATION_POLICY"`
	// ENV: FORMS_DISCONNECT_MESSAGE
	DisconnectMessage string `yaml:"disconnect-message" env:"FORMS_DISCONNECT_MESSAGE"`
}

type Filter struct {
	// ENV: FORMS_FILTER_MODE
	Mode FilterMode `yaml:"mode" env:"FORMS_FILTER_MODE"`
	// Packets lists packet IDs. When empty the built-in list of the mode
	// applies. ENV: FORMS_FILTER_PACKETS
	Packets []uint32 `yaml:"packets" env:"FORMS_FILTER_PACKETS"`
}

type Redis struct {
	// ENV: FORMS_REDIS_ADDR
	Addr string `yaml:"addr" env:"FORMS_REDIS_ADDR"`
	// ENV: FORMS_REDIS_STREAM
	Stream string `yaml:"stream" env:"FORMS_REDIS_STREAM"`
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		EnhancedUI: true,
		PackName:   "FormsHandlerUI",
		Listen:     "127.0.0.1:19133",
		Violation: Violation{
			Policy:            ActionWarn,
			DisconnectMessage: "Protocol violation",
		},
		Filter: Filter{Mode: FilterAllow},
		Redis:  Redis{Stream: "formshandler:violations"},
	}
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := decodeYAML(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("config env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	switch c.Violation.Policy {
	case ActionWarn, ActionDisconnect:
	default:
		return fmt.Errorf("%w: violation.policy %q", ErrInvalid, c.Violation.Policy)
	}
	switch c.Filter.Mode {
	case FilterAllow, FilterDeny:
	default:
		return fmt.Errorf("%w: filter.mode %q", ErrInvalid, c.Filter.Mode)
	}
	if c.EnhancedUI && c.PackName == "" {
		return fmt.Errorf("%w: packName is required when enhanced-ui is enabled", ErrInvalid)
	}
	if c.Redis.Addr != "" && c.Redis.Stream == "" {
		return fmt.Errorf("%w: redis.stream is required when redis.addr is set", ErrInvalid)
	}
	return nil
}
