// Package config loads and validates the daemon's single YAML
// document: a version tag and a list of device blocks, each pairing a
// udev property matcher with an ordered rule list.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tadosappo/nasskan/internal/keycode"
	"github.com/tadosappo/nasskan/internal/rule"
)

// supportedVersion is the only schema version this binary understands;
// any other value is a fatal load error.
const supportedVersion = 1

// DefaultPath is the well-known system path the daemon reads by
// convention.
const DefaultPath = "/etc/nasskan/config.yaml"

// Config is the decoded and validated configuration: one Keymap per
// device block, paired with the udev properties that select it.
type Config struct {
	Devices []DeviceConfig
}

// DeviceConfig pairs a device matcher with the rule list that applies
// to every keyboard it matches.
type DeviceConfig struct {
	If     map[string]string
	Keymap rule.Keymap
}

// rawDocument mirrors the YAML schema byte-for-byte before key names
// and modifier names are resolved against internal/keycode.
type rawDocument struct {
	Version int         `yaml:"version"`
	Devices []rawDevice `yaml:"devices"`
}

type rawDevice struct {
	If   map[string]string `yaml:"if"`
	Then []rawRule         `yaml:"then"`
}

type rawRule struct {
	From rawFrom `yaml:"from"`
	To   rawTo   `yaml:"to"`
	Tap  *rawTap `yaml:"tap"`
}

type rawFrom struct {
	Key     string   `yaml:"key"`
	With    []string `yaml:"with"`
	Without []string `yaml:"without"`
}

type rawTo struct {
	Key  string   `yaml:"key"`
	With []string `yaml:"with"`
}

type rawTap struct {
	Key string `yaml:"key"`
}

// Load reads and validates the configuration at path, falling back to
// DefaultPath when path is empty or cannot be read. Any failure — missing file, unparseable YAML, version
// mismatch, or a keymap that fails rule.Keymap.Validate — is fatal.
func Load(path string) (*Config, error) {
	data, loadedFrom, err := readCandidates(path)
	if err != nil {
		return nil, err
	}

	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", loadedFrom, err)
	}

	if doc.Version != supportedVersion {
		return nil, fmt.Errorf("config %s: unsupported version %d, want %d", loadedFrom, doc.Version, supportedVersion)
	}

	cfg := &Config{}
	for i, rd := range doc.Devices {
		dc, err := resolveDevice(rd)
		if err != nil {
			return nil, fmt.Errorf("config %s: device %d: %w", loadedFrom, i, err)
		}
		if err := dc.Keymap.Validate(); err != nil {
			return nil, fmt.Errorf("config %s: device %d: %w", loadedFrom, i, err)
		}
		cfg.Devices = append(cfg.Devices, dc)
	}

	return cfg, nil
}

func readCandidates(path string) (data []byte, loadedFrom string, err error) {
	candidates := []string{}
	if path != "" {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, DefaultPath)

	var lastErr error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return data, candidate, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("reading config (tried %v): %w", candidates, lastErr)
}

func resolveDevice(rd rawDevice) (DeviceConfig, error) {
	keymap := make(rule.Keymap, 0, len(rd.Then))
	for i, rr := range rd.Then {
		r, err := resolveRule(rr)
		if err != nil {
			return DeviceConfig{}, fmt.Errorf("rule %d: %w", i, err)
		}
		keymap = append(keymap, r)
	}
	return DeviceConfig{If: rd.If, Keymap: keymap}, nil
}

func resolveRule(rr rawRule) (*rule.Rule, error) {
	fromKey, err := keycode.ParseKey(rr.From.Key)
	if err != nil {
		return nil, fmt.Errorf("from.key: %w", err)
	}
	fromWith, err := parseModifiers(rr.From.With)
	if err != nil {
		return nil, fmt.Errorf("from.with: %w", err)
	}
	fromWithout, err := parseModifiers(rr.From.Without)
	if err != nil {
		return nil, fmt.Errorf("from.without: %w", err)
	}

	toKey, err := keycode.ParseKey(rr.To.Key)
	if err != nil {
		return nil, fmt.Errorf("to.key: %w", err)
	}
	toWith, err := parseModifiers(rr.To.With)
	if err != nil {
		return nil, fmt.Errorf("to.with: %w", err)
	}

	r := &rule.Rule{
		From: rule.From{Key: fromKey, With: fromWith, Without: fromWithout},
		To:   rule.To{Key: toKey, With: toWith},
	}

	if rr.Tap != nil {
		tapKey, err := keycode.ParseKey(rr.Tap.Key)
		if err != nil {
			return nil, fmt.Errorf("tap.key: %w", err)
		}
		r.Tap = &rule.Tap{Key: tapKey}
	}

	return r, nil
}

func parseModifiers(names []string) ([]keycode.Modifier, error) {
	if len(names) == 0 {
		return nil, nil
	}
	mods := make([]keycode.Modifier, len(names))
	for i, name := range names {
		m, err := keycode.ParseModifier(name)
		if err != nil {
			return nil, err
		}
		mods[i] = m
	}
	return mods, nil
}
