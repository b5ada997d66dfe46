package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// errInvalid formats a consistent validation error.
func errInvalid(field string, value any) error {
	return fmt.Errorf("config: invalid %s: %v", field, value)
}

// Loader loads Config from defaults, an optional YAML file, then
// environment-variable overrides. Lookup is injectable so tests can
// supply a deterministic map instead of the real environment, following
// the teacher's config.Loader{Lookup func(string) (string, bool)}.
type Loader struct {
	Lookup func(string) (string, bool)

	// ConfigPath, if non-empty, is read as YAML and overlaid on the
	// defaults before environment overrides apply.
	ConfigPath string
}

// Load runs the full layering: defaults -> YAML file -> env overrides ->
// Validate.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := defaults()

	if l.ConfigPath != "" {
		raw, err := os.ReadFile(l.ConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", l.ConfigPath, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", l.ConfigPath, err)
		}
	}

	if err := overrideFloatChecked(l.Lookup, "PATCHHOST_AUDIO_SAMPLE_RATE", &cfg.AudioSampleRate); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "PATCHHOST_AUDIO_BLOCK_SIZE", &cfg.AudioBlockSize); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "PATCHHOST_AUDIO_INPUT_CHANNELS", &cfg.AudioInputChannels); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "PATCHHOST_AUDIO_OUTPUT_CHANNELS", &cfg.AudioOutputChannels); err != nil {
		return Config{}, err
	}
	overrideString(l.Lookup, "PATCHHOST_PATCH_PATH", &cfg.PatchPath)
	overrideString(l.Lookup, "PATCHHOST_SOUNDFONT_PATH", &cfg.SoundFontPath)
	overrideString(l.Lookup, "PATCHHOST_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "PATCHHOST_LOG_LEVEL", &cfg.LogLevel)
	if err := overrideFloatChecked(l.Lookup, "PATCHHOST_WATCHDOG_TIMEOUT_SECONDS", &cfg.WatchdogTimeoutSeconds); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "PATCHHOST_CPU_INFO_RATE", &cfg.CPUInfoRate); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideFloatChecked(lookup func(string) (string, bool), key string, target *float64) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}
