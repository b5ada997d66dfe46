// Package config loads patch-host configuration the way the teacher
// pack's nupi adapter does: typed defaults, then a config-file overlay,
// then environment-variable overrides, each independently validated.
package config

const (
	DefaultAudioSampleRate        = 44100.0
	DefaultAudioBlockSize         = 256
	DefaultAudioInputChannels     = 2
	DefaultAudioOutputChannels    = 2
	DefaultWatchdogTimeoutSeconds = 10.0
	DefaultCPUInfoRate            = 15000
	DefaultLogLevel               = "info"
)

// Config holds everything cmd/patchhost needs to stand up a Player,
// Session, and Transport (spec.md §4.1, §4.3, §6).
type Config struct {
	// Audio/MIDI device options. cmd/patchhost passes the block size and
	// channel counts to audioio.NewPortAudioPlayer; AudioSampleRate is
	// validated but not passed to the device, which opens at 44100 Hz.
	AudioSampleRate     float64 `yaml:"audio_sample_rate"`
	AudioBlockSize      int     `yaml:"audio_block_size"`
	AudioInputChannels  int     `yaml:"audio_input_channels"`
	AudioOutputChannels int     `yaml:"audio_output_channels"`

	// PatchPath is the manifest/patch the Player loads at startup.
	PatchPath string `yaml:"patch_path"`

	// SoundFontPath, when set, selects the demo MeltyEngine
	// (pkg/engine/melty.go, build tag demo) over the SineEngine.
	SoundFontPath string `yaml:"soundfont_path"`

	// ListenAddr, when set, makes cmd/patchhost accept a single
	// transport.JSONStream connection over TCP. When empty, cmd/patchhost
	// runs the player with no session and no transport.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel string `yaml:"log_level"`

	WatchdogTimeoutSeconds float64 `yaml:"watchdog_timeout_seconds"`
	CPUInfoRate            int     `yaml:"cpu_info_rate"`
}

func defaults() Config {
	return Config{
		AudioSampleRate:        DefaultAudioSampleRate,
		AudioBlockSize:         DefaultAudioBlockSize,
		AudioInputChannels:     DefaultAudioInputChannels,
		AudioOutputChannels:    DefaultAudioOutputChannels,
		LogLevel:               DefaultLogLevel,
		WatchdogTimeoutSeconds: DefaultWatchdogTimeoutSeconds,
		CPUInfoRate:            DefaultCPUInfoRate,
	}
}

// Validate rejects configurations that would produce a nonsensical
// Player/Session (spec.md never specifies error behavior for this, so
// the core's own config loader is the boundary that enforces it before
// any audio device is opened).
func (c Config) Validate() error {
	if c.AudioSampleRate <= 0 {
		return errInvalid("audio_sample_rate", c.AudioSampleRate)
	}
	if c.AudioBlockSize <= 0 {
		return errInvalid("audio_block_size", c.AudioBlockSize)
	}
	if c.AudioInputChannels < 0 || c.AudioOutputChannels < 0 {
		return errInvalid("audio_*_channels", c.AudioInputChannels)
	}
	if c.WatchdogTimeoutSeconds <= 0 {
		return errInvalid("watchdog_timeout_seconds", c.WatchdogTimeoutSeconds)
	}
	if c.CPUInfoRate < 0 {
		return errInvalid("cpu_info_rate", c.CPUInfoRate)
	}
	return nil
}
