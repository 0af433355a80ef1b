package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8001
	}
	if cfg.Gateway.TokenFile == "" {
		cfg.Gateway.TokenFile = "mimik_token.txt"
	}
	if cfg.Gateway.PluginName == "" {
		cfg.Gateway.PluginName = "Mimik Controller"
	}
	if cfg.Gateway.ActionType == "" {
		cfg.Gateway.ActionType = "ToggleExpression"
	}
	if cfg.Gateway.MaxRetries == 0 {
		cfg.Gateway.MaxRetries = 5
	}
	if cfg.Gateway.RetryDelaySeconds == 0 {
		cfg.Gateway.RetryDelaySeconds = 5
	}
	if len(cfg.Sources.Enabled) == 0 {
		cfg.Sources.Enabled = []SourceName{SourceVoice}
	}
	if cfg.Sources.SimulatedDelayMs == 0 {
		cfg.Sources.SimulatedDelayMs = 2000
	}
	if cfg.Voice.Language == "" {
		cfg.Voice.Language = "en"
	}
	if cfg.Voice.Mode == "" {
		cfg.Voice.Mode = ModeFast
	}
	if cfg.Voice.SampleRate == 0 {
		cfg.Voice.SampleRate = 16000
	}
	if cfg.Voice.FrameMs == 0 {
		cfg.Voice.FrameMs = 30
	}
	if cfg.Voice.TickMs == 0 {
		cfg.Voice.TickMs = 50
	}
	if cfg.Voice.VAD.SpeechThreshold == 0 {
		cfg.Voice.VAD.SpeechThreshold = 0.015
	}
	if cfg.Voice.VAD.SilenceThreshold == 0 {
		cfg.Voice.VAD.SilenceThreshold = 0.008
	}
	if cfg.Voice.VAD.SpeechFrames == 0 {
		cfg.Voice.VAD.SpeechFrames = 2
	}
	if cfg.Voice.VAD.SilenceFrames == 0 {
		cfg.Voice.VAD.SilenceFrames = 15
	}
	if cfg.Emotion.Device == "" {
		cfg.Emotion.Device = "/dev/video0"
	}
	if cfg.Emotion.IntervalMs == 0 {
		cfg.Emotion.IntervalMs = 100
	}
	if cfg.Mapping.Path == "" {
		cfg.Mapping.Path = "mimik_actions.yaml"
	}
	if cfg.Mapping.DefaultCooldownSeconds == 0 {
		cfg.Mapping.DefaultCooldownSeconds = 60
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Gateway.Port < 1 || cfg.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port %d is out of range [1, 65535]", cfg.Gateway.Port))
	}
	if cfg.Gateway.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("gateway.max_retries must be at least 1, got %d", cfg.Gateway.MaxRetries))
	}

	seen := make(map[SourceName]bool, len(cfg.Sources.Enabled))
	for i, s := range cfg.Sources.Enabled {
		if !s.IsValid() {
			errs = append(errs, fmt.Errorf("sources.enabled[%d] %q is invalid; valid values: voice, emotion, simulated", i, s))
			continue
		}
		if seen[s] {
			errs = append(errs, fmt.Errorf("sources.enabled[%d] %q is listed twice", i, s))
		}
		seen[s] = true
	}

	if !cfg.Voice.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("voice.mode %q is invalid; valid values: fast, accurate", cfg.Voice.Mode))
	}
	if seen[SourceVoice] && cfg.Voice.ModelPath == "" {
		errs = append(errs, errors.New("voice.model_path is required when the voice source is enabled"))
	}
	if cfg.Voice.VAD.SilenceThreshold > cfg.Voice.VAD.SpeechThreshold {
		errs = append(errs, fmt.Errorf("voice.vad.silence_threshold %.4f must not exceed speech_threshold %.4f",
			cfg.Voice.VAD.SilenceThreshold, cfg.Voice.VAD.SpeechThreshold))
	}
	if seen[SourceEmotion] {
		if cfg.Emotion.ModelPath == "" {
			errs = append(errs, errors.New("emotion.model_path is required when the emotion source is enabled"))
		}
		if cfg.Emotion.CascadePath == "" {
			errs = append(errs, errors.New("emotion.cascade_path is required when the emotion source is enabled"))
		}
	}
	if seen[SourceSimulated] && cfg.Sources.SimulatedPhrase == "" {
		errs = append(errs, errors.New("sources.simulated_phrase is required when the simulated source is enabled"))
	}

	return errors.Join(errs...)
}
