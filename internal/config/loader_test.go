package config_test

import (
	"strings"
	"testing"

	"github.com/ayanero/mimik/internal/config"
)

func TestLoadFromReader_DefaultsApplied(t *testing.T) {
	t.Parallel()
	yaml := `
voice:
  model_path: models/ggml-base.en.bin
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level default: got %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Gateway.Port != 8001 {
		t.Errorf("gateway.port default: got %d, want 8001", cfg.Gateway.Port)
	}
	if cfg.Voice.Mode != config.ModeFast {
		t.Errorf("voice.mode default: got %q, want fast", cfg.Voice.Mode)
	}
	if cfg.Voice.FrameMs != 30 || cfg.Voice.TickMs != 50 {
		t.Errorf("voice frame/tick defaults: got %d/%d, want 30/50", cfg.Voice.FrameMs, cfg.Voice.TickMs)
	}
	if len(cfg.Sources.Enabled) != 1 || cfg.Sources.Enabled[0] != config.SourceVoice {
		t.Errorf("sources.enabled default: got %v, want [voice]", cfg.Sources.Enabled)
	}
	if cfg.Mapping.DefaultCooldownSeconds != 60 {
		t.Errorf("mapping cooldown default: got %d, want 60", cfg.Mapping.DefaultCooldownSeconds)
	}
}

func TestValidate_VoiceRequiresModelPath(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
sources:
  enabled: [voice]
`))
	if err == nil {
		t.Fatal("expected error for voice source without model_path, got nil")
	}
	if !strings.Contains(err.Error(), "voice.model_path") {
		t.Errorf("error should mention voice.model_path, got: %v", err)
	}
}

func TestValidate_EmotionRequiresModels(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
sources:
  enabled: [emotion]
`))
	if err == nil {
		t.Fatal("expected error for emotion source without models, got nil")
	}
	if !strings.Contains(err.Error(), "emotion.model_path") {
		t.Errorf("error should mention emotion.model_path, got: %v", err)
	}
	if !strings.Contains(err.Error(), "emotion.cascade_path") {
		t.Errorf("error should mention emotion.cascade_path, got: %v", err)
	}
}

func TestValidate_InvalidMode(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
sources:
  enabled: [simulated]
  simulated_phrase: hello
voice:
  mode: turbo
`))
	if err == nil {
		t.Fatal("expected error for invalid voice.mode, got nil")
	}
	if !strings.Contains(err.Error(), "voice.mode") {
		t.Errorf("error should mention voice.mode, got: %v", err)
	}
}

func TestValidate_VADThresholdOrdering(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
sources:
  enabled: [simulated]
  simulated_phrase: hello
voice:
  vad:
    speech_threshold: 0.01
    silence_threshold: 0.02
`))
	if err == nil {
		t.Fatal("expected error for silence_threshold > speech_threshold, got nil")
	}
}

func TestValidate_DuplicateSource(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
sources:
  enabled: [simulated, simulated]
  simulated_phrase: hello
`))
	if err == nil {
		t.Fatal("expected error for duplicate source, got nil")
	}
	if !strings.Contains(err.Error(), "twice") {
		t.Errorf("error should mention the duplicate, got: %v", err)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
sources:
  enabled: [simulated]
  simulated_phrase: hello
banana: true
`))
	if err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}
