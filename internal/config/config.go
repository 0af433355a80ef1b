// Package config provides the configuration schema and loader for the Mimik
// avatar reaction controller, plus the persisted keyword/emotion mapping
// file that the trigger-table synchronizer reads and rewrites.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// RecognitionMode selects the speech decoding policy.
type RecognitionMode string

const (
	// ModeFast emits the current partial hypothesis whenever it changes,
	// even before an utterance endpoint.
	ModeFast RecognitionMode = "fast"

	// ModeAccurate suppresses partials and emits only the finalized
	// hypothesis once an endpoint is detected.
	ModeAccurate RecognitionMode = "accurate"
)

// IsValid reports whether m is a recognised recognition mode.
func (m RecognitionMode) IsValid() bool {
	return m == ModeFast || m == ModeAccurate
}

// SourceName identifies an input source variant built by the source factory.
type SourceName string

const (
	SourceVoice     SourceName = "voice"
	SourceEmotion   SourceName = "emotion"
	SourceSimulated SourceName = "simulated"
)

// IsValid reports whether s is a recognised source name.
func (s SourceName) IsValid() bool {
	switch s {
	case SourceVoice, SourceEmotion, SourceSimulated:
		return true
	}
	return false
}

// Config is the root configuration, typically loaded from YAML via [Load].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Sources SourcesConfig `yaml:"sources"`
	Voice   VoiceConfig   `yaml:"voice"`
	Emotion EmotionConfig `yaml:"emotion"`
	Mapping MappingConfig `yaml:"mapping"`
}

// ServerConfig holds the status HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the address the health/metrics endpoint listens on
	// (e.g., ":9430"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// GatewayConfig describes the avatar-control endpoint connection.
type GatewayConfig struct {
	// Host and Port locate the VTube Studio style websocket API.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// TokenFile is where the authentication token is persisted between runs.
	TokenFile string `yaml:"token_file"`

	// PluginName is the plugin identity announced during authentication.
	PluginName string `yaml:"plugin_name"`

	// ActionType filters the remote action list during synchronization.
	// Default: "ToggleExpression".
	ActionType string `yaml:"action_type"`

	// MaxRetries bounds connection attempts at startup. Default: 5.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelaySeconds is the fixed backoff between attempts. Default: 5.
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`
}

// SourcesConfig selects which input sources run.
type SourcesConfig struct {
	// Enabled lists the sources to start. Defaults to ["voice"].
	Enabled []SourceName `yaml:"enabled"`

	// SimulatedPhrase is the transcript published by the simulated source.
	SimulatedPhrase string `yaml:"simulated_phrase"`

	// SimulatedDelayMs is the startup delay before the simulated phrase is
	// published. Default: 2000.
	SimulatedDelayMs int `yaml:"simulated_delay_ms"`
}

// VoiceConfig tunes the voice segmentation and recognition pipeline.
type VoiceConfig struct {
	// ModelPath points at the whisper.cpp model file (e.g., ggml-base.en.bin).
	ModelPath string `yaml:"model_path"`

	// Language is the BCP-47 language code for decoding. Default: "en".
	Language string `yaml:"language"`

	// Mode selects the decoding policy. Default: "fast".
	Mode RecognitionMode `yaml:"mode"`

	// SampleRate of the capture stream in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameMs is the VAD evaluation frame duration. Default: 30.
	FrameMs int `yaml:"frame_ms"`

	// TickMs is the decode tick interval, independent of audio arrival.
	// Default: 50.
	TickMs int `yaml:"tick_ms"`

	// VAD tunes the energy detector that gates which audio reaches the
	// recognizer.
	VAD VADConfig `yaml:"vad"`
}

// VADConfig holds the energy voice-activity detector thresholds.
type VADConfig struct {
	// SpeechThreshold is the RMS level at which frames start counting as
	// speech. Default: 0.015.
	SpeechThreshold float64 `yaml:"speech_threshold"`

	// SilenceThreshold is the RMS level below which frames count as silence
	// while in speech. Must be <= SpeechThreshold. Default: 0.008.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// SpeechFrames is the number of consecutive speech frames needed to
	// enter the speaking state. Default: 2.
	SpeechFrames int `yaml:"speech_frames"`

	// SilenceFrames is the number of consecutive silence frames needed to
	// leave the speaking state. Default: 15.
	SilenceFrames int `yaml:"silence_frames"`
}

// EmotionConfig tunes the facial emotion detection pipeline.
type EmotionConfig struct {
	// Device is the video capture device path (e.g., "/dev/video0").
	Device string `yaml:"device"`

	// ModelPath points at the emotion classifier ONNX model
	// (emotion-ferplus-8.onnx).
	ModelPath string `yaml:"model_path"`

	// CascadePath points at the pigo facefinder cascade binary.
	CascadePath string `yaml:"cascade_path"`

	// OnnxLibrary optionally overrides the onnxruntime shared library path.
	OnnxLibrary string `yaml:"onnx_library"`

	// IntervalMs is the sleep between detection iterations, throttling CPU
	// independent of camera frame rate. Default: 100.
	IntervalMs int `yaml:"interval_ms"`
}

// MappingConfig locates the persisted keyword/emotion mapping.
type MappingConfig struct {
	// Path is the YAML mapping file rewritten whenever synchronization
	// detects drift. Default: "mimik_actions.yaml".
	Path string `yaml:"path"`

	// DefaultCooldownSeconds is the cooldown assigned to newly synthesized
	// entries. Default: 60.
	DefaultCooldownSeconds int `yaml:"default_cooldown_seconds"`

	// ResyncSeconds re-runs the synchronizer periodically while the
	// application runs. 0 synchronizes only at startup.
	ResyncSeconds int `yaml:"resync_seconds"`
}
