package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Wake    WakeConfig    `yaml:"wake"`
	Capture CaptureConfig `yaml:"capture"`
	STT     STTConfig     `yaml:"stt"`
	LLM     LLMConfig     `yaml:"llm"`
	TTS     TTSConfig     `yaml:"tts"`
	Audio   AudioConfig   `yaml:"audio"`
	Duck    DuckConfig    `yaml:"duck"`
	Notify  NotifyConfig  `yaml:"notify"`
	Session SessionConfig `yaml:"session"`
	Journal JournalConfig `yaml:"journal"`
	Hub     HubConfig     `yaml:"hub"`
	IPC     IPCConfig     `yaml:"ipc"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type WakeConfig struct {
	Mode        string  `yaml:"mode"` // porcupine, socket
	AccessKey   string  `yaml:"access_key"`
	Keyword     string  `yaml:"keyword"`
	KeywordPath string  `yaml:"keyword_path"`
	ModelPath   string  `yaml:"model_path"`
	Sensitivity float32 `yaml:"sensitivity"`
}

type CaptureConfig struct {
	Mode       string `yaml:"mode"` // mic, file
	File       string `yaml:"file"`
	SampleRate int    `yaml:"sample_rate"`
	DurationMS int    `yaml:"duration_ms"`
}

type STTConfig struct {
	Mode      string `yaml:"mode"` // exec, bindings
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
	InputPath string `yaml:"input_path"`
	Threads   int    `yaml:"threads"`

	// Decoding knobs for mode=bindings. Zero values keep whisper's defaults.
	InitialPrompt string `yaml:"initial_prompt"`
	BeamSize      int    `yaml:"beam_size"`
	MaxTokens     int    `yaml:"max_tokens"`
}

type LLMConfig struct {
	Mode        string  `yaml:"mode"` // ollama, openai, exec
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	Command     string  `yaml:"command"`
	APIKey      string  `yaml:"api_key"`
	Proxy       string  `yaml:"proxy"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMS   int     `yaml:"timeout_ms"`
}

type TTSConfig struct {
	Command    string `yaml:"command"`
	OutputPath string `yaml:"output_path"`
}

type AudioConfig struct {
	DefaultSink       string   `yaml:"default_sink"`
	BluetoothPatterns []string `yaml:"bluetooth_patterns"`
	Pactl             string   `yaml:"pactl"`
	Aplay             string   `yaml:"aplay"`
	Paplay            string   `yaml:"paplay"`
}

type DuckConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Factor    float64  `yaml:"factor"`
	MinVolume int      `yaml:"min_volume"`
	FadeMS    int      `yaml:"fade_ms"`
	SelfNames []string `yaml:"self_names"`
}

type NotifyConfig struct {
	Earcon string `yaml:"earcon"`
}

type SessionConfig struct {
	BluetoothKeywords []string      `yaml:"bluetooth_keywords"`
	SpeakerKeywords   []string      `yaml:"speaker_keywords"`
	StatusKeywords    []string      `yaml:"status_keywords"`
	ExitPhrases       []string      `yaml:"exit_phrases"`
	PromptPrefix      string        `yaml:"prompt_prefix"`
	MaxTokens         int           `yaml:"max_tokens"`
	MaxFailures       int           `yaml:"max_failures"`
	Phrases           PhrasesConfig `yaml:"phrases"`
}

// PhrasesConfig holds everything the assistant says on its own.
type PhrasesConfig struct {
	BluetoothOn      string `yaml:"bluetooth_on"`
	BluetoothMissing string `yaml:"bluetooth_missing"`
	Speakers         string `yaml:"speakers"`
	StatusBluetooth  string `yaml:"status_bluetooth"`
	StatusSpeakers   string `yaml:"status_speakers"`
	Farewell         string `yaml:"farewell"`
}

type JournalConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type HubConfig struct {
	URL          string `yaml:"url"`
	Shard        string `yaml:"shard"`
	ReconnectSec uint   `yaml:"reconnect_sec"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Wake: WakeConfig{
			Mode:        "porcupine",
			KeywordPath: "models/aeris_fr_linux.ppn",
			ModelPath:   "models/porcupine_params_fr.pv",
			Sensitivity: 0.5,
		},
		Capture: CaptureConfig{
			Mode:       "mic",
			SampleRate: 16000,
			DurationMS: 5000,
		},
		STT: STTConfig{
			Mode:      "exec",
			Command:   "./whisper.cpp/main",
			ModelPath: "whisper.cpp/models/ggml-tiny.bin",
			Language:  "fr",
			InputPath: "temp.wav",
		},
		LLM: LLMConfig{
			Mode:        "ollama",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			Temperature: 0.7,
			TimeoutMS:   120000,
		},
		TTS: TTSConfig{
			Command:    "piper --model models/fr_FR-siwis-medium.onnx --output_file {output}",
			OutputPath: "response.wav",
		},
		Audio: AudioConfig{
			DefaultSink:       "alsa_output",
			BluetoothPatterns: []string{"bluez_sink", "bluez_output"},
			Pactl:             "pactl",
			Aplay:             "aplay",
			Paplay:            "paplay",
		},
		Duck: DuckConfig{
			Enabled:   false,
			Factor:    0.3,
			MinVolume: 10,
			FadeMS:    200,
			SelfNames: []string{"aplay", "paplay"},
		},
		Session: SessionConfig{
			BluetoothKeywords: []string{"bluetooth"},
			SpeakerKeywords:   []string{"haut-parleur"},
			StatusKeywords:    []string{"sortie"},
			ExitPhrases:       []string{"quit", "exit", "stop", "au revoir"},
			PromptPrefix:      "Réponds uniquement en français : ",
			MaxTokens:         200,
			MaxFailures:       5,
			Phrases: PhrasesConfig{
				BluetoothOn:      "Je suis maintenant connectée à ton enceinte Bluetooth.",
				BluetoothMissing: "Je n'ai trouvé aucune enceinte Bluetooth connectée.",
				Speakers:         "Je repasse sur les haut-parleurs du Raspberry Pi.",
				StatusBluetooth:  "La sortie audio actuelle est une enceinte Bluetooth.",
				StatusSpeakers:   "La sortie audio actuelle est les haut-parleurs du Raspberry Pi.",
				Farewell:         "Au revoir, à bientôt !",
			},
		},
		Journal: JournalConfig{
			Enabled:       false,
			Path:          "./data/aeris.db",
			RetentionDays: 30,
		},
		Hub: HubConfig{
			Shard:        "aeris",
			ReconnectSec: 5,
		},
		IPC: IPCConfig{SocketPath: "/tmp/aeris.sock"},
	}
}

// Load reads the YAML file at path on top of Default and applies AERIS_*
// environment overrides. A missing file is tolerated unless required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file: %w", err)
			}
		case os.IsNotExist(err) && !required:
		case os.IsNotExist(err):
			return cfg, fmt.Errorf("config file not found: %w", err)
		default:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Log.Level, "AERIS_LOG_LEVEL")
	overrideString(&cfg.Wake.Mode, "AERIS_WAKE_MODE")
	overrideString(&cfg.Wake.AccessKey, "PICOVOICE_ACCESS_KEY")
	overrideString(&cfg.Wake.AccessKey, "AERIS_WAKE_ACCESS_KEY")
	overrideString(&cfg.Wake.Keyword, "AERIS_WAKE_KEYWORD")
	overrideString(&cfg.Wake.KeywordPath, "AERIS_WAKE_KEYWORD_PATH")
	overrideString(&cfg.Wake.ModelPath, "AERIS_WAKE_MODEL_PATH")
	overrideString(&cfg.Capture.Mode, "AERIS_CAPTURE_MODE")
	overrideString(&cfg.Capture.File, "AERIS_CAPTURE_FILE")
	overrideInt(&cfg.Capture.DurationMS, "AERIS_CAPTURE_DURATION_MS")
	overrideString(&cfg.STT.Mode, "AERIS_STT_MODE")
	overrideString(&cfg.STT.Command, "AERIS_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "AERIS_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "AERIS_STT_LANGUAGE")
	overrideString(&cfg.STT.InitialPrompt, "AERIS_STT_INITIAL_PROMPT")
	overrideString(&cfg.LLM.Mode, "AERIS_LLM_MODE")
	overrideString(&cfg.LLM.Endpoint, "AERIS_LLM_ENDPOINT")
	overrideString(&cfg.LLM.Model, "AERIS_LLM_MODEL")
	overrideString(&cfg.LLM.Command, "AERIS_LLM_COMMAND")
	overrideString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.LLM.Proxy, "AERIS_LLM_PROXY")
	overrideFloat(&cfg.LLM.Temperature, "AERIS_LLM_TEMPERATURE")
	overrideString(&cfg.TTS.Command, "AERIS_TTS_COMMAND")
	overrideString(&cfg.Audio.DefaultSink, "AERIS_AUDIO_DEFAULT_SINK")
	overrideStringSlice(&cfg.Audio.BluetoothPatterns, "AERIS_AUDIO_BLUETOOTH_PATTERNS")
	overrideBool(&cfg.Duck.Enabled, "AERIS_DUCK_ENABLED")
	overrideString(&cfg.Notify.Earcon, "AERIS_NOTIFY_EARCON")
	overrideInt(&cfg.Session.MaxTokens, "AERIS_SESSION_MAX_TOKENS")
	overrideInt(&cfg.Session.MaxFailures, "AERIS_SESSION_MAX_FAILURES")
	overrideBool(&cfg.Journal.Enabled, "AERIS_JOURNAL_ENABLED")
	overrideString(&cfg.Journal.Path, "AERIS_JOURNAL_PATH")
	overrideString(&cfg.Hub.URL, "AERIS_HUB_URL")
	overrideString(&cfg.IPC.SocketPath, "AERIS_IPC_SOCKET")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be one of debug|info|warn|error")
	}
	switch cfg.Wake.Mode {
	case "porcupine":
		if cfg.Wake.Keyword == "" && cfg.Wake.KeywordPath == "" {
			return errors.New("wake.keyword or wake.keyword_path must be set when mode=porcupine")
		}
		if cfg.Wake.Sensitivity < 0 || cfg.Wake.Sensitivity > 1 {
			return errors.New("wake.sensitivity must be within [0, 1]")
		}
	case "socket":
		if cfg.IPC.SocketPath == "" {
			return errors.New("ipc.socket_path must be set when wake.mode=socket")
		}
	default:
		return errors.New("wake.mode must be one of porcupine|socket")
	}
	switch cfg.Capture.Mode {
	case "mic":
	case "file":
		if cfg.Capture.File == "" {
			return errors.New("capture.file must be set when mode=file")
		}
	default:
		return errors.New("capture.mode must be one of mic|file")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.DurationMS <= 0 {
		return errors.New("capture.duration_ms must be positive")
	}
	switch cfg.STT.Mode {
	case "exec":
		if cfg.STT.Command == "" {
			return errors.New("stt.command must be set when mode=exec")
		}
		if cfg.STT.InputPath == "" {
			return errors.New("stt.input_path must not be empty")
		}
	case "bindings":
		if cfg.STT.ModelPath == "" {
			return errors.New("stt.model_path must be set when mode=bindings")
		}
	default:
		return errors.New("stt.mode must be one of exec|bindings")
	}
	if cfg.STT.BeamSize < 0 || cfg.STT.MaxTokens < 0 {
		return errors.New("stt.beam_size and stt.max_tokens must not be negative")
	}
	switch cfg.LLM.Mode {
	case "ollama":
		if cfg.LLM.Endpoint == "" {
			return errors.New("llm.endpoint must be set when mode=ollama")
		}
	case "openai":
		if cfg.LLM.APIKey == "" && cfg.LLM.Endpoint == "" {
			return errors.New("llm.api_key or llm.endpoint must be set when mode=openai")
		}
	case "exec":
		if cfg.LLM.Command == "" {
			return errors.New("llm.command must be set when mode=exec")
		}
	default:
		return errors.New("llm.mode must be one of ollama|openai|exec")
	}
	if cfg.TTS.Command == "" {
		return errors.New("tts.command must not be empty")
	}
	if cfg.TTS.OutputPath == "" {
		return errors.New("tts.output_path must not be empty")
	}
	if cfg.Audio.DefaultSink == "" {
		return errors.New("audio.default_sink must not be empty")
	}
	if len(cfg.Audio.BluetoothPatterns) == 0 {
		return errors.New("audio.bluetooth_patterns must not be empty")
	}
	if cfg.Duck.Enabled && (cfg.Duck.Factor < 0 || cfg.Duck.Factor > 1) {
		return errors.New("duck.factor must be within [0, 1]")
	}
	if len(cfg.Session.ExitPhrases) == 0 {
		return errors.New("session.exit_phrases must not be empty")
	}
	if cfg.Session.MaxTokens <= 0 {
		return errors.New("session.max_tokens must be positive")
	}
	if cfg.Session.MaxFailures < 0 {
		return errors.New("session.max_failures must be >= 0")
	}
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return errors.New("journal.path must be set when journal is enabled")
	}
	if cfg.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	return nil
}
