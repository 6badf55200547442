// Package config loads the voice settings: built-in defaults, then an
// optional YAML file, then VOICE_MIRROR_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TTSSettings configures the synthesis adapter and the speech pipeline.
type TTSSettings struct {
	Adapter        string `yaml:"adapter"`
	Voice          string `yaml:"voice"`
	MaxChars       int    `yaml:"max_chars"`
	APIKey         string `yaml:"api_key"`
	Endpoint       string `yaml:"endpoint"`
	ModelPath      string `yaml:"model_path"`
	SettleMS       int    `yaml:"settle_ms"`
	SynthTimeoutMS int    `yaml:"synth_timeout_ms"`
	CacheDir       string `yaml:"cache_dir"`
	DiskCache      bool   `yaml:"disk_cache"`
}

// LogSettings configures logger output.
type LogSettings struct {
	Level string `yaml:"level"` // off, normal, verbose
	File  string `yaml:"file"`  // "stderr" logs to console
}

// Settings is the root configuration.
type Settings struct {
	TTS TTSSettings `yaml:"tts"`
	Log LogSettings `yaml:"log"`
}

// Default returns the built-in settings. The adapter is left empty so
// the registry's default resolution picks one at startup.
func Default() Settings {
	return Settings{
		TTS: TTSSettings{
			Adapter:        "",
			Voice:          "",
			MaxChars:       400,
			SettleMS:       300,
			SynthTimeoutMS: 0, // no per-chunk deadline
			CacheDir:       ".voice-mirror-cache",
			DiskCache:      true,
		},
		Log: LogSettings{
			Level: "normal",
			File:  ".voice-mirror-logs/voice-mirror.log",
		},
	}
}

// Load builds settings from defaults, the YAML file at path (optional,
// pass "" to skip), and environment overrides, then validates.
func Load(path string) (Settings, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Settings) {
	overrideString(&cfg.TTS.Adapter, "VOICE_MIRROR_TTS_ADAPTER")
	overrideString(&cfg.TTS.Voice, "VOICE_MIRROR_TTS_VOICE")
	overrideInt(&cfg.TTS.MaxChars, "VOICE_MIRROR_TTS_MAX_CHARS")
	overrideString(&cfg.TTS.APIKey, "VOICE_MIRROR_TTS_API_KEY")
	overrideString(&cfg.TTS.Endpoint, "VOICE_MIRROR_TTS_ENDPOINT")
	overrideString(&cfg.TTS.ModelPath, "VOICE_MIRROR_TTS_MODEL_PATH")
	overrideInt(&cfg.TTS.SettleMS, "VOICE_MIRROR_TTS_SETTLE_MS")
	overrideInt(&cfg.TTS.SynthTimeoutMS, "VOICE_MIRROR_TTS_SYNTH_TIMEOUT_MS")
	overrideString(&cfg.TTS.CacheDir, "VOICE_MIRROR_CACHE_DIR")
	overrideBool(&cfg.TTS.DiskCache, "VOICE_MIRROR_DISK_CACHE")
	overrideString(&cfg.Log.Level, "VOICE_MIRROR_LOG_LEVEL")
	overrideString(&cfg.Log.File, "VOICE_MIRROR_LOG_FILE")
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

func validate(cfg Settings) error {
	if cfg.TTS.MaxChars <= 0 {
		return errors.New("tts.max_chars must be positive")
	}
	if cfg.TTS.SettleMS < 0 {
		return errors.New("tts.settle_ms must be >= 0")
	}
	if cfg.TTS.SynthTimeoutMS < 0 {
		return errors.New("tts.synth_timeout_ms must be >= 0")
	}
	switch cfg.Log.Level {
	case "off", "normal", "verbose":
	default:
		return errors.New("log.level must be one of off|normal|verbose")
	}
	return nil
}
