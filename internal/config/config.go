// Package config loads process settings from the environment, an optional
// .env file and an optional YAML overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress  string `yaml:"http_address"`
	AuthPassword string `yaml:"auth_password"`

	AssemblyAIKey string `yaml:"assemblyai_api_key"`

	LLMProvider     string `yaml:"llm_provider"`
	CerebrasKey     string `yaml:"cerebras_api_key"`
	CerebrasModelID string `yaml:"cerebras_model_id"`
	GeminiKey       string `yaml:"gemini_api_key"`
	GeminiModelID   string `yaml:"gemini_model_id"`
	VisionModelID   string `yaml:"vision_model_id"`

	TTSProvider       string `yaml:"tts_provider"`
	DeepgramKey       string `yaml:"deepgram_api_key"`
	DeepgramModel     string `yaml:"deepgram_model"`
	ElevenLabsKey     string `yaml:"elevenlabs_api_key"`
	ElevenLabsVoiceID string `yaml:"elevenlabs_voice_id"`

	StoreType     string `yaml:"store_type"`
	DataDir       string `yaml:"data_dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	SupabaseURL   string `yaml:"supabase_url"`
	SupabaseKey   string `yaml:"supabase_service_role_key"`
	SupabaseTable string `yaml:"supabase_table"`

	IdleTimeout         time.Duration `yaml:"idle_timeout"`
	LLMTemperature      float64       `yaml:"llm_temperature"`
	FollowupTemperature float64       `yaml:"followup_temperature"`
}

// Load reads environment variables and returns Config with sane defaults.
// A missing .env file is not an error.
func Load(logger *zap.Logger) Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}

	cfg := Config{
		HTTPAddress:  env("HTTP_ADDRESS", ":8080"),
		AuthPassword: os.Getenv("AUTH_PASSWORD"),

		AssemblyAIKey: os.Getenv("ASSEMBLYAI_API_KEY"),

		LLMProvider:     env("LLM_PROVIDER", "cerebras"),
		CerebrasKey:     os.Getenv("CEREBRAS_API_KEY"),
		CerebrasModelID: env("CEREBRAS_MODEL_ID", "gpt-oss-120b"),
		GeminiKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModelID:   env("GEMINI_MODEL_ID", "gemini-2.0-flash"),
		VisionModelID:   env("VISION_MODEL_ID", "gemini-2.0-flash"),

		TTSProvider:       env("TTS_PROVIDER", "deepgram"),
		DeepgramKey:       os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramModel:     env("DEEPGRAM_MODEL", "aura-2-thalia-en"),
		ElevenLabsKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),

		StoreType:     env("STORE_TYPE", "file"),
		DataDir:       env("DATA_DIR", "prompts"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt(logger, "REDIS_DB", 0),
		SupabaseURL:   os.Getenv("SUPABASE_URL"),
		SupabaseKey:   os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseTable: env("SUPABASE_TABLE", "voice_records"),

		IdleTimeout:         envDuration(logger, "IDLE_TIMEOUT", 30*time.Second),
		LLMTemperature:      envFloat(logger, "LLM_TEMPERATURE", 0.5),
		FollowupTemperature: envFloat(logger, "FOLLOWUP_TEMPERATURE", 0.7),
	}
	cfg.warnMissing(logger)
	return cfg
}

// LoadFile loads the environment and overlays the YAML document at path.
// Keys absent from the document keep their environment value.
func LoadFile(path string, logger *zap.Logger) (Config, error) {
	cfg := Load(logger)
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks provider names.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "cerebras", "gemini":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.TTSProvider {
	case "deepgram", "elevenlabs":
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("IDLE_TIMEOUT must be positive")
	}
	return nil
}

func (c Config) warnMissing(logger *zap.Logger) {
	if c.AssemblyAIKey == "" {
		logger.Warn("ASSEMBLYAI_API_KEY not set - transcription will not work")
	}
	if c.LLMProvider == "cerebras" && c.CerebrasKey == "" {
		logger.Warn("CEREBRAS_API_KEY not set - LLM will not work")
	}
	if c.GeminiKey == "" {
		logger.Warn("GEMINI_API_KEY not set - vision is unavailable")
	}
	if c.TTSProvider == "deepgram" && c.DeepgramKey == "" {
		logger.Warn("DEEPGRAM_API_KEY not set - TTS will not work")
	}
	if c.TTSProvider == "elevenlabs" && (c.ElevenLabsKey == "" || c.ElevenLabsVoiceID == "") {
		logger.Warn("ELEVENLABS_API_KEY or ELEVENLABS_VOICE_ID not set - TTS will not work")
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(logger *zap.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("invalid integer, using default", zap.String("key", key), zap.String("value", v))
		return def
	}
	return n
}

func envFloat(logger *zap.Logger, key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("invalid number, using default", zap.String("key", key), zap.String("value", v))
		return def
	}
	return f
}

func envDuration(logger *zap.Logger, key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("invalid duration, using default", zap.String("key", key), zap.String("value", v))
		return def
	}
	return d
}
