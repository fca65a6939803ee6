package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yasirabd/suarasemar/internal/agent"
	"github.com/yasirabd/suarasemar/internal/config"
	"github.com/yasirabd/suarasemar/internal/httpserver"
	"github.com/yasirabd/suarasemar/internal/llm"
	"github.com/yasirabd/suarasemar/internal/store"
	"github.com/yasirabd/suarasemar/internal/transcript"
	"github.com/yasirabd/suarasemar/internal/tts"
	"github.com/yasirabd/suarasemar/internal/vision"
)

// deps are the process-wide collaborators shared by every connection.
type deps struct {
	services    agent.Services
	agentConfig agent.Config
	providers   httpserver.Providers
	store       store.Store
}

func (d *deps) close() {
	if d.store != nil {
		_ = d.store.Close()
	}
}

func buildDeps(ctx context.Context, cfg config.Config, logger *zap.Logger) (*deps, error) {
	st, err := buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	d := &deps{
		store: st,
		agentConfig: agent.Config{
			Temperature:         cfg.LLMTemperature,
			FollowupTemperature: cfg.FollowupTemperature,
		},
		providers: httpserver.Providers{
			Transcription: "assemblyai",
			LLM:           cfg.LLMProvider,
			TTS:           cfg.TTSProvider,
			Store:         cfg.StoreType,
		},
	}
	d.services = agent.Services{
		Transcriber: transcript.NewAssemblyAIService(cfg.AssemblyAIKey, logger.Named("transcript")),
		Settings:    store.NewSettings(st),
		Sessions:    store.NewSessions(st),
	}

	switch cfg.LLMProvider {
	case "gemini":
		g, err := llm.NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModelID)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("llm: %w", err)
		}
		d.services.LLM = g
	default:
		d.services.LLM = llm.NewCerebrasClient(cfg.CerebrasKey, cfg.CerebrasModelID)
	}

	switch cfg.TTSProvider {
	case "elevenlabs":
		d.services.Synthesizer = tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	default:
		d.services.Synthesizer = tts.NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramModel, logger.Named("tts"))
	}

	// image understanding is optional; without a key uploads report an error
	if cfg.GeminiKey != "" {
		desc, err := vision.NewGeminiDescriber(ctx, cfg.GeminiKey, cfg.VisionModelID, logger.Named("vision"))
		if err != nil {
			d.close()
			return nil, fmt.Errorf("vision: %w", err)
		}
		d.services.Describer = desc
		d.providers.Vision = "gemini"
	}
	return d, nil
}

func buildStore(cfg config.Config) (store.Store, error) {
	switch store.StoreType(cfg.StoreType) {
	case store.StoreTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return store.NewStore(store.StoreTypeRedis, store.WithRedisClient(client), store.WithRedisPrefix("suarasemar:"))
	case store.StoreTypeSupabase:
		return store.NewStore(store.StoreTypeSupabase, store.WithSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTable))
	default:
		return store.NewStore(store.StoreType(cfg.StoreType), store.WithDir(cfg.DataDir))
	}
}
