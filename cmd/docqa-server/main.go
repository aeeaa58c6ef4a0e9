package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"docqa/internal/config"
	"docqa/internal/embedding"
	embopenai "docqa/internal/embedding/openai"
	"docqa/internal/generator"
	genollama "docqa/internal/generator/ollama"
	genopenai "docqa/internal/generator/openai"
	"docqa/internal/index/chroma"
	"docqa/internal/pipeline"
	"docqa/internal/retriever"
	"docqa/internal/server"
	"docqa/internal/session"
	sessionmemory "docqa/internal/session/memory"
	sessionredis "docqa/internal/session/redis"
	"docqa/internal/vocab"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docqa/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	voc := vocab.New(cfg.Vocab)

	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			log.Fatalf("openai embedder config missing")
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
		emb = client
	default:
		log.Fatalf("server requires the openai embedder, got %q", cfg.Embedder.Type)
	}

	if cfg.Index.Type != "chroma" || cfg.Index.Chroma == nil {
		log.Fatalf("server requires a chroma index config")
	}
	idx := chroma.NewClient(chroma.Config{
		URL:        cfg.Index.Chroma.URL,
		Collection: cfg.Index.Chroma.Collection,
		Timeout:    time.Duration(cfg.Index.Chroma.TimeoutSecs) * time.Second,
	})

	var gen generator.Generator
	switch cfg.Generator.Type {
	case "ollama", "":
		ocfg := genollama.Config{}
		if c := cfg.Generator.Ollama; c != nil {
			ocfg = genollama.Config{
				BaseURL:        c.BaseURL,
				Model:          c.Model,
				Temperature:    c.Temperature,
				NumPredict:     c.NumPredict,
				TopP:           c.TopP,
				ConnectTimeout: time.Duration(c.ConnectTimeoutSecs) * time.Second,
				ReadTimeout:    time.Duration(c.ReadTimeoutSecs) * time.Second,
			}
		}
		gen = genollama.NewClient(ocfg)
	case "openai":
		if cfg.Generator.OpenAI == nil {
			log.Fatalf("openai generator config missing")
		}
		c := cfg.Generator.OpenAI
		client, err := genopenai.NewClient(genopenai.Config{
			BaseURL:        c.BaseURL,
			APIKeyEnv:      c.APIKeyEnv,
			Model:          c.Model,
			Temperature:    c.Temperature,
			MaxTokens:      c.MaxTokens,
			ConnectTimeout: time.Duration(c.ConnectTimeoutSecs) * time.Second,
			ReadTimeout:    time.Duration(c.ReadTimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("openai generator init failed: %v", err)
		}
		gen = client
	case "none":
	default:
		log.Fatalf("unknown generator: %s", cfg.Generator.Type)
	}

	var sessions session.Store
	switch cfg.Session.Type {
	case "memory", "":
		sessions = sessionmemory.New()
	case "redis":
		rcfg := sessionredis.Config{Addr: "127.0.0.1:6379"}
		if c := cfg.Session.Redis; c != nil {
			rcfg = sessionredis.Config{
				Addr: c.Addr,
				DB:   c.DB,
				TTL:  time.Duration(c.TTLSecs) * time.Second,
			}
			if c.PasswordEnv != "" {
				rcfg.Password = os.Getenv(c.PasswordEnv)
			}
		}
		store := sessionredis.New(rcfg)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Ping(pingCtx); err != nil {
			cancel()
			log.Fatalf("redis unreachable: %v", err)
		}
		cancel()
		sessions = store
	default:
		log.Fatalf("unknown session store: %s", cfg.Session.Type)
	}

	rt := retriever.New(idx, emb, voc, retriever.Options{
		DisableKeywordRerank: cfg.Pipeline.DisableKeywordRerank,
		DisableLexicalBonus:  cfg.Pipeline.DisableLexicalBonus,
		SectionLabels:        cfg.Pipeline.SectionLabels,
	})
	pipe := pipeline.New(rt, gen, voc, pipeline.Options{
		MaxRetries:                      cfg.Pipeline.MaxRetries,
		SkipRetrievalForObjectQuestions: !cfg.Pipeline.KeepRetrievalForObjQ,
		DefaultTopK:                     cfg.Pipeline.TopK,
	})

	handler := server.NewRouter(&server.Container{Pipeline: pipe, Sessions: sessions})

	readTimeout := time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second
	if writeTimeout == 0 {
		writeTimeout = 180 * time.Second
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	go func() {
		log.Printf("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
