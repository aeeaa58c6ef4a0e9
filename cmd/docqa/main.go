package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	embopenai "docqa/internal/embedding/openai"
	"docqa/internal/embedding/tfidf"
	"docqa/internal/generator"
	genollama "docqa/internal/generator/ollama"
	genopenai "docqa/internal/generator/openai"
	"docqa/internal/index"
	"docqa/internal/index/chroma"
	indexmemory "docqa/internal/index/memory"
	"docqa/internal/ingest"
	"docqa/internal/pipeline"
	"docqa/internal/retriever"
	"docqa/internal/tui"
	"docqa/internal/vocab"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, question, objectsPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docqa/config.yaml if not provided)")
	flag.StringVar(&question, "q", "", "Ask a single question and print the JSON result instead of starting the console")
	flag.StringVar(&objectsPath, "objects", "", "Path to a JSON file with the session object list")
	flag.Parse()
	inputs := flag.Args()

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

	// Assemble components
	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "tfidf", "":
		emb = tfidf.NewEmbedder()
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
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var idx index.Index
	switch cfg.Index.Type {
	case "memory", "":
		if len(inputs) == 0 {
			fmt.Println("Usage: docqa [--config=config.yaml] [-q question] [-objects objects.json] file1.txt [file2.txt ...]")
			os.Exit(1)
		}
		mem := indexmemory.New()
		loader := ingest.NewLoader(chunker.NewSentenceChunker(5, 1), emb, mem)
		n, err := loader.Load(inputs)
		if err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
		log.Printf("indexed %d chunks from local corpus", n)
		idx = mem
	case "chroma":
		if cfg.Index.Chroma == nil {
			log.Fatalf("chroma config missing")
		}
		idx = chroma.NewClient(chroma.Config{
			URL:        cfg.Index.Chroma.URL,
			Collection: cfg.Index.Chroma.Collection,
			Timeout:    time.Duration(cfg.Index.Chroma.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown index: %s", cfg.Index.Type)
	}

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
		// Direct strategies and short-circuits still work without one.
	default:
		log.Fatalf("unknown generator: %s", cfg.Generator.Type)
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

	objects := loadObjects(objectsPath)

	if question != "" {
		result := pipe.Answer(context.Background(), pipeline.Request{
			Question:     question,
			Objects:      objects,
			EvidenceMode: true,
		})
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return
	}

	m := tui.New(pipe, objects)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

func loadObjects(path string) []domain.Object {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read objects file: %v", err)
	}
	var list []domain.Object
	if err := json.Unmarshal(data, &list); err != nil {
		log.Fatalf("failed to parse objects file: %v", err)
	}
	return list
}
