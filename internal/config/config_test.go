package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/liliang-cn/askpdf/internal/domain"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ASKPDF_LLM_API_KEY", "ASKPDF_EMBEDDING_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearKeys(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RAG.ChunkSize != 5000 || cfg.RAG.ChunkOverlap != 500 {
		t.Fatalf("unexpected chunking defaults: %+v", cfg.RAG)
	}
	if cfg.RAG.TopK != 4 {
		t.Fatalf("top_k = %d, want 4", cfg.RAG.TopK)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Fatalf("llm timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.History.Backend != HistoryMemory {
		t.Fatalf("history backend = %q", cfg.History.Backend)
	}
	if got := cfg.Address(); got != "0.0.0.0:8080" {
		t.Fatalf("Address() = %q", got)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "askpdf.yaml")
	yaml := "rag:\n  chunk_size: 1200\n  chunk_overlap: 100\nhistory:\n  backend: sqlite\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ASKPDF_LLM_MODEL", "llama-3.1-8b-instant")
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("ASKPDF_EMBEDDING_API_KEY", "emb-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RAG.ChunkSize != 1200 || cfg.RAG.ChunkOverlap != 100 {
		t.Fatalf("file values not applied: %+v", cfg.RAG)
	}
	if cfg.LLM.Model != "llama-3.1-8b-instant" {
		t.Fatalf("env override not applied: %q", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "groq-key" {
		t.Fatalf("GROQ_API_KEY fallback not applied: %q", cfg.LLM.APIKey)
	}
	if cfg.Embedding.APIKey != "emb-key" {
		t.Fatalf("embedding key = %q", cfg.Embedding.APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	clearKeys(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = cfg.Validate()
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "llm.api_key") || !strings.Contains(err.Error(), "embedding.api_key") {
		t.Fatalf("error should name both keys: %v", err)
	}
}

func TestValidateChunking(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"defaults", 5000, 500, false},
		{"zero overlap", 100, 0, false},
		{"overlap equals size", 100, 100, true},
		{"negative overlap", 100, -1, true},
		{"zero size", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				RAG:       RAGConfig{ChunkSize: tt.size, ChunkOverlap: tt.overlap, TopK: 4},
				LLM:       LLMConfig{APIKey: "k"},
				Embedding: EmbeddingConfig{APIKey: "k"},
				History:   HistoryConfig{Backend: HistoryMemory},
			}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
