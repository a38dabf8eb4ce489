package config_test

import (
	"testing"

	"github.com/MrWong99/knowledgeengine/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogInfo},
		Retrieval: config.RetrievalConfig{SimilarityFloor: 0.3},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.RetrievalChanged {
		t.Error("expected RetrievalChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_RetrievalChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Retrieval: config.RetrievalConfig{SimilarityFloor: 0.3}}
	new := &config.Config{Retrieval: config.RetrievalConfig{SimilarityFloor: 0.5}}

	d := config.Diff(old, new)
	if !d.RetrievalChanged {
		t.Error("expected RetrievalChanged=true")
	}
	if d.NewRetrieval.SimilarityFloor != 0.5 {
		t.Errorf("expected NewRetrieval.SimilarityFloor=0.5, got %.2f", d.NewRetrieval.SimilarityFloor)
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogInfo},
		Retrieval: config.RetrievalConfig{MaxTraversalDepth: 3},
	}
	new := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogWarn},
		Retrieval: config.RetrievalConfig{MaxTraversalDepth: 5},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.RetrievalChanged {
		t.Error("expected RetrievalChanged=true")
	}
}
