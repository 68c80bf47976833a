// ABOUTME: Tests for CLI wiring of provider, backend, store and ranker.
package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2389-research/affinity/internal/config"
	"github.com/2389-research/affinity/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Embeddings.Provider = "hash"
	cfg.Embeddings.Dimension = 32
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "affinity.db")
	return cfg
}

// executeRoot runs the CLI with args against empty config and data dirs.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, key := range []string{"AFFINITY_EMBEDDINGS_PROVIDER", "AFFINITY_LOG_LEVEL", "AFFINITY_DATABASE_URL", "DATABASE_URL"} {
		t.Setenv(key, "")
	}
	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags() {
	backendFlag, providerFlag, logLevelFlag = "", "", ""
	addWho, addLoves, addText, addLimit, listJSON = "", "", nil, 0, false
	for _, name := range []string{"backend", "provider", "log-level"} {
		rootCmd.PersistentFlags().Lookup(name).Changed = false
	}
	for _, name := range []string{"who", "loves", "text", "limit"} {
		addCmd.Flags().Lookup(name).Changed = false
	}
	listCmd.Flags().Lookup("json").Changed = false
}

func TestProviderFlagPicksUpEnvToken(t *testing.T) {
	t.Setenv("HF_API_TOKEN", "hf_secret")
	t.Setenv("OPENAI_API_KEY", "")

	out, err := executeRoot(t, "list", "--backend", "memory", "--provider", "huggingface")
	if err != nil {
		t.Fatalf("list with --provider huggingface: %v", err)
	}
	if !strings.Contains(out, "No entries found.") {
		t.Errorf("unexpected output %q", out)
	}
	if globalConfig.Embeddings.APIKey != "hf_secret" {
		t.Errorf("expected HF_API_TOKEN as api key, got %q", globalConfig.Embeddings.APIKey)
	}
	if globalConfig.Embeddings.Dimension != 384 {
		t.Errorf("expected huggingface default dimension, got %d", globalConfig.Embeddings.Dimension)
	}
}

func TestProviderFlagDerivesDimension(t *testing.T) {
	t.Setenv("HF_API_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "sk-secret")

	if _, err := executeRoot(t, "list", "--backend", "memory", "--provider", "openai"); err != nil {
		t.Fatalf("list with --provider openai: %v", err)
	}
	if globalConfig.Embeddings.Dimension != 1536 {
		t.Errorf("expected openai default dimension 1536, got %d", globalConfig.Embeddings.Dimension)
	}
}

func TestProviderFlagWithoutToken(t *testing.T) {
	t.Setenv("HF_API_TOKEN", "")

	_, err := executeRoot(t, "list", "--backend", "memory", "--provider", "huggingface")
	if err == nil || !strings.Contains(err.Error(), "HF_API_TOKEN") {
		t.Errorf("expected missing token error, got %v", err)
	}
}

func TestAddRepeatedTextStoresBatch(t *testing.T) {
	out, err := executeRoot(t, "add", "--backend", "memory",
		"--text", "I am fox and I love hens",
		"--text", "I am cat and I love naps",
	)
	if err != nil {
		t.Fatalf("add error: %v", err)
	}
	if n := strings.Count(out, "Entry added:"); n != 2 {
		t.Errorf("expected 2 added entries, got %d in:\n%s", n, out)
	}
	for _, want := range []string{"Original order", "Semantic order", "I am fox and I love hens", "I am cat and I love naps"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestAddSingleEntry(t *testing.T) {
	out, err := executeRoot(t, "add", "--backend", "memory", "--who", "panda", "--loves", "bamboos")
	if err != nil {
		t.Fatalf("add error: %v", err)
	}
	if strings.Count(out, "Entry added:") != 1 || !strings.Contains(out, "I am panda and I love bamboos") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := executeRoot(t, "add", "--backend", "memory", "--who", "panda"); err == nil {
		t.Error("expected error for missing loves")
	}
}

func TestOpenEngineSQLitePersists(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	eng, store, err := openEngine(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openEngine error: %v", err)
	}
	if _, err := eng.Submit(ctx, "panda", "bamboos"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	_ = store.Close()

	eng, store, err = openEngine(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer func() { _ = store.Close() }()
	if got := eng.Original(); len(got) != 1 || got[0].Text != "I am panda and I love bamboos" {
		t.Errorf("expected persisted entry, got %+v", got)
	}
}

func TestOpenEngineRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"missing api key", func(c *config.Config) { c.Embeddings.Provider = "openai" }},
		{"unknown backend", func(c *config.Config) { c.Storage.Backend = "redis" }},
		{"unknown metric", func(c *config.Config) { c.Ranking.Metric = "jaccard" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)
			if _, _, err := openEngine(context.Background(), cfg, logging.Discard()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunListAndRemove(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "memory"
	ctx := context.Background()

	eng, store, err := openEngine(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openEngine error: %v", err)
	}
	defer func() { _ = store.Close() }()
	globalConfig, globalEngine = cfg, eng
	t.Cleanup(func() { globalConfig, globalEngine = nil, nil })

	entry, _ := eng.Submit(ctx, "owl", "mice")

	var out bytes.Buffer
	listCmd.SetOut(&out)
	if err := runList(listCmd, nil); err != nil {
		t.Fatalf("runList error: %v", err)
	}
	if !strings.Contains(out.String(), entry.ID.String()) || !strings.Contains(out.String(), "I am owl and I love mice") {
		t.Errorf("unexpected list output: %s", out.String())
	}

	out.Reset()
	removeCmd.SetOut(&out)
	removeCmd.SetContext(ctx)
	for _, want := range []string{"removed", "was not present"} {
		out.Reset()
		if err := runRemove(removeCmd, []string{entry.ID.String()}); err != nil {
			t.Fatalf("runRemove error: %v", err)
		}
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q, got %q", want, out.String())
		}
	}

	if err := runRemove(removeCmd, []string{"nope"}); err == nil {
		t.Error("expected error for invalid id")
	}
}
