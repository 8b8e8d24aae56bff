package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/config"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

func TestLoadVocabulary(t *testing.T) {
	cfg := config.NewForTesting()
	v, err := LoadVocabulary(cfg)
	require.NoError(t, err)
	assert.Contains(t, v.Kinds(), vocab.TravellingMerchant)

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
kinds:
  - name: Meteor shower
    duration: 4m
    phrases: ["Streaks of light scatter across the sky"]
`), 0o644))
	cfg.VocabularyFile = path
	v, err = LoadVocabulary(cfg)
	require.NoError(t, err)
	assert.Equal(t, []vocab.Kind{"Meteor shower"}, v.Kinds())

	cfg.VocabularyFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = LoadVocabulary(cfg)
	assert.Error(t, err)
}

func TestWatcher_RunsUntilCancelled(t *testing.T) {
	cfg := config.NewForTesting()
	dir := t.TempDir()
	cfg.ChatFile = filepath.Join(dir, "chat.txt")
	cfg.WorldFile = filepath.Join(dir, "world")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	w, err := build(ctx, cfg, kv.NewMemory(), zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, w.relay)
	assert.Len(t, w.checks, 1, "memory kv has no ping check")

	done := make(chan error, 1)
	go func() { done <- w.run(ctx) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestIgnoreStopped(t *testing.T) {
	assert.NoError(t, ignoreStopped(nil))
	assert.NoError(t, ignoreStopped(context.Canceled))
	assert.NoError(t, ignoreStopped(fmt.Errorf("poll loop: %w", context.DeadlineExceeded)))

	boom := errors.New("boom")
	assert.ErrorIs(t, ignoreStopped(boom), boom)
}
