package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv/kvtest"
)

func TestSQLite_Compliance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.KV {
		s, err := Open(filepath.Join(t.TempDir(), "kv.db"))
		require.NoError(t, err)
		return s
	})
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "eventwatch/records", []byte(`[]`)))
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "eventwatch/records")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}
