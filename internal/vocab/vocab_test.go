package vocab

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_Invariants(t *testing.T) {
	v := Builtin()
	require.NotEmpty(t, v.Kinds())
	assert.Equal(t, TravellingMerchant, v.Kinds()[0], "declaration order is preserved")

	for _, k := range v.All() {
		assert.NotEmpty(t, k.Phrases, k.Name)
		assert.NotEmpty(t, k.Departures, k.Name)
		if !k.Debug {
			assert.Greater(t, k.Duration, time.Duration(0), k.Name)
		}
	}
	assert.Equal(t, "The travelling merchant has arrived at the hub", v.FirstSeen(TravellingMerchant))
	assert.Equal(t, 10*time.Minute, v.Duration(TravellingMerchant))
	assert.True(t, v.IsDebug(Testing))
	assert.Contains(t, v.SpeakerPrefixes(), "Bystander")
	assert.NotEmpty(t, v.HopPhrases())
}

func TestParseKind(t *testing.T) {
	v := Builtin()

	k, err := v.ParseKind("travelling MERCHANT")
	require.NoError(t, err)
	assert.Equal(t, TravellingMerchant, k)

	k, err = v.ParseKind("whale")
	require.NoError(t, err)
	assert.Equal(t, WhaleSighting, k)

	_, err = v.ParseKind("kraken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Travelling merchant")
}

func TestUnknownKind(t *testing.T) {
	t.Run("lenient returns zero values", func(t *testing.T) {
		v := Builtin()
		assert.Empty(t, v.Phrases("nope"))
		assert.Equal(t, UnknownDuration, v.Duration("nope"))
		assert.Equal(t, "", v.FirstSeen("nope"))
	})
	t.Run("strict panics", func(t *testing.T) {
		v := Builtin(Strict(true))
		assert.Panics(t, func() { v.Duration("nope") })
	})
}

func TestValidate(t *testing.T) {
	_, err := New([]EventKind{{Name: "Empty", Duration: time.Minute}}, nil, nil)
	assert.Error(t, err, "kind without phrases")

	_, err = New([]EventKind{{Name: "Zero", Phrases: []string{"some phrase here"}}}, nil, nil)
	assert.Error(t, err, "zero duration without sentinel flag")

	_, err = New([]EventKind{{Name: "Zero", Phrases: []string{"some phrase here"}, Unknown: true}}, nil, nil)
	assert.NoError(t, err)

	dup := EventKind{Name: "A", Phrases: []string{"a long enough phrase"}, Duration: time.Second}
	_, err = New([]EventKind{dup, dup}, nil, nil)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
speakerPrefixes: [Bystander]
hopPhrases: [Attempting to switch worlds]
kinds:
  - name: Kraken
    abbreviation: K
    duration: 90s
    phrases:
      - A kraken rises from the deep water
    departures:
      - The kraken slips back below
`), 0o600))

	v, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Kind{"Kraken"}, v.Kinds())
	assert.Equal(t, 90*time.Second, v.Duration("Kraken"))
	k, err := v.ParseKind("k")
	require.NoError(t, err)
	assert.Equal(t, Kind("Kraken"), k)

	_, err = Parse([]byte("kinds:\n  - name: Bad\n    duration: soon\n    phrases: [x]\n"))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
