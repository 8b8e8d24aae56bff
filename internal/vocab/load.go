package vocab

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileKind struct {
	Name         string   `yaml:"name"`
	Abbreviation string   `yaml:"abbreviation"`
	Duration     string   `yaml:"duration"`
	Phrases      []string `yaml:"phrases"`
	Departures   []string `yaml:"departures"`
	Debug        bool     `yaml:"debug"`
	Unknown      bool     `yaml:"unknown"`
}

type fileVocabulary struct {
	SpeakerPrefixes []string   `yaml:"speakerPrefixes"`
	HopPhrases      []string   `yaml:"hopPhrases"`
	Kinds           []fileKind `yaml:"kinds"`
}

// Parse builds a vocabulary from its YAML form.
func Parse(data []byte, opts ...Option) (*Vocabulary, error) {
	var fv fileVocabulary
	if err := yaml.Unmarshal(data, &fv); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(fv.Kinds) == 0 {
		return nil, fmt.Errorf("parse vocabulary: no kinds defined")
	}
	kinds := make([]EventKind, 0, len(fv.Kinds))
	for _, fk := range fv.Kinds {
		var d time.Duration
		if fk.Duration != "" {
			var err error
			if d, err = time.ParseDuration(fk.Duration); err != nil {
				return nil, fmt.Errorf("kind %q: bad duration %q: %w", fk.Name, fk.Duration, err)
			}
		}
		kinds = append(kinds, EventKind{
			Name:         Kind(fk.Name),
			Abbreviation: fk.Abbreviation,
			Phrases:      fk.Phrases,
			Departures:   fk.Departures,
			Duration:     d,
			Debug:        fk.Debug,
			Unknown:      fk.Unknown,
		})
	}
	return New(kinds, fv.SpeakerPrefixes, fv.HopPhrases, opts...)
}

// LoadFile reads a YAML vocabulary from disk.
func LoadFile(path string, opts ...Option) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	return Parse(data, opts...)
}
