// Package store keeps the canonical set of event records for one observer and
// mirrors it to a kv.KV on every mutation.
package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

// RecordsKey is where the record set is persisted.
const RecordsKey = "eventwatch/records"

// TombstonesKey holds deleted ids and when they were deleted.
const TombstonesKey = "eventwatch/tombstones"

// ErrCorruptSnapshot marks persisted bytes that cannot be trusted.
var ErrCorruptSnapshot = errors.New("corrupt record snapshot")

type pair struct {
	world string
	kind  vocab.Kind
}

// Change describes the effect of one Upsert or Remove.
type Change struct {
	Applied bool
	// Healed is set when an unknown-id edit was preceded by its embedded previous version.
	Healed  bool
	Removed bool
	// Record is the stored version after the call (the removed one for deletes).
	Record   model.EventRecord
	Previous *model.EventRecord
}

// Store is mutated by a single owner; reads may come from any goroutine.
type Store struct {
	mu      sync.RWMutex
	records map[string]model.EventRecord
	byPair  map[pair]map[string]struct{}
	deleted map[string]time.Time
	kv      kv.KV
	log     zerolog.Logger
}

// New returns an empty store mirrored to backing. Call Load to restore state.
func New(backing kv.KV, log zerolog.Logger) *Store {
	return &Store{
		records: make(map[string]model.EventRecord),
		byPair:  make(map[pair]map[string]struct{}),
		deleted: make(map[string]time.Time),
		kv:      backing,
		log:     log.With().Str("component", "store").Logger(),
	}
}

// Load restores the persisted record set and its tombstones. Corrupt data
// leaves the store empty.
func (s *Store) Load(ctx context.Context) error {
	tombs, err := s.loadTombstones(ctx)
	if err != nil {
		return err
	}
	data, err := s.kv.Get(ctx, RecordsKey)
	if errors.Is(err, kv.ErrNotFound) {
		s.mu.Lock()
		s.deleted = tombs
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	return s.restore(ctx, data, tombs)
}

func (s *Store) loadTombstones(ctx context.Context) (map[string]time.Time, error) {
	tombs := make(map[string]time.Time)
	data, err := s.kv.Get(ctx, TombstonesKey)
	if errors.Is(err, kv.ErrNotFound) {
		return tombs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tombstones: %w", err)
	}
	if err := json.Unmarshal(data, &tombs); err != nil {
		s.log.Warn().Err(err).Msg("discarding persisted tombstones")
		return make(map[string]time.Time), nil
	}
	return tombs, nil
}

// Decode parses a snapshot, rejecting it wholesale if any record is invalid.
func Decode(data []byte) ([]model.EventRecord, error) {
	var recs []model.EventRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	for i, r := range recs {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptSnapshot, i, err)
		}
	}
	return recs, nil
}

// Restore replaces the whole record set and forgets every tombstone.
// Malformed bytes are discarded with a warning and the store (and its mirror)
// ends up empty; no error escapes for that case.
func (s *Store) Restore(ctx context.Context, data []byte) error {
	return s.restore(ctx, data, make(map[string]time.Time))
}

func (s *Store) restore(ctx context.Context, data []byte, tombs map[string]time.Time) error {
	recs, err := Decode(data)
	s.mu.Lock()
	s.records = make(map[string]model.EventRecord)
	s.byPair = make(map[pair]map[string]struct{})
	s.deleted = tombs
	if err != nil {
		s.log.Warn().Err(err).Int("bytes", len(data)).Msg("discarding persisted records")
	} else {
		for _, r := range recs {
			if _, gone := tombs[r.ID]; gone || r.Type == model.MutationDelete {
				continue
			}
			if cur, ok := s.records[r.ID]; ok && !r.Newer(cur) {
				continue
			}
			s.put(r)
		}
	}
	s.mu.Unlock()
	return s.persist(ctx)
}

// Snapshot serialises every record, oldest first.
func (s *Store) Snapshot() ([]byte, error) {
	return json.Marshal(s.sorted(func(model.EventRecord) bool { return true }))
}

// Upsert applies one record version with last-writer-wins semantics.
// Versions not newer than the stored one are ignored. An edit for an unknown
// id first replays its embedded previous version. Delete versions route to Remove.
func (s *Store) Upsert(ctx context.Context, rec model.EventRecord) (Change, error) {
	if err := rec.Validate(); err != nil {
		return Change{}, err
	}
	if rec.Type == model.MutationDelete {
		return s.Remove(ctx, rec.ID)
	}

	s.mu.Lock()
	if _, gone := s.deleted[rec.ID]; gone {
		s.mu.Unlock()
		s.log.Debug().Str("id", rec.ID).Msg("ignoring version of deleted record")
		return Change{}, nil
	}

	ch := Change{Record: rec}
	cur, exists := s.records[rec.ID]
	switch {
	case exists:
		prev := cur
		ch.Previous = &prev
		if !rec.Newer(cur) {
			s.mu.Unlock()
			ch.Record = cur
			return ch, nil
		}
		if rec.PreviousVersion != nil && !rec.PreviousVersion.Same(cur) {
			s.log.Debug().Str("id", rec.ID).Msg("edit supersedes a different version than stored")
		}
	case rec.Type == model.MutationEdit && rec.PreviousVersion != nil:
		base := *rec.PreviousVersion
		if base.ID == rec.ID && base.Validate() == nil && rec.Newer(base) {
			s.put(base)
			ch.Healed = true
			ch.Previous = &base
		}
	}
	s.put(rec)
	ch.Applied = true
	s.mu.Unlock()

	return ch, s.persist(ctx)
}

// Remove deletes id from every view. Removing an absent id is a no-op, but
// later versions of that id are still refused.
func (s *Store) Remove(ctx context.Context, id string) (Change, error) {
	s.mu.Lock()
	s.deleted[id] = time.Now()
	cur, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return Change{}, s.persist(ctx)
	}
	s.drop(cur)
	s.mu.Unlock()

	return Change{Applied: true, Removed: true, Record: cur}, s.persist(ctx)
}

// Get returns the stored version of id.
func (s *Store) Get(id string) (model.EventRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// FindActive returns the active record for (world, kind), preferring the
// earliest report if more than one is active.
func (s *Store) FindActive(world string, kind vocab.Kind, now time.Time) (model.EventRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  model.EventRecord
		found bool
	)
	for id := range s.byPair[pair{world, kind}] {
		r := s.records[id]
		if !r.IsActive(now) {
			continue
		}
		if !found || model.ReportedBefore(r, best) {
			best, found = r, true
		}
	}
	return best, found
}

// AllForWorld lazily yields every record on world, oldest first. Each range
// over the sequence reads the current state.
func (s *Store) AllForWorld(world string) iter.Seq[model.EventRecord] {
	return s.seq(func(r model.EventRecord) bool { return r.World == world })
}

// History lazily yields active and expired records, oldest first.
func (s *Store) History() iter.Seq[model.EventRecord] {
	return s.seq(func(model.EventRecord) bool { return true })
}

// Active lists records active at now.
func (s *Store) Active(now time.Time) []model.EventRecord {
	return s.sorted(func(r model.EventRecord) bool { return r.IsActive(now) })
}

// Expired lists records no longer active at now.
func (s *Store) Expired(now time.Time) []model.EventRecord {
	return s.sorted(func(r model.EventRecord) bool { return !r.IsActive(now) })
}

// Prune removes records that expired before cutoff and forgets old deletions.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	n := 0
	for _, r := range s.records {
		if r.ExpiresAt().Before(cutoff) {
			s.drop(r)
			n++
		}
	}
	forgot := 0
	for id, at := range s.deleted {
		if at.Before(cutoff) {
			delete(s.deleted, id)
			forgot++
		}
	}
	s.mu.Unlock()
	if n == 0 && forgot == 0 {
		return 0, nil
	}
	return n, s.persist(ctx)
}

// Len is the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) seq(keep func(model.EventRecord) bool) iter.Seq[model.EventRecord] {
	return func(yield func(model.EventRecord) bool) {
		for _, r := range s.sorted(keep) {
			if !yield(r) {
				return
			}
		}
	}
}

func (s *Store) sorted(keep func(model.EventRecord) bool) []model.EventRecord {
	s.mu.RLock()
	out := make([]model.EventRecord, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b model.EventRecord) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// put and drop require s.mu held for writing.
func (s *Store) put(r model.EventRecord) {
	if old, ok := s.records[r.ID]; ok {
		s.unindex(old)
	}
	s.records[r.ID] = r
	p := pair{r.World, r.Kind}
	if s.byPair[p] == nil {
		s.byPair[p] = make(map[string]struct{})
	}
	s.byPair[p][r.ID] = struct{}{}
}

func (s *Store) drop(r model.EventRecord) {
	s.unindex(r)
	delete(s.records, r.ID)
}

func (s *Store) unindex(r model.EventRecord) {
	p := pair{r.World, r.Kind}
	delete(s.byPair[p], r.ID)
	if len(s.byPair[p]) == 0 {
		delete(s.byPair, p)
	}
}

func (s *Store) persist(ctx context.Context) error {
	data, err := s.Snapshot()
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := s.kv.Put(ctx, RecordsKey, data); err != nil {
		s.log.Warn().Err(err).Msg("persist records failed")
		return fmt.Errorf("persist records: %w", err)
	}
	s.mu.RLock()
	tombs, err := json.Marshal(s.deleted)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode tombstones: %w", err)
	}
	if err := s.kv.Put(ctx, TombstonesKey, tombs); err != nil {
		s.log.Warn().Err(err).Msg("persist tombstones failed")
		return fmt.Errorf("persist tombstones: %w", err)
	}
	return nil
}
