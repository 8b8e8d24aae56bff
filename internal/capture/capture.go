// Package capture provides the line and world inputs the poll loop reads.
// Screen OCR lives outside this module; it writes recognised lines to files
// that FileSource tails.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/classify"
)

// Source yields the lines captured since the previous call.
type Source interface {
	Lines(ctx context.Context) ([]classify.TextLine, error)
}

// FileSource tails a text file. Each line is either plain text or
// "<y>\t<text>" when the OCR side knows the screen row.
type FileSource struct {
	path    string
	channel classify.Channel
	now     func() time.Time

	mu     sync.Mutex
	offset int64
}

// NewFileSource tails path from its current end, so lines written before
// startup are not replayed.
func NewFileSource(path string, ch classify.Channel) *FileSource {
	fs := &FileSource{path: path, channel: ch, now: time.Now}
	if st, err := os.Stat(path); err == nil {
		fs.offset = st.Size()
	}
	return fs
}

// Lines returns complete lines appended since the last call. A missing file
// is not an error. A truncated file is read again from the start.
func (f *FileSource) Lines(ctx context.Context) ([]classify.TextLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	defer file.Close()

	st, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < f.offset {
		f.offset = 0
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, err
	}

	observed := f.now()
	r := bufio.NewReader(file)
	var out []classify.TextLine
	for {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		raw, err := r.ReadString('\n')
		if err != nil {
			// partial trailing line stays unread until it is terminated
			break
		}
		f.offset += int64(len(raw))
		line := ParseLine(strings.TrimRight(raw, "\r\n"), f.channel)
		if line.Text == "" {
			continue
		}
		line.ObservedAt = observed
		out = append(out, line)
	}
	return out, nil
}

// ParseLine decodes one capture-file line.
func ParseLine(s string, ch classify.Channel) classify.TextLine {
	line := classify.TextLine{Text: s, Channel: ch}
	if head, rest, ok := strings.Cut(s, "\t"); ok {
		if y, err := strconv.Atoi(strings.TrimSpace(head)); err == nil {
			line.Y = &y
			line.Text = rest
		}
	}
	return line
}

// ReadAll parses every line of r, for offline classification.
func ReadAll(r io.Reader, ch classify.Channel, at time.Time) ([]classify.TextLine, error) {
	sc := bufio.NewScanner(r)
	var out []classify.TextLine
	for sc.Scan() {
		line := ParseLine(sc.Text(), ch)
		if line.Text == "" {
			continue
		}
		line.ObservedAt = at
		out = append(out, line)
	}
	return out, sc.Err()
}

// Script replays fixed batches, one per call, then returns nothing.
type Script struct {
	mu      sync.Mutex
	batches [][]classify.TextLine
}

func NewScript(batches ...[]classify.TextLine) *Script { return &Script{batches: batches} }

func (s *Script) Lines(context.Context) ([]classify.TextLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

// Push queues another batch.
func (s *Script) Push(lines ...classify.TextLine) {
	s.mu.Lock()
	s.batches = append(s.batches, lines)
	s.mu.Unlock()
}
