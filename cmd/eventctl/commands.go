package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/capture"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/classify"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/config"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/factory"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/logger"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/store"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

func loadVocab(path string) (*vocab.Vocabulary, error) {
	if path == "" {
		return vocab.Builtin(), nil
	}
	return vocab.LoadFile(path)
}

func cliLogger() zerolog.Logger {
	return logger.New("eventctl", logger.WithConsole(), logger.WithLevel(zerolog.WarnLevel))
}

// openStore loads the record store from the KV named by the EVENTWATCH_ env.
func openStore(ctx context.Context) (*store.Store, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	log := cliLogger()
	backing, err := factory.NewKV(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(backing, log)
	if err := st.Load(ctx); err != nil {
		_ = backing.Close()
		return nil, nil, err
	}
	return st, func() { _ = backing.Close() }, nil
}

func runClassify(v *vocab.Vocabulary, channel string, in io.Reader, out io.Writer) error {
	ch := classify.Channel(channel)
	if ch != classify.ChannelChat && ch != classify.ChannelDialog {
		return fmt.Errorf("unknown channel %q", channel)
	}
	lines, err := capture.ReadAll(in, ch, time.Now())
	if err != nil {
		return err
	}
	c := classify.New(v)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tKIND\tFIRST\tSCORE\tLINE")
	for _, cand := range c.ClassifyBatch(lines) {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%.2f\t%s\n", cand.Phase, cand.Kind, cand.FirstSeen, cand.Score, cand.Line.Text)
	}
	return tw.Flush()
}

func runVocab(v *vocab.Vocabulary, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tABBR\tDURATION\tPHRASES")
	for _, k := range v.All() {
		name := string(k.Name)
		if k.Debug {
			name += " (debug)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", name, k.Abbreviation, k.Duration, len(k.Phrases))
	}
	return tw.Flush()
}

func runHistory(st *store.Store, limit int, out io.Writer) error {
	recs := slices.Collect(st.History())
	if limit > 0 && limit < len(recs) {
		recs = recs[len(recs)-limit:]
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REPORTED\tWORLD\tKIND\tDURATION\tBY\tID")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.UTC().Format(time.RFC3339), r.World, r.Kind, r.Duration, r.ReportedBy, r.ID)
	}
	return tw.Flush()
}

func runRestore(ctx context.Context, st *store.Store, data []byte, out io.Writer) error {
	if _, err := store.Decode(data); err != nil {
		return fmt.Errorf("snapshot rejected: %w", err)
	}
	if err := st.Restore(ctx, data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "restored %d records\n", st.Len())
	return err
}
