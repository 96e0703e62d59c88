package ledgeridx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

var errNoSource = errors.New("no source configured")

// Load fetches all four programs, builds a fresh store and publishes it.
// On failure the live store, if any, stays as it was.
func (e *Engine) Load(ctx context.Context) (err error) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		LoadDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	if e.opt.Source == nil {
		return errNoSource
	}

	e.mu.Lock()
	e.loading = true
	e.pending = nil
	e.mu.Unlock()
	defer func() {
		if err != nil {
			e.mu.Lock()
			e.loading = false
			e.pending = nil
			e.mu.Unlock()
		}
	}()

	batches, err := e.fetchAll(ctx)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelError, "ledgeridx: load failed", slog.Any("err", err))
		return err
	}

	fresh := NewIndexStore(e.opt.StoreOptions)
	if old := e.live.Load(); old != nil {
		fresh.PutMints(old.View().Mints())
	}

	var rejected int
	var applied int
	for _, cat := range Categories() {
		applied += fresh.applyBatch(cat, batches[cat], func(rec *Record, err error) {
			rejected++
			e.logger.LogAttrs(ctx, slog.LevelDebug, "ledgeridx: record rejected", slog.String("cat", cat.String()), slog.String("key", rec.Key.String()), slog.Any("err", err))
		})
	}

	e.mu.Lock()
	replayed := len(e.pending)
	for i := range e.pending {
		e.applyTo(fresh, &e.pending[i])
	}
	e.live.Store(fresh)
	e.loading = false
	e.pending = nil
	e.mu.Unlock()

	e.logger.LogAttrs(ctx, slog.LevelInfo, "ledgeridx: loaded",
		slog.Int("applied", applied),
		slog.Int("rejected", rejected),
		slog.Int("replayed", replayed),
		slog.Duration("elapsed", time.Since(start)))

	if e.opt.SnapshotPath != "" {
		if err := e.writeSnapshot(batches); err != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "ledgeridx: snapshot not written", slog.String("path", e.opt.SnapshotPath), slog.Any("err", err))
		}
	}
	if e.opt.MintFetcher != nil {
		if err := e.Enrich(ctx); err != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "ledgeridx: enrichment interrupted", slog.Any("err", err))
		}
	}
	return nil
}

func (e *Engine) fetchAll(ctx context.Context) ([categoryCount][]Record, error) {
	var results [categoryCount][]Record

	fctx := ctx
	if e.opt.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeoutCause(ctx, e.opt.FetchTimeout, ErrFetchTimeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(fctx)
	for _, cat := range Categories() {
		program := e.opt.Programs.Program(cat)
		g.Go(func() error {
			recs, err := e.opt.Source.FetchProgramAccounts(gctx, program)
			if err == nil {
				err = context.Cause(fctx)
			}
			if err != nil {
				if fetchTimedOut(fctx) && !errors.Is(err, ErrFetchTimeout) {
					err = fmt.Errorf("%w: %w", ErrFetchTimeout, err)
				}
				return &FetchError{Category: cat, Program: program, Err: err}
			}
			FetchedRecords.WithLabelValues(cat.String()).Add(float64(len(recs)))
			results[cat] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Engine) writeSnapshot(batches [categoryCount][]Record) error {
	records := make(map[Pubkey][]Record, categoryCount)
	for _, cat := range Categories() {
		records[e.opt.Programs.Program(cat)] = batches[cat]
	}
	return WriteSnapshot(e.opt.SnapshotPath, records, SnapshotOptions{IsTesting: e.opt.IsTesting})
}

// fetchTimedOut reports whether ctx ended by a deadline, either the engine's
// FetchTimeout or one the caller put on the Load context.
func fetchTimedOut(ctx context.Context) bool {
	cause := context.Cause(ctx)
	return errors.Is(cause, ErrFetchTimeout) || errors.Is(cause, context.DeadlineExceeded)
}
