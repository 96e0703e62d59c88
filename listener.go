package ledgeridx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andreyvit/ledgeridx/journal"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	errNoSubscriber = errors.New("no subscriber configured")
	ErrClosed       = errors.New("engine closed")
)

// Listen subscribes to all four programs. Each notification is decoded and
// put into the live store; failures are logged and counted but never
// returned. Listen requires a published store.
func (e *Engine) Listen(ctx context.Context) error {
	if e.live.Load() == nil {
		return ErrNotReady
	}
	if e.opt.Subscriber == nil {
		return errNoSubscriber
	}

	e.listenMu.Lock()
	defer e.listenMu.Unlock()
	if e.closed {
		return ErrClosed
	}

	for _, cat := range Categories() {
		if _, ok := e.subs.Load(cat); ok {
			continue
		}
		program := e.opt.Programs.Program(cat)
		sub, err := e.opt.Subscriber.Subscribe(ctx, program, func(rec Record) {
			e.handleNotification(cat, rec)
		})
		if err != nil {
			return fmt.Errorf("subscribing to %v (%v): %w", cat, program, err)
		}
		e.subs.Store(cat, sub)
	}
	return nil
}

// Close removes all subscriptions and waits for in-flight notifications.
func (e *Engine) Close() error {
	e.listenMu.Lock()
	defer e.listenMu.Unlock()

	var errs []error
	e.subs.Range(func(cat Category, sub Subscription) bool {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribing from %v: %w", cat, err))
		}
		e.subs.Delete(cat)
		return true
	})

	e.applyMu.Lock()
	e.closed = true
	e.applyMu.Unlock()
	return errors.Join(errs...)
}

func (e *Engine) handleNotification(cat Category, rec Record) {
	e.applyMu.RLock()
	defer e.applyMu.RUnlock()
	if e.closed {
		Notifications.WithLabelValues(cat.String(), "closed").Inc()
		return
	}

	n := notification{Category: cat, Record: rec}
	if e.opt.Journal != nil {
		e.journalNotification(&n)
	}

	e.mu.Lock()
	if e.loading {
		e.pending = append(e.pending, n)
	}
	store := e.live.Load()
	e.mu.Unlock()

	if store == nil {
		Notifications.WithLabelValues(cat.String(), "not_ready").Inc()
		return
	}
	e.applyTo(store, &n)
}

func (e *Engine) applyTo(store *IndexStore, n *notification) {
	cat := n.Category
	chg, err := store.Apply(cat, &n.Record)
	if err != nil {
		Notifications.WithLabelValues(cat.String(), decodeErrorReason(err)).Inc()
		e.logger.LogAttrs(context.Background(), slog.LevelDebug, "ledgeridx: notification rejected",
			slog.String("cat", cat.String()),
			slog.String("key", n.Record.Key.String()),
			slog.Any("err", err))
		return
	}
	Notifications.WithLabelValues(cat.String(), chg.Op.String()).Inc()
}

func (e *Engine) journalNotification(n *notification) {
	data, err := msgpack.Marshal(n)
	if err == nil {
		err = e.opt.Journal.WriteRecord(0, data)
	}
	if err == nil {
		err = e.opt.Journal.Commit()
	}
	if err != nil {
		e.logger.LogAttrs(context.Background(), slog.LevelError, "ledgeridx: journal write failed",
			slog.String("key", n.Record.Key.String()),
			hexAttr("data", n.Record.Data),
			slog.Any("err", err))
	}
}

// ReplayJournal applies journaled notifications onto the live store, in
// order. Records older than the stored rows are rejected as stale.
func (e *Engine) ReplayJournal(ctx context.Context, j *journal.Journal) (int, error) {
	store := e.live.Load()
	if store == nil {
		return 0, ErrNotReady
	}
	var count int
	err := j.Replay(ctx, func(ts time.Time, data []byte) error {
		var n notification
		if err := msgpack.Unmarshal(data, &n); err != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "ledgeridx: skipping journal record", hexAttr("data", data), slog.Any("err", err))
			return nil
		}
		e.applyTo(store, &n)
		count++
		return nil
	})
	return count, err
}
