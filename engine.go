package ledgeridx

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyvit/ledgeridx/journal"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

// Source fetches every account owned by a program.
type Source interface {
	FetchProgramAccounts(ctx context.Context, program Pubkey) ([]Record, error)
}

// MintFetcher fetches accounts by key. Results are positional; missing
// accounts yield nil entries.
type MintFetcher interface {
	FetchAccounts(ctx context.Context, keys []Pubkey) ([]*Record, error)
}

// Subscriber delivers account updates for a program until unsubscribed.
type Subscriber interface {
	Subscribe(ctx context.Context, program Pubkey, fn func(rec Record)) (Subscription, error)
}

type Subscription interface {
	Unsubscribe() error
}

type Options struct {
	StoreOptions

	Source      Source
	Subscriber  Subscriber
	MintFetcher MintFetcher

	// FetchTimeout bounds a whole bulk load; zero means no limit.
	FetchTimeout time.Duration

	EnrichBatchSize int
	// EnrichRate limits mint fetch batches per second; zero means unlimited.
	EnrichRate rate.Limit

	// SnapshotPath, if set, receives the raw records of every successful load.
	SnapshotPath string
	// Journal, if set, receives every notification before it is applied.
	// The caller owns it and must have called StartWriting.
	Journal *journal.Journal

	IsTesting bool
}

const DefaultEnrichBatchSize = 100

// Engine owns the live index store: it loads it in bulk, keeps it current
// from notifications, and hands out immutable views.
type Engine struct {
	opt     Options
	logger  *slog.Logger
	limiter *rate.Limiter

	live atomic.Pointer[IndexStore]

	loadMu  sync.Mutex
	mu      sync.Mutex
	loading bool
	pending []notification

	listenMu sync.Mutex
	subs     *xsync.MapOf[Category, Subscription]
	applyMu  sync.RWMutex
	closed   bool // written under both listenMu and applyMu
}

type notification struct {
	Category Category `msgpack:"c"`
	Record   Record   `msgpack:"r"`
}

func New(opt Options) *Engine {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Logf == nil {
		opt.Logf = func(format string, args ...any) {}
	}
	if opt.EnrichBatchSize <= 0 {
		opt.EnrichBatchSize = DefaultEnrichBatchSize
	}
	limit := opt.EnrichRate
	if limit <= 0 {
		limit = rate.Inf
	}
	return &Engine{
		opt:     opt,
		logger:  opt.Logger,
		limiter: rate.NewLimiter(limit, 1),
		subs:    xsync.NewMapOf[Category, Subscription](),
	}
}

// View returns a snapshot of the live store.
func (e *Engine) View() (*View, error) {
	store := e.live.Load()
	if store == nil {
		return nil, ErrNotReady
	}
	return store.View(), nil
}

// liveStore returns the live store, or nil before the first successful load.
// Callers outside the package only get Views.
func (e *Engine) liveStore() *IndexStore {
	return e.live.Load()
}
