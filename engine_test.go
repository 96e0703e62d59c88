package ledgeridx

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/ledgeridx/journal"
	"github.com/andreyvit/ledgeridx/journal/journaltest"
)

type fakeSource struct {
	mu      sync.Mutex
	records map[Pubkey][]Record
	errs    map[Pubkey]error
	block   map[Pubkey]bool
	onFetch func(program Pubkey)
	calls   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		records: make(map[Pubkey][]Record),
		errs:    make(map[Pubkey]error),
		block:   make(map[Pubkey]bool),
	}
}

func (src *fakeSource) add(ents map[Pubkey]Entity) {
	src.mu.Lock()
	defer src.mu.Unlock()
	for k, ent := range ents {
		r := rec(k, ent)
		src.records[r.Owner] = append(src.records[r.Owner], *r)
	}
}

func (src *fakeSource) addRecord(r Record) {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.records[r.Owner] = append(src.records[r.Owner], r)
}

func (src *fakeSource) reset() {
	src.mu.Lock()
	defer src.mu.Unlock()
	clear(src.records)
	clear(src.errs)
	clear(src.block)
}

func (src *fakeSource) FetchProgramAccounts(ctx context.Context, program Pubkey) ([]Record, error) {
	src.mu.Lock()
	src.calls++
	recs := append([]Record(nil), src.records[program]...)
	err := src.errs[program]
	block := src.block[program]
	onFetch := src.onFetch
	src.mu.Unlock()

	if onFetch != nil {
		onFetch(program)
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}

type fakeSubscriber struct {
	mu           sync.Mutex
	fns          map[Pubkey]func(rec Record)
	subscribes   int
	unsubscribes int
}

type fakeSubscription struct {
	sub     *fakeSubscriber
	program Pubkey
}

func (s *fakeSubscriber) Subscribe(ctx context.Context, program Pubkey, fn func(rec Record)) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[Pubkey]func(rec Record))
	}
	s.fns[program] = fn
	s.subscribes++
	return &fakeSubscription{s, program}, nil
}

func (fs *fakeSubscription) Unsubscribe() error {
	fs.sub.mu.Lock()
	defer fs.sub.mu.Unlock()
	delete(fs.sub.fns, fs.program)
	fs.sub.unsubscribes++
	return nil
}

func (s *fakeSubscriber) handler(program Pubkey) func(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fns[program]
}

// send delivers an entity as a notification; it reports whether anyone was
// subscribed.
func (s *fakeSubscriber) send(k Pubkey, ent Entity) bool {
	r := rec(k, ent)
	fn := s.handler(r.Owner)
	if fn == nil {
		return false
	}
	fn(*r)
	return true
}

type fakeMintFetcher struct {
	mu    sync.Mutex
	mints map[Pubkey]*MintInfo
	calls [][]Pubkey
}

func (f *fakeMintFetcher) FetchAccounts(ctx context.Context, keys []Pubkey) ([]*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]Pubkey(nil), keys...))
	result := make([]*Record, len(keys))
	for i, k := range keys {
		if mi := f.mints[k]; mi != nil {
			result[i] = &Record{Key: k, Data: Encode(mi)}
		}
	}
	return result, nil
}

func newTestEngine(t testing.TB, opt Options) *Engine {
	opt.Programs = testPrograms
	opt.Logger = journaltest.TestLogger(t)
	opt.Logf = t.Logf
	opt.IsTesting = true
	e := New(opt)
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Error(err)
		}
	})
	return e
}

func mustView(t testing.TB, e *Engine) *View {
	t.Helper()
	v, err := e.View()
	require.NoError(t, err)
	return v
}

func TestEngine_NotReady(t *testing.T) {
	j := journaltest.Writable(t, journal.Options{})
	e := newTestEngine(t, Options{Subscriber: &fakeSubscriber{}, MintFetcher: &fakeMintFetcher{}})
	ctx := context.Background()

	_, err := e.View()
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, e.Listen(ctx), ErrNotReady)
	assert.ErrorIs(t, e.Enrich(ctx), ErrNotReady)
	_, err = e.ReplayJournal(ctx, j.Journal)
	assert.ErrorIs(t, err, ErrNotReady)
	isnil(t, e.liveStore())

	assert.ErrorIs(t, e.Load(ctx), errNoSource)
}

func TestEngine_Load(t *testing.T) {
	src := newFakeSource()
	src.add(map[Pubkey]Entity{
		key(1): &Vault{FractionMint: key(2)},
		key(3): testMetadata(key(4), "https://arweave.net/x"),
		key(5): &BidderPot{BidderAct: key(6), AuctionAct: key(7)},
		key(8): &AuctionManager{Store: key(9), Auction: key(7)},
	})
	// wrong owner for its data, and an undecodable payload
	src.addRecord(Record{Key: key(10), Owner: testPrograms.Vault, Data: Encode(&Store{})})
	src.addRecord(Record{Key: key(11), Owner: testPrograms.Metadata, Data: []byte{metadataKeyReservationListV2}})

	e := newTestEngine(t, Options{Source: src})
	require.NoError(t, e.Load(context.Background()))

	v := mustView(t, e)
	isnonnil(t, v.Vault(key(1)))
	isnonnil(t, v.MetadataByMint(key(4)))
	isnonnil(t, v.BidderPotByAuctionAndBidder(key(7), key(6)))
	deepEqual(t, v.AuctionManagerByAuction(key(7)).Key, key(8))
	isnil(t, v.Store())
	deepEqual(t, v.Stats().Rows, 4)
	deepEqual(t, src.calls, 4)
}

func TestEngine_LoadFailureKeepsPreviousStore(t *testing.T) {
	src := newFakeSource()
	src.add(map[Pubkey]Entity{key(1): &Vault{}})
	e := newTestEngine(t, Options{Source: src})
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))
	before := e.liveStore()

	src.reset()
	src.add(map[Pubkey]Entity{key(2): &Vault{}})
	src.errs[testPrograms.Auction] = io.ErrUnexpectedEOF

	err := e.Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	deepEqual(t, fe.Category, CategoryAuction)
	deepEqual(t, fe.Program, testPrograms.Auction)

	deepEqual(t, e.liveStore(), before)
	v := mustView(t, e)
	isnonnil(t, v.Vault(key(1)))
	isnil(t, v.Vault(key(2)))
}

func TestEngine_LoadTimeout(t *testing.T) {
	src := newFakeSource()
	src.block[testPrograms.Metaplex] = true
	e := newTestEngine(t, Options{Source: src, FetchTimeout: 20 * time.Millisecond})

	err := e.Load(context.Background())
	assert.ErrorIs(t, err, ErrFetchTimeout)
	assert.NotErrorIs(t, err, ErrFetchFailed)
	isnil(t, e.liveStore())
}

func TestEngine_LoadCallerDeadline(t *testing.T) {
	src := newFakeSource()
	src.add(map[Pubkey]Entity{key(1): &Vault{}})
	src.block[testPrograms.Metaplex] = true
	e := newTestEngine(t, Options{Source: src})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.Load(ctx)
	assert.ErrorIs(t, err, ErrFetchTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrFetchFailed)
	isnil(t, e.liveStore())

	// plain cancellation is still a failed fetch
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	err = e.Load(ctx)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.NotErrorIs(t, err, ErrFetchTimeout)
}

func TestEngine_NoExportedStoreAccessor(t *testing.T) {
	storeType := reflect.TypeOf((*IndexStore)(nil))
	et := reflect.TypeOf((*Engine)(nil))
	for i := range et.NumMethod() {
		m := et.Method(i)
		for j := range m.Type.NumOut() {
			if m.Type.Out(j) == storeType {
				t.Errorf("** Engine.%s exposes the live *IndexStore", m.Name)
			}
		}
	}
}

func TestEngine_Listen(t *testing.T) {
	src := newFakeSource()
	sub := &fakeSubscriber{}
	e := newTestEngine(t, Options{Source: src, Subscriber: sub})
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))
	require.NoError(t, e.Listen(ctx))
	require.NoError(t, e.Listen(ctx))
	deepEqual(t, sub.subscribes, 4)

	deepEqual(t, sub.send(key(1), &PayoutTicket{Recipient: key(2), AmountPaid: 5}), true)
	deepEqual(t, sub.send(key(3), &Edition{Parent: key(4), Edition: 1}), true)
	deepEqual(t, mustView(t, e).PayoutTicketsOf(key(2))[0].Info.AmountPaid, uint64(5))
	deepEqual(t, len(mustView(t, e).EditionsOf(key(4))), 1)

	// rejected notifications leave the store alone
	fn := sub.handler(testPrograms.Metadata)
	fn(Record{Key: key(3), Owner: testPrograms.Metadata, Data: []byte{255}})
	isnonnil(t, mustView(t, e).Edition(key(3)))

	require.NoError(t, e.Close())
	deepEqual(t, sub.unsubscribes, 4)
	deepEqual(t, sub.send(key(5), &Vault{}), false)

	// a callback that races with Close is dropped
	fn(*rec(key(6), &Edition{Parent: key(4), Edition: 2}))
	isnil(t, mustView(t, e).Edition(key(6)))
	assert.ErrorIs(t, e.Listen(ctx), ErrClosed)
}

func TestEngine_ListenAfterClose(t *testing.T) {
	sub := &fakeSubscriber{}
	e := newTestEngine(t, Options{Source: newFakeSource(), Subscriber: sub})
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))
	require.NoError(t, e.Close())

	assert.ErrorIs(t, e.Listen(ctx), ErrClosed)
	deepEqual(t, sub.subscribes, 0)
}

func TestEngine_ListenRacingClose(t *testing.T) {
	ctx := context.Background()
	for range 50 {
		sub := &fakeSubscriber{}
		e := New(Options{Source: newFakeSource(), Subscriber: sub, StoreOptions: StoreOptions{Programs: testPrograms}, IsTesting: true})
		require.NoError(t, e.Load(ctx))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := e.Listen(ctx)
			if err != nil && !errors.Is(err, ErrClosed) {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := e.Close(); err != nil {
				t.Error(err)
			}
		}()
		wg.Wait()

		sub.mu.Lock()
		subs, unsubs := sub.subscribes, sub.unsubscribes
		sub.mu.Unlock()
		deepEqual(t, subs, unsubs)
		deepEqual(t, e.subs.Size(), 0)
	}
}

func TestEngine_NotificationsDuringReload(t *testing.T) {
	src := newFakeSource()
	src.add(map[Pubkey]Entity{key(1): &PayoutTicket{Recipient: key(2), AmountPaid: 1}})
	sub := &fakeSubscriber{}
	e := newTestEngine(t, Options{Source: src, Subscriber: sub})
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))
	require.NoError(t, e.Listen(ctx))

	var once sync.Once
	src.onFetch = func(program Pubkey) {
		if program != testPrograms.Metaplex {
			return
		}
		once.Do(func() {
			sub.send(key(1), &PayoutTicket{Recipient: key(2), AmountPaid: 2})
			sub.send(key(3), &WhitelistedCreator{Address: key(4), Activated: true})
		})
	}
	require.NoError(t, e.Load(ctx))

	v := mustView(t, e)
	deepEqual(t, v.PayoutTicket(key(1)).Info.AmountPaid, uint64(2))
	isnonnil(t, v.WhitelistedCreatorByAddress(key(4)))
	isempty(t, e.pending)
}

func TestEngine_Enrich(t *testing.T) {
	fungible, nft, unknown := key(21), key(22), key(23)
	src := newFakeSource()
	src.add(map[Pubkey]Entity{
		key(1): testMetadata(fungible, "https://arweave.net/1"),
		key(2): testMetadata(nft, "https://arweave.net/2"),
		key(3): testMetadata(unknown, "https://arweave.net/3"),
		key(4): testMetadata(nft, "https://arweave.net/4"),
	})
	mf := &fakeMintFetcher{mints: map[Pubkey]*MintInfo{
		fungible: {Mint: fungible, Supply: 500, IsInitialized: true},
		nft:      {Mint: nft, Supply: 1, IsInitialized: true},
	}}
	e := newTestEngine(t, Options{Source: src, MintFetcher: mf, EnrichBatchSize: 2})
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))

	deepEqual(t, len(mf.calls), 2)
	deepEqual(t, mf.calls[0], []Pubkey{fungible, nft})
	deepEqual(t, mf.calls[1], []Pubkey{unknown})

	v := mustView(t, e)
	var listed []Pubkey
	for _, m := range v.ListedMetadata() {
		listed = append(listed, m.Key)
	}
	deepEqual(t, listed, []Pubkey{key(2), key(4), key(3)})
	isnil(t, v.Mint(unknown))

	// classification survives a reload
	mf.calls = nil
	require.NoError(t, e.Load(ctx))
	deepEqual(t, mf.calls, [][]Pubkey{{unknown}})
	isnil(t, mustView(t, e).MetadataByMint(fungible))
}

func TestEngine_EnrichHonorsContext(t *testing.T) {
	src := newFakeSource()
	src.add(map[Pubkey]Entity{key(1): testMetadata(key(21), "u"), key(2): testMetadata(key(22), "u")})
	mf := &fakeMintFetcher{}
	e := newTestEngine(t, Options{Source: src, EnrichBatchSize: 1, EnrichRate: 0.001})
	require.NoError(t, e.Load(context.Background()))

	e.opt.MintFetcher = mf
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := e.Enrich(ctx)
	require.Error(t, err)
	deepEqual(t, len(mf.calls), 1)
}

func TestEngine_Snapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	src := newFakeSource()
	src.add(map[Pubkey]Entity{
		key(1): &Vault{FractionMint: key(2)},
		key(3): testMetadata(key(4), "https://arweave.net/x"),
		key(5): &AuctionDataExtended{TotalUncancelledBids: 3},
	})
	src.addRecord(*recAt(key(6), &Store{Public: true}, 42))

	e := newTestEngine(t, Options{Source: src, SnapshotPath: path})
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))

	snap, err := OpenSnapshot(path, SnapshotOptions{IsTesting: true})
	require.NoError(t, err)
	defer snap.Close()
	assert.False(t, snap.CreatedAt().IsZero())

	recs, err := snap.FetchProgramAccounts(ctx, testPrograms.Metaplex)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	deepEqual(t, recs[0], *recAt(key(6), &Store{Public: true}, 42))

	recs, err = snap.FetchProgramAccounts(ctx, key(99))
	require.NoError(t, err)
	isempty(t, recs)

	e2 := newTestEngine(t, Options{Source: snap})
	require.NoError(t, e2.Load(ctx))
	deepEqual(t, mustView(t, e2).Stats().Tables, mustView(t, e).Stats().Tables)
	deepEqual(t, mustView(t, e2).AuctionExtended(key(5)).Info.TotalUncancelledBids, uint64(3))
}

func TestEngine_JournalReplay(t *testing.T) {
	j := journaltest.Writable(t, journal.Options{})
	src := newFakeSource()
	src.add(map[Pubkey]Entity{key(1): &PayoutTicket{Recipient: key(2), AmountPaid: 1}})
	sub := &fakeSubscriber{}
	e := newTestEngine(t, Options{Source: src, Subscriber: sub, Journal: j.Journal})
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))
	require.NoError(t, e.Listen(ctx))

	sub.send(key(1), &PayoutTicket{Recipient: key(2), AmountPaid: 2})
	sub.send(key(3), &SafetyDepositBox{Vault: key(4), Order: 1})
	sub.handler(testPrograms.Auction)(Record{Key: key(5), Owner: testPrograms.Auction, Data: []byte{1}})
	deepEqual(t, len(j.Records()), 3)

	e2 := newTestEngine(t, Options{Source: src})
	require.NoError(t, e2.Load(ctx))
	deepEqual(t, mustView(t, e2).PayoutTicket(key(1)).Info.AmountPaid, uint64(1))

	n, err := e2.ReplayJournal(ctx, j.Journal)
	require.NoError(t, err)
	deepEqual(t, n, 3)
	v := mustView(t, e2)
	deepEqual(t, v.PayoutTicket(key(1)).Info.AmountPaid, uint64(2))
	deepEqual(t, v.SafetyDepositBoxAt(key(4), 1).Key, key(3))
	isnil(t, v.BidderPot(key(5)))
}

func TestFetchError(t *testing.T) {
	err := error(&FetchError{Category: CategoryVault, Program: testPrograms.Vault, Err: io.EOF})
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "fetching vault accounts")

	err = &FetchError{Category: CategoryVault}
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Contains(t, err.Error(), ErrFetchFailed.Error())

	err = &FetchError{Err: errors.Join(ErrFetchTimeout, context.DeadlineExceeded)}
	assert.ErrorIs(t, err, ErrFetchTimeout)
	assert.NotErrorIs(t, err, ErrFetchFailed)
}
