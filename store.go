package ledgeridx

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-memdb"
)

// IndexStore is the set of derived tables built from decoded accounts.
// Writes go through Put/Apply, each of which is one memdb write
// transaction; readers work off immutable Views.
type IndexStore struct {
	db       *memdb.MemDB
	schema   *Schema
	programs ProgramIDs
	storeKey Pubkey
	filter   func(m *Metadata) bool
	logf     func(format string, args ...any)
	logger   *slog.Logger
	verbose  bool

	WriteCount atomic.Uint64
	NoopCount  atomic.Uint64
}

type StoreOptions struct {
	Programs ProgramIDs
	// StoreKey is the metaplex store this instance serves. When zero, every
	// auction manager and whitelist entry is admitted and views have no store.
	StoreKey Pubkey
	// MetadataFilter, when set, excludes metadata from the listed tables.
	MetadataFilter func(m *Metadata) bool

	Logf    func(format string, args ...any)
	Logger  *slog.Logger
	Verbose bool
}

func NewIndexStore(opt StoreOptions) *IndexStore {
	if opt.Logf == nil {
		opt.Logf = func(format string, args ...any) {}
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	mdb, err := memdb.NewMemDB(ledgerSchema.memdbSchema())
	if err != nil {
		panic(fmt.Errorf("ledgeridx: invalid schema: %w", err))
	}
	return &IndexStore{
		db:       mdb,
		schema:   ledgerSchema,
		programs: opt.Programs,
		storeKey: opt.StoreKey,
		filter:   opt.MetadataFilter,
		logf:     opt.Logf,
		logger:   opt.Logger,
		verbose:  opt.Verbose,
	}
}

func (s *IndexStore) Schema() *Schema {
	return s.schema
}

func (s *IndexStore) Programs() ProgramIDs {
	return s.programs
}

// Apply decodes a record of the given category and puts the result.
// Decode failures leave the store untouched.
func (s *IndexStore) Apply(cat Category, rec *Record) (Change, error) {
	ent, err := DecodeCategory(cat, s.programs.Program(cat), rec)
	recordDecodeResult(cat, err)
	if err != nil {
		return Change{Op: OpNone, Key: rec.Key}, err
	}
	return s.Put(rec.Key, ent, rec.meta()), nil
}

// Put upserts an entity under the given account key.
func (s *IndexStore) Put(key Pubkey, ent Entity, meta RowMeta) Change {
	txn := s.db.Txn(true)
	defer txn.Abort()
	chg := s.put(txn, key, ent, meta)
	if chg.Op == OpPut {
		txn.Commit()
	}
	return chg
}

// applyBatch applies records in a single transaction and reports per-record
// decode failures through onErr.
func (s *IndexStore) applyBatch(cat Category, recs []Record, onErr func(rec *Record, err error)) (n int) {
	txn := s.db.Txn(true)
	defer txn.Abort()
	program := s.programs.Program(cat)
	for i := range recs {
		rec := &recs[i]
		ent, err := DecodeCategory(cat, program, rec)
		recordDecodeResult(cat, err)
		if err != nil {
			if onErr != nil {
				onErr(rec, err)
			}
			continue
		}
		if s.put(txn, rec.Key, ent, rec.meta()).Op == OpPut {
			n++
		}
	}
	txn.Commit()
	return n
}

func (s *IndexStore) put(txn *memdb.Txn, key Pubkey, ent Entity, meta RowMeta) Change {
	tbl := s.tableFor(ent)
	chg := Change{table: tbl, Key: key, Entity: ent}

	if reason := s.admit(key, ent); reason != "" {
		chg.Op = OpSkip
		chg.Reason = reason
		recordChange(&chg)
		if s.verbose {
			s.logf("ledgeridx: PUT.SKIP %s/%v: %s", tbl.name, key, reason)
		}
		return chg
	}

	if meta.Fingerprint == 0 {
		meta.Fingerprint = xxhash.Sum64(Encode(ent))
	}
	flags := s.flagsFor(txn, ent)

	old := lookupRow(txn, tbl, key)
	var modCount uint64
	if old != nil {
		chg.Old = old.entity
		modCount = old.modCount
		if meta.Slot != 0 && old.meta.Slot != 0 && meta.Slot < old.meta.Slot {
			chg.Op = OpStale
			recordChange(&chg)
			if s.verbose {
				s.logf("ledgeridx: PUT.STALE %s/%v => slot %d < %d", tbl.name, key, meta.Slot, old.meta.Slot)
			}
			return chg
		}
		if old.meta.Fingerprint == meta.Fingerprint && old.flags == flags {
			chg.Op = OpNone
			s.NoopCount.Add(1)
			recordChange(&chg)
			if s.verbose {
				s.logf("ledgeridx: PUT.NOOP %s/%v => m=%d", tbl.name, key, modCount)
			}
			return chg
		}
		if old.meta.Fingerprint != meta.Fingerprint {
			modCount++
		}
	} else {
		modCount = 1
	}

	r := &row{
		key:      key,
		entity:   ent,
		meta:     meta,
		modCount: modCount,
		flags:    flags,
	}
	ib := makeIndexBuilder(tbl, flags, s.programs)
	if tbl.indexer != nil {
		tbl.indexer(ent, &ib)
	}
	r.indexKeys = ib.keys

	// memdb drops the old row's index entries that are no longer produced
	ensure(txn.Insert(tbl.name, r))

	chg.Op = OpPut
	chg.ModCount = modCount
	s.WriteCount.Add(1)
	recordChange(&chg)
	if s.verbose {
		s.logf("ledgeridx: PUT %s/%v => m=%d slot=%d", tbl.name, key, modCount, meta.Slot)
	}
	return chg
}

func (s *IndexStore) tableFor(ent Entity) *Table {
	switch ent.(type) {
	case *Vault:
		return vaultsTable
	case *SafetyDepositBox:
		return safetyDepositBoxesTable
	case *ExternalPriceAccount:
		return externalPriceAccountsTable
	case *Metadata:
		return metadataTable
	case *Edition:
		return editionsTable
	case *MasterEdition:
		return masterEditionsTable
	case *EditionMarker:
		return editionMarkersTable
	case *AuctionData:
		return auctionsTable
	case *AuctionDataExtended:
		return auctionsExtendedTable
	case *BidderMetadata:
		return bidderMetadataTable
	case *BidderPot:
		return bidderPotsTable
	case *Store:
		return storesTable
	case *WhitelistedCreator:
		return whitelistedCreatorsTable
	case *PayoutTicket:
		return payoutTicketsTable
	case *PrizeTrackingTicket:
		return prizeTrackingTicketsTable
	case *AuctionManager:
		return auctionManagersTable
	case *BidRedemptionTicket:
		return bidRedemptionsTable
	case *SafetyDepositConfig:
		return safetyDepositConfigsTable
	case *StoreIndexer:
		return storeIndexersTable
	case *AuctionCache:
		return auctionCachesTable
	case *MintInfo:
		return mintsTable
	default:
		panic(fmt.Errorf("no table for %T", ent))
	}
}

// admit returns a non-empty reason when the entity does not belong to the
// configured store.
func (s *IndexStore) admit(key Pubkey, ent Entity) string {
	if s.storeKey.IsZero() {
		return ""
	}
	switch ent := ent.(type) {
	case *AuctionManager:
		if ent.Store != s.storeKey {
			return "auction manager of another store"
		}
	case *WhitelistedCreator:
		if key != WhitelistedCreatorAddress(s.programs.Metaplex, s.storeKey, ent.Address) {
			return "whitelist entry of another store"
		}
	case *StoreIndexer:
		if ent.Store != s.storeKey {
			return "store indexer of another store"
		}
	case *AuctionCache:
		if ent.Store != s.storeKey {
			return "auction cache of another store"
		}
	}
	return ""
}

func (s *IndexStore) flagsFor(txn *memdb.Txn, ent Entity) RowFlags {
	m, ok := ent.(*Metadata)
	if !ok {
		return 0
	}
	var flags RowFlags
	if s.filter != nil && !s.filter(m) {
		flags |= FlagUnlisted
	}
	if mr := lookupRow(txn, mintsTable, m.Mint); mr != nil && mr.entity.(*MintInfo).IsFungible() {
		flags |= FlagFungible
	}
	return flags
}

// PutMints records mint classification and reindexes the metadata of those
// mints in the same transaction.
func (s *IndexStore) PutMints(mints []*MintInfo) (changed int) {
	txn := s.db.Txn(true)
	defer txn.Abort()
	for _, mi := range mints {
		if s.put(txn, mi.Mint, mi, RowMeta{}).Op != OpPut {
			continue
		}
		it := must(txn.Get(metadataTable.name, metadataByMintAll.name, mi.Mint))
		var rows []*row
		for obj := it.Next(); obj != nil; obj = it.Next() {
			rows = append(rows, obj.(*row))
		}
		for _, r := range rows {
			if s.put(txn, r.key, r.entity, r.meta).Op == OpPut {
				changed++
			}
		}
	}
	txn.Commit()
	return changed
}

func lookupRow(txn *memdb.Txn, tbl *Table, key Pubkey) *row {
	obj := must(txn.First(tbl.name, idIndexName, key))
	if obj == nil {
		return nil
	}
	return obj.(*row)
}

// View returns an immutable snapshot of the current contents.
func (s *IndexStore) View() *View {
	return newView(s, s.db.Txn(false))
}
