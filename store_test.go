package ledgeridx

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Put(t *testing.T) {
	s := newTestStore(t, ZeroPubkey)
	v := &Vault{FractionMint: key(2), State: VaultActive}

	chg := apply(t, s, key(1), v)
	deepEqual(t, chg.Op, OpPut)
	deepEqual(t, chg.ModCount, uint64(1))
	deepEqual(t, chg.TableName(), "vaults")
	deepEqual(t, chg.HasOld(), false)

	chg = apply(t, s, key(1), v)
	deepEqual(t, chg.Op, OpNone)
	deepEqual(t, s.NoopCount.Load(), uint64(1))

	v2 := &Vault{FractionMint: key(3), State: VaultCombined}
	chg = apply(t, s, key(1), v2)
	deepEqual(t, chg.Op, OpPut)
	deepEqual(t, chg.ModCount, uint64(2))
	deepEqual(t, chg.Old, Entity(v))
	deepEqual(t, s.WriteCount.Load(), uint64(2))

	view := s.View()
	deepEqual(t, view.Vault(key(1)).Info, v2)
	isnil(t, view.VaultByFractionMint(key(2)))
	deepEqual(t, view.VaultByFractionMint(key(3)).Key, key(1))
}

func TestStore_StaleSlot(t *testing.T) {
	s := newTestStore(t, ZeroPubkey)
	older := &PayoutTicket{Recipient: key(2), AmountPaid: 1}
	newer := &PayoutTicket{Recipient: key(2), AmountPaid: 2}

	chg, err := s.Apply(CategoryMetaplex, recAt(key(1), newer, 10))
	require.NoError(t, err)
	deepEqual(t, chg.Op, OpPut)

	chg, err = s.Apply(CategoryMetaplex, recAt(key(1), older, 5))
	require.NoError(t, err)
	deepEqual(t, chg.Op, OpStale)
	deepEqual(t, s.View().PayoutTicket(key(1)).Info, newer)

	// records without a slot always win
	chg, err = s.Apply(CategoryMetaplex, rec(key(1), older))
	require.NoError(t, err)
	deepEqual(t, chg.Op, OpPut)
	deepEqual(t, s.View().PayoutTicket(key(1)).Info, older)
}

func TestStore_ApplyDecodeFailure(t *testing.T) {
	s := newTestStore(t, ZeroPubkey)
	r := &Record{Key: key(1), Owner: testPrograms.Vault, Data: []byte{vaultKeyVaultV1, 1, 2}}

	chg, err := s.Apply(CategoryVault, r)
	assert.ErrorIs(t, err, ErrTooShort)
	deepEqual(t, chg.Op, OpNone)
	isempty(t, s.View().Vaults())
}

func TestStore_ViewIsImmutable(t *testing.T) {
	s := newTestStore(t, ZeroPubkey)
	apply(t, s, key(1), &Edition{Parent: key(9), Edition: 1})
	before := s.View()

	apply(t, s, key(2), &Edition{Parent: key(9), Edition: 2})
	apply(t, s, key(1), &Edition{Parent: key(8), Edition: 1})

	deepEqual(t, len(before.EditionsOf(key(9))), 1)
	deepEqual(t, before.Edition(key(1)).Info.Parent, key(9))

	after := s.View()
	editions := after.EditionsOf(key(9))
	require.Len(t, editions, 1)
	deepEqual(t, editions[0].Key, key(2))
	deepEqual(t, len(after.EditionsOf(key(8))), 1)
}

func TestStore_MasterEditionMints(t *testing.T) {
	s := newTestStore(t, ZeroPubkey)
	apply(t, s, key(1), &MasterEdition{Version: 1, PrintingMint: key(10), OneTimePrintingAuthorizationMint: key(11)})

	v := s.View()
	deepEqual(t, v.MasterEditionByPrintingMint(key(10)).Key, key(1))
	deepEqual(t, v.MasterEditionByOneTimeAuthMint(key(11)).Key, key(1))

	apply(t, s, key(1), &MasterEdition{Version: 1, Supply: 1, PrintingMint: key(12), OneTimePrintingAuthorizationMint: key(11)})
	v = s.View()
	isnil(t, v.MasterEditionByPrintingMint(key(10)))
	deepEqual(t, v.MasterEditionByPrintingMint(key(12)).Key, key(1))
	deepEqual(t, v.MasterEditionByOneTimeAuthMint(key(11)).Key, key(1))

	apply(t, s, key(1), &MasterEdition{Version: 2, Supply: 1})
	v = s.View()
	isnil(t, v.MasterEditionByPrintingMint(key(12)))
	isnil(t, v.MasterEditionByOneTimeAuthMint(key(11)))
	isnonnil(t, v.MasterEdition(key(1)))
}

func TestStore_ForeignKeyOrdering(t *testing.T) {
	s := newTestStore(t, ZeroPubkey)
	vault := key(50)
	apply(t, s, key(3), &SafetyDepositBox{Vault: vault, TokenMint: key(13), Order: 2})
	apply(t, s, key(1), &SafetyDepositBox{Vault: vault, TokenMint: key(11), Order: 0})
	apply(t, s, key(2), &SafetyDepositBox{Vault: vault, TokenMint: key(12), Order: 1})
	apply(t, s, key(4), &SafetyDepositBox{Vault: key(51), Order: 0})

	v := s.View()
	var orders []uint8
	for _, b := range v.SafetyDepositBoxesOfVault(vault) {
		orders = append(orders, b.Info.Order)
	}
	deepEqual(t, orders, []uint8{0, 1, 2})
	deepEqual(t, v.SafetyDepositBoxAt(vault, 1).Key, key(2))
	isnil(t, v.SafetyDepositBoxAt(vault, 3))

	auction := key(60)
	apply(t, s, key(21), &BidderMetadata{BidderPubkey: key(31), AuctionPubkey: auction, LastBid: 5})
	apply(t, s, key(20), &BidderMetadata{BidderPubkey: key(30), AuctionPubkey: auction, LastBid: 7})
	apply(t, s, key(22), &BidderMetadata{BidderPubkey: key(30), AuctionPubkey: key(61)})
	apply(t, s, key(23), &BidderPot{BidderPot: key(40), BidderAct: key(30), AuctionAct: auction})

	v = s.View()
	var bidders []Pubkey
	for _, bm := range v.BidderMetadataOfAuction(auction) {
		bidders = append(bidders, bm.Info.BidderPubkey)
	}
	deepEqual(t, bidders, []Pubkey{key(30), key(31)})
	deepEqual(t, v.BidderMetadataByAuctionAndBidder(auction, key(31)).Key, key(21))
	deepEqual(t, v.BidderPotByAuctionAndBidder(auction, key(30)).Key, key(23))
	deepEqual(t, len(v.BidderPotsOfAuction(auction)), 1)
	isnil(t, v.BidderPotByAuctionAndBidder(auction, key(31)))
}

func TestStore_AuctionManagerRelations(t *testing.T) {
	s := newTestStore(t, ZeroPubkey)
	am := key(1)
	apply(t, s, am, &AuctionManager{Store: key(70), Auction: key(2), Vault: key(3)})
	apply(t, s, key(10), &SafetyDepositConfig{AuctionManager: am, Order: 1, AmountType: 1, LengthType: 1})
	apply(t, s, key(11), &SafetyDepositConfig{AuctionManager: am, Order: 0, AmountType: 1, LengthType: 1})
	apply(t, s, key(12), &BidRedemptionTicket{Version: 2, WinnerIndex: u64p(4), AuctionManager: am})
	apply(t, s, key(13), &BidRedemptionTicket{Version: 1})
	apply(t, s, key(14), &PrizeTrackingTicket{Metadata: key(5), ExpectedRedemptions: 3})
	apply(t, s, key(15), &PayoutTicket{Recipient: key(6), AmountPaid: 10})
	apply(t, s, key(16), &PayoutTicket{Recipient: key(6), AmountPaid: 20})

	v := s.View()
	deepEqual(t, v.AuctionManagerByAuction(key(2)).Key, am)
	deepEqual(t, v.AuctionManagerByVault(key(3)).Key, am)
	deepEqual(t, len(v.AuctionManagers()), 1)

	cfgs := v.SafetyDepositConfigsOf(am)
	require.Len(t, cfgs, 2)
	deepEqual(t, cfgs[0].Key, key(11))
	deepEqual(t, v.SafetyDepositConfigAt(am, 1).Key, key(10))

	deepEqual(t, v.BidRedemptionForWinner(am, 4).Key, key(12))
	isnil(t, v.BidRedemptionForWinner(am, 0))
	isnonnil(t, v.BidRedemption(key(13)))

	deepEqual(t, len(v.PrizeTrackingTicketsOf(key(5))), 1)
	deepEqual(t, len(v.PayoutTicketsOf(key(6))), 2)
}

func TestStore_AdmissionForStore(t *testing.T) {
	storeKey := key(100)
	s := newTestStore(t, storeKey)

	chg := apply(t, s, key(1), &AuctionManager{Store: key(101), Auction: key(2)})
	deepEqual(t, chg.Op, OpSkip)
	assert.Contains(t, chg.String(), "another store")

	chg = apply(t, s, key(3), &AuctionManager{Store: storeKey, Auction: key(4)})
	deepEqual(t, chg.Op, OpPut)

	creator := key(5)
	chg = apply(t, s, key(6), &WhitelistedCreator{Address: creator, Activated: true})
	deepEqual(t, chg.Op, OpSkip)

	pda := WhitelistedCreatorAddress(testPrograms.Metaplex, storeKey, creator)
	chg = apply(t, s, pda, &WhitelistedCreator{Address: creator, Activated: true})
	deepEqual(t, chg.Op, OpPut)

	v := s.View()
	isnil(t, v.AuctionManagerByAuction(key(2)))
	deepEqual(t, v.AuctionManagerByAuction(key(4)).Key, key(3))
	deepEqual(t, v.WhitelistedCreatorByAddress(creator).Key, pda)
	deepEqual(t, len(v.WhitelistedCreators()), 1)
}

func TestStore_NoStoreConfigured(t *testing.T) {
	s := newTestStore(t, ZeroPubkey)
	deepEqual(t, apply(t, s, key(1), &AuctionManager{Store: key(101)}).Op, OpPut)
	deepEqual(t, apply(t, s, key(2), &WhitelistedCreator{Address: key(3)}).Op, OpPut)
	apply(t, s, key(4), testMetadata(key(5), "https://arweave.net/a", Creator{Address: key(3), Verified: true}))

	v := s.View()
	isnil(t, v.Store())
	isempty(t, v.AdmissibleMetadata())
	deepEqual(t, len(v.ListedMetadata()), 1)
}

func TestStore_AdmissibleMetadata(t *testing.T) {
	storeKey := key(100)
	s := newTestStore(t, storeKey)
	apply(t, s, storeKey, &Store{Public: false})

	c, d := key(10), key(11)
	apply(t, s, WhitelistedCreatorAddress(testPrograms.Metaplex, storeKey, c), &WhitelistedCreator{Address: c, Activated: true})
	apply(t, s, WhitelistedCreatorAddress(testPrograms.Metaplex, storeKey, d), &WhitelistedCreator{Address: d, Activated: false})

	apply(t, s, key(1), testMetadata(key(21), "https://arweave.net/1", Creator{Address: c, Verified: true, Share: 100}))
	apply(t, s, key(2), testMetadata(key(22), "https://arweave.net/2"))
	apply(t, s, key(3), testMetadata(key(23), "https://arweave.net/3", Creator{Address: d, Verified: true, Share: 100}))
	apply(t, s, key(4), testMetadata(key(24), "https://arweave.net/4", Creator{Address: c, Share: 100}))
	// e has no whitelist entry at all
	e := key(12)
	apply(t, s, key(5), testMetadata(key(25), "https://arweave.net/5", Creator{Address: e, Verified: true, Share: 100}))

	v := s.View()
	deepEqual(t, v.Store().Info.Public, false)
	isnil(t, v.WhitelistedCreatorByAddress(e))
	got := v.AdmissibleMetadata()
	require.Len(t, got, 1)
	deepEqual(t, got[0].Key, key(1))
	deepEqual(t, v.IsAdmissible(v.Metadata(key(3)).Info), false)
	deepEqual(t, v.IsAdmissible(v.Metadata(key(5)).Info), false)

	apply(t, s, storeKey, &Store{Public: true})
	v = s.View()
	var keys []Pubkey
	for _, m := range v.AdmissibleMetadata() {
		keys = append(keys, m.Key)
	}
	deepEqual(t, keys, []Pubkey{key(1), key(3), key(5)})
}

func TestStore_IndexPages(t *testing.T) {
	storeKey := key(100)
	s := newTestStore(t, storeKey)

	chg := apply(t, s, key(1), &StoreIndexer{Store: key(101), Page: 0, AuctionCaches: []Pubkey{key(9)}})
	deepEqual(t, chg.Op, OpSkip)
	assert.Contains(t, chg.String(), "store indexer of another store")
	chg = apply(t, s, key(2), &AuctionCache{Store: key(101), Auction: key(30)})
	deepEqual(t, chg.Op, OpSkip)

	apply(t, s, key(3), &StoreIndexer{Store: storeKey, Page: 1, AuctionCaches: []Pubkey{key(12)}})
	apply(t, s, key(4), &StoreIndexer{Store: storeKey, Page: 0, AuctionCaches: []Pubkey{key(10), key(11)}})
	apply(t, s, key(10), &AuctionCache{Store: storeKey, Timestamp: 100, Metadata: []Pubkey{key(40)}, Auction: key(20), Vault: key(21), AuctionManager: key(22)})
	apply(t, s, key(11), &AuctionCache{Store: storeKey, Timestamp: 200, Auction: key(23)})

	v := s.View()
	isnil(t, v.StoreIndexer(key(1)))
	isnil(t, v.AuctionCacheByAuction(key(30)))
	deepEqual(t, v.StoreIndexerPage(storeKey, 0).Key, key(4))
	deepEqual(t, v.StoreIndexerPage(storeKey, 1).Info.AuctionCaches, []Pubkey{key(12)})
	isnil(t, v.StoreIndexerPage(storeKey, 2))

	var pages []uint64
	for _, si := range v.StoreIndexersOf(storeKey) {
		pages = append(pages, si.Info.Page)
	}
	deepEqual(t, pages, []uint64{0, 1})

	deepEqual(t, v.AuctionCacheByAuction(key(20)).Key, key(10))
	deepEqual(t, v.AuctionCache(key(11)).Info.Timestamp, int64(200))
	deepEqual(t, len(v.AuctionCachesOfStore(storeKey)), 2)
	isempty(t, v.AuctionCachesOfStore(key(101)))

	// a page rewritten with a new page number moves in the index
	apply(t, s, key(3), &StoreIndexer{Store: storeKey, Page: 2})
	v = s.View()
	isnil(t, v.StoreIndexerPage(storeKey, 1))
	deepEqual(t, v.StoreIndexerPage(storeKey, 2).Key, key(3))
}

// checkStoreConsistency verifies that every secondary index entry resolves
// to the current row under its key, and that each row's index keys are the
// ones its indexer produces now.
func checkStoreConsistency(t *testing.T, s *IndexStore, expected map[Pubkey]Entity) {
	t.Helper()
	txn := s.db.Txn(false)
	for _, tbl := range s.schema.Tables() {
		entries := make([]int, len(tbl.indices))
		it := must(txn.Get(tbl.name, idIndexName))
		for obj := it.Next(); obj != nil; obj = it.Next() {
			r := obj.(*row)
			ib := makeIndexBuilder(tbl, r.flags, s.programs)
			if tbl.indexer != nil {
				tbl.indexer(r.entity, &ib)
			}
			deepEqual(t, r.indexKeys, ib.keys)
			for i, keys := range r.indexKeys {
				entries[i] += len(keys)
			}
			if tbl != mintsTable {
				deepEqual(t, r.entity, expected[r.key])
			}
		}
		for _, idx := range tbl.indices {
			var n int
			it := must(txn.Get(tbl.name, idx.name))
			for obj := it.Next(); obj != nil; obj = it.Next() {
				r := obj.(*row)
				if cur := lookupRow(txn, tbl, r.key); cur != r {
					t.Fatalf("** %s entry for %v points to a replaced row", idx.FullName(), r.key)
				}
				n++
			}
			if n != entries[idx.pos] {
				t.Fatalf("** %s has %d entries, rows carry %d", idx.FullName(), n, entries[idx.pos])
			}
		}
	}
	for k, ent := range expected {
		if r := lookupRow(txn, s.tableFor(ent), k); r == nil {
			t.Fatalf("** %v missing from %s", k, s.tableFor(ent).name)
		}
	}
}

func TestStore_RandomApplySequence(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	s := newTestStore(t, ZeroPubkey)
	expected := make(map[Pubkey]Entity)

	// few distinct values so that index keys collide and move often
	pick := func(base byte) Pubkey { return key(base + byte(rnd.Intn(3))) }
	gens := []func() (Pubkey, Entity){
		func() (Pubkey, Entity) {
			if rnd.Intn(2) == 0 {
				return pick(10), &MasterEdition{Version: 2, Supply: uint64(rnd.Intn(3))}
			}
			return pick(10), &MasterEdition{Version: 1, PrintingMint: pick(150), OneTimePrintingAuthorizationMint: pick(150)}
		},
		func() (Pubkey, Entity) {
			return pick(20), &SafetyDepositBox{Vault: pick(160), Order: uint8(rnd.Intn(3))}
		},
		func() (Pubkey, Entity) {
			return pick(30), &BidderMetadata{BidderPubkey: pick(170), AuctionPubkey: pick(180), LastBid: uint64(rnd.Intn(5))}
		},
		func() (Pubkey, Entity) {
			return pick(40), &BidderPot{BidderPot: pick(190), BidderAct: pick(170), AuctionAct: pick(180)}
		},
		func() (Pubkey, Entity) {
			return pick(50), testMetadata(pick(200), "https://arweave.net/x")
		},
		func() (Pubkey, Entity) {
			return pick(60), &AuctionManager{Store: pick(210), Auction: pick(180), Vault: pick(160)}
		},
		func() (Pubkey, Entity) {
			return pick(70), &Edition{Parent: pick(10), Edition: uint64(rnd.Intn(3))}
		},
		func() (Pubkey, Entity) {
			return pick(80), &AuctionCache{Store: pick(210), Auction: pick(180), Metadata: []Pubkey{pick(50)}}
		},
		func() (Pubkey, Entity) {
			return pick(90), &StoreIndexer{Store: pick(210), Page: uint64(rnd.Intn(3))}
		},
	}

	for step := range 500 {
		if rnd.Intn(10) == 0 {
			s.PutMints([]*MintInfo{{Mint: pick(200), Supply: uint64(1 + rnd.Intn(2)), IsInitialized: true}})
		} else {
			k, ent := gens[rnd.Intn(len(gens))]()
			apply(t, s, k, ent)
			expected[k] = ent
		}
		checkStoreConsistency(t, s, expected)
		if t.Failed() {
			t.Fatalf("** inconsistent after step %d", step)
		}
	}
}

func TestStore_PutMints(t *testing.T) {
	s := newTestStore(t, ZeroPubkey)
	fungible, nft := key(21), key(22)
	apply(t, s, key(1), testMetadata(fungible, "https://arweave.net/1"))
	apply(t, s, key(2), testMetadata(nft, "https://arweave.net/2"))
	deepEqual(t, len(s.View().ListedMetadata()), 2)

	mints := []*MintInfo{
		{Mint: fungible, Supply: 1_000_000, Decimals: 6, IsInitialized: true},
		{Mint: nft, Supply: 1, IsInitialized: true},
	}
	deepEqual(t, s.PutMints(mints), 1)

	v := s.View()
	listed := v.ListedMetadata()
	require.Len(t, listed, 1)
	deepEqual(t, listed[0].Key, key(2))
	isnil(t, v.MetadataByMint(fungible))
	isnonnil(t, v.Metadata(key(1)))
	isnil(t, v.MetadataByMasterEdition(MasterEditionAddress(testPrograms.Metadata, fungible)))
	deepEqual(t, v.MetadataByMasterEdition(MasterEditionAddress(testPrograms.Metadata, nft)).Key, key(2))
	deepEqual(t, v.Mint(fungible).IsFungible(), true)
	deepEqual(t, len(v.Mints()), 2)

	deepEqual(t, s.PutMints(mints), 0)

	// metadata arriving after its mint is classified right away
	apply(t, s, key(3), testMetadata(fungible, "https://arweave.net/3"))
	isnil(t, s.View().MetadataByMint(fungible))
	deepEqual(t, s.View().TableStats(metadataTable), TableStats{Rows: 3, IndexRows: 3 + 1 + 1, Listed: 1})
}

func TestStore_MetadataFilter(t *testing.T) {
	s := NewIndexStore(StoreOptions{Programs: testPrograms, MetadataFilter: ArweaveOnly, Logf: t.Logf})
	apply(t, s, key(1), testMetadata(key(21), "https://arweave.net/abc"))
	apply(t, s, key(2), testMetadata(key(22), "https://example.com/abc"))

	v := s.View()
	deepEqual(t, len(v.ListedMetadata()), 1)
	isnil(t, v.MetadataByMint(key(22)))
	isnonnil(t, v.Metadata(key(2)))

	// a URI change re-evaluates the filter
	apply(t, s, key(2), testMetadata(key(22), "https://arweave.net/moved"))
	isnonnil(t, s.View().MetadataByMint(key(22)))
}

func TestChange_String(t *testing.T) {
	chg := Change{table: vaultsTable, Op: OpSkip, Key: key(1), Reason: "nope"}
	deepEqual(t, chg.String(), "skip vaults/"+key(1).String()+": nope")
	deepEqual(t, Op(42).String(), "invalid op 42")
	deepEqual(t, (&Change{}).TableName(), "")
}
