package ledgeridx

import (
	"reflect"
	"testing"
)

var testPrograms = DefaultProgramIDs()

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got %v, wanted nil", a)
	}
}

func isnonnil[T any](t testing.TB, a *T) {
	if a == nil {
		t.Helper()
		t.Errorf("** got nil, wanted non-nil")
	}
}

func key(b byte) Pubkey {
	return Pubkey{b, 0xEE}
}

func u64p(v uint64) *uint64 { return &v }

func u8p(v uint8) *uint8 { return &v }

func categoryOf(ent Entity) Category {
	switch ent.(type) {
	case *Vault, *SafetyDepositBox, *ExternalPriceAccount:
		return CategoryVault
	case *Metadata, *Edition, *MasterEdition, *EditionMarker:
		return CategoryMetadata
	case *AuctionData, *AuctionDataExtended, *BidderMetadata, *BidderPot:
		return CategoryAuction
	default:
		return CategoryMetaplex
	}
}

// rec encodes an entity into a record owned by the right program.
func rec(k Pubkey, ent Entity) *Record {
	return &Record{
		Key:      k,
		Owner:    testPrograms.Program(categoryOf(ent)),
		Data:     Encode(ent),
		Lamports: 1_000_000,
	}
}

func recAt(k Pubkey, ent Entity, slot uint64) *Record {
	r := rec(k, ent)
	r.Slot = slot
	return r
}

func newTestStore(t testing.TB, storeKey Pubkey) *IndexStore {
	return NewIndexStore(StoreOptions{
		Programs: testPrograms,
		StoreKey: storeKey,
		Logf:     t.Logf,
		Verbose:  testing.Verbose(),
	})
}

func apply(t testing.TB, s *IndexStore, k Pubkey, ent Entity) Change {
	t.Helper()
	r := rec(k, ent)
	chg, err := s.Apply(categoryOf(ent), r)
	if err != nil {
		t.Fatalf("Apply(%v) failed: %v", k, err)
	}
	return chg
}

func testMetadata(mint Pubkey, uri string, creators ...Creator) *Metadata {
	return &Metadata{
		UpdateAuthority:      key(200),
		Mint:                 mint,
		Name:                 "Item " + mint.String()[:4],
		Symbol:               "ITM",
		URI:                  uri,
		SellerFeeBasisPoints: 500,
		Creators:             creators,
		IsMutable:            true,
	}
}
