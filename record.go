package ledgeridx

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Record is a raw account as fetched from the ledger. Records are never
// mutated; a newer record for the same key supersedes an older one.
type Record struct {
	Key      Pubkey `msgpack:"k"`
	Owner    Pubkey `msgpack:"o"`
	Data     []byte `msgpack:"d"`
	Lamports uint64 `msgpack:"l"`
	Slot     uint64 `msgpack:"s,omitempty"`
}

func (rec *Record) Fingerprint() uint64 {
	return xxhash.Sum64(rec.Data)
}

func (rec *Record) meta() RowMeta {
	return RowMeta{
		Slot:        rec.Slot,
		Lamports:    rec.Lamports,
		Fingerprint: rec.Fingerprint(),
	}
}

type Category int

const (
	CategoryVault Category = iota
	CategoryMetadata
	CategoryAuction
	CategoryMetaplex

	categoryCount = 4

	categoryUnknown Category = -1
)

var allCategories = [categoryCount]Category{CategoryVault, CategoryMetadata, CategoryAuction, CategoryMetaplex}

func Categories() []Category {
	return allCategories[:]
}

func (c Category) String() string {
	switch c {
	case CategoryVault:
		return "vault"
	case CategoryMetadata:
		return "metadata"
	case CategoryAuction:
		return "auction"
	case CategoryMetaplex:
		return "metaplex"
	case categoryUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ProgramIDs names the owning program of each category.
type ProgramIDs struct {
	Vault    Pubkey `yaml:"vault"`
	Metadata Pubkey `yaml:"metadata"`
	Auction  Pubkey `yaml:"auction"`
	Metaplex Pubkey `yaml:"metaplex"`
}

func DefaultProgramIDs() ProgramIDs {
	return ProgramIDs{
		Vault:    MustParsePubkey("vau1zxA2LbssAUEF7Gpw91zMM1LvXrvpzJtmZ58rPsn"),
		Metadata: MustParsePubkey("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"),
		Auction:  MustParsePubkey("auctxRXPeJoc4817jDhf4HbjnhEcr1cCXenosMhK5R8"),
		Metaplex: MustParsePubkey("p1exdMJcjVao65QdewkaZRUnU6VPSXhus9n2GzWfh98"),
	}
}

func (p ProgramIDs) Program(c Category) Pubkey {
	switch c {
	case CategoryVault:
		return p.Vault
	case CategoryMetadata:
		return p.Metadata
	case CategoryAuction:
		return p.Auction
	case CategoryMetaplex:
		return p.Metaplex
	default:
		panic(fmt.Errorf("invalid category %d", int(c)))
	}
}

func (p ProgramIDs) CategoryOf(owner Pubkey) (Category, bool) {
	for _, c := range allCategories {
		if p.Program(c) == owner {
			return c, true
		}
	}
	return categoryUnknown, false
}
