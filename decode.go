package ledgeridx

import (
	"fmt"
)

type variant struct {
	kind       Kind
	name       string
	tag        uint8
	tagged     bool
	minSize    int
	deprecated bool
	decode     func(d *layoutReader) Entity
}

// categoryTable maps discriminators of one category to their variants.
// Tag 0 is a legacy alias for the first variant of the category.
type categoryTable struct {
	cat      Category
	variants map[uint8]*variant
	first    *variant
}

func newCategoryTable(cat Category, first uint8, vs ...*variant) *categoryTable {
	ct := &categoryTable{cat: cat, variants: make(map[uint8]*variant, len(vs))}
	for _, v := range vs {
		v.tagged = true
		if ct.variants[v.tag] != nil {
			panic(fmt.Errorf("%v: duplicate tag %d", cat, v.tag))
		}
		ct.variants[v.tag] = v
	}
	ct.first = ct.variants[first]
	if ct.first == nil || ct.first.deprecated {
		panic(fmt.Errorf("%v: invalid alias tag %d", cat, first))
	}
	return ct
}

func (ct *categoryTable) lookup(tag uint8) *variant {
	if tag == 0 {
		return ct.first
	}
	return ct.variants[tag]
}

var (
	vaultTags = newCategoryTable(CategoryVault, vaultKeyVaultV1,
		&variant{kind: KindVault, name: "VaultV1", tag: vaultKeyVaultV1, minSize: vaultMinSize, decode: decodeVault},
		&variant{kind: KindSafetyDepositBox, name: "SafetyDepositBoxV1", tag: vaultKeySafetyDepositBoxV1, minSize: safetyDepositBoxSize, decode: decodeSafetyDepositBox},
		&variant{kind: KindExternalPriceAccount, name: "ExternalPriceAccountV1", tag: vaultKeyExternalPriceAccountV1, minSize: externalPriceAccountSize, decode: decodeExternalPriceAccount},
	)

	metadataTags = newCategoryTable(CategoryMetadata, metadataKeyMetadataV1,
		&variant{kind: KindMetadata, name: "MetadataV1", tag: metadataKeyMetadataV1, minSize: metadataMinSize, decode: decodeMetadata},
		&variant{kind: KindEdition, name: "EditionV1", tag: metadataKeyEditionV1, minSize: editionSize, decode: decodeEdition},
		&variant{kind: KindMasterEdition, name: "MasterEditionV1", tag: metadataKeyMasterEditionV1, minSize: masterEditionV1MinSize, decode: decodeMasterEditionV1},
		&variant{kind: KindMasterEdition, name: "MasterEditionV2", tag: metadataKeyMasterEditionV2, minSize: masterEditionV2MinSize, decode: decodeMasterEditionV2},
		&variant{kind: KindEditionMarker, name: "EditionMarker", tag: metadataKeyEditionMarker, minSize: editionMarkerSize, decode: decodeEditionMarker},
		&variant{name: "ReservationListV1", tag: metadataKeyReservationListV1, deprecated: true},
		&variant{name: "ReservationListV2", tag: metadataKeyReservationListV2, deprecated: true},
	)

	metaplexTags = newCategoryTable(CategoryMetaplex, metaplexKeyBidRedemptionTicketV1,
		&variant{kind: KindBidRedemptionTicket, name: "BidRedemptionTicketV1", tag: metaplexKeyBidRedemptionTicketV1, minSize: bidRedemptionTicketV1Size, decode: decodeBidRedemptionTicketV1},
		&variant{kind: KindStore, name: "StoreV1", tag: metaplexKeyStoreV1, minSize: storeMinSize, decode: decodeStore},
		&variant{kind: KindWhitelistedCreator, name: "WhitelistedCreatorV1", tag: metaplexKeyWhitelistedCreatorV1, minSize: whitelistedCreatorSize, decode: decodeWhitelistedCreator},
		&variant{kind: KindPayoutTicket, name: "PayoutTicketV1", tag: metaplexKeyPayoutTicketV1, minSize: payoutTicketSize, decode: decodePayoutTicket},
		&variant{kind: KindPrizeTrackingTicket, name: "PrizeTrackingTicketV1", tag: metaplexKeyPrizeTrackingTicketV1, minSize: prizeTrackingTicketSize, decode: decodePrizeTrackingTicket},
		&variant{kind: KindSafetyDepositConfig, name: "SafetyDepositConfigV1", tag: metaplexKeySafetyDepositConfigV1, minSize: safetyDepositConfigMinSize, decode: decodeSafetyDepositConfig},
		&variant{kind: KindAuctionManager, name: "AuctionManagerV2", tag: metaplexKeyAuctionManagerV2, minSize: auctionManagerV2MinSize, decode: decodeAuctionManagerV2},
		&variant{kind: KindBidRedemptionTicket, name: "BidRedemptionTicketV2", tag: metaplexKeyBidRedemptionTicketV2, minSize: bidRedemptionTicketV2MinSize, decode: decodeBidRedemptionTicketV2},
		&variant{kind: KindStoreIndexer, name: "StoreIndexerV1", tag: metaplexKeyStoreIndexerV1, minSize: storeIndexerMinSize, decode: decodeStoreIndexer},
		&variant{kind: KindAuctionCache, name: "AuctionCacheV1", tag: metaplexKeyAuctionCacheV1, minSize: auctionCacheMinSize, decode: decodeAuctionCache},
		&variant{name: "AuctionManagerV1", tag: metaplexKeyAuctionManagerV1, deprecated: true},
	)

	auctionDataVariant         = &variant{kind: KindAuction, name: "AuctionData", minSize: auctionDataMinSize, decode: decodeAuctionData}
	auctionDataExtendedVariant = &variant{kind: KindAuctionExtended, name: "AuctionDataExtended", minSize: auctionDataExtendedSize, decode: decodeAuctionDataExtended}
	bidderMetadataVariant      = &variant{kind: KindBidderMetadata, name: "BidderMetadata", minSize: bidderMetadataSize, decode: decodeBidderMetadata}
	bidderPotVariant           = &variant{kind: KindBidderPot, name: "BidderPot", minSize: bidderPotSize, decode: decodeBidderPot}
)

// Auction program accounts carry no discriminator; the fixed-size ones are
// recognized by exact length regardless of their first byte.
func auctionVariantFor(data []byte) *variant {
	switch len(data) {
	case bidderMetadataSize:
		return bidderMetadataVariant
	case bidderPotSize:
		return bidderPotVariant
	case auctionDataExtendedSize:
		return auctionDataExtendedVariant
	default:
		return auctionDataVariant
	}
}

func tableOf(cat Category) *categoryTable {
	switch cat {
	case CategoryVault:
		return vaultTags
	case CategoryMetadata:
		return metadataTags
	case CategoryMetaplex:
		return metaplexTags
	default:
		return nil
	}
}

// Decode resolves the record's category from its owner and decodes it.
func Decode(rec *Record, programs ProgramIDs) (Entity, error) {
	cat, ok := programs.CategoryOf(rec.Owner)
	if !ok {
		return nil, &DecodeError{Key: rec.Key, Category: cat, Data: rec.Data, Err: ErrOwnerMismatch, Msg: fmt.Sprintf("owner %v is not an indexed program", rec.Owner)}
	}
	return DecodeCategory(cat, programs.Program(cat), rec)
}

// DecodeCategory decodes a record that is expected to be owned by the given
// program. It checks the owner, then the discriminator, then the minimum
// length, and only then interprets the fields.
func DecodeCategory(cat Category, expectedOwner Pubkey, rec *Record) (Entity, error) {
	ent, err := decodeCategory(cat, expectedOwner, rec)
	if err != nil {
		err.Key = rec.Key
		err.Category = cat
		return nil, err
	}
	return ent, nil
}

func decodeCategory(cat Category, expectedOwner Pubkey, rec *Record) (Entity, *DecodeError) {
	data := rec.Data
	if rec.Owner != expectedOwner {
		return nil, decodeErrf(data, 0, ErrOwnerMismatch, "owner %v, expected %v", rec.Owner, expectedOwner)
	}

	var v *variant
	if cat == CategoryAuction {
		v = auctionVariantFor(data)
	} else {
		ct := tableOf(cat)
		if ct == nil {
			return nil, decodeErrf(data, 0, ErrUnknownVariant, "invalid category")
		}
		if len(data) == 0 {
			return nil, decodeErrf(data, 0, ErrTooShort, "empty payload")
		}
		v = ct.lookup(data[0])
		if v == nil {
			return nil, decodeErrf(data, 0, ErrUnknownVariant, "tag %d", data[0])
		}
		if v.deprecated {
			return nil, decodeErrf(data, 0, ErrDeprecatedFormat, "%s", v.name)
		}
	}

	if len(data) < v.minSize {
		return nil, decodeErrf(data, len(data), ErrTooShort, "%s needs %d bytes", v.name, v.minSize)
	}

	d := makeLayoutReader(data)
	if v.tagged {
		d.Skip(1)
	}
	ent := v.decode(&d)
	if d.err != nil {
		return nil, d.err
	}
	return ent, nil
}

// Encode produces the canonical account layout of an entity.
func Encode(ent Entity) []byte {
	var w layoutWriter
	switch ent := ent.(type) {
	case *Vault:
		encodeVault(&w, ent)
	case *SafetyDepositBox:
		encodeSafetyDepositBox(&w, ent)
	case *ExternalPriceAccount:
		encodeExternalPriceAccount(&w, ent)
	case *Metadata:
		encodeMetadata(&w, ent)
	case *Edition:
		encodeEdition(&w, ent)
	case *MasterEdition:
		encodeMasterEdition(&w, ent)
	case *EditionMarker:
		encodeEditionMarker(&w, ent)
	case *AuctionData:
		encodeAuctionData(&w, ent)
	case *AuctionDataExtended:
		encodeAuctionDataExtended(&w, ent)
	case *BidderMetadata:
		encodeBidderMetadata(&w, ent)
	case *BidderPot:
		encodeBidderPot(&w, ent)
	case *Store:
		encodeStore(&w, ent)
	case *WhitelistedCreator:
		encodeWhitelistedCreator(&w, ent)
	case *PayoutTicket:
		encodePayoutTicket(&w, ent)
	case *PrizeTrackingTicket:
		encodePrizeTrackingTicket(&w, ent)
	case *AuctionManager:
		encodeAuctionManagerV2(&w, ent)
	case *BidRedemptionTicket:
		encodeBidRedemptionTicket(&w, ent)
	case *SafetyDepositConfig:
		encodeSafetyDepositConfig(&w, ent)
	case *StoreIndexer:
		encodeStoreIndexer(&w, ent)
	case *AuctionCache:
		encodeAuctionCache(&w, ent)
	case *MintInfo:
		encodeMint(&w, ent)
	default:
		panic(fmt.Errorf("cannot encode %T", ent))
	}
	return w.Buf
}
