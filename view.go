package ledgeridx

import (
	"sync"

	"github.com/hashicorp/go-memdb"
)

// View is a read-only snapshot of an index store. It never changes after
// creation, so it can be shared freely and its derived collections are
// computed at most once.
type View struct {
	store *IndexStore
	txn   *memdb.Txn

	admissibleOnce sync.Once
	admissible     []*Parsed[Metadata]
}

func newView(s *IndexStore, txn *memdb.Txn) *View {
	return &View{store: s, txn: txn}
}

func parsedFrom[E any](r *row) *Parsed[E] {
	return &Parsed[E]{
		Key:      r.key,
		Lamports: r.meta.Lamports,
		Slot:     r.meta.Slot,
		Info:     any(r.entity).(*E),
	}
}

func get[E any](v *View, tbl *Table, key Pubkey) *Parsed[E] {
	r := lookupRow(v.txn, tbl, key)
	if r == nil {
		return nil
	}
	return parsedFrom[E](r)
}

func lookup[E any](v *View, idx *Index, parts ...any) *Parsed[E] {
	obj := must(v.txn.First(idx.table.name, idx.name, parts...))
	if obj == nil {
		return nil
	}
	return parsedFrom[E](obj.(*row))
}

func scan[E any](v *View, idx *Index, parts ...any) []*Parsed[E] {
	it := must(v.txn.Get(idx.table.name, idx.name, parts...))
	var result []*Parsed[E]
	for obj := it.Next(); obj != nil; obj = it.Next() {
		result = append(result, parsedFrom[E](obj.(*row)))
	}
	return result
}

func all[E any](v *View, tbl *Table) []*Parsed[E] {
	it := must(v.txn.Get(tbl.name, idIndexName))
	var result []*Parsed[E]
	for obj := it.Next(); obj != nil; obj = it.Next() {
		result = append(result, parsedFrom[E](obj.(*row)))
	}
	return result
}

func (v *View) Programs() ProgramIDs {
	return v.store.programs
}

func (v *View) Metadata(key Pubkey) *Parsed[Metadata] {
	return get[Metadata](v, metadataTable, key)
}

func (v *View) Edition(key Pubkey) *Parsed[Edition] {
	return get[Edition](v, editionsTable, key)
}

func (v *View) MasterEdition(key Pubkey) *Parsed[MasterEdition] {
	return get[MasterEdition](v, masterEditionsTable, key)
}

func (v *View) EditionMarker(key Pubkey) *Parsed[EditionMarker] {
	return get[EditionMarker](v, editionMarkersTable, key)
}

func (v *View) Vault(key Pubkey) *Parsed[Vault] {
	return get[Vault](v, vaultsTable, key)
}

func (v *View) SafetyDepositBox(key Pubkey) *Parsed[SafetyDepositBox] {
	return get[SafetyDepositBox](v, safetyDepositBoxesTable, key)
}

func (v *View) ExternalPriceAccount(key Pubkey) *Parsed[ExternalPriceAccount] {
	return get[ExternalPriceAccount](v, externalPriceAccountsTable, key)
}

func (v *View) Auction(key Pubkey) *Parsed[AuctionData] {
	return get[AuctionData](v, auctionsTable, key)
}

func (v *View) AuctionExtended(key Pubkey) *Parsed[AuctionDataExtended] {
	return get[AuctionDataExtended](v, auctionsExtendedTable, key)
}

func (v *View) BidderMetadata(key Pubkey) *Parsed[BidderMetadata] {
	return get[BidderMetadata](v, bidderMetadataTable, key)
}

func (v *View) BidderPot(key Pubkey) *Parsed[BidderPot] {
	return get[BidderPot](v, bidderPotsTable, key)
}

func (v *View) AuctionManager(key Pubkey) *Parsed[AuctionManager] {
	return get[AuctionManager](v, auctionManagersTable, key)
}

func (v *View) WhitelistedCreator(key Pubkey) *Parsed[WhitelistedCreator] {
	return get[WhitelistedCreator](v, whitelistedCreatorsTable, key)
}

func (v *View) PayoutTicket(key Pubkey) *Parsed[PayoutTicket] {
	return get[PayoutTicket](v, payoutTicketsTable, key)
}

func (v *View) PrizeTrackingTicket(key Pubkey) *Parsed[PrizeTrackingTicket] {
	return get[PrizeTrackingTicket](v, prizeTrackingTicketsTable, key)
}

func (v *View) BidRedemption(key Pubkey) *Parsed[BidRedemptionTicket] {
	return get[BidRedemptionTicket](v, bidRedemptionsTable, key)
}

func (v *View) SafetyDepositConfig(key Pubkey) *Parsed[SafetyDepositConfig] {
	return get[SafetyDepositConfig](v, safetyDepositConfigsTable, key)
}

func (v *View) StoreIndexer(key Pubkey) *Parsed[StoreIndexer] {
	return get[StoreIndexer](v, storeIndexersTable, key)
}

func (v *View) AuctionCache(key Pubkey) *Parsed[AuctionCache] {
	return get[AuctionCache](v, auctionCachesTable, key)
}

func (v *View) Mint(mint Pubkey) *MintInfo {
	r := lookupRow(v.txn, mintsTable, mint)
	if r == nil {
		return nil
	}
	return r.entity.(*MintInfo)
}

// Store returns the configured store, or nil when it is not configured or
// has not been seen yet.
func (v *View) Store() *Parsed[Store] {
	if v.store.storeKey.IsZero() {
		return nil
	}
	return get[Store](v, storesTable, v.store.storeKey)
}

// MetadataByMint looks up listed, non-fungible metadata.
func (v *View) MetadataByMint(mint Pubkey) *Parsed[Metadata] {
	return lookup[Metadata](v, metadataByMint, mint)
}

func (v *View) MetadataByMasterEdition(masterEdition Pubkey) *Parsed[Metadata] {
	return lookup[Metadata](v, metadataByMasterEdition, masterEdition)
}

func (v *View) MasterEditionByPrintingMint(mint Pubkey) *Parsed[MasterEdition] {
	return lookup[MasterEdition](v, masterEditionsByPrintingMint, mint)
}

func (v *View) MasterEditionByOneTimeAuthMint(mint Pubkey) *Parsed[MasterEdition] {
	return lookup[MasterEdition](v, masterEditionsByOneTimeAuthMint, mint)
}

func (v *View) EditionsOf(masterEdition Pubkey) []*Parsed[Edition] {
	return scan[Edition](v, editionsByParent, masterEdition)
}

func (v *View) VaultByFractionMint(mint Pubkey) *Parsed[Vault] {
	return lookup[Vault](v, vaultsByFractionMint, mint)
}

func (v *View) SafetyDepositBoxAt(vault Pubkey, order uint8) *Parsed[SafetyDepositBox] {
	return lookup[SafetyDepositBox](v, safetyDepositBoxesByVaultAndOrder, vault, order)
}

// SafetyDepositBoxesOfVault returns the vault's boxes ordered by their order.
func (v *View) SafetyDepositBoxesOfVault(vault Pubkey) []*Parsed[SafetyDepositBox] {
	return scan[SafetyDepositBox](v, safetyDepositBoxesByVaultAndOrder, vault)
}

func (v *View) AuctionByTokenMint(mint Pubkey) *Parsed[AuctionData] {
	return lookup[AuctionData](v, auctionsByTokenMint, mint)
}

func (v *View) BidderMetadataByAuctionAndBidder(auction, bidder Pubkey) *Parsed[BidderMetadata] {
	return lookup[BidderMetadata](v, bidderMetadataByAuctionAndBidder, auction, bidder)
}

func (v *View) BidderMetadataOfAuction(auction Pubkey) []*Parsed[BidderMetadata] {
	return scan[BidderMetadata](v, bidderMetadataByAuctionAndBidder, auction)
}

func (v *View) BidderPotByAuctionAndBidder(auction, bidder Pubkey) *Parsed[BidderPot] {
	return lookup[BidderPot](v, bidderPotsByAuctionAndBidder, auction, bidder)
}

func (v *View) BidderPotsOfAuction(auction Pubkey) []*Parsed[BidderPot] {
	return scan[BidderPot](v, bidderPotsByAuctionAndBidder, auction)
}

func (v *View) AuctionManagerByAuction(auction Pubkey) *Parsed[AuctionManager] {
	return lookup[AuctionManager](v, auctionManagersByAuction, auction)
}

func (v *View) AuctionManagerByVault(vault Pubkey) *Parsed[AuctionManager] {
	return lookup[AuctionManager](v, auctionManagersByVault, vault)
}

func (v *View) WhitelistedCreatorByAddress(creator Pubkey) *Parsed[WhitelistedCreator] {
	return lookup[WhitelistedCreator](v, whitelistedCreatorsByAddress, creator)
}

func (v *View) PayoutTicketsOf(recipient Pubkey) []*Parsed[PayoutTicket] {
	return scan[PayoutTicket](v, payoutTicketsByRecipient, recipient)
}

func (v *View) PrizeTrackingTicketsOf(metadata Pubkey) []*Parsed[PrizeTrackingTicket] {
	return scan[PrizeTrackingTicket](v, prizeTrackingTicketsByMetadata, metadata)
}

func (v *View) BidRedemptionForWinner(auctionManager Pubkey, winnerIndex uint64) *Parsed[BidRedemptionTicket] {
	return lookup[BidRedemptionTicket](v, bidRedemptionsByManagerAndWinner, auctionManager, winnerIndex)
}

func (v *View) SafetyDepositConfigAt(auctionManager Pubkey, order uint64) *Parsed[SafetyDepositConfig] {
	return lookup[SafetyDepositConfig](v, safetyDepositConfigsByManagerAndOrder, auctionManager, order)
}

func (v *View) SafetyDepositConfigsOf(auctionManager Pubkey) []*Parsed[SafetyDepositConfig] {
	return scan[SafetyDepositConfig](v, safetyDepositConfigsByManagerAndOrder, auctionManager)
}

func (v *View) StoreIndexerPage(store Pubkey, page uint64) *Parsed[StoreIndexer] {
	return lookup[StoreIndexer](v, storeIndexersByStoreAndPage, store, page)
}

// StoreIndexersOf returns the store's indexer pages in page order.
func (v *View) StoreIndexersOf(store Pubkey) []*Parsed[StoreIndexer] {
	return scan[StoreIndexer](v, storeIndexersByStoreAndPage, store)
}

func (v *View) AuctionCacheByAuction(auction Pubkey) *Parsed[AuctionCache] {
	return lookup[AuctionCache](v, auctionCachesByAuction, auction)
}

func (v *View) AuctionCachesOfStore(store Pubkey) []*Parsed[AuctionCache] {
	return scan[AuctionCache](v, auctionCachesByStore, store)
}

func (v *View) AuctionManagers() []*Parsed[AuctionManager] {
	return all[AuctionManager](v, auctionManagersTable)
}

func (v *View) Auctions() []*Parsed[AuctionData] {
	return all[AuctionData](v, auctionsTable)
}

func (v *View) Vaults() []*Parsed[Vault] {
	return all[Vault](v, vaultsTable)
}

func (v *View) WhitelistedCreators() []*Parsed[WhitelistedCreator] {
	return all[WhitelistedCreator](v, whitelistedCreatorsTable)
}

// ListedMetadata returns every metadata that passed the listing filter and
// is not known to be fungible, ordered by mint.
func (v *View) ListedMetadata() []*Parsed[Metadata] {
	return scan[Metadata](v, metadataByMint)
}

// AdmissibleMetadata returns the listed metadata that may be shown for the
// configured store: at least one verified creator must either belong to a
// public store or hold an activated whitelist entry.
func (v *View) AdmissibleMetadata() []*Parsed[Metadata] {
	v.admissibleOnce.Do(func() {
		store := v.Store()
		if store == nil {
			return
		}
		for _, m := range v.ListedMetadata() {
			if v.isAdmissible(m.Info, store.Info) {
				v.admissible = append(v.admissible, m)
			}
		}
	})
	return v.admissible
}

func (v *View) IsAdmissible(m *Metadata) bool {
	store := v.Store()
	if store == nil {
		return false
	}
	return v.isAdmissible(m, store.Info)
}

func (v *View) isAdmissible(m *Metadata, store *Store) bool {
	for _, c := range m.Creators {
		if !c.Verified {
			continue
		}
		if store.Public {
			return true
		}
		if wc := v.WhitelistedCreatorByAddress(c.Address); wc != nil && wc.Info.Activated {
			return true
		}
	}
	return false
}

func (v *View) Mints() []*MintInfo {
	it := must(v.txn.Get(mintsTable.name, idIndexName))
	var result []*MintInfo
	for obj := it.Next(); obj != nil; obj = it.Next() {
		result = append(result, obj.(*row).entity.(*MintInfo))
	}
	return result
}
