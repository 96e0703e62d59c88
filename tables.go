package ledgeridx

// RowFlags carry classification computed when a row is written.
type RowFlags uint8

const (
	// FlagFungible marks metadata whose mint turned out to be fungible.
	FlagFungible RowFlags = 1 << iota
	// FlagUnlisted marks metadata rejected by the metadata filter.
	FlagUnlisted
)

func (f RowFlags) Contains(v RowFlags) bool {
	return (f & v) == v
}

// RowMeta is the account-level information stored next to each entity.
type RowMeta struct {
	Slot        uint64
	Lamports    uint64
	Fingerprint uint64
}

type row struct {
	key       Pubkey
	entity    Entity
	meta      RowMeta
	modCount  uint64
	flags     RowFlags
	indexKeys [][][]byte
}

var (
	ledgerSchema = NewSchema()

	metadataTable = AddTable(ledgerSchema, "metadata", func(m *Metadata, ib *IndexBuilder) {
		ib.Add(metadataByMintAll, m.Mint)
		if ib.Flags.Contains(FlagFungible) || ib.Flags.Contains(FlagUnlisted) {
			return
		}
		ib.Add(metadataByMint, m.Mint)
		ib.Add(metadataByMasterEdition, MasterEditionAddress(ib.Programs.Metadata, m.Mint))
	}, []*Index{metadataByMint, metadataByMintAll, metadataByMasterEdition})
	metadataByMint          = AddIndex("mint")
	metadataByMintAll       = AddIndex("mint_all")
	metadataByMasterEdition = AddIndex("master_edition")

	editionsTable = AddTable(ledgerSchema, "editions", func(e *Edition, ib *IndexBuilder) {
		ib.Add(editionsByParent, e.Parent, e.Edition)
	}, []*Index{editionsByParent})
	editionsByParent = AddIndex("parent")

	masterEditionsTable = AddTable(ledgerSchema, "master_editions", func(me *MasterEdition, ib *IndexBuilder) {
		if me.Version != 1 {
			return
		}
		ib.Add(masterEditionsByPrintingMint, me.PrintingMint)
		ib.Add(masterEditionsByOneTimeAuthMint, me.OneTimePrintingAuthorizationMint)
	}, []*Index{masterEditionsByPrintingMint, masterEditionsByOneTimeAuthMint})
	masterEditionsByPrintingMint    = AddIndex("printing_mint")
	masterEditionsByOneTimeAuthMint = AddIndex("one_time_auth_mint")

	editionMarkersTable = AddTable[EditionMarker](ledgerSchema, "edition_markers", nil, nil)

	vaultsTable = AddTable(ledgerSchema, "vaults", func(v *Vault, ib *IndexBuilder) {
		ib.Add(vaultsByFractionMint, v.FractionMint)
	}, []*Index{vaultsByFractionMint})
	vaultsByFractionMint = AddIndex("fraction_mint")

	safetyDepositBoxesTable = AddTable(ledgerSchema, "safety_deposit_boxes", func(b *SafetyDepositBox, ib *IndexBuilder) {
		ib.Add(safetyDepositBoxesByVaultAndOrder, b.Vault, b.Order)
	}, []*Index{safetyDepositBoxesByVaultAndOrder})
	safetyDepositBoxesByVaultAndOrder = AddIndex("vault_order")

	externalPriceAccountsTable = AddTable[ExternalPriceAccount](ledgerSchema, "external_price_accounts", nil, nil)

	auctionsTable = AddTable(ledgerSchema, "auctions", func(a *AuctionData, ib *IndexBuilder) {
		ib.Add(auctionsByTokenMint, a.TokenMint)
	}, []*Index{auctionsByTokenMint})
	auctionsByTokenMint = AddIndex("token_mint")

	auctionsExtendedTable = AddTable[AuctionDataExtended](ledgerSchema, "auctions_extended", nil, nil)

	bidderMetadataTable = AddTable(ledgerSchema, "bidder_metadata", func(bm *BidderMetadata, ib *IndexBuilder) {
		ib.Add(bidderMetadataByAuctionAndBidder, bm.AuctionPubkey, bm.BidderPubkey)
	}, []*Index{bidderMetadataByAuctionAndBidder})
	bidderMetadataByAuctionAndBidder = AddIndex("auction_bidder")

	bidderPotsTable = AddTable(ledgerSchema, "bidder_pots", func(bp *BidderPot, ib *IndexBuilder) {
		ib.Add(bidderPotsByAuctionAndBidder, bp.AuctionAct, bp.BidderAct)
	}, []*Index{bidderPotsByAuctionAndBidder})
	bidderPotsByAuctionAndBidder = AddIndex("auction_bidder")

	storesTable = AddTable[Store](ledgerSchema, "stores", nil, nil)

	whitelistedCreatorsTable = AddTable(ledgerSchema, "whitelisted_creators", func(wc *WhitelistedCreator, ib *IndexBuilder) {
		ib.Add(whitelistedCreatorsByAddress, wc.Address)
	}, []*Index{whitelistedCreatorsByAddress})
	whitelistedCreatorsByAddress = AddIndex("address")

	payoutTicketsTable = AddTable(ledgerSchema, "payout_tickets", func(pt *PayoutTicket, ib *IndexBuilder) {
		ib.Add(payoutTicketsByRecipient, pt.Recipient)
	}, []*Index{payoutTicketsByRecipient})
	payoutTicketsByRecipient = AddIndex("recipient")

	prizeTrackingTicketsTable = AddTable(ledgerSchema, "prize_tracking_tickets", func(pt *PrizeTrackingTicket, ib *IndexBuilder) {
		ib.Add(prizeTrackingTicketsByMetadata, pt.Metadata)
	}, []*Index{prizeTrackingTicketsByMetadata})
	prizeTrackingTicketsByMetadata = AddIndex("metadata")

	auctionManagersTable = AddTable(ledgerSchema, "auction_managers", func(am *AuctionManager, ib *IndexBuilder) {
		ib.Add(auctionManagersByAuction, am.Auction)
		ib.Add(auctionManagersByVault, am.Vault)
	}, []*Index{auctionManagersByAuction, auctionManagersByVault})
	auctionManagersByAuction = AddIndex("auction")
	auctionManagersByVault   = AddIndex("vault")

	bidRedemptionsTable = AddTable(ledgerSchema, "bid_redemptions", func(t *BidRedemptionTicket, ib *IndexBuilder) {
		if t.Version < 2 || t.WinnerIndex == nil {
			return
		}
		ib.Add(bidRedemptionsByManagerAndWinner, t.AuctionManager, *t.WinnerIndex)
	}, []*Index{bidRedemptionsByManagerAndWinner})
	bidRedemptionsByManagerAndWinner = AddIndex("auction_manager_winner")

	safetyDepositConfigsTable = AddTable(ledgerSchema, "safety_deposit_configs", func(c *SafetyDepositConfig, ib *IndexBuilder) {
		ib.Add(safetyDepositConfigsByManagerAndOrder, c.AuctionManager, c.Order)
	}, []*Index{safetyDepositConfigsByManagerAndOrder})
	safetyDepositConfigsByManagerAndOrder = AddIndex("auction_manager_order")

	storeIndexersTable = AddTable(ledgerSchema, "store_indexers", func(si *StoreIndexer, ib *IndexBuilder) {
		ib.Add(storeIndexersByStoreAndPage, si.Store, si.Page)
	}, []*Index{storeIndexersByStoreAndPage})
	storeIndexersByStoreAndPage = AddIndex("store_page")

	auctionCachesTable = AddTable(ledgerSchema, "auction_caches", func(c *AuctionCache, ib *IndexBuilder) {
		ib.Add(auctionCachesByAuction, c.Auction)
		ib.Add(auctionCachesByStore, c.Store)
	}, []*Index{auctionCachesByAuction, auctionCachesByStore})
	auctionCachesByAuction = AddIndex("auction")
	auctionCachesByStore   = AddIndex("store")

	mintsTable = AddTable[MintInfo](ledgerSchema, "mints", nil, nil)
)

// LedgerSchema returns the schema of the index store.
func LedgerSchema() *Schema {
	return ledgerSchema
}
