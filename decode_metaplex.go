package ledgeridx

const (
	metaplexKeyUninitialized                   uint8 = 0
	metaplexKeyOriginalAuthorityLookupV1       uint8 = 1
	metaplexKeyBidRedemptionTicketV1           uint8 = 2
	metaplexKeyStoreV1                         uint8 = 3
	metaplexKeyWhitelistedCreatorV1            uint8 = 4
	metaplexKeyPayoutTicketV1                  uint8 = 5
	metaplexKeySafetyDepositValidationTicketV1 uint8 = 6
	metaplexKeyAuctionManagerV1                uint8 = 7
	metaplexKeyPrizeTrackingTicketV1           uint8 = 8
	metaplexKeySafetyDepositConfigV1           uint8 = 9
	metaplexKeyAuctionManagerV2                uint8 = 10
	metaplexKeyBidRedemptionTicketV2           uint8 = 11
	metaplexKeyAuctionWinnerTokenTypeTrackerV1 uint8 = 12
	metaplexKeyStoreIndexerV1                  uint8 = 13
	metaplexKeyAuctionCacheV1                  uint8 = 14
	metaplexKeyStoreConfigV1                   uint8 = 15
)

const (
	storeMinSize                 = 1 + 1 + 32*4
	whitelistedCreatorSize       = 1 + 32 + 1
	payoutTicketSize             = 1 + 32 + 8
	prizeTrackingTicketSize      = 1 + 32 + 8*3
	auctionManagerV2MinSize      = 1 + 32*5 + 1 + 8 + 8 + 1
	bidRedemptionTicketV1Size    = 1 + 1 + 1
	bidRedemptionTicketV2MinSize = 1 + 1 + 32
	safetyDepositConfigMinSize   = 1 + 32 + 8 + 1 + 1 + 1 + 4
	storeIndexerMinSize          = 1 + 32 + 8 + 4
	auctionCacheMinSize          = 1 + 32 + 8 + 4 + 32*3

	maxIndexedAuctionCaches = 100
	maxCachedMetadata       = 10
	storeIndexerMaxSize     = storeIndexerMinSize + 32*maxIndexedAuctionCaches
	auctionCacheMaxSize     = auctionCacheMinSize + 32*maxCachedMetadata
)

func decodeStore(d *layoutReader) Entity {
	return &Store{
		Public:               d.Bool(),
		AuctionProgram:       d.Pubkey(),
		TokenVaultProgram:    d.Pubkey(),
		TokenMetadataProgram: d.Pubkey(),
		TokenProgram:         d.Pubkey(),
	}
}

func encodeStore(w *layoutWriter, v *Store) {
	w.U8(metaplexKeyStoreV1)
	w.Bool(v.Public)
	w.Pubkey(v.AuctionProgram)
	w.Pubkey(v.TokenVaultProgram)
	w.Pubkey(v.TokenMetadataProgram)
	w.Pubkey(v.TokenProgram)
}

func decodeWhitelistedCreator(d *layoutReader) Entity {
	return &WhitelistedCreator{
		Address:   d.Pubkey(),
		Activated: d.Bool(),
	}
}

func encodeWhitelistedCreator(w *layoutWriter, v *WhitelistedCreator) {
	w.U8(metaplexKeyWhitelistedCreatorV1)
	w.Pubkey(v.Address)
	w.Bool(v.Activated)
}

func decodePayoutTicket(d *layoutReader) Entity {
	return &PayoutTicket{
		Recipient:  d.Pubkey(),
		AmountPaid: d.U64(),
	}
}

func encodePayoutTicket(w *layoutWriter, v *PayoutTicket) {
	w.U8(metaplexKeyPayoutTicketV1)
	w.Pubkey(v.Recipient)
	w.U64(v.AmountPaid)
}

func decodePrizeTrackingTicket(d *layoutReader) Entity {
	return &PrizeTrackingTicket{
		Metadata:            d.Pubkey(),
		SupplySnapshot:      d.U64(),
		ExpectedRedemptions: d.U64(),
		Redemptions:         d.U64(),
	}
}

func encodePrizeTrackingTicket(w *layoutWriter, v *PrizeTrackingTicket) {
	w.U8(metaplexKeyPrizeTrackingTicketV1)
	w.Pubkey(v.Metadata)
	w.U64(v.SupplySnapshot)
	w.U64(v.ExpectedRedemptions)
	w.U64(v.Redemptions)
}

func decodeAuctionManagerV2(d *layoutReader) Entity {
	return &AuctionManager{
		Store:         d.Pubkey(),
		Authority:     d.Pubkey(),
		Auction:       d.Pubkey(),
		Vault:         d.Pubkey(),
		AcceptPayment: d.Pubkey(),
		State: AuctionManagerState{
			Status:                     AuctionManagerStatus(d.U8()),
			SafetyConfigItemsValidated: d.U64(),
			BidsPushedToAcceptPayment:  d.U64(),
			HasParticipation:           d.Bool(),
		},
	}
}

func encodeAuctionManagerV2(w *layoutWriter, v *AuctionManager) {
	w.U8(metaplexKeyAuctionManagerV2)
	w.Pubkey(v.Store)
	w.Pubkey(v.Authority)
	w.Pubkey(v.Auction)
	w.Pubkey(v.Vault)
	w.Pubkey(v.AcceptPayment)
	w.U8(uint8(v.State.Status))
	w.U64(v.State.SafetyConfigItemsValidated)
	w.U64(v.State.BidsPushedToAcceptPayment)
	w.Bool(v.State.HasParticipation)
}

func decodeBidRedemptionTicketV1(d *layoutReader) Entity {
	return &BidRedemptionTicket{
		Version:               1,
		ParticipationRedeemed: d.Bool(),
		ItemsRedeemed:         d.U8(),
	}
}

// Version 2 is laid out as: key, Option<u64> winner index, manager, then
// the redeemed bitmask up to the end of the account.
func decodeBidRedemptionTicketV2(d *layoutReader) Entity {
	t := &BidRedemptionTicket{
		Version:        2,
		WinnerIndex:    d.OptU64(),
		AuctionManager: d.Pubkey(),
	}
	if rest := d.Raw(d.Remaining()); len(rest) > 0 {
		t.Redeemed = append([]byte(nil), rest...)
	}
	return t
}

func encodeBidRedemptionTicket(w *layoutWriter, t *BidRedemptionTicket) {
	if t.Version == 1 {
		w.U8(metaplexKeyBidRedemptionTicketV1)
		w.Bool(t.ParticipationRedeemed)
		w.U8(t.ItemsRedeemed)
		return
	}
	w.U8(metaplexKeyBidRedemptionTicketV2)
	w.OptU64(t.WinnerIndex)
	w.Pubkey(t.AuctionManager)
	w.Raw(t.Redeemed)
}

func validTupleWidth(w uint8) bool {
	switch w {
	case 1, 2, 4, 8:
		return true
	default:
		return false
	}
}

func decodeSafetyDepositConfig(d *layoutReader) Entity {
	c := &SafetyDepositConfig{
		AuctionManager:    d.Pubkey(),
		Order:             d.U64(),
		WinningConfigType: WinningConfigType(d.U8()),
		AmountType:        d.U8(),
		LengthType:        d.U8(),
	}
	n := int(d.U32())

	d.Section(ErrMalformedSection)
	if !validTupleWidth(c.AmountType) || !validTupleWidth(c.LengthType) {
		d.fail("invalid tuple widths %d/%d", c.AmountType, c.LengthType)
		return c
	}
	aw, lw := int(c.AmountType), int(c.LengthType)
	for i := 0; i < n && d.err == nil; i++ {
		c.AmountRanges = append(c.AmountRanges, AmountRange{
			Amount: d.Uint(aw),
			Length: d.Uint(lw),
		})
	}

	if d.U8() != 0 {
		c.ParticipationConfig = &ParticipationConfig{
			WinnerConstraint:     d.U8(),
			NonWinningConstraint: d.U8(),
			FixedPrice:           d.OptU64(),
		}
	}
	if d.U8() != 0 {
		c.ParticipationState = &ParticipationState{
			CollectedToAcceptPayment: d.U64(),
		}
	}
	return c
}

func encodeSafetyDepositConfig(w *layoutWriter, c *SafetyDepositConfig) {
	w.U8(metaplexKeySafetyDepositConfigV1)
	w.Pubkey(c.AuctionManager)
	w.U64(c.Order)
	w.U8(uint8(c.WinningConfigType))
	w.U8(c.AmountType)
	w.U8(c.LengthType)
	w.U32(uint32(len(c.AmountRanges)))
	for _, r := range c.AmountRanges {
		w.Uint(r.Amount, int(c.AmountType))
		w.Uint(r.Length, int(c.LengthType))
	}
	if p := c.ParticipationConfig; p == nil {
		w.U8(0)
	} else {
		w.U8(1)
		w.U8(p.WinnerConstraint)
		w.U8(p.NonWinningConstraint)
		w.OptU64(p.FixedPrice)
	}
	if p := c.ParticipationState; p == nil {
		w.U8(0)
	} else {
		w.U8(1)
		w.U64(p.CollectedToAcceptPayment)
	}
}

// Store indexer pages list auction caches by timestamp; accounts are
// allocated at their maximum size and zero-padded.
func decodeStoreIndexer(d *layoutReader) Entity {
	si := &StoreIndexer{
		Store: d.Pubkey(),
		Page:  d.U64(),
	}
	d.Section(ErrMalformedSection)
	si.AuctionCaches = d.PubkeyVec(maxIndexedAuctionCaches)
	d.Section(ErrTooShort)
	return si
}

func encodeStoreIndexer(w *layoutWriter, v *StoreIndexer) {
	w.U8(metaplexKeyStoreIndexerV1)
	w.Pubkey(v.Store)
	w.U64(v.Page)
	w.PubkeyVec(v.AuctionCaches)
	w.PadTo(storeIndexerMaxSize)
}

func decodeAuctionCache(d *layoutReader) Entity {
	c := &AuctionCache{
		Store:     d.Pubkey(),
		Timestamp: int64(d.U64()),
	}
	d.Section(ErrMalformedSection)
	c.Metadata = d.PubkeyVec(maxCachedMetadata)
	d.Section(ErrTooShort)
	c.Auction = d.Pubkey()
	c.Vault = d.Pubkey()
	c.AuctionManager = d.Pubkey()
	return c
}

func encodeAuctionCache(w *layoutWriter, v *AuctionCache) {
	w.U8(metaplexKeyAuctionCacheV1)
	w.Pubkey(v.Store)
	w.U64(uint64(v.Timestamp))
	w.PubkeyVec(v.Metadata)
	w.Pubkey(v.Auction)
	w.Pubkey(v.Vault)
	w.Pubkey(v.AuctionManager)
	w.PadTo(auctionCacheMaxSize)
}
