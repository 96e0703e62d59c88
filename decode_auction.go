package ledgeridx

const (
	auctionDataMinSize      = 32 + 32 + 4 + 33 + 1 + 1 + 4 + 8
	auctionDataExtendedSize = 8 + 9 + 2 + 200
	bidderMetadataSize      = 32 + 32 + 8 + 8 + 1
	bidderPotSize           = 32 + 32 + 32 + 1
	bidSize                 = 32 + 8
)

func decodeAuctionData(d *layoutReader) Entity {
	a := &AuctionData{
		Authority:    d.Pubkey(),
		TokenMint:    d.Pubkey(),
		LastBid:      d.OptU64(),
		EndedAt:      d.OptU64(),
		EndAuctionAt: d.OptU64(),
		AuctionGap:   d.OptU64(),
	}
	a.PriceFloor.Type = PriceFloorType(d.U8())
	copy(a.PriceFloor.Hash[:], d.Raw(32))
	a.State = AuctionState(d.U8())
	a.BidState.Type = BidStateType(d.U8())

	d.Section(ErrMalformedSection)
	n := int(d.U32())
	if n > 0 && n <= d.Remaining()/bidSize {
		a.BidState.Bids = make([]Bid, 0, n)
	}
	for i := 0; i < n && d.err == nil; i++ {
		a.BidState.Bids = append(a.BidState.Bids, Bid{
			Key:    d.Pubkey(),
			Amount: d.U64(),
		})
	}
	a.BidState.Max = d.U64()
	return a
}

func encodeAuctionData(w *layoutWriter, a *AuctionData) {
	w.Pubkey(a.Authority)
	w.Pubkey(a.TokenMint)
	w.OptU64(a.LastBid)
	w.OptU64(a.EndedAt)
	w.OptU64(a.EndAuctionAt)
	w.OptU64(a.AuctionGap)
	w.U8(uint8(a.PriceFloor.Type))
	w.Raw(a.PriceFloor.Hash[:])
	w.U8(uint8(a.State))
	w.U8(uint8(a.BidState.Type))
	w.U32(uint32(len(a.BidState.Bids)))
	for _, b := range a.BidState.Bids {
		w.Pubkey(b.Key)
		w.U64(b.Amount)
	}
	w.U64(a.BidState.Max)
}

func decodeAuctionDataExtended(d *layoutReader) Entity {
	return &AuctionDataExtended{
		TotalUncancelledBids:  d.U64(),
		TickSize:              d.OptU64(),
		GapTickSizePercentage: d.OptU8(),
	}
}

func encodeAuctionDataExtended(w *layoutWriter, a *AuctionDataExtended) {
	w.U64(a.TotalUncancelledBids)
	w.OptU64(a.TickSize)
	w.OptU8(a.GapTickSizePercentage)
	w.PadTo(auctionDataExtendedSize)
}

func decodeBidderMetadata(d *layoutReader) Entity {
	return &BidderMetadata{
		BidderPubkey:     d.Pubkey(),
		AuctionPubkey:    d.Pubkey(),
		LastBid:          d.U64(),
		LastBidTimestamp: d.U64(),
		Cancelled:        d.Bool(),
	}
}

func encodeBidderMetadata(w *layoutWriter, v *BidderMetadata) {
	w.Pubkey(v.BidderPubkey)
	w.Pubkey(v.AuctionPubkey)
	w.U64(v.LastBid)
	w.U64(v.LastBidTimestamp)
	w.Bool(v.Cancelled)
}

func decodeBidderPot(d *layoutReader) Entity {
	return &BidderPot{
		BidderPot:  d.Pubkey(),
		BidderAct:  d.Pubkey(),
		AuctionAct: d.Pubkey(),
		Emptied:    d.Bool(),
	}
}

func encodeBidderPot(w *layoutWriter, v *BidderPot) {
	w.Pubkey(v.BidderPot)
	w.Pubkey(v.BidderAct)
	w.Pubkey(v.AuctionAct)
	w.Bool(v.Emptied)
}
