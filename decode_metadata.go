package ledgeridx

const (
	metadataKeyUninitialized     uint8 = 0
	metadataKeyEditionV1         uint8 = 1
	metadataKeyMasterEditionV1   uint8 = 2
	metadataKeyReservationListV1 uint8 = 3
	metadataKeyMetadataV1        uint8 = 4
	metadataKeyReservationListV2 uint8 = 5
	metadataKeyMasterEditionV2   uint8 = 6
	metadataKeyEditionMarker     uint8 = 7
)

const (
	maxNameLength          = 32
	maxSymbolLength        = 10
	maxURILength           = 200
	maxCreatorLimit        = 5
	creatorSize            = 32 + 1 + 1
	maxMetadataDataSize    = 4 + maxNameLength + 4 + maxSymbolLength + 4 + maxURILength + 2 + 1 + 4 + maxCreatorLimit*creatorSize
	maxMetadataSize        = 1 + 32 + 32 + maxMetadataDataSize + 1 + 1 + 9 + 172
	metadataMinSize        = 1 + 32 + 32 + 4 + 4 + 4 + 2 + 1 + 1 + 1
	editionSize            = 1 + 32 + 8
	maxEditionSize         = editionSize + 200
	masterEditionV1MinSize = 1 + 8 + 1 + 32 + 32
	masterEditionV2MinSize = 1 + 8 + 1
	maxMasterEditionSize   = 1 + 8 + 9 + 264
	editionMarkerSize      = 1 + 31
)

func decodeMetadata(d *layoutReader) Entity {
	m := &Metadata{
		UpdateAuthority:      d.Pubkey(),
		Mint:                 d.Pubkey(),
		Name:                 d.String(),
		Symbol:               d.String(),
		URI:                  d.String(),
		SellerFeeBasisPoints: d.U16(),
	}
	if d.U8() != 0 {
		d.Section(ErrMalformedSection)
		n := int(d.U32())
		m.Creators = make([]Creator, 0, min(n, maxCreatorLimit))
		for i := 0; i < n && d.err == nil; i++ {
			m.Creators = append(m.Creators, Creator{
				Address:  d.Pubkey(),
				Verified: d.Bool(),
				Share:    d.U8(),
			})
		}
		d.Section(ErrTooShort)
	}
	m.PrimarySaleHappened = d.Bool()
	m.IsMutable = d.Bool()
	// older accounts end here
	if d.Remaining() > 0 {
		m.EditionNonce = d.OptU8()
	}
	return m
}

func encodeMetadata(w *layoutWriter, m *Metadata) {
	w.U8(metadataKeyMetadataV1)
	w.Pubkey(m.UpdateAuthority)
	w.Pubkey(m.Mint)
	w.String(m.Name)
	w.String(m.Symbol)
	w.String(m.URI)
	w.U16(m.SellerFeeBasisPoints)
	if m.Creators == nil {
		w.U8(0)
	} else {
		w.U8(1)
		w.U32(uint32(len(m.Creators)))
		for _, c := range m.Creators {
			w.Pubkey(c.Address)
			w.Bool(c.Verified)
			w.U8(c.Share)
		}
	}
	w.Bool(m.PrimarySaleHappened)
	w.Bool(m.IsMutable)
	w.OptU8(m.EditionNonce)
	w.PadTo(maxMetadataSize)
}

func decodeEdition(d *layoutReader) Entity {
	return &Edition{
		Parent:  d.Pubkey(),
		Edition: d.U64(),
	}
}

func encodeEdition(w *layoutWriter, v *Edition) {
	w.U8(metadataKeyEditionV1)
	w.Pubkey(v.Parent)
	w.U64(v.Edition)
	w.PadTo(maxEditionSize)
}

func decodeMasterEditionV1(d *layoutReader) Entity {
	return &MasterEdition{
		Version:                          1,
		Supply:                           d.U64(),
		MaxSupply:                        d.OptU64(),
		PrintingMint:                     d.Pubkey(),
		OneTimePrintingAuthorizationMint: d.Pubkey(),
	}
}

func decodeMasterEditionV2(d *layoutReader) Entity {
	return &MasterEdition{
		Version:   2,
		Supply:    d.U64(),
		MaxSupply: d.OptU64(),
	}
}

func encodeMasterEdition(w *layoutWriter, v *MasterEdition) {
	if v.Version == 1 {
		w.U8(metadataKeyMasterEditionV1)
	} else {
		w.U8(metadataKeyMasterEditionV2)
	}
	w.U64(v.Supply)
	w.OptU64(v.MaxSupply)
	if v.Version == 1 {
		w.Pubkey(v.PrintingMint)
		w.Pubkey(v.OneTimePrintingAuthorizationMint)
	}
	w.PadTo(maxMasterEditionSize)
}

func decodeEditionMarker(d *layoutReader) Entity {
	m := &EditionMarker{}
	copy(m.Ledger[:], d.Raw(len(m.Ledger)))
	return m
}

func encodeEditionMarker(w *layoutWriter, v *EditionMarker) {
	w.U8(metadataKeyEditionMarker)
	w.Raw(v.Ledger[:])
}
