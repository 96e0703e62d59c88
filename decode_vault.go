package ledgeridx

const (
	vaultKeyUninitialized          uint8 = 0
	vaultKeySafetyDepositBoxV1     uint8 = 1
	vaultKeyExternalPriceAccountV1 uint8 = 2
	vaultKeyVaultV1                uint8 = 3
)

const (
	vaultMinSize             = 1 + 32*5 + 1 + 32 + 1 + 1 + 8
	maxVaultSize             = vaultMinSize + 1
	safetyDepositBoxSize     = 1 + 32*3 + 1
	externalPriceAccountSize = 1 + 8 + 32 + 1
)

func decodeVault(d *layoutReader) Entity {
	return &Vault{
		TokenProgram:              d.Pubkey(),
		FractionMint:              d.Pubkey(),
		Authority:                 d.Pubkey(),
		FractionTreasury:          d.Pubkey(),
		RedeemTreasury:            d.Pubkey(),
		AllowFurtherShareCreation: d.Bool(),
		PricingLookupAddress:      d.Pubkey(),
		TokenTypeCount:            d.U8(),
		State:                     VaultState(d.U8()),
		LockedPricePerShare:       d.U64(),
	}
}

func encodeVault(w *layoutWriter, v *Vault) {
	w.U8(vaultKeyVaultV1)
	w.Pubkey(v.TokenProgram)
	w.Pubkey(v.FractionMint)
	w.Pubkey(v.Authority)
	w.Pubkey(v.FractionTreasury)
	w.Pubkey(v.RedeemTreasury)
	w.Bool(v.AllowFurtherShareCreation)
	w.Pubkey(v.PricingLookupAddress)
	w.U8(v.TokenTypeCount)
	w.U8(uint8(v.State))
	w.U64(v.LockedPricePerShare)
	w.PadTo(maxVaultSize)
}

func decodeSafetyDepositBox(d *layoutReader) Entity {
	return &SafetyDepositBox{
		Vault:     d.Pubkey(),
		TokenMint: d.Pubkey(),
		Store:     d.Pubkey(),
		Order:     d.U8(),
	}
}

func encodeSafetyDepositBox(w *layoutWriter, v *SafetyDepositBox) {
	w.U8(vaultKeySafetyDepositBoxV1)
	w.Pubkey(v.Vault)
	w.Pubkey(v.TokenMint)
	w.Pubkey(v.Store)
	w.U8(v.Order)
}

func decodeExternalPriceAccount(d *layoutReader) Entity {
	return &ExternalPriceAccount{
		PricePerShare:    d.U64(),
		PriceMint:        d.Pubkey(),
		AllowedToCombine: d.Bool(),
	}
}

func encodeExternalPriceAccount(w *layoutWriter, v *ExternalPriceAccount) {
	w.U8(vaultKeyExternalPriceAccountV1)
	w.U64(v.PricePerShare)
	w.Pubkey(v.PriceMint)
	w.Bool(v.AllowedToCombine)
}
