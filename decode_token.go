package ledgeridx

const mintSize = 4 + 32 + 8 + 1 + 1 + 4 + 32

// DecodeMint parses the token program's mint account layout.
func DecodeMint(key Pubkey, data []byte) (*MintInfo, error) {
	if len(data) < mintSize {
		return nil, &DecodeError{Key: key, Category: categoryUnknown, Data: data, Off: len(data), Err: ErrTooShort, Msg: "mint"}
	}
	d := makeLayoutReader(data)
	d.Skip(4 + 32)
	m := &MintInfo{
		Mint:          key,
		Supply:        d.U64(),
		Decimals:      d.U8(),
		IsInitialized: d.Bool(),
	}
	return m, nil
}

func encodeMint(w *layoutWriter, m *MintInfo) {
	w.U32(0)
	w.Pubkey(ZeroPubkey)
	w.U64(m.Supply)
	w.U8(m.Decimals)
	w.Bool(m.IsInitialized)
	w.U32(0)
	w.Pubkey(ZeroPubkey)
}
