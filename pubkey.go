package ledgeridx

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

const PubkeySize = 32

// Pubkey is a ledger account address or program id.
type Pubkey [PubkeySize]byte

var ZeroPubkey Pubkey

func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw := base58.Decode(s)
	if len(raw) != PubkeySize {
		return pk, fmt.Errorf("invalid pubkey %q: decoded to %d bytes", s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func MustParsePubkey(s string) Pubkey {
	return must(ParsePubkey(s))
}

func PubkeyFromBytes(b []byte) Pubkey {
	var pk Pubkey
	if len(b) != PubkeySize {
		panic(fmt.Errorf("pubkey must be %d bytes, got %d", PubkeySize, len(b)))
	}
	copy(pk[:], b)
	return pk
}

func (pk Pubkey) String() string {
	return base58.Encode(pk[:])
}

func (pk Pubkey) IsZero() bool {
	return pk == ZeroPubkey
}

func (pk Pubkey) Compare(other Pubkey) int {
	return bytes.Compare(pk[:], other[:])
}

func (pk Pubkey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *Pubkey) UnmarshalText(text []byte) error {
	v, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*pk = v
	return nil
}
