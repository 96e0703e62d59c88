package ledgeridx

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

const (
	metadataSeedPrefix = "metadata"
	editionSeedSuffix  = "edition"
	metaplexSeedPrefix = "metaplex"

	maxSeeds      = 16
	maxSeedLength = 32
)

var errNoViableBump = errors.New("unable to find a viable program address bump seed")

const pdaMarker = "ProgramDerivedAddress"

// CreateProgramAddress derives an off-curve address from seeds and a program id.
func CreateProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, error) {
	if len(seeds) > maxSeeds {
		return ZeroPubkey, errors.New("too many seeds")
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > maxSeedLength {
			return ZeroPubkey, errors.New("seed too long")
		}
		h.Write(s)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var pk Pubkey
	copy(pk[:], h.Sum(nil))
	if isOnCurve(pk) {
		return ZeroPubkey, errors.New("derived address is on the curve")
	}
	return pk, nil
}

// FindProgramAddress walks bump seeds from 255 down and returns the first
// off-curve address.
func FindProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		pk, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return pk, uint8(bump), nil
		}
	}
	return ZeroPubkey, 0, errNoViableBump
}

func isOnCurve(pk Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// MasterEditionAddress returns the edition account address of a mint.
func MasterEditionAddress(metadataProgram, mint Pubkey) Pubkey {
	pk, _ := must2(FindProgramAddress([][]byte{
		[]byte(metadataSeedPrefix),
		metadataProgram[:],
		mint[:],
		[]byte(editionSeedSuffix),
	}, metadataProgram))
	return pk
}

// WhitelistedCreatorAddress returns the address a store's whitelist entry
// for the given creator must live at.
func WhitelistedCreatorAddress(metaplexProgram, store, creator Pubkey) Pubkey {
	pk, _ := must2(FindProgramAddress([][]byte{
		[]byte(metaplexSeedPrefix),
		metaplexProgram[:],
		store[:],
		creator[:],
	}, metaplexProgram))
	return pk
}
