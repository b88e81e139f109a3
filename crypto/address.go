package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// addressFromPubKey renders the canonical address for a public key:
// prefix + url-safe-base64(compressed pubkey), no padding.
func addressFromPubKey(pub *secp256k1.PublicKey) Address {
	compressed := pub.SerializeCompressed()
	encoded := base64.RawURLEncoding.EncodeToString(compressed)
	return Address(AddressPrefix + encoded)
}

// AddressFromPublicKey returns the canonical Address for a secp256k1
// public key.
func AddressFromPublicKey(pub *secp256k1.PublicKey) Address {
	return addressFromPubKey(pub)
}

// AddressToPublicKey recovers the secp256k1 public key bound to an
// address. Both the canonical "0xai_" prefix and the legacy "aixp_"
// prefix are accepted.
func AddressToPublicKey(addr Address) (*secp256k1.PublicKey, error) {
	s := string(addr)

	var encoded string
	switch {
	case strings.HasPrefix(s, AddressPrefix):
		encoded = s[len(AddressPrefix):]
	case strings.HasPrefix(s, LegacyAddressPrefix):
		encoded = s[len(LegacyAddressPrefix):]
	default:
		return nil, fmt.Errorf("%w: unrecognized prefix", ErrMalformedAddress)
	}

	compressed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}

	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}

	return pub, nil
}

// Canonicalize rewrites a legacy-prefixed address to the canonical
// "0xai_" form, leaving already-canonical addresses untouched.
func Canonicalize(addr Address) (Address, error) {
	pub, err := AddressToPublicKey(addr)
	if err != nil {
		return "", err
	}
	return addressFromPubKey(pub), nil
}

// IsCanonical reports whether addr already carries the canonical prefix.
func IsCanonical(addr Address) bool {
	return strings.HasPrefix(string(addr), AddressPrefix)
}
