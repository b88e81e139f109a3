// Package crypto implements the identity and message-security primitives
// that every envelope crossing the bus depends on: secp256k1 keys,
// canonical addresses, stable-JSON hashing, signing/verification, and
// ECDH-derived AES-GCM encryption.
package crypto

import "errors"

// Common errors returned by the crypto package.
var (
	ErrMalformedAddress  = errors.New("crypto: malformed address")
	ErrInvalidSignature  = errors.New("crypto: invalid signature")
	ErrInvalidPublicKey  = errors.New("crypto: invalid public key")
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")
	ErrDecryptionFailed  = errors.New("crypto: decryption failed")
	ErrEmptySecretWords  = errors.New("crypto: at least one secret word is required")
)

// Address prefixes. AddressPrefix is the only prefix emitted by this
// package; LegacyAddressPrefix is accepted on ingest for compatibility
// with older senders.
const (
	AddressPrefix       = "0xai_"
	LegacyAddressPrefix = "aixp_"
)

// Address is the canonical network identity: a fixed prefix followed by
// the URL-safe base64 encoding of a compressed secp256k1 public key.
type Address string

// String implements fmt.Stringer.
func (a Address) String() string { return string(a) }
