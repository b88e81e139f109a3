package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// KeyPair wraps a secp256k1 private/public key pair and is the identity
// every signed, encrypted message on the bus is bound to.
type KeyPair struct {
	Private *secp256k1.PrivateKey
	Public  *secp256k1.PublicKey
}

// Address returns the canonical network address derived from the pair's
// public key.
func (kp *KeyPair) Address() Address {
	return addressFromPubKey(kp.Public)
}

// GenerateKeys creates a new random secp256k1 key pair.
func GenerateKeys() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return &KeyPair{Private: priv, Public: priv.PubKey()}, nil
}

// DeriveFromSecretWords deterministically derives a private key from a
// sequence of human-chosen words: scalar = sha256(join(words, ";")) mod n,
// where n is the secp256k1 group order.
func DeriveFromSecretWords(words []string) (*KeyPair, error) {
	if len(words) == 0 {
		return nil, ErrEmptySecretWords
	}

	seed := sha256.Sum256([]byte(strings.Join(words, ";")))

	n := secp256k1.S256().N
	scalar := new(big.Int).Mod(new(big.Int).SetBytes(seed[:]), n)
	if scalar.Sign() == 0 {
		// A zero scalar is not a valid private key; nudge it by one.
		// This branch is unreachable for SHA-256 digests in practice.
		scalar = big.NewInt(1)
	}

	var privBytes [32]byte
	scalar.FillBytes(privBytes[:])

	priv := secp256k1.PrivKeyFromBytes(privBytes[:])
	return &KeyPair{Private: priv, Public: priv.PubKey()}, nil
}

// LoadPrivateKeyFromDERHex loads a key pair from a hex-encoded SEC1/PKCS8
// DER private key, as produced by `openssl ecparam -genkey` (decoded from
// PEM) or by ExportDERHex, which the `generate` CLI prints.
func LoadPrivateKeyFromDERHex(hexDER string) (*KeyPair, error) {
	der, err := hex.DecodeString(strings.TrimSpace(hexDER))
	if err != nil {
		return nil, fmt.Errorf("crypto: decode DER hex: %w", err)
	}
	return LoadPrivateKeyFromDER(der)
}

// sec1ECPrivateKey mirrors RFC 5915's ECPrivateKey ASN.1 structure. The
// standard library's x509.ParseECPrivateKey rejects secp256k1 because Go
// does not register that curve, so the raw octet string is pulled out by
// hand instead.
type sec1ECPrivateKey struct {
	Version    int
	PrivateKey []byte
}

// LoadPrivateKeyFromDER loads a key pair from a raw DER-encoded private
// key. Both SEC1 ECPrivateKey and PKCS8 wrapped encodings are accepted;
// PKCS8 is unwrapped first.
func LoadPrivateKeyFromDER(der []byte) (*KeyPair, error) {
	if pk8, _, err := unwrapPKCS8(der); err == nil {
		der = pk8
	}

	var sec1 sec1ECPrivateKey
	if _, err := asn1.Unmarshal(der, &sec1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if len(sec1.PrivateKey) == 0 || len(sec1.PrivateKey) > 32 {
		return nil, fmt.Errorf("%w: invalid scalar length %d", ErrInvalidPrivateKey, len(sec1.PrivateKey))
	}

	var privBytes [32]byte
	copy(privBytes[32-len(sec1.PrivateKey):], sec1.PrivateKey)

	priv := secp256k1.PrivKeyFromBytes(privBytes[:])
	return &KeyPair{Private: priv, Public: priv.PubKey()}, nil
}

// pkcs8 mirrors the subset of PKCS#8 needed to unwrap the inner
// algorithm-agnostic private key octet string.
type pkcs8 struct {
	Version    int
	Algo       asn1.RawValue
	PrivateKey []byte
}

func unwrapPKCS8(der []byte) ([]byte, asn1.RawValue, error) {
	var p8 pkcs8
	if _, err := asn1.Unmarshal(der, &p8); err != nil {
		return nil, asn1.RawValue{}, err
	}
	return p8.PrivateKey, p8.Algo, nil
}

// ExportPEM renders the key pair's private scalar as a SEC1 EC PRIVATE KEY
// PEM block, the format produced by the `generate` CLI and accepted by
// LoadPrivateKeyFromDER.
func (kp *KeyPair) ExportPEM() ([]byte, error) {
	sec1, err := asn1.Marshal(sec1ECPrivateKey{
		Version:    1,
		PrivateKey: kp.Private.Serialize(),
	})
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal SEC1 key: %w", err)
	}

	block := &pem.Block{Type: "EC PRIVATE KEY", Bytes: sec1}
	return pem.EncodeToMemory(block), nil
}

// ExportDERHex renders the key pair's private scalar as a hex-encoded
// SEC1 DER document (the format spec.md §6 calls "hex DER of private
// key").
func (kp *KeyPair) ExportDERHex() (string, error) {
	sec1, err := asn1.Marshal(sec1ECPrivateKey{
		Version:    1,
		PrivateKey: kp.Private.Serialize(),
	})
	if err != nil {
		return "", fmt.Errorf("crypto: marshal SEC1 key: %w", err)
	}
	return hex.EncodeToString(sec1), nil
}

// toECDSA converts a key pair into the standard library's ecdsa types so
// elliptic-curve arithmetic (ECDH scalar multiplication) can reuse
// crypto/elliptic via the curve decred's secp256k1 package registers.
func (kp *KeyPair) toECDSA() (*ecdsa.PrivateKey, *ecdsa.PublicKey) {
	return kp.Private.ToECDSA(), kp.Public.ToECDSA()
}
