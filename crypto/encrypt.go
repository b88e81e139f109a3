package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/hkdf"
)

// hkdfInfo is the fixed context string mixed into key derivation so a
// shared secret computed for one purpose can't be replayed as a key for
// another. Every peer on the network derives the same symmetric key from
// the same ECDH point by agreeing on this string.
const hkdfInfo = "0xai handshake data"

const (
	aesKeySize   = 32
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// sharedSecret performs ECDH between priv and peerPub using the curve's
// own scalar multiplication and derives a 32-byte AES-256 key from the
// resulting x-coordinate via HKDF-SHA256 with an empty salt.
func sharedSecret(kp *KeyPair, peerPub *secp256k1.PublicKey) ([]byte, error) {
	ecdsaPriv, _ := kp.toECDSA()
	curve := ecdsaPriv.Curve

	peerECDSA := peerPub.ToECDSA()
	sx, _ := curve.ScalarMult(peerECDSA.X, peerECDSA.Y, ecdsaPriv.D.Bytes())
	if sx == nil {
		return nil, fmt.Errorf("crypto: ecdh: invalid peer point")
	}

	h := hkdf.New(sha256.New, sx.Bytes(), nil, []byte(hkdfInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	return key, nil
}

// Encrypt encrypts plaintext for peerAddress using an ECDH-derived
// AES-256-GCM key. The result is base64(nonce || ciphertext || tag).
func (kp *KeyPair) Encrypt(plaintext []byte, peerAddress Address) (string, error) {
	peerPub, err := AddressToPublicKey(peerAddress)
	if err != nil {
		return "", err
	}

	key, err := sharedSecret(kp, peerPub)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, gcmTagSize)
	if err != nil {
		return "", fmt.Errorf("crypto: new gcm: %w", err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	out := append(nonce, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. It returns ErrDecryptionFailed if the
// ciphertext is malformed or authentication fails.
func (kp *KeyPair) Decrypt(b64 string, peerAddress Address) ([]byte, error) {
	peerPub, err := AddressToPublicKey(peerAddress)
	if err != nil {
		return nil, err
	}

	key, err := sharedSecret(kp, peerPub)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(raw) < gcmNonceSize+gcmTagSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, gcmTagSize)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}

	nonce, ciphertext := raw[:gcmNonceSize], raw[gcmNonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
