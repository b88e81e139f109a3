package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Envelope field names, shared verbatim with the wire format described in
// spec.md §3/§6. Keeping these as exported constants lets the ingress and
// client packages refer to the same strings without risking a typo.
const (
	FieldSender = "EE_SENDER"
	FieldSign   = "EE_SIGN"
	FieldHash   = "EE_HASH"
)

// envelopeFields is the set of keys excluded from the hash input — they
// are the signature's output, not its input.
var envelopeFields = map[string]struct{}{
	FieldSender: {},
	FieldSign:   {},
	FieldHash:   {},
}

// toGenericMap round-trips v through JSON to obtain a plain
// map[string]interface{}, so callers can sign either structs or maps.
func toGenericMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// dataHash computes the sha-256 hash over the stable-JSON serialization
// of obj with the envelope fields (EE_SENDER/EE_SIGN/EE_HASH) removed.
// This is the canonical identity of "the data portion" of a message: the
// envelope fields are excluded so a verifier can recompute the same
// digest the signer started from.
func dataHash(obj map[string]interface{}) ([]byte, error) {
	stripped := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if _, excluded := envelopeFields[k]; excluded {
			continue
		}
		stripped[k] = v
	}

	canonical, err := StableJSON(stripped)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(canonical)
	return sum[:], nil
}

// Sign wraps obj in a signed envelope: it adds EE_SENDER (the signer's
// canonical address), EE_HASH (hex sha-256 of the stable-JSON data
// portion) and EE_SIGN (url-safe base64 of the raw DER signature over
// that hash).
func Sign(obj interface{}, kp *KeyPair) (map[string]interface{}, error) {
	m, err := toGenericMap(obj)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: marshal payload: %w", err)
	}

	hash, err := dataHash(m)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: hash payload: %w", err)
	}

	ecdsaPriv := kp.Private.ToECDSA()
	sig, err := ecdsa.SignASN1(rand.Reader, ecdsaPriv, hash)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}

	m[FieldSender] = string(kp.Address())
	m[FieldHash] = hex.EncodeToString(hash)
	m[FieldSign] = base64.RawURLEncoding.EncodeToString(sig)

	return m, nil
}

// Verify recomputes the data hash of envelope and checks it against
// EE_HASH, then checks EE_SIGN against EE_SENDER's public key. It returns
// false (never an error) for any structurally invalid envelope, since
// callers treat "fails to verify" and "is malformed" identically: drop
// the message.
func Verify(envelope map[string]interface{}) bool {
	senderStr, ok := envelope[FieldSender].(string)
	if !ok || senderStr == "" {
		return false
	}
	signStr, ok := envelope[FieldSign].(string)
	if !ok || signStr == "" {
		return false
	}
	hashStr, ok := envelope[FieldHash].(string)
	if !ok || hashStr == "" {
		return false
	}

	recomputed, err := dataHash(envelope)
	if err != nil {
		return false
	}
	if hex.EncodeToString(recomputed) != hashStr {
		return false
	}

	sig, err := base64.RawURLEncoding.DecodeString(signStr)
	if err != nil {
		return false
	}

	pub, err := AddressToPublicKey(Address(senderStr))
	if err != nil {
		return false
	}

	// Signature verification runs over the freshly recomputed digest, not
	// over the bytes of EE_HASH; a tampered EE_HASH has already been
	// rejected by the comparison above.
	return ecdsa.VerifyASN1(pub.ToECDSA(), recomputed, sig)
}
