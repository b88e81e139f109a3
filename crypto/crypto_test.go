package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeysProducesCanonicalAddress(t *testing.T) {
	kp, err := GenerateKeys()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(kp.Address()), AddressPrefix))
}

func TestAddressRoundTrip(t *testing.T) {
	kp, err := GenerateKeys()
	require.NoError(t, err)

	pub, err := AddressToPublicKey(kp.Address())
	require.NoError(t, err)
	assert.True(t, pub.IsEqual(kp.Public))
}

func TestLegacyAddressPrefixAccepted(t *testing.T) {
	kp, err := GenerateKeys()
	require.NoError(t, err)

	canonical := string(kp.Address())
	legacy := LegacyAddressPrefix + strings.TrimPrefix(canonical, AddressPrefix)

	pub, err := AddressToPublicKey(Address(legacy))
	require.NoError(t, err)
	assert.True(t, pub.IsEqual(kp.Public))

	recanon, err := Canonicalize(Address(legacy))
	require.NoError(t, err)
	assert.Equal(t, canonical, string(recanon))
	assert.True(t, IsCanonical(recanon))
}

func TestMalformedAddressRejected(t *testing.T) {
	_, err := AddressToPublicKey("not-an-address")
	require.ErrorIs(t, err, ErrMalformedAddress)
}

func TestDeriveFromSecretWordsIsDeterministic(t *testing.T) {
	words := []string{"correct", "horse", "battery", "staple"}

	kp1, err := DeriveFromSecretWords(words)
	require.NoError(t, err)
	kp2, err := DeriveFromSecretWords(words)
	require.NoError(t, err)

	assert.Equal(t, kp1.Address(), kp2.Address())

	other, err := DeriveFromSecretWords([]string{"different", "words"})
	require.NoError(t, err)
	assert.NotEqual(t, kp1.Address(), other.Address())
}

func TestDeriveFromSecretWordsRequiresAtLeastOneWord(t *testing.T) {
	_, err := DeriveFromSecretWords(nil)
	require.ErrorIs(t, err, ErrEmptySecretWords)
}

func TestPEMAndDERHexRoundTrip(t *testing.T) {
	kp, err := GenerateKeys()
	require.NoError(t, err)

	derHex, err := kp.ExportDERHex()
	require.NoError(t, err)

	loaded, err := LoadPrivateKeyFromDERHex(derHex)
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), loaded.Address())
}

func TestStableJSONSortsKeysAtEveryDepth(t *testing.T) {
	a := map[string]interface{}{
		"b": 1,
		"a": map[string]interface{}{
			"z": 1,
			"y": 2,
		},
	}
	b := map[string]interface{}{
		"a": map[string]interface{}{
			"y": 2,
			"z": 1,
		},
		"b": 1,
	}

	outA, err := StableJSON(a)
	require.NoError(t, err)
	outB, err := StableJSON(b)
	require.NoError(t, err)
	assert.Equal(t, string(outA), string(outB))
	assert.Equal(t, `{"a":{"y":2,"z":1},"b":1}`, string(outA))
}

func TestSignThenVerifySucceeds(t *testing.T) {
	kp, err := GenerateKeys()
	require.NoError(t, err)

	envelope, err := Sign(map[string]interface{}{
		"ACTION": "DEPLOY",
		"TARGET": "pipeline-1",
	}, kp)
	require.NoError(t, err)

	assert.Equal(t, string(kp.Address()), envelope[FieldSender])
	assert.NotEmpty(t, envelope[FieldHash])
	assert.NotEmpty(t, envelope[FieldSign])
	assert.True(t, Verify(envelope))
}

func TestVerifyFailsOnTamperedHash(t *testing.T) {
	kp, err := GenerateKeys()
	require.NoError(t, err)

	envelope, err := Sign(map[string]interface{}{"ACTION": "DEPLOY"}, kp)
	require.NoError(t, err)

	envelope[FieldHash] = "0000000000000000000000000000000000000000000000000000000000000"
	assert.False(t, Verify(envelope))
}

func TestVerifyFailsOnTamperedPayload(t *testing.T) {
	kp, err := GenerateKeys()
	require.NoError(t, err)

	envelope, err := Sign(map[string]interface{}{"ACTION": "DEPLOY"}, kp)
	require.NoError(t, err)

	envelope["ACTION"] = "DESTROY"
	assert.False(t, Verify(envelope))
}

func TestVerifyFailsOnWrongSender(t *testing.T) {
	kp, err := GenerateKeys()
	require.NoError(t, err)
	other, err := GenerateKeys()
	require.NoError(t, err)

	envelope, err := Sign(map[string]interface{}{"ACTION": "DEPLOY"}, kp)
	require.NoError(t, err)

	envelope[FieldSender] = string(other.Address())
	assert.False(t, Verify(envelope))
}

func TestVerifyFailsOnMissingFields(t *testing.T) {
	assert.False(t, Verify(map[string]interface{}{"ACTION": "DEPLOY"}))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	alice, err := GenerateKeys()
	require.NoError(t, err)
	bob, err := GenerateKeys()
	require.NoError(t, err)

	plaintext := []byte(`{"COMMAND":"restart"}`)

	ciphertext, err := alice.Encrypt(plaintext, bob.Address())
	require.NoError(t, err)

	decrypted, err := bob.Decrypt(ciphertext, alice.Address())
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptFailsWithWrongPeer(t *testing.T) {
	alice, err := GenerateKeys()
	require.NoError(t, err)
	bob, err := GenerateKeys()
	require.NoError(t, err)
	eve, err := GenerateKeys()
	require.NoError(t, err)

	ciphertext, err := alice.Encrypt([]byte("secret"), bob.Address())
	require.NoError(t, err)

	_, err = eve.Decrypt(ciphertext, alice.Address())
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptFailsOnTamperedCiphertext(t *testing.T) {
	alice, err := GenerateKeys()
	require.NoError(t, err)
	bob, err := GenerateKeys()
	require.NoError(t, err)

	ciphertext, err := alice.Encrypt([]byte("secret"), bob.Address())
	require.NoError(t, err)

	tampered := "A" + ciphertext[1:]
	_, err = bob.Decrypt(tampered, alice.Address())
	require.Error(t, err)
}
