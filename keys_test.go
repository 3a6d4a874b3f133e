package veiled

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testSeed(fill byte) []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = fill
	}
	return seed
}

func TestDecryptionKeyFromSeed(t *testing.T) {
	assert := assert.New(t)

	dk1, err := NewDecryptionKeyFromSeed(testSeed(1))
	assert.Nil(err)
	dk2, err := NewDecryptionKeyFromSeed(testSeed(1))
	assert.Nil(err)
	dk3, err := NewDecryptionKeyFromSeed(testSeed(2))
	assert.Nil(err)

	assert.Equal(hex.EncodeToString(dk1.Bytes()), hex.EncodeToString(dk2.Bytes()))
	assert.NotEqual(hex.EncodeToString(dk1.Bytes()), hex.EncodeToString(dk3.Bytes()))
	assert.Equal(hex.EncodeToString(dk1.EncryptionKey().Bytes()), hex.EncodeToString(dk2.EncryptionKey().Bytes()))

	_, err = NewDecryptionKeyFromSeed(testSeed(1)[:16])
	assert.ErrorIs(err, ErrInvalidInput)
}

func TestDecryptionKeyFromMnemonic(t *testing.T) {
	assert := assert.New(t)

	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	dk1, err := NewDecryptionKeyFromMnemonic(mnemonic, "")
	assert.Nil(err)
	dk2, err := NewDecryptionKeyFromMnemonic(mnemonic, "")
	assert.Nil(err)
	assert.Equal(hex.EncodeToString(dk1.Bytes()), hex.EncodeToString(dk2.Bytes()))

	dk3, err := NewDecryptionKeyFromMnemonic(mnemonic, "passphrase")
	assert.Nil(err)
	assert.NotEqual(hex.EncodeToString(dk1.Bytes()), hex.EncodeToString(dk3.Bytes()))

	_, err = NewDecryptionKeyFromMnemonic("not a mnemonic", "")
	assert.ErrorIs(err, ErrInvalidInput)
}

func TestEncryptionKeySerde(t *testing.T) {
	assert := assert.New(t)

	dk := NewDecryptionKey()
	ek := dk.EncryptionKey()

	parsed, err := EncryptionKeyFromBytes(ek.Bytes())
	assert.Nil(err)
	assert.Equal(hex.EncodeToString(ek.Bytes()), hex.EncodeToString(parsed.Bytes()))

	_, err = EncryptionKeyFromBytes(ek.Bytes()[:31])
	assert.ErrorIs(err, ErrInvalidInput)

	roundtrip, err := DecryptionKeyFromBytes(dk.Bytes())
	assert.Nil(err)
	assert.Equal(hex.EncodeToString(dk.Bytes()), hex.EncodeToString(roundtrip.Bytes()))
}

func TestEncryptionKeyB58(t *testing.T) {
	assert := assert.New(t)

	ek := NewDecryptionKey().EncryptionKey()
	code := ek.B58Code()

	decoded, err := EncryptionKeyFromB58(code)
	assert.Nil(err)
	assert.Equal(hex.EncodeToString(ek.Bytes()), hex.EncodeToString(decoded.Bytes()))

	_, err = EncryptionKeyFromB58(code[:len(code)-2])
	assert.NotNil(err)
}

func TestTwistedKeyRelation(t *testing.T) {
	assert := assert.New(t)

	// s * P must equal H.
	dk := NewDecryptionKey()
	ek := dk.EncryptionKey()

	lifted := pointZero()
	lifted.ScalarMult(ek.Point(), dk.scalar())
	assert.True(bytesEqualPoint(lifted, randomnessGenerator()))
}
