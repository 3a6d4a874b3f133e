package veiled

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	assert := assert.New(t)

	dk, err := NewDecryptionKeyFromSeed(testSeed(3))
	assert.Nil(err)
	ek := dk.EncryptionKey()

	for _, amount := range []uint64{0, 1, 70, 255, 65536, 1<<32 - 1} {
		ct := Encrypt(amount, ek, nil)
		decrypted, err := ct.Decrypt(dk, 0, CHUNK_BOUND)
		assert.Nil(err)
		assert.Equal(amount, decrypted)
	}
}

func TestDecryptWindow(t *testing.T) {
	assert := assert.New(t)

	dk := NewDecryptionKey()
	ek := dk.EncryptionKey()
	ct := Encrypt(500, ek, nil)

	// A narrowed window that contains the amount succeeds.
	decrypted, err := ct.Decrypt(dk, 400, 600)
	assert.Nil(err)
	assert.Equal(uint64(500), decrypted)

	// A window that excludes the amount fails with ErrOutOfRange.
	_, err = ct.Decrypt(dk, 0, 500)
	assert.ErrorIs(err, ErrOutOfRange)
	_, err = ct.Decrypt(dk, 501, 1000)
	assert.ErrorIs(err, ErrOutOfRange)

	// An empty window is rejected outright.
	_, err = ct.Decrypt(dk, 10, 10)
	assert.ErrorIs(err, ErrInvalidInput)
}

func TestDecryptWrongKey(t *testing.T) {
	assert := assert.New(t)

	dk := NewDecryptionKey()
	other := NewDecryptionKey()
	ct := Encrypt(42, dk.EncryptionKey(), nil)

	_, err := ct.Decrypt(other, 0, 1000)
	assert.ErrorIs(err, ErrOutOfRange)
}

func TestHomomorphicOperations(t *testing.T) {
	assert := assert.New(t)

	dk := NewDecryptionKey()
	ek := dk.EncryptionKey()

	ct1 := Encrypt(30, ek, nil)
	ct2 := Encrypt(12, ek, nil)

	sum, err := ct1.AddCiphertext(ct2).Decrypt(dk, 0, 1000)
	assert.Nil(err)
	assert.Equal(uint64(42), sum)

	diff, err := ct1.SubCiphertext(ct2).Decrypt(dk, 0, 1000)
	assert.Nil(err)
	assert.Equal(uint64(18), diff)

	plus, err := ct1.AddAmount(5).Decrypt(dk, 0, 1000)
	assert.Nil(err)
	assert.Equal(uint64(35), plus)

	minus, err := ct1.SubAmount(5).Decrypt(dk, 0, 1000)
	assert.Nil(err)
	assert.Equal(uint64(25), minus)
}

func TestCiphertextSerde(t *testing.T) {
	assert := assert.New(t)

	dk := NewDecryptionKey()
	ct := Encrypt(7, dk.EncryptionKey(), nil)

	data := ct.Bytes()
	assert.Len(data, 64)

	parsed, err := CiphertextFromBytes(data)
	assert.Nil(err)
	decrypted, err := parsed.Decrypt(dk, 0, 100)
	assert.Nil(err)
	assert.Equal(uint64(7), decrypted)

	_, err = CiphertextFromBytes(data[:63])
	assert.ErrorIs(err, ErrInvalidInput)
}

func TestEncryptWithExplicitRandomness(t *testing.T) {
	assert := assert.New(t)

	dk := NewDecryptionKey()
	ek := dk.EncryptionKey()
	r := RandomScalar()

	ct1 := Encrypt(9, ek, r)
	ct2 := Encrypt(9, ek, r)
	assert.Equal(ct1.Bytes(), ct2.Bytes())

	ct3 := Encrypt(9, ek, nil)
	assert.NotEqual(ct1.Bytes(), ct3.Bytes())
}
