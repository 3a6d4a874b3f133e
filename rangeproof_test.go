package veiled

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeProofRoundtrip(t *testing.T) {
	assert := assert.New(t)

	backend := NewBulletproofBackend()
	blinding := RandomScalar()
	G := basePoint()
	H := randomnessGenerator()

	for _, value := range []uint64{0, 1, 70, 1<<32 - 1} {
		proof, commitment, err := backend.Prove(value, blinding, G, H, 32)
		assert.Nil(err)
		assert.Len(proof, rangeProofSize(32))
		assert.Len(commitment, 32)
		assert.True(backend.Verify(proof, commitment, G, H, 32))
	}
}

func TestRangeProofBitSizes(t *testing.T) {
	assert := assert.New(t)

	backend := NewBulletproofBackend()
	blinding := RandomScalar()
	G := basePoint()
	H := randomnessGenerator()

	for _, bits := range []int64{8, 16, 64} {
		proof, commitment, err := backend.Prove(200, blinding, G, H, bits)
		assert.Nil(err)
		assert.True(backend.Verify(proof, commitment, G, H, bits))
	}

	_, _, err := backend.Prove(1, blinding, G, H, 33)
	assert.ErrorIs(err, ErrInvalidInput)

	// Value outside the proven range is rejected at proving time.
	_, _, err = backend.Prove(256, blinding, G, H, 8)
	assert.ErrorIs(err, ErrInvalidInput)
}

func TestRangeProofCiphertextBases(t *testing.T) {
	assert := assert.New(t)

	// Prove a chunk value against its own ciphertext: bases (G, D) with the
	// secret key as blinding must commit to exactly the C component.
	backend := NewBulletproofBackend()
	dk := NewDecryptionKey()
	ek := dk.EncryptionKey()

	r := RandomScalar()
	ct := Encrypt(12345, ek, r)

	proof, commitment, err := backend.Prove(12345, dk.scalar(), basePoint(), clonePoint(&ct.D), 32)
	assert.Nil(err)
	assert.Equal(hex.EncodeToString(ct.C.Bytes()), hex.EncodeToString(commitment))
	assert.True(backend.Verify(proof, ct.C.Bytes(), basePoint(), clonePoint(&ct.D), 32))
}

func TestRangeProofSoundnessProbes(t *testing.T) {
	assert := assert.New(t)

	backend := NewBulletproofBackend()
	blinding := RandomScalar()
	G := basePoint()
	H := randomnessGenerator()

	proof, commitment, err := backend.Prove(300, blinding, G, H, 32)
	assert.Nil(err)

	// Flipping a byte in any region of the proof invalidates it.
	for _, offset := range []int{0, 40, 150, 230, 400, len(proof) - 1} {
		tampered := append([]byte(nil), proof...)
		tampered[offset] ^= 0x01
		assert.False(backend.Verify(tampered, commitment, G, H, 32), "offset %d", offset)
	}

	// Wrong length and truncation are rejected.
	assert.False(backend.Verify(proof[:len(proof)-32], commitment, G, H, 32))
	assert.False(backend.Verify(append(proof, make([]byte, 32)...), commitment, G, H, 32))

	// A different commitment fails.
	other := Encrypt(301, NewDecryptionKey().EncryptionKey(), nil)
	assert.False(backend.Verify(proof, other.C.Bytes(), G, H, 32))

	// Swapped bases fail.
	assert.False(backend.Verify(proof, commitment, H, G, 32))
}

func TestRangeProofDeterminism(t *testing.T) {
	assert := assert.New(t)

	backend := NewBulletproofBackend()
	blinding := RandomScalar()
	G := basePoint()
	H := randomnessGenerator()

	p1, c1, err := backend.Prove(77, blinding, G, H, 32)
	assert.Nil(err)
	p2, c2, err := backend.Prove(77, blinding, G, H, 32)
	assert.Nil(err)
	assert.Equal(p1, p2)
	assert.Equal(c1, c2)

	p3, _, err := backend.Prove(77, RandomScalar(), G, H, 32)
	assert.Nil(err)
	assert.NotEqual(p1, p3)
}

func TestRangeProofSerde(t *testing.T) {
	assert := assert.New(t)

	backend := NewBulletproofBackend()
	proof, _, err := backend.Prove(9, RandomScalar(), basePoint(), randomnessGenerator(), 32)
	assert.Nil(err)

	parsed, err := RangeProofFromBytes(proof, 32)
	assert.Nil(err)
	assert.Equal(proof, parsed.ToBytes())

	_, err = RangeProofFromBytes(proof[:len(proof)-1], 32)
	assert.ErrorIs(err, ErrMalformedProof)
	_, err = RangeProofFromBytes(proof, 64)
	assert.ErrorIs(err, ErrMalformedProof)
}
