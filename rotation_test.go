package veiled

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyRotation(t *testing.T) {
	assert := assert.New(t)

	oldKey, err := NewDecryptionKeyFromSeed(testSeed(50))
	assert.Nil(err)
	newKey, err := NewDecryptionKeyFromSeed(testSeed(51))
	assert.Nil(err)

	oldEncryption := oldKey.EncryptionKey()
	newEncryption := newKey.EncryptionKey()

	balance, err := EncryptBalance(NewChunkedAmountFromUint64(70), oldEncryption, nil)
	assert.Nil(err)

	builder, err := CreateKeyRotationBuilder(oldKey, newKey, balance, &BuilderOptions{DecryptWindow: 1 << 10})
	assert.Nil(err)
	auth, err := builder.Authorize(context.Background())
	assert.Nil(err)

	assert.True(VerifyKeyRotation(nil, oldEncryption, newEncryption, balance, auth.NewBalance, auth.SigmaProof, auth.RangeProofs))

	// The new key decrypts the rotated balance.
	decrypted, err := auth.NewBalance.Decrypt(newKey, 1<<10)
	assert.Nil(err)
	assert.Equal(uint64(70), decrypted.Big().Uint64())

	// The old key no longer locates the amount within a bounded window.
	_, err = auth.NewBalance.Decrypt(oldKey, 1<<10)
	assert.ErrorIs(err, ErrOutOfRange)
}

func TestKeyRotationFiatShamirSensitivity(t *testing.T) {
	assert := assert.New(t)

	oldKey, err := NewDecryptionKeyFromSeed(testSeed(52))
	assert.Nil(err)
	newKey, err := NewDecryptionKeyFromSeed(testSeed(53))
	assert.Nil(err)

	oldEncryption := oldKey.EncryptionKey()
	newEncryption := newKey.EncryptionKey()
	balance, err := EncryptBalance(NewChunkedAmountFromUint64(70), oldEncryption, nil)
	assert.Nil(err)

	builder, err := CreateKeyRotationBuilder(oldKey, newKey, balance, &BuilderOptions{DecryptWindow: 1 << 10})
	assert.Nil(err)
	auth, err := builder.Authorize(context.Background())
	assert.Nil(err)

	// Swapped key roles fail.
	assert.False(VerifyKeyRotation(nil, newEncryption, oldEncryption, balance, auth.NewBalance, auth.SigmaProof, auth.RangeProofs))

	// A third party's key fails.
	assert.False(VerifyKeyRotation(nil, oldEncryption, NewDecryptionKey().EncryptionKey(), balance, auth.NewBalance, auth.SigmaProof, auth.RangeProofs))

	// A tampered new-balance ciphertext fails.
	tampered, err := EncryptedBalanceFromBytes(auth.NewBalance.Bytes())
	assert.Nil(err)
	tampered.Chunks[0] = tampered.Chunks[0].AddAmount(1)
	assert.False(VerifyKeyRotation(nil, oldEncryption, newEncryption, balance, tampered, auth.SigmaProof, auth.RangeProofs))
}

func TestKeyRotationSigmaProofSerde(t *testing.T) {
	assert := assert.New(t)

	oldKey, err := NewDecryptionKeyFromSeed(testSeed(54))
	assert.Nil(err)
	newKey, err := NewDecryptionKeyFromSeed(testSeed(55))
	assert.Nil(err)

	oldEncryption := oldKey.EncryptionKey()
	newEncryption := newKey.EncryptionKey()
	balance, err := EncryptBalance(NewChunkedAmountFromUint64(70), oldEncryption, nil)
	assert.Nil(err)

	builder, err := CreateKeyRotationBuilder(oldKey, newKey, balance, &BuilderOptions{DecryptWindow: 1 << 10})
	assert.Nil(err)
	auth, err := builder.Authorize(context.Background())
	assert.Nil(err)

	data := auth.SigmaProof.ToBytes()
	assert.Len(data, ROTATION_SIGMA_PROOF_SIZE)

	parsed, err := KeyRotationSigmaProofFromBytes(data)
	assert.Nil(err)
	assert.Equal(data, parsed.ToBytes())
	assert.True(VerifyKeyRotation(nil, oldEncryption, newEncryption, balance, auth.NewBalance, parsed, auth.RangeProofs))

	_, err = KeyRotationSigmaProofFromBytes(data[:len(data)-1])
	assert.ErrorIs(err, ErrMalformedProof)
	_, err = KeyRotationSigmaProofFromBytes(append(data, make([]byte, 32)...))
	assert.ErrorIs(err, ErrMalformedProof)

	for _, offset := range []int{0, 100, 360, ROTATION_SIGMA_PROOF_SIZE - 1} {
		flipped := append([]byte(nil), data...)
		flipped[offset] ^= 0x01
		mutated, err := KeyRotationSigmaProofFromBytes(flipped)
		if err != nil {
			continue
		}
		assert.False(VerifyKeyRotation(nil, oldEncryption, newEncryption, balance, auth.NewBalance, mutated, auth.RangeProofs), "offset %d", offset)
	}
}
