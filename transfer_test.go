package veiled

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransfer(t *testing.T) {
	assert := assert.New(t)

	alice, err := NewDecryptionKeyFromSeed(testSeed(30))
	assert.Nil(err)
	bob, err := NewDecryptionKeyFromSeed(testSeed(31))
	assert.Nil(err)

	aliceKey := alice.EncryptionKey()
	bobKey := bob.EncryptionKey()

	balance, err := EncryptBalance(NewChunkedAmountFromUint64(70), aliceKey, nil)
	assert.Nil(err)

	builder, err := CreateTransferBuilder(alice, balance, bobKey, 10, nil, &BuilderOptions{DecryptWindow: 1 << 10})
	assert.Nil(err)
	auth, err := builder.Authorize(context.Background())
	assert.Nil(err)

	assert.True(VerifyTransfer(nil, aliceKey, bobKey, balance, auth.NewBalance, auth.RecipientAmount, nil, nil, auth.SigmaProof, auth.RangeProofs))

	// Bob decrypts the transferred amount.
	received, err := DecryptTransferredAmount(bob, auth.RecipientAmount)
	assert.Nil(err)
	assert.Equal(uint64(10), received)

	// Alice's new balance decrypts to 60.
	decrypted, err := auth.NewBalance.Decrypt(alice, 1<<10)
	assert.Nil(err)
	assert.Equal(uint64(60), decrypted.Big().Uint64())
}

func TestTransferWithAuditor(t *testing.T) {
	assert := assert.New(t)

	alice, err := NewDecryptionKeyFromSeed(testSeed(32))
	assert.Nil(err)
	bob, err := NewDecryptionKeyFromSeed(testSeed(33))
	assert.Nil(err)
	auditor, err := NewDecryptionKeyFromSeed(testSeed(34))
	assert.Nil(err)

	aliceKey := alice.EncryptionKey()
	bobKey := bob.EncryptionKey()
	auditorKey := auditor.EncryptionKey()

	balance, err := EncryptBalance(NewChunkedAmountFromUint64(70), aliceKey, nil)
	assert.Nil(err)

	builder, err := CreateTransferBuilder(alice, balance, bobKey, 10, []*EncryptionKey{auditorKey}, &BuilderOptions{DecryptWindow: 1 << 10})
	assert.Nil(err)
	auth, err := builder.Authorize(context.Background())
	assert.Nil(err)
	assert.Len(auth.AuditorHandles, 1)

	auditors := []*EncryptionKey{auditorKey}
	assert.True(VerifyTransfer(nil, aliceKey, bobKey, balance, auth.NewBalance, auth.RecipientAmount, auditors, auth.AuditorHandles, auth.SigmaProof, auth.RangeProofs))

	// The auditor decrypts the amount from its handles.
	audited, err := DecryptAuditorAmount(auditor, auth.RecipientAmount, auth.AuditorHandles[0])
	assert.Nil(err)
	assert.Equal(uint64(10), audited)

	// Substituting a different auditor key fails verification.
	wrongKey := []*EncryptionKey{NewDecryptionKey().EncryptionKey()}
	assert.False(VerifyTransfer(nil, aliceKey, bobKey, balance, auth.NewBalance, auth.RecipientAmount, wrongKey, auth.AuditorHandles, auth.SigmaProof, auth.RangeProofs))

	// Tampering with the handle list fails verification.
	tampered := []AuditorHandles{{
		clonePoint(auth.AuditorHandles[0][1]),
		clonePoint(auth.AuditorHandles[0][0]),
		clonePoint(auth.AuditorHandles[0][2]),
		clonePoint(auth.AuditorHandles[0][3]),
	}}
	assert.False(VerifyTransfer(nil, aliceKey, bobKey, balance, auth.NewBalance, auth.RecipientAmount, auditors, tampered, auth.SigmaProof, auth.RangeProofs))

	// Dropping the auditor entirely fails: handle count no longer matches
	// the proof's commitment sets.
	assert.False(VerifyTransfer(nil, aliceKey, bobKey, balance, auth.NewBalance, auth.RecipientAmount, nil, nil, auth.SigmaProof, auth.RangeProofs))
}

func TestTransferLargeAmount(t *testing.T) {
	assert := assert.New(t)

	alice, err := NewDecryptionKeyFromSeed(testSeed(35))
	assert.Nil(err)
	bob, err := NewDecryptionKeyFromSeed(testSeed(36))
	assert.Nil(err)

	aliceKey := alice.EncryptionKey()

	// Transfer an amount that spans both low chunks.
	amount := uint64(1<<32 + 5)
	balance, err := EncryptBalance(NewChunkedAmountFromUint64(1<<33), aliceKey, nil)
	assert.Nil(err)

	builder, err := CreateTransferBuilder(alice, balance, bob.EncryptionKey(), amount, nil, &BuilderOptions{DecryptWindow: 1 << 10})
	assert.Nil(err)
	auth, err := builder.Authorize(context.Background())
	assert.Nil(err)

	assert.True(VerifyTransfer(nil, aliceKey, bob.EncryptionKey(), balance, auth.NewBalance, auth.RecipientAmount, nil, nil, auth.SigmaProof, auth.RangeProofs))

	received, err := DecryptTransferredAmount(bob, auth.RecipientAmount)
	assert.Nil(err)
	assert.Equal(amount, received)
}

func TestTransferFiatShamirSensitivity(t *testing.T) {
	assert := assert.New(t)

	alice, err := NewDecryptionKeyFromSeed(testSeed(37))
	assert.Nil(err)
	bob, err := NewDecryptionKeyFromSeed(testSeed(38))
	assert.Nil(err)

	aliceKey := alice.EncryptionKey()
	bobKey := bob.EncryptionKey()
	balance, err := EncryptBalance(NewChunkedAmountFromUint64(70), aliceKey, nil)
	assert.Nil(err)

	builder, err := CreateTransferBuilder(alice, balance, bobKey, 10, nil, &BuilderOptions{DecryptWindow: 1 << 10})
	assert.Nil(err)
	auth, err := builder.Authorize(context.Background())
	assert.Nil(err)

	// Swapped keys fail.
	assert.False(VerifyTransfer(nil, bobKey, aliceKey, balance, auth.NewBalance, auth.RecipientAmount, nil, nil, auth.SigmaProof, auth.RangeProofs))

	// A tampered recipient ciphertext fails.
	tampered, err := EncryptedBalanceFromBytes(auth.RecipientAmount.Bytes())
	assert.Nil(err)
	tampered.Chunks[0] = tampered.Chunks[0].AddAmount(1)
	assert.False(VerifyTransfer(nil, aliceKey, bobKey, balance, auth.NewBalance, tampered, nil, nil, auth.SigmaProof, auth.RangeProofs))

	// A tampered new-balance ciphertext fails.
	tampered2, err := EncryptedBalanceFromBytes(auth.NewBalance.Bytes())
	assert.Nil(err)
	tampered2.Chunks[1] = tampered2.Chunks[1].AddAmount(1)
	assert.False(VerifyTransfer(nil, aliceKey, bobKey, balance, tampered2, auth.RecipientAmount, nil, nil, auth.SigmaProof, auth.RangeProofs))
}

func TestTransferSigmaProofSerde(t *testing.T) {
	assert := assert.New(t)

	alice, err := NewDecryptionKeyFromSeed(testSeed(39))
	assert.Nil(err)
	bob, err := NewDecryptionKeyFromSeed(testSeed(40))
	assert.Nil(err)
	auditor, err := NewDecryptionKeyFromSeed(testSeed(41))
	assert.Nil(err)

	aliceKey := alice.EncryptionKey()
	bobKey := bob.EncryptionKey()
	balance, err := EncryptBalance(NewChunkedAmountFromUint64(70), aliceKey, nil)
	assert.Nil(err)

	builder, err := CreateTransferBuilder(alice, balance, bobKey, 10, []*EncryptionKey{auditor.EncryptionKey()}, &BuilderOptions{DecryptWindow: 1 << 10})
	assert.Nil(err)
	auth, err := builder.Authorize(context.Background())
	assert.Nil(err)

	data := auth.SigmaProof.ToBytes()
	assert.Len(data, TRANSFER_SIGMA_PROOF_BASE_SIZE+CHUNK_COUNT*32)

	parsed, err := TransferSigmaProofFromBytes(data)
	assert.Nil(err)
	assert.Len(parsed.X7, 1)
	assert.Equal(data, parsed.ToBytes())

	auditors := []*EncryptionKey{auditor.EncryptionKey()}
	assert.True(VerifyTransfer(nil, aliceKey, bobKey, balance, auth.NewBalance, auth.RecipientAmount, auditors, auth.AuditorHandles, parsed, auth.RangeProofs))

	// A tail that is not a whole number of auditor sets is malformed.
	_, err = TransferSigmaProofFromBytes(data[:len(data)-32])
	assert.ErrorIs(err, ErrMalformedProof)
	_, err = TransferSigmaProofFromBytes(data[:len(data)-1])
	assert.ErrorIs(err, ErrMalformedProof)
	_, err = TransferSigmaProofFromBytes(data[:TRANSFER_SIGMA_PROOF_BASE_SIZE-32])
	assert.ErrorIs(err, ErrMalformedProof)

	// The base layout alone parses as an auditor-free proof.
	parsedBase, err := TransferSigmaProofFromBytes(data[:TRANSFER_SIGMA_PROOF_BASE_SIZE])
	assert.Nil(err)
	assert.Len(parsedBase.X7, 0)
}

func TestTransferDeterministicWithFixedRandomness(t *testing.T) {
	assert := assert.New(t)

	alice, err := NewDecryptionKeyFromSeed(testSeed(42))
	assert.Nil(err)
	bob, err := NewDecryptionKeyFromSeed(testSeed(43))
	assert.Nil(err)

	aliceKey := alice.EncryptionKey()
	balance, err := EncryptBalance(NewChunkedAmountFromUint64(70), aliceKey, deterministicScalars(44))
	assert.Nil(err)

	opts := &BuilderOptions{DecryptWindow: 1 << 10, Randomness: deterministicScalars(45)}

	b1, err := CreateTransferBuilder(alice, balance, bob.EncryptionKey(), 10, nil, opts)
	assert.Nil(err)
	a1, err := b1.Authorize(context.Background())
	assert.Nil(err)

	b2, err := CreateTransferBuilder(alice, balance, bob.EncryptionKey(), 10, nil, opts)
	assert.Nil(err)
	a2, err := b2.Authorize(context.Background())
	assert.Nil(err)

	assert.Equal(a1.SigmaProof.ToBytes(), a2.SigmaProof.ToBytes())
	assert.Equal(a1.RangeProofs.Amount.Bytes(), a2.RangeProofs.Amount.Bytes())
	assert.Equal(a1.RangeProofs.NewBalance.Bytes(), a2.RangeProofs.NewBalance.Bytes())
	assert.Equal(a1.RecipientAmount.Bytes(), a2.RecipientAmount.Bytes())
}
