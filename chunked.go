package veiled

import (
	"fmt"
	"math/big"

	"github.com/bwesterb/go-ristretto"
)

// ChunkedAmount is a 128-bit balance split into CHUNK_COUNT chunks by
// positional weighting: v = sum_i Chunks[i] * 2^(CHUNK_SIZE*i). A chunk of a
// normalized amount fits in CHUNK_SIZE bits; homomorphic additions on chain
// can carry chunks into [0, 2^64), which Normalize repairs.
type ChunkedAmount struct {
	Chunks [CHUNK_COUNT]uint64
}

var twoPow128 = new(big.Int).Lsh(big.NewInt(1), CHUNK_SIZE*CHUNK_COUNT)

// NewChunkedAmount splits a non-negative integer v < 2^128 into normalized
// chunks.
func NewChunkedAmount(v *big.Int) (*ChunkedAmount, error) {
	if v.Sign() < 0 || v.Cmp(twoPow128) >= 0 {
		return nil, fmt.Errorf("amount out of [0, 2^128): %w", ErrInvalidInput)
	}

	mask := new(big.Int).SetUint64(CHUNK_BOUND - 1)
	rest := new(big.Int).Set(v)
	amount := &ChunkedAmount{}
	for i := 0; i < CHUNK_COUNT; i++ {
		var chunk big.Int
		chunk.And(rest, mask)
		amount.Chunks[i] = chunk.Uint64()
		rest.Rsh(rest, CHUNK_SIZE)
	}
	return amount, nil
}

// NewChunkedAmountFromUint64 splits a 64-bit amount into the two low chunks.
func NewChunkedAmountFromUint64(v uint64) *ChunkedAmount {
	return &ChunkedAmount{Chunks: [CHUNK_COUNT]uint64{
		v & (CHUNK_BOUND - 1),
		v >> CHUNK_SIZE,
		0,
		0,
	}}
}

// Big reassembles the integer value, including carries of unnormalized
// chunks.
func (a *ChunkedAmount) Big() *big.Int {
	v := new(big.Int)
	for i := CHUNK_COUNT - 1; i >= 0; i-- {
		v.Lsh(v, CHUNK_SIZE)
		v.Add(v, new(big.Int).SetUint64(a.Chunks[i]))
	}
	return v
}

func (a *ChunkedAmount) IsNormalized() bool {
	for i := range a.Chunks {
		if a.Chunks[i] >= CHUNK_BOUND {
			return false
		}
	}
	return true
}

// Normalize re-splits the amount so every chunk fits in CHUNK_SIZE bits.
// Fails if accumulated carries push the value to 2^128 or beyond.
func (a *ChunkedAmount) Normalize() (*ChunkedAmount, error) {
	return NewChunkedAmount(a.Big())
}

func (a *ChunkedAmount) scalar() *ristretto.Scalar {
	weights := chunkWeights()
	var v ristretto.Scalar
	v.SetZero()
	for i := range a.Chunks {
		var t ristretto.Scalar
		t.Mul(uint64ToScalar(a.Chunks[i]), weights[i])
		v.Add(&v, &t)
	}
	return &v
}

// EncryptedBalance is a chunked balance encrypted chunk-wise, each chunk
// with its own randomness.
type EncryptedBalance struct {
	Chunks [CHUNK_COUNT]*Ciphertext
}

// EncryptBalance encrypts amount under ek. randomness must be nil (fresh
// scalars are drawn) or hold exactly CHUNK_COUNT scalars.
func EncryptBalance(amount *ChunkedAmount, ek *EncryptionKey, randomness []*ristretto.Scalar) (*EncryptedBalance, error) {
	if randomness == nil {
		randomness = make([]*ristretto.Scalar, CHUNK_COUNT)
		for i := range randomness {
			randomness[i] = RandomScalar()
		}
	}
	if len(randomness) != CHUNK_COUNT {
		return nil, fmt.Errorf("randomness must hold %d scalars, got %d: %w", CHUNK_COUNT, len(randomness), ErrInvalidInput)
	}

	balance := &EncryptedBalance{}
	for i := 0; i < CHUNK_COUNT; i++ {
		balance.Chunks[i] = Encrypt(amount.Chunks[i], ek, randomness[i])
	}
	return balance, nil
}

// Decrypt recovers the chunked amount. Every chunk is searched within
// [0, chunkWindow); pass a window above 2^32 for unnormalized balances.
func (b *EncryptedBalance) Decrypt(dk *DecryptionKey, chunkWindow uint64) (*ChunkedAmount, error) {
	amount := &ChunkedAmount{}
	for i := 0; i < CHUNK_COUNT; i++ {
		chunk, err := b.Chunks[i].Decrypt(dk, 0, chunkWindow)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		amount.Chunks[i] = chunk
	}
	return amount, nil
}

// weightedSums aggregates the balance by positional weight and returns
// (sum_i w_i*C_i, sum_i w_i*D_i).
func (b *EncryptedBalance) weightedSums() (*ristretto.Point, *ristretto.Point) {
	weights := chunkWeights()
	cs := make([]*ristretto.Point, CHUNK_COUNT)
	ds := make([]*ristretto.Point, CHUNK_COUNT)
	for i := 0; i < CHUNK_COUNT; i++ {
		cs[i] = &b.Chunks[i].C
		ds[i] = &b.Chunks[i].D
	}
	return multiscalarMul(weights[:], cs), multiscalarMul(weights[:], ds)
}

// Bytes serializes the balance as CHUNK_COUNT concatenated ciphertexts,
// 256 bytes total.
func (b *EncryptedBalance) Bytes() []byte {
	var buf []byte
	for i := range b.Chunks {
		buf = append(buf, b.Chunks[i].Bytes()...)
	}
	return buf
}

func EncryptedBalanceFromBytes(data []byte) (*EncryptedBalance, error) {
	if len(data) != CHUNK_COUNT*64 {
		return nil, fmt.Errorf("encrypted balance must be %d bytes, got %d: %w", CHUNK_COUNT*64, len(data), ErrInvalidInput)
	}
	balance := &EncryptedBalance{}
	for i := 0; i < CHUNK_COUNT; i++ {
		ct, err := CiphertextFromBytes(data[i*64 : (i+1)*64])
		if err != nil {
			return nil, err
		}
		balance.Chunks[i] = ct
	}
	return balance, nil
}
