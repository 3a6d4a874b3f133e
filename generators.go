package veiled

import (
	"encoding/binary"

	"github.com/bwesterb/go-ristretto"
	"golang.org/x/crypto/sha3"
)

// PedersenGens is a pair of commitment bases. Range proofs are bound to
// their statement through these: the chunk bases are (G, H) for transfer
// amounts and (G, D_i) for new-balance chunks.
type PedersenGens struct {
	B         *ristretto.Point
	BBlinding *ristretto.Point
}

func NewPedersenGens(value, blinding *ristretto.Point) *PedersenGens {
	return &PedersenGens{
		B:         clonePoint(value),
		BBlinding: clonePoint(blinding),
	}
}

// Commit computes value*B + blinding*BBlinding.
func (pg *PedersenGens) Commit(value, blinding *ristretto.Scalar) *ristretto.Point {
	return multiscalarMul([]*ristretto.Scalar{value, blinding}, []*ristretto.Point{pg.B, pg.BBlinding})
}

// BulletproofGens holds the vector generators of single-value range proofs.
// They are derived from a SHAKE-256 chain and shared by prover and verifier.
type BulletproofGens struct {
	GensCapacity int64
	GVec         []*ristretto.Point
	HVec         []*ristretto.Point
}

func NewBulletproofGens(gensCapacity int64) *BulletproofGens {
	b := &BulletproofGens{GensCapacity: 0}
	b.IncreaseCapacity(gensCapacity)
	return b
}

func (b *BulletproofGens) IncreaseCapacity(capacity int64) {
	if b.GensCapacity >= capacity {
		return
	}

	var byte32 [4]byte
	binary.LittleEndian.PutUint32(byte32[:], 0)
	label := []byte("G")
	label = append(label, byte32[:]...)
	chainG := NewGeneratorsChain(label)
	chainG.FastForward(b.GensCapacity)
	for i := b.GensCapacity; i < capacity; i++ {
		b.GVec = append(b.GVec, chainG.Next())
	}

	label[0] = []byte("H")[0]
	chainH := NewGeneratorsChain(label)
	chainH.FastForward(b.GensCapacity)
	for i := b.GensCapacity; i < capacity; i++ {
		b.HVec = append(b.HVec, chainH.Next())
	}

	b.GensCapacity = capacity
}

// G returns clones of the first n G-vector generators.
func (b *BulletproofGens) G(n int64) []*ristretto.Point {
	out := make([]*ristretto.Point, n)
	for i := int64(0); i < n; i++ {
		out[i] = clonePoint(b.GVec[i])
	}
	return out
}

// H returns clones of the first n H-vector generators.
func (b *BulletproofGens) H(n int64) []*ristretto.Point {
	out := make([]*ristretto.Point, n)
	for i := int64(0); i < n; i++ {
		out[i] = clonePoint(b.HVec[i])
	}
	return out
}

type GeneratorsChain struct {
	sha3.ShakeHash
}

func NewGeneratorsChain(label []byte) *GeneratorsChain {
	h := sha3.NewShake256()
	h.Write([]byte("GeneratorsChain"))
	h.Write(label)
	return &GeneratorsChain{h}
}

func (c *GeneratorsChain) FastForward(n int64) {
	for i := int64(0); i < n; i++ {
		var data [64]byte
		c.Read(data[:])
	}
}

func (c *GeneratorsChain) Next() *ristretto.Point {
	var data [64]byte
	c.Read(data[:])
	return pointFromUniformBytes(data[:])
}
