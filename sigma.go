package veiled

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/bwesterb/go-ristretto"
	"github.com/dchest/blake2b"
)

// sigmaTranscript accumulates the Fiat-Shamir transcript of a sigma proof.
// The challenge is SHA-512 over the domain tag followed by every absorbed
// element, reduced little-endian modulo the group order. Absorption order is
// part of the wire protocol: reordering or omitting any element yields a
// different challenge.
type sigmaTranscript struct {
	h hash.Hash
}

func newSigmaTranscript(domainTag string) *sigmaTranscript {
	t := &sigmaTranscript{h: sha512.New()}
	t.h.Write([]byte(domainTag))
	return t
}

func (t *sigmaTranscript) appendPoint(p *ristretto.Point) {
	t.h.Write(p.Bytes())
}

func (t *sigmaTranscript) appendScalar(s *ristretto.Scalar) {
	t.h.Write(s.Bytes())
}

func (t *sigmaTranscript) appendCiphertext(ct *Ciphertext) {
	t.appendPoint(&ct.C)
	t.appendPoint(&ct.D)
}

func (t *sigmaTranscript) appendBalance(b *EncryptedBalance) {
	for i := range b.Chunks {
		t.appendCiphertext(b.Chunks[i])
	}
}

func (t *sigmaTranscript) challenge() *ristretto.Scalar {
	return fromBytesModOrderWide(t.h.Sum(nil))
}

// blinderStream derives the prover's commitment scalars deterministically
// from secret material, the way deterministic signature nonces are derived.
// A builder re-run with identical randomness therefore reproduces its sigma
// proof byte for byte.
type blinderStream struct {
	seed    []byte
	counter uint64
}

func newBlinderStream(seed ...[]byte) *blinderStream {
	hash := blake2b.New512()
	hash.Write([]byte(SIGMA_BLINDER_DOMAIN_TAG))
	for i := range seed {
		hash.Write(seed[i])
	}
	return &blinderStream{seed: hash.Sum(nil)}
}

func (b *blinderStream) next() *ristretto.Scalar {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], b.counter)
	b.counter++

	hash := blake2b.New512()
	hash.Write([]byte(SIGMA_BLINDER_DOMAIN_TAG))
	hash.Write(b.seed)
	hash.Write(buf[:])
	return fromBytesModOrderWide(hash.Sum(nil))
}

// response computes alpha = x + chi*witness.
func response(x, chi, witness *ristretto.Scalar) *ristretto.Scalar {
	var alpha ristretto.Scalar
	alpha.Mul(chi, witness)
	alpha.Add(&alpha, x)
	return &alpha
}

// commitmentHolds checks response*base == X + chi*statement, the verifier
// side of a single Schnorr equation.
func commitmentHolds(lhs, x *ristretto.Point, chi *ristretto.Scalar, statement *ristretto.Point) bool {
	var rhs ristretto.Point
	rhs.ScalarMult(statement, chi)
	rhs.Add(x, &rhs)
	return bytesEqualPoint(lhs, &rhs)
}

// Wire helpers: every sigma-proof field is a 32-byte little-endian scalar or
// canonical point, concatenated in the declared order.

func appendScalarBytes(buf []byte, s *ristretto.Scalar) []byte {
	return append(buf, s.Bytes()...)
}

func appendPointBytes(buf []byte, p *ristretto.Point) []byte {
	return append(buf, p.Bytes()...)
}

// scalarField reads the i-th 32-byte field as a scalar.
func scalarField(data []byte, i int) *ristretto.Scalar {
	var buf [32]byte
	copy(buf[:], data[i*32:(i+1)*32])
	var s ristretto.Scalar
	return s.SetBytes(&buf)
}

// pointField reads the i-th 32-byte field as a point.
func pointField(data []byte, i int) (*ristretto.Point, error) {
	var p ristretto.Point
	if err := p.UnmarshalBinary(data[i*32 : (i+1)*32]); err != nil {
		return nil, fmt.Errorf("field %d: %s: %w", i, err, ErrMalformedProof)
	}
	return &p, nil
}
