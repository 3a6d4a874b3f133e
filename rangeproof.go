package veiled

import (
	"encoding/binary"
	"fmt"

	"github.com/bwesterb/go-ristretto"
	"golang.org/x/crypto/sha3"
)

// RangeProofBackend is the pluggable single-value range-proof engine. Prove
// commits to value with the supplied bases, K = value*valueBase +
// blinding*blindingBase, and proves value in [0, 2^bits); Verify checks a
// proof against the serialized commitment. The builders choose bases per
// statement: (G, H) for transfer-amount chunks and (G, D_i) for new-balance
// chunks, which ties range validity to the chunk's ciphertext.
type RangeProofBackend interface {
	Prove(value uint64, blinding *ristretto.Scalar, valueBase, blindingBase *ristretto.Point, bits int64) (proof []byte, commitment []byte, err error)
	Verify(proof, commitment []byte, valueBase, blindingBase *ristretto.Point, bits int64) bool
}

// BulletproofBackend implements RangeProofBackend with single-value
// Bulletproofs over the shared vector generators. Proof blinders are derived
// deterministically from the secret blinding scalar, so identical inputs
// reproduce identical proof bytes.
type BulletproofBackend struct {
	Gens *BulletproofGens
}

func NewBulletproofBackend() *BulletproofBackend {
	return &BulletproofBackend{Gens: NewBulletproofGens(64)}
}

// RangeProof mirrors the dalek bulletproofs layout: four commitment points,
// three scalars and the folded inner-product argument.
type RangeProof struct {
	A, S       *ristretto.Point
	T1, T2     *ristretto.Point
	TX         *ristretto.Scalar
	TXBlinding *ristretto.Scalar
	EBlinding  *ristretto.Scalar
	IPPProof   *InnerProductProof
}

func (p *RangeProof) ToBytes() []byte {
	var buf []byte
	buf = append(buf, p.A.Bytes()...)
	buf = append(buf, p.S.Bytes()...)
	buf = append(buf, p.T1.Bytes()...)
	buf = append(buf, p.T2.Bytes()...)
	buf = append(buf, p.TX.Bytes()...)
	buf = append(buf, p.TXBlinding.Bytes()...)
	buf = append(buf, p.EBlinding.Bytes()...)
	for i := range p.IPPProof.LVec {
		buf = append(buf, p.IPPProof.LVec[i].Bytes()...)
		buf = append(buf, p.IPPProof.RVec[i].Bytes()...)
	}
	buf = append(buf, p.IPPProof.A.Bytes()...)
	buf = append(buf, p.IPPProof.B.Bytes()...)
	return buf
}

func RangeProofFromBytes(data []byte, bits int64) (*RangeProof, error) {
	k, err := foldRounds(bits)
	if err != nil {
		return nil, err
	}
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("length %d not a multiple of 32: %w", len(data), ErrMalformedProof)
	}
	expected := (7 + 2*k + 2) * 32
	if len(data) != expected {
		return nil, fmt.Errorf("expected %d bytes, got %d: %w", expected, len(data), ErrMalformedProof)
	}

	p := &RangeProof{IPPProof: &InnerProductProof{}}
	points := []**ristretto.Point{&p.A, &p.S, &p.T1, &p.T2}
	for i, dst := range points {
		pt, err := pointField(data, i)
		if err != nil {
			return nil, err
		}
		*dst = pt
	}
	p.TX = scalarField(data, 4)
	p.TXBlinding = scalarField(data, 5)
	p.EBlinding = scalarField(data, 6)

	for j := 0; j < k; j++ {
		l, err := pointField(data, 7+2*j)
		if err != nil {
			return nil, err
		}
		r, err := pointField(data, 7+2*j+1)
		if err != nil {
			return nil, err
		}
		p.IPPProof.LVec = append(p.IPPProof.LVec, l)
		p.IPPProof.RVec = append(p.IPPProof.RVec, r)
	}
	p.IPPProof.A = scalarField(data, 7+2*k)
	p.IPPProof.B = scalarField(data, 7+2*k+1)
	return p, nil
}

func foldRounds(bits int64) (int, error) {
	switch bits {
	case 8:
		return 3, nil
	case 16:
		return 4, nil
	case 32:
		return 5, nil
	case 64:
		return 6, nil
	}
	return 0, fmt.Errorf("unsupported bit size %d: %w", bits, ErrInvalidInput)
}

func (b *BulletproofBackend) Prove(value uint64, blinding *ristretto.Scalar, valueBase, blindingBase *ristretto.Point, bits int64) ([]byte, []byte, error) {
	if _, err := foldRounds(bits); err != nil {
		return nil, nil, err
	}
	if bits < 64 && value>>uint(bits) != 0 {
		return nil, nil, fmt.Errorf("value %d exceeds %d bits: %w", value, bits, ErrInvalidInput)
	}
	if b.Gens.GensCapacity < bits {
		return nil, nil, fmt.Errorf("generators capacity %d below %d: %w", b.Gens.GensCapacity, bits, ErrInvalidInput)
	}
	n := bits

	pg := NewPedersenGens(valueBase, blindingBase)
	V := pg.Commit(uint64ToScalar(value), blinding)

	noise := newProofNoise(value, blinding, valueBase, blindingBase, n)

	transcript := InitialTranscript(BULLETPROOF_DOMAIN_TAG)
	RangeproofDomainSep(n, 1, transcript)
	AppendPoint("B", pg.B, transcript)
	AppendPoint("B_blinding", pg.BBlinding, transcript)
	AppendPoint("V", V, transcript)

	Gs := b.Gens.G(n)
	Hs := b.Gens.H(n)

	// A commits to the bit vectors: bit set contributes G_i, clear -H_i.
	aBlinding := noise.next()
	var A ristretto.Point
	A.ScalarMult(pg.BBlinding, aBlinding)
	for i := int64(0); i < n; i++ {
		var point ristretto.Point
		point.Neg(Hs[i])
		if (value>>uint(i))&1 == 1 {
			point = *Gs[i]
		}
		A.Add(&A, &point)
	}

	sBlinding := noise.next()
	sL := make([]*ristretto.Scalar, n)
	sR := make([]*ristretto.Scalar, n)
	for i := int64(0); i < n; i++ {
		sL[i] = noise.next()
		sR[i] = noise.next()
	}
	sScalars := append([]*ristretto.Scalar{sBlinding}, sL...)
	sScalars = append(sScalars, sR...)
	sPoints := append([]*ristretto.Point{pg.BBlinding}, Gs...)
	sPoints = append(sPoints, Hs...)
	S := multiscalarMul(sScalars, sPoints)

	AppendPoint("A", &A, transcript)
	AppendPoint("S", S, transcript)
	y := ChallengeScalar("y", transcript)
	z := ChallengeScalar("z", transcript)

	var zz ristretto.Scalar
	zz.Mul(z, z)

	LPoly := ZeroVecPoly1(n)
	RPoly := ZeroVecPoly1(n)
	expY := NewScalarExp(y)
	var exp2 ristretto.Scalar
	exp2.SetOne()
	for i := int64(0); i < n; i++ {
		aLi := uint64ToScalar((value >> uint(i)) & 1)
		var one, aRi ristretto.Scalar
		one.SetOne()
		aRi.Sub(aLi, &one)

		yi := expY.Next()
		LPoly.As[i].Sub(aLi, z)
		LPoly.Bs[i] = sL[i]

		var tmp1, tmp2 ristretto.Scalar
		tmp1.Add(&aRi, z)
		tmp1.Mul(yi, &tmp1)
		tmp2.Mul(&zz, &exp2)
		RPoly.As[i].Add(&tmp1, &tmp2)
		RPoly.Bs[i].Mul(yi, sR[i])

		exp2.Add(&exp2, &exp2)
	}

	tPoly := LPoly.InnerProduct(RPoly)

	t1Blinding := noise.next()
	t2Blinding := noise.next()
	T1 := pg.Commit(tPoly.B, t1Blinding)
	T2 := pg.Commit(tPoly.C, t2Blinding)

	AppendPoint("T_1", T1, transcript)
	AppendPoint("T_2", T2, transcript)
	x := ChallengeScalar("x", transcript)

	var gammaZZ ristretto.Scalar
	gammaZZ.Mul(&zz, blinding)
	tBlindingPoly := Poly2{A: &gammaZZ, B: t1Blinding, C: t2Blinding}

	tx := tPoly.Eval(x)
	txBlinding := tBlindingPoly.Eval(x)
	var eBlinding ristretto.Scalar
	eBlinding.Mul(sBlinding, x)
	eBlinding.Add(aBlinding, &eBlinding)

	AppendScalar("t_x", tx, transcript)
	AppendScalar("t_x_blinding", txBlinding, transcript)
	AppendScalar("e_blinding", &eBlinding, transcript)
	w := ChallengeScalar("w", transcript)

	var Q ristretto.Point
	Q.ScalarMult(pg.B, w)

	var yInv ristretto.Scalar
	yInv.Inverse(y)
	expYInv := NewScalarExp(&yInv)
	hFactors := make([]*ristretto.Scalar, n)
	for i := int64(0); i < n; i++ {
		hFactors[i] = expYInv.Next()
	}

	lVec := LPoly.Eval(x)
	rVec := RPoly.Eval(x)
	ipp := CreateInnerProductProof(transcript, &Q, hFactors, Gs, Hs, lVec, rVec)

	proof := &RangeProof{
		A:          &A,
		S:          S,
		T1:         T1,
		T2:         T2,
		TX:         tx,
		TXBlinding: txBlinding,
		EBlinding:  &eBlinding,
		IPPProof:   ipp,
	}
	return proof.ToBytes(), V.Bytes(), nil
}

func (b *BulletproofBackend) Verify(proofBytes, commitment []byte, valueBase, blindingBase *ristretto.Point, bits int64) bool {
	proof, err := RangeProofFromBytes(proofBytes, bits)
	if err != nil {
		return false
	}
	if len(commitment) != 32 {
		return false
	}
	var V ristretto.Point
	if err := V.UnmarshalBinary(commitment); err != nil {
		return false
	}
	if b.Gens.GensCapacity < bits {
		return false
	}
	n := bits

	pg := NewPedersenGens(valueBase, blindingBase)

	transcript := InitialTranscript(BULLETPROOF_DOMAIN_TAG)
	RangeproofDomainSep(n, 1, transcript)
	AppendPoint("B", pg.B, transcript)
	AppendPoint("B_blinding", pg.BBlinding, transcript)
	AppendPoint("V", &V, transcript)
	AppendPoint("A", proof.A, transcript)
	AppendPoint("S", proof.S, transcript)
	y := ChallengeScalar("y", transcript)
	z := ChallengeScalar("z", transcript)
	AppendPoint("T_1", proof.T1, transcript)
	AppendPoint("T_2", proof.T2, transcript)
	x := ChallengeScalar("x", transcript)
	AppendScalar("t_x", proof.TX, transcript)
	AppendScalar("t_x_blinding", proof.TXBlinding, transcript)
	AppendScalar("e_blinding", proof.EBlinding, transcript)
	w := ChallengeScalar("w", transcript)

	var zz, xx ristretto.Scalar
	zz.Mul(z, z)
	xx.Mul(x, x)

	// t_hat*B + tau_x*B_blinding == z^2*V + delta(y,z)*B + x*T1 + x^2*T2
	left := pg.Commit(proof.TX, proof.TXBlinding)
	right := multiscalarMul(
		[]*ristretto.Scalar{&zz, delta(y, z, n), x, &xx},
		[]*ristretto.Point{&V, pg.B, proof.T1, proof.T2},
	)
	if !bytesEqualPoint(left, right) {
		return false
	}

	var Q ristretto.Point
	Q.ScalarMult(pg.B, w)

	Gs := b.Gens.G(n)
	Hs := b.Gens.H(n)

	var yInv ristretto.Scalar
	yInv.Inverse(y)
	expYInv := NewScalarExp(&yInv)
	hFactors := make([]*ristretto.Scalar, n)
	for i := int64(0); i < n; i++ {
		hFactors[i] = expYInv.Next()
	}

	// P = A + x*S - mu*B_blinding + t_hat*Q
	//     + sum_i -z*G_i + (z + z^2*2^i*y^-i)*H_i
	var negMu ristretto.Scalar
	negMu.SetZero()
	negMu.Sub(&negMu, proof.EBlinding)

	var negZ ristretto.Scalar
	negZ.SetZero()
	negZ.Sub(&negZ, z)

	scalars := []*ristretto.Scalar{&negMu, x, proof.TX}
	points := []*ristretto.Point{pg.BBlinding, proof.S, &Q}
	var exp2 ristretto.Scalar
	exp2.SetOne()
	for i := int64(0); i < n; i++ {
		scalars = append(scalars, &negZ)
		points = append(points, Gs[i])

		var hCoeff ristretto.Scalar
		hCoeff.Mul(&zz, &exp2)
		hCoeff.Mul(&hCoeff, hFactors[i])
		hCoeff.Add(&hCoeff, z)
		scalars = append(scalars, cloneScalar(&hCoeff))
		points = append(points, Hs[i])

		exp2.Add(&exp2, &exp2)
	}
	P := multiscalarMul(scalars, points)
	P.Add(P, proof.A)

	return proof.IPPProof.Verify(transcript, &Q, P, hFactors, Gs, Hs)
}

// delta(y,z) = (z - z^2)*<1, y^n> - z^3*<1, 2^n>
func delta(y, z *ristretto.Scalar, n int64) *ristretto.Scalar {
	expY := NewScalarExp(y)
	var sumY ristretto.Scalar
	sumY.SetZero()
	var sumPow2, exp2 ristretto.Scalar
	sumPow2.SetZero()
	exp2.SetOne()
	for i := int64(0); i < n; i++ {
		sumY.Add(&sumY, expY.Next())
		sumPow2.Add(&sumPow2, &exp2)
		exp2.Add(&exp2, &exp2)
	}

	var zz, zzz ristretto.Scalar
	zz.Mul(z, z)
	zzz.Mul(&zz, z)

	var d, t ristretto.Scalar
	d.Sub(z, &zz)
	d.Mul(&d, &sumY)
	t.Mul(&zzz, &sumPow2)
	return d.Sub(&d, &t)
}

// rangeProofSize is the fixed serialized size of a bits-wide proof.
func rangeProofSize(bits int64) int {
	k, err := foldRounds(bits)
	if err != nil {
		return 0
	}
	return (9 + 2*k) * 32
}

// ChunkRangeProofs holds one RANGE_PROOF_BITS-wide proof per balance chunk.
type ChunkRangeProofs struct {
	Proofs [CHUNK_COUNT][]byte
}

func (c *ChunkRangeProofs) Bytes() []byte {
	var buf []byte
	for i := range c.Proofs {
		buf = append(buf, c.Proofs[i]...)
	}
	return buf
}

func ChunkRangeProofsFromBytes(data []byte) (*ChunkRangeProofs, error) {
	size := rangeProofSize(RANGE_PROOF_BITS)
	if len(data) != CHUNK_COUNT*size {
		return nil, fmt.Errorf("expected %d bytes, got %d: %w", CHUNK_COUNT*size, len(data), ErrMalformedProof)
	}
	out := &ChunkRangeProofs{}
	for i := 0; i < CHUNK_COUNT; i++ {
		out.Proofs[i] = append([]byte(nil), data[i*size:(i+1)*size]...)
	}
	return out, nil
}

// proofNoise is the deterministic blinder source of the bulletproof prover.
type proofNoise struct {
	shake sha3.ShakeHash
}

func newProofNoise(value uint64, blinding *ristretto.Scalar, valueBase, blindingBase *ristretto.Point, n int64) *proofNoise {
	shake := sha3.NewShake256()
	shake.Write([]byte(RANGE_PROOF_NOISE_DOMAIN_TAG))
	shake.Write(blinding.Bytes())
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	shake.Write(buf[:])
	shake.Write(valueBase.Bytes())
	shake.Write(blindingBase.Bytes())
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	shake.Write(buf[:])
	return &proofNoise{shake: shake}
}

func (p *proofNoise) next() *ristretto.Scalar {
	var data [64]byte
	p.shake.Read(data[:])
	return fromBytesModOrderWide(data[:])
}
