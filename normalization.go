package veiled

import (
	"context"
	"fmt"

	"github.com/bwesterb/go-ristretto"
	"golang.org/x/sync/errgroup"
)

// NormalizationSigmaProof shows that a re-encrypted balance carries the same
// plaintext as the input balance under the same key, with every new chunk
// committed for the range proofs. Homomorphic additions on chain can carry
// chunks past 32 bits; normalization re-splits them.
type NormalizationSigmaProof struct {
	Alpha1 *ristretto.Scalar // secret key s
	Alpha2 *ristretto.Scalar // s^-1
	Alpha3 [CHUNK_COUNT]*ristretto.Scalar // per-chunk randomness
	Alpha4 [CHUNK_COUNT]*ristretto.Scalar // per-chunk values
	X1     *ristretto.Point
	X2     [CHUNK_COUNT]*ristretto.Point
	X3     [CHUNK_COUNT]*ristretto.Point
	X4     *ristretto.Point
}

type NormalizationBuilder struct {
	decryptionKey  *DecryptionKey
	encryptionKey  *EncryptionKey
	currentBalance *EncryptedBalance
	amount         *ChunkedAmount
	randomness     [CHUNK_COUNT]*ristretto.Scalar
	newBalance     *EncryptedBalance
	backend        RangeProofBackend
	blinders       *blinderStream
}

type NormalizationAuthorization struct {
	SigmaProof  *NormalizationSigmaProof
	RangeProofs *ChunkRangeProofs
	NewBalance  *EncryptedBalance
}

// CreateNormalizationBuilder decrypts the (possibly unnormalized) balance
// and re-encrypts its normalized chunk vector with fresh randomness. Set
// opts.DecryptWindow above 2^32 when chunks may have carried.
func CreateNormalizationBuilder(dk *DecryptionKey, currentBalance *EncryptedBalance, opts *BuilderOptions) (*NormalizationBuilder, error) {
	if dk == nil || currentBalance == nil {
		return nil, fmt.Errorf("missing key or balance: %w", ErrInvalidInput)
	}

	current, err := currentBalance.Decrypt(dk, opts.window())
	if err != nil {
		return nil, err
	}
	amount, err := current.Normalize()
	if err != nil {
		return nil, err
	}

	randomness, err := opts.randomness()
	if err != nil {
		return nil, err
	}

	ek := dk.EncryptionKey()
	newBalance, err := EncryptBalance(amount, ek, randomness[:])
	if err != nil {
		return nil, err
	}

	b := &NormalizationBuilder{
		decryptionKey:  dk,
		encryptionKey:  ek,
		currentBalance: currentBalance,
		amount:         amount,
		randomness:     randomness,
		newBalance:     newBalance,
		backend:        opts.backend(),
	}
	b.blinders = newBlinderStream(
		[]byte(NORMALIZATION_PROOF_DOMAIN_TAG),
		dk.Bytes(),
		randomnessSeed(randomness),
		currentBalance.Bytes(),
	)
	return b, nil
}

func (b *NormalizationBuilder) GenSigmaProof() *NormalizationSigmaProof {
	blinders := *b.blinders

	x1 := blinders.next()
	x2 := blinders.next()
	var x3, x4 [CHUNK_COUNT]*ristretto.Scalar
	for i := 0; i < CHUNK_COUNT; i++ {
		x3[i] = blinders.next()
		x4[i] = blinders.next()
	}

	weights := chunkWeights()
	var x3Weighted ristretto.Scalar
	x3Weighted.SetZero()
	for i := 0; i < CHUNK_COUNT; i++ {
		var t ristretto.Scalar
		t.Mul(weights[i], x3[i])
		x3Weighted.Add(&x3Weighted, &t)
	}

	_, dBar := b.currentBalance.weightedSums()
	G := basePoint()
	H := randomnessGenerator()

	proof := &NormalizationSigmaProof{}

	// X1 = x1*dBar - (sum_i w_i*x3_i)*H
	var negWeighted ristretto.Scalar
	negWeighted.SetZero()
	negWeighted.Sub(&negWeighted, &x3Weighted)
	proof.X1 = multiscalarMul([]*ristretto.Scalar{x1, &negWeighted}, []*ristretto.Point{dBar, H})

	var negX1 ristretto.Scalar
	negX1.SetZero()
	negX1.Sub(&negX1, x1)
	for i := 0; i < CHUNK_COUNT; i++ {
		// X2_i = x3_i*H - x1*D'_i
		proof.X2[i] = multiscalarMul([]*ristretto.Scalar{x3[i], &negX1}, []*ristretto.Point{H, &b.newBalance.Chunks[i].D})
		// X3_i = x4_i*G + x3_i*H
		proof.X3[i] = multiscalarMul([]*ristretto.Scalar{x4[i], x3[i]}, []*ristretto.Point{G, H})
	}
	var x4Point ristretto.Point
	x4Point.ScalarMult(H, x2)
	proof.X4 = &x4Point

	chi := normalizationChallenge(b.encryptionKey, b.currentBalance, b.newBalance, proof)

	s := b.decryptionKey.scalar()
	var sInv ristretto.Scalar
	sInv.Inverse(s)

	proof.Alpha1 = response(x1, chi, s)
	proof.Alpha2 = response(x2, chi, &sInv)
	for i := 0; i < CHUNK_COUNT; i++ {
		proof.Alpha3[i] = response(x3[i], chi, b.randomness[i])
		proof.Alpha4[i] = response(x4[i], chi, uint64ToScalar(b.amount.Chunks[i]))
	}
	return proof
}

func (b *NormalizationBuilder) GenRangeProof(ctx context.Context) (*ChunkRangeProofs, error) {
	statements := newBalanceStatements(b.amount, b.newBalance, b.decryptionKey.scalar())
	proofs, err := proveChunkRanges(ctx, b.backend, statements)
	if err != nil {
		return nil, err
	}
	out := &ChunkRangeProofs{}
	copy(out.Proofs[:], proofs)
	return out, nil
}

func (b *NormalizationBuilder) Authorize(ctx context.Context) (*NormalizationAuthorization, error) {
	auth := &NormalizationAuthorization{NewBalance: b.newBalance}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		auth.SigmaProof = b.GenSigmaProof()
		return nil
	})
	g.Go(func() error {
		proofs, err := b.GenRangeProof(ctx)
		auth.RangeProofs = proofs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return auth, nil
}

// VerifyNormalization checks a normalization authorization against public
// data only.
func VerifyNormalization(backend RangeProofBackend, ek *EncryptionKey, currentBalance, newBalance *EncryptedBalance, sigma *NormalizationSigmaProof, ranges *ChunkRangeProofs) bool {
	if backend == nil {
		backend = defaultRangeProofBackend
	}
	if ek == nil || currentBalance == nil || newBalance == nil || sigma == nil || ranges == nil {
		return false
	}

	chi := normalizationChallenge(ek, currentBalance, newBalance, sigma)

	G := basePoint()
	H := randomnessGenerator()
	P := ek.Point()
	cBarOld, dBarOld := currentBalance.weightedSums()
	cBarNew, _ := newBalance.weightedSums()

	weights := chunkWeights()
	var alpha3Weighted ristretto.Scalar
	alpha3Weighted.SetZero()
	for i := 0; i < CHUNK_COUNT; i++ {
		var t ristretto.Scalar
		t.Mul(weights[i], sigma.Alpha3[i])
		alpha3Weighted.Add(&alpha3Weighted, &t)
	}

	// alpha1*dBar - (sum w_i*alpha3_i)*H == X1 + chi*(cBarOld - cBarNew)
	var negWeighted ristretto.Scalar
	negWeighted.SetZero()
	negWeighted.Sub(&negWeighted, &alpha3Weighted)
	lhs1 := multiscalarMul([]*ristretto.Scalar{sigma.Alpha1, &negWeighted}, []*ristretto.Point{dBarOld, H})
	var statement1 ristretto.Point
	statement1.Sub(cBarOld, cBarNew)
	if !commitmentHolds(lhs1, sigma.X1, chi, &statement1) {
		return false
	}

	var negAlpha1 ristretto.Scalar
	negAlpha1.SetZero()
	negAlpha1.Sub(&negAlpha1, sigma.Alpha1)
	for i := 0; i < CHUNK_COUNT; i++ {
		// alpha3_i*H - alpha1*D'_i == X2_i (statement target is the
		// identity: r_i*H - s*D'_i = 0)
		lhs2 := multiscalarMul([]*ristretto.Scalar{sigma.Alpha3[i], &negAlpha1}, []*ristretto.Point{H, &newBalance.Chunks[i].D})
		if !bytesEqualPoint(lhs2, sigma.X2[i]) {
			return false
		}

		// alpha4_i*G + alpha3_i*H == X3_i + chi*C'_i
		lhs3 := multiscalarMul([]*ristretto.Scalar{sigma.Alpha4[i], sigma.Alpha3[i]}, []*ristretto.Point{G, H})
		if !commitmentHolds(lhs3, sigma.X3[i], chi, &newBalance.Chunks[i].C) {
			return false
		}
	}

	// alpha2*H == X4 + chi*P
	var lhs4 ristretto.Point
	lhs4.ScalarMult(H, sigma.Alpha2)
	if !commitmentHolds(&lhs4, sigma.X4, chi, P) {
		return false
	}

	return verifyNewBalanceRanges(backend, newBalance, ranges)
}

func normalizationChallenge(ek *EncryptionKey, currentBalance, newBalance *EncryptedBalance, proof *NormalizationSigmaProof) *ristretto.Scalar {
	t := newSigmaTranscript(NORMALIZATION_PROOF_DOMAIN_TAG)
	t.appendPoint(&ek.p)
	t.appendBalance(currentBalance)
	t.appendBalance(newBalance)
	t.appendPoint(proof.X1)
	for i := 0; i < CHUNK_COUNT; i++ {
		t.appendPoint(proof.X2[i])
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		t.appendPoint(proof.X3[i])
	}
	t.appendPoint(proof.X4)
	return t.challenge()
}

// ToBytes lays the proof out as a1 a2 a3[0..3] a4[0..3] X1 X2[0..3] X3[0..3]
// X4.
func (p *NormalizationSigmaProof) ToBytes() []byte {
	buf := make([]byte, 0, NORMALIZATION_SIGMA_PROOF_SIZE)
	buf = appendScalarBytes(buf, p.Alpha1)
	buf = appendScalarBytes(buf, p.Alpha2)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendScalarBytes(buf, p.Alpha3[i])
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendScalarBytes(buf, p.Alpha4[i])
	}
	buf = appendPointBytes(buf, p.X1)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendPointBytes(buf, p.X2[i])
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendPointBytes(buf, p.X3[i])
	}
	buf = appendPointBytes(buf, p.X4)
	return buf
}

func NormalizationSigmaProofFromBytes(data []byte) (*NormalizationSigmaProof, error) {
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("length %d not a multiple of 32: %w", len(data), ErrMalformedProof)
	}
	if len(data) != NORMALIZATION_SIGMA_PROOF_SIZE {
		return nil, fmt.Errorf("expected %d bytes, got %d: %w", NORMALIZATION_SIGMA_PROOF_SIZE, len(data), ErrMalformedProof)
	}

	p := &NormalizationSigmaProof{}
	field := 0
	p.Alpha1 = scalarField(data, field)
	field++
	p.Alpha2 = scalarField(data, field)
	field++
	for i := 0; i < CHUNK_COUNT; i++ {
		p.Alpha3[i] = scalarField(data, field)
		field++
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		p.Alpha4[i] = scalarField(data, field)
		field++
	}

	var err error
	if p.X1, err = pointField(data, field); err != nil {
		return nil, err
	}
	field++
	for i := 0; i < CHUNK_COUNT; i++ {
		if p.X2[i], err = pointField(data, field); err != nil {
			return nil, err
		}
		field++
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		if p.X3[i], err = pointField(data, field); err != nil {
			return nil, err
		}
		field++
	}
	if p.X4, err = pointField(data, field); err != nil {
		return nil, err
	}
	return p, nil
}
