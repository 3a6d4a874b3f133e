package veiled

import (
	"context"
	"fmt"

	"github.com/bwesterb/go-ristretto"
	"golang.org/x/sync/errgroup"
)

// KeyRotationSigmaProof shows that the balance re-encrypted under the new
// key carries the same plaintext as the old one, and that the prover knows
// both secret keys.
type KeyRotationSigmaProof struct {
	Alpha1 *ristretto.Scalar // old secret s_o
	Alpha2 *ristretto.Scalar // new secret s_n
	Alpha3 *ristretto.Scalar // s_o^-1
	Alpha4 [CHUNK_COUNT]*ristretto.Scalar // per-chunk randomness
	Alpha5 [CHUNK_COUNT]*ristretto.Scalar // per-chunk values
	X1     *ristretto.Point
	X2     [CHUNK_COUNT]*ristretto.Point
	X3     [CHUNK_COUNT]*ristretto.Point
	X4     *ristretto.Point
	X5     *ristretto.Point
}

type KeyRotationBuilder struct {
	oldKey         *DecryptionKey
	newKey         *DecryptionKey
	oldEncryption  *EncryptionKey
	newEncryption  *EncryptionKey
	currentBalance *EncryptedBalance
	amount         *ChunkedAmount
	randomness     [CHUNK_COUNT]*ristretto.Scalar
	newBalance     *EncryptedBalance
	backend        RangeProofBackend
	blinders       *blinderStream
}

type KeyRotationAuthorization struct {
	SigmaProof  *KeyRotationSigmaProof
	RangeProofs *ChunkRangeProofs
	NewBalance  *EncryptedBalance
}

// CreateKeyRotationBuilder decrypts the balance under the old key and
// re-encrypts it chunk-wise under the new key with fresh randomness. The
// chunk vector is normalized on the way, so rotation doubles as repair of
// carried chunks.
func CreateKeyRotationBuilder(oldKey, newKey *DecryptionKey, currentBalance *EncryptedBalance, opts *BuilderOptions) (*KeyRotationBuilder, error) {
	if oldKey == nil || newKey == nil || currentBalance == nil {
		return nil, fmt.Errorf("missing key or balance: %w", ErrInvalidInput)
	}

	current, err := currentBalance.Decrypt(oldKey, opts.window())
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

	newEncryption := newKey.EncryptionKey()
	newBalance, err := EncryptBalance(amount, newEncryption, randomness[:])
	if err != nil {
		return nil, err
	}

	b := &KeyRotationBuilder{
		oldKey:         oldKey,
		newKey:         newKey,
		oldEncryption:  oldKey.EncryptionKey(),
		newEncryption:  newEncryption,
		currentBalance: currentBalance,
		amount:         amount,
		randomness:     randomness,
		newBalance:     newBalance,
		backend:        opts.backend(),
	}
	b.blinders = newBlinderStream(
		[]byte(ROTATION_PROOF_DOMAIN_TAG),
		oldKey.Bytes(),
		newKey.Bytes(),
		randomnessSeed(randomness),
		currentBalance.Bytes(),
	)
	return b, nil
}

func (b *KeyRotationBuilder) GenSigmaProof() *KeyRotationSigmaProof {
	blinders := *b.blinders

	x1 := blinders.next()
	x2 := blinders.next()
	x3 := blinders.next()
	var x4, x5 [CHUNK_COUNT]*ristretto.Scalar
	for i := 0; i < CHUNK_COUNT; i++ {
		x4[i] = blinders.next()
		x5[i] = blinders.next()
	}

	weights := chunkWeights()
	var x4Weighted ristretto.Scalar
	x4Weighted.SetZero()
	for i := 0; i < CHUNK_COUNT; i++ {
		var t ristretto.Scalar
		t.Mul(weights[i], x4[i])
		x4Weighted.Add(&x4Weighted, &t)
	}

	_, dBar := b.currentBalance.weightedSums()
	G := basePoint()
	H := randomnessGenerator()
	Pn := b.newEncryption.Point()

	proof := &KeyRotationSigmaProof{}

	// X1 = x1*dBar - (sum_i w_i*x4_i)*H
	var negWeighted ristretto.Scalar
	negWeighted.SetZero()
	negWeighted.Sub(&negWeighted, &x4Weighted)
	proof.X1 = multiscalarMul([]*ristretto.Scalar{x1, &negWeighted}, []*ristretto.Point{dBar, H})

	var negX2 ristretto.Scalar
	negX2.SetZero()
	negX2.Sub(&negX2, x2)
	for i := 0; i < CHUNK_COUNT; i++ {
		// X2_i = x4_i*H - x2*D'_i
		proof.X2[i] = multiscalarMul([]*ristretto.Scalar{x4[i], &negX2}, []*ristretto.Point{H, &b.newBalance.Chunks[i].D})
		// X3_i = x5_i*G + x4_i*H
		proof.X3[i] = multiscalarMul([]*ristretto.Scalar{x5[i], x4[i]}, []*ristretto.Point{G, H})
	}

	var x4Point, x5Point ristretto.Point
	x4Point.ScalarMult(H, x3)
	proof.X4 = &x4Point
	x5Point.ScalarMult(Pn, x2)
	proof.X5 = &x5Point

	chi := rotationChallenge(b.oldEncryption, b.newEncryption, b.currentBalance, b.newBalance, proof)

	sOld := b.oldKey.scalar()
	sNew := b.newKey.scalar()
	var sOldInv ristretto.Scalar
	sOldInv.Inverse(sOld)

	proof.Alpha1 = response(x1, chi, sOld)
	proof.Alpha2 = response(x2, chi, sNew)
	proof.Alpha3 = response(x3, chi, &sOldInv)
	for i := 0; i < CHUNK_COUNT; i++ {
		proof.Alpha4[i] = response(x4[i], chi, b.randomness[i])
		proof.Alpha5[i] = response(x5[i], chi, uint64ToScalar(b.amount.Chunks[i]))
	}
	return proof
}

func (b *KeyRotationBuilder) GenRangeProof(ctx context.Context) (*ChunkRangeProofs, error) {
	statements := newBalanceStatements(b.amount, b.newBalance, b.newKey.scalar())
	proofs, err := proveChunkRanges(ctx, b.backend, statements)
	if err != nil {
		return nil, err
	}
	out := &ChunkRangeProofs{}
	copy(out.Proofs[:], proofs)
	return out, nil
}

func (b *KeyRotationBuilder) Authorize(ctx context.Context) (*KeyRotationAuthorization, error) {
	auth := &KeyRotationAuthorization{NewBalance: b.newBalance}

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

// VerifyKeyRotation checks a rotation authorization against public data
// only.
func VerifyKeyRotation(backend RangeProofBackend, oldKey, newKey *EncryptionKey, currentBalance, newBalance *EncryptedBalance, sigma *KeyRotationSigmaProof, ranges *ChunkRangeProofs) bool {
	if backend == nil {
		backend = defaultRangeProofBackend
	}
	if oldKey == nil || newKey == nil || currentBalance == nil || newBalance == nil || sigma == nil || ranges == nil {
		return false
	}

	chi := rotationChallenge(oldKey, newKey, currentBalance, newBalance, sigma)

	G := basePoint()
	H := randomnessGenerator()
	Po := oldKey.Point()
	Pn := newKey.Point()
	cBarOld, dBarOld := currentBalance.weightedSums()
	cBarNew, _ := newBalance.weightedSums()

	weights := chunkWeights()
	var alpha4Weighted ristretto.Scalar
	alpha4Weighted.SetZero()
	for i := 0; i < CHUNK_COUNT; i++ {
		var t ristretto.Scalar
		t.Mul(weights[i], sigma.Alpha4[i])
		alpha4Weighted.Add(&alpha4Weighted, &t)
	}

	// alpha1*dBar - (sum w_i*alpha4_i)*H == X1 + chi*(cBarOld - cBarNew)
	var negWeighted ristretto.Scalar
	negWeighted.SetZero()
	negWeighted.Sub(&negWeighted, &alpha4Weighted)
	lhs1 := multiscalarMul([]*ristretto.Scalar{sigma.Alpha1, &negWeighted}, []*ristretto.Point{dBarOld, H})
	var statement1 ristretto.Point
	statement1.Sub(cBarOld, cBarNew)
	if !commitmentHolds(lhs1, sigma.X1, chi, &statement1) {
		return false
	}

	var negAlpha2 ristretto.Scalar
	negAlpha2.SetZero()
	negAlpha2.Sub(&negAlpha2, sigma.Alpha2)
	for i := 0; i < CHUNK_COUNT; i++ {
		// alpha4_i*H - alpha2*D'_i == X2_i (the statement target is the
		// identity: r_i*H - s_n*D'_i = 0)
		lhs2 := multiscalarMul([]*ristretto.Scalar{sigma.Alpha4[i], &negAlpha2}, []*ristretto.Point{H, &newBalance.Chunks[i].D})
		if !bytesEqualPoint(lhs2, sigma.X2[i]) {
			return false
		}

		// alpha5_i*G + alpha4_i*H == X3_i + chi*C'_i
		lhs3 := multiscalarMul([]*ristretto.Scalar{sigma.Alpha5[i], sigma.Alpha4[i]}, []*ristretto.Point{G, H})
		if !commitmentHolds(lhs3, sigma.X3[i], chi, &newBalance.Chunks[i].C) {
			return false
		}
	}

	// alpha3*H == X4 + chi*Po
	var lhs4 ristretto.Point
	lhs4.ScalarMult(H, sigma.Alpha3)
	if !commitmentHolds(&lhs4, sigma.X4, chi, Po) {
		return false
	}

	// alpha2*Pn == X5 + chi*H binds s_n to the registered new key.
	var lhs5 ristretto.Point
	lhs5.ScalarMult(Pn, sigma.Alpha2)
	if !commitmentHolds(&lhs5, sigma.X5, chi, H) {
		return false
	}

	return verifyNewBalanceRanges(backend, newBalance, ranges)
}

func rotationChallenge(oldKey, newKey *EncryptionKey, currentBalance, newBalance *EncryptedBalance, proof *KeyRotationSigmaProof) *ristretto.Scalar {
	t := newSigmaTranscript(ROTATION_PROOF_DOMAIN_TAG)
	t.appendPoint(&oldKey.p)
	t.appendPoint(&newKey.p)
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
	t.appendPoint(proof.X5)
	return t.challenge()
}

// ToBytes lays the proof out as a1 a2 a3 a4[0..3] a5[0..3] X1 X2[0..3]
// X3[0..3] X4 X5.
func (p *KeyRotationSigmaProof) ToBytes() []byte {
	buf := make([]byte, 0, ROTATION_SIGMA_PROOF_SIZE)
	buf = appendScalarBytes(buf, p.Alpha1)
	buf = appendScalarBytes(buf, p.Alpha2)
	buf = appendScalarBytes(buf, p.Alpha3)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendScalarBytes(buf, p.Alpha4[i])
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendScalarBytes(buf, p.Alpha5[i])
	}
	buf = appendPointBytes(buf, p.X1)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendPointBytes(buf, p.X2[i])
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendPointBytes(buf, p.X3[i])
	}
	buf = appendPointBytes(buf, p.X4)
	buf = appendPointBytes(buf, p.X5)
	return buf
}

func KeyRotationSigmaProofFromBytes(data []byte) (*KeyRotationSigmaProof, error) {
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("length %d not a multiple of 32: %w", len(data), ErrMalformedProof)
	}
	if len(data) != ROTATION_SIGMA_PROOF_SIZE {
		return nil, fmt.Errorf("expected %d bytes, got %d: %w", ROTATION_SIGMA_PROOF_SIZE, len(data), ErrMalformedProof)
	}

	p := &KeyRotationSigmaProof{}
	field := 0
	p.Alpha1 = scalarField(data, field)
	field++
	p.Alpha2 = scalarField(data, field)
	field++
	p.Alpha3 = scalarField(data, field)
	field++
	for i := 0; i < CHUNK_COUNT; i++ {
		p.Alpha4[i] = scalarField(data, field)
		field++
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		p.Alpha5[i] = scalarField(data, field)
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
	field++
	if p.X5, err = pointField(data, field); err != nil {
		return nil, err
	}
	return p, nil
}
