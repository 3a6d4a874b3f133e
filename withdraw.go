package veiled

import (
	"context"
	"fmt"
	"math/big"

	"github.com/bwesterb/go-ristretto"
	"golang.org/x/sync/errgroup"
)

// WithdrawSigmaProof shows that the prover knows the decryption key of the
// current balance, that the new balance equals the current balance minus the
// public withdraw amount, and that every new chunk ciphertext is well formed
// with known randomness.
type WithdrawSigmaProof struct {
	Alpha1 *ristretto.Scalar // new aggregated balance
	Alpha2 *ristretto.Scalar // secret key s
	Alpha3 [CHUNK_COUNT]*ristretto.Scalar // per-chunk randomness
	Alpha4 *ristretto.Scalar // s^-1
	Alpha5 [CHUNK_COUNT]*ristretto.Scalar // per-chunk values
	X1     *ristretto.Point
	X2     [CHUNK_COUNT]*ristretto.Point
	X3     *ristretto.Point
	X4     [CHUNK_COUNT]*ristretto.Point
}

// WithdrawBuilder is fully populated by CreateWithdrawBuilder; the gen
// methods are pure and may run concurrently.
type WithdrawBuilder struct {
	decryptionKey  *DecryptionKey
	encryptionKey  *EncryptionKey
	amount         uint64
	currentBalance *EncryptedBalance
	newAmount      *ChunkedAmount
	randomness     [CHUNK_COUNT]*ristretto.Scalar
	newBalance     *EncryptedBalance
	backend        RangeProofBackend
	blinders       *blinderStream
}

// WithdrawAuthorization is the bundle handed to the transaction-submission
// layer.
type WithdrawAuthorization struct {
	SigmaProof  *WithdrawSigmaProof
	RangeProofs *ChunkRangeProofs
	NewBalance  *EncryptedBalance
}

// CreateWithdrawBuilder decrypts the current balance via bounded search,
// derives the new chunked balance and fresh ciphertexts, and returns a
// builder ready for proof generation.
func CreateWithdrawBuilder(dk *DecryptionKey, currentBalance *EncryptedBalance, amount uint64, opts *BuilderOptions) (*WithdrawBuilder, error) {
	if dk == nil || currentBalance == nil {
		return nil, fmt.Errorf("missing key or balance: %w", ErrInvalidInput)
	}

	current, err := currentBalance.Decrypt(dk, opts.window())
	if err != nil {
		return nil, err
	}

	newValue := new(big.Int).Sub(current.Big(), new(big.Int).SetUint64(amount))
	if newValue.Sign() < 0 {
		return nil, ErrInsufficientBalance
	}
	newAmount, err := NewChunkedAmount(newValue)
	if err != nil {
		return nil, err
	}

	randomness, err := opts.randomness()
	if err != nil {
		return nil, err
	}

	ek := dk.EncryptionKey()
	newBalance, err := EncryptBalance(newAmount, ek, randomness[:])
	if err != nil {
		return nil, err
	}

	b := &WithdrawBuilder{
		decryptionKey:  dk,
		encryptionKey:  ek,
		amount:         amount,
		currentBalance: currentBalance,
		newAmount:      newAmount,
		randomness:     randomness,
		newBalance:     newBalance,
		backend:        opts.backend(),
	}
	b.blinders = newBlinderStream(
		[]byte(WITHDRAWAL_PROOF_DOMAIN_TAG),
		dk.Bytes(),
		randomnessSeed(randomness),
		uint64ToScalar(amount).Bytes(),
		currentBalance.Bytes(),
	)
	return b, nil
}

// GenSigmaProof is deterministic given the builder state.
func (b *WithdrawBuilder) GenSigmaProof() *WithdrawSigmaProof {
	blinders := *b.blinders

	x2 := blinders.next()
	x4 := blinders.next()
	var x3, x5 [CHUNK_COUNT]*ristretto.Scalar
	for i := 0; i < CHUNK_COUNT; i++ {
		x3[i] = blinders.next()
		x5[i] = blinders.next()
	}

	weights := chunkWeights()
	var x1 ristretto.Scalar
	x1.SetZero()
	for i := 0; i < CHUNK_COUNT; i++ {
		var t ristretto.Scalar
		t.Mul(weights[i], x5[i])
		x1.Add(&x1, &t)
	}

	_, dBar := b.currentBalance.weightedSums()
	G := basePoint()
	H := randomnessGenerator()
	P := b.encryptionKey.Point()

	proof := &WithdrawSigmaProof{}
	proof.X1 = multiscalarMul([]*ristretto.Scalar{&x1, x2}, []*ristretto.Point{G, dBar})
	for i := 0; i < CHUNK_COUNT; i++ {
		var x2i ristretto.Point
		x2i.ScalarMult(P, x3[i])
		proof.X2[i] = &x2i
		proof.X4[i] = multiscalarMul([]*ristretto.Scalar{x5[i], x3[i]}, []*ristretto.Point{G, H})
	}
	var x3Point ristretto.Point
	x3Point.ScalarMult(H, x4)
	proof.X3 = &x3Point

	chi := withdrawChallenge(b.encryptionKey, b.amount, b.currentBalance, b.newBalance, proof)

	s := b.decryptionKey.scalar()
	var sInv ristretto.Scalar
	sInv.Inverse(s)

	proof.Alpha1 = response(&x1, chi, b.newAmount.scalar())
	proof.Alpha2 = response(x2, chi, s)
	proof.Alpha4 = response(x4, chi, &sInv)
	for i := 0; i < CHUNK_COUNT; i++ {
		proof.Alpha3[i] = response(x3[i], chi, b.randomness[i])
		proof.Alpha5[i] = response(x5[i], chi, uint64ToScalar(b.newAmount.Chunks[i]))
	}
	return proof
}

// GenRangeProof proves every new-balance chunk fits 32 bits, one parallel
// task per chunk.
func (b *WithdrawBuilder) GenRangeProof(ctx context.Context) (*ChunkRangeProofs, error) {
	statements := newBalanceStatements(b.newAmount, b.newBalance, b.decryptionKey.scalar())
	proofs, err := proveChunkRanges(ctx, b.backend, statements)
	if err != nil {
		return nil, err
	}
	out := &ChunkRangeProofs{}
	copy(out.Proofs[:], proofs)
	return out, nil
}

// Authorize generates the sigma proof and range proofs (concurrently) and
// assembles the authorization bundle.
func (b *WithdrawBuilder) Authorize(ctx context.Context) (*WithdrawAuthorization, error) {
	auth := &WithdrawAuthorization{NewBalance: b.newBalance}

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

// VerifyWithdraw checks a withdraw authorization against public data only.
func VerifyWithdraw(backend RangeProofBackend, ek *EncryptionKey, amount uint64, currentBalance, newBalance *EncryptedBalance, sigma *WithdrawSigmaProof, ranges *ChunkRangeProofs) bool {
	if backend == nil {
		backend = defaultRangeProofBackend
	}
	if ek == nil || currentBalance == nil || newBalance == nil || sigma == nil || ranges == nil {
		return false
	}

	chi := withdrawChallenge(ek, amount, currentBalance, newBalance, sigma)

	G := basePoint()
	H := randomnessGenerator()
	P := ek.Point()
	cBar, dBar := currentBalance.weightedSums()

	// alpha1*G + alpha2*dBar == X1 + chi*(cBar - amount*G)
	lhs := multiscalarMul([]*ristretto.Scalar{sigma.Alpha1, sigma.Alpha2}, []*ristretto.Point{G, dBar})
	var amountPoint, statement ristretto.Point
	amountPoint.ScalarMultBase(uint64ToScalar(amount))
	statement.Sub(cBar, &amountPoint)
	if !commitmentHolds(lhs, sigma.X1, chi, &statement) {
		return false
	}

	for i := 0; i < CHUNK_COUNT; i++ {
		// alpha3_i*P == X2_i + chi*D'_i
		var lhs2 ristretto.Point
		lhs2.ScalarMult(P, sigma.Alpha3[i])
		if !commitmentHolds(&lhs2, sigma.X2[i], chi, &newBalance.Chunks[i].D) {
			return false
		}

		// alpha5_i*G + alpha3_i*H == X4_i + chi*C'_i
		lhs4 := multiscalarMul([]*ristretto.Scalar{sigma.Alpha5[i], sigma.Alpha3[i]}, []*ristretto.Point{G, H})
		if !commitmentHolds(lhs4, sigma.X4[i], chi, &newBalance.Chunks[i].C) {
			return false
		}
	}

	// alpha4*H == X3 + chi*P
	var lhs3 ristretto.Point
	lhs3.ScalarMult(H, sigma.Alpha4)
	if !commitmentHolds(&lhs3, sigma.X3, chi, P) {
		return false
	}

	// sum_i w_i*alpha5_i == alpha1 binds the chunk vector to the aggregate.
	weights := chunkWeights()
	var sum ristretto.Scalar
	sum.SetZero()
	for i := 0; i < CHUNK_COUNT; i++ {
		var t ristretto.Scalar
		t.Mul(weights[i], sigma.Alpha5[i])
		sum.Add(&sum, &t)
	}
	if !sum.Equals(sigma.Alpha1) {
		return false
	}

	return verifyNewBalanceRanges(backend, newBalance, ranges)
}

func withdrawChallenge(ek *EncryptionKey, amount uint64, currentBalance, newBalance *EncryptedBalance, proof *WithdrawSigmaProof) *ristretto.Scalar {
	t := newSigmaTranscript(WITHDRAWAL_PROOF_DOMAIN_TAG)
	t.appendPoint(&ek.p)
	t.appendScalar(uint64ToScalar(amount))
	t.appendBalance(currentBalance)
	t.appendBalance(newBalance)
	t.appendPoint(proof.X1)
	for i := 0; i < CHUNK_COUNT; i++ {
		t.appendPoint(proof.X2[i])
	}
	t.appendPoint(proof.X3)
	for i := 0; i < CHUNK_COUNT; i++ {
		t.appendPoint(proof.X4[i])
	}
	return t.challenge()
}

// ToBytes lays the proof out as
// a1 a2 a3[0..3] a4 a5[0..3] X1 X2[0..3] X3 X4[0..3].
func (p *WithdrawSigmaProof) ToBytes() []byte {
	buf := make([]byte, 0, WITHDRAWAL_SIGMA_PROOF_SIZE)
	buf = appendScalarBytes(buf, p.Alpha1)
	buf = appendScalarBytes(buf, p.Alpha2)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendScalarBytes(buf, p.Alpha3[i])
	}
	buf = appendScalarBytes(buf, p.Alpha4)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendScalarBytes(buf, p.Alpha5[i])
	}
	buf = appendPointBytes(buf, p.X1)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendPointBytes(buf, p.X2[i])
	}
	buf = appendPointBytes(buf, p.X3)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendPointBytes(buf, p.X4[i])
	}
	return buf
}

func WithdrawSigmaProofFromBytes(data []byte) (*WithdrawSigmaProof, error) {
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("length %d not a multiple of 32: %w", len(data), ErrMalformedProof)
	}
	if len(data) != WITHDRAWAL_SIGMA_PROOF_SIZE {
		return nil, fmt.Errorf("expected %d bytes, got %d: %w", WITHDRAWAL_SIGMA_PROOF_SIZE, len(data), ErrMalformedProof)
	}

	p := &WithdrawSigmaProof{}
	field := 0
	p.Alpha1 = scalarField(data, field)
	field++
	p.Alpha2 = scalarField(data, field)
	field++
	for i := 0; i < CHUNK_COUNT; i++ {
		p.Alpha3[i] = scalarField(data, field)
		field++
	}
	p.Alpha4 = scalarField(data, field)
	field++
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
	if p.X3, err = pointField(data, field); err != nil {
		return nil, err
	}
	field++
	for i := 0; i < CHUNK_COUNT; i++ {
		if p.X4[i], err = pointField(data, field); err != nil {
			return nil, err
		}
		field++
	}
	return p, nil
}

// randomnessSeed concatenates the randomness scalars for blinder seeding.
func randomnessSeed(randomness [CHUNK_COUNT]*ristretto.Scalar) []byte {
	var buf []byte
	for i := range randomness {
		buf = append(buf, randomness[i].Bytes()...)
	}
	return buf
}
