package veiled

import (
	"context"
	"fmt"
	"math/big"

	"github.com/bwesterb/go-ristretto"
	"golang.org/x/sync/errgroup"
)

// AuditorHandles are the per-chunk decryption handles r_i*P_a granted to one
// auditor: together with the recipient ciphertexts they let the auditor
// decrypt the transferred amount.
type AuditorHandles [CHUNK_COUNT]*ristretto.Point

// TransferSigmaProof ties together the sender's balance update, the
// recipient ciphertexts and the optional auditor handles: all share the same
// per-chunk randomness, the hidden amount is subtracted from the sender
// balance, and the sender knows the decryption key.
type TransferSigmaProof struct {
	Alpha1 *ristretto.Scalar // new aggregated sender balance
	Alpha2 *ristretto.Scalar // sender secret s
	Alpha3 [CHUNK_COUNT]*ristretto.Scalar // per-chunk randomness
	Alpha4 [CHUNK_COUNT]*ristretto.Scalar // amount chunks
	Alpha5 *ristretto.Scalar // s^-1
	Alpha6 [CHUNK_COUNT]*ristretto.Scalar // new balance chunks
	X1     *ristretto.Point
	X2     [CHUNK_COUNT]*ristretto.Point
	X3     [CHUNK_COUNT]*ristretto.Point
	X4     [CHUNK_COUNT]*ristretto.Point
	X5     *ristretto.Point
	X6     [CHUNK_COUNT]*ristretto.Point
	X7     []AuditorHandles // commitment points, one set per auditor
}

// TransferRangeProofs cover the four amount chunks (bases G, H) and the four
// new-balance chunks (bases G, D'_i).
type TransferRangeProofs struct {
	Amount     *ChunkRangeProofs
	NewBalance *ChunkRangeProofs
}

type TransferBuilder struct {
	decryptionKey   *DecryptionKey
	senderKey       *EncryptionKey
	recipientKey    *EncryptionKey
	amount          uint64
	amountChunks    *ChunkedAmount
	auditors        []*EncryptionKey
	currentBalance  *EncryptedBalance
	newAmount       *ChunkedAmount
	randomness      [CHUNK_COUNT]*ristretto.Scalar
	newBalance      *EncryptedBalance
	recipientAmount *EncryptedBalance
	auditorHandles  []AuditorHandles
	backend         RangeProofBackend
	blinders        *blinderStream
}

type TransferAuthorization struct {
	SigmaProof      *TransferSigmaProof
	RangeProofs     *TransferRangeProofs
	NewBalance      *EncryptedBalance
	RecipientAmount *EncryptedBalance
	AuditorHandles  []AuditorHandles
}

// CreateTransferBuilder decrypts the sender balance, splits the amount into
// chunks and derives the three ciphertext families from one randomness
// vector, drawn before anything reads it.
func CreateTransferBuilder(dk *DecryptionKey, currentBalance *EncryptedBalance, recipient *EncryptionKey, amount uint64, auditors []*EncryptionKey, opts *BuilderOptions) (*TransferBuilder, error) {
	if dk == nil || currentBalance == nil || recipient == nil {
		return nil, fmt.Errorf("missing key or balance: %w", ErrInvalidInput)
	}
	for i := range auditors {
		if auditors[i] == nil {
			return nil, fmt.Errorf("auditor %d is nil: %w", i, ErrInvalidInput)
		}
	}

	randomness, err := opts.randomness()
	if err != nil {
		return nil, err
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

	amountChunks := NewChunkedAmountFromUint64(amount)
	senderKey := dk.EncryptionKey()

	newBalance, err := EncryptBalance(newAmount, senderKey, randomness[:])
	if err != nil {
		return nil, err
	}
	recipientAmount, err := EncryptBalance(amountChunks, recipient, randomness[:])
	if err != nil {
		return nil, err
	}

	auditorHandles := make([]AuditorHandles, len(auditors))
	for k := range auditors {
		for i := 0; i < CHUNK_COUNT; i++ {
			var handle ristretto.Point
			handle.ScalarMult(&auditors[k].p, randomness[i])
			auditorHandles[k][i] = &handle
		}
	}

	b := &TransferBuilder{
		decryptionKey:   dk,
		senderKey:       senderKey,
		recipientKey:    recipient,
		amount:          amount,
		amountChunks:    amountChunks,
		auditors:        auditors,
		currentBalance:  currentBalance,
		newAmount:       newAmount,
		randomness:      randomness,
		newBalance:      newBalance,
		recipientAmount: recipientAmount,
		auditorHandles:  auditorHandles,
		backend:         opts.backend(),
	}
	b.blinders = newBlinderStream(
		[]byte(TRANSFER_PROOF_DOMAIN_TAG),
		dk.Bytes(),
		randomnessSeed(randomness),
		recipient.Bytes(),
		uint64ToScalar(amount).Bytes(),
		currentBalance.Bytes(),
	)
	return b, nil
}

func (b *TransferBuilder) GenSigmaProof() *TransferSigmaProof {
	blinders := *b.blinders

	x2 := blinders.next()
	x5 := blinders.next()
	var x3, x4, x6 [CHUNK_COUNT]*ristretto.Scalar
	for i := 0; i < CHUNK_COUNT; i++ {
		x3[i] = blinders.next()
		x4[i] = blinders.next()
		x6[i] = blinders.next()
	}

	weights := chunkWeights()
	var x1, xG ristretto.Scalar
	x1.SetZero()
	xG.SetZero()
	for i := 0; i < CHUNK_COUNT; i++ {
		var t ristretto.Scalar
		t.Mul(weights[i], x6[i])
		x1.Add(&x1, &t)
		t.Mul(weights[i], x4[i])
		xG.Add(&xG, &t)
	}
	xG.Add(&xG, &x1)

	_, dBar := b.currentBalance.weightedSums()
	G := basePoint()
	H := randomnessGenerator()
	Ps := b.senderKey.Point()
	Pr := b.recipientKey.Point()

	proof := &TransferSigmaProof{}
	proof.X1 = multiscalarMul([]*ristretto.Scalar{&xG, x2}, []*ristretto.Point{G, dBar})
	for i := 0; i < CHUNK_COUNT; i++ {
		var x2i, x3i ristretto.Point
		x2i.ScalarMult(Pr, x3[i])
		x3i.ScalarMult(Ps, x3[i])
		proof.X2[i] = &x2i
		proof.X3[i] = &x3i
		proof.X4[i] = multiscalarMul([]*ristretto.Scalar{x4[i], x3[i]}, []*ristretto.Point{G, H})
		proof.X6[i] = multiscalarMul([]*ristretto.Scalar{x6[i], x3[i]}, []*ristretto.Point{G, H})
	}
	var x5Point ristretto.Point
	x5Point.ScalarMult(H, x5)
	proof.X5 = &x5Point

	proof.X7 = make([]AuditorHandles, len(b.auditors))
	for k := range b.auditors {
		for i := 0; i < CHUNK_COUNT; i++ {
			var handle ristretto.Point
			handle.ScalarMult(&b.auditors[k].p, x3[i])
			proof.X7[k][i] = &handle
		}
	}

	chi := transferChallenge(b.senderKey, b.recipientKey, b.currentBalance, b.newBalance, b.recipientAmount, b.auditorHandles, proof)

	s := b.decryptionKey.scalar()
	var sInv ristretto.Scalar
	sInv.Inverse(s)

	proof.Alpha1 = response(&x1, chi, b.newAmount.scalar())
	proof.Alpha2 = response(x2, chi, s)
	proof.Alpha5 = response(x5, chi, &sInv)
	for i := 0; i < CHUNK_COUNT; i++ {
		proof.Alpha3[i] = response(x3[i], chi, b.randomness[i])
		proof.Alpha4[i] = response(x4[i], chi, uint64ToScalar(b.amountChunks.Chunks[i]))
		proof.Alpha6[i] = response(x6[i], chi, uint64ToScalar(b.newAmount.Chunks[i]))
	}
	return proof
}

// GenRangeProof runs the eight per-chunk proofs as parallel tasks: the
// amount chunks under (G, H) and the new-balance chunks under (G, D'_i).
func (b *TransferBuilder) GenRangeProof(ctx context.Context) (*TransferRangeProofs, error) {
	statements := make([]chunkStatement, 0, 2*CHUNK_COUNT)
	for i := 0; i < CHUNK_COUNT; i++ {
		statements = append(statements, chunkStatement{
			value:        b.amountChunks.Chunks[i],
			blinding:     b.randomness[i],
			valueBase:    basePoint(),
			blindingBase: randomnessGenerator(),
		})
	}
	statements = append(statements, newBalanceStatements(b.newAmount, b.newBalance, b.decryptionKey.scalar())...)

	proofs, err := proveChunkRanges(ctx, b.backend, statements)
	if err != nil {
		return nil, err
	}
	out := &TransferRangeProofs{Amount: &ChunkRangeProofs{}, NewBalance: &ChunkRangeProofs{}}
	copy(out.Amount.Proofs[:], proofs[:CHUNK_COUNT])
	copy(out.NewBalance.Proofs[:], proofs[CHUNK_COUNT:])
	return out, nil
}

func (b *TransferBuilder) Authorize(ctx context.Context) (*TransferAuthorization, error) {
	auth := &TransferAuthorization{
		NewBalance:      b.newBalance,
		RecipientAmount: b.recipientAmount,
		AuditorHandles:  b.auditorHandles,
	}

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

// VerifyTransfer checks a transfer authorization against public data only.
// The auditor key list must pair up with the handle lists and the proof's
// X7 commitments.
func VerifyTransfer(backend RangeProofBackend, senderKey, recipientKey *EncryptionKey, currentBalance, newBalance, recipientAmount *EncryptedBalance, auditors []*EncryptionKey, auditorHandles []AuditorHandles, sigma *TransferSigmaProof, ranges *TransferRangeProofs) bool {
	if backend == nil {
		backend = defaultRangeProofBackend
	}
	if senderKey == nil || recipientKey == nil || currentBalance == nil || newBalance == nil || recipientAmount == nil || sigma == nil || ranges == nil {
		return false
	}
	if len(auditors) != len(auditorHandles) || len(auditors) != len(sigma.X7) {
		return false
	}

	chi := transferChallenge(senderKey, recipientKey, currentBalance, newBalance, recipientAmount, auditorHandles, sigma)

	G := basePoint()
	H := randomnessGenerator()
	Ps := senderKey.Point()
	Pr := recipientKey.Point()
	cBar, dBar := currentBalance.weightedSums()

	weights := chunkWeights()

	// (alpha1 + sum_i w_i*alpha4_i)*G + alpha2*dBar == X1 + chi*cBar
	var gCoeff ristretto.Scalar
	gCoeff.SetZero()
	for i := 0; i < CHUNK_COUNT; i++ {
		var t ristretto.Scalar
		t.Mul(weights[i], sigma.Alpha4[i])
		gCoeff.Add(&gCoeff, &t)
	}
	gCoeff.Add(&gCoeff, sigma.Alpha1)
	lhs1 := multiscalarMul([]*ristretto.Scalar{&gCoeff, sigma.Alpha2}, []*ristretto.Point{G, dBar})
	if !commitmentHolds(lhs1, sigma.X1, chi, cBar) {
		return false
	}

	for i := 0; i < CHUNK_COUNT; i++ {
		// alpha3_i*Pr == X2_i + chi*D^e_i
		var lhs2 ristretto.Point
		lhs2.ScalarMult(Pr, sigma.Alpha3[i])
		if !commitmentHolds(&lhs2, sigma.X2[i], chi, &recipientAmount.Chunks[i].D) {
			return false
		}

		// alpha3_i*Ps == X3_i + chi*D'_i
		var lhs3 ristretto.Point
		lhs3.ScalarMult(Ps, sigma.Alpha3[i])
		if !commitmentHolds(&lhs3, sigma.X3[i], chi, &newBalance.Chunks[i].D) {
			return false
		}

		// alpha4_i*G + alpha3_i*H == X4_i + chi*C^e_i
		lhs4 := multiscalarMul([]*ristretto.Scalar{sigma.Alpha4[i], sigma.Alpha3[i]}, []*ristretto.Point{G, H})
		if !commitmentHolds(lhs4, sigma.X4[i], chi, &recipientAmount.Chunks[i].C) {
			return false
		}

		// alpha6_i*G + alpha3_i*H == X6_i + chi*C'_i
		lhs6 := multiscalarMul([]*ristretto.Scalar{sigma.Alpha6[i], sigma.Alpha3[i]}, []*ristretto.Point{G, H})
		if !commitmentHolds(lhs6, sigma.X6[i], chi, &newBalance.Chunks[i].C) {
			return false
		}
	}

	// alpha5*H == X5 + chi*Ps
	var lhs5 ristretto.Point
	lhs5.ScalarMult(H, sigma.Alpha5)
	if !commitmentHolds(&lhs5, sigma.X5, chi, Ps) {
		return false
	}

	// sum_i w_i*alpha6_i == alpha1
	var sum ristretto.Scalar
	sum.SetZero()
	for i := 0; i < CHUNK_COUNT; i++ {
		var t ristretto.Scalar
		t.Mul(weights[i], sigma.Alpha6[i])
		sum.Add(&sum, &t)
	}
	if !sum.Equals(sigma.Alpha1) {
		return false
	}

	// alpha3_i*Pa_k == X7_k_i + chi*handle_k_i binds every auditor handle
	// to the shared randomness.
	for k := range auditors {
		Pa := auditors[k].Point()
		for i := 0; i < CHUNK_COUNT; i++ {
			if auditorHandles[k][i] == nil || sigma.X7[k][i] == nil {
				return false
			}
			var lhs7 ristretto.Point
			lhs7.ScalarMult(Pa, sigma.Alpha3[i])
			if !commitmentHolds(&lhs7, sigma.X7[k][i], chi, auditorHandles[k][i]) {
				return false
			}
		}
	}

	for i := 0; i < CHUNK_COUNT; i++ {
		ok := backend.Verify(ranges.Amount.Proofs[i], recipientAmount.Chunks[i].C.Bytes(), basePoint(), randomnessGenerator(), RANGE_PROOF_BITS)
		if !ok {
			return false
		}
	}
	return verifyNewBalanceRanges(backend, newBalance, ranges.NewBalance)
}

func transferChallenge(senderKey, recipientKey *EncryptionKey, currentBalance, newBalance, recipientAmount *EncryptedBalance, auditorHandles []AuditorHandles, proof *TransferSigmaProof) *ristretto.Scalar {
	t := newSigmaTranscript(TRANSFER_PROOF_DOMAIN_TAG)
	t.appendPoint(&senderKey.p)
	t.appendPoint(&recipientKey.p)
	t.appendBalance(currentBalance)
	t.appendBalance(newBalance)
	t.appendBalance(recipientAmount)
	for k := range auditorHandles {
		for i := 0; i < CHUNK_COUNT; i++ {
			t.appendPoint(auditorHandles[k][i])
		}
	}
	t.appendPoint(proof.X1)
	for i := 0; i < CHUNK_COUNT; i++ {
		t.appendPoint(proof.X2[i])
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		t.appendPoint(proof.X3[i])
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		t.appendPoint(proof.X4[i])
	}
	t.appendPoint(proof.X5)
	for i := 0; i < CHUNK_COUNT; i++ {
		t.appendPoint(proof.X6[i])
	}
	for k := range proof.X7 {
		for i := 0; i < CHUNK_COUNT; i++ {
			t.appendPoint(proof.X7[k][i])
		}
	}
	return t.challenge()
}

// DecryptTransferredAmount recovers the transferred amount from the
// recipient ciphertexts with the recipient's decryption key.
func DecryptTransferredAmount(dk *DecryptionKey, recipientAmount *EncryptedBalance) (uint64, error) {
	chunks, err := recipientAmount.Decrypt(dk, CHUNK_BOUND)
	if err != nil {
		return 0, err
	}
	if chunks.Chunks[2] != 0 || chunks.Chunks[3] != 0 {
		return 0, fmt.Errorf("transfer amount exceeds 64 bits: %w", ErrInvalidInput)
	}
	return chunks.Chunks[0] | chunks.Chunks[1]<<CHUNK_SIZE, nil
}

// DecryptAuditorAmount recovers the transferred amount with an auditor key,
// pairing the recipient C components with the auditor's handles.
func DecryptAuditorAmount(dk *DecryptionKey, recipientAmount *EncryptedBalance, handles AuditorHandles) (uint64, error) {
	assembled := &EncryptedBalance{}
	for i := 0; i < CHUNK_COUNT; i++ {
		if handles[i] == nil {
			return 0, fmt.Errorf("auditor handle %d is nil: %w", i, ErrInvalidInput)
		}
		ct := &Ciphertext{}
		ct.C.Add(pointZero(), &recipientAmount.Chunks[i].C)
		ct.D.Add(pointZero(), handles[i])
		assembled.Chunks[i] = ct
	}
	return DecryptTransferredAmount(dk, assembled)
}

// ToBytes lays the proof out as a1 a2 a3[0..3] a4[0..3] a5 a6[0..3] X1
// X2[0..3] X3[0..3] X4[0..3] X5 X6[0..3], followed by the X7 auditor tail in
// 32-byte strides.
func (p *TransferSigmaProof) ToBytes() []byte {
	buf := make([]byte, 0, TRANSFER_SIGMA_PROOF_BASE_SIZE+len(p.X7)*CHUNK_COUNT*32)
	buf = appendScalarBytes(buf, p.Alpha1)
	buf = appendScalarBytes(buf, p.Alpha2)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendScalarBytes(buf, p.Alpha3[i])
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendScalarBytes(buf, p.Alpha4[i])
	}
	buf = appendScalarBytes(buf, p.Alpha5)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendScalarBytes(buf, p.Alpha6[i])
	}
	buf = appendPointBytes(buf, p.X1)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendPointBytes(buf, p.X2[i])
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendPointBytes(buf, p.X3[i])
	}
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendPointBytes(buf, p.X4[i])
	}
	buf = appendPointBytes(buf, p.X5)
	for i := 0; i < CHUNK_COUNT; i++ {
		buf = appendPointBytes(buf, p.X6[i])
	}
	for k := range p.X7 {
		for i := 0; i < CHUNK_COUNT; i++ {
			buf = appendPointBytes(buf, p.X7[k][i])
		}
	}
	return buf
}

// TransferSigmaProofFromBytes parses the fixed base layout; any tail must be
// a whole number of per-auditor point sets.
func TransferSigmaProofFromBytes(data []byte) (*TransferSigmaProof, error) {
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("length %d not a multiple of 32: %w", len(data), ErrMalformedProof)
	}
	if len(data) < TRANSFER_SIGMA_PROOF_BASE_SIZE {
		return nil, fmt.Errorf("expected at least %d bytes, got %d: %w", TRANSFER_SIGMA_PROOF_BASE_SIZE, len(data), ErrMalformedProof)
	}
	tail := len(data) - TRANSFER_SIGMA_PROOF_BASE_SIZE
	if tail%(CHUNK_COUNT*32) != 0 {
		return nil, fmt.Errorf("auditor tail of %d bytes is not whole: %w", tail, ErrMalformedProof)
	}
	numAuditors := tail / (CHUNK_COUNT * 32)

	p := &TransferSigmaProof{}
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
	p.Alpha5 = scalarField(data, field)
	field++
	for i := 0; i < CHUNK_COUNT; i++ {
		p.Alpha6[i] = scalarField(data, field)
		field++
	}

	var err error
	if p.X1, err = pointField(data, field); err != nil {
		return nil, err
	}
	field++
	for _, dst := range []*[CHUNK_COUNT]*ristretto.Point{&p.X2, &p.X3, &p.X4} {
		for i := 0; i < CHUNK_COUNT; i++ {
			if dst[i], err = pointField(data, field); err != nil {
				return nil, err
			}
			field++
		}
	}
	if p.X5, err = pointField(data, field); err != nil {
		return nil, err
	}
	field++
	for i := 0; i < CHUNK_COUNT; i++ {
		if p.X6[i], err = pointField(data, field); err != nil {
			return nil, err
		}
		field++
	}

	p.X7 = make([]AuditorHandles, numAuditors)
	for k := 0; k < numAuditors; k++ {
		for i := 0; i < CHUNK_COUNT; i++ {
			if p.X7[k][i], err = pointField(data, field); err != nil {
				return nil, err
			}
			field++
		}
	}
	return p, nil
}
