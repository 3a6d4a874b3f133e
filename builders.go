package veiled

import (
	"context"
	"fmt"

	"github.com/bwesterb/go-ristretto"
	"golang.org/x/sync/errgroup"
)

var defaultRangeProofBackend = NewBulletproofBackend()

// BuilderOptions tunes a proof builder. The zero value uses the shared
// Bulletproofs backend, fresh randomness and a full 32-bit decryption
// window.
type BuilderOptions struct {
	// Backend overrides the range-proof engine.
	Backend RangeProofBackend

	// Randomness supplies the CHUNK_COUNT encryption scalars. Builders
	// re-run with the same randomness reproduce their proofs byte for
	// byte; leave nil for fresh randomness.
	Randomness []*ristretto.Scalar

	// DecryptWindow is the exclusive per-chunk bound of the balance
	// decryption search. Raise it above 2^32 when the current balance may
	// be unnormalized.
	DecryptWindow uint64
}

func (o *BuilderOptions) backend() RangeProofBackend {
	if o == nil || o.Backend == nil {
		return defaultRangeProofBackend
	}
	return o.Backend
}

func (o *BuilderOptions) window() uint64 {
	if o == nil || o.DecryptWindow == 0 {
		return CHUNK_BOUND
	}
	return o.DecryptWindow
}

func (o *BuilderOptions) randomness() ([CHUNK_COUNT]*ristretto.Scalar, error) {
	var out [CHUNK_COUNT]*ristretto.Scalar
	if o == nil || o.Randomness == nil {
		for i := range out {
			out[i] = RandomScalar()
		}
		return out, nil
	}
	if len(o.Randomness) != CHUNK_COUNT {
		return out, fmt.Errorf("randomness must hold %d scalars, got %d: %w", CHUNK_COUNT, len(o.Randomness), ErrInvalidInput)
	}
	for i := range out {
		if o.Randomness[i] == nil {
			return out, fmt.Errorf("randomness scalar %d is nil: %w", i, ErrInvalidInput)
		}
		out[i] = cloneScalar(o.Randomness[i])
	}
	return out, nil
}

// chunkStatement is one range-proof task: commit to value with blinding
// under (valueBase, blindingBase) and prove it fits RANGE_PROOF_BITS bits.
type chunkStatement struct {
	value        uint64
	blinding     *ristretto.Scalar
	valueBase    *ristretto.Point
	blindingBase *ristretto.Point
}

// proveChunkRanges runs the per-chunk range proofs as parallel tasks. A
// cancelled context aborts the remaining tasks and nothing partial is
// returned.
func proveChunkRanges(ctx context.Context, backend RangeProofBackend, statements []chunkStatement) ([][]byte, error) {
	proofs := make([][]byte, len(statements))
	g, ctx := errgroup.WithContext(ctx)
	for i := range statements {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			st := statements[i]
			proof, _, err := backend.Prove(st.value, st.blinding, st.valueBase, st.blindingBase, RANGE_PROOF_BITS)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			proofs[i] = proof
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return proofs, nil
}

// newBalanceStatements builds the range-proof tasks of a fresh balance: each
// chunk value is committed under bases (G, D_i) with the holder's secret as
// blinding, so the commitment equals the chunk ciphertext's C component.
func newBalanceStatements(amount *ChunkedAmount, balance *EncryptedBalance, secret *ristretto.Scalar) []chunkStatement {
	statements := make([]chunkStatement, CHUNK_COUNT)
	for i := 0; i < CHUNK_COUNT; i++ {
		statements[i] = chunkStatement{
			value:        amount.Chunks[i],
			blinding:     secret,
			valueBase:    basePoint(),
			blindingBase: clonePoint(&balance.Chunks[i].D),
		}
	}
	return statements
}

// verifyNewBalanceRanges checks the per-chunk proofs of a fresh balance
// against the chunk ciphertexts: commitment C_i under bases (G, D_i).
func verifyNewBalanceRanges(backend RangeProofBackend, balance *EncryptedBalance, proofs *ChunkRangeProofs) bool {
	for i := 0; i < CHUNK_COUNT; i++ {
		ok := backend.Verify(proofs.Proofs[i], balance.Chunks[i].C.Bytes(), basePoint(), clonePoint(&balance.Chunks[i].D), RANGE_PROOF_BITS)
		if !ok {
			return false
		}
	}
	return true
}
