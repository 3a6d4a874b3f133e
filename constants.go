package veiled

const (
	// Fiat-Shamir domain separation. These strings must match the on-chain
	// verifier byte for byte; they are absorbed as the first input of every
	// sigma-proof challenge hash.
	WITHDRAWAL_PROOF_DOMAIN_TAG    = "AptosVeiledCoin/WithdrawalSubproofFiatShamir"
	TRANSFER_PROOF_DOMAIN_TAG      = "AptosVeiledCoin/TransferSubproofFiatShamir"
	ROTATION_PROOF_DOMAIN_TAG      = "AptosVeiledCoin/RotationSubproofFiatShamir"
	NORMALIZATION_PROOF_DOMAIN_TAG = "AptosVeiledCoin/NormalizationSubproofFiatShamir"

	// Prover-internal derivations. Not part of the wire protocol.
	SIGMA_BLINDER_DOMAIN_TAG     = "AptosVeiledCoin/SigmaProofBlinder"
	RANGE_PROOF_NOISE_DOMAIN_TAG = "AptosVeiledCoin/RangeProofNoise"

	// Bulletproofs merlin transcript label.
	BULLETPROOF_DOMAIN_TAG = "AptosVeiledCoin/BulletproofTranscript"

	// A 128-bit balance is split into CHUNK_COUNT chunks of CHUNK_SIZE bits
	// each. Chunks are encrypted independently so that bounded discrete-log
	// decryption and 32-bit range proofs stay tractable.
	CHUNK_SIZE  = 32
	CHUNK_COUNT = 4

	// Per-chunk range proofs always cover [0, 2^RANGE_PROOF_BITS).
	RANGE_PROOF_BITS = CHUNK_SIZE

	// Fixed sigma-proof wire sizes: every field is a 32-byte little-endian
	// scalar or a 32-byte canonical Ristretto point.
	WITHDRAWAL_SIGMA_PROOF_SIZE    = 21 * 32
	TRANSFER_SIGMA_PROOF_BASE_SIZE = 33 * 32
	ROTATION_SIGMA_PROOF_SIZE      = 22 * 32
	NORMALIZATION_SIGMA_PROOF_SIZE = 20 * 32
)

// CHUNK_BOUND is the exclusive upper bound of a normalized chunk.
const CHUNK_BOUND = uint64(1) << CHUNK_SIZE
