package veiled

import (
	"fmt"

	"github.com/bwesterb/go-ristretto"
)

// Ciphertext is a twisted ElGamal encryption of an amount m with randomness
// r under encryption key P:
//
//	C = m*G + r*H
//	D = r*P
//
// Adding ciphertexts adds plaintexts; adding a*G to C adds the public
// amount a.
type Ciphertext struct {
	C ristretto.Point
	D ristretto.Point
}

// RandomScalar samples a uniformly random scalar.
func RandomScalar() *ristretto.Scalar {
	var r ristretto.Scalar
	return r.Rand()
}

// Encrypt encrypts value under ek. If r is nil, fresh randomness is drawn;
// callers that need the randomness later must pass it in explicitly.
func Encrypt(value uint64, ek *EncryptionKey, r *ristretto.Scalar) *Ciphertext {
	if r == nil {
		r = RandomScalar()
	}

	ct := &Ciphertext{}
	ct.D.ScalarMult(&ek.p, r)

	var mask ristretto.Point
	mask.ScalarMult(randomnessGenerator(), r)
	ct.C.ScalarMultBase(uint64ToScalar(value))
	ct.C.Add(&ct.C, &mask)
	return ct
}

// Decrypt recovers the amount from the ciphertext by computing
// M = C - s*D = m*G and searching for m within [lo, hi). The search uses
// baby-step/giant-step so a full 32-bit chunk window stays tractable; it is
// variable-time in m, which is acceptable because the amount is already
// known to the key holder.
func (ct *Ciphertext) Decrypt(dk *DecryptionKey, lo, hi uint64) (uint64, error) {
	if hi <= lo {
		return 0, fmt.Errorf("empty window [%d, %d): %w", lo, hi, ErrInvalidInput)
	}

	var masked, m ristretto.Point
	masked.ScalarMult(&ct.D, &dk.s)
	m.Sub(&ct.C, &masked)

	var identity ristretto.Point
	identity.SetZero()
	if bytesEqualPoint(&m, &identity) {
		if lo == 0 {
			return 0, nil
		}
		return 0, ErrOutOfRange
	}

	return lookupAmount(&m, lo, hi)
}

// lookupAmount finds m with target == m*G, lo <= m < hi.
func lookupAmount(target *ristretto.Point, lo, hi uint64) (uint64, error) {
	window := hi - lo

	babySteps := babyStepCount(window)
	table := make(map[[32]byte]uint64, babySteps)

	var step, cur ristretto.Point
	step.SetBase()
	cur.SetZero()
	for j := uint64(0); j < babySteps; j++ {
		var key [32]byte
		copy(key[:], cur.Bytes())
		table[key] = j
		cur.Add(&cur, &step)
	}

	// giant = babySteps * G
	var giant ristretto.Point
	giant.ScalarMultBase(uint64ToScalar(babySteps))

	// offset the target by -lo*G
	var loPoint, probe ristretto.Point
	loPoint.ScalarMultBase(uint64ToScalar(lo))
	probe.Sub(target, &loPoint)

	for i := uint64(0); i*babySteps < window; i++ {
		var key [32]byte
		copy(key[:], probe.Bytes())
		if j, ok := table[key]; ok {
			m := lo + i*babySteps + j
			if m < hi {
				return m, nil
			}
			return 0, ErrOutOfRange
		}
		probe.Sub(&probe, &giant)
	}
	return 0, ErrOutOfRange
}

func babyStepCount(window uint64) uint64 {
	steps := uint64(1)
	for steps*steps < window && steps < 1<<21 {
		steps <<= 1
	}
	return steps
}

// AddAmount homomorphically adds the public amount a: (C + a*G, D).
func (ct *Ciphertext) AddAmount(a uint64) *Ciphertext {
	out := &Ciphertext{}
	out.C.ScalarMultBase(uint64ToScalar(a))
	out.C.Add(&out.C, &ct.C)
	out.D.Add(&ct.D, pointZero())
	return out
}

// SubAmount homomorphically subtracts the public amount a: (C - a*G, D).
func (ct *Ciphertext) SubAmount(a uint64) *Ciphertext {
	out := &Ciphertext{}
	out.C.ScalarMultBase(uint64ToScalar(a))
	out.C.Sub(&ct.C, &out.C)
	out.D.Add(&ct.D, pointZero())
	return out
}

// AddCiphertext adds two ciphertexts under the same key component-wise.
func (ct *Ciphertext) AddCiphertext(other *Ciphertext) *Ciphertext {
	out := &Ciphertext{}
	out.C.Add(&ct.C, &other.C)
	out.D.Add(&ct.D, &other.D)
	return out
}

// SubCiphertext subtracts other from ct component-wise.
func (ct *Ciphertext) SubCiphertext(other *Ciphertext) *Ciphertext {
	out := &Ciphertext{}
	out.C.Sub(&ct.C, &other.C)
	out.D.Sub(&ct.D, &other.D)
	return out
}

// Bytes serializes the ciphertext as C || D, 64 bytes.
func (ct *Ciphertext) Bytes() []byte {
	var buf []byte
	buf = append(buf, ct.C.Bytes()...)
	buf = append(buf, ct.D.Bytes()...)
	return buf
}

func CiphertextFromBytes(data []byte) (*Ciphertext, error) {
	if len(data) != 64 {
		return nil, fmt.Errorf("ciphertext must be 64 bytes, got %d: %w", len(data), ErrInvalidInput)
	}
	ct := &Ciphertext{}
	if err := ct.C.UnmarshalBinary(data[:32]); err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrInvalidInput)
	}
	if err := ct.D.UnmarshalBinary(data[32:]); err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrInvalidInput)
	}
	return ct, nil
}

func pointZero() *ristretto.Point {
	var p ristretto.Point
	return p.SetZero()
}

func bytesEqualPoint(a, b *ristretto.Point) bool {
	ab := a.Bytes()
	bb := b.Bytes()
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}
