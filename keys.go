package veiled

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/btcsuite/btcutil/base58"
	"github.com/bwesterb/go-ristretto"
	bip39 "github.com/cosmos/go-bip39"
)

// DecryptionKey is the secret scalar s of a twisted ElGamal key pair.
type DecryptionKey struct {
	s ristretto.Scalar
}

// EncryptionKey is the public point P = (1/s) * H. Note the twist: the
// public key is derived from the randomness generator H, not the base point.
type EncryptionKey struct {
	p ristretto.Point
}

func NewDecryptionKey() *DecryptionKey {
	dk := &DecryptionKey{}
	dk.s.Rand()
	return dk
}

// NewDecryptionKeyFromSeed expands a 32-byte seed into a decryption key
// using the sr25519 mini-secret-key expansion, so seeds shared with other
// Ristretto tooling derive the same scalar.
func NewDecryptionKeyFromSeed(seed []byte) (*DecryptionKey, error) {
	if len(seed) != 32 {
		return nil, fmt.Errorf("seed must be 32 bytes, got %d: %w", len(seed), ErrInvalidInput)
	}
	var raw [32]byte
	copy(raw[:], seed)
	mini, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
	if err != nil {
		return nil, err
	}
	enc := mini.ExpandEd25519().Encode()

	dk := &DecryptionKey{}
	dk.s.SetBytes(&enc)
	return dk, nil
}

// NewDecryptionKeyFromMnemonic derives a decryption key from a BIP-39
// mnemonic and passphrase.
func NewDecryptionKeyFromMnemonic(mnemonic, passphrase string) (*DecryptionKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrInvalidInput)
	}
	return NewDecryptionKeyFromSeed(seed[:32])
}

func DecryptionKeyFromBytes(data []byte) (*DecryptionKey, error) {
	if len(data) != 32 {
		return nil, fmt.Errorf("decryption key must be 32 bytes, got %d: %w", len(data), ErrInvalidInput)
	}
	var buf [32]byte
	copy(buf[:], data)
	dk := &DecryptionKey{}
	dk.s.SetBytes(&buf)
	return dk, nil
}

func DecryptionKeyFromHex(h string) (*DecryptionKey, error) {
	data, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrInvalidInput)
	}
	return DecryptionKeyFromBytes(data)
}

func (dk *DecryptionKey) Bytes() []byte {
	return dk.s.Bytes()
}

// EncryptionKey computes P = (1/s) * H.
func (dk *DecryptionKey) EncryptionKey() *EncryptionKey {
	var sInv ristretto.Scalar
	sInv.Inverse(&dk.s)

	ek := &EncryptionKey{}
	ek.p.ScalarMult(randomnessGenerator(), &sInv)
	return ek
}

func (dk *DecryptionKey) scalar() *ristretto.Scalar {
	return cloneScalar(&dk.s)
}

func EncryptionKeyFromBytes(data []byte) (*EncryptionKey, error) {
	if len(data) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d: %w", len(data), ErrInvalidInput)
	}
	ek := &EncryptionKey{}
	if err := ek.p.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrInvalidInput)
	}
	return ek, nil
}

func (ek *EncryptionKey) Bytes() []byte {
	return ek.p.Bytes()
}

func (ek *EncryptionKey) Point() *ristretto.Point {
	return clonePoint(&ek.p)
}

// B58Code renders the key in the crc32-checksummed base58 form used for
// printable addresses.
func (ek *EncryptionKey) B58Code() string {
	data := ek.p.Bytes()
	sum := make([]byte, 4)
	binary.LittleEndian.PutUint32(sum, crc32.ChecksumIEEE(data))
	return base58.Encode(append(sum, data...))
}

func EncryptionKeyFromB58(code string) (*EncryptionKey, error) {
	data := base58.Decode(code)
	if len(data) != 36 {
		return nil, fmt.Errorf("invalid encryption key code %s: %w", code, ErrInvalidInput)
	}
	sum := make([]byte, 4)
	binary.LittleEndian.PutUint32(sum, crc32.ChecksumIEEE(data[4:]))
	if !bytes.Equal(sum, data[:4]) {
		return nil, fmt.Errorf("invalid encryption key checksum: %w", ErrInvalidInput)
	}
	return EncryptionKeyFromBytes(data[4:])
}
