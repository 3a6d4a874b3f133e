package veiled

import "errors"

var (
	// ErrInvalidInput covers malformed caller input: wrong key or
	// randomness length, amounts outside the allowed range, nil keys or
	// auditors. A mismatch between auditor keys and auditor handles is not
	// reported through it: VerifyTransfer returns false instead.
	ErrInvalidInput = errors.New("veiled: invalid input")

	// ErrOutOfRange is returned when the bounded discrete-log search
	// exhausts the supplied window without locating the amount. Callers may
	// retry with a wider window or conclude the ciphertext is malformed.
	ErrOutOfRange = errors.New("veiled: amount not found within decryption window")

	// ErrMalformedProof is returned when proof bytes have the wrong length
	// or are not a multiple of 32 bytes.
	ErrMalformedProof = errors.New("veiled: malformed proof encoding")

	// ErrInsufficientBalance is returned when a withdraw or transfer amount
	// exceeds the decrypted balance.
	ErrInsufficientBalance = errors.New("veiled: amount exceeds available balance")
)
