package serialization

import (
	"crypto/sha256"
	"hash"
)

func newChecksum() hash.Hash { return sha256.New() }

// ValidateChecksum returns ErrChecksumMismatch unless the sums agree.
func ValidateChecksum(computed, stored []byte) error {
	if len(computed) != ChecksumSize || string(computed) != string(stored) {
		return ErrChecksumMismatch
	}
	return nil
}
