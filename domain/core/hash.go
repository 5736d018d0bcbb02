package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, enough to tell sequences apart in logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// SequenceHash fingerprints an ordered trial sequence so two sessions generated from the
// same seed can be compared without storing the full list.
type SequenceHash Hash

func (h SequenceHash) String() string { return Hash(h).String() }

// ComputeSequenceHash hashes the canonical line form of each trial, in order.
func ComputeSequenceHash(lines []string) SequenceHash {
	var data strings.Builder
	for _, line := range lines {
		data.WriteString(line)
		data.WriteByte('\n')
	}
	return SequenceHash(NewHash([]byte(data.String())))
}
