package mempool

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// HashSize is the length in bytes of a transaction hash.
const HashSize = 32

// Hash is a double-SHA256 transaction identifier, stored internally in
// the same byte order it is computed in (not the reversed, human-readable
// order used by String).
type Hash [HashSize]byte

// ZeroHash is the null hash, used as the prevout hash of a coinbase input.
var ZeroHash = Hash{}

// Cmp orders two hashes as big-endian integers, matching util.Hash.Cmp in
// the source this is ported from.
func (h Hash) Cmp(other Hash) int {
	return new(big.Int).SetBytes(h[:]).Cmp(new(big.Int).SetBytes(other[:]))
}

// IsZero reports whether h is the null hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String renders the hash in the conventional reversed-byte hex form.
func (h Hash) String() string {
	var reversed Hash
	for i, b := range h {
		reversed[HashSize-1-i] = b
	}
	return hex.EncodeToString(reversed[:])
}

// OutPoint identifies a single transaction output by the hash of the
// transaction that created it and the output's index within it.
type OutPoint struct {
	Hash  Hash
	Index uint32
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}
