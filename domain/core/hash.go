package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
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

// Short returns the first 12 hex characters, for log lines.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Domain-specific hash types
type (
	InputHash  Hash
	ConfigHash Hash
)

func (h InputHash) String() string  { return Hash(h).String() }
func (h ConfigHash) String() string { return Hash(h).String() }

// ComputeInputHash fingerprints a count matrix by content. Gene order, cell
// order and every count participate, so any change to the input changes it.
func ComputeInputHash(geneIDs, cellIDs []string, counts [][]int32) InputHash {
	h := sha256.New()
	var buf [4]byte

	for _, c := range cellIDs {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for i, g := range geneIDs {
		h.Write([]byte(g))
		h.Write([]byte{0})
		if i < len(counts) {
			for _, v := range counts[i] {
				binary.LittleEndian.PutUint32(buf[:], uint32(v))
				h.Write(buf[:])
			}
		}
	}
	return InputHash(hex.EncodeToString(h.Sum(nil)))
}

// ComputeConfigHash hashes a flat parameter map in key order.
func ComputeConfigHash(params map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fmt.Sprintf("%v", params[key]))
		data.WriteString(";")
	}
	return ConfigHash(NewHash([]byte(data.String())))
}
