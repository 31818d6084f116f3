package hg

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Node identifies a Mercurial revision object: the 40-character lowercase
// hex form of its SHA-1 content hash.
type Node string

// NullNode is the reserved all-zero node denoting an absent revision.
const NullNode Node = "0000000000000000000000000000000000000000"

// EmptyFileNode is the fixed node of an empty file with no parents.
// Incidentally, it is the same as the node of an empty manifest with no
// parents, which is why the store never records a git mapping for it
// (see store.GitFileRef).
const EmptyFileNode Node = "b80de5d138758541c5f05265ad144ab9fa86d1db"

// IsNull reports whether n denotes an absent revision. The empty string is
// treated as null so that zero-valued structs behave.
func (n Node) IsNull() bool {
	return n == NullNode || n == ""
}

// Raw decodes n into its 20 raw bytes.
func (n Node) Raw() ([]byte, error) {
	if n == "" {
		n = NullNode
	}
	if len(n) != 40 {
		return nil, fmt.Errorf("hg: node %q is not 40 hex characters", n)
	}
	raw, err := hex.DecodeString(string(n))
	if err != nil {
		return nil, fmt.Errorf("hg: node %q: %w", n, err)
	}
	return raw, nil
}

// NodeFromRaw encodes 20 raw bytes as a Node.
func NodeFromRaw(raw []byte) (Node, error) {
	if len(raw) != 20 {
		return NullNode, fmt.Errorf("hg: raw node must be 20 bytes, got %d", len(raw))
	}
	return Node(hex.EncodeToString(raw)), nil
}

// ParseNode validates a 40-hex byte token as a Node.
func ParseNode(tok []byte) (Node, error) {
	if len(tok) != 40 {
		return NullNode, fmt.Errorf("hg: node token %q is not 40 characters", tok)
	}
	if _, err := hex.DecodeString(string(tok)); err != nil {
		return NullNode, fmt.Errorf("hg: node token %q: %w", tok, err)
	}
	return Node(tok), nil
}

// checksum derives a revision's node from its parents and serialized
// payload. The two raw parent hashes are concatenated in numeric-ascending
// order before the payload; the ordering holds even when the parents are
// equal or null.
func checksum(parent1, parent2 Node, data []byte) (Node, error) {
	a, err := parent1.Raw()
	if err != nil {
		return NullNode, err
	}
	b, err := parent2.Raw()
	if err != nil {
		return NullNode, err
	}
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	h := sha1.New()
	h.Write(a)
	h.Write(b)
	h.Write(data)
	return NodeFromRaw(h.Sum(nil))
}
