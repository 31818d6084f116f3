package hg

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/odvcencio/hgbridge/pkg/bdiff"
)

// ChunkVersion selects the changegroup wire layout for revision chunks.
type ChunkVersion int

const (
	// ChunkV1 has an 80-byte header; the delta base is implied to be the
	// first parent.
	ChunkV1 ChunkVersion = 1
	// ChunkV2 adds an explicit 20-byte delta node to the header.
	ChunkV2 ChunkVersion = 2
)

func (v ChunkVersion) headerLen() (int, error) {
	switch v {
	case ChunkV1:
		return 80, nil
	case ChunkV2:
		return 100, nil
	}
	return 0, fmt.Errorf("hg: unknown chunk version %d", int(v))
}

// RawChunk is the transmittable form of a revision: identity, parentage,
// owning changeset, and a binary patch against a delta base.
type RawChunk struct {
	Version   ChunkVersion
	Node      Node
	Parent1   Node
	Parent2   Node
	Changeset Node
	DeltaNode Node
	Patch     []byte
}

// ToChunk builds the chunk record for obj. The patch is computed from
// delta's payload to obj's payload; a nil delta yields a full-content
// patch. delta must be a revision of the same object type as obj. When
// obj has no recorded node yet, its hash is computed on the fly.
func ToChunk(obj Object, version ChunkVersion, delta Object) (*RawChunk, error) {
	if _, err := version.headerLen(); err != nil {
		return nil, err
	}
	r := obj.Identity()
	node := r.Node
	if node.IsNull() {
		var err error
		node, err = SHA1(obj)
		if err != nil {
			return nil, err
		}
	}
	c := &RawChunk{
		Version:   version,
		Node:      node,
		Parent1:   r.Parent1,
		Parent2:   r.Parent2,
		Changeset: r.Changeset,
		DeltaNode: NullNode,
	}
	var base []byte
	if delta != nil {
		c.DeltaNode = delta.Identity().Node
		base = delta.Data()
	}
	c.Patch = bdiff.Diff(base, obj.Data())
	return c, nil
}

// Marshal encodes the chunk with its 4-byte big-endian length prefix. In
// the v1 layout the delta node is not transmitted and must be null or
// equal to the first parent.
func (c *RawChunk) Marshal() ([]byte, error) {
	hdrLen, err := c.Version.headerLen()
	if err != nil {
		return nil, err
	}
	if c.Version == ChunkV1 && !c.DeltaNode.IsNull() && c.DeltaNode != c.Parent1 {
		return nil, fmt.Errorf("hg: v1 chunk cannot carry delta node %s", c.DeltaNode)
	}
	nodes := []Node{c.Node, c.Parent1, c.Parent2, c.Changeset}
	if c.Version == ChunkV2 {
		nodes = append(nodes, c.DeltaNode)
	}
	out := make([]byte, 0, 4+hdrLen+len(c.Patch))
	out = binary.BigEndian.AppendUint32(out, uint32(4+hdrLen+len(c.Patch)))
	for _, n := range nodes {
		raw, err := n.Raw()
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
	}
	return append(out, c.Patch...), nil
}

// ReadChunk decodes one length-prefixed chunk from r. A zero-length chunk
// is the section delimiter and is reported as (nil, nil). In the v1
// layout the delta node is recovered as the first parent.
func ReadChunk(r io.Reader, version ChunkVersion) (*RawChunk, error) {
	hdrLen, err := version.headerLen()
	if err != nil {
		return nil, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size == 0 {
		return nil, nil
	}
	if int(size) < 4+hdrLen {
		return nil, fmt.Errorf("hg: chunk length %d shorter than header", size)
	}
	body := make([]byte, size-4)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("hg: truncated chunk: %w", err)
	}
	c := &RawChunk{Version: version, Patch: body[hdrLen:]}
	fields := []*Node{&c.Node, &c.Parent1, &c.Parent2, &c.Changeset}
	if version == ChunkV2 {
		fields = append(fields, &c.DeltaNode)
	}
	for i, f := range fields {
		n, err := NodeFromRaw(body[i*20 : i*20+20])
		if err != nil {
			return nil, err
		}
		*f = n
	}
	if version == ChunkV1 {
		c.DeltaNode = c.Parent1
	}
	return c, nil
}
