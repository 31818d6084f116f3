package hg

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// metaMarker opens and closes the copy-metadata block in a serialized file.
var metaMarker = []byte("\x01\n")

// ErrInvalidFileParents is returned when a file carrying copy metadata is
// given two real parents, which no valid Mercurial history can produce.
var ErrInvalidFileParents = errors.New("hg: file with copy metadata cannot have two parents")

// Metadata is the insertion-ordered key/value block carried by files with
// copy/rename information (keys like "copy" and "copyrev").
type Metadata struct {
	m *linkedhashmap.Map
}

// NewMetadata returns an empty metadata block.
func NewMetadata() *Metadata {
	return &Metadata{m: linkedhashmap.New()}
}

// MetadataFromText parses the literal "key: value" line form.
func MetadataFromText(text []byte) *Metadata {
	md := NewMetadata()
	for _, line := range bytes.Split(text, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		key, value, _ := bytes.Cut(line, []byte(": "))
		md.m.Put(string(key), string(value))
	}
	return md
}

// MetadataFromPairs builds a metadata block from ordered key/value pairs.
func MetadataFromPairs(pairs [][2]string) *Metadata {
	md := NewMetadata()
	for _, kv := range pairs {
		md.m.Put(kv[0], kv[1])
	}
	return md
}

func (md *Metadata) Get(key string) (string, bool) {
	if md == nil {
		return "", false
	}
	v, ok := md.m.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (md *Metadata) Set(key, value string) {
	md.m.Put(key, value)
}

func (md *Metadata) Len() int {
	if md == nil {
		return 0
	}
	return md.m.Size()
}

// Text renders the block back to its "key: value" line form, preserving
// insertion order.
func (md *Metadata) Text() []byte {
	if md.Len() == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, key := range md.m.Keys() {
		v, _ := md.m.Get(key)
		fmt.Fprintf(&buf, "%s: %s\n", key, v)
	}
	return buf.Bytes()
}

// File is a tracked blob plus optional copy/rename metadata.
type File struct {
	Rev
	Content  []byte
	Metadata *Metadata
}

// NewFile constructs a file revision with empty content and metadata.
func NewFile(node, parent1, parent2 Node) *File {
	return &File{
		Rev:      newRev(node, parent1, parent2, NullNode),
		Metadata: NewMetadata(),
	}
}

// Data serializes the file. When metadata is present, or the content itself
// begins with the metadata marker, the payload is wrapped as
// \x01\n<metadata>\x01\n<content>; otherwise it is the content verbatim.
func (f *File) Data() []byte {
	meta := f.Metadata.Text()
	if len(meta) == 0 && !bytes.HasPrefix(f.Content, metaMarker) {
		return f.Content
	}
	var buf bytes.Buffer
	buf.Write(metaMarker)
	buf.Write(meta)
	buf.Write(metaMarker)
	buf.Write(f.Content)
	return buf.Bytes()
}

// SetData parses a serialized file payload.
func (f *File) SetData(data []byte) error {
	if !bytes.HasPrefix(data, metaMarker) {
		f.Metadata = NewMetadata()
		f.Content = data
		return nil
	}
	parts := bytes.SplitN(data, metaMarker, 3)
	if len(parts) < 3 {
		return &CorruptRevisionError{
			Node: f.Node,
			Err:  errors.New("unterminated file metadata block"),
		}
	}
	f.Metadata = MetadataFromText(parts[1])
	f.Content = parts[2]
	return nil
}

// hasCopyData reports whether the file would serialize with a metadata
// block.
func (f *File) hasCopyData() bool {
	return f.Metadata.Len() > 0 || bytes.HasPrefix(f.Content, metaMarker)
}

// SetFileParents assigns parents to a not-yet-hashed file, applying the
// copy/merge policy: a file carrying copy metadata keeps at most one real
// parent, stored in the second slot; without copy metadata, two identical
// parents collapse to one.
func SetFileParents(f *File, parent1, parent2 Node) error {
	if !f.Node.IsNull() {
		panic("hg: SetFileParents called on a finalized file")
	}
	var parents []Node
	for _, p := range []Node{parent1, parent2} {
		if !p.IsNull() {
			parents = append(parents, p)
		}
	}
	if f.hasCopyData() {
		switch len(parents) {
		case 2:
			return ErrInvalidFileParents
		case 1:
			parents = []Node{NullNode, parents[0]}
		}
	} else if len(parents) == 2 && parents[0] == parents[1] {
		parents = parents[:1]
	}
	f.SetParents(parents...)
	return nil
}
