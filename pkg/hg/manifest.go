package hg

import (
	"bytes"
	"fmt"
)

// ManifestItem is one serialized manifest line: the path, a NUL, the
// 40-hex file node, and an optional mode flag byte ('x' for executable,
// 'l' for symlink).
type ManifestItem []byte

// NewManifestItem builds the line form of a manifest entry.
func NewManifestItem(path string, node Node, flags string) ManifestItem {
	return ManifestItem(fmt.Sprintf("%s\x00%s%s", path, node, flags))
}

func parseManifestItem(line []byte) (ManifestItem, error) {
	it := ManifestItem(line)
	sep := len(line) - 41 - len(it.Flags())
	if sep < 1 || line[sep] != 0 {
		return nil, fmt.Errorf("malformed manifest line %q", line)
	}
	if _, err := ParseNode([]byte(it.NodeID())); err != nil {
		return nil, fmt.Errorf("malformed manifest line %q: %w", line, err)
	}
	return it, nil
}

// Path returns the tracked path portion of the item.
func (it ManifestItem) Path() string {
	return string(it[:len(it)-41-len(it.Flags())])
}

// NodeID returns the file node portion of the item.
func (it ManifestItem) NodeID() Node {
	flags := len(it.Flags())
	return Node(it[len(it)-40-flags : len(it)-flags])
}

// Flags returns the mode flag: "x", "l" or "" for a regular file.
func (it ManifestItem) Flags() string {
	if n := len(it); n > 0 && (it[n-1] == 'x' || it[n-1] == 'l') {
		return string(it[n-1:])
	}
	return ""
}

// Manifest is an ordered directory listing. It holds either the raw
// serialized bytes or the parsed item list, never both: structured access
// materializes the items and drops the raw form, while Data prefers a
// still-valid raw form over re-serializing.
type Manifest struct {
	Rev
	raw   []byte
	items []ManifestItem
}

// NewManifest constructs an empty manifest revision.
func NewManifest(node, parent1, parent2 Node) *Manifest {
	return &Manifest{Rev: newRev(node, parent1, parent2, NullNode)}
}

// Items returns the parsed entries, triggering the one-shot lazy parse of
// a raw payload. A payload whose lines are malformed or not strictly
// increasing is reported as a corrupt revision.
func (m *Manifest) Items() ([]ManifestItem, error) {
	if m.raw != nil {
		lines := bytes.Split(bytes.TrimSuffix(m.raw, []byte("\n")), []byte("\n"))
		items := make([]ManifestItem, 0, len(lines))
		var last ManifestItem
		for _, line := range lines {
			if len(line) == 0 {
				continue
			}
			it, err := parseManifestItem(line)
			if err != nil {
				return nil, &CorruptRevisionError{Node: m.Node, Err: err}
			}
			if last != nil && bytes.Compare(it, last) <= 0 {
				return nil, &CorruptRevisionError{
					Node: m.Node,
					Err:  fmt.Errorf("out-of-order manifest line %q", line),
				}
			}
			items = append(items, it)
			last = it
		}
		m.items = items
		m.raw = nil
	}
	return m.items, nil
}

// Add appends an entry. Entries must arrive in strictly increasing
// byte-wise order; violating that is a programming error and panics.
func (m *Manifest) Add(path string, node Node, flags string) error {
	items, err := m.Items()
	if err != nil {
		return err
	}
	it := NewManifestItem(path, node, flags)
	if n := len(items); n > 0 && bytes.Compare(it, items[n-1]) <= 0 {
		panic(fmt.Sprintf("hg: manifest item %q appended out of order", it))
	}
	m.items = append(items, it)
	return nil
}

// Data serializes the manifest: items joined by newlines with a trailing
// newline. A raw payload installed by SetData is returned as-is while it
// is still valid.
func (m *Manifest) Data() []byte {
	if m.raw != nil {
		return m.raw
	}
	if len(m.items) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, it := range m.items {
		buf.Write(it)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// SetData installs a raw serialized payload, invalidating any parsed
// items. Parsing is deferred to the first structured access.
func (m *Manifest) SetData(data []byte) error {
	m.raw = append([]byte{}, data...)
	m.items = nil
	return nil
}
