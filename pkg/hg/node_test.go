package hg

import (
	"strings"
	"testing"
)

func TestChecksumParentOrderNormalized(t *testing.T) {
	p1 := Node(strings.Repeat("1", 40))
	p2 := Node(strings.Repeat("2", 40))
	data := []byte("payload")

	a, err := checksum(p1, p2, data)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	b, err := checksum(p2, p1, data)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if a != b {
		t.Errorf("checksum not symmetric in parents: %s != %s", a, b)
	}
}

func TestChecksumEqualAndNullParents(t *testing.T) {
	p := Node(strings.Repeat("a", 40))
	same, err := checksum(p, p, []byte("x"))
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if same.IsNull() {
		t.Error("checksum returned null node")
	}

	one, err := checksum(p, NullNode, []byte("x"))
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	other, err := checksum(NullNode, p, []byte("x"))
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if one != other {
		t.Errorf("null parent placement changed hash: %s != %s", one, other)
	}
}

func TestEmptyObjectCollision(t *testing.T) {
	// An empty file and an empty manifest, both parentless, hash to the
	// same fixed node.
	f := NewFile(NullNode, NullNode, NullNode)
	fileNode, err := SHA1(f)
	if err != nil {
		t.Fatalf("file sha1: %v", err)
	}
	m := NewManifest(NullNode, NullNode, NullNode)
	manifestNode, err := SHA1(m)
	if err != nil {
		t.Fatalf("manifest sha1: %v", err)
	}
	if fileNode != EmptyFileNode {
		t.Errorf("empty file node = %s, want %s", fileNode, EmptyFileNode)
	}
	if manifestNode != EmptyFileNode {
		t.Errorf("empty manifest node = %s, want %s", manifestNode, EmptyFileNode)
	}
}

func TestNodeRawRoundTrip(t *testing.T) {
	n := Node("b80de5d138758541c5f05265ad144ab9fa86d1db")
	raw, err := n.Raw()
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	back, err := NodeFromRaw(raw)
	if err != nil {
		t.Fatalf("NodeFromRaw: %v", err)
	}
	if back != n {
		t.Errorf("round trip changed node: %s", back)
	}
}

func TestParseNodeRejectsBadTokens(t *testing.T) {
	for _, tok := range []string{"", "abc", strings.Repeat("g", 40), strings.Repeat("a", 39)} {
		if _, err := ParseNode([]byte(tok)); err == nil {
			t.Errorf("ParseNode(%q) accepted invalid token", tok)
		}
	}
}

func TestIsNull(t *testing.T) {
	if !NullNode.IsNull() || !Node("").IsNull() {
		t.Error("null forms not recognized")
	}
	if Node(strings.Repeat("1", 40)).IsNull() {
		t.Error("real node reported null")
	}
}
