package hg

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestFileDataPlainContent(t *testing.T) {
	f := NewFile(NullNode, NullNode, NullNode)
	f.Content = []byte("hello\n")
	if got := f.Data(); !bytes.Equal(got, []byte("hello\n")) {
		t.Errorf("Data() = %q, want content verbatim", got)
	}
}

func TestFileDataWithMetadata(t *testing.T) {
	f := NewFile(NullNode, NullNode, NullNode)
	f.Content = []byte("contents\n")
	f.Metadata = MetadataFromPairs([][2]string{
		{"copy", "old/name"},
		{"copyrev", strings.Repeat("a", 40)},
	})
	want := "\x01\ncopy: old/name\ncopyrev: " + strings.Repeat("a", 40) + "\n\x01\ncontents\n"
	if got := f.Data(); string(got) != want {
		t.Errorf("Data() = %q, want %q", got, want)
	}
}

func TestFileDataEscapesMarkerContent(t *testing.T) {
	// Content that itself starts with \x01\n must be wrapped even with no
	// metadata, or it would parse back as a metadata block.
	f := NewFile(NullNode, NullNode, NullNode)
	f.Content = []byte("\x01\nnot metadata")
	want := "\x01\n\x01\n\x01\nnot metadata"
	if got := f.Data(); string(got) != want {
		t.Errorf("Data() = %q, want %q", got, want)
	}

	parsed := NewFile(NullNode, NullNode, NullNode)
	if err := parsed.SetData(f.Data()); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	if !bytes.Equal(parsed.Content, f.Content) {
		t.Errorf("round trip content = %q, want %q", parsed.Content, f.Content)
	}
	if parsed.Metadata.Len() != 0 {
		t.Errorf("round trip grew metadata: %q", parsed.Metadata.Text())
	}
}

func TestFileSetDataRoundTrip(t *testing.T) {
	f := NewFile(NullNode, NullNode, NullNode)
	f.Content = []byte("body\n")
	f.Metadata = MetadataFromPairs([][2]string{{"copy", "a"}, {"copyrev", "b"}})

	parsed := NewFile(NullNode, NullNode, NullNode)
	if err := parsed.SetData(f.Data()); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	if !bytes.Equal(parsed.Data(), f.Data()) {
		t.Errorf("round trip = %q, want %q", parsed.Data(), f.Data())
	}
	if v, ok := parsed.Metadata.Get("copy"); !ok || v != "a" {
		t.Errorf("copy metadata = %q, %v", v, ok)
	}
}

func TestFileSetDataUnterminatedMetadata(t *testing.T) {
	f := NewFile(Node(strings.Repeat("5", 40)), NullNode, NullNode)
	err := f.SetData([]byte("\x01\ncopy: a\n"))
	var corrupt *CorruptRevisionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("SetData error = %v, want CorruptRevisionError", err)
	}
	if corrupt.Node != f.Node {
		t.Errorf("corrupt node = %s, want %s", corrupt.Node, f.Node)
	}
}

func TestSetFileParentsCopyMetadataPolicy(t *testing.T) {
	p1 := Node(strings.Repeat("1", 40))
	p2 := Node(strings.Repeat("2", 40))

	f := NewFile(NullNode, NullNode, NullNode)
	f.Metadata.Set("copy", "somewhere")
	if err := SetFileParents(f, p1, NullNode); err != nil {
		t.Fatalf("SetFileParents: %v", err)
	}
	if f.Parent1 != NullNode || f.Parent2 != p1 {
		t.Errorf("parents = (%s, %s), want (null, %s)", f.Parent1, f.Parent2, p1)
	}

	f = NewFile(NullNode, NullNode, NullNode)
	f.Metadata.Set("copy", "somewhere")
	if err := SetFileParents(f, p1, p2); !errors.Is(err, ErrInvalidFileParents) {
		t.Errorf("two parents with copy metadata: err = %v, want ErrInvalidFileParents", err)
	}
}

func TestSetFileParentsEscapedContentPolicy(t *testing.T) {
	// Content starting with the metadata marker follows the copy-metadata
	// rules even without explicit metadata.
	p1 := Node(strings.Repeat("1", 40))
	f := NewFile(NullNode, NullNode, NullNode)
	f.Content = []byte("\x01\nx")
	if err := SetFileParents(f, p1, NullNode); err != nil {
		t.Fatalf("SetFileParents: %v", err)
	}
	if f.Parent1 != NullNode || f.Parent2 != p1 {
		t.Errorf("parents = (%s, %s), want (null, %s)", f.Parent1, f.Parent2, p1)
	}
}

func TestSetFileParentsCollapsesIdenticalParents(t *testing.T) {
	p := Node(strings.Repeat("3", 40))
	f := NewFile(NullNode, NullNode, NullNode)
	f.Content = []byte("data")
	if err := SetFileParents(f, p, p); err != nil {
		t.Fatalf("SetFileParents: %v", err)
	}
	if f.Parent1 != p || f.Parent2 != NullNode {
		t.Errorf("parents = (%s, %s), want (%s, null)", f.Parent1, f.Parent2, p)
	}
}

func TestSetFileParentsKeepsDistinctMergeParents(t *testing.T) {
	p1 := Node(strings.Repeat("1", 40))
	p2 := Node(strings.Repeat("2", 40))
	f := NewFile(NullNode, NullNode, NullNode)
	f.Content = []byte("data")
	if err := SetFileParents(f, p1, p2); err != nil {
		t.Fatalf("SetFileParents: %v", err)
	}
	if f.Parent1 != p1 || f.Parent2 != p2 {
		t.Errorf("parents = (%s, %s), want (%s, %s)", f.Parent1, f.Parent2, p1, p2)
	}
}

func TestSetFileParentsPanicsOnFinalizedFile(t *testing.T) {
	f := NewFile(Node(strings.Repeat("9", 40)), NullNode, NullNode)
	defer func() {
		if recover() == nil {
			t.Error("SetFileParents on a hashed file did not panic")
		}
	}()
	SetFileParents(f, NullNode, NullNode)
}

func TestMetadataFromTextPreservesOrder(t *testing.T) {
	md := MetadataFromText([]byte("zeta: 1\nalpha: 2\n"))
	want := "zeta: 1\nalpha: 2\n"
	if got := string(md.Text()); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}
