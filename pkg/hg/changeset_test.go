package hg

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func testManifestNode() Node {
	return Node(strings.Repeat("d", 40))
}

func TestChangesetDataGrammar(t *testing.T) {
	m := testManifestNode()
	cs := NewChangeset(NullNode, NullNode, NullNode)
	cs.Manifest = m
	cs.Author = "A <a@example.com>"
	cs.Timestamp = "1000"
	cs.UTCOffset = "0"
	cs.Extra = map[string]string{"branch": "default"}
	cs.Files = []string{"b.txt", "a.txt"}
	cs.Body = "msg"

	want := string(m) + "\nA <a@example.com>\n1000 0 branch:default\na.txt\nb.txt\n\nmsg"
	if got := string(cs.Data()); got != want {
		t.Errorf("Data() = %q, want %q", got, want)
	}
}

func TestChangesetDataNoExtraNoFiles(t *testing.T) {
	m := testManifestNode()
	cs := NewChangeset(NullNode, NullNode, NullNode)
	cs.Manifest = m
	cs.Author = "A"
	cs.Timestamp = "7"
	cs.UTCOffset = "-3600"
	cs.Body = "body"

	want := string(m) + "\nA\n7 -3600\n\nbody"
	if got := string(cs.Data()); got != want {
		t.Errorf("Data() = %q, want %q", got, want)
	}
}

func TestChangesetRoundTrip(t *testing.T) {
	cs := NewChangeset(NullNode, NullNode, NullNode)
	cs.Manifest = testManifestNode()
	cs.Author = "A <a@example.com>"
	cs.Timestamp = "123456"
	cs.UTCOffset = "-7200"
	cs.Extra = map[string]string{"branch": "stable", "close": "1"}
	cs.Files = []string{"x", "dir/y"}
	cs.Body = "multi\nline\n\nbody"

	parsed := NewChangeset(NullNode, NullNode, NullNode)
	if err := parsed.SetData(cs.Data()); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	if parsed.Manifest != cs.Manifest {
		t.Errorf("manifest = %s, want %s", parsed.Manifest, cs.Manifest)
	}
	if parsed.Author != cs.Author || parsed.Timestamp != cs.Timestamp || parsed.UTCOffset != cs.UTCOffset {
		t.Errorf("header = (%q, %q, %q)", parsed.Author, parsed.Timestamp, parsed.UTCOffset)
	}
	if !reflect.DeepEqual(parsed.Extra, cs.Extra) {
		t.Errorf("extra = %v, want %v", parsed.Extra, cs.Extra)
	}
	wantFiles := []string{"dir/y", "x"} // serialized sorted
	if !reflect.DeepEqual(parsed.Files, wantFiles) {
		t.Errorf("files = %v, want %v", parsed.Files, wantFiles)
	}
	if parsed.Body != cs.Body {
		t.Errorf("body = %q, want %q", parsed.Body, cs.Body)
	}
	if string(parsed.Data()) != string(cs.Data()) {
		t.Errorf("reserialization differs:\n%q\n%q", parsed.Data(), cs.Data())
	}
}

func TestChangesetSetDataMalformed(t *testing.T) {
	node := Node(strings.Repeat("c", 40))
	cases := map[string]string{
		"no body separator":   string(testManifestNode()) + "\nA\n1 0",
		"too few lines":       string(testManifestNode()) + "\nA\n\nbody",
		"bad manifest node":   "nothex\nA\n1 0\n\nbody",
		"date missing offset": string(testManifestNode()) + "\nA\n1\n\nbody",
	}
	for name, data := range cases {
		cs := NewChangeset(node, NullNode, NullNode)
		err := cs.SetData([]byte(data))
		var corrupt *CorruptRevisionError
		if !errors.As(err, &corrupt) {
			t.Errorf("%s: err = %v, want CorruptRevisionError", name, err)
			continue
		}
		if corrupt.Node != node {
			t.Errorf("%s: corrupt node = %s, want %s", name, corrupt.Node, node)
		}
	}
}

func TestChangesetExtraAccessors(t *testing.T) {
	cs := NewChangeset(NullNode, NullNode, NullNode)
	if cs.Branch() != "" || cs.Close() != "" || cs.Committer() != "" {
		t.Error("fresh changeset has extra values")
	}

	cs.SetBranch("default")
	if cs.Extra == nil || cs.Extra["branch"] != "default" {
		t.Errorf("extra after SetBranch = %v", cs.Extra)
	}
	cs.SetClose("1")
	if cs.Close() != "1" {
		t.Errorf("Close() = %q", cs.Close())
	}

	// Clearing the last key nulls the whole block.
	cs.SetClose("")
	cs.SetBranch("")
	if cs.Extra != nil {
		t.Errorf("extra after clearing = %v, want nil", cs.Extra)
	}
}

func TestChangesetExtraNeverEmptyNonNil(t *testing.T) {
	cs := NewChangeset(NullNode, NullNode, NullNode)
	cs.SetCommitter("C <c@example.com>")
	cs.SetCommitter("")
	if cs.Extra != nil {
		t.Errorf("extra = %v, want nil", cs.Extra)
	}
	// Absent extra must not serialize a trailing extra field.
	cs.Manifest = testManifestNode()
	cs.Timestamp = "1"
	cs.UTCOffset = "0"
	if got := string(cs.Data()); strings.Contains(got, "1 0 ") {
		t.Errorf("Data() serialized an empty extra block: %q", got)
	}
}

func TestChangesetFieldIsOwnNode(t *testing.T) {
	node := Node(strings.Repeat("e", 40))
	cs := NewChangeset(node, NullNode, NullNode)
	if cs.Rev.Changeset != node {
		t.Errorf("changeset field = %s, want own node %s", cs.Rev.Changeset, node)
	}
}
