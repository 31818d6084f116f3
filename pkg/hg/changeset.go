package hg

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Changeset is a commit-like revision record: manifest reference, author,
// date, an optional key/value extension block, the list of touched paths
// and a free-form message body.
type Changeset struct {
	Rev
	Manifest  Node
	Author    string
	Timestamp string
	UTCOffset string
	// Extra is the extension block. nil means absent; the map is never
	// kept empty (see setExtra).
	Extra map[string]string
	Files []string
	Body  string
}

// NewChangeset constructs an empty changeset revision. The Changeset field
// of a changeset is its own node; it exists only for positional symmetry
// with files and manifests.
func NewChangeset(node, parent1, parent2 Node) *Changeset {
	c := &Changeset{
		Rev:      newRev(node, parent1, parent2, NullNode),
		Manifest: NullNode,
	}
	c.Rev.Changeset = c.Rev.Node
	return c
}

// Data serializes the changeset:
//
//	<manifest>\n<author>\n<timestamp> <utcoffset>[ <extra>]\n[<files>]\n\n<body>
//
// with files sorted and extra rendered as sorted key:value pairs joined
// by NUL.
func (c *Changeset) Data() []byte {
	var buf bytes.Buffer
	buf.WriteString(string(orNull(c.Manifest)))
	buf.WriteByte('\n')
	buf.WriteString(c.Author)
	buf.WriteByte('\n')
	buf.WriteString(c.Timestamp)
	buf.WriteByte(' ')
	buf.WriteString(c.UTCOffset)
	if c.Extra != nil {
		buf.WriteByte(' ')
		buf.WriteString(extraText(c.Extra))
	}
	if len(c.Files) > 0 {
		files := append([]string(nil), c.Files...)
		sort.Strings(files)
		buf.WriteByte('\n')
		buf.WriteString(strings.Join(files, "\n"))
	}
	buf.WriteString("\n\n")
	buf.WriteString(c.Body)
	return buf.Bytes()
}

// SetData parses a serialized changeset payload.
func (c *Changeset) SetData(data []byte) error {
	head, body, ok := bytes.Cut(data, []byte("\n\n"))
	if !ok {
		return c.corrupt(errors.New("missing body separator"))
	}
	lines := strings.Split(string(head), "\n")
	if len(lines) < 3 {
		return c.corrupt(fmt.Errorf("%d metadata lines, need at least 3", len(lines)))
	}
	node, err := ParseNode([]byte(lines[0]))
	if err != nil {
		return c.corrupt(fmt.Errorf("manifest line: %w", err))
	}
	date := strings.SplitN(lines[2], " ", 3)
	if len(date) < 2 {
		return c.corrupt(fmt.Errorf("malformed date line %q", lines[2]))
	}
	extra := map[string]string(nil)
	if len(date) == 3 {
		extra, err = extraFromText(date[2])
		if err != nil {
			return c.corrupt(err)
		}
	}
	c.Manifest = node
	c.Author = lines[1]
	c.Timestamp = date[0]
	c.UTCOffset = date[1]
	c.Extra = extra
	c.Files = append([]string(nil), lines[3:]...)
	c.Body = string(body)
	return nil
}

func (c *Changeset) corrupt(err error) error {
	return &CorruptRevisionError{Node: c.Node, Err: err}
}

// extraText renders the extension block: key:value pairs, keys sorted,
// joined by NUL.
func extraText(extra map[string]string) string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + ":" + extra[k]
	}
	return strings.Join(pairs, "\x00")
}

func extraFromText(s string) (map[string]string, error) {
	extra := make(map[string]string)
	for _, item := range strings.Split(s, "\x00") {
		if item == "" {
			continue
		}
		key, value, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("malformed extra item %q", item)
		}
		extra[key] = value
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return extra, nil
}

// extraValue reads one key of the extension block; absent keys and an
// absent block both read as "".
func (c *Changeset) extraValue(key string) string {
	if c.Extra == nil {
		return ""
	}
	return c.Extra[key]
}

// setExtra writes one key of the extension block. Setting a key to ""
// removes it; when the block empties out it becomes nil, so that Extra is
// non-nil exactly when it holds at least one key.
func (c *Changeset) setExtra(key, value string) {
	if value == "" {
		if c.Extra != nil {
			delete(c.Extra, key)
		}
		if len(c.Extra) == 0 {
			c.Extra = nil
		}
		return
	}
	if c.Extra == nil {
		c.Extra = make(map[string]string)
	}
	c.Extra[key] = value
}

// Branch is the named branch recorded in the extension block, "" when
// unset (the default branch).
func (c *Changeset) Branch() string { return c.extraValue("branch") }

func (c *Changeset) SetBranch(branch string) { c.setExtra("branch", branch) }

// Committer is the committer recorded in the extension block when it
// differs from the author.
func (c *Changeset) Committer() string { return c.extraValue("committer") }

func (c *Changeset) SetCommitter(committer string) { c.setExtra("committer", committer) }

// Close is the branch-close marker; a non-empty value flags the changeset
// as closing its branch.
func (c *Changeset) Close() string { return c.extraValue("close") }

func (c *Changeset) SetClose(close string) { c.setExtra("close", close) }
