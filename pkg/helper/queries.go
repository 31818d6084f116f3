package helper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/hgbridge/pkg/hg"
)

// CatFile fetches a raw git object of the given type. found is false when
// the object does not exist.
func (c *Client) CatFile(objType, sha1 string) (data []byte, found bool, err error) {
	if err := c.request("cat-file", sha1); err != nil {
		return nil, false, err
	}
	return c.readObject(objType)
}

// Git2Hg looks up the bridge metadata blob attached to a git commit.
// found is false when the commit has no hg counterpart.
func (c *Client) Git2Hg(sha1 string) (data []byte, found bool, err error) {
	if err := c.request("git2hg", sha1); err != nil {
		return nil, false, err
	}
	return c.readObject("blob")
}

// Hg2Git maps an hg node to its git-side sha1. The null sha1 signals a
// miss; callers decide whether absence is fatal.
func (c *Client) Hg2Git(node hg.Node) (string, error) {
	if err := c.request("hg2git", string(node)); err != nil {
		return "", err
	}
	head, err := c.readExact(41)
	if err != nil {
		return "", err
	}
	if head[40] != '\n' {
		return "", c.desync(fmt.Errorf("bad hg2git response %q", head))
	}
	return string(head[:40]), nil
}

// Manifest fetches the raw serialized manifest payload for an hg node.
func (c *Client) Manifest(node hg.Node) ([]byte, error) {
	if err := c.request("manifest", string(node)); err != nil {
		return nil, err
	}
	return c.readData()
}

// RawChangeset fetches a changeset's node, parents and raw payload. The
// id is either an hg node or "git:<sha1>".
func (c *Client) RawChangeset(id string) (node, parent1, parent2 hg.Node, data []byte, err error) {
	if err = c.request("raw-changeset", id); err != nil {
		return
	}
	line, err := c.readLine()
	if err != nil {
		return
	}
	fields := strings.Fields(line)
	if len(fields) != 4 {
		err = c.desync(fmt.Errorf("bad raw-changeset header %q", line))
		return
	}
	if node, err = hg.ParseNode([]byte(fields[0])); err != nil {
		err = c.desync(err)
		return
	}
	if parent1, err = hg.ParseNode([]byte(fields[1])); err != nil {
		err = c.desync(err)
		return
	}
	if parent2, err = hg.ParseNode([]byte(fields[2])); err != nil {
		err = c.desync(err)
		return
	}
	var size int
	if _, err = fmt.Sscanf(fields[3], "%d", &size); err != nil {
		err = c.desync(fmt.Errorf("bad raw-changeset size %q", fields[3]))
		return
	}
	data, err = c.readExact(size)
	return
}

// Heads lists the (node, branch) pairs of the named head set.
func (c *Client) Heads(set string) ([]HeadRef, error) {
	if err := c.request("heads", set); err != nil {
		return nil, err
	}
	data, err := c.readData()
	if err != nil {
		return nil, err
	}
	var heads []HeadRef
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		tok, branch, _ := strings.Cut(line, " ")
		node, err := hg.ParseNode([]byte(tok))
		if err != nil {
			return nil, c.desync(fmt.Errorf("bad head line %q", line))
		}
		heads = append(heads, HeadRef{Node: node, Branch: branch})
	}
	return heads, nil
}

// ForEachRef lists "<sha1> <refname>" entries under the given prefixes.
func (c *Client) ForEachRef(patterns ...string) ([]RefEntry, error) {
	if err := c.request("for-each-ref", patterns...); err != nil {
		return nil, err
	}
	data, err := c.readData()
	if err != nil {
		return nil, err
	}
	var refs []RefEntry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		sha1, name, ok := strings.Cut(line, " ")
		if !ok || len(sha1) != 40 {
			return nil, c.desync(fmt.Errorf("bad ref line %q", line))
		}
		refs = append(refs, RefEntry{SHA1: sha1, Name: name})
	}
	return refs, nil
}

// DeleteRef removes a ref from the backing store's namespace.
func (c *Client) DeleteRef(name string) error {
	if err := c.request("delete-ref", name); err != nil {
		return err
	}
	return c.readAck("delete-ref")
}

// GraftInit signals the helper to begin tracking graft candidates.
func (c *Client) GraftInit() error {
	if err := c.request("graft", "init"); err != nil {
		return err
	}
	return c.readAck("graft init")
}

// DoneAndCheck finalizes the session, optionally refreshing the named
// secondary state, and returns the helper's single-line status.
func (c *Client) DoneAndCheck(refresh ...string) (string, error) {
	if err := c.request("done-and-check", refresh...); err != nil {
		return "", err
	}
	return c.readLine()
}

func (c *Client) readAck(what string) error {
	line, err := c.readLine()
	if err != nil {
		return err
	}
	if line != "ok" {
		return c.desync(errors.New(what + ": expected ok, got " + line))
	}
	return nil
}
