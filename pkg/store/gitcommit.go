package store

import (
	"bytes"
	"fmt"
	"strings"
)

// GitCommit is a minimally parsed backing-store commit record. It exists
// to recover a changeset's manifest linkage and parent chain; it carries
// no translation logic.
type GitCommit struct {
	SHA1      string
	Tree      string
	Parents   []string
	Author    string
	Committer string
	Body      string
}

// parseGitCommit decodes the raw "cat-file commit" bytes. The "parent"
// header may repeat; any other header repeating is a parse failure.
func parseGitCommit(sha1 string, raw []byte) (*GitCommit, error) {
	header, body, ok := bytes.Cut(raw, []byte("\n\n"))
	if !ok {
		return nil, fmt.Errorf("store: commit %s: missing header/body separator", sha1)
	}
	c := &GitCommit{SHA1: sha1, Body: string(body)}
	for _, line := range strings.Split(string(header), "\n") {
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch key {
		case "parent":
			c.Parents = append(c.Parents, strings.TrimSpace(value))
		case "tree":
			if c.Tree != "" {
				return nil, fmt.Errorf("store: commit %s: duplicate tree header", sha1)
			}
			c.Tree = value
		case "author":
			if c.Author != "" {
				return nil, fmt.Errorf("store: commit %s: duplicate author header", sha1)
			}
			c.Author = value
		case "committer":
			if c.Committer != "" {
				return nil, fmt.Errorf("store: commit %s: duplicate committer header", sha1)
			}
			c.Committer = value
		}
	}
	return c, nil
}

// GitCommit fetches and parses a backing-store commit through the helper.
func (s *Store) GitCommit(sha1 string) (*GitCommit, error) {
	raw, found, err := s.helper.CatFile("commit", sha1)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("store: commit %s not found", sha1)
	}
	return parseGitCommit(sha1, raw)
}
