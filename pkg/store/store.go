// Package store reconciles Mercurial revision identities with the native
// git object store behind the helper process: node↔sha1 mappings, bridge
// metadata refs, branch topology, and the session commit lifecycle.
package store

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/odvcencio/hgbridge/pkg/helper"
	"github.com/odvcencio/hgbridge/pkg/hg"
)

const (
	metadataRef      = "refs/cinnabar/metadata"
	brokenRef        = "refs/cinnabar/broken"
	replaceRefPrefix = "refs/cinnabar/replace/"
	notesRef         = "refs/notes/cinnabar"

	// EmptyBlob is the fixed git sha1 of the empty blob, the designated
	// identity for the empty-file/empty-manifest node collision.
	EmptyBlob = "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"
)

// staleTagCacheRefs are deprecated cache refs purged on startup once real
// bridge metadata exists; they may hold incomplete data.
var staleTagCacheRefs = []string{
	"refs/cinnabar/tag-cache",
	"refs/cinnabar/tag_cache",
}

// ErrSilentAbort means session finalization reported a non-ok status: the
// session must stop mutating, but the orchestrating layer owns any
// user-facing diagnostic.
var ErrSilentAbort = errors.New("store: finalization aborted")

// Store is the façade over both object models. It caches only session
// state; revision objects are constructed fresh per query. Not safe for
// concurrent use.
type Store struct {
	helper *helper.Client
	logger *log.Logger

	metadataSHA1 string
	hasMetadata  bool
	broken       bool
	graft        bool
	closed       bool
}

// Open scans the backing store's bridge reference namespace and prepares
// a session. When a prior metadata commit exists, stale secondary caches
// are purged.
func Open(h *helper.Client, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Store{helper: h, logger: logger}

	// Listing refs/notes/cinnabar alongside primes the helper's cache.
	refs, err := h.ForEachRef("refs/cinnabar", notesRef)
	if err != nil {
		return nil, err
	}
	var broken string
	for _, ref := range refs {
		switch {
		case strings.HasPrefix(ref.Name, replaceRefPrefix):
			// Replace refs are filled from the metadata tree.
		case ref.Name == metadataRef:
			s.metadataSHA1 = ref.SHA1
		case ref.Name == brokenRef:
			broken = ref.SHA1
		}
	}
	s.broken = broken != "" && s.metadataSHA1 != "" && broken == s.metadataSHA1
	s.hasMetadata = s.metadataSHA1 != ""
	if s.hasMetadata {
		for _, ref := range staleTagCacheRefs {
			if err := h.DeleteRef(ref); err != nil {
				return nil, err
			}
		}
	}
	s.logger.Debug("store open",
		"metadata", s.metadataSHA1, "broken", s.broken)
	return s, nil
}

// HasMetadata reports whether bridge metadata already exists in this
// repository.
func (s *Store) HasMetadata() bool { return s.hasMetadata }

// Broken reports whether the current metadata is flagged broken.
func (s *Store) Broken() bool { return s.broken }

// Grafting reports whether PrepareGraft has run this session.
func (s *Store) Grafting() bool { return s.graft }

// Metadata returns the bridge metadata commit, or nil when none exists.
func (s *Store) Metadata() (*GitCommit, error) {
	if s.metadataSHA1 == "" {
		return nil, nil
	}
	return s.GitCommit(s.metadataSHA1)
}

// Heads returns the changeset nodes flagged as heads by the helper,
// optionally filtered to a branch set.
func (s *Store) Heads(branches ...string) ([]hg.Node, error) {
	refs, err := s.helper.Heads("changesets")
	if err != nil {
		return nil, err
	}
	var filter map[string]bool
	if len(branches) > 0 {
		filter = make(map[string]bool, len(branches))
		for _, b := range branches {
			filter[b] = true
		}
	}
	var heads []hg.Node
	for _, ref := range refs {
		if filter == nil || filter[ref.Branch] {
			heads = append(heads, ref.Node)
		}
	}
	return heads, nil
}

// Changeset constructs the fully populated changeset for an hg node.
func (s *Store) Changeset(node hg.Node) (*hg.Changeset, error) {
	return s.changesetAny(string(node))
}

// ChangesetByGit constructs the changeset associated with a git commit.
func (s *Store) ChangesetByGit(sha1 string) (*hg.Changeset, error) {
	return s.changesetAny("git:" + sha1)
}

func (s *Store) changesetAny(id string) (*hg.Changeset, error) {
	node, p1, p2, raw, err := s.helper.RawChangeset(id)
	if err != nil {
		return nil, err
	}
	cs := hg.NewChangeset(node, p1, p2)
	if err := cs.SetData(raw); err != nil {
		return nil, err
	}
	return cs, nil
}

// HgChangeset recovers the hg changeset node attached to a git commit,
// or the null node when the commit has no counterpart.
func (s *Store) HgChangeset(sha1 string) (hg.Node, error) {
	data, found, err := s.helper.Git2Hg(sha1)
	if err != nil {
		return hg.NullNode, err
	}
	if !found {
		return hg.NullNode, nil
	}
	const prefix = "changeset "
	if len(data) < len(prefix)+40 || string(data[:len(prefix)]) != prefix {
		return hg.NullNode, fmt.Errorf("store: malformed changeset metadata for %s", sha1)
	}
	return hg.ParseNode(data[len(prefix) : len(prefix)+40])
}

// HgManifest recovers the hg manifest node recorded in the body of a
// manifest-tracking git commit.
func (s *Store) HgManifest(sha1 string) (hg.Node, error) {
	commit, err := s.GitCommit(sha1)
	if err != nil {
		return hg.NullNode, err
	}
	node, err := hg.ParseNode([]byte(commit.Body))
	if err != nil {
		return hg.NullNode, fmt.Errorf("store: commit %s body is not a manifest node: %w", sha1, err)
	}
	return node, nil
}

// Manifest constructs the manifest for an hg node. With includeParents,
// the parent manifest nodes are chased through the corresponding git
// commit's parents.
func (s *Store) Manifest(node hg.Node, includeParents bool) (*hg.Manifest, error) {
	raw, err := s.helper.Manifest(node)
	if err != nil {
		return nil, err
	}
	m := hg.NewManifest(node, hg.NullNode, hg.NullNode)
	if err := m.SetData(raw); err != nil {
		return nil, err
	}
	if includeParents {
		gitSHA1, err := s.ManifestRef(node)
		if err != nil {
			return nil, err
		}
		if gitSHA1 == "" {
			return nil, fmt.Errorf("store: manifest %s has no git counterpart", node)
		}
		commit, err := s.GitCommit(gitSHA1)
		if err != nil {
			return nil, err
		}
		parents := make([]hg.Node, 0, len(commit.Parents))
		for _, p := range commit.Parents {
			mp, err := s.HgManifest(p)
			if err != nil {
				return nil, err
			}
			parents = append(parents, mp)
		}
		m.SetParents(parents...)
	}
	return m, nil
}

// hg2git resolves an hg node to its git sha1 through the helper; ""
// cleanly signals a miss.
func (s *Store) hg2git(node hg.Node) (string, error) {
	sha1, err := s.helper.Hg2Git(node)
	if err != nil {
		return "", err
	}
	if sha1 == string(hg.NullNode) {
		return "", nil
	}
	return sha1, nil
}

// ChangesetRef resolves a changeset node to its git commit sha1.
func (s *Store) ChangesetRef(node hg.Node) (string, error) {
	return s.hg2git(node)
}

// ManifestRef resolves a manifest node to its git commit sha1.
func (s *Store) ManifestRef(node hg.Node) (string, error) {
	return s.hg2git(node)
}

// GitFileRef resolves a file node to its git blob sha1. The empty file
// and the empty manifest share one node, so that node is never stored in
// the mapping; it hard-resolves to the empty blob without a helper
// round-trip.
func (s *Store) GitFileRef(node hg.Node) (string, error) {
	if node == hg.EmptyFileNode {
		return EmptyBlob, nil
	}
	return s.hg2git(node)
}

// PrepareGraft signals the helper to begin tracking graft candidates.
// One-shot; not reversible within a session.
func (s *Store) PrepareGraft() error {
	if err := s.helper.GraftInit(); err != nil {
		return err
	}
	s.graft = true
	return nil
}

// Close finalizes the session. It is idempotent, no-ops when the helper
// is already gone, and maps a non-ok finalize status to ErrSilentAbort.
func (s *Store) Close(refresh ...string) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.helper.Closed() {
		return nil
	}
	status, err := s.helper.DoneAndCheck(refresh...)
	if err != nil {
		return err
	}
	if status != "ok" {
		s.logger.Debug("finalize rejected", "status", status)
		return ErrSilentAbort
	}
	return nil
}
