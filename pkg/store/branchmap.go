package store

import (
	"sort"

	"github.com/odvcencio/hgbridge/pkg/hg"
)

// BranchHeads is one branch's remote-reported head set. Ordered marks the
// heads as chronologically sequenced; a single head is always treated as
// sequenced.
type BranchHeads struct {
	Heads   []hg.Node
	Ordered bool
}

// BranchMap derives, per branch, the ordered head list and a tip: the
// most recent head not resolved to a closed changeset.
type BranchMap struct {
	heads    map[string][]hg.Node
	tips     map[string]hg.Node
	allHeads []hg.Node
}

// NewBranchMap resolves each head against the store and computes tips.
// Branches with an empty name are not recorded. Tips are only derived for
// sequenced head sets; a head not yet known locally cannot be checked for
// closure and is assumed open.
func NewBranchMap(s *Store, remote map[string]BranchHeads, remoteHeads []hg.Node) (*BranchMap, error) {
	bm := &BranchMap{
		heads:    make(map[string][]hg.Node),
		tips:     make(map[string]hg.Node),
		allHeads: append([]hg.Node(nil), remoteHeads...),
	}
	for branch, bh := range remote {
		if branch == "" {
			continue
		}
		sequenced := bh.Ordered || len(bh.Heads) == 1
		known := make(map[hg.Node]bool, len(bh.Heads))
		for _, head := range bh.Heads {
			sha1, err := s.ChangesetRef(head)
			if err != nil {
				return nil, err
			}
			if sha1 != "" {
				known[head] = true
			}
		}
		bm.heads[branch] = append([]hg.Node(nil), bh.Heads...)
		if !sequenced {
			continue
		}
		for i := len(bh.Heads) - 1; i >= 0; i-- {
			head := bh.Heads[i]
			if known[head] {
				cs, err := s.Changeset(head)
				if err != nil {
					return nil, err
				}
				if cs.Close() != "" {
					continue
				}
			}
			bm.tips[branch] = head
			break
		}
	}
	return bm, nil
}

// Names returns the recorded branch names, sorted.
func (bm *BranchMap) Names() []string {
	names := make([]string, 0, len(bm.heads))
	for name := range bm.heads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Heads returns one branch's head list, or nil for an unknown branch.
func (bm *BranchMap) Heads(branch string) []hg.Node {
	return bm.heads[branch]
}

// AllHeads returns the full unfiltered remote head set.
func (bm *BranchMap) AllHeads() []hg.Node {
	return bm.allHeads
}

// Tip returns the branch tip when one could be derived.
func (bm *BranchMap) Tip(branch string) (hg.Node, bool) {
	tip, ok := bm.tips[branch]
	return tip, ok
}
