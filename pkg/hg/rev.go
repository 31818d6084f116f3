package hg

import "fmt"

// Rev carries the identity and parentage common to every revision object.
// It is embedded in File, Changeset and Manifest.
type Rev struct {
	Node      Node
	Parent1   Node
	Parent2   Node
	Changeset Node
}

func newRev(node, parent1, parent2, changeset Node) Rev {
	return Rev{
		Node:      orNull(node),
		Parent1:   orNull(parent1),
		Parent2:   orNull(parent2),
		Changeset: orNull(changeset),
	}
}

func orNull(n Node) Node {
	if n == "" {
		return NullNode
	}
	return n
}

// Identity returns the embedded Rev; it exists so that concrete object
// types satisfy the Object interface through embedding.
func (r *Rev) Identity() *Rev { return r }

// Parents returns the non-null parents, first parent first.
func (r *Rev) Parents() []Node {
	var out []Node
	for _, p := range []Node{r.Parent1, r.Parent2} {
		if !p.IsNull() {
			out = append(out, p)
		}
	}
	return out
}

// SetParents assigns up to two parents, nulling whichever slot is not
// supplied.
func (r *Rev) SetParents(parents ...Node) {
	if len(parents) > 2 {
		panic(fmt.Sprintf("hg: revision cannot have %d parents", len(parents)))
	}
	r.Parent1 = NullNode
	r.Parent2 = NullNode
	if len(parents) > 0 {
		r.Parent1 = orNull(parents[0])
	}
	if len(parents) > 1 {
		r.Parent2 = orNull(parents[1])
	}
}

// Object is implemented by the three revision object types. Data returns
// the canonical serialized payload; SetData parses one. Neither validates
// the payload against the recorded node: callers checking round-trip
// integrity compare SHA1 against the node explicitly.
type Object interface {
	Identity() *Rev
	Data() []byte
	SetData(data []byte) error
}

// SHA1 computes the content hash of obj from its parents and serialized
// payload. Supplying the parents in either order yields the same hash.
func SHA1(obj Object) (Node, error) {
	r := obj.Identity()
	return checksum(r.Parent1, r.Parent2, obj.Data())
}

// CorruptRevisionError reports a revision payload that does not conform to
// its type's serialization grammar, preserving the offending node.
type CorruptRevisionError struct {
	Node Node
	Err  error
}

func (e *CorruptRevisionError) Error() string {
	return fmt.Sprintf("hg: corrupt revision %s: %v", e.Node, e.Err)
}

func (e *CorruptRevisionError) Unwrap() error { return e.Err }
