// ===== Derivations =====

package hypergraph

// Derivation is one node of an unpacked derivation tree: the hyperedge
// taken at its root plus the derivation chosen under each tail. Consumers
// walk Edge and Tail without caring how the choices were made.
type Derivation interface {
	// Edge returns the hyperedge this derivation takes.
	Edge() *Edge

	// Tail returns the derivation chosen under the i-th tail of Edge.
	Tail(i int) Derivation
}
