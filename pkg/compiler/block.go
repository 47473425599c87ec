package compiler

// BlockKind tags a control-flow block variant. The set is closed; the
// emitter dispatches on it with an exhaustive switch.
type BlockKind int

const (
	// BlockSequence is an ordered list of child blocks.
	BlockSequence BlockKind = iota
	// BlockLeaf is a single sequential node.
	BlockLeaf
	// BlockBranch is a two-way conditional split.
	BlockBranch
	// BlockMultiBranch is an N-way split with an optional default.
	BlockMultiBranch
	// BlockFork is a parallel fan-out re-joined at a single node.
	BlockFork
	// BlockLoop is an iteration over a collection.
	BlockLoop
	// BlockGuarded is a try/catch region.
	BlockGuarded
)

// String returns the variant name.
func (k BlockKind) String() string {
	switch k {
	case BlockSequence:
		return "sequence"
	case BlockLeaf:
		return "leaf"
	case BlockBranch:
		return "branch"
	case BlockMultiBranch:
		return "multibranch"
	case BlockFork:
		return "fork"
	case BlockLoop:
		return "loop"
	case BlockGuarded:
		return "guarded"
	default:
		return "unknown"
	}
}

// Case is one arm of a MultiBranch block.
type Case struct {
	Match string
	Body  *Block
}

// Block is the compiler-internal control-flow tree built by the
// resolver and consumed by the emitter. One tree is allocated per
// compilation run and never shared.
//
// Only the fields of the tagged variant are populated; all others stay
// zero. A nil body (e.g. an empty else arm) is a valid empty region.
type Block struct {
	Kind BlockKind

	// BlockLeaf
	NodeID string

	// BlockSequence
	Children []*Block

	// BlockBranch
	Expression string
	Then       *Block
	Else       *Block

	// BlockMultiBranch
	Variable string
	Cases    []Case
	Default  *Block

	// BlockFork
	Branches []*Block
	JoinID   string

	// BlockLoop
	Collection string
	Item       string
	Body       *Block

	// BlockGuarded
	Try      *Block
	Catch    *Block
	ErrorVar string
}

// Leaves returns the node IDs of every leaf in the tree, in emission
// order. Used by tests and by the facade to detect empty lowerings.
func (b *Block) Leaves() []string {
	if b == nil {
		return nil
	}
	var ids []string
	switch b.Kind {
	case BlockLeaf:
		ids = append(ids, b.NodeID)
	case BlockSequence:
		for _, c := range b.Children {
			ids = append(ids, c.Leaves()...)
		}
	case BlockBranch:
		ids = append(ids, b.Then.Leaves()...)
		ids = append(ids, b.Else.Leaves()...)
	case BlockMultiBranch:
		for _, c := range b.Cases {
			ids = append(ids, c.Body.Leaves()...)
		}
		ids = append(ids, b.Default.Leaves()...)
	case BlockFork:
		for _, br := range b.Branches {
			ids = append(ids, br.Leaves()...)
		}
	case BlockLoop:
		ids = append(ids, b.Body.Leaves()...)
	case BlockGuarded:
		ids = append(ids, b.Try.Leaves()...)
		ids = append(ids, b.Catch.Leaves()...)
	}
	return ids
}
