package chain

// GenesisHash is the fixed previousHash of the first event in a ledger.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// State is the chain tip: the hash of the most recently appended event and
// the sequence number the next event will take. It is owned by a single
// Engine and mutated only under its lock, after a successful durable
// append — never from multiple call sites.
type State struct {
	TipHash      string
	NextSequence int64
}
