package chain

import "fmt"

// PersistenceError wraps a storage failure on the write path. The chain
// state is left untouched; the caller decides whether a failed audit write
// is fatal to the triggering business operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("chain: persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// InitializationError indicates the prior chain tip could not be
// determined at startup even though history may exist. Startup must fail
// rather than default to genesis, which would let a forged disconnected
// sub-chain be accepted as legitimate.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("chain: cannot initialize chain state from store: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
