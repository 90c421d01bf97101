// Package txn groups graph mutations into all-or-nothing transactions.
//
// A transaction is opened with Manager.Run and travels in the context passed
// to the callback. Every successful mutation inside it registers an
// Operation describing how to compensate for it. When the callback returns
// nil the transaction commits and the operations are discarded. When it
// returns an error or panics, the operations are compensated in strict
// reverse order and the original error (or panic) is propagated.
//
// Compensation failures do not stop the rollback and never replace the
// original error. They are logged at ERROR, counted, and kept on the
// transaction, because each one means the graph may be left inconsistent.
//
// Transactions do not nest. Calling Run with a context that already carries
// an active transaction fails with ErrNested.
package txn
