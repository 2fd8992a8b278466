package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager runs a group of store calls as one atomic unit.
// Store calls made with the ctx handed to fn join the transaction; any error
// returned by fn rolls every change back.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
