// Package chain wraps the NFT contract operations the coordinator needs:
// finalizing a mint with the generated artifact URI and reading token
// state for the enqueue response.
package chain

import (
	"context"
	"errors"
)

// Error definitions for the chain package.
var (
	// ErrFinalizeReverted is returned when the finalizeMint transaction
	// mines but the receipt reports failure.
	ErrFinalizeReverted = errors.New("finalizeMint transaction reverted")

	// ErrTokenNotMinted is returned by read calls against a token the
	// contract has not minted yet.
	ErrTokenNotMinted = errors.New("token is not minted")
)

// Receipt reports a mined finalizeMint transaction.
type Receipt struct {
	TxHash      string
	BlockNumber int64
}

// Finalizer is the contract capability surface the dispatcher and the
// enqueue path depend on.
type Finalizer interface {
	// FinalizeMint writes the artifact URI on chain and waits for the
	// transaction to mine. It returns the mined transaction's hash and
	// block number.
	FinalizeMint(ctx context.Context, tokenID int64, uri string) (*Receipt, error)

	// TokenURI reads the current artifact URI of a token.
	TokenURI(ctx context.Context, tokenID int64) (string, error)

	// OwnerOf reads the current owner address of a token.
	OwnerOf(ctx context.Context, tokenID int64) (string, error)
}
