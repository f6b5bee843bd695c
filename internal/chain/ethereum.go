package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tabbylabs/mintpipe/internal/config"
)

// mintABI is the fragment of the contract interface the coordinator uses.
const mintABI = `[
	{"name":"finalizeMint","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"uri","type":"string"}],"outputs":[]},
	{"name":"tokenURI","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

// EthereumFinalizer implements Finalizer against a JSON-RPC endpoint using
// a keyed transactor.
type EthereumFinalizer struct {
	logger   *slog.Logger
	client   *ethclient.Client
	contract *bind.BoundContract
	auth     *bind.TransactOpts
	address  common.Address
}

// NewEthereumFinalizer dials the RPC endpoint and binds the contract.
func NewEthereumFinalizer(ctx context.Context, logger *slog.Logger, cfg config.ChainConfig) (*EthereumFinalizer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(mintABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	key, err := crypto.HexToECDSA(cfg.SigningKey)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	contract := bind.NewBoundContract(address, parsed, client, client, client)

	return &EthereumFinalizer{
		logger:   logger,
		client:   client,
		contract: contract,
		auth:     auth,
		address:  address,
	}, nil
}

// FinalizeMint submits the finalizeMint transaction and blocks until it
// mines or ctx expires.
func (f *EthereumFinalizer) FinalizeMint(ctx context.Context, tokenID int64, uri string) (*Receipt, error) {
	opts := *f.auth
	opts.Context = ctx

	tx, err := f.contract.Transact(&opts, "finalizeMint", big.NewInt(tokenID), uri)
	if err != nil {
		return nil, fmt.Errorf("failed to submit finalizeMint for token %d: %w", tokenID, err)
	}

	f.logger.InfoContext(ctx, "finalizeMint submitted",
		"token_id", tokenID,
		"tx_hash", tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, f.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for finalizeMint of token %d: %w", tokenID, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("token %d: %w", tokenID, ErrFinalizeReverted)
	}

	return &Receipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Int64(),
	}, nil
}

// TokenURI reads tokenURI(tokenId) from the contract.
func (f *EthereumFinalizer) TokenURI(ctx context.Context, tokenID int64) (string, error) {
	var out []interface{}
	err := f.contract.Call(&bind.CallOpts{Context: ctx}, &out, "tokenURI", big.NewInt(tokenID))
	if err != nil {
		// ERC-721 reverts reads against unminted tokens.
		return "", fmt.Errorf("token %d: %w", tokenID, ErrTokenNotMinted)
	}
	uri, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected tokenURI result type for token %d", tokenID)
	}
	return uri, nil
}

// OwnerOf reads ownerOf(tokenId) from the contract.
func (f *EthereumFinalizer) OwnerOf(ctx context.Context, tokenID int64) (string, error) {
	var out []interface{}
	err := f.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", big.NewInt(tokenID))
	if err != nil {
		return "", fmt.Errorf("token %d: %w", tokenID, ErrTokenNotMinted)
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("unexpected ownerOf result type for token %d", tokenID)
	}
	return owner.Hex(), nil
}

// Close releases the underlying RPC connection.
func (f *EthereumFinalizer) Close() {
	f.client.Close()
}
