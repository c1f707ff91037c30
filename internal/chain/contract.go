package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/metrics"
)

// Backend is the node connection. *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Defaults for receipt polling.
const (
	DefaultReceiptTimeout = 2 * time.Minute
	DefaultReceiptPoll    = 2 * time.Second
)

// Call describes one state-changing contract invocation.
type Call struct {
	Method string
	Args   []interface{}
	Value  *big.Int // wei sent with payable methods
	Role   string   // selects a role specific gas policy
}

// Submission is a signed transaction accepted by the node.
type Submission struct {
	Hash        common.Hash
	Method      string
	From        common.Address
	Nonce       uint64
	GasEstimate uint64
	GasLimit    uint64
	SubmittedAt time.Time
}

// TxResult is a mined, successful transaction with its decoded events.
type TxResult struct {
	Submission
	Receipt *types.Receipt
	Events  []Event
}

// Contract is a proxy for the traceability contract at one address.
type Contract struct {
	backend  Backend
	address  common.Address
	abi      abi.ABI
	gas      GasPolicies
	clock    clock.Clock
	timeout  time.Duration
	poll     time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger
	logsFrom uint64
}

// ContractOption configures a Contract.
type ContractOption func(*Contract)

// WithGasPolicies overrides the default gas buffers.
func WithGasPolicies(g GasPolicies) ContractOption {
	return func(c *Contract) { c.gas = g }
}

// WithReceiptPolling sets how often and how long WaitReceipt polls.
func WithReceiptPolling(poll, timeout time.Duration) ContractOption {
	return func(c *Contract) {
		c.poll = poll
		c.timeout = timeout
	}
}

// WithContractClock replaces the real clock.
func WithContractClock(clk clock.Clock) ContractOption {
	return func(c *Contract) { c.clock = clk }
}

// WithContractMetrics records gas and error metrics.
func WithContractMetrics(m *metrics.Metrics) ContractOption {
	return func(c *Contract) { c.metrics = m }
}

// WithContractLogger sets the logger.
func WithContractLogger(l zerolog.Logger) ContractOption {
	return func(c *Contract) { c.log = l }
}

// WithLogsFromBlock sets the first block scanned by log queries, usually
// the deployment block.
func WithLogsFromBlock(n uint64) ContractOption {
	return func(c *Contract) { c.logsFrom = n }
}

// NewContract binds the embedded ABI to address.
func NewContract(backend Backend, address common.Address, opts ...ContractOption) (*Contract, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, err
	}
	c := &Contract{
		backend: backend,
		address: address,
		abi:     parsed,
		gas:     DefaultGasPolicies(),
		clock:   clock.NewRealClock(),
		timeout: DefaultReceiptTimeout,
		poll:    DefaultReceiptPoll,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Backend returns the node connection.
func (c *Contract) Backend() Backend {
	return c.backend
}

func (c *Contract) fail(op string, err error) error {
	classified := Classify(op, err)
	c.metrics.ChainError(op, KindName(classified))
	return classified
}

// Submit estimates gas, applies the gas policy, signs with signer and sends.
// It returns as soon as the node accepts the transaction.
func (c *Contract) Submit(ctx context.Context, from common.Address, signer bind.SignerFn, call Call) (*Submission, error) {
	if signer == nil {
		return nil, newError(ErrNotConnected, call.Method, nil)
	}
	data, err := c.abi.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", call.Method, err)
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	msg := ethereum.CallMsg{From: from, To: &c.address, Value: value, Data: data}
	estimate, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, c.fail(call.Method, err)
	}
	policy := c.gas.For(call.Method, call.Role)
	limit := policy.Apply(estimate)

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, c.fail(call.Method, err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, c.fail(call.Method, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      limit,
		To:       &c.address,
		Value:    value,
		Data:     data,
	})
	signed, err := signer(from, tx)
	if err != nil {
		return nil, c.fail(call.Method, err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, c.fail(call.Method, err)
	}

	c.metrics.ObserveGasLimit(call.Method, limit)
	c.log.Debug().
		Str("method", call.Method).
		Str("tx_hash", signed.Hash().Hex()).
		Uint64("gas_estimate", estimate).
		Uint64("gas_limit", limit).
		Str("gas_policy", policy.String()).
		Msg("transaction submitted")

	return &Submission{
		Hash:        signed.Hash(),
		Method:      call.Method,
		From:        from,
		Nonce:       nonce,
		GasEstimate: estimate,
		GasLimit:    limit,
		SubmittedAt: c.clock.Now(),
	}, nil
}

// WaitReceipt polls for the receipt of hash until it is mined, the context
// ends or the receipt timeout elapses. A mined transaction with a failed
// status returns the receipt together with ErrReverted.
func (c *Contract) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	deadline := c.clock.After(c.timeout)
	var lastErr error
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, newError(ErrReverted, "receipt", fmt.Errorf("tx %s", hash.Hex()))
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			lastErr = err
			c.log.Debug().Err(err).Str("tx_hash", hash.Hex()).Msg("receipt poll failed")
		}

		select {
		case <-ctx.Done():
			return nil, newError(ErrReceiptTimeout, "receipt", ctx.Err())
		case <-deadline:
			if lastErr == nil {
				lastErr = fmt.Errorf("tx %s not mined after %s", hash.Hex(), c.timeout)
			}
			return nil, newError(ErrReceiptTimeout, "receipt", lastErr)
		case <-c.clock.After(c.poll):
		}
	}
}

// Transact is Submit followed by WaitReceipt. The submission is returned
// even when waiting fails so callers can record the hash.
func (c *Contract) Transact(ctx context.Context, from common.Address, signer bind.SignerFn, call Call) (*TxResult, error) {
	sub, err := c.Submit(ctx, from, signer, call)
	if err != nil {
		return nil, err
	}
	res := &TxResult{Submission: *sub}
	receipt, err := c.WaitReceipt(ctx, sub.Hash)
	res.Receipt = receipt
	if receipt != nil {
		res.Events = c.DecodeLogs(receipt.Logs)
	}
	return res, err
}

// Receipt returns the receipt of hash or nil if it is not mined yet.
func (c *Contract) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, c.fail("receipt", err)
	}
	return receipt, nil
}

// Balance returns the balance of account in wei.
func (c *Contract) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, c.fail("balance", err)
	}
	return bal, nil
}
