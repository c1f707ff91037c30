// Package chaintest provides an in-memory stand-in for an Ethereum node
// running the traceability contract, and a scriptable wallet.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// ChainID of the simulated network.
var ChainID = big.NewInt(1337)

// ContractAddress is where the simulated contract lives.
var ContractAddress = common.HexToAddress(chain.DefaultContractAddress)

// RevertError mimics the JSON-RPC error a node returns when a call reverts.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string  { return "execution reverted: " + e.Reason }
func (e *RevertError) ErrorCode() int { return 3 }

type product struct {
	id        [32]byte
	batch     string
	ptype     string
	origin    string
	date      *big.Int
	quantity  *big.Int
	owner     common.Address
	status    uint8
	price     *big.Int
	createdAt uint64
}

type pending struct {
	from, to common.Address
	quantity *big.Int
}

// Backend simulates a node with the contract deployed. Transactions are
// mined on receipt and their effects are visible immediately.
type Backend struct {
	mu  sync.Mutex
	abi abi.ABI

	products    map[[32]byte]*product
	order       [][32]byte
	pending     map[[32]byte]pending
	identToAddr map[string]common.Address
	addrToIdent map[common.Address]string

	nonces   map[common.Address]uint64
	balances map[common.Address]*big.Int
	receipts map[common.Hash]*types.Receipt
	logs     []types.Log
	sent     []*types.Transaction
	block    uint64

	// GasEstimate is returned by EstimateGas for every call.
	GasEstimate uint64
	// GasPrice is returned by SuggestGasPrice.
	GasPrice *big.Int
	// ReceiptDelay is the number of receipt polls answered with NotFound
	// before a transaction shows as mined.
	ReceiptDelay int
	// ForceRevert makes the next mined transaction fail with status 0
	// even though gas estimation succeeded.
	ForceRevert bool
	// SendErr is returned by SendTransaction when set.
	SendErr error
	// CallErr is returned by CallContract when set.
	CallErr error

	receiptPolls map[common.Hash]int
	calls        map[string]int
}

// NewBackend creates an empty chain.
func NewBackend() *Backend {
	parsed, err := chain.ABI()
	if err != nil {
		panic(err)
	}
	return &Backend{
		abi:          parsed,
		products:     map[[32]byte]*product{},
		pending:      map[[32]byte]pending{},
		identToAddr:  map[string]common.Address{},
		addrToIdent:  map[common.Address]string{},
		nonces:       map[common.Address]uint64{},
		balances:     map[common.Address]*big.Int{},
		receipts:     map[common.Hash]*types.Receipt{},
		receiptPolls: map[common.Hash]int{},
		calls:        map[string]int{},
		GasEstimate:  100003,
		GasPrice:     big.NewInt(1_000_000_000),
	}
}

// Fund sets the balance of account.
func (b *Backend) Fund(account common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = new(big.Int).Set(wei)
}

// Register maps an identifier to an address directly, as if registerUser
// had been mined earlier.
func (b *Backend) Register(identifier string, account common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.identToAddr[identifier] = account
	b.addrToIdent[account] = identifier
}

// Sent returns the transactions accepted so far.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// Calls returns how many times a node method was called.
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// ProductIDs returns the ids of created products in creation order.
func (b *Backend) ProductIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, len(b.order))
	for i, id := range b.order {
		ids[i] = chain.FormatID(id)
	}
	return ids
}

func (b *Backend) count(method string) {
	b.calls[method]++
}

func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_call")
	if b.CallErr != nil {
		return nil, b.CallErr
	}
	method, args, err := b.decode(msg.Data)
	if err != nil {
		return nil, err
	}
	out, err := b.view(method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (b *Backend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_estimateGas")
	method, args, err := b.decode(msg.Data)
	if err != nil {
		return 0, err
	}
	if _, err := b.execute(msg.From, msgValue(msg.Value), method.Name, args, true); err != nil {
		return 0, err
	}
	return b.GasEstimate, nil
}

func msgValue(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(ChainID), nil
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

// SendTransaction recovers the sender, runs the call and mines it.
func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_sendRawTransaction")
	if b.SendErr != nil {
		return b.SendErr
	}
	from, err := types.Sender(types.LatestSignerForChainID(ChainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.Nonce() != b.nonces[from] {
		return errors.New("nonce too low")
	}
	b.nonces[from]++
	b.sent = append(b.sent, tx)
	b.block++

	status := types.ReceiptStatusSuccessful
	var logs []*types.Log
	method, args, err := b.decode(tx.Data())
	if err == nil && !b.ForceRevert {
		logs, err = b.execute(from, tx.Value(), method.Name, args, false)
	}
	if err != nil || b.ForceRevert {
		status = types.ReceiptStatusFailed
		logs = nil
		b.ForceRevert = false
	}

	for i, l := range logs {
		l.TxHash = tx.Hash()
		l.BlockNumber = b.block
		l.Index = uint(len(b.logs) + i)
	}
	for _, l := range logs {
		b.logs = append(b.logs, *l)
	}
	b.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.block),
		GasUsed:     tx.Gas() * 8 / 10,
		Logs:        logs,
	}
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_getTransactionReceipt")
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if b.receiptPolls[hash] < b.ReceiptDelay {
		b.receiptPolls[hash]++
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_getLogs")
	var out []types.Log
	for _, l := range b.logs {
		if len(q.Addresses) > 0 && !containsAddr(q.Addresses, l.Address) {
			continue
		}
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if matchTopics(q.Topics, l.Topics) {
			out = append(out, l)
		}
	}
	return out, nil
}

func containsAddr(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func matchTopics(filter [][]common.Hash, topics []common.Hash) bool {
	if len(filter) > len(topics) {
		return false
	}
	for i, alternatives := range filter {
		if len(alternatives) == 0 {
			continue
		}
		ok := false
		for _, h := range alternatives {
			if h == topics[i] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (b *Backend) decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("missing method selector")
	}
	method, err := b.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func (b *Backend) view(name string, args []interface{}) ([]interface{}, error) {
	switch name {
	case chain.MethodGetProduct, "getProductByBlockchainId", "products":
		p := b.products[args[0].([32]byte)]
		return productTuple(p, false, false), nil
	case chain.MethodGetProductState:
		id := args[0].([32]byte)
		_, hasPending := b.pending[id]
		return productTuple(b.products[id], true, hasPending), nil
	case chain.MethodProductExists:
		_, ok := b.products[args[0].([32]byte)]
		return []interface{}{ok}, nil
	case chain.MethodGetProductCount:
		return []interface{}{big.NewInt(int64(len(b.order)))}, nil
	case chain.MethodGetProductIDByIndex:
		i := args[0].(*big.Int)
		if !i.IsUint64() || i.Uint64() >= uint64(len(b.order)) {
			return nil, &RevertError{Reason: "index out of bounds"}
		}
		return []interface{}{b.order[i.Uint64()]}, nil
	case chain.MethodPendingTransfers:
		p := b.pending[args[0].([32]byte)]
		q := p.quantity
		if q == nil {
			q = new(big.Int)
		}
		return []interface{}{p.from, p.to, q}, nil
	case chain.MethodIdentifierToAddress, "getAddressFromIdentifier":
		return []interface{}{b.identToAddr[args[0].(string)]}, nil
	case chain.MethodAddressToIdentifier, "getIdentifierFromAddress":
		return []interface{}{b.addrToIdent[args[0].(common.Address)]}, nil
	}
	return nil, fmt.Errorf("view %s not simulated", name)
}

func productTuple(p *product, withPending, hasPending bool) []interface{} {
	if p == nil {
		p = &product{date: new(big.Int), quantity: new(big.Int), price: new(big.Int)}
	}
	out := []interface{}{p.batch, p.ptype, p.origin, p.date, p.quantity, p.owner, p.status, p.price}
	if withPending {
		out = append(out, hasPending)
	}
	return out
}

// execute validates and, unless dryRun, applies a state-changing call.
func (b *Backend) execute(from common.Address, value *big.Int, name string, args []interface{}, dryRun bool) ([]*types.Log, error) {
	switch name {
	case chain.MethodCreateProduct:
		batch := args[0].(string)
		if batch == "" {
			return nil, &RevertError{Reason: "batch number required"}
		}
		id := [32]byte(crypto.Keccak256Hash([]byte(batch), from.Bytes(), big.NewInt(int64(len(b.order))).Bytes()))
		if dryRun {
			return nil, nil
		}
		p := &product{
			id: id, batch: batch, ptype: args[1].(string), origin: args[2].(string),
			date: args[3].(*big.Int), quantity: args[4].(*big.Int), price: args[5].(*big.Int),
			owner: from, createdAt: b.block,
		}
		b.products[id] = p
		b.order = append(b.order, id)
		return b.emit(chain.EventProductCreated, id, batch, from), nil

	case chain.MethodUpdateProductStatus:
		id := args[0].([32]byte)
		p, err := b.owned(id, from)
		if err != nil {
			return nil, err
		}
		newStatus := args[1].(uint8)
		if newStatus > 7 {
			return nil, &RevertError{Reason: "invalid status"}
		}
		if dryRun {
			return nil, nil
		}
		old := p.status
		p.status = newStatus
		return b.emit(chain.EventStatusUpdated, id, old, newStatus), nil

	case chain.MethodUpdateProductInfo:
		id := args[0].([32]byte)
		if _, err := b.owned(id, from); err != nil {
			return nil, err
		}
		if dryRun {
			return nil, nil
		}
		return b.emit(chain.EventProductInfoUpdated, id, args[1].(string)), nil

	case chain.MethodInitiateTransfer:
		id := args[0].([32]byte)
		if _, err := b.owned(id, from); err != nil {
			return nil, err
		}
		if _, busy := b.pending[id]; busy {
			return nil, &RevertError{Reason: "transfer already pending"}
		}
		to, ok := b.identToAddr[args[1].(string)]
		if !ok {
			return nil, &RevertError{Reason: "recipient not registered"}
		}
		qty := args[2].(*big.Int)
		if dryRun {
			return nil, nil
		}
		b.pending[id] = pending{from: from, to: to, quantity: qty}
		return b.emit(chain.EventTransferInitiated, id, from, to, qty), nil

	case chain.MethodAcceptTransfer:
		id := args[0].([32]byte)
		t, ok := b.pending[id]
		if !ok {
			return nil, &RevertError{Reason: "no pending transfer"}
		}
		if t.to != from {
			return nil, &RevertError{Reason: "not the recipient"}
		}
		if dryRun {
			return nil, nil
		}
		delete(b.pending, id)
		b.products[id].owner = from
		logs := b.emit(chain.EventTransferAccepted, id, t.from, t.to, t.quantity)
		return append(logs, b.emit(chain.EventOwnershipTransferred, id, t.from, t.to, t.quantity)...), nil

	case chain.MethodCancelTransfer:
		id := args[0].([32]byte)
		t, ok := b.pending[id]
		if !ok {
			return nil, &RevertError{Reason: "no pending transfer"}
		}
		if t.from != from {
			return nil, &RevertError{Reason: "not the initiator"}
		}
		if dryRun {
			return nil, nil
		}
		delete(b.pending, id)
		return b.emit(chain.EventTransferCancelled, id), nil

	case chain.MethodTriggerPayment:
		id := args[0].([32]byte)
		p, ok := b.products[id]
		if !ok {
			return nil, &RevertError{Reason: "product does not exist"}
		}
		if dryRun {
			return nil, nil
		}
		return b.emit(chain.EventPaymentTriggered, id, from, p.owner, value), nil

	case chain.MethodRegisterUser:
		ident := args[0].(string)
		if _, taken := b.identToAddr[ident]; taken {
			return nil, &RevertError{Reason: "identifier taken"}
		}
		if _, has := b.addrToIdent[from]; has {
			return nil, &RevertError{Reason: "address already registered"}
		}
		if dryRun {
			return nil, nil
		}
		b.identToAddr[ident] = from
		b.addrToIdent[from] = ident
		return b.emit(chain.EventUserRegistered, ident, from), nil

	case chain.MethodUpdateProductOwnerAddress:
		id := args[0].([32]byte)
		p, ok := b.products[id]
		if !ok {
			return nil, &RevertError{Reason: "product does not exist"}
		}
		if dryRun {
			return nil, nil
		}
		p.owner = from
		return nil, nil
	}
	return nil, fmt.Errorf("method %s not simulated", name)
}

func (b *Backend) owned(id [32]byte, from common.Address) (*product, error) {
	p, ok := b.products[id]
	if !ok {
		return nil, &RevertError{Reason: "product does not exist"}
	}
	if p.owner != from {
		return nil, &RevertError{Reason: "caller is not the owner"}
	}
	return p, nil
}

// emit encodes an event log. values follow the ABI input order.
func (b *Backend) emit(name string, values ...interface{}) []*types.Log {
	ev := b.abi.Events[name]
	topics := []common.Hash{ev.ID}
	var data []interface{}
	for i, arg := range ev.Inputs {
		if !arg.Indexed {
			data = append(data, values[i])
			continue
		}
		switch v := values[i].(type) {
		case [32]byte:
			topics = append(topics, common.Hash(v))
		case common.Address:
			topics = append(topics, common.BytesToHash(v.Bytes()))
		default:
			panic(fmt.Sprintf("indexed %T not supported", v))
		}
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(err)
	}
	return []*types.Log{{Address: ContractAddress, Topics: topics, Data: packed}}
}
