package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Product is the on-chain record of a product batch.
type Product struct {
	ID                 string
	BatchNumber        string
	ProductType        string
	Origin             string
	ProductionDate     time.Time
	Quantity           *big.Int
	Owner              common.Address
	Status             uint8
	Price              *big.Int // wei
	HasPendingTransfer bool
}

// Exists reports whether the contract returned a populated record.
// Unknown ids come back zero valued rather than reverting.
func (p *Product) Exists() bool {
	return p != nil && p.BatchNumber != ""
}

// PendingTransfer is the single open transfer of a product.
type PendingTransfer struct {
	ProductID string
	From      common.Address
	To        common.Address
	Quantity  *big.Int
}

// Exists reports whether a transfer is open. The contract stores a zero
// recipient when there is none.
func (t PendingTransfer) Exists() bool {
	return t.To != (common.Address{})
}

func (c *Contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, c.fail(method, err)
	}
	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func productFromValues(id string, v []interface{}) (*Product, error) {
	if len(v) < 8 {
		return nil, fmt.Errorf("product tuple has %d values", len(v))
	}
	p := &Product{ID: id}
	var ok [8]bool
	p.BatchNumber, ok[0] = v[0].(string)
	p.ProductType, ok[1] = v[1].(string)
	p.Origin, ok[2] = v[2].(string)
	var date *big.Int
	date, ok[3] = v[3].(*big.Int)
	p.Quantity, ok[4] = v[4].(*big.Int)
	p.Owner, ok[5] = v[5].(common.Address)
	p.Status, ok[6] = v[6].(uint8)
	p.Price, ok[7] = v[7].(*big.Int)
	for i, good := range ok {
		if !good {
			return nil, fmt.Errorf("product tuple value %d has type %T", i, v[i])
		}
	}
	p.ProductionDate = time.Unix(date.Int64(), 0).UTC()
	if len(v) > 8 {
		p.HasPendingTransfer, _ = v[8].(bool)
	}
	return p, nil
}

// GetProduct reads getProduct(id).
func (c *Contract) GetProduct(ctx context.Context, id string) (*Product, error) {
	key, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	v, err := c.call(ctx, MethodGetProduct, key)
	if err != nil {
		return nil, err
	}
	return productFromValues(FormatID(key), v)
}

// GetProductState reads getProductState(id), which adds the pending
// transfer flag to the product record.
func (c *Contract) GetProductState(ctx context.Context, id string) (*Product, error) {
	key, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	v, err := c.call(ctx, MethodGetProductState, key)
	if err != nil {
		return nil, err
	}
	return productFromValues(FormatID(key), v)
}

// ProductExists reads productExists(id).
func (c *Contract) ProductExists(ctx context.Context, id string) (bool, error) {
	key, err := ParseID(id)
	if err != nil {
		return false, err
	}
	v, err := c.call(ctx, MethodProductExists, key)
	if err != nil {
		return false, err
	}
	exists, _ := v[0].(bool)
	return exists, nil
}

// ProductCount reads getProductCount().
func (c *Contract) ProductCount(ctx context.Context) (uint64, error) {
	v, err := c.call(ctx, MethodGetProductCount)
	if err != nil {
		return 0, err
	}
	n, ok := v[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("getProductCount returned %T", v[0])
	}
	return n.Uint64(), nil
}

// ProductIDByIndex reads getProductIdByIndex(i).
func (c *Contract) ProductIDByIndex(ctx context.Context, i uint64) (string, error) {
	v, err := c.call(ctx, MethodGetProductIDByIndex, new(big.Int).SetUint64(i))
	if err != nil {
		return "", err
	}
	id, ok := v[0].([32]byte)
	if !ok {
		return "", fmt.Errorf("getProductIdByIndex returned %T", v[0])
	}
	return FormatID(id), nil
}

// PendingTransfer reads pendingTransfers(id).
func (c *Contract) PendingTransfer(ctx context.Context, id string) (PendingTransfer, error) {
	key, err := ParseID(id)
	if err != nil {
		return PendingTransfer{}, err
	}
	v, err := c.call(ctx, MethodPendingTransfers, key)
	if err != nil {
		return PendingTransfer{}, err
	}
	t := PendingTransfer{ProductID: FormatID(key)}
	t.From, _ = v[0].(common.Address)
	t.To, _ = v[1].(common.Address)
	t.Quantity, _ = v[2].(*big.Int)
	return t, nil
}

// IdentifierToAddress resolves a registered user identifier.
// The zero address means the identifier is not registered.
func (c *Contract) IdentifierToAddress(ctx context.Context, identifier string) (common.Address, error) {
	v, err := c.call(ctx, MethodIdentifierToAddress, identifier)
	if err != nil {
		return common.Address{}, err
	}
	addr, _ := v[0].(common.Address)
	return addr, nil
}

// AddressToIdentifier resolves the identifier registered by account.
// Empty means none.
func (c *Contract) AddressToIdentifier(ctx context.Context, account common.Address) (string, error) {
	v, err := c.call(ctx, MethodAddressToIdentifier, account)
	if err != nil {
		return "", err
	}
	ident, _ := v[0].(string)
	return ident, nil
}
