// Package lookup holds the reads shared by the action use cases: resolving
// a backend product to its on-chain id and decoding stored payloads.
package lookup

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/backend"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChainID returns the normalized on-chain id of a product. A non-empty
// known id is used as is; otherwise the backend record of productRef is
// read and its blockchainId used. Records that were never linked fail with
// domain.ErrProductNotOnChain.
func ChainID(ctx context.Context, rest coordinator.Backend, role domain.Role, productRef, known string) (string, error) {
	if known != "" {
		return chain.NormalizeID(known)
	}
	if productRef == "" {
		return "", domain.ErrProductNotFound
	}
	resp, err := rest.Do(ctx, backend.GetProductRequest(string(role), productRef))
	if err != nil {
		return "", fmt.Errorf("read product %s: %w", productRef, err)
	}
	p, err := backend.DecodeProduct(resp)
	if err != nil {
		return "", fmt.Errorf("read product %s: %w", productRef, err)
	}
	if p.BlockchainID == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrProductNotOnChain, productRef)
	}
	return chain.NormalizeID(p.BlockchainID)
}

// ProductOnChain fails with domain.ErrProductNotFound when the contract has
// no product under id.
func ProductOnChain(ctx context.Context, contract *chain.Contract, id string) error {
	ok, err := contract.ProductExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return nil
}

// Payload decodes the JSON payload stored with action into v.
func Payload(action *domain.Action, v interface{}) error {
	if action.Payload() == "" {
		return fmt.Errorf("action %s has no payload", action.ID())
	}
	if err := json.UnmarshalFromString(action.Payload(), v); err != nil {
		return fmt.Errorf("decode %s payload: %w", action.Kind(), err)
	}
	return nil
}
