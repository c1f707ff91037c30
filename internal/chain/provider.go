package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is the wallet: it owns the accounts and signs for them.
type Provider interface {
	// RequestAccounts asks the wallet for access, which may prompt the user.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts lists the accounts already exposed, without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	// Signer returns a signing function bound to account and chainID.
	Signer(account common.Address, chainID *big.Int) (bind.SignerFn, error)
}

const codeMethodNotFound = -32601

// RPCProvider talks to a wallet that exposes the standard JSON-RPC account
// methods, such as a browser wallet bridge, Clef or a dev node.
type RPCProvider struct {
	client *rpc.Client
}

// NewRPCProvider wraps a JSON-RPC client.
func NewRPCProvider(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

// RequestAccounts calls eth_requestAccounts. Nodes that do not implement it
// fall back to eth_accounts.
func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	err := p.client.CallContext(ctx, &accounts, "eth_requestAccounts")
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeMethodNotFound {
		return p.Accounts(ctx)
	}
	return accounts, err
}

// Accounts calls eth_accounts.
func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	err := p.client.CallContext(ctx, &accounts, "eth_accounts")
	return accounts, err
}

type signTxArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to"`
	Gas      hexutil.Uint64  `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Value    *hexutil.Big    `json:"value"`
	Nonce    hexutil.Uint64  `json:"nonce"`
	Data     hexutil.Bytes   `json:"data"`
	ChainID  *hexutil.Big    `json:"chainId,omitempty"`
}

type signTxResult struct {
	Raw hexutil.Bytes `json:"raw"`
}

// Signer signs through eth_signTransaction so the key never leaves the wallet.
func (p *RPCProvider) Signer(account common.Address, chainID *big.Int) (bind.SignerFn, error) {
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if from != account {
			return nil, bind.ErrNotAuthorized
		}
		args := signTxArgs{
			From:     from,
			To:       tx.To(),
			Gas:      hexutil.Uint64(tx.Gas()),
			GasPrice: (*hexutil.Big)(tx.GasPrice()),
			Value:    (*hexutil.Big)(tx.Value()),
			Nonce:    hexutil.Uint64(tx.Nonce()),
			Data:     tx.Data(),
		}
		if chainID != nil {
			args.ChainID = (*hexutil.Big)(chainID)
		}
		var res signTxResult
		if err := p.client.CallContext(context.Background(), &res, "eth_signTransaction", args); err != nil {
			return nil, err
		}
		signed := new(types.Transaction)
		if err := signed.UnmarshalBinary(res.Raw); err != nil {
			return nil, fmt.Errorf("decode signed transaction: %w", err)
		}
		return signed, nil
	}, nil
}

// KeyProvider holds a single local private key.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	account common.Address
}

// NewKeyProvider wraps an in-memory key.
func NewKeyProvider(key *ecdsa.PrivateKey) *KeyProvider {
	return &KeyProvider{key: key, account: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewKeyProviderFromHex parses a hex private key, with or without 0x.
func NewKeyProviderFromHex(hexKey string) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewKeyProvider(key), nil
}

// NewKeyProviderFromKeystore decrypts an encrypted keystore file.
func NewKeyProviderFromKeystore(path, passphrase string) (*KeyProvider, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	k, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return NewKeyProvider(k.PrivateKey), nil
}

// RequestAccounts returns the key's address. A local key never prompts.
func (p *KeyProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{p.account}, nil
}

// Accounts returns the key's address.
func (p *KeyProvider) Accounts(context.Context) ([]common.Address, error) {
	return []common.Address{p.account}, nil
}

// Signer signs with the local key using the EIP-155 signer for chainID.
func (p *KeyProvider) Signer(account common.Address, chainID *big.Int) (bind.SignerFn, error) {
	if account != p.account {
		return nil, newError(ErrNoAccount, "signer", fmt.Errorf("key does not control %s", account.Hex()))
	}
	opts, err := bind.NewKeyedTransactorWithChainID(p.key, chainID)
	if err != nil {
		return nil, err
	}
	return opts.Signer, nil
}

// Address returns the account controlled by the key.
func (p *KeyProvider) Address() common.Address {
	return p.account
}
