package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrUnknownEvent is returned for logs that are not contract events.
var ErrUnknownEvent = errors.New("unknown contract event")

// Event is a decoded contract log.
type Event struct {
	Name        string
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
	Fields      map[string]interface{}
}

// ProductID returns the productId field in normalized form, or "".
func (e Event) ProductID() string {
	if id, ok := e.Fields["productId"].([32]byte); ok {
		return FormatID(id)
	}
	return ""
}

// Address returns an address field.
func (e Event) Address(name string) common.Address {
	addr, _ := e.Fields[name].(common.Address)
	return addr
}

// Uint returns a uint256 field, nil if absent.
func (e Event) Uint(name string) *big.Int {
	n, _ := e.Fields[name].(*big.Int)
	return n
}

// Text returns a string field.
func (e Event) Text(name string) string {
	s, _ := e.Fields[name].(string)
	return s
}

// DecodeLog decodes one log emitted by the contract.
func (c *Contract) DecodeLog(l types.Log) (Event, error) {
	if len(l.Topics) == 0 {
		return Event{}, ErrUnknownEvent
	}
	ev, err := c.abi.EventByID(l.Topics[0])
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownEvent, l.Topics[0].Hex())
	}

	fields := make(map[string]interface{})
	if len(l.Data) > 0 {
		if err := c.abi.UnpackIntoMap(fields, ev.Name, l.Data); err != nil {
			return Event{}, fmt.Errorf("unpack %s: %w", ev.Name, err)
		}
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, l.Topics[1:]); err != nil {
		return Event{}, fmt.Errorf("topics %s: %w", ev.Name, err)
	}

	return Event{
		Name:        ev.Name,
		TxHash:      l.TxHash,
		BlockNumber: l.BlockNumber,
		LogIndex:    l.Index,
		Fields:      fields,
	}, nil
}

// DecodeLogs decodes the contract's logs from a receipt. Logs of other
// contracts and undecodable logs are skipped.
func (c *Contract) DecodeLogs(logs []*types.Log) []Event {
	events := make([]Event, 0, len(logs))
	for _, l := range logs {
		if l == nil || l.Address != c.address {
			continue
		}
		ev, err := c.DecodeLog(*l)
		if err != nil {
			c.log.Debug().Err(err).Msg("skipping log")
			continue
		}
		events = append(events, ev)
	}
	return events
}

// FindEvent returns the first event called name.
func FindEvent(events []Event, name string) (Event, bool) {
	for _, ev := range events {
		if ev.Name == name {
			return ev, true
		}
	}
	return Event{}, false
}

func (c *Contract) filter(ctx context.Context, topics [][]common.Hash) ([]Event, error) {
	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(c.logsFrom),
		Addresses: []common.Address{c.address},
		Topics:    topics,
	})
	if err != nil {
		return nil, c.fail("filterLogs", err)
	}
	events := make([]Event, 0, len(logs))
	for _, l := range logs {
		ev, err := c.DecodeLog(l)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	return events, nil
}

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

// TransfersInitiatedTo returns every TransferInitiated event addressed to
// account, oldest first. Some of them may since have been accepted or
// cancelled.
func (c *Contract) TransfersInitiatedTo(ctx context.Context, account common.Address) ([]Event, error) {
	return c.filter(ctx, [][]common.Hash{
		{c.abi.Events[EventTransferInitiated].ID},
		nil,
		nil,
		{addressTopic(account)},
	})
}

// OwnershipsTransferredTo returns the OwnershipTransferred events whose new
// owner is account.
func (c *Contract) OwnershipsTransferredTo(ctx context.Context, account common.Address) ([]Event, error) {
	return c.filter(ctx, [][]common.Hash{
		{c.abi.Events[EventOwnershipTransferred].ID},
		nil,
		nil,
		{addressTopic(account)},
	})
}

// ProductHistory returns every event indexed by the product id, oldest first.
func (c *Contract) ProductHistory(ctx context.Context, id string) ([]Event, error) {
	key, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return c.filter(ctx, [][]common.Hash{nil, {common.Hash(key)}})
}
