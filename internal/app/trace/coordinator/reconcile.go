package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
)

// Report summarises one Reconcile pass.
type Report struct {
	Checked  int      `json:"checked"`
	Synced   int      `json:"synced"`
	Reverted int      `json:"reverted"`
	Drifted  int      `json:"drifted"`
	Waiting  int      `json:"waiting"`
	Errors   []string `json:"errors,omitempty"`
}

// Reconcile moves unfinished actions forward:
//
//	awaiting_receipt  look up the receipt; commit or revert when mined
//	committed         build and send the backend request
//	persisting        replay the stored request
//	drifted           replay the stored request, or rebuild it if none was stored
//
// In-flight states are only taken over once they have been idle for the
// stale period, so a live Run is not raced.
func (c *Coordinator) Reconcile(ctx context.Context, limit int) (*Report, error) {
	actions, err := c.ledger.List(ctx, contracts.ActionFilter{States: domain.Unfinished(), Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list unfinished actions: %w", err)
	}
	now := c.clock.Now()
	report := &Report{}
	for _, action := range actions {
		if action.State() != domain.StateDrifted && now.Sub(action.UpdatedAt()) < c.staleAfter {
			continue
		}
		report.Checked++
		if err := c.reconcile(ctx, action); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", action.ID(), err))
		}
		switch action.State() {
		case domain.StateSynced:
			report.Synced++
		case domain.StateReverted:
			report.Reverted++
		case domain.StateDrifted:
			report.Drifted++
		default:
			report.Waiting++
		}
	}
	c.log.Info().Int("checked", report.Checked).Int("synced", report.Synced).
		Int("drifted", report.Drifted).Int("waiting", report.Waiting).Msg("reconcile pass")
	return report, nil
}

// ReconcileAction reconciles one action regardless of its age, except that
// a persisting action inside the stale period is left to its current
// writer and reported as domain.ErrActionInFlight.
func (c *Coordinator) ReconcileAction(ctx context.Context, actionID string) (*domain.Action, error) {
	action, err := c.ledger.Get(ctx, actionID)
	if err != nil {
		return nil, err
	}
	return action, c.reconcile(ctx, action)
}

func (c *Coordinator) reconcile(ctx context.Context, action *domain.Action) error {
	log := c.log.With().Str(logging.ACTION, action.ID()).Str(logging.KIND, string(action.Kind())).Logger()

	switch action.State() {
	case domain.StateAwaitingReceipt:
		tx, err := c.lookupReceipt(ctx, action, log)
		if err != nil || tx == nil {
			return err
		}
		_, err = c.persist(ctx, action, tx, nil, true, log)
		return err

	case domain.StateCommitted:
		tx, err := c.txFor(ctx, action)
		if err != nil {
			return err
		}
		_, err = c.persist(ctx, action, tx, nil, true, log)
		return err

	case domain.StatePersisting, domain.StateDrifted:
		if action.State() == domain.StatePersisting && c.clock.Now().Sub(action.UpdatedAt()) < c.staleAfter {
			return fmt.Errorf("%w: %s", domain.ErrActionInFlight, action.ID())
		}
		stored := action.Persist()
		if stored != nil && stored.Method != "" {
			_, err := c.persist(ctx, action, nil, stored, true, log)
			return err
		}
		tx, err := c.txFor(ctx, action)
		if err != nil {
			return err
		}
		_, err = c.persist(ctx, action, tx, nil, true, log)
		return err
	}
	return fmt.Errorf("%w: %s is not reconcilable", domain.ErrInvalidTransition, action.State())
}

// lookupReceipt commits or reverts an action whose receipt wait ended. It
// returns nil when the transaction is still not mined.
func (c *Coordinator) lookupReceipt(ctx context.Context, action *domain.Action, log zerolog.Logger) (*chain.TxResult, error) {
	receipt, err := c.contract.Receipt(ctx, common.HexToHash(action.TxHash()))
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		log.Debug().Str(logging.TX, action.TxHash()).Msg("transaction still not mined")
		return nil, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		_ = action.Revert(receipt.BlockNumber.Uint64(), errors.New("receipt status failed"))
		return nil, c.save(ctx, action, log)
	}
	tx := c.result(action, receipt)
	_ = action.Commit(receipt.BlockNumber.Uint64(), chainIDFrom(action.ChainID(), tx.Events))
	if err := c.save(ctx, action, log); err != nil {
		return nil, err
	}
	return tx, nil
}

func (c *Coordinator) txFor(ctx context.Context, action *domain.Action) (*chain.TxResult, error) {
	if action.TxHash() == "" {
		return &chain.TxResult{}, nil
	}
	receipt, err := c.contract.Receipt(ctx, common.HexToHash(action.TxHash()))
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("receipt of %s not found", action.TxHash())
	}
	return c.result(action, receipt), nil
}

func (c *Coordinator) result(action *domain.Action, receipt *types.Receipt) *chain.TxResult {
	return &chain.TxResult{
		Submission: chain.Submission{
			Hash:        receipt.TxHash,
			From:        common.HexToAddress(action.Account()),
			GasEstimate: action.GasEstimate(),
			GasLimit:    action.GasLimit(),
		},
		Receipt: receipt,
		Events:  c.contract.DecodeLogs(receipt.Logs),
	}
}
