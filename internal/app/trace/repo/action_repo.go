package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/models/m_action"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/query"
)

// ActionRepo maps actions to chain_actions rows. Like every repository here
// it returns mutations and leaves applying them to the caller.
type ActionRepo struct {
	client *spanner.Client
	model  *m_action.Model
	clock  clock.Clock
}

// NewActionRepo creates a new ActionRepo.
func NewActionRepo(client *spanner.Client, clk clock.Clock) *ActionRepo {
	return &ActionRepo{
		client: client,
		model:  m_action.NewModel(),
		clock:  clk,
	}
}

// InsertMut creates a mutation for inserting a new action.
func (r *ActionRepo) InsertMut(action *domain.Action) *spanner.Mutation {
	return r.model.InsertMut(DomainToData(action))
}

// UpdateMut creates a mutation for the dirty columns of action, nil when
// nothing changed.
func (r *ActionRepo) UpdateMut(action *domain.Action) *spanner.Mutation {
	changes := action.Changes()
	if !changes.HasChanges() {
		return nil
	}
	data := DomainToData(action)
	updates := make(map[string]interface{})

	if changes.Dirty(domain.FieldState) {
		updates[m_action.State] = data.State
	}
	if changes.Dirty(domain.FieldLastError) {
		updates[m_action.LastError] = data.LastError
	}
	if changes.Dirty(domain.FieldTxHash) {
		updates[m_action.TxHash] = data.TxHash
	}
	if changes.Dirty(domain.FieldGas) {
		updates[m_action.GasEstimate] = data.GasEstimate
		updates[m_action.GasLimit] = data.GasLimit
	}
	if changes.Dirty(domain.FieldBlockNumber) {
		updates[m_action.BlockNumber] = data.BlockNumber
	}
	if changes.Dirty(domain.FieldChainID) {
		updates[m_action.ChainID] = data.ChainID
	}
	if changes.Dirty(domain.FieldPersist) {
		updates[m_action.PersistMethod] = data.PersistMethod
		updates[m_action.PersistPath] = data.PersistPath
		updates[m_action.PersistBody] = data.PersistBody
	}
	if changes.Dirty(domain.FieldAttempts) {
		updates[m_action.Attempts] = data.Attempts
	}
	if len(updates) == 0 {
		return nil
	}
	updates[m_action.Version] = data.Version

	return r.model.UpdateMut(action.ID(), updates)
}

// GetByID loads an action.
func (r *ActionRepo) GetByID(ctx context.Context, actionID string) (*domain.Action, error) {
	row, err := r.client.Single().ReadRow(ctx, m_action.TableName, spanner.Key{actionID}, m_action.Columns)
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrActionNotFound, actionID)
		}
		return nil, fmt.Errorf("failed to read action: %w", err)
	}

	var data m_action.Data
	if err := row.ToStruct(&data); err != nil {
		return nil, fmt.Errorf("failed to parse action: %w", err)
	}
	return DataToDomain(&data, r.clock), nil
}

// ListStatement builds the query for filter, newest first.
func ListStatement(filter contracts.ActionFilter) spanner.Statement {
	b := query.From(m_action.TableName).Select(m_action.Columns...)
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		b = b.Where(query.In(m_action.State, states...))
	}
	if filter.Kind != "" {
		b = b.Where(query.Eq(m_action.Kind, string(filter.Kind)))
	}
	if filter.Role != "" {
		b = b.Where(query.Eq(m_action.Role, string(filter.Role)))
	}
	if filter.ProductRef != "" {
		b = b.Where(query.Eq(m_action.ProductRef, filter.ProductRef))
	}
	if filter.TxHash != "" {
		b = b.Where(query.Eq(m_action.TxHash, filter.TxHash))
	}
	return b.OrderBy(m_action.UpdatedAt, query.Desc).Limit(int64(filter.EffectiveLimit())).Build()
}

// List runs the filter query.
func (r *ActionRepo) List(ctx context.Context, filter contracts.ActionFilter) ([]*domain.Action, error) {
	iter := r.client.Single().Query(ctx, ListStatement(filter))
	defer iter.Stop()

	var actions []*domain.Action
	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate actions: %w", err)
		}
		var data m_action.Data
		if err := row.ToStruct(&data); err != nil {
			return nil, fmt.Errorf("failed to parse action: %w", err)
		}
		actions = append(actions, DataToDomain(&data, r.clock))
	}
	return actions, nil
}

// DomainToData converts an action to its row.
func DomainToData(a *domain.Action) *m_action.Data {
	data := &m_action.Data{
		ActionID:    a.ID(),
		Kind:        string(a.Kind()),
		Role:        string(a.Role()),
		Account:     nullString(a.Account()),
		ProductRef:  nullString(a.ProductRef()),
		ChainID:     nullString(a.ChainID()),
		State:       string(a.State()),
		TxHash:      nullString(a.TxHash()),
		GasEstimate: int64(a.GasEstimate()),
		GasLimit:    int64(a.GasLimit()),
		BlockNumber: int64(a.BlockNumber()),
		LastError:   nullString(a.LastError()),
		Attempts:    a.Attempts(),
		Version:     a.Version(),
		CreatedAt:   a.CreatedAt(),
		UpdatedAt:   a.UpdatedAt(),
	}
	if p := a.Payload(); p != "" {
		data.Payload = spanner.NullJSON{Value: json.RawMessage(p), Valid: true}
	}
	if p := a.Persist(); p != nil {
		data.PersistMethod = nullString(p.Method)
		data.PersistPath = nullString(p.Path)
		data.PersistBody = nullString(p.Body)
	}
	return data
}

// DataToDomain reconstructs an action from its row.
func DataToDomain(data *m_action.Data, clk clock.Clock) *domain.Action {
	snap := domain.ActionSnapshot{
		ID:          data.ActionID,
		Kind:        domain.ActionKind(data.Kind),
		Role:        domain.Role(data.Role),
		Account:     data.Account.StringVal,
		ProductRef:  data.ProductRef.StringVal,
		ChainID:     data.ChainID.StringVal,
		State:       domain.ActionState(data.State),
		TxHash:      data.TxHash.StringVal,
		GasEstimate: uint64(data.GasEstimate),
		GasLimit:    uint64(data.GasLimit),
		BlockNumber: uint64(data.BlockNumber),
		LastError:   data.LastError.StringVal,
		Attempts:    data.Attempts,
		Version:     data.Version,
		CreatedAt:   data.CreatedAt,
		UpdatedAt:   data.UpdatedAt,
	}
	if data.Payload.Valid {
		snap.Payload = data.Payload.String()
	}
	if data.PersistMethod.Valid {
		snap.Persist = &domain.PersistRequest{
			Role:   domain.Role(data.Role),
			Method: data.PersistMethod.StringVal,
			Path:   data.PersistPath.StringVal,
			Body:   data.PersistBody.StringVal,
		}
	}
	return domain.ReconstructAction(snap, clk)
}

func nullString(s string) spanner.NullString {
	return spanner.NullString{StringVal: s, Valid: s != ""}
}
