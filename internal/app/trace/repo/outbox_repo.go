package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/spanner"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/api/iterator"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/models/m_action_event"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/query"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// OutboxRepo implements contracts.Outbox for Spanner and builds the insert
// mutations the ledger adds to each commit.
type OutboxRepo struct {
	client *spanner.Client
	model  *m_action_event.Model
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(client *spanner.Client) *OutboxRepo {
	return &OutboxRepo{
		client: client,
		model:  m_action_event.NewModel(),
	}
}

// EnrichEvent converts a domain event to an outbox event with metadata.
func EnrichEvent(event domain.DomainEvent) (*contracts.OutboxEvent, error) {
	payload, err := jsonAPI.MarshalToString(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event: %w", err)
	}
	return &contracts.OutboxEvent{
		EventID:   uuid.New().String(),
		EventType: event.EventType(),
		ActionID:  event.AggregateID(),
		Payload:   payload,
		Status:    m_action_event.StatusPending,
	}, nil
}

// InsertMut creates a mutation for inserting an outbox event.
func (r *OutboxRepo) InsertMut(event *contracts.OutboxEvent) *spanner.Mutation {
	data := &m_action_event.Data{
		EventID:   event.EventID,
		EventType: event.EventType,
		ActionID:  event.ActionID,
		Payload:   spanner.NullJSON{Value: json.RawMessage(event.Payload), Valid: event.Payload != ""},
		Status:    event.Status,
	}
	return r.model.InsertMut(data)
}

// Pending returns up to limit pending events, oldest first.
func (r *OutboxRepo) Pending(ctx context.Context, limit int) ([]*contracts.OutboxEvent, error) {
	stmt := query.From(m_action_event.TableName).
		Select(m_action_event.Columns...).
		Where(query.Eq(m_action_event.Status, m_action_event.StatusPending)).
		OrderBy(m_action_event.CreatedAt, query.Asc).
		Limit(int64(limit)).
		Build()

	iter := r.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var events []*contracts.OutboxEvent
	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate events: %w", err)
		}
		var data m_action_event.Data
		if err := row.ToStruct(&data); err != nil {
			return nil, fmt.Errorf("failed to parse event: %w", err)
		}
		ev := &contracts.OutboxEvent{
			EventID:    data.EventID,
			EventType:  data.EventType,
			ActionID:   data.ActionID,
			Status:     data.Status,
			RetryCount: data.RetryCount,
			CreatedAt:  data.CreatedAt,
		}
		if data.Payload.Valid {
			ev.Payload = data.Payload.String()
		}
		events = append(events, ev)
	}
	return events, nil
}

// MarkCompleted records a delivered event.
func (r *OutboxRepo) MarkCompleted(ctx context.Context, eventID string) error {
	_, err := r.client.Apply(ctx, []*spanner.Mutation{r.model.UpdateMut(eventID, map[string]interface{}{
		m_action_event.Status:      m_action_event.StatusCompleted,
		m_action_event.ProcessedAt: spanner.CommitTimestamp,
	})})
	if err != nil {
		return fmt.Errorf("failed to mark event %s completed: %w", eventID, err)
	}
	return nil
}

// MarkFailed increments the retry count and parks the event as failed once
// it reaches maxRetries.
func (r *OutboxRepo) MarkFailed(ctx context.Context, eventID string, cause error, maxRetries int64) error {
	_, err := r.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		row, err := txn.ReadRow(ctx, m_action_event.TableName, spanner.Key{eventID}, []string{m_action_event.RetryCount})
		if err != nil {
			return err
		}
		var retries int64
		if err := row.Column(0, &retries); err != nil {
			return err
		}
		retries++
		updates := map[string]interface{}{
			m_action_event.RetryCount:   retries,
			m_action_event.ErrorMessage: errText(cause),
		}
		if retries >= maxRetries {
			updates[m_action_event.Status] = m_action_event.StatusFailed
			updates[m_action_event.ProcessedAt] = spanner.CommitTimestamp
		}
		return txn.BufferWrite([]*spanner.Mutation{r.model.UpdateMut(eventID, updates)})
	})
	if err != nil {
		return fmt.Errorf("failed to mark event %s failed: %w", eventID, err)
	}
	return nil
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
