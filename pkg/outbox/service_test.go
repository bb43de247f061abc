package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/db/dbtest"
	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	"github.com/wilffren/libronova/pkg/outbox"
	"github.com/wilffren/libronova/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)
	ctx := context.Background()
	loanID := uuid.New()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanCreated,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loanID,
			Data:          payloads.LoanCreatedEvent{LoanID: loanID, AvailableCopies: 2},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(ctx, enums.AggregateLoan, loanID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)

	var data payloads.LoanCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, 2, data.AvailableCopies)
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)
	ctx := context.Background()
	loanID := uuid.New()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanReturned,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loanID,
			Data:          payloads.LoanReturnedEvent{LoanID: loanID},
		}); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	require.Error(t, err)

	rows, err := repo.ListByAggregate(ctx, enums.AggregateLoan, loanID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEmitIfNotExistsIsIdempotentPerAggregate(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)
	ctx := context.Background()
	loanID := uuid.New()

	event := outbox.DomainEvent{
		EventType:     enums.EventLoanOverdue,
		AggregateType: enums.AggregateLoan,
		AggregateID:   loanID,
		Data:          payloads.LoanOverdueEvent{LoanID: loanID, DaysOverdue: 1},
	}
	var first, second bool
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		first, err = svc.EmitIfNotExists(ctx, tx, event)
		return err
	}))
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		second, err = svc.EmitIfNotExists(ctx, tx, event)
		return err
	}))
	require.True(t, first)
	require.False(t, second)

	rows, err := repo.ListByAggregate(ctx, enums.AggregateLoan, loanID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestEmitRejectsUnknownTypes(t *testing.T) {
	client := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{EventType: "order_created", AggregateType: enums.AggregateLoan})
	})
	require.Error(t, err)
	require.Error(t, svc.Emit(context.Background(), nil, outbox.DomainEvent{}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	published := models.OutboxEvent{EventType: enums.EventLoanCreated, AggregateType: enums.AggregateLoan, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old}
	pending := models.OutboxEvent{EventType: enums.EventLoanReturned, AggregateType: enums.AggregateLoan, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.Insert(tx, published); err != nil {
			return err
		}
		return repo.Insert(tx, pending)
	}))

	var batch []models.OutboxEvent
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		batch, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	require.Len(t, batch, 2)
	require.Equal(t, enums.EventLoanCreated, batch[0].EventType)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.MarkPublishedTx(tx, batch[0].ID); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, batch[1].ID, gorm.ErrInvalidData, 3)
	}))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		batch, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	require.Empty(t, batch)

	var deleted int64
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = repo.DeletePublishedBefore(ctx, tx, time.Now().UTC().Add(time.Hour), 3)
		return err
	}))
	require.Equal(t, int64(2), deleted)
}

func TestRetentionKeepsOverdueNotices(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	ctx := context.Background()
	loanID := uuid.New()
	old := time.Now().UTC().Add(-72 * time.Hour)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return repo.Insert(tx, models.OutboxEvent{EventType: enums.EventLoanOverdue, AggregateType: enums.AggregateLoan, AggregateID: loanID, Payload: json.RawMessage(`{}`), CreatedAt: old})
	}))
	rows, err := repo.ListByAggregate(ctx, enums.AggregateLoan, loanID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return repo.MarkPublishedTx(tx, rows[0].ID)
	}))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := repo.DeletePublishedBefore(ctx, tx, time.Now().UTC().Add(time.Hour), 3)
		require.Zero(t, deleted)
		return err
	}))
	rows, err = repo.ListByAggregate(ctx, enums.AggregateLoan, loanID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestDLQRetentionDeletesOnlyOldDeadLetters(t *testing.T) {
	client := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()
	oldID, freshID := uuid.New(), uuid.New()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, entry := range []models.OutboxDLQ{
			{EventID: oldID, EventType: enums.EventLoanCreated, AggregateType: enums.AggregateLoan, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), ErrorReason: enums.OutboxDLQReasonMaxAttempts, FailedAt: now.AddDate(0, 0, -120)},
			{EventID: freshID, EventType: enums.EventLoanReturned, AggregateType: enums.AggregateLoan, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), ErrorReason: enums.OutboxDLQReasonNonRetryable, FailedAt: now.AddDate(0, 0, -5)},
		} {
			if err := dlq.InsertTx(tx, entry); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := dlq.DeleteFailedBefore(ctx, tx, now.AddDate(0, 0, -90))
		require.Equal(t, int64(1), deleted)
		return err
	}))

	gone, err := dlq.FindByEventID(ctx, oldID)
	require.NoError(t, err)
	require.Nil(t, gone)
	kept, err := dlq.FindByEventID(ctx, freshID)
	require.NoError(t, err)
	require.NotNil(t, kept)
}
