package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/pkg/db/dbtest"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
)

type orderNote struct {
	OrderID uuid.UUID `json:"orderId"`
	Note    string    `json:"note"`
}

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	orderID := uuid.New()
	userID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         UserActor(userID, "customer"),
			Data:          orderNote{OrderID: orderID, Note: "first"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(nil, orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotEqual(t, uuid.Nil, rows[0].ID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	require.Equal(t, userID, *envelope.Actor.UserID)

	var data orderNote
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, "first", data.Note)
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	orderID := uuid.New()
	boom := errors.New("boom")

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          orderNote{OrderID: orderID},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := repo.ListByAggregate(nil, orderID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderPaid, AggregateID: uuid.New()}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "order.unknown", AggregateID: uuid.New()}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.EventOrderPaid}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Data:          orderNote{OrderID: id},
		}))
	}

	var pending []uuid.UUID
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		if err != nil {
			return err
		}
		for _, row := range rows {
			pending = append(pending, row.ID)
		}
		if err := repo.MarkPublishedTx(tx, rows[0].ID); err != nil {
			return err
		}
		if err := repo.MarkFailedTx(tx, rows[1].ID, errors.New("unavailable")); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, rows[2].ID, errors.New("bad payload"), 3)
	}))
	require.Len(t, pending, 3)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, pending[1], rows[0].ID)
	require.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	require.Equal(t, "unavailable", *rows[0].LastError)

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 1)
	require.NoError(t, err)
	require.Empty(t, rows, "rows at the attempt ceiling are skipped")
}

func TestDeleteSettledBeforeKeepsPendingRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	row := func(published, terminal *time.Time) models.OutboxEvent {
		return models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     old,
			PublishedAt:   published,
			TerminalAt:    terminal,
		}
	}
	oldPublished := row(&old, nil)
	oldTerminal := row(nil, &old)
	recentPublished := row(&recent, nil)
	pending := row(nil, nil)
	for _, ev := range []models.OutboxEvent{oldPublished, oldTerminal, recentPublished, pending} {
		require.NoError(t, repo.Insert(conn, ev))
	}

	deleted, err := repo.DeleteSettledBefore(conn, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Order("created_at").Find(&remaining).Error)
	ids := map[uuid.UUID]bool{}
	for _, r := range remaining {
		ids[r.ID] = true
	}
	require.Len(t, ids, 2)
	require.True(t, ids[recentPublished.ID])
	require.True(t, ids[pending.ID])
}
