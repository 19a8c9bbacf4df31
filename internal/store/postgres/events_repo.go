package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"coworking/backend/internal/domain"
	"coworking/backend/internal/store"
)

type EventRepo struct {
	db *bun.DB
}

func NewEventRepo(db *bun.DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	var e domain.Event
	err := r.db.NewSelect().
		Model(&e).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Event{}, mapLookupError(err)
	}
	return e, nil
}

func (r *EventRepo) CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	if _, err := r.db.NewInsert().Model(&e).Exec(ctx); err != nil {
		return domain.Event{}, mapStoreError(err)
	}
	return e, nil
}

func (r *EventRepo) UpdateEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	res, err := r.db.NewUpdate().
		Model(&e).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Event{}, mapLookupError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Event{}, mapStoreError(err)
	}
	if affected == 0 {
		return domain.Event{}, store.ErrNotFound
	}
	return e, nil
}
