package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"coworking/backend/internal/domain"
)

type PersonRepo struct {
	db *bun.DB
}

func NewPersonRepo(db *bun.DB) *PersonRepo {
	return &PersonRepo{db: db}
}

func (r *PersonRepo) PersonName(ctx context.Context, userID string) (string, error) {
	var p domain.Person
	err := r.db.NewSelect().
		Model(&p).
		Column("name").
		Where("id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return "", mapLookupError(err)
	}
	return p.Name, nil
}
