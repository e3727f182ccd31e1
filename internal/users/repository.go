package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eternisai/enchanted-chat/internal/auth"
	pgdb "github.com/eternisai/enchanted-chat/internal/storage/pg/sqlc"
)

// Record is a persisted user row.
type Record struct {
	ID             string
	Name           string
	Email          string
	PreferredModel string
}

// Repository persists users.
type Repository interface {
	Upsert(ctx context.Context, identity auth.Identity) (Record, error)
	SetPreferredModel(ctx context.Context, userID, model string) error
}

type pgRepository struct {
	queries pgdb.Querier
}

// NewRepository returns a Repository backed by postgres queries.
func NewRepository(queries pgdb.Querier) Repository {
	return &pgRepository{queries: queries}
}

func (r *pgRepository) Upsert(ctx context.Context, identity auth.Identity) (Record, error) {
	row, err := r.queries.UpsertUser(ctx, pgdb.UpsertUserParams{
		ID:    identity.UserID,
		Name:  identity.Name,
		Email: identity.Email,
	})
	if err != nil {
		return Record{}, fmt.Errorf("failed to upsert user: %w", err)
	}

	return Record{
		ID:             row.ID,
		Name:           row.Name,
		Email:          row.Email,
		PreferredModel: row.PreferredModel.String,
	}, nil
}

func (r *pgRepository) SetPreferredModel(ctx context.Context, userID, model string) error {
	err := r.queries.SetUserPreferredModel(ctx, pgdb.SetUserPreferredModelParams{
		ID:             userID,
		PreferredModel: sql.NullString{String: model, Valid: model != ""},
	})
	if err != nil {
		return fmt.Errorf("failed to set preferred model: %w", err)
	}
	return nil
}
