// source: users.sql

package pgdb

import (
	"context"
	"database/sql"
)

const getUser = `-- name: GetUser :one
SELECT id, name, email, preferred_model, created_at, updated_at FROM users
WHERE id = $1
`

func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.PreferredModel,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const setUserPreferredModel = `-- name: SetUserPreferredModel :exec
UPDATE users
SET preferred_model = $2, updated_at = NOW()
WHERE id = $1
`

type SetUserPreferredModelParams struct {
	ID             string         `json:"id"`
	PreferredModel sql.NullString `json:"preferred_model"`
}

func (q *Queries) SetUserPreferredModel(ctx context.Context, arg SetUserPreferredModelParams) error {
	_, err := q.db.ExecContext(ctx, setUserPreferredModel, arg.ID, arg.PreferredModel)
	return err
}

const upsertUser = `-- name: UpsertUser :one
INSERT INTO users (id, name, email)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    email = EXCLUDED.email,
    updated_at = CASE
        WHEN users.name IS DISTINCT FROM EXCLUDED.name OR users.email IS DISTINCT FROM EXCLUDED.email
        THEN NOW()
        ELSE users.updated_at
    END
RETURNING id, name, email, preferred_model, created_at, updated_at
`

type UpsertUserParams struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, upsertUser, arg.ID, arg.Name, arg.Email)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.PreferredModel,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
