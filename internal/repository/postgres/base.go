package postgres

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/curbwise/alerts-api/internal/repository"
)

// BaseRepository carries the shared database handle every concrete
// repository embeds. All writes here are single statements; the unique
// constraints and conditional updates do the coordinating, so there is
// no transaction helper.
type BaseRepository struct {
	db *sqlx.DB
}

func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

const pqUniqueViolation = "23505"

// mapError translates driver errors into repository sentinels so the
// service layer never inspects pq error codes.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return repository.ErrDuplicateKey
	}
	return err
}
