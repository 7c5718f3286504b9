package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/umedi/intake-api/internal/repository"
	apperrors "github.com/umedi/intake-api/pkg/errors"
)

var errSequenceMissing = errors.New("sequence row is missing")

type sequenceRepository struct {
	BaseRepository
}

func NewSequenceRepository(db *sqlx.DB) repository.SequenceRepository {
	return &sequenceRepository{NewBaseRepository(db)}
}

// NextID increments the counter and returns the new value. The row lock taken
// by UPDATE serializes concurrent callers.
func (r *sequenceRepository) NextID(ctx context.Context) (string, error) {
	query := `
		UPDATE umedi.sequences
		SET id = id + 1
		RETURNING id
	`
	var id int64
	err := r.db.GetContext(ctx, &id, query)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.Storage("failed to allocate appointment id", errSequenceMissing)
	}
	if err != nil {
		return "", apperrors.Storage("failed to allocate appointment id", err)
	}
	return strconv.FormatInt(id, 10), nil
}
