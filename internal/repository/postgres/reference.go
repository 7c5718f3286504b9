package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/umedi/intake-api/internal/model"
	"github.com/umedi/intake-api/internal/repository"
	apperrors "github.com/umedi/intake-api/pkg/errors"
)

type referenceRepository struct {
	BaseRepository
}

func NewReferenceRepository(db *sqlx.DB) repository.ReferenceRepository {
	return &referenceRepository{NewBaseRepository(db)}
}

func (r *referenceRepository) LookupHospitalSpeciality(ctx context.Context, hospitalID int64, specialityCode string) (*model.HospitalSpeciality, error) {
	query := `
		SELECT h.hospital_name, s.speciality_name
		FROM umedi.hospital_speciality hs
		JOIN umedi.hospital h ON h.hospital_id = hs.hospital_id
		JOIN umedi.speciality s ON s.speciality_code = hs.speciality_code
		WHERE hs.hospital_id = $1 AND hs.speciality_code = $2
	`
	var names model.HospitalSpeciality
	err := r.db.GetContext(ctx, &names, query, hospitalID, specialityCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("hospital speciality", err)
	}
	if err != nil {
		return nil, classify("failed to look up hospital speciality", err)
	}
	return &names, nil
}
