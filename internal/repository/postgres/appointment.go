package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/umedi/intake-api/internal/model"
	"github.com/umedi/intake-api/internal/repository"
	apperrors "github.com/umedi/intake-api/pkg/errors"
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func (r *appointmentRepository) Insert(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO umedi.appointment (
			appointment_id, hospital_id, speciality,
			first_name, last_name, phone, email,
			gender, date_of_birth, claim_yn,
			candidate_dt1, candidate_dt2, additional_info
		) VALUES (
			:appointment_id, :hospital_id, :speciality,
			:first_name, :last_name, :phone, :email,
			:gender, :date_of_birth, :claim_yn,
			:candidate_dt1, :candidate_dt2, :additional_info
		)
		RETURNING created_at
	`
	rows, err := r.db.NamedQueryContext(ctx, query, appointment)
	if err != nil {
		return classify("failed to insert appointment", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&appointment.CreatedAt); err != nil {
			return classify("failed to read appointment creation time", err)
		}
	}
	if err := rows.Err(); err != nil {
		return classify("failed to insert appointment", err)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context) ([]*model.Appointment, error) {
	query := `
		SELECT appointment_id, hospital_id, speciality,
			   first_name, last_name, phone, email,
			   gender, date_of_birth, claim_yn,
			   candidate_dt1, candidate_dt2, additional_info, created_at
		FROM umedi.appointment
		ORDER BY appointment_id::bigint ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query); err != nil {
		return nil, classify("failed to list appointments", err)
	}
	if len(appointments) == 0 {
		return nil, apperrors.NotFound("appointments", nil)
	}
	return appointments, nil
}
