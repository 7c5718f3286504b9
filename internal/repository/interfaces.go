package repository

import (
	"context"

	"github.com/umedi/intake-api/internal/model"
)

type (
	// SequenceRepository hands out appointment identifiers
	SequenceRepository interface {
		NextID(ctx context.Context) (string, error)
	}

	AppointmentRepository interface {
		Insert(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context) ([]*model.Appointment, error)
	}

	// ReferenceRepository resolves hospital and speciality display names
	ReferenceRepository interface {
		LookupHospitalSpeciality(ctx context.Context, hospitalID int64, specialityCode string) (*model.HospitalSpeciality, error)
	}
)
