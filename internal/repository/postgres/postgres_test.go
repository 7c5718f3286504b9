package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umedi/intake-api/internal/model"
	apperrors "github.com/umedi/intake-api/pkg/errors"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

var appointmentColumns = []string{
	"appointment_id", "hospital_id", "speciality",
	"first_name", "last_name", "phone", "email",
	"gender", "date_of_birth", "claim_yn",
	"candidate_dt1", "candidate_dt2", "additional_info", "created_at",
}

func TestSequenceRepository_NextID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSequenceRepository(db)

	mock.ExpectQuery(`UPDATE umedi.sequences`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))
	mock.ExpectQuery(`UPDATE umedi.sequences`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	first, err := repo.NextID(context.Background())
	require.NoError(t, err)
	second, err := repo.NextID(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "41", first)
	assert.Equal(t, "42", second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepository_NextID_Failures(t *testing.T) {
	t.Run("missing row", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`UPDATE umedi.sequences`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := NewSequenceRepository(db).NextID(context.Background())
		assert.True(t, apperrors.Is(err, apperrors.KindStorage))
		assert.ErrorIs(t, err, errSequenceMissing)
	})

	t.Run("database error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`UPDATE umedi.sequences`).
			WillReturnError(errors.New("connection reset"))

		_, err := NewSequenceRepository(db).NextID(context.Background())
		assert.True(t, apperrors.Is(err, apperrors.KindStorage))
	})
}

func TestAppointmentRepository_Insert(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)

	createdAt := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	appointment := &model.Appointment{
		AppointmentID: "42",
		HospitalID:    7,
		Speciality:    "CARD",
		FirstName:     "Gil-dong",
		LastName:      "Hong",
		Phone:         "cGhvbmUtdG9rZW4=",
		Email:         "gd@example.com",
		ClaimYN:       model.ClaimNo,
		CandidateDT1:  time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC),
	}

	mock.ExpectQuery(`INSERT INTO umedi.appointment`).
		WithArgs(
			"42", int64(7), "CARD",
			"Gil-dong", "Hong", "cGhvbmUtdG9rZW4=", "gd@example.com",
			nil, nil, "n",
			sqlmock.AnyArg(), nil, nil,
		).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	err := repo.Insert(context.Background(), appointment)
	require.NoError(t, err)
	assert.True(t, appointment.CreatedAt.Equal(createdAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_Insert_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperrors.Kind
	}{
		{"duplicate id", &pq.Error{Code: "23505"}, apperrors.KindConflict},
		{"foreign key", &pq.Error{Code: "23503"}, apperrors.KindConflict},
		{"undefined table", &pq.Error{Code: "42P01"}, apperrors.KindStorage},
		{"network", errors.New("broken pipe"), apperrors.KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			mock.ExpectQuery(`INSERT INTO umedi.appointment`).WillReturnError(tt.err)

			err := NewAppointmentRepository(db).Insert(context.Background(), &model.Appointment{
				AppointmentID: "1",
				ClaimYN:       model.ClaimNo,
			})
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

func TestAppointmentRepository_List(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)

	dt1 := time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)
	dt2 := time.Date(2024, 3, 6, 5, 0, 0, 0, time.UTC)
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(appointmentColumns).
		AddRow("1", int64(7), "CARD", "A", "Kim", "tok1", "a@example.com", nil, nil, "n", dt1, nil, nil, created).
		AddRow("2", int64(7), "DERM", "B", "Lee", "tok2", "", "F", "tok-dob", "y", dt1, dt2, "note", created)

	mock.ExpectQuery(`SELECT .+ FROM umedi.appointment`).WillReturnRows(rows)

	appointments, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, appointments, 2)

	assert.Equal(t, "1", appointments[0].AppointmentID)
	assert.Equal(t, model.ClaimNo, appointments[0].ClaimYN)
	assert.Nil(t, appointments[0].Gender)
	assert.Nil(t, appointments[0].CandidateDT2)

	second := appointments[1]
	assert.Equal(t, model.ClaimYes, second.ClaimYN)
	require.NotNil(t, second.DateOfBirth)
	assert.Equal(t, "tok-dob", *second.DateOfBirth)
	require.NotNil(t, second.CandidateDT2)
	assert.True(t, second.CandidateDT2.Equal(dt2))
	require.NotNil(t, second.AdditionalInfo)
	assert.Equal(t, "note", *second.AdditionalInfo)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_List_Empty(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT .+ FROM umedi.appointment`).
		WillReturnRows(sqlmock.NewRows(appointmentColumns))

	appointments, err := NewAppointmentRepository(db).List(context.Background())
	assert.Nil(t, appointments)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestAppointmentRepository_List_Error(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT .+ FROM umedi.appointment`).
		WillReturnError(errors.New("timeout"))

	_, err := NewAppointmentRepository(db).List(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.KindStorage))
}

func TestReferenceRepository_LookupHospitalSpeciality(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReferenceRepository(db)

	mock.ExpectQuery(`SELECT h.hospital_name, s.speciality_name`).
		WithArgs(int64(7), "CARD").
		WillReturnRows(sqlmock.NewRows([]string{"hospital_name", "speciality_name"}).
			AddRow("Seoul General", "Cardiology"))

	names, err := repo.LookupHospitalSpeciality(context.Background(), 7, "CARD")
	require.NoError(t, err)
	assert.Equal(t, "Seoul General", names.HospitalName)
	assert.Equal(t, "Cardiology", names.SpecialityName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepository_LookupHospitalSpeciality_NotOffered(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT h.hospital_name, s.speciality_name`).
		WithArgs(int64(7), "XXXX").
		WillReturnRows(sqlmock.NewRows([]string{"hospital_name", "speciality_name"}))

	_, err := NewReferenceRepository(db).LookupHospitalSpeciality(context.Background(), 7, "XXXX")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestMigrator_Migrate(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS umedi`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO umedi.schema_migrations`).
		WithArgs("001_init").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := NewMigrator(db).Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_Migrate_RollsBack(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS umedi`).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	applied, err := NewMigrator(db).Migrate(context.Background())
	require.Error(t, err)
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
