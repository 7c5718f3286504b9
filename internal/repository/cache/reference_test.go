package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/umedi/intake-api/internal/model"
	apperrors "github.com/umedi/intake-api/pkg/errors"
)

type mockReferenceRepository struct {
	mock.Mock
}

func (m *mockReferenceRepository) LookupHospitalSpeciality(ctx context.Context, hospitalID int64, specialityCode string) (*model.HospitalSpeciality, error) {
	args := m.Called(ctx, hospitalID, specialityCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HospitalSpeciality), args.Error(1)
}

func TestReferenceRepository_CachesHits(t *testing.T) {
	next := new(mockReferenceRepository)
	next.On("LookupHospitalSpeciality", mock.Anything, int64(7), "CARD").
		Return(&model.HospitalSpeciality{HospitalName: "Seoul General", SpecialityName: "Cardiology"}, nil).
		Once()

	repo := NewReferenceRepository(next, time.Minute)

	for i := 0; i < 3; i++ {
		names, err := repo.LookupHospitalSpeciality(context.Background(), 7, "CARD")
		require.NoError(t, err)
		assert.Equal(t, "Seoul General", names.HospitalName)
		assert.Equal(t, "Cardiology", names.SpecialityName)
	}

	next.AssertNumberOfCalls(t, "LookupHospitalSpeciality", 1)
}

func TestReferenceRepository_ReturnsCopies(t *testing.T) {
	next := new(mockReferenceRepository)
	next.On("LookupHospitalSpeciality", mock.Anything, int64(7), "CARD").
		Return(&model.HospitalSpeciality{HospitalName: "Seoul General", SpecialityName: "Cardiology"}, nil).
		Once()

	repo := NewReferenceRepository(next, time.Minute)

	first, err := repo.LookupHospitalSpeciality(context.Background(), 7, "CARD")
	require.NoError(t, err)
	first.HospitalName = "mutated"

	second, err := repo.LookupHospitalSpeciality(context.Background(), 7, "CARD")
	require.NoError(t, err)
	assert.Equal(t, "Seoul General", second.HospitalName)
}

func TestReferenceRepository_DoesNotCacheMisses(t *testing.T) {
	next := new(mockReferenceRepository)
	next.On("LookupHospitalSpeciality", mock.Anything, int64(7), "XXXX").
		Return(nil, apperrors.NotFound("hospital speciality", nil)).
		Twice()

	repo := NewReferenceRepository(next, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := repo.LookupHospitalSpeciality(context.Background(), 7, "XXXX")
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	}

	next.AssertExpectations(t)
}

func TestNewReferenceRepository_Disabled(t *testing.T) {
	next := new(mockReferenceRepository)
	repo := NewReferenceRepository(next, 0)
	assert.Same(t, next, repo)
}
