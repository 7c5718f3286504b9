package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/umedi/intake-api/internal/dispatch"
	"github.com/umedi/intake-api/internal/model"
	"github.com/umedi/intake-api/internal/repository"
	apperrors "github.com/umedi/intake-api/pkg/errors"
	"github.com/umedi/intake-api/pkg/kst"
	"github.com/umedi/intake-api/pkg/logger"
	"github.com/umedi/intake-api/pkg/metrics"
	"github.com/umedi/intake-api/pkg/security"
)

const (
	MinCandidates = 1
	MaxCandidates = 2
)

var errCandidateCount = errors.New("candidate_dt must hold one or two entries")

// Outcome separates a fully processed appointment from one that was persisted
// but could not be enriched or dispatched. Failures are returned as errors.
type Outcome int

const (
	OutcomeFullSuccess Outcome = iota
	OutcomePersistedDegraded
)

func (o Outcome) String() string {
	if o == OutcomePersistedDegraded {
		return "persisted_degraded"
	}
	return "full_success"
}

type DegradedReason string

const (
	ReasonNone       DegradedReason = ""
	ReasonEnrichment DegradedReason = "enrichment"
	ReasonDispatch   DegradedReason = "dispatch"
)

type Result struct {
	Appointment *model.AppointmentResponse
	Outcome     Outcome
	Reason      DegradedReason
	// Cause is the enrichment or dispatch error behind a degraded outcome.
	Cause error
}

func (r *Result) Degraded() bool {
	return r.Outcome == OutcomePersistedDegraded
}

type Repositories struct {
	Sequences    repository.SequenceRepository
	Appointments repository.AppointmentRepository
	References   repository.ReferenceRepository
}

type Options struct {
	// QueryTimeout bounds every repository call. Zero means no bound.
	QueryTimeout time.Duration
}

type Service struct {
	sequences    repository.SequenceRepository
	appointments repository.AppointmentRepository
	references   repository.ReferenceRepository
	codec        *security.FieldCodec
	dispatcher   dispatch.Dispatcher
	validate     *validator.Validate
	queryTimeout time.Duration
	log          *logger.Logger
	metrics      *metrics.Metrics
}

func NewService(repos Repositories, codec *security.FieldCodec, dispatcher dispatch.Dispatcher, opts Options, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		sequences:    repos.Sequences,
		appointments: repos.Appointments,
		references:   repos.References,
		codec:        codec,
		dispatcher:   dispatcher,
		validate:     validator.New(),
		queryTimeout: opts.QueryTimeout,
		log:          log,
		metrics:      m,
	}
}

// AddAppointment validates, stores and dispatches a new appointment. Once the
// row is written the call succeeds; enrichment or dispatch problems only
// degrade the result.
func (s *Service) AddAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*Result, error) {
	log := s.log.WithContext(ctx)

	candidates, err := s.validateRequest(ctx, req)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	id, err := s.nextID(ctx)
	if err != nil {
		log.Error(err, "failed to allocate appointment id")
		s.recordFailure(err)
		return nil, err
	}

	appointment, err := s.prepare(id, req, candidates)
	if err != nil {
		log.Error(err, "failed to prepare appointment", "appointment_id", id)
		s.recordFailure(err)
		return nil, err
	}

	if err := s.insert(ctx, appointment); err != nil {
		log.Error(err, "failed to store appointment", "appointment_id", id)
		s.recordFailure(err)
		return nil, err
	}
	s.metrics.AppointmentsCreated.Inc()

	resp := buildResponse(appointment, req)

	names, err := s.lookup(ctx, int64(req.HospitalID), req.Speciality)
	if err != nil {
		log.Warn("appointment stored without hospital metadata",
			"appointment_id", id,
			"hospital_id", int64(req.HospitalID),
			"speciality", req.Speciality,
			"error", err.Error(),
		)
		return s.degraded(resp, ReasonEnrichment, err), nil
	}
	resp.Hospital = names.HospitalName
	resp.Speciality = names.SpecialityName

	if err := s.dispatcher.Dispatch(ctx, buildPayload(appointment, req)); err != nil {
		log.Warn("appointment stored but not dispatched", "appointment_id", id, "error", err.Error())
		return s.degraded(resp, ReasonDispatch, err), nil
	}

	s.metrics.IntakeOutcomes.WithLabelValues(OutcomeFullSuccess.String(), string(ReasonNone)).Inc()
	log.Info("appointment accepted", "appointment_id", id, "claim_yn", string(appointment.ClaimYN))
	return &Result{Appointment: resp, Outcome: OutcomeFullSuccess}, nil
}

// FetchAppointmentList returns every appointment with personal fields
// decrypted. An empty table is a NotFound error. One undecryptable row fails
// the whole listing.
func (s *Service) FetchAppointmentList(ctx context.Context) ([]*model.AppointmentView, error) {
	rows, err := s.list(ctx)
	if err != nil {
		if !apperrors.Is(err, apperrors.KindNotFound) {
			s.log.WithContext(ctx).Error(err, "failed to list appointments")
		}
		return nil, err
	}

	views := make([]*model.AppointmentView, 0, len(rows))
	for _, row := range rows {
		view, err := s.toView(row)
		if err != nil {
			s.log.WithContext(ctx).Error(err, "failed to decode appointment", "appointment_id", row.AppointmentID)
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) validateRequest(ctx context.Context, req *model.CreateAppointmentRequest) ([]time.Time, error) {
	if n := len(req.CandidateDT); n < MinCandidates || n > MaxCandidates {
		return nil, apperrors.Validation("invalid datetime", errCandidateCount)
	}

	candidates := make([]time.Time, 0, len(req.CandidateDT))
	for i, raw := range req.CandidateDT {
		// An empty second slot means no second candidate.
		if i > 0 && raw == "" {
			continue
		}
		t, err := kst.ParseCandidate(raw)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, t)
	}

	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, apperrors.Validation("bad request", err)
	}
	return candidates, nil
}

func (s *Service) prepare(id string, req *model.CreateAppointmentRequest, candidates []time.Time) (*model.Appointment, error) {
	phone, err := s.codec.Encrypt(req.User.Phone)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("encrypt phone: %w", err))
	}

	coverage := req.User.Coverage()
	appointment := &model.Appointment{
		AppointmentID:  id,
		HospitalID:     int64(req.HospitalID),
		Speciality:     req.Speciality,
		FirstName:      req.User.FirstName,
		LastName:       req.User.LastName,
		Phone:          phone,
		Email:          req.User.Email,
		ClaimYN:        coverage.Flag(),
		CandidateDT1:   candidates[0],
		AdditionalInfo: req.User.AdditionalInfo,
	}
	if len(candidates) > 1 {
		appointment.CandidateDT2 = &candidates[1]
	}

	if claim, ok := coverage.(model.InsuranceClaim); ok {
		dob, err := s.codec.EncryptOptional(claim.DateOfBirth)
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("encrypt date of birth: %w", err))
		}
		appointment.Gender = claim.Gender
		appointment.DateOfBirth = dob
	}
	return appointment, nil
}

func buildResponse(a *model.Appointment, req *model.CreateAppointmentRequest) *model.AppointmentResponse {
	resp := &model.AppointmentResponse{
		AppointmentID:  a.AppointmentID,
		Speciality:     a.Speciality,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Phone:          req.User.Phone,
		Email:          a.Email,
		CandidateDT1:   kst.FormatForDisplay(a.CandidateDT1),
		CandidateDT2:   kst.FormatOptional(a.CandidateDT2),
		ClaimYN:        a.ClaimYN,
		AdditionalInfo: a.AdditionalInfo,
		InsuranceImgs:  req.User.InsuranceImgs,
		AdditionalImgs: req.User.AdditionalImgs,
	}
	if claim, ok := req.User.Coverage().(model.InsuranceClaim); ok {
		resp.Gender = claim.Gender
		resp.DateOfBirth = claim.DateOfBirth
	}
	return resp
}

func buildPayload(a *model.Appointment, req *model.CreateAppointmentRequest) *dispatch.Payload {
	return &dispatch.Payload{
		AppointmentID:  a.AppointmentID,
		HospitalID:     a.HospitalID,
		Speciality:     a.Speciality,
		ClaimYN:        a.ClaimYN,
		InsuranceImgs:  req.User.InsuranceImgs,
		AdditionalImgs: req.User.AdditionalImgs,
	}
}

func (s *Service) toView(a *model.Appointment) (*model.AppointmentView, error) {
	phone, err := s.codec.Decrypt(a.Phone)
	if err != nil {
		return nil, err
	}
	dob, err := s.codec.DecryptOptional(a.DateOfBirth)
	if err != nil {
		return nil, err
	}

	return &model.AppointmentView{
		AppointmentID:  a.AppointmentID,
		HospitalID:     a.HospitalID,
		Speciality:     a.Speciality,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Phone:          phone,
		Email:          a.Email,
		Gender:         a.Gender,
		DateOfBirth:    dob,
		ClaimYN:        a.ClaimYN,
		CandidateDT1:   kst.FormatForDisplay(a.CandidateDT1),
		CandidateDT2:   kst.FormatOptional(a.CandidateDT2),
		AdditionalInfo: a.AdditionalInfo,
		CreatedAt:      kst.FormatForDisplay(a.CreatedAt),
	}, nil
}

func (s *Service) degraded(resp *model.AppointmentResponse, reason DegradedReason, cause error) *Result {
	s.metrics.IntakeOutcomes.WithLabelValues(OutcomePersistedDegraded.String(), string(reason)).Inc()
	return &Result{
		Appointment: resp,
		Outcome:     OutcomePersistedDegraded,
		Reason:      reason,
		Cause:       cause,
	}
}

func (s *Service) recordFailure(err error) {
	s.metrics.IntakeOutcomes.WithLabelValues("failed", apperrors.KindOf(err).String()).Inc()
}

func (s *Service) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *Service) nextID(ctx context.Context) (string, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	start := time.Now()
	id, err := s.sequences.NextID(ctx)
	s.metrics.ObserveDatabase("next_id", time.Since(start).Seconds(), err)
	return id, err
}

func (s *Service) insert(ctx context.Context, a *model.Appointment) error {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	start := time.Now()
	err := s.appointments.Insert(ctx, a)
	s.metrics.ObserveDatabase("insert_appointment", time.Since(start).Seconds(), err)
	return err
}

func (s *Service) lookup(ctx context.Context, hospitalID int64, code string) (*model.HospitalSpeciality, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	start := time.Now()
	names, err := s.references.LookupHospitalSpeciality(ctx, hospitalID, code)
	s.metrics.ObserveDatabase("lookup_hospital_speciality", time.Since(start).Seconds(), err)
	return names, err
}

func (s *Service) list(ctx context.Context) ([]*model.Appointment, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.appointments.List(ctx)
	if apperrors.Is(err, apperrors.KindNotFound) {
		s.metrics.ObserveDatabase("list_appointments", time.Since(start).Seconds(), nil)
		return nil, err
	}
	s.metrics.ObserveDatabase("list_appointments", time.Since(start).Seconds(), err)
	return rows, err
}
