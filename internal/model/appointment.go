package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type ClaimFlag string

const (
	ClaimYes ClaimFlag = "y"
	ClaimNo  ClaimFlag = "n"
)

// Coverage is either an InsuranceClaim or NoClaim. Only a claim can carry
// gender and date of birth.
type Coverage interface {
	Flag() ClaimFlag
}

type InsuranceClaim struct {
	Gender      *string
	DateOfBirth *string
}

func (InsuranceClaim) Flag() ClaimFlag { return ClaimYes }

type NoClaim struct{}

func (NoClaim) Flag() ClaimFlag { return ClaimNo }

// Appointment is the persisted row. Phone and DateOfBirth hold codec tokens.
type Appointment struct {
	AppointmentID  string     `db:"appointment_id" json:"appointment_id"`
	HospitalID     int64      `db:"hospital_id" json:"hospital_id"`
	Speciality     string     `db:"speciality" json:"speciality"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	Phone          string     `db:"phone" json:"-"`
	Email          string     `db:"email" json:"email"`
	Gender         *string    `db:"gender" json:"gender"`
	DateOfBirth    *string    `db:"date_of_birth" json:"-"`
	ClaimYN        ClaimFlag  `db:"claim_yn" json:"claim_yn"`
	CandidateDT1   time.Time  `db:"candidate_dt1" json:"candidate_dt1"`
	CandidateDT2   *time.Time `db:"candidate_dt2" json:"candidate_dt2"`
	AdditionalInfo *string    `db:"additional_info" json:"additional_info"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// AppointmentView is a listed appointment with personal fields decrypted and
// instants rendered in the display layout.
type AppointmentView struct {
	AppointmentID  string    `json:"appointment_id"`
	HospitalID     int64     `json:"hospital_id"`
	Speciality     string    `json:"speciality"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	Gender         *string   `json:"gender"`
	DateOfBirth    *string   `json:"date_of_birth"`
	ClaimYN        ClaimFlag `json:"claim_yn"`
	CandidateDT1   string    `json:"candidate_dt1"`
	CandidateDT2   *string   `json:"candidate_dt2"`
	AdditionalInfo *string   `json:"additional_info"`
	CreatedAt      string    `json:"created_at"`
}

type HospitalSpeciality struct {
	HospitalName   string `db:"hospital_name" json:"hospital_name"`
	SpecialityName string `db:"speciality_name" json:"speciality_name"`
}

// HospitalID accepts hospital_id as a JSON number or a numeric string, since
// existing front ends send both.
type HospitalID int64

func (h *HospitalID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("hospital_id: %w", err)
		}
		*h = HospitalID(id)
		return nil
	}

	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*h = HospitalID(id)
	return nil
}

type CreateAppointmentRequest struct {
	HospitalID  HospitalID      `json:"hospital_id" validate:"required,gt=0"`
	Speciality  string          `json:"speciality" validate:"required"`
	CandidateDT []string        `json:"candidate_dt"`
	User        AppointmentUser `json:"user"`
}

type AppointmentUser struct {
	FirstName      string          `json:"first_name" validate:"required"`
	LastName       string          `json:"last_name" validate:"required"`
	Phone          string          `json:"phone" validate:"required,max=32"`
	Email          string          `json:"email" validate:"omitempty,email"`
	ClaimYN        ClaimFlag       `json:"claim_yn" validate:"required,oneof=y n"`
	Gender         *string         `json:"gender,omitempty"`
	DateOfBirth    *string         `json:"date_of_birth,omitempty"`
	AdditionalInfo *string         `json:"additional_info,omitempty" validate:"omitempty,max=2000"`
	InsuranceImgs  json.RawMessage `json:"insurance_imgs,omitempty"`
	AdditionalImgs json.RawMessage `json:"additional_imgs,omitempty"`
}

// Coverage converts the claim flag into its variant. Gender and date of birth
// are dropped unless the appointment is a claim.
func (u AppointmentUser) Coverage() Coverage {
	if u.ClaimYN == ClaimYes {
		return InsuranceClaim{Gender: u.Gender, DateOfBirth: u.DateOfBirth}
	}
	return NoClaim{}
}

// AppointmentResponse is the record returned to the caller and handed to the
// downstream processor.
type AppointmentResponse struct {
	AppointmentID  string          `json:"appointment_id"`
	Hospital       string          `json:"hospital,omitempty"`
	Speciality     string          `json:"speciality"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	CandidateDT1   string          `json:"candidate_dt1"`
	CandidateDT2   *string         `json:"candidate_dt2,omitempty"`
	ClaimYN        ClaimFlag       `json:"claim_yn"`
	Gender         *string         `json:"gender,omitempty"`
	DateOfBirth    *string         `json:"date_of_birth,omitempty"`
	AdditionalInfo *string         `json:"additional_info,omitempty"`
	InsuranceImgs  json.RawMessage `json:"insurance_imgs,omitempty"`
	AdditionalImgs json.RawMessage `json:"additional_imgs,omitempty"`
}
