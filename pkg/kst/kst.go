// Package kst converts candidate appointment times between the display
// pattern used by the booking front end and absolute instants.
//
// All conversions happen in Asia/Seoul regardless of the host time zone.
package kst

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	apperrors "github.com/umedi/intake-api/pkg/errors"
)

// Layout is YYYY-MM-DD AM/PM HH:MI on a 12-hour clock.
const Layout = "2006-01-02 PM 03:04"

const zoneName = "Asia/Seoul"

var seoul = mustLoad(zoneName)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("kst: load %s: %v", name, err))
	}
	return loc
}

// Location returns the fixed target zone.
func Location() *time.Location {
	return seoul
}

var errNotWallClock = errors.New("not a valid 12-hour Seoul wall-clock time")

// ParseCandidate parses s in the display layout as Seoul wall-clock time.
// Input that does not render back to itself is rejected: hour 00 on the
// 12-hour clock and local times skipped by a DST change.
func ParseCandidate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, seoul)
	if err != nil {
		return time.Time{}, apperrors.Validation("invalid datetime", err)
	}
	if FormatForDisplay(t) != s {
		return time.Time{}, apperrors.Validation("invalid datetime", errNotWallClock)
	}
	return t, nil
}

// FormatForDisplay renders t as Seoul wall-clock time in the display layout.
func FormatForDisplay(t time.Time) string {
	return t.In(seoul).Format(Layout)
}

// FormatOptional renders t when set and returns nil otherwise.
func FormatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatForDisplay(*t)
	return &s
}
