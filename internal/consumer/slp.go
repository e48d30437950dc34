// Package consumer implements standard-load-profile consumers: they
// replay a quarter-hour demand timeline and cover it with wholesale
// buy offers at the maximum price.
package consumer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Profile is a standardised load profile class.
type Profile string

const (
	ProfileHousehold   Profile = "H0"
	ProfileCommercial  Profile = "G0"
	ProfileAgriculture Profile = "L0"
)

// ParseProfile maps a config string to a Profile.
func ParseProfile(s string) (Profile, error) {
	switch Profile(strings.ToUpper(strings.TrimSpace(s))) {
	case ProfileHousehold:
		return ProfileHousehold, nil
	case ProfileCommercial:
		return ProfileCommercial, nil
	case ProfileAgriculture:
		return ProfileAgriculture, nil
	}
	return "", fmt.Errorf("consumer: unknown profile %q", s)
}

// slotsPerDay is the quarter-hour resolution of a profile day.
const slotsPerDay = 96

// Timeline is one full profile day, kWh drawn per quarter-hour slot.
type Timeline [slotsPerDay]float64

// At wraps the tick cyclically onto the day.
func (t Timeline) At(tick int64) float64 {
	idx := int(tick % slotsPerDay)
	if idx < 0 {
		idx += slotsPerDay
	}
	return t[idx]
}

// SLPParser parses profile CSV exports.
//
// Expected format:
//
//	time,H0,G0,L0
//	00:00,0.0168,0.0112,0.0203
type SLPParser struct {
	// Profile column to extract.
	Profile Profile
}

func NewSLPParser(profile Profile) *SLPParser {
	return &SLPParser{Profile: profile}
}

func (p *SLPParser) Parse(r io.Reader) (Timeline, error) {
	var timeline Timeline
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return timeline, fmt.Errorf("reading CSV header: %w", err)
	}
	col, err := profileColumn(header, p.Profile)
	if err != nil {
		return timeline, err
	}

	lineNum := 1
	filled := 0
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return timeline, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}
		if filled >= slotsPerDay {
			return timeline, fmt.Errorf("line %d: more than %d slots", lineNum, slotsPerDay)
		}
		if len(record) <= col {
			return timeline, fmt.Errorf("line %d: expected %d fields, got %d", lineNum, col+1, len(record))
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return timeline, fmt.Errorf("line %d: parsing value %q: %w", lineNum, record[col], err)
		}
		timeline[filled] = value
		filled++
	}

	if filled != slotsPerDay {
		return timeline, fmt.Errorf("expected %d slots, got %d", slotsPerDay, filled)
	}
	return timeline, nil
}

func profileColumn(header []string, profile Profile) (int, error) {
	if len(header) < 2 || strings.TrimSpace(header[0]) != "time" {
		return 0, fmt.Errorf("expected first column to be \"time\", got %v", header)
	}
	for i, col := range header[1:] {
		if strings.TrimSpace(col) == string(profile) {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("profile column %q not found in header %v", profile, header)
}

// SyntheticTimeline renders an approximation of the profile shape when
// no CSV is configured: households peak in the evening, commerce over
// working hours, agriculture at the morning and evening duties.
func SyntheticTimeline(profile Profile) Timeline {
	var t Timeline
	for slot := range t {
		hour := float64(slot) / 4
		var shape float64
		switch profile {
		case ProfileCommercial:
			shape = 0.3 + 0.7*gauss(hour, 12.5, 3.5)
		case ProfileAgriculture:
			shape = 0.35 + 0.5*gauss(hour, 6.5, 1.5) + 0.5*gauss(hour, 18.0, 1.8)
		default:
			shape = 0.25 + 0.35*gauss(hour, 8.0, 2.0) + 0.75*gauss(hour, 19.5, 2.5)
		}
		t[slot] = shape
	}

	// normalise to the SLP reference of 1000 kWh per year
	sum := 0.0
	for _, v := range t {
		sum += v
	}
	dailyTarget := 1000.0 / 365.0
	for i := range t {
		t[i] = t[i] / sum * dailyTarget
	}
	return t
}

func gauss(x, mean, sigma float64) float64 {
	d := (x - mean) / sigma
	return math.Exp(-0.5 * d * d)
}
