package consumer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slpCSV(slots int) string {
	var sb strings.Builder
	sb.WriteString("time,H0,G0,L0\n")
	for i := 0; i < slots; i++ {
		fmt.Fprintf(&sb, "%02d:%02d,%.4f,%.4f,%.4f\n",
			i/4, (i%4)*15, 0.01+float64(i)*0.0001, 0.02, 0.03)
	}
	return sb.String()
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile(" h0 ")
	require.NoError(t, err)
	assert.Equal(t, ProfileHousehold, p)

	p, err = ParseProfile("G0")
	require.NoError(t, err)
	assert.Equal(t, ProfileCommercial, p)

	_, err = ParseProfile("X9")
	assert.Error(t, err)
}

func TestTimeline_At_Wraps(t *testing.T) {
	var tl Timeline
	tl[0] = 1.5
	tl[95] = 2.5

	assert.InDelta(t, 1.5, tl.At(0), 1e-9)
	assert.InDelta(t, 1.5, tl.At(96), 1e-9)
	assert.InDelta(t, 2.5, tl.At(95), 1e-9)
	assert.InDelta(t, 2.5, tl.At(191), 1e-9)
}

func TestSLPParser_Parse(t *testing.T) {
	tl, err := NewSLPParser(ProfileHousehold).Parse(strings.NewReader(slpCSV(96)))
	require.NoError(t, err)
	assert.InDelta(t, 0.01, tl[0], 1e-9)
	assert.InDelta(t, 0.01+95*0.0001, tl[95], 1e-9)

	tl, err = NewSLPParser(ProfileAgriculture).Parse(strings.NewReader(slpCSV(96)))
	require.NoError(t, err)
	assert.InDelta(t, 0.03, tl[0], 1e-9)
}

func TestSLPParser_WrongSlotCount(t *testing.T) {
	_, err := NewSLPParser(ProfileHousehold).Parse(strings.NewReader(slpCSV(95)))
	assert.ErrorContains(t, err, "expected 96 slots")

	_, err = NewSLPParser(ProfileHousehold).Parse(strings.NewReader(slpCSV(97)))
	assert.ErrorContains(t, err, "more than 96 slots")
}

func TestSLPParser_BadHeader(t *testing.T) {
	_, err := NewSLPParser(ProfileHousehold).Parse(strings.NewReader("hour,H0\n"))
	assert.ErrorContains(t, err, "time")

	_, err = NewSLPParser(ProfileHousehold).Parse(strings.NewReader("time,G0,L0\n"))
	assert.ErrorContains(t, err, "H0")
}

func TestSLPParser_BadValue(t *testing.T) {
	csv := "time,H0\n00:00,not-a-number\n"
	_, err := NewSLPParser(ProfileHousehold).Parse(strings.NewReader(csv))
	assert.ErrorContains(t, err, "line 2")
}

func TestSyntheticTimeline_NormalisedToReferenceYear(t *testing.T) {
	for _, profile := range []Profile{ProfileHousehold, ProfileCommercial, ProfileAgriculture} {
		tl := SyntheticTimeline(profile)

		sum := 0.0
		for _, v := range tl {
			assert.Greater(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1000.0/365.0, sum, 1e-9)
	}
}

func TestSyntheticTimeline_HouseholdPeaksInTheEvening(t *testing.T) {
	tl := SyntheticTimeline(ProfileHousehold)
	// 19:30 vs 03:00
	assert.Greater(t, tl[78], tl[12])
}
