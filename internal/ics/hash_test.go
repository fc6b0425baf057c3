package ics

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcal/internal/model"
)

func TestContentHash_Deterministic(t *testing.T) {
	a := paracetamol()
	b := paracetamol()
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHash_IgnoresLocation(t *testing.T) {
	a := paracetamol()
	b := paracetamol()
	b[0].StartTime = b[0].StartTime.In(time.FixedZone("UTC+9", 9*3600))
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHash_Sensitivity(t *testing.T) {
	base := ContentHash(paracetamol())

	mutations := map[string]func(m *model.Medication){
		"name":      func(m *model.Medication) { m.Name = "Ibuprofen" },
		"interval":  func(m *model.Medication) { m.Interval = 6 },
		"duration":  func(m *model.Medication) { m.Duration = 3 },
		"startTime": func(m *model.Medication) { m.StartTime = m.StartTime.Add(time.Minute) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			meds := paracetamol()
			mutate(&meds[0])
			assert.NotEqual(t, base, ContentHash(meds))
		})
	}
}

func TestContentHash_OrderMatters(t *testing.T) {
	a := model.Medication{Name: "A", Interval: 8, Duration: 2, StartTime: fixedNow}
	b := model.Medication{Name: "B", Interval: 12, Duration: 3, StartTime: fixedNow}
	assert.NotEqual(t, ContentHash([]model.Medication{a, b}), ContentHash([]model.Medication{b, a}))
}

func TestContentHash_KnownValue(t *testing.T) {
	// 31-multiplier rolling hash over the UTF-16 units of "[]".
	assert.Equal(t, Hash('['*31+']'), ContentHash(nil))
}

func TestHash_StringRoundTrip(t *testing.T) {
	h := ContentHash(paracetamol())
	back, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, back)

	_, err = ParseHash("not-a-hash")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	pattern := regexp.MustCompile(`^medications_\d+\.ics$`)

	assert.Equal(t, "medications_20230115103000000.ics", FileName(fixedNow))
	assert.Equal(t, "medications_20231231235959999.ics",
		FileName(time.Date(2023, time.December, 31, 23, 59, 59, 999_000_000, time.UTC)))
	assert.Regexp(t, pattern, NewFileName())

	local := fixedNow.In(time.FixedZone("UTC-5", -5*3600))
	assert.Equal(t, FileName(fixedNow), FileName(local))
}
