package ics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcal/internal/model"
	"medcal/internal/schedule"
)

var fixedNow = time.Date(2023, time.January, 15, 10, 30, 0, 0, time.UTC)

func testEncoder() *Encoder {
	enc := NewEncoder()
	enc.Now = func() time.Time { return fixedNow }
	return enc
}

func paracetamol() []model.Medication {
	return []model.Medication{{
		Name:      "Paracetamol",
		Interval:  8,
		Duration:  2,
		StartTime: time.Date(2023, time.January, 1, 8, 0, 0, 0, time.UTC),
	}}
}

func TestSerialize_EmptyInput(t *testing.T) {
	_, err := Serialize(nil)
	assert.True(t, errors.Is(err, model.ErrEmptyInput))

	_, err = Serialize([]model.DoseEvent{})
	assert.True(t, errors.Is(err, model.ErrEmptyInput))
}

func TestSerialize_RoundTrip(t *testing.T) {
	meds := append(paracetamol(), model.Medication{
		Name:      "Weekly Medicine",
		Interval:  48,
		Duration:  6,
		StartTime: time.Date(2023, time.January, 1, 23, 0, 0, 0, time.UTC),
	})
	events, err := schedule.GenerateEvents(meds)
	require.NoError(t, err)

	body, err := testEncoder().Encode(events)
	require.NoError(t, err)

	parsed, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, parsed, len(events))

	for i, ev := range events {
		p := parsed[i]
		assert.True(t, ev.Start.Equal(p.Start), "start %d: %s != %s", i, ev.Start, p.Start)
		assert.True(t, ev.End.Equal(p.End), "end %d: %s != %s", i, ev.End, p.End)
		assert.Equal(t, ev.Title, p.Summary)
		assert.Equal(t, ev.Description, p.Description)
		assert.Equal(t, "CONFIRMED", p.Status)
		assert.True(t, p.Transparent)

		require.Len(t, p.Alarms, 1)
		assert.Equal(t, "DISPLAY", p.Alarms[0].Action)
		assert.Equal(t, "-PT10M", p.Alarms[0].Trigger)
		assert.Equal(t, model.DefaultAlarmText, p.Alarms[0].Description)
	}
}

func TestSerialize_CalendarHeader(t *testing.T) {
	events, err := schedule.GenerateEvents(paracetamol())
	require.NoError(t, err)

	body, err := testEncoder().Encode(events)
	require.NoError(t, err)
	text := string(body)

	assert.True(t, strings.HasPrefix(text, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(text, "END:VCALENDAR\r\n"))
	assert.Contains(t, text, "VERSION:2.0")
	assert.Contains(t, text, "PRODID:-//medicine-calendar//ics//EN")
	assert.Contains(t, text, "METHOD:PUBLISH")
	assert.Contains(t, text, "X-WR-CALNAME:Medicine Calendar")
	assert.Contains(t, text, "DTSTAMP:20230115T103000Z")
	assert.Contains(t, text, "DTSTART:20230101T080000Z")
	assert.Equal(t, 6, strings.Count(text, "BEGIN:VEVENT"))
	assert.Equal(t, 6, strings.Count(text, "BEGIN:VALARM"))
}

func TestSerialize_DeterministicOutput(t *testing.T) {
	events, err := schedule.GenerateEvents(paracetamol())
	require.NoError(t, err)

	a, err := testEncoder().Encode(events)
	require.NoError(t, err)
	b, err := testEncoder().Encode(events)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	parsed, err := Parse(a)
	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, p := range parsed {
		assert.NotEmpty(t, p.UID)
		assert.False(t, seen[p.UID], "duplicate UID %s", p.UID)
		seen[p.UID] = true
	}
}

func TestSerialize_MalformedEvent(t *testing.T) {
	start := time.Date(2023, time.January, 1, 8, 0, 0, 0, time.UTC)
	good := model.DoseEvent{Medication: "A", Title: "A - every 8h", Start: start, End: start.Add(time.Hour)}

	cases := map[string]model.DoseEvent{
		"missing title": {Medication: "A", Start: start, End: start.Add(time.Hour)},
		"zero start":    {Medication: "A", Title: "A", End: start},
		"zero end":      {Medication: "A", Title: "A", Start: start},
		"end before":    {Medication: "A", Title: "A", Start: start, End: start.Add(-time.Minute)},
	}

	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Serialize([]model.DoseEvent{good, bad})
			require.Error(t, err)

			var encErr *EncodingError
			require.True(t, errors.As(err, &encErr))
			assert.Equal(t, 1, encErr.Index)
			assert.NotNil(t, errors.Unwrap(err))
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestEncodeTo_WriterFailure(t *testing.T) {
	events, err := schedule.GenerateEvents(paracetamol())
	require.NoError(t, err)

	err = testEncoder().EncodeTo(failingWriter{}, events)
	require.Error(t, err)

	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, -1, encErr.Index)
	assert.Contains(t, err.Error(), "disk full")
}

func TestTriggerBefore(t *testing.T) {
	assert.Equal(t, "-PT10M", triggerBefore(10*time.Minute))
	assert.Equal(t, "-PT90M", triggerBefore(90*time.Minute))
	assert.Equal(t, "-PT30S", triggerBefore(30*time.Second))
}

func TestBuild(t *testing.T) {
	art, err := Build(paracetamol(), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, ContentType, art.ContentType)
	assert.Equal(t, "medications_20230115103000000.ics", art.FileName)
	assert.Equal(t, 6, art.EventCount)
	assert.Equal(t, ContentHash(paracetamol()), art.Hash)
	assert.NotEmpty(t, art.Bytes)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(nil, fixedNow)
	assert.True(t, errors.Is(err, model.ErrEmptyInput))

	bad := paracetamol()
	bad[0].Interval = 0
	_, err = Build(bad, fixedNow)
	assert.True(t, errors.Is(err, model.ErrInvalidInterval))

	noDoses := paracetamol()
	noDoses[0].Duration = 0
	_, err = Build(noDoses, fixedNow)
	assert.True(t, errors.Is(err, model.ErrEmptyInput))
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)
}
