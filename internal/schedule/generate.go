package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"medcal/internal/model"
)

// FinalDoseThreshold is the interval (hours) from which a synthetic
// "Final Dose" is appended at the nominal end of treatment.
const FinalDoseThreshold = 24

const (
	dateLayout = "Monday, January 02, 2006"
	timeLayout = "15:04"
)

// GenerateEvents turns a medication list into dose events.
//
// Medications are processed in input order; the doses of one medication are
// chronological. For each medication, doses are placed every Interval hours
// of local wall-clock time starting at StartTime, inside the half-open
// window [StartTime, StartTime + Duration*24h). Medications with
// Interval >= FinalDoseThreshold get one extra "Final Dose" on the window's
// end date, at the hour and minute of StartTime. A reading that falls in a
// spring-forward gap moves past it; doses never repeat an instant.
//
// The function does not read the clock and does not modify its input.
func GenerateEvents(meds []model.Medication) ([]model.DoseEvent, error) {
	if len(meds) == 0 {
		return nil, model.ErrEmptyInput
	}
	for _, m := range meds {
		if m.Interval <= 0 {
			return nil, fmt.Errorf("%w: %q has interval %d", model.ErrInvalidInterval, m.Name, m.Interval)
		}
	}

	events := make([]model.DoseEvent, 0)
	for _, m := range meds {
		medEvents, err := eventsForMedication(m)
		if err != nil {
			return nil, err
		}
		events = append(events, medEvents...)
	}
	return events, nil
}

func eventsForMedication(m model.Medication) ([]model.DoseEvent, error) {
	if m.Duration <= 0 {
		return nil, nil
	}

	start := m.StartTime
	end := start.Add(time.Duration(m.Duration) * 24 * time.Hour)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.HOURLY,
		Interval: m.Interval,
		Dtstart:  start,
		Until:    end,
	})
	if err != nil {
		return nil, fmt.Errorf("schedule: build rule for %q: %w", m.Name, err)
	}

	out := make([]model.DoseEvent, 0)
	dayCount := 1
	previousDay := start.Day()

	var last time.Time
	next := rule.Iterator()
	for k := 0; ; k++ {
		current, ok := next()
		if !ok {
			break
		}
		current = skipGap(current, wallClock(start).Add(time.Duration(k*m.Interval)*time.Hour))
		if !current.Before(end) {
			break
		}
		// A gap shifted forward can land on the next occurrence.
		if !last.IsZero() && !current.After(last) {
			continue
		}
		last = current
		if current.Day() != previousDay {
			dayCount++
			previousDay = current.Day()
		}
		out = append(out, newDose(m, current, regularDescription(m, current, dayCount), false))
	}

	if m.Interval >= FinalDoseThreshold {
		final := time.Date(end.Year(), end.Month(), end.Day(), start.Hour(), start.Minute(), 0, 0, start.Location())
		out = append(out, newDose(m, final, finalDescription(m, final), true))
	}

	return out, nil
}

// wallClock returns t's wall-clock reading as a UTC time, for comparing
// local readings without zone offsets.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// skipGap moves t forward when it was built from a wall-clock reading that
// does not exist in its zone (spring-forward). want is the intended reading.
// The result is the instant of want under the offset in effect before the
// transition, so 02:00 in a 02:00-03:00 gap becomes 03:00.
func skipGap(t, want time.Time) time.Time {
	if d := want.Sub(wallClock(t)); d > 0 {
		return t.Add(d)
	}
	return t
}

func newDose(m model.Medication, at time.Time, description string, final bool) model.DoseEvent {
	title := fmt.Sprintf("%s - every %dh", m.Name, m.Interval)
	if final {
		title = m.Name + " - Final Dose"
	}
	return model.DoseEvent{
		Medication:  m.Name,
		Start:       at,
		End:         clampedEnd(at),
		Title:       title,
		Description: description,
		Final:       final,
		Reminder:    model.DefaultAlarm(),
	}
}

// clampedEnd returns start + 1h, or 23:59 of start's day if that would
// roll over to the next day.
func clampedEnd(start time.Time) time.Time {
	end := start.Add(time.Hour)
	y, mo, d := start.Date()
	ey, emo, ed := end.Date()
	if ey != y || emo != mo || ed != d {
		return time.Date(y, mo, d, 23, 59, 0, 0, start.Location())
	}
	return end
}

func regularDescription(m model.Medication, at time.Time, dayCount int) string {
	durationText := fmt.Sprintf("📆 Total duration: %d day", m.Duration)
	if m.Duration > 1 {
		durationText = fmt.Sprintf("📆 Treatment day: %d of %d", dayCount, m.Duration)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 Date: %s\n", at.Format(dateLayout))
	fmt.Fprintf(&b, "⏰ Time: %s\n", at.Format(timeLayout))
	fmt.Fprintf(&b, "💊 Medication: %s\n", m.Name)
	fmt.Fprintf(&b, "⏳ Interval: Every %d hours\n", m.Interval)
	b.WriteString(durationText + "\n")
	b.WriteString("✅ Remember to take it on time.")
	return b.String()
}

func finalDescription(m model.Medication, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Date: %s\n", at.Format(dateLayout))
	fmt.Fprintf(&b, "⏰ Time: %s\n", at.Format(timeLayout))
	fmt.Fprintf(&b, "💊 Medication: %s\n", m.Name)
	b.WriteString("⏳ Final scheduled dose.\n")
	b.WriteString("✅ Ensure you complete your treatment.")
	return b.String()
}
