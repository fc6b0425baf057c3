package schedule

import (
	"time"

	"medcal/internal/model"
)

// MedicationSummary describes the generated doses of one medication.
type MedicationSummary struct {
	Medication string
	Doses      int
	First      time.Time
	Last       time.Time
	FinalDose  bool
}

// Summarize groups events by medication, keeping first-seen order.
func Summarize(events []model.DoseEvent) []MedicationSummary {
	out := make([]MedicationSummary, 0)
	index := make(map[string]int)

	for _, ev := range events {
		i, ok := index[ev.Medication]
		if !ok {
			index[ev.Medication] = len(out)
			out = append(out, MedicationSummary{
				Medication: ev.Medication,
				First:      ev.Start,
				Last:       ev.Start,
			})
			i = len(out) - 1
		}
		s := &out[i]
		s.Doses++
		if ev.Start.Before(s.First) {
			s.First = ev.Start
		}
		if ev.Start.After(s.Last) {
			s.Last = ev.Start
		}
		if ev.Final {
			s.FinalDose = true
		}
	}
	return out
}
