package ics

import (
	"time"

	"medcal/internal/model"
	"medcal/internal/schedule"
)

// Artifact is a finished calendar export ready for download or upload.
type Artifact struct {
	Bytes       []byte
	FileName    string
	ContentType string
	Hash        Hash
	EventCount  int
}

// Build generates the dose schedule for meds and serializes it. now is used
// for DTSTAMP and the file name.
func Build(meds []model.Medication, now time.Time) (Artifact, error) {
	events, err := schedule.GenerateEvents(meds)
	if err != nil {
		return Artifact{}, err
	}

	enc := NewEncoder()
	enc.Now = func() time.Time { return now }

	body, err := enc.Encode(events)
	if err != nil {
		return Artifact{}, err
	}

	return Artifact{
		Bytes:       body,
		FileName:    FileName(now),
		ContentType: ContentType,
		Hash:        ContentHash(meds),
		EventCount:  len(events),
	}, nil
}
