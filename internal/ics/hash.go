package ics

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"medcal/internal/model"
)

// Hash is a non-cryptographic fingerprint of a medication list.
type Hash int32

func (h Hash) String() string {
	return strconv.FormatInt(int64(h), 10)
}

// ParseHash reads back a value produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return Hash(n), nil
}

// hashRecord is the projection of a medication that takes part in the hash.
type hashRecord struct {
	Name      string `json:"name"`
	Interval  int    `json:"interval"`
	Duration  int    `json:"duration"`
	StartTime string `json:"startTime"`
}

const hashTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ContentHash fingerprints the name, interval, duration and start time of
// every medication, in order. Lists that agree on those fields hash equally.
func ContentHash(meds []model.Medication) Hash {
	records := make([]hashRecord, 0, len(meds))
	for _, m := range meds {
		records = append(records, hashRecord{
			Name:      m.Name,
			Interval:  m.Interval,
			Duration:  m.Duration,
			StartTime: m.StartTime.UTC().Format(hashTimeLayout),
		})
	}

	// Marshalling plain strings and ints cannot fail.
	data, _ := json.Marshal(records)

	var h int32
	for _, c := range utf16.Encode([]rune(string(data))) {
		h = h*31 + int32(c)
	}
	return Hash(h)
}

const fileStampLayout = "2006-01-02-15:04:05.000"

var fileStampStripper = strings.NewReplacer(":", "", ".", "", "-", "")

// FileName returns "medications_<stamp>.ics" where stamp is now in UTC with
// separators removed, e.g. medications_20230115103000000.ics.
func FileName(now time.Time) string {
	return "medications_" + fileStampStripper.Replace(now.UTC().Format(fileStampLayout)) + ".ics"
}

// NewFileName is FileName for the current instant.
func NewFileName() string {
	return FileName(time.Now())
}
