package ics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"medcal/internal/model"
)

// ContentType is the media type of serialized calendars.
const ContentType = "text/calendar;charset=utf-8"

const (
	defaultProductID    = "-//medicine-calendar//ics//EN"
	defaultCalendarName = "Medicine Calendar"
)

// uidNamespace scopes the name-based UUIDs generated for VEVENT UIDs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("medicine-calendar.ics"))

// EncodingError reports a failure to encode one event (Index >= 0) or the
// calendar as a whole (Index == -1).
type EncodingError struct {
	Index int
	Err   error
}

func (e *EncodingError) Error() string {
	if e.Index < 0 {
		return "ics: encode calendar: " + e.Err.Error()
	}
	return fmt.Sprintf("ics: encode event %d: %v", e.Index, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Encoder turns dose events into an iCalendar document.
type Encoder struct {
	// ProductID and CalendarName populate PRODID and X-WR-CALNAME.
	ProductID    string
	CalendarName string

	// Now supplies DTSTAMP. If nil, time.Now is used.
	Now func() time.Time
}

// NewEncoder returns an Encoder with the default product id and name.
func NewEncoder() *Encoder {
	return &Encoder{
		ProductID:    defaultProductID,
		CalendarName: defaultCalendarName,
		Now:          time.Now,
	}
}

// Serialize encodes events with a default Encoder.
func Serialize(events []model.DoseEvent) ([]byte, error) {
	return NewEncoder().Encode(events)
}

// Encode returns the serialized calendar for events.
//
// An empty slice yields model.ErrEmptyInput. A malformed event yields an
// *EncodingError wrapping the cause.
func (e *Encoder) Encode(events []model.DoseEvent) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(&buf, events); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the serialized calendar for events to w.
func (e *Encoder) EncodeTo(w io.Writer, events []model.DoseEvent) error {
	if len(events) == 0 {
		return model.ErrEmptyInput
	}

	cal, err := e.buildCalendar(events)
	if err != nil {
		return err
	}
	// RFC 5545 content lines end in CRLF regardless of host OS.
	if err := cal.SerializeTo(w, ical.WithNewLineWindows); err != nil {
		return &EncodingError{Index: -1, Err: err}
	}
	return nil
}

func (e *Encoder) buildCalendar(events []model.DoseEvent) (*ical.Calendar, error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	stamp := now()

	productID := e.ProductID
	if productID == "" {
		productID = defaultProductID
	}
	name := e.CalendarName
	if name == "" {
		name = defaultCalendarName
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	cal.SetXWRCalName(name)

	for i, ev := range events {
		if err := checkEvent(ev); err != nil {
			return nil, &EncodingError{Index: i, Err: err}
		}

		vev := cal.AddEvent(eventUID(ev, i))
		vev.SetDtStampTime(stamp)
		vev.SetStartAt(ev.Start)
		vev.SetEndAt(ev.End)
		vev.SetSummary(ev.Title)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
		vev.SetStatus(ical.ObjectStatusConfirmed)
		vev.SetTimeTransparency(ical.TransparencyTransparent)

		if ev.Reminder.Before > 0 {
			alarm := vev.AddAlarm()
			action := ev.Reminder.Action
			if action == "" {
				action = model.AlarmActionDisplay
			}
			alarm.SetAction(ical.Action(action))
			alarm.SetTrigger(triggerBefore(ev.Reminder.Before))
			alarm.SetProperty(ical.ComponentPropertyDescription, ev.Reminder.Description)
		}
	}

	return cal, nil
}

func checkEvent(ev model.DoseEvent) error {
	if ev.Title == "" {
		return errors.New("missing title")
	}
	if ev.Start.IsZero() {
		return errors.New("missing start time")
	}
	if ev.End.IsZero() {
		return errors.New("missing end time")
	}
	if ev.End.Before(ev.Start) {
		return fmt.Errorf("end %s is before start %s", ev.End.Format(time.RFC3339), ev.Start.Format(time.RFC3339))
	}
	return nil
}

// eventUID is stable for a given medication, start and position so that
// re-exports of an unchanged list keep the same UIDs.
func eventUID(ev model.DoseEvent, index int) string {
	key := ev.Medication + "|" + ev.Start.UTC().Format(time.RFC3339) + "|" + strconv.Itoa(index)
	return uuid.NewSHA1(uidNamespace, []byte(key)).String()
}

// triggerBefore renders a negative minute offset such as "-PT10M".
func triggerBefore(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes <= 0 {
		return "-PT" + strconv.Itoa(int(d/time.Second)) + "S"
	}
	return "-PT" + strconv.Itoa(minutes) + "M"
}
