package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "medcal/internal/log"
)

// ParsedEvent is a VEVENT read back from a serialized calendar.
type ParsedEvent struct {
	UID string

	Summary     string
	Description string
	Status      string
	Transparent bool

	Start time.Time
	End   time.Time

	Alarms []ParsedAlarm
}

// ParsedAlarm is a VALARM nested in a ParsedEvent.
type ParsedAlarm struct {
	Action      string
	Trigger     string
	Description string
}

// Parse reads an iCalendar payload and returns its events in file order.
// Events with an unreadable DTSTART/DTEND are logged and skipped.
func Parse(body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "uid", comp.Id())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent
	out.UID = ve.Id()

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, err
	}
	out.Start = start
	out.End = end

	out.Summary = propValue(&ve.ComponentBase, ical.ComponentPropertySummary)
	out.Description = propValue(&ve.ComponentBase, ical.ComponentPropertyDescription)
	out.Status = propValue(&ve.ComponentBase, ical.ComponentPropertyStatus)
	out.Transparent = strings.EqualFold(propValue(&ve.ComponentBase, ical.ComponentPropertyTransp), string(ical.TransparencyTransparent))

	for _, a := range ve.Alarms() {
		out.Alarms = append(out.Alarms, ParsedAlarm{
			Action:      propValue(&a.ComponentBase, ical.ComponentPropertyAction),
			Trigger:     propValue(&a.ComponentBase, ical.ComponentPropertyTrigger),
			Description: propValue(&a.ComponentBase, ical.ComponentPropertyDescription),
		})
	}

	return out, nil
}

func propValue(cb *ical.ComponentBase, p ical.ComponentProperty) string {
	if prop := cb.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}
