package normalize

import (
	"net/url"
	"path"
	"strings"

	"opacbridge/internal/opac"
)

// AvailabilityFromIcon classifies the traffic light icons of a result list.
func AvailabilityFromIcon(src string) opac.Availability {
	src = strings.TrimSpace(src)
	if src == "" {
		return opac.AvailabilityUnknown
	}
	if u, err := url.Parse(src); err == nil {
		src = u.Path
	}
	name := strings.ToLower(path.Base(src))
	switch {
	case strings.HasSuffix(name, "yes.png"):
		return opac.AvailabilityGreen
	case strings.HasSuffix(name, "no.png"):
		return opac.AvailabilityRed
	case strings.HasSuffix(name, "maybe.png"), strings.HasSuffix(name, "partial.png"):
		return opac.AvailabilityYellow
	}
	return opac.AvailabilityUnknown
}

// AvailabilityFromFlags combines "some copies available" and "some copies
// unavailable" markers. No marker at all is not reported.
func AvailabilityFromFlags(available, unavailable bool) opac.Availability {
	switch {
	case available && unavailable:
		return opac.AvailabilityYellow
	case available:
		return opac.AvailabilityGreen
	case unavailable:
		return opac.AvailabilityRed
	}
	return opac.AvailabilityNone
}

var (
	unavailableWords = []string{
		"nicht verfügbar", "nicht ausleihbar", "entliehen", "ausgeliehen", "vermisst", "bestellt",
		"not available", "unavailable", "checked out", "on loan", "missing", "on order",
		"non disponible", "emprunté", "prêté",
	}
	availableWords = []string{
		"verfügbar", "ausleihbar", "präsenzbestand", "available", "on shelf", "disponible",
	}
)

// AvailabilityFromStatus classifies a free text copy status by keyword.
func AvailabilityFromStatus(status string) opac.Availability {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return opac.AvailabilityNone
	}
	for _, w := range unavailableWords {
		if strings.Contains(status, w) {
			return opac.AvailabilityRed
		}
	}
	for _, w := range availableWords {
		if strings.Contains(status, w) {
			return opac.AvailabilityGreen
		}
	}
	return opac.AvailabilityUnknown
}

// CombineAvailability folds per copy availabilities into one result light.
func CombineAvailability(values ...opac.Availability) opac.Availability {
	var green, red bool
	for _, v := range values {
		switch v {
		case opac.AvailabilityGreen:
			green = true
		case opac.AvailabilityRed:
			red = true
		case opac.AvailabilityYellow:
			green, red = true, true
		}
	}
	if !green && !red {
		for _, v := range values {
			if v == opac.AvailabilityUnknown {
				return opac.AvailabilityUnknown
			}
		}
	}
	return AvailabilityFromFlags(green, red)
}
