// Package normalize turns scraped backend text into the canonical model.
package normalize

import "strings"

// Field is a canonical column of a copy or account table.
type Field int

const (
	FieldUnmapped Field = iota
	// FieldContinuation marks an unlabeled sub column that continues the
	// field seen before it.
	FieldContinuation
	FieldBranch
	FieldDepartment
	FieldLocation
	FieldShelfmark
	FieldStatus
	FieldReturnDate
	FieldReservations
	FieldReserve
	FieldBarcode
	FieldAuthor
	FieldTitle
	FieldFormat
	FieldRenewals
	FieldExpiration
	FieldReadyDate
)

var fieldNames = map[Field]string{
	FieldUnmapped:     "unmapped",
	FieldContinuation: "continuation",
	FieldBranch:       "branch",
	FieldDepartment:   "department",
	FieldLocation:     "location",
	FieldShelfmark:    "shelfmark",
	FieldStatus:       "status",
	FieldReturnDate:   "return date",
	FieldReservations: "reservations",
	FieldReserve:      "reserve",
	FieldBarcode:      "barcode",
	FieldAuthor:       "author",
	FieldTitle:        "title",
	FieldFormat:       "format",
	FieldRenewals:     "renewals",
	FieldExpiration:   "expiration",
	FieldReadyDate:    "ready date",
}

func (f Field) String() string {
	return fieldNames[f]
}

// Vocabulary maps localized labels to fields. Lookups ignore case,
// surrounding space and trailing '.' or ':'.
type Vocabulary struct {
	labels map[string]Field
}

func NewVocabulary(labels map[Field][]string) Vocabulary {
	v := Vocabulary{labels: make(map[string]Field)}
	for field, variants := range labels {
		for _, label := range variants {
			v.labels[labelKey(label)] = field
		}
	}
	return v
}

func labelKey(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	return strings.TrimSpace(strings.TrimRight(label, ".:"))
}

// Lookup returns FieldUnmapped for unknown labels. The empty label is a
// continuation.
func (v Vocabulary) Lookup(label string) Field {
	key := labelKey(label)
	if key == "" {
		return FieldContinuation
	}
	return v.labels[key]
}

// Extend returns a vocabulary with additional labels, v is not modified.
func (v Vocabulary) Extend(labels map[Field][]string) Vocabulary {
	out := Vocabulary{labels: make(map[string]Field, len(v.labels))}
	for k, f := range v.labels {
		out.labels[k] = f
	}
	for field, variants := range labels {
		for _, label := range variants {
			out.labels[labelKey(label)] = field
		}
	}
	return out
}

// CopyVocabulary covers the copy tables of the german, english and french
// interfaces.
var CopyVocabulary = NewVocabulary(map[Field][]string{
	FieldBranch:       {"Bibliothek", "Library", "Bibliothèque", "Zweigstelle", "Branch"},
	FieldLocation:     {"Aktueller Standort", "Standorte", "Standort", "Current location", "Location", "Localisation"},
	FieldContinuation: {"Stockwerk"},
	FieldDepartment:   {"Bereich", "Abteilung", "Department", "Collection"},
	FieldShelfmark:    {"Signatur", "Call number", "Cote"},
	FieldStatus:       {"Verfügbarkeit", "Disposability", "Disponsibilité", "Status"},
	FieldReturnDate:   {"Fälligkeitsdatum", "Due date", "Date d'échéance"},
	FieldReservations: {"Anz. Res.", "Reservations", "Nb. rés."},
	FieldReserve:      {"Reservieren", "Reserve", "Réserver", "Bestellen", "Commander"},
	FieldBarcode:      {"Exemplarnr", "Item number", "No d'exemplaire", "Barcode"},
})

// AccountVocabulary covers the lent and reserved item tables.
var AccountVocabulary = NewVocabulary(map[Field][]string{
	FieldBranch:       {"Bibliothek", "Library", "Bibliothèque"},
	FieldAuthor:       {"Autor", "Author", "Auteur"},
	FieldTitle:        {"Titel", "Title", "Titre"},
	FieldFormat:       {"Medienart", "Media type", "Type de média"},
	FieldReturnDate:   {"Fälligkeitsdatum", "Due date", "Date d'échéance"},
	FieldBarcode:      {"Exemplarnr", "Item number", "No d'exemplaire"},
	FieldRenewals:     {"Verlängerungen", "Renewals", "Prolongations"},
	FieldReservations: {"Anz. Res."},
	FieldExpiration:   {"Abholfrist", "Pickup deadline", "Délai de retrait"},
})
