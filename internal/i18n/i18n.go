// Package i18n resolves the message keys adapters select to display text.
package i18n

import (
	"fmt"
	"strings"
)

type Key string

const (
	KeyError                    Key = "error"
	KeyInternalError            Key = "internal_error"
	KeyNoCriteria               Key = "no_criteria_input"
	KeyCombinationNotSupported  Key = "combination_not_supported"
	KeyInvalidQuery             Key = "invalid_query"
	KeyNoCopyReservable         Key = "no_copy_reservable"
	KeyReservationReady         Key = "reservation_ready"
	KeyProlongedAbbr            Key = "prolonged_abbr"
	KeyReservationsNumber       Key = "reservations_number"
	KeyDescription              Key = "description"
	KeyAccountErrorDescription  Key = "unknown_error_account_with_description"
	KeyNotRenewable             Key = "not_renewable"
	KeyNotCancelable            Key = "not_cancelable"
	KeySelectionNotOffered      Key = "selection_not_offered"
	KeyUnsupported              Key = "unsupported"
	KeyNotFound                 Key = "not_found"
	KeyLoginFailed              Key = "login_failed"
	KeyUnexpectedBackendContent Key = "unexpected_backend_content"
	KeyReservedByOthers         Key = "reserved_by_others"
	KeyQueuePosition            Key = "queue_position"
)

// Provider resolves message keys.
type Provider interface {
	Get(key Key) string
	Format(key Key, args ...any) string
	// Quantity picks the singular or plural form of a key depending on n.
	Quantity(key Key, n int, args ...any) string
}

// Table is a Provider backed by static maps, the plural forms of a key are
// stored under "<key>.one" and "<key>.other".
type Table struct {
	language string
	messages map[Key]string
	fallback map[Key]string
}

// NewTable returns a Table for the given language, unknown languages fall back to english.
func NewTable(language string) Table {
	language = strings.ToLower(strings.TrimSpace(language))
	messages, ok := tables[language]
	if !ok {
		language = "en"
		messages = tables["en"]
	}
	return Table{language: language, messages: messages, fallback: tables["en"]}
}

func (t Table) Language() string {
	return t.language
}

func (t Table) Get(key Key) string {
	if msg, ok := t.messages[key]; ok {
		return msg
	}
	if msg, ok := t.fallback[key]; ok {
		return msg
	}
	return string(key)
}

func (t Table) Format(key Key, args ...any) string {
	return fmt.Sprintf(t.Get(key), args...)
}

func (t Table) Quantity(key Key, n int, args ...any) string {
	form := key + ".other"
	if n == 1 {
		form = key + ".one"
	}
	return t.Format(form, args...)
}

var tables = map[string]map[Key]string{
	"en": {
		KeyError:                         "An error occurred.",
		KeyInternalError:                 "An internal error occurred.",
		KeyNoCriteria:                    "Please enter at least one search criterion.",
		KeyCombinationNotSupported:       "This combination of search fields is not supported by this library.",
		KeyInvalidQuery:                  "The search contains an invalid field.",
		KeyNoCopyReservable:              "No copy of this item can be reserved.",
		KeyReservationReady:              "ready for pickup",
		KeyProlongedAbbr:                 "renewed",
		KeyReservationsNumber + ".one":   "%d reservation",
		KeyReservationsNumber + ".other": "%d reservations",
		KeyDescription:                   "Description",
		KeyAccountErrorDescription:       "Could not load account data: %s",
		KeyNotRenewable:                  "This item cannot be renewed.",
		KeyNotCancelable:                 "This reservation cannot be cancelled.",
		KeySelectionNotOffered:           "The selected option was not offered.",
		KeyUnsupported:                   "This library does not support this action.",
		KeyNotFound:                      "The item could not be found.",
		KeyLoginFailed:                   "Login failed.",
		KeyUnexpectedBackendContent:      "The library returned an unexpected page.",
		KeyReservedByOthers:              "reserved",
		KeyQueuePosition:                 "position %d",
	},
	"de": {
		KeyError:                         "Ein Fehler ist aufgetreten.",
		KeyInternalError:                 "Ein interner Fehler ist aufgetreten.",
		KeyNoCriteria:                    "Bitte geben Sie mindestens ein Suchkriterium ein.",
		KeyCombinationNotSupported:       "Diese Kombination von Suchfeldern wird von dieser Bibliothek nicht unterstützt.",
		KeyInvalidQuery:                  "Die Suche enthält ein ungültiges Feld.",
		KeyNoCopyReservable:              "Kein Exemplar dieses Mediums kann vorgemerkt werden.",
		KeyReservationReady:              "abholbereit",
		KeyProlongedAbbr:                 "verl.",
		KeyReservationsNumber + ".one":   "%d Vormerkung",
		KeyReservationsNumber + ".other": "%d Vormerkungen",
		KeyDescription:                   "Beschreibung",
		KeyAccountErrorDescription:       "Kontodaten konnten nicht geladen werden: %s",
		KeyNotRenewable:                  "Dieses Medium kann nicht verlängert werden.",
		KeyNotCancelable:                 "Diese Vormerkung kann nicht storniert werden.",
		KeySelectionNotOffered:           "Die gewählte Option wurde nicht angeboten.",
		KeyUnsupported:                   "Diese Bibliothek unterstützt diese Aktion nicht.",
		KeyNotFound:                      "Das Medium wurde nicht gefunden.",
		KeyLoginFailed:                   "Anmeldung fehlgeschlagen.",
		KeyUnexpectedBackendContent:      "Die Bibliothek hat eine unerwartete Seite geliefert.",
		KeyReservedByOthers:              "vorgemerkt",
		KeyQueuePosition:                 "Pos. %d",
	},
}
