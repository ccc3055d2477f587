package opac

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Availability is the traffic light classification of a search result.
type Availability int

const (
	// AvailabilityNone means the backend did not report anything.
	AvailabilityNone Availability = iota
	AvailabilityUnknown
	AvailabilityRed
	AvailabilityYellow
	AvailabilityGreen
)

func (a Availability) String() string {
	switch a {
	case AvailabilityUnknown:
		return "UNKNOWN"
	case AvailabilityRed:
		return "RED"
	case AvailabilityYellow:
		return "YELLOW"
	case AvailabilityGreen:
		return "GREEN"
	}
	return ""
}

type MediaType int

const (
	// MediaNone means the backend did not report a media type.
	MediaNone MediaType = iota
	MediaBook
	MediaCD
	MediaCDSoftware
	MediaCDMusic
	MediaDVD
	MediaMovie
	MediaAudiobook
	MediaPackage
	MediaGameConsole
	MediaEbook
	MediaScoreMusic
	MediaPackageBooks
	MediaUnknown
	MediaNewspaper
	MediaBoardgame
	MediaSchoolVersion
	MediaMap
	MediaBluray
	MediaAudioCassette
	MediaArt
	MediaMagazine
	MediaGameConsoleWii
	MediaGameConsoleNintendo
	MediaGameConsolePlaystation
	MediaGameConsoleXbox
	MediaLPRecord
	MediaMP3
	MediaURL
	MediaEvideo
	MediaEaudio
	MediaEdoc
)

var mediaTypeNames = []string{
	"", "BOOK", "CD", "CD_SOFTWARE", "CD_MUSIC", "DVD", "MOVIE", "AUDIOBOOK", "PACKAGE",
	"GAME_CONSOLE", "EBOOK", "SCORE_MUSIC", "PACKAGE_BOOKS", "UNKNOWN", "NEWSPAPER",
	"BOARDGAME", "SCHOOL_VERSION", "MAP", "BLURAY", "AUDIO_CASSETTE", "ART", "MAGAZINE",
	"GAME_CONSOLE_WII", "GAME_CONSOLE_NINTENDO", "GAME_CONSOLE_PLAYSTATION",
	"GAME_CONSOLE_XBOX", "LP_RECORD", "MP3", "URL", "EVIDEO", "EAUDIO", "EDOC",
}

func (m MediaType) String() string {
	if m < 0 || int(m) >= len(mediaTypeNames) {
		return ""
	}
	return mediaTypeNames[m]
}

// ParseMediaType is the inverse of MediaType.String, unknown names give MediaNone.
func ParseMediaType(name string) MediaType {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return MediaNone
	}
	for i, n := range mediaTypeNames {
		if n == name {
			return MediaType(i)
		}
	}
	return MediaNone
}

type SearchResult struct {
	// ID is unique within a result set, its format is defined by the backend
	// and may encode a composite key like "noticeId=123".
	ID           string
	Title        string
	Author       string
	Summary      string
	MediaType    MediaType
	CoverURL     string
	Availability Availability
}

// InnerHTML renders the display lines of a result as escaped html.
func (r SearchResult) InnerHTML() string {
	var out strings.Builder
	fmt.Fprintf(&out, "<b>%s</b>", html.EscapeString(r.Title))
	if r.Author != "" {
		fmt.Fprintf(&out, "<br>%s", html.EscapeString(r.Author))
	}
	if r.Summary != "" {
		fmt.Fprintf(&out, "<br>%s", html.EscapeString(r.Summary))
	}
	return out.String()
}

type SearchRequestResult struct {
	Results []SearchResult
	// TotalCount is what the backend reports, it is independent of len(Results).
	TotalCount int
	Page       int
}

type Detail struct {
	Label string
	Value string
}

type DetailedItem struct {
	ID        string
	Title     string
	CoverURL  string
	MediaType MediaType
	// Details are kept in display order, labels may repeat.
	Details    []Detail
	Copies     []Copy
	Reservable bool
}

func (d *DetailedItem) AddDetail(label, value string) {
	d.Details = append(d.Details, Detail{Label: label, Value: value})
}

// ReservableCopies returns the copies that carry a reservation token.
func (d DetailedItem) ReservableCopies() []Copy {
	var out []Copy
	for _, c := range d.Copies {
		if c.Reservable() {
			out = append(out, c)
		}
	}
	return out
}

type Copy struct {
	Branch     string
	Department string
	Location   string
	Shelfmark  string
	Status     string
	// ReturnDate is zero when the backend reports no (or a sentinel) due date.
	ReturnDate   time.Time
	Reservations string
	Barcode      string
	// ReservationToken is set iff this specific copy can be reserved.
	ReservationToken Token
}

func (c Copy) Reservable() bool {
	return !c.ReservationToken.IsZero()
}

type AccountItem struct {
	ItemID   string
	Title    string
	Author   string
	Format   string
	Branch   string
	Status   string
	CoverURL string
}

type LentItem struct {
	AccountItem
	DueDate time.Time
	Barcode string
	// RenewalToken is empty when the item cannot be renewed, in that case
	// NotRenewableReason may carry the reason shown by the backend.
	RenewalToken       Token
	NotRenewableReason string
}

func (l LentItem) Renewable() bool {
	return !l.RenewalToken.IsZero()
}

type ReservedItem struct {
	AccountItem
	ExpirationDate time.Time
	ReadyDate      time.Time
	CancelToken    Token
	Ready          bool
}

func (r ReservedItem) Cancelable() bool {
	return !r.CancelToken.IsZero()
}

type AccountData struct {
	AccountID string
	Lent      []LentItem
	Reserved  []ReservedItem
	// PendingFees is the fee text displayed by the backend, empty if there are none.
	PendingFees string
	ValidUntil  time.Time
	// Warning carries a non-fatal message of the backend, ex. "your card expires soon".
	Warning string
}

// Account identifies the credentials of one library card.
type Account struct {
	ID       string
	Library  string
	Name     string
	Password string
}
