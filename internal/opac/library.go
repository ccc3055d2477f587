package opac

import "strings"

// Library describes one configured catalog and the backend it runs on.
type Library struct {
	Ident string `json:"ident"`
	// API names the adapter implementation, ex. "koha".
	API     string `json:"api"`
	City    string `json:"city"`
	Title   string `json:"title"`
	Country string `json:"country,omitempty"`
	Group   string `json:"group,omitempty"`
	// Account tells whether the library offers account access at all.
	Account bool              `json:"account"`
	Data    map[string]string `json:"data"`
}

// BaseURL is the configured root of the catalog without trailing slash.
func (l Library) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(l.Data["baseurl"]), "/")
}

func (l Library) DisplayName() string {
	if l.City != "" && l.Title != "" {
		return l.City + " · " + l.Title
	}
	if l.Title != "" {
		return l.Title
	}
	return l.Ident
}
