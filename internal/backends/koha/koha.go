// Package koha implements the adapter for Koha catalogs.
package koha

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/i18n"
	"opacbridge/internal/opac"
	"opacbridge/internal/transport"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_search_parse_count   = "search.parse-count"
	report_search_parse_row     = "search.parse-row"
	report_fields_missing_index = "fields.missing-index"
	report_account_fees         = "account.fees"
)

const encoding = transport.UTF8

// pageSize is the number of results Koha shows per page.
const pageSize = 20

var mediaTypes = map[string]opac.MediaType{
	"book":      opac.MediaBook,
	"film":      opac.MediaMovie,
	"sound":     opac.MediaCDMusic,
	"newspaper": opac.MediaMagazine,
}

type Adapter struct {
	opac.Unimplemented

	baseURL string
	http    transport.Transport
	strings i18n.Provider
	tel     telemetry.API
	session *opac.Session
}

func New(lib opac.Library, http transport.Transport, strings i18n.Provider, tel telemetry.API) (*Adapter, error) {
	assert.NotNil(http)
	assert.NotNil(strings)
	assert.NotNil(tel)

	baseURL := lib.BaseURL()
	if baseURL == "" {
		return nil, fmt.Errorf("koha: library '%s' has no baseurl", lib.Ident)
	}
	return &Adapter{
		baseURL: baseURL,
		http:    http,
		strings: strings,
		tel:     telemetry.NewScopedAPI("koha", tel),
		session: opac.NewSession(),
	}, nil
}

func (a *Adapter) url(script string) string {
	return a.baseURL + "/cgi-bin/koha/" + script
}

func (a *Adapter) get(ctx context.Context, u string) (*goquery.Document, error) {
	body, err := a.http.Get(ctx, u, encoding)
	if err != nil {
		return nil, err
	}
	return htmlutil.Parse(body)
}

func (a *Adapter) post(ctx context.Context, u string, form url.Values) (*goquery.Document, error) {
	body, err := a.http.Post(ctx, u, form, encoding)
	if err != nil {
		return nil, err
	}
	return htmlutil.Parse(body)
}

func (a *Adapter) Capabilities() opac.Capability {
	return opac.CapAccount | opac.CapReservation | opac.CapCancel | opac.CapEndlessScrolling
}

func (a *Adapter) SetLanguage(language string) {
	a.session.SetLanguage(language)
}

func (a *Adapter) ShareURL(id, _ string) string {
	return a.url("opac-detail.pl?biblionumber=" + url.QueryEscape(id))
}

func mediaTypeOf(sel *goquery.Selection) opac.MediaType {
	src, ok := sel.Find(".materialtype").First().Attr("src")
	if !ok {
		return opac.MediaNone
	}
	name := strings.TrimSuffix(path.Base(src), ".png")
	return mediaTypes[name]
}

var digitsRegex = regexp.MustCompile(`\d+`)

// lastNumber returns the last run of digits in text, "1 to 20 of 113" gives 113.
func lastNumber(text string) (int, bool) {
	text = strings.NewReplacer(".", "", ",", "").Replace(text)
	all := digitsRegex.FindAllString(text, -1)
	if len(all) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(all[len(all)-1])
	return n, err == nil
}

var _ opac.Adapter = (*Adapter)(nil)
