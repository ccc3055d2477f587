// Package netbiblio implements the adapter for NetBiblio (WebOPAC) catalogs.
package netbiblio

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
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
	report_search_divibib   = "search.divibib-status"
	report_search_row       = "search.parse-row"
	report_language_current = "language.current"
	report_account_pages    = "account.pages"
)

const encoding = transport.UTF8

const pageSize = 25

type Adapter struct {
	baseURL string
	// basePath is the path component of baseURL, the backend expects it in
	// its return urls.
	basePath string
	http     transport.Transport
	strings  i18n.Provider
	tel      telemetry.API
	session  *opac.Session

	// started is set once the interface language was switched for this
	// session.
	started   bool
	languages []string
}

func New(lib opac.Library, http transport.Transport, strings i18n.Provider, tel telemetry.API) (*Adapter, error) {
	assert.NotNil(http)
	assert.NotNil(strings)
	assert.NotNil(tel)

	baseURL := lib.BaseURL()
	if baseURL == "" {
		return nil, fmt.Errorf("netbiblio: library '%s' has no baseurl", lib.Ident)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("netbiblio: library '%s': %w", lib.Ident, err)
	}
	return &Adapter{
		baseURL:  baseURL,
		basePath: parsed.Path,
		http:     http,
		strings:  strings,
		tel:      telemetry.NewScopedAPI("netbiblio", tel),
		session:  opac.NewSession(),
	}, nil
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

// start switches the interface to the session language, falling back to
// english and then german when the catalog does not offer it.
func (a *Adapter) start(ctx context.Context) error {
	if a.started {
		return nil
	}
	languages, err := a.Languages(ctx)
	if err != nil {
		return err
	}
	lang := pickLanguage(languages, a.session.Language())
	if lang != "" {
		_, err = a.get(ctx, a.changeLanguageURL(lang))
		if err != nil {
			return err
		}
	}
	a.started = true
	return nil
}

func pickLanguage(languages []string, wanted string) string {
	for _, lang := range []string{wanted, "en", "de"} {
		if slices.Contains(languages, lang) {
			return lang
		}
	}
	return ""
}

func (a *Adapter) changeLanguageURL(lang string) string {
	return a.baseURL + "/Site/ChangeLanguage?language=" + url.QueryEscape(lang)
}

var languageRegex = regexp.MustCompile(`language=([^&]+)`)

// findLanguages lists the languages the language menu offers to switch to,
// the active language is never part of it.
func findLanguages(doc *goquery.Document) []string {
	var out []string
	doc.Find(".dropdown-menu a[href*=ChangeLanguage]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if m := languageRegex.FindStringSubmatch(href); m != nil {
			out = append(out, m[1])
		}
	})
	return out
}

// Languages finds the active language by switching once and back, the menu
// only lists the other ones.
func (a *Adapter) Languages(ctx context.Context) ([]string, error) {
	if a.languages != nil {
		return a.languages, nil
	}
	doc, err := a.get(ctx, a.baseURL)
	if err != nil {
		return nil, err
	}
	offered := findLanguages(doc)
	if len(offered) == 0 {
		a.languages = []string{}
		return a.languages, nil
	}

	doc, err = a.get(ctx, a.changeLanguageURL(offered[0]))
	if err != nil {
		return nil, err
	}
	languages := slices.Clone(offered)
	current := ""
	for _, lang := range findLanguages(doc) {
		if !slices.Contains(offered, lang) {
			current = lang
			break
		}
	}
	if current == "" {
		a.tel.ReportWarning(report_language_current, "offered", offered)
	} else {
		_, err = a.get(ctx, a.changeLanguageURL(current))
		if err != nil {
			return nil, err
		}
		languages = append(languages, current)
	}
	slices.Sort(languages)
	a.languages = languages
	return languages, nil
}

func (a *Adapter) SetLanguage(language string) {
	a.session.SetLanguage(language)
	a.started = false
}

func (a *Adapter) Capabilities() opac.Capability {
	return opac.CapAccount | opac.CapReservation | opac.CapCancel | opac.CapRenewAll |
		opac.CapEndlessScrolling | opac.CapWarnReservationFees
}

// ShareURL expects the composite id of a search result, ex. "noticeId=12".
func (a *Adapter) ShareURL(id, _ string) string {
	return a.baseURL + "/search/notice?" + id
}

var digitsRegex = regexp.MustCompile(`\d+`)

// lastNumber returns the last run of digits in text, "1 - 25 of 1'024" gives 1024.
func lastNumber(text string) (int, bool) {
	text = strings.NewReplacer("'", "", ".", "", ",", "").Replace(text)
	all := digitsRegex.FindAllString(text, -1)
	if len(all) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(all[len(all)-1])
	return n, err == nil
}

var _ opac.Adapter = (*Adapter)(nil)
