// Package slub implements the adapter for the SLUB Dresden catalog, which
// answers search, detail and account requests with json.
package slub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/i18n"
	"opacbridge/internal/opac"
	"opacbridge/internal/transport"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_search_decode = "search.decode"
	report_detail_decode = "detail.decode"
	report_detail_copies = "detail.copies"
	report_account_call  = "account.call"
)

const encoding = transport.UTF8

// dataPageType selects the json rendering of the find plugin.
const dataPageType = "1369315142"

var mediaTypes = map[string]opac.MediaType{
	"Article, E-Article": opac.MediaEdoc,
	"Book, E-Book":       opac.MediaBook,
	"Video":              opac.MediaEvideo,
	"Thesis":             opac.MediaBook,
	"Manuscript":         opac.MediaBook,
	"Musical Score":      opac.MediaScoreMusic,
	"Website":            opac.MediaURL,
	"Journal, E-Journal": opac.MediaNewspaper,
	"Map":                opac.MediaMap,
	"Audio":              opac.MediaEaudio,
	"Image":              opac.MediaArt,
	"Visual Media":       opac.MediaArt,
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
		return nil, fmt.Errorf("slub: library '%s' has no baseurl", lib.Ident)
	}
	return &Adapter{
		baseURL: baseURL,
		http:    http,
		strings: strings,
		tel:     telemetry.NewScopedAPI("slub", tel),
		session: opac.NewSession(),
	}, nil
}

func dataForm() url.Values {
	form := url.Values{}
	form.Set("type", dataPageType)
	form.Set("tx_find_find[format]", "data")
	form.Set("tx_find_find[data-format]", "app")
	return form
}

func (a *Adapter) postJSON(ctx context.Context, u string, form url.Values, out any) error {
	body, err := a.http.Post(ctx, u, form, encoding)
	if err != nil {
		return err
	}
	err = json.Unmarshal(body, out)
	if err != nil {
		return opac.ProtocolError(err, "slub response of %s is not json", u)
	}
	return nil
}

func (a *Adapter) Capabilities() opac.Capability {
	return opac.CapAccount
}

func (a *Adapter) SetLanguage(language string) {
	a.session.SetLanguage(language)
}

func (a *Adapter) ShareURL(id, _ string) string {
	return a.baseURL + "/id/" + url.PathEscape(id)
}

func (a *Adapter) SearchFields(ctx context.Context) ([]opac.SearchField, error) {
	body, err := a.http.Get(ctx, a.baseURL, encoding)
	if err != nil {
		return nil, err
	}
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, err
	}
	var fields []opac.SearchField
	doc.Find("ul#search-in-field-options li").Each(func(_ int, li *goquery.Selection) {
		name, ok := li.Attr("name")
		if !ok || name == "" {
			return
		}
		field := opac.TextField(name, htmlutil.Text(li))
		if name == "default" {
			field.FreeSearch = true
			field.Meaning = opac.MeaningFree
		}
		fields = append(fields, field)
	})
	return fields, nil
}

var _ opac.Adapter = (*Adapter)(nil)
