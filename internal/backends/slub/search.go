package slub

import (
	"context"
	"encoding/json"
	"html"
	"net/url"
	"strconv"

	"opacbridge/internal/normalize"
	"opacbridge/internal/opac"
	"opacbridge/internal/transport"
	"opacbridge/pkg/htmlutil"
)

type searchResponse struct {
	NumFound flexInt `json:"numFound"`
	Docs     []struct {
		ID           flexString `json:"id"`
		Title        string     `json:"title"`
		Author       []string   `json:"author"`
		CreationDate flexString `json:"creationDate"`
		Format       []string   `json:"format"`
	} `json:"docs"`
}

func (a *Adapter) Search(ctx context.Context, queries []opac.SearchQuery) (opac.SearchRequestResult, error) {
	err := opac.ValidateQueries(queries)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	if len(opac.Populated(queries)) == 0 {
		return opac.SearchRequestResult{}, opac.NoCriteriaError()
	}
	a.session.BeginSearch(queries)
	return a.FetchPage(ctx, 1)
}

func (a *Adapter) FetchPage(ctx context.Context, page int) (opac.SearchRequestResult, error) {
	queries, err := a.session.Query()
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	if page < 1 {
		return opac.SearchRequestResult{}, opac.InternalStateError("page %d out of range", page)
	}

	form := dataForm()
	form.Set("tx_find_find[page]", strconv.Itoa(page))
	for _, q := range opac.Populated(queries) {
		form.Set("tx_find_find[q]["+q.Key()+"]", q.Value)
	}

	var res searchResponse
	err = a.postJSON(ctx, a.baseURL, form, &res)
	if err != nil {
		a.tel.ReportBroken(report_search_decode, err)
		return opac.SearchRequestResult{}, err
	}

	results := make([]opac.SearchResult, 0, len(res.Docs))
	for _, doc := range res.Docs {
		r := opac.SearchResult{
			ID:           string(doc.ID),
			Title:        html.UnescapeString(doc.Title),
			Author:       first(doc.Author),
			MediaType:    mediaTypes[first(doc.Format)],
			Availability: opac.AvailabilityNone,
		}
		if doc.CreationDate != "" {
			r.Summary = "(" + string(doc.CreationDate) + ")"
		}
		results = append(results, r)
	}
	a.session.SetCursor("", page)
	return opac.SearchRequestResult{Results: results, TotalCount: int(res.NumFound), Page: page}, nil
}

var fieldCaptions = map[string]string{
	"format":      "Medientyp",
	"title":       "Titel",
	"contributor": "Beteiligte",
	"publisher":   "Erschienen",
	"ispartof":    "Erschienen in",
	"identifier":  "ISBN",
	"language":    "Sprache",
	"subject":     "Schlagwörter",
	"description": "Beschreibung",
}

type copyRecord struct {
	Barcode      flexString `json:"barcode"`
	Location     string     `json:"location"`
	Sublocation  string     `json:"sublocation"`
	Shelfmark    string     `json:"shelfmark"`
	StatusPhrase string     `json:"statusphrase"`
	DueDate      string     `json:"duedate"`
	Vormerken    flexString `json:"vormerken"`
}

type detailResponse struct {
	Record orderedObject   `json:"record"`
	Copies json.RawMessage `json:"copies"`
}

func (a *Adapter) Detail(ctx context.Context, id string) (opac.DetailedItem, error) {
	var res detailResponse
	err := a.postJSON(ctx, a.baseURL+"/id/"+url.PathEscape(id)+"/", dataForm(), &res)
	if transport.IsNotFound(err) {
		return opac.DetailedItem{}, opac.NotFoundError(id)
	}
	if err != nil {
		a.tel.ReportBroken(report_detail_decode, err, id)
		return opac.DetailedItem{}, err
	}
	if len(res.Record) == 0 {
		return opac.DetailedItem{}, opac.NotFoundError(id)
	}

	item := opac.DetailedItem{ID: id}
	for _, m := range res.Record {
		value := html.UnescapeString(display(m.Value))
		if value == "" {
			continue
		}
		if m.Key == "title" {
			item.Title = value
		}
		if m.Key == "format" {
			item.MediaType = mediaTypes[value]
		}
		label, ok := fieldCaptions[m.Key]
		if !ok {
			label = m.Key
		}
		item.AddDetail(label, value)
	}

	records, err := copyRecords(res.Copies)
	if err != nil {
		a.tel.ReportWarning(report_detail_copies, err, id)
	}
	for _, c := range records {
		item.Copies = append(item.Copies, c.toCopy())
	}
	return item, nil
}

// copyRecords reads the copies either from one array or from an object
// holding several arrays.
func copyRecords(raw json.RawMessage) ([]copyRecord, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []copyRecord
	if json.Unmarshal(raw, &list) == nil {
		return list, nil
	}
	var groups orderedObject
	err := json.Unmarshal(raw, &groups)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		var part []copyRecord
		if json.Unmarshal(g.Value, &part) != nil {
			continue
		}
		list = append(list, part...)
	}
	return list, nil
}

func (r copyRecord) toCopy() opac.Copy {
	c := opac.Copy{
		Barcode:    string(r.Barcode),
		Branch:     r.Location,
		Department: r.Sublocation,
		Shelfmark:  r.Shelfmark,
		Status:     htmlutil.FragmentText(r.StatusPhrase),
		ReturnDate: normalize.ParseDate(normalize.LayoutGerman, r.DueDate),
	}
	if r.Vormerken == "1" && c.Barcode != "" {
		c.ReservationToken = opac.Token(c.Barcode)
	}
	return c
}
