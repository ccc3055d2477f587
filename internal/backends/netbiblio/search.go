package netbiblio

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"opacbridge/internal/normalize"
	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// defaultField is the "all words" index, unused term slots are sent with it.
const defaultField = "W"

// filterPrefix marks text fields that are filters instead of search terms.
const filterPrefix = "Filter."

func (a *Adapter) Search(ctx context.Context, queries []opac.SearchQuery) (opac.SearchRequestResult, error) {
	err := opac.ValidateQueries(queries)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	if len(opac.Populated(queries)) == 0 {
		return opac.SearchRequestResult{}, opac.NoCriteriaError()
	}
	form, err := searchForm(queries)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	err = a.start(ctx)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	a.session.BeginSearch(queries)
	return a.submit(ctx, form)
}

func (a *Adapter) submit(ctx context.Context, form url.Values) (opac.SearchRequestResult, error) {
	doc, err := a.post(ctx, a.baseURL+"/search/extended/submit", form)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	return a.parseSearch(ctx, doc, 1), nil
}

// searchForm encodes at most two search terms, the extended search form
// has no more slots.
func searchForm(queries []opac.SearchQuery) (url.Values, error) {
	form := url.Values{}
	terms := 0
	for _, q := range opac.Populated(queries) {
		if q.Kind() != opac.FieldText || strings.HasPrefix(q.Key(), filterPrefix) {
			continue
		}
		if terms == 2 {
			return nil, opac.CombinationNotSupportedError()
		}
		if terms == 1 {
			form.Add("Request.SearchOperator", "AND")
		}
		form.Add("Request.SearchTerm", q.Value)
		form.Add("Request.SearchField", q.Key())
		terms++
	}
	for ; terms < 2; terms++ {
		if terms == 1 {
			form.Add("Request.SearchOperator", "AND")
		}
		form.Add("Request.SearchTerm", "")
		form.Add("Request.SearchField", defaultField)
	}

	for _, q := range opac.Populated(queries) {
		switch {
		case q.Kind() == opac.FieldText && strings.HasPrefix(q.Key(), filterPrefix):
			form.Add(q.Key(), q.Value)
		case q.Kind() == opac.FieldDropdown:
			if mode := q.Field.Datum("modeKey"); mode != "" {
				form.Set(mode, q.Field.Datum("modeValue"))
			}
			form.Add(q.Key(), q.Value)
		case q.Kind() == opac.FieldCheckbox && q.Checked():
			form.Add(q.Key(), "true")
		}
	}
	form.Set("Request.PageSize", strconv.Itoa(pageSize))
	return form, nil
}

func (a *Adapter) FetchPage(ctx context.Context, page int) (opac.SearchRequestResult, error) {
	queries, err := a.session.Query()
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	if page < 1 {
		return opac.SearchRequestResult{}, opac.InternalStateError("page %d out of range", page)
	}

	cursor := a.session.Cursor()
	if cursor == "" {
		// results without a next page carry no result id, replay the search
		form, err := searchForm(queries)
		if err != nil {
			return opac.SearchRequestResult{}, err
		}
		res, err := a.submit(ctx, form)
		if err != nil || page == 1 {
			return res, err
		}
		return opac.SearchRequestResult{TotalCount: res.TotalCount, Page: page}, nil
	}

	params := url.Values{}
	params.Set("searchType", "Extended")
	params.Set("searchResultId", cursor)
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))
	doc, err := a.get(ctx, a.baseURL+"/search/shortview?"+params.Encode())
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	return a.parseSearch(ctx, doc, page), nil
}

var rowRegex = regexp.MustCompile(`wo-row_(\d+)`)

func (a *Adapter) parseSearch(ctx context.Context, doc *goquery.Document, page int) opac.SearchRequestResult {
	if href, ok := doc.Find(".next-page a").First().Attr("href"); ok {
		if id := htmlutil.QueryParam(href, "searchResultId"); id != "" {
			a.session.SetCursor(id, page)
		}
	}

	res := opac.SearchRequestResult{Page: page}
	countElem := doc.Find(".wo-grid-meta-resultcount").First()
	if countElem.Length() == 0 {
		return res
	}
	res.TotalCount, _ = lastNumber(htmlutil.Text(countElem))

	ebooks := a.divibibStatus(ctx, doc)

	var rows []*goquery.Selection
	doc.Find(".wo-grid-table tbody tr").Each(func(_ int, s *goquery.Selection) {
		rows = append(rows, s)
	})
	rowKey := func(s *goquery.Selection) string {
		id, _ := s.Attr("id")
		return normalize.RowKey(rowRegex, id)
	}
	for _, group := range normalize.GroupRows(rows, rowKey) {
		first := group[0]
		key := rowKey(first)
		cols := first.Find(`td[style="font-size: 14px;"]`)
		if cols.Length() == 0 {
			a.tel.ReportWarning(report_search_row, "row", key)
			continue
		}
		titleCol := cols.First()

		var more []string
		cols.Slice(1, cols.Length()).Each(func(_ int, s *goquery.Selection) {
			if text := htmlutil.Text(s); text != "" {
				more = append(more, text)
			}
		})
		result := opac.SearchResult{
			ID:      "noticeId=" + key,
			Title:   htmlutil.Text(titleCol.Find("a")),
			Author:  htmlutil.OwnText(titleCol),
			Summary: strings.Join(more, " / "),
		}
		result.CoverURL, _ = first.Find(".wo-cover").First().Attr("src")

		if status, ok := ebooks[key]; ok {
			result.Availability = status
		} else {
			result.Availability = iconStatus(first)
		}
		res.Results = append(res.Results, result)
	}
	return res
}

func iconStatus(sel *goquery.Selection) opac.Availability {
	src, ok := sel.Find(".wo-disposability-icon").First().Attr("src")
	if !ok {
		return opac.AvailabilityNone
	}
	return normalize.AvailabilityFromIcon(src)
}

type divibibResponse struct {
	DivibibStatus []struct {
		EntityID string `json:"entityId"`
		Result   string `json:"result"`
	} `json:"DivibibStatus"`
}

// divibibStatus fetches the availability of ebooks, the result page only
// holds placeholders for them. Failures leave the icons of the page in place.
func (a *Adapter) divibibStatus(ctx context.Context, doc *goquery.Document) map[string]opac.Availability {
	var ids []string
	doc.Find(".wo-status-plc[data-entityid][data-divibibid], .wo-status-plc-icon[data-entityid][data-divibibid]").
		Each(func(_ int, s *goquery.Selection) {
			entity, _ := s.Attr("data-entityid")
			divibib, _ := s.Attr("data-divibibid")
			// the agency id is always 0
			ids = append(ids, entity+"#"+divibib+"/0")
		})
	if len(ids) == 0 {
		return nil
	}

	form := url.Values{}
	form.Set("format", "icon")
	form.Set("ids", strings.Join(ids, ","))
	body, err := a.http.Post(ctx, a.baseURL+"/handler/divibibstatus", form, encoding)
	if err != nil {
		a.tel.ReportWarning(report_search_divibib, err)
		return nil
	}
	var res divibibResponse
	err = json.Unmarshal(body, &res)
	if err != nil {
		a.tel.ReportWarning(report_search_divibib, err)
		return nil
	}

	out := make(map[string]opac.Availability, len(res.DivibibStatus))
	for _, entry := range res.DivibibStatus {
		snippet, err := htmlutil.Parse([]byte(entry.Result))
		if err != nil {
			continue
		}
		if status := iconStatus(snippet.Selection); status != opac.AvailabilityNone {
			out[strings.ReplaceAll(entry.EntityID, "N", "")] = status
		}
	}
	return out
}
