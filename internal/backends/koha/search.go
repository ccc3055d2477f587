package koha

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"opacbridge/internal/normalize"
	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

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

	params := searchParams(queries)
	if page > 1 {
		params.Set("offset", strconv.Itoa(pageSize*(page-1)))
	}
	doc, err := a.get(ctx, a.url("opac-search.pl?"+params.Encode()))
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	result, err := a.parseSearch(doc, page)
	if err != nil {
		return opac.SearchRequestResult{}, err
	}
	a.session.SetCursor("", page)
	return result, nil
}

func searchParams(queries []opac.SearchQuery) url.Values {
	params := url.Values{}
	for _, q := range opac.Populated(queries) {
		switch q.Kind() {
		case opac.FieldText:
			params.Add("idx", q.Key())
			params.Add("q", q.Value)
		case opac.FieldDropdown:
			name := q.Field.Datum("id")
			if name == "" {
				name = "limit"
			}
			params.Add(name, q.Value)
		case opac.FieldCheckbox:
			if q.Checked() {
				params.Add("limit", q.Key())
			}
		}
	}
	return params
}

var biblionumberRegex = regexp.MustCompile(`biblionumber=([^&]+)`)

func (a *Adapter) parseSearch(doc *goquery.Document, page int) (opac.SearchRequestResult, error) {
	count := doc.Find("#numresults").First()
	if count.Length() == 0 {
		if doc.Find(".searchresults").Length() == 0 {
			return opac.SearchRequestResult{Results: []opac.SearchResult{}, Page: page}, nil
		}
		a.tel.ReportBroken(report_search_parse_count, "missing #numresults")
		return opac.SearchRequestResult{}, opac.ProtocolError(nil, "koha search page without result count")
	}
	total, ok := lastNumber(htmlutil.Text(count))
	if !ok {
		a.tel.ReportBroken(report_search_parse_count, htmlutil.Text(count))
		return opac.SearchRequestResult{}, opac.ProtocolError(nil, "koha result count '%s'", htmlutil.Text(count))
	}

	results := []opac.SearchResult{}
	doc.Find(".searchresults table tr").Each(func(i int, row *goquery.Selection) {
		titleLink := row.Find("a.title").First()
		href, _ := titleLink.Attr("href")
		m := biblionumberRegex.FindStringSubmatch(href)
		if m == nil {
			a.tel.ReportBroken(report_search_parse_row, "row without biblionumber", i)
			return
		}

		summary := htmlutil.Text(row.Find(".results_summary").First())
		if parts := strings.Split(summary, " | "); len(parts) > 1 {
			summary = strings.Join(parts[:len(parts)-1], " | ")
		}
		cover, _ := row.Find(".coverimages img").First().Attr("src")

		results = append(results, opac.SearchResult{
			ID:        m[1],
			Title:     htmlutil.CleanText(htmlutil.OwnText(titleLink)),
			Author:    htmlutil.Text(row.Find(".author").First()),
			Summary:   summary,
			MediaType: mediaTypeOf(row),
			CoverURL:  cover,
			Availability: normalize.AvailabilityFromFlags(
				row.Find(".available").Length() > 0,
				row.Find(".unavailable").Length() > 0,
			),
		})
	})

	return opac.SearchRequestResult{Results: results, TotalCount: total, Page: page}, nil
}
