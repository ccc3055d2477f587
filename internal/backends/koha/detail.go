package koha

import (
	"context"
	"net/url"
	"strings"

	"opacbridge/internal/normalize"
	"opacbridge/internal/opac"
	"opacbridge/internal/transport"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

func (a *Adapter) Detail(ctx context.Context, id string) (opac.DetailedItem, error) {
	doc, err := a.get(ctx, a.url("opac-detail.pl?biblionumber="+url.QueryEscape(id)))
	if transport.IsNotFound(err) {
		return opac.DetailedItem{}, opac.NotFoundError(id)
	}
	if err != nil {
		return opac.DetailedItem{}, err
	}

	title := doc.Find("h1.title").First()
	if title.Length() == 0 {
		return opac.DetailedItem{}, opac.NotFoundError(id)
	}

	item := opac.DetailedItem{
		ID:        id,
		Title:     htmlutil.CleanText(htmlutil.OwnText(title)),
		MediaType: mediaTypeOf(doc.Selection),
	}
	item.CoverURL, _ = doc.Find("#bookcover img").First().Attr("src")

	doc.Find("h5.author, span.results_summary").Each(func(_ int, row *goquery.Selection) {
		label, value, _ := strings.Cut(htmlutil.Text(row), ":")
		item.AddDetail(strings.TrimSpace(label), strings.TrimSpace(value))
	})

	doc.Find(".holdingst > tbody > tr").Each(func(_ int, row *goquery.Selection) {
		row.Find(".branch-info-tooltip").Remove()
		item.Copies = append(item.Copies, parseCopy(row))
	})
	item.Reservable = doc.Find("a.reserve").Length() > 0

	return item, nil
}

func parseCopy(row *goquery.Selection) opac.Copy {
	var c opac.Copy
	row.Find("td").Each(func(_ int, td *goquery.Selection) {
		text := htmlutil.Text(td)
		switch {
		case td.HasClass("location"):
			c.Branch = text
		case td.HasClass("collection"):
			c.Location = text
		case td.HasClass("call_no"):
			c.Shelfmark = text
		case td.HasClass("status"):
			c.Status = text
		case td.HasClass("date_due"):
			c.ReturnDate = normalize.ParseDate(normalize.LayoutGerman, text)
		case td.HasClass("holds_count"):
			c.Reservations = text
		case td.HasClass("barcode"):
			c.Barcode = text
		}
	})
	return c
}
