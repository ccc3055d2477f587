package netbiblio

import (
	"context"
	"strings"

	"opacbridge/internal/i18n"
	"opacbridge/internal/normalize"
	"opacbridge/internal/opac"
	"opacbridge/internal/transport"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// onleiheDetail is the detail label under which the id of a divibib ebook is kept.
const onleiheDetail = "_onleihe_id"

func (a *Adapter) Detail(ctx context.Context, id string) (opac.DetailedItem, error) {
	doc, err := a.get(ctx, a.baseURL+"/search/notice?"+id)
	if transport.IsNotFound(err) {
		return opac.DetailedItem{}, opac.NotFoundError(id)
	}
	if err != nil {
		return opac.DetailedItem{}, err
	}
	return a.parseDetail(doc, id)
}

func (a *Adapter) parseDetail(doc *goquery.Document, id string) (opac.DetailedItem, error) {
	title := doc.Find(`.wo-marc-title, .wo-list-content-no-label[style*="font-weight: bold"]`).First()
	if title.Length() == 0 {
		return opac.DetailedItem{}, opac.NotFoundError(id)
	}
	item := opac.DetailedItem{
		ID:    id,
		Title: htmlutil.Text(title),
	}
	item.CoverURL, _ = doc.Find(".wo-cover").First().Attr("src")

	doc.Find("#lst-fullview_Details .wo-list-label").Each(func(_ int, label *goquery.Selection) {
		item.AddDetail(htmlutil.Text(label), htmlutil.Text(label.Next()))
	})
	description := htmlutil.Text(doc.Find(`.wo-list-content-no-label[style="background-color:#F3F3F3;"]`))
	if description != "" {
		item.AddDetail(a.strings.Get(i18n.KeyDescription), description)
	}

	doc.Find(".wo-linklist-multimedialinks .wo-link a, .wo-btn-ebibliomedia, .wo-btn-divibib").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		switch {
		case strings.Contains(href, "multimedialinks/link?url"):
			item.AddDetail(htmlutil.Text(link), htmlutil.QueryParam(href, "url"))
		case strings.Contains(href, "ebibliomedialink?ref"):
			item.AddDetail(htmlutil.Text(link), htmlutil.QueryParam(href, "ref"))
		case strings.Contains(href, "divibibrequestitem?divibibId"):
			item.AddDetail(onleiheDetail, htmlutil.QueryParam(href, "divibibId"))
		}
	})

	item.Copies = parseCopies(doc.Find(".wo-grid-table").First())
	item.Reservable = len(item.ReservableCopies()) > 0
	return item, nil
}

// locationSeparator joins the location columns of catalogs that split the
// location over several unlabeled columns.
const locationSeparator = " · "

func parseCopies(table *goquery.Selection) []opac.Copy {
	var headers []string
	table.ChildrenFiltered("thead").ChildrenFiltered("tr").ChildrenFiltered("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, htmlutil.Text(th))
	})

	folder := normalize.NewFolder(normalize.CopyVocabulary)
	var copies []opac.Copy
	table.ChildrenFiltered("tbody").ChildrenFiltered("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		var columns [][]string
		cells.Each(func(_ int, td *goquery.Selection) {
			columns = append(columns, htmlutil.SplitBreaks(td))
		})

		var c opac.Copy
		folder.Row(headers, columns, func(cell normalize.Cell) {
			if cell.Continues {
				if cell.Field == normalize.FieldLocation && c.Location != "" {
					c.Location += locationSeparator + cell.Text
				}
				return
			}
			switch cell.Field {
			case normalize.FieldBranch:
				c.Branch = cell.Text
			case normalize.FieldDepartment:
				c.Department = cell.Text
			case normalize.FieldLocation:
				c.Location = cell.Text
			case normalize.FieldShelfmark:
				c.Shelfmark = cell.Text
			case normalize.FieldStatus:
				c.Status = cell.Text
			case normalize.FieldReturnDate:
				c.ReturnDate = normalize.ParseDate(normalize.LayoutGerman, cell.Text)
			case normalize.FieldReservations:
				c.Reservations = cell.Text
			case normalize.FieldBarcode:
				c.Barcode = cell.Text
			case normalize.FieldReserve:
				if href, ok := cells.Eq(cell.Column).Find("a").First().Attr("href"); ok {
					c.ReservationToken = opac.Token(htmlutil.QueryParam(href, "selectedItems"))
				}
			}
		})
		copies = append(copies, c)
	})
	return copies
}
