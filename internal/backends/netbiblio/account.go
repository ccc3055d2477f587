package netbiblio

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"opacbridge/internal/i18n"
	"opacbridge/internal/normalize"
	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

func (a *Adapter) login(ctx context.Context, acc opac.Account) (*goquery.Document, error) {
	form := url.Values{}
	form.Set("ReturnUrl", a.basePath+"/account")
	form.Set("Username", acc.Name)
	form.Set("Password", acc.Password)
	form.Set("SaveUsernameInCookie", "false")
	form.Set("StayLoggedIn", "false")

	doc, err := a.post(ctx, a.baseURL+"/account/login", form)
	if err != nil {
		return nil, err
	}
	alert := doc.Find(".alert")
	if alert.Length() > 0 && doc.Find(".wo-com-account-overview").Length() == 0 {
		a.session.Invalidate()
		return nil, opac.AuthError(htmlutil.OwnText(alert.First()))
	}
	a.session.MarkAuthenticated(acc)
	return doc, nil
}

// ensureLogin logs in unless the session already belongs to acc.
func (a *Adapter) ensureLogin(ctx context.Context, acc opac.Account) error {
	err := a.start(ctx)
	if err != nil {
		return err
	}
	if a.session.AuthenticatedAs(acc) {
		return nil
	}
	_, err = a.login(ctx, acc)
	return err
}

func (a *Adapter) CheckAccount(ctx context.Context, acc opac.Account) error {
	err := a.start(ctx)
	if err != nil {
		return err
	}
	_, err = a.login(ctx, acc)
	return err
}

// pages visits every page of a paginated account view.
func (a *Adapter) pages(ctx context.Context, first string, visit func(*goquery.Document)) error {
	n, err := opac.Crawl(ctx, first, func(ctx context.Context, u string) (string, error) {
		doc, err := a.get(ctx, u)
		if err != nil {
			return "", err
		}
		visit(doc)
		href, ok := doc.Find(".pagination .next-page a[href]").Not("a[href='#']").First().Attr("href")
		if !ok {
			return "", nil
		}
		return htmlutil.AbsURL(u, href), nil
	})
	a.tel.ReportCount(report_account_pages, int64(n))
	return err
}

var feesRegex = regexp.MustCompile(`\(([^)]+)\)`)

// subscriptionLabels label the end of the library card subscription.
var subscriptionLabels = []string{"Abonnement (Ende)", "Subscription (end)", "Abonnement (Fin)"}

func (a *Adapter) Account(ctx context.Context, acc opac.Account) (opac.AccountData, error) {
	err := a.start(ctx)
	if err != nil {
		return opac.AccountData{}, err
	}
	loginDoc, err := a.login(ctx, acc)
	if err != nil {
		return opac.AccountData{}, err
	}
	overview, err := a.get(ctx, a.baseURL+"/account")
	if err != nil {
		return opac.AccountData{}, err
	}

	data := opac.AccountData{AccountID: acc.ID}
	if alert := overview.Find(".alert").First(); alert.Length() > 0 {
		data.Warning = htmlutil.OwnText(alert)
	} else if alert := loginDoc.Find(".alert").First(); alert.Length() > 0 {
		data.Warning = htmlutil.OwnText(alert)
	}
	if m := feesRegex.FindStringSubmatch(htmlutil.Text(overview.Find("a[href$=fees]").First())); m != nil {
		data.PendingFees = m[1]
	}
	overview.Find(".wo-list-label").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		text := htmlutil.Text(label)
		for _, l := range subscriptionLabels {
			if strings.Contains(text, l) {
				data.ValidUntil = normalize.ParseDate(normalize.LayoutGerman, htmlutil.Text(label.NextFiltered(".wo-list-content")))
				return false
			}
		}
		return true
	})

	err = a.pages(ctx, a.baseURL+"/account/reservations", func(doc *goquery.Document) {
		data.Reserved = append(data.Reserved, a.reservedItems(parseRows(doc), false)...)
	})
	if err != nil {
		return opac.AccountData{}, err
	}
	err = a.pages(ctx, a.baseURL+"/account/orders", func(doc *goquery.Document) {
		data.Reserved = append(data.Reserved, a.reservedItems(parseRows(doc), true)...)
	})
	if err != nil {
		return opac.AccountData{}, err
	}
	err = a.pages(ctx, a.baseURL+"/account/circulations", func(doc *goquery.Document) {
		data.Lent = append(data.Lent, a.lentItems(parseRows(doc))...)
	})
	if err != nil {
		return opac.AccountData{}, err
	}
	return data, nil
}

// row is one line of an account table before it is typed.
type row struct {
	item         opac.AccountItem
	token        opac.Token
	dueDate      string
	expiration   string
	barcode      string
	renewals     int
	reservations int
}

func parseRows(doc *goquery.Document) []row {
	table := doc.Find(".wo-grid-table").First()
	if table.Length() == 0 {
		return nil
	}
	var headers []string
	table.ChildrenFiltered("thead").ChildrenFiltered("tr").ChildrenFiltered("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, htmlutil.Text(th))
	})

	var rows []row
	table.ChildrenFiltered("tbody").ChildrenFiltered("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		var r row
		var columns [][]string
		cells.Each(func(i int, td *goquery.Selection) {
			columns = append(columns, htmlutil.SplitBreaks(td))
			if i >= len(headers) || headers[i] != "" {
				return
			}
			// unlabeled columns hold the selection checkbox or the cover
			if value, ok := td.Find("input[type=checkbox]").First().Attr("value"); ok {
				r.token = opac.Token(value)
			} else if src, ok := td.Find(".wo-cover").First().Attr("src"); ok {
				r.item.CoverURL = src
			}
		})

		normalize.FoldRow(headers, columns, normalize.AccountVocabulary, func(cell normalize.Cell) {
			if cell.Continues {
				return
			}
			switch cell.Field {
			case normalize.FieldBranch:
				r.item.Branch = cell.Text
			case normalize.FieldAuthor, normalize.FieldTitle:
				if cell.Field == normalize.FieldAuthor {
					r.item.Author = cell.Text
				} else {
					r.item.Title = cell.Text
				}
				if href, ok := cells.Eq(cell.Column).Find("a").First().Attr("href"); ok {
					if nr := htmlutil.QueryParam(href, "noticeNr"); nr != "" {
						r.item.ItemID = "noticeNr=" + nr
					}
				}
			case normalize.FieldFormat:
				r.item.Format = cell.Text
			case normalize.FieldReturnDate:
				r.dueDate = cell.Text
			case normalize.FieldExpiration:
				r.expiration = cell.Text
			case normalize.FieldBarcode:
				r.barcode = cell.Text
			case normalize.FieldRenewals:
				r.renewals, _ = strconv.Atoi(cell.Text)
			case normalize.FieldReservations:
				r.reservations, _ = strconv.Atoi(cell.Text)
			}
		})
		rows = append(rows, r)
	})
	return rows
}

func (a *Adapter) status(r row, ready bool) string {
	var parts []string
	if ready {
		parts = append(parts, a.strings.Get(i18n.KeyReservationReady))
	}
	if r.renewals > 0 {
		parts = append(parts, strconv.Itoa(r.renewals)+"x "+a.strings.Get(i18n.KeyProlongedAbbr))
	}
	if r.reservations > 0 {
		parts = append(parts, a.strings.Quantity(i18n.KeyReservationsNumber, r.reservations, r.reservations))
	}
	return strings.Join(parts, ", ")
}

func (a *Adapter) lentItems(rows []row) []opac.LentItem {
	out := make([]opac.LentItem, 0, len(rows))
	for _, r := range rows {
		item := opac.LentItem{
			AccountItem:  r.item,
			DueDate:      normalize.ParseDate(normalize.LayoutGerman, r.dueDate),
			Barcode:      r.barcode,
			RenewalToken: r.token,
		}
		item.Status = a.status(r, false)
		out = append(out, item)
	}
	return out
}

func (a *Adapter) reservedItems(rows []row, ready bool) []opac.ReservedItem {
	out := make([]opac.ReservedItem, 0, len(rows))
	for _, r := range rows {
		item := opac.ReservedItem{
			AccountItem:    r.item,
			ExpirationDate: normalize.ParseDate(normalize.LayoutGerman, r.expiration),
			CancelToken:    r.token,
			Ready:          ready,
		}
		item.Status = a.status(r, ready)
		out = append(out, item)
	}
	return out
}
