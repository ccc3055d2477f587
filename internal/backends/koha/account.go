package koha

import (
	"context"
	"net/url"
	"strings"
	"time"

	"opacbridge/internal/normalize"
	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// login posts the credentials and returns the account overview.
func (a *Adapter) login(ctx context.Context, acc opac.Account) (*goquery.Document, error) {
	form := url.Values{}
	// koha expects the context twice
	form.Add("koha_login_context", "opac")
	form.Add("koha_login_context", "opac")
	form.Set("userid", acc.Name)
	form.Set("password", acc.Password)

	doc, err := a.post(ctx, a.url("opac-user.pl"), form)
	if err != nil {
		return nil, err
	}
	if doc.Find(".alert").Length() > 0 && doc.Find("#opac-auth").Length() > 0 {
		a.session.Invalidate()
		return nil, opac.AuthError(htmlutil.Text(doc.Find(".alert")))
	}
	a.session.MarkAuthenticated(acc)
	return doc, nil
}

// overview returns the account page, logging in when the session has no
// login for acc or the backend dropped it.
func (a *Adapter) overview(ctx context.Context, acc opac.Account) (*goquery.Document, error) {
	if a.session.AuthenticatedAs(acc) {
		doc, err := a.get(ctx, a.url("opac-user.pl"))
		if err != nil {
			return nil, err
		}
		if doc.Find("#opac-auth").Length() == 0 {
			return doc, nil
		}
		a.session.Invalidate()
	}
	return a.login(ctx, acc)
}

func (a *Adapter) CheckAccount(ctx context.Context, acc opac.Account) error {
	_, err := a.login(ctx, acc)
	return err
}

func (a *Adapter) Account(ctx context.Context, acc opac.Account) (opac.AccountData, error) {
	doc, err := a.overview(ctx, acc)
	if err != nil {
		return opac.AccountData{}, err
	}

	data := opac.AccountData{
		AccountID: acc.ID,
		Lent:      parseLent(doc.Find("#checkoutst").First()),
		Reserved:  parseReserved(doc.Find("#holdst").First()),
	}
	if alert := doc.Find(".alert"); alert.Length() > 0 {
		data.Warning = htmlutil.Text(alert)
	}

	fees, err := a.get(ctx, a.url("opac-account.pl"))
	if err != nil {
		a.tel.ReportWarning(report_account_fees, err)
		return data, nil
	}
	data.PendingFees = htmlutil.Text(fees.Find("td.sum"))
	return data, nil
}

// column is the first class of a cell, koha names its account columns that way.
func column(td *goquery.Selection) string {
	class, _ := td.Attr("class")
	first, _, _ := strings.Cut(strings.TrimSpace(class), " ")
	return first
}

// spanDate reads the iso date koha puts in the title of a span,
// ex. <span title="2018-11-02T23:59:00">.
func spanDate(td *goquery.Selection) time.Time {
	title, ok := td.Find("span[title]").First().Attr("title")
	if !ok {
		return time.Time{}
	}
	return normalize.DateOnly(normalize.ParseDateTime(title))
}

func parseBase(td *goquery.Selection, item *opac.AccountItem) bool {
	text := htmlutil.Text(td)
	switch column(td) {
	case "itype":
		item.Format = text
	case "title":
		item.Title = text
		if href, ok := td.Find("a[href]").First().Attr("href"); ok {
			item.ItemID = htmlutil.QueryParam(href, "biblionumber")
		}
	case "author":
		item.Author = text
	case "branch":
		item.Branch = text
	case "status":
		item.Status = text
	default:
		return false
	}
	return true
}

func parseLent(table *goquery.Selection) []opac.LentItem {
	var items []opac.LentItem
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		var item opac.LentItem
		row.Find("td").Each(func(_ int, td *goquery.Selection) {
			if parseBase(td, &item.AccountItem) {
				return
			}
			switch column(td) {
			case "date_due":
				item.DueDate = spanDate(td)
			case "renew":
				if value, ok := td.Find("input[name=item]").First().Attr("value"); ok {
					item.RenewalToken = opac.Token(value)
				} else {
					item.NotRenewableReason = htmlutil.Text(td)
				}
			}
		})
		items = append(items, item)
	})
	return items
}

func parseReserved(table *goquery.Selection) []opac.ReservedItem {
	var items []opac.ReservedItem
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		var item opac.ReservedItem
		row.Find("td").Each(func(_ int, td *goquery.Selection) {
			if parseBase(td, &item.AccountItem) {
				if column(td) == "status" {
					item.Ready = td.Find(".waiting").Length() > 0
				}
				return
			}
			switch column(td) {
			case "expirationdate":
				item.ExpirationDate = spanDate(td)
			case "modify":
				biblionumber, _ := td.Find("input[name=biblionumber]").First().Attr("value")
				reserveID, _ := td.Find("input[name=reserve_id]").First().Attr("value")
				if biblionumber != "" && reserveID != "" {
					item.CancelToken = cancelToken(biblionumber, reserveID)
				}
			}
		})
		items = append(items, item)
	})
	return items
}

func cancelToken(biblionumber, reserveID string) opac.Token {
	return opac.Token(biblionumber + ":" + reserveID)
}

func parseCancelToken(token opac.Token) (biblionumber, reserveID string, ok bool) {
	biblionumber, reserveID, ok = strings.Cut(string(token), ":")
	return biblionumber, reserveID, ok && biblionumber != "" && reserveID != ""
}
