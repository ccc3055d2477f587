package netbiblio

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"opacbridge/internal/i18n"
	"opacbridge/internal/normalize"
	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// loginFailure turns an auth error into a failed action, other errors are
// returned as is.
func loginFailure(kind opac.ActionKind, err error) (opac.ActionResult, error) {
	var e *opac.Error
	if errors.As(err, &e) && e.Kind == opac.KindAuth {
		return opac.Failed(kind, e.Message), nil
	}
	return opac.ActionResult{}, err
}

// outcome classifies the confirmation page of an action.
func outcome(kind opac.ActionKind, doc *goquery.Document) opac.ActionResult {
	if doc.Find(".alert-success").Length() == 1 {
		return opac.OK(kind, "")
	}
	return opac.Failed(kind, htmlutil.Text(doc.Find(".alert-danger")))
}

func (a *Adapter) reservationFormURL(token opac.Token) string {
	return a.baseURL + "/account/makeitemreservation?selectedItems%5B0%5D=" + url.QueryEscape(string(token))
}

// Reserve first offers the fulfillment paths of the reservation form, every
// option key is the encoded form to submit for it. A form with a single path
// is submitted right away.
func (a *Adapter) Reserve(ctx context.Context, item opac.DetailedItem, acc opac.Account, step opac.Step) (opac.ActionResult, error) {
	switch step.Action {
	case opac.StepInitial:
		return a.reservationOptions(ctx, item, acc)
	case opac.StepBranch:
		form, err := url.ParseQuery(string(step.Selection))
		if err != nil || len(form) == 0 {
			return opac.Failed(opac.ActionReservation, a.strings.Get(i18n.KeyInternalError)), nil
		}
		err = a.ensureLogin(ctx, acc)
		if err != nil {
			return loginFailure(opac.ActionReservation, err)
		}
		return a.submitReservation(ctx, form)
	default:
		return opac.Failed(opac.ActionReservation, a.strings.Get(i18n.KeyInternalError)), nil
	}
}

func (a *Adapter) submitReservation(ctx context.Context, form url.Values) (opac.ActionResult, error) {
	doc, err := a.post(ctx, a.baseURL+"/account/makeitemreservation", form)
	if err != nil {
		return opac.ActionResult{}, err
	}
	return outcome(opac.ActionReservation, doc), nil
}

func (a *Adapter) reservationOptions(ctx context.Context, item opac.DetailedItem, acc opac.Account) (opac.ActionResult, error) {
	copies := item.ReservableCopies()
	if len(copies) == 0 {
		return opac.Failed(opac.ActionReservation, a.strings.Get(i18n.KeyNoCopyReservable)), nil
	}
	err := a.start(ctx)
	if err != nil {
		return opac.ActionResult{}, err
	}

	// any copy will do to learn the options of the form
	doc, err := a.get(ctx, a.reservationFormURL(copies[0].ReservationToken))
	if err != nil {
		return opac.ActionResult{}, err
	}
	if doc.Find("#wo-frm-login").Length() > 0 {
		_, err = a.login(ctx, acc)
		if err != nil {
			return loginFailure(opac.ActionReservation, err)
		}
		doc, err = a.get(ctx, a.reservationFormURL(copies[0].ReservationToken))
		if err != nil {
			return opac.ActionResult{}, err
		}
	}

	var options []opac.Option
	if doc.Find("input[name=CheckoutKind]").Length() > 0 {
		options = checkoutOptions(doc, copies)
	} else {
		options = copyOptions(doc, copies)
	}
	if len(options) == 1 {
		form, _ := url.ParseQuery(string(options[0].Key))
		return a.submitReservation(ctx, form)
	}
	return opac.NeedSelection(opac.ActionReservation, opac.StepBranch, "", options), nil
}

// reservationForm holds the fields both kinds of reservation forms share.
type reservationForm struct {
	kind      string
	kindLabel string
	addressID string
}

func readReservationForm(doc *goquery.Document) reservationForm {
	f := reservationForm{
		kindLabel: htmlutil.Text(doc.Find("label:has(.wo-reservationkind[checked])")),
	}
	f.kind, _ = doc.Find(".wo-reservationkind[checked]").First().Attr("value")
	f.addressID, _ = doc.Find("input[name=AddessId]").First().Attr("value")
	return f
}

func (f reservationForm) values(c opac.Copy) url.Values {
	form := url.Values{}
	form.Set("ItemId", string(c.ReservationToken))
	form.Set("ReservationKind", f.kind)
	// sic, the backend misspells the field
	form.Set("AddessId", f.addressID)
	return form
}

// copyOptions lets the user pick the copy, the catalog decides where it is
// picked up.
func copyOptions(doc *goquery.Document, copies []opac.Copy) []opac.Option {
	f := readReservationForm(doc)
	options := make([]opac.Option, 0, len(copies))
	for _, c := range copies {
		label := c.Branch + " " + c.Status
		if !c.ReturnDate.IsZero() {
			label += " " + c.ReturnDate.Format(normalize.LayoutGerman)
		}
		if f.kindLabel != "" {
			label += " (" + f.kindLabel + ")"
		}
		options = append(options, opac.Option{Key: opac.Token(f.values(c).Encode()), Label: label})
	}
	return options
}

// checkoutOptions lets the user pick how to receive the item. For pickups
// every branch is an option and the best copy for it is chosen, mail
// deliveries are listed first.
func checkoutOptions(doc *goquery.Document, copies []opac.Copy) []opac.Option {
	f := readReservationForm(doc)
	var mail, other []opac.Option
	doc.Find("label:has(input[name=CheckoutKind])").Each(func(_ int, kindLabel *goquery.Selection) {
		checkout, _ := kindLabel.Find("input").First().Attr("value")
		kindText := htmlutil.Text(kindLabel)

		switch checkout {
		case "PickUp":
			doc.Find("select[name=BranchofficeId] option").Each(func(_ int, opt *goquery.Selection) {
				branch := htmlutil.Text(opt)
				best, _ := normalize.BestCopy(copies, branch)
				form := f.values(best)
				form.Set("CheckoutKind", checkout)
				form.Set("BranchofficeId", opt.AttrOr("value", ""))
				other = append(other, opac.Option{Key: opac.Token(form.Encode()), Label: branch + " / " + kindText})
			})
		case "Mail":
			best, _ := normalize.BestCopy(copies, "")
			doc.Find("label:has(input[name=AddessId])").Each(func(_ int, address *goquery.Selection) {
				form := f.values(best)
				form.Set("CheckoutKind", checkout)
				form.Set("AddessId", address.Find("input").First().AttrOr("value", ""))
				mail = append(mail, opac.Option{Key: opac.Token(form.Encode()), Label: kindText + " / " + htmlutil.Text(address)})
			})
		default:
			best, _ := normalize.BestCopy(copies, "")
			form := f.values(best)
			form.Set("CheckoutKind", checkout)
			other = append(other, opac.Option{Key: opac.Token(form.Encode()), Label: kindText})
		}
	})
	return append(mail, other...)
}

func (a *Adapter) Renew(ctx context.Context, token opac.Token, acc opac.Account, _ opac.Step) (opac.ActionResult, error) {
	err := a.ensureLogin(ctx, acc)
	if err != nil {
		return loginFailure(opac.ActionRenewal, err)
	}
	doc, err := a.get(ctx, a.baseURL+"/account/renew?selectedItems%5B0%5D="+url.QueryEscape(string(token)))
	if err != nil {
		return opac.ActionResult{}, err
	}
	return outcome(opac.ActionRenewal, doc), nil
}

// RenewAll collects the renewal tokens of all circulation pages and renews
// them in one request.
func (a *Adapter) RenewAll(ctx context.Context, acc opac.Account, _ opac.Step) (opac.ActionResult, error) {
	err := a.ensureLogin(ctx, acc)
	if err != nil {
		return loginFailure(opac.ActionRenewalAll, err)
	}

	var lent []opac.LentItem
	err = a.pages(ctx, a.baseURL+"/account/circulations", func(doc *goquery.Document) {
		lent = append(lent, a.lentItems(parseRows(doc))...)
	})
	if err != nil {
		return opac.ActionResult{}, err
	}

	params := url.Values{}
	for i, item := range lent {
		if item.Renewable() {
			params.Set("selectedItems["+strconv.Itoa(i)+"]", string(item.RenewalToken))
		}
	}
	if len(params) == 0 {
		return opac.Failed(opac.ActionRenewalAll, a.strings.Get(i18n.KeyNotRenewable)), nil
	}
	params.Set("returnUrl", a.basePath+"/account/circulations")

	doc, err := a.get(ctx, a.baseURL+"/account/renew?"+params.Encode())
	if err != nil {
		return opac.ActionResult{}, err
	}
	return outcome(opac.ActionRenewalAll, doc), nil
}

func (a *Adapter) Cancel(ctx context.Context, token opac.Token, acc opac.Account, _ opac.Step) (opac.ActionResult, error) {
	err := a.ensureLogin(ctx, acc)
	if err != nil {
		return loginFailure(opac.ActionCancellation, err)
	}
	doc, err := a.get(ctx, a.baseURL+"/account/deletereservations?selectedItems%5B0%5D="+url.QueryEscape(string(token)))
	if err != nil {
		return opac.ActionResult{}, err
	}
	return outcome(opac.ActionCancellation, doc), nil
}
