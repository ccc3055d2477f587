package koha

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"opacbridge/internal/i18n"
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

// Reserve places a hold on any copy of the record. A form listing more than
// one pickup branch asks for the branch first.
func (a *Adapter) Reserve(ctx context.Context, item opac.DetailedItem, acc opac.Account, step opac.Step) (opac.ActionResult, error) {
	if step.Action != opac.StepInitial && step.Action != opac.StepBranch {
		return opac.Failed(opac.ActionReservation, a.strings.Get(i18n.KeyInternalError)), nil
	}
	_, err := a.overview(ctx, acc)
	if err != nil {
		return loginFailure(opac.ActionReservation, err)
	}

	id := item.ID
	doc, err := a.get(ctx, a.url("opac-reserve.pl?biblionumber="+url.QueryEscape(id)))
	if err != nil {
		return opac.ActionResult{}, err
	}
	if alert := doc.Find(".alert"); alert.Length() > 0 {
		return opac.Failed(opac.ActionReservation, htmlutil.Text(alert)), nil
	}
	checkitem, ok := htmlutil.WithAttr(doc.Find("input"), "name", "checkitem_"+id).First().Attr("value")
	if !ok {
		return opac.Failed(opac.ActionReservation, a.strings.Get(i18n.KeyUnexpectedBackendContent)), nil
	}

	var branch string
	branches := branchOptions(doc)
	switch {
	case step.Action == opac.StepBranch:
		if !offered(branches, step.Selection) {
			return opac.Failed(opac.ActionReservation, a.strings.Get(i18n.KeySelectionNotOffered)), nil
		}
		branch = string(step.Selection)
	case len(branches) > 1:
		return opac.NeedSelection(opac.ActionReservation, opac.StepBranch, "", branches), nil
	case len(branches) == 1:
		branch = string(branches[0].Key)
	}

	form := url.Values{}
	form.Set("place_reserve", "1")
	form.Set("biblionumbers", id+"/")
	form.Set("selecteditems", id+"///")
	form.Set("reserve_mode", "multi")
	form.Set("single_bib", id)
	form.Set("expiration_date_"+id, "")
	form.Set("reqtype_"+id, "any")
	form.Set("checkitem_"+id, checkitem)
	if branch != "" {
		form.Set("branch", branch)
	}
	doc, err = a.post(ctx, a.url("opac-reserve.pl"), form)
	if err != nil {
		return opac.ActionResult{}, err
	}

	if htmlutil.WithAttr(doc.Find("input[type=hidden][name=biblionumber]"), "value", id).Length() > 0 {
		return opac.OK(opac.ActionReservation, ""), nil
	}
	return opac.Failed(opac.ActionReservation, htmlutil.Text(doc.Find(".alert"))), nil
}

// branchOptions lists the pickup branches of a reservation form, the
// preselected branch first.
func branchOptions(doc *goquery.Document) []opac.Option {
	var selected, rest []opac.Option
	doc.Find("select[name=branch] option").Each(func(_ int, s *goquery.Selection) {
		value := strings.TrimSpace(s.AttrOr("value", ""))
		if value == "" {
			return
		}
		option := opac.Option{Key: opac.Token(value), Label: htmlutil.Text(s)}
		if _, ok := s.Attr("selected"); ok {
			selected = append(selected, option)
			return
		}
		rest = append(rest, option)
	})
	return append(selected, rest...)
}

func offered(options []opac.Option, key opac.Token) bool {
	for _, o := range options {
		if o.Key == key {
			return true
		}
	}
	return false
}

func (a *Adapter) Renew(ctx context.Context, token opac.Token, acc opac.Account, _ opac.Step) (opac.ActionResult, error) {
	doc, err := a.overview(ctx, acc)
	if err != nil {
		return loginFailure(opac.ActionRenewal, err)
	}
	borrowernumber, _ := doc.Find("input[name=borrowernumber]").First().Attr("value")

	params := url.Values{}
	params.Set("from", "opac_user")
	params.Set("item", string(token))
	params.Set("borrowernumber", borrowernumber)
	doc, err = a.get(ctx, a.url("opac-renew.pl?"+params.Encode()))
	if err != nil {
		return opac.ActionResult{}, err
	}

	label := doc.Find(".blabel").First()
	if label.HasClass("label-success") {
		return opac.OK(opac.ActionRenewal, ""), nil
	}
	return opac.Failed(opac.ActionRenewal, htmlutil.Text(label)), nil
}

func (a *Adapter) Cancel(ctx context.Context, token opac.Token, acc opac.Account, _ opac.Step) (opac.ActionResult, error) {
	biblionumber, reserveID, ok := parseCancelToken(token)
	if !ok {
		return opac.Failed(opac.ActionCancellation, a.strings.Get(i18n.KeyInternalError)), nil
	}
	_, err := a.overview(ctx, acc)
	if err != nil {
		return loginFailure(opac.ActionCancellation, err)
	}

	form := url.Values{}
	form.Set("biblionumber", biblionumber)
	form.Set("reserve_id", reserveID)
	form.Set("submit", "")
	doc, err := a.post(ctx, a.url("opac-modrequest.pl"), form)
	if err != nil {
		return opac.ActionResult{}, err
	}
	if htmlutil.WithAttr(doc.Find("input[name=reserve_id]"), "value", reserveID).Length() == 0 {
		return opac.OK(opac.ActionCancellation, ""), nil
	}
	return opac.Failed(opac.ActionCancellation, ""), nil
}
