package slub

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"opacbridge/internal/i18n"
	"opacbridge/internal/normalize"
	"opacbridge/internal/opac"
)

type accountResponse struct {
	Status  flexInt `json:"status"`
	Message string  `json:"message"`
	Fees    struct {
		ToPay flexString `json:"topay_list"`
	} `json:"fees"`
	MemberInfo struct {
		Expires string `json:"expires"`
	} `json:"memberInfo"`
	Items struct {
		Loan    []loanRecord    `json:"loan"`
		Reserve []reserveRecord `json:"reserve"`
	} `json:"items"`
}

type loanRecord struct {
	About       string     `json:"about"`
	Author      []string   `json:"X_author"`
	DateDue     string     `json:"X_date_due"`
	MediaType   string     `json:"X_medientyp"`
	Barcode     flexString `json:"X_barcode"`
	Renewals    flexInt    `json:"renewals"`
	IsReserved  flexInt    `json:"X_is_reserved"`
	IsRenewable flexInt    `json:"X_is_renewable"`
}

type reserveRecord struct {
	About       string   `json:"about"`
	Author      []string `json:"X_author"`
	MediaType   string   `json:"X_medientyp"`
	QueueNumber flexInt  `json:"X_queue_number"`
}

// call runs an action of the account api. The api is stateless, the
// credentials go with every request.
func (a *Adapter) call(ctx context.Context, acc opac.Account, action string, params url.Values) (accountResponse, error) {
	form := url.Values{}
	form.Set("type", "1")
	form.Set("tx_slubaccount_account[controller]", "API")
	form.Set("tx_slubaccount_account[action]", action)
	form.Set("tx_slubaccount_account[username]", acc.Name)
	form.Set("tx_slubaccount_account[password]", acc.Password)
	for k, v := range params {
		form[k] = v
	}

	var res accountResponse
	err := a.postJSON(ctx, a.baseURL+"/mein-konto/", form, &res)
	if err != nil {
		a.tel.ReportWarning(report_account_call, action, err)
		var e *opac.Error
		if errors.As(err, &e) && e.Kind == opac.KindBackendProtocol {
			return res, opac.ProtocolError(err, "%s", a.strings.Format(i18n.KeyAccountErrorDescription, "account api did not return json"))
		}
		return res, err
	}
	if res.Status != 1 {
		a.session.Invalidate()
		message := res.Message
		if message == "" {
			message = "error requesting account data"
		}
		return res, opac.AuthError(a.strings.Format(i18n.KeyAccountErrorDescription, message))
	}
	a.session.MarkAuthenticated(acc)
	return res, nil
}

func (a *Adapter) CheckAccount(ctx context.Context, acc opac.Account) error {
	_, err := a.call(ctx, acc, "validate", nil)
	return err
}

func (a *Adapter) Account(ctx context.Context, acc opac.Account) (opac.AccountData, error) {
	res, err := a.call(ctx, acc, "account", nil)
	if err != nil {
		return opac.AccountData{}, err
	}

	data := opac.AccountData{
		AccountID:   acc.ID,
		PendingFees: strings.TrimSpace(string(res.Fees.ToPay)),
	}
	if expires := res.MemberInfo.Expires; len(expires) >= 10 {
		data.ValidUntil = normalize.ParseDate(normalize.LayoutISO, expires[:10])
	}

	for _, l := range res.Items.Loan {
		item := opac.LentItem{
			AccountItem: opac.AccountItem{
				Title:  l.About,
				Author: first(l.Author),
				Format: l.MediaType,
				Status: a.loanStatus(l),
			},
			DueDate: normalize.ParseDateTime(l.DateDue),
			Barcode: string(l.Barcode),
		}
		if l.IsRenewable == 1 && item.Barcode != "" {
			item.RenewalToken = opac.Token(item.Barcode)
		} else {
			item.NotRenewableReason = a.strings.Get(i18n.KeyNotRenewable)
		}
		data.Lent = append(data.Lent, item)
	}

	for _, r := range res.Items.Reserve {
		data.Reserved = append(data.Reserved, opac.ReservedItem{
			AccountItem: opac.AccountItem{
				Title:  r.About,
				Author: first(r.Author),
				Format: r.MediaType,
				Status: a.strings.Format(i18n.KeyQueuePosition, int(r.QueueNumber)),
			},
		})
	}

	return data, nil
}

func (a *Adapter) loanStatus(l loanRecord) string {
	var parts []string
	if l.Renewals > 0 {
		parts = append(parts, fmt.Sprintf("%dx %s", int(l.Renewals), a.strings.Get(i18n.KeyProlongedAbbr)))
	}
	if l.IsReserved != 0 {
		parts = append(parts, a.strings.Get(i18n.KeyReservedByOthers))
	}
	return strings.Join(parts, ", ")
}

func (a *Adapter) Renew(ctx context.Context, token opac.Token, acc opac.Account, _ opac.Step) (opac.ActionResult, error) {
	params := url.Values{}
	params.Set("tx_slubaccount_account[renewals][0]", string(token))
	_, err := a.call(ctx, acc, "renew", params)
	var e *opac.Error
	if errors.As(err, &e) {
		return opac.Failed(opac.ActionRenewal, e.Display(a.strings)), nil
	}
	if err != nil {
		return opac.ActionResult{}, err
	}
	return opac.OK(opac.ActionRenewal, ""), nil
}
