package koha

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/i18n"
	"opacbridge/internal/opac"
	"opacbridge/internal/transport/transporttest"
)

const base = "https://koha.example.org"

var account = opac.Account{ID: "1", Library: "test", Name: "reader", Password: "secret"}

func newAdapter(t *testing.T, script *transporttest.Scripted) *Adapter {
	t.Helper()
	lib := opac.Library{Ident: "test", API: "koha", Data: map[string]string{"baseurl": base + "/"}}
	a, err := New(lib, script, i18n.NewTable("de"), telemetry.NewRecorder())
	require.NoError(t, err)
	return a
}

func query(value string) []opac.SearchQuery {
	return []opac.SearchQuery{opac.NewQuery(opac.TextField(freeSearchIndex, "Freitext"), value)}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	script := transporttest.New().
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-search.pl?", "testdata/search.html")
	a := newAdapter(t, script)

	first, err := a.Search(ctx, query("goethe"))
	require.NoError(t, err)
	require.Equal(t, 45, first.TotalCount)
	require.Equal(t, 1, first.Page)
	require.Len(t, first.Results, 3)

	faust := first.Results[0]
	require.Equal(t, "101", faust.ID)
	require.Equal(t, "Faust", faust.Title)
	require.Equal(t, "Goethe, Johann Wolfgang von", faust.Author)
	require.Equal(t, "Stuttgart: Reclam, 2000 | Sprache: Deutsch", faust.Summary)
	require.Equal(t, opac.MediaBook, faust.MediaType)
	require.Equal(t, "https://covers.example.org/101.jpg", faust.CoverURL)
	require.Equal(t, opac.AvailabilityGreen, faust.Availability)

	require.Equal(t, opac.MediaMovie, first.Results[1].MediaType)
	require.Equal(t, opac.AvailabilityYellow, first.Results[1].Availability)
	require.Equal(t, opac.MediaNone, first.Results[2].MediaType)
	require.Equal(t, opac.AvailabilityNone, first.Results[2].Availability)

	call, ok := script.LastCall(base + "/cgi-bin/koha/opac-search.pl")
	require.True(t, ok)
	require.Equal(t, base+"/cgi-bin/koha/opac-search.pl?idx=kw%2Cwrdl&q=goethe", call.URL)

	again, err := a.FetchPage(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first, again)

	third, err := a.FetchPage(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 3, third.Page)
	call, _ = script.LastCall(base + "/cgi-bin/koha/opac-search.pl")
	require.Contains(t, call.URL, "offset=40")
}

func TestSearchEmpty(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-search.pl?", "testdata/empty.html")
	res, err := newAdapter(t, script).Search(context.Background(), query("xyzzy"))
	require.NoError(t, err)
	require.Zero(t, res.TotalCount)
	require.Empty(t, res.Results)
}

func TestSearchValidation(t *testing.T) {
	script := transporttest.New()
	a := newAdapter(t, script)

	_, err := a.FetchPage(context.Background(), 1)
	require.ErrorIs(t, err, opac.ErrInternalState)

	_, err = a.Search(context.Background(), query("   "))
	require.ErrorIs(t, err, opac.ErrValidation)
	require.Zero(t, script.CallCount())
}

func TestSearchParams(t *testing.T) {
	itype := opac.DropdownField("Medientyp", "Medientyp", nil).WithData("id", "limit")
	available := opac.CheckboxField("available", "Nur verfügbare")
	params := searchParams([]opac.SearchQuery{
		opac.NewQuery(opac.TextField("au", "Autor"), "Kafka"),
		opac.NewQuery(opac.TextField("ti", "Titel"), ""),
		opac.NewQuery(itype, "mc-itype,phr:BK"),
		opac.NewQuery(available, "true"),
	})
	require.Equal(t, "idx=au&limit=mc-itype%2Cphr%3ABK&limit=available&q=Kafka", params.Encode())
}

func TestDetail(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-detail.pl?biblionumber=101", "testdata/detail.html").
		OnStatus(http.MethodGet, base+"/cgi-bin/koha/opac-detail.pl?biblionumber=999", http.StatusNotFound).
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-detail.pl?biblionumber=998", "testdata/notfound.html")
	a := newAdapter(t, script)

	item, err := a.Detail(context.Background(), "101")
	require.NoError(t, err)
	require.Equal(t, "Faust", item.Title)
	require.Equal(t, opac.MediaBook, item.MediaType)
	require.Equal(t, "https://covers.example.org/101.jpg", item.CoverURL)
	require.True(t, item.Reservable)
	require.Equal(t, []opac.Detail{
		{Label: "von", Value: "Goethe, Johann Wolfgang von"},
		{Label: "Verlag", Value: "Stuttgart : Reclam, 2000"},
		{Label: "ISBN", Value: "3150000017"},
	}, item.Details)

	require.Len(t, item.Copies, 2)
	require.Equal(t, opac.Copy{
		Branch:       "Zentrale",
		Location:     "Magazin",
		Shelfmark:    "GOE 12",
		Status:       "Ausgeliehen",
		ReturnDate:   time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		Reservations: "2",
	}, item.Copies[0])
	require.True(t, item.Copies[1].ReturnDate.IsZero())

	_, err = a.Detail(context.Background(), "999")
	require.ErrorIs(t, err, opac.ErrNotFound)
	_, err = a.Detail(context.Background(), "998")
	require.ErrorIs(t, err, opac.ErrNotFound)
}

func TestSearchFields(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-search.pl", "testdata/searchform.html")
	fields, err := newAdapter(t, script).SearchFields(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, f := range fields {
		ids = append(ids, f.ID)
	}
	require.Equal(t, []string{"kw,wrdl", "kw", "ti", "au", "nb", "Medientyp", "Standort", "Sprache", "available"}, ids)

	itype := fields[5]
	require.Equal(t, opac.FieldDropdown, itype.Kind)
	require.Equal(t, "limit", itype.Datum("id"))
	require.Equal(t, []opac.DropdownOption{
		{Key: "", Value: ""},
		{Key: "mc-itype,phr:BK", Value: "Buch"},
		{Key: "mc-itype,phr:DVD", Value: "DVD"},
	}, itype.Options)

	require.Equal(t, "limit", fields[7].Datum("id"))
	require.Len(t, fields[7].Options, 2)
	require.Equal(t, opac.FieldCheckbox, fields[8].Kind)
	require.Equal(t, "Nur verfügbare Exemplare", fields[8].DisplayName)
}

func TestAccount(t *testing.T) {
	ctx := context.Background()
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-user.pl", "testdata/user.html").
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-user.pl", "testdata/user.html").
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-account.pl", "testdata/fees.html")
	a := newAdapter(t, script)

	data, err := a.Account(ctx, account)
	require.NoError(t, err)
	require.Equal(t, "1", data.AccountID)
	require.Equal(t, "Ihr Ausweis läuft in 5 Tagen ab.", data.Warning)
	require.Equal(t, "3,50", data.PendingFees)

	require.Len(t, data.Lent, 2)
	faust := data.Lent[0]
	require.Equal(t, "101", faust.ItemID)
	require.Equal(t, "Faust", faust.Title)
	require.Equal(t, "Buch", faust.Format)
	require.Equal(t, "Zentrale", faust.Branch)
	require.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), faust.DueDate)
	require.Equal(t, opac.Token("3001"), faust.RenewalToken)
	require.True(t, faust.Renewable())

	metropolis := data.Lent[1]
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), metropolis.DueDate)
	require.False(t, metropolis.Renewable())
	require.Equal(t, "Nicht verlängerbar (vorgemerkt)", metropolis.NotRenewableReason)

	require.Len(t, data.Reserved, 1)
	hold := data.Reserved[0]
	require.Equal(t, "310", hold.ItemID)
	require.True(t, hold.ExpirationDate.IsZero())
	require.True(t, hold.Ready)
	require.Equal(t, opac.Token("310:77"), hold.CancelToken)

	login, ok := script.LastCall(base + "/cgi-bin/koha/opac-user.pl")
	require.True(t, ok)
	require.Equal(t, []string{"opac", "opac"}, login.Form["koha_login_context"])
	require.Equal(t, "reader", login.Form.Get("userid"))

	_, err = a.Account(ctx, account)
	require.NoError(t, err)
	last, _ := script.LastCall(base + "/cgi-bin/koha/opac-user.pl")
	require.Equal(t, http.MethodGet, last.Method)
}

func TestLoginFailed(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-user.pl", "testdata/login_failed.html")
	a := newAdapter(t, script)

	err := a.CheckAccount(context.Background(), account)
	require.ErrorIs(t, err, opac.ErrAuth)
	require.Contains(t, err.Error(), "falsches Passwort")

	res, err := a.Reserve(context.Background(), opac.DetailedItem{ID: "101"}, account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusError, res.Status)
	require.True(t, strings.HasPrefix(res.Message, "Sie haben einen falschen"))
}

func TestReserve(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-user.pl", "testdata/user.html").
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-reserve.pl?biblionumber=101", "testdata/reserve_form.html").
		OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-reserve.pl", "testdata/reserve_done.html")
	a := newAdapter(t, script)

	flow := opac.Reservation(a, opac.DetailedItem{ID: "101"}, account, i18n.NewTable("de"))
	res, err := flow.Begin(context.Background())
	require.NoError(t, err)
	require.Equal(t, opac.StatusOK, res.Status)
	require.Equal(t, opac.FlowResolved, flow.State())

	post, ok := script.LastCall(base + "/cgi-bin/koha/opac-reserve.pl")
	require.True(t, ok)
	require.Equal(t, "101/", post.Form.Get("biblionumbers"))
	require.Equal(t, "101///", post.Form.Get("selecteditems"))
	require.Equal(t, "any", post.Form.Get("checkitem_101"))
	require.Equal(t, "any", post.Form.Get("reqtype_101"))
	require.False(t, post.Form.Has("branch"))
}

func TestReserveBranch(t *testing.T) {
	ctx := context.Background()
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-user.pl", "testdata/user.html").
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-reserve.pl?biblionumber=101", "testdata/reserve_branches.html").
		OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-reserve.pl", "testdata/reserve_done.html")
	a := newAdapter(t, script)

	flow := opac.Reservation(a, opac.DetailedItem{ID: "101"}, account, i18n.NewTable("de"))
	res, err := flow.Begin(ctx)
	require.NoError(t, err)
	require.Equal(t, opac.StatusSelectionNeeded, res.Status)
	require.Equal(t, opac.StepBranch, res.Action)
	require.Equal(t, []opac.Option{
		{Key: "CPL", Label: "Zentralbibliothek"},
		{Key: "FPL", Label: "Fairview"},
	}, res.Options)
	for _, c := range script.Calls() {
		require.False(t, c.Method == http.MethodPost && strings.HasSuffix(c.URL, "opac-reserve.pl"), "reservation submitted before a branch was chosen")
	}

	res, err = flow.Resume(ctx, "FPL")
	require.NoError(t, err)
	require.Equal(t, opac.StatusOK, res.Status)
	post, ok := script.LastCall(base + "/cgi-bin/koha/opac-reserve.pl")
	require.True(t, ok)
	require.Equal(t, http.MethodPost, post.Method)
	require.Equal(t, "FPL", post.Form.Get("branch"))
	require.Equal(t, "any", post.Form.Get("checkitem_101"))
}

func TestReserveBranchNoLongerOffered(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-user.pl", "testdata/user.html").
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-reserve.pl?biblionumber=101", "testdata/reserve_branches.html")
	step := opac.Step{Action: opac.StepBranch, Selection: "MPL"}
	res, err := newAdapter(t, script).Reserve(context.Background(), opac.DetailedItem{ID: "101"}, account, step)
	require.NoError(t, err)
	require.Equal(t, opac.StatusError, res.Status)
	require.Equal(t, i18n.NewTable("de").Get(i18n.KeySelectionNotOffered), res.Message)
}

func TestReserveBlocked(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-user.pl", "testdata/user.html").
		OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-reserve.pl?biblionumber=101", "testdata/reserve_blocked.html")
	res, err := newAdapter(t, script).Reserve(context.Background(), opac.DetailedItem{ID: "101"}, account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusError, res.Status)
	require.Equal(t, "Sie haben die maximale Anzahl an Vormerkungen erreicht.", res.Message)
}

func TestRenew(t *testing.T) {
	cases := []struct {
		fixture string
		status  opac.ActionStatus
		message string
	}{
		{"testdata/renew_ok.html", opac.StatusOK, ""},
		{"testdata/renew_failed.html", opac.StatusError, "Zu oft verlängert"},
	}
	for _, tc := range cases {
		t.Run(tc.fixture, func(t *testing.T) {
			script := transporttest.New().
				OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-user.pl", "testdata/user.html").
				OnFile(t, http.MethodGet, base+"/cgi-bin/koha/opac-renew.pl", tc.fixture)
			res, err := newAdapter(t, script).Renew(context.Background(), "3001", account, opac.Step{})
			require.NoError(t, err)
			require.Equal(t, tc.status, res.Status)
			require.Equal(t, tc.message, res.Message)

			call, _ := script.LastCall(base + "/cgi-bin/koha/opac-renew.pl")
			require.Equal(t, base+"/cgi-bin/koha/opac-renew.pl?borrowernumber=51&from=opac_user&item=3001", call.URL)
		})
	}
}

func TestRenewNotRenewableMakesNoRequest(t *testing.T) {
	script := transporttest.New()
	a := newAdapter(t, script)
	item := opac.LentItem{NotRenewableReason: "Nicht verlängerbar (vorgemerkt)"}

	res, err := opac.Renewal(a, item, account, i18n.NewTable("de")).Begin(context.Background())
	require.NoError(t, err)
	require.Equal(t, opac.StatusError, res.Status)
	require.Equal(t, "Nicht verlängerbar (vorgemerkt)", res.Message)
	require.Zero(t, script.CallCount())
}

func TestCancel(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-user.pl", "testdata/user.html").
		OnFile(t, http.MethodPost, base+"/cgi-bin/koha/opac-modrequest.pl", "testdata/cancel_done.html")
	a := newAdapter(t, script)

	res, err := a.Cancel(context.Background(), "310:77", account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusOK, res.Status)
	call, _ := script.LastCall(base + "/cgi-bin/koha/opac-modrequest.pl")
	require.Equal(t, "310", call.Form.Get("biblionumber"))
	require.Equal(t, "77", call.Form.Get("reserve_id"))

	res, err = a.Cancel(context.Background(), "broken", account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusError, res.Status)
}

func TestRenewAllUnsupported(t *testing.T) {
	a := newAdapter(t, transporttest.New())
	res, err := a.RenewAll(context.Background(), account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusUnsupported, res.Status)
	require.Equal(t, base+"/cgi-bin/koha/opac-detail.pl?biblionumber=101", a.ShareURL("101", ""))
}
