package netbiblio

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/i18n"
	"opacbridge/internal/opac"
	"opacbridge/internal/transport/transporttest"
)

const base = "https://nb.example.org/lib"

var account = opac.Account{ID: "3", Library: "bern", Name: "reader", Password: "secret"}

// newAdapter appends the language routes to script, they answer every GET
// that no earlier route took.
func newAdapter(t *testing.T, script *transporttest.Scripted) *Adapter {
	t.Helper()
	script.
		OnFile(t, http.MethodGet, base+"/Site/ChangeLanguage?language=de", "testdata/home_de.html").
		OnFile(t, http.MethodGet, base+"/Site/ChangeLanguage", "testdata/home.html").
		OnFile(t, http.MethodGet, base, "testdata/home.html")
	lib := opac.Library{Ident: "bern", API: "netbiblio", Data: map[string]string{"baseurl": base + "/"}}
	a, err := New(lib, script, i18n.NewTable("en"), telemetry.NewRecorder())
	require.NoError(t, err)
	return a
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func textQuery(id, value string) opac.SearchQuery {
	return opac.NewQuery(opac.TextField(id, id), value)
}

func countCalls(script *transporttest.Scripted, method, prefix string) int {
	n := 0
	for _, c := range script.Calls() {
		if c.Method == method && strings.HasPrefix(c.URL, prefix) {
			n++
		}
	}
	return n
}

func TestLanguages(t *testing.T) {
	ctx := context.Background()
	script := transporttest.New()
	a := newAdapter(t, script)

	languages, err := a.Languages(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"de", "en", "fr"}, languages)

	// switched to german and back
	last, ok := script.LastCall(base + "/Site/ChangeLanguage")
	require.True(t, ok)
	require.Equal(t, base+"/Site/ChangeLanguage?language=en", last.URL)

	_, err = a.Languages(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, script.CallCount())
}

func TestStartFallsBackToEnglish(t *testing.T) {
	require.Equal(t, "fr", pickLanguage([]string{"de", "en", "fr"}, "fr"))
	require.Equal(t, "en", pickLanguage([]string{"de", "en", "fr"}, "it"))
	require.Equal(t, "de", pickLanguage([]string{"de", "fr"}, "it"))
	require.Equal(t, "", pickLanguage([]string{"fr"}, "it"))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/search/extended/submit", "testdata/search.html").
		OnFile(t, http.MethodPost, base+"/handler/divibibstatus", "testdata/divibib.json").
		OnFile(t, http.MethodGet, base+"/search/shortview", "testdata/search.html")
	a := newAdapter(t, script)

	first, err := a.Search(ctx, []opac.SearchQuery{textQuery("T", "kafka"), textQuery("A", " ")})
	require.NoError(t, err)
	require.Equal(t, 58, first.TotalCount)
	require.Equal(t, 1, first.Page)

	want := []opac.SearchResult{
		{
			ID:           "noticeId=101",
			Title:        "Der Process",
			Author:       "Kafka, Franz",
			Summary:      "1925 / Buch",
			CoverURL:     "https://covers.example.org/101.jpg",
			Availability: opac.AvailabilityRed,
		},
		{
			ID:           "noticeId=102",
			Title:        "Das Schloss",
			Author:       "Kafka, Franz",
			Summary:      "2012",
			Availability: opac.AvailabilityGreen,
		},
		{
			ID:           "noticeId=103",
			Title:        "Amerika",
			Summary:      "1927 / Buch",
			Availability: opac.AvailabilityGreen,
		},
	}
	if diff := cmp.Diff(want, first.Results); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}

	call, ok := script.LastCall(base + "/search/extended/submit")
	require.True(t, ok)
	require.Equal(t, []string{"kafka", ""}, call.Form["Request.SearchTerm"])
	require.Equal(t, []string{"T", "W"}, call.Form["Request.SearchField"])
	require.Equal(t, []string{"AND"}, call.Form["Request.SearchOperator"])
	require.Equal(t, "25", call.Form.Get("Request.PageSize"))

	call, ok = script.LastCall(base + "/handler/divibibstatus")
	require.True(t, ok)
	require.Equal(t, "N102#4711/0", call.Form.Get("ids"))

	again, err := a.FetchPage(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first, again)

	second, err := a.FetchPage(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, second.Page)
	call, ok = script.LastCall(base + "/search/shortview")
	require.True(t, ok)
	params, err := url.ParseQuery(strings.SplitN(call.URL, "?", 2)[1])
	require.NoError(t, err)
	require.Equal(t, "777", params.Get("searchResultId"))
	require.Equal(t, "2", params.Get("page"))
	require.Equal(t, "Extended", params.Get("searchType"))
}

func TestSearchSinglePageReplays(t *testing.T) {
	ctx := context.Background()
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/search/extended/submit", "testdata/search_single.html")
	a := newAdapter(t, script)

	first, err := a.Search(ctx, []opac.SearchQuery{textQuery("W", "betrachtung")})
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalCount)
	require.Len(t, first.Results, 1)

	again, err := a.FetchPage(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Equal(t, 2, countCalls(script, http.MethodPost, base+"/search/extended/submit"))

	beyond, err := a.FetchPage(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, beyond.Results)
	require.Equal(t, 1, beyond.TotalCount)
}

func TestSearchEmpty(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/search/extended/submit", "testdata/empty.html")
	a := newAdapter(t, script)

	res, err := a.Search(context.Background(), []opac.SearchQuery{textQuery("W", "qwertz")})
	require.NoError(t, err)
	require.Equal(t, 0, res.TotalCount)
	require.Empty(t, res.Results)
}

func TestSearchRejected(t *testing.T) {
	ctx := context.Background()
	script := transporttest.New()
	a := newAdapter(t, script)

	_, err := a.FetchPage(ctx, 1)
	require.ErrorIs(t, err, opac.ErrInternalState)

	_, err = a.Search(ctx, []opac.SearchQuery{textQuery("W", "")})
	require.ErrorIs(t, err, opac.ErrValidation)

	_, err = a.Search(ctx, []opac.SearchQuery{textQuery("W", "a"), textQuery("T", "b"), textQuery("A", "c")})
	require.ErrorIs(t, err, opac.ErrValidation)
	require.Equal(t, i18n.KeyCombinationNotSupported, err.(*opac.Error).Key)
	require.Zero(t, script.CallCount())
}

func TestSearchFormFilters(t *testing.T) {
	media := opac.DropdownField("Filter.MediaType", "Media type", nil).
		WithData("modeKey", "Filter.MediaType-mode").
		WithData("modeValue", "Or")
	form, err := searchForm([]opac.SearchQuery{
		opac.NewQuery(media, "DVD"),
		textQuery("Filter.Year.From", "2000"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"", ""}, form["Request.SearchTerm"])
	require.Equal(t, []string{"W", "W"}, form["Request.SearchField"])
	require.Equal(t, "DVD", form.Get("Filter.MediaType"))
	require.Equal(t, "Or", form.Get("Filter.MediaType-mode"))
	require.Equal(t, "2000", form.Get("Filter.Year.From"))
}

func TestSearchFields(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodGet, base+"/search/extended", "testdata/searchform.html")
	a := newAdapter(t, script)

	fields, err := a.SearchFields(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 6)

	require.Equal(t, "W", fields[0].ID)
	require.True(t, fields[0].FreeSearch)
	require.Equal(t, "Title", fields[1].DisplayName)

	media := fields[3]
	require.Equal(t, opac.FieldDropdown, media.Kind)
	require.Equal(t, "Filter.MediaType", media.ID)
	require.Equal(t, "Media type", media.DisplayName)
	require.Equal(t, []opac.DropdownOption{{Key: "", Value: ""}, {Key: "BK", Value: "Book"}, {Key: "DVD", Value: "DVD"}}, media.Options)
	require.Equal(t, "Filter.MediaType-mode", media.Datum("modeKey"))
	require.Equal(t, "Or", media.Datum("modeValue"))

	from, to := fields[4], fields[5]
	require.Equal(t, "Filter.Year.From", from.ID)
	require.Equal(t, "from", from.Hint)
	require.False(t, from.HalfWidth)
	require.Equal(t, "to", to.Hint)
	require.True(t, to.HalfWidth)
}

func detailItem(t *testing.T) opac.DetailedItem {
	t.Helper()
	script := transporttest.New().
		OnFile(t, http.MethodGet, base+"/search/notice?noticeId=101", "testdata/detail.html")
	a := newAdapter(t, script)
	item, err := a.Detail(context.Background(), "noticeId=101")
	require.NoError(t, err)
	return item
}

func TestDetail(t *testing.T) {
	item := detailItem(t)

	require.Equal(t, "noticeId=101", item.ID)
	require.Equal(t, "Der Process", item.Title)
	require.Equal(t, "https://covers.example.org/101.jpg", item.CoverURL)
	require.True(t, item.Reservable)
	require.Equal(t, []opac.Detail{
		{Label: "Author", Value: "Kafka, Franz"},
		{Label: "Publisher", Value: "Berlin: Die Schmiede, 1925"},
		{Label: "Author", Value: "Brod, Max"},
		{Label: "Description", Value: "A bank clerk is arrested."},
		{Label: "Table of contents", Value: "https://example.org/toc.pdf"},
		{Label: "_onleihe_id", Value: "4711"},
	}, item.Details)

	want := []opac.Copy{
		{
			Branch:           "Zentrale",
			Location:         "Erdgeschoss · Regal 4",
			Shelfmark:        "KAF 1",
			Status:           "Ausgeliehen",
			ReturnDate:       date(2024, time.May, 12),
			Barcode:          "0001",
			ReservationToken: "T1",
		},
		{
			Branch:           "Filiale Nord",
			Location:         "Magazin",
			Shelfmark:        "KAF 1 b",
			Status:           "Verfügbar",
			Barcode:          "0002",
			ReservationToken: "T2",
		},
		{
			Branch:    "Filiale Süd",
			Location:  "Präsenzbestand",
			Shelfmark: "KAF 1 c",
			Status:    "Nicht ausleihbar",
			Barcode:   "0003",
		},
	}
	if diff := cmp.Diff(want, item.Copies); diff != "" {
		t.Fatalf("copies mismatch (-want +got):\n%s", diff)
	}
}

func TestDetailNotFound(t *testing.T) {
	ctx := context.Background()
	script := transporttest.New().
		OnStatus(http.MethodGet, base+"/search/notice?noticeId=404", http.StatusNotFound).
		OnFile(t, http.MethodGet, base+"/search/notice?noticeId=999", "testdata/notfound.html")
	a := newAdapter(t, script)

	_, err := a.Detail(ctx, "noticeId=404")
	require.ErrorIs(t, err, opac.ErrNotFound)
	_, err = a.Detail(ctx, "noticeId=999")
	require.ErrorIs(t, err, opac.ErrNotFound)
}

func TestAccount(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/account/login", "testdata/login_ok.html").
		OnFile(t, http.MethodGet, base+"/account/reservations", "testdata/reservations.html").
		OnFile(t, http.MethodGet, base+"/account/orders", "testdata/orders.html").
		OnFile(t, http.MethodGet, base+"/account/circulations?page=2", "testdata/circulations_2.html").
		OnFile(t, http.MethodGet, base+"/account/circulations", "testdata/circulations_1.html").
		OnFile(t, http.MethodGet, base+"/account", "testdata/account.html")
	a := newAdapter(t, script)

	data, err := a.Account(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, "3", data.AccountID)
	require.Equal(t, "Your card expires in 10 days.", data.Warning)
	require.Equal(t, "CHF 4.50", data.PendingFees)
	require.Equal(t, date(2025, time.December, 31), data.ValidUntil)

	call, ok := script.LastCall(base + "/account/login")
	require.True(t, ok)
	require.Equal(t, "/lib/account", call.Form.Get("ReturnUrl"))
	require.Equal(t, "reader", call.Form.Get("Username"))

	wantLent := []opac.LentItem{
		{
			AccountItem: opac.AccountItem{
				ItemID: "noticeNr=401",
				Title:  "Der Process",
				Author: "Kafka, Franz",
				Status: "1x renewed",
			},
			DueDate:      date(2024, time.April, 15),
			Barcode:      "0001",
			RenewalToken: "L1",
		},
		{
			AccountItem: opac.AccountItem{
				ItemID: "noticeNr=402",
				Title:  "Amerika",
				Author: "Kafka, Franz",
			},
			DueDate: date(2024, time.April, 22),
			Barcode: "0815",
		},
	}
	if diff := cmp.Diff(wantLent, data.Lent); diff != "" {
		t.Fatalf("lent mismatch (-want +got):\n%s", diff)
	}
	require.False(t, data.Lent[1].Renewable())

	wantReserved := []opac.ReservedItem{
		{
			AccountItem: opac.AccountItem{
				ItemID: "noticeNr=301",
				Title:  "Das Urteil",
				Author: "Kafka, Franz",
				Branch: "Zentrale",
				Status: "2 reservations",
			},
			CancelToken: "R55",
		},
		{
			AccountItem: opac.AccountItem{
				ItemID:   "noticeNr=302",
				Title:    "Die Verwandlung",
				Status:   "ready for pickup",
				CoverURL: "https://covers.example.org/302.jpg",
			},
			ExpirationDate: date(2024, time.March, 20),
			Ready:          true,
		},
	}
	if diff := cmp.Diff(wantReserved, data.Reserved); diff != "" {
		t.Fatalf("reserved mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckAccountRejected(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/account/login", "testdata/login_failed.html")
	a := newAdapter(t, script)

	err := a.CheckAccount(context.Background(), account)
	require.ErrorIs(t, err, opac.ErrAuth)
	require.Equal(t, "Invalid user name or password.", err.(*opac.Error).Message)

	res, err := a.Renew(context.Background(), "L1", account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusError, res.Status)
	require.Equal(t, "Invalid user name or password.", res.Message)
}

func TestReservationByCheckoutKind(t *testing.T) {
	ctx := context.Background()
	item := detailItem(t)
	script := transporttest.New().
		OnFile(t, http.MethodGet, base+"/account/makeitemreservation", "testdata/reserve_pickup.html").
		OnFile(t, http.MethodPost, base+"/account/makeitemreservation", "testdata/success.html").
		OnFile(t, http.MethodPost, base+"/account/login", "testdata/login_ok.html")
	a := newAdapter(t, script)
	flow := opac.Reservation(a, item, account, i18n.NewTable("en"))
	res, err := flow.Begin(ctx)
	require.NoError(t, err)
	require.Equal(t, opac.StatusSelectionNeeded, res.Status)
	require.Equal(t, opac.StepBranch, res.Action)
	require.Len(t, res.Options, 3)
	require.Equal(t, []string{"By mail / Hauptstrasse 1", "Zentrale / Pick up", "Filiale Nord / Pick up"},
		[]string{res.Options[0].Label, res.Options[1].Label, res.Options[2].Label})

	call, ok := script.LastCall(base + "/account/makeitemreservation")
	require.True(t, ok)
	require.Equal(t, base+"/account/makeitemreservation?selectedItems%5B0%5D=T1", call.URL)

	_, err = flow.Resume(ctx, "ItemId=T9")
	require.ErrorIs(t, err, opac.ErrInternalState)
	require.Equal(t, 0, countCalls(script, http.MethodPost, base+"/account/makeitemreservation"))

	res, err = flow.Resume(ctx, res.Options[1].Key)
	require.NoError(t, err)
	require.Equal(t, opac.StatusOK, res.Status)
	require.Equal(t, opac.FlowResolved, flow.State())

	call, ok = script.LastCall(base + "/account/makeitemreservation")
	require.True(t, ok)
	require.Equal(t, http.MethodPost, call.Method)
	require.Equal(t, url.Values{
		// the copy without due date is the earliest available
		"ItemId":          {"T2"},
		"ReservationKind": {"Reservation"},
		"CheckoutKind":    {"PickUp"},
		"BranchofficeId":  {"1"},
		"AddessId":        {"A1"},
	}, call.Form)
}

func TestReservationByCopy(t *testing.T) {
	ctx := context.Background()
	item := detailItem(t)
	script := transporttest.New().
		OnFile(t, http.MethodGet, base+"/account/makeitemreservation", "testdata/login_form.html").
		OnFile(t, http.MethodGet, base+"/account/makeitemreservation", "testdata/reserve_copies.html").
		OnFile(t, http.MethodPost, base+"/account/makeitemreservation", "testdata/failure.html").
		OnFile(t, http.MethodPost, base+"/account/login", "testdata/login_ok.html")
	a := newAdapter(t, script)

	res, err := a.Reserve(ctx, item, account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusSelectionNeeded, res.Status)
	require.Equal(t, []opac.Option{
		{
			Key:   "AddessId=A1&ItemId=T1&ReservationKind=Order",
			Label: "Zentrale Ausgeliehen 12.05.2024 (Bestellung)",
		},
		{
			Key:   "AddessId=A1&ItemId=T2&ReservationKind=Order",
			Label: "Filiale Nord Verfügbar (Bestellung)",
		},
	}, res.Options)
	require.Equal(t, 1, countCalls(script, http.MethodPost, base+"/account/login"))

	res, err = a.Reserve(ctx, item, account, opac.Step{Action: opac.StepBranch, Selection: res.Options[0].Key})
	require.NoError(t, err)
	require.Equal(t, opac.StatusError, res.Status)
	require.Equal(t, "The maximum number of renewals has been reached.", res.Message)
	// the session is reused for the second step
	require.Equal(t, 1, countCalls(script, http.MethodPost, base+"/account/login"))
}

func TestReservationSingleCopySubmits(t *testing.T) {
	item := detailItem(t)
	item.Copies = item.Copies[:1]
	script := transporttest.New().
		OnFile(t, http.MethodGet, base+"/account/makeitemreservation", "testdata/reserve_copies.html").
		OnFile(t, http.MethodPost, base+"/account/makeitemreservation", "testdata/success.html")
	a := newAdapter(t, script)

	res, err := a.Reserve(context.Background(), item, account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusOK, res.Status)
	call, ok := script.LastCall(base + "/account/makeitemreservation")
	require.True(t, ok)
	require.Equal(t, "T1", call.Form.Get("ItemId"))
}

func TestReservationWithoutCopies(t *testing.T) {
	script := transporttest.New()
	a := newAdapter(t, script)

	res, err := a.Reserve(context.Background(), opac.DetailedItem{ID: "noticeId=1"}, account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusError, res.Status)
	require.Equal(t, "No copy of this item can be reserved.", res.Message)
	require.Zero(t, script.CallCount())
}

func TestRenewAndCancel(t *testing.T) {
	ctx := context.Background()
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/account/login", "testdata/login_ok.html").
		OnFile(t, http.MethodGet, base+"/account/renew", "testdata/success.html").
		OnFile(t, http.MethodGet, base+"/account/renew", "testdata/failure.html").
		OnFile(t, http.MethodGet, base+"/account/deletereservations", "testdata/success.html")
	a := newAdapter(t, script)

	res, err := a.Renew(ctx, "L1", account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusOK, res.Status)
	call, ok := script.LastCall(base + "/account/renew")
	require.True(t, ok)
	require.Equal(t, base+"/account/renew?selectedItems%5B0%5D=L1", call.URL)

	res, err = a.Renew(ctx, "L1", account, opac.Step{})
	require.NoError(t, err)
	require.Equal(t, opac.StatusError, res.Status)
	require.Equal(t, "The maximum number of renewals has been reached.", res.Message)

	flow := opac.Cancellation(a, opac.ReservedItem{CancelToken: "R55"}, account, i18n.NewTable("en"))
	res, err = flow.Begin(ctx)
	require.NoError(t, err)
	require.Equal(t, opac.StatusOK, res.Status)
	call, ok = script.LastCall(base + "/account/deletereservations")
	require.True(t, ok)
	require.Equal(t, base+"/account/deletereservations?selectedItems%5B0%5D=R55", call.URL)

	require.Equal(t, 1, countCalls(script, http.MethodPost, base+"/account/login"))
}

func TestRenewAll(t *testing.T) {
	script := transporttest.New().
		OnFile(t, http.MethodPost, base+"/account/login", "testdata/login_ok.html").
		OnFile(t, http.MethodGet, base+"/account/circulations?page=2", "testdata/circulations_2.html").
		OnFile(t, http.MethodGet, base+"/account/circulations", "testdata/circulations_1.html").
		OnFile(t, http.MethodGet, base+"/account/renew", "testdata/success.html")
	a := newAdapter(t, script)

	res, err := opac.RenewalAll(a, account, i18n.NewTable("en")).Begin(context.Background())
	require.NoError(t, err)
	require.Equal(t, opac.StatusOK, res.Status)

	call, ok := script.LastCall(base + "/account/renew")
	require.True(t, ok)
	params, err := url.ParseQuery(strings.SplitN(call.URL, "?", 2)[1])
	require.NoError(t, err)
	require.Equal(t, url.Values{
		"selectedItems[0]": {"L1"},
		"returnUrl":        {"/lib/account/circulations"},
	}, params)
}

func TestCapabilities(t *testing.T) {
	a := newAdapter(t, transporttest.New())
	caps := a.Capabilities()
	require.True(t, caps.Has(opac.CapRenewAll))
	require.True(t, caps.Has(opac.CapEndlessScrolling))
	require.True(t, caps.Has(opac.CapWarnReservationFees))
	require.Equal(t, base+"/search/notice?noticeId=101", a.ShareURL("noticeId=101", "Der Process"))
}
