package opac

import "context"

// Adapter is the contract every backend implements. One instance owns one
// Session, operations on an instance must not run concurrently. Use separate
// instances for separate accounts.
type Adapter interface {
	// Search validates and runs a new search and returns its first page. The
	// queries are kept in the session for FetchPage.
	Search(ctx context.Context, queries []SearchQuery) (SearchRequestResult, error)
	// FetchPage returns a 1-based page of the last search, it fails with
	// ErrInternalState when no search ran.
	FetchPage(ctx context.Context, page int) (SearchRequestResult, error)
	// Detail fails with ErrNotFound when the id no longer resolves.
	Detail(ctx context.Context, id string) (DetailedItem, error)
	SearchFields(ctx context.Context) ([]SearchField, error)

	// CheckAccount performs the login challenge, it fails with ErrAuth
	// carrying the backend message when the credentials are rejected.
	CheckAccount(ctx context.Context, acc Account) error
	// Account logs in if needed and collects lent and reserved items and
	// fees. Backend alerts that do not prevent this end up in
	// AccountData.Warning.
	Account(ctx context.Context, acc Account) (AccountData, error)

	Reserve(ctx context.Context, item DetailedItem, acc Account, step Step) (ActionResult, error)
	Renew(ctx context.Context, token Token, acc Account, step Step) (ActionResult, error)
	RenewAll(ctx context.Context, acc Account, step Step) (ActionResult, error)
	Cancel(ctx context.Context, token Token, acc Account, step Step) (ActionResult, error)

	// ShareURL is a public link to an item, "" if the backend has none.
	ShareURL(id, title string) string
	Capabilities() Capability
	// Languages lists the interface languages the backend offers.
	Languages(ctx context.Context) ([]string, error)
	SetLanguage(language string)
}

type Capability uint8

const (
	CapAccount Capability = 1 << iota
	CapReservation
	CapCancel
	CapRenewAll
	// CapEndlessScrolling means pages can be fetched in any order.
	CapEndlessScrolling
	// CapWarnReservationFees means reservations may be charged.
	CapWarnReservationFees
)

func (c Capability) Has(flag Capability) bool {
	return c&flag == flag
}

// Unimplemented can be embedded by adapters to answer the optional actions
// with Unsupported.
type Unimplemented struct{}

func (Unimplemented) Reserve(context.Context, DetailedItem, Account, Step) (ActionResult, error) {
	return Unsupported(ActionReservation), nil
}

func (Unimplemented) RenewAll(context.Context, Account, Step) (ActionResult, error) {
	return Unsupported(ActionRenewalAll), nil
}

func (Unimplemented) Cancel(context.Context, Token, Account, Step) (ActionResult, error) {
	return Unsupported(ActionCancellation), nil
}

func (Unimplemented) ShareURL(string, string) string {
	return ""
}

func (Unimplemented) Languages(context.Context) ([]string, error) {
	return nil, nil
}
