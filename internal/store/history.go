package store

import (
	"context"
	"database/sql"
	"time"

	"opacbridge/internal/opac"
)

// HistoryItem is one lending of an item, FirstDate and LastDate are the
// days it was first and last seen in the account.
type HistoryItem struct {
	ID        int64
	Library   string
	ItemID    string
	Title     string
	Author    string
	Format    string
	Branch    string
	Barcode   string
	CoverURL  string
	FirstDate time.Time
	LastDate  time.Time
	Deadline  time.Time
	// Renewals counts the deadline changes seen while the item was lent.
	Renewals int
	Lending  bool
}

// HistoryChanges counts what UpdateLending did.
type HistoryChanges struct {
	Inserted int
	Updated  int
	Ended    int
}

// same tells whether a lent item continues this lending. Items with ids
// match by id, the others by title and author.
func (h HistoryItem) same(item opac.LentItem) bool {
	if h.ItemID != "" && item.ItemID != "" {
		return h.ItemID == item.ItemID
	}
	return h.Title == item.Title && h.Author == item.Author
}

// UpdateLending merges the current lent items of an account into the
// history. Items still lent get their last day bumped and count a renewal
// when their deadline moved, new items are inserted, items gone from the
// account end their lending.
func (s *Store) UpdateLending(ctx context.Context, library string, lent []opac.LentItem) (HistoryChanges, error) {
	var changes HistoryChanges

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return changes, err
	}
	defer tx.Rollback()

	active, err := s.historyItems(ctx, tx, library, true)
	if err != nil {
		return changes, err
	}
	today := unixDay(s.today())

	matched := make([]bool, len(active))
	for _, item := range lent {
		found := -1
		for i, h := range active {
			if !matched[i] && h.same(item) {
				found = i
				break
			}
		}

		if found < 0 {
			_, err = tx.ExecContext(ctx, `
				insert into history (library, item_id, title, author, format, branch, barcode,
					cover_url, first_date, last_date, deadline, renewals, lending)
				values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 1)`,
				library, item.ItemID, item.Title, item.Author, item.Format, item.Branch, item.Barcode,
				item.CoverURL, today, today, unixDay(item.DueDate),
			)
			if err != nil {
				return changes, err
			}
			changes.Inserted++
			continue
		}

		matched[found] = true
		h := active[found]
		renewals := h.Renewals
		if !item.DueDate.IsZero() && !item.DueDate.Equal(h.Deadline) {
			renewals++
		}
		deadline := h.Deadline
		if !item.DueDate.IsZero() {
			deadline = item.DueDate
		}
		_, err = tx.ExecContext(ctx,
			`update history set last_date = ?, deadline = ?, renewals = ? where id = ?`,
			today, unixDay(deadline), renewals, h.ID,
		)
		if err != nil {
			return changes, err
		}
		changes.Updated++
	}

	for i, h := range active {
		if matched[i] {
			continue
		}
		_, err = tx.ExecContext(ctx, `update history set lending = 0 where id = ?`, h.ID)
		if err != nil {
			return changes, err
		}
		changes.Ended++
	}

	err = tx.Commit()
	if err != nil {
		return changes, err
	}
	s.tel.ReportDebug(report_history_update,
		"library", library,
		"inserted", changes.Inserted,
		"updated", changes.Updated,
		"ended", changes.Ended,
	)
	return changes, nil
}

// History lists every lending of a library, the most recent first.
func (s *Store) History(ctx context.Context, library string) ([]HistoryItem, error) {
	return s.historyItems(ctx, s.db, library, false)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) historyItems(ctx context.Context, q querier, library string, onlyLending bool) ([]HistoryItem, error) {
	query := `
		select id, library, item_id, title, author, format, branch, barcode, cover_url,
			first_date, last_date, deadline, renewals, lending
		from history where library = ?`
	if onlyLending {
		query += ` and lending = 1`
	}
	query += ` order by last_date desc, id desc`

	rows, err := q.QueryContext(ctx, query, library)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loc := s.clock.Location()
	var out []HistoryItem
	for rows.Next() {
		var h HistoryItem
		var first, last, deadline int64
		err = rows.Scan(
			&h.ID, &h.Library, &h.ItemID, &h.Title, &h.Author, &h.Format, &h.Branch, &h.Barcode,
			&h.CoverURL, &first, &last, &deadline, &h.Renewals, &h.Lending,
		)
		if err != nil {
			return nil, err
		}
		h.FirstDate = fromUnix(first, loc)
		h.LastDate = fromUnix(last, loc)
		h.Deadline = fromUnix(deadline, time.UTC)
		out = append(out, h)
	}
	return out, rows.Err()
}
