package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"opacbridge/internal/opac"

	"github.com/antzucaro/matchr"
)

type Starred struct {
	ID        int64
	Library   string
	ItemID    string
	Title     string
	MediaType opac.MediaType
	CreatedAt time.Time
}

// Star remembers an item, starring it again updates title and media type.
func (s *Store) Star(ctx context.Context, library, itemID, title string, mediaType opac.MediaType) error {
	_, err := s.db.ExecContext(ctx, `
		insert into starred (library, item_id, title, media_type, created_at)
		values (?, ?, ?, ?, ?)
		on conflict (library, item_id) do update set
			title = excluded.title,
			media_type = excluded.media_type`,
		library, itemID, title, mediaType.String(), s.clock.Now().Unix(),
	)
	return err
}

func (s *Store) Unstar(ctx context.Context, library, itemID string) error {
	_, err := s.db.ExecContext(ctx, `delete from starred where library = ? and item_id = ?`, library, itemID)
	return err
}

func (s *Store) IsStarred(ctx context.Context, library, itemID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from starred where library = ? and item_id = ?`, library, itemID,
	).Scan(&n)
	return n > 0, err
}

// StarredItems lists the starred items of a library, newest first.
func (s *Store) StarredItems(ctx context.Context, library string) ([]Starred, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, library, item_id, title, media_type, created_at
		from starred where library = ?
		order by created_at desc, id desc`, library)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Starred
	for rows.Next() {
		var item Starred
		var mediaType string
		var created int64
		err = rows.Scan(&item.ID, &item.Library, &item.ItemID, &item.Title, &mediaType, &created)
		if err != nil {
			return nil, err
		}
		item.MediaType = opac.ParseMediaType(mediaType)
		item.CreatedAt = time.Unix(created, 0).In(s.clock.Location())
		out = append(out, item)
	}
	return out, rows.Err()
}

// ErrNoMatch is returned when no stored title is similar enough.
var ErrNoMatch = errors.New("no matching item")

// MinTitleSimilarity is the Jaro-Winkler similarity a stored title needs to
// match a lookup.
const MinTitleSimilarity = 0.85

// FindStarred looks a starred item up by title. Starred items of
// backends without stable ids are only found that way.
func (s *Store) FindStarred(ctx context.Context, library, title string) (Starred, error) {
	items, err := s.StarredItems(ctx, library)
	if err != nil {
		return Starred{}, err
	}

	var best Starred
	var bestSimilarity float64
	for _, item := range items {
		similarity := matchr.JaroWinkler(title, item.Title, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = item
		}
	}
	if bestSimilarity < MinTitleSimilarity {
		return Starred{}, ErrNoMatch
	}
	return best, nil
}

// StarredByID fails with ErrNoMatch for unknown ids.
func (s *Store) StarredByID(ctx context.Context, id int64) (Starred, error) {
	var item Starred
	var mediaType string
	var created int64
	err := s.db.QueryRowContext(ctx, `
		select id, library, item_id, title, media_type, created_at
		from starred where id = ?`, id,
	).Scan(&item.ID, &item.Library, &item.ItemID, &item.Title, &mediaType, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Starred{}, errors.Join(ErrNoMatch, err)
	}
	if err != nil {
		return Starred{}, err
	}
	item.MediaType = opac.ParseMediaType(mediaType)
	item.CreatedAt = time.Unix(created, 0).In(s.clock.Location())
	return item, nil
}
