package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"opacbridge/internal/opac"
)

// FieldsMaxAge is how long cached search fields stay valid.
const FieldsMaxAge = 30 * 24 * time.Hour

// SaveSearchFields caches the search fields of a library in one language.
func (s *Store) SaveSearchFields(ctx context.Context, library, language string, fields []opac.SearchField) error {
	encoded, err := opac.EncodeFields(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into search_fields (library, language, fields, fetched_at)
		values (?, ?, ?, ?)
		on conflict (library, language) do update set
			fields = excluded.fields,
			fetched_at = excluded.fetched_at`,
		library, language, string(encoded), s.clock.Now().Unix(),
	)
	return err
}

// SearchFields returns the cached fields, ok is false when there are none
// or they are older than FieldsMaxAge. Entries that do not decode are
// treated as missing.
func (s *Store) SearchFields(ctx context.Context, library, language string) ([]opac.SearchField, bool, error) {
	var encoded string
	var fetched int64
	err := s.db.QueryRowContext(ctx,
		`select fields, fetched_at from search_fields where library = ? and language = ?`,
		library, language,
	).Scan(&encoded, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if s.clock.Now().Sub(time.Unix(fetched, 0)) > FieldsMaxAge {
		return nil, false, nil
	}

	fields, err := opac.DecodeFields([]byte(encoded))
	if err != nil {
		s.tel.ReportWarning(report_fields_decode, err, "library", library)
		return nil, false, nil
	}
	return fields, true, nil
}

// ClearSearchFields drops the cached fields of a library in all languages.
func (s *Store) ClearSearchFields(ctx context.Context, library string) error {
	_, err := s.db.ExecContext(ctx, `delete from search_fields where library = ?`, library)
	return err
}
