package opac

import "strings"

const DefaultLanguage = "en"

// Session is the mutable state of one adapter instance. It is owned by that
// adapter, is not safe for concurrent use and is never persisted.
type Session struct {
	queries  []SearchQuery
	searched bool
	cursor   string
	page     int
	account  string
	language string
}

func NewSession() *Session {
	return &Session{language: DefaultLanguage}
}

// BeginSearch stores the query set of a new search, it resets the cursor.
func (s *Session) BeginSearch(queries []SearchQuery) {
	s.queries = append([]SearchQuery(nil), queries...)
	s.searched = true
	s.cursor = ""
	s.page = 1
}

// Query returns the queries of the last search.
func (s *Session) Query() ([]SearchQuery, error) {
	if !s.searched {
		return nil, InternalStateError("no search in this session")
	}
	return s.queries, nil
}

func (s *Session) Searched() bool {
	return s.searched
}

// SetCursor records the backend's pagination handle (ex. a result set id)
// together with the page it was last used for.
func (s *Session) SetCursor(cursor string, page int) {
	s.cursor = cursor
	s.page = page
}

func (s *Session) Cursor() string {
	return s.cursor
}

func (s *Session) Page() int {
	return s.page
}

func (s *Session) MarkAuthenticated(acc Account) {
	s.account = accountKey(acc)
}

// AuthenticatedAs reports whether a login for acc succeeded in this session.
func (s *Session) AuthenticatedAs(acc Account) bool {
	return s.account != "" && s.account == accountKey(acc)
}

func (s *Session) Authenticated() bool {
	return s.account != ""
}

// Invalidate drops the authentication, ex. after the backend logged us out.
func (s *Session) Invalidate() {
	s.account = ""
}

// Reset drops all search and authentication state.
func (s *Session) Reset() {
	language := s.language
	*s = Session{language: language}
}

func (s *Session) Language() string {
	return s.language
}

func (s *Session) SetLanguage(language string) {
	language = strings.TrimSpace(language)
	if language == "" {
		language = DefaultLanguage
	}
	s.language = language
}

func accountKey(acc Account) string {
	if acc.Name == "" {
		return ""
	}
	return acc.Library + "\x00" + acc.Name
}
