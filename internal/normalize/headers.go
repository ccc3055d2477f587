package normalize

import "strings"

// HeaderSeparator joins two logical columns in one table header.
const HeaderSeparator = " / "

// SplitHeader splits a compound header into its trimmed field labels.
func SplitHeader(header string) []string {
	parts := strings.Split(header, HeaderSeparator)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Cell is one logical value of a table row after the compound headers and
// their line broken contents were zipped.
type Cell struct {
	Field Field
	Label string
	Text  string
	// Column is the index of the html column the value came from.
	Column int
	// Continues is set for values of a continuation column, Field then is
	// the field carried over from the preceding label.
	Continues bool
}

// Folder folds table rows into cells. It carries the last non-empty label
// seen, so unlabeled sub columns continue the field before them, across
// rows too. Use one Folder per table.
type Folder struct {
	vocab   Vocabulary
	current Field
	label   string
}

func NewFolder(vocab Vocabulary) *Folder {
	return &Folder{vocab: vocab}
}

// Current is the carried field.
func (f *Folder) Current() Field {
	return f.current
}

// Row zips headers with the per column sub values (ex. the result of
// htmlutil.SplitBreaks) and calls visit for every non-empty mapped value.
// Empty values only update the carried field.
func (f *Folder) Row(headers []string, columns [][]string, visit func(Cell)) {
	for col := 0; col < len(headers) && col < len(columns); col++ {
		labels := SplitHeader(headers[col])
		values := columns[col]
		for i := 0; i < len(labels) && i < len(values); i++ {
			label := labels[i]
			field := f.vocab.Lookup(label)
			content := strings.TrimSpace(values[i])
			if content == "" {
				f.carry(label, field)
				continue
			}
			if field == FieldContinuation {
				if f.current != FieldUnmapped {
					visit(Cell{Field: f.current, Label: f.label, Text: content, Column: col, Continues: true})
				}
				continue
			}
			if field != FieldUnmapped {
				visit(Cell{Field: field, Label: label, Text: content, Column: col})
			}
			f.carry(label, field)
		}
	}
}

func (f *Folder) carry(label string, field Field) {
	if label == "" || field == FieldContinuation {
		return
	}
	f.current = field
	f.label = label
}

// FoldRow folds a single row with a fresh Folder.
func FoldRow(headers []string, columns [][]string, vocab Vocabulary, visit func(Cell)) {
	NewFolder(vocab).Row(headers, columns, visit)
}
