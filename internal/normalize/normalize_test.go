package normalize

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"opacbridge/internal/opac"
)

func TestSplitHeader(t *testing.T) {
	require.Equal(t, []string{"Fälligkeitsdatum", "Exemplarnr."}, SplitHeader(" Fälligkeitsdatum / Exemplarnr. "))
	require.Equal(t, []string{"Signatur"}, SplitHeader("Signatur"))
	require.Equal(t, []string{"A/B"}, SplitHeader("A/B"))
}

func TestFoldCompoundHeader(t *testing.T) {
	headers := map[string]string{
		"de": "Fälligkeitsdatum / Exemplarnr.",
		"en": "Due date / Item number",
		"fr": "Date d'échéance / No d'exemplaire",
	}
	for lang, header := range headers {
		t.Run(lang, func(t *testing.T) {
			var cells []Cell
			FoldRow([]string{header}, [][]string{{"12.03.2024", "0815"}}, CopyVocabulary, func(c Cell) {
				cells = append(cells, c)
			})
			require.Len(t, cells, 2)
			require.Equal(t, FieldReturnDate, cells[0].Field)
			require.Equal(t, "12.03.2024", cells[0].Text)
			require.Equal(t, FieldBarcode, cells[1].Field)
			require.Equal(t, "0815", cells[1].Text)
		})
	}
}

func TestFoldCarriesField(t *testing.T) {
	headers := []string{"Bibliothek", "Standort / ", "Stockwerk", "Unbekannt"}
	rows := [][][]string{
		{{"Zentrale"}, {"Magazin", "2. OG"}, {"Raum 4"}, {"x"}},
		{{"Filiale"}, {"", ""}, {"EG"}, {"y"}},
	}
	folder := NewFolder(CopyVocabulary)
	var got [][]Cell
	for _, row := range rows {
		var cells []Cell
		folder.Row(headers, row, func(c Cell) {
			cells = append(cells, c)
		})
		got = append(got, cells)
	}

	want := [][]Cell{
		{
			{Field: FieldBranch, Label: "Bibliothek", Text: "Zentrale", Column: 0},
			{Field: FieldLocation, Label: "Standort", Text: "Magazin", Column: 1},
			{Field: FieldLocation, Label: "Standort", Text: "2. OG", Column: 1, Continues: true},
			{Field: FieldLocation, Label: "Standort", Text: "Raum 4", Column: 2, Continues: true},
		},
		{
			{Field: FieldBranch, Label: "Bibliothek", Text: "Filiale", Column: 0},
			{Field: FieldLocation, Label: "Standort", Text: "EG", Column: 2, Continues: true},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cells (-want +got):\n%s", diff)
	}
	require.Equal(t, FieldUnmapped, folder.Current())
}

func TestFoldCarriesFieldAcrossRows(t *testing.T) {
	folder := NewFolder(CopyVocabulary)
	var cells []Cell
	visit := func(c Cell) {
		cells = append(cells, c)
	}

	// the location column of the first row is empty, its label carries over
	folder.Row([]string{"Bibliothek", "Standort"}, [][]string{{"Zentrale"}, {""}}, visit)
	require.Equal(t, FieldLocation, folder.Current())

	folder.Row([]string{"", "Signatur"}, [][]string{{"2. OG"}, {"A 12"}}, visit)

	want := []Cell{
		{Field: FieldBranch, Label: "Bibliothek", Text: "Zentrale", Column: 0},
		{Field: FieldLocation, Label: "Standort", Text: "2. OG", Column: 0, Continues: true},
		{Field: FieldShelfmark, Label: "Signatur", Text: "A 12", Column: 1},
	}
	if diff := cmp.Diff(want, cells); diff != "" {
		t.Fatalf("cells (-want +got):\n%s", diff)
	}
	require.Equal(t, FieldShelfmark, folder.Current())

	// a fresh folder has nothing to continue
	cells = nil
	FoldRow([]string{"", "Signatur"}, [][]string{{"2. OG"}, {"A 12"}}, CopyVocabulary, visit)
	require.Equal(t, []Cell{{Field: FieldShelfmark, Label: "Signatur", Text: "A 12", Column: 1}}, cells)
}

func TestVocabularyLookup(t *testing.T) {
	require.Equal(t, FieldShelfmark, CopyVocabulary.Lookup("Signatur"))
	require.Equal(t, FieldShelfmark, CopyVocabulary.Lookup("call number:"))
	require.Equal(t, FieldShelfmark, CopyVocabulary.Lookup("Cote"))
	require.Equal(t, FieldUnmapped, CopyVocabulary.Lookup("Jahr"))
	require.Equal(t, FieldContinuation, CopyVocabulary.Lookup(""))

	v := CopyVocabulary.Extend(map[Field][]string{FieldDepartment: {"Jahr"}})
	require.Equal(t, FieldDepartment, v.Lookup("Jahr"))
	require.Equal(t, FieldUnmapped, CopyVocabulary.Lookup("Jahr"))
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		layout string
		text   string
		want   time.Time
	}{
		{LayoutGerman, "12.03.2024", time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)},
		{LayoutGerman, " 01.02.2023 ", time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)},
		{LayoutGerman, "", time.Time{}},
		{LayoutGerman, "00.00.0000", time.Time{}},
		{LayoutGerman, "morgen", time.Time{}},
		{LayoutISO, "0000-00-00", time.Time{}},
		{LayoutISO, "2024-13-45", time.Time{}},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ParseDate(tc.layout, tc.text), tc.text)
	}
}

func TestParseDateTime(t *testing.T) {
	want := time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC)
	require.Equal(t, want, ParseDateTime("2024-05-31 23:59:00"))
	require.Equal(t, want, ParseDateTime("2024-05-31T23:59:00"))
	require.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), ParseDateTime("2024-05-31"))
	require.True(t, ParseDateTime("0000-00-00 00:00:00").IsZero())
	require.True(t, ParseDateTime("0000-00-00").IsZero())
	require.True(t, ParseDateTime("garbage").IsZero())

	// real timestamps that merely end in zeros
	require.Equal(t, want, ParseDateTime("2024-05-31T23:59:00.0000"))
	require.Equal(t, time.Date(2024, 5, 31, 10, 0, 0, 0, time.UTC), ParseDateTime("2024-05-31 10:00:00.0000"))
	require.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), ParseDate(LayoutGerman, "01.01.2000"))
	require.True(t, ParseDateTime("0000-05-31").IsZero())
}

func TestAvailabilityFromIcon(t *testing.T) {
	require.Equal(t, opac.AvailabilityGreen, AvailabilityFromIcon("/Content/images/yes.png"))
	require.Equal(t, opac.AvailabilityGreen, AvailabilityFromIcon("https://opac.example.org/img/yes.png?v=2"))
	require.Equal(t, opac.AvailabilityRed, AvailabilityFromIcon("/Content/images/no.png"))
	require.Equal(t, opac.AvailabilityUnknown, AvailabilityFromIcon("/Content/images/ebook.gif"))
	require.Equal(t, opac.AvailabilityUnknown, AvailabilityFromIcon(""))
}

func TestAvailabilityFromFlags(t *testing.T) {
	require.Equal(t, opac.AvailabilityYellow, AvailabilityFromFlags(true, true))
	require.Equal(t, opac.AvailabilityGreen, AvailabilityFromFlags(true, false))
	require.Equal(t, opac.AvailabilityRed, AvailabilityFromFlags(false, true))
	require.Equal(t, opac.AvailabilityNone, AvailabilityFromFlags(false, false))
}

func TestAvailabilityFromStatus(t *testing.T) {
	require.Equal(t, opac.AvailabilityRed, AvailabilityFromStatus("Nicht verfügbar"))
	require.Equal(t, opac.AvailabilityGreen, AvailabilityFromStatus("Verfügbar"))
	require.Equal(t, opac.AvailabilityRed, AvailabilityFromStatus("Unavailable"))
	require.Equal(t, opac.AvailabilityUnknown, AvailabilityFromStatus("Im Umlauf?"))
	require.Equal(t, opac.AvailabilityNone, AvailabilityFromStatus(""))

	require.Equal(t, opac.AvailabilityYellow, CombineAvailability(opac.AvailabilityGreen, opac.AvailabilityRed))
	require.Equal(t, opac.AvailabilityUnknown, CombineAvailability(opac.AvailabilityUnknown))
	require.Equal(t, opac.AvailabilityNone, CombineAvailability())
}

func TestGroupRows(t *testing.T) {
	pattern := regexp.MustCompile(`wo-row_(\d+)`)
	ids := []string{"wo-row_1", "wo-row_2", "wo-row_1", "header", "wo-row_3", "wo-row_2"}
	groups := GroupRows(ids, func(id string) string {
		return RowKey(pattern, id)
	})
	want := [][]string{
		{"wo-row_1", "wo-row_1"},
		{"wo-row_2", "wo-row_2"},
		{"wo-row_3"},
	}
	require.Equal(t, want, groups)
}

func TestBestCopy(t *testing.T) {
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	later := due.AddDate(0, 0, 5)

	cases := []struct {
		name      string
		copies    []opac.Copy
		preferred string
		want      string
	}{
		{
			name:      "branch breaks tie of undated copies",
			copies:    []opac.Copy{{Branch: "A"}, {Branch: "B"}},
			preferred: "B",
			want:      "B",
		},
		{
			name:      "undated copy sorts first",
			copies:    []opac.Copy{{Branch: "A", ReturnDate: due}, {Branch: "B"}},
			preferred: "A",
			want:      "B",
		},
		{
			name:   "earliest return date",
			copies: []opac.Copy{{Branch: "A", ReturnDate: later}, {Branch: "B", ReturnDate: due}},
			want:   "B",
		},
		{
			name:   "stable without preference",
			copies: []opac.Copy{{Branch: "A"}, {Branch: "B"}},
			want:   "A",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := BestCopy(tc.copies, tc.preferred)
			require.True(t, ok)
			require.Equal(t, tc.want, got.Branch)
		})
	}

	_, ok := BestCopy(nil, "")
	require.False(t, ok)
}
