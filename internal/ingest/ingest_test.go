package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maim-pdmr/spiz/internal/model"
)

var fixedNow = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

type mockUpserter struct {
	mock.Mock
}

func (m *mockUpserter) UpsertArticles(ctx context.Context, articles []model.Article) (int, int, error) {
	args := m.Called(ctx, articles)
	return args.Int(0), args.Int(1), args.Error(2)
}

func TestSniffSeparator(t *testing.T) {
	assert.Equal(t, ';', int32(sniffSeparator("testata;data testata;titolo")))
	assert.Equal(t, ',', int32(sniffSeparator("testata,data testata,titolo")))
	assert.Equal(t, '\t', int32(sniffSeparator("testata\tdata testata\ttitolo")))
	// Semicolons win over commas inside the same header.
	assert.Equal(t, ';', int32(sniffSeparator("a;b;c;d,e")))
}

func TestDecode_Latin1Fallback(t *testing.T) {
	// "perché" with a Latin-1 encoded é (0xE9), invalid as UTF-8.
	raw := []byte{'p', 'e', 'r', 'c', 'h', 0xE9}
	text, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "perché", text)

	utf8Text, err := decode([]byte("perché"))
	require.NoError(t, err)
	assert.Equal(t, "perché", utf8Text)
}

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"15/03/2026":       "2026-03-15",
		"5/3/2026":         "2026-03-05",
		"15-03-2026":       "2026-03-15",
		"15.03.2026":       "2026-03-15",
		"2026-03-15":       "2026-03-15",
		"15/03/2026 00:00": "2026-03-15",
		"":                 "2026-08-26", // blank falls back to today
		"non una data":     "2026-08-26",
	}
	for input, want := range cases {
		got := parseDate(input, fixedNow)
		assert.Equal(t, want, got.Format("2006-01-02"), "input %q", input)
	}
}

func TestParseAVE(t *testing.T) {
	cases := map[string]float64{
		"1234,56":    1234.56,
		"1.234,56":   1234.56,
		"1234.56":    1234.56,
		"€ 1.500,00": 1500,
		"":           0,
		"n.d.":       0,
	}
	for input, want := range cases {
		assert.InDelta(t, want, parseAVE(input), 1e-9, "input %q", input)
	}
}

func TestRowToArticle_Defaults(t *testing.T) {
	idx := headerIndex([]string{"Testata", "Data Testata", "Titolo", "AVE"})
	a := rowToArticle(idx, []string{"", "", "", ""}, fixedNow)
	assert.Equal(t, "N.D.", a.Source)
	assert.Equal(t, "Senza Titolo", a.Title)
	assert.Equal(t, "2026-08-26", a.DateString())
	assert.NotEmpty(t, a.Fingerprint)
}

func TestHeaderIndex_NormalizesNames(t *testing.T) {
	idx := headerIndex([]string{" Testata ", "Data Testata", "AUTORE", "colonna_ignota"})
	assert.Equal(t, 0, idx["source"])
	assert.Equal(t, 1, idx["date"])
	assert.Equal(t, 2, idx["byline"])
	assert.Len(t, idx, 3)
}

func TestImportRows_DedupsAndUpserts(t *testing.T) {
	rows := [][]string{
		{"testata", "data testata", "autore", "titolo", "testo", "macrosettori", "ave"},
		{"Corriere", "15/03/2026", "mario rossi", "Titolo uno", "corpo", "Energia; Energia, Finanza", "1.000,50"},
		{"Corriere", "15/03/2026", "mario rossi", "Titolo uno", "corpo", "Energia", "1.000,50"}, // duplicate
		{"Repubblica", "16/03/2026", "", "Titolo due", "altro corpo", "", ""},
		{"", "", "", "", "", "", ""}, // blank row ignored
	}

	ms := new(mockUpserter)
	var captured []model.Article
	ms.On("UpsertArticles", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).([]model.Article)
		}).
		Return(2, 0, nil).Once()

	im := NewImporter(ms, func() time.Time { return fixedNow })
	summary, err := im.ImportRows(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 2, summary.Inserted)
	assert.Contains(t, summary.Message(), "Elaborati 3 articoli (1 duplicati). Inseriti: 2.")

	require.Len(t, captured, 2)
	assert.Equal(t, "Corriere", captured[0].Source)
	assert.Equal(t, "2026-03-15", captured[0].DateString())
	assert.Equal(t, "Energia, Finanza", captured[0].Sectors) // deduped tags
	assert.InDelta(t, 1000.50, captured[0].AVE, 1e-9)
	ms.AssertExpectations(t)
}

func TestImportRows_Errors(t *testing.T) {
	im := NewImporter(new(mockUpserter), nil)

	_, err := im.ImportRows(context.Background(), nil)
	assert.ErrorContains(t, err, "no data rows")

	_, err = im.ImportRows(context.Background(), [][]string{
		{"colonna_a", "colonna_b"},
		{"x", "y"},
	})
	assert.ErrorContains(t, err, "no recognized columns")
}

func TestImportCSV_EndToEnd(t *testing.T) {
	payload := strings.Join([]string{
		"Testata;Data Testata;Autore;Titolo;Testo;AVE",
		"Corriere;15/03/2026;mario rossi;Titolo uno;corpo del pezzo;500,00",
		"Repubblica;16/03/2026;;Titolo due;altro corpo;",
	}, "\n")

	ms := new(mockUpserter)
	ms.On("UpsertArticles", mock.Anything, mock.Anything).Return(2, 0, nil).Once()

	im := NewImporter(ms, func() time.Time { return fixedNow })
	summary, err := im.ImportCSV(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Duplicates)
	ms.AssertExpectations(t)
}
