package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/palmapsd/production-ledger/billing"
)

func report() billing.PeriodReport {
	period := billing.Period{
		ID:     "per-1",
		Start:  billing.MustParseDate("2026-01-21"),
		End:    billing.MustParseDate("2026-02-20"),
		Label:  "21/01/2026 a 20/02/2026",
		Status: billing.StatusClosed,
		Total:  billing.NewMoney("540.00"),
	}
	ps := []billing.Production{
		{
			ID: "p-2", Date: billing.MustParseDate("2026-01-26"), Type: billing.TypeStory,
			Name: "Stories", Quantity: 2, UnitPrice: billing.NewMoney("45.00"),
			Total: billing.NewMoney("90.00"), Notes: "bastidores",
		},
		{
			ID: "p-1", Date: billing.MustParseDate("2026-01-25"), Type: billing.TypeFeed,
			Name: "Post cardápio", Quantity: 3, UnitPrice: billing.NewMoney("150.00"),
			Total: billing.NewMoney("450.00"),
		},
	}
	return billing.NewPeriodReport(period, "Palma Café", ps, billing.DefaultProductionTypes)
}

func readRows(t *testing.T, raw []byte) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWritePeriodCSV_Sections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(language.English).WritePeriodCSV(&buf, report()))

	rows := readRows(t, buf.Bytes())

	assert.Equal(t, []string{"Cliente", "Palma Café"}, rows[0])
	assert.Equal(t, []string{"Período", "21/01/2026 a 20/02/2026"}, rows[1])
	assert.Equal(t, []string{"Status", "Fechado"}, rows[2])
	assert.Equal(t, []string{"Produções"}, rows[3])
	assert.Equal(t, productionHeader, rows[4])
	assert.Equal(t, []string{"26/01/2026", "Story", "Stories", "2", "45.00", "90.00", "bastidores"}, rows[5])
	assert.Equal(t, []string{"25/01/2026", "Feed", "Post cardápio", "3", "150.00", "450.00", ""}, rows[6])

	// summary lists only types with a positive total
	assert.Equal(t, []string{"Resumo"}, rows[7])
	assert.Equal(t, summaryHeader, rows[8])
	assert.Equal(t, []string{"Feed", "450.00"}, rows[9])
	assert.Equal(t, []string{"Story", "90.00"}, rows[10])
	assert.Equal(t, []string{GrandTotalLabel, "540.00"}, rows[11])
	assert.Len(t, rows, 12)
}

func TestWritePeriodCSV_DefaultLocale(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePeriodCSV(&buf, report()))

	out := buf.String()
	assert.Contains(t, out, "450,00")
	assert.Contains(t, out, GrandTotalLabel)
	assert.NotContains(t, out, "Reels", "zero-total types are left out")
}

func TestFileName(t *testing.T) {
	tests := []struct {
		client, label, want string
	}{
		{"Palma Café", "21/01/2026 a 20/02/2026", "Palma_Café_21-01-2026a20-02-2026.csv"},
		{"  Studio   Norte ", "21/12/2025 a 20/01/2026", "Studio_Norte_21-12-2025a20-01-2026.csv"},
		{"", "21/01/2026 a 20/02/2026", "Cliente_21-01-2026a20-02-2026.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.client, tt.label))
		})
	}
}
