// Package export renders period reports for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/palmapsd/production-ledger/billing"
)

// GrandTotalLabel heads the last row of the summary section.
const GrandTotalLabel = "TOTAL GERAL"

var (
	productionHeader = []string{"Data", "Tipo", "Produção", "Quantidade", "Valor Unitário", "Total", "Observações"}
	summaryHeader    = []string{"Tipo", "Total"}
)

// Writer formats amounts for one locale.
type Writer struct {
	printer *message.Printer
}

// NewWriter returns a writer for tag. Brazilian Portuguese is the default.
func NewWriter(tag language.Tag) *Writer {
	return &Writer{printer: message.NewPrinter(tag)}
}

var defaultWriter = NewWriter(language.BrazilianPortuguese)

// WritePeriodCSV writes report with the default pt-BR formatting.
func WritePeriodCSV(w io.Writer, report billing.PeriodReport) error {
	return defaultWriter.WritePeriodCSV(w, report)
}

// WritePeriodCSV writes two sections separated by a blank line:
// "Produções" (one row per production) and "Resumo" (types with a
// positive total, then the period total).
func (x *Writer) WritePeriodCSV(w io.Writer, report billing.PeriodReport) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"Cliente", report.ClientName},
		{"Período", report.Period.Label},
		{"Status", string(report.Period.Status)},
		{},
		{"Produções"},
		productionHeader,
	}
	for _, p := range report.Productions {
		rows = append(rows, []string{
			p.Date.Label(),
			string(p.Type),
			p.Name,
			strconv.Itoa(p.Quantity),
			x.Amount(p.UnitPrice),
			x.Amount(p.Total),
			p.Notes,
		})
	}

	rows = append(rows, []string{}, []string{"Resumo"}, summaryHeader)
	for _, s := range report.ByType {
		if !s.Total.IsPositive() {
			continue
		}
		rows = append(rows, []string{string(s.Type), x.Amount(s.Total)})
	}
	rows = append(rows, []string{GrandTotalLabel, x.Amount(report.Period.Total)})

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write period csv: %w", err)
	}
	return nil
}

// Amount renders d with two decimals using the writer's locale separators.
func (x *Writer) Amount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return x.printer.Sprintf("%.2f", f)
}

// FileName builds the download name: spaces in the client name become
// underscores, the label loses its spaces and slashes become dashes.
//
//	FileName("Palma Café", "21/01/2026 a 20/02/2026") == "Palma_Café_21-01-2026a20-02-2026.csv"
func FileName(clientName, periodLabel string) string {
	client := strings.Join(strings.Fields(clientName), "_")
	if client == "" {
		client = "Cliente"
	}
	label := strings.Join(strings.Fields(strings.ReplaceAll(periodLabel, "/", "-")), "")
	return client + "_" + label + ".csv"
}
