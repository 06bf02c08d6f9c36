package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Parse reads a workbook written by Serializer back into a Dataset.
// The header row may list the columns in any order; every schema column
// must be present.
func Parse(data []byte, sheet string) (*domain.Dataset, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("Parse: opening workbook: %w", err)
	}
	defer f.Close()

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("Parse: reading sheet %s: %w", sheet, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("Parse: sheet %s has no header row", sheet)
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[name] = i
	}
	for _, col := range domain.Columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("Parse: header is missing column %s", col)
		}
	}

	rows := make([]domain.Row, 0, len(records)-1)
	for n, rec := range records[1:] {
		cell := func(col string) string {
			i := index[col]
			if i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		row := domain.Row{
			Codigo:         cell(domain.ColCodigo),
			Historico:      cell(domain.ColHistorico),
			Competencia:    cell(domain.ColCompetencia),
			Filial:         cell(domain.ColFilial),
			Conta:          cell(domain.ColConta),
			DescricaoConta: cell(domain.ColDescricaoConta),
			CtContab:       cell(domain.ColCtContab),
		}

		if v := strings.TrimSpace(cell(domain.ColValor)); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("Parse: row %d VALOR %q: %w", n+2, v, err)
			}
			row.Valor = decimal.NewNullDecimal(d)
		}

		if v := strings.TrimSpace(cell(domain.ColData)); v != "" {
			d, err := parseCellDate(v)
			if err != nil {
				return nil, fmt.Errorf("Parse: row %d DATA: %w", n+2, err)
			}
			row.Data = domain.NullDate{Date: d, Valid: true}
		}

		rows = append(rows, row)
	}

	ds := domain.NewDataset(rows)
	ds.Columns = append([]string(nil), records[0]...)
	return ds, nil
}

// parseCellDate accepts an Excel serial day number or an ISO date.
func parseCellDate(v string) (civil.Date, error) {
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return civil.Date{}, err
		}
		return civil.DateOf(t), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return civil.Date{}, fmt.Errorf("unrecognized date %q", v)
	}
	return civil.DateOf(t), nil
}
