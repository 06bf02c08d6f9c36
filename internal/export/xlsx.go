// Package export encodes datasets as single-sheet Excel workbooks.
package export

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	// DefaultFilename is the download name offered to the user.
	DefaultFilename = "FaturaCartao.xlsx"

	// DefaultSheet is the name of the only worksheet.
	DefaultSheet = "Fatura"

	// ContentType is the MIME type of .xlsx documents.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultSheetName = "Sheet1"
	dateNumFmt       = "dd/mm/yyyy"
	amountNumFmt     = "#,##0.00"
)

// Serializer writes datasets as .xlsx bytes.
type Serializer struct {
	sheet string
}

// NewSerializer creates a serializer writing to the named sheet.
func NewSerializer(sheet string) *Serializer {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Serializer{sheet: sheet}
}

// Sheet returns the worksheet name used by the serializer.
func (s *Serializer) Sheet() string {
	return s.sheet
}

// Serialize encodes ds with a header row of column names and one row per
// record; there is no index column. Any value the format cannot hold fails
// the whole call with domain.ErrSerializationFailure and no bytes.
func (s *Serializer) Serialize(ds *domain.Dataset) ([]byte, error) {
	if ds == nil {
		ds = domain.NewDataset(nil)
	}

	f := excelize.NewFile()
	defer f.Close()

	if s.sheet != defaultSheetName {
		if err := f.SetSheetName(defaultSheetName, s.sheet); err != nil {
			return nil, failure("naming sheet", err)
		}
	}

	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	header := make([]interface{}, len(ds.Columns))
	for i, c := range ds.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(s.sheet, "A1", &header); err != nil {
		return nil, failure("writing header", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(ds.Columns), 1)
	if err := f.SetCellStyle(s.sheet, "A1", last, styles.header); err != nil {
		return nil, failure("styling header", err)
	}

	for i, row := range ds.Rows {
		for j, col := range ds.Columns {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, failure("addressing cell", err)
			}
			if err := s.writeCell(f, cell, col, row, styles); err != nil {
				return nil, fmt.Errorf("Serialize: row %d column %s: %w", i, col, err)
			}
		}
	}

	for j, col := range ds.Columns {
		name, _ := excelize.ColumnNumberToName(j + 1)
		if err := f.SetColWidth(s.sheet, name, name, columnWidth(col)); err != nil {
			return nil, failure("sizing columns", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, failure("writing workbook", err)
	}
	return buf.Bytes(), nil
}

type styleSet struct {
	header int
	date   int
	amount int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var (
		st  styleSet
		err error
	)
	st.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#003366"}, Pattern: 1},
		Font:      &excelize.Font{Color: "FFFFFF", Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return st, failure("creating header style", err)
	}
	dateFmt := dateNumFmt
	st.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return st, failure("creating date style", err)
	}
	amountFmt := amountNumFmt
	st.amount, err = f.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt})
	if err != nil {
		return st, failure("creating amount style", err)
	}
	return st, nil
}

func (s *Serializer) writeCell(f *excelize.File, cell, col string, row domain.Row, styles styleSet) error {
	switch col {
	case domain.ColValor:
		if !row.Valor.Valid {
			return nil
		}
		v, err := amountToFloat(row.Valor.Decimal)
		if err != nil {
			return err
		}
		if err := f.SetCellFloat(s.sheet, cell, v, -1, 64); err != nil {
			return failure("writing amount", err)
		}
		return styleErr(f.SetCellStyle(s.sheet, cell, cell, styles.amount))

	case domain.ColData:
		if !row.Data.Valid {
			return nil
		}
		t := row.Data.Date.In(time.UTC)
		if err := f.SetCellValue(s.sheet, cell, t); err != nil {
			return failure("writing date", err)
		}
		return styleErr(f.SetCellStyle(s.sheet, cell, cell, styles.date))
	}

	v, ok := row.Value(col)
	if !ok {
		return failure("unknown column", fmt.Errorf("%q", col))
	}
	if v == "" {
		return nil
	}
	if err := checkText(v); err != nil {
		return err
	}
	if err := f.SetCellStr(s.sheet, cell, v); err != nil {
		return failure("writing text", err)
	}
	return nil
}

// amountToFloat converts d to the float64 a cell stores, refusing values
// that would not survive the conversion.
func amountToFloat(d decimal.Decimal) (float64, error) {
	v, exact := d.Float64()
	if !exact && !decimal.NewFromFloat(v).Equal(d) {
		return 0, failure("amount", fmt.Errorf("%s does not fit a spreadsheet number", d))
	}
	return v, nil
}

func checkText(v string) error {
	if !utf8.ValidString(v) {
		return failure("text", fmt.Errorf("invalid UTF-8"))
	}
	if utf8.RuneCountInString(v) > excelize.TotalCellChars {
		return failure("text", fmt.Errorf("%d characters exceeds cell limit %d", utf8.RuneCountInString(v), excelize.TotalCellChars))
	}
	for _, r := range v {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return failure("text", fmt.Errorf("control character %U", r))
		}
	}
	return nil
}

func columnWidth(col string) float64 {
	switch col {
	case domain.ColHistorico, domain.ColDescricaoConta:
		return 40
	case domain.ColValor, domain.ColData, domain.ColCompetencia:
		return 14
	}
	return 12
}

func styleErr(err error) error {
	if err != nil {
		return failure("styling cell", err)
	}
	return nil
}

func failure(step string, err error) error {
	return fmt.Errorf("%s: %w: %w", step, domain.ErrSerializationFailure, err)
}
