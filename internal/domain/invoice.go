package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Column names of a corporate-card invoice posting, in the order returned
// by the query service.
const (
	ColCodigo         = "CODIGO"
	ColHistorico      = "HISTORICO"
	ColValor          = "VALOR"
	ColData           = "DATA"
	ColCompetencia    = "COMPETENCIA"
	ColFilial         = "FILIAL"
	ColConta          = "CONTA"
	ColDescricaoConta = "DESCRICAO_CONTA"
	ColCtContab       = "CT_CONTAB"
)

// Columns is the fixed schema of every Dataset.
var Columns = []string{
	ColCodigo,
	ColHistorico,
	ColValor,
	ColData,
	ColCompetencia,
	ColFilial,
	ColConta,
	ColDescricaoConta,
	ColCtContab,
}

// FilterColumns are the columns offered as multiselect filters.
var FilterColumns = []string{ColConta, ColFilial, ColCompetencia}

// NullDate is a calendar date that may be absent.
type NullDate struct {
	Date  civil.Date
	Valid bool
}

// String returns the ISO date, or "" when the date is null.
func (d NullDate) String() string {
	if !d.Valid {
		return ""
	}
	return d.Date.String()
}

// Row is one accounts-payable posting of a corporate card invoice.
// Empty strings stand for null text values.
type Row struct {
	Codigo         string
	Historico      string
	Valor          decimal.NullDecimal
	Data           NullDate
	Competencia    string
	Filial         string
	Conta          string
	DescricaoConta string
	CtContab       string
}

// Value returns the canonical text of the named column and whether the
// column exists. Null values are returned as "".
func (r Row) Value(column string) (string, bool) {
	switch column {
	case ColCodigo:
		return r.Codigo, true
	case ColHistorico:
		return r.Historico, true
	case ColValor:
		if !r.Valor.Valid {
			return "", true
		}
		return r.Valor.Decimal.String(), true
	case ColData:
		return r.Data.String(), true
	case ColCompetencia:
		return r.Competencia, true
	case ColFilial:
		return r.Filial, true
	case ColConta:
		return r.Conta, true
	case ColDescricaoConta:
		return r.DescricaoConta, true
	case ColCtContab:
		return r.CtContab, true
	}
	return "", false
}

// Dataset is an ordered set of rows sharing the Columns schema.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// NewDataset builds a Dataset with the fixed schema.
func NewDataset(rows []Row) *Dataset {
	cols := make([]string, len(Columns))
	copy(cols, Columns)
	if rows == nil {
		rows = []Row{}
	}
	return &Dataset{Columns: cols, Rows: rows}
}

// Len returns the number of rows. A nil Dataset has zero rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// IsEmpty reports whether the dataset is nil or has no rows.
func (d *Dataset) IsEmpty() bool {
	return d.Len() == 0
}

// HasColumn reports whether name is part of the dataset schema.
func (d *Dataset) HasColumn(name string) bool {
	if d == nil {
		return false
	}
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with d.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	cols := make([]string, len(d.Columns))
	copy(cols, d.Columns)
	rows := make([]Row, len(d.Rows))
	copy(rows, d.Rows)
	return &Dataset{Columns: cols, Rows: rows}
}

// Total sums VALOR over all rows. Null amounts count as zero.
func (d *Dataset) Total() decimal.Decimal {
	total := decimal.Zero
	if d == nil {
		return total
	}
	for _, r := range d.Rows {
		if r.Valor.Valid {
			total = total.Add(r.Valor.Decimal)
		}
	}
	return total
}

// Selection maps a column name to the values allowed for it.
// An empty value list imposes no constraint.
type Selection map[string][]string

// Active returns the columns that carry at least one allowed value.
func (s Selection) Active() []string {
	var cols []string
	for col, values := range s {
		if len(values) > 0 {
			cols = append(cols, col)
		}
	}
	return cols
}

// Clone returns a deep copy of the selection.
func (s Selection) Clone() Selection {
	if s == nil {
		return nil
	}
	out := make(Selection, len(s))
	for col, values := range s {
		cp := make([]string, len(values))
		copy(cp, values)
		out[col] = cp
	}
	return out
}

// DateRange is the inclusive payment-date window of a fetch.
type DateRange struct {
	Start civil.Date `json:"start_date"`
	End   civil.Date `json:"end_date"`
}

// IsZero reports whether no range was set.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}
