package bigquery

import (
	"math/big"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/payables-dashboard/internal/domain"
)

func TestInvoiceRow_ToDomain(t *testing.T) {
	ir := InvoiceRow{
		Codigo:      bigquery.NullString{StringVal: "7001", Valid: true},
		Historico:   bigquery.NullString{StringVal: "COMBUSTIVEL", Valid: true},
		Valor:       big.NewRat(24691, 20),
		Data:        bigquery.NullDate{Date: civil.Date{Year: 2024, Month: 4, Day: 2}, Valid: true},
		Competencia: bigquery.NullString{StringVal: "04/2024", Valid: true},
		Filial:      bigquery.NullString{StringVal: "03", Valid: true},
		Conta:       bigquery.NullString{StringVal: "4105", Valid: true},
	}

	row, err := ir.toDomain()
	if err != nil {
		t.Fatalf("toDomain() error = %v", err)
	}

	if row.Codigo != "7001" || row.Filial != "03" || row.Conta != "4105" {
		t.Errorf("unexpected text fields: %+v", row)
	}
	if !row.Valor.Valid || row.Valor.Decimal.String() != "1234.55" {
		t.Errorf("Valor = %v, want 1234.55", row.Valor)
	}
	if row.Data.String() != "2024-04-02" {
		t.Errorf("Data = %s, want 2024-04-02", row.Data)
	}
	if row.DescricaoConta != "" || row.CtContab != "" {
		t.Errorf("null strings should map to empty, got %q %q", row.DescricaoConta, row.CtContab)
	}
}

func TestInvoiceRow_ToDomainNulls(t *testing.T) {
	row, err := InvoiceRow{}.toDomain()
	if err != nil {
		t.Fatalf("toDomain() error = %v", err)
	}
	if row.Valor.Valid {
		t.Error("expected null VALOR")
	}
	if row.Data.Valid {
		t.Error("expected null DATA")
	}
}

func TestInvoiceQuery(t *testing.T) {
	q := invoiceQuery("payables")

	for _, want := range []string{"payables.CAD_MVTO", "payables.BX_PEPAG", "payables.CAD_PLAN", "@account_code", "@start_date", "@end_date"} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q", want)
		}
	}
	for _, col := range domain.Columns {
		if !strings.Contains(q, "AS "+col) && !strings.Contains(q, "m."+col) {
			t.Errorf("query does not project %s", col)
		}
	}
}

func TestDatasetIDPattern(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"payables", true},
		{"payables_2024", true},
		{"payables; DROP", false},
		{"", false},
		{"a.b", false},
	}

	for _, tt := range tests {
		if got := datasetIDPattern.MatchString(tt.id); got != tt.want {
			t.Errorf("datasetIDPattern.MatchString(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
