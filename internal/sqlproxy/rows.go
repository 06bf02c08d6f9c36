package sqlproxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// dateLayouts are the encodings the query service has been seen to use for
// SQL Server date and datetime columns.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05.000",
	time.RFC3339,
	time.RFC3339Nano,
	http.TimeFormat,
	time.RFC1123,
}

// toDataset converts raw JSON objects into typed rows. Every object must carry
// every column of the schema; extra keys are ignored.
func toDataset(raw []map[string]any) (*domain.Dataset, error) {
	rows := make([]domain.Row, 0, len(raw))
	for i, obj := range raw {
		row, err := toRow(obj)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return domain.NewDataset(rows), nil
}

func toRow(obj map[string]any) (domain.Row, error) {
	for _, col := range domain.Columns {
		if _, ok := obj[col]; !ok {
			return domain.Row{}, fmt.Errorf("missing column %s", col)
		}
	}

	var (
		row  domain.Row
		errs []string
	)
	text := func(col string, dst *string) {
		s, err := scalarText(obj[col])
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", col, err))
			return
		}
		*dst = s
	}

	text(domain.ColCodigo, &row.Codigo)
	text(domain.ColHistorico, &row.Historico)
	text(domain.ColCompetencia, &row.Competencia)
	text(domain.ColFilial, &row.Filial)
	text(domain.ColConta, &row.Conta)
	text(domain.ColDescricaoConta, &row.DescricaoConta)
	text(domain.ColCtContab, &row.CtContab)

	valor, err := parseAmount(obj[domain.ColValor])
	if err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", domain.ColValor, err))
	}
	row.Valor = valor

	data, err := parseDate(obj[domain.ColData])
	if err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", domain.ColData, err))
	}
	row.Data = data

	if len(errs) > 0 {
		return domain.Row{}, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return row, nil
}

func scalarText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func parseAmount(v any) (decimal.NullDecimal, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
	default:
		return decimal.NullDecimal{}, fmt.Errorf("unsupported value type %T", v)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func parseDate(v any) (domain.NullDate, error) {
	switch t := v.(type) {
	case nil:
		return domain.NullDate{}, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return domain.NullDate{}, nil
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return domain.NullDate{Date: civil.DateOf(ts), Valid: true}, nil
			}
		}
		return domain.NullDate{}, fmt.Errorf("unrecognized date %q", s)
	default:
		return domain.NullDate{}, fmt.Errorf("unsupported value type %T", v)
	}
}
