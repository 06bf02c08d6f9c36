package sqlproxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var january = domain.DateRange{
	Start: civil.Date{Year: 2024, Month: 1, Day: 1},
	End:   civil.Date{Year: 2024, Month: 1, Day: 31},
}

func newTestClient(url string) *Client {
	return NewClient(url, 0, 0, zerolog.Nop())
}

const twoRows = `{"rows": [
	{"CODIGO": 5001, "HISTORICO": "PASSAGEM AEREA", "VALOR": 1234.56, "DATA": "Mon, 15 Jan 2024 00:00:00 GMT",
	 "COMPETENCIA": "01/2024", "FILIAL": "01", "CONTA": 4101, "DESCRICAO_CONTA": "VIAGENS", "CT_CONTAB": "3.1.01"},
	{"CODIGO": "5002", "HISTORICO": null, "VALOR": null, "DATA": "2024-01-20T00:00:00",
	 "COMPETENCIA": "01/2024", "FILIAL": "02", "CONTA": "4102", "DESCRICAO_CONTA": "HOSPEDAGEM", "CT_CONTAB": null, "EXTRA": 1}
]}`

func TestFetchInvoices_Success(t *testing.T) {
	var gotSQL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotSQL = req.SQL

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, twoRows)
	}))
	defer srv.Close()

	ds, err := newTestClient(srv.URL).FetchInvoices(context.Background(), january)
	require.NoError(t, err)

	assert.Contains(t, gotSQL, "m.CODIGODACONTA = 206")
	assert.Contains(t, gotSQL, "BETWEEN '2024-01-01' and '2024-01-31'")

	require.Equal(t, 2, ds.Len())
	assert.Equal(t, domain.Columns, ds.Columns)

	first := ds.Rows[0]
	assert.Equal(t, "5001", first.Codigo)
	assert.Equal(t, "4101", first.Conta)
	assert.True(t, first.Valor.Valid)
	assert.Equal(t, "1234.56", first.Valor.Decimal.String())
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 15}, first.Data.Date)

	second := ds.Rows[1]
	assert.Equal(t, "5002", second.Codigo)
	assert.Empty(t, second.Historico)
	assert.False(t, second.Valor.Valid)
	assert.Equal(t, "2024-01-20", second.Data.String())
	assert.Empty(t, second.CtContab)
}

func TestFetchInvoices_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"rows": []}`)
	}))
	defer srv.Close()

	ds, err := newTestClient(srv.URL).FetchInvoices(context.Background(), january)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
	assert.Equal(t, domain.Columns, ds.Columns)
}

func TestFetchInvoices_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		errText string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "database offline", http.StatusInternalServerError)
			},
			errText: "status 500",
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"rows": [`)
			},
			errText: "decoding response",
		},
		{
			name: "missing rows field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"error": "syntax"}`)
			},
			errText: "no rows field",
		},
		{
			name: "rows not a list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"rows": {"CODIGO": 1}}`)
			},
			errText: "decoding rows",
		},
		{
			name: "missing column",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"rows": [{"CODIGO": 1}]}`)
			},
			errText: "missing column",
		},
		{
			name: "bad amount",
			handler: func(w http.ResponseWriter, r *http.Request) {
				row := strings.Replace(twoRows, `"VALOR": 1234.56`, `"VALOR": "abc"`, 1)
				_, _ = io.WriteString(w, row)
			},
			errText: "invalid amount",
		},
		{
			name: "nested value",
			handler: func(w http.ResponseWriter, r *http.Request) {
				row := strings.Replace(twoRows, `"FILIAL": "01"`, `"FILIAL": {"id": 1}`, 1)
				_, _ = io.WriteString(w, row)
			},
			errText: "FILIAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			ds, err := newTestClient(srv.URL).FetchInvoices(context.Background(), january)
			require.Error(t, err)
			assert.Nil(t, ds)
			assert.True(t, errors.Is(err, domain.ErrDataUnavailable), "got %v", err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestFetchInvoices_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).FetchInvoices(context.Background(), january)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
}

func TestQuery_ReturnsRawRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"rows": [{"ok": 1}]}`)
	}))
	defer srv.Close()

	rows, err := newTestClient(srv.URL).Query(context.Background(), "select 1 as ok")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("1"), rows[0]["ok"])
}

func TestBuildInvoiceQuery(t *testing.T) {
	q := BuildInvoiceQuery(310, january)
	assert.Contains(t, q, "m.CODIGODACONTA = 310")
	assert.Contains(t, q, "'2024-01-01' and '2024-01-31'")
	for _, col := range domain.Columns {
		assert.Contains(t, q, col)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      any
		want    string
		wantErr bool
	}{
		{nil, "", false},
		{"", "", false},
		{"2024-02-29", "2024-02-29", false},
		{"2024-02-29 13:45:00", "2024-02-29", false},
		{"2024-02-29T13:45:00.000", "2024-02-29", false},
		{"Thu, 29 Feb 2024 00:00:00 GMT", "2024-02-29", false},
		{"29/02/2024", "", true},
		{json.Number("45351"), "", true},
	}

	for _, tt := range tests {
		got, err := parseDate(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %v", tt.in)
			continue
		}
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got.String())
	}
}
