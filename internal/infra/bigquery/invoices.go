// Package bigquery reads invoice postings from the BigQuery mirror of the
// payables tables. Unlike the SQL proxy, BigQuery takes named parameters, so
// the date window and account never become part of the statement text.
package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"regexp"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// NUMERIC columns carry up to nine fractional digits.
const numericScale = 9

var datasetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// InvoiceRow is a posting as returned by the mirror query.
type InvoiceRow struct {
	Codigo         bigquery.NullString `bigquery:"CODIGO"`
	Historico      bigquery.NullString `bigquery:"HISTORICO"`
	Valor          *big.Rat            `bigquery:"VALOR"`
	Data           bigquery.NullDate   `bigquery:"DATA"`
	Competencia    bigquery.NullString `bigquery:"COMPETENCIA"`
	Filial         bigquery.NullString `bigquery:"FILIAL"`
	Conta          bigquery.NullString `bigquery:"CONTA"`
	DescricaoConta bigquery.NullString `bigquery:"DESCRICAO_CONTA"`
	CtContab       bigquery.NullString `bigquery:"CT_CONTAB"`
}

// InvoiceRepository fetches postings with a shared BigQuery client.
type InvoiceRepository struct {
	client      *bigquery.Client
	datasetID   string
	accountCode int
}

// NewInvoiceRepository creates a repository bound to projectID.datasetID.
func NewInvoiceRepository(ctx context.Context, projectID, datasetID string, accountCode int) (*InvoiceRepository, error) {
	if !datasetIDPattern.MatchString(datasetID) {
		return nil, fmt.Errorf("NewInvoiceRepository: invalid dataset id %q", datasetID)
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewInvoiceRepository: creating client: %w", err)
	}
	return &InvoiceRepository{
		client:      client,
		datasetID:   datasetID,
		accountCode: accountCode,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *InvoiceRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// FetchInvoices queries the postings paid inside dr.
func (r *InvoiceRepository) FetchInvoices(ctx context.Context, dr domain.DateRange) (*domain.Dataset, error) {
	q := r.client.Query(invoiceQuery(r.datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_code", Value: int64(r.accountCode)},
		{Name: "start_date", Value: dr.Start},
		{Name: "end_date", Value: dr.End},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchInvoices: query read: %w: %w", domain.ErrDataUnavailable, err)
	}

	var rows []domain.Row
	for {
		var ir InvoiceRow
		err := it.Next(&ir)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FetchInvoices: iter next: %w: %w", domain.ErrDataUnavailable, err)
		}
		row, err := ir.toDomain()
		if err != nil {
			return nil, fmt.Errorf("FetchInvoices: row %d: %w: %w", len(rows), domain.ErrDataUnavailable, err)
		}
		rows = append(rows, row)
	}

	return domain.NewDataset(rows), nil
}

func invoiceQuery(datasetID string) string {
	return fmt.Sprintf(`
		SELECT
			CAST(m.CODIGO AS STRING) AS CODIGO,
			m.HISTORICO,
			SUM(b.VALOR) AS VALOR,
			b.DATADEPAGAMENTO AS DATA,
			CAST(b.COMPETENCIA AS STRING) AS COMPETENCIA,
			CAST(m.PAR_EMPRESA AS STRING) AS FILIAL,
			CAST(m.CONTADOPLANO AS STRING) AS CONTA,
			c.NOMEDACONTA AS DESCRICAO_CONTA,
			CAST(c.CODCONT AS STRING) AS CT_CONTAB
		FROM %[1]s.CAD_MVTO m
		INNER JOIN %[1]s.BX_PEPAG b
		  ON m.CODIGO = b.COD_BANCARIO
		INNER JOIN %[1]s.CAD_PLAN c
		  ON m.CONTADOPLANO = c.CODIGO
		WHERE m.CODIGODACONTA = @account_code
		  AND b.DATADEPAGAMENTO BETWEEN @start_date AND @end_date
		GROUP BY m.CODIGO, m.HISTORICO, b.DATADEPAGAMENTO, m.VALOR, b.COMPETENCIA,
		         m.CONTADOPLANO, c.NOMEDACONTA, c.CODCONT, m.PAR_EMPRESA
	`, datasetID)
}

func (ir InvoiceRow) toDomain() (domain.Row, error) {
	row := domain.Row{
		Codigo:         ir.Codigo.StringVal,
		Historico:      ir.Historico.StringVal,
		Competencia:    ir.Competencia.StringVal,
		Filial:         ir.Filial.StringVal,
		Conta:          ir.Conta.StringVal,
		DescricaoConta: ir.DescricaoConta.StringVal,
		CtContab:       ir.CtContab.StringVal,
	}
	if ir.Data.Valid {
		row.Data = domain.NullDate{Date: ir.Data.Date, Valid: true}
	}
	if ir.Valor != nil {
		d, err := decimal.NewFromString(ir.Valor.FloatString(numericScale))
		if err != nil {
			return domain.Row{}, fmt.Errorf("VALOR: %w", err)
		}
		row.Valor = decimal.NewNullDecimal(d)
	}
	return row, nil
}
