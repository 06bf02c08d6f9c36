package sqlproxy

import (
	"fmt"

	"github.com/dvloznov/payables-dashboard/internal/domain"
)

// DefaultAccountCode is the CAD_MVTO account that books corporate-card invoices.
const DefaultAccountCode = 206

// BuildInvoiceQuery renders the posting query for the given payment-date window.
//
// The query service accepts raw SQL text only, so values are interpolated.
// Both inputs are typed (an int and civil dates rendered as YYYY-MM-DD), so no
// caller-supplied text ever reaches the statement.
func BuildInvoiceQuery(accountCode int, r domain.DateRange) string {
	return fmt.Sprintf(`
		select
			m.CODIGO,
			m.HISTORICO,
			SUM(b.VALOR) AS VALOR,
			b.DATADEPAGAMENTO AS DATA,
			b.COMPETENCIA,
			m.PAR_EMPRESA AS FILIAL,
			m.CONTADOPLANO AS CONTA,
			c.NOMEDACONTA AS DESCRICAO_CONTA,
			c.CODCONT AS CT_CONTAB
		from CAD_MVTO as m
		join BX_PEPAG as b on m.CODIGO = b.COD_BANCARIO
		join PUBLICO_ELETRO.dbo.CAD_PLAN as c on m.CONTADOPLANO = c.CODIGO
		where m.CODIGODACONTA = %d and b.DATADEPAGAMENTO BETWEEN '%s' and '%s'
		group by m.CODIGO, m.HISTORICO, b.DATADEPAGAMENTO, m.VALOR, b.COMPETENCIA, m.CONTADOPLANO, c.NOMEDACONTA, c.CODCONT, m.PAR_EMPRESA
	`, accountCode, r.Start.String(), r.End.String())
}
