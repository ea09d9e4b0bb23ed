package invoice

import (
	"strings"

	"telbill/internal/text"
)

const telephoneContractDoc = `OI
TELEFONE/CONTRATO: 31 3234-5678 PLANO LOCAL
CONTA
DATA DE EMISSAO
10/05/2024
FATURA N 000123
VALOR A PAGAR
R$ 1.234,56
VENCIMENTO: 25/05/2024
CODIGO DDD
31
PERIODO 01/04/2024 a 30/04/2024
84670000001-7 43590024020-9 02405000243-2 84221010811-9
OI EMPRESAS`

const groupContractDoc = `Contrato Agrupador: 9988776655
Data de emissão: 03/06/2024
Mês de referência: Maio 2024
Fatura: 000000456
Valor a pagar
R$ 89,90
Data de Vencimento
20/06/2024
PLANO LOCAL
EMPRESAS`

const businessDoc = `CHEGOU SUA FATURA DA OI
Emissão em 05/07/2024
FATURA DE
OI EMPRESAS
jun/2024
NÚMERO DO CLIENTE: 1122334455
NÚMERO DA FATURA: 0789
TOTAL A PAGAR (R$)
2.500,00
VENCIMENTO
DATA
15/07/2024`

func docFromText(path, raw string) *text.Document {
	var pages [][]string
	for _, p := range strings.Split(raw, "\f") {
		pages = append(pages, text.NormalizePage(p))
	}
	return &text.Document{Path: path, Source: text.SourceText, Pages: pages}
}
