package invoice

import (
	"regexp"
	"strings"

	"telbill/internal/parsing"
)

// Field names a value produced by the rule tables.
type Field string

const (
	FieldAccount        Field = "account"
	FieldInvoiceNumber  Field = "invoice_number"
	FieldAmount         Field = "amount"
	FieldIssueDate      Field = "issue_date"
	FieldDueDate        Field = "due_date"
	FieldReferenceMonth Field = "reference_month"
	FieldAreaCode       Field = "area_code"
)

// Action reads a value from the lines around a trigger line. It returns "" when nothing
// usable is found.
type Action func(lines []string, i int, trigger string) string

// Rule binds a trigger to an action. Rules of a table run in declaration order and the first
// one that yields a value for a field wins.
type Rule struct {
	Field   Field
	Trigger string
	Exact   bool // line must equal Trigger instead of containing it
	Action  Action
}

func (r Rule) matches(line string) bool {
	if r.Exact {
		return line == r.Trigger
	}
	return strings.Contains(line, r.Trigger)
}

// NextLine takes the line n positions below the trigger.
func NextLine(n int) Action {
	return func(lines []string, i int, _ string) string {
		if i+n < len(lines) {
			return strings.TrimSpace(lines[i+n])
		}
		return ""
	}
}

// Suffix takes the text after the trigger label on the same line.
func Suffix() Action {
	return func(lines []string, i int, trigger string) string {
		line := lines[i]
		idx := strings.Index(line, trigger)
		if idx < 0 {
			return ""
		}
		value := strings.TrimSpace(line[idx+len(trigger):])
		return strings.TrimSpace(strings.TrimPrefix(value, ":"))
	}
}

// LastToken takes the last whitespace-separated token of the trigger line.
func LastToken() Action {
	return func(lines []string, i int, _ string) string {
		fields := strings.Fields(lines[i])
		if len(fields) == 0 {
			return ""
		}
		return fields[len(fields)-1]
	}
}

// RegexSpan searches re across the trigger line and the line after it.
func RegexSpan(re *regexp.Regexp) Action {
	return func(lines []string, i int, _ string) string {
		return re.FindString(span(lines, i, "\n"))
	}
}

// Identifier isolates an account identifier. A lone label means the value is on the next line,
// label plus one token means the token is the value, and anything longer is searched with
// parsing.IdentifierProbes across the trigger line and the next.
func Identifier() Action {
	return func(lines []string, i int, _ string) string {
		fields := strings.Fields(lines[i])
		switch len(fields) {
		case 0:
			return ""
		case 1:
			return NextLine(1)(lines, i, "")
		case 2:
			return fields[1]
		}
		id, _ := parsing.ProbeIdentifier(span(lines, i, " "))
		return id
	}
}

func span(lines []string, i int, sep string) string {
	if i+1 < len(lines) {
		return lines[i] + sep + lines[i+1]
	}
	return lines[i]
}

// Rules returns the rule table for a layout.
func Rules(l Layout) []Rule {
	switch l {
	case LayoutTelephoneContract:
		return telephoneContractRules
	case LayoutGroupContract:
		return groupContractRules
	case LayoutBusiness:
		return businessRules
	default:
		return nil
	}
}

var telephoneContractRules = []Rule{
	{Field: FieldIssueDate, Trigger: "DATA DE EMISSAO", Action: NextLine(1)},
	{Field: FieldAccount, Trigger: "TELEFONE/CONTRATO:", Action: Identifier()},
	{Field: FieldInvoiceNumber, Trigger: "FATURA N", Action: LastToken()},
	{Field: FieldAmount, Trigger: "VALOR A PAGAR", Action: RegexSpan(parsing.MoneyPattern)},
	{Field: FieldDueDate, Trigger: "VENCIMENTO:", Action: LastToken()},
	{Field: FieldAreaCode, Trigger: "CODIGO DDD", Action: NextLine(1)},
}

var groupContractRules = []Rule{
	{Field: FieldIssueDate, Trigger: "Data de emissão:", Action: Suffix()},
	{Field: FieldReferenceMonth, Trigger: "Mês de referência:", Action: Suffix()},
	{Field: FieldReferenceMonth, Trigger: "Referência", Exact: true, Action: NextLine(1)},
	{Field: FieldAccount, Trigger: "Contrato Agrupador:", Action: Suffix()},
	{Field: FieldInvoiceNumber, Trigger: "Fatura: ", Action: LastToken()},
	{Field: FieldAmount, Trigger: "Valor a pagar", Action: NextLine(1)},
	{Field: FieldDueDate, Trigger: "Data de Vencimento", Action: NextLine(1)},
}

var businessRules = []Rule{
	{Field: FieldIssueDate, Trigger: "Emissão em ", Action: Suffix()},
	{Field: FieldReferenceMonth, Trigger: "FATURA DE", Action: NextLine(2)},
	{Field: FieldAccount, Trigger: "NÚMERO DO CLIENTE:", Action: Suffix()},
	{Field: FieldInvoiceNumber, Trigger: "NÚMERO DA FATURA:", Action: Suffix()},
	{Field: FieldAmount, Trigger: "PAGAR (R$)", Action: NextLine(1)},
	{Field: FieldDueDate, Trigger: "VENCIMENTO", Action: NextLine(2)},
}

// ApplyRules runs a rule table over the lines and returns the raw value found for each field.
func ApplyRules(rules []Rule, lines []string) map[Field]string {
	values := make(map[Field]string)

	for _, rule := range rules {
		if _, done := values[rule.Field]; done {
			continue
		}
		for i, line := range lines {
			if !rule.matches(line) {
				continue
			}
			if v := strings.TrimSpace(rule.Action(lines, i, rule.Trigger)); v != "" {
				values[rule.Field] = v
				break
			}
		}
	}

	return values
}
