// Package renderer formats portfolio reports and write outcomes as markdown.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"text/template"

	"github.com/etnz/folio"
	"github.com/etnz/folio/analytics"
	"github.com/etnz/folio/mutation"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.md
var content embed.FS

var templates, _ = fs.Sub(content, "templates")

// Summary renders the portfolio totals and top holdings.
func Summary(s analytics.Summary) string {
	return renderTemplate("summary", "summary.md", map[string]string{"summary_holdings": "summary_holdings.md"}, s)
}

// Positions renders position rows as a table.
func Positions(rows []analytics.PositionRow) string {
	return renderTemplate("positions", "positions.md", nil, rows)
}

// TaxLots renders a tax-lot analysis, one table per suggested action.
func TaxLots(a analytics.TaxLotAnalysis) string {
	return renderTemplate("taxlots", "taxlots.md", map[string]string{"taxlots_lots": "taxlots_lots.md"}, a)
}

// Grants renders RSU grants with their vesting progress.
func Grants(rows []analytics.GrantRow) string {
	return renderTemplate("grants", "grants.md", nil, rows)
}

// Outcome renders the result of an applied write.
func Outcome(o mutation.Outcome) string {
	return renderTemplate("outcome", "outcome.md", nil, o)
}

var funcs = template.FuncMap{
	"money":  func(v any) string { return amount(v).String() },
	"signed": func(v any) string { return amount(v).SignedString() },
	"pct":    func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) + "%" },
	"qty":    quantity,
	"join":   strings.Join,
}

// amount converts the numbers found in reports to Money.
func amount(v any) folio.Money {
	switch v := v.(type) {
	case float64:
		return folio.USD(v)
	case decimal.Decimal:
		return folio.USD(v)
	case int:
		return folio.USD(v)
	}
	panic(fmt.Sprintf("not an amount: %T", v))
}

func quantity(v any) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case decimal.Decimal:
		return v.String()
	}
	return fmt.Sprint(v)
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
