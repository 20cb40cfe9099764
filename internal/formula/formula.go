// Package formula evaluates template line amount expressions. A formula sees
// the transaction amount and the caller-supplied variables and yields the
// line amount, rounded to two decimal places.
package formula

import (
	"regexp"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/shopspring/decimal"

	lederrors "accounting-ledger-service/pkg/errors"
)

// Context carries the inputs visible to a formula.
type Context struct {
	Amount    decimal.Decimal
	Variables map[string]decimal.Decimal
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var language = gval.Full()

// Evaluate computes a line amount. A blank formula or the literal "amount"
// passes the transaction amount through; a bare identifier looks up a
// variable; anything else is parsed as an arithmetic expression over
// "amount" and the variables.
func Evaluate(expr string, fctx Context) (decimal.Decimal, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "amount" {
		return round(fctx.Amount), nil
	}

	if identifierPattern.MatchString(expr) {
		value, ok := fctx.Variables[expr]
		if !ok {
			return decimal.Zero, lederrors.ValidationErrorf(lederrors.CodeInvalidFormula,
				"formula references unknown variable %q", expr)
		}
		return round(value), nil
	}

	params := make(map[string]interface{}, len(fctx.Variables)+1)
	for name, value := range fctx.Variables {
		params[name], _ = value.Float64()
	}
	params["amount"], _ = fctx.Amount.Float64()

	result, err := language.Evaluate(expr, params)
	if err != nil {
		return decimal.Zero, lederrors.ValidationErrorf(lederrors.CodeInvalidFormula,
			"cannot evaluate formula %q: %v", expr, err)
	}

	value, ok := result.(float64)
	if !ok {
		return decimal.Zero, lederrors.ValidationErrorf(lederrors.CodeInvalidFormula,
			"formula %q did not produce a number (got %T)", expr, result)
	}
	return round(decimal.NewFromFloat(value)), nil
}

// Validate parses a formula without evaluating it. Bare identifiers are
// accepted even when no variable of that name exists yet; the missing
// variable surfaces at posting time.
func Validate(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "amount" || identifierPattern.MatchString(expr) {
		return nil
	}
	if _, err := language.NewEvaluable(expr); err != nil {
		return lederrors.ValidationErrorf(lederrors.CodeInvalidFormula,
			"cannot parse formula %q: %v", expr, err)
	}
	return nil
}

// round applies the two-decimal rounding every journal amount gets.
// decimal.Round rounds half away from zero, which matches how the amounts
// are presented.
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
