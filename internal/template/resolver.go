// Package template resolves journal template lines into concrete accounts
// and amounts ahead of posting.
package template

import (
	"github.com/shopspring/decimal"

	"accounting-ledger-service/pkg/logger"

	"accounting-ledger-service/internal/formula"
	"accounting-ledger-service/internal/models"
)

// ResolvedLine is one template line bound to an effective account with its
// computed amount.
type ResolvedLine struct {
	Line      models.TemplateLine
	AccountID string
	Amount    decimal.Decimal
}

// Resolver binds template lines to accounts and evaluates their formulas.
type Resolver struct {
	logger logger.Logger
}

// NewResolver creates a Resolver logging through the given logger.
func NewResolver(log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Resolver{logger: log.WithComponent("template-resolver")}
}

// Resolve walks the template's lines in order and returns the resolved set.
// The effective account is the caller's override for that line when present,
// else the line's static account. A hinted line with no override has no
// account to post against: it is logged as a warning and skipped, which
// shows up downstream as an unbalanced journal unless the remaining lines
// happen to balance.
func (r *Resolver) Resolve(tmpl *models.JournalTemplate, overrides map[string]string, fctx formula.Context) ([]ResolvedLine, error) {
	resolved := make([]ResolvedLine, 0, len(tmpl.Lines))
	for _, line := range tmpl.Lines {
		accountID, ok := r.effectiveAccount(&line, overrides)
		if !ok {
			r.logger.WithFields(logger.Fields{
				"template_id": tmpl.ID,
				"line_order":  line.LineOrder,
				"hint":        line.Hint(),
			}).Warn("Template line hint has no account mapping, skipping line")
			continue
		}

		amount, err := formula.Evaluate(line.Formula, fctx)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, ResolvedLine{
			Line:      line,
			AccountID: accountID,
			Amount:    amount,
		})
	}
	return resolved, nil
}

// PreviewLine mirrors ResolvedLine for display: hinted lines that nothing
// maps keep their hint as a placeholder instead of being dropped.
type PreviewLine struct {
	LineOrder   int
	Position    models.JournalPosition
	AccountID   string
	AccountHint string
	Resolved    bool
	Amount      decimal.Decimal
	Description string
}

// Preview computes the would-be journal lines without requiring every hint
// to resolve. Used to show the effect of a template before any transaction
// exists.
func (r *Resolver) Preview(tmpl *models.JournalTemplate, overrides map[string]string, fctx formula.Context) ([]PreviewLine, error) {
	preview := make([]PreviewLine, 0, len(tmpl.Lines))
	for _, line := range tmpl.Lines {
		amount, err := formula.Evaluate(line.Formula, fctx)
		if err != nil {
			return nil, err
		}

		p := PreviewLine{
			LineOrder:   line.LineOrder,
			Position:    line.Position,
			Amount:      amount,
			Description: line.Description,
		}
		if accountID, ok := r.effectiveAccount(&line, overrides); ok {
			p.AccountID = accountID
			p.Resolved = true
		} else {
			p.AccountHint = line.Hint()
		}
		preview = append(preview, p)
	}
	return preview, nil
}

func (r *Resolver) effectiveAccount(line *models.TemplateLine, overrides map[string]string) (string, bool) {
	if accountID, ok := overrides[line.ID]; ok && accountID != "" {
		return accountID, true
	}
	if line.HasStaticAccount() {
		return *line.AccountID, true
	}
	return "", false
}
