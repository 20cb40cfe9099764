package models

import (
	"fmt"
	"strings"
	"time"
)

// JournalPosition marks a template line as the debit or credit side
type JournalPosition string

const (
	PositionDebit  JournalPosition = "DEBIT"
	PositionCredit JournalPosition = "CREDIT"
)

// IsValid checks if the journal position is valid
func (p JournalPosition) IsValid() bool {
	return p == PositionDebit || p == PositionCredit
}

// JournalTemplate is a reusable blueprint describing which accounts and
// formulas a class of transaction debits and credits. A template referenced
// by posted transactions is treated as immutable.
type JournalTemplate struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	Lines       []TemplateLine `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"lines"`
	UsageCount  int64          `gorm:"not null;default:0" json:"usageCount"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// TableName maps the entity to its relational table
func (JournalTemplate) TableName() string {
	return "journal_templates"
}

// TemplateLine is one ordered debit or credit line of a template. The
// account side is a tagged variant: exactly one of AccountID (static
// reference) or AccountHint (symbolic name resolved by the caller at
// transaction time) should be set.
type TemplateLine struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TemplateID  string          `gorm:"type:varchar(36);not null;index" json:"templateId"`
	LineOrder   int             `gorm:"not null" json:"lineOrder"`
	Position    JournalPosition `gorm:"type:varchar(10);not null" json:"position"`
	AccountID   *string         `gorm:"type:varchar(36)" json:"accountId,omitempty"`
	AccountHint *string         `gorm:"type:varchar(100)" json:"accountHint,omitempty"`
	Formula     string          `gorm:"type:varchar(255);not null;default:amount" json:"formula"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
}

// TableName maps the entity to its relational table
func (TemplateLine) TableName() string {
	return "journal_template_lines"
}

// HasStaticAccount reports whether the line references a fixed account.
func (l *TemplateLine) HasStaticAccount() bool {
	return l.AccountID != nil && *l.AccountID != ""
}

// Hint returns the symbolic account hint, or "" when the line is static.
func (l *TemplateLine) Hint() string {
	if l.AccountHint == nil {
		return ""
	}
	return *l.AccountHint
}

// Validate performs basic validation on the template and its lines
func (t *JournalTemplate) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name cannot be empty")
	}

	if len(t.Lines) < 2 {
		return fmt.Errorf("template must have at least 2 lines, got %d", len(t.Lines))
	}

	var hasDebit, hasCredit bool
	for i := range t.Lines {
		line := &t.Lines[i]
		if !line.Position.IsValid() {
			return fmt.Errorf("line %d: invalid position %q", line.LineOrder, line.Position)
		}
		if !line.HasStaticAccount() && line.Hint() == "" {
			return fmt.Errorf("line %d: needs a static account or an account hint", line.LineOrder)
		}
		if line.HasStaticAccount() && line.Hint() != "" {
			return fmt.Errorf("line %d: static account and hint are mutually exclusive", line.LineOrder)
		}
		switch line.Position {
		case PositionDebit:
			hasDebit = true
		case PositionCredit:
			hasCredit = true
		}
	}

	if !hasDebit || !hasCredit {
		return fmt.Errorf("template must have at least one debit and one credit line")
	}

	return nil
}
