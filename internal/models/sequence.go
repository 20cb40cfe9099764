package models

import "fmt"

// Sequence types known to the engine
const (
	SequenceTypeTransaction = "TRANSACTION"
	SequenceTypeJournal     = "JOURNAL"
)

// TransactionSequence is a per-(type, year) counter row: the sole piece of
// shared mutable counter state in the system. Callers must hold an exclusive
// row lock for the read-increment-persist step; the lock is released at the
// enclosing unit-of-work boundary.
type TransactionSequence struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SequenceType string `gorm:"type:varchar(20);not null;uniqueIndex:idx_sequence_type_year" json:"sequenceType"`
	Year         int    `gorm:"not null;uniqueIndex:idx_sequence_type_year" json:"year"`
	Prefix       string `gorm:"type:varchar(10);not null" json:"prefix"`
	LastNumber   int64  `gorm:"not null;default:0" json:"lastNumber"`
}

// TableName maps the entity to its relational table
func (TransactionSequence) TableName() string {
	return "transaction_sequences"
}

// NextNumber increments the counter and formats the issued number as
// PREFIX-YYYY-NNNNN. The caller is responsible for persisting the row
// before its unit of work commits.
func (s *TransactionSequence) NextNumber() string {
	s.LastNumber++
	return fmt.Sprintf("%s-%d-%05d", s.Prefix, s.Year, s.LastNumber)
}
