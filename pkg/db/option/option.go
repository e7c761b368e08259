package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a query before it is executed.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ Operator = "="
	GT Operator = ">"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
}

func Apply(db *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt != nil {
			db = opt(db)
		}
	}
	return db
}

func ApplyOperator(conds ...Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		for _, c := range conds {
			if c.Field == "" {
				continue
			}
			op := c.Operator
			if op == "" {
				op = EQ
			}
			db = db.Where(fmt.Sprintf("%s %s ?", c.Field, op), c.Value)
		}
		return db
	}
}

func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		field := s.SortBy
		if field == "" {
			field = "created_at"
		}
		desc := strings.EqualFold(s.OrderBy, "desc")
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: field}, Desc: desc})
	}
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	}
}

// LockingUpdate is a scope for SELECT ... FOR UPDATE inside a transaction.
// Dialects without row locks (sqlite) drop the clause.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}
