package repository

import (
	"context"
	"errors"

	"ledgersync/pkg/db/option"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the generic gorm-backed store used by the services.
// FindOne returns (nil, nil) when nothing matches.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	CreateIfAbsent(ctx context.Context, resource *T) (bool, error)
	Upsert(ctx context.Context, resource *T, conflictColumns ...string) error
	Update(ctx context.Context, resourceID string, resource any) error
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return s
	}
	return &store[T]{db: tx}
}

func (s *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var out []*T
	q := option.Apply(s.db.WithContext(ctx).Model(new(T)).Where(query), opts...)
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var out T
	q := option.Apply(s.db.WithContext(ctx).Model(new(T)).Where(query), opts...)
	if err := q.Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (s *store[T]) Create(ctx context.Context, resource *T) error {
	return s.db.WithContext(ctx).Create(resource).Error
}

// CreateIfAbsent inserts resource unless its primary key already exists and
// reports whether a row was written.
func (s *store[T]) CreateIfAbsent(ctx context.Context, resource *T) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(resource)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *store[T]) Upsert(ctx context.Context, resource *T, conflictColumns ...string) error {
	onConflict := clause.OnConflict{UpdateAll: true}
	for _, c := range conflictColumns {
		onConflict.Columns = append(onConflict.Columns, clause.Column{Name: c})
	}
	return s.db.WithContext(ctx).Clauses(onConflict).Create(resource).Error
}

func (s *store[T]) Update(ctx context.Context, resourceID string, resource any) error {
	res := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", resourceID).Updates(resource)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *store[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	var n int64
	q := option.Apply(s.db.WithContext(ctx).Model(new(T)).Where(query), opts...)
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
