package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
)

// CatalogRepository 基础数据通用仓库
type CatalogRepository[T any] struct {
	db       *gorm.DB
	order    string
	search   []string
	preloads []string
}

func NewCatalogRepository[T any](db *gorm.DB, order string, search []string, preloads ...string) *CatalogRepository[T] {
	return &CatalogRepository[T]{db: db, order: order, search: search, preloads: preloads}
}

func (r *CatalogRepository[T]) query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	for _, p := range r.preloads {
		q = q.Preload(p)
	}
	return q
}

// List 分页查询，keyword 匹配 search 列
func (r *CatalogRepository[T]) List(ctx context.Context, keyword string, page, size int) ([]T, int64, error) {
	var items []T
	var total int64

	q := r.db.WithContext(ctx).Model(new(T))
	if keyword != "" && len(r.search) > 0 {
		kw := "%" + keyword + "%"
		conds := make([]string, 0, len(r.search))
		args := make([]interface{}, 0, len(r.search))
		for _, col := range r.search {
			conds = append(conds, col+" ILIKE ?")
			args = append(args, kw)
		}
		q = q.Where(strings.Join(conds, " OR "), args...)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(page, size)
	for _, p := range r.preloads {
		q = q.Preload(p)
	}
	err := q.Order(r.order).Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// All 返回全部记录
func (r *CatalogRepository[T]) All(ctx context.Context) ([]T, error) {
	var items []T
	err := r.query(ctx).Order(r.order).Find(&items).Error
	return items, err
}

func (r *CatalogRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var item T
	if err := r.query(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

// Exists reports whether a row with id exists.
func (r *CatalogRepository[T]) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *CatalogRepository[T]) Create(ctx context.Context, item *T) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error)
}

// Update writes every column except created_at.
func (r *CatalogRepository[T]) Update(ctx context.Context, item *T) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations, "created_at").Save(item).Error)
}

func (r *CatalogRepository[T]) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TermRepository 条款仓库
type TermRepository struct {
	*CatalogRepository[entity.Term]
}

func NewTermRepository(db *gorm.DB) *TermRepository {
	return &TermRepository{NewCatalogRepository[entity.Term](db, "title ASC", []string{"title"})}
}

// CountDefault counts default terms other than excludeID.
func (r *TermRepository) CountDefault(ctx context.Context, excludeID string) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&entity.Term{}).Where("is_default = ?", true)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n, err
}

// FindDefault 查找默认条款，无则返回 ErrNotFound
func (r *TermRepository) FindDefault(ctx context.Context) (*entity.Term, error) {
	var t entity.Term
	if err := r.db.WithContext(ctx).Where("is_default = ?", true).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *TermRepository) FindByTitle(ctx context.Context, title string) (*entity.Term, error) {
	var t entity.Term
	if err := r.db.WithContext(ctx).Where("title = ?", title).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// StateRepository 流程状态仓库
type StateRepository struct {
	*CatalogRepository[entity.State]
}

func NewStateRepository(db *gorm.DB) *StateRepository {
	return &StateRepository{NewCatalogRepository[entity.State](db, "sequence ASC, name ASC", []string{"name"}, "PublicState")}
}

func (r *StateRepository) FindByName(ctx context.Context, name string) (*entity.State, error) {
	var s entity.State
	if err := r.db.WithContext(ctx).Preload("PublicState").Where("name = ?", name).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// FindFirst returns the state with the lowest sequence.
func (r *StateRepository) FindFirst(ctx context.Context) (*entity.State, error) {
	var s entity.State
	if err := r.db.WithContext(ctx).Preload("PublicState").Order("sequence ASC, name ASC").First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}
