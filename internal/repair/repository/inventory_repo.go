package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
)

// InventoryRepository 库存设备仓库
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func withCatalog(db *gorm.DB) *gorm.DB {
	return db.Preload("Category").Preload("Brand").Preload("Model").Preload("Variant")
}

func (r *InventoryRepository) Create(ctx context.Context, item *entity.InventoryItem) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error)
}

// Update saves the descriptive fields of an item. Status, holder and archive
// flags are left alone; SetStatus and Archive own them.
func (r *InventoryRepository) Update(ctx context.Context, item *entity.InventoryItem) error {
	return translate(r.db.WithContext(ctx).
		Omit(clause.Associations, "created_at", "status", "repair_order_id", "active", "archived_at").
		Save(item).Error)
}

// Lock takes a row lock on an item for the rest of the transaction.
func (r *InventoryRepository) Lock(ctx context.Context, id string) error {
	var item entity.InventoryItem
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").Where("id = ?", id).First(&item).Error
	return translate(err)
}

// SetStatus moves an item that no order holds. Reports false when the item
// is held.
func (r *InventoryRepository) SetStatus(ctx context.Context, id, status string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.InventoryItem{}).
		Where("id = ? AND repair_order_id IS NULL AND status <> ?", id, entity.InventoryInRepair).
		Update("status", status)
	return res.RowsAffected == 1, res.Error
}

// Archive deactivates an item that no order holds. Reports false when the
// item is held.
func (r *InventoryRepository) Archive(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.InventoryItem{}).
		Where("id = ? AND repair_order_id IS NULL AND status <> ?", id, entity.InventoryInRepair).
		Updates(map[string]interface{}{"active": false, "archived_at": at})
	return res.RowsAffected == 1, res.Error
}

// FindByID 查询库存设备（含类别/品牌/型号/变体）
func (r *InventoryRepository) FindByID(ctx context.Context, id string) (*entity.InventoryItem, error) {
	var item entity.InventoryItem
	if err := withCatalog(r.db.WithContext(ctx)).Preload("Case").Where("id = ?", id).First(&item).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

// FindDuplicate returns an active item with the same identity, other than
// excludeID. A nil variant only matches items without a variant.
func (r *InventoryRepository) FindDuplicate(ctx context.Context, item *entity.InventoryItem, excludeID string) (*entity.InventoryItem, error) {
	q := withCatalog(r.db.WithContext(ctx)).
		Where("active = ? AND category_id = ? AND brand_id = ? AND model_id = ? AND serial_number = ?",
			true, item.CategoryID, item.BrandID, item.ModelID, item.SerialNumber)
	if item.VariantID != nil {
		q = q.Where("variant_id = ?", *item.VariantID)
	} else {
		q = q.Where("variant_id IS NULL")
	}
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var dup entity.InventoryItem
	if err := q.First(&dup).Error; err != nil {
		return nil, translate(err)
	}
	return &dup, nil
}

// FindAvailableByCase lists active, available items packed in a case.
func (r *InventoryRepository) FindAvailableByCase(ctx context.Context, caseID string) ([]entity.InventoryItem, error) {
	var items []entity.InventoryItem
	err := withCatalog(r.db.WithContext(ctx)).
		Where("case_id = ? AND status = ? AND active = ?", caseID, entity.InventoryAvailable, true).
		Order("check_in_date ASC, created_at ASC").
		Find(&items).Error
	return items, err
}

// CountHeldBy counts items currently held by an order.
func (r *InventoryRepository) CountHeldBy(ctx context.Context, orderID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.InventoryItem{}).
		Where("repair_order_id = ? AND status = ?", orderID, entity.InventoryInRepair).
		Count(&n).Error
	return n, err
}

type InventoryListParams struct {
	Status     string
	CategoryID string
	BrandID    string
	ModelID    string
	CaseID     string
	Keyword    string
	Archived   bool
	Page       int
	Size       int
}

func (r *InventoryRepository) List(ctx context.Context, params InventoryListParams) ([]entity.InventoryItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.InventoryItem{}).Where("active = ?", !params.Archived)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.CategoryID != "" {
		query = query.Where("category_id = ?", params.CategoryID)
	}
	if params.BrandID != "" {
		query = query.Where("brand_id = ?", params.BrandID)
	}
	if params.ModelID != "" {
		query = query.Where("model_id = ?", params.ModelID)
	}
	if params.CaseID != "" {
		query = query.Where("case_id = ?", params.CaseID)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("serial_number ILIKE ? OR name ILIKE ?", kw, kw)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []entity.InventoryItem
	offset, limit := paginate(params.Page, params.Size)
	err := withCatalog(query).Order("check_in_date DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// CaseRepository 运输箱仓库
type CaseRepository struct {
	db *gorm.DB
}

func NewCaseRepository(db *gorm.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error)
}

func (r *CaseRepository) Update(ctx context.Context, c *entity.Case) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(c).Error)
}

func (r *CaseRepository) FindByID(ctx context.Context, id string) (*entity.Case, error) {
	var c entity.Case
	if err := r.db.WithContext(ctx).Preload("Customer").Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *CaseRepository) List(ctx context.Context, keyword string, page, size int) ([]entity.Case, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Case{}).Where("active = ?", true)
	if keyword != "" {
		query = query.Where("number ILIKE ?", "%"+keyword+"%")
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []entity.Case
	offset, limit := paginate(page, size)
	err := query.Preload("Customer").Order("check_in_date DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// LoanerRepository 备用机仓库
type LoanerRepository struct {
	*CatalogRepository[entity.LoanerDevice]
}

func NewLoanerRepository(db *gorm.DB) *LoanerRepository {
	return &LoanerRepository{NewCatalogRepository[entity.LoanerDevice](db, "name ASC", []string{"name", "serial_number"})}
}

// Update saves a loaner without touching its status or holder.
func (r *LoanerRepository) Update(ctx context.Context, l *entity.LoanerDevice) error {
	return translate(r.db.WithContext(ctx).
		Omit(clause.Associations, "created_at", "status", "repair_order_id").
		Save(l).Error)
}

func (r *LoanerRepository) Lock(ctx context.Context, id string) error {
	var l entity.LoanerDevice
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").Where("id = ?", id).First(&l).Error
	return translate(err)
}

// SetStatus changes the status of a loaner no order holds. Reports false
// when the loaner is assigned.
func (r *LoanerRepository) SetStatus(ctx context.Context, id, status string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.LoanerDevice{}).
		Where("id = ? AND repair_order_id IS NULL AND status <> ?", id, entity.LoanerAssigned).
		Update("status", status)
	return res.RowsAffected == 1, res.Error
}
