package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

var (
	ErrNotFound = &apperr.Error{Kind: apperr.KindNotFound, Message: "record not found"}
	ErrInUse    = &apperr.Error{Kind: apperr.KindConflict, Message: "record is referenced by other records"}
	ErrConflict = &apperr.Error{Kind: apperr.KindConflict, Message: "record already exists"}
)

// translate maps gorm errors onto the repository sentinels. It relies on
// gorm.Config.TranslateError being enabled.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrInUse
	}
	return err
}

// Repositories 维修仓库集合
type Repositories struct {
	db *gorm.DB

	Categories   *CatalogRepository[entity.DeviceCategory]
	Brands       *CatalogRepository[entity.DeviceBrand]
	Models       *CatalogRepository[entity.DeviceModel]
	Variants     *CatalogRepository[entity.DeviceVariant]
	Colors       *CatalogRepository[entity.DeviceColor]
	WorkTypes    *CatalogRepository[entity.WorkType]
	Software     *CatalogRepository[entity.Software]
	PublicStates *CatalogRepository[entity.PublicState]
	LabPartners  *CatalogRepository[entity.LabPartner]
	Products     *CatalogRepository[entity.Product]
	Customers    *CatalogRepository[entity.Customer]
	Loaners      *LoanerRepository
	Terms        *TermRepository
	States       *StateRepository
	Sequence     *SequenceRepository
	Inventory    *InventoryRepository
	Cases        *CaseRepository
	Order        *OrderRepository
	Chat         *ChatRepository
	Audit        *AuditRepository
	Leads        *LeadRepository
	Sales        *SaleOrderRepository
}

// NewRepositories 创建维修仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Categories:   NewCatalogRepository[entity.DeviceCategory](db, "name ASC", []string{"name"}),
		Brands:       NewCatalogRepository[entity.DeviceBrand](db, "name ASC", []string{"name"}),
		Models:       NewCatalogRepository[entity.DeviceModel](db, "name ASC", []string{"name"}, "Brand", "Category"),
		Variants:     NewCatalogRepository[entity.DeviceVariant](db, "name ASC", []string{"name"}, "Model"),
		Colors:       NewCatalogRepository[entity.DeviceColor](db, "name ASC", []string{"name"}),
		WorkTypes:    NewCatalogRepository[entity.WorkType](db, "name ASC", []string{"name", "description"}),
		Software:     NewCatalogRepository[entity.Software](db, "name ASC", []string{"name"}),
		PublicStates: NewCatalogRepository[entity.PublicState](db, "sequence ASC, name ASC", []string{"name"}),
		LabPartners:  NewCatalogRepository[entity.LabPartner](db, "name ASC", []string{"name", "email"}),
		Products:     NewCatalogRepository[entity.Product](db, "name ASC", []string{"name", "code"}),
		Customers:    NewCatalogRepository[entity.Customer](db, "name ASC", []string{"name", "email", "phone"}),
		Loaners:      NewLoanerRepository(db),
		Terms:        NewTermRepository(db),
		States:       NewStateRepository(db),
		Sequence:     NewSequenceRepository(db),
		Inventory:    NewInventoryRepository(db),
		Cases:        NewCaseRepository(db),
		Order:        NewOrderRepository(db),
		Chat:         NewChatRepository(db),
		Audit:        NewAuditRepository(db),
		Leads:        NewLeadRepository(db),
		Sales:        NewSaleOrderRepository(db),
	}
}

// DB returns the handle the repositories are bound to.
func (r *Repositories) DB() *gorm.DB { return r.db }

// Transaction runs fn with repositories bound to one database transaction.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// Ping checks the database connection.
func (r *Repositories) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func paginate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	return (page - 1) * size, size
}
