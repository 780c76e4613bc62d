package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
)

// ChatRepository 客户聊天仓库
type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(ctx context.Context, m *entity.ChatMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListByOrder returns messages oldest first.
func (r *ChatRepository) ListByOrder(ctx context.Context, orderID string) ([]entity.ChatMessage, error) {
	var items []entity.ChatMessage
	err := r.db.WithContext(ctx).
		Where("repair_order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// AuditRepository 维修单日志仓库，只追加
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, e *entity.AuditEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// FindByOrder 分页查询日志，最新在前
func (r *AuditRepository) FindByOrder(ctx context.Context, orderID string, page, pageSize int) ([]entity.AuditEntry, int64, error) {
	var items []entity.AuditEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.AuditEntry{}).Where("order_id = ?", orderID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := paginate(page, pageSize)
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// LeadRepository 续费商机仓库
type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// CreateOnce inserts the lead unless one exists for the order and reports
// whether a row was written.
func (r *LeadRepository) CreateOnce(ctx context.Context, l *entity.RenewalLead) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(l)
	return result.RowsAffected == 1, result.Error
}

func (r *LeadRepository) FindByOrder(ctx context.Context, orderID string) (*entity.RenewalLead, error) {
	var l entity.RenewalLead
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&l).Error; err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

// SaleOrderRepository 销售单仓库
type SaleOrderRepository struct {
	db *gorm.DB
}

func NewSaleOrderRepository(db *gorm.DB) *SaleOrderRepository {
	return &SaleOrderRepository{db: db}
}

// Create writes the order and its lines.
func (r *SaleOrderRepository) Create(ctx context.Context, so *entity.SaleOrder) error {
	return translate(r.db.WithContext(ctx).Create(so).Error)
}

func (r *SaleOrderRepository) FindByRepairOrder(ctx context.Context, repairOrderID string) ([]entity.SaleOrder, error) {
	var items []entity.SaleOrder
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("repair_order_id = ?", repairOrderID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}
