package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base 公共主键与时间戳
type Base struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate fills the primary key when the caller did not.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

func (b *Base) GetID() string   { return b.ID }
func (b *Base) SetID(id string) { b.ID = id }

// AutoMigrate 自动迁移所有维修表
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// 基础数据
		&DeviceCategory{},
		&DeviceBrand{},
		&DeviceModel{},
		&DeviceVariant{},
		&DeviceColor{},
		&WorkType{},
		&Software{},
		&Term{},
		&PublicState{},
		&State{},
		&LabPartner{},
		&Product{},
		&Customer{},
		&Sequence{},

		// 库存
		&Case{},
		&InventoryItem{},
		&LoanerDevice{},

		// 维修单
		&RepairOrder{},
		&DeviceLine{},
		&Credential{},
		&Accessory{},
		&ExternalLab{},
		&SoftwareLine{},
		&Component{},
		&ChatMessage{},
		&AuditEntry{},

		// 续费与销售
		&RenewalLead{},
		&SaleOrder{},
		&SaleOrderLine{},
	); err != nil {
		return err
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Indexes gorm tags cannot express: a NULL variant must still collide, and
// the "New" placeholder number may repeat.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_repair_inventory_identity ON repair_inventory_items
		(category_id, brand_id, model_id, COALESCE(variant_id::text, ''), serial_number) WHERE active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_repair_orders_number_unique ON repair_orders (number) WHERE number <> 'New'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_repair_terms_single_default ON repair_terms (is_default) WHERE is_default`,
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
