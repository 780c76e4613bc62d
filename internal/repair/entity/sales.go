package entity

import (
	"github.com/shopspring/decimal"
)

// RenewalLead 续费商机，每张维修单至多一条
type RenewalLead struct {
	Base
	OrderID         string          `json:"order_id" gorm:"type:uuid;not null;uniqueIndex"`
	CustomerID      string          `json:"customer_id" gorm:"type:uuid;not null;index"`
	Title           string          `json:"title" gorm:"size:300;not null"`
	Description     string          `json:"description" gorm:"type:text"`
	ExpectedRevenue decimal.Decimal `json:"expected_revenue" gorm:"type:decimal(12,2);not null"`
	Probability     int             `json:"probability" gorm:"not null"`
	Tag             string          `json:"tag" gorm:"size:50"`
}

func (RenewalLead) TableName() string { return "repair_renewal_leads" }

// SaleOrder 由维修单生成的销售单
type SaleOrder struct {
	Base
	Number        string          `json:"number" gorm:"size:32;not null;uniqueIndex"`
	CustomerID    string          `json:"customer_id" gorm:"type:uuid;not null;index"`
	RepairOrderID string          `json:"repair_order_id" gorm:"type:uuid;not null;index"`
	Total         decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	CreatedBy     string          `json:"created_by" gorm:"size:64"`

	Lines []SaleOrderLine `json:"lines" gorm:"foreignKey:SaleOrderID"`
}

func (SaleOrder) TableName() string { return "repair_sale_orders" }

type SaleOrderLine struct {
	Base
	SaleOrderID string          `json:"sale_order_id" gorm:"type:uuid;not null;index"`
	ProductID   string          `json:"product_id" gorm:"type:uuid;not null"`
	Name        string          `json:"name" gorm:"size:300;not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
}

func (SaleOrderLine) TableName() string { return "repair_sale_order_lines" }
