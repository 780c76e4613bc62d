package entity

import (
	"fmt"
	"strings"
	"time"
)

// InventoryItem 客户送修的实物设备
//
// Status is in_repair exactly when RepairOrderID is set; only the assign
// package moves an item in and out of in_repair.
type InventoryItem struct {
	Base
	CategoryID    string     `json:"category_id" gorm:"type:uuid;not null"`
	BrandID       string     `json:"brand_id" gorm:"type:uuid;not null"`
	ModelID       string     `json:"model_id" gorm:"type:uuid;not null;index"`
	VariantID     *string    `json:"variant_id" gorm:"type:uuid"`
	SerialNumber  string     `json:"serial_number" gorm:"size:100;not null"`
	Name          string     `json:"name" gorm:"size:300"`
	Status        string     `json:"status" gorm:"size:20;not null;index"`
	RepairOrderID *string    `json:"repair_order_id" gorm:"type:uuid;index"`
	CaseID        *string    `json:"case_id" gorm:"type:uuid;index"`
	CheckInDate   time.Time  `json:"check_in_date"`
	CheckedInBy   string     `json:"checked_in_by" gorm:"size:64"`
	Notes         string     `json:"notes" gorm:"type:text"`
	Active        bool       `json:"active" gorm:"not null;index"`
	ArchivedAt    *time.Time `json:"archived_at"`

	Category *DeviceCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Brand    *DeviceBrand    `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
	Model    *DeviceModel    `json:"model,omitempty" gorm:"foreignKey:ModelID"`
	Variant  *DeviceVariant  `json:"variant,omitempty" gorm:"foreignKey:VariantID"`
	Case     *Case           `json:"case,omitempty" gorm:"foreignKey:CaseID"`
}

func (InventoryItem) TableName() string { return "repair_inventory_items" }

// ComputeName builds "Category - Brand - Model - Variant - S/N: xxx" from the
// loaded relations.
func (i *InventoryItem) ComputeName() string {
	var parts []string
	if i.Category != nil {
		parts = append(parts, i.Category.Name)
	}
	if i.Brand != nil {
		parts = append(parts, i.Brand.Name)
	}
	if i.Model != nil {
		parts = append(parts, i.Model.Name)
	}
	if i.Variant != nil {
		parts = append(parts, i.Variant.Name)
	}
	if i.SerialNumber != "" {
		parts = append(parts, "S/N: "+i.SerialNumber)
	}
	if len(parts) == 0 {
		return "New Inventory Item"
	}
	return strings.Join(parts, " - ")
}

// LoanerDevice 备用机
type LoanerDevice struct {
	Base
	Name               string  `json:"name" gorm:"size:200;not null"`
	SerialNumber       string  `json:"serial_number" gorm:"size:100;not null"`
	AestheticCondition string  `json:"aesthetic_condition" gorm:"size:20;not null"`
	Description        string  `json:"description" gorm:"type:text"`
	Status             string  `json:"status" gorm:"size:20;not null;index"`
	RepairOrderID      *string `json:"repair_order_id" gorm:"type:uuid;index"`
}

func (LoanerDevice) TableName() string { return "repair_loaner_devices" }

// DisplayName is "<name> (<serial>)".
func (l *LoanerDevice) DisplayName() string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", l.Name, l.SerialNumber)
}

// Case 设备运输箱，可整箱导入维修单
type Case struct {
	Base
	Number             string    `json:"number" gorm:"size:50;not null;index"`
	Colour             string    `json:"colour" gorm:"size:20;not null"`
	ColourCustom       string    `json:"colour_custom" gorm:"size:50"`
	CornerColour       string    `json:"corner_colour" gorm:"size:20"`
	CornerColourCustom string    `json:"corner_colour_custom" gorm:"size:50"`
	CustomerID         *string   `json:"customer_id" gorm:"type:uuid;index"`
	CheckInDate        time.Time `json:"check_in_date"`
	CheckedInBy        string    `json:"checked_in_by" gorm:"size:64"`
	Notes              string    `json:"notes" gorm:"type:text"`
	Active             bool      `json:"active" gorm:"not null"`

	Customer *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
}

func (Case) TableName() string { return "repair_cases" }
