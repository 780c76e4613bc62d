package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DeviceCategory 设备类别
type DeviceCategory struct {
	Base
	Name string `json:"name" gorm:"size:100;not null;uniqueIndex"`
}

func (DeviceCategory) TableName() string { return "repair_device_categories" }

// DeviceBrand 品牌
type DeviceBrand struct {
	Base
	Name string `json:"name" gorm:"size:100;not null;uniqueIndex"`
}

func (DeviceBrand) TableName() string { return "repair_device_brands" }

// DeviceModel 型号
type DeviceModel struct {
	Base
	Name       string  `json:"name" gorm:"size:100;not null;uniqueIndex:idx_model_brand_name"`
	BrandID    string  `json:"brand_id" gorm:"type:uuid;not null;uniqueIndex:idx_model_brand_name"`
	CategoryID *string `json:"category_id" gorm:"type:uuid;index"`

	Brand    *DeviceBrand    `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
	Category *DeviceCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

func (DeviceModel) TableName() string { return "repair_device_models" }

// DeviceVariant 型号变体
type DeviceVariant struct {
	Base
	Name    string `json:"name" gorm:"size:100;not null;uniqueIndex:idx_variant_model_name"`
	ModelID string `json:"model_id" gorm:"type:uuid;not null;uniqueIndex:idx_variant_model_name"`

	Model *DeviceModel `json:"model,omitempty" gorm:"foreignKey:ModelID"`
}

func (DeviceVariant) TableName() string { return "repair_device_variants" }

type DeviceColor struct {
	Base
	Name string `json:"name" gorm:"size:50;not null;uniqueIndex"`
}

func (DeviceColor) TableName() string { return "repair_device_colors" }

// WorkType 维修工作类型
type WorkType struct {
	Base
	Name           string          `json:"name" gorm:"size:100;not null;uniqueIndex"`
	Description    string          `json:"description" gorm:"type:text"`
	Price          decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	EstimatedDays  int             `json:"estimated_days" gorm:"not null"`
	ExtraWork      bool            `json:"extra_work" gorm:"not null"`
	ExtraWorkName  string          `json:"extra_work_name" gorm:"size:100"`
	ExtraWorkDays  int             `json:"extra_work_days"`
	ExtraWorkPrice decimal.Decimal `json:"extra_work_price" gorm:"type:decimal(12,2);not null"`
}

func (WorkType) TableName() string { return "repair_work_types" }

// Software 软件授权
type Software struct {
	Base
	Name            string          `json:"name" gorm:"size:100;not null;index"`
	Price           decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	RenewalRequired bool            `json:"renewal_required" gorm:"not null"`
	DurationMonths  int             `json:"duration_months" gorm:"not null"`
}

func (Software) TableName() string { return "repair_software" }

// Term 维修条款
type Term struct {
	Base
	Title     string `json:"title" gorm:"size:200;not null"`
	Content   string `json:"content" gorm:"type:text;not null"`
	IsDefault bool   `json:"is_default" gorm:"not null;index"`
}

func (Term) TableName() string { return "repair_terms" }

// PublicState 客户可见状态
type PublicState struct {
	Base
	Name        string `json:"name" gorm:"size:100;not null"`
	Description string `json:"description" gorm:"type:text"`
	Sequence    int    `json:"sequence" gorm:"not null;index"`
}

func (PublicState) TableName() string { return "repair_public_states" }

// State 内部流程状态
type State struct {
	Base
	Name          string  `json:"name" gorm:"size:100;not null"`
	Sequence      int     `json:"sequence" gorm:"not null;index"`
	IsClosed      bool    `json:"is_closed" gorm:"not null"`
	IsExternalLab bool    `json:"is_external_lab" gorm:"not null"`
	PublicStateID *string `json:"public_state_id" gorm:"type:uuid"`

	PublicState *PublicState `json:"public_state,omitempty" gorm:"foreignKey:PublicStateID"`
}

func (State) TableName() string { return "repair_states" }

// LabPartner 外部实验室
type LabPartner struct {
	Base
	Name  string `json:"name" gorm:"size:200;not null;uniqueIndex"`
	Email string `json:"email" gorm:"size:100"`
	Phone string `json:"phone" gorm:"size:30"`
}

func (LabPartner) TableName() string { return "repair_lab_partners" }

// Product 备件目录
type Product struct {
	Base
	Code      string          `json:"code" gorm:"size:64;index"`
	Name      string          `json:"name" gorm:"size:200;not null"`
	ListPrice decimal.Decimal `json:"list_price" gorm:"type:decimal(12,2);not null"`
	Cost      decimal.Decimal `json:"cost" gorm:"type:decimal(12,2);not null"`
}

func (Product) TableName() string { return "repair_products" }

// DisplayName is "[code] name" when a code is set.
func (p *Product) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Code != "" {
		return "[" + p.Code + "] " + p.Name
	}
	return p.Name
}

// Customer 客户
type Customer struct {
	Base
	Name      string `json:"name" gorm:"size:200;not null;index"`
	Email     string `json:"email" gorm:"size:100"`
	Phone     string `json:"phone" gorm:"size:30"`
	IsCompany bool   `json:"is_company" gorm:"not null"`
	Address   string `json:"address" gorm:"size:500"`
	Notes     string `json:"notes" gorm:"type:text"`
}

func (Customer) TableName() string { return "repair_customers" }

// HasContact reports whether phone or email is set.
func (c *Customer) HasContact() bool {
	return strings.TrimSpace(c.Phone) != "" || strings.TrimSpace(c.Email) != ""
}

// Sequence 编号序列
type Sequence struct {
	Code       string `json:"code" gorm:"primaryKey;size:64"`
	Prefix     string `json:"prefix" gorm:"size:20"`
	Padding    int    `json:"padding" gorm:"not null"`
	NextNumber int64  `json:"next_number" gorm:"not null"`
}

func (Sequence) TableName() string { return "repair_sequences" }
