package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultWorkOperations is the checklist new orders start with.
const DefaultWorkOperations = `<ul>
<li>Diagnosis</li>
<li>Data backup</li>
<li>Repair</li>
<li>Final test</li>
</ul>`

// PlaceholderNumber is used when the order sequence cannot issue a number.
const PlaceholderNumber = "New"

// RepairOrder 维修单（聚合根）
type RepairOrder struct {
	Base
	Number string `json:"number" gorm:"size:32;not null;index"`
	Token  string `json:"-" gorm:"size:64;not null;uniqueIndex"`

	CustomerID *string   `json:"customer_id" gorm:"type:uuid;index"`
	Customer   *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`

	DeviceLines   []DeviceLine `json:"device_lines" gorm:"foreignKey:RepairOrderID"`
	DeviceCount   int          `json:"device_count" gorm:"not null"`
	DeviceSummary string       `json:"device_summary" gorm:"size:500"`

	// 旧版单设备字段
	CategoryID         *string         `json:"category_id" gorm:"type:uuid"`
	BrandID            *string         `json:"brand_id" gorm:"type:uuid"`
	ModelID            *string         `json:"model_id" gorm:"type:uuid"`
	VariantID          *string         `json:"variant_id" gorm:"type:uuid"`
	SerialNumber       string          `json:"serial_number" gorm:"size:100"`
	AestheticCondition string          `json:"aesthetic_condition" gorm:"size:20"`
	VisualDefects      string          `json:"visual_defects" gorm:"type:text"`
	Category           *DeviceCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Brand              *DeviceBrand    `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
	Model              *DeviceModel    `json:"model,omitempty" gorm:"foreignKey:ModelID"`
	Variant            *DeviceVariant  `json:"variant,omitempty" gorm:"foreignKey:VariantID"`

	SIMPIN         string `json:"sim_pin" gorm:"size:20"`
	DevicePassword string `json:"device_password" gorm:"size:100"`

	StateID         *string      `json:"state_id" gorm:"type:uuid;index"`
	State           *State       `json:"state,omitempty" gorm:"foreignKey:StateID"`
	CustomerStateID *string      `json:"customer_state_id" gorm:"type:uuid"`
	CustomerState   *PublicState `json:"customer_state,omitempty" gorm:"foreignKey:CustomerStateID"`

	ProblemDescription string    `json:"problem_description" gorm:"type:text"`
	WorkOperations     string    `json:"work_operations" gorm:"type:text"`
	WorkTypeID         *string   `json:"work_type_id" gorm:"type:uuid"`
	WorkType           *WorkType `json:"work_type,omitempty" gorm:"foreignKey:WorkTypeID"`

	RepairCost     decimal.Decimal `json:"repair_cost" gorm:"type:decimal(12,2);not null"`
	AdvancePayment decimal.Decimal `json:"advance_payment" gorm:"type:decimal(12,2);not null"`
	Discount       decimal.Decimal `json:"discount" gorm:"type:decimal(12,2);not null"`
	ExpectedTotal  decimal.Decimal `json:"expected_total" gorm:"type:decimal(12,2);not null"`

	LoanerID *string       `json:"loaner_id" gorm:"type:uuid;index"`
	Loaner   *LoanerDevice `json:"loaner,omitempty" gorm:"foreignKey:LoanerID"`

	Credentials   []Credential   `json:"credentials" gorm:"foreignKey:RepairOrderID"`
	Accessories   []Accessory    `json:"accessories" gorm:"foreignKey:RepairOrderID"`
	ExternalLabs  []ExternalLab  `json:"external_labs" gorm:"foreignKey:RepairOrderID"`
	SoftwareLines []SoftwareLine `json:"software_lines" gorm:"foreignKey:RepairOrderID"`
	Components    []Component    `json:"components" gorm:"foreignKey:RepairOrderID"`
	ChatMessages  []ChatMessage  `json:"chat_messages,omitempty" gorm:"foreignKey:RepairOrderID"`

	AssignedToID   string `json:"assigned_to_id" gorm:"size:64;index"`
	AssignedToName string `json:"assigned_to_name" gorm:"size:100"`
	OpenedByID     string `json:"opened_by_id" gorm:"size:64"`
	OpenedByName   string `json:"opened_by_name" gorm:"size:100"`

	OpenDate        time.Time  `json:"open_date" gorm:"not null"`
	LastModifiedAt  *time.Time `json:"last_modified_at"`
	EstimatedDate   *time.Time `json:"estimated_date" gorm:"type:date"`
	CloseDate       *time.Time `json:"close_date"`
	RenewalDate     *time.Time `json:"renewal_date" gorm:"type:date;index"`
	RenewalSoftware string     `json:"renewal_software" gorm:"size:500"`
	ReminderSent    bool       `json:"reminder_sent" gorm:"not null"`

	Signature       []byte `json:"-" gorm:"type:bytea"`
	SignatureLocked bool   `json:"signature_locked" gorm:"not null"`

	TermID *string `json:"term_id" gorm:"type:uuid"`
	Term   *Term   `json:"term,omitempty" gorm:"foreignKey:TermID"`

	Active bool `json:"active" gorm:"not null;index"`
}

func (RepairOrder) TableName() string { return "repair_orders" }

// HasSignature reports whether a signature blob is stored.
func (o *RepairOrder) HasSignature() bool { return len(o.Signature) > 0 }

// DeviceLine 维修单设备行
type DeviceLine struct {
	Base
	RepairOrderID      string  `json:"repair_order_id" gorm:"type:uuid;not null;index"`
	Sequence           int     `json:"sequence" gorm:"not null"`
	InventoryItemID    string  `json:"inventory_item_id" gorm:"type:uuid;not null;uniqueIndex"`
	CategoryID         string  `json:"category_id" gorm:"type:uuid"`
	BrandID            string  `json:"brand_id" gorm:"type:uuid"`
	ModelID            string  `json:"model_id" gorm:"type:uuid"`
	VariantID          *string `json:"variant_id" gorm:"type:uuid"`
	SerialNumber       string  `json:"serial_number" gorm:"size:100"`
	Name               string  `json:"name" gorm:"size:300"`
	AestheticCondition string  `json:"aesthetic_condition" gorm:"size:20"`
	VisualDefects      string  `json:"visual_defects" gorm:"type:text"`

	InventoryItem *InventoryItem `json:"inventory_item,omitempty" gorm:"foreignKey:InventoryItemID"`
}

func (DeviceLine) TableName() string { return "repair_device_lines" }

// Credential 客户账号凭据
type Credential struct {
	Base
	RepairOrderID string    `json:"repair_order_id" gorm:"type:uuid;not null;index"`
	ServiceType   string    `json:"service_type" gorm:"size:20;not null"`
	ServiceOther  string    `json:"service_other" gorm:"size:100"`
	Username      string    `json:"username" gorm:"size:200;not null"`
	Password      string    `json:"password" gorm:"size:200"`
	EnteredAt     time.Time `json:"entered_at"`
}

func (Credential) TableName() string { return "repair_credentials" }

// ServiceLabel renders the service, naming the free text for "other".
func (c *Credential) ServiceLabel() string {
	if c.ServiceType == ServiceOther {
		return "Other (" + c.ServiceOther + ")"
	}
	return CredentialServices.Label(c.ServiceType)
}

// Accessory 配件
type Accessory struct {
	Base
	RepairOrderID      string `json:"repair_order_id" gorm:"type:uuid;not null;index"`
	Kind               string `json:"kind" gorm:"size:20;not null"`
	CustomName         string `json:"custom_name" gorm:"size:100"`
	AestheticCondition string `json:"aesthetic_condition" gorm:"size:20"`
}

func (Accessory) TableName() string { return "repair_accessories" }

// DisplayName is the custom name for "other", else the kind label.
func (a *Accessory) DisplayName() string {
	if a.Kind == AccessoryOther && a.CustomName != "" {
		return a.CustomName
	}
	return AccessoryKinds.Label(a.Kind)
}

// ExternalLab 外部实验室维修
type ExternalLab struct {
	Base
	RepairOrderID string          `json:"repair_order_id" gorm:"type:uuid;not null;index"`
	LabPartnerID  string          `json:"lab_partner_id" gorm:"type:uuid;not null"`
	Description   string          `json:"description" gorm:"type:text"`
	ExternalCost  decimal.Decimal `json:"external_cost" gorm:"type:decimal(12,2);not null"`
	CustomerCost  decimal.Decimal `json:"customer_cost" gorm:"type:decimal(12,2);not null"`
	SentAt        *time.Time      `json:"sent_at"`
	ReturnedAt    *time.Time      `json:"returned_at"`
	AddToTotal    bool            `json:"add_to_total" gorm:"not null"`

	LabPartner *LabPartner `json:"lab_partner,omitempty" gorm:"foreignKey:LabPartnerID"`
}

func (ExternalLab) TableName() string { return "repair_external_labs" }

// SoftwareLine 维修单软件行
type SoftwareLine struct {
	Base
	RepairOrderID string `json:"repair_order_id" gorm:"type:uuid;not null;index"`
	SoftwareID    string `json:"software_id" gorm:"type:uuid;not null"`
	AddToTotal    bool   `json:"add_to_total" gorm:"not null"`

	Software *Software `json:"software,omitempty" gorm:"foreignKey:SoftwareID"`
}

func (SoftwareLine) TableName() string { return "repair_software_lines" }

// Name of the referenced software, empty when not loaded.
func (s *SoftwareLine) Name() string {
	if s.Software == nil {
		return ""
	}
	return s.Software.Name
}

// Component 更换的备件
type Component struct {
	Base
	RepairOrderID string          `json:"repair_order_id" gorm:"type:uuid;not null;index"`
	ProductID     string          `json:"product_id" gorm:"type:uuid;not null"`
	SupplierName  string          `json:"supplier_name" gorm:"size:200"`
	PurchaseDate  *time.Time      `json:"purchase_date" gorm:"type:date"`
	ReceiptDate   *time.Time      `json:"receipt_date" gorm:"type:date"`
	SerialNumber  string          `json:"serial_number" gorm:"size:100"`
	PurchasePrice decimal.Decimal `json:"purchase_price" gorm:"type:decimal(12,2);not null"`
	ListPrice     decimal.Decimal `json:"list_price" gorm:"type:decimal(12,2);not null"`
	AddToTotal    bool            `json:"add_to_total" gorm:"not null"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (Component) TableName() string { return "repair_components" }

// ChatMessage 客户与技术员的对话
type ChatMessage struct {
	Base
	RepairOrderID string `json:"repair_order_id" gorm:"type:uuid;not null;index"`
	Sender        string `json:"sender" gorm:"size:20;not null"`
	Message       string `json:"message" gorm:"type:text;not null"`
}

func (ChatMessage) TableName() string { return "repair_chat_messages" }
