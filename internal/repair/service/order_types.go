package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitfantasy/nimo-repair/internal/repair/audit"
)

// OrderPatch lists the order fields to change. A nil field is left alone; an
// empty string clears an optional reference. Collections are full
// replacements keyed by id: rows without a known id are created, rows left
// out are removed.
type OrderPatch struct {
	CustomerID      *string `json:"customer_id"`
	StateID         *string `json:"state_id"`
	CustomerStateID *string `json:"customer_state_id"`
	AssignedToID    *string `json:"assigned_to_id"`
	AssignedToName  *string `json:"assigned_to_name"`
	WorkTypeID      *string `json:"work_type_id"`
	TermID          *string `json:"term_id"`

	CategoryID         *string `json:"category_id"`
	BrandID            *string `json:"brand_id"`
	ModelID            *string `json:"model_id"`
	VariantID          *string `json:"variant_id"`
	SerialNumber       *string `json:"serial_number"`
	AestheticCondition *string `json:"aesthetic_condition"`
	VisualDefects      *string `json:"visual_defects"`
	SIMPIN             *string `json:"sim_pin"`
	DevicePassword     *string `json:"device_password"`
	ProblemDescription *string `json:"problem_description"`
	WorkOperations     *string `json:"work_operations"`

	RepairCost     *decimal.Decimal `json:"repair_cost"`
	AdvancePayment *decimal.Decimal `json:"advance_payment"`
	Discount       *decimal.Decimal `json:"discount"`

	Active    *bool   `json:"active"`
	LoanerID  *string `json:"loaner_id"`
	Signature *[]byte `json:"signature"`

	DeviceLines   *[]DeviceLineInput   `json:"device_lines" binding:"omitempty,dive"`
	Credentials   *[]CredentialInput   `json:"credentials" binding:"omitempty,dive"`
	Accessories   *[]AccessoryInput    `json:"accessories" binding:"omitempty,dive"`
	ExternalLabs  *[]ExternalLabInput  `json:"external_labs" binding:"omitempty,dive"`
	SoftwareLines *[]SoftwareLineInput `json:"software_lines" binding:"omitempty,dive"`
	Components    *[]ComponentInput    `json:"components" binding:"omitempty,dive"`

	unlockSignature bool
}

// Touched returns the keys of the fields set in the patch.
func (p *OrderPatch) Touched() []string {
	var keys []string
	add := func(set bool, key string) {
		if set {
			keys = append(keys, key)
		}
	}
	add(p.CustomerID != nil, "customer_id")
	add(p.StateID != nil, "state_id")
	add(p.StateID != nil || p.CustomerStateID != nil, "customer_state_id")
	add(p.AssignedToID != nil, "assigned_to_id")
	add(p.WorkTypeID != nil, "work_type_id")
	add(p.TermID != nil, "term_id")
	add(p.CategoryID != nil, "category_id")
	add(p.BrandID != nil, "brand_id")
	add(p.ModelID != nil, "model_id")
	add(p.VariantID != nil, "variant_id")
	add(p.SerialNumber != nil, "serial_number")
	add(p.AestheticCondition != nil, "aesthetic_condition")
	add(p.VisualDefects != nil, "visual_defects")
	add(p.SIMPIN != nil, "sim_pin")
	add(p.DevicePassword != nil, "device_password")
	add(p.ProblemDescription != nil, "problem_description")
	add(p.WorkOperations != nil, "work_operations")
	add(p.RepairCost != nil, "repair_cost")
	add(p.AdvancePayment != nil, "advance_payment")
	add(p.Discount != nil, "discount")
	add(p.Active != nil, "active")
	add(p.Signature != nil, "signature")
	add(p.Signature != nil || p.unlockSignature, "signature_locked")
	add(p.LoanerID != nil, audit.KeyLoaner)
	add(p.DeviceLines != nil, audit.KeyDevices)
	add(p.Credentials != nil, audit.KeyCredentials)
	add(p.Accessories != nil, audit.KeyAccessories)
	add(p.ExternalLabs != nil, audit.KeyLabs)
	add(p.SoftwareLines != nil, audit.KeySoftware)
	add(p.Components != nil, audit.KeyComponents)
	return keys
}

type DeviceLineInput struct {
	ID                 string `json:"id"`
	InventoryItemID    string `json:"inventory_item_id" binding:"required"`
	AestheticCondition string `json:"aesthetic_condition"`
	VisualDefects      string `json:"visual_defects"`
}

type CredentialInput struct {
	ID           string `json:"id"`
	ServiceType  string `json:"service_type" binding:"required"`
	ServiceOther string `json:"service_other"`
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password"`
}

type AccessoryInput struct {
	ID                 string `json:"id"`
	Kind               string `json:"kind" binding:"required"`
	CustomName         string `json:"custom_name"`
	AestheticCondition string `json:"aesthetic_condition"`
}

type ExternalLabInput struct {
	ID           string          `json:"id"`
	LabPartnerID string          `json:"lab_partner_id" binding:"required"`
	Description  string          `json:"description"`
	ExternalCost decimal.Decimal `json:"external_cost"`
	CustomerCost decimal.Decimal `json:"customer_cost"`
	SentAt       *time.Time      `json:"sent_at"`
	ReturnedAt   *time.Time      `json:"returned_at"`
	AddToTotal   *bool           `json:"add_to_total"`
}

type SoftwareLineInput struct {
	ID         string `json:"id"`
	SoftwareID string `json:"software_id" binding:"required"`
	AddToTotal *bool  `json:"add_to_total"`
}

type ComponentInput struct {
	ID            string           `json:"id"`
	ProductID     string           `json:"product_id" binding:"required"`
	SupplierName  string           `json:"supplier_name"`
	PurchaseDate  *time.Time       `json:"purchase_date"`
	ReceiptDate   *time.Time       `json:"receipt_date"`
	SerialNumber  string           `json:"serial_number"`
	PurchasePrice decimal.Decimal  `json:"purchase_price"`
	ListPrice     *decimal.Decimal `json:"list_price"`
	AddToTotal    bool             `json:"add_to_total"`
}

// CustomerInput creates a customer during intake.
type CustomerInput struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone"`
	IsCompany bool   `json:"is_company"`
	Address   string `json:"address"`
}

// CreateOrderRequest is an intake: the patch applied to a fresh order, with
// an optional inline customer.
type CreateOrderRequest struct {
	OrderPatch
	NewCustomer *CustomerInput `json:"new_customer"`
}

type OrderListRequest struct {
	StateID      string `form:"state_id"`
	AssignedToID string `form:"assigned_to_id"`
	CustomerID   string `form:"customer_id"`
	Keyword      string `form:"keyword"`
	Archived     bool   `form:"archived"`
	Closed       *bool  `form:"closed"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
