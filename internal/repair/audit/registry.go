// Package audit turns the pre- and post-image of a repair order into the
// lines of its change log.
package audit

import (
	"github.com/shopspring/decimal"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
)

// Kind controls how a field value is rendered before comparison.
type Kind int

const (
	Scalar Kind = iota
	Selection
	Reference
)

// Field is one tracked order attribute.
type Field struct {
	Key     string
	Label   string
	Kind    Kind
	Extract func(o *entity.RepairOrder) string
}

const empty = "-"

func str(s string) string {
	if s == "" {
		return empty
	}
	return s
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func sel(table entity.Selection, v string) string {
	if v == "" {
		return empty
	}
	return table.Label(v)
}

// fields is ordered; audit lines follow this order.
var fields = []Field{
	{"customer_id", "Customer", Reference, func(o *entity.RepairOrder) string {
		if o.Customer == nil {
			return empty
		}
		return o.Customer.Name
	}},
	{"state_id", "State", Reference, func(o *entity.RepairOrder) string {
		if o.State == nil {
			return empty
		}
		return o.State.Name
	}},
	{"customer_state_id", "Customer State", Reference, func(o *entity.RepairOrder) string {
		if o.CustomerState == nil {
			return empty
		}
		return o.CustomerState.Name
	}},
	{"assigned_to_id", "Assigned To", Reference, func(o *entity.RepairOrder) string { return str(o.AssignedToName) }},
	{"work_type_id", "Work Type", Reference, func(o *entity.RepairOrder) string {
		if o.WorkType == nil {
			return empty
		}
		return o.WorkType.Name
	}},
	{"term_id", "Terms", Reference, func(o *entity.RepairOrder) string {
		if o.Term == nil {
			return empty
		}
		return o.Term.Title
	}},
	{"category_id", "Category", Reference, func(o *entity.RepairOrder) string {
		if o.Category == nil {
			return empty
		}
		return o.Category.Name
	}},
	{"brand_id", "Brand", Reference, func(o *entity.RepairOrder) string {
		if o.Brand == nil {
			return empty
		}
		return o.Brand.Name
	}},
	{"model_id", "Model", Reference, func(o *entity.RepairOrder) string {
		if o.Model == nil {
			return empty
		}
		return o.Model.Name
	}},
	{"variant_id", "Variant", Reference, func(o *entity.RepairOrder) string {
		if o.Variant == nil {
			return empty
		}
		return o.Variant.Name
	}},
	{"serial_number", "Serial Number", Scalar, func(o *entity.RepairOrder) string { return str(o.SerialNumber) }},
	{"aesthetic_condition", "Aesthetic Condition", Selection, func(o *entity.RepairOrder) string {
		return sel(entity.AestheticConditions, o.AestheticCondition)
	}},
	{"visual_defects", "Visual Defects", Scalar, func(o *entity.RepairOrder) string { return str(o.VisualDefects) }},
	{"sim_pin", "SIM PIN", Scalar, func(o *entity.RepairOrder) string { return str(o.SIMPIN) }},
	{"device_password", "Device Password", Scalar, func(o *entity.RepairOrder) string { return str(o.DevicePassword) }},
	{"problem_description", "Problem Description", Scalar, func(o *entity.RepairOrder) string { return str(o.ProblemDescription) }},
	{"work_operations", "Work Operations", Scalar, func(o *entity.RepairOrder) string { return str(o.WorkOperations) }},
	{"repair_cost", "Repair Cost €", Scalar, func(o *entity.RepairOrder) string { return money(o.RepairCost) }},
	{"advance_payment", "Advance Payment €", Scalar, func(o *entity.RepairOrder) string { return money(o.AdvancePayment) }},
	{"discount", "Discount €", Scalar, func(o *entity.RepairOrder) string { return money(o.Discount) }},
	{"signature_locked", "Signature Locked", Scalar, func(o *entity.RepairOrder) string { return yesNo(o.SignatureLocked) }},
	{"active", "Active", Scalar, func(o *entity.RepairOrder) string { return yesNo(o.Active) }},
}

// Excluded keys are never diffed even when touched.
var Excluded = map[string]bool{
	"signature":        true,
	"last_modified_at": true,
}

// Collection keys are handled by their own hooks, never by the field pass.
const (
	KeyLoaner      = "loaner_id"
	KeyCredentials = "credentials"
	KeyAccessories = "accessories"
	KeyComponents  = "components"
	KeySoftware    = "software_lines"
	KeyDevices     = "device_lines"
	KeyLabs        = "external_labs"
)

var byKey = func() map[string]Field {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Key] = f
	}
	return m
}()

// Lookup returns the registered field for key.
func Lookup(key string) (Field, bool) {
	f, ok := byKey[key]
	return f, ok
}

// Fields returns the registry in display order.
func Fields() []Field { return fields }
