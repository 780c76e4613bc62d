package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ClosingTransition is the effect of the current state on the close date.
type ClosingTransition int

const (
	ClosingNone ClosingTransition = iota
	ClosingClosed
	ClosingReopened
)

// IsClosed reports whether the loaded state is flagged closed.
func (o *RepairOrder) IsClosed() bool {
	return o.State != nil && o.State.IsClosed
}

// ApplyClosingState keeps CloseDate set exactly while the state is closed.
// A closed order moving to another closed state keeps its original date.
func (o *RepairOrder) ApplyClosingState(now time.Time) ClosingTransition {
	closed := o.IsClosed()
	switch {
	case closed && o.CloseDate == nil:
		t := now
		o.CloseDate = &t
		return ClosingClosed
	case !closed && o.CloseDate != nil:
		o.CloseDate = nil
		return ClosingReopened
	}
	return ClosingNone
}

// Recompute refreshes every stored derived field from the loaded relations.
// ApplyClosingState must run first so the renewal date sees the close date.
func (o *RepairOrder) Recompute() {
	o.DeviceCount = len(o.DeviceLines)
	o.DeviceSummary = o.ComputeDeviceSummary()
	o.EstimatedDate = o.ComputeEstimatedDate()
	o.ExpectedTotal = o.ComputeExpectedTotal()
	o.RenewalDate = o.ComputeRenewalDate()
	o.RenewalSoftware = strings.Join(o.RenewalSoftwareNames(), ", ")
}

// ComputeExpectedTotal = repair cost + flagged software, lab and component
// prices + work type price - advance payment - discount.
func (o *RepairOrder) ComputeExpectedTotal() decimal.Decimal {
	total := o.RepairCost
	for _, l := range o.SoftwareLines {
		if l.AddToTotal && l.Software != nil {
			total = total.Add(l.Software.Price)
		}
	}
	for _, l := range o.ExternalLabs {
		if l.AddToTotal {
			total = total.Add(l.CustomerCost)
		}
	}
	for _, c := range o.Components {
		if c.AddToTotal {
			total = total.Add(c.ListPrice)
		}
	}
	if o.WorkType != nil {
		total = total.Add(o.WorkType.Price)
	}
	return total.Sub(o.AdvancePayment).Sub(o.Discount)
}

// ComputeEstimatedDate is the open date plus the work type's estimated days.
func (o *RepairOrder) ComputeEstimatedDate() *time.Time {
	if o.WorkType == nil || o.WorkType.EstimatedDays <= 0 || o.OpenDate.IsZero() {
		return nil
	}
	d := DateOnly(o.OpenDate).AddDate(0, 0, o.WorkType.EstimatedDays)
	return &d
}

// ComputeRenewalDate is close date + 30 days per month of the longest
// software licence; nil while open or without software.
func (o *RepairOrder) ComputeRenewalDate() *time.Time {
	if o.CloseDate == nil || len(o.SoftwareLines) == 0 {
		return nil
	}
	months := 0
	for _, l := range o.SoftwareLines {
		if l.Software != nil && l.Software.DurationMonths > months {
			months = l.Software.DurationMonths
		}
	}
	d := DateOnly(o.CloseDate.AddDate(0, 0, months*30))
	return &d
}

// RenewalSoftwareNames lists software that requires renewal.
func (o *RepairOrder) RenewalSoftwareNames() []string {
	var names []string
	for _, l := range o.SoftwareLines {
		if l.Software != nil && l.Software.RenewalRequired {
			names = append(names, l.Software.Name)
		}
	}
	return names
}

// RenewalRevenue sums the price of software that requires renewal.
func (o *RepairOrder) RenewalRevenue() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range o.SoftwareLines {
		if l.Software != nil && l.Software.RenewalRequired {
			sum = sum.Add(l.Software.Price)
		}
	}
	return sum
}

// ComputeDeviceSummary names the first two devices and counts the rest.
func (o *RepairOrder) ComputeDeviceSummary() string {
	if len(o.DeviceLines) > 0 {
		names := make([]string, 0, len(o.DeviceLines))
		for _, l := range o.DeviceLines {
			names = append(names, l.Name)
		}
		if len(names) > 2 {
			return fmt.Sprintf("%s (+%d more)", strings.Join(names[:2], ", "), len(names)-2)
		}
		return strings.Join(names, ", ")
	}
	if o.HasLegacyDevice() && o.Category != nil && o.Brand != nil && o.Model != nil {
		parts := []string{o.Category.Name, o.Brand.Name, o.Model.Name}
		if o.Variant != nil {
			parts = append(parts, o.Variant.Name)
		}
		return strings.Join(parts, " ")
	}
	return "No devices"
}

// HasLegacyDevice reports whether the full legacy device triple is set.
func (o *RepairOrder) HasLegacyDevice() bool {
	return o.CategoryID != nil && o.BrandID != nil && o.ModelID != nil
}

// ValidateDevices requires at least one device line or the legacy triple.
func (o *RepairOrder) ValidateDevices() error {
	if len(o.DeviceLines) == 0 && !o.HasLegacyDevice() {
		return fmt.Errorf("please add at least one device to the repair order")
	}
	return nil
}

// LineName builds "Category Brand Model Variant (S/N: xxx)" for a device line.
func LineName(item *InventoryItem) string {
	var parts []string
	if item.Category != nil {
		parts = append(parts, item.Category.Name)
	}
	if item.Brand != nil {
		parts = append(parts, item.Brand.Name)
	}
	if item.Model != nil {
		parts = append(parts, item.Model.Name)
	}
	if item.Variant != nil {
		parts = append(parts, item.Variant.Name)
	}
	name := strings.Join(parts, " ")
	if item.SerialNumber != "" {
		name += " (S/N: " + item.SerialNumber + ")"
	}
	return name
}
