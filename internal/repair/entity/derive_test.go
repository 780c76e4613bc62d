package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestExpectedTotal_FlaggedLinesOnly(t *testing.T) {
	o := &RepairOrder{
		RepairCost:     dec("100"),
		AdvancePayment: dec("30"),
		SoftwareLines: []SoftwareLine{
			{AddToTotal: true, Software: &Software{Name: "Antivirus", Price: dec("20")}},
		},
		ExternalLabs: []ExternalLab{
			{AddToTotal: false, CustomerCost: dec("15")},
		},
	}
	assert.True(t, o.ComputeExpectedTotal().Equal(dec("90")), "got %s", o.ComputeExpectedTotal())
}

func TestExpectedTotal_AllAddends(t *testing.T) {
	o := &RepairOrder{
		RepairCost:     dec("50"),
		AdvancePayment: dec("10"),
		Discount:       dec("5"),
		WorkType:       &WorkType{Price: dec("25")},
		Components: []Component{
			{AddToTotal: true, ListPrice: dec("12.50")},
			{AddToTotal: false, ListPrice: dec("99")},
		},
		ExternalLabs: []ExternalLab{{AddToTotal: true, CustomerCost: dec("7.50")}},
	}
	// 50 + 12.50 + 7.50 + 25 - 10 - 5
	assert.Equal(t, "80", o.ComputeExpectedTotal().String())
}

func TestDeviceSummary(t *testing.T) {
	o := &RepairOrder{DeviceLines: []DeviceLine{{Name: "Phone A"}, {Name: "Phone B"}}}
	assert.Equal(t, "Phone A, Phone B", o.ComputeDeviceSummary())

	o.DeviceLines = append(o.DeviceLines, DeviceLine{Name: "Tablet C"})
	assert.Equal(t, "Phone A, Phone B (+1 more)", o.ComputeDeviceSummary())

	o.DeviceLines = append(o.DeviceLines, DeviceLine{Name: "Laptop D"})
	assert.Equal(t, "Phone A, Phone B (+2 more)", o.ComputeDeviceSummary())
}

func TestDeviceSummary_Legacy(t *testing.T) {
	id := "x"
	o := &RepairOrder{
		CategoryID: &id, BrandID: &id, ModelID: &id,
		Category: &DeviceCategory{Name: "Smartphone"},
		Brand:    &DeviceBrand{Name: "Apple"},
		Model:    &DeviceModel{Name: "iPhone 13"},
	}
	assert.Equal(t, "Smartphone Apple iPhone 13", o.ComputeDeviceSummary())

	o.Variant = &DeviceVariant{Name: "128GB"}
	assert.Equal(t, "Smartphone Apple iPhone 13 128GB", o.ComputeDeviceSummary())

	assert.Equal(t, "No devices", (&RepairOrder{}).ComputeDeviceSummary())
}

func TestApplyClosingState(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 4, 0, 0, time.UTC)
	o := &RepairOrder{State: &State{Name: "Delivered", IsClosed: true}}

	require.Equal(t, ClosingClosed, o.ApplyClosingState(now))
	require.NotNil(t, o.CloseDate)
	assert.True(t, o.CloseDate.Equal(now))

	// closed -> closed keeps the first date
	o.State = &State{Name: "Archived", IsClosed: true}
	assert.Equal(t, ClosingNone, o.ApplyClosingState(now.Add(48*time.Hour)))
	assert.True(t, o.CloseDate.Equal(now))

	o.State = &State{Name: "In progress"}
	assert.Equal(t, ClosingReopened, o.ApplyClosingState(now))
	assert.Nil(t, o.CloseDate)
}

func TestRenewalDate(t *testing.T) {
	closed := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	o := &RepairOrder{
		SoftwareLines: []SoftwareLine{
			{Software: &Software{Name: "Office", DurationMonths: 3, RenewalRequired: true}},
			{Software: &Software{Name: "Backup", DurationMonths: 12}},
		},
	}
	assert.Nil(t, o.ComputeRenewalDate(), "open orders have no renewal date")

	o.CloseDate = &closed
	got := o.ComputeRenewalDate()
	require.NotNil(t, got)
	assert.Equal(t, DateOnly(closed.AddDate(0, 0, 360)), *got)
	assert.Equal(t, []string{"Office"}, o.RenewalSoftwareNames())

	o.SoftwareLines = nil
	assert.Nil(t, o.ComputeRenewalDate())
}

func TestEstimatedDate(t *testing.T) {
	open := time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC)
	o := &RepairOrder{OpenDate: open}
	assert.Nil(t, o.ComputeEstimatedDate())

	o.WorkType = &WorkType{EstimatedDays: 5}
	got := o.ComputeEstimatedDate()
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 5, 6, 0, 0, 0, 0, time.UTC), *got)
}

func TestValidateDevices(t *testing.T) {
	assert.Error(t, (&RepairOrder{}).ValidateDevices())
	assert.NoError(t, (&RepairOrder{DeviceLines: []DeviceLine{{Name: "x"}}}).ValidateDevices())
}

func TestInventoryItemName(t *testing.T) {
	item := &InventoryItem{
		SerialNumber: "ABC123",
		Category:     &DeviceCategory{Name: "Smartphone"},
		Brand:        &DeviceBrand{Name: "Apple"},
		Model:        &DeviceModel{Name: "iPhone 13"},
	}
	assert.Equal(t, "Smartphone - Apple - iPhone 13 - S/N: ABC123", item.ComputeName())
	assert.Equal(t, "Smartphone Apple iPhone 13 (S/N: ABC123)", LineName(item))
	assert.Equal(t, "New Inventory Item", (&InventoryItem{}).ComputeName())
}

func TestCredentialServiceLabel(t *testing.T) {
	assert.Equal(t, "iCloud", (&Credential{ServiceType: ServiceICloud}).ServiceLabel())
	assert.Equal(t, "Other (Dropbox)", (&Credential{ServiceType: ServiceOther, ServiceOther: "Dropbox"}).ServiceLabel())
}
