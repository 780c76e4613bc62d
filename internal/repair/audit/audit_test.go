package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
)

func ptr(s string) *string { return &s }

func baseOrder() *entity.RepairOrder {
	return &entity.RepairOrder{
		RepairCost:         decimal.NewFromInt(100),
		AestheticCondition: entity.ConditionGood,
		State:              &entity.State{Name: "Received"},
		ExpectedTotal:      decimal.NewFromInt(100),
	}
}

func TestDiff_FieldsRenderLabels(t *testing.T) {
	before := baseOrder()
	after := baseOrder()
	after.AestheticCondition = entity.ConditionDamaged
	after.State = &entity.State{Name: "In progress"}
	after.ProblemDescription = "Screen <broken>"

	touched := []string{"aesthetic_condition", "state_id", "problem_description", "signature"}
	res := Diff(Take(before, touched), Take(after, touched))

	require.Len(t, res.Lines, 3)
	assert.Equal(t, "<strong>State</strong>: Received → <strong>In progress</strong>", res.Lines[0])
	assert.Equal(t, "<strong>Aesthetic Condition</strong>: Good → <strong>Damaged</strong>", res.Lines[1])
	assert.Contains(t, res.Lines[2], "Screen &lt;broken&gt;")
	require.Len(t, res.Fields, 3)
	assert.Equal(t, "aesthetic_condition", res.Fields[1].Key)
}

func TestDiff_UntouchedFieldsIgnored(t *testing.T) {
	before := baseOrder()
	after := baseOrder()
	after.SerialNumber = "changed elsewhere"

	res := Diff(Take(before, []string{"sim_pin"}), Take(after, []string{"sim_pin"}))
	assert.True(t, res.Empty())
}

func TestDiff_TotalDeltaIsOneSignedLine(t *testing.T) {
	before := baseOrder()
	after := baseOrder()
	after.ExpectedTotal = decimal.NewFromInt(120)

	res := Diff(Take(before, nil), Take(after, nil))
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "<strong>Total changed €:</strong> + 20.00", res.Lines[0])

	res = Diff(Take(after, nil), Take(before, nil))
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "<strong>Total changed €:</strong> -20.00", res.Lines[0])
}

func TestDiff_ClosingTransition(t *testing.T) {
	closed := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	before := baseOrder()
	after := baseOrder()
	after.State = &entity.State{Name: "Delivered", IsClosed: true}
	after.CloseDate = &closed

	res := Diff(Take(before, nil), Take(after, nil))
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "State changed to 'Delivered' and closed on 2026-04-02 10:30:00.", res.Lines[0])

	res = Diff(Take(after, nil), Take(before, nil))
	assert.Equal(t, []string{"State reopened. Close date removed."}, res.Lines)
}

func TestDiff_Loaner(t *testing.T) {
	before := baseOrder()
	before.LoanerID = ptr("l1")
	before.Loaner = &entity.LoanerDevice{Name: "Pixel", SerialNumber: "P1"}
	after := baseOrder()
	after.LoanerID = ptr("l2")
	after.Loaner = &entity.LoanerDevice{Name: "iPhone", SerialNumber: "I2"}

	touched := []string{KeyLoaner}
	res := Diff(Take(before, touched), Take(after, touched))
	assert.Equal(t, []string{
		"Loaner assigned: <strong>iPhone (I2)</strong>",
		"Loaner released: <strong>Pixel (P1)</strong>",
	}, res.Lines)
}

func TestDiff_Credentials(t *testing.T) {
	before := baseOrder()
	before.Credentials = []entity.Credential{
		{Base: entity.Base{ID: "c1"}, ServiceType: entity.ServiceGmail, Username: "anna", Password: "x"},
		{Base: entity.Base{ID: "c2"}, ServiceType: entity.ServiceMail, Username: "old"},
	}
	after := baseOrder()
	after.Credentials = []entity.Credential{
		{Base: entity.Base{ID: "c1"}, ServiceType: entity.ServiceOther, ServiceOther: "Dropbox", Username: "anna2", Password: "y"},
		{Base: entity.Base{ID: "c3"}, ServiceType: entity.ServiceICloud, Username: "bob", Password: "pw"},
	}

	touched := []string{KeyCredentials}
	res := Diff(Take(before, touched), Take(after, touched))
	assert.Equal(t, []string{
		"Username changed: <strong>anna → anna2</strong>",
		"Password changed for anna2",
		"Service changed: <strong>Gmail → Other</strong>",
		"Other service changed: <strong> → Dropbox</strong>",
		"Credential added: <strong>bob / pw</strong> for <strong>iCloud</strong>",
		"Credential removed: <strong>old</strong> for <strong>Mail</strong>",
	}, res.Lines)
}

func TestDiff_AccessoriesComponentsSoftwareDevices(t *testing.T) {
	before := baseOrder()
	before.Accessories = []entity.Accessory{
		{Base: entity.Base{ID: "a1"}, Kind: entity.AccessoryBag},
		{Base: entity.Base{ID: "a2"}, Kind: entity.AccessoryOther, CustomName: "Stylus"},
	}
	before.Components = []entity.Component{
		{Base: entity.Base{ID: "k1"}, Product: &entity.Product{Code: "BAT", Name: "Battery"}},
	}
	before.SoftwareLines = []entity.SoftwareLine{
		{Base: entity.Base{ID: "s1"}, AddToTotal: true, Software: &entity.Software{Name: "Office"}},
		{Base: entity.Base{ID: "s2"}, AddToTotal: true, Software: &entity.Software{Name: "Antivirus"}},
	}
	before.DeviceLines = []entity.DeviceLine{{Base: entity.Base{ID: "d1"}, Name: "Phone A"}}

	after := baseOrder()
	after.Accessories = []entity.Accessory{
		{Base: entity.Base{ID: "a2"}, Kind: entity.AccessoryOther, CustomName: "Pen"},
		{Base: entity.Base{ID: "a3"}, Kind: entity.AccessorySIM},
	}
	after.Components = []entity.Component{
		{Base: entity.Base{ID: "k2"}, Product: &entity.Product{Name: "Screen"}},
	}
	after.SoftwareLines = []entity.SoftwareLine{
		{Base: entity.Base{ID: "s1"}, AddToTotal: false, Software: &entity.Software{Name: "Office"}},
		{Base: entity.Base{ID: "s3"}, AddToTotal: true, Software: &entity.Software{Name: "Backup"}},
	}
	after.DeviceLines = []entity.DeviceLine{
		{Base: entity.Base{ID: "d1"}, Name: "Phone A"},
		{Base: entity.Base{ID: "d2"}, Name: "Tablet B"},
	}

	touched := []string{KeyAccessories, KeyComponents, KeySoftware, KeyDevices}
	res := Diff(Take(before, touched), Take(after, touched))
	assert.Equal(t, []string{
		"Accessories added: <strong>SIM</strong>",
		"Accessories removed: <strong>Bag</strong>",
		"Accessory changed: <strong>Stylus → Pen</strong>",
		"Components added: <strong>Screen</strong>",
		"Components removed: <strong>[BAT] Battery</strong>",
		"Software added: <strong>Backup</strong>",
		"Software removed: <strong>Antivirus</strong>",
		"Software <strong>Office</strong> removed from total",
		"Devices added: <strong>Tablet B</strong>",
	}, res.Lines)
	assert.True(t, strings.HasPrefix(res.Body(), "<strong>Changes:</strong><br/>Accessories added"))
}

func TestRegistryExcludesSignature(t *testing.T) {
	_, ok := Lookup("signature")
	assert.False(t, ok)
	for _, f := range Fields() {
		assert.NotEmpty(t, f.Label, f.Key)
		assert.NotNil(t, f.Extract, f.Key)
	}
}

// References render by display name in the field pass, including set and
// cleared ones.
func TestDiff_ReferencesRenderNames(t *testing.T) {
	before := baseOrder()
	after := baseOrder()
	after.Customer = &entity.Customer{Name: "ACME"}
	before.WorkType = &entity.WorkType{Name: "Screen replacement"}

	touched := []string{"customer_id", "work_type_id"}
	res := Diff(Take(before, touched), Take(after, touched))

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "<strong>Customer</strong>: "+empty+" → <strong>ACME</strong>", res.Lines[0])
	assert.Equal(t, "<strong>Work Type</strong>: Screen replacement → <strong>"+empty+"</strong>", res.Lines[1])
}
