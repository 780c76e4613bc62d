package entity

// Selection maps stored values to display labels.
type Selection map[string]string

// Label returns the display label of v, or v itself when unknown.
func (s Selection) Label(v string) string {
	if l, ok := s[v]; ok {
		return l
	}
	return v
}

// Valid reports whether v is one of the selection values.
func (s Selection) Valid(v string) bool {
	_, ok := s[v]
	return ok
}

// AestheticCondition 外观状况
const (
	ConditionNew     = "new"
	ConditionGood    = "good"
	ConditionUsed    = "used"
	ConditionDamaged = "damaged"
)

var AestheticConditions = Selection{
	ConditionNew:     "New",
	ConditionGood:    "Good",
	ConditionUsed:    "Used",
	ConditionDamaged: "Damaged",
}

// InventoryStatus 库存设备状态
const (
	InventoryAvailable = "available"
	InventoryInRepair  = "in_repair"
	InventoryReturned  = "returned"
)

var InventoryStatuses = Selection{
	InventoryAvailable: "Available",
	InventoryInRepair:  "In Repair",
	InventoryReturned:  "Returned to Customer",
}

// LoanerStatus 备用机状态
const (
	LoanerAvailable   = "available"
	LoanerAssigned    = "assigned"
	LoanerMaintenance = "maintenance"
)

var LoanerStatuses = Selection{
	LoanerAvailable:   "Available",
	LoanerAssigned:    "Assigned",
	LoanerMaintenance: "In Maintenance",
}

// CredentialService 账号服务类型
const (
	ServiceICloud = "icloud"
	ServiceGmail  = "gmail"
	ServiceMail   = "mail"
	ServiceOther  = "other"
)

var CredentialServices = Selection{
	ServiceICloud: "iCloud",
	ServiceGmail:  "Gmail",
	ServiceMail:   "Mail",
	ServiceOther:  "Other",
}

// AccessoryKind 客户留下的配件
const (
	AccessoryPowerAdapter = "power_adapter"
	AccessoryCover        = "cover"
	AccessoryBag          = "bag"
	AccessorySIM          = "sim"
	AccessoryOther        = "other"
)

var AccessoryKinds = Selection{
	AccessoryPowerAdapter: "Power Adapter",
	AccessoryCover:        "Cover",
	AccessoryBag:          "Bag",
	AccessorySIM:          "SIM",
	AccessoryOther:        "Other",
}

const (
	SenderCustomer   = "customer"
	SenderTechnician = "technician"
)

var ChatSenders = Selection{
	SenderCustomer:   "Customer",
	SenderTechnician: "Technician",
}

var CaseColours = Selection{
	"aluminium": "Aluminium",
	"black":     "Black",
	"custom":    "Custom",
}

var CornerColours = Selection{
	"yellow": "Yellow",
	"red":    "Red",
	"blue":   "Blue",
	"black":  "Black",
	"custom": "Custom",
}

// SoftwareDurations are the allowed licence lengths in months.
var SoftwareDurations = map[int]string{
	1:  "1 Month",
	3:  "3 Months",
	6:  "6 Months",
	12: "12 Months",
	24: "24 Months",
}
