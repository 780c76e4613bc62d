package audit

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
)

// Item is an id-keyed display name captured at snapshot time, so removed
// rows can still be named after they are gone.
type Item struct {
	ID   string
	Name string
}

type SoftwareItem struct {
	ID         string
	Name       string
	AddToTotal bool
}

// Snapshot is the part of an order the audit hooks compare.
type Snapshot struct {
	Touched       map[string]bool
	Fields        map[string]string
	ExpectedTotal decimal.Decimal
	StateName     string
	CloseDate     *time.Time
	Loaner        Item
	Credentials   []entity.Credential
	Accessories   []Item
	Components    []Item
	Software      []SoftwareItem
	Devices       []Item
}

// Take captures o for the touched keys. Relations used for display names
// must be loaded.
func Take(o *entity.RepairOrder, touched []string) *Snapshot {
	s := &Snapshot{
		Touched:       make(map[string]bool, len(touched)),
		Fields:        make(map[string]string),
		ExpectedTotal: o.ExpectedTotal,
		CloseDate:     o.CloseDate,
	}
	if o.State != nil {
		s.StateName = o.State.Name
	}
	for _, k := range touched {
		if Excluded[k] {
			continue
		}
		s.Touched[k] = true
		if f, ok := Lookup(k); ok {
			s.Fields[k] = f.Extract(o)
		}
	}
	if o.LoanerID != nil {
		s.Loaner = Item{ID: *o.LoanerID}
		if o.Loaner != nil {
			s.Loaner.Name = o.Loaner.DisplayName()
		}
	}
	s.Credentials = append(s.Credentials, o.Credentials...)
	for i := range o.Accessories {
		a := &o.Accessories[i]
		s.Accessories = append(s.Accessories, Item{ID: a.ID, Name: a.DisplayName()})
	}
	for i := range o.Components {
		c := &o.Components[i]
		s.Components = append(s.Components, Item{ID: c.ID, Name: c.Product.DisplayName()})
	}
	for i := range o.SoftwareLines {
		l := &o.SoftwareLines[i]
		s.Software = append(s.Software, SoftwareItem{ID: l.ID, Name: l.Name(), AddToTotal: l.AddToTotal})
	}
	for _, l := range o.DeviceLines {
		s.Devices = append(s.Devices, Item{ID: l.ID, Name: l.Name})
	}
	return s
}

func index(items []Item) map[string]string {
	m := make(map[string]string, len(items))
	for _, it := range items {
		m[it.ID] = it.Name
	}
	return m
}
