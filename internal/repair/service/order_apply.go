package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitfantasy/nimo-repair/internal/repair/assign"
	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

// checkRef validates an optional reference. An empty id clears it.
func checkRef(ctx context.Context, exists func(context.Context, string) (bool, error), id *string, label string) (*string, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	ok, err := exists(ctx, *id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Validationf("%s not found", label)
	}
	v := *id
	return &v, nil
}

func refString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// applyScalars copies the scalar and reference fields of p onto o. The loaner
// is reassigned here so the inventory of loaners stays in step with the order.
func (s *OrderService) applyScalars(ctx context.Context, tx *repository.Repositories, o *entity.RepairOrder, p *OrderPatch) error {
	var err error
	if p.CustomerID != nil {
		if o.CustomerID, err = checkRef(ctx, tx.Customers.Exists, p.CustomerID, "Customer"); err != nil {
			return err
		}
		o.Customer = nil
	}
	if p.StateID != nil {
		if *p.StateID == "" {
			return apperr.Validationf("The repair order needs a state.")
		}
		st, err := tx.States.FindByID(ctx, *p.StateID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Validationf("State not found")
			}
			return err
		}
		o.StateID = &st.ID
		o.State = nil
		if p.CustomerStateID == nil {
			o.CustomerStateID = st.PublicStateID
			o.CustomerState = nil
		}
	}
	if p.CustomerStateID != nil {
		if o.CustomerStateID, err = checkRef(ctx, tx.PublicStates.Exists, p.CustomerStateID, "Customer state"); err != nil {
			return err
		}
		o.CustomerState = nil
	}
	if p.AssignedToID != nil {
		o.AssignedToID = *p.AssignedToID
		o.AssignedToName = ""
		if p.AssignedToName != nil {
			o.AssignedToName = *p.AssignedToName
		}
	}
	if p.WorkTypeID != nil {
		if o.WorkTypeID, err = checkRef(ctx, tx.WorkTypes.Exists, p.WorkTypeID, "Work type"); err != nil {
			return err
		}
		o.WorkType = nil
	}
	if p.TermID != nil {
		if o.TermID, err = checkRef(ctx, tx.Terms.Exists, p.TermID, "Term"); err != nil {
			return err
		}
		o.Term = nil
	}

	if p.CategoryID != nil {
		if o.CategoryID, err = checkRef(ctx, tx.Categories.Exists, p.CategoryID, "Category"); err != nil {
			return err
		}
		o.Category = nil
	}
	if p.BrandID != nil {
		if o.BrandID, err = checkRef(ctx, tx.Brands.Exists, p.BrandID, "Brand"); err != nil {
			return err
		}
		o.Brand = nil
	}
	if p.ModelID != nil {
		if o.ModelID, err = checkRef(ctx, tx.Models.Exists, p.ModelID, "Model"); err != nil {
			return err
		}
		o.Model = nil
	}
	if p.VariantID != nil {
		if o.VariantID, err = checkRef(ctx, tx.Variants.Exists, p.VariantID, "Variant"); err != nil {
			return err
		}
		o.Variant = nil
	}
	if p.SerialNumber != nil {
		o.SerialNumber = *p.SerialNumber
	}
	if p.AestheticCondition != nil {
		if *p.AestheticCondition != "" && !entity.AestheticConditions.Valid(*p.AestheticCondition) {
			return apperr.Validationf("invalid aesthetic condition %q", *p.AestheticCondition)
		}
		o.AestheticCondition = *p.AestheticCondition
	}
	if p.VisualDefects != nil {
		o.VisualDefects = *p.VisualDefects
	}
	if p.SIMPIN != nil {
		o.SIMPIN = *p.SIMPIN
	}
	if p.DevicePassword != nil {
		o.DevicePassword = *p.DevicePassword
	}
	if p.ProblemDescription != nil {
		o.ProblemDescription = *p.ProblemDescription
	}
	if p.WorkOperations != nil {
		o.WorkOperations = *p.WorkOperations
	}

	if p.RepairCost != nil {
		o.RepairCost = *p.RepairCost
	}
	if p.AdvancePayment != nil {
		o.AdvancePayment = *p.AdvancePayment
	}
	if p.Discount != nil {
		o.Discount = *p.Discount
	}
	if p.Active != nil {
		o.Active = *p.Active
	}

	if p.LoanerID != nil {
		oldID, newID := refString(o.LoanerID), *p.LoanerID
		if err := assign.Reassign(ctx, tx.DB(), assign.Loaners, oldID, newID, o.ID); err != nil {
			return err
		}
		if newID == "" {
			o.LoanerID = nil
		} else {
			o.LoanerID = &newID
		}
		o.Loaner = nil
	}
	return nil
}

// applyRelations writes the child collections present in p. The order row
// must exist.
func (s *OrderService) applyRelations(ctx context.Context, tx *repository.Repositories, o *entity.RepairOrder, p *OrderPatch, now time.Time) error {
	if p.DeviceLines != nil {
		if err := s.syncDeviceLines(ctx, tx, o, *p.DeviceLines); err != nil {
			return err
		}
	}
	if p.Credentials != nil {
		items, err := buildCredentials(o, *p.Credentials, now)
		if err != nil {
			return err
		}
		if err := tx.Order.ReplaceCredentials(ctx, o.ID, items); err != nil {
			return fmt.Errorf("replace credentials: %w", err)
		}
	}
	if p.Accessories != nil {
		items, err := buildAccessories(o, *p.Accessories)
		if err != nil {
			return err
		}
		if err := tx.Order.ReplaceAccessories(ctx, o.ID, items); err != nil {
			return fmt.Errorf("replace accessories: %w", err)
		}
	}
	if p.ExternalLabs != nil {
		items, err := buildExternalLabs(ctx, tx, o, *p.ExternalLabs)
		if err != nil {
			return err
		}
		if err := tx.Order.ReplaceExternalLabs(ctx, o.ID, items); err != nil {
			return fmt.Errorf("replace external labs: %w", err)
		}
	}
	if p.SoftwareLines != nil {
		items, err := buildSoftwareLines(ctx, tx, o, *p.SoftwareLines)
		if err != nil {
			return err
		}
		if err := tx.Order.ReplaceSoftwareLines(ctx, o.ID, items); err != nil {
			return fmt.Errorf("replace software lines: %w", err)
		}
	}
	if p.Components != nil {
		items, err := buildComponents(ctx, tx, o, *p.Components)
		if err != nil {
			return err
		}
		if err := tx.Order.ReplaceComponents(ctx, o.ID, items); err != nil {
			return fmt.Errorf("replace components: %w", err)
		}
	}
	return nil
}

// syncDeviceLines makes the order's device lines match in. Removed lines
// release their item first. Rebound lines then all give up their old item
// before any of them takes a new one, so items can move along or swap between
// lines of one patch. New lines bind last.
func (s *OrderService) syncDeviceLines(ctx context.Context, tx *repository.Repositories, o *entity.RepairOrder, in []DeviceLineInput) error {
	existing := make(map[string]*entity.DeviceLine, len(o.DeviceLines))
	for i := range o.DeviceLines {
		existing[o.DeviceLines[i].ID] = &o.DeviceLines[i]
	}
	seen := make(map[string]bool, len(in))
	for _, l := range in {
		if l.InventoryItemID == "" {
			return apperr.Validationf("Each device line needs an inventory item.")
		}
		if seen[l.InventoryItemID] {
			return apperr.Validationf("The same device is listed twice.")
		}
		seen[l.InventoryItemID] = true
		if l.AestheticCondition != "" && !entity.AestheticConditions.Valid(l.AestheticCondition) {
			return apperr.Validationf("invalid aesthetic condition %q", l.AestheticCondition)
		}
	}

	keep := make(map[string]bool, len(in))
	for _, l := range in {
		if _, ok := existing[l.ID]; ok {
			keep[l.ID] = true
		}
	}
	db := tx.DB()
	for id, line := range existing {
		if keep[id] {
			continue
		}
		if err := assign.Release(ctx, db, assign.InventoryItems, line.InventoryItemID); err != nil {
			return err
		}
		if err := tx.Order.DeleteDeviceLine(ctx, id); err != nil {
			return fmt.Errorf("delete device line: %w", err)
		}
	}

	type rebind struct {
		line   *entity.DeviceLine
		itemID string
	}
	var rebound []rebind
	for _, l := range in {
		line, ok := existing[l.ID]
		if !ok {
			continue
		}
		line.AestheticCondition = l.AestheticCondition
		line.VisualDefects = l.VisualDefects
		line.InventoryItem = nil
		if line.InventoryItemID == l.InventoryItemID {
			if err := tx.Order.SaveDeviceLine(ctx, line); err != nil {
				return fmt.Errorf("save device line: %w", err)
			}
			continue
		}
		// the line row is recreated below with the same id and sequence;
		// dropping it frees its item for the other lines of this patch
		if err := assign.Release(ctx, db, assign.InventoryItems, line.InventoryItemID); err != nil {
			return err
		}
		if err := tx.Order.DeleteDeviceLine(ctx, line.ID); err != nil {
			return fmt.Errorf("delete device line: %w", err)
		}
		rebound = append(rebound, rebind{line: line, itemID: l.InventoryItemID})
	}
	for _, r := range rebound {
		item, err := s.bindableItem(ctx, tx, r.itemID)
		if err != nil {
			return err
		}
		if err := assign.Assign(ctx, db, assign.InventoryItems, item.ID, o.ID); err != nil {
			return err
		}
		copyItem(r.line, item)
		if err := tx.Order.CreateDeviceLine(ctx, r.line); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperr.Validationf("%s is already on a repair order", r.line.Name)
			}
			return fmt.Errorf("rebind device line: %w", err)
		}
	}

	for _, l := range in {
		if _, ok := existing[l.ID]; ok {
			continue
		}
		item, err := s.bindableItem(ctx, tx, l.InventoryItemID)
		if err != nil {
			return err
		}
		if err := assign.Assign(ctx, db, assign.InventoryItems, item.ID, o.ID); err != nil {
			return err
		}
		seq, err := tx.Order.NextDeviceSequence(ctx, o.ID)
		if err != nil {
			return err
		}
		line := &entity.DeviceLine{
			RepairOrderID:      o.ID,
			Sequence:           seq,
			AestheticCondition: l.AestheticCondition,
			VisualDefects:      l.VisualDefects,
		}
		copyItem(line, item)
		if err := tx.Order.CreateDeviceLine(ctx, line); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperr.Validationf("%s is already on a repair order", line.Name)
			}
			return fmt.Errorf("create device line: %w", err)
		}
	}
	return nil
}

func (s *OrderService) bindableItem(ctx context.Context, tx *repository.Repositories, id string) (*entity.InventoryItem, error) {
	item, err := tx.Inventory.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Validationf("Inventory item not found")
		}
		return nil, err
	}
	if !item.Active {
		return nil, apperr.Validationf("%s is archived", item.Name)
	}
	return item, nil
}

// copyItem snapshots the item identity onto the line.
func copyItem(line *entity.DeviceLine, item *entity.InventoryItem) {
	line.InventoryItemID = item.ID
	line.CategoryID = item.CategoryID
	line.BrandID = item.BrandID
	line.ModelID = item.ModelID
	line.VariantID = item.VariantID
	line.SerialNumber = item.SerialNumber
	line.Name = entity.LineName(item)
}

func buildCredentials(o *entity.RepairOrder, in []CredentialInput, now time.Time) ([]entity.Credential, error) {
	prev := make(map[string]entity.Credential, len(o.Credentials))
	for _, c := range o.Credentials {
		prev[c.ID] = c
	}
	out := make([]entity.Credential, 0, len(in))
	for _, c := range in {
		if !entity.CredentialServices.Valid(c.ServiceType) {
			return nil, apperr.Validationf("invalid service type %q", c.ServiceType)
		}
		if c.ServiceType == entity.ServiceOther && c.ServiceOther == "" {
			return nil, apperr.Validationf("Please name the other service.")
		}
		if strings.TrimSpace(c.Username) == "" {
			return nil, apperr.Validationf("Each credential needs a username.")
		}
		row := entity.Credential{
			RepairOrderID: o.ID,
			ServiceType:   c.ServiceType,
			ServiceOther:  c.ServiceOther,
			Username:      c.Username,
			Password:      c.Password,
			EnteredAt:     now,
		}
		if old, ok := prev[c.ID]; ok {
			row.Base = old.Base
			row.EnteredAt = old.EnteredAt
		}
		if c.ServiceType != entity.ServiceOther {
			row.ServiceOther = ""
		}
		out = append(out, row)
	}
	return out, nil
}

func buildAccessories(o *entity.RepairOrder, in []AccessoryInput) ([]entity.Accessory, error) {
	prev := make(map[string]entity.Base, len(o.Accessories))
	for _, a := range o.Accessories {
		prev[a.ID] = a.Base
	}
	out := make([]entity.Accessory, 0, len(in))
	for _, a := range in {
		if !entity.AccessoryKinds.Valid(a.Kind) {
			return nil, apperr.Validationf("invalid accessory %q", a.Kind)
		}
		if a.AestheticCondition != "" && !entity.AestheticConditions.Valid(a.AestheticCondition) {
			return nil, apperr.Validationf("invalid aesthetic condition %q", a.AestheticCondition)
		}
		row := entity.Accessory{
			RepairOrderID:      o.ID,
			Kind:               a.Kind,
			CustomName:         a.CustomName,
			AestheticCondition: a.AestheticCondition,
		}
		if base, ok := prev[a.ID]; ok {
			row.Base = base
		}
		out = append(out, row)
	}
	return out, nil
}

func buildExternalLabs(ctx context.Context, tx *repository.Repositories, o *entity.RepairOrder, in []ExternalLabInput) ([]entity.ExternalLab, error) {
	prev := make(map[string]entity.Base, len(o.ExternalLabs))
	for _, l := range o.ExternalLabs {
		prev[l.ID] = l.Base
	}
	out := make([]entity.ExternalLab, 0, len(in))
	for _, l := range in {
		ok, err := tx.LabPartners.Exists(ctx, l.LabPartnerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Validationf("Lab partner not found")
		}
		row := entity.ExternalLab{
			RepairOrderID: o.ID,
			LabPartnerID:  l.LabPartnerID,
			Description:   l.Description,
			ExternalCost:  l.ExternalCost,
			CustomerCost:  l.CustomerCost,
			SentAt:        l.SentAt,
			ReturnedAt:    l.ReturnedAt,
			AddToTotal:    boolOr(l.AddToTotal, true),
		}
		if base, ok := prev[l.ID]; ok {
			row.Base = base
		}
		out = append(out, row)
	}
	return out, nil
}

func buildSoftwareLines(ctx context.Context, tx *repository.Repositories, o *entity.RepairOrder, in []SoftwareLineInput) ([]entity.SoftwareLine, error) {
	prev := make(map[string]entity.Base, len(o.SoftwareLines))
	for _, l := range o.SoftwareLines {
		prev[l.ID] = l.Base
	}
	out := make([]entity.SoftwareLine, 0, len(in))
	for _, l := range in {
		ok, err := tx.Software.Exists(ctx, l.SoftwareID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Validationf("Software not found")
		}
		row := entity.SoftwareLine{
			RepairOrderID: o.ID,
			SoftwareID:    l.SoftwareID,
			AddToTotal:    boolOr(l.AddToTotal, true),
		}
		if base, ok := prev[l.ID]; ok {
			row.Base = base
		}
		out = append(out, row)
	}
	return out, nil
}

// buildComponents defaults the list price to the product's.
func buildComponents(ctx context.Context, tx *repository.Repositories, o *entity.RepairOrder, in []ComponentInput) ([]entity.Component, error) {
	prev := make(map[string]entity.Base, len(o.Components))
	for _, c := range o.Components {
		prev[c.ID] = c.Base
	}
	out := make([]entity.Component, 0, len(in))
	for _, c := range in {
		product, err := tx.Products.FindByID(ctx, c.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperr.Validationf("Product not found")
			}
			return nil, err
		}
		listPrice := product.ListPrice
		if c.ListPrice != nil {
			listPrice = *c.ListPrice
		}
		if listPrice.LessThan(decimal.Zero) || c.PurchasePrice.LessThan(decimal.Zero) {
			return nil, apperr.Validationf("Prices cannot be negative.")
		}
		row := entity.Component{
			RepairOrderID: o.ID,
			ProductID:     c.ProductID,
			SupplierName:  c.SupplierName,
			PurchaseDate:  c.PurchaseDate,
			ReceiptDate:   c.ReceiptDate,
			SerialNumber:  c.SerialNumber,
			PurchasePrice: c.PurchasePrice,
			ListPrice:     listPrice,
			AddToTotal:    c.AddToTotal,
		}
		if base, ok := prev[c.ID]; ok {
			row.Base = base
		}
		out = append(out, row)
	}
	return out, nil
}
