// Package assign keeps single-borrower resources consistent with the record
// that borrows them.
//
// A resource is borrowed exactly when its holder column is set. Every
// transition goes through one conditional UPDATE so two borrowers racing for
// the same row cannot both win.
package assign

import (
	"context"

	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

// Resource describes a table of borrowable rows.
type Resource struct {
	Name      string
	Table     string
	StatusCol string
	HolderCol string
	Available string
	Borrowed  string
}

var (
	// InventoryItems are borrowed by repair order device lines.
	InventoryItems = Resource{
		Name:      "Inventory item",
		Table:     "repair_inventory_items",
		StatusCol: "status",
		HolderCol: "repair_order_id",
		Available: "available",
		Borrowed:  "in_repair",
	}

	// Loaners are borrowed by repair orders.
	Loaners = Resource{
		Name:      "Loaner device",
		Table:     "repair_loaner_devices",
		StatusCol: "status",
		HolderCol: "repair_order_id",
		Available: "available",
		Borrowed:  "assigned",
	}
)

// Assign marks id as borrowed by holderID. It fails with a validation error
// when the row is missing or not available.
func Assign(ctx context.Context, tx *gorm.DB, res Resource, id, holderID string) error {
	result := tx.WithContext(ctx).Table(res.Table).
		Where("id = ? AND "+res.StatusCol+" = ?", id, res.Available).
		Updates(map[string]interface{}{
			res.StatusCol: res.Borrowed,
			res.HolderCol: holderID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.Validationf("%s is not available", res.Name)
	}
	return nil
}

// Release returns id to the available pool. Releasing a row that is not held
// is a no-op.
func Release(ctx context.Context, tx *gorm.DB, res Resource, id string) error {
	return tx.WithContext(ctx).Table(res.Table).
		Where("id = ? AND "+res.StatusCol+" = ?", id, res.Borrowed).
		Updates(map[string]interface{}{
			res.StatusCol: res.Available,
			res.HolderCol: gorm.Expr("NULL"),
		}).Error
}

// Reassign releases oldID and assigns newID to holderID. Either id may be
// empty. Nothing happens when both are equal.
func Reassign(ctx context.Context, tx *gorm.DB, res Resource, oldID, newID, holderID string) error {
	if oldID == newID {
		return nil
	}
	if oldID != "" {
		if err := Release(ctx, tx, res, oldID); err != nil {
			return err
		}
	}
	if newID != "" {
		return Assign(ctx, tx, res, newID, holderID)
	}
	return nil
}

// HeldBy returns the ids of res currently held by holderID.
func HeldBy(ctx context.Context, tx *gorm.DB, res Resource, holderID string) ([]string, error) {
	var ids []string
	err := tx.WithContext(ctx).Table(res.Table).
		Where(res.HolderCol+" = ? AND "+res.StatusCol+" = ?", holderID, res.Borrowed).
		Pluck("id", &ids).Error
	return ids, err
}
