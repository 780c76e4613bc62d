package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
	"github.com/bitfantasy/nimo-repair/internal/repair/service"
	"github.com/bitfantasy/nimo-repair/internal/repair/testutil"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

func TestInventory_CreateRejectsDuplicateSerial(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	req := service.InventoryItemRequest{BrandID: f.cat.Brand.ID, ModelID: f.cat.Model.ID, SerialNumber: "SN-100"}

	item, err := f.svcs.Inventory.Create(ctx, req, tech)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.CategoryID != f.cat.Category.ID {
		t.Errorf("Expected category taken from the model")
	}
	if item.Status != entity.InventoryAvailable || item.CheckedInBy != tech.ID {
		t.Errorf("Unexpected new item %+v", item)
	}

	_, err = f.svcs.Inventory.Create(ctx, req, tech)
	if !apperr.Is(err, apperr.ErrValidation) || !strings.Contains(err.Error(), "SN-100") {
		t.Errorf("Expected duplicate serial validation error, got %v", err)
	}

	req.Status = entity.InventoryInRepair
	req.SerialNumber = "SN-101"
	if _, err := f.svcs.Inventory.Create(ctx, req, tech); !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected new items to be available only, got %v", err)
	}
}

func TestInventory_HeldItemIsLocked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	item := testutil.SeedItem(t, f.db, f.cat, "SN-001", nil)
	f.createOrder(t, item)

	if err := f.svcs.Inventory.Archive(ctx, item.ID); !apperr.Is(err, apperr.ErrOperation) {
		t.Errorf("Expected held item not to be archived, got %v", err)
	}
	_, err := f.svcs.Inventory.Update(ctx, item.ID, service.InventoryItemRequest{
		BrandID: f.cat.Brand.ID, ModelID: f.cat.Model.ID, SerialNumber: "SN-001", Status: entity.InventoryReturned,
	})
	if !apperr.Is(err, apperr.ErrOperation) {
		t.Errorf("Expected held item status to be locked, got %v", err)
	}
}

// An edit that read the item before an order took it must not hand the item
// back.
func TestInventory_StaleSaveKeepsHolder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	repos := repository.NewRepositories(f.db)
	item := testutil.SeedItem(t, f.db, f.cat, "SN-001", nil)

	stale, err := repos.Inventory.FindByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	o := f.createOrder(t, item)

	stale.Notes = "edited"
	if err := repos.Inventory.Update(ctx, stale); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repos.Inventory.FindByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Status != entity.InventoryInRepair || got.RepairOrderID == nil || *got.RepairOrderID != o.ID {
		t.Errorf("Expected item still held by %s, got status=%s holder=%v", o.ID, got.Status, got.RepairOrderID)
	}
	if got.Notes != "edited" {
		t.Errorf("Expected notes to be saved, got %q", got.Notes)
	}

	if ok, err := repos.Inventory.SetStatus(ctx, item.ID, entity.InventoryReturned); err != nil || ok {
		t.Errorf("Expected status change on a held item to match nothing, got ok=%v err=%v", ok, err)
	}
	if ok, err := repos.Inventory.Archive(ctx, item.ID, f.now); err != nil || ok {
		t.Errorf("Expected archive of a held item to match nothing, got ok=%v err=%v", ok, err)
	}

	// the service path keeps the holder as well
	_, err = f.svcs.Inventory.Update(ctx, item.ID, service.InventoryItemRequest{
		BrandID: f.cat.Brand.ID, ModelID: f.cat.Model.ID, SerialNumber: "SN-001", Notes: "again",
	})
	if err != nil {
		t.Fatalf("Inventory.Update: %v", err)
	}
	if n, _ := repos.Inventory.CountHeldBy(ctx, o.ID); n != 1 {
		t.Errorf("Expected order to hold 1 item after edit, got %d", n)
	}
}

func TestLoaners_StaleSaveKeepsHolder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	repos := repository.NewRepositories(f.db)
	l := testutil.SeedLoaner(t, f.db, "Spare phone", "L-1")
	o := f.createOrder(t, testutil.SeedItem(t, f.db, f.cat, "SN-001", nil))

	stale, err := repos.Loaners.FindByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if _, err := f.svcs.Order.Update(ctx, o.ID, service.OrderPatch{LoanerID: &l.ID}, tech); err != nil {
		t.Fatalf("Order.Update: %v", err)
	}

	stale.Description = "charger included"
	if err := repos.Loaners.Update(ctx, stale); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repos.Loaners.FindByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Status != entity.LoanerAssigned || got.RepairOrderID == nil || *got.RepairOrderID != o.ID {
		t.Errorf("Expected loaner still assigned to %s, got status=%s holder=%v", o.ID, got.Status, got.RepairOrderID)
	}

	if _, err := f.svcs.Inventory.MarkLoanerAvailable(ctx, l.ID); !apperr.Is(err, apperr.ErrOperation) {
		t.Errorf("Expected assigned loaner to stay assigned, got %v", err)
	}
}

func TestInventory_ArchiveFreeItem(t *testing.T) {
	f := setup(t)
	item := testutil.SeedItem(t, f.db, f.cat, "SN-001", nil)
	if err := f.svcs.Inventory.Archive(context.Background(), item.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got, err := f.svcs.Inventory.Get(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Active || got.ArchivedAt == nil {
		t.Errorf("Expected archived item, got active=%v archived_at=%v", got.Active, got.ArchivedAt)
	}
}

func TestInventory_Import(t *testing.T) {
	f := setup(t)
	testutil.SeedItem(t, f.db, f.cat, "SN-EXISTING", nil)

	wb := excelize.NewFile()
	rows := [][]interface{}{
		{"Category", "Brand", "Model", "Variant", "Serial", "Notes"},
		{"Smartphone", "apple", "iPhone 13", "128GB", "SN-200", "scratched"},
		{"", "Apple", "iPhone 13", "", "SN-201", ""},
		{"", "Samsung", "S21", "", "SN-202", ""},
		{"", "", "", "", "", ""},
		{"", "Apple", "iPhone 13", "", "SN-EXISTING", ""},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := wb.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	res, err := f.svcs.Inventory.Import(context.Background(), buf, tech)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Created != 2 {
		t.Errorf("Expected 2 created, got %d", res.Created)
	}
	if len(res.Errors) != 2 || res.Errors[0].Row != 4 || res.Errors[1].Row != 6 {
		t.Fatalf("Unexpected import errors %+v", res.Errors)
	}
	if !strings.Contains(res.Errors[0].Message, "Samsung") {
		t.Errorf("Expected unknown brand message, got %q", res.Errors[0].Message)
	}

	items, total, err := f.svcs.Inventory.List(context.Background(), service.InventoryListRequest{Keyword: "SN-200"}, 1, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || items[0].VariantID == nil || items[0].Notes != "scratched" {
		t.Errorf("Expected imported variant and notes, got %+v", items)
	}
}

func TestInventory_ImportRequiresColumns(t *testing.T) {
	f := setup(t)
	wb := excelize.NewFile()
	_ = wb.SetSheetRow("Sheet1", "A1", &[]interface{}{"Brand", "Model"})
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	if _, err := f.svcs.Inventory.Import(context.Background(), buf, tech); !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected missing serial column error, got %v", err)
	}
}

func TestCases_NumberedFromSequence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.svcs.Inventory.CreateCase(ctx, service.CaseRequest{Colour: "black", CustomerID: strp(f.cat.Customer.ID)}, tech)
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if c.Number != "CASE0001" {
		t.Errorf("Expected CASE0001, got %s", c.Number)
	}
	if _, err := f.svcs.Inventory.CreateCase(ctx, service.CaseRequest{Colour: "purple"}, tech); !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected invalid colour to be rejected, got %v", err)
	}
}

func TestLoaners_Status(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svcs.Inventory.CreateLoaner(ctx, service.LoanerRequest{
		Name: "Spare phone", SerialNumber: "L-1", AestheticCondition: entity.ConditionGood, Status: entity.LoanerAssigned,
	})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected loaners not to be created assigned, got %v", err)
	}

	l, err := f.svcs.Inventory.CreateLoaner(ctx, service.LoanerRequest{
		Name: "Spare phone", SerialNumber: "L-1", AestheticCondition: entity.ConditionGood, Status: entity.LoanerMaintenance,
	})
	if err != nil {
		t.Fatalf("CreateLoaner: %v", err)
	}
	l, err = f.svcs.Inventory.MarkLoanerAvailable(ctx, l.ID)
	if err != nil {
		t.Fatalf("MarkLoanerAvailable: %v", err)
	}
	if l.Status != entity.LoanerAvailable {
		t.Errorf("Expected available, got %s", l.Status)
	}

	_, err = f.svcs.Inventory.UpdateLoaner(ctx, l.ID, service.LoanerRequest{
		Name: "Spare phone", SerialNumber: "L-1", AestheticCondition: entity.ConditionGood, Status: entity.LoanerAssigned,
	})
	if !apperr.Is(err, apperr.ErrOperation) {
		t.Errorf("Expected assigned status to be refused, got %v", err)
	}
}
