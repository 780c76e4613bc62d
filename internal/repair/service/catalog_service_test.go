package service_test

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/service"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

func TestTerms_SingleDefault(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	terms := f.svcs.Catalog.Terms

	_, err := terms.Create(ctx, &entity.Term{Title: "Express", IsDefault: true})
	if err != service.ErrMultipleDefaultTerms {
		t.Fatalf("Expected ErrMultipleDefaultTerms, got %v", err)
	}

	express, err := terms.Create(ctx, &entity.Term{Title: "Express"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// the current default can be saved again as default
	if _, err := terms.Update(ctx, f.cat.DefaultTerm.ID, &entity.Term{Title: "Standard", IsDefault: true}); err != nil {
		t.Fatalf("Update default: %v", err)
	}
	if _, err := terms.Update(ctx, express.ID, &entity.Term{Title: "Express", IsDefault: true}); !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestModels_RequireExistingBrand(t *testing.T) {
	f := setup(t)
	models := f.svcs.Catalog.Models

	_, err := models.Create(context.Background(), &entity.DeviceModel{Name: "Pixel 8", BrandID: "00000000-0000-0000-0000-000000000000"})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("Expected validation error for unknown brand, got %v", err)
	}
	_, err = models.Create(context.Background(), &entity.DeviceModel{Name: "iPhone 13", BrandID: f.cat.Brand.ID})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected duplicate model to be rejected, got %v", err)
	}
	m, err := models.Create(context.Background(), &entity.DeviceModel{Name: "iPhone 14", BrandID: f.cat.Brand.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.ID == "" {
		t.Error("Expected an id")
	}
}

func TestSoftware_RenewalNeedsDuration(t *testing.T) {
	f := setup(t)
	_, err := f.svcs.Catalog.Software.Create(context.Background(), &entity.Software{Name: "Backup", RenewalRequired: true, DurationMonths: 5})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error for duration 5, got %v", err)
	}
}

func TestCatalog_DeleteInUseAndMissing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.svcs.Catalog.Brands.Delete(ctx, f.cat.Brand.ID); !apperr.Is(err, apperr.ErrOperation) {
		t.Errorf("Expected brand with models to be in use, got %v", err)
	}
	if err := f.svcs.Catalog.Colors.Delete(ctx, "00000000-0000-0000-0000-000000000000"); !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
	if _, err := f.svcs.Catalog.Categories.Get(ctx, "00000000-0000-0000-0000-000000000000"); !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}
