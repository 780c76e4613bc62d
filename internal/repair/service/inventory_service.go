package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-repair/internal/config"
	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/events"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

// InventoryService 库存设备、运输箱与备用机
type InventoryService struct {
	repos     *repository.Repositories
	cfg       config.RepairConfig
	logger    *zap.Logger
	publisher events.Publisher
	now       func() time.Time
}

func NewInventoryService(d Deps) *InventoryService {
	d.fill()
	return &InventoryService{
		repos:     d.Repos,
		cfg:       d.Config.Repair,
		logger:    d.Logger.Named("inventory"),
		publisher: d.Publisher,
		now:       d.Now,
	}
}

type InventoryItemRequest struct {
	CategoryID   string  `json:"category_id"`
	BrandID      string  `json:"brand_id" binding:"required"`
	ModelID      string  `json:"model_id" binding:"required"`
	VariantID    *string `json:"variant_id"`
	SerialNumber string  `json:"serial_number" binding:"required"`
	CaseID       *string `json:"case_id"`
	Status       string  `json:"status"`
	Notes        string  `json:"notes"`
}

type InventoryListRequest struct {
	Status     string `form:"status"`
	CategoryID string `form:"category_id"`
	BrandID    string `form:"brand_id"`
	ModelID    string `form:"model_id"`
	CaseID     string `form:"case_id"`
	Keyword    string `form:"keyword"`
	Archived   bool   `form:"archived"`
}

func (s *InventoryService) List(ctx context.Context, req InventoryListRequest, page, size int) ([]entity.InventoryItem, int64, error) {
	return s.repos.Inventory.List(ctx, repository.InventoryListParams{
		Status:     req.Status,
		CategoryID: req.CategoryID,
		BrandID:    req.BrandID,
		ModelID:    req.ModelID,
		CaseID:     req.CaseID,
		Keyword:    req.Keyword,
		Archived:   req.Archived,
		Page:       page,
		Size:       size,
	})
}

func (s *InventoryService) Get(ctx context.Context, id string) (*entity.InventoryItem, error) {
	return s.repos.Inventory.FindByID(ctx, id)
}

// Create 设备入库
func (s *InventoryService) Create(ctx context.Context, req InventoryItemRequest, actor Actor) (*entity.InventoryItem, error) {
	item := &entity.InventoryItem{
		Status:      entity.InventoryAvailable,
		CheckInDate: s.now(),
		CheckedInBy: actor.ID,
		Active:      true,
	}
	if err := s.fill(ctx, s.repos, item, req); err != nil {
		return nil, err
	}
	if req.Status != "" && req.Status != entity.InventoryAvailable {
		return nil, apperr.Validationf("New inventory items must be available.")
	}
	if err := s.checkDuplicate(ctx, s.repos, item, ""); err != nil {
		return nil, err
	}
	if err := s.repos.Inventory.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, duplicateError(item)
		}
		return nil, fmt.Errorf("create inventory item: %w", err)
	}
	s.notify(ctx, item)
	return s.repos.Inventory.FindByID(ctx, item.ID)
}

// Update 修改设备信息。Status may only move between available and returned;
// in_repair belongs to the order that holds the item. The row stays locked
// until the save so an order cannot take the item mid-edit.
func (s *InventoryService) Update(ctx context.Context, id string, req InventoryItemRequest) (*entity.InventoryItem, error) {
	var item *entity.InventoryItem
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Inventory.Lock(ctx, id); err != nil {
			return err
		}
		var err error
		if item, err = tx.Inventory.FindByID(ctx, id); err != nil {
			return err
		}
		if err := s.fill(ctx, tx, item, req); err != nil {
			return err
		}
		if req.Status != "" && req.Status != item.Status {
			if !entity.InventoryStatuses.Valid(req.Status) {
				return apperr.Validationf("invalid status %q", req.Status)
			}
			if req.Status == entity.InventoryInRepair {
				return apperr.Validationf("Add the device to a repair order to put it in repair.")
			}
			ok, err := tx.Inventory.SetStatus(ctx, id, req.Status)
			if err != nil {
				return fmt.Errorf("set inventory status: %w", err)
			}
			if !ok {
				return apperr.Operationf("%s is on a repair order and cannot change status.", item.ComputeName())
			}
			item.Status = req.Status
		}
		if err := s.checkDuplicate(ctx, tx, item, item.ID); err != nil {
			return err
		}
		if err := tx.Inventory.Update(ctx, item); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return duplicateError(item)
			}
			return fmt.Errorf("update inventory item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, item)
	return s.repos.Inventory.FindByID(ctx, id)
}

// Archive hides an item. Items held by an order stay active.
func (s *InventoryService) Archive(ctx context.Context, id string) error {
	item, err := s.repos.Inventory.FindByID(ctx, id)
	if err != nil {
		return err
	}
	now := s.now()
	ok, err := s.repos.Inventory.Archive(ctx, id, now)
	if err != nil {
		return fmt.Errorf("archive inventory item: %w", err)
	}
	if !ok {
		return apperr.Operationf("%s is on a repair order and cannot be archived.", item.Name)
	}
	item.Active = false
	item.ArchivedAt = &now
	s.notify(ctx, item)
	return nil
}

// fill resolves the catalog references of req onto item. The brand must be
// the model's; the category defaults to the model's.
func (s *InventoryService) fill(ctx context.Context, repos *repository.Repositories, item *entity.InventoryItem, req InventoryItemRequest) error {
	model, err := repos.Models.FindByID(ctx, req.ModelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Validationf("Model not found")
		}
		return err
	}
	if model.BrandID != req.BrandID {
		return apperr.Validationf("The selected model does not belong to the selected brand.")
	}
	categoryID := req.CategoryID
	if categoryID == "" && model.CategoryID != nil {
		categoryID = *model.CategoryID
	}
	if categoryID == "" {
		return apperr.Validationf("Please select a category.")
	}
	category, err := repos.Categories.FindByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Validationf("Category not found")
		}
		return err
	}

	item.CategoryID = category.ID
	item.Category = category
	item.BrandID = model.BrandID
	item.Brand = model.Brand
	item.ModelID = model.ID
	item.Model = model
	item.VariantID = nil
	item.Variant = nil
	if req.VariantID != nil && *req.VariantID != "" {
		v, err := repos.Variants.FindByID(ctx, *req.VariantID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Validationf("Variant not found")
			}
			return err
		}
		if v.ModelID != model.ID {
			return apperr.Validationf("The selected variant does not belong to the selected model.")
		}
		item.VariantID = &v.ID
		item.Variant = v
	}
	item.SerialNumber = strings.TrimSpace(req.SerialNumber)
	if item.SerialNumber == "" {
		return apperr.Validationf("Serial number is required.")
	}
	if req.CaseID != nil {
		if item.CaseID, err = checkRef(ctx, func(ctx context.Context, id string) (bool, error) {
			_, err := repos.Cases.FindByID(ctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		}, req.CaseID, "Case"); err != nil {
			return err
		}
		item.Case = nil
	}
	item.Notes = req.Notes
	item.Name = item.ComputeName()
	return nil
}

func (s *InventoryService) checkDuplicate(ctx context.Context, repos *repository.Repositories, item *entity.InventoryItem, excludeID string) error {
	_, err := repos.Inventory.FindDuplicate(ctx, item, excludeID)
	switch {
	case err == nil:
		return duplicateError(item)
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return err
	}
}

func duplicateError(item *entity.InventoryItem) error {
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
	return apperr.Validationf("A device with serial number '%s' for %s already exists in inventory.",
		item.SerialNumber, strings.Join(parts, " "))
}

func (s *InventoryService) notify(ctx context.Context, item *entity.InventoryItem) {
	e := events.Event{Type: events.InventoryMove, Payload: map[string]interface{}{
		"item_id": item.ID,
		"status":  item.Status,
	}}
	if item.RepairOrderID != nil {
		e.OrderID = *item.RepairOrderID
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish inventory event failed", zap.Error(err))
	}
}

// ImportResult summarises an XLSX import.
type ImportResult struct {
	Created int           `json:"created"`
	Errors  []ImportError `json:"errors"`
}

type ImportError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

var importColumns = []string{"category", "brand", "model", "variant", "serial", "notes"}

// Import reads the first sheet of an XLSX workbook (header row, then one item
// per row) and creates every valid item. Rows that fail are reported and
// skipped; the rest are created in one transaction.
func (s *InventoryService) Import(ctx context.Context, r io.Reader, actor Actor) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validationf("Cannot read the workbook: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Validationf("Cannot read sheet %q: %v", sheet, err)
	}
	if len(rows) == 0 {
		return &ImportResult{}, nil
	}
	col := headerIndex(rows[0])
	for _, name := range []string{"brand", "model", "serial"} {
		if _, ok := col[name]; !ok {
			return nil, apperr.Validationf("Missing column %q. Expected columns: %s.", name, strings.Join(importColumns, ", "))
		}
	}

	lookup, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		for i, row := range rows[1:] {
			rowNum := i + 2
			cell := func(name string) string {
				idx, ok := col[name]
				if !ok || idx >= len(row) {
					return ""
				}
				return strings.TrimSpace(row[idx])
			}
			if cell("brand") == "" && cell("model") == "" && cell("serial") == "" {
				continue
			}
			req, err := lookup.request(cell("category"), cell("brand"), cell("model"), cell("variant"))
			if err != nil {
				result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: err.Error()})
				continue
			}
			req.SerialNumber = cell("serial")
			req.Notes = cell("notes")

			item := &entity.InventoryItem{
				Status:      entity.InventoryAvailable,
				CheckInDate: s.now(),
				CheckedInBy: actor.ID,
				Active:      true,
			}
			if err := s.fill(ctx, tx, item, req); err != nil {
				result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: messageOf(err)})
				continue
			}
			if err := s.checkDuplicate(ctx, tx, item, ""); err != nil {
				result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: messageOf(err)})
				continue
			}
			if err := tx.Inventory.Create(ctx, item); err != nil {
				return fmt.Errorf("row %d: %w", rowNum, err)
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("inventory import finished",
		zap.Int("created", result.Created), zap.Int("failed", len(result.Errors)))
	return result, nil
}

func messageOf(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// catalogLookup resolves catalog names case-insensitively.
type catalogLookup struct {
	categories map[string]string
	brands     map[string]string
	models     map[string]string // brandID + "/" + name
	variants   map[string]string // modelID + "/" + name
}

func (s *InventoryService) loadCatalog(ctx context.Context) (*catalogLookup, error) {
	l := &catalogLookup{
		categories: map[string]string{},
		brands:     map[string]string{},
		models:     map[string]string{},
		variants:   map[string]string{},
	}
	categories, err := s.repos.Categories.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		l.categories[strings.ToLower(c.Name)] = c.ID
	}
	brands, err := s.repos.Brands.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range brands {
		l.brands[strings.ToLower(b.Name)] = b.ID
	}
	models, err := s.repos.Models.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		l.models[m.BrandID+"/"+strings.ToLower(m.Name)] = m.ID
	}
	variants, err := s.repos.Variants.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		l.variants[v.ModelID+"/"+strings.ToLower(v.Name)] = v.ID
	}
	return l, nil
}

func (l *catalogLookup) request(category, brand, model, variant string) (InventoryItemRequest, error) {
	var req InventoryItemRequest
	if category != "" {
		id, ok := l.categories[strings.ToLower(category)]
		if !ok {
			return req, fmt.Errorf("unknown category %q", category)
		}
		req.CategoryID = id
	}
	brandID, ok := l.brands[strings.ToLower(brand)]
	if !ok {
		return req, fmt.Errorf("unknown brand %q", brand)
	}
	req.BrandID = brandID
	modelID, ok := l.models[brandID+"/"+strings.ToLower(model)]
	if !ok {
		return req, fmt.Errorf("unknown model %q for brand %q", model, brand)
	}
	req.ModelID = modelID
	if variant != "" {
		id, ok := l.variants[modelID+"/"+strings.ToLower(variant)]
		if !ok {
			return req, fmt.Errorf("unknown variant %q for model %q", variant, model)
		}
		req.VariantID = &id
	}
	return req, nil
}

// ---------- Cases ----------

type CaseRequest struct {
	Colour             string  `json:"colour" binding:"required"`
	ColourCustom       string  `json:"colour_custom"`
	CornerColour       string  `json:"corner_colour"`
	CornerColourCustom string  `json:"corner_colour_custom"`
	CustomerID         *string `json:"customer_id"`
	Notes              string  `json:"notes"`
}

func (s *InventoryService) ListCases(ctx context.Context, keyword string, page, size int) ([]entity.Case, int64, error) {
	return s.repos.Cases.List(ctx, keyword, page, size)
}

func (s *InventoryService) GetCase(ctx context.Context, id string) (*entity.Case, error) {
	return s.repos.Cases.FindByID(ctx, id)
}

// CreateCase 运输箱登记，编号取自序列
func (s *InventoryService) CreateCase(ctx context.Context, req CaseRequest, actor Actor) (*entity.Case, error) {
	c := &entity.Case{CheckInDate: s.now(), CheckedInBy: actor.ID, Active: true}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := applyCase(ctx, tx, c, req); err != nil {
			return err
		}
		number, err := tx.Sequence.NextByCode(ctx, s.cfg.CaseSequence)
		if err != nil {
			return fmt.Errorf("case number: %w", err)
		}
		c.Number = number
		return tx.Cases.Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Cases.FindByID(ctx, c.ID)
}

func (s *InventoryService) UpdateCase(ctx context.Context, id string, req CaseRequest) (*entity.Case, error) {
	c, err := s.repos.Cases.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyCase(ctx, s.repos, c, req); err != nil {
		return nil, err
	}
	if err := s.repos.Cases.Update(ctx, c); err != nil {
		return nil, err
	}
	return s.repos.Cases.FindByID(ctx, id)
}

func (s *InventoryService) ArchiveCase(ctx context.Context, id string) error {
	c, err := s.repos.Cases.FindByID(ctx, id)
	if err != nil {
		return err
	}
	c.Active = false
	return s.repos.Cases.Update(ctx, c)
}

func applyCase(ctx context.Context, repos *repository.Repositories, c *entity.Case, req CaseRequest) error {
	if !entity.CaseColours.Valid(req.Colour) {
		return apperr.Validationf("invalid case colour %q", req.Colour)
	}
	if req.CornerColour != "" && !entity.CornerColours.Valid(req.CornerColour) {
		return apperr.Validationf("invalid corner colour %q", req.CornerColour)
	}
	var err error
	if c.CustomerID, err = checkRef(ctx, repos.Customers.Exists, req.CustomerID, "Customer"); err != nil {
		return err
	}
	c.Customer = nil
	c.Colour = req.Colour
	c.ColourCustom = req.ColourCustom
	c.CornerColour = req.CornerColour
	c.CornerColourCustom = req.CornerColourCustom
	c.Notes = req.Notes
	return nil
}

// ---------- Loaners ----------

type LoanerRequest struct {
	Name               string `json:"name" binding:"required"`
	SerialNumber       string `json:"serial_number" binding:"required"`
	AestheticCondition string `json:"aesthetic_condition" binding:"required"`
	Description        string `json:"description"`
	Status             string `json:"status"`
}

func (s *InventoryService) ListLoaners(ctx context.Context, keyword string, page, size int) ([]entity.LoanerDevice, int64, error) {
	return s.repos.Loaners.List(ctx, keyword, page, size)
}

func (s *InventoryService) GetLoaner(ctx context.Context, id string) (*entity.LoanerDevice, error) {
	return s.repos.Loaners.FindByID(ctx, id)
}

func (s *InventoryService) CreateLoaner(ctx context.Context, req LoanerRequest) (*entity.LoanerDevice, error) {
	l := &entity.LoanerDevice{Status: entity.LoanerAvailable}
	if err := applyLoaner(l, req); err != nil {
		return nil, err
	}
	if l.Status == entity.LoanerAssigned {
		return nil, apperr.Validationf("Assign the loaner from a repair order.")
	}
	if err := s.repos.Loaners.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateLoaner edits a loaner. Assigned loaners keep their status.
func (s *InventoryService) UpdateLoaner(ctx context.Context, id string, req LoanerRequest) (*entity.LoanerDevice, error) {
	var l *entity.LoanerDevice
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Loaners.Lock(ctx, id); err != nil {
			return err
		}
		var err error
		if l, err = tx.Loaners.FindByID(ctx, id); err != nil {
			return err
		}
		status := l.Status
		if err := applyLoaner(l, req); err != nil {
			return err
		}
		if l.Status != status {
			if status == entity.LoanerAssigned || l.Status == entity.LoanerAssigned {
				return apperr.Operationf("The loaner status follows its repair order.")
			}
			if err := s.setLoanerStatus(ctx, tx, l); err != nil {
				return err
			}
		}
		return tx.Loaners.Update(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// MarkLoanerAvailable brings a loaner back from maintenance.
func (s *InventoryService) MarkLoanerAvailable(ctx context.Context, id string) (*entity.LoanerDevice, error) {
	l, err := s.repos.Loaners.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.Status = entity.LoanerAvailable
	if err := s.setLoanerStatus(ctx, s.repos, l); err != nil {
		return nil, err
	}
	return s.repos.Loaners.FindByID(ctx, id)
}

func (s *InventoryService) setLoanerStatus(ctx context.Context, repos *repository.Repositories, l *entity.LoanerDevice) error {
	ok, err := repos.Loaners.SetStatus(ctx, l.ID, l.Status)
	if err != nil {
		return fmt.Errorf("set loaner status: %w", err)
	}
	if !ok {
		return apperr.Operationf("%s is assigned to a repair order.", l.DisplayName())
	}
	return nil
}

func applyLoaner(l *entity.LoanerDevice, req LoanerRequest) error {
	if !entity.AestheticConditions.Valid(req.AestheticCondition) {
		return apperr.Validationf("invalid aesthetic condition %q", req.AestheticCondition)
	}
	if req.Status != "" {
		if !entity.LoanerStatuses.Valid(req.Status) {
			return apperr.Validationf("invalid status %q", req.Status)
		}
		l.Status = req.Status
	}
	l.Name = strings.TrimSpace(req.Name)
	l.SerialNumber = strings.TrimSpace(req.SerialNumber)
	l.AestheticCondition = req.AestheticCondition
	l.Description = req.Description
	return nil
}
