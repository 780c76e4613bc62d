package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

// Record is a pointer to a catalog entity.
type Record[T any] interface {
	*T
	GetID() string
	SetID(id string)
}

// CatalogService 基础数据通用服务
type CatalogService[T any, P Record[T]] struct {
	repo     *repository.CatalogRepository[T]
	validate func(ctx context.Context, item P) error
	label    string
	conflict string
}

func NewCatalogService[T any, P Record[T]](repo *repository.CatalogRepository[T], label string,
	validate func(ctx context.Context, item P) error) *CatalogService[T, P] {
	return &CatalogService[T, P]{repo: repo, label: label, validate: validate}
}

// OnConflict sets the message returned when a unique index rejects a write.
func (s *CatalogService[T, P]) OnConflict(msg string) *CatalogService[T, P] {
	s.conflict = msg
	return s
}

// Label names the record type in messages.
func (s *CatalogService[T, P]) Label() string { return s.label }

func (s *CatalogService[T, P]) List(ctx context.Context, keyword string, page, size int) ([]T, int64, error) {
	return s.repo.List(ctx, keyword, page, size)
}

func (s *CatalogService[T, P]) All(ctx context.Context) ([]T, error) {
	return s.repo.All(ctx)
}

func (s *CatalogService[T, P]) Get(ctx context.Context, id string) (*T, error) {
	item, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFoundf("%s not found", s.label)
	}
	return item, err
}

func (s *CatalogService[T, P]) Create(ctx context.Context, item *T) (*T, error) {
	P(item).SetID("")
	if s.validate != nil {
		if err := s.validate(ctx, P(item)); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, s.mapErr(err)
	}
	return s.repo.FindByID(ctx, P(item).GetID())
}

// Update replaces every column of the record.
func (s *CatalogService[T, P]) Update(ctx context.Context, id string, item *T) (*T, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	P(item).SetID(id)
	if s.validate != nil {
		if err := s.validate(ctx, P(item)); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, s.mapErr(err)
	}
	return s.repo.FindByID(ctx, id)
}

func (s *CatalogService[T, P]) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFoundf("%s not found", s.label)
	case errors.Is(err, repository.ErrInUse):
		return apperr.Operationf("%s is still used and cannot be deleted.", s.label)
	}
	return err
}

func (s *CatalogService[T, P]) mapErr(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		if s.conflict != "" {
			return apperr.Validationf("%s", s.conflict)
		}
		return apperr.Validationf("A %s with the same name already exists.", strings.ToLower(s.label))
	}
	if errors.Is(err, repository.ErrInUse) {
		return apperr.Validationf("%s refers to a record that does not exist.", s.label)
	}
	return err
}

// ErrMultipleDefaultTerms is returned when a second term is flagged default.
var ErrMultipleDefaultTerms = apperr.Validationf("Only one default term can exist at a time!")

// CatalogServices 基础数据服务集合
type CatalogServices struct {
	Categories   *CatalogService[entity.DeviceCategory, *entity.DeviceCategory]
	Brands       *CatalogService[entity.DeviceBrand, *entity.DeviceBrand]
	Models       *CatalogService[entity.DeviceModel, *entity.DeviceModel]
	Variants     *CatalogService[entity.DeviceVariant, *entity.DeviceVariant]
	Colors       *CatalogService[entity.DeviceColor, *entity.DeviceColor]
	WorkTypes    *CatalogService[entity.WorkType, *entity.WorkType]
	Software     *CatalogService[entity.Software, *entity.Software]
	Terms        *CatalogService[entity.Term, *entity.Term]
	PublicStates *CatalogService[entity.PublicState, *entity.PublicState]
	States       *CatalogService[entity.State, *entity.State]
	LabPartners  *CatalogService[entity.LabPartner, *entity.LabPartner]
	Products     *CatalogService[entity.Product, *entity.Product]
	Customers    *CatalogService[entity.Customer, *entity.Customer]
}

func NewCatalogServices(repos *repository.Repositories) *CatalogServices {
	return &CatalogServices{
		Categories: NewCatalogService(repos.Categories, "Category", requireName(func(c *entity.DeviceCategory) string { return c.Name })),
		Brands:     NewCatalogService(repos.Brands, "Brand", requireName(func(b *entity.DeviceBrand) string { return b.Name })),
		Models: NewCatalogService(repos.Models, "Model", func(ctx context.Context, m *entity.DeviceModel) error {
			if strings.TrimSpace(m.Name) == "" {
				return apperr.Validationf("Name is required.")
			}
			if err := mustExist(ctx, repos.Brands.Exists, m.BrandID, "Brand"); err != nil {
				return err
			}
			if m.CategoryID != nil && *m.CategoryID == "" {
				m.CategoryID = nil
			}
			if m.CategoryID != nil {
				return mustExist(ctx, repos.Categories.Exists, *m.CategoryID, "Category")
			}
			return nil
		}),
		Variants: NewCatalogService(repos.Variants, "Variant", func(ctx context.Context, v *entity.DeviceVariant) error {
			if strings.TrimSpace(v.Name) == "" {
				return apperr.Validationf("Name is required.")
			}
			return mustExist(ctx, repos.Models.Exists, v.ModelID, "Model")
		}),
		Colors: NewCatalogService(repos.Colors, "Color", requireName(func(c *entity.DeviceColor) string { return c.Name })),
		WorkTypes: NewCatalogService(repos.WorkTypes, "Work type", func(ctx context.Context, w *entity.WorkType) error {
			if strings.TrimSpace(w.Name) == "" {
				return apperr.Validationf("Name is required.")
			}
			if w.EstimatedDays < 0 || w.ExtraWorkDays < 0 {
				return apperr.Validationf("Estimated days cannot be negative.")
			}
			if w.Price.LessThan(decimal.Zero) || w.ExtraWorkPrice.LessThan(decimal.Zero) {
				return apperr.Validationf("Prices cannot be negative.")
			}
			return nil
		}),
		Software: NewCatalogService(repos.Software, "Software", func(ctx context.Context, sw *entity.Software) error {
			if strings.TrimSpace(sw.Name) == "" {
				return apperr.Validationf("Name is required.")
			}
			if sw.RenewalRequired {
				if _, ok := entity.SoftwareDurations[sw.DurationMonths]; !ok {
					return apperr.Validationf("Please choose a valid duration for software that requires renewal.")
				}
			}
			return nil
		}),
		Terms: NewCatalogService(repos.Terms.CatalogRepository, "Term", func(ctx context.Context, t *entity.Term) error {
			if strings.TrimSpace(t.Title) == "" {
				return apperr.Validationf("Title is required.")
			}
			if !t.IsDefault {
				return nil
			}
			n, err := repos.Terms.CountDefault(ctx, t.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrMultipleDefaultTerms
			}
			return nil
		}).OnConflict("Only one default term can exist at a time!"),
		PublicStates: NewCatalogService(repos.PublicStates, "Public state", requireName(func(p *entity.PublicState) string { return p.Name })),
		States: NewCatalogService(repos.States.CatalogRepository, "State", func(ctx context.Context, st *entity.State) error {
			if strings.TrimSpace(st.Name) == "" {
				return apperr.Validationf("Name is required.")
			}
			if st.PublicStateID != nil && *st.PublicStateID == "" {
				st.PublicStateID = nil
			}
			if st.PublicStateID != nil {
				return mustExist(ctx, repos.PublicStates.Exists, *st.PublicStateID, "Public state")
			}
			return nil
		}),
		LabPartners: NewCatalogService(repos.LabPartners, "Lab partner", requireName(func(l *entity.LabPartner) string { return l.Name })),
		Products: NewCatalogService(repos.Products, "Product", func(ctx context.Context, p *entity.Product) error {
			if strings.TrimSpace(p.Name) == "" {
				return apperr.Validationf("Name is required.")
			}
			if p.ListPrice.LessThan(decimal.Zero) || p.Cost.LessThan(decimal.Zero) {
				return apperr.Validationf("Prices cannot be negative.")
			}
			return nil
		}),
		Customers: NewCatalogService(repos.Customers, "Customer", requireName(func(c *entity.Customer) string { return c.Name })),
	}
}

func requireName[P any](name func(P) string) func(context.Context, P) error {
	return func(_ context.Context, item P) error {
		if strings.TrimSpace(name(item)) == "" {
			return apperr.Validationf("Name is required.")
		}
		return nil
	}
}

func mustExist(ctx context.Context, exists func(context.Context, string) (bool, error), id, label string) error {
	if id == "" {
		return apperr.Validationf("%s is required.", label)
	}
	ok, err := exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validationf("%s not found", label)
	}
	return nil
}
