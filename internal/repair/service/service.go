package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-repair/internal/config"
	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/events"
	"github.com/bitfantasy/nimo-repair/internal/repair/report"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
	"github.com/bitfantasy/nimo-repair/internal/shared/mailer"
	"github.com/bitfantasy/nimo-repair/internal/shared/storage"
)

// SaleOrderSequence is the sequence code of sale orders created from repairs.
const SaleOrderSequence = "repair.sale_order"

// Actor is the staff member performing an operation.
type Actor struct {
	ID   string
	Name string
}

// Deps are the collaborators shared by the services. Nil optional fields are
// replaced with no-op implementations.
type Deps struct {
	Repos     *repository.Repositories
	Config    *config.Config
	Logger    *zap.Logger
	Redis     *redis.Client
	Publisher events.Publisher
	Mailer    mailer.Sender
	Store     storage.Store
	Renderer  report.Renderer
	Now       func() time.Time
}

func (d *Deps) fill() {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Mailer == nil {
		d.Mailer = mailer.New(config.SMTPConfig{}, d.Logger)
	}
	if d.Store == nil {
		d.Store = storage.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Services 维修服务集合
type Services struct {
	Defaults  *Defaults
	Order     *OrderService
	Inventory *InventoryService
	Catalog   *CatalogServices
	Renewal   *RenewalService
	Public    *PublicService
	Export    *ExportService
}

// NewServices resolves the start-up defaults and wires every service.
func NewServices(ctx context.Context, d Deps) (*Services, error) {
	d.fill()
	defaults, err := ResolveDefaults(ctx, d.Repos, d.Config.Repair)
	if err != nil {
		return nil, err
	}
	if err := d.Repos.Sequence.Ensure(ctx, d.Config.Repair.OrderSequence, d.Config.Repair.OrderPrefix, 5); err != nil {
		return nil, fmt.Errorf("ensure order sequence: %w", err)
	}
	if err := d.Repos.Sequence.Ensure(ctx, d.Config.Repair.CaseSequence, d.Config.Repair.CasePrefix, 4); err != nil {
		return nil, fmt.Errorf("ensure case sequence: %w", err)
	}
	if err := d.Repos.Sequence.Ensure(ctx, SaleOrderSequence, "SO", 5); err != nil {
		return nil, fmt.Errorf("ensure sale order sequence: %w", err)
	}

	order := NewOrderService(d, defaults)
	return &Services{
		Defaults:  defaults,
		Order:     order,
		Inventory: NewInventoryService(d),
		Catalog:   NewCatalogServices(d.Repos),
		Renewal:   NewRenewalService(d),
		Public:    NewPublicService(d),
		Export:    NewExportService(d.Repos, d.Config.Repair),
	}, nil
}

// Defaults are resolved once at start-up.
type Defaults struct {
	InitialState *entity.State
	DefaultTerm  *entity.Term
}

// ResolveDefaults picks the initial state (configured name, else lowest
// sequence) and the default term (configured title, else the flagged one).
// A missing state is not an error here; creating an order fails instead.
func ResolveDefaults(ctx context.Context, repos *repository.Repositories, cfg config.RepairConfig) (*Defaults, error) {
	d := &Defaults{}

	var err error
	if cfg.InitialState != "" {
		d.InitialState, err = repos.States.FindByName(ctx, cfg.InitialState)
		if err != nil {
			return nil, fmt.Errorf("initial state %q: %w", cfg.InitialState, err)
		}
	} else {
		d.InitialState, err = repos.States.FindFirst(ctx)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("initial state: %w", err)
		}
	}

	if cfg.DefaultTerm != "" {
		d.DefaultTerm, err = repos.Terms.FindByTitle(ctx, cfg.DefaultTerm)
		if err != nil {
			return nil, fmt.Errorf("default term %q: %w", cfg.DefaultTerm, err)
		}
	} else {
		d.DefaultTerm, err = repos.Terms.FindDefault(ctx)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("default term: %w", err)
		}
	}
	return d, nil
}
