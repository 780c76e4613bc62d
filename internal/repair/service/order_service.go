package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/bitfantasy/nimo-repair/internal/config"
	"github.com/bitfantasy/nimo-repair/internal/repair/audit"
	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/events"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
	"github.com/bitfantasy/nimo-repair/internal/shared/qrcode"
	"github.com/bitfantasy/nimo-repair/internal/shared/storage"
)

// ErrDeleteForbidden is returned by every delete attempt.
var ErrDeleteForbidden = apperr.Operationf("Repair jobs cannot be deleted. You can only archive them.")

// journal appends to the order log. Failures are logged and swallowed: the
// write they describe is already committed.
type journal struct {
	repo   *repository.AuditRepository
	logger *zap.Logger
}

func (j journal) append(ctx context.Context, orderID, kind, body string, meta interface{}, actor Actor) {
	e := &entity.AuditEntry{
		OrderID:    orderID,
		Kind:       kind,
		Body:       body,
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
	}
	if meta != nil {
		if b, err := json.Marshal(meta); err == nil {
			e.Metadata = datatypes.JSON(b)
		}
	}
	if err := j.repo.Append(ctx, e); err != nil {
		j.logger.Warn("append audit entry failed", zap.String("order_id", orderID), zap.String("kind", kind), zap.Error(err))
	}
}

// OrderService 维修单服务
type OrderService struct {
	repos     *repository.Repositories
	cfg       config.RepairConfig
	defaults  *Defaults
	logger    *zap.Logger
	publisher events.Publisher
	store     storage.Store
	journal   journal
	now       func() time.Time
}

func NewOrderService(d Deps, defaults *Defaults) *OrderService {
	d.fill()
	return &OrderService{
		repos:     d.Repos,
		cfg:       d.Config.Repair,
		defaults:  defaults,
		logger:    d.Logger.Named("order"),
		publisher: d.Publisher,
		store:     d.Store,
		journal:   journal{repo: d.Repos.Audit, logger: d.Logger},
		now:       d.Now,
	}
}

func (s *OrderService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish event failed", zap.String("type", e.Type), zap.Error(err))
	}
}

// Get 获取维修单详情
func (s *OrderService) Get(ctx context.Context, id string) (*entity.RepairOrder, error) {
	return s.repos.Order.FindByID(ctx, id)
}

// FindByNumber looks an order up by its printed number (QR scan).
func (s *OrderService) FindByNumber(ctx context.Context, number string) (*entity.RepairOrder, error) {
	return s.repos.Order.FindByNumber(ctx, strings.TrimSpace(number))
}

func (s *OrderService) List(ctx context.Context, req OrderListRequest, page, size int) ([]entity.RepairOrder, int64, error) {
	return s.repos.Order.List(ctx, repository.OrderListParams{
		StateID:      req.StateID,
		AssignedToID: req.AssignedToID,
		CustomerID:   req.CustomerID,
		Keyword:      req.Keyword,
		Archived:     req.Archived,
		Closed:       req.Closed,
		Page:         page,
		Size:         size,
	})
}

// History 维修单日志
func (s *OrderService) History(ctx context.Context, id string, page, size int) ([]entity.AuditEntry, int64, error) {
	return s.repos.Audit.FindByOrder(ctx, id, page, size)
}

func (s *OrderService) Messages(ctx context.Context, id string) ([]entity.ChatMessage, error) {
	return s.repos.Chat.ListByOrder(ctx, id)
}

// nextNumber falls back to the placeholder when the sequence fails.
func (s *OrderService) nextNumber(ctx context.Context, tx *repository.Repositories) string {
	n, err := tx.Sequence.NextByCode(ctx, s.cfg.OrderSequence)
	if err != nil {
		s.logger.Warn("order sequence unavailable, using placeholder", zap.String("sequence", s.cfg.OrderSequence), zap.Error(err))
		return entity.PlaceholderNumber
	}
	return n
}

// Create 维修单登记
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest, actor Actor) (*entity.RepairOrder, error) {
	if s.defaults.InitialState == nil && (req.StateID == nil || *req.StateID == "") {
		return nil, apperr.Validationf("No repair state is configured. Create one before opening repair orders.")
	}
	now := s.now()

	var created *entity.RepairOrder
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		o := &entity.RepairOrder{
			Base:           entity.Base{ID: uuid.NewString()},
			Token:          uuid.NewString(),
			OpenDate:       now,
			AssignedToID:   actor.ID,
			AssignedToName: actor.Name,
			OpenedByID:     actor.ID,
			OpenedByName:   actor.Name,
			WorkOperations: entity.DefaultWorkOperations,
			RepairCost:     decimal.Zero,
			AdvancePayment: decimal.Zero,
			Discount:       decimal.Zero,
			ExpectedTotal:  decimal.Zero,
			Active:         true,
		}
		o.Number = s.nextNumber(ctx, tx)
		if st := s.defaults.InitialState; st != nil {
			id := st.ID
			o.StateID = &id
			o.CustomerStateID = st.PublicStateID
		}
		if t := s.defaults.DefaultTerm; t != nil {
			id := t.ID
			o.TermID = &id
		}

		if req.NewCustomer != nil {
			c, err := createIntakeCustomer(ctx, tx, req.NewCustomer)
			if err != nil {
				return err
			}
			o.CustomerID = &c.ID
		}

		patch := req.OrderPatch
		if patch.Signature != nil && len(*patch.Signature) > 0 {
			o.Signature = *patch.Signature
			o.SignatureLocked = true
		}
		if err := s.applyScalars(ctx, tx, o, &patch); err != nil {
			return err
		}
		if err := tx.Order.Create(ctx, o); err != nil {
			return fmt.Errorf("create repair order: %w", err)
		}
		if err := s.applyRelations(ctx, tx, o, &patch, now); err != nil {
			return err
		}
		loaded, err := s.finish(ctx, tx, o.ID, now)
		if err != nil {
			return err
		}
		created = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.journal.append(ctx, created.ID, entity.AuditNotification,
		fmt.Sprintf("Repair order <strong>%s</strong> created.", html.EscapeString(created.Number)), nil, actor)
	if created.HasSignature() {
		s.archiveSignature(ctx, created)
	}
	s.publish(ctx, events.Event{Type: events.OrderCreated, OrderID: created.ID, Number: created.Number})
	return created, nil
}

// createIntakeCustomer enforces the phone-or-email rule for contacts created
// from the repair flow.
func createIntakeCustomer(ctx context.Context, tx *repository.Repositories, in *CustomerInput) (*entity.Customer, error) {
	c := &entity.Customer{
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		IsCompany: in.IsCompany,
		Address:   in.Address,
	}
	if c.Name == "" {
		return nil, apperr.Validationf("Customer name is required.")
	}
	if !c.HasContact() {
		return nil, apperr.Validationf("To save a contact, you need either a landline phone number, or an email!")
	}
	if err := tx.Customers.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

// Update applies patch under the order row lock and logs one combined entry.
func (s *OrderService) Update(ctx context.Context, id string, patch OrderPatch, actor Actor) (*entity.RepairOrder, error) {
	return s.update(ctx, id, patch, actor, nil)
}

// update runs prepare inside the transaction, after the pre-image is loaded,
// so callers can build the patch from current state.
func (s *OrderService) update(ctx context.Context, id string, patch OrderPatch, actor Actor,
	prepare func(tx *repository.Repositories, before *entity.RepairOrder, p *OrderPatch) error) (*entity.RepairOrder, error) {
	now := s.now()

	var after *entity.RepairOrder
	var result audit.Result
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Order.Lock(ctx, id); err != nil {
			return err
		}
		before, err := tx.Order.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if prepare != nil {
			if err := prepare(tx, before, &patch); err != nil {
				return err
			}
		}
		if patch.Signature != nil && before.SignatureLocked {
			return apperr.Validationf("The signature is locked. Unlock it before signing again.")
		}

		touched := patch.Touched()
		pre := audit.Take(before, touched)

		o := before
		if err := s.applyScalars(ctx, tx, o, &patch); err != nil {
			return err
		}
		if patch.Signature != nil {
			o.Signature = *patch.Signature
			o.SignatureLocked = true
		}
		if patch.unlockSignature {
			o.SignatureLocked = false
		}
		o.LastModifiedAt = &now
		if err := tx.Order.Save(ctx, o); err != nil {
			return fmt.Errorf("save repair order: %w", err)
		}
		if err := s.applyRelations(ctx, tx, o, &patch, now); err != nil {
			return err
		}

		after, err = s.finish(ctx, tx, id, now)
		if err != nil {
			return err
		}
		result = audit.Diff(pre, audit.Take(after, touched))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Empty() {
		s.journal.append(ctx, id, entity.AuditNotification, result.Body(), result, actor)
	}
	if patch.Signature != nil && after.HasSignature() {
		s.archiveSignature(ctx, after)
	}
	s.publish(ctx, events.Event{Type: events.OrderUpdated, OrderID: after.ID, Number: after.Number})
	return after, nil
}

// finish reloads the aggregate, validates it and stores the derived fields.
func (s *OrderService) finish(ctx context.Context, tx *repository.Repositories, id string, now time.Time) (*entity.RepairOrder, error) {
	o, err := tx.Order.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.ValidateDevices(); err != nil {
		return nil, apperr.Validationf("Please add at least one device, or fill in category, brand and model.")
	}
	o.ApplyClosingState(now)
	o.Recompute()
	if err := tx.Order.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save derived fields: %w", err)
	}
	return o, nil
}

func (s *OrderService) archiveSignature(ctx context.Context, o *entity.RepairOrder) {
	key := fmt.Sprintf("signatures/%s/%s.png", o.OpenDate.Format("2006"), o.ID)
	if err := s.store.Put(ctx, key, "image/png", o.Signature); err != nil {
		s.logger.Warn("archive signature failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// Delete always fails; orders are archived instead.
func (s *OrderService) Delete(ctx context.Context, id string) error {
	return ErrDeleteForbidden
}

// Archive 归档（唯一的"删除"方式）
func (s *OrderService) Archive(ctx context.Context, id string, actor Actor) (*entity.RepairOrder, error) {
	active := false
	return s.Update(ctx, id, OrderPatch{Active: &active}, actor)
}

func (s *OrderService) Unarchive(ctx context.Context, id string, actor Actor) (*entity.RepairOrder, error) {
	active := true
	return s.Update(ctx, id, OrderPatch{Active: &active}, actor)
}

// SetSignature stores the customer signature and locks it.
func (s *OrderService) SetSignature(ctx context.Context, id string, png []byte, actor Actor) (*entity.RepairOrder, error) {
	if len(png) == 0 {
		return nil, apperr.Validationf("The signature is empty.")
	}
	return s.Update(ctx, id, OrderPatch{Signature: &png}, actor)
}

// UnlockSignature is the only way to clear the signature lock.
func (s *OrderService) UnlockSignature(ctx context.Context, id string, actor Actor) (*entity.RepairOrder, error) {
	return s.Update(ctx, id, OrderPatch{unlockSignature: true}, actor)
}

// AddDevicesFromCase binds every available device of a case to the order and
// takes the customer from the case when it has one.
func (s *OrderService) AddDevicesFromCase(ctx context.Context, id, caseID string, actor Actor) (*entity.RepairOrder, int, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, 0, apperr.Validationf("Please select a case first.")
	}
	c, err := s.repos.Cases.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, apperr.Validationf("Please select a case first.")
		}
		return nil, 0, err
	}

	added := 0
	o, err := s.update(ctx, id, OrderPatch{}, actor, func(tx *repository.Repositories, before *entity.RepairOrder, p *OrderPatch) error {
		items, err := tx.Inventory.FindAvailableByCase(ctx, c.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.Validationf("No available devices found in the selected case.")
		}
		lines := make([]DeviceLineInput, 0, len(before.DeviceLines)+len(items))
		for _, l := range before.DeviceLines {
			lines = append(lines, DeviceLineInput{
				ID:                 l.ID,
				InventoryItemID:    l.InventoryItemID,
				AestheticCondition: l.AestheticCondition,
				VisualDefects:      l.VisualDefects,
			})
		}
		for _, it := range items {
			lines = append(lines, DeviceLineInput{InventoryItemID: it.ID})
		}
		p.DeviceLines = &lines
		if c.CustomerID != nil {
			p.CustomerID = c.CustomerID
		}
		added = len(items)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return o, added, nil
}

// SendTechnicianMessage posts a reply on the customer chat.
func (s *OrderService) SendTechnicianMessage(ctx context.Context, id, text string, actor Actor) (*entity.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validationf("The message is empty.")
	}
	var msg *entity.ChatMessage
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Order.Lock(ctx, id); err != nil {
			return err
		}
		msg = &entity.ChatMessage{RepairOrderID: id, Sender: entity.SenderTechnician, Message: text}
		if err := tx.Chat.Create(ctx, msg); err != nil {
			return fmt.Errorf("create chat message: %w", err)
		}
		return tx.Audit.Append(ctx, &entity.AuditEntry{
			OrderID:    id,
			Kind:       entity.AuditComment,
			Body:       "<strong>Technician reply:</strong> " + html.EscapeString(text),
			AuthorID:   actor.ID,
			AuthorName: actor.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{Type: events.ChatMessage, OrderID: id,
		Payload: map[string]interface{}{"sender": entity.SenderTechnician}})
	return msg, nil
}

// CreateSaleOrder bills the order's components, one line each at list price.
func (s *OrderService) CreateSaleOrder(ctx context.Context, id string, actor Actor) (*entity.SaleOrder, error) {
	o, err := s.repos.Order.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID == nil {
		return nil, apperr.Operationf("Set a customer on the repair order before creating a sale order.")
	}
	if len(o.Components) == 0 {
		return nil, apperr.Operationf("The repair order has no components to sell.")
	}

	so := &entity.SaleOrder{
		CustomerID:    *o.CustomerID,
		RepairOrderID: o.ID,
		Total:         decimal.Zero,
		CreatedBy:     actor.ID,
	}
	for _, c := range o.Components {
		so.Lines = append(so.Lines, entity.SaleOrderLine{
			ProductID: c.ProductID,
			Name:      c.Product.DisplayName(),
			Quantity:  1,
			UnitPrice: c.ListPrice,
		})
		so.Total = so.Total.Add(c.ListPrice)
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		number, err := tx.Sequence.NextByCode(ctx, SaleOrderSequence)
		if err != nil {
			return fmt.Errorf("sale order number: %w", err)
		}
		so.Number = number
		return tx.Sales.Create(ctx, so)
	})
	if err != nil {
		return nil, err
	}
	s.journal.append(ctx, o.ID, entity.AuditComment,
		fmt.Sprintf("Sale order <strong>%s</strong> created.", html.EscapeString(so.Number)), nil, actor)
	return so, nil
}

// QR kinds.
const (
	QRCustomer = "customer"
	QRInternal = "internal"
)

// QRCode renders the customer status link or the internal order link.
func (s *OrderService) QRCode(ctx context.Context, id, kind string, size int) ([]byte, error) {
	o, err := s.repos.Order.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var url string
	switch kind {
	case QRCustomer, "":
		url = s.cfg.BaseURL + "/repairstatus/" + o.Token
	case QRInternal:
		url = s.cfg.BaseURL + "/orders/" + o.ID
	default:
		return nil, apperr.Validationf("unknown QR code kind %q", kind)
	}
	return qrcode.PNG(url, size)
}
