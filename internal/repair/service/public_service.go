package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-repair/internal/config"
	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/events"
	"github.com/bitfantasy/nimo-repair/internal/repair/report"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
	"github.com/bitfantasy/nimo-repair/internal/shared/storage"
)

const (
	dateLayout     = "02/01/2006"
	dateTimeLayout = "02/01/2006 15:04"

	noStatus = "Status not yet available"
	noDate   = "Date not available"
)

var (
	// ErrNoRenderer is returned when no report renderer is configured.
	ErrNoRenderer = errors.New("report renderer not configured")
	// ErrRender wraps report rendering failures.
	ErrRender = errors.New("generate pdf")
)

// StatusView is what the public status page shows.
type StatusView struct {
	Found         bool
	Token         string
	Number        string
	Company       string
	CustomerState string
	OpenDate      string
	LastModified  string
	EstimatedDate string
	DeviceSummary string
	ExpectedTotal string
	Messages      []ChatView
}

type ChatView struct {
	Sender   string
	Customer bool
	Message  string
	At       string
}

// PDFReport is a rendered order report.
type PDFReport struct {
	Filename string
	Data     []byte
}

// PublicService 客户公开页面（无需登录，凭 token 访问）
type PublicService struct {
	repos     *repository.Repositories
	cfg       config.RepairConfig
	logger    *zap.Logger
	publisher events.Publisher
	renderer  report.Renderer
	store     storage.Store
	money     report.Money
}

func NewPublicService(d Deps) *PublicService {
	d.fill()
	return &PublicService{
		repos:     d.Repos,
		cfg:       d.Config.Repair,
		logger:    d.Logger.Named("public"),
		publisher: d.Publisher,
		renderer:  d.Renderer,
		store:     d.Store,
		money:     report.NewMoney(d.Config.Repair.CurrencyLocale),
	}
}

func (s *PublicService) byToken(ctx context.Context, token string) (*entity.RepairOrder, error) {
	if strings.TrimSpace(token) == "" {
		return nil, repository.ErrNotFound
	}
	return s.repos.Order.FindByToken(ctx, token)
}

// Status builds the status page. An unknown token yields placeholders, not
// an error.
func (s *PublicService) Status(ctx context.Context, token string) (*StatusView, error) {
	v := &StatusView{
		Token:         token,
		Company:       s.cfg.CompanyName,
		CustomerState: noStatus,
		OpenDate:      noDate,
		LastModified:  noDate,
		EstimatedDate: noDate,
	}
	o, err := s.byToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return v, nil
	}
	if err != nil {
		return nil, err
	}

	v.Found = true
	v.Number = o.Number
	if o.CustomerState != nil {
		v.CustomerState = o.CustomerState.Name
	}
	v.OpenDate = formatTime(&o.OpenDate, dateTimeLayout)
	v.LastModified = formatTime(o.LastModifiedAt, dateTimeLayout)
	v.EstimatedDate = formatTime(o.EstimatedDate, dateLayout)
	v.DeviceSummary = o.DeviceSummary
	v.ExpectedTotal = s.money.Format(o.ExpectedTotal)

	msgs, err := s.repos.Chat.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		v.Messages = append(v.Messages, ChatView{
			Sender:   entity.ChatSenders.Label(m.Sender),
			Customer: m.Sender == entity.SenderCustomer,
			Message:  m.Message,
			At:       m.CreatedAt.Format(dateTimeLayout),
		})
	}
	return v, nil
}

func formatTime(t *time.Time, layout string) string {
	if t == nil || t.IsZero() {
		return noDate
	}
	return t.Format(layout)
}

// SendCustomerMessage records a message from the status page. Missing input
// or an unknown token is ignored.
func (s *PublicService) SendCustomerMessage(ctx context.Context, token, text string) error {
	text = strings.TrimSpace(text)
	if token == "" || text == "" {
		return nil
	}
	o, err := s.byToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Chat.Create(ctx, &entity.ChatMessage{
			RepairOrderID: o.ID,
			Sender:        entity.SenderCustomer,
			Message:       text,
		}); err != nil {
			return fmt.Errorf("create chat message: %w", err)
		}
		return tx.Audit.Append(ctx, &entity.AuditEntry{
			OrderID:    o.ID,
			Kind:       entity.AuditComment,
			Body:       "<strong>Message from Customer:</strong> " + html.EscapeString(text),
			AuthorName: "Customer",
		})
	})
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, events.Event{
		Type: events.ChatMessage, OrderID: o.ID, Number: o.Number, UserID: o.AssignedToID,
		Payload: map[string]interface{}{"sender": entity.SenderCustomer},
	}); err != nil {
		s.logger.Warn("publish chat event failed", zap.Error(err))
	}
	return nil
}

// PDF renders the order report for a token and archives a copy.
func (s *PublicService) PDF(ctx context.Context, token string) (*PDFReport, error) {
	o, err := s.byToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFoundf("Repair not found")
		}
		return nil, err
	}
	return s.render(ctx, o)
}

// OrderPDF renders the report of an order by id for staff.
func (s *PublicService) OrderPDF(ctx context.Context, id string) (*PDFReport, error) {
	o, err := s.repos.Order.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, o)
}

func (s *PublicService) render(ctx context.Context, o *entity.RepairOrder) (*PDFReport, error) {
	if s.renderer == nil {
		return nil, ErrNoRenderer
	}
	data, err := s.renderer.Render(o)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	r := &PDFReport{Filename: fmt.Sprintf("Repair_%s.pdf", o.Number), Data: data}

	key := fmt.Sprintf("reports/%s/%s", o.ID, r.Filename)
	if err := s.store.Put(ctx, key, "application/pdf", data); err != nil {
		s.logger.Warn("archive report failed", zap.String("order", o.Number), zap.Error(err))
	}
	return r, nil
}
