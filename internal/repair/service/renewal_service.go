package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bitfantasy/nimo-repair/internal/config"
	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/events"
	"github.com/bitfantasy/nimo-repair/internal/repair/report"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
	"github.com/bitfantasy/nimo-repair/internal/shared/mailer"
)

const (
	renewalLeadTag         = "Renewals"
	renewalLeadProbability = 50
	sweepLockTTL           = 6 * time.Hour
)

var renewalMail = template.Must(template.New("renewal").Parse(`<p>Dear {{.Customer}},</p>
<p>the software installed during repair <strong>{{.Number}}</strong> expires on <strong>{{.Date}}</strong>.</p>
<ul>{{range .Software}}<li>{{.}}</li>{{end}}</ul>
<p>Contact us to renew it in time.</p>
<p>{{.Company}}</p>`))

type renewalMailData struct {
	Customer string
	Number   string
	Date     string
	Software []string
	Company  string
}

// SweepResult summarises one renewal sweep.
type SweepResult struct {
	Day     string `json:"day"`
	Due     int    `json:"due"`
	Sent    int    `json:"sent"`
	Leads   int    `json:"leads"`
	Failed  int    `json:"failed"`
	Skipped bool   `json:"skipped"`
}

// RenewalService 软件续费提醒
type RenewalService struct {
	repos     *repository.Repositories
	cfg       config.RepairConfig
	logger    *zap.Logger
	rdb       *redis.Client
	mailer    mailer.Sender
	publisher events.Publisher
	money     report.Money
	journal   journal
	now       func() time.Time
}

func NewRenewalService(d Deps) *RenewalService {
	d.fill()
	return &RenewalService{
		repos:     d.Repos,
		cfg:       d.Config.Repair,
		logger:    d.Logger.Named("renewal"),
		rdb:       d.Redis,
		mailer:    d.Mailer,
		publisher: d.Publisher,
		money:     report.NewMoney(d.Config.Repair.CurrencyLocale),
		journal:   journal{repo: d.Repos.Audit, logger: d.Logger},
		now:       d.Now,
	}
}

// Sweep sends the reminders due for today: orders whose renewal date is
// notice_days ahead. Each order is flagged once, so repeated sweeps on the
// same day send at most one reminder per order.
func (s *RenewalService) Sweep(ctx context.Context, today time.Time) (*SweepResult, error) {
	day := entity.DateOnly(today)
	target := day.AddDate(0, 0, s.noticeDays())
	res := &SweepResult{Day: day.Format("2006-01-02")}

	if s.rdb != nil {
		key := "repair:renewal-sweep:" + res.Day
		ok, err := s.rdb.SetNX(ctx, key, s.now().Format(time.RFC3339), sweepLockTTL).Result()
		if err != nil {
			s.logger.Warn("sweep lock unavailable, continuing without it", zap.Error(err))
		} else if !ok {
			s.logger.Info("renewal sweep already running or done", zap.String("day", res.Day))
			res.Skipped = true
			return res, nil
		} else {
			defer s.rdb.Del(context.WithoutCancel(ctx), key)
		}
	}

	orders, err := s.repos.Order.FindRenewalDue(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("find renewal due: %w", err)
	}
	res.Due = len(orders)

	type outcome struct{ sent, lead, failed bool }
	outcomes := make([]outcome, len(orders))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i := range orders {
		i := i
		o := &orders[i]
		g.Go(func() error {
			sent, lead, err := s.remind(gctx, o)
			if err != nil {
				s.logger.Error("renewal reminder failed", zap.String("order", o.Number), zap.Error(err))
				outcomes[i] = outcome{failed: true}
				return nil
			}
			outcomes[i] = outcome{sent: sent, lead: lead}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, oc := range outcomes {
		if oc.sent {
			res.Sent++
		}
		if oc.lead {
			res.Leads++
		}
		if oc.failed {
			res.Failed++
		}
	}
	s.logger.Info("renewal sweep finished",
		zap.String("day", res.Day), zap.Int("due", res.Due), zap.Int("sent", res.Sent),
		zap.Int("leads", res.Leads), zap.Int("failed", res.Failed))
	return res, nil
}

// remind claims the order's reminder flag, then mails and ensures the lead.
// A lost claim means another sweep handled the order.
func (s *RenewalService) remind(ctx context.Context, o *entity.RepairOrder) (sent, lead bool, err error) {
	claimed, err := s.repos.Order.MarkReminderSent(ctx, o.ID)
	if err != nil {
		return false, false, fmt.Errorf("mark reminder sent: %w", err)
	}
	if !claimed {
		return false, false, nil
	}
	if o.Customer != nil && o.Customer.Email != "" {
		if err := s.send(ctx, o); err != nil {
			s.logger.Warn("renewal mail failed", zap.String("order", o.Number), zap.Error(err))
		} else {
			sent = true
		}
	}
	lead, err = s.ensureLead(ctx, o)
	if err != nil {
		return sent, false, err
	}
	s.publish(ctx, o)
	return sent, lead, nil
}

// ForceRenewalEmail sends the reminder now, regardless of the flag.
func (s *RenewalService) ForceRenewalEmail(ctx context.Context, id string, actor Actor) error {
	o, err := s.repos.Order.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if o.RenewalDate == nil {
		return apperr.Operationf("No renewal date set.")
	}
	if o.Customer == nil {
		return apperr.Operationf("The repair order has no customer.")
	}
	if o.Customer.Email == "" {
		return apperr.Operationf("Customer %s does not have an email set!", o.Customer.Name)
	}
	if err := s.send(ctx, o); err != nil {
		return apperr.External("Sending the renewal email failed.", err)
	}
	s.journal.append(ctx, o.ID, entity.AuditComment,
		fmt.Sprintf("Renewal email sent manually to %s.", html.EscapeString(o.Customer.Email)), nil, actor)
	if _, err := s.ensureLead(ctx, o); err != nil {
		return err
	}
	s.publish(ctx, o)
	return nil
}

func (s *RenewalService) send(ctx context.Context, o *entity.RepairOrder) error {
	data := renewalMailData{
		Customer: o.Customer.Name,
		Number:   o.Number,
		Software: o.RenewalSoftwareNames(),
		Company:  s.cfg.CompanyName,
	}
	if o.RenewalDate != nil {
		data.Date = o.RenewalDate.Format(dateLayout)
	}
	var buf bytes.Buffer
	if err := renewalMail.Execute(&buf, data); err != nil {
		return err
	}
	return s.mailer.Send(ctx, mailer.Message{
		To:      o.Customer.Email,
		Subject: fmt.Sprintf("%s - software renewal for repair %s", s.cfg.CompanyName, o.Number),
		HTML:    buf.String(),
	})
}

// ensureLead creates the renewal lead unless the order already has one.
func (s *RenewalService) ensureLead(ctx context.Context, o *entity.RepairOrder) (bool, error) {
	if o.CustomerID == nil || o.Customer == nil {
		return false, nil
	}
	created, err := s.repos.Leads.CreateOnce(ctx, &entity.RenewalLead{
		OrderID:         o.ID,
		CustomerID:      *o.CustomerID,
		Title:           "Software renewal - " + o.Customer.Name,
		Description:     s.leadDescription(o),
		ExpectedRevenue: o.RenewalRevenue(),
		Probability:     renewalLeadProbability,
		Tag:             renewalLeadTag,
	})
	if err != nil {
		return false, fmt.Errorf("create renewal lead: %w", err)
	}
	return created, nil
}

func (s *RenewalService) leadDescription(o *entity.RepairOrder) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, `<p>Software renewal for repair <strong><a href="%s/orders/%s">%s</a></strong> for <strong>%s</strong>.</p>`,
		s.cfg.BaseURL, o.ID, html.EscapeString(o.Number), html.EscapeString(o.Customer.Name))
	date := "Date not available"
	if o.RenewalDate != nil {
		date = o.RenewalDate.Format(dateLayout)
	}
	email := o.Customer.Email
	if email == "" {
		email = "Not available"
	}
	fmt.Fprintf(&b, "<p><strong>Expires:</strong> %s</p><p><strong>Mail:</strong> %s</p>", date, html.EscapeString(email))
	b.WriteString("<p><strong>Software to renew:</strong></p><ul>")
	for _, l := range o.SoftwareLines {
		if l.Software == nil || !l.Software.RenewalRequired {
			continue
		}
		fmt.Fprintf(&b, "<li>%s - %s</li>", html.EscapeString(l.Software.Name), s.money.Format(l.Software.Price))
	}
	b.WriteString("</ul>")
	return b.String()
}

func (s *RenewalService) publish(ctx context.Context, o *entity.RepairOrder) {
	if err := s.publisher.Publish(ctx, events.Event{Type: events.RenewalSent, OrderID: o.ID, Number: o.Number}); err != nil {
		s.logger.Warn("publish renewal event failed", zap.Error(err))
	}
}

func (s *RenewalService) noticeDays() int {
	if s.cfg.RenewalNoticeDays > 0 {
		return s.cfg.RenewalNoticeDays
	}
	return 30
}

func (s *RenewalService) concurrency() int {
	if s.cfg.SweepConcurrency > 0 {
		return s.cfg.SweepConcurrency
	}
	return 1
}

// Lead returns the renewal lead of an order, if any.
func (s *RenewalService) Lead(ctx context.Context, orderID string) (*entity.RenewalLead, error) {
	l, err := s.repos.Leads.FindByOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFoundf("No renewal lead for this repair order.")
	}
	return l, err
}
