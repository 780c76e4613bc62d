package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/service"
	"github.com/bitfantasy/nimo-repair/internal/repair/testutil"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

// closedWithSoftware creates an order carrying both renewable programs and
// closes it, which fixes its renewal date.
func (f *fixture) closedWithSoftware(t *testing.T, serial string) *entity.RepairOrder {
	t.Helper()
	o := f.createOrder(t, testutil.SeedItem(t, f.db, f.cat, serial, nil))
	sw := []service.SoftwareLineInput{{SoftwareID: f.cat.Software.ID}, {SoftwareID: f.cat.Antivirus.ID}}
	closed, err := f.svcs.Order.Update(context.Background(), o.ID, service.OrderPatch{
		StateID:       strp(f.cat.Closed.ID),
		SoftwareLines: &sw,
	}, tech)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if closed.RenewalDate == nil {
		t.Fatal("Expected renewal date after closing")
	}
	return closed
}

func TestSweep_SendsOnceAndOpensLead(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	o := f.closedWithSoftware(t, "SN-001")
	day := o.RenewalDate.AddDate(0, 0, -30)

	res, err := f.svcs.Renewal.Sweep(ctx, day)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Due != 1 || res.Sent != 1 || res.Leads != 1 || res.Failed != 0 {
		t.Fatalf("Unexpected first sweep result %+v", res)
	}

	again, err := f.svcs.Renewal.Sweep(ctx, day)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if again.Due != 0 || again.Sent != 0 {
		t.Errorf("Expected nothing due on the second sweep, got %+v", again)
	}

	sent := f.mail.Sent()
	if len(sent) != 1 {
		t.Fatalf("Expected exactly one reminder, got %d", len(sent))
	}
	if sent[0].To != f.cat.Customer.Email || !strings.Contains(sent[0].Subject, o.Number) {
		t.Errorf("Unexpected reminder %+v", sent[0])
	}
	if !strings.Contains(sent[0].HTML, "Office") || !strings.Contains(sent[0].HTML, "Antivirus") {
		t.Errorf("Expected both programs in the reminder body")
	}

	lead, err := f.svcs.Renewal.Lead(ctx, o.ID)
	if err != nil {
		t.Fatalf("Lead: %v", err)
	}
	if !lead.ExpectedRevenue.Equal(decimal.NewFromInt(35)) {
		t.Errorf("Expected revenue 35, got %s", lead.ExpectedRevenue)
	}
	if lead.Probability != 50 || lead.Tag != "Renewals" || lead.CustomerID != f.cat.Customer.ID {
		t.Errorf("Unexpected lead %+v", lead)
	}
}

func TestSweep_WrongDayFindsNothing(t *testing.T) {
	f := setup(t)
	o := f.closedWithSoftware(t, "SN-001")

	res, err := f.svcs.Renewal.Sweep(context.Background(), o.RenewalDate.AddDate(0, 0, -29))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Due != 0 || len(f.mail.Sent()) != 0 {
		t.Errorf("Expected no reminder a day late, got %+v", res)
	}
}

func TestSweep_ArchivedOrdersAreSkipped(t *testing.T) {
	f := setup(t)
	o := f.closedWithSoftware(t, "SN-001")
	if _, err := f.svcs.Order.Archive(context.Background(), o.ID, tech); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	res, err := f.svcs.Renewal.Sweep(context.Background(), o.RenewalDate.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Due != 0 {
		t.Errorf("Expected archived order to be skipped, got %+v", res)
	}
}

func TestSweep_CustomerWithoutEmailStillGetsLead(t *testing.T) {
	f := setup(t)
	o := f.closedWithSoftware(t, "SN-001")
	if err := f.db.Model(&entity.Customer{}).Where("id = ?", f.cat.Customer.ID).Update("email", "").Error; err != nil {
		t.Fatalf("clear email: %v", err)
	}

	res, err := f.svcs.Renewal.Sweep(context.Background(), o.RenewalDate.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Sent != 0 || res.Leads != 1 {
		t.Errorf("Expected lead without mail, got %+v", res)
	}
	lead, err := f.svcs.Renewal.Lead(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("Lead: %v", err)
	}
	if !strings.Contains(lead.Description, "Not available") {
		t.Errorf("Expected placeholder mail in lead description")
	}
}

func TestForceRenewalEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	open := f.createOrder(t, testutil.SeedItem(t, f.db, f.cat, "SN-OPEN", nil))
	if err := f.svcs.Renewal.ForceRenewalEmail(ctx, open.ID, tech); !apperr.Is(err, apperr.ErrOperation) {
		t.Errorf("Expected operation error without renewal date, got %v", err)
	}

	o := f.closedWithSoftware(t, "SN-001")
	if err := f.svcs.Renewal.ForceRenewalEmail(ctx, o.ID, tech); err != nil {
		t.Fatalf("ForceRenewalEmail: %v", err)
	}
	// a forced mail ignores the reminder flag
	if err := f.svcs.Renewal.ForceRenewalEmail(ctx, o.ID, tech); err != nil {
		t.Fatalf("ForceRenewalEmail: %v", err)
	}
	if n := len(f.mail.Sent()); n != 2 {
		t.Errorf("Expected two forced mails, got %d", n)
	}
	if !strings.Contains(history(t, f, o.ID)[0].Body, "sent manually") {
		t.Errorf("Expected manual mail in audit")
	}
	if _, err := f.svcs.Renewal.Lead(ctx, o.ID); err != nil {
		t.Errorf("Expected lead after forced mail: %v", err)
	}

	if err := f.db.Model(&entity.Customer{}).Where("id = ?", f.cat.Customer.ID).Update("email", "").Error; err != nil {
		t.Fatalf("clear email: %v", err)
	}
	err := f.svcs.Renewal.ForceRenewalEmail(ctx, o.ID, tech)
	if !apperr.Is(err, apperr.ErrOperation) || !strings.Contains(err.Error(), "does not have an email") {
		t.Errorf("Expected missing email error, got %v", err)
	}

	f.mail.Err = context.DeadlineExceeded
	if err := f.db.Model(&entity.Customer{}).Where("id = ?", f.cat.Customer.ID).Update("email", "m@example.com").Error; err != nil {
		t.Fatalf("restore email: %v", err)
	}
	if err := f.svcs.Renewal.ForceRenewalEmail(ctx, o.ID, tech); !apperr.Is(err, apperr.ErrExternal) {
		t.Errorf("Expected external error when the mailer fails, got %v", err)
	}
}

func TestLead_NotFound(t *testing.T) {
	f := setup(t)
	o := f.createOrder(t, testutil.SeedItem(t, f.db, f.cat, "SN-001", nil))
	if _, err := f.svcs.Renewal.Lead(context.Background(), o.ID); !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}
