// Package report renders the printable repair order.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/shared/qrcode"
)

const dateLayout = "02/01/2006"

// Renderer produces the PDF of an order.
type Renderer interface {
	Render(o *entity.RepairOrder) ([]byte, error)
}

// Money formats euro amounts for one locale.
type Money struct {
	p *message.Printer
}

// NewMoney builds a formatter for a BCP 47 locale tag; unknown tags fall back
// to Italian.
func NewMoney(locale string) Money {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Italian
	}
	return Money{p: message.NewPrinter(tag)}
}

// Format renders d as "€ 1.234,50" (grouping per locale).
func (m Money) Format(d decimal.Decimal) string {
	return m.p.Sprintf("€ %.2f", d.Round(2).InexactFloat64())
}

// PDF renders with fpdf.
type PDF struct {
	company string
	baseURL string
	money   Money
}

func NewPDF(company, baseURL, locale string) *PDF {
	return &PDF{company: company, baseURL: baseURL, money: NewMoney(locale)}
}

// Render lays out header, customer, devices, costs, terms and signature.
func (r *PDF) Render(o *entity.RepairOrder) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Repair "+o.Number, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(120, 8, tr(r.company), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(60, 8, tr("Repair "+o.Number), "", 1, "R", false, 0, "")
	pdf.CellFormat(180, 6, tr("Opened: "+o.OpenDate.Format(dateLayout)), "", 1, "R", false, 0, "")
	if o.EstimatedDate != nil {
		pdf.CellFormat(180, 6, tr("Estimated delivery: "+o.EstimatedDate.Format(dateLayout)), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	if o.Token != "" {
		png, err := qrcode.PNG(r.baseURL+"/repairstatus/"+o.Token, 256)
		if err != nil {
			return nil, fmt.Errorf("qr code: %w", err)
		}
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("status-qr", opts, bytes.NewReader(png))
		pdf.ImageOptions("status-qr", 170, 32, 25, 25, false, opts, 0, "")
	}

	section(pdf, tr, "Customer")
	if o.Customer != nil {
		line(pdf, tr, "Name", o.Customer.Name)
		line(pdf, tr, "Phone", o.Customer.Phone)
		line(pdf, tr, "Email", o.Customer.Email)
	}
	if o.State != nil {
		line(pdf, tr, "State", o.State.Name)
	}
	line(pdf, tr, "Assigned to", o.AssignedToName)

	section(pdf, tr, "Devices")
	if len(o.DeviceLines) == 0 {
		line(pdf, tr, "Device", o.DeviceSummary)
		line(pdf, tr, "Condition", entity.AestheticConditions.Label(o.AestheticCondition))
	}
	for _, d := range o.DeviceLines {
		text := d.Name
		if d.AestheticCondition != "" {
			text += " - " + entity.AestheticConditions.Label(d.AestheticCondition)
		}
		if d.VisualDefects != "" {
			text += " - " + d.VisualDefects
		}
		pdf.MultiCell(180, 6, tr(text), "", "L", false)
	}
	if len(o.Accessories) > 0 {
		names := make([]string, 0, len(o.Accessories))
		for i := range o.Accessories {
			names = append(names, o.Accessories[i].DisplayName())
		}
		line(pdf, tr, "Accessories", strings.Join(names, ", "))
	}
	if o.Loaner != nil {
		line(pdf, tr, "Loaner", o.Loaner.DisplayName())
	}

	section(pdf, tr, "Problem")
	pdf.MultiCell(180, 6, tr(o.ProblemDescription), "", "L", false)

	section(pdf, tr, "Costs")
	if o.WorkType != nil {
		amount(pdf, tr, o.WorkType.Name, r.money.Format(o.WorkType.Price))
	}
	amount(pdf, tr, "Repair", r.money.Format(o.RepairCost))
	for _, l := range o.SoftwareLines {
		if l.AddToTotal && l.Software != nil {
			amount(pdf, tr, "Software: "+l.Software.Name, r.money.Format(l.Software.Price))
		}
	}
	for _, l := range o.ExternalLabs {
		if l.AddToTotal {
			name := "External lab"
			if l.LabPartner != nil {
				name += ": " + l.LabPartner.Name
			}
			amount(pdf, tr, name, r.money.Format(l.CustomerCost))
		}
	}
	for _, c := range o.Components {
		if c.AddToTotal {
			amount(pdf, tr, c.Product.DisplayName(), r.money.Format(c.ListPrice))
		}
	}
	if !o.AdvancePayment.IsZero() {
		amount(pdf, tr, "Advance payment", "- "+r.money.Format(o.AdvancePayment))
	}
	if !o.Discount.IsZero() {
		amount(pdf, tr, "Discount", "- "+r.money.Format(o.Discount))
	}
	pdf.SetFont("Helvetica", "B", 11)
	amount(pdf, tr, "Expected total", r.money.Format(o.ExpectedTotal))

	if o.Term != nil {
		section(pdf, tr, o.Term.Title)
		pdf.SetFont("Helvetica", "", 8)
		pdf.MultiCell(180, 4, tr(stripTags(o.Term.Content)), "", "L", false)
	}

	if o.HasSignature() {
		section(pdf, tr, "Customer signature")
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("signature", opts, bytes.NewReader(o.Signature))
		pdf.ImageOptions("signature", pdf.GetX(), pdf.GetY(), 60, 0, true, opts, 0, "")
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(180, 6, tr("Printed "+time.Now().Format(dateLayout+" 15:04")), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(180, 7, tr(title), "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
}

func line(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	if value == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(40, 6, tr(label+":"), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(140, 6, tr(value), "", "L", false)
}

func amount(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.CellFormat(140, 6, tr(label), "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, tr(value), "", 1, "R", false, 0, "")
}

// stripTags drops markup from HTML term content for the plain PDF body.
func stripTags(s string) string {
	var b strings.Builder
	in := false
	for _, r := range s {
		switch {
		case r == '<':
			in = true
		case r == '>':
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
