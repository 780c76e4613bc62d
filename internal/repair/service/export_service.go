package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bitfantasy/nimo-repair/internal/config"
	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
)

const exportPageSize = 500

// ExportService Excel 导出
type ExportService struct {
	repos *repository.Repositories
	cfg   config.RepairConfig
}

func NewExportService(repos *repository.Repositories, cfg config.RepairConfig) *ExportService {
	return &ExportService{repos: repos, cfg: cfg}
}

var orderColumns = []struct {
	title string
	width float64
}{
	{"Number", 14}, {"Open date", 18}, {"Customer", 28}, {"Phone", 16}, {"Email", 28},
	{"Devices", 40}, {"State", 18}, {"Assigned to", 20}, {"Work type", 20},
	{"Estimated date", 14}, {"Close date", 18}, {"Repair cost", 12}, {"Advance payment", 14},
	{"Discount", 12}, {"Expected total", 14}, {"Renewal date", 14}, {"Archived", 10},
}

// ExportOrders writes every order matching req to one sheet.
func (s *ExportService) ExportOrders(ctx context.Context, req OrderListRequest) (*excelize.File, string, error) {
	var orders []entity.RepairOrder
	for page := 1; ; page++ {
		items, total, err := s.repos.Order.List(ctx, repository.OrderListParams{
			StateID:      req.StateID,
			AssignedToID: req.AssignedToID,
			CustomerID:   req.CustomerID,
			Keyword:      req.Keyword,
			Archived:     req.Archived,
			Closed:       req.Closed,
			Page:         page,
			Size:         exportPageSize,
		})
		if err != nil {
			return nil, "", err
		}
		orders = append(orders, items...)
		if len(items) < exportPageSize || int64(len(orders)) >= total {
			break
		}
	}

	f := excelize.NewFile()
	sheet := "Repairs"
	f.SetSheetName("Sheet1", sheet)

	headStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4})

	for i, c := range orderColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s1", col)
		f.SetCellValue(sheet, cell, c.title)
		f.SetCellStyle(sheet, cell, cell, headStyle)
		f.SetColWidth(sheet, col, col, c.width)
	}

	for i, o := range orders {
		row := i + 2
		values := []interface{}{
			o.Number,
			o.OpenDate.Format(dateTimeLayout),
			"", "", "",
			o.DeviceSummary,
			"",
			o.AssignedToName,
			"",
			dateCell(o.EstimatedDate, dateLayout),
			dateCell(o.CloseDate, dateTimeLayout),
			o.RepairCost.InexactFloat64(),
			o.AdvancePayment.InexactFloat64(),
			o.Discount.InexactFloat64(),
			o.ExpectedTotal.InexactFloat64(),
			dateCell(o.RenewalDate, dateLayout),
			yesNo(!o.Active),
		}
		if o.Customer != nil {
			values[2], values[3], values[4] = o.Customer.Name, o.Customer.Phone, o.Customer.Email
		}
		if o.State != nil {
			values[6] = o.State.Name
		}
		if o.WorkType != nil {
			values[8] = o.WorkType.Name
		}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
		}
		f.SetCellStyle(sheet, fmt.Sprintf("L%d", row), fmt.Sprintf("O%d", row), moneyStyle)
	}
	f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	filename := fmt.Sprintf("repairs_%s.xlsx", time.Now().Format("20060102"))
	return f, filename, nil
}

// InventoryTemplate is the empty workbook the inventory import expects.
func (s *ExportService) InventoryTemplate() *excelize.File {
	f := excelize.NewFile()
	sheet := "Inventory"
	f.SetSheetName("Sheet1", sheet)
	headStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, name := range importColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s1", col)
		f.SetCellValue(sheet, cell, name)
		f.SetCellStyle(sheet, cell, cell, headStyle)
		f.SetColWidth(sheet, col, col, 20)
	}
	return f
}

func dateCell(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
