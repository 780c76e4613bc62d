package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-repair/internal/repair/service"
)

// InventoryHandler 库存、设备箱、备用机处理器
type InventoryHandler struct {
	svc    *service.InventoryService
	export *service.ExportService
}

func NewInventoryHandler(svc *service.InventoryService, export *service.ExportService) *InventoryHandler {
	return &InventoryHandler{svc: svc, export: export}
}

// ListItems 库存列表
// GET /api/v1/inventory?status=available&model_id=xxx&case_id=xxx&keyword=xxx&page=1&page_size=20
func (h *InventoryHandler) ListItems(c *gin.Context) {
	var req service.InventoryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BindFailed(c, err)
		return
	}
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), req, page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// GetItem 库存详情
// GET /api/v1/inventory/:id
func (h *InventoryHandler) GetItem(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, item)
}

// CreateItem 入库
// POST /api/v1/inventory
func (h *InventoryHandler) CreateItem(c *gin.Context) {
	var req service.InventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindFailed(c, err)
		return
	}
	item, err := h.svc.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, item)
}

// UpdateItem 更新库存设备
// PUT /api/v1/inventory/:id
func (h *InventoryHandler) UpdateItem(c *gin.Context) {
	var req service.InventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindFailed(c, err)
		return
	}
	item, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, item)
}

// ArchiveItem 归档库存设备
// DELETE /api/v1/inventory/:id
func (h *InventoryHandler) ArchiveItem(c *gin.Context) {
	if err := h.svc.Archive(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// ImportItems 从 Excel 批量入库
// POST /api/v1/inventory/import (multipart, field "file")
func (h *InventoryHandler) ImportItems(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "Please upload an Excel file.")
		return
	}
	defer file.Close()

	result, err := h.svc.Import(c.Request.Context(), file, actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// ImportTemplate 下载导入模板
// GET /api/v1/inventory/import/template
func (h *InventoryHandler) ImportTemplate(c *gin.Context) {
	f := h.export.InventoryTemplate()
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\"Inventory_Import_Template.xlsx\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write template: "+err.Error())
	}
}

// === 设备箱 ===

// ListCases GET /api/v1/cases
func (h *InventoryHandler) ListCases(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListCases(c.Request.Context(), c.Query("keyword"), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// GetCase GET /api/v1/cases/:id
func (h *InventoryHandler) GetCase(c *gin.Context) {
	cs, err := h.svc.GetCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, cs)
}

// CreateCase POST /api/v1/cases
func (h *InventoryHandler) CreateCase(c *gin.Context) {
	var req service.CaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindFailed(c, err)
		return
	}
	cs, err := h.svc.CreateCase(c.Request.Context(), req, actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, cs)
}

// UpdateCase PUT /api/v1/cases/:id
func (h *InventoryHandler) UpdateCase(c *gin.Context) {
	var req service.CaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindFailed(c, err)
		return
	}
	cs, err := h.svc.UpdateCase(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, cs)
}

// ArchiveCase DELETE /api/v1/cases/:id
func (h *InventoryHandler) ArchiveCase(c *gin.Context) {
	if err := h.svc.ArchiveCase(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// === 备用机 ===

// ListLoaners GET /api/v1/loaners
func (h *InventoryHandler) ListLoaners(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListLoaners(c.Request.Context(), c.Query("keyword"), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// GetLoaner GET /api/v1/loaners/:id
func (h *InventoryHandler) GetLoaner(c *gin.Context) {
	l, err := h.svc.GetLoaner(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, l)
}

// CreateLoaner POST /api/v1/loaners
func (h *InventoryHandler) CreateLoaner(c *gin.Context) {
	var req service.LoanerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindFailed(c, err)
		return
	}
	l, err := h.svc.CreateLoaner(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, l)
}

// UpdateLoaner PUT /api/v1/loaners/:id
func (h *InventoryHandler) UpdateLoaner(c *gin.Context) {
	var req service.LoanerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindFailed(c, err)
		return
	}
	l, err := h.svc.UpdateLoaner(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, l)
}

// MarkLoanerAvailable POST /api/v1/loaners/:id/available
func (h *InventoryHandler) MarkLoanerAvailable(c *gin.Context) {
	l, err := h.svc.MarkLoanerAvailable(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, l)
}
