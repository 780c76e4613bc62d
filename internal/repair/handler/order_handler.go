package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-repair/internal/repair/service"
)

// OrderHandler 维修单处理器
type OrderHandler struct {
	svc    *service.OrderService
	public *service.PublicService
	export *service.ExportService
}

func NewOrderHandler(svc *service.OrderService, public *service.PublicService, export *service.ExportService) *OrderHandler {
	return &OrderHandler{svc: svc, public: public, export: export}
}

// ListOrders 维修单列表
// GET /api/v1/orders?state_id=xxx&assigned_to_id=xxx&customer_id=xxx&keyword=xxx&archived=false&closed=true&page=1&page_size=20
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var req service.OrderListRequest
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

// GetOrder 维修单详情
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	o, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, o)
}

// FindByNumber 扫码查找
// GET /api/v1/orders/by-number/:number
func (h *OrderHandler) FindByNumber(c *gin.Context) {
	o, err := h.svc.FindByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, o)
}

// CreateOrder 接单
// POST /api/v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindFailed(c, err)
		return
	}
	o, err := h.svc.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, o)
}

// UpdateOrder 部分更新，未提供的字段保持不变
// PATCH /api/v1/orders/:id
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var patch service.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		BindFailed(c, err)
		return
	}
	o, err := h.svc.Update(c.Request.Context(), c.Param("id"), patch, actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, o)
}

// DeleteOrder always refuses.
// DELETE /api/v1/orders/:id
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	Fail(c, h.svc.Delete(c.Request.Context(), c.Param("id")))
}

// ArchiveOrder 归档
// POST /api/v1/orders/:id/archive
func (h *OrderHandler) ArchiveOrder(c *gin.Context) {
	o, err := h.svc.Archive(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, o)
}

// UnarchiveOrder 取消归档
// POST /api/v1/orders/:id/unarchive
func (h *OrderHandler) UnarchiveOrder(c *gin.Context) {
	o, err := h.svc.Unarchive(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, o)
}

type signatureRequest struct {
	// base64 PNG
	Signature []byte `json:"signature" binding:"required"`
}

// SetSignature 客户签名
// PUT /api/v1/orders/:id/signature
func (h *OrderHandler) SetSignature(c *gin.Context) {
	var req signatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindFailed(c, err)
		return
	}
	o, err := h.svc.SetSignature(c.Request.Context(), c.Param("id"), req.Signature, actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, o)
}

// UnlockSignature 解锁签名
// POST /api/v1/orders/:id/signature/unlock
func (h *OrderHandler) UnlockSignature(c *gin.Context) {
	o, err := h.svc.UnlockSignature(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, o)
}

type addFromCaseRequest struct {
	CaseID string `json:"case_id"`
}

// AddDevicesFromCase 从设备箱添加设备
// POST /api/v1/orders/:id/devices/from-case
func (h *OrderHandler) AddDevicesFromCase(c *gin.Context) {
	var req addFromCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindFailed(c, err)
		return
	}
	o, added, err := h.svc.AddDevicesFromCase(c.Request.Context(), c.Param("id"), req.CaseID, actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"order": o, "added": added})
}

// ListMessages 客户聊天记录
// GET /api/v1/orders/:id/messages
func (h *OrderHandler) ListMessages(c *gin.Context) {
	msgs, err := h.svc.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": msgs})
}

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

// SendMessage 技术员回复
// POST /api/v1/orders/:id/messages
func (h *OrderHandler) SendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindFailed(c, err)
		return
	}
	msg, err := h.svc.SendTechnicianMessage(c.Request.Context(), c.Param("id"), req.Message, actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, msg)
}

// ListHistory 变更记录
// GET /api/v1/orders/:id/history
func (h *OrderHandler) ListHistory(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.History(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// CreateSaleOrder 由配件生成销售单
// POST /api/v1/orders/:id/sale-order
func (h *OrderHandler) CreateSaleOrder(c *gin.Context) {
	so, err := h.svc.CreateSaleOrder(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, so)
}

// QRCode 二维码 PNG
// GET /api/v1/orders/:id/qrcode?kind=customer|internal&size=256
func (h *OrderHandler) QRCode(c *gin.Context) {
	size := 256
	if v, err := strconv.Atoi(c.Query("size")); err == nil && v >= 64 && v <= 1024 {
		size = v
	}
	png, err := h.svc.QRCode(c.Request.Context(), c.Param("id"), c.Query("kind"), size)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Data(200, "image/png", png)
}

// Report 维修报告 PDF
// GET /api/v1/orders/:id/report
func (h *OrderHandler) Report(c *gin.Context) {
	r, err := h.public.OrderPDF(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, service.ErrNoRenderer):
		Error(c, 50300, "Report does not exist.")
		return
	case errors.Is(err, service.ErrRender):
		Error(c, 50000, "Error generating PDF: "+strings.TrimPrefix(err.Error(), service.ErrRender.Error()+": "))
		return
	case err != nil:
		Fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+r.Filename+"\"")
	c.Data(200, "application/pdf", r.Data)
}

// ExportOrders 导出 Excel
// GET /api/v1/orders/export?state_id=xxx&keyword=xxx
func (h *OrderHandler) ExportOrders(c *gin.Context) {
	var req service.OrderListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BindFailed(c, err)
		return
	}
	f, filename, err := h.export.ExportOrders(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
