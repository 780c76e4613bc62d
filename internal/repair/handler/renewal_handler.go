package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-repair/internal/repair/service"
)

// RenewalHandler 软件续费
type RenewalHandler struct {
	svc *service.RenewalService
	now func() time.Time
}

func NewRenewalHandler(svc *service.RenewalService) *RenewalHandler {
	return &RenewalHandler{svc: svc, now: time.Now}
}

// Sweep runs the daily reminder sweep, for today or ?date=YYYY-MM-DD.
// POST /api/v1/renewals/sweep
func (h *RenewalHandler) Sweep(c *gin.Context) {
	day := h.now()
	if d := c.Query("date"); d != "" {
		parsed, err := time.ParseInLocation("2006-01-02", d, time.Local)
		if err != nil {
			BadRequest(c, "Invalid date, expected YYYY-MM-DD.")
			return
		}
		day = parsed
	}
	res, err := h.svc.Sweep(c.Request.Context(), day)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

// ForceEmail 手动发送续费提醒
// POST /api/v1/orders/:id/renewal-email
func (h *RenewalHandler) ForceEmail(c *gin.Context) {
	if err := h.svc.ForceRenewalEmail(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// Lead 续费商机
// GET /api/v1/orders/:id/renewal-lead
func (h *RenewalHandler) Lead(c *gin.Context) {
	l, err := h.svc.Lead(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, l)
}
