package handler

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-repair/internal/repair/service"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

//go:embed templates/status.html
var templatesFS embed.FS

var statusPage = template.Must(template.ParseFS(templatesFS, "templates/status.html"))

// PublicHandler 客户公开页面，无需登录
type PublicHandler struct {
	svc *service.PublicService
}

func NewPublicHandler(svc *service.PublicService) *PublicHandler {
	return &PublicHandler{svc: svc}
}

// Status 维修进度页面
// GET /repairstatus/:token
func (h *PublicHandler) Status(c *gin.Context) {
	view, err := h.svc.Status(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.Error(err)
		c.String(http.StatusInternalServerError, "Error: the repair status is not available right now.")
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := statusPage.Execute(c.Writer, view); err != nil {
		c.Error(err)
	}
}

// SendMessage 客户留言，完成后重定向回进度页面
// POST /repairstatus/send_message (form: token, customer_message)
func (h *PublicHandler) SendMessage(c *gin.Context) {
	token := strings.TrimSpace(c.PostForm("token"))
	if err := h.svc.SendCustomerMessage(c.Request.Context(), token, c.PostForm("customer_message")); err != nil {
		c.Error(err)
	}
	c.Redirect(http.StatusSeeOther, "/repairstatus/"+url.PathEscape(token))
}

// PDF 维修报告下载
// GET /repairstatus/pdf/:token
func (h *PublicHandler) PDF(c *gin.Context) {
	r, err := h.svc.PDF(c.Request.Context(), c.Param("token"))
	switch {
	case err == nil:
	case apperr.KindOf(err) == apperr.KindNotFound:
		c.String(http.StatusNotFound, "Error: Repair not found.")
		return
	case errors.Is(err, service.ErrNoRenderer):
		c.String(http.StatusOK, "Error: Report does not exist.")
		return
	case errors.Is(err, service.ErrRender):
		c.Error(err)
		c.String(http.StatusOK, "Error generating PDF: "+strings.TrimPrefix(err.Error(), service.ErrRender.Error()+": "))
		return
	default:
		c.Error(err)
		c.String(http.StatusInternalServerError, "Error generating PDF: internal error")
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+r.Filename+"\"")
	c.Data(http.StatusOK, "application/pdf", r.Data)
}
