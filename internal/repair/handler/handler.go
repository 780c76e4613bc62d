package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/bitfantasy/nimo-repair/internal/repair/service"
	"github.com/bitfantasy/nimo-repair/internal/repair/sse"
	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

// Handlers 维修处理器集合
type Handlers struct {
	Order     *OrderHandler
	Inventory *InventoryHandler
	Catalog   *CatalogHandlers
	Renewal   *RenewalHandler
	Public    *PublicHandler
	SSE       *SSEHandler
}

// NewHandlers 创建维修处理器集合
func NewHandlers(svcs *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		Order:     NewOrderHandler(svcs.Order, svcs.Public, svcs.Export),
		Inventory: NewInventoryHandler(svcs.Inventory, svcs.Export),
		Catalog:   NewCatalogHandlers(svcs.Catalog),
		Renewal:   NewRenewalHandler(svcs.Renewal),
		Public:    NewPublicHandler(svcs.Public),
		SSE:       NewSSEHandler(hub, svcs.Order),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// FieldError is one failed binding rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// List writes a paginated list.
func List(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// Fail renders a service error by kind. Unclassified errors are logged by the
// access log through c.Errors and shown as a generic message.
func Fail(c *gin.Context, err error) {
	c.Error(err)
	var e *apperr.Error
	if !errors.As(err, &e) {
		InternalError(c, "Internal server error")
		return
	}
	switch e.Kind {
	case apperr.KindValidation:
		Error(c, 40000, e.Message)
	case apperr.KindOperation:
		Error(c, 40900, e.Message)
	case apperr.KindNotFound:
		Error(c, 40400, e.Message)
	case apperr.KindConflict:
		Error(c, 40901, e.Message)
	case apperr.KindExternal:
		Error(c, 50200, e.Message)
	default:
		InternalError(c, "Internal server error")
	}
}

// BindFailed renders a binding error, with one entry per failed field when
// the validator reports them.
func BindFailed(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	details := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		names = append(names, fe.Field())
	}
	c.JSON(400, Response{
		Code:    40001,
		Message: "Invalid fields: " + strings.Join(names, ", "),
		Data:    gin.H{"fields": details},
	})
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// actor is the authenticated technician.
func actor(c *gin.Context) service.Actor {
	return service.Actor{ID: GetUserID(c), Name: c.GetString("user_name")}
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
