package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-repair/internal/repair/service"
)

// CatalogHandler serves CRUD for one catalog type.
type CatalogHandler[T any, P service.Record[T]] struct {
	svc *service.CatalogService[T, P]
}

func NewCatalogHandler[T any, P service.Record[T]](svc *service.CatalogService[T, P]) *CatalogHandler[T, P] {
	return &CatalogHandler[T, P]{svc: svc}
}

// List 列表，?all=true 时不分页
// GET /api/v1/catalog/<type>?keyword=xxx&page=1&page_size=20
func (h *CatalogHandler[T, P]) List(c *gin.Context) {
	if c.Query("all") == "true" {
		items, err := h.svc.All(c.Request.Context())
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, gin.H{"items": items})
		return
	}
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), c.Query("keyword"), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// Get 详情
// GET /api/v1/catalog/<type>/:id
func (h *CatalogHandler[T, P]) Get(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, item)
}

// Create 创建
// POST /api/v1/catalog/<type>
func (h *CatalogHandler[T, P]) Create(c *gin.Context) {
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		BindFailed(c, err)
		return
	}
	created, err := h.svc.Create(c.Request.Context(), &item)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, created)
}

// Update 全量更新
// PUT /api/v1/catalog/<type>/:id
func (h *CatalogHandler[T, P]) Update(c *gin.Context) {
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		BindFailed(c, err)
		return
	}
	updated, err := h.svc.Update(c.Request.Context(), c.Param("id"), &item)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, updated)
}

// Delete 删除
// DELETE /api/v1/catalog/<type>/:id
func (h *CatalogHandler[T, P]) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

func (h *CatalogHandler[T, P]) register(g *gin.RouterGroup, path string) {
	r := g.Group(path)
	r.GET("", h.List)
	r.POST("", h.Create)
	r.GET("/:id", h.Get)
	r.PUT("/:id", h.Update)
	r.DELETE("/:id", h.Delete)
}

// CatalogHandlers 基础数据处理器集合
type CatalogHandlers struct {
	svcs *service.CatalogServices
}

func NewCatalogHandlers(svcs *service.CatalogServices) *CatalogHandlers {
	return &CatalogHandlers{svcs: svcs}
}

// Register mounts every catalog type under g.
func (h *CatalogHandlers) Register(g *gin.RouterGroup) {
	s := h.svcs
	NewCatalogHandler(s.Categories).register(g, "/categories")
	NewCatalogHandler(s.Brands).register(g, "/brands")
	NewCatalogHandler(s.Models).register(g, "/models")
	NewCatalogHandler(s.Variants).register(g, "/variants")
	NewCatalogHandler(s.Colors).register(g, "/colors")
	NewCatalogHandler(s.WorkTypes).register(g, "/work-types")
	NewCatalogHandler(s.Software).register(g, "/software")
	NewCatalogHandler(s.Terms).register(g, "/terms")
	NewCatalogHandler(s.PublicStates).register(g, "/public-states")
	NewCatalogHandler(s.States).register(g, "/states")
	NewCatalogHandler(s.LabPartners).register(g, "/lab-partners")
	NewCatalogHandler(s.Products).register(g, "/products")
	NewCatalogHandler(s.Customers).register(g, "/customers")
}
