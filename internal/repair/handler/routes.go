package handler

import (
	"github.com/gin-gonic/gin"
)

// RegisterPublicRoutes mounts the unauthenticated customer pages.
func (h *Handlers) RegisterPublicRoutes(r gin.IRouter) {
	pub := r.Group("/repairstatus")
	pub.POST("/send_message", h.Public.SendMessage)
	pub.GET("/pdf/:token", h.Public.PDF)
	pub.GET("/:token", h.Public.Status)
}

// RegisterRoutes mounts the staff API on an authenticated group.
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/events", h.SSE.Stream)

	orders := api.Group("/orders")
	{
		orders.GET("", h.Order.ListOrders)
		orders.POST("", h.Order.CreateOrder)
		orders.GET("/export", h.Order.ExportOrders)
		orders.GET("/by-number/:number", h.Order.FindByNumber)
		orders.GET("/:id", h.Order.GetOrder)
		orders.PATCH("/:id", h.Order.UpdateOrder)
		orders.DELETE("/:id", h.Order.DeleteOrder)
		orders.POST("/:id/archive", h.Order.ArchiveOrder)
		orders.POST("/:id/unarchive", h.Order.UnarchiveOrder)
		orders.PUT("/:id/signature", h.Order.SetSignature)
		orders.POST("/:id/signature/unlock", h.Order.UnlockSignature)
		orders.POST("/:id/devices/from-case", h.Order.AddDevicesFromCase)
		orders.GET("/:id/messages", h.Order.ListMessages)
		orders.POST("/:id/messages", h.Order.SendMessage)
		orders.GET("/:id/history", h.Order.ListHistory)
		orders.POST("/:id/sale-order", h.Order.CreateSaleOrder)
		orders.GET("/:id/qrcode", h.Order.QRCode)
		orders.GET("/:id/report", h.Order.Report)
		orders.POST("/:id/renewal-email", h.Renewal.ForceEmail)
		orders.GET("/:id/renewal-lead", h.Renewal.Lead)
	}

	api.POST("/renewals/sweep", h.Renewal.Sweep)

	inv := api.Group("/inventory")
	{
		inv.GET("", h.Inventory.ListItems)
		inv.POST("", h.Inventory.CreateItem)
		inv.POST("/import", h.Inventory.ImportItems)
		inv.GET("/import/template", h.Inventory.ImportTemplate)
		inv.GET("/:id", h.Inventory.GetItem)
		inv.PUT("/:id", h.Inventory.UpdateItem)
		inv.DELETE("/:id", h.Inventory.ArchiveItem)
	}

	cases := api.Group("/cases")
	{
		cases.GET("", h.Inventory.ListCases)
		cases.POST("", h.Inventory.CreateCase)
		cases.GET("/:id", h.Inventory.GetCase)
		cases.PUT("/:id", h.Inventory.UpdateCase)
		cases.DELETE("/:id", h.Inventory.ArchiveCase)
	}

	loaners := api.Group("/loaners")
	{
		loaners.GET("", h.Inventory.ListLoaners)
		loaners.POST("", h.Inventory.CreateLoaner)
		loaners.GET("/:id", h.Inventory.GetLoaner)
		loaners.PUT("/:id", h.Inventory.UpdateLoaner)
		loaners.POST("/:id/available", h.Inventory.MarkLoanerAvailable)
	}

	h.Catalog.Register(api.Group("/catalog"))
}
