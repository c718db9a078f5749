package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/kendall-kelly/delivery-marketplace-api/services"
)

// StatusRequest is the body of POST /api/orders/:id/status
type StatusRequest struct {
	Status        models.OrderStatus `json:"status"`
	ProofImageKey *string            `json:"proof_image_key"`
}

// AssignRequest is the body of POST /api/orders/:id/assign
type AssignRequest struct {
	DriverID string `json:"driver_id"`
}

// OrderController serves the order endpoints
type OrderController struct {
	responder
	orders *services.OrderService
}

// NewOrderController creates an order controller
func NewOrderController(orders *services.OrderService, log logger.Logger, production bool) *OrderController {
	return &OrderController{responder: newResponder(log, production), orders: orders}
}

// List handles GET /api/orders - role-scoped listing
func (ctl *OrderController) List(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	filter := services.ListOrdersFilter{Status: models.OrderStatus(c.Query("status"))}
	orders, err := ctl.orders.ListOrders(c.Request.Context(), caller, filter)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, orders)
}

// Create handles POST /api/orders - a customer orders for themselves
func (ctl *OrderController) Create(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.badBody(c, err)
		return
	}

	order, err := ctl.orders.CreateOrder(c.Request.Context(), caller, req)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusCreated, order)
}

// CreateForCustomer handles POST /api/admin/orders - staff order on behalf of a
// customer, optionally assigning a driver straight away
func (ctl *OrderController) CreateForCustomer(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.badBody(c, err)
		return
	}
	if req.CustomerID == "" {
		ctl.respondError(c, models.NewValidationError("customer_id", "customer_id is required"))
		return
	}

	order, err := ctl.orders.CreateOrder(c.Request.Context(), caller, req)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusCreated, order)
}

// Get handles GET /api/orders/:id
func (ctl *OrderController) Get(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	order, err := ctl.orders.GetOrderFor(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, order)
}

// Update handles PATCH /api/orders/:id
func (ctl *OrderController) Update(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	var patch services.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		ctl.badBody(c, err)
		return
	}

	order, err := ctl.orders.UpdateOrder(c.Request.Context(), caller, c.Param("id"), patch)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, order)
}

// UpdateStatus handles POST /api/orders/:id/status
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.badBody(c, err)
		return
	}
	if req.Status == "" {
		ctl.respondError(c, models.NewValidationError("status", "status is required"))
		return
	}

	order, err := ctl.orders.AdvanceStatus(c.Request.Context(), caller, c.Param("id"), req.Status, req.ProofImageKey)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, order)
}

// Assign handles POST /api/orders/:id/assign
func (ctl *OrderController) Assign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.badBody(c, err)
		return
	}
	if req.DriverID == "" {
		ctl.respondError(c, models.NewValidationError("driver_id", "driver_id is required"))
		return
	}

	order, err := ctl.orders.AssignDriver(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, order)
}

// Cancel handles POST /api/orders/:id/cancel
func (ctl *OrderController) Cancel(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	order, err := ctl.orders.CancelOrder(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, order)
}

// ProofUpload handles POST /api/orders/:id/proof-upload - returns a presigned
// URL the driver PUTs the delivery photo to
func (ctl *OrderController) ProofUpload(c *gin.Context) {
	caller, ok := ctl.caller(c)
	if !ok {
		return
	}

	key, url, err := ctl.orders.ProofUploadURL(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, gin.H{
		"key":       key,
		"upload_url": url,
	})
}
