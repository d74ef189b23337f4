package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the REST gateway under rg.
func (h *WorkOrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/work-orders")
	orders.POST("", h.createOrder)
	orders.GET("", h.listOrders)
	orders.GET("/:id", h.getOrder)
	orders.PUT("/:id", h.updateOrder)
	orders.POST("/:id/assign-technician", h.assignTechnician)
	orders.POST("/:id/request-authorization", h.transition(h.uc.RequestAuthorization))
	orders.POST("/:id/authorize", h.authorize)
	orders.GET("/:id/authorizations", h.listAuthorizations)
	orders.POST("/:id/start", h.transition(h.uc.Start))
	orders.POST("/:id/finish", h.transition(h.uc.Finish))
	orders.POST("/:id/deliver", h.transition(h.uc.Deliver))
	orders.POST("/:id/cancel", h.cancel)
	orders.GET("/:id/cancellation", h.getCancellation)
	orders.POST("/:id/sale", h.createSale)
}

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, apperror.ValidationFields("invalid work order id", map[string]string{"id": "gt"}))
		return 0, false
	}
	return id, true
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, apperror.Validation("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	code, body := apperror.ToBody(err)
	c.JSON(code, gin.H{"error": body})
}

// writeOrder answers with the order even when err is set, which happens when
// a sale could not be created after the state change committed.
func (h *WorkOrderHandler) writeOrder(c *gin.Context, o *model.WorkOrder, err error) {
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInternal {
			h.logger.Error("Work order request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		code, body := apperror.ToBody(err)
		if o != nil {
			c.JSON(code, gin.H{"error": body, "data": toResponse(o)})
			return
		}
		c.JSON(code, gin.H{"error": body})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toResponse(o)})
}

func (h *WorkOrderHandler) createOrder(c *gin.Context) {
	var req dto.CreateOrderInput
	if !bind(c, &req) {
		return
	}
	o, err := h.uc.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeOrder(c, nil, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": toResponse(o)})
}

func (h *WorkOrderHandler) listOrders(c *gin.Context) {
	var filters dto.OrderFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		writeError(c, apperror.Validation("invalid query: "+err.Error()))
		return
	}
	orders, err := h.uc.ListOrders(c.Request.Context(), &filters)
	if err != nil {
		writeError(c, err)
		return
	}
	items := make([]*OrderResponse, len(orders))
	for i := range orders {
		items[i] = toResponse(&orders[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *WorkOrderHandler) getOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	o, err := h.uc.GetOrder(c.Request.Context(), id)
	h.writeOrder(c, o, err)
}

func (h *WorkOrderHandler) updateOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req dto.UpdateOrderInput
	if !bind(c, &req) {
		return
	}
	req.OrderID = id
	o, err := h.uc.UpdateOrder(c.Request.Context(), &req)
	h.writeOrder(c, o, err)
}

func (h *WorkOrderHandler) assignTechnician(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req dto.AssignTechnicianInput
	if !bind(c, &req) {
		return
	}
	req.OrderID = id
	o, err := h.uc.AssignTechnician(c.Request.Context(), &req)
	h.writeOrder(c, o, err)
}

func (h *WorkOrderHandler) transition(fn func(ctx context.Context, input *dto.TransitionInput) (*model.WorkOrder, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		var req dto.TransitionInput
		if !bind(c, &req) {
			return
		}
		req.OrderID = id
		o, err := fn(c.Request.Context(), &req)
		h.writeOrder(c, o, err)
	}
}

func (h *WorkOrderHandler) authorize(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req dto.AuthorizeInput
	if !bind(c, &req) {
		return
	}
	req.OrderID = id
	o, err := h.uc.Authorize(c.Request.Context(), &req)
	h.writeOrder(c, o, err)
}

func (h *WorkOrderHandler) listAuthorizations(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	events, err := h.uc.ListAuthorizationEvents(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (h *WorkOrderHandler) cancel(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req dto.CancelInput
	if !bind(c, &req) {
		return
	}
	req.OrderID = id
	o, err := h.uc.Cancel(c.Request.Context(), &req)
	h.writeOrder(c, o, err)
}

func (h *WorkOrderHandler) getCancellation(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	rec, err := h.uc.GetCancellation(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

func (h *WorkOrderHandler) createSale(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	o, err := h.uc.CreateSale(c.Request.Context(), id)
	h.writeOrder(c, o, err)
}
