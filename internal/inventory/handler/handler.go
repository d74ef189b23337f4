package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"github.com/fekuna/omnipos-workshop-service/pkg/rpc"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
)

const ServiceName = "omnipos.workshop.v1.InventoryService"

type InventoryServiceServer interface {
	GetPartStock(context.Context, *PartRef) (*model.PartStock, error)
	ReceiveStock(context.Context, *dto.ReceiveStockInput) (*model.InventoryMovement, error)
	AdjustStock(context.Context, *dto.AdjustStockInput) (*model.InventoryMovement, error)
	ListMovements(context.Context, *dto.MovementFilters) (*ListMovementsResponse, error)
}

type PartRef struct {
	PartID int64 `json:"part_id"`
}

type ListMovementsResponse struct {
	Movements []model.InventoryMovement `json:"movements"`
}

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *InventoryHandler) GetPartStock(ctx context.Context, req *PartRef) (*model.PartStock, error) {
	stock, err := h.uc.GetPartStock(ctx, req.PartID)
	if err != nil {
		return nil, apperror.GRPCStatus(err)
	}
	return stock, nil
}

func (h *InventoryHandler) ReceiveStock(ctx context.Context, req *dto.ReceiveStockInput) (*model.InventoryMovement, error) {
	mv, err := h.uc.ReceiveStock(ctx, req)
	if err != nil {
		return nil, apperror.GRPCStatus(err)
	}
	return mv, nil
}

func (h *InventoryHandler) AdjustStock(ctx context.Context, req *dto.AdjustStockInput) (*model.InventoryMovement, error) {
	mv, err := h.uc.AdjustStock(ctx, req)
	if err != nil {
		return nil, apperror.GRPCStatus(err)
	}
	return mv, nil
}

func (h *InventoryHandler) ListMovements(ctx context.Context, req *dto.MovementFilters) (*ListMovementsResponse, error) {
	items, err := h.uc.ListMovements(ctx, req)
	if err != nil {
		return nil, apperror.GRPCStatus(err)
	}
	return &ListMovementsResponse{Movements: items}, nil
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "GetPartStock", InventoryServiceServer.GetPartStock),
		rpc.Unary(ServiceName, "ReceiveStock", InventoryServiceServer.ReceiveStock),
		rpc.Unary(ServiceName, "AdjustStock", InventoryServiceServer.AdjustStock),
		rpc.Unary(ServiceName, "ListMovements", InventoryServiceServer.ListMovements),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// RegisterRoutes mounts the stock endpoints under rg.
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	parts := rg.Group("/parts/:id")
	parts.GET("/stock", h.getStock)
	parts.POST("/receipts", h.receive)
	parts.POST("/adjustments", h.adjust)
	rg.GET("/inventory/movements", h.listMovements)
}

func writeError(c *gin.Context, err error) {
	code, body := apperror.ToBody(err)
	c.JSON(code, gin.H{"error": body})
}

func partID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, apperror.ValidationFields("invalid part id", map[string]string{"id": "gt"}))
		return 0, false
	}
	return id, true
}

func (h *InventoryHandler) getStock(c *gin.Context) {
	id, ok := partID(c)
	if !ok {
		return
	}
	stock, err := h.uc.GetPartStock(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stock})
}

func (h *InventoryHandler) receive(c *gin.Context) {
	id, ok := partID(c)
	if !ok {
		return
	}
	var req dto.ReceiveStockInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperror.Validation("invalid request body: "+err.Error()))
		return
	}
	req.PartID = id
	mv, err := h.uc.ReceiveStock(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": mv})
}

func (h *InventoryHandler) adjust(c *gin.Context) {
	id, ok := partID(c)
	if !ok {
		return
	}
	var req dto.AdjustStockInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperror.Validation("invalid request body: "+err.Error()))
		return
	}
	req.PartID = id
	mv, err := h.uc.AdjustStock(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": mv})
}

func (h *InventoryHandler) listMovements(c *gin.Context) {
	var filters dto.MovementFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		writeError(c, apperror.Validation("invalid query: "+err.Error()))
		return
	}
	items, err := h.uc.ListMovements(c.Request.Context(), &filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
