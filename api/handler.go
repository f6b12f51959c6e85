package api

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"merch_ledger/internal/sales"
)

// salesHandler holds the ledger service and implements HTTP handlers for its operations.
type salesHandler struct {
	salesService *sales.Service
	logger       *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		salesService: salesService,
		logger:       logger,
	}
}

type idURI struct {
	ID uint64 `uri:"id"`
}

type periodQuery struct {
	StartTime *int64 `form:"start_time"`
	EndTime   *int64 `form:"end_time"`
}

// bounds returns the time window, open ends widened to the full int64 range.
func (q periodQuery) bounds() (int64, int64) {
	start, end := int64(math.MinInt64), int64(math.MaxInt64)
	if q.StartTime != nil {
		start = *q.StartTime
	}
	if q.EndTime != nil {
		end = *q.EndTime
	}
	return start, end
}

type scanQuery struct {
	StartID   *uint64 `form:"start_id"`
	EndID     *uint64 `form:"end_id"`
	StartTime *int64  `form:"start_time"`
	EndTime   *int64  `form:"end_time"`
}

// writeError maps service errors to a status and a stable error code.
func (h *salesHandler) writeError(ctx *gin.Context, err error, msg string) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, sales.ErrUnauthorized):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, sales.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, sales.ErrInventoryExhausted):
		status, code = http.StatusConflict, "inventory_exhausted"
	case errors.Is(err, sales.ErrInsufficientFunds):
		status, code = http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, sales.ErrTransferFailed):
		status, code = http.StatusBadGateway, "transfer_failed"
	case errors.Is(err, sales.ErrBelowMinimum):
		status, code = http.StatusUnprocessableEntity, "below_minimum"
	case errors.Is(err, sales.ErrCapacityExceeded):
		status, code = http.StatusUnprocessableEntity, "capacity_exceeded"
	case errors.Is(err, sales.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	}

	fields := []zap.Field{
		zap.String("request_id", ctx.GetString(requestIDKey)),
		zap.String("caller", string(caller(ctx))),
		zap.String("code", code),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, fields...)
		ctx.JSON(status, gin.H{"error": msg, "code": code})
		return
	}
	h.logger.Warn(msg, fields...)
	ctx.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func (h *salesHandler) badRequest(ctx *gin.Context, err error) {
	h.logger.Warn("failed to bind request", zap.String("request_id", ctx.GetString(requestIDKey)), zap.Error(err))
	ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload", "code": "invalid_argument"})
}

// handleRegisterArtist handles the POST /artists endpoint.
func (h *salesHandler) handleRegisterArtist(ctx *gin.Context) {
	var req struct {
		Name       string `json:"name" binding:"required"`
		MinPayment uint64 `json:"min_payment"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.badRequest(ctx, err)
		return
	}

	profile, err := h.salesService.RegisterArtist(caller(ctx), req.Name, req.MinPayment)
	if err != nil {
		h.writeError(ctx, err, "failed to register artist")
		return
	}
	ctx.JSON(http.StatusCreated, profile)
}

func (h *salesHandler) handleGetProfile(ctx *gin.Context) {
	profile, err := h.salesService.Profile(sales.Identity(ctx.Param("identity")))
	if err != nil {
		h.writeError(ctx, err, "failed to get profile")
		return
	}
	ctx.JSON(http.StatusOK, profile)
}

func (h *salesHandler) handleToggleOfflinePayments(ctx *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.badRequest(ctx, err)
		return
	}

	enabled, err := h.salesService.ToggleOfflinePayments(caller(ctx), *req.Enabled)
	if err != nil {
		h.writeError(ctx, err, "failed to toggle offline payments")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (h *salesHandler) handleSetMerchandiseAvailability(ctx *gin.Context) {
	var req struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.badRequest(ctx, err)
		return
	}

	available, err := h.salesService.SetMerchandiseAvailability(caller(ctx), *req.Available)
	if err != nil {
		h.writeError(ctx, err, "failed to set merchandise availability")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"available": available})
}

// handleAddMerchandise handles the POST /merchandise endpoint.
func (h *salesHandler) handleAddMerchandise(ctx *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Price    uint64 `json:"price"`
		Quantity uint64 `json:"quantity"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.badRequest(ctx, err)
		return
	}

	id, err := h.salesService.AddMerchandise(caller(ctx), req.Name, req.Price, req.Quantity)
	if err != nil {
		h.writeError(ctx, err, "failed to add merchandise")
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *salesHandler) handleGetItem(ctx *gin.Context) {
	var uri idURI
	if err := ctx.ShouldBindUri(&uri); err != nil {
		h.badRequest(ctx, err)
		return
	}

	item, err := h.salesService.Item(uri.ID)
	if err != nil {
		h.writeError(ctx, err, "failed to get item")
		return
	}
	ctx.JSON(http.StatusOK, item)
}

// handlePurchase handles the POST /merchandise/:id/purchases endpoint.
func (h *salesHandler) handlePurchase(ctx *gin.Context) {
	var uri idURI
	if err := ctx.ShouldBindUri(&uri); err != nil {
		h.badRequest(ctx, err)
		return
	}

	saleID, err := h.salesService.Purchase(ctx.Request.Context(), caller(ctx), uri.ID)
	if err != nil {
		h.writeError(ctx, err, "failed to purchase")
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"sale_id": saleID})
}

// handleRecordOfflineSale handles the POST /merchandise/:id/offline-sales endpoint.
func (h *salesHandler) handleRecordOfflineSale(ctx *gin.Context) {
	var uri idURI
	if err := ctx.ShouldBindUri(&uri); err != nil {
		h.badRequest(ctx, err)
		return
	}
	var req struct {
		Buyer  string `json:"buyer" binding:"required"`
		Amount uint64 `json:"amount"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.badRequest(ctx, err)
		return
	}

	saleID, err := h.salesService.RecordOfflineSale(caller(ctx), uri.ID, sales.Identity(req.Buyer), req.Amount)
	if err != nil {
		h.writeError(ctx, err, "failed to record offline sale")
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"sale_id": saleID})
}

// handleScanSales handles the GET /sales endpoint.
func (h *salesHandler) handleScanSales(ctx *gin.Context) {
	var q scanQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		h.badRequest(ctx, err)
		return
	}
	startID, endID := uint64(0), uint64(math.MaxUint64)
	if q.StartID != nil {
		startID = *q.StartID
	}
	if q.EndID != nil {
		endID = *q.EndID
	}
	startTime, endTime := periodQuery{StartTime: q.StartTime, EndTime: q.EndTime}.bounds()

	found, err := h.salesService.ScanRange(startID, endID, startTime, endTime)
	if err != nil {
		h.writeError(ctx, err, "failed to scan sales")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": found, "metadata": sales.Summarize(found)})
}

// handleGetSale handles GET /sales/:id. With a start_time or end_time the
// sale is only returned when it falls in that window.
func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	var uri idURI
	if err := ctx.ShouldBindUri(&uri); err != nil {
		h.badRequest(ctx, err)
		return
	}
	var q periodQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		h.badRequest(ctx, err)
		return
	}

	if q.StartTime == nil && q.EndTime == nil {
		sale, err := h.salesService.Sale(uri.ID)
		if err != nil {
			h.writeError(ctx, err, "failed to get sale")
			return
		}
		ctx.JSON(http.StatusOK, sale)
		return
	}

	startTime, endTime := q.bounds()
	sale, ok, err := h.salesService.GetSaleIfInPeriod(uri.ID, startTime, endTime)
	if err != nil {
		h.writeError(ctx, err, "failed to get sale")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"in_period": ok, "sale": sale})
}

func (h *salesHandler) handleStats(ctx *gin.Context) {
	saleCount, itemCount, err := h.salesService.Counts()
	if err != nil {
		h.writeError(ctx, err, "failed to read counters")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"sale_count": saleCount, "item_count": itemCount})
}

// handleSendTip handles the POST /tips endpoint.
func (h *salesHandler) handleSendTip(ctx *gin.Context) {
	amount, err := h.salesService.SendTip(ctx.Request.Context(), caller(ctx))
	if err != nil {
		h.writeError(ctx, err, "failed to send tip")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"amount": amount})
}

// handleWithdrawFunds handles the POST /withdrawals endpoint.
func (h *salesHandler) handleWithdrawFunds(ctx *gin.Context) {
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.badRequest(ctx, err)
		return
	}

	amount, err := h.salesService.WithdrawFunds(ctx.Request.Context(), caller(ctx), req.Amount)
	if err != nil {
		h.writeError(ctx, err, "failed to withdraw funds")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"amount": amount})
}
