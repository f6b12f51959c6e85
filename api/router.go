package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"merch_ledger/internal/sales"
)

// InitRoutes registers the ledger endpoints on the given Gin engine.
// Reads are public; every mutating endpoint requires the caller identity header.
func InitRoutes(e *gin.Engine, salesService *sales.Service, logger *zap.Logger) {
	salesHandler := NewSalesHandler(salesService, logger)

	e.Use(requestID(), requestLogger(logger))

	e.GET("/artists/:identity", salesHandler.handleGetProfile)
	e.GET("/merchandise/:id", salesHandler.handleGetItem)
	e.GET("/sales", salesHandler.handleScanSales)
	e.GET("/sales/:id", salesHandler.handleGetSale)
	e.GET("/stats", salesHandler.handleStats)

	authed := e.Group("", callerIdentity())
	authed.POST("/artists", salesHandler.handleRegisterArtist)
	authed.PATCH("/artists/me/offline-payments", salesHandler.handleToggleOfflinePayments)
	authed.PATCH("/artists/me/merchandise-availability", salesHandler.handleSetMerchandiseAvailability)
	authed.POST("/merchandise", salesHandler.handleAddMerchandise)
	authed.POST("/merchandise/:id/purchases", salesHandler.handlePurchase)
	authed.POST("/merchandise/:id/offline-sales", salesHandler.handleRecordOfflineSale)
	authed.POST("/tips", salesHandler.handleSendTip)
	authed.POST("/withdrawals", salesHandler.handleWithdrawFunds)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
