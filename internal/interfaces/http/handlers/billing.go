package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Berobasket/gdx-pay/internal/application/command"
	"github.com/Berobasket/gdx-pay/internal/application/dto"
	"github.com/Berobasket/gdx-pay/internal/application/query"
	"github.com/Berobasket/gdx-pay/internal/interfaces/http/response"
)

// BillingHandler handles the billing client control endpoints
type BillingHandler struct {
	connectCmd       *command.ConnectCommand
	disconnectCmd    *command.DisconnectCommand
	purchaseCmd      *command.PurchaseCommand
	cancelTestCmd    *command.CancelTestPurchasesCommand
	getProductsQuery *query.GetProductsQuery
	listPurchasesQ   *query.ListPurchasesQuery
	getStatusQuery   *query.GetStatusQuery
	operationTimeout time.Duration
}

// BillingHandlerDeps groups the commands and queries the handler serves
type BillingHandlerDeps struct {
	ConnectCmd       *command.ConnectCommand
	DisconnectCmd    *command.DisconnectCommand
	PurchaseCmd      *command.PurchaseCommand
	CancelTestCmd    *command.CancelTestPurchasesCommand
	GetProductsQuery *query.GetProductsQuery
	ListPurchasesQ   *query.ListPurchasesQuery
	GetStatusQuery   *query.GetStatusQuery
	// OperationTimeout bounds connect and purchase waits
	OperationTimeout time.Duration
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(deps BillingHandlerDeps) *BillingHandler {
	return &BillingHandler{
		connectCmd:       deps.ConnectCmd,
		disconnectCmd:    deps.DisconnectCmd,
		purchaseCmd:      deps.PurchaseCmd,
		cancelTestCmd:    deps.CancelTestCmd,
		getProductsQuery: deps.GetProductsQuery,
		listPurchasesQ:   deps.ListPurchasesQ,
		getStatusQuery:   deps.GetStatusQuery,
		operationTimeout: deps.OperationTimeout,
	}
}

func (h *BillingHandler) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.operationTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.operationTimeout)
}

// GetStatus returns the billing connection status
// @Summary Get connection status
// @Tags billing
// @Produce json
// @Success 200 {object} response.SuccessResponse{data=dto.StatusResponse}
// @Router /v1/status [get]
func (h *BillingHandler) GetStatus(c *gin.Context) {
	response.OK(c, h.getStatusQuery.Execute())
}

// Connect binds the billing service and waits until it is usable
// @Summary Connect to the billing service
// @Tags billing
// @Produce json
// @Success 200 {object} response.SuccessResponse{data=dto.StatusResponse}
// @Failure 503 {object} response.ErrorResponse
// @Failure 504 {object} response.ErrorResponse
// @Router /v1/connect [post]
func (h *BillingHandler) Connect(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	if err := h.connectCmd.Execute(ctx); err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, h.getStatusQuery.Execute())
}

// Disconnect unbinds the billing service
// @Summary Disconnect from the billing service
// @Tags billing
// @Produce json
// @Success 200 {object} response.SuccessResponse{data=dto.StatusResponse}
// @Router /v1/disconnect [post]
func (h *BillingHandler) Disconnect(c *gin.Context) {
	h.disconnectCmd.Execute()
	response.OK(c, h.getStatusQuery.Execute())
}

// GetProducts returns product details
// @Summary Get product details
// @Tags billing
// @Produce json
// @Param ids query []string true "Product ids, repeated or comma separated"
// @Param type query string false "inapp or subs"
// @Success 200 {object} response.SuccessResponse{data=dto.ProductsResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /v1/products [get]
func (h *BillingHandler) GetProducts(c *gin.Context) {
	var req dto.ProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	resp, err := h.getProductsQuery.Execute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, resp)
}

// ListPurchases returns the owned purchases
// @Summary List owned purchases
// @Tags billing
// @Produce json
// @Success 200 {object} response.SuccessResponse{data=dto.PurchasesResponse}
// @Failure 503 {object} response.ErrorResponse
// @Router /v1/purchases [get]
func (h *BillingHandler) ListPurchases(c *gin.Context) {
	resp, err := h.listPurchasesQ.Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, resp)
}

// Purchase runs a purchase flow and waits for its outcome
// @Summary Purchase a product
// @Tags billing
// @Accept json
// @Produce json
// @Param request body dto.PurchaseRequest true "Purchase request"
// @Success 200 {object} response.SuccessResponse{data=dto.PurchaseResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /v1/purchases [post]
func (h *BillingHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	resp, err := h.purchaseCmd.Execute(ctx, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, resp)
}

// CancelTestPurchases consumes every owned test purchase
// @Summary Cancel test purchases
// @Tags billing
// @Produce json
// @Success 200 {object} response.SuccessResponse{data=dto.CancelTestPurchasesResponse}
// @Failure 503 {object} response.ErrorResponse
// @Router /v1/test-purchases/cancel [post]
func (h *BillingHandler) CancelTestPurchases(c *gin.Context) {
	resp, err := h.cancelTestCmd.Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, resp)
}
