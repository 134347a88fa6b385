package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rogerbox/internal/models/request_models"
	"rogerbox/internal/models/response_models"
	"rogerbox/internal/services"
	"rogerbox/pkg/middleware"
	"rogerbox/pkg/utils"
)

const (
	SignatureHeader = "X-Wompi-Signature"

	maxWebhookBody = 1 << 20
)

type PaymentController struct {
	paymentService services.PaymentService
	webhookService services.WebhookService
	logger         *zap.Logger
}

func NewPaymentController(paymentService services.PaymentService, webhookService services.WebhookService, logger *zap.Logger) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		webhookService: webhookService,
		logger:         logger.With(zap.String("component", "payment_controller")),
	}
}

// CreateOrder godoc
// @Summary Create an order and charge the card through the gateway
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body request_models.CreateOrderRequest true "Checkout request"
// @Success 200 {object} response_models.CreateOrderResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Security BearerAuth
// @Router /api/payments/create-order [post]
func (p *PaymentController) CreateOrder(c *gin.Context) {
	purchaser, ok := purchaserFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, utils.CodeUnauthorized, "user is not authenticated")
		return
	}

	var request request_models.CreateOrderRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid request payload")
		return
	}

	resp, err := p.paymentService.CreateOrder(c.Request.Context(), purchaser, request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleWebhook godoc
// @Summary Receive gateway transaction events
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Wompi-Signature header string true "HMAC-SHA256 of the raw body"
// @Success 200 {object} response_models.WebhookAck
// @Failure 401 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /api/payments/webhook [post]
func (p *PaymentController) HandleWebhook(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("webhook handler panicked", zap.Any("panic", r), zap.Stack("stack"))
			c.JSON(http.StatusOK, response_models.WebhookAck{Success: true})
		}
	}()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, utils.CodeValidation, "could not read request body")
		return
	}

	// Only a bad signature or an unknown order is refused. Everything else is
	// acknowledged so the gateway does not retry a delivery that cannot succeed.
	_, err = p.webhookService.HandleWebhook(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	switch {
	case err == nil:
	case errors.Is(err, utils.ErrSignature),
		errors.Is(err, utils.ErrNotFound):
		utils.HandleServiceError(c, err)
		return
	case errors.Is(err, utils.ErrValidation):
		p.logger.Warn("webhook acknowledged without processing", zap.Error(err))
	default:
		p.logger.Error("webhook processing failed", zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, response_models.WebhookAck{Success: true})
}

// GetConfig godoc
// @Summary Public gateway settings for the payment widget
// @Tags Payments
// @Produce json
// @Success 200 {object} response_models.PaymentConfigResponse
// @Router /api/payments/config [get]
func (p *PaymentController) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, p.paymentService.GetConfig())
}

// GetOrderStatus godoc
// @Summary Status of one of the caller's orders
// @Tags Payments
// @Produce json
// @Param reference path string true "Order reference"
// @Success 200 {object} utils.APIResponse{data=response_models.OrderStatusResponse}
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /api/payments/orders/{reference} [get]
func (p *PaymentController) GetOrderStatus(c *gin.Context) {
	purchaser, ok := purchaserFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, utils.CodeUnauthorized, "user is not authenticated")
		return
	}

	status, err := p.paymentService.GetOrderStatus(c.Request.Context(), purchaser, c.Param("reference"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, status, "Fetched order status successfully")
}

func purchaserFromContext(c *gin.Context) (services.Purchaser, bool) {
	userID, err := uuid.Parse(c.GetString(middleware.ContextUserID))
	if err != nil {
		return services.Purchaser{}, false
	}
	return services.Purchaser{UserID: userID, Email: c.GetString(middleware.ContextUserEmail)}, true
}
