package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"rogerbox/internal/gateway/wompi"
	"rogerbox/internal/models/db_models"
	"rogerbox/internal/models/request_models"
	"rogerbox/internal/models/response_models"
	"rogerbox/internal/repositories"
	"rogerbox/pkg/utils"
)

const (
	PaymentMethodCard = "CARD"

	maxReferenceAttempts = 3
)

type PaymentConfig struct {
	PublicKey       string
	Environment     wompi.Environment
	ReferencePrefix string
	Currency        string
	OrderTTL        time.Duration
	CheckoutTimeout time.Duration
	BlockRepurchase bool
	CallbackBaseURL string
}

// Purchaser is the authenticated user behind a checkout.
type Purchaser struct {
	UserID uuid.UUID
	Email  string
}

type PaymentService interface {
	CreateOrder(ctx context.Context, purchaser Purchaser, req request_models.CreateOrderRequest) (*response_models.CreateOrderResponse, error)
	GetOrderStatus(ctx context.Context, purchaser Purchaser, reference string) (*response_models.OrderStatusResponse, error)
	GetConfig() response_models.PaymentConfigResponse
}

type paymentService struct {
	courses    repositories.CourseRepository
	orders     repositories.OrderRepository
	gatewayTxs repositories.GatewayTransactionRepository
	purchases  repositories.CoursePurchaseRepository
	reconciler Reconciler
	gateway    wompi.API
	signer     *wompi.Signer
	cfg        PaymentConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewPaymentService(
	courses repositories.CourseRepository,
	orders repositories.OrderRepository,
	gatewayTxs repositories.GatewayTransactionRepository,
	purchases repositories.CoursePurchaseRepository,
	reconciler Reconciler,
	gateway wompi.API,
	signer *wompi.Signer,
	cfg PaymentConfig,
	logger *zap.Logger,
) (PaymentService, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: integrity signer is required", utils.ErrConfiguration)
	}
	if cfg.ReferencePrefix == "" {
		cfg.ReferencePrefix = "ROGER"
	}
	if cfg.Currency == "" {
		cfg.Currency = "COP"
	}
	if cfg.OrderTTL <= 0 {
		cfg.OrderTTL = 30 * time.Minute
	}
	if cfg.CheckoutTimeout <= 0 {
		cfg.CheckoutTimeout = 25 * time.Second
	}
	return &paymentService{
		courses:    courses,
		orders:     orders,
		gatewayTxs: gatewayTxs,
		purchases:  purchases,
		reconciler: reconciler,
		gateway:    gateway,
		signer:     signer,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "checkout")),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *paymentService) GetConfig() response_models.PaymentConfigResponse {
	return response_models.PaymentConfigResponse{
		PublicKey:   p.cfg.PublicKey,
		Environment: string(p.cfg.Environment),
	}
}

// CreateOrder runs one checkout attempt end to end under the checkout deadline.
func (p *paymentService) CreateOrder(ctx context.Context, purchaser Purchaser, req request_models.CreateOrderRequest) (*response_models.CreateOrderResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CheckoutTimeout)
	defer cancel()

	courseID, err := validateCreateOrder(req)
	if err != nil {
		return nil, err
	}

	course, err := p.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, fmt.Errorf("%w: course not found", utils.ErrNotFound)
		}
		return nil, err
	}
	if !course.IsPublished {
		return nil, fmt.Errorf("%w: course not found", utils.ErrNotFound)
	}
	if req.Amount.GreaterThan(course.Price) {
		return nil, fmt.Errorf("%w: amount exceeds the course price", utils.ErrValidation)
	}

	if p.cfg.BlockRepurchase {
		n, err := p.purchases.CountActive(ctx, purchaser.UserID, course.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: you already own this course", utils.ErrConflict)
		}
	}

	order, err := p.insertOrder(ctx, purchaser, course, req)
	if err != nil {
		return nil, err
	}
	log := p.logger.With(zap.String("reference", order.Reference), zap.String("order_id", order.ID.String()))
	log.Info("order created", zap.String("amount", order.Amount.String()), zap.String("currency", order.Currency))

	amountInCents := wompi.AmountInCents(order.Amount)
	signature, err := p.signer.Sign(order.Reference, amountInCents, order.Currency)
	if err != nil {
		p.failOrder(ctx, order, "signature", err, true)
		return nil, err
	}

	card := req.PaymentData
	token, err := p.gateway.TokenizeCard(ctx, wompi.CardDetails{
		Number:     strings.ReplaceAll(card.Number, " ", ""),
		CVC:        card.CVC,
		ExpMonth:   card.ExpMonth,
		ExpYear:    card.ExpYear,
		CardHolder: card.CardHolder,
	})
	if err != nil {
		p.failOrder(ctx, order, "tokenize_card", err, true)
		return nil, err
	}

	acceptance, err := p.gateway.CreateAcceptanceToken(ctx)
	if err != nil {
		p.failOrder(ctx, order, "acceptance_token", err, true)
		return nil, err
	}

	installments := card.Installments
	if installments < 1 {
		installments = 1
	}
	txReq := wompi.TransactionRequest{
		AcceptanceToken: acceptance,
		AmountInCents:   amountInCents,
		Currency:        order.Currency,
		Signature:       signature,
		CustomerEmail:   order.CustomerEmail,
		PaymentMethod: wompi.PaymentMethod{
			Type:         PaymentMethodCard,
			Token:        token,
			Installments: installments,
		},
		Reference: order.Reference,
	}
	if p.cfg.CallbackBaseURL != "" {
		txReq.RedirectURL = p.cfg.CallbackBaseURL + "/payment/result?reference=" + order.Reference
	}

	gtx, err := p.gateway.CreateTransaction(ctx, txReq)
	if err != nil {
		p.failOrder(ctx, order, "create_transaction", err, gatewayRejected(err))
		return nil, err
	}
	log = log.With(zap.String("transaction_id", gtx.ID), zap.String("gateway_status", gtx.Status.String()))

	if err := p.orders.AttachGatewayTransaction(ctx, order.ID, gtx.ID); err != nil {
		log.Error("failed to attach gateway transaction to order", zap.Error(err))
		return nil, err
	}

	if err := p.gatewayTxs.RecordCheckout(ctx, &db_models.GatewayTransaction{
		OrderID:              order.ID,
		Reference:            order.Reference,
		GatewayTransactionID: gtx.ID,
		Status:               gtx.Status.String(),
		StatusMessage:        gtx.StatusMessage,
		PaymentMethodType:    gtx.PaymentMethodType,
		AmountInCents:        amountInCents,
		Currency:             order.Currency,
		RawResponse:          datatypes.JSON(gtx.Raw),
		FinalizedAt:          gtx.FinalizedAt,
	}); err != nil {
		log.Error("failed to store gateway transaction", zap.Error(err))
		return nil, err
	}

	status := db_models.OrderStatusPending
	if gtx.Status == wompi.StatusApproved {
		update := ReconcileUpdate{
			Reference:         order.Reference,
			TransactionID:     gtx.ID,
			Status:            gtx.Status,
			StatusMessage:     gtx.StatusMessage,
			PaymentMethodType: gtx.PaymentMethodType,
			FinalizedAt:       gtx.FinalizedAt,
			Source:            SourceCheckout,
		}
		if gtx.AmountInCents > 0 {
			update.AmountInCents = &gtx.AmountInCents
		}
		res, err := p.reconciler.Reconcile(ctx, update)
		if err != nil {
			// The webhook for this transaction will reconcile it again.
			log.Error("synchronous reconciliation failed", zap.Error(err))
		} else {
			status = res.Status
		}
	}
	// A webhook may have settled the order while the gateway call was in flight.
	if current, err := p.orders.FindByID(ctx, order.ID); err == nil {
		status = current.Status
	} else {
		log.Warn("failed to re-read order after checkout", zap.Error(err))
	}

	log.Info("checkout completed", zap.String("order_status", string(status)))
	return &response_models.CreateOrderResponse{
		Success:       true,
		OrderID:       order.ID.String(),
		Reference:     order.Reference,
		TransactionID: gtx.ID,
		Status:        string(status),
		Message:       checkoutMessage(status),
	}, nil
}

func (p *paymentService) GetOrderStatus(ctx context.Context, purchaser Purchaser, reference string) (*response_models.OrderStatusResponse, error) {
	order, err := p.orders.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if order.UserID != purchaser.UserID {
		return nil, fmt.Errorf("%w: order %s", utils.ErrNotFound, reference)
	}

	resp := &response_models.OrderStatusResponse{
		OrderID:   order.ID,
		Reference: order.Reference,
		CourseID:  order.CourseID,
		Status:    string(order.Status),
		Amount:    order.Amount,
		Currency:  order.Currency,
		ExpiresAt: order.ExpiresAt,
		Expired:   order.Status == db_models.OrderStatusPending && order.IsExpired(p.now()),
		CreatedAt: order.CreatedAt,
	}
	if order.GatewayTransactionID != nil {
		resp.TransactionID = *order.GatewayTransactionID
	}

	purchase, err := p.purchases.FindActive(ctx, order.UserID, order.CourseID)
	switch {
	case err == nil:
		resp.Entitled = true
		resp.AccessGrantedAt = &purchase.PurchasedAt
	case !errors.Is(err, utils.ErrNotFound):
		return nil, err
	}
	return resp, nil
}

func validateCreateOrder(req request_models.CreateOrderRequest) (uuid.UUID, error) {
	var missing []string
	if strings.TrimSpace(req.CourseID) == "" {
		missing = append(missing, "courseId")
	}
	if req.Amount.IsZero() {
		missing = append(missing, "amount")
	}
	if strings.TrimSpace(req.CustomerEmail) == "" {
		missing = append(missing, "customerEmail")
	}
	if len(missing) > 0 {
		return uuid.Nil, fmt.Errorf("%w: missing required fields: %s", utils.ErrValidation, strings.Join(missing, ", "))
	}

	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: courseId is not a valid id", utils.ErrValidation)
	}
	if req.Amount.IsNegative() {
		return uuid.Nil, fmt.Errorf("%w: amount must be positive", utils.ErrValidation)
	}
	if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
		return uuid.Nil, fmt.Errorf("%w: customerEmail is not a valid email", utils.ErrValidation)
	}

	method := strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	if method != "" && method != PaymentMethodCard {
		return uuid.Nil, fmt.Errorf("%w: unsupported payment method %q", utils.ErrValidation, req.PaymentMethod)
	}
	card := req.PaymentData
	if card.Number == "" || card.CVC == "" || card.ExpMonth == "" || card.ExpYear == "" || card.CardHolder == "" {
		return uuid.Nil, fmt.Errorf("%w: incomplete card data", utils.ErrValidation)
	}
	return courseID, nil
}

// insertOrder stores a pending order under a fresh reference, retrying when
// the generated reference collides with an existing one.
func (p *paymentService) insertOrder(ctx context.Context, purchaser Purchaser, course *db_models.Course, req request_models.CreateOrderRequest) (*db_models.Order, error) {
	meta := map[string]interface{}{"course_title": course.Title}
	if req.OriginalPrice != nil {
		meta["original_price"] = req.OriginalPrice.String()
	}
	if req.DiscountAmount != nil {
		meta["discount_amount"] = req.DiscountAmount.String()
	}
	if req.PaymentData.Installments > 1 {
		meta["installments"] = req.PaymentData.Installments
	}
	if purchaser.Email != "" && !strings.EqualFold(purchaser.Email, strings.TrimSpace(req.CustomerEmail)) {
		meta["account_email"] = purchaser.Email
	}
	metaJSON, err := (&db_models.Order{}).MergeMetadata(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: encode order metadata: %v", utils.ErrDatabaseError, err)
	}

	currency := course.Currency
	if currency == "" {
		currency = p.cfg.Currency
	}

	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		now := p.now()
		reference, err := utils.GenerateReference(p.cfg.ReferencePrefix, now)
		if err != nil {
			return nil, err
		}

		order := &db_models.Order{
			Reference:     reference,
			UserID:        purchaser.UserID,
			CourseID:      course.ID,
			CustomerEmail: strings.TrimSpace(req.CustomerEmail),
			CustomerName:  strings.TrimSpace(req.CustomerName),
			Amount:        req.Amount.Round(2),
			Currency:      currency,
			Status:        db_models.OrderStatusPending,
			PaymentMethod: PaymentMethodCard,
			ExpiresAt:     now.Add(p.cfg.OrderTTL),
			Metadata:      metaJSON,
		}
		err = p.orders.Create(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repositories.ErrDuplicateReference) {
			return nil, err
		}
		p.logger.Warn("order reference collision, retrying", zap.String("reference", reference), zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("%w: could not allocate a unique order reference", utils.ErrDatabaseError)
}

// failOrder records a gateway side failure on the order. When the outcome at
// the gateway is unknown the order stays pending so a late webhook can still
// settle it.
func (p *paymentService) failOrder(ctx context.Context, order *db_models.Order, step string, cause error, terminal bool) {
	ctx = context.WithoutCancel(ctx)
	meta := map[string]interface{}{
		"failed_step":   step,
		"gateway_error": cause.Error(),
		"failed_at":     p.now().Format(time.RFC3339),
	}
	var gwErr *wompi.GatewayError
	if errors.As(cause, &gwErr) && gwErr.StatusCode != 0 {
		meta["gateway_status_code"] = gwErr.StatusCode
	}

	status := db_models.OrderStatusPending
	if terminal {
		status = db_models.OrderStatusError
	}
	if err := p.orders.UpdateStatus(ctx, order.ID, status, meta); err != nil {
		p.logger.Error("failed to record checkout failure",
			zap.String("reference", order.Reference), zap.String("step", step), zap.Error(err))
		return
	}
	p.logger.Warn("checkout failed",
		zap.String("reference", order.Reference),
		zap.String("step", step),
		zap.String("order_status", string(status)),
		zap.Error(cause))
}

// gatewayRejected reports whether the gateway answered with an error, as
// opposed to the call timing out with an unknown outcome.
func gatewayRejected(err error) bool {
	var gwErr *wompi.GatewayError
	return errors.As(err, &gwErr) && gwErr.StatusCode >= 300
}

func checkoutMessage(status db_models.OrderStatus) string {
	switch status {
	case db_models.OrderStatusApproved:
		return "Payment approved, course access granted"
	case db_models.OrderStatusPending:
		return "Payment is being processed"
	default:
		return "Payment was not approved"
	}
}
