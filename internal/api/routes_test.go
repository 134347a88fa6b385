package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rogerbox/internal/api/controllers"
	"rogerbox/internal/events"
	"rogerbox/internal/gateway/wompi"
	"rogerbox/internal/infra/testdb"
	"rogerbox/internal/models/db_models"
	"rogerbox/internal/repositories"
	"rogerbox/internal/services"
	"rogerbox/pkg/utils"
)

var jwtSecret = []byte("routes-test-secret")

type testServer struct {
	router   *gin.Engine
	db       *gorm.DB
	verifier *wompi.WebhookVerifier
	gateway  *httptest.Server
}

// fakeWompi answers the gateway endpoints the checkout touches. The
// transaction status is taken from the card holder name so each test can
// steer the synchronous outcome.
func fakeWompi(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tokens/cards", func(w http.ResponseWriter, r *http.Request) {
		var card wompi.CardDetails
		_ = json.NewDecoder(r.Body).Decode(&card)
		_, _ = w.Write([]byte(`{"data":{"id":"tok_` + strings.ToUpper(card.CardHolder) + `"}}`))
	})
	mux.HandleFunc("/merchants/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"presigned_acceptance":{"acceptance_token":"acc_1"}}}`))
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		var req wompi.TransactionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		status := strings.TrimPrefix(req.PaymentMethod.Token, "tok_")
		if status == "REJECT" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":{"type":"INPUT_VALIDATION_ERROR"}}`))
			return
		}
		resp := map[string]interface{}{"data": map[string]interface{}{
			"id":              "txn_" + req.Reference,
			"reference":       req.Reference,
			"status":          status,
			"amount_in_cents": req.AmountInCents,
			"currency":        req.Currency,
		}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	db := testdb.New(t)
	gw := fakeWompi(t)

	signer, err := wompi.NewSigner("integrity")
	require.NoError(t, err)
	verifier, err := wompi.NewWebhookVerifier("events")
	require.NoError(t, err)
	client := wompi.NewClient(wompi.Config{
		PublicKey: "pub_test", PrivateKey: "prv_test", BaseURL: gw.URL, Timeout: 2 * time.Second,
	}, logger)

	orders := repositories.NewOrderRepository(db)
	gatewayTxs := repositories.NewGatewayTransactionRepository(db)
	purchases := repositories.NewCoursePurchaseRepository(db)
	courses := repositories.NewCourseRepository(db)

	catalog := services.NewCatalogService(courses, time.Minute, logger)
	reconciler := services.NewReconciler(db, orders, gatewayTxs, purchases, courses, events.NoopPublisher{}, catalog, logger)
	payments, err := services.NewPaymentService(courses, orders, gatewayTxs, purchases, reconciler, client, signer, services.PaymentConfig{
		PublicKey: "pub_test", Environment: wompi.EnvSandbox, BlockRepurchase: true,
	}, logger)
	require.NoError(t, err)
	webhooks, err := services.NewWebhookService(verifier, reconciler, repositories.NewWebhookEventRepository(db), gatewayTxs, logger)
	require.NoError(t, err)

	r := gin.New()
	RegisterRoutes(r, Controllers{
		Payments: controllers.NewPaymentController(payments, webhooks, logger),
		Courses:  controllers.NewCourseController(catalog),
		Admin:    controllers.NewAdminController(services.NewExportService(orders, logger)),
	}, jwtSecret)

	return &testServer{router: r, db: db, verifier: verifier, gateway: gw}
}

func (s *testServer) seedCourse(t *testing.T) *db_models.Course {
	t.Helper()
	course := &db_models.Course{
		Title: "Boxeo", Slug: "boxeo-" + uuid.NewString()[:8],
		Price: decimal.NewFromInt(50000), Currency: "COP", IsPublished: true,
	}
	require.NoError(t, s.db.Create(course).Error)
	return course
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, userID uuid.UUID, role string) map[string]string {
	t.Helper()
	token, err := utils.CreateToken(jwtSecret, userID, "ana@example.com", role, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func checkoutBody(courseID uuid.UUID, holder string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"courseId":      courseID.String(),
		"amount":        50000,
		"customerEmail": "ana@example.com",
		"paymentMethod": "CARD",
		"paymentData": map[string]interface{}{
			"number": "4242424242424242", "cvc": "123", "exp_month": "08", "exp_year": "28", "card_holder": holder,
		},
	})
	return body
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentConfig(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/payments/config", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publicKey":"pub_test","environment":"sandbox"}`, w.Body.String())
}

func TestCreateOrder_RequiresAuth(t *testing.T) {
	s := newTestServer(t)
	course := s.seedCourse(t)
	w := s.do(t, http.MethodPost, "/api/payments/create-order", checkoutBody(course.ID, "approved"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateOrder_Approved(t *testing.T) {
	s := newTestServer(t)
	course := s.seedCourse(t)
	userID := uuid.New()

	w := s.do(t, http.MethodPost, "/api/payments/create-order", checkoutBody(course.ID, "approved"), bearer(t, userID, ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success       bool   `json:"success"`
		OrderID       string `json:"orderId"`
		Reference     string `json:"reference"`
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
		Message       string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "approved", resp.Status)
	assert.Equal(t, "txn_"+resp.Reference, resp.TransactionID)

	var n int64
	require.NoError(t, s.db.Model(&db_models.CoursePurchase{}).
		Where("user_id = ? AND course_id = ? AND is_active = ?", userID, course.ID, true).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	// a second purchase of the same course is refused
	w = s.do(t, http.MethodPost, "/api/payments/create-order", checkoutBody(course.ID, "approved"), bearer(t, userID, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.CodeConflict, decodeEnvelope(t, w).Error)

	// the buyer can poll the order
	w = s.do(t, http.MethodGet, "/api/payments/orders/"+resp.Reference, nil, bearer(t, userID, ""))
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/payments/orders/"+resp.Reference, nil, bearer(t, uuid.New(), ""))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrder_ValidationEnvelope(t *testing.T) {
	s := newTestServer(t)
	course := s.seedCourse(t)

	body, _ := json.Marshal(map[string]interface{}{"courseId": course.ID.String(), "amount": 50000})
	w := s.do(t, http.MethodPost, "/api/payments/create-order", body, bearer(t, uuid.New(), ""))
	require.Equal(t, http.StatusBadRequest, w.Code)

	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, utils.CodeValidation, env.Error)
	assert.Contains(t, env.Details, "card")
}

func TestCreateOrder_MissingCustomerEmail(t *testing.T) {
	s := newTestServer(t)
	course := s.seedCourse(t)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(checkoutBody(course.ID, "approved"), &body))
	delete(body, "customerEmail")
	raw, _ := json.Marshal(body)

	// the token carries an email, but the checkout form must supply its own
	w := s.do(t, http.MethodPost, "/api/payments/create-order", raw, bearer(t, uuid.New(), ""))
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	env := decodeEnvelope(t, w)
	assert.Equal(t, utils.CodeValidation, env.Error)
	assert.Contains(t, env.Details, "customerEmail")

	var n int64
	require.NoError(t, s.db.Model(&db_models.Order{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateOrder_GatewayRejected(t *testing.T) {
	s := newTestServer(t)
	course := s.seedCourse(t)

	w := s.do(t, http.MethodPost, "/api/payments/create-order", checkoutBody(course.ID, "reject"), bearer(t, uuid.New(), ""))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, utils.CodeGateway, env.Error)
	assert.Contains(t, env.Details, "422")

	var order db_models.Order
	require.NoError(t, s.db.First(&order).Error)
	assert.Equal(t, db_models.OrderStatusError, order.Status)
}

func TestWebhook(t *testing.T) {
	s := newTestServer(t)
	course := s.seedCourse(t)
	userID := uuid.New()

	w := s.do(t, http.MethodPost, "/api/payments/create-order", checkoutBody(course.ID, "pending"), bearer(t, userID, ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "pending", created.Status)

	body := []byte(`{"event":"transaction.updated","data":{"transaction":{"id":"txn_1","status":"APPROVED","reference":"` + created.Reference + `","amount_in_cents":5000000}}}`)

	t.Run("invalid signature", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/payments/webhook", body, map[string]string{controllers.SignatureHeader: "bad"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, utils.CodeSignature, decodeEnvelope(t, w).Error)
	})

	t.Run("delivered twice", func(t *testing.T) {
		headers := map[string]string{controllers.SignatureHeader: s.verifier.Sum(body)}
		for i := 0; i < 2; i++ {
			w := s.do(t, http.MethodPost, "/api/payments/webhook", body, headers)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"success":true}`, w.Body.String())
		}

		var order db_models.Order
		require.NoError(t, s.db.Where("reference = ?", created.Reference).First(&order).Error)
		assert.Equal(t, db_models.OrderStatusApproved, order.Status)

		var n int64
		require.NoError(t, s.db.Model(&db_models.CoursePurchase{}).Where("user_id = ?", userID).Count(&n).Error)
		assert.Equal(t, int64(1), n)
	})

	t.Run("unknown reference", func(t *testing.T) {
		ghost := []byte(`{"event":"transaction.updated","data":{"transaction":{"id":"txn_2","status":"APPROVED","reference":"ROGER-GHOST"}}}`)
		w := s.do(t, http.MethodPost, "/api/payments/webhook", ghost, map[string]string{controllers.SignatureHeader: s.verifier.Sum(ghost)})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("signed but unusable bodies are acknowledged", func(t *testing.T) {
		for name, bad := range map[string][]byte{
			"malformed":    []byte(`{"event":`),
			"no reference": []byte(`{"event":"transaction.updated","data":{"transaction":{"id":"txn_3","status":"APPROVED"}}}`),
		} {
			w := s.do(t, http.MethodPost, "/api/payments/webhook", bad, map[string]string{controllers.SignatureHeader: s.verifier.Sum(bad)})
			assert.Equal(t, http.StatusOK, w.Code, name)
			assert.JSONEq(t, `{"success":true}`, w.Body.String(), name)
		}

		var failed int64
		require.NoError(t, s.db.Model(&db_models.WebhookEvent{}).Where("processing_error <> ?", "").Count(&failed).Error)
		// the unknown reference above plus the two bodies here
		assert.Equal(t, int64(3), failed)
	})
}

func TestCourses(t *testing.T) {
	s := newTestServer(t)
	course := s.seedCourse(t)

	w := s.do(t, http.MethodGet, "/api/courses?page=1&page_size=10", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), course.ID.String())

	w = s.do(t, http.MethodGet, "/api/courses/"+course.ID.String(), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/courses/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/courses/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminExport(t *testing.T) {
	s := newTestServer(t)
	course := s.seedCourse(t)
	w := s.do(t, http.MethodPost, "/api/payments/create-order", checkoutBody(course.ID, "pending"), bearer(t, uuid.New(), ""))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/orders/export", nil, bearer(t, uuid.New(), ""))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/orders/export?from=yesterday", nil, bearer(t, uuid.New(), RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/orders/export", nil, bearer(t, uuid.New(), RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Orders")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestWebhook_InternalFailureIsAcknowledged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier, err := wompi.NewWebhookVerifier("events")
	require.NoError(t, err)

	r := gin.New()
	ctrl := controllers.NewPaymentController(nil, failingWebhooks{}, zap.NewNop())
	r.POST("/webhook", ctrl.HandleWebhook)

	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(controllers.SignatureHeader, verifier.Sum(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}

type failingWebhooks struct{}

func (failingWebhooks) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*services.ReconcileResult, error) {
	return nil, utils.ErrDatabaseError
}

func (failingWebhooks) Replay(ctx context.Context, reference string) (*services.ReconcileResult, error) {
	return nil, utils.ErrDatabaseError
}
