package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cadak-tickets/internal/archive"
	"cadak-tickets/internal/cache"
	"cadak-tickets/internal/config"
	"cadak-tickets/internal/events"
	"cadak-tickets/internal/handler"
	"cadak-tickets/internal/model"
	"cadak-tickets/internal/payment"
	"cadak-tickets/internal/repository"
	"cadak-tickets/internal/router"
	"cadak-tickets/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey    = "test-api-key"
	testSecretKey = "sk_test_integration"
)

// paystackStub answers initialize and verify calls, reporting every
// initialized transaction as paid in full.
func paystackStub(t *testing.T) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	txns := map[string]map[string]any{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/transaction/initialize":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			ref, _ := body["reference"].(string)
			txns[ref] = body
			json.NewEncoder(w).Encode(map[string]any{
				"status": true,
				"data": map[string]any{
					"authorization_url": "https://checkout.paystack.com/" + ref,
					"access_code":       "ac_" + ref,
					"reference":         ref,
				},
			})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
			ref := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
			txn, ok := txns[ref]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "Transaction reference not found"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": true,
				"data": map[string]any{
					"reference": ref,
					"status":    "success",
					"amount":    txn["amount"],
					"currency":  txn["currency"],
					"metadata":  txn["metadata"],
					"customer":  map[string]any{"email": txn["email"]},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testStack struct {
	handler   http.Handler
	reconcile service.ReconcileService
	tickets   service.TicketService
	orders    repository.OrderStore
}

func setupTestStack(t *testing.T, testDB *TestDB) *testStack {
	t.Helper()

	logger := zerolog.Nop()
	gatewaySrv := paystackStub(t)

	paymentCfg := config.PaymentConfig{
		SecretKey:       testSecretKey,
		BaseURL:         gatewaySrv.URL,
		Currency:        "NGN",
		ReferencePrefix: "cadak",
		CallbackPath:    "/paystack/callback",
		Timeout:         5 * time.Second,
	}

	// Initialize repositories
	orders := repository.NewOrderRepository(testDB.Pool, 10, logger)
	tickets := repository.NewTicketRepository(testDB.Pool, 10, logger)
	catalog := repository.NewCatalogRepository(testDB.Pool, logger)
	access := repository.NewAccessRepository(testDB.Pool, logger)

	gateway := payment.NewPaystackClient(paymentCfg, logger)
	publisher := events.NewLogPublisher(logger)

	// Initialize services
	reconcile := service.NewReconcileService(orders, tickets, gateway, cache.NopReceiptCache{}, publisher,
		archive.NewFileArchiver(t.TempDir(), logger), logger)
	ticketService := service.NewTicketService(tickets, publisher, logger)

	// Initialize handlers
	h := router.Handlers{
		Events:   handler.NewEventHandler(service.NewCatalogService(catalog, logger), logger),
		Checkout: handler.NewCheckoutHandler(service.NewCheckoutService(orders, catalog, gateway, paymentCfg, logger), "https://tickets.example.com", paymentCfg, logger),
		Payments: handler.NewPaymentHandler(reconcile, logger),
		Tickets:  handler.NewTicketHandler(ticketService, logger),
		Scanners: handler.NewScannerHandler(service.NewAccessService(access, logger), logger),
	}

	return &testStack{
		handler:   router.New(h, router.Options{APIKey: testAPIKey}, logger),
		reconcile: reconcile,
		tickets:   ticketService,
		orders:    orders,
	}
}

func (s *testStack) do(t *testing.T, method, path, userID string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func soldCount(t *testing.T, testDB *TestDB, typeID string) int {
	t.Helper()
	var sold int
	err := testDB.Pool.QueryRow(context.Background(), `SELECT quantity_sold FROM ticket_types WHERE id = $1`, typeID).Scan(&sold)
	require.NoError(t, err)
	return sold
}

func countRows(t *testing.T, testDB *TestDB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, testDB.Pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

func TestReconciliation_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	stack := setupTestStack(t, testDB)
	ctx := context.Background()

	t.Run("reconcile is idempotent", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedCatalog(t, testDB.Pool)
		require.NoError(t, stack.orders.CreatePending(ctx, pendingVIPOrder("ref_idem", 2)))

		first, err := stack.reconcile.Reconcile(ctx, "ref_idem")
		require.NoError(t, err)
		assert.False(t, first.AlreadyPaid)
		require.Len(t, first.TicketIDs, 2)

		for i := 0; i < 3; i++ {
			again, err := stack.reconcile.Reconcile(ctx, "ref_idem")
			require.NoError(t, err)
			assert.True(t, again.AlreadyPaid)
			assert.ElementsMatch(t, first.TicketIDs, again.TicketIDs)
		}

		assert.Equal(t, 2, countRows(t, testDB, `SELECT COUNT(*) FROM tickets WHERE order_reference = $1`, "ref_idem"))
		assert.Equal(t, 2, soldCount(t, testDB, "tt_vip"))
	})

	t.Run("concurrent reconciles issue tickets once", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedCatalog(t, testDB.Pool)
		require.NoError(t, stack.orders.CreatePending(ctx, pendingVIPOrder("ref_race", 2)))

		const workers = 10
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			fresh   int
			results []*model.ReconcileResult
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := stack.reconcile.Reconcile(ctx, "ref_race")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				results = append(results, res)
				if !res.AlreadyPaid {
					fresh++
				}
			}()
		}
		wg.Wait()

		require.Len(t, results, workers)
		assert.Equal(t, 1, fresh)
		for _, res := range results {
			assert.ElementsMatch(t, results[0].TicketIDs, res.TicketIDs)
		}
		assert.Equal(t, 2, countRows(t, testDB, `SELECT COUNT(*) FROM tickets WHERE order_reference = $1`, "ref_race"))
		assert.Equal(t, 2, soldCount(t, testDB, "tt_vip"))
	})

	t.Run("oversell is recorded", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedCatalog(t, testDB.Pool)
		require.NoError(t, stack.orders.CreatePending(ctx, pendingVIPOrder("ref_over_1", 2)))
		require.NoError(t, stack.orders.CreatePending(ctx, pendingVIPOrder("ref_over_2", 1)))

		_, err := stack.reconcile.Reconcile(ctx, "ref_over_1")
		require.NoError(t, err)
		res, err := stack.reconcile.Reconcile(ctx, "ref_over_2")
		require.NoError(t, err)
		assert.Len(t, res.TicketIDs, 1)
		assert.Equal(t, 3, soldCount(t, testDB, "tt_vip"))
	})

	t.Run("unknown reference without metadata fails", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		_, err := stack.reconcile.Reconcile(ctx, "ref_nowhere")
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})

	t.Run("concurrent check-ins admit once", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedCatalog(t, testDB.Pool)
		require.NoError(t, stack.orders.CreatePending(ctx, pendingVIPOrder("ref_gate", 1)))
		res, err := stack.reconcile.Reconcile(ctx, "ref_gate")
		require.NoError(t, err)
		ticketID := res.TicketIDs[0]

		const scanners = 8
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			outcomes = map[model.CheckInOutcome]int{}
		)
		for i := 0; i < scanners; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out, err := stack.tickets.CheckIn(ctx, ticketID, "seller_1")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				outcomes[out.Result]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, outcomes[model.CheckInValid])
		assert.Equal(t, scanners-1, outcomes[model.CheckInAlreadyUsed])
		assert.Equal(t, 1, countRows(t, testDB, `SELECT COUNT(*) FROM scans WHERE ticket_id = $1`, ticketID))
	})
}

func TestPurchaseFlow_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	stack := setupTestStack(t, testDB)

	CleanupDB(t, testDB.Pool)
	SeedCatalog(t, testDB.Pool)

	// Catalog
	w := stack.do(t, http.MethodGet, "/api/events", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []model.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	// Checkout 2 x Regular
	checkout := []byte(`{"items":[{"eventId":"evt_1","ticketTypeId":"tt_regular","unitPriceMinor":200000,"quantity":2,"currency":"NGN"}],"buyerEmail":"ada@example.com","buyerId":"buyer_1"}`)
	w = stack.do(t, http.MethodPost, "/api/checkout", "buyer_1", checkout, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started model.CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))

	// Signed webhook settles the order
	webhook := []byte(`{"event":"charge.success","data":{"reference":"` + started.Reference + `","status":"success","amount":400000,"currency":"NGN"}}`)
	w = stack.do(t, http.MethodPost, "/api/payments/webhook", "", webhook, map[string]string{
		payment.SignatureHeader: payment.SignHex(testSecretKey, webhook),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "processed")

	// Redelivery and the buyer callback see the same order
	w = stack.do(t, http.MethodPost, "/api/payments/webhook", "", webhook, map[string]string{
		payment.SignatureHeader: payment.SignHex(testSecretKey, webhook),
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = stack.do(t, http.MethodGet, "/api/payments/verify?trxref="+started.Reference, "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result model.ReconcileResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.AlreadyPaid)
	require.Len(t, result.TicketIDs, 2)

	assert.Equal(t, 2, countRows(t, testDB, `SELECT COUNT(*) FROM tickets WHERE order_reference = $1`, started.Reference))
	assert.Equal(t, 2, soldCount(t, testDB, "tt_regular"))

	// Gate
	w = stack.do(t, http.MethodPost, "/api/scanners", "seller_1", []byte(`{"memberId":"door_staff"}`), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	scan := []byte(`{"ticketId":"` + result.TicketIDs[0] + `"}`)
	w = stack.do(t, http.MethodPost, "/api/scan", "door_staff", scan, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result":"valid"`)

	w = stack.do(t, http.MethodPost, "/api/scan", "door_staff", scan, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result":"already_used"`)

	w = stack.do(t, http.MethodPost, "/api/scan", "buyer_1", scan, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Buyer views
	w = stack.do(t, http.MethodGet, "/api/tickets", "buyer_1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []model.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 2)

	w = stack.do(t, http.MethodGet, "/api/seller/tickets", "seller_1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sold []model.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sold))
	assert.Len(t, sold, 2)
}

func TestCORS_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	stack := setupTestStack(t, testDB)

	req := httptest.NewRequest(http.MethodOptions, "/api/checkout", nil)
	w := httptest.NewRecorder()
	stack.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
}
