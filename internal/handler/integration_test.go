//go:build integration

package handler_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/config"
	"github.com/tableflow/api/internal/database"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/model"
	"github.com/tableflow/api/internal/router"
	"github.com/tableflow/api/internal/ws"
)

type seeded struct {
	branchID int64
	tableID  int64
	friesID  int64
	soupID   int64
}

// TestIntegrationFlow runs a guest order through the kitchen against a real
// PostgreSQL database, using the same client the terminals use.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	_, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		JWTSecret:       "integration-test-secret",
		KDSTokenTTL:     time.Hour,
		GuestSessionTTL: time.Hour,
		AllowedOrigins:  []string{"http://localhost:3000"},
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	server := httptest.NewServer(router.New(cfg, queries, pool, hub, nil))
	defer server.Close()

	seed := seedData(t, ctx, pool)
	client := apiclient.New(server.URL + "/api")

	// --- 1. Guest scans the table and orders ---
	session, err := client.StartSession(ctx, seed.branchID, seed.tableID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	menu, err := client.CustomerMenu(ctx, seed.branchID, seed.tableID)
	if err != nil {
		t.Fatalf("load menu: %v", err)
	}
	if len(menu) != 2 {
		t.Fatalf("menu: got %d items, want 2 available", len(menu))
	}

	order, err := client.SubmitOrder(ctx, model.CreateOrderRequest{
		GuestSessionID: session.GuestSessionID,
		BranchID:       seed.branchID,
		TableID:        seed.tableID,
		Items: []model.OrderItemRequest{
			{MenuItemID: seed.friesID, Qty: 2},
			{MenuItemID: seed.soupID, Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("submit order: %v", err)
	}
	if order.Status != enum.OrderStatusOrdered {
		t.Fatalf("order status: got %s, want ORDERED", order.Status)
	}
	if order.TotalCents == nil || *order.TotalCents != 2*890+650 {
		t.Fatalf("order total: got %v, want %d", order.TotalCents, 2*890+650)
	}
	if order.TableName == nil || *order.TableName != "Table 5" {
		t.Errorf("table name: got %v", order.TableName)
	}

	// --- 2. Kitchen without a token is asked for the PIN ---
	_, err = client.KitchenOrders(ctx, seed.branchID, apiclient.Credentials{})
	if !errors.Is(err, apiclient.ErrAuthRequired) {
		t.Fatalf("kitchen orders without token: got %v, want ErrAuthRequired", err)
	}

	if _, err := client.VerifyPin(ctx, seed.branchID, "999999"); !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Fatalf("wrong pin: got %v, want 401", err)
	}

	login, err := client.VerifyPin(ctx, seed.branchID, "123456")
	if err != nil {
		t.Fatalf("verify pin: %v", err)
	}
	cred := apiclient.Credentials{KDSToken: login.KDSToken}

	// --- 3. Kitchen display subscribes and sees the order ---
	conn := dialOrderStream(t, server, seed.branchID, login.KDSToken)
	defer conn.Close()

	queue, err := client.KitchenOrders(ctx, seed.branchID, cred)
	if err != nil {
		t.Fatalf("kitchen orders: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != order.ID || len(queue[0].Items) != 2 {
		t.Fatalf("kitchen queue: got %+v", queue)
	}

	// --- 4. Accept, repeat, mark ready ---
	accepted, err := client.AcceptOrder(ctx, seed.branchID, order.ID, cred)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != enum.OrderStatusPreparing {
		t.Fatalf("accept status: got %s", accepted.Status)
	}
	expectStreamEvent(t, conn, enum.EventOrderStatusChanged)

	if again, err := client.AcceptOrder(ctx, seed.branchID, order.ID, cred); err != nil || again.Status != enum.OrderStatusPreparing {
		t.Fatalf("repeat accept: got %v %v", again.Status, err)
	}

	ready, err := client.MarkReady(ctx, seed.branchID, order.ID, cred)
	if err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	if ready.Status != enum.OrderStatusPreparedWaiting {
		t.Fatalf("ready status: got %s", ready.Status)
	}

	if _, err := client.AcceptOrder(ctx, seed.branchID, order.ID, cred); !errors.Is(err, apiclient.ErrConflict) {
		t.Fatalf("accept after ready: got %v, want 409", err)
	}

	// --- 5. The KDS token does not open another branch ---
	if _, err := client.KitchenOrders(ctx, seed.branchID+1000, cred); !errors.Is(err, apiclient.ErrForbidden) {
		t.Fatalf("other branch: got %v, want 403", err)
	}

	// --- 6. Guest leaves; the session no longer accepts orders ---
	if err := client.EndSession(ctx, session.GuestSessionID); err != nil {
		t.Fatalf("end session: %v", err)
	}
	_, err = client.SubmitOrder(ctx, model.CreateOrderRequest{
		GuestSessionID: session.GuestSessionID,
		BranchID:       seed.branchID,
		TableID:        seed.tableID,
		Items:          []model.OrderItemRequest{{MenuItemID: seed.friesID, Qty: 1}},
	})
	if !errors.Is(err, apiclient.ErrBadRequest) {
		t.Fatalf("order on ended session: got %v, want 400", err)
	}
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tableflow_test"),
		tcpostgres.WithUsername("tableflow"),
		tcpostgres.WithPassword("tableflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Go test sets cwd to the package directory (internal/handler/).
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func seedData(t *testing.T, ctx context.Context, pool *pgxpool.Pool) seeded {
	t.Helper()
	var s seeded
	var restaurantID int64

	pinHash, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}

	mustScan := func(dest *int64, query string, args ...any) {
		t.Helper()
		if err := pool.QueryRow(ctx, query, args...).Scan(dest); err != nil {
			t.Fatalf("seed %q: %v", query, err)
		}
	}
	mustScan(&restaurantID, `INSERT INTO restaurants (name) VALUES ('Test Kitchen') RETURNING id`)
	mustScan(&s.branchID, `INSERT INTO branches (restaurant_id, name, kitchen_pin_hash, kitchen_pin_updated_at)
		VALUES ($1, 'Main', $2, now()) RETURNING id`, restaurantID, string(pinHash))
	mustScan(&s.tableID, `INSERT INTO dining_tables (branch_id, name) VALUES ($1, 'Table 5') RETURNING id`, s.branchID)
	mustScan(&s.friesID, `INSERT INTO menu_items (restaurant_id, name, price_cents, category)
		VALUES ($1, 'French fries', 890, 'Sides') RETURNING id`, restaurantID)
	mustScan(&s.soupID, `INSERT INTO menu_items (restaurant_id, name, price_cents, category)
		VALUES ($1, 'Tomato soup', 650, 'Starters') RETURNING id`, restaurantID)
	var soldOut int64
	mustScan(&soldOut, `INSERT INTO menu_items (restaurant_id, name, price_cents, is_available)
		VALUES ($1, 'Lobster', 4200, false) RETURNING id`, restaurantID)
	return s
}

func dialOrderStream(t *testing.T, server *httptest.Server, branchID int64, token string) *websocket.Conn {
	t.Helper()
	u := fmt.Sprintf("ws%s/api/ws/branches/%d/orders", strings.TrimPrefix(server.URL, "http"), branchID)
	header := http.Header{}
	header.Add("Cookie", (&http.Cookie{Name: apiclient.KDSCookie, Value: token}).String())
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial order stream: %v", err)
	}
	// Registration happens asynchronously after the upgrade.
	time.Sleep(50 * time.Millisecond)
	return conn
}

func expectStreamEvent(t *testing.T, conn *websocket.Conn, eventType string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read order stream: %v", err)
	}
	if !strings.Contains(string(msg), `"type":"`+eventType+`"`) {
		t.Fatalf("order stream: got %s, want %s", msg, eventType)
	}
}
