package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"storefront/internal/database"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/repo"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storefront_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("open test db: %v", err)
	}

	if err := database.Migrate(testDB); err != nil {
		log.Fatalf("migrate test db: %v", err)
	}

	code := m.Run()

	testDB.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("terminate container: %v", err)
	}
	os.Exit(code)
}

func newTestNotifier() *notify.Notifier {
	return notify.NewNotifier(notify.ConsoleSender{}, nil, "admin@test.local", nil)
}

func newTestWalletService() WalletService {
	return NewWalletService(testDB, repo.NewWalletRepo(testDB))
}

func newTestOrderService(wallet WalletService) OrderService {
	return NewOrderService(
		testDB,
		repo.NewOrderRepo(testDB),
		repo.NewStockRepo(testDB),
		repo.NewCatalogRepo(testDB),
		wallet,
		newTestNotifier(),
		decimal.NewFromInt(5),
	)
}

func seedProduct(t *testing.T, name string, price decimal.Decimal, stock int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := testDB.Exec(`
		INSERT INTO products (id, name, status, price, weight, unit, supports_refill, stock, created_at, updated_at)
		VALUES ($1, $2, 'ACTIVE', $3, 0.5, 'unit', TRUE, $4, now(), now())`,
		id, name, price, stock,
	)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return id
}

func seedVariant(t *testing.T, productID uuid.UUID, name string, price decimal.Decimal, stock int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := testDB.Exec(`
		INSERT INTO product_variants (id, product_id, name, price, is_active, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, now(), now())`,
		id, productID, name, price, stock,
	)
	if err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return id
}

func productStock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var stock int
	if err := testDB.QueryRow("SELECT stock FROM products WHERE id = $1", productID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

// ledgerSum recomputes a wallet's balance from its transaction log.
func ledgerSum(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	var sum decimal.Decimal
	err := testDB.QueryRow(`
		SELECT COALESCE(SUM(CASE WHEN wt.type = 'CREDIT' THEN wt.amount ELSE -wt.amount END), 0)
		FROM wallet_transactions wt
		JOIN wallets w ON w.id = wt.wallet_id
		WHERE w.user_id = $1`, userID).Scan(&sum)
	if err != nil {
		t.Fatalf("ledger sum: %v", err)
	}
	return sum
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}
