// Command simulate exercises the money-conservation paths against a live
// database: concurrent wallet debits, racing stock reservations, and a
// refund round trip. Useful for eyeballing the invariants outside the test
// suite.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/repo"
	"storefront/internal/service"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	db, err := database.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	walletRepo := repo.NewWalletRepo(db)
	orderRepo := repo.NewOrderRepo(db)
	stockRepo := repo.NewStockRepo(db)
	catalogRepo := repo.NewCatalogRepo(db)
	refundRepo := repo.NewRefundRepo(db)

	notifier := notify.NewNotifier(notify.ConsoleSender{}, nil, cfg.AdminEmail, nil)
	walletSvc := service.NewWalletService(db, walletRepo)
	orderSvc := service.NewOrderService(db, orderRepo, stockRepo, catalogRepo, walletSvc, notifier, decimal.NewFromInt(5))
	refundSvc := service.NewRefundService(db, refundRepo, orderRepo, walletSvc, notifier)

	buyer := uuid.New()
	productID := seedProduct(ctx, db, "Simulation Coffee Beans", "20.00", 5)

	fmt.Println("--- CONCURRENT WALLET DEBITS ($100 balance, two $60 debits) ---")
	if _, err := walletSvc.Credit(ctx, buyer, decimal.NewFromInt(100), domain.SourceAdmin, "simulation seed", nil); err != nil {
		log.Fatalf("seed wallet: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := walletSvc.Debit(ctx, buyer, decimal.NewFromInt(60), domain.SourceOrderPayment, fmt.Sprintf("race-%d", n), nil)
			if err != nil {
				fmt.Printf("  debit %d: REJECTED (%v)\n", n, err)
			} else {
				fmt.Printf("  debit %d: OK\n", n)
			}
		}(i)
	}
	wg.Wait()

	balance, _ := walletSvc.Balance(ctx, buyer)
	fmt.Printf("  final balance: $%s (expect $40)\n", balance)

	fmt.Println("--- RACING STOCK RESERVATIONS (5 units, 3 orders of 2) ---")
	results := make(chan string, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			order, err := orderSvc.Create(ctx, service.CreateOrderInput{
				BuyerID:       uuid.New(),
				Items:         []service.OrderItemInput{{ProductID: productID, Quantity: 2}},
				PaymentMethod: domain.PaymentMethodCOD,
				WalletAmount:  decimal.Zero,
			})
			if err != nil {
				results <- fmt.Sprintf("  order %d: REJECTED (%v)", n, err)
			} else {
				results <- fmt.Sprintf("  order %d: OK (%s)", n, order.OrderNumber)
			}
		}(i)
	}
	wg.Wait()
	close(results)
	for line := range results {
		fmt.Println(line)
	}

	remaining, _ := stockRepo.ProductStock(ctx, productID)
	fmt.Printf("  remaining stock: %d (expect 1)\n", remaining)

	fmt.Println("--- REFUND ROUND TRIP ---")
	order, err := orderSvc.Create(ctx, service.CreateOrderInput{
		BuyerID:       buyer,
		Items:         []service.OrderItemInput{{ProductID: productID, Quantity: 1}},
		PaymentMethod: domain.PaymentMethodCOD,
		WalletAmount:  decimal.NewFromInt(10),
	})
	if err != nil {
		log.Fatalf("refund scenario order: %v", err)
	}
	fmt.Printf("  order %s total $%s, wallet used $%s\n", order.OrderNumber, order.TotalCost, order.WalletUsed)

	result, err := refundSvc.Process(ctx, order.ID, order.TotalCost.Add(order.WalletUsed), "simulation refund", uuid.New())
	if err != nil {
		log.Fatalf("refund: %v", err)
	}
	fmt.Printf("  refunded $%s, new wallet balance $%s\n", result.Amount, result.NewWalletBalance)

	fresh, _ := orderRepo.FindByID(ctx, order.ID)
	fmt.Printf("  order status after refund: %s\n", fresh.Status)

	time.Sleep(100 * time.Millisecond)
}

func seedProduct(ctx context.Context, db *sql.DB, name, price string, stock int) uuid.UUID {
	id := uuid.New()
	_, err := db.ExecContext(ctx, `
		INSERT INTO products (id, name, status, price, weight, unit, supports_refill, stock, created_at, updated_at)
		VALUES ($1, $2, 'ACTIVE', $3, 0.5, 'bag', TRUE, $4, now(), now())`,
		id, name, price, stock,
	)
	if err != nil {
		log.Fatalf("seed product: %v", err)
	}
	return id
}
