package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/config"
	"github.com/vitrineshop/marketapi/internal/repository/postgres"
)

func main() {
	buyerFlag := flag.String("buyer", "", "Buyer user id")
	limitFlag := flag.Int("limit", 20, "Max purchases to list")
	flag.Parse()

	buyerID, err := uuid.Parse(*buyerFlag)
	if err != nil {
		fmt.Println("Usage: go run cmd/list-purchases/main.go --buyer <user uuid> [--limit 20]")
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	ctx := context.Background()

	purchases, err := repos.Purchase.ListByBuyerID(ctx, buyerID, *limitFlag, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list purchases: %v\n", err)
		os.Exit(1)
	}

	for _, p := range purchases {
		external := "-"
		if p.ExternalOrderID != nil {
			external = *p.ExternalOrderID
		}
		fmt.Printf("%s  %-16s %-12s products=%d shipping=%d external=%s %s\n",
			p.ID, p.Status, p.PaymentMethod, p.ProductAmount, p.ShippingFee, external,
			p.CreatedAt.Format("2006-01-02 15:04"))

		sales, err := repos.StoreSale.GetByPurchaseID(ctx, p.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  failed to load sales: %v\n", err)
			continue
		}
		for _, s := range sales {
			fmt.Printf("  sale %s store=%s qty=%d amount=%d status=%s\n",
				s.ID, s.StoreID, s.Quantity, s.Amount, s.Status)
		}
	}

	fmt.Printf("%d purchase(s)\n", len(purchases))
}
