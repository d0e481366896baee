// Command devbackend serves the in-memory finance backend with a few seeded
// accounts so the dashboard can be run locally without the real API.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/sebuszqo/FinanceDashboard/internal/devapi"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

func seed(b *devapi.Backend) error {
	admin, err := b.AddUser("admin", "admin@example.com", "admin12345", user.RoleAdmin, user.RoleUser)
	if err != nil {
		return err
	}
	demo, err := b.AddUser("demo", "demo@example.com", "demo12345")
	if err != nil {
		return err
	}

	month := time.Now().UTC().AddDate(0, -2, 0)
	for i := 0; i < 3; i++ {
		at := month.AddDate(0, i, 0)
		b.AddTransaction(demo.ID, domain.Transaction{Amount: 4200, Type: domain.TypeIncome, Date: at, Description: "Salary"})
		b.AddTransaction(demo.ID, domain.Transaction{Amount: 310.5 + float64(i)*20, Type: domain.TypeExpense, Date: at.AddDate(0, 0, 3), Description: "Groceries"})
		b.AddTransaction(demo.ID, domain.Transaction{Amount: 1200, Type: domain.TypeExpense, Date: at.AddDate(0, 0, 1), Description: "Rent"})
	}
	b.AddTransaction(admin.ID, domain.Transaction{Amount: 90, Type: domain.TypeExpense, Date: month, Description: "Hosting"})
	return nil
}

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":8081", "listen address")
	secret := flag.String("secret", "dev-secret", "JWT signing secret")
	meDelay := flag.Duration("me-delay", 0, "artificial delay on the profile endpoint")
	flag.Parse()

	backend := devapi.New(*secret)
	backend.SetMeDelay(*meDelay)
	if err := seed(backend); err != nil {
		log.Fatalf("Could not seed accounts: %v", err)
	}

	log.Printf("Dev backend listening on %s (admin@example.com / admin12345, demo@example.com / demo12345)", *addr)
	if err := http.ListenAndServe(*addr, backend); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
