package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

func main() {
	openingBalance := flag.Float64("opening-balance", 500000, "credit applied to the main ledger account")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedCustomers(db)
	products := seedProducts(db)
	seedStock(db, products)
	seedLedger(db, *openingBalance)

	log.Println("Seeding completed successfully!")
}

func seedCustomers(db *sql.DB) {
	customers := []struct {
		Name, Email, Phone, Address, TIN string
	}{
		{"Kigali Hardware Ltd", "accounts@kigalihardware.rw", "+250788100200", "KN 4 Ave, Kigali", "101234567"},
		{"Musanze Agro Coop", "finance@musanzeagro.rw", "+250788300400", "Musanze Town", "102345678"},
		{"Lake Kivu Lodge", "billing@kivulodge.rw", "+250788500600", "Rubavu", "103456789"},
		{"Huye Printing House", "office@huyeprint.rw", "+250788700800", "Huye", ""},
		{"Walk-in Customer", "", "", "", ""},
	}

	fmt.Println("Seeding Customers...")
	for _, c := range customers {
		var exists bool
		if err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM customers WHERE name = $1)`, c.Name).Scan(&exists); err != nil {
			log.Printf("Failed to check customer %s: %v", c.Name, err)
			continue
		}
		if exists {
			continue
		}
		_, err := db.Exec(`
			INSERT INTO customers (name, email, phone, address, tin)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
		`, c.Name, c.Email, c.Phone, c.Address, c.TIN)
		if err != nil {
			log.Printf("Failed to insert customer %s: %v", c.Name, err)
		}
	}
}

type seededProduct struct {
	ID   string
	Name string
	SKU  string
	Cost float64
}

func seedProducts(db *sql.DB) []seededProduct {
	products := []struct {
		Name, Category, SKU string
		Price, Cost         float64
	}{
		{"Cement 50kg", "Building", "BLD-CEM-50", 11800, 9500},
		{"Iron Sheet 3m", "Building", "BLD-IRN-3M", 14160, 11000},
		{"LED Bulb 9W", "Electrical", "ELC-LED-9W", 2360, 1500},
		{"Extension Cable 5m", "Electrical", "ELC-EXT-5M", 8260, 6000},
		{"A4 Paper Ream", "Office", "OFF-A4-500", 5900, 4200},
		{"Installation Service (hour)", "Services", "SRV-INST-1H", 17700, 0},
	}

	fmt.Println("Seeding Products...")
	seeded := make([]seededProduct, 0, len(products))
	for _, p := range products {
		var id string
		err := db.QueryRow(`SELECT id FROM products WHERE name = $1`, p.Name).Scan(&id)
		if err == sql.ErrNoRows {
			err = db.QueryRow(`
				INSERT INTO products (name, category, unit_price)
				VALUES ($1, $2, $3)
				RETURNING id
			`, p.Name, p.Category, p.Price).Scan(&id)
		}
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
			continue
		}
		if p.Category == "Services" {
			continue
		}
		seeded = append(seeded, seededProduct{ID: id, Name: p.Name, SKU: p.SKU, Cost: p.Cost})
	}
	return seeded
}

func seedStock(db *sql.DB, products []seededProduct) {
	fmt.Println("Seeding Stock...")
	skus := make([]string, 0, len(products))
	for _, p := range products {
		skus = append(skus, p.SKU)
	}
	existing := map[string]bool{}
	rows, err := db.Query(`SELECT sku FROM stock_items WHERE sku = ANY($1)`, pq.Array(skus))
	if err != nil {
		log.Printf("Failed to load stock items: %v", err)
		return
	}
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err == nil {
			existing[sku] = true
		}
	}
	_ = rows.Close()

	txn, err := db.Begin()
	if err != nil {
		log.Printf("Failed to begin stock transaction: %v", err)
		return
	}
	stmt, err := txn.Prepare(pq.CopyIn("stock_items", "product_id", "name", "sku", "quantity", "unit_cost", "location"))
	if err != nil {
		_ = txn.Rollback()
		log.Printf("Failed to prepare stock copy: %v", err)
		return
	}
	for i, p := range products {
		if existing[p.SKU] {
			continue
		}
		if _, err := stmt.Exec(p.ID, p.Name, p.SKU, 50+i*10, p.Cost, "Main warehouse"); err != nil {
			_ = txn.Rollback()
			log.Printf("Failed to copy stock item %s: %v", p.SKU, err)
			return
		}
	}
	if _, err := stmt.Exec(); err != nil {
		_ = txn.Rollback()
		log.Printf("Failed to flush stock copy: %v", err)
		return
	}
	if err := stmt.Close(); err != nil {
		_ = txn.Rollback()
		log.Printf("Failed to close stock copy: %v", err)
		return
	}
	if err := txn.Commit(); err != nil {
		log.Printf("Failed to commit stock: %v", err)
	}
}

func seedLedger(db *sql.DB, amount float64) {
	if amount <= 0 {
		return
	}
	fmt.Println("Seeding Ledger...")
	var count int
	if err := db.QueryRow(`SELECT count(*) FROM ledger_transactions WHERE account_id = 'main' AND source = 'seed'`).Scan(&count); err != nil {
		log.Printf("Failed to check ledger: %v", err)
		return
	}
	if count > 0 {
		return
	}
	_, err := db.Exec(`
		WITH acct AS (
			UPDATE ledger_accounts SET balance = balance + $1, updated_at = now()
			WHERE id = 'main'
			RETURNING balance
		)
		INSERT INTO ledger_transactions (account_id, direction, amount, balance_after, source, description)
		SELECT 'main', 'credit', $1, balance, 'seed', 'Opening balance' FROM acct
	`, amount)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			log.Printf("Failed to seed ledger (%s): %s", pqErr.Code, pqErr.Message)
			return
		}
		log.Printf("Failed to seed ledger: %v", err)
	}
}
