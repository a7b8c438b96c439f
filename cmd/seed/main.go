package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/tableflow/api/internal/config"
	"github.com/tableflow/api/internal/database"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/model"
)

const (
	restaurantName = "TableFlow Bistro"
	branchName     = "Downtown Branch"
	tableCount     = 6
)

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	pin := flag.String("pin", "", "Kitchen PIN for the branch (6 digits)")
	menuFile := flag.String("menu", "", "Menu file, one 'category | name | price' per line")
	flag.Parse()

	// Fall back to environment variables, then defaults
	*email = fallback(*email, os.Getenv("SEED_EMAIL"), "admin@tableflow.local")
	*name = fallback(*name, os.Getenv("SEED_NAME"), "Branch Admin")
	*pin = fallback(*pin, os.Getenv("SEED_KITCHEN_PIN"), "123456")
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *password == "" {
		*password = "password123"
		log.Println("WARN: using default password 'password123'. Change immediately in production!")
	}
	if !model.ValidKitchenPin(*pin) {
		log.Fatalf("Kitchen PIN must be %d digits", model.KitchenPinLength)
	}

	menuText := defaultMenu
	if *menuFile != "" {
		b, err := os.ReadFile(*menuFile)
		if err != nil {
			log.Fatalf("Failed to read menu file: %v", err)
		}
		menuText = string(b)
	}
	menu, err := parseMenu(menuText)
	if err != nil {
		log.Fatalf("Failed to parse menu: %v", err)
	}
	for _, w := range menu.Warnings {
		log.Printf("WARN: menu %s", w)
	}

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Seed in a transaction: everything or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	restaurantID, created, err := seedRestaurant(ctx, tx)
	if err != nil {
		log.Fatalf("Failed to seed restaurant: %v", err)
	}
	if !created {
		log.Printf("Restaurant '%s' already exists (ID: %d), skipping", restaurantName, restaurantID)
		return
	}

	branchID, err := seedBranch(ctx, tx, restaurantID, *pin)
	if err != nil {
		log.Fatalf("Failed to seed branch: %v", err)
	}

	for i := 1; i <= tableCount; i++ {
		if _, err := tx.Exec(ctx, `INSERT INTO dining_tables (branch_id, name) VALUES ($1, $2)`,
			branchID, fmt.Sprintf("Table %d", i)); err != nil {
			log.Fatalf("Failed to seed tables: %v", err)
		}
	}

	queries := database.New(tx)
	for _, item := range menu.Items {
		if _, err := queries.CreateMenuItem(ctx, database.CreateMenuItemParams{
			RestaurantID: restaurantID,
			Name:         item.Name,
			PriceCents:   item.PriceCents,
			Category:     model.Ptr(item.Category),
			IsAvailable:  item.IsAvailable,
		}); err != nil {
			log.Fatalf("Failed to seed menu item %q: %v", item.Name, err)
		}
	}

	userID, err := seedAdmin(ctx, tx, restaurantID, branchID, *email, *password, *name)
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Restaurant ID: %d", restaurantID)
	log.Printf("Branch ID: %d (%d tables, %d menu items)", branchID, tableCount, len(menu.Items))
	log.Printf("Admin ID: %d", userID)
}

func fallback(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// seedRestaurant creates the restaurant unless one with the same name exists.
func seedRestaurant(ctx context.Context, tx pgx.Tx) (int64, bool, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM restaurants WHERE name = $1 LIMIT 1`, restaurantName).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("check restaurant: %w", err)
	}

	if err := tx.QueryRow(ctx, `INSERT INTO restaurants (name) VALUES ($1) RETURNING id`, restaurantName).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("insert restaurant: %w", err)
	}
	log.Printf("Created restaurant '%s' (ID: %d)", restaurantName, id)
	return id, true, nil
}

// seedBranch creates the branch with its kitchen PIN stored bcrypt-hashed.
func seedBranch(ctx context.Context, tx pgx.Tx, restaurantID int64, pin string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash kitchen pin: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO branches (restaurant_id, name, kitchen_pin_hash, kitchen_pin_updated_at)
		VALUES ($1, $2, $3, now())
		RETURNING id
	`, restaurantID, branchName, string(hash)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert branch: %w", err)
	}
	log.Printf("Created branch '%s' (ID: %d)", branchName, id)
	return id, nil
}

// seedAdmin creates the branch admin unless the email is taken.
func seedAdmin(ctx context.Context, tx pgx.Tx, restaurantID, branchID int64, email, password, fullName string) (int64, error) {
	var existingID int64
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1 LIMIT 1`, email).Scan(&existingID)
	if err == nil {
		log.Printf("User '%s' already exists (ID: %d), skipping", email, existingID)
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users (restaurant_id, branch_id, email, hashed_password, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING id
	`, restaurantID, branchID, email, string(hashed), fullName, enum.UserRoleAdmin).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	log.Printf("Created admin user '%s' (ID: %d)", email, id)
	return id, nil
}
