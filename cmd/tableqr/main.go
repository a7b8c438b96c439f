// Command tableqr writes one QR code PNG per dining table. Guests scan the
// code to open the ordering page for that table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tableflow/api/internal/config"
	"github.com/tableflow/api/internal/customer"
	"github.com/tableflow/api/internal/database"
)

type tableCode struct {
	Ref  customer.TableRef
	Name string
}

func main() {
	base := flag.String("base", "http://localhost:3000", "Base URL of the ordering site")
	branchID := flag.Int64("branch", 0, "Branch ID")
	tableID := flag.Int64("table", 0, "Single table ID; all active tables of the branch when zero")
	size := flag.Int("size", 512, "Image size in pixels")
	outDir := flag.String("out", "qr", "Output directory")
	flag.Parse()

	if *branchID <= 0 {
		log.Fatal("-branch is required")
	}

	var codes []tableCode
	if *tableID > 0 {
		codes = []tableCode{{Ref: customer.TableRef{BranchID: *branchID, TableID: *tableID}}}
	} else {
		var err error
		codes, err = loadTables(context.Background(), config.Load().DatabaseURL, *branchID)
		if err != nil {
			log.Fatalf("Failed to load tables: %v", err)
		}
		if len(codes) == 0 {
			log.Fatalf("Branch %d has no active tables", *branchID)
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	for _, c := range codes {
		path, err := writeCode(*outDir, *base, *size, c)
		if err != nil {
			log.Fatalf("Failed to write QR code for table %d: %v", c.Ref.TableID, err)
		}
		log.Printf("Wrote %s", path)
	}
}

func loadTables(ctx context.Context, databaseURL string, branchID int64) ([]tableCode, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	tables, err := database.New(pool).ListDiningTables(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("list dining tables: %w", err)
	}
	var codes []tableCode
	for _, t := range tables {
		if !t.IsActive {
			continue
		}
		codes = append(codes, tableCode{
			Ref:  customer.TableRef{BranchID: t.BranchID, TableID: t.ID},
			Name: t.Name,
		})
	}
	return codes, nil
}

func writeCode(dir, base string, size int, c tableCode) (string, error) {
	png, err := customer.QRCode(customer.ScanURL(base, c.Ref), size)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fileName(c.Ref))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func fileName(ref customer.TableRef) string {
	return fmt.Sprintf("branch-%d-table-%d.png", ref.BranchID, ref.TableID)
}
