package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// menuLine is one item parsed from a menu file.
type menuLine struct {
	Category    string
	Name        string
	PriceCents  int64
	IsAvailable bool
}

// parsedMenu is the result of parsing a menu file.
type parsedMenu struct {
	Items    []menuLine
	Warnings []string // Lines that failed to parse
}

// defaultMenu seeds a fresh database when no menu file is given.
const defaultMenu = `
# category | name | price [| sold out]
Appetizers   | French fries          | 8.90
Salads       | Caesar Salad          | 11.00
Main Courses | Grilled Salmon(Sushi) | 24.50
Main Courses | Vegetable Risotto     | 14.50
Main Courses | Chicken               | 32.50 | sold out
Main Courses | Classic Burger        | 14.50
Drinks       | Coffee                | 4.00
Desserts     | Chocolate Lava Cake   | 8.50
`

// parseMenu reads "category | name | price" lines. An optional fourth
// column "sold out" marks the item unavailable. Blank lines and lines
// starting with # are skipped; malformed lines become warnings.
func parseMenu(text string) (*parsedMenu, error) {
	out := &parsedMenu{}
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		item, err := parseMenuLine(line)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}
		out.Items = append(out.Items, item)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("no menu items found")
	}
	return out, nil
}

func parseMenuLine(line string) (menuLine, error) {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 || len(parts) > 4 {
		return menuLine{}, fmt.Errorf("want 3 or 4 columns, got %d", len(parts))
	}
	if parts[0] == "" || parts[1] == "" {
		return menuLine{}, fmt.Errorf("category and name are required")
	}

	price, err := decimal.NewFromString(strings.TrimPrefix(parts[2], "$"))
	if err != nil {
		return menuLine{}, fmt.Errorf("invalid price %q", parts[2])
	}
	if price.IsNegative() {
		return menuLine{}, fmt.Errorf("negative price %q", parts[2])
	}
	cents := price.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return menuLine{}, fmt.Errorf("price %q has more than two decimals", parts[2])
	}

	item := menuLine{
		Category:    parts[0],
		Name:        parts[1],
		PriceCents:  cents.IntPart(),
		IsAvailable: true,
	}
	if len(parts) == 4 {
		switch strings.ToLower(parts[3]) {
		case "sold out", "unavailable":
			item.IsAvailable = false
		case "", "available":
		default:
			return menuLine{}, fmt.Errorf("unknown availability %q", parts[3])
		}
	}
	return item, nil
}
