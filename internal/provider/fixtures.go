package provider

import (
	"fmt"
	"time"

	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/model"
)

const mockRestaurantID = 1

type mockBranch struct {
	ID   int64
	Name string
}

type mockTable struct {
	ID       int64
	BranchID int64
	Name     string
	Active   bool
}

var mockBranches = []mockBranch{
	{ID: 1, Name: "Downtown Branch"},
	{ID: 2, Name: "Mall Branch"},
}

var mockTables = []mockTable{
	{ID: 1, BranchID: 1, Name: "Window Seat 1", Active: true},
	{ID: 2, BranchID: 1, Name: "Window Seat 2", Active: true},
	{ID: 3, BranchID: 1, Name: "Center Table", Active: true},
	{ID: 4, BranchID: 1, Name: "Family Booth", Active: true},
	{ID: 5, BranchID: 1, Name: "Terrace 1", Active: true},
	{ID: 6, BranchID: 1, Name: "VIP Room", Active: false},
	{ID: 7, BranchID: 2, Name: "Mall Table 1", Active: true},
}

func fixtureMenu() []model.MenuItem {
	item := func(id int64, name, category string, price int64, available bool) model.MenuItem {
		return model.MenuItem{
			ID:           id,
			RestaurantID: mockRestaurantID,
			Name:         name,
			PriceCents:   price,
			Category:     model.Ptr(category),
			IsAvailable:  available,
		}
	}
	return []model.MenuItem{
		item(1, "French fries", "Appetizers", 890, true),
		item(2, "Caesar Salad", "Salads", 1100, true),
		item(3, "Grilled Salmon(Sushi)", "Main Courses", 2450, true),
		item(4, "Vegetable Risotto", "Main Courses", 1450, true),
		item(5, "Chicken", "Main Courses", 3250, false),
		item(6, "Classic Burger", "Main Courses", 1450, true),
		item(7, "Coffee", "Drinks", 400, true),
		item(8, "Chocolate Lava Cake", "Desserts", 850, true),
	}
}

// fixtureOrders builds one order per lifecycle status for branch 1 plus a new
// order for branch 2. Timestamps are relative to now.
func fixtureOrders(now time.Time, menu []model.MenuItem) []model.Order {
	byID := make(map[int64]model.MenuItem, len(menu))
	for _, m := range menu {
		byID[m.ID] = m
	}

	var nextItemID int64
	line := func(menuItemID int64, qty int) model.OrderItem {
		nextItemID++
		m := byID[menuItemID]
		return model.OrderItem{
			ID:           model.Ptr(nextItemID),
			MenuItemID:   menuItemID,
			Qty:          qty,
			PriceCents:   model.Ptr(m.PriceCents),
			MenuItemName: model.Ptr(m.Name),
		}
	}
	order := func(id, branchID, tableID int64, status enum.OrderStatus, age time.Duration, items ...model.OrderItem) model.Order {
		created := now.Add(-age)
		return model.Order{
			ID:             id,
			RestaurantID:   mockRestaurantID,
			BranchID:       branchID,
			TableID:        tableID,
			TableName:      model.Ptr(tableName(tableID)),
			GuestSessionID: model.Ptr(fmt.Sprintf("session-%03d", id)),
			Status:         status,
			Items:          items,
			TotalCents:     model.Ptr(totalCents(items)),
			CreatedAt:      &created,
			UpdatedAt:      &created,
		}
	}

	return []model.Order{
		order(1, 1, 1, enum.OrderStatusOrdered, 10*time.Minute, line(1, 1), line(3, 1), line(7, 2)),
		order(2, 1, 3, enum.OrderStatusPreparing, 20*time.Minute, line(6, 2), line(7, 2)),
		order(3, 1, 4, enum.OrderStatusPreparedWaiting, 30*time.Minute, line(4, 3), line(2, 2), line(8, 2)),
		order(4, 1, 2, enum.OrderStatusServed, time.Hour, line(3, 1), line(7, 1)),
		order(5, 1, 5, enum.OrderStatusCompleted, time.Hour, line(2, 1), line(8, 2)),
		order(6, 2, 7, enum.OrderStatusOrdered, 5*time.Minute, line(6, 1)),
	}
}

func tableName(id int64) string {
	for _, t := range mockTables {
		if t.ID == id {
			return t.Name
		}
	}
	return ""
}

func totalCents(items []model.OrderItem) int64 {
	var total int64
	for _, it := range items {
		if it.PriceCents != nil {
			total += *it.PriceCents * int64(it.Qty)
		}
	}
	return total
}
