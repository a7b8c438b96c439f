// Command order is a console ordering client for one dining table. Guests
// type commands on stdin:
//
//	scan table:5;branch:2   sit down at the table from its QR code
//	menu                    list what can be ordered
//	add 3                   add one of menu item 3
//	qty 3 2                 set the quantity of item 3 (0 removes it)
//	remove 3                take item 3 out of the cart
//	cart                    show the cart with prices
//	submit [notes]          place the order
//	end                     leave the table
//	quit
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/tableflow/api/internal/config"
	"github.com/tableflow/api/internal/customer"
	"github.com/tableflow/api/internal/kvstore"
	"github.com/tableflow/api/internal/model"
	"github.com/tableflow/api/internal/provider"
)

func main() {
	scan := flag.String("scan", "", "Table code or scan URL to start with")
	flag.Parse()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := kvstore.Open(ctx, cfg.RedisAddr, cfg.RedisNamespace)
	if err != nil {
		log.Fatalf("Unable to open guest storage: %v", err)
	}
	defer closeStore() //nolint:errcheck

	ordering, err := customer.NewOrdering(ctx, provider.New(cfg), store)
	if err != nil {
		log.Fatalf("Unable to restore guest state: %v", err)
	}

	s := newShop(ordering, os.Stdout)
	if *scan != "" {
		s.exec(ctx, []string{"scan", *scan})
	} else if sess, ok := ordering.Session(); ok {
		s.printf("Welcome back to table %d.\n", sess.TableID)
	} else {
		s.printf("Scan your table code: scan <code>\n")
	}
	s.run(ctx, os.Stdin)
}

type shop struct {
	ordering *customer.Ordering
	out      io.Writer
	menu     map[int64]model.MenuItem
}

func newShop(o *customer.Ordering, out io.Writer) *shop {
	return &shop{ordering: o, out: out, menu: make(map[int64]model.MenuItem)}
}

func (s *shop) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *shop) fail(err error) {
	s.printf("%s\n", customer.Message(err))
}

// run reads commands until EOF, quit or ctx is done.
func (s *shop) run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !s.exec(ctx, fields) {
			return
		}
	}
}

// exec runs one command and reports whether to keep reading.
func (s *shop) exec(ctx context.Context, fields []string) bool {
	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "scan":
		sess, err := s.ordering.StartFromScan(ctx, strings.Join(args, " "))
		if err != nil {
			s.fail(err)
			return true
		}
		s.printf("Welcome to table %d. Type menu to see what's cooking.\n", sess.TableID)
	case "menu":
		s.showMenu(ctx)
	case "add":
		s.add(ctx, args)
	case "qty":
		s.setQty(ctx, args)
	case "remove":
		id, ok := s.itemArg(args)
		if !ok {
			return true
		}
		if err := s.ordering.Cart.Remove(ctx, id); err != nil {
			s.fail(err)
		}
	case "cart":
		s.showCart()
	case "submit":
		s.submit(ctx, strings.Join(args, " "))
	case "end":
		if err := s.ordering.End(ctx); err != nil && !errors.Is(err, customer.ErrNoSession) {
			log.Printf("WARN: end session: %v", err)
		}
		s.menu = make(map[int64]model.MenuItem)
		s.printf("Thanks for visiting.\n")
	case "quit", "exit":
		return false
	default:
		s.printf("Commands: scan, menu, add, qty, remove, cart, submit, end, quit\n")
	}
	return true
}

func (s *shop) showMenu(ctx context.Context) {
	items, err := s.ordering.LoadMenu(ctx)
	if err != nil {
		s.fail(err)
		return
	}
	s.menu = make(map[int64]model.MenuItem, len(items))
	category := ""
	for _, it := range items {
		s.menu[it.ID] = it
		if it.Category != nil && *it.Category != category {
			category = *it.Category
			s.printf("== %s\n", category)
		}
		s.printf("  %3d  %-28s %s\n", it.ID, it.Name, customer.FormatCents(it.PriceCents))
	}
}

func (s *shop) itemArg(args []string) (int64, bool) {
	if len(args) == 0 {
		s.printf("Which item? Use the number from the menu.\n")
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		s.printf("%q is not a menu number.\n", args[0])
		return 0, false
	}
	return id, true
}

func (s *shop) add(ctx context.Context, args []string) {
	id, ok := s.itemArg(args)
	if !ok {
		return
	}
	item, ok := s.menu[id]
	if !ok {
		s.printf("Item %d is not on the menu. Type menu to refresh it.\n", id)
		return
	}
	if err := s.ordering.Cart.Add(ctx, item); err != nil {
		s.fail(err)
		return
	}
	s.printf("Added %s (%d in cart).\n", item.Name, s.ordering.Cart.TotalItems())
}

func (s *shop) setQty(ctx context.Context, args []string) {
	id, ok := s.itemArg(args)
	if !ok {
		return
	}
	if len(args) < 2 {
		s.printf("Usage: qty <item> <quantity>\n")
		return
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		s.printf("%q is not a quantity.\n", args[1])
		return
	}
	if err := s.ordering.Cart.UpdateQuantity(ctx, id, qty); err != nil {
		s.fail(err)
	}
}

func (s *shop) showCart() {
	lines := s.ordering.Cart.Lines()
	if len(lines) == 0 {
		s.fail(customer.ErrEmptyCart)
		return
	}
	for _, l := range lines {
		s.printf("  %3dx %-28s %s\n", l.Qty, l.Item.Name, customer.FormatCents(l.Item.PriceCents*int64(l.Qty)))
	}
	q := customer.QuoteLines(lines)
	s.printf("  Subtotal %s\n  Tax      %s\n  Total    %s\n",
		customer.FormatMoney(q.Subtotal), customer.FormatMoney(q.Tax), customer.FormatMoney(q.Total))
}

func (s *shop) submit(ctx context.Context, notes string) {
	var n *string
	if notes != "" {
		n = &notes
	}
	order, err := s.ordering.Submit(ctx, n)
	if err != nil {
		s.fail(err)
		return
	}
	total := "pending"
	if order.TotalCents != nil {
		total = customer.FormatCents(*order.TotalCents)
	}
	s.printf("Order #%d placed, total %s. The kitchen has it.\n", order.ID, total)
}
