// Command kds runs a kitchen display terminal for one branch in the console.
// Staff type commands on stdin:
//
//	pin 123456    unlock the terminal with the kitchen PIN
//	accept 12     start preparing order 12
//	ready 12      mark order 12 as ready
//	board         print the board again
//	logout        forget the stored kitchen token
//	quit
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/tableflow/api/internal/config"
	"github.com/tableflow/api/internal/customer"
	"github.com/tableflow/api/internal/kds"
	"github.com/tableflow/api/internal/kvstore"
	"github.com/tableflow/api/internal/model"
	"github.com/tableflow/api/internal/provider"
)

func main() {
	branchID := flag.Int64("branch", 0, "Branch ID this terminal serves")
	flag.Parse()
	if *branchID <= 0 {
		log.Fatal(kds.Message(kds.ErrInvalidBranch))
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := kvstore.Open(ctx, cfg.RedisAddr, cfg.RedisNamespace)
	if err != nil {
		log.Fatalf("Unable to open terminal storage: %v", err)
	}
	defer closeStore() //nolint:errcheck

	backend := provider.New(cfg)
	tokens := kds.NewTokenStore(store, cfg.KDSTokenGrace)
	gate := kds.NewGate(*branchID, backend, tokens)
	keypad := kds.NewKeypad(gate)
	poller := kds.NewPoller(*branchID, backend, gate, cfg.KDSPollInterval)
	dispatcher := kds.NewDispatcher(poller, backend)

	t := &terminal{
		cfg:        cfg,
		gate:       gate,
		keypad:     keypad,
		poller:     poller,
		dispatcher: dispatcher,
		unlocked:   make(chan struct{}, 1),
	}
	poller.OnChange = t.render

	if ok, err := gate.Restore(ctx); err != nil {
		log.Printf("WARN: restore kitchen token: %v", err)
	} else if ok {
		t.unlock()
	} else {
		fmt.Println("Enter the kitchen PIN: pin <6 digits>")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.runBoard(ctx)
	}()

	t.readCommands(ctx, os.Stdin)
	stop()
	poller.Stop()
	wg.Wait()
}

type terminal struct {
	cfg        *config.Config
	gate       *kds.Gate
	keypad     *kds.Keypad
	poller     *kds.Poller
	dispatcher *kds.Dispatcher

	unlocked chan struct{}
	mu       sync.Mutex
}

func (t *terminal) unlock() {
	select {
	case t.unlocked <- struct{}{}:
	default:
	}
}

// runBoard polls while the terminal is unlocked and goes back to waiting for
// the PIN whenever authorization is lost.
func (t *terminal) runBoard(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.unlocked:
		}

		session, cancel := context.WithCancel(ctx)
		if !t.cfg.UseMockData {
			go func() {
				if err := kds.Subscribe(session, t.cfg.APIBaseURL, t.poller); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("WARN: order stream stopped: %v", err)
				}
			}()
		}
		err := t.poller.Run(session)
		cancel()

		switch {
		case ctx.Err() != nil, err == nil:
			return
		case errors.Is(err, kds.ErrAuthRequired), errors.Is(err, kds.ErrForbidden):
			t.println(kds.Message(err))
		default:
			t.println(kds.Message(err))
			return
		}
	}
}

func (t *terminal) readCommands(ctx context.Context, in *os.File) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		switch strings.ToLower(fields[0]) {
		case "pin":
			t.enterPin(ctx, arg)
		case "accept":
			t.act(ctx, arg, t.dispatcher.Accept)
		case "ready":
			t.act(ctx, arg, t.dispatcher.MarkReady)
		case "board":
			t.render(t.poller.View())
		case "logout":
			if err := t.gate.Invalidate(ctx); err != nil {
				t.println(kds.Message(err))
			}
			t.println("Logged out. Enter the kitchen PIN: pin <6 digits>")
		case "quit", "exit":
			return
		default:
			t.println("Commands: pin, accept, ready, board, logout, quit")
		}
	}
}

func (t *terminal) enterPin(ctx context.Context, pin string) {
	if err := t.keypad.Clear(); err != nil {
		t.println(kds.Message(err))
		return
	}
	verified, err := t.keypad.Input(ctx, 0, pin)
	if err != nil {
		t.println(kds.Message(err))
		return
	}
	if !verified {
		t.println(kds.Message(kds.ErrInvalidPinFormat))
		return
	}
	t.println("Kitchen unlocked.")
	t.unlock()
}

func (t *terminal) act(ctx context.Context, arg string, fn func(context.Context, int64) (model.Order, error)) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		t.println(kds.Message(kds.ErrInvalidOrder))
		return
	}
	order, err := fn(ctx, id)
	if err != nil {
		t.println(kds.Message(err))
		return
	}
	t.println(fmt.Sprintf("Order #%d is now %s.", order.ID, order.Status))
}

func (t *terminal) render(v kds.View) {
	var b strings.Builder
	if v.Banner != "" {
		fmt.Fprintf(&b, "! %s\n", v.Banner)
	}
	if v.NeedsPin {
		b.WriteString("Kitchen PIN required: pin <6 digits>\n")
	}
	processing, busy := t.dispatcher.Processing()
	column := func(title string, orders []model.Order) {
		fmt.Fprintf(&b, "== %s (%d)\n", title, len(orders))
		for _, o := range orders {
			table := fmt.Sprintf("table %d", o.TableID)
			if o.TableName != nil {
				table = *o.TableName
			}
			marker := ""
			if busy && o.ID == processing {
				marker = " [processing]"
			}
			fmt.Fprintf(&b, "  #%d %s%s\n", o.ID, table, marker)
			for _, it := range o.Items {
				name := fmt.Sprintf("item %d", it.MenuItemID)
				if it.MenuItemName != nil {
					name = *it.MenuItemName
				}
				fmt.Fprintf(&b, "     %dx %s", it.Qty, name)
				if it.Notes != nil {
					fmt.Fprintf(&b, " (%s)", *it.Notes)
				}
				b.WriteByte('\n')
			}
			if o.TotalCents != nil {
				fmt.Fprintf(&b, "     total %s\n", customer.FormatCents(*o.TotalCents))
			}
		}
	}
	column("NEW", v.Board.Ordered)
	column("PREPARING", v.Board.Preparing)
	column("READY", v.Board.PreparedWaiting)
	t.println(b.String())
}

func (t *terminal) println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(s)
}
