package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cartsync/internal/crosstab"
	"cartsync/internal/eventbus"
	"cartsync/internal/store"
	"cartsync/internal/storefront"
	"cartsync/internal/visibility"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const helpText = `commands:
  add <sku> [qty]      request an add through the event bus
  set <line> <qty>     set a line quantity (0 removes)
  inc <line> | dec <line>
  rm <line>            remove a line
  clear                empty the cart
  open | close | toggle | esc | outside
  focus                refresh after regaining attention
  nav                  navigate away (closes the overview)
  hint <n>             publish an optimistic count hint
  show                 badge and flyout
  page                 full cart page
  tab new | tab <n> | tabs
  help | quit
lines may be given by id or by 1-based position.`

// terminalDocument prints scroll lock transitions.
type terminalDocument struct {
	out  io.Writer
	name string
}

func (d terminalDocument) SuspendScroll() { fmt.Fprintf(d.out, "[%s] scroll locked\n", d.name) }
func (d terminalDocument) RestoreScroll() { fmt.Fprintf(d.out, "[%s] scroll restored\n", d.name) }

type repl struct {
	in        io.Reader
	out       io.Writer
	logger    logrus.FieldLogger
	gateways  func() store.Gateway
	channels  func() crosstab.Channel
	markerKey string
	queueSize int
	openOnAdd bool

	tabs    []*storefront.Context
	current int
}

func (r *repl) run(ctx context.Context) error {
	if err := r.newTab(ctx); err != nil {
		return err
	}
	defer func() {
		for _, t := range r.tabs {
			t.Close()
		}
	}()

	fmt.Fprintln(r.out, helpText)
	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprintf(r.out, "tab%d> ", r.current+1)
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := r.exec(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) newTab(ctx context.Context) error {
	name := fmt.Sprintf("tab%d", len(r.tabs)+1)
	logger := r.logger.WithField("tab", name)
	sf, err := storefront.New(storefront.Options{
		Gateway:   r.gateways(),
		Channel:   r.channels(),
		MarkerKey: r.markerKey,
		Document:  terminalDocument{out: r.out, name: name},
		QueueSize: r.queueSize,
		OpenOnAdd: r.openOnAdd,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	r.tabs = append(r.tabs, sf)
	r.current = len(r.tabs) - 1
	if err := sf.Start(ctx); err != nil {
		logger.WithError(err).Warn("initial cart load failed")
	}
	return nil
}

func (r *repl) tab() *storefront.Context {
	return r.tabs[r.current]
}

func (r *repl) exec(ctx context.Context, cmd string, args []string) error {
	t := r.tab()
	switch cmd {
	case "help":
		fmt.Fprintln(r.out, helpText)
	case "add":
		if len(args) == 0 {
			return errors.New("usage: add <sku> [qty]")
		}
		ev := eventbus.AddRequested{ProductRef: args[0]}
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			ev.Quantity = eventbus.Quantity(n)
		}
		if err := t.Bus.Publish(ev); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "add requested")
	case "set":
		if len(args) != 2 {
			return errors.New("usage: set <line> <qty>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.Wrap(err, "quantity")
		}
		return r.onLine(args[0], func(id string) error { return t.Page.SetQuantity(ctx, id, n) })
	case "inc", "dec", "rm":
		if len(args) != 1 {
			return errors.Errorf("usage: %s <line>", cmd)
		}
		return r.onLine(args[0], func(id string) error {
			switch cmd {
			case "inc":
				return t.Page.Increment(ctx, id)
			case "dec":
				return t.Page.Decrement(ctx, id)
			default:
				return t.Page.Remove(ctx, id)
			}
		})
	case "clear":
		return t.Page.Clear(ctx)
	case "open":
		return t.Overview.Open(ctx)
	case "toggle":
		return t.Overview.Toggle(ctx)
	case "close":
		t.Overview.Close(visibility.CloseExplicit)
	case "esc":
		t.Overview.Close(visibility.CloseEscape)
	case "outside":
		t.Overview.Close(visibility.CloseOutsideClick)
	case "nav":
		t.Navigate()
	case "focus":
		return t.Focus(ctx)
	case "hint":
		if len(args) != 1 {
			return errors.New("usage: hint <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Wrap(err, "count")
		}
		return t.Bus.Publish(eventbus.CountHint{Count: n})
	case "show":
		fmt.Fprintln(r.out, t.Badge.Render())
		flyout, err := t.Flyout.Render()
		if err != nil {
			return err
		}
		if flyout == "" {
			fmt.Fprintln(r.out, "(overview closed)")
		}
		fmt.Fprint(r.out, flyout)
	case "page":
		page, err := t.Page.Render()
		if err != nil {
			return err
		}
		fmt.Fprint(r.out, page)
	case "tabs":
		for i, tab := range r.tabs {
			marker := " "
			if i == r.current {
				marker = "*"
			}
			fmt.Fprintf(r.out, "%s tab%d %s\n", marker, i+1, tab.Badge.Render())
		}
	case "tab":
		if len(args) != 1 {
			return errors.New("usage: tab new | tab <n>")
		}
		if args[0] == "new" {
			return r.newTab(ctx)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(r.tabs) {
			return errors.Errorf("no tab %s", args[0])
		}
		r.current = n - 1
		return r.tab().Focus(ctx)
	default:
		return errors.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

// onLine resolves a line reference against the current cart.
func (r *repl) onLine(ref string, fn func(id string) error) error {
	cart := r.tab().Store.Cart()
	if n, err := strconv.Atoi(ref); err == nil && cart != nil && n >= 1 && n <= len(cart.Lines) {
		ref = cart.Lines[n-1].ID
	}
	return fn(ref)
}
