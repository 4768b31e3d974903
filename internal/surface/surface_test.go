package surface

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cartsync/internal/domain"
	"cartsync/internal/eventbus"
	"cartsync/internal/gateway"
	"cartsync/internal/store"
	"golang.org/x/text/language"
)

func TestMoneyUsesCurrencyCode(t *testing.T) {
	m := NewMoney(language.English)
	cases := []struct {
		code  string
		minor int64
		want  string
	}{
		{code: "USD", minor: 1250, want: "$12.50"},
		{code: "EUR", minor: 123456, want: "€1,234.56"},
		{code: "JPY", minor: 1200, want: "¥1,200"},
	}
	for _, tc := range cases {
		if got := m.Format(tc.code, tc.minor); got != tc.want {
			t.Fatalf("%s %d: expected %q, got %q", tc.code, tc.minor, tc.want, got)
		}
	}
}

func TestMoneyUnknownCode(t *testing.T) {
	got := NewMoney(language.English).Format("zzz", 250)
	if got != "ZZZ 2.50" {
		t.Fatalf("unexpected %q", got)
	}
}

type stubSource struct {
	mu    sync.Mutex
	state store.State
	fns   []func(store.State)
}

func (s *stubSource) State() store.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubSource) Subscribe(fn func(store.State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
	return func() {}
}

func (s *stubSource) push(st store.State) {
	s.mu.Lock()
	s.state = st
	fns := append([]func(store.State){}, s.fns...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

type stubEditor struct {
	lastSetID  string
	lastSetQty int
	setCalls   int
	setErr     error
	lastRemove string
	clearCalls int
}

func (e *stubEditor) SetItemQuantity(_ context.Context, id string, qty int) (*domain.Cart, error) {
	e.setCalls++
	e.lastSetID = id
	e.lastSetQty = qty
	return nil, e.setErr
}

func (e *stubEditor) RemoveItem(_ context.Context, id string) (*domain.Cart, error) {
	e.lastRemove = id
	return nil, nil
}

func (e *stubEditor) Clear(context.Context) (*domain.Cart, error) {
	e.clearCalls++
	return nil, nil
}

type openFlag bool

func (o openFlag) IsOpen() bool { return bool(o) }

func sampleCart() *domain.Cart {
	return &domain.Cart{
		ID:            "c1",
		Version:       2,
		Currency:      "USD",
		SubtotalCents: 3500,
		TotalCents:    3500,
		Lines: []domain.CartLine{
			{ID: "l1", SKU: "sku-1", Name: "Mug", Quantity: 2, UnitPriceCents: 1000, TotalCents: 2000},
			{ID: "l2", SKU: "sku-2", Quantity: 1, UnitPriceCents: 1500, TotalCents: 1500},
		},
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBadgeHintIsReconciledByStore(t *testing.T) {
	src := &stubSource{state: store.State{Cart: sampleCart()}}
	bus := eventbus.New(4, nil)
	badge := NewBadge(src, bus)
	defer badge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()

	if badge.Count() != 3 {
		t.Fatalf("expected initial count 3, got %d", badge.Count())
	}

	_ = bus.Publish(eventbus.CountHint{Count: 7})
	eventually(t, func() bool { return badge.Count() == 7 })
	if !badge.Pulsing() || badge.Render() != "[cart: 7 *]" {
		t.Fatalf("expected pulsing badge, got %q", badge.Render())
	}

	src.push(store.State{Cart: sampleCart(), Updating: true})
	if badge.Count() != 7 {
		t.Fatalf("in-flight state must not override the hint")
	}
	src.push(store.State{Cart: sampleCart()})
	if badge.Count() != 3 || badge.Pulsing() {
		t.Fatalf("expected store count to win, got %d pulse=%v", badge.Count(), badge.Pulsing())
	}

	_ = bus.Publish(eventbus.ClearHint{})
	eventually(t, func() bool { return badge.Count() == 0 })
}

func TestBadgeHintMatchingStoreDoesNotPulse(t *testing.T) {
	src := &stubSource{state: store.State{Cart: sampleCart()}}
	bus := eventbus.New(4, nil)
	badge := NewBadge(src, bus)
	defer badge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()

	src.push(store.State{Cart: sampleCart(), Seq: 1})
	_ = bus.Publish(eventbus.CountHint{Count: 3})
	_ = bus.Publish(eventbus.CountHint{Count: 9})
	eventually(t, func() bool { return badge.Count() == 9 })
	if !badge.Pulsing() {
		t.Fatalf("expected a differing hint to pulse")
	}

	_ = bus.Publish(eventbus.CountHint{Count: 3})
	eventually(t, func() bool { return badge.Count() == 3 })
	if badge.Pulsing() || badge.Render() != "[cart: 3]" {
		t.Fatalf("hint equal to the store count must not pulse, got %q", badge.Render())
	}
}

func TestBadgeIgnoresOlderStoreState(t *testing.T) {
	src := &stubSource{state: store.State{Cart: sampleCart()}}
	badge := NewBadge(src, nil)
	defer badge.Close()

	src.push(store.State{Cart: &domain.Cart{ID: "c1"}, Seq: 5})
	src.push(store.State{Cart: sampleCart(), Seq: 4})
	if badge.Count() != 0 {
		t.Fatalf("older state overwrote newer one, count=%d", badge.Count())
	}
}

func TestBadgeFollowsStoreUnderConcurrentAdds(t *testing.T) {
	backend := gateway.NewMemoryBackend("USD",
		domain.Product{ID: "p1", SKU: "sku-1", Name: "Mug", PriceCents: 500},
	)
	st := store.New(backend.Session("s1"))
	defer st.Close()

	held := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	unsubscribe := st.Subscribe(func(s store.State) {
		if !s.Updating && s.Cart.ItemCount() == 1 {
			once.Do(func() {
				close(held)
				<-release
			})
		}
	})
	defer unsubscribe()
	badge := NewBadge(st, nil)
	defer badge.Close()

	ctx := context.Background()
	firstDone := make(chan error, 1)
	go func() {
		_, err := st.AddItem(ctx, "sku-1", store.AddOptions{})
		firstDone <- err
	}()
	<-held

	if _, err := st.AddItem(ctx, "sku-1", store.AddOptions{}); err != nil {
		t.Fatalf("second add: %v", err)
	}
	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first add: %v", err)
	}

	if got, want := badge.Count(), st.ItemCount(); got != want || want != 2 {
		t.Fatalf("badge shows %d, store holds %d", got, want)
	}
}

func TestFlyoutRendersOnlyWhenOpen(t *testing.T) {
	src := &stubSource{state: store.State{Cart: sampleCart()}}
	closed := NewFlyout(src, &stubEditor{}, openFlag(false))
	out, err := closed.Render()
	if err != nil || out != "" {
		t.Fatalf("closed flyout rendered %q, %v", out, err)
	}

	open := NewFlyout(src, &stubEditor{}, openFlag(true))
	out, err = open.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"l1  Mug  x2  $20.00", "l2  sku-2  x1  $15.00", "Total: $35.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestControlsRejectedWhileUpdating(t *testing.T) {
	src := &stubSource{state: store.State{Cart: sampleCart(), Updating: true}}
	editor := &stubEditor{}
	page := NewPage(src, editor)

	if err := page.SetQuantity(context.Background(), "l1", 4); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected busy, got %v", err)
	}
	if err := page.Remove(context.Background(), "l1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected busy, got %v", err)
	}
	if err := page.Clear(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected busy, got %v", err)
	}
	if editor.setCalls != 0 || editor.lastRemove != "" || editor.clearCalls != 0 {
		t.Fatalf("editor called while updating")
	}
	out, err := page.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "controls disabled") {
		t.Fatalf("expected disabled marker in:\n%s", out)
	}
}

func TestStepAndDrafts(t *testing.T) {
	src := &stubSource{state: store.State{Cart: sampleCart()}}
	editor := &stubEditor{}
	page := NewPage(src, editor)

	if err := page.Decrement(context.Background(), "l1"); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if editor.lastSetID != "l1" || editor.lastSetQty != 1 {
		t.Fatalf("unexpected set %q/%d", editor.lastSetID, editor.lastSetQty)
	}
	if err := page.Increment(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	page.SetDraft("l2", 5)
	out, _ := page.Render()
	if !strings.Contains(out, "(editing: 5)") {
		t.Fatalf("expected draft in:\n%s", out)
	}
	if err := page.CommitDraft(context.Background(), "l2"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if editor.lastSetQty != 5 {
		t.Fatalf("expected draft quantity sent, got %d", editor.lastSetQty)
	}
	out, _ = page.Render()
	if strings.Contains(out, "editing") {
		t.Fatalf("draft should be cleared after commit:\n%s", out)
	}
}

func TestErrorShownInline(t *testing.T) {
	src := &stubSource{state: store.State{Cart: sampleCart()}}
	editor := &stubEditor{setErr: &domain.TransportError{Op: "update", Status: 502, Err: errors.New("bad gateway")}}
	page := NewPage(src, editor)

	if err := page.SetQuantity(context.Background(), "l1", 3); err == nil {
		t.Fatalf("expected error")
	}
	out, _ := page.Render()
	if !strings.Contains(out, "Error: transport: update: status 502") {
		t.Fatalf("expected inline error in:\n%s", out)
	}
	page.SetDraft("l1", 3)
	if out, _ := page.Render(); !strings.Contains(out, "(editing: 3)") {
		t.Fatalf("draft should survive a failed commit")
	}
}

func TestPageAgainstMemoryGateway(t *testing.T) {
	backend := gateway.NewMemoryBackend("EUR",
		domain.Product{ID: "p1", SKU: "sku-1", Name: "Mug", PriceCents: 1250},
	)
	st := store.New(backend.Session("s1"))
	page := NewPage(st, st)
	ctx := context.Background()

	cart, err := st.AddItem(ctx, "sku-1", store.AddOptions{Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	lineID := cart.Lines[0].ID
	if err := page.Increment(ctx, lineID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	out, err := page.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "3 x €12.50 = €37.50") {
		t.Fatalf("unexpected page:\n%s", out)
	}

	if err := page.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, _ = page.Render()
	if !strings.Contains(out, "Cart (0 items)") || !strings.Contains(out, "Your cart is empty.") {
		t.Fatalf("unexpected page after clear:\n%s", out)
	}
}
