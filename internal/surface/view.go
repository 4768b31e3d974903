package surface

import (
	"bytes"
	"context"
	"sync"
	"text/template"

	"cartsync/internal/domain"
	"cartsync/internal/store"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
)

// ErrBusy rejects input while a cart mutation is in flight.
var ErrBusy = errors.New("surface: cart is updating")

// CartEditor is the mutating side of the cart store used by list views.
type CartEditor interface {
	SetItemQuantity(ctx context.Context, itemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, itemID string) (*domain.Cart, error)
	Clear(ctx context.Context) (*domain.Cart, error)
}

type lineView struct {
	ID       string
	Name     string
	SKU      string
	Quantity int
	Draft    int
	HasDraft bool
	Unit     string
	Total    string
}

type viewData struct {
	Empty    bool
	Lines    []lineView
	Count    int
	Subtotal string
	Total    string
	Disabled bool
	Error    string
}

// listView is the behavior shared by the flyout and the full page.
type listView struct {
	src    CartSource
	editor CartEditor
	money  Money
	tmpl   *template.Template

	mu      sync.Mutex
	drafts  map[string]int
	lastErr error
}

func newListView(src CartSource, editor CartEditor, tmpl *template.Template) *listView {
	return &listView{
		src:    src,
		editor: editor,
		money:  NewMoney(language.English),
		tmpl:   tmpl,
		drafts: make(map[string]int),
	}
}

// SetQuantity commits quantity for a line. Zero or less removes it.
func (v *listView) SetQuantity(ctx context.Context, lineID string, quantity int) error {
	if err := v.ready(); err != nil {
		return err
	}
	_, err := v.editor.SetItemQuantity(ctx, lineID, quantity)
	v.settle(lineID, err)
	return err
}

func (v *listView) Increment(ctx context.Context, lineID string) error {
	return v.step(ctx, lineID, 1)
}

func (v *listView) Decrement(ctx context.Context, lineID string) error {
	return v.step(ctx, lineID, -1)
}

func (v *listView) step(ctx context.Context, lineID string, delta int) error {
	l, ok := v.src.State().Cart.Line(lineID)
	if !ok {
		return &domain.NotFoundError{Resource: "line item", ID: lineID}
	}
	return v.SetQuantity(ctx, lineID, l.Quantity+delta)
}

func (v *listView) Remove(ctx context.Context, lineID string) error {
	if err := v.ready(); err != nil {
		return err
	}
	_, err := v.editor.RemoveItem(ctx, lineID)
	v.settle(lineID, err)
	return err
}

// SetDraft records a typed but uncommitted quantity.
func (v *listView) SetDraft(lineID string, quantity int) {
	if quantity < 0 {
		quantity = 0
	}
	v.mu.Lock()
	v.drafts[lineID] = quantity
	v.mu.Unlock()
}

// CommitDraft sends the draft quantity for a line, if any.
func (v *listView) CommitDraft(ctx context.Context, lineID string) error {
	v.mu.Lock()
	qty, ok := v.drafts[lineID]
	v.mu.Unlock()
	if !ok {
		return nil
	}
	return v.SetQuantity(ctx, lineID, qty)
}

func (v *listView) ready() error {
	if v.src.State().Updating {
		return ErrBusy
	}
	return nil
}

func (v *listView) settle(lineID string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastErr = err
	if err == nil {
		delete(v.drafts, lineID)
	}
}

func (v *listView) render() (string, error) {
	st := v.src.State()
	data := v.data(st)
	var buf bytes.Buffer
	if err := v.tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "render cart")
	}
	return buf.String(), nil
}

func (v *listView) data(st store.State) viewData {
	v.mu.Lock()
	defer v.mu.Unlock()

	d := viewData{Disabled: st.Updating, Empty: true}
	switch {
	case v.lastErr != nil:
		d.Error = v.lastErr.Error()
	case st.Err != nil:
		d.Error = st.Err.Error()
	}
	c := st.Cart
	if c == nil {
		return d
	}
	d.Count = c.ItemCount()
	d.Empty = len(c.Lines) == 0
	d.Subtotal = v.money.Format(c.Currency, c.SubtotalCents)
	d.Total = v.money.Format(c.Currency, c.TotalCents)
	for _, l := range c.Lines {
		lv := lineView{
			ID:       l.ID,
			Name:     l.Name,
			SKU:      l.SKU,
			Quantity: l.Quantity,
			Unit:     v.money.Format(c.Currency, l.UnitPriceCents),
			Total:    v.money.Format(c.Currency, l.TotalCents),
		}
		if draft, ok := v.drafts[l.ID]; ok {
			lv.Draft, lv.HasDraft = draft, true
		}
		if lv.Name == "" {
			lv.Name = l.SKU
		}
		d.Lines = append(d.Lines, lv)
	}
	return d
}
