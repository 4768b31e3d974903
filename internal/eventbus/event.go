package eventbus

// Kind discriminates the events carried by the bus.
type Kind int

const (
	KindAddRequested Kind = iota + 1
	KindCountHint
	KindClearHint
)

func (k Kind) String() string {
	switch k {
	case KindAddRequested:
		return "add-requested"
	case KindCountHint:
		return "count-hint"
	case KindClearHint:
		return "clear-hint"
	default:
		return "unknown"
	}
}

type Event interface {
	Kind() Kind
}

// AddRequested asks whoever owns the cart to add a product. A nil Quantity
// means the default of one.
type AddRequested struct {
	ProductRef string
	VariantID  string
	Quantity   *int
}

func (AddRequested) Kind() Kind { return KindAddRequested }

// CountHint is an optimistic item count for counters that do not own the
// cart. The next real cart state overrides it.
type CountHint struct {
	Count int
}

func (CountHint) Kind() Kind { return KindCountHint }

type ClearHint struct{}

func (ClearHint) Kind() Kind { return KindClearHint }

// Quantity is a helper for building AddRequested literals.
func Quantity(n int) *int { return &n }
