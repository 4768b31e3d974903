package surface

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Money formats minor units in the given ISO 4217 currency. The symbol and
// the number of decimals come from CLDR data for the currency.
type Money struct {
	printer *message.Printer
}

func NewMoney(tag language.Tag) Money {
	return Money{printer: message.NewPrinter(tag)}
}

func (m Money) Format(code string, minor int64) string {
	p := m.printer
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		// unknown code: print it verbatim with two decimals
		return strings.ToUpper(strings.TrimSpace(code)) + " " + p.Sprint(number.Decimal(float64(minor)/100, number.Scale(2)))
	}
	scale, _ := currency.Standard.Rounding(unit)
	value := float64(minor) / math.Pow10(scale)
	sym := p.Sprint(currency.Symbol(unit))
	amount := p.Sprint(number.Decimal(value, number.Scale(scale)))
	if endsWithLetter(sym) {
		return sym + " " + amount
	}
	return sym + amount
}

func endsWithLetter(s string) bool {
	r := []rune(s)
	return len(r) > 0 && unicode.IsLetter(r[len(r)-1])
}
