package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TriangularOpportunity is a closed 3-leg cycle through a base currency
// (spec.md section 3/4.C).
type TriangularOpportunity struct {
	Exchange    string
	Path        []string // e.g. ["USDT", "BTC", "ETH", "USDT"]
	Symbols     []string // ordered pair symbols traversed
	ProfitRate  float64  // after 3x taker fee
	CreatedAt   time.Time
}

// Base returns the cycle's base currency (first/last node of Path).
func (o TriangularOpportunity) Base() string {
	if len(o.Path) == 0 {
		return ""
	}
	return o.Path[0]
}

// PathString renders the path the way spec.md section 4.C's serialized
// record does: "USDT -> BTC -> ETH -> USDT".
func (o TriangularOpportunity) PathString() string {
	s := ""
	for i, node := range o.Path {
		if i > 0 {
			s += " -> "
		}
		s += node
	}
	return s
}

// CashCarryOpportunity is a spot<->perpetual basis/funding-carry
// opportunity (spec.md section 3/4.D).
type CashCarryOpportunity struct {
	Exchange           string
	Symbol             string
	Direction          CashCarryDirection
	SpotPrice          decimal.Decimal
	PerpPrice          decimal.Decimal
	BasisRate          float64
	FundingContribution float64 // over N funding intervals
	ProfitRate         float64  // net of two-leg fees
	CreatedAt          time.Time
}

// Base returns the quote-currency-stripped base of Symbol, e.g. "BTC" for "BTC/USDT".
func (o CashCarryOpportunity) Base() string {
	return baseCurrency(o.Symbol)
}

// Opportunity is the tagged-variant union spec.md's design notes (section 9)
// call for in a typed reimplementation: exactly one of Triangular/CashCarry
// is set.
type Opportunity struct {
	Kind       StrategyKind
	Triangular *TriangularOpportunity
	CashCarry  *CashCarryOpportunity
}

// ProfitRate returns the wrapped opportunity's profit rate regardless of kind.
func (o Opportunity) ProfitRate() float64 {
	if o.Triangular != nil {
		return o.Triangular.ProfitRate
	}
	if o.CashCarry != nil {
		return o.CashCarry.ProfitRate
	}
	return 0
}

// Exchange returns the wrapped opportunity's exchange regardless of kind.
func (o Opportunity) Exchange() string {
	if o.Triangular != nil {
		return o.Triangular.Exchange
	}
	if o.CashCarry != nil {
		return o.CashCarry.Exchange
	}
	return ""
}

// PrimarySymbol returns the "main" symbol a Decision carries as
// MainSymbol: for a triangle this is the first leg symbol, for
// cash-and-carry it's the only symbol. Blacklist/whitelist checks
// (section 4.F.4) key on Base, not on this symbol.
func (o Opportunity) PrimarySymbol() string {
	if o.Triangular != nil && len(o.Triangular.Symbols) > 0 {
		return o.Triangular.Symbols[0]
	}
	if o.CashCarry != nil {
		return o.CashCarry.Symbol
	}
	return ""
}

// Base returns the opportunity's base currency for dedup/blacklist checks.
func (o Opportunity) Base() string {
	if o.Triangular != nil {
		return o.Triangular.Base()
	}
	if o.CashCarry != nil {
		return o.CashCarry.Base()
	}
	return ""
}

// Symbols returns every symbol the opportunity touches, used by execute_latest's
// user-enabled-symbol filter (section 4.G.3).
func (o Opportunity) Symbols() []string {
	if o.Triangular != nil {
		return o.Triangular.Symbols
	}
	if o.CashCarry != nil {
		return []string{o.CashCarry.Symbol}
	}
	return nil
}

// baseCurrency strips the quote leg from a "BASE/QUOTE" symbol.
func baseCurrency(symbol string) string {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '/' {
			return symbol[:i]
		}
	}
	return symbol
}

// QuoteCurrency returns the quote leg of a "BASE/QUOTE" symbol, or "" if
// there is no separator.
func QuoteCurrency(symbol string) string {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '/' {
			return symbol[i+1:]
		}
	}
	return ""
}

// BaseCurrency exposes baseCurrency to other packages.
func BaseCurrency(symbol string) string { return baseCurrency(symbol) }
