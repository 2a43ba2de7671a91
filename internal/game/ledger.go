package game

import (
	"fmt"
	"math"
)

// Balance names one scalar ledger column on an account.
type Balance int

const (
	BalanceGold Balance = iota
	BalanceTrustPoints
	BalanceShields
)

func (b Balance) String() string {
	switch b {
	case BalanceGold:
		return "gold"
	case BalanceTrustPoints:
		return "trust_points"
	case BalanceShields:
		return "shields"
	default:
		return "unknown"
	}
}

func (b Balance) insufficient() error {
	switch b {
	case BalanceTrustPoints:
		return ErrInsufficientTrust
	case BalanceShields:
		return ErrInsufficientShield
	default:
		return ErrInsufficientFunds
	}
}

func (a *Account) balance(b Balance) *int64 {
	switch b {
	case BalanceTrustPoints:
		return &a.TrustPoints
	case BalanceShields:
		return &a.ShieldCount
	default:
		return &a.Gold
	}
}

func credit(a *Account, b Balance, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: credit amount must be >= 0", ErrInvalidInput)
	}
	v := a.balance(b)
	if *v > math.MaxInt64-amount {
		return fmt.Errorf("%w: %s overflow", ErrInvalidInput, b)
	}
	*v += amount
	return nil
}

func debit(a *Account, b Balance, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: debit amount must be >= 0", ErrInvalidInput)
	}
	v := a.balance(b)
	if *v < amount {
		return fmt.Errorf("%w: have %d, need %d", b.insufficient(), *v, amount)
	}
	*v -= amount
	return nil
}

// StockDelta is a signed change to the quantity columns of a stock row.
type StockDelta struct {
	Unsold int64
	Sold   int64
	Broken int64
}

func adjustSword(s *SwordStock, d StockDelta) error {
	unsold, sold, broken := s.Unsold+d.Unsold, s.Sold+d.Sold, s.Broken+d.Broken
	if unsold < 0 || sold < 0 || broken < 0 {
		return fmt.Errorf("%w: tier %d has %d unsold", ErrInsufficientStock, s.Tier, s.Unsold)
	}
	s.Unsold, s.Sold, s.Broken = unsold, sold, broken
	return nil
}

func adjustMaterial(m *MaterialStock, d StockDelta) error {
	if d.Broken != 0 {
		return fmt.Errorf("%w: materials cannot break", ErrInvalidInput)
	}
	unsold, sold := m.Unsold+d.Unsold, m.Sold+d.Sold
	if unsold < 0 || sold < 0 {
		return fmt.Errorf("%w: material %d has %d unsold", ErrInsufficientMat, m.MaterialID, m.Unsold)
	}
	m.Unsold, m.Sold = unsold, sold
	return nil
}

// mulPrice multiplies a unit price by a quantity, rejecting overflow.
func mulPrice(price, qty int64) (int64, error) {
	if price < 0 || qty <= 0 {
		return 0, fmt.Errorf("%w: quantity must be > 0", ErrInvalidInput)
	}
	if price != 0 && qty > math.MaxInt64/price {
		return 0, fmt.Errorf("%w: order too large", ErrInvalidInput)
	}
	return price * qty, nil
}
