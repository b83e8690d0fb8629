// Package cart implements the cart state transitions.
package cart

import (
	"math"
	"sync"

	"github.com/utafrali/tgshop/internal/domain"
)

// Apply returns the state that results from applying action to state. It is
// pure: state is never modified and the result shares no memory with it.
// Totals, item count and shipping cost are always recomputed from the lines
// and the selected shipping option. An action whose totals would overflow
// Money is ignored.
func Apply(state domain.CartState, action Action) domain.CartState {
	if action != nil {
		next := state.Clone()
		action.apply(&next)
		if recompute(&next) {
			return next
		}
	}
	next := state.Clone()
	if !recompute(&next) {
		return domain.NewCartState()
	}
	return next
}

// ApplyAll folds actions over state in order.
func ApplyAll(state domain.CartState, actions ...Action) domain.CartState {
	for _, a := range actions {
		state = Apply(state, a)
	}
	if len(actions) == 0 {
		state = Apply(state, nil)
	}
	return state
}

// recompute derives the totals from the lines. It reports false when they
// do not fit, leaving s partially updated.
func recompute(s *domain.CartState) bool {
	if s.Items == nil {
		s.Items = []domain.CartLineItem{}
	}
	var total domain.Money
	count := 0
	for _, item := range s.Items {
		if item.Quantity < 0 {
			return false
		}
		line, ok := item.UnitPrice.MulQuantity(item.Quantity)
		if !ok {
			return false
		}
		if total, ok = total.Add(line); !ok {
			return false
		}
		if count > math.MaxInt-item.Quantity {
			return false
		}
		count += item.Quantity
	}
	s.Total = total
	s.ItemCount = count

	if s.Shipping != nil {
		s.ShippingCost = s.Shipping.Cost
	} else {
		s.ShippingCost = 0
	}
	return true
}

// Store owns one cart and serializes transitions on it.
type Store struct {
	mu    sync.Mutex
	state domain.CartState
}

// NewStore creates a store holding initial.
func NewStore(initial domain.CartState) *Store {
	return &Store{state: Apply(initial, nil)}
}

// State returns a copy of the current state.
func (s *Store) State() domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch applies actions in order and returns the resulting state.
func (s *Store) Dispatch(actions ...Action) domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ApplyAll(s.state, actions...)
	return s.state.Clone()
}
