package marketplace

import (
	"sort"
)

// PendingSummary lists both approval queues, oldest first.
func (s *Service) PendingSummary() Summary {
	var out Summary
	s.view(func(st *State) {
		for _, p := range st.PendingPayments {
			out.Payments = append(out.Payments, *p)
		}
		for _, p := range st.PendingPayouts {
			out.Payouts = append(out.Payouts, *p)
		}
	})

	sort.Slice(out.Payments, func(i, j int) bool {
		if out.Payments[i].SubmittedAt.Equal(out.Payments[j].SubmittedAt) {
			return out.Payments[i].PaymentID < out.Payments[j].PaymentID
		}
		return out.Payments[i].SubmittedAt.Before(out.Payments[j].SubmittedAt)
	})
	sort.Slice(out.Payouts, func(i, j int) bool {
		if out.Payouts[i].RequestedAt.Equal(out.Payouts[j].RequestedAt) {
			return out.Payouts[i].PayoutID < out.Payouts[j].PayoutID
		}
		return out.Payouts[i].RequestedAt.Before(out.Payouts[j].RequestedAt)
	})
	return out
}

// Snapshot returns a deep copy of the live state.
func (s *Service) Snapshot() *State {
	var out *State
	s.view(func(st *State) { out = st.Clone() })
	return out
}

// Orders returns copies of the live orders.
func (s *Service) Orders() []Order {
	var out []Order
	s.view(func(st *State) {
		for _, o := range st.Orders {
			out = append(out, *o)
		}
	})
	return out
}

// Profile returns a copy of the engager's profile without touching the cooldown.
func (s *Service) Profile(engagerID int64) (EngagerProfile, bool) {
	var (
		out EngagerProfile
		ok  bool
	)
	s.view(func(st *State) {
		var p *EngagerProfile
		if p, ok = st.Engager(engagerID); ok {
			out = *p.clone()
		}
	})
	return out, ok
}

// Authorized reports whether actor may perform an administrator action.
func (s *Service) Authorized(actor int64, resource, action string) bool {
	return s.authorizer.Authorize(actor, resource, action)
}
