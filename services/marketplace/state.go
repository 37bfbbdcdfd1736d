package marketplace

import (
	"encoding/json"
	"fmt"
)

const stateVersion = 1

// State is the whole shared universe: orders, drafts, engager profiles and both approval queues.
// It is only touched under Service.mu.
type State struct {
	Version         int                        `json:"version"`
	Orders          []*Order                   `json:"orders"`
	Sessions        map[int64]*ClientSession   `json:"sessions"`
	Engagers        map[int64]*EngagerProfile  `json:"engagers"`
	PendingPayments map[string]*PendingPayment `json:"pending_payments"`
	PendingPayouts  map[string]*PendingPayout  `json:"pending_payouts"`
}

func NewState() *State {
	s := &State{Version: stateVersion}
	s.normalize()
	return s
}

// DecodeState parses a snapshot and fills in every collection a partial snapshot may lack.
func DecodeState(raw []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version > stateVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", s.Version, stateVersion)
	}
	s.Version = stateVersion
	s.normalize()
	return &s, nil
}

func (s *State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

func (s *State) normalize() {
	if s.Sessions == nil {
		s.Sessions = make(map[int64]*ClientSession)
	}
	if s.Engagers == nil {
		s.Engagers = make(map[int64]*EngagerProfile)
	}
	if s.PendingPayments == nil {
		s.PendingPayments = make(map[string]*PendingPayment)
	}
	if s.PendingPayouts == nil {
		s.PendingPayouts = make(map[string]*PendingPayout)
	}
	for _, p := range s.Engagers {
		if p.TasksPerOrder == nil {
			p.TasksPerOrder = make(map[string]int)
		}
	}
	kept := s.Orders[:0]
	for _, o := range s.Orders {
		if o != nil && o.Active() {
			kept = append(kept, o)
		}
	}
	s.Orders = kept
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := &State{
		Version:         s.Version,
		Orders:          make([]*Order, 0, len(s.Orders)),
		Sessions:        make(map[int64]*ClientSession, len(s.Sessions)),
		Engagers:        make(map[int64]*EngagerProfile, len(s.Engagers)),
		PendingPayments: make(map[string]*PendingPayment, len(s.PendingPayments)),
		PendingPayouts:  make(map[string]*PendingPayout, len(s.PendingPayouts)),
	}
	for _, o := range s.Orders {
		c := *o
		out.Orders = append(out.Orders, &c)
	}
	for id, sess := range s.Sessions {
		out.Sessions[id] = sess.clone()
	}
	for id, p := range s.Engagers {
		out.Engagers[id] = p.clone()
	}
	for id, p := range s.PendingPayments {
		c := *p
		out.PendingPayments[id] = &c
	}
	for id, p := range s.PendingPayouts {
		c := *p
		out.PendingPayouts[id] = &c
	}
	return out
}

func (c *ClientSession) clone() *ClientSession {
	out := *c
	if c.OrderDetails != nil {
		d := *c.OrderDetails
		out.OrderDetails = &d
	}
	return &out
}

func (p *EngagerProfile) clone() *EngagerProfile {
	out := *p
	out.TaskTimers = append([]Claim(nil), p.TaskTimers...)
	out.TasksPerOrder = make(map[string]int, len(p.TasksPerOrder))
	for k, v := range p.TasksPerOrder {
		out.TasksPerOrder[k] = v
	}
	return &out
}

// Order returns the active order with the given id.
func (s *State) Order(orderID string) (*Order, bool) {
	for _, o := range s.Orders {
		if o.OrderID == orderID {
			return o, true
		}
	}
	return nil, false
}

func (s *State) removeOrder(orderID string) {
	for i, o := range s.Orders {
		if o.OrderID == orderID {
			s.Orders = append(s.Orders[:i], s.Orders[i+1:]...)
			return
		}
	}
}

func (s *State) Engager(id int64) (*EngagerProfile, bool) {
	p, ok := s.Engagers[id]
	return p, ok
}

func (s *State) Session(clientID int64) (*ClientSession, bool) {
	sess, ok := s.Sessions[clientID]
	return sess, ok
}

// pendingPayoutFor returns the outstanding payout of an engager, if any.
func (s *State) pendingPayoutFor(engagerID int64) (*PendingPayout, bool) {
	for _, p := range s.PendingPayouts {
		if p.EngagerID == engagerID {
			return p, true
		}
	}
	return nil, false
}
