package marketplace

import (
	"context"

	"go.uber.org/zap"
)

// StartClient opens the client menu. It creates the draft session on first contact.
func (s *Service) StartClient(ctx context.Context, clientID int64) (ClientSession, error) {
	var out ClientSession
	err := s.update(ctx, "start_client", clientID, gateTouch, func(tx *txn) error {
		out = *tx.session(clientID)
		return nil
	})
	return out, err
}

// StartEngager opens the engager menu. The returned bool is false until the engager joins.
func (s *Service) StartEngager(ctx context.Context, engagerID int64) (EngagerProfile, bool, error) {
	var (
		out    EngagerProfile
		joined bool
	)
	err := s.update(ctx, "start_engager", engagerID, gateTouch, func(tx *txn) error {
		if p, ok := tx.state.Engager(engagerID); ok && p.Joined {
			out, joined = *p.clone(), true
		}
		return nil
	})
	return out, joined, err
}

// Join creates the engager profile. Joining twice is a no-op.
func (s *Service) Join(ctx context.Context, engagerID int64) (EngagerProfile, error) {
	var out EngagerProfile
	err := s.update(ctx, "join", engagerID, gateTouch, func(tx *txn) error {
		p, ok := tx.state.Engager(engagerID)
		if !ok {
			p = &EngagerProfile{
				EngagerID:      engagerID,
				DailyResetTime: tx.now,
				TasksPerOrder:  make(map[string]int),
			}
			tx.state.Engagers[engagerID] = p
		}
		if !p.Joined {
			p.Joined = true
			tx.changed()
			zap.L().Info("engager joined", zap.Int64("engager_id", engagerID))
		}
		out = *p.clone()
		return nil
	})
	return out, err
}
