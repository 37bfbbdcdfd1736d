package marketplace

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

const resourcePayout = "payout"

// Balance returns the engager's profile for the balance view.
func (s *Service) Balance(ctx context.Context, engagerID int64) (EngagerProfile, error) {
	var out EngagerProfile
	err := s.update(ctx, "balance", engagerID, gateTouch, func(tx *txn) error {
		p, err := tx.engager(engagerID)
		if err != nil {
			return err
		}
		out = *p.clone()
		return nil
	})
	return out, err
}

// BeginWithdrawal checks the threshold and marks the engager as about to send an account number.
func (s *Service) BeginWithdrawal(ctx context.Context, engagerID int64) (int64, error) {
	var earnings int64
	err := s.update(ctx, "begin_withdrawal", engagerID, gateAdmit, func(tx *txn) error {
		p, err := tx.engager(engagerID)
		if err != nil {
			return err
		}
		if err := s.withdrawable(tx.state, p); err != nil {
			return err
		}
		if !p.AwaitingPayout {
			p.AwaitingPayout = true
			tx.changed()
		}
		earnings = p.Earnings
		return nil
	})
	return earnings, err
}

// RequestWithdrawal escrows the whole current balance for administrator review.
// Earnings are left untouched until the payout is approved.
func (s *Service) RequestWithdrawal(ctx context.Context, engagerID int64, account string) (PendingPayout, error) {
	var out PendingPayout
	err := s.update(ctx, "request_withdrawal", engagerID, gateAdmit, func(tx *txn) error {
		p, err := tx.engager(engagerID)
		if err != nil {
			return err
		}
		if err := s.withdrawable(tx.state, p); err != nil {
			return err
		}

		account = strings.TrimSpace(account)
		if !ValidAccount(account, s.rules.AccountDigits) {
			return validationError(fmt.Sprintf("account number must be exactly %d digits", s.rules.AccountDigits))
		}

		payout := &PendingPayout{
			PayoutID:           s.payoutID(engagerID, tx.now),
			EngagerID:          engagerID,
			Amount:             p.Earnings,
			DestinationAccount: account,
			RequestedAt:        tx.now,
		}
		tx.state.PendingPayouts[payout.PayoutID] = payout
		p.AwaitingPayout = false
		tx.changed()

		tx.send(Message{
			To:   s.rules.AdminID,
			Text: fmt.Sprintf("Withdrawal %s\nEngager: %d\nAmount: %d\nAccount: %s", payout.PayoutID, engagerID, payout.Amount, account),
			Buttons: []Button{
				{Label: "Approve", Callback: "approve_payout_" + payout.PayoutID},
				{Label: "Reject", Callback: "reject_payout_" + payout.PayoutID},
			},
		})

		zap.L().Info("withdrawal requested",
			zap.Int64("engager_id", engagerID),
			zap.String("payout_id", payout.PayoutID),
			zap.Int64("amount", payout.Amount),
		)

		out = *payout
		return nil
	})
	return out, err
}

func (s *Service) withdrawable(st *State, p *EngagerProfile) error {
	if _, pending := st.pendingPayoutFor(p.EngagerID); pending {
		return payoutPending()
	}
	if p.Earnings < s.rules.WithdrawalMin {
		return insufficientEarnings(s.rules.WithdrawalMin)
	}
	return nil
}

// ValidAccount reports whether account is exactly digits ASCII digits.
func ValidAccount(account string, digits int) bool {
	if len(account) != digits {
		return false
	}
	for _, r := range account {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// ApprovePayout debits the escrowed amount. A payout that was already resolved yields ErrAlreadyResolved.
func (s *Service) ApprovePayout(ctx context.Context, payoutID string, adminID int64) (PendingPayout, error) {
	var out PendingPayout
	err := s.update(ctx, "approve_payout", adminID, gateNone, func(tx *txn) error {
		if err := s.authorize(ctx, adminID, resourcePayout, "approve"); err != nil {
			return err
		}

		payout, ok := tx.state.PendingPayouts[payoutID]
		if !ok {
			return alreadyResolved()
		}

		p, ok := tx.state.Engager(payout.EngagerID)
		if !ok {
			return invalidState(fmt.Sprintf("engager %d of payout %s is gone", payout.EngagerID, payoutID))
		}
		if p.Earnings < payout.Amount {
			return invalidState(fmt.Sprintf("payout %s exceeds the engager balance", payoutID))
		}

		p.Earnings -= payout.Amount
		p.TotalPaidOut += payout.Amount
		delete(tx.state.PendingPayouts, payoutID)
		tx.changed()

		tx.send(
			Message{To: payout.EngagerID, Text: fmt.Sprintf("Your withdrawal of %d has been approved and sent to %s.", payout.Amount, payout.DestinationAccount)},
			Message{To: s.rules.AdminID, Text: fmt.Sprintf("Payout %s approved.", payoutID)},
		)
		tx.onCommit(payoutsTotal.WithLabelValues("approved").Inc)

		zap.L().Info("payout approved",
			zap.String("payout_id", payoutID),
			zap.Int64("engager_id", payout.EngagerID),
			zap.Int64("amount", payout.Amount),
		)

		out = *payout
		return nil
	})
	return out, err
}

// RejectPayout drops the request without touching earnings. The engager may request again right away.
func (s *Service) RejectPayout(ctx context.Context, payoutID string, adminID int64) error {
	return s.update(ctx, "reject_payout", adminID, gateNone, func(tx *txn) error {
		if err := s.authorize(ctx, adminID, resourcePayout, "reject"); err != nil {
			return err
		}

		payout, ok := tx.state.PendingPayouts[payoutID]
		if !ok {
			return alreadyResolved()
		}

		delete(tx.state.PendingPayouts, payoutID)
		if p, ok := tx.state.Engager(payout.EngagerID); ok {
			p.AwaitingPayout = false
		}
		tx.changed()

		tx.send(
			Message{To: payout.EngagerID, Text: fmt.Sprintf("Your withdrawal of %d was rejected. Your balance is unchanged.", payout.Amount)},
			Message{To: s.rules.AdminID, Text: fmt.Sprintf("Payout %s rejected.", payoutID)},
		)
		tx.onCommit(payoutsTotal.WithLabelValues("rejected").Inc)

		zap.L().Info("payout rejected",
			zap.String("payout_id", payoutID),
			zap.Int64("engager_id", payout.EngagerID),
		)
		return nil
	})
}
