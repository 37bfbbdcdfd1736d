package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"engagement-controlplane/services/catalog"

	"go.uber.org/zap"
)

// RecentPostsToken, sent instead of URLs on a bundle, targets the three latest posts of the handle.
const RecentPostsToken = "recent"

// SelectPackage starts a new draft of orderType, discarding any unfinished one.
// A draft whose payment is under review is kept, as with Cancel.
func (s *Service) SelectPackage(ctx context.Context, clientID int64, orderType catalog.OrderType) (ClientSession, error) {
	var out ClientSession
	err := s.update(ctx, "select_package", clientID, gateTouch, func(tx *txn) error {
		if orderType.String() == "" {
			return validationError("unknown package type")
		}
		if sess, ok := tx.state.Session(clientID); ok && sess.paymentUnderReview(tx.state) {
			return paymentPending()
		}

		tx.state.Sessions[clientID] = &ClientSession{
			ClientID:  clientID,
			Step:      StepAwaitingOrderDetails,
			OrderType: orderType,
			UpdatedAt: tx.now,
		}
		tx.changed()

		out = *tx.state.Sessions[clientID]
		return nil
	})
	return out, err
}

// SubmitOrderDetails takes the "<handle> <platform> <package>" line. Invalid input leaves the step unchanged.
func (s *Service) SubmitOrderDetails(ctx context.Context, clientID int64, text string) (ClientSession, error) {
	var out ClientSession
	err := s.update(ctx, "submit_order_details", clientID, gateAdmit, func(tx *txn) error {
		sess := tx.session(clientID)
		if sess.Step != StepAwaitingOrderDetails {
			return invalidState("choose a package first")
		}

		fields := strings.Fields(text)
		if len(fields) != 3 {
			return validationError("send: <handle> <platform> <package>")
		}

		handle := fields[0]
		platform, err := catalog.ParsePlatform(fields[1])
		if err != nil {
			return validationError(fmt.Sprintf("unknown platform %q", fields[1]))
		}

		quote, err := s.catalog.Resolve(sess.OrderType, platform, fields[2])
		if err != nil {
			return catalogError(fmt.Sprintf("package %q is not offered for %s on %s", fields[2], sess.OrderType, platform), err)
		}

		order, err := NewOrder(OrderParams{
			OrderID:   nextOrderID(tx.state, clientID, tx.now.Unix()),
			ClientID:  clientID,
			Handle:    handle,
			Platform:  platform,
			OrderType: sess.OrderType,
			Package:   strings.ToLower(fields[2]),
			Quote:     quote,
			CreatedAt: tx.now,
		})
		if err != nil {
			return validationError(err.Error())
		}

		sess.Handle = handle
		sess.Platform = platform
		sess.Package = order.Package
		sess.OrderDetails = order
		sess.OrderID = order.OrderID
		sess.Amount = order.Price
		sess.PaymentID = ""
		sess.UpdatedAt = tx.now
		if sess.OrderType.NeedsURLs() {
			sess.Step = StepAwaitingURLs
		} else {
			sess.Step = StepAwaitingPayment
		}
		tx.changed()

		zap.L().Info("order drafted",
			zap.Int64("client_id", clientID),
			zap.String("order_id", order.OrderID),
			zap.String("platform", string(platform)),
			zap.Int64("price", order.Price),
		)

		out = *sess.clone()
		return nil
	})
	return out, err
}

// SubmitURLs attaches the post targets to the draft.
func (s *Service) SubmitURLs(ctx context.Context, clientID int64, text string) (ClientSession, error) {
	var out ClientSession
	err := s.update(ctx, "submit_urls", clientID, gateAdmit, func(tx *txn) error {
		sess := tx.session(clientID)
		if sess.Step != StepAwaitingURLs || sess.OrderDetails == nil {
			return invalidState("no order is waiting for links")
		}

		order := sess.OrderDetails
		fields := strings.Fields(text)

		switch sess.OrderType {
		case catalog.Bundle:
			switch {
			case len(fields) == 1 && strings.EqualFold(fields[0], RecentPostsToken):
				order.UseRecentPosts = true
				order.LikeURL, order.CommentURL = "", ""
			case len(fields) == 1:
				if err := ValidatePostURL(fields[0], order.Platform); err != nil {
					return err
				}
				order.LikeURL, order.CommentURL = fields[0], fields[0]
			case len(fields) == 2:
				for _, raw := range fields {
					if err := ValidatePostURL(raw, order.Platform); err != nil {
						return err
					}
				}
				order.LikeURL, order.CommentURL = fields[0], fields[1]
			default:
				return validationError(fmt.Sprintf("send %q, one link, or two links (likes then comments)", RecentPostsToken))
			}
		case catalog.Likes, catalog.Comments:
			if len(fields) != 1 {
				return validationError("send exactly one link")
			}
			if err := ValidatePostURL(fields[0], order.Platform); err != nil {
				return err
			}
			if sess.OrderType == catalog.Likes {
				order.LikeURL = fields[0]
			} else {
				order.CommentURL = fields[0]
			}
		default:
			return invalidState("this package does not take links")
		}

		sess.Step = StepAwaitingPayment
		sess.UpdatedAt = tx.now
		tx.changed()

		out = *sess.clone()
		return nil
	})
	return out, err
}

// ValidatePostURL requires an http(s) link that names the platform.
func ValidatePostURL(raw string, platform catalog.Platform) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validationError("links must start with http:// or https://")
	}
	if !strings.Contains(strings.ToLower(raw), string(platform)) {
		return validationError(fmt.Sprintf("link must be a %s link", platform))
	}
	return nil
}

// Cancel discards the draft. A draft whose payment is under review cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, clientID int64) error {
	return s.update(ctx, "cancel", clientID, gateTouch, func(tx *txn) error {
		sess, ok := tx.state.Session(clientID)
		if !ok || sess.Step.Terminal() || sess.Step == StepSelectingPackage {
			return nil
		}
		if sess.paymentUnderReview(tx.state) {
			return paymentPending()
		}

		tx.state.Sessions[clientID] = &ClientSession{
			ClientID:  clientID,
			Step:      StepCancelled,
			UpdatedAt: tx.now,
		}
		tx.changed()

		zap.L().Info("draft cancelled", zap.Int64("client_id", clientID), zap.String("order_id", sess.OrderID))
		return nil
	})
}

// Session returns a copy of the client's draft.
func (s *Service) Session(clientID int64) (ClientSession, bool) {
	var (
		out ClientSession
		ok  bool
	)
	s.view(func(st *State) {
		var sess *ClientSession
		if sess, ok = st.Session(clientID); ok {
			out = *sess.clone()
		}
	})
	return out, ok
}

// nextOrderID derives "<client>_<unix seconds>", stepping the timestamp past ids already in use.
func nextOrderID(st *State, clientID int64, ts int64) string {
	for {
		id := fmt.Sprintf("%d_%d", clientID, ts)
		if !orderIDTaken(st, id) {
			return id
		}
		ts++
	}
}

func orderIDTaken(st *State, id string) bool {
	if _, ok := st.Order(id); ok {
		return true
	}
	for _, p := range st.PendingPayments {
		if p.OrderID == id {
			return true
		}
	}
	return false
}
