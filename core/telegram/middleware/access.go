package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	// IsAdmin decides whether a user is an administrator. When nil, AdminIDs is consulted.
	IsAdmin  func(userID int64) bool
	AdminIDs []int64
	OnReject tele.HandlerFunc
}

func (o AdminOptions) check() func(int64) bool {
	if o.IsAdmin != nil {
		return o.IsAdmin
	}
	set := make(map[int64]struct{}, len(o.AdminIDs))
	for _, id := range o.AdminIDs {
		set[id] = struct{}{}
	}
	return func(id int64) bool {
		_, ok := set[id]
		return ok
	}
}

// AdminOnlyMiddleware ensures that only administrators can invoke downstream handlers.
// With no administrators configured every call is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	isAdmin := opts.check()
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || !isAdmin(sender.ID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
