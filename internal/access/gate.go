// Package access decides whether a user may use the bot.
package access

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/cpabot/core/logger"
)

// Membership statuses reported by Telegram's getChatMember.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusRestricted    = "restricted"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
)

// lookupTimeout bounds a shared membership lookup.
const lookupTimeout = 10 * time.Second

// MembershipLookup reports a user's status in a channel or group.
type MembershipLookup interface {
	MembershipStatus(ctx context.Context, community string, userID int64) (string, error)
}

// MembershipLookupFunc adapts a function to MembershipLookup.
type MembershipLookupFunc func(ctx context.Context, community string, userID int64) (string, error)

// MembershipStatus calls f.
func (f MembershipLookupFunc) MembershipStatus(ctx context.Context, community string, userID int64) (string, error) {
	return f(ctx, community, userID)
}

// Gate lets admins through unconditionally and, when a community is configured,
// requires everyone else to be a member of it. Lookup failures deny access.
type Gate struct {
	admins    map[int64]struct{}
	community string
	lookup    MembershipLookup
	group     singleflight.Group
}

// NewGate builds a gate. An empty community disables the membership requirement.
func NewGate(adminIDs []int64, community string, lookup MembershipLookup) *Gate {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Gate{admins: admins, community: community, lookup: lookup}
}

// IsAdmin reports whether userID is configured as an administrator.
func (g *Gate) IsAdmin(userID int64) bool {
	_, ok := g.admins[userID]
	return ok
}

// Community returns the required community or "".
func (g *Gate) Community() string {
	return g.community
}

// SetLookup replaces the membership lookup. It must be called before the gate serves traffic.
func (g *Gate) SetLookup(lookup MembershipLookup) {
	g.lookup = lookup
}

// Allowed reports whether userID may use the bot.
func (g *Gate) Allowed(ctx context.Context, userID int64) bool {
	if g.IsAdmin(userID) || g.community == "" {
		return true
	}
	if g.lookup == nil {
		logger.LogEvent(ctx, logger.SVCAccess, slog.LevelError, "membership.no_lookup",
			slog.Int64("user_id", userID),
		)
		return false
	}

	// Concurrent callers share one lookup, so it must not end with whichever
	// caller happened to start it.
	v, err, _ := g.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return g.lookup.MembershipStatus(lookupCtx, g.community, userID)
	})
	if err != nil {
		logger.LogEvent(ctx, logger.SVCAccess, slog.LevelWarn, "membership.lookup_failed",
			slog.Int64("user_id", userID),
			slog.String("community", g.community),
			slog.String("err", err.Error()),
		)
		return false
	}

	status, _ := v.(string)
	allowed := IsMemberStatus(status)
	logger.LogEvent(ctx, logger.SVCAccess, slog.LevelDebug, "membership.checked",
		slog.Int64("user_id", userID),
		slog.String("member_status", status),
		slog.Bool("allowed", allowed),
	)
	return allowed
}

// IsMemberStatus reports whether status counts as belonging to the community.
func IsMemberStatus(status string) bool {
	switch status {
	case StatusCreator, StatusAdministrator, StatusMember, StatusRestricted:
		return true
	}
	return false
}
