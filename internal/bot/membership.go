package bot

import (
	"context"

	"github.com/m3rciful/cpabot/internal/access"

	tele "gopkg.in/telebot.v4"
)

// chatRef addresses a chat by "@username" or numeric id string.
type chatRef string

func (r chatRef) Recipient() string { return string(r) }

type userRef int64

func (r userRef) Recipient() string { return (&tele.User{ID: int64(r)}).Recipient() }

// ChatMemberAPI is the part of *tele.Bot the membership lookup needs.
type ChatMemberAPI interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

type membershipLookup struct {
	api ChatMemberAPI
}

// NewMembershipLookup adapts the Telegram getChatMember call to access.MembershipLookup.
func NewMembershipLookup(api ChatMemberAPI) access.MembershipLookup {
	return membershipLookup{api: api}
}

func (m membershipLookup) MembershipStatus(ctx context.Context, community string, userID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	member, err := m.api.ChatMemberOf(chatRef(community), userRef(userID))
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", nil
	}
	return string(member.Role), nil
}
