package content

import "strings"

// DefaultProxyTitle is the sentinel title of the section that replaced the legacy proxy text.
// Stores written by the previous version use this exact value, so it doubles as a lookup key.
const DefaultProxyTitle = "لطلب بروكسي"

// ProxyPlaceholder is returned by ProxyText when no proxy section exists.
const ProxyPlaceholder = "⚠️ No custom proxy request text has been set yet."

// Section is a titled block of educational content shown in the main menu.
type Section struct {
	ID      string `db:"id" json:"id"`
	Title   string `db:"title" json:"title"`
	Content string `db:"content" json:"content"`
}

// Quiz is a read-only content entry carried over from legacy stores.
type Quiz struct {
	ID      string `db:"id" json:"id"`
	Title   string `db:"title" json:"title"`
	Content string `db:"content" json:"content"`
}

// Direction selects which neighbour a section is swapped with by MoveSection.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection maps "up"/"down" (case-insensitive) to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionUp:
		return DirectionUp, true
	case DirectionDown:
		return DirectionDown, true
	}
	return "", false
}

// LegacyDocument mirrors the db.json file maintained by the previous version of the bot.
type LegacyDocument struct {
	Sections  []Section `json:"sections"`
	ProxyText *string   `json:"proxyText,omitempty"`
	Quizzes   []Quiz    `json:"quizzes,omitempty"`
}

// ImportReport summarizes a legacy import.
type ImportReport struct {
	Sections        int
	SkippedSections int
	Quizzes         int
	LegacyProxy     bool
}
