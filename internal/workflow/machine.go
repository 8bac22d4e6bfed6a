// Package workflow drives the multi-step admin input dialogs: adding a section,
// editing a section's content and replacing the proxy text.
package workflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/cpabot/core/logger"
	"github.com/m3rciful/cpabot/core/telegram/state"
)

// Workflow steps. Idle users have no entry at all.
const (
	AwaitingTitle       state.State = "awaiting_title"
	AwaitingContent     state.State = "awaiting_content"
	AwaitingEditContent state.State = "awaiting_edit_content"
	AwaitingProxyText   state.State = "awaiting_proxy_text"
)

const (
	keyTitle     = "temp_title"
	keySectionID = "section_id"
)

// Outcome describes what a text message did to the workflow.
type Outcome int

const (
	// Ignored means the user had no pending step or sent nothing usable.
	Ignored Outcome = iota
	// TitleStored means the title was kept and content is expected next.
	TitleStored
	// SectionAdded means a new section was committed.
	SectionAdded
	// SectionUpdated means the target section's content was replaced.
	SectionUpdated
	// SectionMissing means the edit target no longer exists; the dialog was closed.
	SectionMissing
	// ProxyUpdated means the proxy text was replaced.
	ProxyUpdated
)

func (o Outcome) String() string {
	switch o {
	case TitleStored:
		return "title_stored"
	case SectionAdded:
		return "section_added"
	case SectionUpdated:
		return "section_updated"
	case SectionMissing:
		return "section_missing"
	case ProxyUpdated:
		return "proxy_updated"
	default:
		return "ignored"
	}
}

// ContentWriter is the subset of the content store the workflow commits to.
type ContentWriter interface {
	AddSection(ctx context.Context, title, content string) (string, error)
	UpdateSection(ctx context.Context, id, content string) (bool, error)
	SetProxyText(ctx context.Context, text string) error
}

// Entry is a user's pending dialog.
type Entry struct {
	Action    state.State
	TempTitle string
	SectionID string
}

// Machine tracks one pending dialog per user. Calls for the same user are
// serialized; different users never wait on each other.
type Machine struct {
	sessions state.Manager
	writer   ContentWriter
	locks    keyedMutex
}

// NewMachine builds a Machine. A nil sessions manager selects the in-memory one.
func NewMachine(sessions state.Manager, writer ContentWriter) *Machine {
	if sessions == nil {
		sessions = state.NewMemoryManager()
	}
	return &Machine{sessions: sessions, writer: writer}
}

func (m *Machine) begin(ctx context.Context, userID int64, action state.State, sectionID string) {
	unlock := m.locks.lock(userID)
	defer unlock()

	m.sessions.Clear(userID)
	m.sessions.SetState(userID, action)
	if sectionID != "" {
		m.sessions.SetTemp(userID, keySectionID, sectionID)
	}
	logger.LogEvent(ctx, logger.SVCWorkflow, slog.LevelDebug, "workflow.started",
		slog.Int64("user_id", userID),
		slog.String("action", string(action)),
	)
}

// StartAdd opens the add-section dialog, discarding any pending one.
func (m *Machine) StartAdd(ctx context.Context, userID int64) {
	m.begin(ctx, userID, AwaitingTitle, "")
}

// StartEdit opens the edit-content dialog for sectionID, discarding any pending one.
func (m *Machine) StartEdit(ctx context.Context, userID int64, sectionID string) {
	m.begin(ctx, userID, AwaitingEditContent, sectionID)
}

// StartProxyEdit opens the proxy-text dialog, discarding any pending one.
func (m *Machine) StartProxyEdit(ctx context.Context, userID int64) {
	m.begin(ctx, userID, AwaitingProxyText, "")
}

// Cancel drops the user's pending dialog and reports whether there was one.
func (m *Machine) Cancel(ctx context.Context, userID int64) bool {
	unlock := m.locks.lock(userID)
	defer unlock()

	active := m.sessions.InProgress(userID)
	m.sessions.Clear(userID)
	if active {
		logger.LogEvent(ctx, logger.SVCWorkflow, slog.LevelDebug, "workflow.cancelled",
			slog.Int64("user_id", userID),
		)
	}
	return active
}

// Active reports whether the user has a pending dialog.
func (m *Machine) Active(userID int64) bool {
	return m.sessions.InProgress(userID)
}

// Current returns the user's pending dialog.
func (m *Machine) Current(userID int64) (Entry, bool) {
	st := m.sessions.GetState(userID)
	if st == state.StateIdle {
		return Entry{}, false
	}
	title, _ := m.sessions.Temp(userID, keyTitle)
	id, _ := m.sessions.Temp(userID, keySectionID)
	return Entry{Action: st, TempTitle: title, SectionID: id}, true
}

// Handle feeds a text message into the user's pending dialog. Blank text is ignored.
// When a commit fails the dialog stays open and the error is returned, so the
// admin can resend the same input.
func (m *Machine) Handle(ctx context.Context, userID int64, text string) (Outcome, error) {
	unlock := m.locks.lock(userID)
	defer unlock()

	current := m.sessions.GetState(userID)
	if current == state.StateIdle || strings.TrimSpace(text) == "" {
		return Ignored, nil
	}

	var (
		outcome Outcome
		err     error
	)
	switch current {
	case AwaitingTitle:
		m.sessions.SetTemp(userID, keyTitle, text)
		m.sessions.SetState(userID, AwaitingContent)
		outcome = TitleStored
	case AwaitingContent:
		title, _ := m.sessions.Temp(userID, keyTitle)
		if _, err = m.writer.AddSection(ctx, title, text); err == nil {
			m.sessions.Clear(userID)
			outcome = SectionAdded
		}
	case AwaitingEditContent:
		id, _ := m.sessions.Temp(userID, keySectionID)
		var ok bool
		if ok, err = m.writer.UpdateSection(ctx, id, text); err == nil {
			m.sessions.Clear(userID)
			outcome = SectionMissing
			if ok {
				outcome = SectionUpdated
			}
		}
	case AwaitingProxyText:
		if err = m.writer.SetProxyText(ctx, text); err == nil {
			m.sessions.Clear(userID)
			outcome = ProxyUpdated
		}
	default:
		m.sessions.Clear(userID)
		outcome = Ignored
	}

	if err != nil {
		logger.LogEvent(ctx, logger.SVCWorkflow, slog.LevelError, "workflow.commit_failed",
			slog.Int64("user_id", userID),
			slog.String("action", string(current)),
			slog.String("err", err.Error()),
		)
		return Ignored, err
	}
	logger.LogEvent(ctx, logger.SVCWorkflow, slog.LevelDebug, "workflow.advanced",
		slog.Int64("user_id", userID),
		slog.String("action", string(current)),
		slog.String("outcome", outcome.String()),
	)
	return outcome, nil
}
