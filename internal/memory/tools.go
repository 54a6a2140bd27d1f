package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sammyboi1801/SentinelAI/internal/archiver"
)

// Canonical strings the agent loop and its prompts rely on.
const (
	msgUnavailable = "Vector DB unavailable."
	msgNoMatch     = "No matching memory found."
	msgNoMemories  = "No long-term memories found."
	msgRefusal     = "Refusing to delete: a subject is required."
)

// Tools is the presentation layer over Store: every method resolves to a
// descriptive string or a silent no-op, so the surrounding agent loop can
// always proceed. The structured API underneath stays testable.
type Tools struct {
	store *Store
	arch  *archiver.Archiver
}

// NewTools wraps a store and an archiver into the tool surface. arch may be
// nil when no language model is configured.
func NewTools(store *Store, arch *archiver.Archiver) *Tools {
	return &Tools{store: store, arch: arch}
}

// StoreFact stores one fact and returns a confirmation containing the
// composed fact text.
func (t *Tools) StoreFact(ctx context.Context, subject, predicate, object, contextTag string) string {
	text, err := t.store.StoreFact(ctx, subject, predicate, object, contextTag)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return msgUnavailable
		}
		return fmt.Sprintf("Memory error: %v", err)
	}
	return "Memory stored: " + text
}

// DeleteFact deletes facts about a subject, optionally narrowed by
// predicate/object substrings, and reports the count.
func (t *Tools) DeleteFact(ctx context.Context, subject, predicate, object string) string {
	count, err := t.store.DeleteFacts(ctx, Filter{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
	})
	switch {
	case errors.Is(err, ErrInvalidFilter):
		return msgRefusal
	case errors.Is(err, ErrNotFound):
		return msgNoMatch
	case errors.Is(err, ErrUnavailable):
		return msgUnavailable
	case err != nil:
		return fmt.Sprintf("Delete error: %v", err)
	}
	return fmt.Sprintf("Deleted %d memory entries.", count)
}

// RetrieveRelevantContext returns the top relevant memories as a bulleted
// list. An empty or unavailable index yields an empty string (callers treat
// that as "no extra context"); candidates that all fall below the relevance
// threshold yield the explicit no-memories sentinel.
func (t *Tools) RetrieveRelevantContext(ctx context.Context, query string, limit int) string {
	winners, found, err := t.store.Retrieve(ctx, query, limit)
	if err != nil || !found {
		return ""
	}
	if len(winners) == 0 {
		return msgNoMemories
	}

	var b strings.Builder
	b.WriteString("Relevant Memories:")
	for _, w := range winners {
		b.WriteString("\n- ")
		b.WriteString(w.Text)
	}
	return b.String()
}

// LogActivity records an activity log entry. Never raises.
func (t *Tools) LogActivity(action, details string) {
	t.store.LogActivity(action, details)
}

// ReflectOnDay summarizes the activity log for a date ("today" or
// "2006-01-02").
func (t *Tools) ReflectOnDay(date string) string {
	entries, day, err := t.store.ReflectOnDay(date)
	if err != nil {
		return msgUnavailable
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No activity recorded for %s.", day)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Activity Log for %s:\n", day)
	for _, entry := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n",
			entry.Timestamp.Format("15:04:05"), entry.Action, entry.Details)
	}
	return b.String()
}

// ArchiveInteraction distills a finished exchange into durable facts in the
// background. Fire-and-forget; never raises.
func (t *Tools) ArchiveInteraction(userText, aiText string) {
	if t.arch == nil {
		return
	}
	t.arch.ArchiveAsync(userText, aiText)
}

// Teardown releases backend handles ahead of a destructive wipe.
func (t *Tools) Teardown() {
	t.store.Teardown()
}
