package archiver

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sammyboi1801/SentinelAI/internal/llm"
)

const extractionPrompt = "Analyze the interaction. Extract PERMANENT facts about the user. " +
	"Return a JSON array of strings. If none, return []."

const archiveTimeout = 30 * time.Second

// FactWriter is the slice of the fact store the archiver needs.
type FactWriter interface {
	StoreFact(ctx context.Context, subject, predicate, object, contextTag string) (string, error)
}

// Archiver distills a finished conversation exchange into durable facts.
// Everything here is best-effort: model failures, malformed output and store
// failures are logged and swallowed, never surfaced to the caller.
type Archiver struct {
	gen       llm.Generator
	facts     FactWriter
	minLength int
	logger    *zap.Logger
}

// New creates an archiver. gen may be nil, in which case archiving is a
// no-op (no language model configured).
func New(gen llm.Generator, facts FactWriter, minLength int, logger *zap.Logger) *Archiver {
	return &Archiver{
		gen:       gen,
		facts:     facts,
		minLength: minLength,
		logger:    logger,
	}
}

// Archive extracts facts from one user/assistant exchange and stores them.
// Skips empty exchanges and exchanges where both sides are shorter than the
// minimum length (greetings, filler).
func (a *Archiver) Archive(ctx context.Context, userText, aiText string) {
	if a.gen == nil || a.facts == nil {
		return
	}
	if userText == "" || aiText == "" {
		return
	}
	if len(userText) < a.minLength && len(aiText) < a.minLength {
		return
	}

	exchange := "User: " + userText + "\nAI: " + aiText
	response, err := a.gen.Generate(ctx, extractionPrompt, []llm.Turn{
		{Role: "user", Content: exchange},
	})
	if err != nil {
		a.logger.Debug("archive extraction failed", zap.Error(err))
		return
	}

	facts := ExtractJSONArray(response)
	stored := 0
	for _, fact := range facts {
		if _, err := a.facts.StoreFact(ctx, "User", "context", fact, "conversation_archive"); err != nil {
			a.logger.Debug("archive store failed", zap.Error(err))
			continue
		}
		stored++
	}
	if stored > 0 {
		a.logger.Info("archived conversation facts", zap.Int("count", stored))
	}
}

// ArchiveAsync runs Archive on a background goroutine with its own timeout.
func (a *Archiver) ArchiveAsync(userText, aiText string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		a.Archive(ctx, userText, aiText)
	}()
}

// ExtractJSONArray scans free-form model output for a JSON array of strings.
// Best-effort by contract: the upstream text is not a structured protocol,
// so any parse failure yields nil. Non-string array elements are dropped.
func ExtractJSONArray(text string) []string {
	start := strings.Index(text, "[")
	if start < 0 {
		return nil
	}

	// Greedy first (first '[' to last ']'), then the shortest candidate.
	// Greedy handles arrays containing ']' inside strings; the short form
	// handles prose that mentions brackets after the array.
	if end := strings.LastIndex(text, "]"); end > start {
		if facts := parseStringArray(text[start : end+1]); facts != nil {
			return facts
		}
	}
	if end := strings.Index(text[start:], "]"); end > 0 {
		return parseStringArray(text[start : start+end+1])
	}
	return nil
}

func parseStringArray(candidate string) []string {
	var raw []interface{}
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil
	}

	facts := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			facts = append(facts, s)
		}
	}
	return facts
}
