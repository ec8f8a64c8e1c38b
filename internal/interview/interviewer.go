// Package interview orchestrates one survey conversation: it feeds turns
// through the language model, commits whatever the model extracted, and
// turns validation diagnostics back into clarifying questions.
package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/hearth/internal/catalog"
	"github.com/MikeSquared-Agency/hearth/internal/conversation"
	"github.com/MikeSquared-Agency/hearth/internal/engine"
	"github.com/MikeSquared-Agency/hearth/internal/events"
	"github.com/MikeSquared-Agency/hearth/internal/nlu"
	"github.com/MikeSquared-Agency/hearth/internal/report"
	"github.com/MikeSquared-Agency/hearth/internal/schedule"
	"github.com/MikeSquared-Agency/hearth/internal/session"
	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

const (
	defaultHistoryLimit = 30
	replyMaxTokens      = 1024

	greeting = "Hi! I'd like to learn about the appliances in your home and when you use them. " +
		"Shall we start with the ones you use most — maybe in the kitchen?"

	closing = "Thanks, that's everything I needed. Your appliance survey is complete!"
)

// Generator produces the agent's next reply. *nlu.Client satisfies it;
// tests substitute a canned implementation.
type Generator interface {
	Complete(ctx context.Context, system string, messages []nlu.Message, maxTokens int) (string, error)
}

// Store is the extra persistence surface the orchestrator needs beyond
// what the tracker and log already wrap.
type Store interface {
	GetUser(ctx context.Context, userID string) (survey.User, error)
	ListAppliances(ctx context.Context, sessionID string) ([]survey.Appliance, error)
}

// TurnResult is what one user turn produced.
type TurnResult struct {
	Reply       string
	Committed   []survey.Appliance
	Diagnostics []string // clarification prompts for rejected candidates
	Done        bool     // session reached a terminal state this turn
}

type Interviewer struct {
	store        Store
	log          *conversation.Log
	tracker      *session.Tracker
	engine       *engine.Engine
	gen          Generator
	pub          *events.Publisher // nil disables eventing
	defaults     []catalog.Default
	historyLimit int
	logger       *slog.Logger

	mu     sync.Mutex
	active map[string]*sync.Mutex
}

type Config struct {
	Store        Store
	Log          *conversation.Log
	Tracker      *session.Tracker
	Engine       *engine.Engine
	Generator    Generator
	Publisher    *events.Publisher
	Defaults     []catalog.Default
	HistoryLimit int
}

func New(cfg Config, logger *slog.Logger) *Interviewer {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Interviewer{
		store:        cfg.Store,
		log:          cfg.Log,
		tracker:      cfg.Tracker,
		engine:       cfg.Engine,
		gen:          cfg.Generator,
		pub:          cfg.Publisher,
		defaults:     cfg.Defaults,
		historyLimit: limit,
		logger:       logger,
	}
}

// Start opens a session for the user and writes the opening agent turn.
func (iv *Interviewer) Start(ctx context.Context, userID string) (survey.Session, string, error) {
	user, err := iv.store.GetUser(ctx, userID)
	if err != nil {
		return survey.Session{}, "", fmt.Errorf("get user: %w", err)
	}

	sess, err := iv.tracker.Start(ctx, user)
	if err != nil {
		return survey.Session{}, "", err
	}

	if _, err := iv.log.Append(ctx, sess, user.ID, survey.RoleAgent, greeting, nil); err != nil {
		// Don't leave a session with no opening turn behind.
		if aerr := iv.tracker.Abandon(ctx, sess.ID, "greeting failed"); aerr != nil {
			iv.logger.Warn("abandon after greeting failure", "session_id", sess.ID, "error", aerr)
		}
		return survey.Session{}, "", fmt.Errorf("append greeting: %w", err)
	}
	return sess, greeting, nil
}

// HandleTurn processes one user message end to end. Turns on the same
// session are serialized; different sessions proceed in parallel.
func (iv *Interviewer) HandleTurn(ctx context.Context, sessionID, userID, text string) (*TurnResult, error) {
	lock := iv.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := iv.tracker.Guard(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := iv.log.Append(ctx, sess, userID, survey.RoleUser, text, nil); err != nil {
		return nil, err
	}

	if isExitPhrase(text) {
		return iv.finish(ctx, sess)
	}

	reply, extraction, err := iv.generate(ctx, sess)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{Reply: stripBlocks(reply)}
	for _, cand := range extraction.Candidates {
		res, err := iv.engine.Commit(ctx, sess, cand)
		if err != nil {
			diag, ok := survey.AsDiagnostic(err)
			if !ok {
				return nil, err
			}
			iv.logger.Info("candidate rejected",
				"session_id", sess.ID, "name", cand.Name, "code", string(diag.Code))
			result.Diagnostics = append(result.Diagnostics, diag.Prompt())
			continue
		}
		result.Committed = append(result.Committed, res.Appliance)
		if res.Created {
			kwh := report.TotalDailyKWh([]survey.Appliance{res.Appliance})
			iv.pub.ApplianceCommitted(res.Appliance, kwh, res.Superseded)
		}
	}
	for _, problem := range extraction.Problems {
		iv.logger.Warn("unparseable extraction block", "session_id", sess.ID, "error", problem)
	}

	extracted := rawPayload(extraction)
	if _, err := iv.log.Append(ctx, sess, userID, survey.RoleAgent, reply, extracted); err != nil {
		return nil, err
	}

	// Rejections become part of the reply so the user can correct them
	// in the next turn.
	if len(result.Diagnostics) > 0 {
		result.Reply = strings.TrimSpace(result.Reply + "\n\n" + strings.Join(result.Diagnostics, " "))
	}
	return result, nil
}

// Abandon ends the session without completing the survey.
func (iv *Interviewer) Abandon(ctx context.Context, sessionID, reason string) error {
	lock := iv.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := iv.tracker.Guard(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := iv.tracker.Abandon(ctx, sessionID, reason); err != nil {
		return err
	}

	rows, _ := iv.store.ListAppliances(ctx, sessionID)
	iv.pub.SessionEnded(sess, survey.StatusAbandoned, len(survey.LatestPerSlot(rows)))
	return nil
}

// Export builds the survey's demand-model input document.
func (iv *Interviewer) Export(ctx context.Context, sessionID string) (report.Export, error) {
	sess, err := iv.tracker.Resume(ctx, sessionID)
	if err != nil {
		return report.Export{}, err
	}
	rows, err := iv.store.ListAppliances(ctx, sessionID)
	if err != nil {
		return report.Export{}, fmt.Errorf("list appliances: %w", err)
	}
	return report.Build(sess, survey.LatestPerSlot(rows), time.Now()), nil
}

// Schedule analyses the daily usage picture committed so far.
func (iv *Interviewer) Schedule(ctx context.Context, sessionID string) (schedule.Analysis, error) {
	rows, err := iv.store.ListAppliances(ctx, sessionID)
	if err != nil {
		return schedule.Analysis{}, fmt.Errorf("list appliances: %w", err)
	}
	return schedule.Analyze(survey.LatestPerSlot(rows)), nil
}

func (iv *Interviewer) finish(ctx context.Context, sess survey.Session) (*TurnResult, error) {
	if err := iv.tracker.Complete(ctx, sess.ID); err != nil {
		return nil, err
	}
	// The log rejects terminal sessions, so the closing message is only
	// returned to the caller, never persisted as a turn.
	iv.logger.Info("survey finished", "session_id", sess.ID)

	rows, _ := iv.store.ListAppliances(ctx, sess.ID)
	iv.pub.SessionEnded(sess, survey.StatusCompleted, len(survey.LatestPerSlot(rows)))

	return &TurnResult{Reply: closing, Done: true}, nil
}

// generate builds the prompt from recorded state and asks the model for
// the next reply.
func (iv *Interviewer) generate(ctx context.Context, sess survey.Session) (string, nlu.Extraction, error) {
	rows, err := iv.store.ListAppliances(ctx, sess.ID)
	if err != nil {
		return "", nlu.Extraction{}, fmt.Errorf("list appliances: %w", err)
	}
	current := survey.LatestPerSlot(rows)

	analysis := schedule.Analyze(current)
	system := nlu.BuildSystemPrompt(schedule.Summary(current, analysis), iv.defaults, "")

	turns, err := iv.log.Recent(ctx, sess.ID, iv.historyLimit)
	if err != nil {
		return "", nlu.Extraction{}, err
	}

	reply, err := iv.gen.Complete(ctx, system, toMessages(turns), replyMaxTokens)
	if err != nil {
		return "", nlu.Extraction{}, fmt.Errorf("generate reply: %w", err)
	}
	return reply, nlu.Extract(reply), nil
}

// toMessages converts logged turns into the strictly alternating
// user/assistant sequence the model API requires. Past agent replies are
// summarized so old JSON blocks do not get re-extracted; consecutive
// same-role turns are merged.
func toMessages(turns []survey.Turn) []nlu.Message {
	var msgs []nlu.Message
	for _, t := range turns {
		var role, content string
		switch t.Role {
		case survey.RoleUser:
			role, content = "user", t.Text
		case survey.RoleAgent:
			role, content = "assistant", nlu.Summarize(t.Text)
		default:
			continue
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content += "\n" + content
			continue
		}
		msgs = append(msgs, nlu.Message{Role: role, Content: content})
	}
	// The API rejects a leading assistant message.
	if len(msgs) > 0 && msgs[0].Role == "assistant" {
		msgs = append([]nlu.Message{{Role: "user", Content: "Hello"}}, msgs...)
	}
	return msgs
}

func rawPayload(ex nlu.Extraction) json.RawMessage {
	if len(ex.Raw) == 0 {
		return nil
	}
	if len(ex.Raw) == 1 {
		return ex.Raw[0]
	}
	combined, err := json.Marshal(ex.Raw)
	if err != nil {
		return nil
	}
	return combined
}

// stripBlocks removes the machine-readable blocks from the reply shown to
// the user.
func stripBlocks(reply string) string {
	return strings.TrimSpace(nlu.Summarize(reply))
}

var exitPhrases = []string{
	"no more appliances",
	"that's all",
	"thats all",
	"that is all",
	"nothing else",
	"i'm done",
	"im done",
	"finished",
}

func isExitPhrase(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, p := range exitPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

func (iv *Interviewer) sessionLock(sessionID string) *sync.Mutex {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	if iv.active == nil {
		iv.active = make(map[string]*sync.Mutex)
	}
	lock, ok := iv.active[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		iv.active[sessionID] = lock
	}
	return lock
}
