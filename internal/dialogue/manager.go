package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sean-bit813/medical-LLM-system/internal/knowledge"
	"github.com/sean-bit813/medical-LLM-system/internal/memory"
	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

// Config carries the per-conversation policy knobs.
type Config struct {
	PatientID          string
	Timeout            time.Duration // wall-clock limit for one conversation
	MaxTurns           int           // hard turn limit
	AssistedCompletion bool          // let the collaborator declare collection complete early
	KnowledgeK         int           // max knowledge documents per response
	KnowledgeThreshold float64       // minimum knowledge relevance score
}

// applyDefaults fills zero values with the standard limits.
func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Minute
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = 40
	}
	if c.KnowledgeK <= 0 {
		c.KnowledgeK = 3
	}
	if c.KnowledgeThreshold <= 0 {
		c.KnowledgeThreshold = 0.2
	}
}

// Manager drives one conversation through the dialogue state graph. It owns
// the conversation context exclusively and is not safe for concurrent use;
// callers serialize access per session.
type Manager struct {
	cfg      Config
	registry *Registry
	assist   *Assist
	gen      Generator
	nlu      Analyzer
	know     knowledge.Searcher
	mem      *memory.Manager

	conv            *Context
	flow            Flow
	symptomRecorded bool
	saved           bool
}

// ManagerOption configures optional Manager collaborators.
type ManagerOption func(*Manager)

// WithNLU attaches the intent/symptom analyzer.
func WithNLU(a Analyzer) ManagerOption {
	return func(m *Manager) { m.nlu = a }
}

// WithKnowledge attaches the knowledge-base searcher.
func WithKnowledge(s knowledge.Searcher) ManagerOption {
	return func(m *Manager) { m.know = s }
}

// WithMemory attaches the three-tier memory manager.
func WithMemory(mm *memory.Manager) ManagerOption {
	return func(m *Manager) { m.mem = mm }
}

// NewManager creates a dialogue manager over the given generator. Knowledge,
// memory, and NLU are optional; the engine degrades gracefully without them.
func NewManager(cfg Config, gen Generator, opts ...ManagerOption) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:    cfg,
		assist: NewAssist(gen),
		gen:    gen,
		conv:   NewContext(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.registry = NewRegistry(Deps{Assist: m.assist, NLU: m.nlu, Config: m.cfg})
	return m
}

// State returns the current dialogue state.
func (m *Manager) State() models.DialogueState { return m.conv.State }

// Fields returns a copy of the collected fields.
func (m *Manager) Fields() map[string]string { return m.conv.Fields() }

// TurnCount returns the number of processed turns.
func (m *Manager) TurnCount() int { return m.conv.TurnCount() }

// Reset discards the conversation and starts over from the initial state.
func (m *Manager) Reset() {
	m.conv = NewContext()
	m.flow = nil
	m.symptomRecorded = false
	m.saved = false
	slog.Info("Conversation reset", "patientID", m.cfg.PatientID)
}

// ProcessMessage runs one full turn of the conversation protocol and always
// returns a non-empty reply. It never returns an error and never panics;
// collaborator failures degrade to deterministic fallback text.
func (m *Manager) ProcessMessage(ctx context.Context, message string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Turn processing panicked, returning fallback reply", "panic", r, "state", m.conv.State)
			reply = CollectedFallback
		}
		if reply == "" {
			reply = CollectedFallback
		}
	}()

	if m.conv.IsTerminal() {
		return EndedMessage
	}
	if m.conv.TurnCount() >= m.cfg.MaxTurns {
		return m.endConversation(MaxTurnsMessage)
	}
	if m.conv.ElapsedSinceStart() > m.cfg.Timeout {
		return m.endConversation(TimeoutMessage)
	}

	// First contact: enter the collection stage and greet. The message
	// itself is not parsed; collection starts with the next turn.
	if m.conv.State == models.StateInitial {
		m.switchTo(models.StateCollectingInfo)
		m.conv.IncrementTurn()
		if m.mem != nil {
			m.mem.StartConsultation(m.cfg.PatientID)
			m.mem.AddDialogueTurn("user", message)
			m.mem.AddDialogueTurn("assistant", WelcomeMessage)
		}
		slog.Info("Conversation started", "patientID", m.cfg.PatientID)
		return WelcomeMessage
	}

	m.conv.IncrementTurn()
	if m.mem != nil {
		m.mem.AddDialogueTurn("user", message)
	}

	if m.flow.ProcessResponse(ctx, message, m.conv) == SignalEmergency {
		// Emergency bypasses the transition table entirely.
		slog.Warn("Emergency interrupt, jumping to referral", "patientID", m.cfg.PatientID, "from", m.conv.State)
		m.switchTo(models.StateReferral)
	}
	m.recordSymptom(ctx)

	reply = m.step(ctx, message)

	if m.mem != nil {
		m.mem.AddDialogueTurn("assistant", reply)
	}
	if m.conv.IsTerminal() {
		m.saveConsultation()
	}
	return reply
}

// step advances through the state graph until the turn produces text. The
// hop count is bounded by the graph size, so the loop always terminates.
func (m *Manager) step(ctx context.Context, message string) string {
	for hop := 0; hop <= len(models.AllStates); hop++ {
		if q, ok := m.flow.NextQuestion(ctx, m.conv); ok {
			return q
		}

		state := m.flow.State()
		if state.IsOutputState() {
			resp := m.generateResponse(ctx, state, message)
			m.switchTo(m.flow.NextState(ctx, m.conv))
			if m.conv.IsTerminal() {
				return resp + "\n\n" + ClosingMessage
			}
			return resp + ContinuationSuffix
		}

		next := m.flow.NextState(ctx, m.conv)
		if next == state {
			// Satisfied enough to stop asking but not to transition; should
			// not happen with the standard flows.
			return CollectedFallback
		}
		m.switchTo(next)
		if m.conv.IsTerminal() {
			return ClosingMessage
		}
	}
	slog.Error("State hop limit reached without producing a reply", "state", m.conv.State)
	return CollectedFallback
}

// switchTo moves the conversation to the given state and instantiates its
// flow. Terminal states keep no flow.
func (m *Manager) switchTo(state models.DialogueState) {
	m.conv.State = state
	m.conv.PendingField = ""
	if state.IsTerminal() {
		m.flow = nil
		return
	}
	flow, ok := m.registry.New(state)
	if !ok {
		slog.Error("No flow registered for state, ending conversation", "state", state)
		m.conv.State = models.StateEnded
		m.flow = nil
		return
	}
	m.flow = flow
	slog.Debug("State transition", "state", state)
}

// endConversation forces the terminal state and persists what was collected.
func (m *Manager) endConversation(message string) string {
	slog.Info("Conversation ended by limit", "patientID", m.cfg.PatientID, "turns", m.conv.TurnCount())
	m.conv.State = models.StateEnded
	m.flow = nil
	if m.mem != nil {
		m.mem.AddDialogueTurn("assistant", message)
	}
	m.saveConsultation()
	return message
}

// recordSymptom persists the chief complaint to mid-term memory once per
// conversation, after the main symptom has been collected.
func (m *Manager) recordSymptom(ctx context.Context) {
	if m.symptomRecorded || m.mem == nil {
		return
	}
	main := strings.TrimSpace(m.conv.Get("main"))
	if main == "" {
		return
	}
	m.symptomRecorded = true

	names := []string{main}
	if m.nlu != nil {
		if recognized := m.nlu.RecognizeSymptoms(ctx, main); len(recognized) > 0 {
			names = recognized
		}
	}
	severity, _ := strconv.Atoi(m.conv.Get("severity"))
	for _, name := range names {
		m.mem.AddSymptom(models.SymptomRecord{
			Name:     name,
			Severity: severity,
			Duration: m.conv.Get("duration"),
		})
	}
}

// saveConsultation persists the finished conversation exactly once.
func (m *Manager) saveConsultation() {
	if m.saved || m.mem == nil {
		return
	}
	m.saved = true
	if err := m.mem.SaveConsultation(m.conv.State, m.conv.Fields()); err != nil {
		slog.Error("Failed to save consultation", "error", err, "patientID", m.cfg.PatientID)
	}
}

// generateResponse produces the text for an output stage from collected
// fields, retrieved knowledge, and patient memory. Generation failures fall
// back to the stage's static response.
func (m *Manager) generateResponse(ctx context.Context, state models.DialogueState, message string) string {
	query := strings.TrimSpace(m.conv.Get("main") + " " + message)

	var knowledgeText string
	if m.know != nil {
		docs, err := m.know.Search(ctx, query, m.cfg.KnowledgeK, m.cfg.KnowledgeThreshold)
		if err != nil {
			slog.Warn("Knowledge search failed", "error", err, "state", state)
		}
		knowledgeText = formatKnowledge(docs)
	}

	var memoryText string
	if m.mem != nil {
		memoryText = formatMemory(m.mem.RetrieveRelevant(query, m.cfg.PatientID))
	}

	tmpl, ok := responseTemplates[state]
	if !ok {
		slog.Error("No response template for state", "state", state)
		return responseFallbacks[state]
	}
	prompt := fmt.Sprintf(tmpl, formatCollectedInfo(m.conv.Fields()), orNone(knowledgeText), orNone(memoryText))

	out, err := m.gen.Generate(ctx, responseSystemPrompt, prompt)
	if err != nil || strings.TrimSpace(out) == "" {
		slog.Warn("Response generation failed, using static fallback", "error", err, "state", state)
		return responseFallbacks[state]
	}
	return strings.TrimSpace(out)
}

// formatKnowledge renders retrieved documents as a bulleted list.
func formatKnowledge(docs []models.KnowledgeDoc) string {
	var lines []string
	for _, d := range docs {
		line := "- " + d.Text
		if d.Title != "" {
			line = "- " + d.Title + ": " + d.Text
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// formatMemory renders the mid- and long-term memory tiers for prompts.
// Short-term turns are omitted; the collected fields already cover them.
func formatMemory(snap memory.Snapshot) string {
	var lines []string
	for _, s := range snap.MidTerm {
		lines = append(lines, "- "+s)
	}
	for _, s := range snap.LongTerm {
		lines = append(lines, "- "+s)
	}
	return strings.Join(lines, "\n")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
