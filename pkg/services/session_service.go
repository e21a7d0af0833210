package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/models"

	"github.com/google/uuid"
)

var ConfirmOptions = []string{"Yes, build my artifacts", "Not now"}

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

// phase is the tagged state of a session. Only the diagnosed and emitted
// variants carry a scorecard.
type phase interface {
	name() models.SessionPhase
}

// asking means question n (1-based) is waiting for an answer.
type asking struct{ n int }

// diagnosed holds a scorecard that has not been revealed yet.
type diagnosed struct{ scorecard models.Scorecard }

// emitted is terminal: the scorecard was revealed and the build has run.
type emitted struct{ scorecard models.Scorecard }

func (a asking) name() models.SessionPhase {
	switch a.n {
	case 1:
		return models.SessionQ1Asked
	case 2:
		return models.SessionQ2Asked
	default:
		return models.SessionQ3Asked
	}
}
func (diagnosed) name() models.SessionPhase { return models.SessionDiagnosed }
func (emitted) name() models.SessionPhase   { return models.SessionArtifactsEmitted }

// turn serializes Submit calls for the whole turn, build included. mu
// guards the fields below and is released while artifacts are generated,
// so reads like State never wait on the generator.
type session struct {
	turn               sync.Mutex
	mu                 sync.Mutex
	threadID           string
	state              phase
	answers            models.Answers
	messages           []models.ChatMessage
	artifacts          []string
	companyContext     *models.CompanyContext
	productDescription string
	createdAt          time.Time
}

// SessionService drives each conversation through the diagnostic.
type SessionService struct {
	mu        sync.RWMutex
	sessions  map[string]*session
	provider  ContextProvider
	sequencer *ArtifactSequencer
	metrics   *Metrics
	log       *logger.Logger
	newID     func() string
}

func NewSessionService(provider ContextProvider, sequencer *ArtifactSequencer, metrics *Metrics, log *logger.Logger) *SessionService {
	return &SessionService{
		sessions:  make(map[string]*session),
		provider:  provider,
		sequencer: sequencer,
		metrics:   metrics,
		log:       log.With("service", "sessions"),
		newID:     uuid.NewString,
	}
}

// Start creates a session from exactly one of a product URL or description
// and asks the first question.
func (s *SessionService) Start(ctx context.Context, req models.StartRequest) (models.StartResponse, error) {
	productURL := strings.TrimSpace(req.ProductURL)
	description := strings.TrimSpace(req.ProductDescription)
	if (productURL == "") == (description == "") {
		return models.StartResponse{}, fmt.Errorf("%w: provide exactly one of product_url or product_description", ErrBadRequest)
	}

	var companyCtx *models.CompanyContext
	if productURL != "" {
		if s.provider != nil {
			fetched := s.provider.FetchContext(ctx, productURL)
			companyCtx = &fetched
		} else {
			companyCtx = &models.CompanyContext{Success: false, KeyFeatures: []string{}, SourceURL: productURL, Error: "context provider not configured"}
		}
	}

	first, err := GetQuestion(1)
	if err != nil {
		return models.StartResponse{}, err
	}
	messages := []models.ChatMessage{
		{Role: roleAssistant, Content: introMessage(companyCtx, productURL, description)},
		questionMessage(first),
	}

	sess := &session{
		threadID:           s.newID(),
		state:              asking{n: 1},
		answers:            models.Answers{},
		messages:           messages,
		artifacts:          []string{},
		companyContext:     companyCtx,
		productDescription: description,
		createdAt:          time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[sess.threadID] = sess
	s.mu.Unlock()

	s.metrics.SessionStarted()
	s.log.Info("session started", "thread_id", sess.threadID, "from_url", productURL != "")

	return models.StartResponse{
		ThreadID:       sess.threadID,
		Messages:       cloneMessages(messages),
		Question:       first,
		CompanyContext: cloneContext(companyCtx),
	}, nil
}

func introMessage(c *models.CompanyContext, productURL, description string) string {
	switch {
	case c.Usable():
		name := c.CompanyName
		if name == "" {
			name = "your company"
		}
		var sb strings.Builder
		sb.WriteString("**Analyzing " + name + "**")
		if c.ProductDescription != "" {
			sb.WriteString("\nI see you're building: *" + firstRunes(c.ProductDescription, 200) + "*")
		}
		if len(c.KeyFeatures) > 0 {
			sb.WriteString("\n\nKey areas I identified: " + strings.Join(truncate(c.KeyFeatures, 3), ", "))
		}
		sb.WriteString("\n\nLet me assess where you are in your GTM journey so I can generate personalized artifacts for you.")
		return sb.String()
	case productURL != "":
		return fmt.Sprintf("I'll help you with GTM strategy for **%s**.\n\nLet me assess your current GTM readiness.", productURL)
	default:
		return fmt.Sprintf("Thanks for describing your product.\n\n*%s...*\n\nLet me assess your GTM readiness.", firstRunes(description, 150))
	}
}

func questionMessage(q models.DiagnosticQuestion) models.ChatMessage {
	return models.ChatMessage{
		Role:       roleAssistant,
		Content:    q.QuestionText,
		Options:    append([]string(nil), q.Options...),
		QuestionID: q.QuestionID,
	}
}

func (s *SessionService) get(threadID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, threadID)
	}
	return sess, nil
}

// Submit applies one user turn and streams the resulting events through
// emit, in order, ending with a done event. Errors are returned before
// anything is emitted.
func (s *SessionService) Submit(ctx context.Context, in models.MessageRequest, emit func(models.StreamEvent)) error {
	sess, err := s.get(in.ThreadID)
	if err != nil {
		return err
	}

	sess.turn.Lock()
	defer sess.turn.Unlock()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	text := strings.TrimSpace(in.Text())
	switch in.Decision {
	case models.DecisionNone, models.DecisionConfirm, models.DecisionDecline:
	default:
		return fmt.Errorf("%w: unknown decision %q", ErrBadRequest, in.Decision)
	}

	switch st := sess.state.(type) {
	case asking:
		if text == "" {
			return fmt.Errorf("%w: an answer is required", ErrBadRequest)
		}
		s.recordUser(sess, text, emit)
		s.answer(sess, st, text, emit)
	case diagnosed:
		if text == "" && in.Decision == models.DecisionNone {
			return fmt.Errorf("%w: a confirmation choice is required", ErrBadRequest)
		}
		if text == "" {
			text = defaultDecisionText(in.Decision)
		}
		s.recordUser(sess, text, emit)
		if classifyDecision(in.Decision, text) == models.DecisionConfirm {
			s.build(ctx, sess, st, emit)
		}
	case emitted:
		if text == "" {
			text = defaultDecisionText(in.Decision)
		}
		s.recordUser(sess, text, emit)
		s.say(sess, "Your GTM artifacts are ready. Download them below!", nil, emit)
	}

	emit(models.StreamEvent{Event: models.EventDone})
	return nil
}

func (s *SessionService) recordUser(sess *session, text string, emit func(models.StreamEvent)) {
	sess.messages = append(sess.messages, models.ChatMessage{Role: roleUser, Content: text})
	emit(models.StreamEvent{Event: models.EventUserMessage, Content: text})
}

func (s *SessionService) say(sess *session, content string, options []string, emit func(models.StreamEvent)) {
	sess.messages = append(sess.messages, models.ChatMessage{Role: roleAssistant, Content: content, Options: options})
	emit(models.StreamEvent{Event: models.EventMessage, Content: content})
	if len(options) > 0 {
		emit(models.StreamEvent{Event: models.EventOptions, Options: append([]string(nil), options...)})
	}
}

// answer records text against the question being asked and advances.
func (s *SessionService) answer(sess *session, st asking, text string, emit func(models.StreamEvent)) {
	current, err := GetQuestion(st.n)
	if err != nil {
		s.log.Error("session in impossible question state", "thread_id", sess.threadID, "n", st.n)
		return
	}
	sess.answers[current.QuestionID] = text

	if st.n < QuestionCount {
		next, _ := GetQuestion(st.n + 1)
		sess.state = asking{n: st.n + 1}
		msg := questionMessage(next)
		sess.messages = append(sess.messages, msg)
		emit(models.StreamEvent{Event: models.EventMessage, Content: msg.Content})
		emit(models.StreamEvent{Event: models.EventOptions, Options: append([]string(nil), msg.Options...)})
		return
	}

	var scoringCtx *models.CompanyContext
	if sess.companyContext.Usable() {
		scoringCtx = sess.companyContext
	}
	scorecard := Score(sess.answers, scoringCtx)
	sess.state = diagnosed{scorecard: scorecard}
	s.metrics.DiagnosticCompleted(scorecard.Level)
	s.log.Info("diagnostic complete", "thread_id", sess.threadID, "level", scorecard.Level)

	// Only the level number is shown here; scores, gaps and recommendations
	// stay hidden until the build.
	s.say(sess,
		fmt.Sprintf("Based on your answers, you're at GTM Level %d. Would you like me to generate your GTM artifacts?", scorecard.Level),
		append([]string(nil), ConfirmOptions...),
		emit)
}

// build reveals the scorecard and runs the sequencer. The state flips to
// emitted first so the build can never run twice. Called with sess.mu held;
// the lock is dropped while the sequencer runs and held again on return.
func (s *SessionService) build(ctx context.Context, sess *session, st diagnosed, emit func(models.StreamEvent)) {
	sess.state = emitted{scorecard: st.scorecard}
	revealed := cloneScorecard(st.scorecard)
	emit(models.StreamEvent{Event: models.EventScorecard, Scorecard: &revealed})

	companyName := defaultCompanyName
	if s.sequencer != nil {
		in := BuildInput{
			ThreadID:           sess.threadID,
			Scorecard:          cloneScorecard(st.scorecard),
			Context:            cloneContext(sess.companyContext),
			Answers:            sess.answers.Clone(),
			ProductDescription: sess.productDescription,
		}
		result := func() BuildResult {
			sess.mu.Unlock()
			defer sess.mu.Lock()
			return s.sequencer.Run(ctx, in, emit)
		}()
		companyName = result.CompanyName
		for _, name := range result.Filenames {
			if !containsString(sess.artifacts, name) {
				sess.artifacts = append(sess.artifacts, name)
			}
		}
	}
	s.log.Info("artifacts emitted", "thread_id", sess.threadID, "count", len(sess.artifacts))

	s.say(sess, fmt.Sprintf("I've generated personalized GTM artifacts for **%s**. Each artifact is tailored to your Level %d status and specific gaps. Download them below!",
		companyName, st.scorecard.Level), nil, emit)
}

// classifyDecision prefers an explicit decision and otherwise looks for
// "build" in the free text.
func classifyDecision(d models.Decision, text string) models.Decision {
	if d != models.DecisionNone {
		return d
	}
	if strings.Contains(strings.ToLower(text), "build") {
		return models.DecisionConfirm
	}
	return models.DecisionDecline
}

func defaultDecisionText(d models.Decision) string {
	if d == models.DecisionConfirm {
		return ConfirmOptions[0]
	}
	return ConfirmOptions[1]
}

// State returns a snapshot for UI hydration.
func (s *SessionService) State(threadID string) (models.SessionState, error) {
	sess, err := s.get(threadID)
	if err != nil {
		return models.SessionState{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	state := models.SessionState{
		ThreadID:       sess.threadID,
		Phase:          sess.state.name(),
		Answers:        sess.answers.Clone(),
		Messages:       cloneMessages(sess.messages),
		Artifacts:      append([]string{}, sess.artifacts...),
		CompanyContext: cloneContext(sess.companyContext),
	}
	switch st := sess.state.(type) {
	case asking:
		state.CurrentQuestion = st.n
	case diagnosed:
		state.CurrentQuestion = QuestionCount
		state.DiagnosticComplete = true
	case emitted:
		state.CurrentQuestion = QuestionCount
		state.DiagnosticComplete = true
		revealed := cloneScorecard(st.scorecard)
		state.Scorecard = &revealed
	}
	return state, nil
}

// RevealedScorecard returns the scorecard once it has been shown to the user.
func (s *SessionService) RevealedScorecard(threadID string) (models.Scorecard, error) {
	sess, err := s.get(threadID)
	if err != nil {
		return models.Scorecard{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if st, ok := sess.state.(emitted); ok {
		return cloneScorecard(st.scorecard), nil
	}
	return models.Scorecard{}, ErrScorecardNotReady
}

// Exists reports whether a thread id is known.
func (s *SessionService) Exists(threadID string) bool {
	_, err := s.get(threadID)
	return err == nil
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func cloneMessages(in []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, len(in))
	for i, m := range in {
		m.Options = append([]string(nil), m.Options...)
		out[i] = m
	}
	return out
}

func cloneContext(c *models.CompanyContext) *models.CompanyContext {
	if c == nil {
		return nil
	}
	out := *c
	out.KeyFeatures = append([]string{}, c.KeyFeatures...)
	return &out
}

func cloneScorecard(sc models.Scorecard) models.Scorecard {
	out := sc
	out.Scores = make(models.LevelScores, len(sc.Scores))
	for k, v := range sc.Scores {
		out.Scores[k] = v
	}
	out.Gaps = append([]string{}, sc.Gaps...)
	out.Recommendations = append([]string{}, sc.Recommendations...)
	return out
}

func containsString(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
