package models

import "time"

// Phase is the diagnostic phase a question assesses.
type Phase string

const (
	PhaseICP        Phase = "icp"
	PhaseMessaging  Phase = "messaging"
	PhaseValidation Phase = "validation"
)

// DiagnosticQuestion is one immutable entry of the question catalog.
type DiagnosticQuestion struct {
	QuestionID   string   `json:"question_id"`
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	Phase        Phase    `json:"phase"`
}

// Answers maps question_id to the exact option text the user selected.
type Answers map[string]string

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// CompanyContext is what the context provider could learn about the company.
type CompanyContext struct {
	Success            bool     `json:"success"`
	CompanyName        string   `json:"company_name,omitempty"`
	ProductDescription string   `json:"product_description,omitempty"`
	KeyFeatures        []string `json:"key_features"`
	SourceURL          string   `json:"source_url,omitempty"`
	Error              string   `json:"error,omitempty"`
}

// Usable reports whether the context may be used for personalization.
func (c *CompanyContext) Usable() bool {
	return c != nil && c.Success
}

// LevelScores maps level keys (l1..l5) to a score in [0,100].
type LevelScores map[string]int

// LevelKeys lists the score keys in level order.
var LevelKeys = []string{"l1", "l2", "l3", "l4", "l5"}

// Scorecard is the result of scoring a completed diagnostic.
type Scorecard struct {
	Level           int         `json:"level"`
	Scores          LevelScores `json:"scores"`
	Gaps            []string    `json:"gaps"`
	Recommendations []string    `json:"recommendations"`
}

// LevelInfo describes one rung of the GTM escalator.
type LevelInfo struct {
	Level       int      `json:"level"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Criteria    []string `json:"criteria"`
	CommonGaps  []string `json:"common_gaps"`
}

// ArtifactType is the closed set of artifact kinds.
type ArtifactType string

const (
	ArtifactScorecard  ArtifactType = "scorecard"
	ArtifactNarrative  ArtifactType = "narrative"
	ArtifactEmails     ArtifactType = "emails"
	ArtifactLinkedIn   ArtifactType = "linkedin"
	ArtifactActionPlan ArtifactType = "action_plan"
)

// ArtifactTypes lists every valid artifact type.
var ArtifactTypes = []ArtifactType{
	ArtifactScorecard,
	ArtifactNarrative,
	ArtifactEmails,
	ArtifactLinkedIn,
	ArtifactActionPlan,
}

// Valid reports whether t is one of the known artifact types.
func (t ArtifactType) Valid() bool {
	for _, known := range ArtifactTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Artifact is a stored document.
type Artifact struct {
	ThreadID  string       `json:"thread_id"`
	Filename  string       `json:"filename"`
	Type      ArtifactType `json:"artifact_type"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
}

// ArtifactMetadata is what callers get back after a write.
type ArtifactMetadata struct {
	Filename       string       `json:"filename"`
	ArtifactType   ArtifactType `json:"artifact_type"`
	SizeBytes      int          `json:"size_bytes"`
	ContentPreview string       `json:"content_preview"`
}

// ChatMessage is one entry of a session transcript.
type ChatMessage struct {
	Role       string   `json:"role"` // "user" or "assistant"
	Content    string   `json:"content"`
	Options    []string `json:"options,omitempty"`
	QuestionID string   `json:"question_id,omitempty"`
}

// SessionPhase is the externally visible state of a session.
type SessionPhase string

const (
	SessionQ1Asked          SessionPhase = "q1_asked"
	SessionQ2Asked          SessionPhase = "q2_asked"
	SessionQ3Asked          SessionPhase = "q3_asked"
	SessionDiagnosed        SessionPhase = "diagnosed"
	SessionArtifactsEmitted SessionPhase = "artifacts_emitted"
)

// SessionState is the hydration payload returned by get_session_state.
type SessionState struct {
	ThreadID           string          `json:"thread_id"`
	Phase              SessionPhase    `json:"phase"`
	DiagnosticComplete bool            `json:"diagnostic_complete"`
	CurrentQuestion    int             `json:"current_question"`
	Answers            Answers         `json:"answers"`
	Messages           []ChatMessage   `json:"messages"`
	Scorecard          *Scorecard      `json:"scorecard"`
	Artifacts          []string        `json:"artifacts"`
	CompanyContext     *CompanyContext `json:"company_context,omitempty"`
}

// StartRequest is the body of POST /agent/start.
type StartRequest struct {
	ProductURL         string `json:"product_url"`
	ProductDescription string `json:"product_description"`
}

// StartResponse is returned once a session is created.
type StartResponse struct {
	ThreadID       string             `json:"thread_id"`
	Messages       []ChatMessage      `json:"messages"`
	Question       DiagnosticQuestion `json:"question"`
	CompanyContext *CompanyContext    `json:"company_context"`
}

// Decision is the closed confirmation choice offered after the diagnostic.
type Decision string

const (
	DecisionNone    Decision = ""
	DecisionConfirm Decision = "confirm"
	DecisionDecline Decision = "decline"
)

// MessageRequest is the body of POST /agent/message.
type MessageRequest struct {
	ThreadID       string   `json:"thread_id" binding:"required"`
	Message        string   `json:"message"`
	SelectedOption string   `json:"selected_option,omitempty"`
	Decision       Decision `json:"decision,omitempty"`
}

// Text returns the selected option when present, else the free text.
func (r MessageRequest) Text() string {
	if r.SelectedOption != "" {
		return r.SelectedOption
	}
	return r.Message
}

// StreamEventType tags a server-push event.
type StreamEventType string

const (
	EventUserMessage StreamEventType = "user_message"
	EventMessage     StreamEventType = "message"
	EventOptions     StreamEventType = "options"
	EventScorecard   StreamEventType = "scorecard"
	EventStatus      StreamEventType = "status"
	EventArtifact    StreamEventType = "artifact"
	EventDone        StreamEventType = "done"
)

// StreamEvent is one frame of the answer stream.
type StreamEvent struct {
	Event     StreamEventType `json:"event"`
	Content   string          `json:"content,omitempty"`
	Options   []string        `json:"options,omitempty"`
	Scorecard *Scorecard      `json:"scorecard,omitempty"`
	Filename  string          `json:"filename,omitempty"`
}

// ScoreRequest is the body of POST /diagnostic/score.
type ScoreRequest struct {
	Answers        Answers         `json:"answers"`
	CompanyContext *CompanyContext `json:"company_context,omitempty"`
}

// WriteArtifactRequest is the body of PUT /artifacts/:thread_id/:filename.
type WriteArtifactRequest struct {
	Content      string       `json:"content"`
	ArtifactType ArtifactType `json:"artifact_type" binding:"required"`
}
