package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gtm-agent-api/pkg/services")

const (
	ScorecardFilename  = "gtm-scorecard.json"
	defaultCompanyName = "Your Company"
	defaultICP         = "your target customers"
)

// ContentArtifact describes one generated document of a build.
type ContentArtifact struct {
	Type     models.ArtifactType
	Filename string
	Label    string
}

// ContentArtifacts is the fixed emission order of generated documents.
var ContentArtifacts = []ContentArtifact{
	{Type: models.ArtifactNarrative, Filename: "gtm-narrative.md", Label: "Strategic Narrative"},
	{Type: models.ArtifactEmails, Filename: "cold-emails.md", Label: "Cold Emails"},
	{Type: models.ArtifactLinkedIn, Filename: "linkedin-posts.md", Label: "LinkedIn Posts"},
	{Type: models.ArtifactActionPlan, Filename: "30-day-plan.md", Label: "30-Day Plan"},
}

// BuildInput is everything the sequencer needs for one build.
type BuildInput struct {
	ThreadID           string
	Scorecard          models.Scorecard
	Context            *models.CompanyContext
	Answers            models.Answers
	ProductDescription string
}

// BuildResult lists the stored artifacts in emission order, deduplicated.
type BuildResult struct {
	CompanyName string
	Filenames   []string
}

// ArtifactSequencer writes the scorecard artifact and then each content
// artifact in order. Generation failures fall back to placeholders.
type ArtifactSequencer struct {
	artifacts *ArtifactService
	generator ContentGenerator
	metrics   *Metrics
	log       *logger.Logger
}

func NewArtifactSequencer(artifacts *ArtifactService, generator ContentGenerator, metrics *Metrics, log *logger.Logger) *ArtifactSequencer {
	return &ArtifactSequencer{
		artifacts: artifacts,
		generator: generator,
		metrics:   metrics,
		log:       log.With("service", "artifact_sequencer"),
	}
}

// Run emits artifact and status events through emit, one step at a time.
func (s *ArtifactSequencer) Run(ctx context.Context, in BuildInput, emit func(models.StreamEvent)) BuildResult {
	ctx, span := tracer.Start(ctx, "artifacts.build", trace.WithAttributes(
		attribute.String("thread_id", in.ThreadID),
		attribute.Int("gtm.level", in.Scorecard.Level),
	))
	defer span.End()

	req := s.contentRequest(in)
	written := newFilenameSet()

	if err := s.writeScorecard(ctx, in); err != nil {
		s.log.Error("scorecard artifact failed", "thread_id", in.ThreadID, "error", err)
	} else if written.add(ScorecardFilename) {
		emit(models.StreamEvent{Event: models.EventArtifact, Filename: ScorecardFilename})
	}

	for _, kind := range ContentArtifacts {
		emit(models.StreamEvent{Event: models.EventStatus, Content: fmt.Sprintf("Creating %s...", kind.Label)})

		content := s.generate(ctx, kind, req)
		if _, err := s.artifacts.Write(ctx, in.ThreadID, kind.Filename, content, kind.Type); err != nil {
			s.log.Error("artifact write failed", "thread_id", in.ThreadID, "filename", kind.Filename, "error", err)
			continue
		}
		if written.add(kind.Filename) {
			emit(models.StreamEvent{Event: models.EventArtifact, Filename: kind.Filename})
		}
	}

	// Second pass: any expected file still missing gets a placeholder so a
	// completed build always carries the full set of filenames.
	for _, kind := range ContentArtifacts {
		if written.has(kind.Filename) {
			continue
		}
		if _, err := s.artifacts.Write(ctx, in.ThreadID, kind.Filename, placeholder(kind, req.CompanyName), kind.Type); err != nil {
			s.log.Error("placeholder write failed", "thread_id", in.ThreadID, "filename", kind.Filename, "error", err)
			continue
		}
		s.metrics.ArtifactFallback(string(kind.Type))
		if written.add(kind.Filename) {
			emit(models.StreamEvent{Event: models.EventArtifact, Filename: kind.Filename})
		}
	}

	return BuildResult{CompanyName: req.CompanyName, Filenames: written.list()}
}

func (s *ArtifactSequencer) writeScorecard(ctx context.Context, in BuildInput) error {
	body, err := json.MarshalIndent(in.Scorecard, "", "  ")
	if err != nil {
		return err
	}
	_, err = s.artifacts.Write(ctx, in.ThreadID, ScorecardFilename, string(body), models.ArtifactScorecard)
	return err
}

func (s *ArtifactSequencer) generate(ctx context.Context, kind ContentArtifact, req ContentRequest) string {
	ctx, span := tracer.Start(ctx, "artifacts.generate", trace.WithAttributes(attribute.String("artifact.type", string(kind.Type))))
	defer span.End()

	req.Type = kind.Type
	if s.generator != nil {
		text, err := s.generator.Generate(ctx, req)
		if err == nil {
			return fmt.Sprintf("# %s: %s\n\n%s", kind.Label, req.CompanyName, text)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		s.log.Warn("content generation failed, using placeholder", "type", kind.Type, "error", err)
	}
	s.metrics.ArtifactFallback(string(kind.Type))
	return placeholder(kind, req.CompanyName)
}

func (s *ArtifactSequencer) contentRequest(in BuildInput) ContentRequest {
	req := ContentRequest{
		CompanyName: defaultCompanyName,
		Description: in.ProductDescription,
		ICP:         defaultICP,
		Level:       in.Scorecard.Level,
		Gaps:        append([]string(nil), in.Scorecard.Gaps...),
	}
	if c := in.Context; c.Usable() {
		if c.CompanyName != "" {
			req.CompanyName = c.CompanyName
		}
		if c.ProductDescription != "" {
			req.Description = c.ProductDescription
		}
		req.Features = append([]string(nil), c.KeyFeatures...)
	}
	if icp := in.Answers[QuestionICP]; icp != "" {
		req.ICP = icp
	}
	if req.Level == 0 {
		req.Level = 1
	}
	return req
}

func placeholder(kind ContentArtifact, company string) string {
	return fmt.Sprintf("# %s: %s\n\n> Placeholder: this %s could not be generated right now. Please try again later.\n",
		kind.Label, company, kind.Label)
}

// filenameSet keeps first-seen order.
type filenameSet struct {
	order []string
	seen  map[string]struct{}
}

func newFilenameSet() *filenameSet {
	return &filenameSet{seen: make(map[string]struct{})}
}

func (f *filenameSet) add(name string) bool {
	if _, ok := f.seen[name]; ok {
		return false
	}
	f.seen[name] = struct{}{}
	f.order = append(f.order, name)
	return true
}

func (f *filenameSet) has(name string) bool {
	_, ok := f.seen[name]
	return ok
}

func (f *filenameSet) list() []string {
	return append([]string(nil), f.order...)
}
