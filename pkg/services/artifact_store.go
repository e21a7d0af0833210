package services

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/models"
)

const (
	MaxFilenameLength = 100
	MaxArtifactBytes  = 100 * 1024
	previewRunes      = 200
)

var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ArtifactStore persists artifacts keyed by (thread_id, filename).
type ArtifactStore interface {
	Put(ctx context.Context, artifact models.Artifact) error
	Get(ctx context.Context, threadID, filename string) (models.Artifact, error)
	List(ctx context.Context, threadID string) ([]models.Artifact, error)
	Clear(ctx context.Context) error
}

// MemoryArtifactStore keeps artifacts for the lifetime of the process.
type MemoryArtifactStore struct {
	mu      sync.RWMutex
	threads map[string]*threadArtifacts
}

type threadArtifacts struct {
	order []string
	byKey map[string]models.Artifact
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{threads: make(map[string]*threadArtifacts)}
}

func (s *MemoryArtifactStore) Put(_ context.Context, artifact models.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[artifact.ThreadID]
	if !ok {
		t = &threadArtifacts{byKey: make(map[string]models.Artifact)}
		s.threads[artifact.ThreadID] = t
	}
	if _, exists := t.byKey[artifact.Filename]; !exists {
		t.order = append(t.order, artifact.Filename)
	}
	t.byKey[artifact.Filename] = artifact
	return nil
}

func (s *MemoryArtifactStore) Get(_ context.Context, threadID, filename string) (models.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.threads[threadID]; ok {
		if a, ok := t.byKey[filename]; ok {
			return a, nil
		}
	}
	return models.Artifact{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, filename)
}

func (s *MemoryArtifactStore) List(_ context.Context, threadID string) ([]models.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[threadID]
	if !ok {
		return []models.Artifact{}, nil
	}
	out := make([]models.Artifact, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.byKey[name])
	}
	return out, nil
}

func (s *MemoryArtifactStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string]*threadArtifacts)
	return nil
}

// ArtifactService validates artifacts before handing them to a store.
type ArtifactService struct {
	store   ArtifactStore
	metrics *Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewArtifactService(store ArtifactStore, metrics *Metrics, log *logger.Logger) *ArtifactService {
	return &ArtifactService{
		store:   store,
		metrics: metrics,
		log:     log.With("service", "artifacts"),
		now:     time.Now,
	}
}

// ValidateFilename rejects anything that is not a plain, path-safe name.
func ValidateFilename(filename string) error {
	switch {
	case filename == "":
		return fmt.Errorf("%w: empty", ErrInvalidFilename)
	case len(filename) > MaxFilenameLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidFilename, MaxFilenameLength)
	case strings.Contains(filename, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	case !filenamePattern.MatchString(filename):
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return nil
}

// Preview returns the first 200 characters, ellipsis-truncated.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	return string([]rune(content)[:previewRunes-3]) + "..."
}

// MediaType maps a filename extension to the download content type.
func MediaType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}

// Write validates and stores an artifact. Nothing is stored when validation fails.
func (s *ArtifactService) Write(ctx context.Context, threadID, filename, content string, artifactType models.ArtifactType) (models.ArtifactMetadata, error) {
	if err := ValidateFilename(filename); err != nil {
		return models.ArtifactMetadata{}, err
	}
	if !artifactType.Valid() {
		return models.ArtifactMetadata{}, fmt.Errorf("%w: %q", ErrInvalidType, artifactType)
	}
	if len(content) > MaxArtifactBytes {
		return models.ArtifactMetadata{}, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(content), MaxArtifactBytes)
	}

	artifact := models.Artifact{
		ThreadID:  threadID,
		Filename:  filename,
		Type:      artifactType,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Put(ctx, artifact); err != nil {
		return models.ArtifactMetadata{}, fmt.Errorf("store artifact %s: %w", filename, err)
	}
	s.metrics.ArtifactWritten(string(artifactType))
	s.log.Debug("artifact written", "thread_id", threadID, "filename", filename, "type", artifactType, "size_bytes", len(content))

	return metadataFor(artifact), nil
}

// Read returns the artifact content and its media type.
func (s *ArtifactService) Read(ctx context.Context, threadID, filename string) (string, string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", "", err
	}
	a, err := s.store.Get(ctx, threadID, filename)
	if err != nil {
		return "", "", err
	}
	return a.Content, MediaType(filename), nil
}

// List returns metadata for every artifact of a thread in write order.
func (s *ArtifactService) List(ctx context.Context, threadID string) ([]models.ArtifactMetadata, error) {
	artifacts, err := s.store.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ArtifactMetadata, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, metadataFor(a))
	}
	return out, nil
}

// Clear drops every stored artifact.
func (s *ArtifactService) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

func metadataFor(a models.Artifact) models.ArtifactMetadata {
	return models.ArtifactMetadata{
		Filename:       a.Filename,
		ArtifactType:   a.Type,
		SizeBytes:      len(a.Content),
		ContentPreview: Preview(a.Content),
	}
}
