// Package artifact implements durable artifact capture for Voyager.
//
// Artifacts are enqueued synchronously (the caller gets an id immediately)
// and uploaded asynchronously. WaitForUploads is the only barrier that
// establishes happens-before between uploads and external publication.
// Individual capture failures are logged and swallowed; they never abort a
// step or task.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
)

// Storage is the blob backend artifacts are uploaded to. Implementations
// must be safe for concurrent use.
type Storage interface {
	// Store uploads data for the artifact and returns its durable URI.
	Store(ctx context.Context, artifact *domain.Artifact, data []byte) (string, error)

	// ShareLink returns a resolvable link for an uploaded artifact.
	ShareLink(artifact *domain.Artifact) (string, error)
}

// LocalStorage stores artifact blobs on the local filesystem under
// root/<task_id>/<step_id>/<artifact_id>.<ext>.
type LocalStorage struct {
	root         string
	shareBaseURL string
}

// NewLocalStorage creates a filesystem storage rooted at root. shareBaseURL,
// when non-empty, prefixes share links; otherwise file:// links are
// returned.
func NewLocalStorage(root, shareBaseURL string) *LocalStorage {
	return &LocalStorage{root: root, shareBaseURL: shareBaseURL}
}

// Store writes the blob to disk and returns its path as the URI.
func (s *LocalStorage) Store(ctx context.Context, artifact *domain.Artifact, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, artifact.TaskID, artifact.StepID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(dir, artifact.ID+extensionFor(artifact))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", artifact.ID, err)
	}
	return path, nil
}

// ShareLink returns a link for the artifact's stored location.
func (s *LocalStorage) ShareLink(artifact *domain.Artifact) (string, error) {
	if artifact.URI == "" {
		return "", fmt.Errorf("artifact %s has no stored location", artifact.ID)
	}
	if s.shareBaseURL != "" {
		return s.shareBaseURL + "/" + artifact.TaskID + "/" + artifact.StepID + "/" + filepath.Base(artifact.URI), nil
	}
	return "file://" + artifact.URI, nil
}

// extensionFor picks a filename extension from the artifact type.
func extensionFor(artifact *domain.Artifact) string {
	switch artifact.Type {
	case constants.ArtifactTypeScreenshotAction, constants.ArtifactTypeScreenshotFinal:
		return ".png"
	case constants.ArtifactTypeHTMLScrape, constants.ArtifactTypeHTMLAction:
		return ".html"
	case constants.ArtifactTypeRecording:
		return ".webm"
	case constants.ArtifactTypeHAR:
		return ".har"
	case constants.ArtifactTypeTrace:
		return ".zip"
	default:
		return ".json"
	}
}
