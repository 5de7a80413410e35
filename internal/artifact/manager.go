package artifact

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
)

// uploadMaxElapsed bounds the retry window of a single artifact upload.
const uploadMaxElapsed = 30 * time.Second

// Store is the subset of the database the artifact manager records into.
// store.Database satisfies it.
type Store interface {
	CreateArtifact(ctx context.Context, artifact *domain.Artifact) (*domain.Artifact, error)
	UpdateArtifactURI(ctx context.Context, artifactID, organizationID, uri string) error
}

// Manager captures artifacts and uploads them asynchronously. It keeps a
// per-task group of in-flight uploads; WaitForUploads blocks until every
// outstanding upload for the task is durable or permanently failed.
type Manager struct {
	db      Store
	storage Storage
	logger  zerolog.Logger

	mu     sync.Mutex
	groups map[string]*errgroup.Group
}

// NewManager creates an artifact manager over the given database and
// storage backend.
func NewManager(db Store, storage Storage, logger zerolog.Logger) *Manager {
	return &Manager{
		db:      db,
		storage: storage,
		logger:  logger,
		groups:  make(map[string]*errgroup.Group),
	}
}

// CreateArtifact records an artifact for the step and enqueues its durable
// upload. It returns the artifact id immediately; the upload completes in
// the background and is awaited by WaitForUploads.
func (m *Manager) CreateArtifact(ctx context.Context, step *domain.Step, artifactType constants.ArtifactType, data []byte) (string, error) {
	artifact := &domain.Artifact{
		ID:             domain.NewArtifactID(),
		TaskID:         step.TaskID,
		StepID:         step.ID,
		OrganizationID: step.OrganizationID,
		Type:           artifactType,
	}
	if _, err := m.db.CreateArtifact(ctx, artifact); err != nil {
		return "", fmt.Errorf("failed to record artifact: %w", err)
	}

	m.enqueueUpload(artifact, data)
	return artifact.ID, nil
}

// CreateArtifactFromPath records an artifact whose payload is read from a
// file on disk (browser traces, HAR dumps).
func (m *Manager) CreateArtifactFromPath(ctx context.Context, step *domain.Step, artifactType constants.ArtifactType, path string) (string, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path comes from the browser manager's own artifact dirs
	if err != nil {
		return "", fmt.Errorf("failed to read artifact file %s: %w", path, err)
	}
	return m.CreateArtifact(ctx, step, artifactType, data)
}

// UpdateArtifactData replaces an existing artifact's payload. Used for
// progressive video and HAR updates: the stored URI is overwritten by a
// fresh upload of the same artifact id.
func (m *Manager) UpdateArtifactData(ctx context.Context, artifactID, taskID, stepID, organizationID string, artifactType constants.ArtifactType, data []byte) {
	artifact := &domain.Artifact{
		ID:             artifactID,
		TaskID:         taskID,
		StepID:         stepID,
		OrganizationID: organizationID,
		Type:           artifactType,
	}
	m.enqueueUpload(artifact, data)
}

// WaitForUploads blocks until every outstanding upload for the task is
// durable or permanently failed. Failed uploads are logged; they do not
// block the barrier. Must be called before any external publication so
// share links resolve.
func (m *Manager) WaitForUploads(taskID string) {
	m.mu.Lock()
	group := m.groups[taskID]
	delete(m.groups, taskID)
	m.mu.Unlock()

	if group == nil {
		return
	}
	if err := group.Wait(); err != nil {
		m.logger.Error().Err(err).Str("task_id", taskID).
			Msg("artifact uploads finished with failures")
	}
}

// GetShareLink returns a resolvable link for an uploaded artifact, or an
// empty string when none can be produced.
func (m *Manager) GetShareLink(artifact *domain.Artifact) (string, error) {
	return m.storage.ShareLink(artifact)
}

// enqueueUpload schedules the background upload of the artifact payload,
// with retries. The upload records its durable URI when it succeeds.
func (m *Manager) enqueueUpload(artifact *domain.Artifact, data []byte) {
	group := m.groupForTask(artifact.TaskID)
	group.Go(func() error {
		uploadCtx, cancel := context.WithTimeout(context.Background(), uploadMaxElapsed)
		defer cancel()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 200 * time.Millisecond
		b.MaxElapsedTime = uploadMaxElapsed

		var uri string
		err := backoff.Retry(func() error {
			var storeErr error
			uri, storeErr = m.storage.Store(uploadCtx, artifact, data)
			return storeErr
		}, backoff.WithContext(b, uploadCtx))
		if err != nil {
			m.logger.Error().Err(err).
				Str("task_id", artifact.TaskID).
				Str("artifact_id", artifact.ID).
				Str("artifact_type", artifact.Type.String()).
				Msg("artifact upload permanently failed")
			return fmt.Errorf("artifact %s: %w", artifact.ID, err)
		}

		if dbErr := m.db.UpdateArtifactURI(uploadCtx, artifact.ID, artifact.OrganizationID, uri); dbErr != nil {
			m.logger.Error().Err(dbErr).
				Str("artifact_id", artifact.ID).
				Msg("failed to record artifact uri")
			return fmt.Errorf("artifact %s: %w", artifact.ID, dbErr)
		}
		return nil
	})
}

// groupForTask returns (creating if needed) the upload group for a task.
func (m *Manager) groupForTask(taskID string) *errgroup.Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.groups[taskID]
	if !ok {
		group = &errgroup.Group{}
		m.groups[taskID] = group
	}
	return group
}
