package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dropdeck/dropdeck/pkg/history"
	"github.com/dropdeck/dropdeck/pkg/store"
	"github.com/dropdeck/dropdeck/pkg/transfer"
	"github.com/dropdeck/dropdeck/pkg/types"
)

// UploadServiceImpl implements UploadService. It is the only component
// that wires transfer callbacks into store mutations: files within one
// batch upload strictly sequentially, while separate batches may
// interleave freely because every mutation touches a single record by id.
type UploadServiceImpl struct {
	*BaseService
	files     *store.FileStore
	sessions  *store.SessionStore
	simulator *transfer.Simulator
	events    *history.Repository
	logger    *log.Logger

	// lifecycle outlives any single request; background batch processing
	// runs on it so transfers are not tied to a caller's context.
	lifecycle context.Context
	cancel    context.CancelFunc

	configMu sync.RWMutex
	config   *ServiceConfig

	listenersMu sync.RWMutex
	listeners   []Listener

	inflight sync.WaitGroup
}

// NewUploadService creates a new upload service instance. The history
// repository may be nil, in which case terminal events are not recorded.
func NewUploadService(files *store.FileStore, sessions *store.SessionStore, simulator *transfer.Simulator, events *history.Repository, config *ServiceConfig) *UploadServiceImpl {
	if config == nil {
		config = DefaultServiceConfig()
	}
	config.Validate()

	lifecycle, cancel := context.WithCancel(context.Background())
	return &UploadServiceImpl{
		BaseService: NewBaseService(),
		files:       files,
		sessions:    sessions,
		simulator:   simulator,
		events:      events,
		lifecycle:   lifecycle,
		cancel:      cancel,
		config:      config,
		logger:      log.New(os.Stdout, "[UploadService] ", log.LstdFlags),
	}
}

// Health checks the health of the upload service
func (s *UploadServiceImpl) Health(ctx context.Context) error {
	if s.files == nil || s.sessions == nil {
		return fmt.Errorf("stores not available")
	}
	if s.simulator == nil {
		return fmt.Errorf("transfer simulator not available")
	}
	if s.events != nil {
		if _, err := s.events.List(1); err != nil {
			return fmt.Errorf("history health check failed: %w", err)
		}
	}
	return nil
}

// GetConfig returns the current service configuration
func (s *UploadServiceImpl) GetConfig() *ServiceConfig {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// SetConfig updates the service configuration. In-flight batches keep the
// configuration they were submitted under.
func (s *UploadServiceImpl) SetConfig(config *ServiceConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config = config
	return nil
}

// AddListener registers a lifecycle event listener
func (s *UploadServiceImpl) AddListener(listener Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Wait blocks until every submitted batch has finished processing
func (s *UploadServiceImpl) Wait() {
	s.inflight.Wait()
}

// Shutdown cancels in-flight transfers and waits for batch processing to
// stop. Files that were mid-transfer end up Failed with context.Canceled.
func (s *UploadServiceImpl) Shutdown() {
	s.cancel()
	s.inflight.Wait()
}

// SubmitBatch registers one file record per accepted input file, opens a
// session sized to the accepted batch, and starts processing it in the
// background. The caller's context only gates submission itself; once the
// batch is accepted, processing runs on the service's own lifetime so a
// request context expiring after the response cannot abort the transfers.
// Files failing the configured constraints are reported in the result
// without aborting the rest of the batch; an error is returned only when
// no file was accepted.
func (s *UploadServiceImpl) SubmitBatch(ctx context.Context, files []types.FileMeta) (*BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	config := s.GetConfig()
	if len(files) > config.MaxBatchSize {
		return nil, fmt.Errorf("batch of %d files exceeds limit of %d", len(files), config.MaxBatchSize)
	}

	result := &BatchResult{}
	var accepted []types.FileMeta
	var totalSize int64
	for _, meta := range files {
		if err := config.Constraints.Accepts(meta); err != nil {
			result.Rejected = append(result.Rejected, BatchRejection{
				Name:   meta.Name,
				Reason: err.Error(),
			})
			continue
		}
		accepted = append(accepted, meta)
		totalSize += meta.SizeBytes
	}
	if len(accepted) == 0 {
		return result, fmt.Errorf("no files accepted: %d rejected", len(result.Rejected))
	}

	session := s.sessions.Create(types.SessionSpec{
		TotalFiles:     len(accepted),
		TotalSizeBytes: totalSize,
	})
	result.SessionID = session.ID

	for _, meta := range accepted {
		result.Accepted = append(result.Accepted, s.files.Create(meta, session.ID))
	}

	if config.EnableLogging {
		s.logger.Printf("Submitted batch %s: %d files, %s total (%d rejected)",
			session.ID, len(result.Accepted), types.FormatBytes(totalSize), len(result.Rejected))
	}

	records := make([]types.FileRecord, len(result.Accepted))
	copy(records, result.Accepted)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.processBatch(s.lifecycle, session.ID, records)
	}()

	return result, nil
}

// processBatch uploads the batch's files one at a time in submission
// order. One file's failure does not abort the rest of the batch.
func (s *UploadServiceImpl) processBatch(ctx context.Context, sessionID string, records []types.FileRecord) {
	logging := s.GetConfig().EnableLogging
	var uploaded int64

	for _, record := range records {
		startTime := time.Now()

		if err := s.uploadFile(ctx, record); err != nil {
			if logging {
				s.logger.Printf("Upload failed: %s: %v", record.Name, err)
			}
			continue
		}

		uploaded += record.SizeBytes
		size := uploaded
		if _, err := s.sessions.Update(sessionID, types.SessionPatch{UploadedSizeBytes: &size}); err != nil {
			s.logger.Printf("Warning: failed to update session %s: %v", sessionID, err)
		}

		if logging {
			s.logger.Printf("Upload completed: %s (%s, duration: %v)",
				record.Name, types.FormatBytes(record.SizeBytes), time.Since(startTime))
		}
	}
}

// uploadFile runs one file through the Pending -> Uploading ->
// Completed|Failed state machine
func (s *UploadServiceImpl) uploadFile(ctx context.Context, record types.FileRecord) error {
	uploading := types.FileStatusUploading
	current, err := s.files.Update(record.ID, types.FilePatch{Status: &uploading})
	if err != nil {
		return err
	}
	s.notifyProgress(current)

	result, runErr := s.simulator.Run(ctx, types.FileMeta{
		Name:           record.Name,
		SizeBytes:      record.SizeBytes,
		MimeType:       record.MimeType,
		LastModifiedAt: record.LastModifiedAt,
	}, func(progress float64) {
		updated, err := s.files.Update(record.ID, types.FilePatch{ProgressPercent: &progress})
		if err != nil {
			return
		}
		s.notifyProgress(updated)
	})

	if runErr != nil {
		failed := types.FileStatusFailed
		current, err = s.files.Update(record.ID, types.FilePatch{Status: &failed})
		if err != nil {
			return err
		}
		s.recordEvent(current, runErr)
		s.notifyFinished(current, runErr)
		return runErr
	}

	completed := types.FileStatusCompleted
	current, err = s.files.Update(record.ID, types.FilePatch{
		Status:    &completed,
		RemoteURL: &result.RemoteURL,
	})
	if err != nil {
		return err
	}
	s.recordEvent(current, nil)
	s.notifyFinished(current, nil)
	return nil
}

// GetFile returns one file record by id
func (s *UploadServiceImpl) GetFile(id string) (types.FileRecord, error) {
	return s.files.Get(id)
}

// ListFiles returns all file records in creation order
func (s *UploadServiceImpl) ListFiles() []types.FileRecord {
	return s.files.List()
}

// ListSessionFiles returns the file records belonging to one session
func (s *UploadServiceImpl) ListSessionFiles(sessionID string) []types.FileRecord {
	return s.files.ListBySession(sessionID)
}

// RemoveFile deletes a file record. Removal is rejected while the file
// is uploading; the record stays in place and the caller gets
// store.ErrNotAllowed.
func (s *UploadServiceImpl) RemoveFile(id string) (types.FileRecord, error) {
	record, err := s.files.Get(id)
	if err != nil {
		return types.FileRecord{}, err
	}
	if record.Status == types.FileStatusUploading {
		return types.FileRecord{}, fmt.Errorf("file %s is uploading: %w", id, store.ErrNotAllowed)
	}
	return s.files.Delete(id)
}

// GetSession returns one session by id
func (s *UploadServiceImpl) GetSession(id string) (types.UploadSession, error) {
	return s.sessions.Get(id)
}

// ListSessions returns all sessions in creation order
func (s *UploadServiceImpl) ListSessions() []types.UploadSession {
	return s.sessions.List()
}

// DeleteSession removes a session. Its file records are kept; they still
// carry the session id for auditing.
func (s *UploadServiceImpl) DeleteSession(id string) (types.UploadSession, error) {
	return s.sessions.Delete(id)
}

func (s *UploadServiceImpl) notifyProgress(record types.FileRecord) {
	event := progressEvent(record)
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, listener := range s.listeners {
		listener.OnFileProgress(event)
	}
}

func (s *UploadServiceImpl) notifyFinished(record types.FileRecord, err error) {
	event := progressEvent(record)
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, listener := range s.listeners {
		listener.OnFileFinished(event, err)
	}
}

func (s *UploadServiceImpl) recordEvent(record types.FileRecord, runErr error) {
	if s.events == nil {
		return
	}
	event := history.TransferEvent{
		FileID:    record.ID,
		SessionID: record.SessionID,
		FileName:  record.Name,
		SizeBytes: record.SizeBytes,
		Status:    record.Status,
		RemoteURL: record.RemoteURL,
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}
	if err := s.events.Record(event); err != nil {
		s.logger.Printf("Warning: failed to record transfer event for %s: %v", record.ID, err)
	}
}

func progressEvent(record types.FileRecord) types.ProgressEvent {
	return types.ProgressEvent{
		ID:              record.ID,
		SessionID:       record.SessionID,
		Name:            record.Name,
		Status:          record.Status,
		ProgressPercent: record.ProgressPercent,
		RemoteURL:       record.RemoteURL,
	}
}
