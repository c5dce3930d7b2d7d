package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"printlapse/internal/fileutil"
	"printlapse/internal/logging"
	"printlapse/internal/services"
)

// Marker and layout names shared by the capture and encoding loops. These are
// a stable on-disk contract: changing them strands sessions written by
// earlier versions.
const (
	FramesDirName  = "frames"
	ReadyMarker    = "ready_for_video"
	CompleteMarker = "video_complete"
	EncodeLogName  = "video_creation.log"
	LockFileName   = ".encoding_lock"
)

// Phase is a session's lifecycle stage, persisted implicitly via marker files
// so it survives a restart of either loop.
type Phase string

const (
	PhaseCapturing      Phase = "capturing"
	PhaseAwaitingEncode Phase = "awaiting_encode"
	PhaseEncoding       Phase = "encoding"
	PhaseComplete       Phase = "complete"
	PhaseFailed         Phase = "failed"
)

// Session is one print's frame set while it is being captured.
type Session struct {
	ID        string
	Dir       string
	FramesDir string
	Manual    bool
	JobID     int64

	next int
}

// FrameCount returns the number of frames recorded so far.
func (s *Session) FrameCount() int {
	return s.next
}

// FramePath returns the path a given frame index maps to.
func (s *Session) FramePath(index int) string {
	return filepath.Join(s.FramesDir, FrameName(index))
}

// FrameName formats the fixed-width frame filename for an index.
func FrameName(index int) string {
	return fmt.Sprintf("frame_%06d.jpg", index)
}

// VideoName returns the output video filename for a session ID.
func VideoName(id string) string {
	return id + ".mp4"
}

// Store owns the session directory tree under one storage root. It is the
// only writer of frames and session-level markers; the encoding worker reads
// them.
type Store struct {
	root   string
	logger *slog.Logger

	mu     sync.Mutex
	active *Session
}

// NewStore constructs a Store rooted at the given storage directory.
func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		root:   root,
		logger: logger.With(logging.String(logging.FieldComponent, "session")),
	}
}

// Root returns the storage root the store manages.
func (s *Store) Root() string {
	return s.root
}

// Active returns the session currently in the capturing phase, or nil.
func (s *Store) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Open creates (or resumes) a session directory and marks it the active
// capturing session. It fails with ErrSessionActive when another session is
// already capturing; callers that want to supersede it must Close it first.
func (s *Store) Open(id string, manual bool) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrConfiguration, "session", "open", "empty session id", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, services.Wrap(services.ErrSessionActive, "session", "open",
			fmt.Sprintf("session %s is capturing", s.active.ID), nil)
	}

	dir := filepath.Join(s.root, id)
	// A completed directory is immutable; a reused name gets a numbered
	// sibling instead of resuming it.
	for n := 2; exists(filepath.Join(dir, CompleteMarker)); n++ {
		dir = filepath.Join(s.root, fmt.Sprintf("%s_%d", id, n))
	}
	id = filepath.Base(dir)

	framesDir := filepath.Join(dir, FramesDirName)
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "session", "open", "create frames directory", err)
	}
	// A resumed directory may carry the ready marker from an earlier Close.
	// It must come off before capture restarts, or the encoding worker would
	// treat the session as awaiting encode while frames are still arriving.
	if err := os.Remove(filepath.Join(dir, ReadyMarker)); err == nil {
		s.logger.Warn("cleared stale ready marker on reopen",
			logging.String(logging.FieldSession, id),
		)
	} else if !os.IsNotExist(err) {
		return nil, services.Wrap(services.ErrTransient, "session", "open", "clear stale ready marker", err)
	}

	sess := &Session{
		ID:        id,
		Dir:       dir,
		FramesDir: framesDir,
		Manual:    manual,
		next:      nextFrameIndex(framesDir),
	}
	s.active = sess

	s.logger.Info("session opened",
		logging.String(logging.FieldSession, id),
		logging.Bool("manual", manual),
		logging.Int("resumed_at_frame", sess.next),
	)
	return sess, nil
}

// RecordFrame allocates the next frame index and writes the image under it.
// The index is consumed only when the write succeeds, so a failed attempt
// never produces a gap or a reused number.
func (s *Store) RecordFrame(sess *Session, image []byte) (int, error) {
	if sess == nil {
		return 0, services.Wrap(services.ErrConfiguration, "session", "record frame", "nil session", nil)
	}
	index := sess.next
	path := sess.FramePath(index)
	if err := fileutil.WriteFileAtomic(path, image, 0o644); err != nil {
		return 0, services.Wrap(services.ErrTransient, "session", "record frame",
			fmt.Sprintf("write %s", FrameName(index)), err)
	}
	sess.next++
	return index, nil
}

// Close transitions the session to awaiting-encode by writing the ready
// marker via write-then-rename, then releases scheduling ownership. The
// marker becomes visible only after every frame it covers is fully written.
func (s *Store) Close(sess *Session) error {
	if sess == nil {
		return nil
	}
	if err := fileutil.TouchAtomic(filepath.Join(sess.Dir, ReadyMarker)); err != nil {
		return services.Wrap(services.ErrTransient, "session", "close", "write ready marker", err)
	}

	s.mu.Lock()
	if s.active != nil && s.active.ID == sess.ID {
		s.active = nil
	}
	s.mu.Unlock()

	s.logger.Info("session closed",
		logging.String(logging.FieldSession, sess.ID),
		logging.Int("frames", sess.next),
	)
	return nil
}

// Abandon releases the active session without marking it ready. Frames stay
// on disk; FinalizeOrphans picks the directory up on a later start.
func (s *Store) Abandon(sess *Session) {
	if sess == nil {
		return
	}
	s.mu.Lock()
	if s.active != nil && s.active.ID == sess.ID {
		s.active = nil
	}
	s.mu.Unlock()
}

// nextFrameIndex finds the first unused frame index in a frames directory so
// a reopened session never overwrites existing frames.
func nextFrameIndex(framesDir string) int {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return 0
	}
	next := 0
	for _, entry := range entries {
		var index int
		if _, err := fmt.Sscanf(entry.Name(), "frame_%06d.jpg", &index); err != nil {
			continue
		}
		if index >= next {
			next = index + 1
		}
	}
	return next
}

// NewID derives a session ID from the wall clock and, when known, the print
// job name. Manual sessions use the operator-chosen name verbatim after
// sanitizing.
func NewID(now time.Time, jobName string) string {
	stamp := now.Format("20060102_150405")
	safe := SanitizeName(jobName)
	if safe == "" {
		return "print_" + stamp
	}
	return stamp + "_" + safe
}

// SanitizeName reduces a job or operator name to filesystem-safe characters.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
