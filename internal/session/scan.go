package session

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"printlapse/internal/fileutil"
	"printlapse/internal/logging"
	"printlapse/internal/services"
)

// Info is a directory-derived view of one session. Every consumer re-derives
// this from storage on each scan instead of caching it, so independently
// restarted processes always agree on phase.
type Info struct {
	ID         string
	Dir        string
	Phase      Phase
	FrameCount int
	VideoSize  int64
}

// Scan lists every session directory under the root, phases derived solely
// from marker files.
func Scan(root string) ([]Info, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransient, "session", "scan", "read storage root", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		infos = append(infos, Describe(filepath.Join(root, entry.Name())))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// Pending returns sessions awaiting encode, oldest first.
func Pending(root string) ([]Info, error) {
	infos, err := Scan(root)
	if err != nil {
		return nil, err
	}
	pending := infos[:0]
	for _, info := range infos {
		if info.Phase == PhaseAwaitingEncode {
			pending = append(pending, info)
		}
	}
	return pending, nil
}

// Describe derives one session's state from its directory.
func Describe(dir string) Info {
	id := filepath.Base(dir)
	info := Info{
		ID:         id,
		Dir:        dir,
		Phase:      PhaseCapturing,
		FrameCount: countFrames(filepath.Join(dir, FramesDirName)),
	}

	if stat, err := os.Stat(filepath.Join(dir, VideoName(id))); err == nil {
		info.VideoSize = stat.Size()
	}

	if exists(filepath.Join(dir, CompleteMarker)) {
		info.Phase = PhaseComplete
		return info
	}
	if exists(filepath.Join(dir, ReadyMarker)) {
		if lockHeld(filepath.Join(dir, LockFileName)) {
			info.Phase = PhaseEncoding
		} else {
			info.Phase = PhaseAwaitingEncode
		}
	}
	return info
}

// FinalizeOrphans marks capturing sessions left behind by a crashed capture
// loop as ready for encode. Session directories are never deleted, even empty
// ones; the worker records empty sessions as permanent failures instead. Must
// only be called before the store opens any session.
func (s *Store) FinalizeOrphans() error {
	infos, err := Scan(s.root)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if info.Phase != PhaseCapturing {
			continue
		}
		if err := fileutil.TouchAtomic(filepath.Join(info.Dir, ReadyMarker)); err != nil {
			return services.Wrap(services.ErrTransient, "session", "finalize orphans",
				"write ready marker for "+info.ID, err)
		}
		s.logger.Info("finalized orphaned session",
			logging.String(logging.FieldSession, info.ID),
			logging.Int("frames", info.FrameCount),
		)
	}
	return nil
}

func countFrames(framesDir string) int {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".jpg") {
			count++
		}
	}
	return count
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// lockHeld probes whether another process holds the encoding lock. The probe
// briefly acquires and releases the flock when free, which can push a worker
// to the next scan cycle; workers retry, so that is harmless.
func lockHeld(lockPath string) bool {
	if !exists(lockPath) {
		return false
	}
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = fl.Unlock()
		return false
	}
	return true
}
