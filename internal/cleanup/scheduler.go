package cleanup

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler periodically removes aged job output directories. Job records
// stay queryable in memory, but their files on disk are reclaimed.
type Scheduler struct {
	outputRoot      string
	intervalMinutes int
	maxAgeHours     int
	stopChan        chan struct{}
	log             *logrus.Entry
}

// NewScheduler creates a cleanup scheduler over the job output root.
func NewScheduler(outputRoot string, intervalMinutes, maxAgeHours int, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		outputRoot:      outputRoot,
		intervalMinutes: intervalMinutes,
		maxAgeHours:     maxAgeHours,
		stopChan:        make(chan struct{}),
		log:             log.WithField("component", "cleanup"),
	}
}

// Start runs an initial sweep and then cleans on the configured interval.
func (s *Scheduler) Start() {
	s.sweep()

	ticker := time.NewTicker(time.Duration(s.intervalMinutes) * time.Minute)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.log.Infof("Cleanup scheduler started (interval: %dm, max age: %dh)",
		s.intervalMinutes, s.maxAgeHours)
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.log.Info("Cleanup scheduler stopped")
}

// sweep removes job directories older than the configured age.
func (s *Scheduler) sweep() {
	maxAge := time.Duration(s.maxAgeHours) * time.Hour
	now := time.Now()

	entries, err := os.ReadDir(s.outputRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnf("Cleanup sweep failed: %v", err)
		}
		return
	}

	var removed int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if age := now.Sub(info.ModTime()); age > maxAge {
			path := filepath.Join(s.outputRoot, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.log.Warnf("Failed to remove old job directory %s: %v", path, err)
				continue
			}
			removed++
			s.log.Infof("Removed old job directory %s (age: %s)", entry.Name(), age.Round(time.Hour))
		}
	}

	if removed > 0 {
		s.log.Infof("Cleanup complete: %d job directories removed", removed)
	}
}
