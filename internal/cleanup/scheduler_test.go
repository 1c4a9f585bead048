package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestSweepRemovesOnlyAgedDirectories(t *testing.T) {
	root := t.TempDir()

	oldDir := filepath.Join(root, "job-old")
	newDir := filepath.Join(root, "job-new")
	for _, d := range []string{oldDir, newDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldDir, stale, stale); err != nil {
		t.Fatal(err)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	s := NewScheduler(root, 60, 24, log)
	s.sweep()

	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Errorf("expected aged directory to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(newDir); err != nil {
		t.Errorf("expected recent directory to survive, stat err = %v", err)
	}
}

func TestSweepMissingRootIsHarmless(t *testing.T) {
	log := logrus.New()
	s := NewScheduler(filepath.Join(t.TempDir(), "absent"), 60, 24, log)
	s.sweep()
}
