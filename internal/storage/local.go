package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// audioSubdir holds intermediate audio inside a job's output directory.
const audioSubdir = "_audio_files"

// JobDirs manages per-job output directories under a common root. Every
// job gets its own directory keyed by job ID so concurrent jobs never
// contend on the same files.
type JobDirs struct {
	root string
}

// NewJobDirs creates the manager; the root is created lazily per job.
func NewJobDirs(root string) *JobDirs {
	return &JobDirs{root: root}
}

// JobDir returns the output directory for a job.
func (j *JobDirs) JobDir(jobID string) string {
	return filepath.Join(j.root, jobID)
}

// AudioDir returns the intermediate-audio directory for a job.
func (j *JobDirs) AudioDir(jobID string) string {
	return filepath.Join(j.JobDir(jobID), audioSubdir)
}

// Ensure creates the job's output and audio directories.
func (j *JobDirs) Ensure(jobID string) error {
	if err := os.MkdirAll(j.AudioDir(jobID), 0755); err != nil {
		return fmt.Errorf("failed to create job output directory: %w", err)
	}
	return nil
}

// ListFiles returns the names of rendered files in the job directory,
// skipping dotfiles and the audio subdirectory.
func (j *JobDirs) ListFiles(jobID string) ([]string, error) {
	entries, err := os.ReadDir(j.JobDir(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, e.Name())
	}
	return files, nil
}

// Resolve maps a requested filename to an absolute path inside the job
// directory, rejecting path traversal.
func (j *JobDirs) Resolve(jobID, filename string) (string, error) {
	if filename == "" || strings.Contains(filename, "..") ||
		strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	path := filepath.Join(j.JobDir(jobID), filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("file %q not found for job %s", filename, jobID)
	}
	return path, nil
}

// Root returns the configured output root, used by the cleanup scheduler.
func (j *JobDirs) Root() string {
	return j.root
}

// SanitizeFilename strips characters that are unsafe in filenames and
// bounds the length, for bases derived from page titles.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
		`"`, "_", "<", "_", ">", "_", "|", "_", "\x00", "_",
	)
	result := strings.TrimSpace(replacer.Replace(name))
	if result == "" {
		result = "transcript"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
