package download

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// YtdlpDownloader fetches audio from a remote video URL using the yt-dlp
// binary. yt-dlp must be installed and on PATH (or configured explicitly).
type YtdlpDownloader struct {
	// BinPath is the yt-dlp executable, "yt-dlp" when empty.
	BinPath string

	log *logrus.Entry
}

// NewYtdlpDownloader creates a downloader shelling out to the given binary.
func NewYtdlpDownloader(binPath string, log *logrus.Logger) *YtdlpDownloader {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &YtdlpDownloader{
		BinPath: binPath,
		log:     log.WithField("component", "downloader"),
	}
}

// Download extracts the audio track of url into outputDir in the requested
// audio format and returns the path of the produced file.
func (d *YtdlpDownloader) Download(ctx context.Context, url, outputDir, audioFormat string) (string, error) {
	base := uuid.New().String()
	outTemplate := filepath.Join(outputDir, base+".%(ext)s")

	cmd := exec.CommandContext(ctx, d.BinPath,
		"-x", // Extract audio
		"--audio-format", audioFormat,
		"--no-playlist",
		"-o", outTemplate,
		url,
	)

	d.log.Infof("Downloading audio: %s", url)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %v\nOutput: %s", err, string(output))
	}

	// yt-dlp picks the extension; locate whatever it produced.
	matches, err := filepath.Glob(filepath.Join(outputDir, base+".*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("yt-dlp reported success but no output file found for %s", url)
	}

	d.log.Infof("Audio saved to %s", matches[0])
	return matches[0], nil
}
