package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcriptor/internal/client"
	"github.com/codebuildervaibhav/transcriptor/internal/jobs"
	"github.com/codebuildervaibhav/transcriptor/internal/types"
)

// jobwatch submits a transcription job (or attaches to an existing one)
// and follows its status until it finishes.
func main() {
	var (
		server   = flag.String("server", "http://localhost:8080", "transcription server base URL")
		jobID    = flag.String("job", "", "attach to an existing job instead of submitting")
		model    = flag.String("model", "whisper-1", "transcription model")
		formats  = flag.String("formats", "txt,srt", "comma-separated output formats")
		language = flag.String("language", "", "spoken language hint (optional)")
		speakers = flag.Bool("speakers", false, "request speaker labels")
		keep     = flag.Bool("keep-audio", false, "keep downloaded audio files")
		interval = flag.Duration("interval", time.Second, "poll interval")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	c := client.New(*server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id := *jobID
	if id == "" {
		urls := flag.Args()
		if len(urls) == 0 {
			fmt.Fprintln(os.Stderr, "usage: jobwatch [flags] URL [URL...]")
			fmt.Fprintln(os.Stderr, "       jobwatch [flags] -job JOB_ID")
			flag.PrintDefaults()
			os.Exit(2)
		}

		req := jobs.SubmitRequest{
			URLs: urls,
			Config: types.JobConfig{
				Model:         *model,
				Formats:       strings.Split(*formats, ","),
				AudioFormat:   "mp3",
				Language:      *language,
				SpeakerLabels: *speakers,
				KeepAudio:     *keep,
			},
		}
		var err error
		id, err = c.Submit(ctx, req)
		if err != nil {
			log.Fatalf("Submit failed: %v", err)
		}
		fmt.Printf("Submitted job %s (%d URLs)\n", id, len(urls))
	}

	poller := client.NewPoller(c, log)
	poller.Interval = *interval
	poller.OnUpdate = func(view jobs.StatusView) {
		fmt.Printf("[%s] %s\n", view.JobID, view.Status)
	}

	result, err := poller.Watch(ctx, id)
	if err != nil {
		log.Fatalf("Watch failed: %v", err)
	}

	printResult(result)
	if result.Status != types.StatusCompleted {
		os.Exit(1)
	}
}

func printResult(r jobs.ResultView) {
	fmt.Printf("\nJob %s finished: %s\n", r.JobID, r.Status)
	if r.ProcessedCount != nil {
		fmt.Printf("  processed: %d\n", *r.ProcessedCount)
	}
	for _, f := range r.Files {
		fmt.Printf("  file: %s\n", f)
	}
	for url, reason := range r.FailedURLs {
		fmt.Printf("  failed: %s (%s)\n", url, reason)
	}
	if r.Error != "" {
		fmt.Printf("  error: %s\n", r.Error)
	}
}
