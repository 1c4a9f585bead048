package types

// Status represents the lifecycle state of a transcription job.
type Status string

// Job status values. Pending is initial; Completed, Failed and Cancelled
// are terminal.
const (
	StatusPending      Status = "pending"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusFormatting   Status = "formatting"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelling   Status = "cancelling"
	StatusCancelled    Status = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Output format constants (subset accepted at submission).
const (
	FormatTXT = "txt"
	FormatSRT = "srt"
)

// JobConfig is the immutable snapshot of user-chosen options captured at
// submission time. A retry copies it verbatim into the new job.
type JobConfig struct {
	Model         string   `json:"model" validate:"required"`
	Formats       []string `json:"formats" validate:"required,min=1,dive,oneof=txt srt"`
	AudioFormat   string   `json:"audio_format" validate:"required"`
	Language      string   `json:"language,omitempty"`
	Prompt        string   `json:"prompt,omitempty"`
	Temperature   float64  `json:"temperature"`
	SpeakerLabels bool     `json:"speaker_labels"`
	KeepAudio     bool     `json:"keep_audio"`
}

// Clone returns a deep copy so a retried job cannot alias the original's
// format slice.
func (c JobConfig) Clone() JobConfig {
	out := c
	out.Formats = append([]string(nil), c.Formats...)
	return out
}

// Word is a word-level timestamp within a segment, present when the
// transcription backend supplies them.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Segment is a timestamped span of transcribed speech.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Words   []Word  `json:"words,omitempty"`
}

// Transcript is the structured result returned by a Transcriber.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}

// BatchResult aggregates the outcome of one pipeline run across all URLs
// of a job. FailedURLs maps each failed URL to its error message.
type BatchResult struct {
	ProcessedCount int               `json:"processed_count"`
	FailedURLs     map[string]string `json:"failed_urls,omitempty"`
	Files          []string          `json:"files,omitempty"`
	Cancelled      bool              `json:"-"`
}
