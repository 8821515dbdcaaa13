package jobs

import "time"

// State is the lifecycle position of one conversion job.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError
}

// Stage names the pipeline phase a processing job is in.
type Stage string

const (
	StageExtracting   Stage = "extracting"
	StageSynthesizing Stage = "synthesizing"
	StageMerging      Stage = "merging"
)

// Progress carries chunk-level position for status polling.
type Progress struct {
	Stage       Stage `json:"stage,omitempty"`
	Chunk       int   `json:"chunk,omitempty"`
	TotalChunks int   `json:"totalChunks,omitempty"`
}

// Job is one end-to-end conversion tracked from submission to terminal
// outcome. Records are replaced whole per transition; readers always see a
// consistent snapshot.
type Job struct {
	ID             string    `json:"id"`
	State          State     `json:"state"`
	Progress       Progress  `json:"progress"`
	Voice          string    `json:"voice"`
	SourceFile     string    `json:"sourceFile"`
	OutputFilename string    `json:"outputFilename"`
	ResultPath     string    `json:"resultPath,omitempty"`
	ErrorDetail    string    `json:"errorDetail,omitempty"`
	DiagnosticDir  string    `json:"diagnosticDir,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
