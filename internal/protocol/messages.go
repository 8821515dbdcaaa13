package protocol

import "time"

// JobEvent is a job lifecycle notification broadcast on the bus. Polling the
// tracker stays the source of truth; bus consumers get the same snapshots
// pushed instead of pulled.
type JobEvent struct {
	JobID       string    `json:"job_id"`
	State       string    `json:"state"`
	Stage       string    `json:"stage,omitempty"`
	Chunk       int       `json:"chunk,omitempty"`
	TotalChunks int       `json:"total_chunks,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	ResultPath  string    `json:"result_path,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	// SubjectJobEventPrefix is suffixed with the job id.
	SubjectJobEventPrefix = "tta.jobs"
)

// SubjectJobEvents returns the per-job event subject.
func SubjectJobEvents(jobID string) string {
	return SubjectJobEventPrefix + "." + jobID
}
