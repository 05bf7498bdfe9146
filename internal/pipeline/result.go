package pipeline

import "time"

// Stage marks how far a request progressed.
type Stage string

const (
	StageInit       Stage = "INIT"
	StageExpanding  Stage = "EXPANDING"
	StageAcquiring  Stage = "ACQUIRING"
	StageIndexing   Stage = "INDEXING"
	StageRetrieving Stage = "RETRIEVING"
	StageReranking  Stage = "RERANKING"
	StageGenerating Stage = "GENERATING"
	StageDone       Stage = "DONE"
	StageTimedOut   Stage = "TIMED_OUT"
	StageFailed     Stage = "FAILED"
)

// Failure reasons reported on unsuccessful results.
const (
	ReasonNoEvidence       = "NoEvidenceAvailable"
	ReasonDeadlineExceeded = "DeadlineExceeded"
	ReasonGenerationFailed = "GenerationFailed"
)

// Diagnostics summarizes what happened inside the pipeline, for logs and
// callers that want to explain a degraded answer.
type Diagnostics struct {
	QueriesIssued  int
	QueriesFailed  []string
	URLsAttempted  int
	URLsFailed     int
	PagesCrawled   int
	ChunksIndexed  int
	ChunksDropped  int
	Reranker       string
	ShortCircuited bool
}

// Result is the answer to one question.
type Result struct {
	Success        bool
	Answer         string
	Sources        []string
	Confidence     float64
	ProcessingTime float64 // seconds
	FailureReason  string
	Stage          Stage
	Diagnostics    Diagnostics
}

// elapsedSeconds rounds d to milliseconds for reporting.
func elapsedSeconds(d time.Duration) float64 {
	return float64(d.Round(time.Millisecond)) / float64(time.Second)
}
