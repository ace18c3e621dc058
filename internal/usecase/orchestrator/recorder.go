package orchestrator

import (
	"time"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// Recorder receives run telemetry
type Recorder interface {
	RunStarted(run domain.BatchRun)
	OperationFinished(outcome domain.TransferOutcome, elapsed time.Duration)
	AttemptRetried(kind domain.ErrorKind)
	RunFinished(run domain.BatchRun)
}

type noopRecorder struct{}

func (noopRecorder) RunStarted(domain.BatchRun) {}
func (noopRecorder) OperationFinished(domain.TransferOutcome, time.Duration) {}
func (noopRecorder) AttemptRetried(domain.ErrorKind) {}
func (noopRecorder) RunFinished(domain.BatchRun) {}
