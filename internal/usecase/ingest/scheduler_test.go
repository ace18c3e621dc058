package ingest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

type reportSink struct {
	mu      sync.Mutex
	reports []domain.ValidationReport
	errs    []error
}

func (s *reportSink) observer() Observer {
	return Observer{
		OnValidationComplete: func(r domain.ValidationReport) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.reports = append(s.reports, r)
		},
		OnValidationFailed: func(err error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.errs = append(s.errs, err)
		},
	}
}

func (s *reportSink) snapshot() ([]domain.ValidationReport, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ValidationReport(nil), s.reports...), append([]error(nil), s.errs...)
}

func TestScheduler_CoalescesRapidSubmissions(t *testing.T) {
	sink := &reportSink{}
	scheduler := NewScheduler(NewPipeline(DefaultLimits(), zap.NewNop()), 50*time.Millisecond, sink.observer(), zap.NewNop())
	defer scheduler.Close()

	rows := []domain.RecipientRow{row(2, addrA, "1")}
	scheduler.Submit(rows)
	rows = append(rows, row(3, addrB, "2"))
	scheduler.Submit(rows)
	rows = append(rows, row(4, addrC, "3"))
	scheduler.Submit(rows)

	require.Eventually(t, func() bool {
		reports, _ := sink.snapshot()
		return len(reports) > 0
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	reports, errs := sink.snapshot()
	require.Len(t, reports, 1, "rapid submissions collapse into one pass")
	assert.Len(t, reports[0].Valid, 3, "the latest submission wins")
	assert.Empty(t, errs)
}

func TestScheduler_SeparatedSubmissionsRunEach(t *testing.T) {
	sink := &reportSink{}
	scheduler := NewScheduler(NewPipeline(DefaultLimits(), zap.NewNop()), 10*time.Millisecond, sink.observer(), zap.NewNop())
	defer scheduler.Close()

	scheduler.Submit([]domain.RecipientRow{row(2, addrA, "1")})
	require.Eventually(t, func() bool {
		reports, _ := sink.snapshot()
		return len(reports) == 1
	}, 2*time.Second, 5*time.Millisecond)

	scheduler.Submit([]domain.RecipientRow{row(2, addrA, "1"), row(3, addrA, "1")})
	require.Eventually(t, func() bool {
		reports, _ := sink.snapshot()
		return len(reports) == 2
	}, 2*time.Second, 5*time.Millisecond)

	reports, _ := sink.snapshot()
	assert.Len(t, reports[1].Duplicates, 1)
}

func TestScheduler_ReportsStructuralFailure(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxAddressCount = 1
	sink := &reportSink{}
	scheduler := NewScheduler(NewPipeline(limits, zap.NewNop()), 10*time.Millisecond, sink.observer(), zap.NewNop())
	defer scheduler.Close()

	scheduler.Submit([]domain.RecipientRow{row(2, addrA, "1"), row(3, addrB, "1")})

	require.Eventually(t, func() bool {
		_, errs := sink.snapshot()
		return len(errs) == 1
	}, 2*time.Second, 5*time.Millisecond)
	_, errs := sink.snapshot()
	assert.ErrorIs(t, errs[0], domain.ErrTooManyRows)
}

func TestScheduler_CloseIsIdempotent(t *testing.T) {
	scheduler := NewScheduler(NewPipeline(DefaultLimits(), zap.NewNop()), time.Hour, Observer{}, nil)
	scheduler.Submit([]domain.RecipientRow{row(2, addrA, "1")})

	scheduler.Close()
	scheduler.Close()
}
