package progress

import (
	"context"
	"time"

	"idmltranslator/internal/models"
)

// DefaultInterval is the delay between two cosmetic checkpoints.
const DefaultInterval = 2 * time.Second

// DefaultStages mirrors the backend pipeline. The percentages are not
// reported by the backend; they only keep the user informed while the single
// translate request is in flight.
var DefaultStages = []models.ProgressStage{
	{Label: "Extracting IDML file...", Percent: 10},
	{Label: "Applying Arabic formatting rules...", Percent: 20},
	{Label: "Translating text content...", Percent: 40},
	{Label: "Processing translation...", Percent: 60},
	{Label: "Mapping fonts for Arabic...", Percent: 80},
	{Label: "Reconstructing IDML file...", Percent: 90},
	{Label: "Generating Word document...", Percent: 95},
}

var (
	Starting = models.ProgressStage{Label: "Starting translation...", Percent: 0}
	Complete = models.ProgressStage{Label: "Translation complete!", Percent: 100}
)

// StageFunc receives each checkpoint as the sequencer reaches it.
type StageFunc func(stage models.ProgressStage)

// Sequencer advances a fixed list of checkpoints on a timer.
type Sequencer struct {
	stages   []models.ProgressStage
	interval time.Duration
}

// NewSequencer returns a sequencer over DefaultStages. A non-positive interval
// selects DefaultInterval.
func NewSequencer(interval time.Duration) *Sequencer {
	return NewSequencerWithStages(interval, DefaultStages)
}

func NewSequencerWithStages(interval time.Duration, stages []models.ProgressStage) *Sequencer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sequencer{
		stages:   append([]models.ProgressStage(nil), stages...),
		interval: interval,
	}
}

// Interval returns the delay between checkpoints.
func (s *Sequencer) Interval() time.Duration {
	return s.interval
}

// Stages returns a copy of the checkpoint list.
func (s *Sequencer) Stages() []models.ProgressStage {
	return append([]models.ProgressStage(nil), s.stages...)
}

// Run is one running sequence.
type Run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start emits one checkpoint per interval until the list is exhausted, ctx is
// cancelled or Stop is called. fn runs on the sequencer goroutine and must not
// call Stop.
func (s *Sequencer) Start(ctx context.Context, fn StageFunc) *Run {
	ctx, cancel := context.WithCancel(ctx)
	run := &Run{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(run.done)
		defer cancel()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for _, stage := range s.stages {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			// select picks randomly when both are ready
			if ctx.Err() != nil {
				return
			}
			fn(stage)
		}
	}()

	return run
}

// Stop cancels the sequence and waits for it to exit. No checkpoint is emitted
// after Stop returns. Stop is safe to call more than once.
func (r *Run) Stop() {
	r.cancel()
	<-r.done
}

// Done is closed once the sequence has exited.
func (r *Run) Done() <-chan struct{} {
	return r.done
}
