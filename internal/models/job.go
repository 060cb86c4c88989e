package models

import (
	"time"

	"github.com/google/uuid"
)

// Job is the unit of work handed to the scheduler: what to analyze and
// who to tell. Fire-and-forget — there is no persisted status and no
// retry bookkeeping; completion is observed only through delivered
// messages.
type Job struct {
	ID      string          `json:"id"`
	Request AnalysisRequest `json:"request"`
	Context RequestContext  `json:"context"`
	Queued  time.Time       `json:"queued"`
}

func NewJob(req AnalysisRequest, reqCtx RequestContext) Job {
	return Job{
		ID:      uuid.New().String(),
		Request: req,
		Context: reqCtx,
		Queued:  time.Now(),
	}
}

type Stage string

const (
	StageFetching    Stage = "fetching"
	StageClassifying Stage = "classifying"
	StageEnriching   Stage = "enriching"
	StageJudging     Stage = "judging"
	StageFormatting  Stage = "formatting"
	StageDone        Stage = "done"
)

type StageStats struct {
	Stage     Stage         `json:"stage"`
	Duration  time.Duration `json:"duration"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Items     int           `json:"items,omitempty"`
	Skipped   int           `json:"skipped,omitempty"`
}

// JobContext tracks one pipeline run. Stages only move forward.
type JobContext struct {
	Job       Job                  `json:"job"`
	Stage     Stage                `json:"stage"`
	StartTime time.Time            `json:"start_time"`
	Stats     map[Stage]StageStats `json:"stats"`

	NewsItems  []NewsItem        `json:"news_items,omitempty"`
	Classified []ClassifiedStory `json:"classified,omitempty"`
	Enriched   []EnrichedStory   `json:"enriched,omitempty"`
	Analyzed   []AnalyzedStory   `json:"analyzed,omitempty"`
	Formatted  string            `json:"formatted,omitempty"`
}

func NewJobContext(job Job) *JobContext {
	return &JobContext{
		Job:       job,
		Stage:     StageFetching,
		StartTime: time.Now(),
		Stats:     make(map[Stage]StageStats),
	}
}

func (jc *JobContext) Advance(next Stage) {
	jc.Stage = next
}

func (jc *JobContext) RecordStage(stage Stage, start time.Time, items, skipped int) {
	end := time.Now()
	jc.Stats[stage] = StageStats{
		Stage:     stage,
		Duration:  end.Sub(start),
		StartTime: start,
		EndTime:   end,
		Items:     items,
		Skipped:   skipped,
	}
}

func (jc *JobContext) Duration() time.Duration {
	return time.Since(jc.StartTime)
}
