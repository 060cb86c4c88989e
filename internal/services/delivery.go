package services

import (
	"context"
	"time"

	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
)

// MessagePoster is the slice of the Slack client the delivery path needs.
type MessagePoster interface {
	PostMessage(ctx context.Context, channelID string, blocks []Block, fallbackText, threadTS string) (*PostMessageResponse, error)
	SendCallback(ctx context.Context, callbackURL string, payload any) error
}

// Delivery destinations form a closed set: results land in a channel as
// threaded messages, or in a response URL as one aggregated payload.
// The coordinator decides which based on what actually succeeded.
type Deliverer interface {
	deliveryTarget() string
}

// ChannelDelivery posts per-story summaries with threaded detail to a
// Slack channel.
type ChannelDelivery struct {
	ChannelID string
}

func (d ChannelDelivery) deliveryTarget() string { return d.ChannelID }

// CallbackDelivery sends one aggregated payload to a Slack response URL.
type CallbackDelivery struct {
	URL string
}

func (d CallbackDelivery) deliveryTarget() string { return d.URL }

// DeliveryService pushes finished analyses back to Slack: one summary
// message per story with the full analysis threaded underneath, then a
// completion notice. When not a single story could be posted, the whole
// report falls back to the job's response URL in one callback.
type DeliveryService struct {
	poster    MessagePoster
	postDelay time.Duration
	logger    *logger.Logger

	// swapped out in tests
	sleep func(time.Duration)
}

func NewDeliveryService(poster MessagePoster, postDelay time.Duration, log *logger.Logger) *DeliveryService {
	return &DeliveryService{
		poster:    poster,
		postDelay: postDelay,
		logger:    log,
		sleep:     time.Sleep,
	}
}

// Deliver posts the analysis for one job. A story counts as delivered
// only when its threaded detail landed, so the return value is the
// number of complete story deliveries; a return of zero means the
// aggregated fallback went to the response URL instead. Callback
// failures are logged, never fatal: the analysis already happened.
func (s *DeliveryService) Deliver(ctx context.Context, job models.Job, stories []models.AnalyzedStory) int {
	startTime := time.Now()
	posted := 0

	for i, story := range stories {
		if i > 0 && s.postDelay > 0 {
			s.sleep(s.postDelay)
		}

		if err := s.deliverStory(ctx, job.Context.ChannelID, story, i); err != nil {
			s.logger.WithError(err).WithFields(logger.Fields{
				"job_id": job.ID,
				"story":  story.Title,
			}).Error("failed to deliver story")
			continue
		}
		posted++
	}

	if posted == 0 {
		s.deliverFallback(ctx, job, stories)
	} else {
		s.deliverCompletionNotice(ctx, job)
	}

	s.logger.LogJob(job.ID, job.Context.UserID, "delivery_finished", time.Since(startTime), nil)
	return posted
}

func (s *DeliveryService) deliverStory(ctx context.Context, channelID string, story models.AnalyzedStory, index int) error {
	summary := FormatStorySummary(story, index)
	resp, err := s.poster.PostMessage(ctx, channelID, summary.Blocks, summary.Text, "")
	if err != nil {
		return err
	}

	thread := FormatStoryThread(story, index)
	if _, err := s.poster.PostMessage(ctx, channelID, thread.Blocks, thread.Text, resp.TS); err != nil {
		return err
	}

	return nil
}

func (s *DeliveryService) deliverFallback(ctx context.Context, job models.Job, stories []models.AnalyzedStory) {
	if job.Context.CallbackURL == "" {
		s.logger.WithFields(logger.Fields{"job_id": job.ID}).Error("no stories delivered and no callback URL available")
		return
	}

	payload := FormatAggregatedFallback(stories, job.Request, job.Context)
	if err := s.poster.SendCallback(ctx, job.Context.CallbackURL, payload); err != nil {
		s.logger.WithError(err).WithFields(logger.Fields{"job_id": job.ID}).Error("fallback callback failed")
	}
}

func (s *DeliveryService) deliverCompletionNotice(ctx context.Context, job models.Job) {
	if job.Context.UserName == "" {
		return
	}
	notice := FormatCompletionNotice(job.Context.UserName)
	if _, err := s.poster.PostMessage(ctx, job.Context.ChannelID, notice.Blocks, notice.Text, ""); err != nil {
		s.logger.WithError(err).WithFields(logger.Fields{"job_id": job.ID}).Warn("failed to post completion notice")
	}
}

// DeliverError reports a failed job to the requesting user through the
// response URL.
func (s *DeliveryService) DeliverError(ctx context.Context, job models.Job, jobErr error) {
	if job.Context.CallbackURL == "" {
		return
	}

	payload := FormatErrorPayload(jobErr.Error(), job.Request, job.Context)
	if err := s.poster.SendCallback(ctx, job.Context.CallbackURL, payload); err != nil {
		s.logger.WithError(err).WithFields(logger.Fields{"job_id": job.ID}).Error("error callback failed")
	}
}
