package studio

import (
	"context"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/message"

	"studio/internal/domain"
	"studio/internal/infra/credentials"
	"studio/internal/providers/video"
	"studio/internal/result"
	"studio/internal/session"
)

// Video backends selectable per request.
const (
	VideoBackendFal = "fal"
	VideoBackendVeo = "veo"
)

// Video outcome statuses.
const (
	VideoSubmitted  = "submitted"
	VideoCompleted  = "completed"
	VideoInProgress = "in_progress"
	VideoFailed     = "failed"
)

// VideoInput drives image-to-video generation. Image wins over ImageURL.
type VideoInput struct {
	Backend        string
	Model          string
	Prompt         string
	Image          []byte
	Filename       string
	ImageURL       string
	Duration       int
	FPS            int
	AspectRatio    string
	MotionStrength *float64
	Seed           int
	Async          bool
}

// GenerateVideo animates a product image. The queued backend either waits
// for the clip or registers a pending job; Veo always waits and keeps the
// clip bytes in the blob store.
func (s *Service) GenerateVideo(ctx context.Context, call Call, in VideoInput) (*Outcome, error) {
	return s.run(ctx, call, "generate_video", func(st *session.State, out *Outcome, p *message.Printer) error {
		if strings.TrimSpace(in.Prompt) == "" {
			return fmt.Errorf("%w: video prompt is required", domain.ErrInvalidInput)
		}
		switch strings.ToLower(in.Backend) {
		case "", VideoBackendFal:
			return s.queueVideo(ctx, st, out, p, in)
		case VideoBackendVeo:
			return s.veoVideo(ctx, st, out, p, in)
		default:
			return fmt.Errorf("%w: unknown video backend %q", domain.ErrInvalidInput, in.Backend)
		}
	})
}

func (s *Service) queueVideo(ctx context.Context, st *session.State, out *Outcome, p *message.Printer, in VideoInput) error {
	model, ok := s.catalog.Lookup(in.Model)
	if !ok {
		return fmt.Errorf("%w: unknown video model %q", domain.ErrInvalidInput, in.Model)
	}
	key, err := st.Credentials().Token(credentials.BackendFal)
	if err != nil {
		return err
	}
	imageURL := in.ImageURL
	if len(in.Image) > 0 {
		name := in.Filename
		if name == "" {
			name = "product"
		}
		if imageURL, err = s.queue.Upload(ctx, key, in.Image, name); err != nil {
			return err
		}
	}
	params, err := model.Constrain(video.Params{
		ImageURL:       imageURL,
		Prompt:         in.Prompt,
		Duration:       in.Duration,
		FPS:            in.FPS,
		AspectRatio:    in.AspectRatio,
		MotionStrength: in.MotionStrength,
		Seed:           in.Seed,
	})
	if err != nil {
		return err
	}

	if in.Async {
		sub, err := s.queue.Submit(ctx, key, model.ID, params)
		if err != nil {
			return err
		}
		job := st.AddVideoJob(sub.RequestID, model.ID, in.Prompt)
		out.Video = &VideoOutcome{
			Backend:   VideoBackendFal,
			Status:    VideoSubmitted,
			Model:     model.ID,
			JobID:     job.ID,
			RequestID: sub.RequestID,
		}
		out.add(notice(p, LevelInfo, CodeVideoSubmitted, sub.RequestID))
		return nil
	}

	waitCtx, cancel := s.videoContext(ctx)
	defer cancel()
	raw, err := s.queue.Subscribe(waitCtx, key, model.ID, params)
	if err != nil {
		return err
	}
	url := result.VideoURL(raw)
	if url == "" {
		return &domain.MalformedResponseError{Operation: string(domain.OperationVideo)}
	}
	st.SetVideo(session.Video{Backend: VideoBackendFal, Model: model.ID, Prompt: in.Prompt, URL: url})
	out.Video = &VideoOutcome{Backend: VideoBackendFal, Status: VideoCompleted, Model: model.ID, URL: url}
	out.add(notice(p, LevelSuccess, CodeVideoReady))
	return nil
}

func (s *Service) veoVideo(ctx context.Context, st *session.State, out *Outcome, p *message.Printer, in VideoInput) error {
	key, err := st.Credentials().Token(credentials.BackendGoogle)
	if err != nil {
		return err
	}
	image := in.Image
	if len(image) == 0 && in.ImageURL != "" {
		if image, _, err = s.photo.Download(ctx, in.ImageURL); err != nil {
			return fmt.Errorf("studio: download source image: %w", err)
		}
	}
	waitCtx, cancel := s.videoContext(ctx)
	defer cancel()
	res, err := s.veo.Generate(waitCtx, key, in.Prompt, image)
	if err != nil {
		return err
	}
	if res.Status != video.VeoCompleted {
		out.Video = &VideoOutcome{Backend: VideoBackendVeo, Status: VideoFailed, Reason: res.Reason}
		out.add(notice(p, LevelWarning, CodeVideoFailed, res.Reason))
		return nil
	}
	blobKey, err := s.blobs.Write(ctx, path.Join(st.ID(), res.Filename), res.MIMEType, res.Video)
	if err != nil {
		return fmt.Errorf("studio: store clip: %w", err)
	}
	st.SetVideo(session.Video{
		Backend:  VideoBackendVeo,
		Prompt:   in.Prompt,
		BlobKey:  blobKey,
		Filename: res.Filename,
		MIMEType: res.MIMEType,
	})
	out.Video = &VideoOutcome{Backend: VideoBackendVeo, Status: VideoCompleted}
	out.add(notice(p, LevelSuccess, CodeVideoReady))
	return nil
}

func (s *Service) videoContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.videoTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.videoTimeout)
}

func (s *Service) videoJob(st *session.State, jobID string) (domain.PendingJob, error) {
	job, ok := st.Job(jobID)
	if !ok || !job.IsVideo() {
		return domain.PendingJob{}, domain.ErrJobNotFound
	}
	return job, nil
}

// VideoStatus asks the queue where an async video request stands.
func (s *Service) VideoStatus(ctx context.Context, call Call, jobID string) (*Outcome, error) {
	return s.run(ctx, call, "video_status", func(st *session.State, out *Outcome, p *message.Printer) error {
		job, err := s.videoJob(st, jobID)
		if err != nil {
			return err
		}
		key, err := st.Credentials().Token(credentials.BackendFal)
		if err != nil {
			return err
		}
		status, err := s.queue.Status(ctx, key, job.Model, job.RequestID)
		if err != nil {
			return err
		}
		st.MarkChecked(job.ID)
		out.Video = &VideoOutcome{
			Backend:       VideoBackendFal,
			Status:        VideoInProgress,
			Model:         job.Model,
			JobID:         job.ID,
			RequestID:     job.RequestID,
			QueuePosition: status.QueuePosition,
			Logs:          status.Logs,
		}
		if status.Completed() {
			out.Video.Status = VideoCompleted
			out.add(notice(p, LevelInfo, CodeVideoCompleted))
			return nil
		}
		out.add(notice(p, LevelInfo, CodeVideoInProgress, status.Status))
		return nil
	})
}

// VideoResult fetches a finished async clip. The job is removed once the
// clip location is known; otherwise it stays pending.
func (s *Service) VideoResult(ctx context.Context, call Call, jobID string) (*Outcome, error) {
	return s.run(ctx, call, "video_result", func(st *session.State, out *Outcome, p *message.Printer) error {
		job, err := s.videoJob(st, jobID)
		if err != nil {
			return err
		}
		key, err := st.Credentials().Token(credentials.BackendFal)
		if err != nil {
			return err
		}
		raw, err := s.queue.Result(ctx, key, job.Model, job.RequestID)
		if err != nil {
			return err
		}
		st.MarkChecked(job.ID)
		url := result.VideoURL(raw)
		out.Video = &VideoOutcome{
			Backend:   VideoBackendFal,
			Status:    VideoInProgress,
			Model:     job.Model,
			JobID:     job.ID,
			RequestID: job.RequestID,
		}
		if url == "" {
			out.add(notice(p, LevelInfo, CodeVideoInProgress, VideoInProgress))
			return nil
		}
		st.RemoveJob(job.ID)
		st.SetVideo(session.Video{Backend: VideoBackendFal, Model: job.Model, Prompt: job.Prompt, URL: url})
		out.Video.Status = VideoCompleted
		out.Video.URL = url
		out.add(notice(p, LevelSuccess, CodeVideoReady))
		return nil
	})
}
