package studio

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/message"

	"studio/internal/domain"
	"studio/internal/infra/credentials"
	"studio/internal/providers/bria"
	"studio/internal/providers/prompt"
	"studio/internal/result"
	"studio/internal/session"
)

// ImageInput drives text-to-image generation.
type ImageInput struct {
	Prompt       string
	Style        string
	NumResults   int
	AspectRatio  string
	EnhanceImage bool
}

// EraseInput drives foreground removal.
type EraseInput struct {
	Image             []byte
	ContentModeration bool
}

// GenerateImages renders HD images from the session's effective prompt.
// The call is synchronous and always moderated.
func (s *Service) GenerateImages(ctx context.Context, call Call, in ImageInput) (*Outcome, error) {
	return s.run(ctx, call, "generate_images", func(st *session.State, out *Outcome, p *message.Printer) error {
		if strings.TrimSpace(in.Prompt) == "" {
			return fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
		}
		if in.Style != "" && !prompt.KnownStyle(in.Style) {
			return fmt.Errorf("%w: unknown style %q", domain.ErrInvalidInput, in.Style)
		}
		st.SetPrompt(in.Prompt)
		key, err := st.Credentials().Token(credentials.BackendBria)
		if err != nil {
			return err
		}
		n := in.NumResults
		if n == 0 {
			n = 1
		}
		raw, err := s.photo.GenerateHD(ctx, key, bria.HDImageParams{
			Prompt:            prompt.ApplyStyle(st.EffectivePrompt(in.Prompt), in.Style),
			NumResults:        n,
			AspectRatio:       in.AspectRatio,
			Sync:              true,
			EnhanceImage:      in.EnhanceImage,
			Medium:            prompt.MediumForStyle(in.Style),
			PromptEnhancement: false,
			ContentModeration: true,
		})
		if err != nil {
			return err
		}
		req := domain.NewGenerationRequest(domain.OperationHDImage, map[string]any{
			"prompt":       in.Prompt,
			"style":        in.Style,
			"aspect_ratio": in.AspectRatio,
		}, true, n)
		return s.apply(ctx, st, out, p, req, raw)
	})
}

// CreatePackshot renders a studio packshot. With ForceRemoveBG the
// background is removed first and the cut out image is what gets shot.
func (s *Service) CreatePackshot(ctx context.Context, call Call, in bria.PackshotParams) (*Outcome, error) {
	return s.run(ctx, call, "packshot", func(st *session.State, out *Outcome, p *message.Printer) error {
		key, err := st.Credentials().Token(credentials.BackendBria)
		if err != nil {
			return err
		}
		if in.ForceRemoveBG {
			cutout, err := s.removeBackground(ctx, key, in.Image, in.ContentModeration)
			if err != nil {
				return err
			}
			in.Image = cutout
		}
		raw, err := s.photo.Packshot(ctx, key, in)
		if err != nil {
			return err
		}
		req := domain.NewGenerationRequest(domain.OperationPackshot, map[string]any{
			"background_color": in.BackgroundColor,
			"force_rmbg":       in.ForceRemoveBG,
		}, true, 1)
		return s.apply(ctx, st, out, p, req, raw)
	})
}

func (s *Service) removeBackground(ctx context.Context, key string, image []byte, moderate bool) ([]byte, error) {
	raw, err := s.photo.RemoveBackground(ctx, key, image, moderate)
	if err != nil {
		return nil, err
	}
	urls, err := result.Extract(string(domain.OperationBackgroundRemoval), raw)
	if err != nil {
		return nil, err
	}
	data, _, err := s.photo.Download(ctx, urls[0])
	if err != nil {
		return nil, fmt.Errorf("studio: download cut out: %w", err)
	}
	return data, nil
}

func (s *Service) AddShadow(ctx context.Context, call Call, in bria.ShadowParams) (*Outcome, error) {
	return s.run(ctx, call, "shadow", func(st *session.State, out *Outcome, p *message.Printer) error {
		key, err := st.Credentials().Token(credentials.BackendBria)
		if err != nil {
			return err
		}
		raw, err := s.photo.AddShadow(ctx, key, in)
		if err != nil {
			return err
		}
		req := domain.NewGenerationRequest(domain.OperationShadow, map[string]any{
			"type":      in.Type,
			"intensity": in.Intensity,
			"blur":      in.Blur,
		}, true, 1)
		return s.apply(ctx, st, out, p, req, raw)
	})
}

// LifestyleByText places the product in a described scene.
func (s *Service) LifestyleByText(ctx context.Context, call Call, in bria.LifestyleTextParams) (*Outcome, error) {
	return s.run(ctx, call, "lifestyle_text", func(st *session.State, out *Outcome, p *message.Printer) error {
		key, err := st.Credentials().Token(credentials.BackendBria)
		if err != nil {
			return err
		}
		raw, err := s.photo.LifestyleByText(ctx, key, in)
		if err != nil {
			return err
		}
		req := domain.NewGenerationRequest(domain.OperationLifestyleText, map[string]any{
			"prompt":         in.SceneDescription,
			"placement_type": in.Placement.Type,
		}, in.Sync, in.NumResults)
		return s.apply(ctx, st, out, p, req, raw)
	})
}

// LifestyleByImage places the product in a scene borrowed from a reference.
func (s *Service) LifestyleByImage(ctx context.Context, call Call, in bria.LifestyleImageParams) (*Outcome, error) {
	return s.run(ctx, call, "lifestyle_image", func(st *session.State, out *Outcome, p *message.Printer) error {
		key, err := st.Credentials().Token(credentials.BackendBria)
		if err != nil {
			return err
		}
		raw, err := s.photo.LifestyleByImage(ctx, key, in)
		if err != nil {
			return err
		}
		req := domain.NewGenerationRequest(domain.OperationLifestyleImage, map[string]any{
			"placement_type": in.Placement.Type,
			"ref_influence":  in.RefInfluence,
		}, in.Sync, in.NumResults)
		return s.apply(ctx, st, out, p, req, raw)
	})
}

func (s *Service) GenerativeFill(ctx context.Context, call Call, in bria.FillParams) (*Outcome, error) {
	return s.run(ctx, call, "generative_fill", func(st *session.State, out *Outcome, p *message.Printer) error {
		key, err := st.Credentials().Token(credentials.BackendBria)
		if err != nil {
			return err
		}
		raw, err := s.photo.GenerativeFill(ctx, key, in)
		if err != nil {
			return err
		}
		req := domain.NewGenerationRequest(domain.OperationGenerativeFill, map[string]any{
			"prompt": in.Prompt,
			"seed":   in.Seed,
		}, in.Sync, in.NumResults)
		return s.apply(ctx, st, out, p, req, raw)
	})
}

func (s *Service) Erase(ctx context.Context, call Call, in EraseInput) (*Outcome, error) {
	return s.run(ctx, call, "erase", func(st *session.State, out *Outcome, p *message.Printer) error {
		key, err := st.Credentials().Token(credentials.BackendBria)
		if err != nil {
			return err
		}
		raw, err := s.photo.EraseForeground(ctx, key, in.Image, in.ContentModeration)
		if err != nil {
			return err
		}
		req := domain.NewGenerationRequest(domain.OperationErase, nil, true, 1)
		return s.apply(ctx, st, out, p, req, raw)
	})
}

// apply normalizes a raw response into the session. Async results are
// polled right away within the bounded attempt budget.
func (s *Service) apply(ctx context.Context, st *session.State, out *Outcome, p *message.Printer,
	req domain.GenerationRequest, raw any) error {
	res, err := result.Normalize(string(req.Kind()), raw, req.Sync(), req.NumResults())
	if err != nil {
		return err
	}
	if err := res.Validate(); err != nil {
		return &domain.MalformedResponseError{Operation: string(req.Kind())}
	}
	s.logger.Debug().
		Str("kind", string(req.Kind())).
		Bool("sync", req.Sync()).
		Fields(req.Params()).
		Msg("studio: result applied")
	st.ApplyResult(req.Kind(), res, req.Prompt())
	if !res.IsPending() {
		out.add(notice(p, LevelSuccess, CodeGenerated))
		return nil
	}
	out.add(notice(p, LevelInfo, CodePending, len(res.Pending)))
	polled := s.poller.Run(ctx, st.PendingURLs())
	st.ApplyPoll(polled.Ready, polled.Attempts)
	pollNotices(out, p, len(polled.Ready), len(polled.Pending))
	return nil
}

func pollNotices(out *Outcome, p *message.Printer, ready, pending int) {
	if ready > 0 {
		out.add(notice(p, LevelSuccess, CodeImagesReady, ready))
	}
	if pending > 0 {
		out.add(notice(p, LevelInfo, CodeStillPending, pending))
	}
}

// CheckPending probes every pending image URL once.
func (s *Service) CheckPending(ctx context.Context, call Call) (*Outcome, error) {
	return s.run(ctx, call, "check_pending", func(st *session.State, out *Outcome, p *message.Printer) error {
		urls := st.PendingURLs()
		if len(urls) == 0 {
			out.add(notice(p, LevelInfo, CodeNothingPending))
			return nil
		}
		ready, pending := s.poller.Check(ctx, urls)
		st.ApplyPoll(ready, 1)
		pollNotices(out, p, len(ready), len(pending))
		return nil
	})
}

// DismissJob drops a pending job without waiting for it.
func (s *Service) DismissJob(ctx context.Context, call Call, jobID string) (*Outcome, error) {
	return s.run(ctx, call, "dismiss_job", func(st *session.State, out *Outcome, p *message.Printer) error {
		if !st.RemoveJob(jobID) {
			return domain.ErrJobNotFound
		}
		out.add(notice(p, LevelSuccess, CodeJobDismissed))
		return nil
	})
}
