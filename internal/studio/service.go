package studio

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/message"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
	"studio/internal/poller"
	"studio/internal/providers/bria"
	"studio/internal/providers/prompt"
	"studio/internal/providers/video"
	"studio/internal/session"
	"studio/internal/storage"
)

// PhotoBackend is the product photography API.
type PhotoBackend interface {
	prompt.Backend
	RemoveBackground(ctx context.Context, apiKey string, image []byte, contentModeration bool) (any, error)
	Packshot(ctx context.Context, apiKey string, p bria.PackshotParams) (any, error)
	AddShadow(ctx context.Context, apiKey string, p bria.ShadowParams) (any, error)
	LifestyleByText(ctx context.Context, apiKey string, p bria.LifestyleTextParams) (any, error)
	LifestyleByImage(ctx context.Context, apiKey string, p bria.LifestyleImageParams) (any, error)
	GenerativeFill(ctx context.Context, apiKey string, p bria.FillParams) (any, error)
	EraseForeground(ctx context.Context, apiKey string, image []byte, contentModeration bool) (any, error)
	GenerateHD(ctx context.Context, apiKey string, p bria.HDImageParams) (any, error)
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// VideoQueue is the queued image-to-video backend.
type VideoQueue interface {
	Submit(ctx context.Context, apiKey, modelID string, p video.Params) (*video.Submission, error)
	Subscribe(ctx context.Context, apiKey, modelID string, p video.Params) (any, error)
	Status(ctx context.Context, apiKey, modelID, requestID string) (*video.QueueStatus, error)
	Result(ctx context.Context, apiKey, modelID, requestID string) (any, error)
	Upload(ctx context.Context, apiKey string, data []byte, filename string) (string, error)
}

// VeoBackend generates a clip synchronously and returns its bytes.
type VeoBackend interface {
	Generate(ctx context.Context, apiKey, prompt string, image []byte) (*video.VeoResult, error)
}

// ReadinessPoller checks whether async result URLs have materialized.
type ReadinessPoller interface {
	Check(ctx context.Context, urls []string) (ready, pending []string)
	Run(ctx context.Context, urls []string) poller.Outcome
}

// BlobStore holds clip bytes produced in process.
type BlobStore interface {
	Write(ctx context.Context, key, mime string, data []byte) (string, error)
	Read(ctx context.Context, key string) (storage.Blob, error)
}

type Options struct {
	Sessions *session.Manager
	Photo    PhotoBackend
	Enhancer prompt.Enhancer
	Queue    VideoQueue
	Veo      VeoBackend
	Catalog  *video.Catalog
	Poller   ReadinessPoller
	Blobs    BlobStore
	Logger   *infra.Logger
	Now      func() time.Time
	// VideoTimeout bounds a synchronous video generation; zero means the
	// request context alone bounds it.
	VideoTimeout time.Duration
}

// Service runs studio actions against one session at a time. Every action
// holds the session lock for its whole duration, so two actions on the same
// session never interleave while different sessions proceed in parallel.
type Service struct {
	sessions *session.Manager
	photo    PhotoBackend
	enhancer prompt.Enhancer
	queue    VideoQueue
	veo      VeoBackend
	catalog  *video.Catalog
	poller   ReadinessPoller
	blobs    BlobStore
	logger   *infra.Logger
	now      func() time.Time

	videoTimeout time.Duration
}

func New(opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	enhancer := opts.Enhancer
	if enhancer == nil && opts.Photo != nil {
		enhancer = prompt.NewBackendEnhancer(opts.Photo, opts.Logger)
	}
	return &Service{
		sessions: opts.Sessions,
		photo:    opts.Photo,
		enhancer: enhancer,
		queue:    opts.Queue,
		veo:      opts.Veo,
		catalog:  opts.Catalog,
		poller:   opts.Poller,
		blobs:    opts.Blobs,
		logger:   infra.LoggerOrDiscard(opts.Logger),
		now:      now,

		videoTimeout: opts.VideoTimeout,
	}
}

// Call identifies the session an action runs against and the locale its
// notices are rendered in.
type Call struct {
	SessionID string
	Locale    string
}

// VideoOutcome describes the state of a video request after an action.
type VideoOutcome struct {
	Backend       string           `json:"backend"`
	Status        string           `json:"status"`
	Model         string           `json:"model,omitempty"`
	JobID         string           `json:"job_id,omitempty"`
	RequestID     string           `json:"request_id,omitempty"`
	URL           string           `json:"url,omitempty"`
	QueuePosition int              `json:"queue_position,omitempty"`
	Logs          []map[string]any `json:"logs,omitempty"`
	Reason        string           `json:"reason,omitempty"`
}

// Outcome is what every action returns: the notices to show and the
// session as it stands afterwards.
type Outcome struct {
	Notices []Notice                `json:"notices"`
	Session session.Snapshot        `json:"session"`
	Prompt  *prompt.EnhanceResponse `json:"prompt,omitempty"`
	Video   *VideoOutcome           `json:"video,omitempty"`
}

func (o *Outcome) add(n Notice) { o.Notices = append(o.Notices, n) }

// Failed reports whether the action ended with an error notice.
func (o *Outcome) Failed() (Notice, bool) {
	for _, n := range o.Notices {
		if n.Level == LevelError {
			return n, true
		}
	}
	return Notice{}, false
}

type action func(st *session.State, out *Outcome, p *message.Printer) error

// run executes fn under the session lock. Backend and validation errors
// become notices; only a missing session or a cancelled context is
// returned as an error.
func (s *Service) run(ctx context.Context, call Call, name string, fn action) (*Outcome, error) {
	p := printerFor(call.Locale)
	out := &Outcome{Notices: []Notice{}}
	err := s.sessions.With(ctx, call.SessionID, func(st *session.State) error {
		if err := fn(st, out, p); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Warn().Err(err).Str("session", call.SessionID).Str("action", name).Msg("studio: action failed")
			out.add(failureNotice(p, err))
		}
		out.Session = st.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func failureNotice(p *message.Printer, err error) Notice {
	var authErr *domain.AuthError
	var remoteErr *domain.RemoteError
	var malformedErr *domain.MalformedResponseError
	switch {
	case errors.As(err, &authErr):
		return notice(p, LevelError, CodeAuthRequired, backendLabel(authErr.Backend))
	case errors.As(err, &remoteErr) && remoteErr.IsModeration():
		return notice(p, LevelError, CodeModeration)
	case errors.As(err, &remoteErr):
		return notice(p, LevelError, CodeRemoteError, remoteErr.Status)
	case errors.As(err, &malformedErr):
		return notice(p, LevelError, CodeNoResult)
	case errors.Is(err, domain.ErrJobNotFound):
		return notice(p, LevelError, CodeJobNotFound)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, credentials.ErrUnknownBackend):
		return notice(p, LevelError, CodeInvalidInput, invalidDetail(err))
	default:
		return notice(p, LevelError, CodeRequestError)
	}
}

func invalidDetail(err error) string {
	msg := err.Error()
	for _, prefix := range []string{domain.ErrInvalidInput.Error() + ": ", "credentials: "} {
		if i := strings.Index(msg, prefix); i >= 0 {
			msg = msg[i+len(prefix):]
		}
	}
	return msg
}

func backendLabel(backend string) string {
	switch backend {
	case credentials.BackendBria:
		return "Bria"
	case credentials.BackendFal:
		return "fal.ai"
	case credentials.BackendGoogle:
		return "Google"
	default:
		return backend
	}
}

// SetCredentials stores session keys. A blank value clears the session key
// so the process level one applies again.
func (s *Service) SetCredentials(ctx context.Context, call Call, keys map[string]string) (*Outcome, error) {
	return s.run(ctx, call, "set_credentials", func(st *session.State, out *Outcome, p *message.Printer) error {
		for backend, key := range keys {
			if err := st.Credentials().Set(backend, key); err != nil {
				return err
			}
		}
		out.add(notice(p, LevelSuccess, CodeCredentialsSet))
		return nil
	})
}

// EnhancePrompt replaces the session's enhanced prompt with the first
// variation the backend offers. Backend failures keep the original prompt.
func (s *Service) EnhancePrompt(ctx context.Context, call Call, text string) (*Outcome, error) {
	return s.run(ctx, call, "enhance_prompt", func(st *session.State, out *Outcome, p *message.Printer) error {
		st.SetPrompt(text)
		key, err := st.Credentials().Token(credentials.BackendBria)
		if err != nil {
			return err
		}
		resp, err := s.enhancer.Enhance(ctx, prompt.EnhanceRequest{Prompt: text, APIKey: key})
		if err != nil {
			return err
		}
		out.Prompt = resp
		if resp.Fallback {
			out.add(notice(p, LevelWarning, CodePromptFallback))
			return nil
		}
		st.SetEnhancedPrompt(resp.Original, resp.Enhanced)
		out.add(notice(p, LevelSuccess, CodePromptEnhanced))
		return nil
	})
}

// Session returns the current snapshot.
func (s *Service) Session(ctx context.Context, id string) (session.Snapshot, error) {
	return s.sessions.Snapshot(ctx, id)
}

// Catalog lists the queued video models.
func (s *Service) Catalog() []video.Model {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Models()
}
