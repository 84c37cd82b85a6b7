package studio

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
	"studio/internal/infra/credentials"
	"studio/internal/poller"
	"studio/internal/providers/bria"
	"studio/internal/providers/video"
	"studio/internal/session"
	"studio/internal/storage"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type fakePhoto struct {
	calls     []string
	response  any
	err       error
	hdParams  bria.HDImageParams
	packshot  bria.PackshotParams
	downloads map[string][]byte
}

func (f *fakePhoto) record(name string) (any, error) {
	f.calls = append(f.calls, name)
	return f.response, f.err
}

func (f *fakePhoto) EnhancePrompt(ctx context.Context, apiKey, prompt string) (any, error) {
	return f.record("enhance")
}

func (f *fakePhoto) RemoveBackground(ctx context.Context, apiKey string, image []byte, moderate bool) (any, error) {
	f.calls = append(f.calls, "rmbg")
	return map[string]any{"result_url": "https://cdn/cutout.png"}, nil
}

func (f *fakePhoto) Packshot(ctx context.Context, apiKey string, p bria.PackshotParams) (any, error) {
	f.packshot = p
	return f.record("packshot")
}

func (f *fakePhoto) AddShadow(ctx context.Context, apiKey string, p bria.ShadowParams) (any, error) {
	return f.record("shadow")
}

func (f *fakePhoto) LifestyleByText(ctx context.Context, apiKey string, p bria.LifestyleTextParams) (any, error) {
	return f.record("lifestyle_text")
}

func (f *fakePhoto) LifestyleByImage(ctx context.Context, apiKey string, p bria.LifestyleImageParams) (any, error) {
	return f.record("lifestyle_image")
}

func (f *fakePhoto) GenerativeFill(ctx context.Context, apiKey string, p bria.FillParams) (any, error) {
	return f.record("fill")
}

func (f *fakePhoto) EraseForeground(ctx context.Context, apiKey string, image []byte, moderate bool) (any, error) {
	return f.record("erase")
}

func (f *fakePhoto) GenerateHD(ctx context.Context, apiKey string, p bria.HDImageParams) (any, error) {
	f.hdParams = p
	return f.record("hd")
}

func (f *fakePhoto) Download(ctx context.Context, url string) ([]byte, string, error) {
	f.calls = append(f.calls, "download "+url)
	if data, ok := f.downloads[url]; ok {
		return data, "image/png", nil
	}
	return pngBytes, "image/png", nil
}

type fakePoller struct {
	runs   int
	checks int
	ready  map[string]bool
}

func (f *fakePoller) Check(ctx context.Context, urls []string) (ready, pending []string) {
	f.checks++
	for _, u := range urls {
		if f.ready[u] {
			ready = append(ready, u)
		} else {
			pending = append(pending, u)
		}
	}
	return ready, pending
}

func (f *fakePoller) Run(ctx context.Context, urls []string) poller.Outcome {
	f.runs++
	ready, pending := f.Check(ctx, urls)
	return poller.Outcome{Ready: ready, Pending: pending, Attempts: poller.DefaultMaxAttempts}
}

type fakeQueue struct {
	uploaded  bool
	submitted video.Params
	status    string
	result    any
}

func (f *fakeQueue) Submit(ctx context.Context, apiKey, modelID string, p video.Params) (*video.Submission, error) {
	f.submitted = p
	return &video.Submission{RequestID: "req-9"}, nil
}

func (f *fakeQueue) Subscribe(ctx context.Context, apiKey, modelID string, p video.Params) (any, error) {
	f.submitted = p
	return f.result, nil
}

func (f *fakeQueue) Status(ctx context.Context, apiKey, modelID, requestID string) (*video.QueueStatus, error) {
	return &video.QueueStatus{Status: f.status}, nil
}

func (f *fakeQueue) Result(ctx context.Context, apiKey, modelID, requestID string) (any, error) {
	return f.result, nil
}

func (f *fakeQueue) Upload(ctx context.Context, apiKey string, data []byte, filename string) (string, error) {
	f.uploaded = true
	return "https://fal.media/upload.png", nil
}

type fakeVeo struct {
	res *video.VeoResult
}

func (f *fakeVeo) Generate(ctx context.Context, apiKey, prompt string, image []byte) (*video.VeoResult, error) {
	return f.res, nil
}

type fixture struct {
	svc    *Service
	photo  *fakePhoto
	poller *fakePoller
	queue  *fakeQueue
	veo    *fakeVeo
	blobs  *storage.MemoryStore
	call   Call
}

func newFixture(t *testing.T, env map[string]string) *fixture {
	t.Helper()
	catalog, err := video.DefaultCatalog()
	require.NoError(t, err)
	f := &fixture{
		photo:  &fakePhoto{},
		poller: &fakePoller{ready: map[string]bool{}},
		queue:  &fakeQueue{},
		veo:    &fakeVeo{},
		blobs:  storage.NewMemoryStore(0),
	}
	sessions := session.NewManager(session.Options{Env: env})
	f.svc = New(Options{
		Sessions: sessions,
		Photo:    f.photo,
		Queue:    f.queue,
		Veo:      f.veo,
		Catalog:  catalog,
		Poller:   f.poller,
		Blobs:    f.blobs,
		Now:      func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	})
	f.call = Call{SessionID: sessions.Create().ID, Locale: "en"}
	return f
}

var allKeys = map[string]string{
	credentials.BackendBria:   "bria-key",
	credentials.BackendFal:    "fal-key",
	credentials.BackendGoogle: "google-key",
}

func codes(out *Outcome) []string {
	var cs []string
	for _, n := range out.Notices {
		cs = append(cs, n.Code)
	}
	return cs
}

func TestSyncPackshotSetsCurrentResult(t *testing.T) {
	f := newFixture(t, allKeys)
	f.photo.response = map[string]any{"result_url": "https://cdn/p.png"}

	out, err := f.svc.CreatePackshot(context.Background(), f.call, bria.PackshotParams{Image: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, []string{CodeGenerated}, codes(out))
	assert.Equal(t, "https://cdn/p.png", out.Session.CurrentResult)
	assert.Empty(t, out.Session.Pending)
	assert.Zero(t, f.poller.runs)
}

func TestPackshotForceRemoveBackground(t *testing.T) {
	f := newFixture(t, allKeys)
	cutout := append([]byte("\x89PNG\r\n\x1a\ncut"), make([]byte, 16)...)
	f.photo.downloads = map[string][]byte{"https://cdn/cutout.png": cutout}
	f.photo.response = map[string]any{"result_url": "https://cdn/p.png"}

	_, err := f.svc.CreatePackshot(context.Background(), f.call, bria.PackshotParams{Image: pngBytes, ForceRemoveBG: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"rmbg", "download https://cdn/cutout.png", "packshot"}, f.photo.calls)
	assert.Equal(t, cutout, f.photo.packshot.Image)
}

func TestAsyncLifestyleTruncatesAndPollsOnce(t *testing.T) {
	f := newFixture(t, allKeys)
	f.photo.response = map[string]any{"result_urls": []any{"u1", "u2", "u3", "u4", "u5"}}
	f.poller.ready["u2"] = true

	out, err := f.svc.LifestyleByText(context.Background(), f.call, bria.LifestyleTextParams{
		Image: pngBytes, SceneDescription: "kitchen counter", NumResults: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.poller.runs)
	assert.Equal(t, []string{CodePending, CodeImagesReady, CodeStillPending}, codes(out))
	assert.Equal(t, "u2", out.Session.CurrentResult)

	var pending []string
	for _, j := range out.Session.Pending {
		pending = append(pending, j.URL)
		assert.Equal(t, poller.DefaultMaxAttempts, j.Attempts)
		assert.Equal(t, "kitchen counter", j.Prompt)
	}
	assert.Equal(t, []string{"u1", "u3", "u4"}, pending)
}

func TestMissingCredentialSkipsNetwork(t *testing.T) {
	f := newFixture(t, nil)
	out, err := f.svc.AddShadow(context.Background(), f.call, bria.ShadowParams{Image: pngBytes})
	require.NoError(t, err)
	n, failed := out.Failed()
	require.True(t, failed)
	assert.Equal(t, CodeAuthRequired, n.Code)
	assert.Contains(t, n.Message, "Bria")
	assert.Empty(t, f.photo.calls)
}

func TestSessionKeyWins(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.SetCredentials(context.Background(), f.call, map[string]string{credentials.BackendBria: "mine"})
	require.NoError(t, err)
	f.photo.response = map[string]any{"result_url": "https://cdn/e.png"}
	out, err := f.svc.Erase(context.Background(), f.call, EraseInput{Image: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, credentials.SourceSession, out.Session.Credentials[credentials.BackendBria])
	assert.Equal(t, "https://cdn/e.png", out.Session.CurrentResult)
}

func TestModerationNotice(t *testing.T) {
	f := newFixture(t, allKeys)
	f.photo.err = &domain.RemoteError{Backend: "bria", Operation: "fill", Status: 422}
	out, err := f.svc.GenerativeFill(context.Background(), f.call, bria.FillParams{Image: pngBytes, Prompt: "a vase"})
	require.NoError(t, err)
	n, failed := out.Failed()
	require.True(t, failed)
	assert.Equal(t, CodeModeration, n.Code)
}

func TestMalformedResponseNotice(t *testing.T) {
	f := newFixture(t, allKeys)
	f.photo.response = map[string]any{"status": "ok"}
	out, err := f.svc.LifestyleByImage(context.Background(), f.call, bria.LifestyleImageParams{Image: pngBytes, Reference: pngBytes})
	require.NoError(t, err)
	n, _ := out.Failed()
	assert.Equal(t, CodeNoResult, n.Code)
}

func TestLocalizedNotice(t *testing.T) {
	f := newFixture(t, nil)
	call := f.call
	call.Locale = "id-ID"
	out, err := f.svc.Erase(context.Background(), call, EraseInput{Image: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, "Masukkan API key Bria Anda.", out.Notices[0].Message)
}

func TestGenerateImagesUsesEnhancedPromptAndStyle(t *testing.T) {
	f := newFixture(t, allKeys)
	f.photo.response = map[string]any{"prompt variations": []any{"a glossy red mug"}}
	out, err := f.svc.EnhancePrompt(context.Background(), f.call, "red mug")
	require.NoError(t, err)
	require.NotNil(t, out.Prompt)
	assert.Equal(t, "a glossy red mug", out.Session.EnhancedPrompt)

	f.photo.response = map[string]any{"result_urls": []any{"h1", "h2"}}
	out, err = f.svc.GenerateImages(context.Background(), f.call, ImageInput{Prompt: "red mug", Style: "Watercolor", NumResults: 2})
	require.NoError(t, err)
	assert.Equal(t, out.Session.EnhancedPrompt+", in watercolor style", f.photo.hdParams.Prompt)
	assert.Equal(t, "art", f.photo.hdParams.Medium)
	assert.True(t, f.photo.hdParams.Sync)
	assert.True(t, f.photo.hdParams.ContentModeration)
	assert.False(t, f.photo.hdParams.PromptEnhancement)
	assert.Equal(t, []string{"h1", "h2"}, out.Session.Generated)
	assert.Equal(t, "h1", out.Session.CurrentResult)
}

func TestEnhanceFallbackKeepsPrompt(t *testing.T) {
	f := newFixture(t, allKeys)
	f.photo.err = errors.New("boom")
	out, err := f.svc.EnhancePrompt(context.Background(), f.call, "red mug")
	require.NoError(t, err)
	assert.Equal(t, []string{CodePromptFallback}, codes(out))
	assert.Empty(t, out.Session.EnhancedPrompt)
}

func TestCheckPendingAndDismiss(t *testing.T) {
	f := newFixture(t, allKeys)
	ctx := context.Background()

	out, err := f.svc.CheckPending(ctx, f.call)
	require.NoError(t, err)
	assert.Equal(t, []string{CodeNothingPending}, codes(out))

	f.photo.response = map[string]any{"urls": []any{"a", "b"}}
	out, err = f.svc.GenerativeFill(ctx, f.call, bria.FillParams{Image: pngBytes, Prompt: "vase", NumResults: 2})
	require.NoError(t, err)
	require.Len(t, out.Session.Pending, 2)

	f.poller.ready["a"] = true
	f.poller.ready["b"] = true
	out, err = f.svc.CheckPending(ctx, f.call)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Session.Generated)
	assert.Empty(t, out.Session.Pending)

	out, err = f.svc.DismissJob(ctx, f.call, "nope")
	require.NoError(t, err)
	n, _ := out.Failed()
	assert.Equal(t, CodeJobNotFound, n.Code)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t, allKeys)
	_, err := f.svc.CheckPending(context.Background(), Call{SessionID: "missing"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestQueueVideoSyncAndAsync(t *testing.T) {
	f := newFixture(t, allKeys)
	ctx := context.Background()
	f.queue.result = map[string]any{"video": map[string]any{"url": "https://cdn/v.mp4"}}

	out, err := f.svc.GenerateVideo(ctx, f.call, VideoInput{Model: "luma", Prompt: "slow orbit", Image: pngBytes, Filename: "p.png", FPS: 24})
	require.NoError(t, err)
	assert.True(t, f.queue.uploaded)
	assert.Equal(t, "https://fal.media/upload.png", f.queue.submitted.ImageURL)
	assert.Zero(t, f.queue.submitted.FPS)
	assert.Equal(t, "https://cdn/v.mp4", out.Session.LastVideo.URL)

	out, err = f.svc.GenerateVideo(ctx, f.call, VideoInput{Model: "minimax", Prompt: "pan", ImageURL: "https://img/p.png", Async: true})
	require.NoError(t, err)
	require.NotNil(t, out.Video)
	assert.Equal(t, VideoSubmitted, out.Video.Status)
	jobID := out.Video.JobID
	require.Len(t, out.Session.Pending, 1)

	f.queue.status = video.StatusCompleted
	out, err = f.svc.VideoStatus(ctx, f.call, "req-9")
	require.NoError(t, err)
	assert.Equal(t, VideoCompleted, out.Video.Status)

	f.queue.result = map[string]any{"url": "https://cdn/v2.mp4"}
	out, err = f.svc.VideoResult(ctx, f.call, jobID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v2.mp4", out.Video.URL)
	assert.Empty(t, out.Session.Pending)

	media, err := f.svc.LatestVideo(ctx, f.call.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v2.mp4", media.URL)
}

func TestVeoVideoStoresClip(t *testing.T) {
	f := newFixture(t, allKeys)
	f.veo.res = &video.VeoResult{Status: video.VeoCompleted, Video: []byte("mp4"), MIMEType: "video/mp4", Filename: "veo_video_1.mp4"}

	out, err := f.svc.GenerateVideo(context.Background(), f.call, VideoInput{Backend: VideoBackendVeo, Prompt: "drone", ImageURL: "https://img/p.png"})
	require.NoError(t, err)
	require.NotNil(t, out.Session.LastVideo)
	assert.Equal(t, f.call.SessionID+"/veo_video_1.mp4", out.Session.LastVideo.BlobKey)
	assert.Contains(t, f.photo.calls, "download https://img/p.png")

	media, err := f.svc.LatestVideo(context.Background(), f.call.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4"), media.Data)
	assert.Equal(t, "veo_video_1.mp4", media.Filename)

	f.veo.res = &video.VeoResult{Status: video.VeoFailed, Reason: "filtered"}
	out, err = f.svc.GenerateVideo(context.Background(), f.call, VideoInput{Backend: VideoBackendVeo, Prompt: "drone"})
	require.NoError(t, err)
	assert.Equal(t, VideoFailed, out.Video.Status)
	assert.Equal(t, []string{CodeVideoFailed}, codes(out))
}

func TestArchive(t *testing.T) {
	f := newFixture(t, allKeys)
	ctx := context.Background()
	_, err := f.svc.Archive(ctx, f.call.SessionID)
	assert.ErrorIs(t, err, domain.ErrNothingToExport)

	f.photo.response = map[string]any{"result_urls": []any{"h1", "h2"}}
	_, err = f.svc.GenerateImages(ctx, f.call, ImageInput{Prompt: "mug", NumResults: 2})
	require.NoError(t, err)

	media, err := f.svc.Archive(ctx, f.call.SessionID)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(media.Data), int64(len(media.Data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "result_1.png", zr.File[0].Name)
	assert.Equal(t, "result_2.png", zr.File[1].Name)
}
