package bria

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type capturedRequest struct {
	Path   string
	Token  string
	Body   map[string]any
	Method string
}

func newBackend(t *testing.T, status int, response string) (*httptest.Server, *[]capturedRequest, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	captured := &[]capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		*captured = append(*captured, capturedRequest{Path: r.URL.Path, Token: r.Header.Get("api_token"), Body: body, Method: r.Method})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, captured, &hits
}

func TestPackshotSendsEncodedImage(t *testing.T) {
	srv, captured, _ := newBackend(t, http.StatusOK, `{"result_url":"https://cdn/p.png"}`)
	client := NewClient(Options{BaseURL: srv.URL + "/v1/", HDModelVersion: "2.2"})

	raw, err := client.Packshot(context.Background(), "key-1", PackshotParams{Image: pngBytes, SKU: " sku-9 ", ContentModeration: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result_url": "https://cdn/p.png"}, raw)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, "/v1/product/packshot", req.Path)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "key-1", req.Token)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngBytes), req.Body["file"])
	assert.Equal(t, "#FFFFFF", req.Body["background_color"])
	assert.Equal(t, "sku-9", req.Body["sku"])
	assert.Equal(t, true, req.Body["content_moderation"])
}

func TestMissingKeySkipsNetwork(t *testing.T) {
	srv, _, hits := newBackend(t, http.StatusOK, `{}`)
	client := NewClient(Options{BaseURL: srv.URL})

	_, err := client.Packshot(context.Background(), "  ", PackshotParams{Image: pngBytes})
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "bria", authErr.Backend)
	assert.Zero(t, hits.Load())
}

func TestModerationDistinguishedFromServerError(t *testing.T) {
	srv, _, _ := newBackend(t, http.StatusUnprocessableEntity, `{"error":"content moderation failed"}`)
	client := NewClient(Options{BaseURL: srv.URL})
	_, err := client.EraseForeground(context.Background(), "k", pngBytes, true)
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.True(t, remote.IsModeration())
	assert.True(t, domain.IsModeration(err))
	assert.Contains(t, remote.Body, "moderation")

	srv, _, _ = newBackend(t, http.StatusInternalServerError, `oops`)
	client = NewClient(Options{BaseURL: srv.URL})
	_, err = client.EraseForeground(context.Background(), "k", pngBytes, true)
	require.ErrorAs(t, err, &remote)
	assert.False(t, remote.IsModeration())
	assert.Equal(t, http.StatusInternalServerError, remote.Status)
}

func TestRejectedKeyIsAuthError(t *testing.T) {
	srv, _, _ := newBackend(t, http.StatusUnauthorized, `{"message":"bad token"}`)
	client := NewClient(Options{BaseURL: srv.URL})
	_, err := client.GenerateHD(context.Background(), "k", HDImageParams{Prompt: "a lamp", NumResults: 1})
	assert.True(t, domain.IsAuthError(err))
}

func TestTransportFailureIsRequestError(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := client.GenerateHD(context.Background(), "k", HDImageParams{Prompt: "a lamp", NumResults: 1})
	var reqErr *domain.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, string(domain.OperationHDImage), reqErr.Operation)
}

func TestNonJSONSuccessIsMalformed(t *testing.T) {
	srv, _, _ := newBackend(t, http.StatusOK, `<html>`)
	client := NewClient(Options{BaseURL: srv.URL})
	_, err := client.EraseForeground(context.Background(), "k", pngBytes, false)
	var malformed *domain.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}

func TestGenerateHDUsesModelVersion(t *testing.T) {
	srv, captured, _ := newBackend(t, http.StatusOK, `{"result":[{"urls":["a"]}]}`)
	client := NewClient(Options{BaseURL: srv.URL, HDModelVersion: "3.0"})
	_, err := client.GenerateHD(context.Background(), "k", HDImageParams{Prompt: "shoe, in watercolor style", NumResults: 2, AspectRatio: "16:9", Medium: "art", Sync: true})
	require.NoError(t, err)
	req := (*captured)[0]
	assert.Equal(t, "/text-to-image/hd/3.0", req.Path)
	assert.Equal(t, "16:9", req.Body["aspect_ratio"])
	assert.Equal(t, "art", req.Body["medium"])
	assert.Equal(t, float64(2), req.Body["num_results"])
}

func TestShadowRejectsFloat(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://unused"})
	_, err := client.AddShadow(context.Background(), "k", ShadowParams{Image: pngBytes, Type: "Float"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestShadowPayload(t *testing.T) {
	srv, captured, _ := newBackend(t, http.StatusOK, `{"result_url":"s"}`)
	client := NewClient(Options{BaseURL: srv.URL})
	_, err := client.AddShadow(context.Background(), "k", ShadowParams{Image: pngBytes, Type: "Drop", OffsetX: 3, OffsetY: -4, Intensity: 60, Blur: 20})
	require.NoError(t, err)
	body := (*captured)[0].Body
	assert.Equal(t, "drop", body["type"])
	assert.Equal(t, []any{float64(3), float64(-4)}, body["shadow_offset"])
	assert.NotContains(t, body, "background_color")
	assert.NotContains(t, body, "shadow_width")
}

func TestLifestylePlacement(t *testing.T) {
	srv, captured, _ := newBackend(t, http.StatusOK, `{"urls":["u1"]}`)
	client := NewClient(Options{BaseURL: srv.URL})

	_, err := client.LifestyleByText(context.Background(), "k", LifestyleTextParams{
		Image:            pngBytes,
		SceneDescription: "on a marble counter",
		NumResults:       4,
		Fast:             true,
		ExcludeElements:  "people",
		Placement: Placement{
			Type:            PlacementManual,
			ShotSize:        [2]int{800, 600},
			ManualPositions: []string{"Upper Right", "bottom_center"},
		},
	})
	require.NoError(t, err)
	body := (*captured)[0].Body
	assert.Equal(t, "manual_placement", body["placement_type"])
	assert.Equal(t, []any{"upper_right", "bottom_center"}, body["manual_placement_selection"])
	assert.Equal(t, []any{float64(800), float64(600)}, body["shot_size"])
	assert.Equal(t, []any{float64(0), float64(0), float64(0), float64(0)}, body["padding_values"])
	assert.NotContains(t, body, "exclude_elements")

	_, err = client.LifestyleByText(context.Background(), "k", LifestyleTextParams{
		Image:            pngBytes,
		SceneDescription: "x",
		NumResults:       1,
		Placement:        Placement{Type: PlacementCustomCoordinates},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEncodeImageRejectsNonImage(t *testing.T) {
	_, err := encodeImage("image", []byte("plain text, not an image"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = encodeImage("image", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()
	client := NewClient(Options{})

	data, mime, err := client.Download(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, "image/png", mime)

	_, _, err = client.Download(context.Background(), srv.URL+"/missing")
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusNotFound, remote.Status)
}
