package result

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
)

func decode(t *testing.T, body string) any {
	t.Helper()
	var raw any
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestExtractKeyOrder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "result_url wins over urls",
			body: `{"urls":["b","c"],"result_url":"a"}`,
			want: []string{"a"},
		},
		{
			name: "result_urls before urls",
			body: `{"urls":["x"],"result_urls":["r1","r2"]}`,
			want: []string{"r1", "r2"},
		},
		{
			name: "empty result_url falls through",
			body: `{"result_url":"","urls":["u1"]}`,
			want: []string{"u1"},
		},
		{
			name: "nested dict items",
			body: `{"result":[{"urls":["n1"]},{"urls":["n2","n3"]}]}`,
			want: []string{"n1", "n2", "n3"},
		},
		{
			name: "nested raw lists take the url slot",
			body: `{"result":[["l1","l2"],["l3"]]}`,
			want: []string{"l1", "l3"},
		},
		{
			name: "raw list metadata is not a url",
			body: `{"result":[["https://cdn/1.png",101,"sess-a"],["https://cdn/2.png",102,"sess-b"]]}`,
			want: []string{"https://cdn/1.png", "https://cdn/2.png"},
		},
		{
			name: "mixed nested shapes skip junk",
			body: `{"result":[{"urls":["m1"]},7,["m2"]]}`,
			want: []string{"m1", "m2"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract("test", decode(t, tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractMalformed(t *testing.T) {
	for _, body := range []string{`{}`, `{"status":"ok"}`, `{"urls":[]}`, `[1,2]`, `{"result":"nope"}`} {
		_, err := Extract("packshot", decode(t, body))
		var malformed *domain.MalformedResponseError
		require.ErrorAs(t, err, &malformed, body)
		assert.Equal(t, "packshot", malformed.Operation)
	}
}

func TestNormalizeAsyncTruncatesWithoutPadding(t *testing.T) {
	raw := decode(t, `{"urls":["u1","u2","u3","u4","u5"]}`)
	res, err := Normalize("lifestyle_text", raw, false, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, res.Pending)
	require.NoError(t, res.Validate())

	raw = decode(t, `{"urls":["u1","u2"]}`)
	res, err = Normalize("lifestyle_text", raw, false, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, res.Pending)
}

func TestNormalizeRawListKeepsRequestedURLs(t *testing.T) {
	raw := decode(t, `{"result":[["https://cdn/1.png",101,"sess-a"],["https://cdn/2.png",102,"sess-b"]]}`)
	res, err := Normalize("lifestyle_text", raw, false, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/1.png", "https://cdn/2.png"}, res.Pending)
}

func TestNormalizeSyncShapes(t *testing.T) {
	res, err := Normalize("packshot", decode(t, `{"result_url":"https://cdn/p.png"}`), true, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/p.png", res.URL)
	assert.Empty(t, res.URLs)
	assert.False(t, res.IsPending())

	res, err = Normalize("generative_fill", decode(t, `{"urls":["a","b","c"]}`), true, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.URLs)
	assert.Equal(t, []string{"a", "b"}, res.Ready())
}

func TestVideoURL(t *testing.T) {
	assert.Equal(t, "v1", VideoURL(decode(t, `{"video":{"url":"v1"},"url":"v2"}`)))
	assert.Equal(t, "v2", VideoURL(decode(t, `{"url":"v2"}`)))
	assert.Empty(t, VideoURL(decode(t, `{"video":{}}`)))
	assert.Empty(t, VideoURL("nope"))
}
