// Package result turns loosely shaped backend responses into a
// domain.GenerationResult. Every operation goes through the same key
// order so a shape change on the backend is fixed in one place.
package result

import (
	"sort"
	"strings"

	"studio/internal/domain"
)

// key order; the first key that yields at least one URL wins
var resultKeys = []string{"result_url", "result_urls", "urls", "result"}

// Extract returns every URL carried by raw in key order. It fails with a
// MalformedResponseError when no known key holds a usable URL.
func Extract(operation string, raw any) ([]string, error) {
	payload, ok := raw.(map[string]any)
	if !ok {
		return nil, &domain.MalformedResponseError{Operation: operation}
	}
	for _, key := range resultKeys {
		value, present := payload[key]
		if !present {
			continue
		}
		var urls []string
		switch key {
		case "result_url":
			if s := asURL(value); s != "" {
				urls = []string{s}
			}
		case "result_urls", "urls":
			urls = stringList(value)
		case "result":
			urls = nestedResult(value)
		}
		if len(urls) > 0 {
			return urls, nil
		}
	}
	return nil, &domain.MalformedResponseError{Operation: operation, Keys: keysOf(payload)}
}

// Normalize extracts URLs and shapes them for sync or async handling.
// Lists are truncated to numResults when numResults > 0 and never padded.
func Normalize(operation string, raw any, sync bool, numResults int) (domain.GenerationResult, error) {
	urls, err := Extract(operation, raw)
	if err != nil {
		return domain.GenerationResult{}, err
	}
	urls = Truncate(urls, numResults)
	if !sync {
		return domain.GenerationResult{Pending: urls}, nil
	}
	if len(urls) == 1 {
		return domain.GenerationResult{URL: urls[0]}, nil
	}
	return domain.GenerationResult{URLs: urls}, nil
}

// Truncate caps urls at n entries; n <= 0 leaves the list untouched.
func Truncate(urls []string, n int) []string {
	if n <= 0 || len(urls) <= n {
		return urls
	}
	return urls[:n]
}

// VideoURL reads a finished video location from `video.url`, falling back
// to a top level `url`.
func VideoURL(raw any) string {
	payload, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	if video, ok := payload["video"].(map[string]any); ok {
		if s := asURL(video["url"]); s != "" {
			return s
		}
	}
	return asURL(payload["url"])
}

func nestedResult(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	var urls []string
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			urls = append(urls, stringList(v["urls"])...)
		case []any:
			if s := firstString(v); s != "" {
				urls = append(urls, s)
			}
		}
	}
	return urls
}

// firstString returns the URL slot of a raw-list item such as
// [url, seed, session_id]. Later elements are metadata.
func firstString(items []any) string {
	for _, item := range items {
		if s, ok := item.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func stringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		if typed, ok := value.([]string); ok {
			items = make([]any, len(typed))
			for i, s := range typed {
				items[i] = s
			}
		} else {
			return nil
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := asURL(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asURL(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func keysOf(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
