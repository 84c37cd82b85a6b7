package studio

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"studio/internal/domain"
	"studio/pkg/zip"
)

// Media is a downloadable asset. URL is set instead of Data when the asset
// lives with the backend and the client should fetch it directly.
type Media struct {
	Filename string
	MIME     string
	Data     []byte
	URL      string
}

// DownloadResult fetches the session's current result image.
func (s *Service) DownloadResult(ctx context.Context, sessionID string) (*Media, error) {
	snap, err := s.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap.CurrentResult == "" {
		return nil, domain.ErrNothingToExport
	}
	data, mime, err := s.photo.Download(ctx, snap.CurrentResult)
	if err != nil {
		return nil, err
	}
	return &Media{Filename: "result" + extension(data), MIME: mime, Data: data}, nil
}

// LatestVideo returns the most recent finished clip of the session.
func (s *Service) LatestVideo(ctx context.Context, sessionID string) (*Media, error) {
	snap, err := s.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	v := snap.LastVideo
	if v == nil {
		return nil, domain.ErrNothingToExport
	}
	if v.BlobKey == "" {
		return &Media{URL: v.URL}, nil
	}
	blob, err := s.blobs.Read(ctx, v.BlobKey)
	if err != nil {
		return nil, fmt.Errorf("studio: read clip: %w", err)
	}
	return &Media{Filename: v.Filename, MIME: blob.MIME, Data: blob.Data}, nil
}

// Archive zips every generated image of the session. A session with a
// single result exports that one.
func (s *Service) Archive(ctx context.Context, sessionID string) (*Media, error) {
	snap, err := s.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	urls := snap.Generated
	if len(urls) == 0 && snap.CurrentResult != "" {
		urls = []string{snap.CurrentResult}
	}
	if len(urls) == 0 {
		return nil, domain.ErrNothingToExport
	}
	assets := make([]zip.Asset, 0, len(urls))
	for i, u := range urls {
		data, mime, err := s.photo.Download(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("studio: download %d of %d: %w", i+1, len(urls), err)
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("result_%d%s", i+1, extension(data)),
			MIME:     mime,
			Data:     data,
		})
	}
	archive, err := zip.ArchiveAssets(assets, s.now())
	if err != nil {
		return nil, err
	}
	return &Media{Filename: "results.zip", MIME: "application/zip", Data: archive}, nil
}

func extension(data []byte) string {
	return mimetype.Detect(data).Extension()
}
