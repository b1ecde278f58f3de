// Package drive implements the source document store on Google Drive.
// A best-effort rename acts as the processing claim; it is optimistic,
// not transactional, which is accepted for single-worker deployment.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/draftforge/draftforge/internal/config"
)

// Name prefixes tagging a document's processing state. Files carrying
// any of these are excluded from discovery.
const (
	prefixProcessing = "[processing] "
	prefixDone       = "[done] "
	prefixError      = "[error] "
)

const googleDocMime = "application/vnd.google-apps.document"

// Claimable describes a document eligible for processing.
type Claimable struct {
	ID       string
	Name     string
	Revision string
}

type Service struct {
	srv      *driveapi.Service
	folderID string
	logger   *zap.Logger
}

func NewService(ctx context.Context, cfg config.DriveConfig, logger *zap.Logger) (*Service, error) {
	if cfg.FolderID == "" {
		return nil, fmt.Errorf("drive folder id is required")
	}

	opts := []option.ClientOption{option.WithScopes(driveapi.DriveScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	srv, err := driveapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Service{srv: srv, folderID: cfg.FolderID, logger: logger}, nil
}

// ListClaimable returns untagged documents in the watched folder.
func (s *Service) ListClaimable(ctx context.Context) ([]Claimable, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", s.folderID)
	list, err := s.srv.Files.List().
		Q(query).
		Fields("files(id, name, mimeType, headRevisionId, modifiedTime)").
		PageSize(100).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list folder: %w", err)
	}

	var claimable []Claimable
	for _, f := range list.Files {
		if tagged(f.Name) {
			continue
		}
		revision := f.HeadRevisionId
		if revision == "" {
			// Google-native files expose no head revision; the
			// modification timestamp is the next best change marker.
			revision = f.ModifiedTime
		}
		claimable = append(claimable, Claimable{ID: f.Id, Name: f.Name, Revision: revision})
	}
	return claimable, nil
}

// Claim renames the document with the in-process tag. Succeeding here
// is the claim; there is no stronger lock.
func (s *Service) Claim(ctx context.Context, id, name string) error {
	return s.rename(ctx, id, prefixProcessing+strip(name))
}

// Metadata returns the document's mime type and current name.
func (s *Service) Metadata(ctx context.Context, id string) (mimeType, name string, err error) {
	f, err := s.srv.Files.Get(id).Fields("mimeType, name").Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("failed to get file metadata: %w", err)
	}
	return f.MimeType, f.Name, nil
}

// Download fetches the document content. Google Docs are exported as
// HTML; anything else is downloaded as stored.
func (s *Service) Download(ctx context.Context, id, mimeType string) ([]byte, error) {
	var resp io.ReadCloser
	if mimeType == googleDocMime {
		r, err := s.srv.Files.Export(id, "text/html").Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("failed to export document: %w", err)
		}
		resp = r.Body
	} else {
		r, err := s.srv.Files.Get(id).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		resp = r.Body
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	return data, nil
}

func (s *Service) MarkDone(ctx context.Context, id, name string) error {
	return s.rename(ctx, id, prefixDone+strip(name))
}

func (s *Service) MarkError(ctx context.Context, id, name string) error {
	return s.rename(ctx, id, prefixError+strip(name))
}

func (s *Service) rename(ctx context.Context, id, newName string) error {
	_, err := s.srv.Files.Update(id, &driveapi.File{Name: newName}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	s.logger.Debug("Renamed source document", zap.String("file_id", id), zap.String("name", newName))
	return nil
}

func tagged(name string) bool {
	return strings.HasPrefix(name, prefixProcessing) ||
		strings.HasPrefix(name, prefixDone) ||
		strings.HasPrefix(name, prefixError)
}

func strip(name string) string {
	for _, prefix := range []string{prefixProcessing, prefixDone, prefixError} {
		name = strings.TrimPrefix(name, prefix)
	}
	return name
}
