package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/ai"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/content"
	"github.com/draftforge/draftforge/internal/models"
	"github.com/draftforge/draftforge/internal/service/drive"
	"github.com/draftforge/draftforge/internal/service/wordpress"
	"github.com/draftforge/draftforge/pkg/util"
)

// SourceStore is the document store the pipeline reads from and tags.
type SourceStore interface {
	ListClaimable(ctx context.Context) ([]drive.Claimable, error)
	Claim(ctx context.Context, id, name string) error
	Metadata(ctx context.Context, id string) (mimeType, name string, err error)
	Download(ctx context.Context, id, mimeType string) ([]byte, error)
	MarkDone(ctx context.Context, id, name string) error
	MarkError(ctx context.Context, id, name string) error
}

// DraftPublisher is the CMS the pipeline publishes drafts to.
type DraftPublisher interface {
	CreateDraft(ctx context.Context, title, html, featuredMediaID string) (*wordpress.Draft, error)
	UploadMedia(ctx context.Context, data []byte, filename string) (*wordpress.Media, error)
}

// ImageGenerator turns a prompt into image bytes.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Orchestrator owns the job state machine. It sequences parse, the
// optional image pipeline, formatting, sanitization, widget insertion,
// publishing, and finalization, persisting status and artifacts at
// each step. Stages run strictly one after another; each depends on
// the previous stage's output.
type Orchestrator struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     Store
	source    SourceStore
	publisher DraftPublisher
	aiClient  ai.Client
	generator ImageGenerator

	extractor *content.Extractor
	assembler *content.Assembler
	sanitizer *content.Sanitizer
	injector  *content.Injector

	jobPause time.Duration
}

func NewOrchestrator(
	cfg *config.Config,
	store Store,
	source SourceStore,
	publisher DraftPublisher,
	aiClient ai.Client,
	generator ImageGenerator,
	catalog *content.Catalog,
	logger *zap.Logger,
) *Orchestrator {
	var caption content.CaptionFunc
	if aiClient != nil {
		caption = aiClient.Caption
	}

	pause, err := time.ParseDuration(cfg.Pipeline.JobPause)
	if err != nil {
		pause = 5 * time.Second
	}

	return &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		source:    source,
		publisher: publisher,
		aiClient:  aiClient,
		generator: generator,
		extractor: content.NewExtractor(logger),
		assembler: content.NewAssembler(logger, caption),
		sanitizer: content.NewSanitizer(cfg.Pipeline.PublishDomain, logger),
		injector:  content.NewInjector(catalog, cfg.Pipeline.TopWidgetThreshold, logger),
		jobPause:  pause,
	}
}

// CycleResult summarizes one discovery+claim+run cycle.
type CycleResult struct {
	JobIDs []string
	Failed int
}

func (r *CycleResult) Message() string {
	if len(r.JobIDs) == 0 {
		return "no claimable documents"
	}
	return fmt.Sprintf("processed %d job(s), %d failed", len(r.JobIDs), r.Failed)
}

// RunCycle performs one full cycle: re-run jobs reset to new by
// recovery, then discover and claim fresh documents. Jobs run strictly
// one after another with a short pause in between so external APIs are
// not overwhelmed.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{}

	// Recovered jobs first: they already exist and own their claim.
	requeued, err := o.store.JobsByStatus(models.StatusNew)
	if err != nil {
		return nil, err
	}
	for i, job := range requeued {
		if i > 0 {
			o.pause(ctx)
		}
		o.runRequeued(ctx, &job, result)
	}

	discovered, err := o.source.ListClaimable(ctx)
	if err != nil {
		return result, fmt.Errorf("discovery failed: %w", err)
	}

	for _, doc := range discovered {
		exists, err := o.store.JobExists(doc.ID, doc.Revision)
		if err != nil {
			return result, err
		}
		if exists {
			o.logger.Debug("Revision already processed, skipping",
				zap.String("file_id", doc.ID), zap.String("revision", doc.Revision))
			continue
		}

		if len(result.JobIDs) > 0 {
			o.pause(ctx)
		}

		if err := o.source.Claim(ctx, doc.ID, doc.Name); err != nil {
			o.logger.Error("Failed to claim document",
				zap.String("file_id", doc.ID), zap.Error(err))
			continue
		}

		now := time.Now()
		job := &models.Job{
			SourceFileID:     doc.ID,
			SourceRevisionID: doc.Revision,
			SourceName:       doc.Name,
			Status:           models.StatusClaimed,
			StartedAt:        &now,
		}
		if err := o.store.CreateJob(job); err != nil {
			o.logger.Error("Failed to create job", zap.String("file_id", doc.ID), zap.Error(err))
			continue
		}

		result.JobIDs = append(result.JobIDs, job.ID)
		if err := o.runJob(ctx, job); err != nil {
			result.Failed++
		}
	}

	return result, nil
}

func (o *Orchestrator) runRequeued(ctx context.Context, job *models.Job, result *CycleResult) {
	o.logger.Info("Re-running recovered job", zap.String("job_id", job.ID))

	// Re-tag the source so a recovered error file is claimed again.
	if err := o.source.Claim(ctx, job.SourceFileID, job.SourceName); err != nil {
		o.logger.Warn("Failed to re-claim recovered document",
			zap.String("job_id", job.ID), zap.Error(err))
	}

	now := time.Now()
	job.Status = models.StatusClaimed
	job.StartedAt = &now
	job.FinishedAt = nil
	job.ErrorCode = ""
	job.ErrorMessage = ""
	if err := o.store.SaveJob(job); err != nil {
		o.logger.Error("Failed to update recovered job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	result.JobIDs = append(result.JobIDs, job.ID)
	if err := o.runJob(ctx, job); err != nil {
		result.Failed++
	}
}

// runJob drives one job through the pipeline. It returns an error only
// for fatal failures; every recoverable failure degrades the output
// and the job still publishes.
func (o *Orchestrator) runJob(ctx context.Context, job *models.Job) error {
	logger := o.logger.With(zap.String("job_id", job.ID), zap.String("file_id", job.SourceFileID))
	logger.Info("Running job", zap.String("source", job.SourceName))

	// Parse & extract. Nothing is recoverable here: without content
	// there is nothing downstream to degrade to.
	mimeType, name, err := o.source.Metadata(ctx, job.SourceFileID)
	if err != nil {
		return o.failJob(ctx, job, "metadata_failed", err)
	}

	data, err := o.source.Download(ctx, job.SourceFileID, mimeType)
	if err != nil {
		return o.failJob(ctx, job, "download_failed", err)
	}

	blocks, err := o.extractor.Extract(string(data))
	if err != nil {
		if errors.Is(err, content.ErrEmptyContent) {
			return o.failJob(ctx, job, "empty_content", err)
		}
		return o.failJob(ctx, job, "parse_failed", err)
	}

	title := o.extractor.Title(blocks)
	if title == "" {
		title = cleanTitle(name)
	}
	rawText := content.PlainText(blocks)

	o.addArtifact(job, models.ArtifactRawContent, models.JSONMap{
		"text": rawText,
		"html": content.BlocksHTML(blocks),
	})

	// Optional image pipeline, never fatal.
	images := o.runImageStage(ctx, job, title, rawText, logger)

	// Format, sanitize, and enhance: an explicit left-to-right fold of
	// HTML transformations. A recoverable failure carries the previous
	// stage's output forward instead of aborting.
	html := content.BlocksHTML(blocks)
	stages := []struct {
		name string
		fn   func(context.Context, string) (string, *StageError)
	}{
		{"format", func(ctx context.Context, current string) (string, *StageError) {
			return o.formatStage(ctx, job, blocks, images, current)
		}},
		{"sanitize", func(ctx context.Context, current string) (string, *StageError) {
			out, err := o.sanitizer.Sanitize(current)
			if err != nil {
				// Publishing unsanitized content is unacceptable.
				return "", fatalErr("sanitize", err)
			}
			return out, nil
		}},
		{"widgets", func(ctx context.Context, current string) (string, *StageError) {
			return o.widgetStage(job, title, current)
		}},
	}

	for _, stage := range stages {
		out, stageErr := stage.fn(ctx, html)
		if stageErr == nil {
			html = out
			continue
		}
		if stageErr.Severity == SeverityFatal {
			return o.failJob(ctx, job, stage.name+"_failed", stageErr)
		}
		logger.Warn("Stage degraded, carrying previous output forward",
			zap.String("stage", stage.name), zap.Error(stageErr))
	}

	// Last line of defense against ever publishing nothing.
	if !hasVisibleContent(html) {
		logger.Warn("Pipeline produced blank HTML, falling back to raw text paragraphs")
		html = content.ParagraphsFromText(rawText)
	}

	// Publish the draft.
	featuredMediaID := ""
	if len(images) > 0 {
		featuredMediaID = images[0].MediaID
	}
	draft, err := o.publisher.CreateDraft(ctx, title, html, featuredMediaID)
	if err != nil {
		return o.failJob(ctx, job, "publish_failed", err)
	}

	job.PostID = draft.PostID
	job.PostEditLink = draft.EditLink
	job.Status = models.StatusDrafted
	if err := o.store.SaveJob(job); err != nil {
		logger.Error("Failed to persist drafted status", zap.Error(err))
	}

	// Finalize: best-effort. The post exists, so the job is done even
	// if tagging the source fails.
	if err := o.source.MarkDone(ctx, job.SourceFileID, name); err != nil {
		logger.Warn("Failed to mark source document done", zap.Error(err))
	}

	now := time.Now()
	job.Status = models.StatusDone
	job.FinishedAt = &now
	if err := o.store.SaveJob(job); err != nil {
		logger.Error("Failed to persist done status", zap.Error(err))
	}

	logger.Info("Job completed",
		zap.String("post_id", draft.PostID),
		zap.String("edit_link", draft.EditLink))
	return nil
}

// runImageStage generates and uploads illustrations. Any failure here
// is logged and the pipeline continues with whatever it got, down to
// zero images.
func (o *Orchestrator) runImageStage(ctx context.Context, job *models.Job, title, text string, logger *zap.Logger) []content.Image {
	if !o.cfg.Images.Enabled || o.generator == nil || o.aiClient == nil {
		return nil
	}

	prompts, err := o.aiClient.ImagePrompts(ctx, title, text, o.cfg.Images.Count)
	if err != nil {
		logger.Warn("Image prompt generation failed, continuing without images", zap.Error(err))
		return nil
	}

	var images []content.Image
	for i, prompt := range prompts {
		data, err := o.generator.Generate(ctx, prompt)
		if err != nil {
			logger.Warn("Image generation failed, skipping image",
				zap.Int("image", i+1), zap.Error(err))
			continue
		}

		media, err := o.publisher.UploadMedia(ctx, data, util.MediaFilename(title, i+1, time.Now()))
		if err != nil {
			logger.Warn("Image upload failed, skipping image",
				zap.Int("image", i+1), zap.Error(err))
			continue
		}

		alt := ""
		if caption, err := o.aiClient.Caption(ctx, prompt); err == nil {
			alt = strings.TrimSpace(caption)
		} else {
			logger.Warn("Image caption failed, leaving alt text empty",
				zap.Int("image", i+1), zap.Error(err))
		}

		images = append(images, content.Image{
			URL:     media.URL,
			Alt:     alt,
			MediaID: media.MediaID,
			Prompt:  prompt,
		})
	}

	if len(images) == 0 {
		return nil
	}

	imageMeta := make([]any, 0, len(images))
	for _, img := range images {
		imageMeta = append(imageMeta, map[string]any{
			"url":               img.URL,
			"alt":               img.Alt,
			"external_media_id": img.MediaID,
			"prompt":            img.Prompt,
		})
	}
	o.addArtifact(job, models.ArtifactImageMeta, models.JSONMap{"images": imageMeta})

	job.Status = models.StatusImagesPicked
	if err := o.store.SaveJob(job); err != nil {
		logger.Error("Failed to persist images_picked status", zap.Error(err))
	}

	return images
}

// formatStage classifies the blocks and assembles the final structure.
// A failed or malformed classification degrades to the identity
// structure; the assembler's own invariants keep every block and image
// in the output either way.
func (o *Orchestrator) formatStage(ctx context.Context, job *models.Job, blocks []content.Block, images []content.Image, fallback string) (string, *StageError) {
	if o.aiClient == nil {
		return fallback, recoverableErr("format", fmt.Errorf("no AI client configured"))
	}

	items, err := o.aiClient.ClassifyStructure(ctx, blocks, len(images))
	if err != nil {
		o.logger.Warn("Classification failed, using identity structure", zap.Error(err))
		items = content.IdentityStructure(len(blocks))
	}

	html := o.assembler.Assemble(ctx, blocks, items, images)
	o.addArtifact(job, models.ArtifactHTML, models.JSONMap{"html": html})
	return html, nil
}

// widgetStage inserts marketing widgets. Never fails the job; the
// injector itself returns the input unchanged on any internal error.
// Operator-configured extra tags participate in scoring alongside the
// tags derived from the article itself.
func (o *Orchestrator) widgetStage(job *models.Job, title, current string) (string, *StageError) {
	articleTags := content.DeriveTags(title, current)
	articleTags = append(articleTags, util.ParseTags(o.cfg.Pipeline.ExtraTags)...)
	out, decision := o.injector.Inject(current, articleTags)

	if decision.TopWidgetID != "" || decision.BottomWidgetID != "" {
		o.addArtifact(job, models.ArtifactWidgetDecision, models.JSONMap{
			"top_widget_id":    decision.TopWidgetID,
			"bottom_widget_id": decision.BottomWidgetID,
		})
	}
	return out, nil
}

// failJob performs the error transition and best-effort tags the
// source so it is not silently retried forever. The cleanup's own
// failure must not mask the original error.
func (o *Orchestrator) failJob(ctx context.Context, job *models.Job, code string, cause error) error {
	o.logger.Error("Job failed",
		zap.String("job_id", job.ID),
		zap.String("error_code", code),
		zap.Error(cause))

	now := time.Now()
	job.Status = models.StatusError
	job.ErrorCode = code
	job.ErrorMessage = cause.Error()
	job.FinishedAt = &now
	if err := o.store.SaveJob(job); err != nil {
		o.logger.Error("Failed to persist error status", zap.String("job_id", job.ID), zap.Error(err))
	}

	if err := o.source.MarkError(ctx, job.SourceFileID, job.SourceName); err != nil {
		o.logger.Warn("Failed to mark source document errored",
			zap.String("job_id", job.ID), zap.Error(err))
	}

	return cause
}

func (o *Orchestrator) addArtifact(job *models.Job, kind string, payload models.JSONMap) {
	if err := o.store.AddArtifact(job.ID, kind, payload); err != nil {
		o.logger.Error("Failed to persist artifact",
			zap.String("job_id", job.ID), zap.String("kind", kind), zap.Error(err))
	}
}

func (o *Orchestrator) pause(ctx context.Context) {
	select {
	case <-time.After(o.jobPause):
	case <-ctx.Done():
	}
}

// hasVisibleContent reports whether the HTML contains any text beyond
// markup and whitespace.
func hasVisibleContent(html string) bool {
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag && !isSpace(r):
			return true
		}
	}
	return false
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// cleanTitle turns a source document name into a post title.
func cleanTitle(name string) string {
	name = strings.TrimSuffix(name, ".docx")
	name = strings.TrimSuffix(name, ".html")
	for _, prefix := range []string{"[processing] ", "[done] ", "[error] "} {
		name = strings.TrimPrefix(name, prefix)
	}
	return strings.TrimSpace(name)
}
