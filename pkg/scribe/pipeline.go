package scribe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

const (
	defaultMaxAttempts       = 3
	defaultGenerationTimeout = 45 * time.Second
	defaultBackoffBase       = 500 * time.Millisecond
	defaultChunkBytes        = 8 << 20
	defaultChunkRetries      = 2
	defaultChunkConcurrency  = 3
	defaultChunkRetryDelay   = 250 * time.Millisecond
)

// ErrInvalidRequest covers caller mistakes (unknown schema version, missing
// provider) as opposed to pipeline-stage failures.
var ErrInvalidRequest = errors.New("invalid pipeline request")

// PipelineResult is the terminal value of one invocation: a validated note,
// or a typed failure naming the stage and reason. Nothing partial crosses
// this boundary, and Metadata carries structural diagnostics only.
type PipelineResult struct {
	Note     *model.ClinicalNote
	Failure  *StageError
	Metadata model.GenerationMetadata
}

func (r *PipelineResult) Succeeded() bool {
	return r != nil && r.Failure == nil && r.Note != nil
}

// Pipeline converts one clinical artifact into a validated structured note.
// A Pipeline is stateless across invocations and safe for concurrent use;
// all per-request state lives inside GenerateNote.
type Pipeline struct {
	transcriber model.Transcriber
	generator   model.NoteGenerator

	maxAttempts       int
	generationTimeout time.Duration
	backoffBase       time.Duration
	templateID        string
	audioOptions      model.AudioOptions

	chunkBytes       int
	chunkRetries     int
	chunkConcurrency int
	chunkRetryDelay  time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxAttempts sets the retry ceiling shared by generation and
// validation.
func WithMaxAttempts(attempts int) Option {
	return func(p *Pipeline) {
		if attempts > 0 {
			p.maxAttempts = attempts
		}
	}
}

// WithGenerationTimeout bounds each generative model call.
func WithGenerationTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) {
		if timeout > 0 {
			p.generationTimeout = timeout
		}
	}
}

// WithBackoffBase sets the base delay for exponential backoff on transient
// generation failures.
func WithBackoffBase(base time.Duration) Option {
	return func(p *Pipeline) {
		if base > 0 {
			p.backoffBase = base
		}
	}
}

// WithTemplateID selects the instruction template.
func WithTemplateID(templateID string) Option {
	return func(p *Pipeline) {
		if templateID != "" {
			p.templateID = templateID
		}
	}
}

// WithAudioOptions passes provider hints (model, keywords) to transcription.
// The per-request language always overrides the Language field.
func WithAudioOptions(opts model.AudioOptions) Option {
	return func(p *Pipeline) {
		p.audioOptions = opts
	}
}

// WithChunking tunes audio chunk size, per-chunk retries, and fan-out width.
func WithChunking(chunkBytes, retries, concurrency int) Option {
	return func(p *Pipeline) {
		if chunkBytes > 0 {
			p.chunkBytes = chunkBytes
		}
		if retries >= 0 {
			p.chunkRetries = retries
		}
		if concurrency > 0 {
			p.chunkConcurrency = concurrency
		}
	}
}

// New builds a pipeline. The generator is required; a transcriber is only
// needed when audio artifacts will be submitted.
func New(transcriber model.Transcriber, generator model.NoteGenerator, opts ...Option) (*Pipeline, error) {
	if generator == nil {
		return nil, fmt.Errorf("%w: a note generator is required", ErrInvalidRequest)
	}

	p := &Pipeline{
		transcriber:       transcriber,
		generator:         generator,
		maxAttempts:       defaultMaxAttempts,
		generationTimeout: defaultGenerationTimeout,
		backoffBase:       defaultBackoffBase,
		templateID:        TemplateIDClinicalNote,
		chunkBytes:        defaultChunkBytes,
		chunkRetries:      defaultChunkRetries,
		chunkConcurrency:  defaultChunkConcurrency,
		chunkRetryDelay:   defaultChunkRetryDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// GenerateNote runs the full ingestion-to-note pipeline for one artifact.
// The caller's slice is copied; every buffer derived from it is wiped when
// the invocation returns, on success and on every failure path including
// cancellation.
func (p *Pipeline) GenerateNote(
	ctx context.Context,
	artifact []byte,
	declaredKindHint string,
	targetLanguage model.Language,
	schemaVersion string,
) *PipelineResult {
	log := logging.NewLogger(ctx)

	sess := newSession(ctx)
	defer sess.release()

	meta := model.GenerationMetadata{
		model.MetadataKeySession: sess.id,
	}

	schema, err := model.SchemaForVersion(schemaVersion)
	if err != nil {
		return failure(meta, newStageError(StagePrompt, ErrInvalidRequest, err.Error(), nil))
	}
	if _, err := model.ParseLanguage(string(targetLanguage)); err != nil {
		return failure(meta, newStageError(StagePrompt, ErrInvalidRequest, err.Error(), nil))
	}

	data := sess.holdCopy(artifact)

	kind, mime, err := classifyArtifact(data)
	meta[model.MetadataKeyMediaKind] = string(kind)
	if err != nil {
		var stageErr *StageError
		errors.As(err, &stageErr)
		log.Warnf("session=%s stage=%s hint=%q rejected: %v", sess.id, StageClassify, declaredKindHint, err)
		return failure(meta, stageErr)
	}
	log.Infof("session=%s stage=%s media_kind=%s hint=%q", sess.id, StageClassify, kind, declaredKindHint)

	source := &model.Artifact{
		Data:         data,
		Kind:         kind,
		MIMEType:     mime,
		DeclaredHint: declaredKindHint,
	}

	content, err := p.extract(ctx, sess, source)
	if err != nil {
		return failure(meta, p.asStageFailure(ctx, err))
	}
	if source.Kind == model.MediaKindAudio {
		meta[model.MetadataKeyChunks] = strconv.Itoa(chunkCount(content.Segments))
		meta[model.MetadataKeyGapChunks] = strconv.Itoa(content.GapCount)
		meta[model.MetadataKeyDetectedLanguage] = content.LanguageHint
	}

	note, stageErr := p.generateAndValidate(ctx, content, targetLanguage, schema, meta)
	if stageErr != nil {
		return failure(meta, stageErr)
	}

	log.Infof("session=%s note validated schema=%s language=%s", sess.id, schema.Version, targetLanguage)
	return &PipelineResult{Note: note, Metadata: meta}
}

// extract dispatches the artifact to the extractor matching its sniffed
// kind.
func (p *Pipeline) extract(ctx context.Context, sess *session, source *model.Artifact) (*model.ExtractedContent, error) {
	switch source.Kind {
	case model.MediaKindAudio:
		if p.transcriber == nil {
			return nil, newStageError(StageTranscribe, ErrTranscription, "no transcription provider configured", nil)
		}
		opts := p.audioOptions
		if opts.Language == "" {
			opts.Language = model.AudioLanguageAuto
		}
		transcriber := &chunkTranscriber{
			provider:    p.transcriber,
			chunkBytes:  p.chunkBytes,
			retries:     p.chunkRetries,
			concurrency: p.chunkConcurrency,
			retryDelay:  p.chunkRetryDelay,
		}
		return transcriber.transcribe(ctx, sess, source, opts)
	default:
		return extractDocument(ctx, source)
	}
}

// generateAndValidate drives the shared retry loop across generation and
// validation: one explicit attempt counter, corrective retry reasons, and
// exponential backoff only for transient model failures.
func (p *Pipeline) generateAndValidate(
	ctx context.Context,
	content *model.ExtractedContent,
	target model.Language,
	schema model.NoteSchema,
	meta model.GenerationMetadata,
) (*model.ClinicalNote, *StageError) {
	log := logging.NewLogger(ctx)
	orch := &orchestrator{generator: p.generator, timeout: p.generationTimeout}

	retryReason := ""
	lastReason := ""
	converging := false // true once failures are parse/validation, not transport

	attempt := 0
	for attempt = 1; attempt <= p.maxAttempts; attempt++ {
		req := buildGenerationRequest(content, target, schema, p.templateID, attempt, retryReason)

		candidate, genMeta, err := orch.generateCandidate(ctx, req)
		meta.Merge(genMeta)

		if err != nil {
			if ctx.Err() != nil {
				meta[model.MetadataKeyAttempts] = strconv.Itoa(attempt)
				return nil, newStageError(StageGenerate, ErrCanceled, "invocation canceled during generation", ctx.Err())
			}

			var parseErr *parseError
			switch {
			case errors.As(err, &parseErr):
				converging = true
				lastReason = parseErr.reason
				retryReason = "the model response could not be parsed as a structured note (" + parseErr.reason + ")"
				continue
			case model.IsTransient(err):
				converging = false
				lastReason = err.Error()
				log.Warnf("stage=%s attempt=%d transient failure, backing off: %v", StageGenerate, attempt, err)
				if sleepErr := sleepContext(ctx, p.backoffBase<<(attempt-1)); sleepErr != nil {
					meta[model.MetadataKeyAttempts] = strconv.Itoa(attempt)
					return nil, newStageError(StageGenerate, ErrCanceled, "invocation canceled during backoff", sleepErr)
				}
				continue
			default:
				meta[model.MetadataKeyAttempts] = strconv.Itoa(attempt)
				return nil, newStageError(StageGenerate, ErrGeneration, "model rejected the request", err)
			}
		}

		if validationErr := validateNote(candidate, schema, target); validationErr != nil {
			converging = true
			lastReason = validationErr.Error()
			retryReason = validationErr.Error()
			log.Warnf("stage=%s attempt=%d rejected: %v", StageValidate, attempt, validationErr)
			continue
		}

		meta[model.MetadataKeyAttempts] = strconv.Itoa(attempt)
		return candidate, nil
	}

	meta[model.MetadataKeyAttempts] = strconv.Itoa(p.maxAttempts)
	if converging {
		return nil, newStageError(
			StageValidate,
			ErrValidationExhausted,
			fmt.Sprintf("no valid note after %d attempts; last rejection: %s", p.maxAttempts, lastReason),
			nil,
		)
	}
	return nil, newStageError(
		StageGenerate,
		ErrGeneration,
		fmt.Sprintf("transient failures exhausted %d attempts; last: %s", p.maxAttempts, lastReason),
		nil,
	)
}

// asStageFailure normalizes extractor errors, folding caller cancellation
// into the canceled kind.
func (p *Pipeline) asStageFailure(ctx context.Context, err error) *StageError {
	if stageErr, ok := AsStageError(err); ok {
		return stageErr
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newStageError(StageTranscribe, ErrCanceled, "invocation canceled", err)
	}
	return newStageError(StageExtract, ErrExtraction, "extraction failed", err)
}

func failure(meta model.GenerationMetadata, stageErr *StageError) *PipelineResult {
	meta[model.MetadataKeyStage] = string(stageErr.Stage)
	return &PipelineResult{Failure: stageErr, Metadata: meta}
}
