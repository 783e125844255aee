// internal/docverify/pipeline.go

// Package docverify runs the document verification workflow: a fixed graph
// of extraction, archival, place verification, and reflective assessment
// stages ending in an automatic or human approval decision.
package docverify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/dshills/langgraph-go/graph"
	"github.com/dshills/langgraph-go/graph/emit"
	"github.com/dshills/langgraph-go/graph/store"
	"github.com/google/uuid"

	"agentic-apps/internal/common/errors"
	"agentic-apps/internal/common/logger"
	"agentic-apps/internal/common/metrics"
	"agentic-apps/internal/common/observability"
	"agentic-apps/internal/docverify/audit"
	"agentic-apps/internal/docverify/decision"
	"agentic-apps/internal/docverify/extract"
	"agentic-apps/internal/docverify/notify"
	"agentic-apps/internal/docverify/placecheck"
	"agentic-apps/internal/docverify/reflection"
	"agentic-apps/internal/docverify/storage"
)

// Node IDs in the verification graph.
const (
	NodeExtract     = "extract"
	NodeStore       = "store"
	NodeVerifyPlace = "verify_place"
	NodeReflect     = "reflect"
)

// DefaultTask is the instruction that seeds a verification run.
const DefaultTask = "Verify the authenticity of this birth certificate by analyzing the document information and validating the place of birth details."

// Stage interfaces, satisfied by the handlers in the stage packages.
type Extractor interface {
	Execute(ctx context.Context, input *extract.Input) (*extract.Output, error)
}

type Archiver interface {
	Execute(ctx context.Context, input *storage.Input) (*storage.Output, error)
}

type PlaceVerifier interface {
	Execute(ctx context.Context, input *placecheck.Input) (*placecheck.Output, error)
}

type Reflector interface {
	Execute(ctx context.Context, input *reflection.Input) (*reflection.Output, error)
}

// Auditor records routing decisions. Optional.
type Auditor interface {
	SaveDecision(ctx context.Context, rec audit.Record) (int64, error)
}

// ReviewNotifier escalates human-review decisions. Optional.
type ReviewNotifier interface {
	NotifyHumanReview(ctx context.Context, review notify.Review) []error
}

// Options configures pipeline execution.
type Options struct {
	ApprovalThreshold float64
	MaxSteps          int
}

// Request is one document to verify.
type Request struct {
	RunID       string
	Task        string
	ImageBase64 string
	ImageMIME   string
}

// Result is the outcome of a verification run.
type Result struct {
	RunID      string
	Decision   string
	Confidence float64
	Assessment string
	Messages   []Message
}

type Pipeline struct {
	opts      Options
	extractor Extractor
	archiver  Archiver
	verifier  PlaceVerifier
	reflector Reflector
	auditor   Auditor
	notifier  ReviewNotifier
	obs       *observability.Observability
	logger    logger.Logger
}

func NewPipeline(
	opts Options,
	extractor Extractor,
	archiver Archiver,
	verifier PlaceVerifier,
	reflector Reflector,
	log logger.Logger,
) *Pipeline {
	if opts.ApprovalThreshold <= 0 {
		opts.ApprovalThreshold = decision.DefaultThreshold
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 20
	}

	return &Pipeline{
		opts:      opts,
		extractor: extractor,
		archiver:  archiver,
		verifier:  verifier,
		reflector: reflector,
		logger:    log.With(map[string]interface{}{"component": "pipeline"}),
	}
}

// WithAuditor attaches a decision audit store.
func (p *Pipeline) WithAuditor(a Auditor) *Pipeline {
	p.auditor = a
	return p
}

// WithNotifier attaches a human-review notifier.
func (p *Pipeline) WithNotifier(n ReviewNotifier) *Pipeline {
	p.notifier = n
	return p
}

// WithObservability attaches tracing and run metrics.
func (p *Pipeline) WithObservability(o *observability.Observability) *Pipeline {
	p.obs = o
	return p
}

// Run verifies one document end to end and returns the routing decision.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	task := req.Task
	if task == "" {
		task = DefaultTask
	}

	if p.obs != nil {
		spanCtx, span := p.obs.StartSpan(ctx, "docverify.run")
		defer span.End()
		ctx = spanCtx
	}

	engine, err := p.buildEngine(req, runID)
	if err != nil {
		return nil, err
	}

	p.logger.Info("starting verification run", map[string]interface{}{
		"runId": runID,
	})

	initial := State{Messages: []Message{{Role: RoleHuman, Content: task}}}

	final, err := engine.Run(ctx, runID, initial)
	if err != nil {
		return nil, p.failRun(ctx, runID, err)
	}

	result := &Result{
		RunID:      runID,
		Decision:   final.Decision,
		Confidence: final.ConfidenceScore,
		Assessment: final.LastMessage(),
		Messages:   final.Messages,
	}
	if result.Confidence == 0 {
		if assessment, ok := decision.ExtractConfidence(final.LastMessage()); ok {
			result.Confidence = assessment.ConfidenceScore
		}
	}

	metrics.PipelineDecisions.WithLabelValues(result.Decision).Inc()
	if p.obs != nil {
		p.obs.RecordRunProcessed(ctx, result.Decision)
	}

	p.logger.Info("verification run finished", map[string]interface{}{
		"runId":      runID,
		"decision":   result.Decision,
		"confidence": result.Confidence,
	})

	return result, nil
}

// failRun converts a run failure into a stage error carrying the failed
// node, the retry budget, and the audit variables, and logs it.
func (p *Pipeline) failRun(ctx context.Context, runID string, err error) *errors.StageError {
	stdErr, nodeID := convertToStandardError(err)
	stageErr := errors.ConvertToStageError(nodeID, stdErr)

	fields := stageErr.ToVariables()
	fields["runId"] = runID
	fields["category"] = errors.GetErrorCategory(stdErr.Code)
	fields["retries"] = stageErr.Retries
	p.logger.Error("verification run failed", fields)

	if p.obs != nil {
		p.obs.RecordRunProcessed(ctx, "error")
	}

	return stageErr
}

func convertToStandardError(err error) (*errors.StandardError, string) {
	switch {
	case stderrors.Is(err, extract.ErrExtractionFailed):
		return errors.NewExtractionFailedError(err), NodeExtract
	case stderrors.Is(err, storage.ErrStoreFailed):
		return errors.NewDocumentStoreFailedError(err), NodeStore
	case stderrors.Is(err, reflection.ErrReflectionFailed):
		return errors.NewReflectionFailedError(err), NodeReflect
	default:
		return errors.NewPipelineRunFailedError(err), "run"
	}
}

func (p *Pipeline) buildEngine(req Request, runID string) (*graph.Engine[State], error) {
	emitter := newLogEmitter(p.logger)
	engine := graph.New[State](Reducer, store.NewMemStore[State](), emitter, graph.Options{
		MaxSteps: p.opts.MaxSteps,
	})

	nodes := map[string]graph.NodeFunc[State]{
		NodeExtract:             p.nodeExtract(req),
		NodeStore:               p.nodeStore(runID),
		NodeVerifyPlace:         p.nodeVerifyPlace(),
		NodeReflect:             p.nodeReflect(),
		decision.RouteAutomatic: p.nodeApproval(runID, decision.RouteAutomatic),
		decision.RouteHuman:     p.nodeApproval(runID, decision.RouteHuman),
	}

	for id, fn := range nodes {
		if err := engine.Add(id, p.instrument(id, fn)); err != nil {
			return nil, err
		}
	}

	if err := engine.StartAt(NodeExtract); err != nil {
		return nil, err
	}

	edges := []struct {
		from, to string
		when     graph.Predicate[State]
	}{
		{NodeExtract, NodeStore, nil},
		{NodeStore, NodeVerifyPlace, nil},
		{NodeVerifyPlace, NodeReflect, nil},
		// The automatic edge is evaluated first; the human edge is the
		// unconditional fallback, including for unparseable assessments.
		{NodeReflect, decision.RouteAutomatic, func(s State) bool {
			route, _ := decision.Route(s.LastMessage(), p.opts.ApprovalThreshold)
			return route == decision.RouteAutomatic
		}},
		{NodeReflect, decision.RouteHuman, nil},
	}

	for _, e := range edges {
		if err := engine.Connect(e.from, e.to, e.when); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

func (p *Pipeline) nodeExtract(req Request) graph.NodeFunc[State] {
	return func(ctx context.Context, s State) graph.NodeResult[State] {
		output, err := p.extractor.Execute(ctx, &extract.Input{
			Request:     firstContent(s),
			ImageBase64: req.ImageBase64,
			ImageMIME:   req.ImageMIME,
		})
		if err != nil {
			return graph.NodeResult[State]{Err: err}
		}

		return graph.NodeResult[State]{
			Delta: State{Messages: []Message{{Role: RoleAI, Content: output.Summary}}},
		}
	}
}

func (p *Pipeline) nodeStore(runID string) graph.NodeFunc[State] {
	return func(ctx context.Context, s State) graph.NodeResult[State] {
		output, err := p.archiver.Execute(ctx, &storage.Input{
			RunID:    runID,
			Contents: s.AIMessages(),
		})
		if err != nil {
			return graph.NodeResult[State]{Err: err}
		}

		payload, _ := json.MarshalIndent(output, "", "  ")
		return graph.NodeResult[State]{
			Delta: State{Messages: []Message{{
				Role:    RoleHuman,
				Content: "External Processing Results: " + string(payload),
			}}},
		}
	}
}

func (p *Pipeline) nodeVerifyPlace() graph.NodeFunc[State] {
	return func(ctx context.Context, s State) graph.NodeResult[State] {
		output, err := p.verifier.Execute(ctx, &placecheck.Input{
			Contents: s.AIMessages(),
		})
		if err != nil {
			return graph.NodeResult[State]{Err: err}
		}

		payload, _ := json.MarshalIndent(output.Result, "", "  ")
		return graph.NodeResult[State]{
			Delta: State{Messages: []Message{{
				Role:    RoleHuman,
				Content: "External Processing Results: " + string(payload),
			}}},
		}
	}
}

func (p *Pipeline) nodeReflect() graph.NodeFunc[State] {
	return func(ctx context.Context, s State) graph.NodeResult[State] {
		messages := make([]reflection.Message, 0, len(s.Messages))
		for _, m := range s.Messages {
			messages = append(messages, reflection.Message{Role: m.Role, Content: m.Content})
		}

		output, err := p.reflector.Execute(ctx, &reflection.Input{Messages: messages})
		if err != nil {
			return graph.NodeResult[State]{Err: err}
		}

		return graph.NodeResult[State]{
			Delta: State{Messages: []Message{{Role: RoleHuman, Content: output.Assessment}}},
		}
	}
}

// nodeApproval terminates the run, recording the decision and, for human
// review, firing the reviewer notification.
func (p *Pipeline) nodeApproval(runID, route string) graph.NodeFunc[State] {
	return func(ctx context.Context, s State) graph.NodeResult[State] {
		assessment, _ := decision.ExtractConfidence(s.LastMessage())

		if p.auditor != nil {
			_, err := p.auditor.SaveDecision(ctx, audit.Record{
				RunID:        runID,
				Decision:     route,
				Confidence:   assessment.ConfidenceScore,
				Assessment:   s.LastMessage(),
				PlaceOfBirth: placecheck.ExtractPlace(s.AIMessages()),
			})
			if err != nil {
				p.logger.Warn("decision audit failed", map[string]interface{}{
					"runId": runID,
					"error": err.Error(),
				})
			}
		}

		if route == decision.RouteHuman && p.notifier != nil {
			if errs := p.notifier.NotifyHumanReview(ctx, notify.Review{
				RunID:        runID,
				Confidence:   assessment.ConfidenceScore,
				Assessment:   s.LastMessage(),
				PlaceOfBirth: placecheck.ExtractPlace(s.AIMessages()),
			}); len(errs) > 0 {
				for _, err := range errs {
					p.logger.Warn("review notification failed", map[string]interface{}{
						"runId": runID,
						"error": err.Error(),
					})
				}
			}
		}

		return graph.NodeResult[State]{
			Delta: State{
				Decision:        route,
				ConfidenceScore: assessment.ConfidenceScore,
			},
			Route: graph.Stop(),
		}
	}
}

// instrument wraps a node with per-stage metrics.
func (p *Pipeline) instrument(stage string, fn graph.NodeFunc[State]) graph.NodeFunc[State] {
	return func(ctx context.Context, s State) graph.NodeResult[State] {
		start := time.Now()
		res := fn(ctx, s)
		elapsed := time.Since(start)

		metrics.PipelineStageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
		if res.Err != nil {
			metrics.PipelineStagesFailed.WithLabelValues(stage, "STAGE_ERROR").Inc()
		} else {
			metrics.PipelineStagesCompleted.WithLabelValues(stage).Inc()
		}

		if p.obs != nil {
			status := "ok"
			if res.Err != nil {
				status = "error"
			}
			p.obs.RecordStageDuration(ctx, stage, elapsed, status)
		}

		return res
	}
}

func firstContent(s State) string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[0].Content
}

// logEmitter bridges graph engine events into the structured logger.
type logEmitter struct {
	log logger.Logger
}

func newLogEmitter(log logger.Logger) emit.Emitter {
	return &logEmitter{log: log}
}

func (e *logEmitter) Emit(event emit.Event) {
	e.log.Debug(event.Msg, map[string]interface{}{
		"runId":  event.RunID,
		"step":   event.Step,
		"nodeId": event.NodeID,
	})
}
