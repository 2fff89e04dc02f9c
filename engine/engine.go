package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/meemee/studio"
	"github.com/meemee/studio/backoff"
	"github.com/meemee/studio/errlog"
	"github.com/meemee/studio/ext"
	"github.com/meemee/studio/id"
	"github.com/meemee/studio/job"
	"github.com/meemee/studio/ledger"
	mw "github.com/meemee/studio/middleware"
	"github.com/meemee/studio/notify"
	"github.com/meemee/studio/observability"
	"github.com/meemee/studio/poll"
	"github.com/meemee/studio/renderer"
	"github.com/meemee/studio/template"
)

const (
	instrumentationName = "github.com/meemee/studio"

	defaultStoreAttempts = 5
)

// Deps are the collaborators the engine drives. Every field except ErrLog
// is required; when ErrLog is nil the engine builds one on Store if Store
// also implements errlog.Store.
type Deps struct {
	Store    job.Store
	Resolver *template.Resolver
	Renderer renderer.Client
	Ledger   ledger.Ledger
	Notifier notify.Notifier
	ErrLog   *errlog.Service
}

// Engine creates jobs and drives each one to done or failed.
type Engine struct {
	cfg        studio.Config
	store      job.Store
	resolver   *template.Resolver
	renderer   renderer.Client
	ledger     ledger.Ledger
	notifier   notify.Notifier
	errlog     *errlog.Service
	extensions *ext.Registry
	mws        []mw.Middleware
	chain      mw.Middleware
	logger     *slog.Logger
	now        func() time.Time

	// Store write retries for transient errors.
	storeAttempts int
	storeBackoff  backoff.Strategy

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	inflight map[string]struct{}
	stopped  bool
	wg       sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default tunables.
func WithConfig(cfg studio.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.extensions.Register(e) }
}

// WithMiddleware adds middleware to the engine's task chain, inside the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithClock overrides the time source used for timestamps and staleness.
func WithClock(now func() time.Time) Option {
	return func(eng *Engine) { eng.now = now }
}

// WithStoreRetry sets how often a job write is retried after a transient
// store error and the delay between tries. Rejected transitions are never
// retried.
func WithStoreRetry(maxAttempts int, s backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.storeAttempts = maxAttempts
		eng.storeBackoff = s
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New builds an Engine. It does not touch the store; call Start to run
// recovery.
func New(deps Deps, opts ...Option) (*Engine, error) {
	switch {
	case deps.Store == nil:
		return nil, studio.ErrNoStore
	case deps.Resolver == nil:
		return nil, errors.New("studio: engine requires a template resolver")
	case deps.Renderer == nil:
		return nil, errors.New("studio: engine requires a renderer client")
	case deps.Ledger == nil:
		return nil, errors.New("studio: engine requires a quota ledger")
	case deps.Notifier == nil:
		return nil, errors.New("studio: engine requires a notifier")
	}

	eng := &Engine{
		cfg:        studio.DefaultConfig(),
		store:      deps.Store,
		resolver:   deps.Resolver,
		renderer:   deps.Renderer,
		ledger:     deps.Ledger,
		notifier:   deps.Notifier,
		errlog:     deps.ErrLog,
		extensions: ext.NewRegistry(slog.Default()),
		logger:     slog.Default(),
		now:        time.Now,
		inflight:   make(map[string]struct{}),

		storeAttempts: defaultStoreAttempts,
		storeBackoff:  backoff.NewExponentialWithJitter(50*time.Millisecond, 2*time.Second),
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.errlog == nil {
		es, ok := deps.Store.(errlog.Store)
		if !ok {
			return nil, errors.New("studio: store does not implement errlog.Store and no error log was given")
		}
		eng.errlog = errlog.NewService(es,
			errlog.WithRetention(eng.cfg.ErrorLogRetention),
			errlog.WithLogger(eng.logger),
			errlog.WithClock(eng.now),
		)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		metricsMw = mw.Metrics()
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Default stack: recover → tracing → metrics → logging → custom.
	all := make([]mw.Middleware, 0, 4+len(eng.mws))
	all = append(all,
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
	)
	all = append(all, eng.mws...)
	eng.chain = mw.Chain(all...)

	eng.baseCtx, eng.cancel = context.WithCancel(context.Background())
	return eng, nil
}

// ── Accessors ──

// Config returns the engine tunables.
func (eng *Engine) Config() studio.Config { return eng.cfg }

// Store returns the job store.
func (eng *Engine) Store() job.Store { return eng.store }

// Resolver returns the template resolver.
func (eng *Engine) Resolver() *template.Resolver { return eng.resolver }

// Ledger returns the quota ledger.
func (eng *Engine) Ledger() ledger.Ledger { return eng.ledger }

// ErrorLog returns the error-log service.
func (eng *Engine) ErrorLog() *errlog.Service { return eng.errlog }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// ── Create ──

// Create validates req, resolves its prompt, persists a queued job and
// starts processing it in the background. It returns the queued snapshot
// without waiting for the renderer. Unknown templates are rejected with
// studio.ErrTemplateNotFound before anything is stored.
func (eng *Engine) Create(ctx context.Context, req job.CreateRequest) (*job.Job, error) {
	gender, err := req.Validate()
	if err != nil {
		return nil, err
	}

	var (
		prompt       template.Node
		templateName string
		rawPrompt    string
	)
	if strings.TrimSpace(req.TemplateID) == "" {
		rawPrompt = req.RawPrompt
		prompt = template.Raw(rawPrompt)
		templateName = job.CustomTemplateName
	} else {
		tmpl, lookupErr := eng.resolver.Lookup(req.TemplateID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		prompt, err = eng.resolver.Resolve(req.TemplateID, req.DisplayName, gender)
		if err != nil {
			return nil, err
		}
		templateName = tmpl.Name
	}

	now := eng.now().UTC()
	j := &job.Job{
		Entity:       studio.Entity{CreatedAt: now, UpdatedAt: now},
		ID:           id.NewJobID(),
		OwnerID:      req.OwnerID,
		NotifyTarget: req.Target(),
		TemplateID:   req.TemplateID,
		TemplateName: templateName,
		DisplayName:  req.DisplayName,
		Gender:       gender,
		RawPrompt:    rawPrompt,
		Prompt:       prompt,
		State:        job.StateQueued,
	}

	if err := eng.store.CreateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("studio: create job: %w", err)
	}

	eng.logger.Info("job created",
		slog.String("job_id", j.ID.String()),
		slog.Int64("owner_id", j.OwnerID),
		slog.String("template_id", j.TemplateID),
	)
	eng.extensions.EmitJobCreated(ctx, j)

	eng.launch(j.Clone(), eng.process)
	return j, nil
}

// ── Task supervision ──

// launch runs fn for j on its own goroutine through the middleware chain.
// At most one task per job runs in this process; launch reports false if
// one is already running or the engine is stopped.
func (eng *Engine) launch(j *job.Job, fn func(ctx context.Context, j *job.Job) error) bool {
	key := j.ID.String()

	eng.mu.Lock()
	if eng.stopped {
		eng.mu.Unlock()
		return false
	}
	if _, busy := eng.inflight[key]; busy {
		eng.mu.Unlock()
		return false
	}
	eng.inflight[key] = struct{}{}
	eng.wg.Add(1)
	eng.mu.Unlock()

	go func() {
		defer eng.wg.Done()
		defer func() {
			eng.mu.Lock()
			delete(eng.inflight, key)
			eng.mu.Unlock()
		}()

		ctx := eng.baseCtx
		err := eng.chain(ctx, j, func(ctx context.Context) error {
			return fn(ctx, j)
		})
		if errors.Is(err, mw.ErrPanic) {
			_ = eng.fail(ctx, j, job.ReasonInternal, "panic", "job task panicked", err)
		}
	}()
	return true
}

func (eng *Engine) running(jobID id.JobID) bool {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	_, ok := eng.inflight[jobID.String()]
	return ok
}

// ── Processing ──

// process claims a queued job, submits its prompt and polls the renderer
// until a terminal status. If ctx ends first the job is left in processing
// for recovery to pick up. Store writes are retried with the engine's store
// backoff; if the claim still fails the job stays queued until the next
// Recover.
func (eng *Engine) process(ctx context.Context, j *job.Job) error {
	started, err := eng.updateJob(ctx, j.ID, job.Patch{State: job.StateProcessing, At: eng.now().UTC()})
	if err != nil {
		if errors.Is(err, studio.ErrInvalidState) {
			// Claimed elsewhere or already terminal.
			return nil
		}
		return fmt.Errorf("studio: claim job %s: %w", j.ID.String(), err)
	}
	*j = *started
	eng.extensions.EmitJobStarted(ctx, j)

	prompt := j.Prompt
	if prompt.IsZero() {
		prompt, err = eng.resolvePrompt(j)
		if err != nil {
			return eng.fail(ctx, j, job.ReasonSubmission, "resolve", "prompt resolution failed", err)
		}
	}

	handle, err := eng.renderer.Submit(ctx, prompt.Render())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reason := job.ReasonSubmission
		if renderer.Classify(err) == renderer.CategoryInsufficientCredit {
			reason = job.ReasonInsufficientCredit
		}
		return eng.fail(ctx, j, reason, "submit", "render submission failed", err)
	}

	submitted, err := eng.updateJob(ctx, j.ID, job.Patch{TaskHandle: handle, At: eng.now().UTC()})
	if err != nil {
		// Keep polling with the in-memory handle; recovery expires the job
		// if this process dies before a terminal state.
		eng.logger.Warn("failed to persist task handle",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		j.TaskHandle = handle
	} else {
		*j = *submitted
	}

	eng.logger.Info("render submitted",
		slog.String("job_id", j.ID.String()),
		slog.String("task_handle", handle),
	)
	eng.extensions.EmitJobSubmitted(ctx, j)

	return eng.poll(ctx, j)
}

func (eng *Engine) resolvePrompt(j *job.Job) (template.Node, error) {
	if j.RawPrompt != "" {
		return template.Raw(j.RawPrompt), nil
	}
	return eng.resolver.Resolve(j.TemplateID, j.DisplayName, j.Gender)
}

// poll runs the status loop for a submitted job and finishes it.
func (eng *Engine) poll(ctx context.Context, j *job.Job) error {
	st, err := runPoll(ctx, eng.pollPolicy(j), eng.renderer, j.TaskHandle)
	switch {
	case err == nil:
	case errors.Is(err, poll.ErrExhausted):
		return eng.fail(ctx, j, job.ReasonTimeout, "poll", "render did not finish within the poll budget", nil)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return eng.fail(ctx, j, job.ReasonPolling, "poll", "render status could not be read", err)
	}

	if st.Phase == renderer.PhaseSuccess {
		url := st.AssetURL()
		if url == "" {
			return eng.fail(ctx, j, job.ReasonMissingAsset, "poll", "render succeeded without an asset", nil)
		}
		return eng.finish(ctx, j, job.Patch{State: job.StateDone, AssetURL: url}, "", nil)
	}

	reason := job.ReasonProviderFailure
	if st.Category == renderer.CategoryInsufficientCredit {
		reason = job.ReasonInsufficientCredit
	} else if st.Reason != "" {
		reason = job.Reason(st.Reason)
	}
	return eng.finish(ctx, j, job.Patch{
		State:         job.StateFailed,
		FailureReason: reason,
		FailureDetail: st.Reason,
	}, "renderer reported failure", nil)
}

// ── Terminal handling ──

// fail moves j to failed with reason and runs terminal handling.
func (eng *Engine) fail(ctx context.Context, j *job.Job, reason job.Reason, source, msg string, cause error) error {
	p := job.Patch{State: job.StateFailed, FailureReason: reason}
	if cause != nil {
		p.FailureDetail = cause.Error()
	}
	eng.logger.Warn("job failing",
		slog.String("job_id", j.ID.String()),
		slog.String("reason", string(reason)),
		slog.String("source", source),
	)
	return eng.finish(ctx, j, p, msg, cause)
}

// finish applies the terminal patch and, only if this call performed the
// transition, reconciles the ledger, logs failures and notifies the owner.
// It runs detached from ctx cancellation so a shutdown cannot interrupt
// terminal handling half-way. Transient store errors are retried; if the
// terminal write still fails the job keeps its previous state and the error
// is returned, leaving it to the next Recover.
func (eng *Engine) finish(ctx context.Context, j *job.Job, p job.Patch, msg string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	p.At = eng.now().UTC()

	final, err := eng.updateJob(ctx, j.ID, p)
	if err != nil {
		if errors.Is(err, studio.ErrInvalidState) {
			eng.logger.Info("terminal transition already applied",
				slog.String("job_id", j.ID.String()),
			)
			return cause
		}
		return fmt.Errorf("studio: finish job %s: %w", j.ID.String(), err)
	}

	switch final.State {
	case job.StateDone:
		if err := eng.ledger.RecordOutcome(ctx, final.OwnerID, ledger.OutcomeSuccess); err != nil {
			eng.warn("record outcome failed", final, err)
		}
	case job.StateFailed:
		final = eng.logFailure(ctx, final, msg)
		if err := eng.ledger.Refund(ctx, final.OwnerID); err != nil {
			eng.warn("refund failed", final, err)
		}
		if err := eng.ledger.RecordOutcome(ctx, final.OwnerID, ledger.OutcomeFailure); err != nil {
			eng.warn("record outcome failed", final, err)
		}
	}

	final = eng.notifyOwner(ctx, final)

	if final.State == job.StateDone {
		eng.logger.Info("job done",
			slog.String("job_id", final.ID.String()),
			slog.String("asset_url", final.AssetURL),
		)
		eng.extensions.EmitJobDone(ctx, final, final.UpdatedAt.Sub(final.CreatedAt))
	} else {
		eng.extensions.EmitJobFailed(ctx, final, cause)
	}
	*j = *final
	return cause
}

func (eng *Engine) logFailure(ctx context.Context, j *job.Job, msg string) *job.Job {
	if msg == "" {
		msg = "job failed"
	}
	ref, err := eng.errlog.LogError(ctx, errlog.Record{
		Message: msg,
		JobID:   j.ID,
		Reason:  string(j.FailureReason),
		Source:  "engine",
		Detail:  j.FailureDetail,
	})
	if err != nil {
		eng.warn("error log append failed", j, err)
		return j
	}
	updated, err := eng.updateJob(ctx, j.ID, job.Patch{FailureRef: ref, At: eng.now().UTC()})
	if err != nil {
		eng.warn("failed to store error reference", j, err)
		j.FailureRef = ref
		return j
	}
	return updated
}

func (eng *Engine) notifyOwner(ctx context.Context, j *job.Job) *job.Job {
	res, err := eng.notifier.Notify(ctx, j)
	if err != nil {
		eng.warn("owner notification failed", j, err)
		eng.extensions.EmitJobNotified(ctx, j, false)
		return j
	}
	eng.extensions.EmitJobNotified(ctx, j, true)

	if res.DeliveryRef == "" {
		return j
	}
	updated, err := eng.updateJob(ctx, j.ID, job.Patch{DeliveryRef: res.DeliveryRef, At: eng.now().UTC()})
	if err != nil {
		eng.warn("failed to store delivery reference", j, err)
		j.DeliveryRef = res.DeliveryRef
		return j
	}
	return updated
}

func (eng *Engine) warn(msg string, j *job.Job, err error) {
	eng.logger.Warn(msg,
		slog.String("job_id", j.ID.String()),
		slog.String("error", err.Error()),
	)
}

// ── Lifecycle ──

// Start runs startup recovery and logs what it did.
func (eng *Engine) Start(ctx context.Context) error {
	rep, err := eng.Recover(ctx)
	if err != nil {
		return fmt.Errorf("studio: recovery: %w", err)
	}
	eng.logger.Info("recovery finished",
		slog.Int("resumed", rep.Resumed),
		slog.Int("expired", rep.Expired),
		slog.Int("requeued", rep.Requeued),
		slog.Int("failed", rep.Failed),
	)
	return nil
}

// Stop cancels every running task and waits for the goroutines to exit
// or ctx to end. Jobs still polling stay in processing.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.mu.Lock()
	eng.stopped = true
	eng.mu.Unlock()
	eng.cancel()

	if err := eng.wait(ctx); err != nil {
		return err
	}
	eng.extensions.EmitShutdown(ctx)
	return nil
}

// Drain waits for all running tasks to reach a terminal state without
// cancelling them. Callers must not create jobs while draining.
func (eng *Engine) Drain(ctx context.Context) error {
	return eng.wait(ctx)
}

func (eng *Engine) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		eng.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
