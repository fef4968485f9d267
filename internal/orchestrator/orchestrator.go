package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/krishi/internal/conflict"
	"github.com/ShayCichocki/krishi/internal/contextbuilder"
	"github.com/ShayCichocki/krishi/internal/intent"
	"github.com/ShayCichocki/krishi/internal/scheduler"
	"github.com/ShayCichocki/krishi/internal/synth"
	"github.com/ShayCichocki/krishi/internal/translate"
	"github.com/ShayCichocki/krishi/internal/worker"
	"github.com/ShayCichocki/krishi/pkg/models"
)

// Defaults for Config.
const (
	DefaultQueryDeadline      = 10 * time.Second
	DefaultTranslationTimeout = time.Second
	DefaultDeliveryTimeout    = 5 * time.Second
	DefaultMaxInFlight        = 10
	DefaultMaxQueue           = 500
	DefaultAvgProcessing      = 3 * time.Second
	DefaultPrimaryLanguage    = "hi"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("orchestrator closed")

// clarificationPrompt is sent when the classifier cannot route a query.
const clarificationPrompt = "We could not understand your question fully. Please tell us which crop or scheme you are asking about, or whether it is about water and soil."

// Config holds orchestrator settings. Zero fields take defaults.
type Config struct {
	// QueryDeadline bounds a query from admission to synthesis.
	QueryDeadline      time.Duration
	TranslationTimeout time.Duration
	DeliveryTimeout    time.Duration
	// ReviewThreshold flags translations below this confidence.
	ReviewThreshold float64
	// PrimaryLanguage is assumed when language detection fails.
	PrimaryLanguage string
	MaxInFlight     int
	// MaxQueue bounds the admission queue. Negative means unbounded.
	MaxQueue int
	// AvgProcessing seeds the wait estimate until queries complete.
	AvgProcessing time.Duration
	Scheduler     scheduler.Config
	// Budget shapes synthesized text. Format and LowBandwidth may be
	// overridden per submission.
	Budget synth.Budget
}

func (c Config) withDefaults() Config {
	if c.QueryDeadline <= 0 {
		c.QueryDeadline = DefaultQueryDeadline
	}
	if c.TranslationTimeout <= 0 {
		c.TranslationTimeout = DefaultTranslationTimeout
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if c.ReviewThreshold <= 0 {
		c.ReviewThreshold = translate.DefaultReviewThreshold
	}
	if c.PrimaryLanguage == "" {
		c.PrimaryLanguage = DefaultPrimaryLanguage
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.MaxQueue == 0 {
		c.MaxQueue = DefaultMaxQueue
	}
	if c.AvgProcessing <= 0 {
		c.AvgProcessing = DefaultAvgProcessing
	}
	if c.Budget.LineWidth <= 0 {
		c.Budget.LineWidth = synth.DefaultPlainLineWidth
	}
	return c
}

// ContextBuilder assembles the shared context for a query and records
// delivered turns.
type ContextBuilder interface {
	Build(ctx context.Context, q models.Query) (models.SharedContext, error)
	Record(ctx context.Context, q models.Query, answer string) error
}

// QueryClassifier extracts entities and routes a query to workers.
type QueryClassifier interface {
	Extract(text string) map[string][]string
	Classify(ctx context.Context, q models.Query) intent.Classification
}

var (
	_ ContextBuilder  = (*contextbuilder.Builder)(nil)
	_ QueryClassifier = (*intent.Classifier)(nil)
)

// Submission is a farmer's raw question as it arrives from a channel.
type Submission struct {
	SessionID string
	FarmerID  string
	Text      string
	// Language is an optional hint. Empty means detect.
	Language     string
	Format       models.FormatType
	LowBandwidth bool
}

// Result is everything the orchestrator knows about a finished query.
type Result struct {
	Query          models.Query
	Response       models.Response
	Classification intent.Classification
	Trace          Trace
}

// Ticket tracks a submitted query.
type Ticket struct {
	QueryID string
	// Queued is set when no in-flight slot was free.
	Queued   bool
	Position int
	// EstimatedWait is how long the query is expected to wait for a slot.
	EstimatedWait time.Duration

	done   chan struct{}
	result *Result
	err    error
}

// Done is closed when the query reaches a terminal state.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the query finishes or ctx ends. A FAILED query
// returns its Result together with the *Failure.
func (t *Ticket) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Load is a snapshot of admission state.
type Load struct {
	InFlight          int
	Queued            int
	EstimatedWait     time.Duration
	AverageProcessing time.Duration
}

// Orchestrator coordinates the pipeline for every query.
type Orchestrator struct {
	cfg        Config
	registry   *worker.Registry
	builder    ContextBuilder
	translator translate.Translator
	classifier QueryClassifier
	scheduler  *scheduler.Scheduler
	resolver   *conflict.Resolver
	deliverer  Deliverer
	pool       *AdmissionPool
	farmers    *keyedMutex
	emitter    *EventEmitter
	now        func() time.Time

	unitsMu sync.RWMutex
	units   synth.UnitMap

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates an Orchestrator. It fails if the registry's declared
// dependencies contain a cycle.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if req.Builder == nil {
		return nil, errors.New("context builder is required")
	}

	o := &orchestratorOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.config.withDefaults()

	if o.logger != nil {
		setPackageLogger(o.logger)
	}

	sched := scheduler.New(req.Registry, cfg.Scheduler)
	sched.SetPeerBroker(&peerBroker{})
	sched.SetDebugLog(debugLog)

	if _, err := sched.Plan(req.Registry.Types()); err != nil {
		return nil, fmt.Errorf("plan workers: %w", err)
	}

	classifier := o.classifier
	if classifier == nil {
		classifier = intent.New(intent.Config{},
			intent.WithCandidates(req.Registry.Types()),
			intent.WithDebugLog(debugLog),
		)
	}
	resolver := o.resolver
	if resolver == nil {
		resolver = conflict.NewResolver()
	}

	var emitter *EventEmitter
	if o.eventBuffer > 0 {
		emitter = NewEventEmitter(o.eventBuffer)
	}

	maxQueue := cfg.MaxQueue
	if maxQueue < 0 {
		maxQueue = 0
	}

	return &Orchestrator{
		cfg:        cfg,
		registry:   req.Registry,
		builder:    req.Builder,
		translator: o.translator,
		classifier: classifier,
		scheduler:  sched,
		resolver:   resolver,
		deliverer:  o.deliverer,
		pool:       NewAdmissionPool(cfg.MaxInFlight, maxQueue, cfg.AvgProcessing),
		farmers:    newKeyedMutex(),
		emitter:    emitter,
		now:        o.now,
		units:      cfg.Budget.Units,
	}, nil
}

// Events returns the event stream, or nil when events are disabled.
func (o *Orchestrator) Events() <-chan Event {
	if o.emitter == nil {
		return nil
	}
	return o.emitter.Events()
}

// SetUnits replaces the unit conversions used by synthesis.
func (o *Orchestrator) SetUnits(u synth.UnitMap) {
	o.unitsMu.Lock()
	defer o.unitsMu.Unlock()
	o.units = u
}

// EstimateWait returns the wait a query submitted now would expect.
func (o *Orchestrator) EstimateWait() time.Duration {
	return o.pool.EstimateWait()
}

// Load reports the current admission state.
func (o *Orchestrator) Load() Load {
	return Load{
		InFlight:          o.pool.InFlight(),
		Queued:            o.pool.Depth(),
		EstimatedWait:     o.pool.EstimateWait(),
		AverageProcessing: o.pool.AverageProcessing(),
	}
}

// Explain classifies English text and returns the execution plan without
// running any worker.
func (o *Orchestrator) Explain(ctx context.Context, text string) (intent.Classification, scheduler.Plan, error) {
	q := models.Query{ID: uuid.NewString(), RawText: text, TranslatedText: text, Language: translate.English, ReceivedAt: o.now()}
	q.Entities = o.classifier.Extract(text)
	cls := o.classifier.Classify(ctx, q)
	if cls.NeedsClarification {
		return cls, scheduler.Plan{}, nil
	}
	plan, err := o.scheduler.Plan(cls.Workers)
	if err != nil {
		return cls, scheduler.Plan{}, fmt.Errorf("plan workers: %w", err)
	}
	return cls, plan, nil
}

// Submit admits a query without blocking. When every in-flight slot is
// taken the query waits in FIFO order and the ticket carries the estimated
// wait. When the queue is full Submit returns a resource exhaustion
// *Failure and a ticket holding the estimate.
//
// ctx governs both the wait for a slot and processing.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (*Ticket, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	o.wg.Add(1)
	o.mu.Unlock()

	q := o.newQuery(sub)
	adm, err := o.pool.Reserve()
	t := &Ticket{
		QueryID:       q.ID,
		Queued:        adm.Queued,
		Position:      adm.Position,
		EstimatedWait: adm.EstimatedWait,
		done:          make(chan struct{}),
	}
	if err != nil {
		o.wg.Done()
		f := queueFullFailure(formatWait(adm.EstimatedWait))
		log.Printf("[orchestrator] queue full, rejecting query %s (estimated wait %s)", q.ID, adm.EstimatedWait)
		o.emitter.Emit(Event{Type: EventQueryRejected, QueryID: q.ID, Error: f, EstimatedWait: adm.EstimatedWait})
		t.err = f
		close(t.done)
		return t, f
	}
	if adm.Queued {
		debugLog("[orchestrator] query %s queued at position %d, estimated wait %s", q.ID, adm.Position, adm.EstimatedWait)
		o.emitter.Emit(Event{Type: EventQueryQueued, QueryID: q.ID, EstimatedWait: adm.EstimatedWait})
	}

	go func() {
		defer o.wg.Done()
		defer close(t.done)
		if err := adm.Wait(ctx); err != nil {
			t.err = fmt.Errorf("wait for admission: %w", err)
			return
		}
		defer adm.Release()
		t.result, t.err = o.process(ctx, q, sub)
	}()
	return t, nil
}

// Handle submits a query and waits for its result.
func (o *Orchestrator) Handle(ctx context.Context, sub Submission) (*Result, error) {
	t, err := o.Submit(ctx, sub)
	if err != nil {
		return nil, err
	}
	return t.Wait(ctx)
}

// Close stops accepting queries and waits for admitted ones to finish.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.wg.Wait()
	if o.emitter != nil {
		if n := o.emitter.DroppedCount(); n > 0 {
			log.Printf("[orchestrator] %d events were dropped by a slow subscriber", n)
		}
		o.emitter.Close()
	}
	return nil
}

func (o *Orchestrator) newQuery(sub Submission) models.Query {
	sessionID := sub.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return models.Query{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		FarmerID:   sub.FarmerID,
		RawText:    sub.Text,
		ReceivedAt: o.now(),
	}
}

// process runs one admitted query through the pipeline.
func (o *Orchestrator) process(ctx context.Context, q models.Query, sub Submission) (*Result, error) {
	res := &Result{Query: q, Trace: Trace{QueryID: q.ID}}
	res.Trace.start(o.now())
	o.emitter.Emit(Event{Type: EventStateChanged, QueryID: q.ID, State: StateReceived})
	debugLog("[orchestrator] query %s received (farmer=%s session=%s)", q.ID, q.FarmerID, q.SessionID)

	budget := o.budget(sub)

	dctx, cancel := context.WithTimeout(ctx, o.cfg.QueryDeadline)
	defer cancel()
	// The outgoing leg and recording run past the deadline.
	tail := context.WithoutCancel(ctx)

	q, note, fatal := o.translateIn(dctx, q, sub.Language)
	if fatal != nil {
		return o.fail(tail, res, q, budget.Format, fatal)
	}
	q.Entities = o.classifier.Extract(q.Text())
	res.Query = q

	sc, err := o.builder.Build(dctx, q)
	if err != nil {
		return o.fail(tail, res, q, budget.Format, storeFailure(err))
	}
	o.advance(res, StateContextBuilt, "")

	cls := o.classifier.Classify(dctx, q)
	res.Classification = cls
	o.advance(res, StateClassified, cls.Reason)
	if cls.NeedsClarification {
		return o.clarify(tail, res, q, budget, cls)
	}

	q = q.WithIntents(cls.Workers, cls.Primary)
	res.Query = q
	plan, err := o.scheduler.Plan(cls.Workers)
	if err != nil {
		return o.fail(tail, res, q, budget.Format, configFailure(err))
	}
	o.advance(res, StateExecuting, fmt.Sprintf("%d workers in %d batches", len(plan.Workers()), len(plan.Batches)))

	results := o.scheduler.Run(dctx, plan, scheduler.Input{Query: q, Context: sc})
	for _, w := range plan.Workers() {
		r := results[w]
		o.emitter.Emit(Event{Type: EventWorkerFinished, QueryID: q.ID, Worker: w, Status: r.Status, Message: r.Error, Duration: r.Duration})
	}

	merged, conflicts := o.resolver.Resolve(results)
	for _, c := range conflicts {
		debugLog("[orchestrator] query %s conflict on %s between %v: %s", q.ID, c.Axis, c.Workers(), c.Outcome)
		o.emitter.Emit(Event{Type: EventConflict, QueryID: q.ID, Message: fmt.Sprintf("%s: %s", c.Axis, c.Outcome)})
	}
	o.advance(res, StateResolved, fmt.Sprintf("%d conflicts", len(conflicts)))

	budget.CompletedAt = o.now()
	resp := synth.Synthesize(merged, conflicts, q, budget)
	o.advance(res, StateSynthesized, "")

	resp = o.translateOut(tail, resp, q, budget.LineWidth)
	switch {
	case note != nil:
		resp.Error = note.Payload()
	case resp.Partial:
		resp.Error = partialFailure(partialSubkind(q, results), resp.MissingTopics, resp.Text).Payload()
	}
	resp.CompletedAt = o.now()
	resp.Duration = resp.CompletedAt.Sub(q.ReceivedAt)
	res.Response = resp

	if err := o.deliver(tail, resp, budget.Format); err != nil {
		f := deliveryFailure(err)
		f.PartialContent = resp.Text
		return o.fail(tail, res, q, budget.Format, f)
	}
	o.advance(res, StateDelivered, "")
	o.record(tail, q, resp.Text)
	o.finish(res, nil)
	return res, nil
}

// clarify answers a weakly classified query with a prompt to rephrase.
// No worker runs; the turn is still recorded so the next query in the
// session sees it.
func (o *Orchestrator) clarify(ctx context.Context, res *Result, q models.Query, budget synth.Budget, cls intent.Classification) (*Result, error) {
	format := budget.Format
	now := o.now()
	resp := models.Response{
		QueryID:            q.ID,
		Text:               clarificationPrompt,
		Language:           translate.English,
		Format:             format,
		Confidence:         cls.Confidence,
		NeedsClarification: true,
		CreatedAt:          q.ReceivedAt,
		CompletedAt:        now,
		Duration:           now.Sub(q.ReceivedAt),
	}
	resp = o.translateOut(ctx, resp, q, budget.LineWidth)
	resp.Error = clarificationFailure(cls.Reason).Payload()
	res.Response = resp

	if err := o.deliver(ctx, resp, format); err != nil {
		return o.fail(ctx, res, q, format, deliveryFailure(err))
	}
	o.advance(res, StateClarifying, cls.Reason)
	o.record(ctx, q, resp.Text)
	o.finish(res, nil)
	return res, nil
}

// fail moves the query to FAILED with a user-facing payload. The payload
// is delivered on a best-effort basis unless delivery itself failed.
func (o *Orchestrator) fail(ctx context.Context, res *Result, q models.Query, format models.FormatType, f *Failure) (*Result, error) {
	now := o.now()
	text := f.Message
	if len(f.NextActions) > 0 {
		text += " " + strings.Join(f.NextActions, " ")
	}
	res.Query = q
	res.Response = models.Response{
		QueryID:     q.ID,
		Text:        text,
		Language:    translate.English,
		Format:      format,
		Error:       f.Payload(),
		CreatedAt:   q.ReceivedAt,
		CompletedAt: now,
		Duration:    now.Sub(q.ReceivedAt),
	}
	o.advance(res, StateFailed, f.Error())
	log.Printf("[orchestrator] query %s failed: %v", q.ID, f)

	if f.Subkind != SubNetworkTimeout && o.deliverer != nil {
		if err := o.deliver(ctx, res.Response, format); err != nil {
			debugLog("[orchestrator] could not deliver failure for %s: %v", q.ID, err)
		}
	}
	o.finish(res, f)
	return res, f
}

// translateIn detects the query language and fills the English text. It
// returns a note when detection fell back to the primary language and a
// fatal failure when the language is unsupported. A failed translation
// keeps the raw text with zero confidence so the response is flagged.
func (o *Orchestrator) translateIn(ctx context.Context, q models.Query, hint string) (models.Query, *Failure, *Failure) {
	if o.translator == nil {
		q.Language = translate.English
		q.TranslatedText = q.RawText
		q.TranslationConfidence = 1
		return q, nil, nil
	}

	var note *Failure
	lang := hint
	switch {
	case lang != "":
		n, err := translate.Normalize(lang)
		if err != nil {
			return q, nil, unsupportedLanguageFailure(lang, err)
		}
		lang = n
	case strings.TrimSpace(q.RawText) == "":
		lang = o.cfg.PrimaryLanguage
	default:
		tctx, cancel := context.WithTimeout(ctx, o.cfg.TranslationTimeout)
		detected, err := o.translator.DetectLanguage(tctx, q.RawText)
		cancel()
		switch {
		case errors.Is(err, translate.ErrUnsupportedLanguage):
			return q, nil, unsupportedLanguageFailure(detected, err)
		case err != nil:
			log.Printf("[orchestrator] language detection failed for %s, assuming %s: %v", q.ID, o.cfg.PrimaryLanguage, err)
			lang = o.cfg.PrimaryLanguage
			note = detectionNote(lang)
		default:
			lang = detected
		}
	}
	q.Language = lang

	if lang == translate.English {
		q.TranslatedText = q.RawText
		q.TranslationConfidence = 1
		return q, note, nil
	}

	tctx, cancel := context.WithTimeout(ctx, o.cfg.TranslationTimeout)
	text, conf, err := o.translator.ToEnglish(tctx, q.RawText, lang)
	cancel()
	switch {
	case errors.Is(err, translate.ErrUnsupportedLanguage):
		return q, nil, unsupportedLanguageFailure(lang, err)
	case err != nil:
		log.Printf("[orchestrator] translation of %s from %s failed, using raw text: %v", q.ID, lang, err)
		q.TranslatedText = q.RawText
		q.TranslationConfidence = 0
	default:
		q.TranslatedText = text
		q.TranslationConfidence = conf
	}
	debugLog("[orchestrator] query %s language=%s confidence=%.2f", q.ID, lang, q.TranslationConfidence)
	return q, note, nil
}

// translateOut renders resp in the query's language. The translation is
// sanitized and wrapped to width again since translators may return escape
// codes or long lines. On failure the English text is kept and the response
// is flagged for review.
func (o *Orchestrator) translateOut(ctx context.Context, resp models.Response, q models.Query, width int) models.Response {
	resp.Language = translate.English
	if q.Language != translate.English && q.TranslationConfidence < o.cfg.ReviewThreshold {
		resp.FlaggedForReview = true
	}
	if o.translator == nil || q.Language == "" || q.Language == translate.English {
		return resp
	}

	tctx, cancel := context.WithTimeout(ctx, o.cfg.TranslationTimeout)
	defer cancel()
	text, conf, err := o.translator.FromEnglish(tctx, resp.Text, q.Language)
	if err != nil {
		log.Printf("[orchestrator] translation of response %s to %s failed, sending English: %v", q.ID, q.Language, err)
		resp.FlaggedForReview = true
		return resp
	}
	resp.Text = synth.Format(text, width)
	resp.Language = q.Language
	if conf < o.cfg.ReviewThreshold {
		resp.FlaggedForReview = true
	}
	return resp
}

// deliver sends resp, retrying once on a transient error.
func (o *Orchestrator) deliver(ctx context.Context, resp models.Response, format models.FormatType) error {
	if o.deliverer == nil {
		return nil
	}
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		dctx, cancel := context.WithTimeout(ctx, o.cfg.DeliveryTimeout)
		err = o.deliverer.Deliver(dctx, resp, format)
		cancel()
		if err == nil || !isTransient(err) {
			return err
		}
		if attempt == 0 {
			log.Printf("[orchestrator] delivery of %s failed, retrying: %v", resp.QueryID, err)
		}
	}
	return err
}

// record persists the turn and profile increment. Records for the same
// farmer never interleave.
func (o *Orchestrator) record(ctx context.Context, q models.Query, answer string) {
	if q.FarmerID == "" && q.SessionID == "" {
		return
	}
	unlock := o.farmers.Lock(q.FarmerID)
	defer unlock()
	if err := o.builder.Record(ctx, q, answer); err != nil {
		log.Printf("[orchestrator] WARNING: could not record query %s: %v", q.ID, err)
	}
}

func (o *Orchestrator) advance(res *Result, to State, note string) {
	if err := res.Trace.advance(to, o.now(), note); err != nil {
		log.Printf("[orchestrator] query %s: %v", res.Trace.QueryID, err)
		return
	}
	debugLog("[orchestrator] query %s -> %s %s", res.Trace.QueryID, to, note)
	o.emitter.Emit(Event{Type: EventStateChanged, QueryID: res.Trace.QueryID, State: to, Message: note})
}

func (o *Orchestrator) finish(res *Result, err error) {
	o.emitter.Emit(Event{
		Type:     EventQueryDone,
		QueryID:  res.Trace.QueryID,
		State:    res.Trace.State(),
		Error:    err,
		Duration: res.Response.Duration,
	})
}

func (o *Orchestrator) budget(sub Submission) synth.Budget {
	b := o.cfg.Budget
	o.unitsMu.RLock()
	b.Units = o.units
	o.unitsMu.RUnlock()
	b.LowBandwidth = sub.LowBandwidth
	if sub.Format != "" {
		b.Format = sub.Format
	}
	if b.Format == "" {
		b.Format = models.FormatPlain
	}
	if b.Format == models.FormatStructured {
		b.LineWidth = 0
	}
	return b
}

// partialSubkind reports timeout when any required worker timed out.
func partialSubkind(q models.Query, results map[models.WorkerType]models.WorkerResult) string {
	for _, w := range q.Intents {
		if r, ok := results[w]; ok && r.Status == models.StatusTimeout {
			return SubTimeout
		}
	}
	return SubCrash
}

func formatWait(d time.Duration) string {
	if d < time.Second {
		return "a few seconds"
	}
	return d.Round(time.Second).String()
}
