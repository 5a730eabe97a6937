package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memscope/internal/provider"
	"github.com/fyrsmithlabs/memscope/internal/secrets"
)

var (
	// ErrEngineClosed is returned by Generate after Close.
	ErrEngineClosed = errors.New("memory: engine closed")

	// ErrNotRegistered is returned by Generate before Register.
	ErrNotRegistered = errors.New("memory: no provider registered")

	// ErrAlreadyRegistered is returned by a second Register.
	ErrAlreadyRegistered = errors.New("memory: provider already registered")

	// ErrNoAttribution is returned by Generate before Attribution.
	ErrNoAttribution = errors.New("memory: attribution not set")
)

// recallHeader introduces injected memories in the prompt.
const recallHeader = "Relevant facts about the user from earlier conversations:"

// memoryNamespace seeds deterministic memory ids, so restating a fact
// overwrites it instead of duplicating it.
var memoryNamespace = uuid.MustParse("6f1d3c2a-8a51-4f0e-9c3e-2b7d5e4a9f10")

var engineTracer = otel.Tracer("memscope.memory")

// Options configures an Engine. Zero values take defaults.
type Options struct {
	Embed         chromem.EmbeddingFunc
	Extractor     *Extractor
	Scrubber      secrets.Scrubber
	RecallLimit   int
	MinSimilarity float32
	QueueSize     int
	// JobTimeout bounds the embedding and write of one job.
	JobTimeout time.Duration
	Logger     *zap.Logger
}

func (o *Options) applyDefaults() error {
	if o.Embed == nil {
		o.Embed = HashEmbed
	}
	if o.Extractor == nil {
		ex, err := NewExtractor(nil)
		if err != nil {
			return err
		}
		o.Extractor = ex
	}
	if o.Scrubber == nil {
		o.Scrubber = secrets.MustNew(nil)
	}
	if o.RecallLimit <= 0 {
		o.RecallLimit = 5
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}

// job is either a turn to augment or, when barrier is set, a marker that
// is closed once everything queued ahead of it has been processed.
type job struct {
	prompt    string
	entityID  string
	processID string
	barrier   chan struct{}
}

// Engine intercepts model calls for one attribution. Create with
// NewEngine; release with Close.
type Engine struct {
	opts Options
	conn Conn

	mu        sync.RWMutex
	handle    provider.Handle
	entityID  string
	processID string
	logger    *zap.Logger
	closed    bool

	jobs chan job
	done chan struct{}
}

// NewEngine takes one connection from conns and starts the augmentation
// worker.
func NewEngine(conns ConnFactory, opts Options) (*Engine, error) {
	if conns == nil {
		return nil, errors.New("memory: connection factory is required")
	}
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	conn, err := conns()
	if err != nil {
		return nil, fmt.Errorf("opening memory connection: %w", err)
	}

	e := &Engine{
		opts:   opts,
		conn:   conn,
		logger: opts.Logger,
		jobs:   make(chan job, opts.QueueSize),
		done:   make(chan struct{}),
	}
	go e.run()
	return e, nil
}

// Register binds the provider handle whose calls are augmented.
func (e *Engine) Register(h provider.Handle) error {
	if h == nil {
		return errors.New("memory: nil provider handle")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.handle != nil {
		return ErrAlreadyRegistered
	}
	e.handle = h
	return nil
}

// Attribution sets the entity and process that memories are written for
// and recalled from.
func (e *Engine) Attribution(entityID, processID string) error {
	entityID = strings.TrimSpace(entityID)
	processID = strings.TrimSpace(processID)
	if entityID == "" || processID == "" {
		return errors.New("memory: entity and process ids are required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entityID = entityID
	e.processID = processID
	e.logger = e.opts.Logger.With(zap.String("entity_id", entityID), zap.String("process_id", processID))
	return nil
}

// EnsureSchema builds the store's collection if absent.
func (e *Engine) EnsureSchema(ctx context.Context) error {
	return e.conn.EnsureSchema(ctx)
}

// Generate recalls the entity's memories into the prompt, calls the model
// and queues prompt for augmentation. Recall failures degrade to an
// unaugmented prompt. A failed model call queues nothing.
func (e *Engine) Generate(ctx context.Context, prompt string) (string, error) {
	e.mu.RLock()
	h, entityID, processID, logger, closed := e.handle, e.entityID, e.processID, e.logger, e.closed
	e.mu.RUnlock()

	switch {
	case closed:
		return "", ErrEngineClosed
	case h == nil:
		return "", ErrNotRegistered
	case entityID == "":
		return "", ErrNoAttribution
	}

	augmented, err := e.recall(ctx, entityID, prompt)
	if err != nil {
		logger.Warn("memory recall failed, continuing without memories", zap.Error(err))
		augmented = prompt
	}

	reply, err := h.Generate(ctx, augmented)
	if err != nil {
		return "", err
	}

	if err := e.enqueue(ctx, job{prompt: prompt, entityID: entityID, processID: processID}); err != nil {
		logger.Warn("augmentation not queued", zap.Error(err))
	}
	return reply, nil
}

// Recall returns the stored memories for entityID most similar to query,
// filtered by the minimum similarity.
func (e *Engine) Recall(ctx context.Context, entityID, query string) ([]Hit, error) {
	ctx, span := engineTracer.Start(ctx, "memory.Recall")
	defer span.End()

	emb, err := e.opts.Embed(ctx, query)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	hits, err := e.conn.Search(ctx, entityID, emb, e.opts.RecallLimit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	kept := hits[:0]
	for _, h := range hits {
		if h.Similarity >= e.opts.MinSimilarity {
			kept = append(kept, h)
		}
	}
	span.SetAttributes(attribute.Int("hits", len(kept)))
	recallHits.Observe(float64(len(kept)))
	return kept, nil
}

func (e *Engine) recall(ctx context.Context, entityID, prompt string) (string, error) {
	hits, err := e.Recall(ctx, entityID, prompt)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return prompt, nil
	}

	var b strings.Builder
	b.WriteString(recallHeader)
	b.WriteByte('\n')
	for _, h := range hits {
		b.WriteString("- ")
		b.WriteString(h.Text)
		b.WriteByte('\n')
	}
	b.WriteString("\n")
	b.WriteString(prompt)
	return b.String(), nil
}

// enqueue blocks while the queue is full, until ctx is done.
func (e *Engine) enqueue(ctx context.Context, j job) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	select {
	case e.jobs <- j:
		queueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AugmentAndWait blocks until every job queued before the call has been
// committed, or ctx is done. After Close it returns immediately: Close
// drains the queue.
func (e *Engine) AugmentAndWait(ctx context.Context) error {
	start := time.Now()
	defer func() { barrierWait.Observe(time.Since(start).Seconds()) }()

	marker := make(chan struct{})
	if err := e.enqueue(ctx, job{barrier: marker}); err != nil {
		if errors.Is(err, ErrEngineClosed) {
			return nil
		}
		return err
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, finishes queued jobs and releases the
// connection. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return nil
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	<-e.done
	return e.conn.Close()
}

func (e *Engine) run() {
	defer close(e.done)
	for j := range e.jobs {
		queueDepth.Dec()
		if j.barrier != nil {
			close(j.barrier)
			continue
		}
		e.augment(j)
	}
}

// augment stores the facts stated in one user prompt. A panic fails the
// job, not the worker.
func (e *Engine) augment(j job) {
	defer func() {
		if r := recover(); r != nil {
			augmentationsTotal.WithLabelValues("error").Inc()
			e.opts.Logger.Error("augmentation panicked",
				zap.String("entity_id", j.entityID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.JobTimeout)
	defer cancel()
	ctx, span := engineTracer.Start(ctx, "memory.Augment")
	defer span.End()

	logger := e.opts.Logger.With(zap.String("entity_id", j.entityID), zap.String("process_id", j.processID))

	facts := e.opts.Extractor.Extract(j.prompt)
	span.SetAttributes(attribute.Int("facts", len(facts)))
	if len(facts) == 0 {
		augmentationsTotal.WithLabelValues("empty").Inc()
		return
	}

	var failed error
	for _, f := range facts {
		text := f.Text
		if res := e.opts.Scrubber.Scrub(text); res.HasFindings() {
			secretsRedacted.Add(float64(len(res.Findings)))
			text = res.Scrubbed
		}

		emb, err := e.opts.Embed(ctx, text)
		if err != nil {
			failed = errors.Join(failed, fmt.Errorf("embedding fact: %w", err))
			continue
		}

		rec := Record{
			ID:        uuid.NewSHA1(memoryNamespace, []byte(j.entityID+"\x00"+strings.ToLower(text))).String(),
			EntityID:  j.entityID,
			ProcessID: j.processID,
			Kind:      f.Kind,
			Text:      text,
			Embedding: emb,
			CreatedAt: time.Now(),
		}
		if err := e.conn.Put(ctx, rec); err != nil {
			failed = errors.Join(failed, err)
			continue
		}
		factsStored.WithLabelValues(f.Kind).Inc()
		logger.Debug("memory stored", zap.String("memory_id", rec.ID), zap.String("kind", f.Kind))
	}

	if failed != nil {
		span.RecordError(failed)
		span.SetStatus(codes.Error, failed.Error())
		augmentationsTotal.WithLabelValues("error").Inc()
		logger.Error("augmentation failed", zap.Error(failed))
		return
	}
	augmentationsTotal.WithLabelValues("stored").Inc()
}
