package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// CollectionName is the chromem collection holding every entity's memories.
// Entities are separated by metadata filtering.
const CollectionName = "memscope_memories"

// Metadata keys stored on each document.
const (
	metaEntity    = "entity_id"
	metaProcess   = "process_id"
	metaKind      = "kind"
	metaCreatedAt = "created_at"
)

// ErrConnClosed is returned by a Conn after Close.
var ErrConnClosed = errors.New("memory: connection closed")

var storeTracer = otel.Tracer("memscope.memory.store")

// Record is a memory as stored.
type Record struct {
	ID        string
	EntityID  string
	ProcessID string
	Kind      string
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// Hit is a recalled memory and its cosine similarity to the query.
type Hit struct {
	Record
	Similarity float32
}

// Conn is one handle to durable memory storage. A Conn is used by a single
// engine; independent engines get independent connections.
type Conn interface {
	// EnsureSchema creates the backing collection if it does not exist.
	EnsureSchema(ctx context.Context) error
	// Put writes r atomically. A record with the same ID is replaced.
	Put(ctx context.Context, r Record) error
	// Search returns up to limit records of entityID ordered by similarity.
	Search(ctx context.Context, entityID string, query []float32, limit int) ([]Hit, error)
	Close() error
}

// ConnFactory returns a fresh connection. It must be safe to call
// concurrently.
type ConnFactory func() (Conn, error)

// StoreConfig configures the chromem-backed store.
type StoreConfig struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path     string
	Compress bool
	// Embed is used by chromem when a document arrives without a vector.
	Embed chromem.EmbeddingFunc
}

// NewConnFactory returns a factory over one shared chromem database. The
// database is opened on the first call; every call after that hands out a
// new lightweight connection onto it, so writes from one scope are visible
// to the next immediately.
func NewConnFactory(cfg StoreConfig, logger *zap.Logger) ConnFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Embed == nil {
		cfg.Embed = HashEmbed
	}
	open := sync.OnceValues(func() (*chromem.DB, error) {
		db, err := openDB(cfg, logger)
		if err != nil {
			return nil, err
		}
		// Bind the embedding function once; chromem sets it lazily on
		// collections loaded from disk.
		if _, err := db.GetOrCreateCollection(CollectionName, nil, cfg.Embed); err != nil {
			return nil, fmt.Errorf("getting/creating collection %s: %w", CollectionName, err)
		}
		return db, nil
	})
	return func() (Conn, error) {
		db, err := open()
		if err != nil {
			return nil, err
		}
		return &chromemConn{db: db, embed: cfg.Embed, logger: logger}, nil
	}
}

func openDB(cfg StoreConfig, logger *zap.Logger) (*chromem.DB, error) {
	if cfg.Path == "" {
		logger.Info("memory store opened", zap.String("mode", "in-memory"))
		return chromem.NewDB(), nil
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding memory path: %w", err)
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("creating memory directory %s: %w", path, err)
	}
	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}
	logger.Info("memory store opened",
		zap.String("path", path),
		zap.Bool("compress", cfg.Compress),
	)
	return db, nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

type chromemConn struct {
	db     *chromem.DB
	embed  chromem.EmbeddingFunc
	logger *zap.Logger

	mu     sync.Mutex
	col    *chromem.Collection
	closed atomic.Bool
}

func (c *chromemConn) EnsureSchema(ctx context.Context) error {
	_, err := c.collection()
	return err
}

func (c *chromemConn) collection() (*chromem.Collection, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.col != nil {
		return c.col, nil
	}
	col, err := c.db.GetOrCreateCollection(CollectionName, nil, c.embed)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", CollectionName, err)
	}
	c.col = col
	return col, nil
}

func (c *chromemConn) Put(ctx context.Context, r Record) error {
	ctx, span := storeTracer.Start(ctx, "memory.Put")
	defer span.End()
	span.SetAttributes(attribute.String("entity_id", r.EntityID), attribute.String("kind", r.Kind))

	col, err := c.collection()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	doc := chromem.Document{
		ID:        r.ID,
		Content:   r.Text,
		Embedding: r.Embedding,
		Metadata: map[string]string{
			metaEntity:    r.EntityID,
			metaProcess:   r.ProcessID,
			metaKind:      r.Kind,
			metaCreatedAt: created.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding memory %s: %w", r.ID, err)
	}
	return nil
}

func (c *chromemConn) Search(ctx context.Context, entityID string, query []float32, limit int) ([]Hit, error) {
	ctx, span := storeTracer.Start(ctx, "memory.Search")
	defer span.End()
	span.SetAttributes(attribute.String("entity_id", entityID), attribute.Int("limit", limit))

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	col, err := c.collection()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// chromem rejects nResults above the collection size.
	n := min(limit, col.Count())
	if n == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, query, n, map[string]string{metaEntity: entityID}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying memories: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		created, _ := time.Parse(time.RFC3339Nano, res.Metadata[metaCreatedAt])
		hits = append(hits, Hit{
			Record: Record{
				ID:        res.ID,
				EntityID:  res.Metadata[metaEntity],
				ProcessID: res.Metadata[metaProcess],
				Kind:      res.Metadata[metaKind],
				Text:      res.Content,
				CreatedAt: created,
			},
			Similarity: res.Similarity,
		})
	}
	span.SetAttributes(attribute.Int("results_count", len(hits)))
	return hits, nil
}

// Close detaches the connection. The shared database stays open for other
// connections.
func (c *chromemConn) Close() error {
	c.closed.Store(true)
	return nil
}
