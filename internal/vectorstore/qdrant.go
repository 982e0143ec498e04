// Package vectorstore provides the Qdrant-backed fable index.
package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("fabled.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Config holds configuration for the Qdrant gRPC client.
type Config struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334 by default, not the REST 6333).
	Port int

	// Collection is the fable collection name.
	Collection string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// RetryBackoff is the wait before the single retry on a transient
	// failure. Default: 1 second.
	RetryBackoff time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if !collectionNamePattern.MatchString(c.Collection) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, c.Collection)
	}
	return nil
}

// isTransientError reports whether an error is worth one retry.
// Network timeouts and temporary unavailability qualify; invalid
// arguments, not-found, and permission errors do not.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// isNotFound reports whether a gRPC error is a NotFound status.
func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}

// QdrantStore is the fable vector index backed by Qdrant's native gRPC
// client. The backing store is externally owned; the store performs no
// local caching of search results.
type QdrantStore struct {
	client *qdrant.Client
	config Config
}

// NewQdrantStore creates a store and verifies connectivity with a
// health check.
func NewQdrantStore(cfg Config) (*QdrantStore, error) {
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	return store, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Collection returns the configured collection name.
func (s *QdrantStore) Collection() string {
	return s.config.Collection
}

// retryOnce runs an operation, retrying exactly once after a backoff if
// the failure looks transient. Anything beyond that surfaces to the
// caller; unbounded retries would mask outages.
func (s *QdrantStore) retryOnce(ctx context.Context, operationName string, operation func() error) error {
	err := operation()
	if err == nil {
		return nil
	}
	if !isTransientError(err) {
		return fmt.Errorf("%s: %w", operationName, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
	case <-time.After(s.config.RetryBackoff):
	}

	if err := operation(); err != nil {
		return fmt.Errorf("%s failed after retry: %w: %v", operationName, ErrConnectionFailed, err)
	}
	return nil
}

// EnsureCollection creates the collection if absent and verifies the
// vector dimension and distance metric if present. Idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension uint64) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int64("dimension", int64(dimension)),
	)

	err := s.VerifySchema(ctx, dimension)
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "exists")
		return nil
	case isCollectionMissing(err):
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err = s.retryOnce(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dimension,
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}

	span.SetStatus(codes.Ok, "created")
	return nil
}

// VerifySchema checks that the collection exists and matches the
// expected vector dimension and cosine metric. Returns
// ErrCollectionMissing or ErrSchemaMismatch.
func (s *QdrantStore) VerifySchema(ctx context.Context, dimension uint64) error {
	var info *qdrant.CollectionInfo
	err := s.retryOnce(ctx, "get_collection_info", func() error {
		res, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
		if err != nil {
			if isNotFound(err) {
				return errCollectionMissing(s.config.Collection)
			}
			return err
		}
		info = res
		return nil
	})
	if err != nil {
		if isCollectionMissing(err) {
			return err
		}
		return fmt.Errorf("verifying collection %s: %w", s.config.Collection, err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("%w: collection %s has no vector params", ErrSchemaMismatch, s.config.Collection)
	}
	if params.GetSize() != dimension {
		return fmt.Errorf("%w: collection %s has dimension %d, encoder produces %d",
			ErrSchemaMismatch, s.config.Collection, params.GetSize(), dimension)
	}
	if params.GetDistance() != qdrant.Distance_Cosine {
		return fmt.Errorf("%w: collection %s uses distance %s, want Cosine",
			ErrSchemaMismatch, s.config.Collection, params.GetDistance())
	}
	return nil
}

// DeleteCollection drops the collection and all its fables. Used by the
// corpus initializer for full re-initialization.
func (s *QdrantStore) DeleteCollection(ctx context.Context) error {
	err := s.retryOnce(ctx, "delete_collection", func() error {
		return s.client.DeleteCollection(ctx, s.config.Collection)
	})
	if err != nil {
		return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
	}
	return nil
}

// CollectionExists reports whether the fable collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.retryOnce(ctx, "collection_exists", func() error {
		_, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
		if err != nil {
			if isNotFound(err) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	return exists, nil
}

// Count returns the number of fables in the collection. A missing
// collection counts as zero.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.retryOnce(ctx, "count", func() error {
		info, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
		if err != nil {
			if isNotFound(err) {
				count = 0
				return nil
			}
			return err
		}
		count = info.GetPointsCount()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting fables: %w", err)
	}
	return count, nil
}

// UpsertFables inserts or replaces fables with their embeddings. The
// fable ID doubles as the point ID, so repeated upserts with the same
// ID are idempotent.
func (s *QdrantStore) UpsertFables(ctx context.Context, fables []Fable, vectors [][]float32) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.UpsertFables")
	defer span.End()
	span.SetAttributes(
		attribute.Int("fable_count", len(fables)),
		attribute.String("collection", s.config.Collection),
	)

	if len(fables) == 0 {
		return nil
	}
	if len(fables) != len(vectors) {
		return fmt.Errorf("fable/vector count mismatch: %d != %d", len(fables), len(vectors))
	}

	points := make([]*qdrant.PointStruct, len(fables))
	for i, f := range fables {
		if f.ID <= 0 {
			return fmt.Errorf("fable %q has non-positive id %d", f.Title, f.ID)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(f.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: fablePayload(f),
		}
	}

	err := s.retryOnce(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isNotFound(err) {
			return errCollectionMissing(s.config.Collection)
		}
		return fmt.Errorf("upserting fables: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search returns up to limit fables whose cosine similarity to the
// query vector passes threshold (inclusive), ordered by descending
// score with ties broken by ascending fable ID. An empty corpus yields
// an empty slice, not an error.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit uint64, threshold *float32) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int64("limit", int64(limit)),
	)

	if limit == 0 {
		return nil, ErrInvalidLimit
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}

	var points []*qdrant.ScoredPoint
	err := s.retryOnce(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(limit),
			ScoreThreshold: threshold,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isNotFound(err) {
			return nil, errCollectionMissing(s.config.Collection)
		}
		return nil, fmt.Errorf("searching fables: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, SearchResult{
			Fable: payloadFable(p.GetId().GetNum(), p.GetPayload()),
			Score: p.GetScore(),
		})
	}
	SortResults(results)

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// GetFable retrieves a single fable by ID. Pure key lookup.
func (s *QdrantStore) GetFable(ctx context.Context, id int) (*Fable, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id %d", ErrFableNotFound, id)
	}

	var points []*qdrant.RetrievedPoint
	err := s.retryOnce(ctx, "get_fable", func() error {
		res, err := s.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: s.config.Collection,
			Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(id))},
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errCollectionMissing(s.config.Collection)
		}
		return nil, fmt.Errorf("retrieving fable %d: %w", id, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrFableNotFound, id)
	}

	f := payloadFable(points[0].GetId().GetNum(), points[0].GetPayload())
	return &f, nil
}
