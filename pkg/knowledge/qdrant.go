package knowledge

import (
	"context"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vigil-ai/vigil/pkg/errors"
)

// QdrantStore is a Retriever/Indexer over a qdrant collection. Queries
// are embedded with the configured Embedder before search.
type QdrantStore struct {
	points         pb.PointsClient
	collections    pb.CollectionsClient
	embedder       Embedder
	collection     string
	scoreThreshold float32
}

// QdrantOption configures a QdrantStore.
type QdrantOption func(*QdrantStore)

// WithScoreThreshold drops search hits scoring below t.
func WithScoreThreshold(t float32) QdrantOption {
	return func(s *QdrantStore) { s.scoreThreshold = t }
}

// NewQdrantStore connects to qdrant at addr.
func NewQdrantStore(addr, collection string, embedder Embedder, opts ...QdrantOption) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.New(errors.CodeRetrievalError, "connect to qdrant", err).
			WithContext("addr", addr)
	}
	s := &QdrantStore{
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		embedder:    embedder,
		collection:  collection,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureCollection creates the collection when it does not exist yet.
func (s *QdrantStore) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: s.collection,
	})
	if err != nil {
		return errors.New(errors.CodeRetrievalError, "check collection", err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return errors.New(errors.CodeRetrievalError, "create collection", err).
			WithContext("collection", s.collection)
	}
	return nil
}

// Index embeds and upserts documents into the collection. qdrant only
// accepts UUID or integer point IDs, so human-readable document IDs are
// hashed into deterministic UUIDs and kept in the payload instead.
func (s *QdrantStore) Index(ctx context.Context, docs []Document) error {
	points := make([]*pb.PointStruct, 0, len(docs))
	for _, doc := range docs {
		vector, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return errors.New(errors.CodeRetrievalError, "embed document", err).
				WithContext("doc_id", doc.ID)
		}
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(doc.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vector},
				},
			},
			Payload: docPayload(doc),
		})
	}

	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return errors.New(errors.CodeRetrievalError, "upsert documents", err).
			WithContext("collection", s.collection)
	}
	return nil
}

// Retrieve embeds the query and returns the closest snippets.
func (s *QdrantStore) Retrieve(ctx context.Context, query string, limit int) ([]Snippet, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.New(errors.CodeRetrievalError, "embed query", err)
	}

	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if s.scoreThreshold > 0 {
		req.ScoreThreshold = &s.scoreThreshold
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, errors.New(errors.CodeRetrievalError, "search knowledge base", err).
			WithContext("collection", s.collection)
	}

	snippets := make([]Snippet, 0, len(resp.Result))
	for _, r := range resp.Result {
		snippets = append(snippets, snippetFromHit(r))
	}
	return snippets, nil
}

// pointID maps a document ID onto a stable UUID so re-indexing the same
// document overwrites its point instead of duplicating it.
func pointID(docID string) string {
	if docID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("vigil://knowledge/"+docID)).String()
}

func docPayload(doc Document) map[string]*pb.Value {
	payload := map[string]*pb.Value{
		"title":   stringValue(doc.Title),
		"content": stringValue(doc.Content),
	}
	if doc.ID != "" {
		payload["doc_id"] = stringValue(doc.ID)
	}
	if doc.Category != "" {
		payload["category"] = stringValue(doc.Category)
	}
	if doc.EventType != "" {
		payload["event_type"] = stringValue(doc.EventType)
	}
	return payload
}

func snippetFromHit(r *pb.ScoredPoint) Snippet {
	snippet := Snippet{Score: r.GetScore()}
	if uid := r.GetId().GetUuid(); uid != "" {
		snippet.ID = uid
	}
	for key, value := range r.GetPayload() {
		switch key {
		case "doc_id":
			snippet.ID = value.GetStringValue()
		case "title":
			snippet.Title = value.GetStringValue()
		case "content":
			snippet.Content = value.GetStringValue()
		case "category":
			snippet.Category = value.GetStringValue()
		}
	}
	return snippet
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}
