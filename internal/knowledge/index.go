// Package knowledge maintains the vector index of reference documents
// the automated agent searches over.
package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	collectionName = "knowledge_chunks"
	embeddingDim   = 1536 // text-embedding-3-small
)

// bearerAuth implements credentials.PerRPCCredentials for Qdrant
// API-key authentication.
type bearerAuth struct {
	key string
}

func (b *bearerAuth) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.key}, nil
}

func (b *bearerAuth) RequireTransportSecurity() bool {
	return false
}

// Index stores and searches document chunks in Qdrant, embedded with
// OpenAI embeddings.
type Index struct {
	openaiClient *openai.Client
	collections  qdrant.CollectionsClient
	points       qdrant.PointsClient
	conn         *grpc.ClientConn
}

// NewIndex connects to Qdrant over gRPC. An empty apiKey disables
// per-RPC authentication.
func NewIndex(openaiAPIKey, qdrantURL, qdrantAPIKey string) (*Index, error) {
	var dialOpts []grpc.DialOption
	if qdrantAPIKey != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(&bearerAuth{key: qdrantAPIKey}))
	}
	dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))

	conn, err := grpc.NewClient(qdrantURL, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	return &Index{
		openaiClient: openai.NewClient(openaiAPIKey),
		collections:  qdrant.NewCollectionsClient(conn),
		points:       qdrant.NewPointsClient(conn),
		conn:         conn,
	}, nil
}

// Close releases the Qdrant connection.
func (i *Index) Close() {
	if i.conn != nil {
		i.conn.Close()
	}
}

// CheckHealth verifies the Qdrant connection by listing collections.
func (i *Index) CheckHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := i.collections.List(ctx, &qdrant.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("qdrant connection failed: %w", err)
	}
	return nil
}

// Upload chunks a document, embeds every chunk and upserts the points.
// Returns the number of chunks indexed.
func (i *Index) Upload(ctx context.Context, docID, filename string, data []byte) (int, error) {
	if err := i.ensureCollection(ctx); err != nil {
		return 0, err
	}

	chunks := chunkText(string(data), defaultChunkSize, defaultChunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s contains no indexable text", filename)
	}

	embeddings, err := i.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for n, chunk := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: uuid.New().String()},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: embeddings[n]},
				},
			},
			Payload: map[string]*qdrant.Value{
				"doc_id":   {Kind: &qdrant.Value_StringValue{StringValue: docID}},
				"filename": {Kind: &qdrant.Value_StringValue{StringValue: filename}},
				"chunk":    {Kind: &qdrant.Value_StringValue{StringValue: chunk}},
				"ordinal":  {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(n)}},
			},
		})
	}

	_, err = i.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert document chunks: %w", err)
	}

	log.Info().Str("doc_id", docID).Str("filename", filename).Int("chunks", len(chunks)).Msg("document indexed")
	return len(chunks), nil
}

// Search returns the text of the chunks most similar to the query.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]string, error) {
	embeddings, err := i.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	resp, err := i.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collectionName,
		Vector:         embeddings[0],
		Limit:          uint64(limit),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge index: %w", err)
	}

	chunks := make([]string, 0, len(resp.Result))
	for _, point := range resp.Result {
		if payload := point.Payload; payload != nil {
			if chunk, ok := payload["chunk"]; ok {
				if s, ok := chunk.Kind.(*qdrant.Value_StringValue); ok {
					chunks = append(chunks, s.StringValue)
				}
			}
		}
	}
	return chunks, nil
}

// Delete removes every chunk of a document from the index.
func (i *Index) Delete(ctx context.Context, docID string) error {
	_, err := i.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						{
							ConditionOneOf: &qdrant.Condition_Field{
								Field: &qdrant.FieldCondition{
									Key: "doc_id",
									Match: &qdrant.Match{
										MatchValue: &qdrant.Match_Keyword{Keyword: docID},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete document from index: %w", err)
	}
	return nil
}

func (i *Index) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := i.openaiClient.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.SmallEmbedding3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(resp.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (i *Index) ensureCollection(ctx context.Context) error {
	_, err := i.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: collectionName,
	})
	if err == nil {
		return nil
	}

	_, err = i.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     embeddingDim,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collectionName, err)
	}
	log.Info().Str("collection", collectionName).Msg("created knowledge collection")
	return nil
}
