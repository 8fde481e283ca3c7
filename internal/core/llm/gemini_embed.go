package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	pb "cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/markdave123-py/docingest/internal/core"
)

const defaultGeminiModel = "gemini-embedding-001"

// geminiClient is the slice of the generative language client the embedder calls.
type geminiClient interface {
	BatchEmbedContents(ctx context.Context, req *pb.BatchEmbedContentsRequest, opts ...gax.CallOption) (*pb.BatchEmbedContentsResponse, error)
	Close() error
}

// GeminiEmbedder embeds document chunks with a Gemini embedding model.
// When dim is set the model is asked for vectors of exactly that size, so
// EMBED_DIM can be met by models whose native size is larger.
type GeminiEmbedder struct {
	client geminiClient
	model  string // models/<name>
	dim    int32
	logger *slog.Logger
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, dim int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	cl, err := generativelanguage.NewGenerativeRESTClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return newGeminiEmbedder(cl, modelName, dim), nil
}

func newGeminiEmbedder(cl geminiClient, modelName string, dim int) *GeminiEmbedder {
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	if !strings.Contains(modelName, "/") {
		modelName = "models/" + modelName
	}
	return &GeminiEmbedder{
		client: cl,
		model:  modelName,
		dim:    int32(max(dim, 0)),
		logger: slog.Default().With("component", "gemini-embedder", "model", modelName),
	}
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedTexts embeds texts as retrieval documents, at most MaxBatchSize per
// request. Callers normally bound the batch already; see BatchEmbedder.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	g.logger.DebugContext(ctx, "generating embeddings", "count", len(texts), "dim", g.dim)

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		batch := texts[start:min(start+MaxBatchSize, len(texts))]

		resp, err := g.client.BatchEmbedContents(ctx, g.request(batch))
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		if len(resp.GetEmbeddings()) != len(batch) {
			return nil, fmt.Errorf("gemini batch embed: got %d embeddings for %d inputs", len(resp.GetEmbeddings()), len(batch))
		}
		for _, e := range resp.GetEmbeddings() {
			out = append(out, e.GetValues())
		}
	}
	return out, nil
}

func (g *GeminiEmbedder) request(texts []string) *pb.BatchEmbedContentsRequest {
	taskType := pb.TaskType_RETRIEVAL_DOCUMENT
	req := &pb.BatchEmbedContentsRequest{
		Model:    g.model,
		Requests: make([]*pb.EmbedContentRequest, len(texts)),
	}
	for i, t := range texts {
		r := &pb.EmbedContentRequest{
			Model: g.model,
			Content: &pb.Content{
				Parts: []*pb.Part{{Data: &pb.Part_Text{Text: t}}},
			},
			TaskType: &taskType,
		}
		if g.dim > 0 {
			r.OutputDimensionality = &g.dim
		}
		req.Requests[i] = r
	}
	return req
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
