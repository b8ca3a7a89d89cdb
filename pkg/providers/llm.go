package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// ChatRequest is a structured-output LLM call: the caller supplies a JSON
// schema name and the provider is expected to constrain its response to
// that schema, mirroring how the pack's basegraph relay extracts keywords
// via a typed, schema-described response instead of free text.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       map[string]any
	Temperature  float32
}

// ChatResponse carries token accounting alongside the raw JSON payload so
// callers can both unmarshal into their own type and log usage.
type ChatResponse struct {
	RawJSON          json.RawMessage
	PromptTokens     int
	CompletionTokens int
}

// LLMProvider is the capability set for structured LLM calls used by
// semantic expansion, intent classification, and cluster label enhancement.
type LLMProvider interface {
	Model() string
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// EmbeddingProvider returns dense vector embeddings for a batch of phrases,
// preserving input order.
type EmbeddingProvider interface {
	GetEmbeddings(ctx context.Context, phrases []string) ([][]float32, error)
	Dimensions() int
}

// grpcChatMethod is the fully-qualified RPC method the LLM sidecar exposes.
// Requests and responses are carried as google.protobuf.Struct so the
// provider doesn't need generated message types for every schema it calls
// with — the schema itself travels in the Struct payload.
const grpcChatMethod = "/kwpipeline.llm.LLMService/Chat"
const grpcEmbedMethod = "/kwpipeline.llm.LLMService/Embed"

// GRPCLLMProvider implements LLMProvider over a gRPC connection to an LLM
// sidecar, in the same shape as the teacher's dedicated LLM service client:
// one long-lived connection, model/temperature configured at construction.
type GRPCLLMProvider struct {
	conn        *grpc.ClientConn
	model       string
	temperature float32
}

// NewGRPCLLMProvider dials addr and returns a GRPCLLMProvider. Transport
// is plaintext — the sidecar is expected to live on localhost or inside
// the same pod.
func NewGRPCLLMProvider(addr, model string, temperature float32) (*GRPCLLMProvider, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial llm service: %w", err)
	}
	return &GRPCLLMProvider{conn: conn, model: model, temperature: temperature}, nil
}

// Close releases the underlying gRPC connection.
func (p *GRPCLLMProvider) Close() error { return p.conn.Close() }

func (p *GRPCLLMProvider) Model() string { return p.model }

// Chat marshals req into a structpb.Struct, invokes the Chat RPC, and
// returns the raw JSON response for the caller to unmarshal into its own
// schema-described type.
func (p *GRPCLLMProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	reqMap := map[string]any{
		"system_prompt": req.SystemPrompt,
		"user_prompt":   req.UserPrompt,
		"schema_name":   req.SchemaName,
		"model":         p.model,
		"temperature":   req.Temperature,
	}
	if req.Temperature == 0 {
		reqMap["temperature"] = p.temperature
	}
	reqStruct, err := structpb.NewStruct(reqMap)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("encode chat request: %w", err)
	}

	var reply structpb.Struct
	if err := p.conn.Invoke(ctx, grpcChatMethod, reqStruct, &reply); err != nil {
		return ChatResponse{}, fmt.Errorf("llm chat rpc: %w", err)
	}

	raw, err := reply.MarshalJSON()
	if err != nil {
		return ChatResponse{}, fmt.Errorf("decode chat response: %w", err)
	}

	var envelope struct {
		Payload          json.RawMessage `json:"payload"`
		PromptTokens     int             `json:"prompt_tokens"`
		CompletionTokens int             `json:"completion_tokens"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ChatResponse{RawJSON: raw}, nil
	}
	return ChatResponse{
		RawJSON:          envelope.Payload,
		PromptTokens:     envelope.PromptTokens,
		CompletionTokens: envelope.CompletionTokens,
	}, nil
}

// Health probes the LLM sidecar with the standard gRPC health-checking
// protocol rather than a bespoke ping RPC.
func (p *GRPCLLMProvider) Health(ctx context.Context) (ProviderHealth, error) {
	client := grpc_health_v1.NewHealthClient(p.conn)
	start := time.Now()
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	latency := time.Since(start)
	if err != nil {
		return ProviderHealth{Provider: "llm." + p.model, Healthy: false, LastLatency: latency}, err
	}
	return ProviderHealth{
		Provider:    "llm." + p.model,
		Healthy:     resp.Status == grpc_health_v1.HealthCheckResponse_SERVING,
		LastLatency: latency,
	}, nil
}

// GRPCEmbeddingProvider implements EmbeddingProvider over the same kind of
// gRPC sidecar connection as GRPCLLMProvider.
type GRPCEmbeddingProvider struct {
	conn *grpc.ClientConn
	dims int
}

// NewGRPCEmbeddingProvider dials addr for embeddings of the given dimension
// (float32[1536]).
func NewGRPCEmbeddingProvider(addr string, dims int) (*GRPCEmbeddingProvider, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial embedding service: %w", err)
	}
	if dims <= 0 {
		dims = 1536
	}
	return &GRPCEmbeddingProvider{conn: conn, dims: dims}, nil
}

func (p *GRPCEmbeddingProvider) Close() error { return p.conn.Close() }

func (p *GRPCEmbeddingProvider) Dimensions() int { return p.dims }

// GetEmbeddings sends phrases in one batch and returns vectors in the same
// order, matching the caller's preserved-order contract.
func (p *GRPCEmbeddingProvider) GetEmbeddings(ctx context.Context, phrases []string) ([][]float32, error) {
	items := make([]any, len(phrases))
	for i, ph := range phrases {
		items[i] = ph
	}
	reqStruct, err := structpb.NewStruct(map[string]any{"phrases": items})
	if err != nil {
		return nil, fmt.Errorf("encode embedding request: %w", err)
	}

	var reply structpb.Struct
	if err := p.conn.Invoke(ctx, grpcEmbedMethod, reqStruct, &reply); err != nil {
		return nil, fmt.Errorf("embedding rpc: %w", err)
	}

	raw, err := reply.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	var envelope struct {
		Vectors [][]float32 `json:"vectors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode embedding vectors: %w", err)
	}
	return envelope.Vectors, nil
}
