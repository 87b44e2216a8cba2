package codec

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region methods
// Full method names on the inference service. Payloads are google.protobuf.Struct
// so the Python side can evolve fields without a shared .proto build.
const (
	serviceName = "grounded.inference.v1.InferenceService"

	ClassifyIntentMethod    = "/" + serviceName + "/ClassifyIntent"
	ClassifySentimentMethod = "/" + serviceName + "/ClassifySentiment"
	ClassifyUrgencyMethod   = "/" + serviceName + "/ClassifyUrgency"
	ExtractSlotsMethod      = "/" + serviceName + "/ExtractSlots"
	EmbedMethod             = "/" + serviceName + "/Embed"
	ScoreRelevanceMethod    = "/" + serviceName + "/ScoreRelevance"
	SynthesizeMethod        = "/" + serviceName + "/Synthesize"
)

// #endregion methods

// #region service-client
// InferenceServiceClient is the client API for the inference service.
type InferenceServiceClient interface {
	ClassifyIntent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ClassifySentiment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ClassifyUrgency(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ExtractSlots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Embed(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ScoreRelevance(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Synthesize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type inferenceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewInferenceServiceClient binds the service methods to a connection.
func NewInferenceServiceClient(cc grpc.ClientConnInterface) InferenceServiceClient {
	return &inferenceServiceClient{cc: cc}
}

func (c *inferenceServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inferenceServiceClient) ClassifyIntent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ClassifyIntentMethod, in, opts)
}

func (c *inferenceServiceClient) ClassifySentiment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ClassifySentimentMethod, in, opts)
}

func (c *inferenceServiceClient) ClassifyUrgency(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ClassifyUrgencyMethod, in, opts)
}

func (c *inferenceServiceClient) ExtractSlots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ExtractSlotsMethod, in, opts)
}

func (c *inferenceServiceClient) Embed(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, EmbedMethod, in, opts)
}

func (c *inferenceServiceClient) ScoreRelevance(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ScoreRelevanceMethod, in, opts)
}

func (c *inferenceServiceClient) Synthesize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SynthesizeMethod, in, opts)
}

// #endregion service-client
