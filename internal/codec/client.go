package codec

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region types
// Label is a classifier verdict.
type Label struct {
	Label      string
	Confidence float64
	Rationale  string
}

// ErrMalformedResponse is returned when a reply is missing a required field.
var ErrMalformedResponse = errors.New("malformed inference response")

// #endregion types

// #region client-struct
// Client wraps the gRPC connection to the Python inference service.
type Client struct {
	conn    *grpc.ClientConn
	client  InferenceServiceClient
	limiter *rate.Limiter
}

// Options tunes the client. A zero RateLimit disables client-side limiting.
type Options struct {
	RateLimit float64
	Burst     int
}

// #endregion client-struct

// #region constructor
// NewClient connects to the inference gRPC server.
func NewClient(addr string, opts Options) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	c := NewClientWithService(NewInferenceServiceClient(conn), opts)
	c.conn = conn
	return c, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc InferenceServiceClient, opts Options) *Client {
	c := &Client{client: svc}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region call
func (c *Client) call(ctx context.Context, name string, rpc func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error), fields map[string]any) (*structpb.Struct, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s rate limit: %w", name, err)
		}
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", name, err)
	}
	resp, err := rpc(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s rpc: %w", name, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%s rpc: %w", name, ErrMalformedResponse)
	}
	return resp, nil
}

func label(name string, resp *structpb.Struct) (Label, error) {
	f := resp.GetFields()
	l := f["label"].GetStringValue()
	if l == "" {
		return Label{}, fmt.Errorf("%s: missing label: %w", name, ErrMalformedResponse)
	}
	return Label{
		Label:      l,
		Confidence: f["confidence"].GetNumberValue(),
		Rationale:  f["rationale"].GetStringValue(),
	}, nil
}

// #endregion call

// #region classify
// ClassifyIntent asks the zero-shot intent classifier for a label.
func (c *Client) ClassifyIntent(ctx context.Context, text string) (Label, error) {
	resp, err := c.call(ctx, "classify intent", c.client.ClassifyIntent, map[string]any{"text": text})
	if err != nil {
		return Label{}, err
	}
	return label("classify intent", resp)
}

// ClassifySentiment returns a positive/negative label with its score.
func (c *Client) ClassifySentiment(ctx context.Context, text string) (Label, error) {
	resp, err := c.call(ctx, "classify sentiment", c.client.ClassifySentiment, map[string]any{"text": text})
	if err != nil {
		return Label{}, err
	}
	return label("classify sentiment", resp)
}

// ClassifyUrgency returns the top urgency label with its score.
func (c *Client) ClassifyUrgency(ctx context.Context, text string) (Label, error) {
	resp, err := c.call(ctx, "classify urgency", c.client.ClassifyUrgency, map[string]any{"text": text})
	if err != nil {
		return Label{}, err
	}
	return label("classify urgency", resp)
}

// ExtractSlots returns raw slot values keyed by slot name. Non-string values are dropped.
func (c *Client) ExtractSlots(ctx context.Context, text string) (map[string]string, error) {
	resp, err := c.call(ctx, "extract slots", c.client.ExtractSlots, map[string]any{"text": text})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for k, v := range resp.GetFields()["slots"].GetStructValue().GetFields() {
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			out[k] = s.StringValue
		}
	}
	return out, nil
}

// #endregion classify

// #region embed
// Embed sends text to the inference service for embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.call(ctx, "embed", c.client.Embed, map[string]any{"text": text})
	if err != nil {
		return nil, err
	}
	values := resp.GetFields()["embedding"].GetListValue().GetValues()
	if len(values) == 0 {
		return nil, fmt.Errorf("embed: empty vector: %w", ErrMalformedResponse)
	}
	vec := make([]float32, len(values))
	for i, v := range values {
		vec[i] = float32(v.GetNumberValue())
	}
	return vec, nil
}

// #endregion embed

// #region score
// ScoreRelevance scores each passage against the query in one batched call.
// The result is aligned with passages.
func (c *Client) ScoreRelevance(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	list := make([]any, len(passages))
	for i, p := range passages {
		list[i] = p
	}
	resp, err := c.call(ctx, "score relevance", c.client.ScoreRelevance, map[string]any{
		"query":    query,
		"passages": list,
	})
	if err != nil {
		return nil, err
	}
	values := resp.GetFields()["scores"].GetListValue().GetValues()
	if len(values) != len(passages) {
		return nil, fmt.Errorf("score relevance: got %d scores for %d passages: %w",
			len(values), len(passages), ErrMalformedResponse)
	}
	scores := make([]float64, len(values))
	for i, v := range values {
		scores[i] = v.GetNumberValue()
	}
	return scores, nil
}

// #endregion score

// #region synthesize
// Synthesize drafts an answer grounded in the given evidence texts.
func (c *Client) Synthesize(ctx context.Context, query string, evidence []string) (string, error) {
	list := make([]any, len(evidence))
	for i, e := range evidence {
		list[i] = e
	}
	resp, err := c.call(ctx, "synthesize", c.client.Synthesize, map[string]any{
		"query":    query,
		"evidence": list,
	})
	if err != nil {
		return "", err
	}
	return resp.GetFields()["text"].GetStringValue(), nil
}

// #endregion synthesize
