package index

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/grounded-assistant/internal/lexical"
)

// #region qdrant
// pointSearcher is the slice of pb.PointsClient used here.
type pointSearcher interface {
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// QdrantIndex serves nearest-neighbour queries from a Qdrant collection whose
// payload carries passage metadata (content, page, section, doc_title).
type QdrantIndex struct {
	conn       *grpc.ClientConn
	points     pointSearcher
	collection string
}

// NewQdrant connects to Qdrant's gRPC port.
func NewQdrant(addr, collection string) (*QdrantIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}
	return &QdrantIndex{conn: conn, points: pb.NewPointsClient(conn), collection: collection}, nil
}

// NewQdrantWithClient injects a points client. Used for testing.
func NewQdrantWithClient(points pointSearcher, collection string) *QdrantIndex {
	return &QdrantIndex{points: points, collection: collection}
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// Acquire implements Provider. The collection is the snapshot.
func (q *QdrantIndex) Acquire(context.Context) (Index, error) {
	return q, nil
}

// Search implements Index. Connection-level failures wrap ErrUnavailable.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, n int) ([]Hit, error) {
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(n),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		switch status.Code(err) {
		case codes.Unavailable, codes.NotFound, codes.DeadlineExceeded:
			return nil, fmt.Errorf("qdrant search %s: %v: %w", q.collection, err, ErrUnavailable)
		}
		return nil, fmt.Errorf("qdrant search %s: %w", q.collection, err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		p := passageFromPayload(r.GetPayload())
		if p.ID == "" {
			p.ID = pointID(r.GetId())
		}
		finishPassage(p, i)
		hits = append(hits, Hit{Passage: p, Similarity: r.GetScore(), Rank: i})
	}
	return hits, nil
}

func passageFromPayload(payload map[string]*pb.Value) *Passage {
	p := &Passage{
		ID:       payload["passage_id"].GetStringValue(),
		DocTitle: payload["doc_title"].GetStringValue(),
		Section:  payload["section"].GetStringValue(),
		Text:     payload["content"].GetStringValue(),
	}
	p.Page = int(payload["page"].GetIntegerValue())
	if p.Page == 0 {
		p.Page, _ = strconv.Atoi(payload["page"].GetStringValue())
	}
	p.WordCount = int(payload["word_count"].GetIntegerValue())
	if list := payload["bigrams"].GetListValue().GetValues(); len(list) > 0 {
		p.Bigrams = make(lexical.Set, len(list))
		for _, v := range list {
			if s := strings.TrimSpace(v.GetStringValue()); s != "" {
				p.Bigrams[s] = struct{}{}
			}
		}
	}
	return p
}

func pointID(id *pb.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// #endregion qdrant
