package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// #region helpers
func writeFixture(t *testing.T, dir string, texts ...string) Paths {
	t.Helper()
	paths := Paths{Vectors: filepath.Join(dir, "index.vec"), Mapping: filepath.Join(dir, "mapping.json")}
	vectors := make([][]float32, len(texts))
	passages := make([]Passage, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(i), 0}
		passages[i] = Passage{ID: text[:3], DocTitle: "Annual Report", Page: 10 + i, Section: "Financial", Text: text}
	}
	require.NoError(t, Write(paths, vectors, passages))
	return paths
}

// #endregion helpers

// #region snapshot-tests
func TestLoad_RestoresPassagesAndVectors(t *testing.T) {
	paths := writeFixture(t, t.TempDir(), "alpha revenue grew", "beta profit fell")

	s, err := Load(paths)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Dim())
	assert.Equal(t, paths, s.Paths())

	p := s.Passage(1)
	assert.Equal(t, "bet", p.ID)
	assert.Equal(t, 11, p.Page)
	assert.Equal(t, 3, p.WordCount)
	assert.True(t, p.Bigrams.Has("profit fell"))
}

func TestLoad_MissingFileIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(Paths{Vectors: filepath.Join(dir, "nope.vec"), Mapping: filepath.Join(dir, "nope.json")})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLoad_RejectsMisalignedPair(t *testing.T) {
	dir := t.TempDir()
	paths := writeFixture(t, dir, "alpha one", "beta two")
	require.NoError(t, os.WriteFile(paths.Mapping, []byte(`[{"content":"only one"}]`), 0o644))

	_, err := Load(paths)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestLoad_AcceptsPairBigrams(t *testing.T) {
	dir := t.TempDir()
	paths := writeFixture(t, dir, "alpha one")
	require.NoError(t, os.WriteFile(paths.Mapping,
		[]byte(`[{"content":"net income rose","page":4,"bigrams":[["net","income"]]}]`), 0o644))

	s, err := Load(paths)
	require.NoError(t, err)
	assert.True(t, s.Passage(0).Bigrams.Has("net income"))
	assert.False(t, s.Passage(0).Bigrams.Has("income rose"), "stored bigrams are used as-is")
	assert.Equal(t, "p0", s.Passage(0).ID)
}

func TestSnapshotSearch_NearestFirst(t *testing.T) {
	s, err := NewSnapshot(
		[][]float32{{0, 0}, {5, 5}, {1, 1}},
		[]Passage{{Text: "far origin"}, {Text: "far away"}, {Text: "near"}},
	)
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), []float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Passage.Text)
	assert.Equal(t, 0, hits[0].Rank)
	assert.Equal(t, "far origin", hits[1].Passage.Text)
	assert.GreaterOrEqual(t, hits[0].Similarity, hits[1].Similarity)

	_, err = s.Search(context.Background(), []float32{1}, 2)
	assert.Error(t, err)
}

func TestNewSnapshot_LengthMismatch(t *testing.T) {
	_, err := NewSnapshot([][]float32{{1}}, nil)
	assert.Error(t, err)
}

// #endregion snapshot-tests

// #region cache-tests
func TestCache_LazyLoadOnce(t *testing.T) {
	paths := writeFixture(t, t.TempDir(), "alpha", "beta")
	c := NewCache(paths, nil)
	assert.Equal(t, 0, c.Loads())

	a, err := c.Snapshot()
	require.NoError(t, err)
	b, err := c.Snapshot()
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, c.Loads())
}

func TestCache_ReloadsOnlyOnPathChange(t *testing.T) {
	first := writeFixture(t, t.TempDir(), "alpha", "beta")
	second := writeFixture(t, t.TempDir(), "gamma", "delta", "epsilon")
	c := NewCache(first, nil)

	s1, err := c.Snapshot()
	require.NoError(t, err)

	c.SetPaths(first)
	s2, _ := c.Snapshot()
	assert.Same(t, s1, s2)

	c.SetPaths(second)
	s3, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 3, s3.Len())
	assert.Equal(t, second, s3.Paths())
	assert.Equal(t, 2, c.Loads())

	// The old snapshot stays usable by whoever still holds it.
	assert.Equal(t, 2, s1.Len())
}

func TestCache_Invalidate(t *testing.T) {
	paths := writeFixture(t, t.TempDir(), "alpha")
	c := NewCache(paths, nil)
	_, err := c.Snapshot()
	require.NoError(t, err)

	c.Invalidate()
	_, err = c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, c.Loads())
}

func TestCache_InvalidateDuringLoadIsNotCached(t *testing.T) {
	dir := t.TempDir()
	paths := writeFixture(t, dir, "alpha")
	c := NewCache(paths, nil)
	first := true
	c.load = func(p Paths) (*Snapshot, error) {
		s, err := Load(p)
		if first {
			first = false
			// the files are rewritten after this load read them
			writeFixture(t, dir, "gamma", "delta")
			c.Invalidate()
		}
		return s, err
	}

	stale, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Len())

	fresh, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Len())
	assert.Equal(t, 2, c.Loads())

	again, err := c.Snapshot()
	require.NoError(t, err)
	assert.Same(t, fresh, again)
	assert.Equal(t, 2, c.Loads())
}

func TestCache_UnavailableNotCached(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{Vectors: filepath.Join(dir, "index.vec"), Mapping: filepath.Join(dir, "mapping.json")}
	c := NewCache(paths, nil)

	_, err := c.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	writeFixture(t, dir, "alpha")
	idx, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, idx)
}

func TestCache_ConcurrentReadsDuringSwap(t *testing.T) {
	first := writeFixture(t, t.TempDir(), "alpha", "beta")
	second := writeFixture(t, t.TempDir(), "gamma", "delta", "epsilon")
	c := NewCache(first, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 8 {
				c.SetPaths(second)
			}
			s, err := c.Snapshot()
			if !assert.NoError(t, err) {
				return
			}
			// Every snapshot is internally consistent with its own paths.
			switch s.Paths() {
			case first:
				assert.Equal(t, 2, s.Len())
			case second:
				assert.Equal(t, 3, s.Len())
			default:
				t.Errorf("unexpected paths %v", s.Paths())
			}
		}(i)
	}
	wg.Wait()
}

// #endregion cache-tests

// #region watcher-tests
func TestWatcher_InvalidatesOnRewrite(t *testing.T) {
	dir := t.TempDir()
	paths := writeFixture(t, dir, "alpha")
	c := NewCache(paths, nil)
	_, err := c.Snapshot()
	require.NoError(t, err)

	w, err := NewWatcher(c, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan string, 64)
	go w.Run(ctx, changed)

	writeFixture(t, dir, "alpha", "beta")

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no invalidation observed")
	}
	assert.Eventually(t, func() bool {
		s, err := c.Snapshot()
		return err == nil && s.Len() == 2
	}, 5*time.Second, 20*time.Millisecond)
}

// #endregion watcher-tests

// #region qdrant-tests
type mockPoints struct {
	resp *pb.SearchResponse
	err  error
	req  *pb.SearchPoints
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.req = in
	return m.resp, m.err
}

func TestQdrantSearch_MapsPayload(t *testing.T) {
	mock := &mockPoints{resp: &pb.SearchResponse{Result: []*pb.ScoredPoint{
		{
			Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "u-1"}},
			Score: 0.92,
			Payload: map[string]*pb.Value{
				"content":   {Kind: &pb.Value_StringValue{StringValue: "Revenue grew 6.5% in FY25"}},
				"page":      {Kind: &pb.Value_IntegerValue{IntegerValue: 11}},
				"section":   {Kind: &pb.Value_StringValue{StringValue: "Financial"}},
				"doc_title": {Kind: &pb.Value_StringValue{StringValue: "Annual Report"}},
			},
		},
		{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 7}},
			Score:   0.5,
			Payload: map[string]*pb.Value{"page": {Kind: &pb.Value_StringValue{StringValue: "12"}}},
		},
	}}}
	q := NewQdrantWithClient(mock, "report")

	hits, err := q.Search(context.Background(), []float32{0.1, 0.2}, 50)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "report", mock.req.GetCollectionName())
	assert.Equal(t, uint64(50), mock.req.GetLimit())

	assert.Equal(t, "u-1", hits[0].Passage.ID)
	assert.Equal(t, 11, hits[0].Passage.Page)
	assert.Equal(t, 5, hits[0].Passage.WordCount)
	assert.True(t, hits[0].Passage.Bigrams.Has("revenue grew"))
	assert.Equal(t, "7", hits[1].Passage.ID)
	assert.Equal(t, 12, hits[1].Passage.Page)
	assert.Equal(t, 1, hits[1].Rank)
	assert.NoError(t, q.Close())
}

func TestQdrantSearch_UnavailableIsSentinel(t *testing.T) {
	q := NewQdrantWithClient(&mockPoints{err: status.Error(codes.Unavailable, "connection refused")}, "report")
	_, err := q.Search(context.Background(), []float32{0.1}, 5)
	assert.ErrorIs(t, err, ErrUnavailable)

	q = NewQdrantWithClient(&mockPoints{err: errors.New("bad request")}, "report")
	_, err = q.Search(context.Background(), []float32{0.1}, 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

// #endregion qdrant-tests
