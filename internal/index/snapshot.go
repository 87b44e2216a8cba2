package index

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/grounded-assistant/internal/lexical"
)

// #region format
// Vector file layout: 4-byte magic, then little-endian uint32 version, dim
// and count, then count*dim little-endian float32 values.
var vectorMagic = [4]byte{'G', 'A', 'V', 'I'}

const vectorVersion = 1

// Paths names the two files of one snapshot.
type Paths struct {
	Vectors string `json:"vectors"`
	Mapping string `json:"mapping"`
}

func (p Paths) String() string {
	return p.Vectors + "+" + p.Mapping
}

// #endregion format

// #region snapshot
// Snapshot is a flat L2 index plus its passage mapping, loaded from one pair
// of files. Vector i always belongs to passage i.
type Snapshot struct {
	paths    Paths
	dim      int
	vectors  []float32
	passages []*Passage
}

// NewSnapshot builds an in-memory snapshot. vectors[i] belongs to passages[i].
func NewSnapshot(vectors [][]float32, passages []Passage) (*Snapshot, error) {
	if len(vectors) != len(passages) {
		return nil, fmt.Errorf("snapshot: %d vectors for %d passages", len(vectors), len(passages))
	}
	s := &Snapshot{passages: make([]*Passage, len(passages))}
	for i, v := range vectors {
		if i == 0 {
			s.dim = len(v)
		}
		if len(v) != s.dim || s.dim == 0 {
			return nil, fmt.Errorf("snapshot: vector %d has dim %d, want %d", i, len(v), s.dim)
		}
		s.vectors = append(s.vectors, v...)
	}
	for i := range passages {
		p := passages[i]
		finishPassage(&p, i)
		s.passages[i] = &p
	}
	return s, nil
}

// Paths returns the file pair the snapshot was loaded from.
func (s *Snapshot) Paths() Paths { return s.paths }

// Len returns the number of passages.
func (s *Snapshot) Len() int { return len(s.passages) }

// Dim returns the vector dimension.
func (s *Snapshot) Dim() int { return s.dim }

// Passage returns passage i.
func (s *Snapshot) Passage(i int) *Passage { return s.passages[i] }

// Acquire implements Provider for a fixed snapshot.
func (s *Snapshot) Acquire(context.Context) (Index, error) { return s, nil }

// Search returns the n passages nearest to vector by squared L2 distance.
func (s *Snapshot) Search(ctx context.Context, vector []float32, n int) ([]Hit, error) {
	if len(s.passages) == 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("search: query dim %d, index dim %d", len(vector), s.dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type scored struct {
		i    int
		dist float32
	}
	all := make([]scored, len(s.passages))
	for i := range s.passages {
		row := s.vectors[i*s.dim : (i+1)*s.dim]
		var d float32
		for j, x := range row {
			diff := x - vector[j]
			d += diff * diff
		}
		all[i] = scored{i, d}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })
	if n > len(all) {
		n = len(all)
	}
	hits := make([]Hit, n)
	for r := 0; r < n; r++ {
		hits[r] = Hit{Passage: s.passages[all[r].i], Similarity: -all[r].dist, Rank: r}
	}
	return hits, nil
}

// #endregion snapshot

// #region load
// Load reads a snapshot. Missing files wrap ErrUnavailable; a vector count
// that does not match the mapping length is rejected so ids stay aligned.
func Load(paths Paths) (*Snapshot, error) {
	dim, vectors, err := readVectors(paths.Vectors)
	if err != nil {
		return nil, err
	}
	passages, err := readMapping(paths.Mapping)
	if err != nil {
		return nil, err
	}
	count := 0
	if dim > 0 {
		count = len(vectors) / dim
	}
	if count != len(passages) {
		return nil, fmt.Errorf("load %s: %d vectors but %d passages", paths, count, len(passages))
	}
	s := &Snapshot{paths: paths, dim: dim, vectors: vectors, passages: make([]*Passage, len(passages))}
	for i := range passages {
		finishPassage(&passages[i], i)
		s.passages[i] = &passages[i]
	}
	return s, nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnavailable)
	}
	return f, err
}

func readVectors(path string) (int, []float32, error) {
	f, err := openFile(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return 0, nil, fmt.Errorf("read %s header: %w", path, err)
	}
	if magic != vectorMagic {
		return 0, nil, fmt.Errorf("read %s: bad magic %q", path, magic[:])
	}
	var hdr [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return 0, nil, fmt.Errorf("read %s header: %w", path, err)
	}
	if hdr[0] != vectorVersion {
		return 0, nil, fmt.Errorf("read %s: unsupported version %d", path, hdr[0])
	}
	dim, count := int(hdr[1]), int(hdr[2])
	vectors := make([]float32, dim*count)
	if err := binary.Read(r, binary.LittleEndian, vectors); err != nil {
		return 0, nil, fmt.Errorf("read %s vectors: %w", path, err)
	}
	return dim, vectors, nil
}

type rawPassage struct {
	Passage
	RawBigrams []json.RawMessage `json:"bigrams"`
}

func readMapping(path string) ([]Passage, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var raw []rawPassage
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	out := make([]Passage, len(raw))
	for i, rp := range raw {
		out[i] = rp.Passage
		if len(rp.RawBigrams) > 0 {
			out[i].Bigrams = decodeBigrams(rp.RawBigrams)
		}
	}
	return out, nil
}

// decodeBigrams accepts "a b" strings or ["a","b"] pairs.
func decodeBigrams(raw []json.RawMessage) lexical.Set {
	s := make(lexical.Set, len(raw))
	for _, m := range raw {
		var str string
		if json.Unmarshal(m, &str) == nil {
			s[str] = struct{}{}
			continue
		}
		var pair []string
		if json.Unmarshal(m, &pair) == nil && len(pair) == 2 {
			s[pair[0]+" "+pair[1]] = struct{}{}
		}
	}
	return s
}

func finishPassage(p *Passage, i int) {
	if p.ID == "" {
		p.ID = "p" + strconv.Itoa(i)
	}
	if p.Bigrams == nil {
		p.Bigrams = lexical.Bigrams(p.Text)
	}
	if p.WordCount == 0 {
		p.WordCount = len(strings.Fields(p.Text))
	}
}

// #endregion load

// #region write
// Write stores vectors and passages as a snapshot pair. Used by tests and
// the retrieve command's fixtures.
func Write(paths Paths, vectors [][]float32, passages []Passage) error {
	if len(vectors) != len(passages) {
		return fmt.Errorf("write: %d vectors for %d passages", len(vectors), len(passages))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	vf, err := os.Create(paths.Vectors)
	if err != nil {
		return fmt.Errorf("create %s: %w", paths.Vectors, err)
	}
	w := bufio.NewWriter(vf)
	w.Write(vectorMagic[:])
	binary.Write(w, binary.LittleEndian, [3]uint32{vectorVersion, uint32(dim), uint32(len(vectors))})
	for i, v := range vectors {
		if len(v) != dim {
			vf.Close()
			return fmt.Errorf("write: vector %d has dim %d, want %d", i, len(v), dim)
		}
		binary.Write(w, binary.LittleEndian, v)
	}
	if err := w.Flush(); err != nil {
		vf.Close()
		return fmt.Errorf("write %s: %w", paths.Vectors, err)
	}
	if err := vf.Close(); err != nil {
		return err
	}

	type out struct {
		Passage
		Bigrams []string `json:"bigrams,omitempty"`
	}
	rows := make([]out, len(passages))
	for i, p := range passages {
		rows[i] = out{Passage: p, Bigrams: p.Bigrams.Slice()}
		sort.Strings(rows[i].Bigrams)
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(paths.Mapping, data, 0o644)
}

// #endregion write
