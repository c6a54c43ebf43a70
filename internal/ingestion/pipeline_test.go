package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/askdoc/askdoc-go/internal/registry"
)

type fakeEmbedder struct {
	calls int
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type fakeIndex struct {
	collections map[string]bool
	upserts     map[string][]string
	drops       []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		collections: map[string]bool{},
		upserts:     map[string][]string{},
	}
}

func (f *fakeIndex) EnsureCollection(_ context.Context, name string) error {
	f.collections[name] = true
	return nil
}

func (f *fakeIndex) DropCollection(_ context.Context, name string) error {
	f.drops = append(f.drops, name)
	delete(f.collections, name)
	delete(f.upserts, name)
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, collection string, chunks []string, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		panic("chunk/embedding mismatch")
	}
	f.upserts[collection] = chunks
	return nil
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func newTestPipeline(t *testing.T, cfg *Config) (*Pipeline, *fakeEmbedder, *fakeIndex, *registry.SQLiteRegistry) {
	t.Helper()
	reg, err := registry.Open(":memory:")
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	emb := &fakeEmbedder{}
	idx := newFakeIndex()
	p, err := NewPipeline(emb, idx, reg, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, emb, idx, reg
}

func Test_Ingest_RegistersFileUnderItsName(t *testing.T) {
	t.Parallel()
	p, _, idx, reg := newTestPipeline(t, nil)
	ctx := context.Background()

	path := writeTestFile(t, "guide.md", "some document content")
	if err := p.Ingest(ctx, []string{path}, nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if !idx.collections["guide.md"] {
		t.Error("collection named after the file was not created")
	}
	if len(idx.upserts["guide.md"]) == 0 {
		t.Error("no chunks upserted")
	}
	ok, err := reg.Contains(ctx, "guide.md")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Error("ingested file not registered")
	}
}

func Test_Ingest_SkipsUnchangedFile(t *testing.T) {
	t.Parallel()
	p, emb, _, _ := newTestPipeline(t, nil)
	ctx := context.Background()

	path := writeTestFile(t, "static.txt", "never changes")
	if err := p.Ingest(ctx, []string{path}, nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if emb.calls != 1 {
		t.Fatalf("want 1 embed call after first ingest, got %d", emb.calls)
	}

	var msgs []string
	if err := p.Ingest(ctx, []string{path}, func(m string) { msgs = append(msgs, m) }); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("unchanged file re-embedded: %d calls", emb.calls)
	}
	if len(msgs) != 1 || !strings.Contains(msgs[0], "unchanged") {
		t.Errorf("want an unchanged skip message, got %v", msgs)
	}
}

func Test_Ingest_ForceReingests(t *testing.T) {
	t.Parallel()
	p, emb, _, _ := newTestPipeline(t, &Config{Force: true})
	ctx := context.Background()

	path := writeTestFile(t, "static.txt", "never changes")
	if err := p.Ingest(ctx, []string{path}, nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if err := p.Ingest(ctx, []string{path}, nil); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if emb.calls != 2 {
		t.Errorf("force must re-embed: want 2 calls, got %d", emb.calls)
	}
}

func Test_Ingest_ChangedContentReingests(t *testing.T) {
	t.Parallel()
	p, emb, _, reg := newTestPipeline(t, nil)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("version one"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := p.Ingest(ctx, []string{path}, nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	if err := os.WriteFile(path, []byte("version two"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := p.Ingest(ctx, []string{path}, nil); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if emb.calls != 2 {
		t.Errorf("changed file must re-embed: want 2 calls, got %d", emb.calls)
	}

	entries, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("re-ingest must not duplicate registry entries: got %d", len(entries))
	}
}

// Re-ingesting a shorter version of a file must not leave chunks from the
// longer previous version behind in the index.
func Test_Ingest_ChangedContentDropsStaleChunks(t *testing.T) {
	t.Parallel()
	p, _, idx, _ := newTestPipeline(t, &Config{ChunkSize: 10, ChunkOverlap: 0})
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 30)), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := p.Ingest(ctx, []string{path}, nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if got := len(idx.upserts["doc.txt"]); got != 3 {
		t.Fatalf("want 3 chunks from the long version, got %d", got)
	}
	if len(idx.drops) != 0 {
		t.Fatalf("first ingest must not drop anything, got %v", idx.drops)
	}

	if err := os.WriteFile(path, []byte("short"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := p.Ingest(ctx, []string{path}, nil); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if len(idx.drops) != 1 || idx.drops[0] != "doc.txt" {
		t.Errorf("re-ingest must drop the old collection, got drops %v", idx.drops)
	}
	if got := idx.upserts["doc.txt"]; len(got) != 1 || got[0] != "short" {
		t.Errorf("index must hold only the new version's chunks, got %v", got)
	}
}

func Test_Chunk_OverlappingWindows(t *testing.T) {
	t.Parallel()
	p, _, _, _ := newTestPipeline(t, &Config{ChunkSize: 10, ChunkOverlap: 3})

	text := strings.Repeat("a", 25)
	chunks := p.chunk(text)
	if len(chunks) == 0 {
		t.Fatal("want chunks, got none")
	}
	for i, c := range chunks[:len(chunks)-1] {
		if len(c) != 10 {
			t.Errorf("chunk %d: want size 10, got %d", i, len(c))
		}
	}
	// Windows advance by size-overlap, so full coverage with no gaps.
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total < len(text) {
		t.Errorf("chunks do not cover the text: %d < %d", total, len(text))
	}
}

// Chunk windows must advance on rune boundaries: byte-based slicing would
// split multi-byte characters and hand invalid UTF-8 to the embedder.
func Test_Chunk_MultibyteRunesStayIntact(t *testing.T) {
	t.Parallel()
	p, _, _, _ := newTestPipeline(t, &Config{ChunkSize: 9, ChunkOverlap: 2})

	text := strings.Repeat("é", 20)
	chunks := p.chunk(text)
	if len(chunks) == 0 {
		t.Fatal("want chunks, got none")
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c)
		}
	}
	for i, c := range chunks[:len(chunks)-1] {
		if got := utf8.RuneCountInString(c); got != 9 {
			t.Errorf("chunk %d: want 9 runes, got %d", i, got)
		}
	}
}

func Test_Chunk_EmptyText(t *testing.T) {
	t.Parallel()
	p, _, _, _ := newTestPipeline(t, nil)

	if got := p.chunk("   \n\t "); got != nil {
		t.Errorf("want nil for whitespace-only text, got %v", got)
	}
}

func Test_Ingest_MissingFileFails(t *testing.T) {
	t.Parallel()
	p, _, _, _ := newTestPipeline(t, nil)

	err := p.Ingest(context.Background(), []string{"/no/such/file.txt"}, nil)
	if err == nil {
		t.Fatal("want error for missing file")
	}
}
