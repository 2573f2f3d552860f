// Package ingest populates the vector index from a corpus of document
// files: read, chunk, embed, upsert.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"github.com/knowbase/docbot/internal/ai"
	"github.com/knowbase/docbot/internal/chunker"
	"github.com/knowbase/docbot/internal/store"
	"github.com/knowbase/docbot/pkg/models"
)

// FileSystemWalker defines the interface for walking directories.
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files.
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk.
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os.
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Pipeline drives Chunker -> Embedder -> VectorIndex for every eligible
// file directly under a corpus root.
type Pipeline struct {
	Store      store.VectorIndex
	Embedder   ai.Embedder
	Chunker    *chunker.Chunker
	Walker     FileSystemWalker
	FileReader FileReader
	PDFText    func(ctx context.Context, path string) (string, error)
	Workers    int
}

// New creates a Pipeline with the default filesystem and PDF extraction
// collaborators.
func New(s store.VectorIndex, e ai.Embedder, c *chunker.Chunker) *Pipeline {
	return &Pipeline{
		Store:      s,
		Embedder:   e,
		Chunker:    c,
		Walker:     &DefaultFileSystemWalker{},
		FileReader: &DefaultFileReader{},
		PDFText:    pdfToText,
	}
}

// supported reports whether the file extension is an ingestible type.
// Anything else is skipped silently.
func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".pdf":
		return true
	}
	return false
}

// chunkID derives a deterministic identifier from the source file and
// the chunk's position, so re-ingesting the same file overwrites rather
// than duplicates.
func chunkID(source string, index int) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return fmt.Sprintf("%s_%d", stem, index)
}

// Run enumerates eligible files directly under root and ingests each.
// A file that fails to read, chunk, or embed aborts only its own
// ingestion; remaining files continue. Returns the number of chunks
// stored.
func (p *Pipeline) Run(ctx context.Context, root string) (int, error) {
	numWorkers := p.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
		if numWorkers > 4 {
			numWorkers = 4
		}
	}

	log.Info().Str("root", root).Int("workers", numWorkers).Msg("starting ingestion")

	workChan := make(chan string, numWorkers*2)
	var total atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range workChan {
				added, err := p.ingestFile(ctx, path)
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("file ingestion failed")
					continue
				}
				total.Add(int64(added))
				log.Info().Str("path", path).Int("chunks", added).Msg("file ingested")
			}
		}()
	}

	walkErr := p.Walker.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			// Only files directly under the corpus root are eligible.
			if de != nil && de.IsDir() {
				if filepath.Clean(path) != filepath.Clean(root) {
					return filepath.SkipDir
				}
				return nil
			}
			if !supported(path) {
				return nil
			}
			select {
			case workChan <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	close(workChan)
	wg.Wait()

	if walkErr != nil {
		return int(total.Load()), fmt.Errorf("walk corpus: %w", walkErr)
	}
	return int(total.Load()), nil
}

// ingestFile reads one source file, replaces its previously stored chunk
// set, and upserts fresh chunks in ascending index order. Each upsert is
// individually atomic, so a failure partway leaves every completed
// record valid.
func (p *Pipeline) ingestFile(ctx context.Context, path string) (int, error) {
	content, err := p.readFile(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	chunks := p.Chunker.Split(content)

	// Replace-set: drop whatever this source stored before, so a document
	// that shrank cannot leave stale trailing chunks behind.
	if err := p.Store.DeleteBySource(ctx, path); err != nil {
		return 0, err
	}

	added := 0
	for i, ch := range chunks {
		vec, err := p.Embedder.Embed(ctx, ch)
		if err != nil {
			return added, fmt.Errorf("embed chunk %d of %s: %w", i, path, err)
		}
		meta := models.Metadata{Source: path, ChunkIndex: i}
		if err := p.Store.Upsert(ctx, chunkID(path, i), ch, meta, vec); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func (p *Pipeline) readFile(ctx context.Context, path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return p.PDFText(ctx, path)
	}
	b, err := p.FileReader.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
