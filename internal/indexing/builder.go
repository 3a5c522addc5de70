// Package indexing builds immutable index snapshots from package documents.
package indexing

import (
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gcbaptista/package-search/index"
	"github.com/gcbaptista/package-search/internal/logger"
	"github.com/gcbaptista/package-search/internal/tokenizer"
	"github.com/gcbaptista/package-search/model"
)

// BuildConfig contains configuration for snapshot builds
type BuildConfig struct {
	BatchSize   int // Number of documents tokenized by a worker at a time
	WorkerCount int // Number of parallel tokenizing workers
}

// DefaultBuildConfig returns sensible defaults for snapshot builds
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		BatchSize:   500,
		WorkerCount: runtime.NumCPU(),
	}
}

// Builder turns a list of documents into an index.Snapshot.
// Tokenization runs in parallel; postings are merged in document order so the
// result depends only on the input, never on scheduling.
type Builder struct {
	config BuildConfig
	logger *slog.Logger
}

// NewBuilder creates a Builder. Non-positive config values fall back to defaults.
func NewBuilder(config BuildConfig, log *slog.Logger) *Builder {
	defaults := DefaultBuildConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Builder{config: config, logger: log.With("component", "indexing")}
}

// Build indexes docs with a default Builder.
func Build(docs []model.PackageDocument, sdkLibraries []string, builtAt time.Time) *index.Snapshot {
	return NewBuilder(DefaultBuildConfig(), nil).Build(docs, sdkLibraries, builtAt)
}

// termFrequencies is the tokenized form of one document.
type termFrequencies map[string]int

// Build indexes docs, which must be in document store insertion order, together
// with the SDK library registry. Documents with a blank name are skipped, as are
// repeated names after their first occurrence.
func (b *Builder) Build(docs []model.PackageDocument, sdkLibraries []string, builtAt time.Time) *index.Snapshot {
	accepted := b.acceptDocuments(docs)
	frequencies := b.tokenizeAll(accepted)

	snapshot := &index.Snapshot{
		Postings:  make(map[string]index.PostingList),
		Documents: make(map[string]model.PackageDocument, len(accepted)),
		Order:     make([]string, 0, len(accepted)),
		Position:  make(map[string]int, len(accepted)),
		BuiltAt:   builtAt,
	}

	for i, doc := range accepted {
		snapshot.Documents[doc.Name] = doc
		snapshot.Position[doc.Name] = len(snapshot.Order)
		snapshot.Order = append(snapshot.Order, doc.Name)

		for token, freq := range frequencies[i] {
			snapshot.Postings[token] = append(snapshot.Postings[token], index.Posting{
				Package:   doc.Name,
				Frequency: freq,
			})
		}
	}

	snapshot.SdkLibraries, snapshot.SdkPostings = buildSdkTable(sdkLibraries)

	b.logger.Debug("snapshot built",
		"documents", snapshot.Len(),
		"terms", snapshot.TermCount(),
		"sdk_libraries", len(snapshot.SdkLibraries))
	return snapshot
}

func (b *Builder) acceptDocuments(docs []model.PackageDocument) []model.PackageDocument {
	accepted := make([]model.PackageDocument, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.Name) == "" {
			b.logger.Warn("skipping package without a name")
			continue
		}
		if _, dup := seen[doc.Name]; dup {
			b.logger.Warn("skipping repeated package", "package", doc.Name)
			continue
		}
		seen[doc.Name] = struct{}{}
		accepted = append(accepted, b.sanitizeRanking(doc.Clone()))
	}
	return accepted
}

// sanitizeRanking zeroes NaN and infinite ranking fields, which cannot be
// ordered or encoded as JSON.
func (b *Builder) sanitizeRanking(doc model.PackageDocument) model.PackageDocument {
	fields := []struct {
		name  string
		value *float64
	}{
		{"popularity", &doc.Popularity},
		{"health", &doc.Health},
		{"maintenance", &doc.Maintenance},
	}
	for _, f := range fields {
		if math.IsNaN(*f.value) || math.IsInf(*f.value, 0) {
			b.logger.Warn("replacing non-finite ranking field",
				"package", doc.Name, "field", f.name, "value", *f.value)
			*f.value = 0
		}
	}
	return doc
}

// tokenizeAll computes term frequencies for every document using a worker pool.
// Each worker writes only to the slots of its own batch.
func (b *Builder) tokenizeAll(docs []model.PackageDocument) []termFrequencies {
	results := make([]termFrequencies, len(docs))
	if len(docs) == 0 {
		return results
	}

	batches := make(chan [2]int, b.config.WorkerCount*2)
	var wg sync.WaitGroup
	for w := 0; w < b.config.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for span := range batches {
				for i := span[0]; i < span[1]; i++ {
					results[i] = tokenizeDocument(docs[i])
				}
			}
		}()
	}

	for start := 0; start < len(docs); start += b.config.BatchSize {
		end := start + b.config.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batches <- [2]int{start, end}
	}
	close(batches)
	wg.Wait()

	return results
}

// tokenizeDocument counts every indexed form of every token in the document text.
// A plural token is counted under both its own spelling and its folded form.
func tokenizeDocument(doc model.PackageDocument) termFrequencies {
	freqs := make(termFrequencies)
	for _, token := range tokenizer.Tokenize(doc.Text()) {
		for _, form := range tokenizer.Forms(token) {
			freqs[form]++
		}
	}
	return freqs
}

// buildSdkTable indexes SDK library names the same way package text is indexed.
// Blank and repeated names are dropped; registry order is otherwise kept.
func buildSdkTable(libraries []string) ([]string, map[string][]int) {
	names := make([]string, 0, len(libraries))
	postings := make(map[string][]int)
	seen := make(map[string]struct{}, len(libraries))

	for _, lib := range libraries {
		lib = strings.TrimSpace(lib)
		if lib == "" {
			continue
		}
		if _, dup := seen[lib]; dup {
			continue
		}
		seen[lib] = struct{}{}
		idx := len(names)
		names = append(names, lib)

		registered := make(map[string]struct{})
		for _, token := range tokenizer.Tokenize(lib) {
			for _, form := range tokenizer.Forms(token) {
				if _, ok := registered[form]; ok {
					continue
				}
				registered[form] = struct{}{}
				postings[form] = append(postings[form], idx)
			}
		}
	}
	return names, postings
}
