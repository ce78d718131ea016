// Package corpus runs analysis and generation for stored samples.
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"chunkchain/internal/chunkstore"
	"chunkchain/internal/generator"
	"chunkchain/internal/logger"
	"chunkchain/internal/ngram"
	"chunkchain/internal/samples"
	"chunkchain/internal/settings"
	"chunkchain/internal/strategy"
)

const (
	// AllSizes requests one output per configured chunk size.
	AllSizes = "all"

	// ChunksNotBuilt is the result message for a sample that was never
	// analysed.
	ChunksNotBuilt = "Chunks have not been built for this text sample"

	DefaultOutputLength = 250
)

// SampleReader loads samples by id.
type SampleReader interface {
	Get(ctx context.Context, id string) (*samples.Sample, error)
}

// Overrides supplies persisted values that replace the configured defaults.
// *settings.Store satisfies it.
type Overrides interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// Options holds the generation defaults.
type Options struct {
	Sizes               ngram.SizeRange
	DefaultChunkSize    string
	DefaultOutputLength int
	SaveStrategy        ngram.SaveStrategy
}

// DefaultOptions returns sizes 2..8, all sizes per request and 250 atoms.
func DefaultOptions() Options {
	return Options{
		Sizes:               ngram.DefaultSizeRange(),
		DefaultChunkSize:    AllSizes,
		DefaultOutputLength: DefaultOutputLength,
		SaveStrategy:        ngram.SaveInsertAll,
	}
}

// Request asks for generated text from one sample. Empty ChunkSize and
// non-positive OutputLength fall back to the defaults.
type Request struct {
	SampleID     string `json:"sample_id"`
	ChunkSize    string `json:"chunk_size,omitempty"`
	OutputLength int    `json:"output_length,omitempty"`
}

// Entry is the text generated for one chunk size.
type Entry struct {
	Text      string `json:"text"`
	ChunkSize int    `json:"chunk_size"`
}

// Result is either a list of entries or, when the sample was never analysed,
// a message and no output at all.
type Result struct {
	SampleID string        `json:"sample_id"`
	Strategy strategy.Name `json:"strategy"`
	Output   []Entry       `json:"output,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// MarshalJSON writes a not-built result as just its message; any other
// result always carries an output list, empty or not.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	if r.Message != "" && len(r.Output) == 0 {
		return json.Marshal(plain(r))
	}
	output := r.Output
	if output == nil {
		output = []Entry{}
	}
	return json.Marshal(struct {
		plain
		Output []Entry `json:"output"`
	}{plain: plain(r), Output: output})
}

// Analysis summarises one analyse run.
type Analysis struct {
	SampleID string              `json:"sample_id"`
	Strategy strategy.Name       `json:"strategy"`
	Atoms    int                 `json:"atoms"`
	Sizes    []ngram.SizeSummary `json:"sizes"`
	Duration time.Duration       `json:"duration"`
}

// Service analyses samples and generates text from their chunks.
type Service struct {
	samples   SampleReader
	strategy  strategy.Strategy
	chunks    chunkstore.Store
	generator *generator.Generator
	indexer   *ngram.Indexer
	overrides Overrides
	opts      Options
	logger    logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// Option configures a Service.
type Option func(*Service)

// WithOverrides makes persisted settings replace the configured defaults.
func WithOverrides(o Overrides) Option {
	return func(s *Service) { s.overrides = o }
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires a service. rnd drives every random choice made during
// generation; nil uses a runtime-seeded source.
func NewService(sampleReader SampleReader, strat strategy.Strategy, chunks chunkstore.Store, rnd generator.Rand, opts Options, options ...Option) (*Service, error) {
	if err := opts.Sizes.Validate(); err != nil {
		return nil, err
	}
	if opts.DefaultOutputLength <= 0 {
		opts.DefaultOutputLength = DefaultOutputLength
	}
	if opts.DefaultChunkSize == "" {
		opts.DefaultChunkSize = AllSizes
	}
	if opts.SaveStrategy == "" {
		opts.SaveStrategy = ngram.SaveInsertAll
	}
	if rnd == nil {
		rnd = generator.NewRand(0)
	}

	s := &Service{
		samples:   sampleReader,
		strategy:  strat,
		chunks:    chunks,
		generator: generator.New(chunks, generator.Synchronized(rnd)),
		opts:      opts,
		logger:    logger.Nop(),
		locks:     make(map[string]*sync.RWMutex),
	}
	for _, o := range options {
		o(s)
	}
	s.logger = s.logger.With("strategy", strat.Name())
	s.indexer = ngram.NewIndexer(chunks, ngram.WithSaveStrategy(opts.SaveStrategy), ngram.WithLogger(s.logger))
	return s, nil
}

// Strategy returns the strategy this service analyses with.
func (s *Service) Strategy() strategy.Strategy {
	return s.strategy
}

// Options returns the effective defaults.
func (s *Service) Options() Options {
	return s.opts
}

func (s *Service) lockFor(sampleID string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sampleID]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[sampleID] = l
	}
	return l
}

// AnalyseID loads a sample and analyses it.
func (s *Service) AnalyseID(ctx context.Context, sampleID string) (*Analysis, error) {
	sample, err := s.samples.Get(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	return s.Analyse(ctx, sample)
}

// Analyse rebuilds every chunk of the sample for each configured size.
// Existing chunks are removed first. When indexing fails the sample is left
// with no chunks at all.
func (s *Service) Analyse(ctx context.Context, sample *samples.Sample) (*Analysis, error) {
	lock := s.lockFor(sample.ID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	log := s.logger.With("sample", sample.ID)

	if err := s.chunks.DeleteAllForSample(ctx, sample.ID); err != nil {
		return nil, fmt.Errorf("failed to clear chunks: %w", err)
	}

	atoms, err := s.strategy.Atoms(ctx, sample.Text)
	if err != nil {
		return nil, err
	}

	summaries, err := s.indexer.Index(ctx, atoms, sample.ID, s.opts.Sizes.Sizes())
	if err != nil {
		if cleanupErr := s.chunks.DeleteAllForSample(context.WithoutCancel(ctx), sample.ID); cleanupErr != nil {
			log.Error("failed to remove partial chunks", "error", cleanupErr)
		}
		return nil, fmt.Errorf("failed to analyse sample %s: %w", sample.ID, err)
	}

	analysis := &Analysis{
		SampleID: sample.ID,
		Strategy: s.strategy.Name(),
		Atoms:    len(atoms),
		Sizes:    summaries,
		Duration: time.Since(start),
	}
	log.Info("analysed sample", "atoms", analysis.Atoms, "sizes", len(summaries), "duration", analysis.Duration)
	return analysis, nil
}

// Forget removes every chunk of a sample.
func (s *Service) Forget(ctx context.Context, sampleID string) error {
	lock := s.lockFor(sampleID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.chunks.DeleteAllForSample(ctx, sampleID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Built reports whether the sample has chunks, with their counts per size.
func (s *Service) Built(ctx context.Context, sampleID string) (map[int]int, error) {
	return s.chunks.SizesForSample(ctx, sampleID)
}

// Generate produces one entry per requested chunk size. Sizes that yield
// nothing are logged and left out.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	sample, err := s.samples.Get(ctx, req.SampleID)
	if err != nil {
		return nil, err
	}

	lock := s.lockFor(sample.ID)
	lock.RLock()
	defer lock.RUnlock()

	result := &Result{SampleID: sample.ID, Strategy: s.strategy.Name()}

	built, err := s.chunks.ExistsForSample(ctx, sample.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check chunks: %w", err)
	}
	if !built {
		result.Message = ChunksNotBuilt
		return result, nil
	}

	chunkSize, err := s.chunkSizeFor(ctx, req.ChunkSize)
	if err != nil {
		return nil, err
	}
	length, err := s.outputLengthFor(ctx, req.OutputLength)
	if err != nil {
		return nil, err
	}

	sizes := s.sizesFor(chunkSize, s.strategy.Count(sample.Text))
	log := s.logger.With("sample", sample.ID)
	result.Output = []Entry{}

	for _, size := range sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := s.generateSize(ctx, sample.ID, size, length)
		switch {
		case err == nil:
			result.Output = append(result.Output, Entry{Text: text, ChunkSize: size})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, generator.ErrNoChunks):
			log.Warn("no chunks for size", "size", size)
		case len(sizes) == 1:
			return nil, err
		default:
			// Sizes are independent; one failing size leaves the others.
			log.Warn("skipping size", "size", size, "error", err)
		}
	}
	return result, nil
}

func (s *Service) generateSize(ctx context.Context, sampleID string, size, length int) (string, error) {
	seq, err := s.generator.Generate(ctx, sampleID, size, length)
	if err != nil {
		return "", err
	}
	return s.strategy.Render(ctx, seq)
}

// chunkSizeFor picks the request value, then the stored setting, then the
// configured default. A request value that is neither "all" nor a positive
// integer counts as absent.
func (s *Service) chunkSizeFor(ctx context.Context, requested string) (string, error) {
	if v := strings.TrimSpace(requested); validChunkSize(v) {
		return v, nil
	}
	if v, ok, err := s.override(ctx, settings.KeyChunkSize); err != nil || ok {
		return v, err
	}
	return s.opts.DefaultChunkSize, nil
}

func (s *Service) outputLengthFor(ctx context.Context, requested int) (int, error) {
	if requested > 0 {
		return requested, nil
	}
	v, ok, err := s.override(ctx, settings.KeyOutputSize)
	if err != nil {
		return 0, err
	}
	if ok {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
			return n, nil
		}
	}
	return s.opts.DefaultOutputLength, nil
}

func (s *Service) override(ctx context.Context, key string) (string, bool, error) {
	if s.overrides == nil {
		return "", false, nil
	}
	v, ok, err := s.overrides.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s setting: %w", key, err)
	}
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != "", nil
}

func validChunkSize(v string) bool {
	if strings.EqualFold(v, AllSizes) {
		return true
	}
	n, err := strconv.Atoi(v)
	return err == nil && n > 0
}

// sizesFor resolves a chunk size value. "all" expands to every configured
// size that fits in a sample of atoms atoms. A value that is not a positive
// integer falls back to the configured default.
func (s *Service) sizesFor(chunkSize string, atoms int) []int {
	if strings.EqualFold(chunkSize, AllSizes) {
		var sizes []int
		for _, k := range s.opts.Sizes.Sizes() {
			if k <= atoms {
				sizes = append(sizes, k)
			}
		}
		return sizes
	}
	if n, err := strconv.Atoi(chunkSize); err == nil && n > 0 {
		return []int{n}
	}
	if chunkSize != s.opts.DefaultChunkSize {
		return s.sizesFor(s.opts.DefaultChunkSize, atoms)
	}
	return nil
}
