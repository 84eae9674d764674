// Package pipeline sequences one generation run: classify, collect, retrieve
// and refine. Stages hand off through per-run namespaced artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"devecho/classify"
	"devecho/collector"
	"devecho/generator"
	"devecho/retrieval"
	"devecho/store"
)

// DefaultAudience is used when the request leaves the audience empty.
const DefaultAudience = "AI/ML engineers and researchers, Data Scientists"

// ErrNoPosts means the user has no stored drafts yet.
var ErrNoPosts = errors.New("no posts available, generate posts first")

// Stage is a progress milestone reported while a run advances.
type Stage string

const (
	StageCollecting Stage = "collecting"
	StageRetrieving Stage = "retrieving"
	StageGenerating Stage = "generating"
)

// StageCount is the number of reported milestones.
const StageCount = 3

// ProgressFunc is called before each stage starts. index is 1-based.
type ProgressFunc func(stage Stage, index, total int)

type Collector interface {
	Collect(ctx context.Context, runID string, in classify.ClassifiedInput) (collector.Collected, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, runID string) (retrieval.Result, error)
}

type Refiner interface {
	Run(ctx context.Context, in generator.Input) (generator.Output, error)
}

// ToneSource returns the currently configured tone.
type ToneSource interface {
	Get() string
}

// Request is one user's generation request.
type Request struct {
	// RunID is generated when empty.
	RunID        string
	UserID       string
	Instructions string
	Content      string
	Audience     string
	DraftCount   int
}

// Result is the outcome of a successful run.
type Result struct {
	RunID   string
	Input   classify.ClassifiedInput
	Posts   []generator.PostDraft
	Warning error
}

type latestRun struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Runner runs the stages strictly in sequence.
type Runner struct {
	collector Collector
	retriever Retriever
	refiner   Refiner
	tones     ToneSource
	store     store.Store
	logger    *log.Logger
}

func New(c Collector, r Retriever, g Refiner, tones ToneSource, st store.Store, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		collector: c,
		retriever: r,
		refiner:   g,
		tones:     tones,
		store:     st,
		logger:    logger,
	}
}

func (r *Runner) Run(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	if req.DraftCount <= 0 {
		return Result{}, fmt.Errorf("%w: got %d", generator.ErrInvalidDraftCount, req.DraftCount)
	}
	if progress == nil {
		progress = func(Stage, int, int) {}
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	audience := req.Audience
	if audience == "" {
		audience = DefaultAudience
	}
	started := time.Now()

	in := classify.Classify(req.Instructions, req.Content)
	r.logger.Printf("[pipeline] run=%s user=%s kind=%s drafts=%d", runID, req.UserID, in.Kind, req.DraftCount)

	progress(StageCollecting, 1, StageCount)
	collected, err := r.collector.Collect(ctx, runID, in)
	if err != nil {
		return Result{}, fmt.Errorf("collect: %w", err)
	}

	progress(StageRetrieving, 2, StageCount)
	retrieved, err := r.retriever.Retrieve(ctx, runID)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve: %w", err)
	}

	progress(StageGenerating, 3, StageCount)
	tone := store.DefaultTone
	if r.tones != nil {
		tone = r.tones.Get()
	}
	out, err := r.refiner.Run(ctx, generator.Input{
		Answer:     retrieved.Answer,
		Audience:   audience,
		Tone:       tone,
		DraftCount: req.DraftCount,
		Kind:       classify.ParseKind(retrieved.InputType),
		Sources:    generator.ExtractSources(retrieved),
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	if err := store.PutJSON(ctx, r.store, runID, store.PostsOutput, out.Posts); err != nil {
		return Result{}, err
	}
	if req.UserID != "" {
		pointer := latestRun{RunID: runID, CreatedAt: time.Now().UTC()}
		if err := store.PutJSON(ctx, r.store, store.UserNamespace(req.UserID), store.LatestRun, pointer); err != nil {
			return Result{}, err
		}
	}
	r.logger.Printf("[pipeline] run=%s done in %s: %d posts", runID, time.Since(started).Round(time.Millisecond), len(out.Posts))

	return Result{RunID: runID, Input: in, Posts: out.Posts, Warning: collected.Warning}, nil
}

// Posts returns the drafts stored for runID.
func (r *Runner) Posts(ctx context.Context, runID string) ([]generator.PostDraft, error) {
	posts, err := store.GetJSON[[]generator.PostDraft](ctx, r.store, runID, store.PostsOutput)
	if errors.Is(err, store.ErrNotFound) || (err == nil && len(posts) == 0) {
		return nil, ErrNoPosts
	}
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// LatestPosts returns the drafts of the user's most recent successful run.
func (r *Runner) LatestPosts(ctx context.Context, userID string) ([]generator.PostDraft, error) {
	pointer, err := store.GetJSON[latestRun](ctx, r.store, store.UserNamespace(userID), store.LatestRun)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoPosts
	}
	if err != nil {
		return nil, err
	}
	return r.Posts(ctx, pointer.RunID)
}
