package engine

import (
	"context"
	"log"
	"time"

	"github.com/birchwood/mnemo/internal/config"
	"github.com/birchwood/mnemo/internal/llm"
	"github.com/birchwood/mnemo/internal/store"
)

// Engine is the memory evolution engine: usefulness scoring, co-access
// relationship learning, similarity consolidation, and safety-gated
// pruning. It holds its collaborators explicitly — the store, the optional
// embedder, and the optional rollup summarizer are all injected at
// construction, never reached through package-level state.
type Engine struct {
	DB         *store.DB
	Embedder   Embedder
	Summarizer llm.Client
	cfg        config.EvolutionConfig
	stopCh     chan struct{}
}

// New creates an Engine over the given store with the given tunables.
func New(db *store.DB, cfg config.EvolutionConfig) *Engine {
	return &Engine{
		DB:     db,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// SetEmbedder configures the embedding/similarity collaborator. Without
// one, consolidation degrades to a warning no-op.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

// SetSummarizer configures the rollup-text collaborator used when a cluster
// is consolidated. Without one, a deterministic textual rollup is used.
func (e *Engine) SetSummarizer(client llm.Client) {
	e.Summarizer = client
}

// StartEvolutionTimer runs the decay passes once at startup and then on the
// configured interval until Stop is called.
func (e *Engine) StartEvolutionTimer() {
	e.runDecayPasses()

	interval := time.Duration(e.cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.runDecayPasses()
			case <-e.stopCh:
				return
			}
		}
	}()
}

func (e *Engine) runDecayPasses() {
	ctx := context.Background()

	if res, err := e.DecayScores(ctx); err != nil {
		log.Printf("score decay error: %v", err)
	} else if res.Processed > 0 {
		log.Printf("score decay: rescored %d memories", res.Processed)
	}

	updated, deleted, err := e.DecayRelationships(ctx, e.cfg.RelationshipDecay, e.cfg.RelationshipFloor)
	if err != nil {
		log.Printf("relationship decay error: %v", err)
	} else if updated > 0 || deleted > 0 {
		log.Printf("relationship decay: %d weakened, %d dropped", updated, deleted)
	}
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// EmbedMissing embeds every active memory that has no stored vector yet, or
// whose vector was produced by a different model. Failed embeds are skipped
// and logged; the next pass retries them.
func (e *Engine) EmbedMissing(ctx context.Context) (int, error) {
	if e.Embedder == nil {
		return 0, nil
	}

	memories, err := e.DB.QueryMemories(store.MemoryFilter{Status: store.StatusActive})
	if err != nil {
		return 0, err
	}

	embedded := 0
	for i := range memories {
		existing, err := e.DB.GetVector(memories[i].ID)
		if err != nil {
			log.Printf("embed missing: get vector for %d: %v", memories[i].ID, err)
			continue
		}
		if existing != nil && existing.Model == e.Embedder.Model() {
			continue
		}

		vec, err := e.Embedder.Embed(ctx, memories[i].Content)
		if err != nil {
			log.Printf("embed missing: memory %d: %v", memories[i].ID, err)
			continue
		}
		if err := e.DB.SaveVector(memories[i].ID, vec, e.Embedder.Model()); err != nil {
			log.Printf("embed missing: save %d: %v", memories[i].ID, err)
			continue
		}
		embedded++
	}

	return embedded, nil
}
