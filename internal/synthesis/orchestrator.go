// Package synthesis runs one synthesis request: it gathers news and memory
// context, asks the Visionary and Skeptic personas in parallel, has the Judge
// reconcile them, and records the verdict in the background.
package synthesis

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/kalambet/juskvi/internal/attach"
	"github.com/kalambet/juskvi/internal/composer"
	"github.com/kalambet/juskvi/internal/pool"
)

// NewsSource returns a headline digest for a prompt.
type NewsSource interface {
	Lookup(ctx context.Context, query string) (string, error)
}

// MemoryStore reads and writes past verdicts.
type MemoryStore interface {
	Configured() bool
	Retrieve(ctx context.Context, text string) (string, error)
	Save(ctx context.Context, text, verdict string) error
}

// AgentRunner makes one reasoning call.
type AgentRunner interface {
	Run(ctx context.Context, model, system, user string, img *attach.Image) (string, error)
}

// Request is one inbound synthesis call. Image is an optional data URL.
type Request struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image,omitempty"`
}

// Result always carries all three fields, possibly holding fallback text.
type Result struct {
	Visionary      string `json:"visionary"`
	Skeptic        string `json:"skeptic"`
	FinalSynthesis string `json:"final_synthesis"`
}

// Options tunes an Orchestrator.
type Options struct {
	Personas composer.Personas
	// MemoryTimeout bounds each memory call. Zero leaves them unbounded.
	MemoryTimeout time.Duration
}

// Orchestrator runs the synthesis pipeline. It is safe for concurrent use.
type Orchestrator struct {
	pool     *pool.Pool
	news     NewsSource
	memory   MemoryStore
	runner   AgentRunner
	personas composer.Personas
	memTO    time.Duration
	logger   *slog.Logger
}

// New creates an Orchestrator. All collaborators are required; unconfigured
// ones are expected to report fault.ErrUnconfigured rather than be nil.
func New(p *pool.Pool, news NewsSource, mem MemoryStore, runner AgentRunner, opts Options) *Orchestrator {
	return &Orchestrator{
		pool:     p,
		news:     news,
		memory:   mem,
		runner:   runner,
		personas: opts.Personas,
		memTO:    opts.MemoryTimeout,
		logger:   slog.Default(),
	}
}

// Synthesize runs the pipeline for req. It never fails: every collaborator
// error is folded into the affected field. The caller going away does not
// stop the pipeline; calls are bounded only by their configured timeouts.
func (o *Orchestrator) Synthesize(ctx context.Context, req Request) Result {
	ctx = context.WithoutCancel(ctx)
	log := o.logger.With("request_id", RequestID(ctx))
	start := time.Now()

	payload, err := attach.Decode(req.Image)
	if err != nil {
		log.Debug("ignoring undecodable attachment", "error", err)
		payload = attach.Payload{}
	}

	// Stage A: context.
	newsF := pool.Submit(ctx, o.pool, func(ctx context.Context) (string, error) {
		return o.news.Lookup(ctx, req.Prompt)
	})
	memF := pool.Submit(ctx, o.pool, func(ctx context.Context) (string, error) {
		ctx, cancel := o.memoryContext(ctx)
		defer cancel()
		return o.memory.Retrieve(ctx, req.Prompt)
	})
	news, newsErr, mem, memErr := pool.Join2(newsF, memF)
	bundle := composer.Assemble(req.Prompt, newsOrFallback(news, newsErr), memoryOrFallback(mem, memErr)).
		WithAttachment(payload.Text)
	userContext := bundle.String()
	contextDone := time.Now()

	// Stage B: personas.
	visF := o.ask(ctx, o.personas.Visionary, userContext, payload.Image)
	skepF := o.ask(ctx, o.personas.Skeptic, userContext, payload.Image)
	vis, visErr, skep, skepErr := pool.Join2(visF, skepF)
	res := Result{
		Visionary: agentOrFallback(vis, visErr),
		Skeptic:   agentOrFallback(skep, skepErr),
	}
	personasDone := time.Now()

	// Stage C: judge.
	judge := o.personas.Judge
	verdict, judgeErr := pool.Submit(ctx, o.pool, func(ctx context.Context) (string, error) {
		return o.runner.Run(ctx, judge.Model, composer.JudgePrompt(req.Prompt, res.Visionary, res.Skeptic), "", nil)
	}).Wait()
	res.FinalSynthesis = agentOrFallback(verdict, judgeErr)

	o.remember(req.Prompt, res.FinalSynthesis)

	log.Debug("synthesis complete",
		"context_ms", contextDone.Sub(start).Milliseconds(),
		"personas_ms", personasDone.Sub(contextDone).Milliseconds(),
		"judge_ms", time.Since(personasDone).Milliseconds(),
		"context_tokens", composer.EstimateTokens(userContext),
		"image", payload.Image != nil,
		"degraded", degraded(map[string]error{
			"news":                            newsErr,
			"memory":                          memErr,
			string(o.personas.Visionary.Role): visErr,
			string(o.personas.Skeptic.Role):   skepErr,
			string(o.personas.Judge.Role):     judgeErr,
		}),
	)
	return res
}

// Recall returns the memory digest for query, or "" when memory is
// unavailable or nothing close enough is stored.
func (o *Orchestrator) Recall(ctx context.Context, query string) string {
	digest, err := pool.Submit(ctx, o.pool, func(ctx context.Context) (string, error) {
		ctx, cancel := o.memoryContext(ctx)
		defer cancel()
		return o.memory.Retrieve(ctx, query)
	}).Wait()
	return memoryOrFallback(digest, err)
}

func (o *Orchestrator) ask(ctx context.Context, p composer.Persona, userContext string, img *attach.Image) *pool.Future[string] {
	if !p.Image {
		img = nil
	}
	return pool.Submit(ctx, o.pool, func(ctx context.Context) (string, error) {
		return o.runner.Run(ctx, p.Model, p.System, userContext, img)
	})
}

// remember saves the verdict without waiting. The save outlives the request.
func (o *Orchestrator) remember(prompt, verdict string) {
	if !o.memory.Configured() {
		return
	}
	_ = o.pool.Detach("memory.save", func(ctx context.Context) error {
		ctx, cancel := o.memoryContext(ctx)
		defer cancel()
		return o.memory.Save(ctx, prompt, verdict)
	})
}

func (o *Orchestrator) memoryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.memTO > 0 {
		return context.WithTimeout(ctx, o.memTO)
	}
	return ctx, func() {}
}

// degraded lists the failed steps by name, sorted.
func degraded(errs map[string]error) []string {
	var out []string
	for name, err := range errs {
		if err != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
