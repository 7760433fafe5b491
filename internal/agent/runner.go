// Package agent dispatches a persona prompt to the reasoning provider that
// serves the requested model.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/juskvi/internal/attach"
	"github.com/kalambet/juskvi/internal/fault"
)

// Provider generates text from a system prompt, user context, and an
// optional image. Providers that cannot take images ignore img.
type Provider interface {
	Generate(ctx context.Context, model, system, user string, img *attach.Image) (string, error)
}

// Route sends models whose identifier contains Match to Provider. A Route
// with an empty Match catches every model. A nil Provider marks the family
// as unconfigured.
type Route struct {
	Name     string
	Match    string
	Provider Provider
}

// Runner picks a provider by model identifier and makes one call per Run.
type Runner struct {
	routes  []Route
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a Runner. Routes are checked in order; the first match wins.
// A positive timeout bounds each provider call; zero leaves calls unbounded.
func NewRunner(timeout time.Duration, routes ...Route) *Runner {
	return &Runner{
		routes:  routes,
		timeout: timeout,
		logger:  slog.Default(),
	}
}

// Run sends one request to the provider serving model. It returns
// fault.ErrUnconfigured when that provider has no client, and a transient
// fault carrying the provider's error message when the call fails.
func (r *Runner) Run(ctx context.Context, model, system, user string, img *attach.Image) (string, error) {
	route, ok := r.route(model)
	if !ok {
		return "", fmt.Errorf("no provider for model %q: %w", model, fault.ErrUnconfigured)
	}
	if route.Provider == nil {
		return "", fmt.Errorf("%s: %w", route.Name, fault.ErrUnconfigured)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := route.Provider.Generate(ctx, model, system, user, img)
	if err != nil {
		r.logger.Warn("agent call failed", "provider", route.Name, "model", model, "error", err)
		return "", fault.Transient(err)
	}
	r.logger.Debug("agent call done", "provider", route.Name, "model", model, "duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Configured reports whether the provider serving model has a client.
func (r *Runner) Configured(model string) bool {
	route, ok := r.route(model)
	return ok && route.Provider != nil
}

func (r *Runner) route(model string) (Route, bool) {
	for _, rt := range r.routes {
		if rt.Match == "" || strings.Contains(model, rt.Match) {
			return rt, true
		}
	}
	return Route{}, false
}
