package preflight

import (
	"context"

	"captioner/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every applicable preflight check for the given config,
// including network checks of optional services.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := append([]Result{CheckReadableDirectory("Media root", cfg.Paths.MediaRoot)}, Essentials(cfg)...)
	if cfg.BazarrConfigured() {
		r := CheckBazarr(ctx, cfg.Bazarr.BaseURL, cfg.Bazarr.APIKey)
		r.Optional = true
		results = append(results, r)
	}
	if cfg.KeytermsConfigured() {
		r := CheckLLM(ctx, "Keyterm LLM", cfg.Keyterms)
		r.Optional = true
		results = append(results, r)
	}
	return results
}

// Essentials runs the local checks a batch cannot start without. The media
// root is excluded because "captioner run" may target any directory.
func Essentials(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		CheckDeepgramKey(cfg),
	}
	for _, c := range CheckSystemDeps(cfg) {
		results = append(results, Result{Name: c.Name, Passed: c.Available(), Optional: c.Optional, Detail: c.Detail()})
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
