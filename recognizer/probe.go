package recognizer

import (
	"context"
	"time"
)

// ProbeResult is the outcome of capability negotiation. Active is the
// first backend whose probe succeeded, in the order the backends were
// given; Fallbacks are the remaining healthy ones in that same order.
// Failures keeps the probe error per backend name for diagnostics.
type ProbeResult struct {
	Active    Backend
	Fallbacks []Backend
	Failures  map[string]error
	Elapsed   time.Duration
}

func (r ProbeResult) Mode() Mode {
	if r.Active == nil {
		return ModeTextFallback
	}
	return r.Active.Mode()
}

// Fallback returns the next healthy backend after the active one, or
// nil. Used once per downgrade; the chain never climbs back up.
func (r *ProbeResult) Fallback() Backend {
	if len(r.Fallbacks) == 0 {
		return nil
	}
	next := r.Fallbacks[0]
	r.Fallbacks = r.Fallbacks[1:]
	return next
}

// WithoutAudio degrades a probe outcome for a process that failed to
// acquire a capture device. Voice backends are unusable without audio
// frames, so the chain settles on text fallback and the capture
// failure is recorded under "microphone" alongside the backend
// failures.
func WithoutAudio(in <-chan ProbeResult, cause error) <-chan ProbeResult {
	out := make(chan ProbeResult, 1)
	go func() {
		defer close(out)
		res := <-in
		if res.Failures == nil {
			res.Failures = make(map[string]error)
		}
		res.Failures["microphone"] = cause
		res.Active = nil
		res.Fallbacks = nil
		out <- res
	}()
	return out
}

// Probe checks the given backends concurrently and reports on the
// returned channel once all probes settle. It never blocks the caller;
// session startup proceeds while probing runs.
func Probe(ctx context.Context, backends ...Backend) <-chan ProbeResult {
	out := make(chan ProbeResult, 1)

	go func() {
		defer close(out)
		start := time.Now()

		errs := make([]error, len(backends))
		done := make(chan int, len(backends))
		for i, b := range backends {
			go func(i int, b Backend) {
				errs[i] = b.Probe(ctx)
				done <- i
			}(i, b)
		}
		for range backends {
			select {
			case <-done:
			case <-ctx.Done():
				out <- ProbeResult{Failures: map[string]error{"probe": ctx.Err()}, Elapsed: time.Since(start)}
				return
			}
		}

		result := ProbeResult{Failures: make(map[string]error), Elapsed: time.Since(start)}
		for i, b := range backends {
			if errs[i] != nil {
				result.Failures[b.Name()] = errs[i]
				continue
			}
			if result.Active == nil {
				result.Active = b
			} else {
				result.Fallbacks = append(result.Fallbacks, b)
			}
		}
		out <- result
	}()

	return out
}
