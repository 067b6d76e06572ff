package mojang

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"ely.by/mcauth/internal/otel"
	"ely.by/mcauth/internal/profiles"
)

type ProfilesSearcher interface {
	SearchProfiles(ctx context.Context, names []string) ([]*profiles.Profile, error)
}

// LookupResult is the outcome for one requested name: either Profile or Err is set
type LookupResult struct {
	Name    string
	Profile *profiles.Profile
	Err     error
}

type ResolverOption func(r *Resolver)

func WithPageSize(size int) ResolverOption {
	return func(r *Resolver) {
		if size > 0 {
			r.pageSize = size
		}
	}
}

func WithPageDelay(delay time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.pageDelay = delay
	}
}

func WithFailureDelay(delay time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.failureDelay = delay
	}
}

func WithMaxFailures(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxFailures = n
		}
	}
}

// Resolver looks up profiles by names page by page. Pages are paced with a short delay,
// a failed page is retried after a longer one until the failures limit is reached
type Resolver struct {
	ProfilesSearcher

	pageSize     int
	pageDelay    time.Duration
	failureDelay time.Duration
	maxFailures  int

	metrics *resolverMetrics
}

func NewResolver(searcher ProfilesSearcher, opts ...ResolverOption) (*Resolver, error) {
	metrics, err := newResolverMetrics(otel.GetMeter())
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		ProfilesSearcher: searcher,
		pageSize:         100,
		pageDelay:        100 * time.Millisecond,
		failureDelay:     750 * time.Millisecond,
		maxFailures:      3,
		metrics:          metrics,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// ResolveByNames yields exactly one result for every distinct (case-insensitive) non-empty name.
// The sequence does its requests while being iterated and can be iterated only once.
// When the context is done, the names left are yielded with the context error
func (r *Resolver) ResolveByNames(ctx context.Context, names []string) iter.Seq[*LookupResult] {
	criteria := uniqueNames(names)
	var consumed atomic.Bool

	return func(yield func(*LookupResult) bool) {
		if !consumed.CompareAndSwap(false, true) {
			slog.Warn("the profiles lookup sequence has already been consumed", slog.Int("names", len(criteria)))
			return
		}

		for start := 0; start < len(criteria); start += r.pageSize {
			page := criteria[start:min(start+r.pageSize, len(criteria))]
			last := start+r.pageSize >= len(criteria)
			if !r.resolvePage(ctx, page, last, yield) {
				return
			}
		}
	}
}

// FindProfilesByNames is a callback flavor of ResolveByNames
func (r *Resolver) FindProfilesByNames(
	ctx context.Context,
	names []string,
	onSuccess func(profile *profiles.Profile),
	onFailure func(name string, err error),
) {
	for result := range r.ResolveByNames(ctx, names) {
		if result.Err != nil {
			onFailure(result.Name, result.Err)
		} else {
			onSuccess(result.Profile)
		}
	}
}

func (r *Resolver) resolvePage(ctx context.Context, page []string, last bool, yield func(*LookupResult) bool) bool {
	var lastErr error
	for failures := 0; failures < r.maxFailures; {
		if err := ctx.Err(); err != nil {
			return failAll(page, err, yield)
		}

		r.metrics.Requests.Add(ctx, 1)
		r.metrics.PageSize.Record(ctx, int64(len(page)))

		found, err := r.SearchProfiles(ctx, page)
		if err == nil {
			if !yieldPage(page, found, yield) {
				return false
			}

			if !last {
				_ = sleep(ctx, r.pageDelay)
			}

			return true
		}

		if ctx.Err() != nil {
			return failAll(page, ctx.Err(), yield)
		}

		lastErr = err
		failures++
		r.metrics.Failures.Add(ctx, 1)
		slog.Warn("profiles lookup page failed",
			slog.Int("page_size", len(page)),
			slog.Int("failures", failures),
			slog.Any("error", err),
		)

		if failures < r.maxFailures {
			if err := sleep(ctx, r.failureDelay); err != nil {
				return failAll(page, err, yield)
			}
		}
	}

	return failAll(page, fmt.Errorf("%w: %w", ErrProfileLookupFailed, lastErr), yield)
}

func yieldPage(page []string, found []*profiles.Profile, yield func(*LookupResult) bool) bool {
	missing := make(map[string]bool, len(page))
	for _, name := range page {
		missing[name] = true
	}

	for _, profile := range found {
		if profile == nil {
			continue
		}

		name := strings.ToLower(profile.Name)
		// The server may echo a name twice or return one which wasn't asked for
		if !missing[name] {
			slog.Debug("unexpected profile in the lookup response", slog.String("name", profile.Name))
			continue
		}

		delete(missing, name)
		if !yield(&LookupResult{Name: name, Profile: profile}) {
			return false
		}
	}

	for _, name := range page {
		if !missing[name] {
			continue
		}

		if !yield(&LookupResult{Name: name, Err: ErrProfileNotFound}) {
			return false
		}
	}

	return true
}

func failAll(page []string, err error, yield func(*LookupResult) bool) bool {
	for _, name := range page {
		if !yield(&LookupResult{Name: name, Err: err}) {
			return false
		}
	}

	return true
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	result := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}

		name = strings.ToLower(name)
		if seen[name] {
			continue
		}

		seen[name] = true
		result = append(result, name)
	}

	return result
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func newResolverMetrics(meter metric.Meter) (*resolverMetrics, error) {
	m := &resolverMetrics{}
	var errors, err error

	m.Requests, err = meter.Int64Counter(
		"mcauth.mojang.profiles.lookup.request.sent",
		metric.WithDescription("Number of profiles lookup pages sent to the profiles api"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.PageSize, err = meter.Int64Histogram(
		"mcauth.mojang.profiles.lookup.request.page_size",
		metric.WithDescription("The number of names in the query"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.Failures, err = meter.Int64Counter(
		"mcauth.mojang.profiles.lookup.request.failed",
		metric.WithDescription("Number of failed profiles lookup page attempts"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	return m, errors
}

type resolverMetrics struct {
	Requests metric.Int64Counter
	PageSize metric.Int64Histogram
	Failures metric.Int64Counter
}
