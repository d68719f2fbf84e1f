package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"quiz-eval-service/internal/domain"
)

// Reporter rolls persisted records up into correctness counts and latency
// samples. It only reads; counts are not a transactional snapshot.
type Reporter struct {
	store RecordStore
	sf    singleflight.Group
}

func NewReporter(store RecordStore) *Reporter {
	return &Reporter{store: store}
}

// Domain reports a single known domain. Unknown names return
// domain.ErrUnknownDomain.
func (r *Reporter) Domain(ctx context.Context, name string) (domain.DomainReport, error) {
	d, err := domain.Parse(name)
	if err != nil {
		return domain.DomainReport{}, err
	}
	return r.load(ctx, d)
}

// Overall reports every domain plus the combined tally. Response times are
// concatenated in registry order, each domain in insertion order.
func (r *Reporter) Overall(ctx context.Context) (domain.OverallReport, error) {
	all := domain.All()
	reports := make([]domain.DomainReport, len(all))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range all {
		i, d := i, d
		g.Go(func() error {
			rep, err := r.load(gctx, d)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.OverallReport{}, err
	}

	out := domain.OverallReport{
		ByDomain:      make(map[domain.Domain]domain.Tally, len(all)),
		ResponseTimes: []int64{},
	}
	var correct, incorrect int
	for _, rep := range reports {
		out.ByDomain[rep.Domain] = rep.Tally
		correct += rep.Correct
		incorrect += rep.Incorrect
		out.ResponseTimes = append(out.ResponseTimes, rep.ResponseTimes...)
	}
	out.Overall = domain.NewTally(correct, incorrect)
	return out, nil
}

// Invalidating wraps store so that every successful Create drops any
// in-flight load of that collection. Reads that begin after a write returns
// then start a fresh load instead of joining one that predates the write.
func (r *Reporter) Invalidating(store RecordStore) RecordStore {
	return invalidatingStore{RecordStore: store, sf: &r.sf}
}

type invalidatingStore struct {
	RecordStore
	sf *singleflight.Group
}

func (s invalidatingStore) Create(ctx context.Context, d domain.Domain, rec domain.Record) error {
	if err := s.RecordStore.Create(ctx, d, rec); err != nil {
		return err
	}
	s.sf.Forget(d.Collection())
	return nil
}

// load collapses concurrent reads of the same collection into one store round
// trip. The shared read runs detached from any single caller; each caller
// stops waiting when its own ctx is done.
func (r *Reporter) load(ctx context.Context, d domain.Domain) (domain.DomainReport, error) {
	shared := context.WithoutCancel(ctx)
	ch := r.sf.DoChan(d.Collection(), func() (interface{}, error) {
		correct, err := r.store.Count(shared, d, true)
		if err != nil {
			return nil, fmt.Errorf("count correct %s: %w", d, err)
		}
		incorrect, err := r.store.Count(shared, d, false)
		if err != nil {
			return nil, fmt.Errorf("count incorrect %s: %w", d, err)
		}
		times, err := r.store.ResponseTimes(shared, d)
		if err != nil {
			return nil, fmt.Errorf("response times %s: %w", d, err)
		}
		if times == nil {
			times = []int64{}
		}
		return domain.DomainReport{
			Domain:        d,
			Tally:         domain.NewTally(correct, incorrect),
			ResponseTimes: times,
		}, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return domain.DomainReport{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return domain.DomainReport{}, res.Err
	}
	rep := res.Val.(domain.DomainReport)
	rep.ResponseTimes = append([]int64(nil), rep.ResponseTimes...)
	if rep.ResponseTimes == nil {
		rep.ResponseTimes = []int64{}
	}
	return rep, nil
}
