package docstore

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xdbsoft/docstore/api"
)

// UpdateMany merges each record into the stored record named by its `id`
// field. Updates run concurrently; the results come back in input order, one
// per record.
//
// With the FailFast policy the first failure cancels the others and is
// returned without results. With Settle every update runs, failed items carry
// the api.Failed status and the returned error aggregates their errors.
func (s *Service) UpdateMany(ctx context.Context, records []api.Record) ([]api.WriteResult, error) {

	ids := make([]string, len(records))
	for i, r := range records {
		id, ok := r.ID()
		if !ok {
			return nil, badRequest(fmt.Sprintf("record %d has no identifier", i))
		}
		ids[i] = id
	}

	results := make([]api.WriteResult, len(records))
	if len(records) == 0 {
		return results, nil
	}

	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	if s.definition.Batch == Settle {
		return s.settleUpdates(ctx, col, ids, records, results)
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.definition.Concurrency > 0 {
		g.SetLimit(s.definition.Concurrency)
	}

	for i := range records {
		i := i
		g.Go(func() error {
			res, err := s.update(gctx, col, ids[i], records[i].WithoutID())
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "batch update aborted")
	}

	return results, nil
}

func (s *Service) settleUpdates(ctx context.Context, col api.Collection, ids []string, records []api.Record, results []api.WriteResult) ([]api.WriteResult, error) {

	var g errgroup.Group
	if s.definition.Concurrency > 0 {
		g.SetLimit(s.definition.Concurrency)
	}

	for i := range records {
		i := i
		g.Go(func() error {
			res, err := s.update(ctx, col, ids[i], records[i].WithoutID())
			if err != nil {
				res = api.WriteResult{ID: ids[i], Status: api.Failed, Err: err}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var merr *multierror.Error
	for _, res := range results {
		if res.Status == api.Failed {
			merr = multierror.Append(merr, res.Err)
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		s.log.WithError(err).Warn("batch update settled with failures")
		return results, err
	}

	return results, nil
}
