package correlation

import (
	"sync"

	"github.com/ledgerpulse/go-forecaster/timeseries"
)

// RankPredictors searches the optimal lag between every candidate and target and returns the
// candidates whose best |r| reaches MinPredictorR, strongest first and truncated to
// MaxPredictors. The target itself is skipped when it appears among the candidates. In each
// result SeriesA is the candidate and SeriesB the target, so a positive lag means the candidate
// leads the target.
func (a *Analyzer) RankPredictors(target *timeseries.TimeSeries, candidates []*timeseries.TimeSeries) []*Result {
	if target == nil {
		return nil
	}

	jobs := make([]*timeseries.TimeSeries, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c == target || c.EntityID == target.EntityID {
			continue
		}
		jobs = append(jobs, c)
	}
	if len(jobs) == 0 {
		return nil
	}

	found := make([]*Result, len(jobs))
	sem := make(chan struct{}, a.opt.parallelization(len(jobs)))
	var wg sync.WaitGroup
	for i, c := range jobs {
		sem <- struct{}{}
		wg.Add(1)

		go func(i int, c *timeseries.TimeSeries) {
			defer func() {
				wg.Done()
				<-sem
			}()
			found[i] = a.FindOptimalLag(c, target)
		}(i, c)
	}
	wg.Wait()

	res := make([]*Result, 0, len(found))
	for _, r := range found {
		if r == nil || r.AbsR() < a.opt.MinPredictorR {
			continue
		}
		res = append(res, r)
	}
	sortResults(res)

	if limit := a.opt.MaxPredictors; limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}
