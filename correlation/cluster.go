package correlation

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"

	"github.com/ledgerpulse/go-forecaster/timeseries"
)

// Cluster is a connected group of series whose lag 0 correlations reach the cluster threshold.
type Cluster struct {
	// Members holds the entity ids sorted ascending.
	Members []string `json:"members"`

	// AvgAbsR is the average |r| over every computable pair of members.
	AvgAbsR float64 `json:"avg_abs_r"`
}

type pair struct {
	i, j int
}

// FindClusters links every pair of series whose lag 0 |r| reaches ClusterThreshold and returns
// the connected components with more than one member, ordered by average |r| descending. The
// output does not depend on the order of the input series. Series sharing an entity id are
// only considered once.
func (a *Analyzer) FindClusters(series []*timeseries.TimeSeries) []Cluster {
	nodes := uniqueSeries(series)
	n := len(nodes)
	if n < 2 {
		return nil
	}

	pairs := make([]pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	results := make([]*Result, len(pairs))
	sem := make(chan struct{}, a.opt.parallelization(len(pairs)))
	var wg sync.WaitGroup
	for k, p := range pairs {
		sem <- struct{}{}
		wg.Add(1)

		go func(k int, p pair) {
			defer func() {
				wg.Done()
				<-sem
			}()
			results[k] = a.Correlate(nodes[p.i], nodes[p.j], 0)
		}(k, p)
	}
	wg.Wait()

	adj := make([][]int, n)
	absR := make(map[pair]float64, len(pairs))
	for k, p := range pairs {
		r := results[k]
		if r == nil {
			continue
		}
		absR[p] = r.AbsR()
		if r.AbsR() >= a.opt.ClusterThreshold {
			adj[p.i] = append(adj[p.i], p.j)
			adj[p.j] = append(adj[p.j], p.i)
		}
	}

	var clusters []Cluster
	visited := make([]bool, n)
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		component := bfs(start, adj, visited)
		if len(component) < 2 {
			continue
		}
		slices.Sort(component)

		var sum float64
		var cnt int
		for x := 0; x < len(component); x++ {
			for y := x + 1; y < len(component); y++ {
				if v, exists := absR[pair{component[x], component[y]}]; exists {
					sum += v
					cnt++
				}
			}
		}

		members := make([]string, len(component))
		for x, idx := range component {
			members[x] = nodes[idx].EntityID
		}
		c := Cluster{Members: members}
		if cnt > 0 {
			c.AvgAbsR = sum / float64(cnt)
		}
		clusters = append(clusters, c)
	}

	slices.SortStableFunc(clusters, func(x, y Cluster) int {
		if c := cmp.Compare(y.AvgAbsR, x.AvgAbsR); c != 0 {
			return c
		}
		return cmp.Compare(x.Members[0], y.Members[0])
	})
	return clusters
}

func bfs(start int, adj [][]int, visited []bool) []int {
	component := []int{start}
	visited[start] = true
	queue := []int{start}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, next := range adj[curr] {
			if visited[next] {
				continue
			}
			visited[next] = true
			component = append(component, next)
			queue = append(queue, next)
		}
	}
	return component
}

// uniqueSeries returns the non nil series sorted by entity id keeping the first occurrence of
// each id.
func uniqueSeries(series []*timeseries.TimeSeries) []*timeseries.TimeSeries {
	seen := make(map[string]struct{}, len(series))
	nodes := make([]*timeseries.TimeSeries, 0, len(series))
	for _, ts := range series {
		if ts == nil {
			continue
		}
		if _, exists := seen[ts.EntityID]; exists {
			slog.Warn("duplicate entity id in cluster input, skipping", "entity_id", ts.EntityID)
			continue
		}
		seen[ts.EntityID] = struct{}{}
		nodes = append(nodes, ts)
	}
	slices.SortFunc(nodes, func(x, y *timeseries.TimeSeries) int {
		return cmp.Compare(x.EntityID, y.EntityID)
	})
	return nodes
}
