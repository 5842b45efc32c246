package cluster

import (
	"sort"

	"github.com/agenthands/depo/internal/core/model"
)

type Detector interface {
	Detect(transcripts []model.Transcript, contradictions []model.Contradiction) []model.ConflictGroup
}

// ComponentDetector groups transcripts into connected components of the
// contradiction graph. Transcripts with no contradiction are left out.
type ComponentDetector struct{}

func NewDetector() Detector {
	return &ComponentDetector{}
}

func (d *ComponentDetector) Detect(transcripts []model.Transcript, contradictions []model.Contradiction) []model.ConflictGroup {
	byID := make(map[int64]model.Transcript, len(transcripts))
	for _, t := range transcripts {
		byID[t.ID] = t
	}

	adj := make(map[int64][]int64)
	for _, c := range contradictions {
		// Both ends must belong to the given transcripts
		if _, ok := byID[c.Transcript1ID]; !ok {
			continue
		}
		if _, ok := byID[c.Transcript2ID]; !ok {
			continue
		}
		adj[c.Transcript1ID] = append(adj[c.Transcript1ID], c.Transcript2ID)
		adj[c.Transcript2ID] = append(adj[c.Transcript2ID], c.Transcript1ID)
	}

	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	visited := make(map[int64]bool)
	component := make(map[int64]int)
	var groups []model.ConflictGroup

	for _, id := range ids {
		if visited[id] || len(adj[id]) == 0 {
			continue
		}
		var members []int64
		d.dfs(id, adj, visited, &members)
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

		group := model.ConflictGroup{TranscriptIDs: members}
		seen := make(map[string]bool)
		for _, m := range members {
			component[m] = len(groups)
			name := byID[m].WitnessName
			if !seen[name] {
				seen[name] = true
				group.Witnesses = append(group.Witnesses, name)
			}
		}
		groups = append(groups, group)
	}

	for _, c := range contradictions {
		idx, ok := component[c.Transcript1ID]
		if !ok {
			continue
		}
		if _, ok := component[c.Transcript2ID]; !ok {
			continue
		}
		groups[idx].ContradictionCount++
	}

	if groups == nil {
		groups = []model.ConflictGroup{}
	}
	return groups
}

func (d *ComponentDetector) dfs(u int64, adj map[int64][]int64, visited map[int64]bool, component *[]int64) {
	visited[u] = true
	*component = append(*component, u)
	for _, v := range adj[u] {
		if !visited[v] {
			d.dfs(v, adj, visited, component)
		}
	}
}
