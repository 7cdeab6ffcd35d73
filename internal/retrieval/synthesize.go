package retrieval

import (
	"sort"
	"strings"

	"github.com/agenthands/ticketkg/internal/core/model"
)

// SynthesizeSteps ranks the resolution steps found across hits by how many
// times they occur, ties broken by first appearance, and keeps at most max.
func SynthesizeSteps(hits []model.Hit, max int) []string {
	counts := make(map[string]int)
	var order []string
	for _, h := range hits {
		for _, step := range h.ResolutionSteps {
			s := strings.TrimSpace(step)
			if s == "" {
				continue
			}
			if _, ok := counts[s]; !ok {
				order = append(order, s)
			}
			counts[s]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if max >= 0 && len(order) > max {
		order = order[:max]
	}
	if order == nil {
		return []string{}
	}
	return order
}
