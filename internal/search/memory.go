package search

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Backend. It evaluates the same query tree the
// OpenSearch backend sends, scoring text with per-field BM25, so retrieval
// works without a cluster. Suited to corpora of a few thousand documents.
type Memory struct {
	vectorField string

	mu        sync.RWMutex
	docs      []*memDoc
	ids       map[string]int
	stats     map[string]*fieldStats
	dimension int
}

type memDoc struct {
	pos    int
	id     string
	src    map[string]any
	fields map[string]*fieldTokens
	vector []float32
}

func NewMemory(vectorField string) *Memory {
	if vectorField == "" {
		vectorField = "embedding"
	}
	return &Memory{vectorField: vectorField, ids: map[string]int{}, stats: map[string]*fieldStats{}}
}

func (m *Memory) EnsureIndex(_ context.Context, dimension int) error {
	m.mu.Lock()
	m.dimension = dimension
	m.mu.Unlock()
	return nil
}

func (m *Memory) Refresh(context.Context) error { return nil }

// VectorField is the document field read as the kNN vector.
func (m *Memory) VectorField() string { return m.vectorField }

// Replace swaps in the documents of src in one step, so searches see either
// the old or the new document set and never a partial one. src must not be
// used afterwards.
func (m *Memory) Replace(src *Memory) {
	src.mu.RLock()
	docs, ids, stats, dim := src.docs, src.ids, src.stats, src.dimension
	src.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = docs
	m.ids = ids
	m.stats = stats
	m.dimension = dim
}

// Len is the number of indexed documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Bulk adds or replaces documents by id.
func (m *Memory) Bulk(_ context.Context, docs []BulkDoc) (BulkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res BulkResult
	for _, d := range docs {
		if d.Body == nil {
			res.Failed++
			continue
		}
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		doc := m.newDoc(id, d.Body)
		if i, ok := m.ids[id]; ok {
			doc.pos = i
			m.docs[i] = doc
		} else {
			doc.pos = len(m.docs)
			m.ids[id] = doc.pos
			m.docs = append(m.docs, doc)
		}
		res.Succeeded++
	}
	m.rebuildStats()
	return res, nil
}

func (m *Memory) newDoc(id string, body map[string]any) *memDoc {
	doc := &memDoc{id: id, src: make(map[string]any, len(body)), fields: make(map[string]*fieldTokens)}
	for k, v := range body {
		if k == m.vectorField {
			doc.vector = toVector(v)
			continue
		}
		doc.src[k] = v
		if vals := fieldStrings(body, k); len(vals) > 0 {
			doc.fields[k] = newFieldTokens(vals)
		}
	}
	return doc
}

func (m *Memory) rebuildStats() {
	stats := make(map[string]*fieldStats)
	for _, d := range m.docs {
		for name, ft := range d.fields {
			s, ok := stats[name]
			if !ok {
				s = &fieldStats{df: make(map[string]int)}
				stats[name] = s
			}
			s.docs++
			s.totalLen += ft.length
			for term := range ft.tf {
				s.df[term]++
			}
		}
	}
	m.stats = stats
}

func (m *Memory) Search(_ context.Context, req Request) (*Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var q Query = MatchAllQuery{}
	if req.Query != nil {
		q = req.Query
	}
	c := &compiler{m: m}
	root, err := c.compile(q)
	if err != nil {
		return nil, err
	}

	type scored struct {
		doc   *memDoc
		score float64
	}
	var hits []scored
	for _, d := range m.docs {
		if s, ok := root.eval(d); ok {
			hits = append(hits, scored{d, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	size := req.Size
	if size <= 0 {
		size = 10
	}
	if len(hits) > size {
		hits = hits[:size]
	}

	out := &Response{Hits: make([]Hit, 0, len(hits))}
	for _, h := range hits {
		src, err := json.Marshal(project(h.doc.src, req.Source))
		if err != nil {
			return nil, fmt.Errorf("failed to encode document %s: %w", h.doc.id, err)
		}
		out.Hits = append(out.Hits, Hit{
			ID:        h.doc.id,
			Score:     h.score,
			Source:    src,
			Highlight: c.highlight(h.doc, req.Highlight),
		})
	}
	return out, nil
}

func project(src map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return src
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := src[f]; ok {
			out[f] = v
		}
	}
	return out
}

func toVector(v any) []float32 {
	switch x := v.(type) {
	case []float32:
		return append([]float32(nil), x...)
	case []float64:
		out := make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return out
	case []any:
		out := make([]float32, 0, len(x))
		for _, e := range x {
			f, ok := e.(float64)
			if !ok {
				return nil
			}
			out = append(out, float32(f))
		}
		return out
	}
	return nil
}

// node is a compiled query clause evaluated against one document.
type node interface {
	eval(d *memDoc) (float64, bool)
}

// queryTerm is a term that can produce a highlight.
type queryTerm struct {
	field string
	term  string
	fuzzy bool
}

type compiler struct {
	m     *Memory
	terms []queryTerm
}

func (c *compiler) compile(q Query) (node, error) {
	switch q := q.(type) {
	case MatchAllQuery:
		return constNode(1), nil
	case MatchPhraseQuery:
		terms := analyze(q.Text)
		c.note(q.Field, terms, false)
		return &phraseNode{stats: c.m.stats[q.Field], field: q.Field, terms: terms, boost: boostOr1(q.Boost)}, nil
	case MatchQuery:
		terms := analyze(q.Text)
		fuzzy := strings.EqualFold(q.Fuzziness, "AUTO")
		c.note(q.Field, terms, fuzzy)
		return &matchNode{fields: []fieldWeight{{q.Field, 1, c.m.stats[q.Field]}}, terms: terms, fuzzy: fuzzy, boost: boostOr1(q.Boost)}, nil
	case MultiMatchQuery:
		terms := analyze(q.Text)
		fuzzy := strings.EqualFold(q.Fuzziness, "AUTO")
		n := &matchNode{terms: terms, fuzzy: fuzzy, boost: boostOr1(q.Boost), and: strings.EqualFold(q.Operator, "and")}
		for _, spec := range q.Fields {
			name, b := FieldBoost(spec)
			n.fields = append(n.fields, fieldWeight{name, b, c.m.stats[name]})
			c.note(name, terms, fuzzy)
		}
		return n, nil
	case TermQuery:
		return &termNode{field: q.Field, values: []string{fmt.Sprint(q.Value)}}, nil
	case TermsQuery:
		vals := make([]string, len(q.Values))
		for i, v := range q.Values {
			vals[i] = fmt.Sprint(v)
		}
		return &termNode{field: q.Field, values: vals}, nil
	case RangeQuery:
		return &rangeNode{field: q.Field, gte: q.GTE}, nil
	case BoolQuery:
		return c.compileBool(q)
	case FunctionScoreQuery:
		inner := Query(MatchAllQuery{})
		if q.Query != nil {
			inner = q.Query
		}
		in, err := c.compile(inner)
		if err != nil {
			return nil, err
		}
		n := &functionScoreNode{query: in, boostMode: q.BoostMode, scoreMode: q.ScoreMode}
		for _, f := range q.Functions {
			var filter node = constNode(1)
			if f.Filter != nil {
				if filter, err = c.compile(f.Filter); err != nil {
					return nil, err
				}
			}
			n.filters = append(n.filters, filter)
			n.weights = append(n.weights, f.Weight)
		}
		return n, nil
	case KNNQuery:
		return c.m.knn(q), nil
	case nil:
		return constNode(1), nil
	}
	return nil, fmt.Errorf("unsupported query type %T", q)
}

func (c *compiler) compileBool(q BoolQuery) (node, error) {
	n := &boolNode{}
	for _, group := range []struct {
		in  []Query
		out *[]node
	}{{q.Must, &n.must}, {q.Should, &n.should}, {q.Filter, &n.filter}} {
		for _, sub := range group.in {
			cn, err := c.compile(sub)
			if err != nil {
				return nil, err
			}
			*group.out = append(*group.out, cn)
		}
	}
	switch {
	case q.MinimumShouldMatch != nil:
		n.minShould = *q.MinimumShouldMatch
	case len(q.Must) == 0 && len(q.Filter) == 0 && len(q.Should) > 0:
		n.minShould = 1
	}
	return n, nil
}

func (c *compiler) note(field string, terms []string, fuzzy bool) {
	for _, t := range terms {
		c.terms = append(c.terms, queryTerm{field: field, term: t, fuzzy: fuzzy})
	}
}

// highlight reports, per requested field, the values containing a query
// term aimed at that field.
func (c *compiler) highlight(d *memDoc, fields []string) map[string][]string {
	var out map[string][]string
	for _, f := range fields {
		ft := d.fields[f]
		if ft == nil {
			continue
		}
		for i, toks := range ft.values {
			if c.valueMatches(f, toks) {
				if out == nil {
					out = make(map[string][]string)
				}
				out[f] = append(out[f], ft.raw[i])
			}
		}
	}
	return out
}

func (c *compiler) valueMatches(field string, toks []string) bool {
	for _, qt := range c.terms {
		if qt.field != field {
			continue
		}
		for _, t := range toks {
			if t == qt.term || (qt.fuzzy && editDistance(t, qt.term) <= autoFuzziness(qt.term)) {
				return true
			}
		}
	}
	return false
}

func boostOr1(b float64) float64 {
	if b == 0 {
		return 1
	}
	return b
}

type constNode float64

func (n constNode) eval(*memDoc) (float64, bool) { return float64(n), true }

type phraseNode struct {
	stats *fieldStats
	field string
	terms []string
	boost float64
}

func (n *phraseNode) eval(d *memDoc) (float64, bool) {
	ft := d.fields[n.field]
	if ft == nil || len(n.terms) == 0 {
		return 0, false
	}
	for _, toks := range ft.values {
		if containsSeq(toks, n.terms) {
			var s float64
			for _, t := range n.terms {
				s += n.stats.score(ft, t)
			}
			return s * n.boost, true
		}
	}
	return 0, false
}

func containsSeq(toks, seq []string) bool {
	for i := 0; i+len(seq) <= len(toks); i++ {
		match := true
		for j := range seq {
			if toks[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

type fieldWeight struct {
	name  string
	boost float64
	stats *fieldStats
}

// matchNode scores terms against each field and keeps the best field, the
// best_fields behaviour. A single-field match is the one-field case.
type matchNode struct {
	fields []fieldWeight
	terms  []string
	fuzzy  bool
	and    bool
	boost  float64
}

func (n *matchNode) eval(d *memDoc) (float64, bool) {
	best, matched := 0.0, false
	for _, f := range n.fields {
		ft := d.fields[f.name]
		if ft == nil {
			continue
		}
		s, ok := n.fieldScore(f.stats, ft)
		if !ok {
			continue
		}
		if s*f.boost > best || !matched {
			best = s * f.boost
		}
		matched = true
	}
	return best * n.boost, matched
}

func (n *matchNode) fieldScore(stats *fieldStats, ft *fieldTokens) (float64, bool) {
	var total float64
	hits := 0
	for _, t := range n.terms {
		s, ok := n.termScore(stats, ft, t)
		if ok {
			hits++
			total += s
		}
	}
	if hits == 0 || (n.and && hits < len(n.terms)) {
		return 0, false
	}
	return total, true
}

func (n *matchNode) termScore(stats *fieldStats, ft *fieldTokens, term string) (float64, bool) {
	if ft.tf[term] > 0 {
		return stats.score(ft, term), true
	}
	if !n.fuzzy {
		return 0, false
	}
	maxEdits := autoFuzziness(term)
	if maxEdits == 0 {
		return 0, false
	}
	best, ok := 0.0, false
	for cand := range ft.tf {
		dist := editDistance(cand, term)
		if dist > maxEdits {
			continue
		}
		l := max(len([]rune(cand)), len([]rune(term)))
		s := stats.score(ft, cand) * (1 - float64(dist)/float64(l))
		if !ok || s > best {
			best, ok = s, true
		}
	}
	return best, ok
}

// termNode matches the exact, unanalyzed field value.
type termNode struct {
	field  string
	values []string
}

func (n *termNode) eval(d *memDoc) (float64, bool) {
	for _, v := range fieldStrings(d.src, n.field) {
		for _, want := range n.values {
			if v == want {
				return 1, true
			}
		}
	}
	return 0, false
}

type rangeNode struct {
	field string
	gte   string
}

func (n *rangeNode) eval(d *memDoc) (float64, bool) {
	for _, v := range fieldStrings(d.src, n.field) {
		if compareValues(v, n.gte) >= 0 {
			return 1, true
		}
	}
	return 0, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// compareValues orders dates chronologically when both sides parse as
// dates, and falls back to string order.
func compareValues(a, b string) int {
	ta, okA := parseDate(a)
	tb, okB := parseDate(b)
	if okA && okB {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}

type boolNode struct {
	must, should, filter []node
	minShould            int
}

func (n *boolNode) eval(d *memDoc) (float64, bool) {
	var score float64
	for _, c := range n.filter {
		if _, ok := c.eval(d); !ok {
			return 0, false
		}
	}
	for _, c := range n.must {
		s, ok := c.eval(d)
		if !ok {
			return 0, false
		}
		score += s
	}
	matched := 0
	for _, c := range n.should {
		if s, ok := c.eval(d); ok {
			matched++
			score += s
		}
	}
	if matched < n.minShould {
		return 0, false
	}
	if len(n.must) == 0 && len(n.should) == 0 {
		score = 1
	}
	return score, true
}

type functionScoreNode struct {
	query     node
	filters   []node
	weights   []float64
	boostMode string
	scoreMode string
}

func (n *functionScoreNode) eval(d *memDoc) (float64, bool) {
	qs, ok := n.query.eval(d)
	if !ok {
		return 0, false
	}
	var fs float64
	applied := 0
	for i, f := range n.filters {
		if _, hit := f.eval(d); !hit {
			continue
		}
		w := n.weights[i]
		switch {
		case applied == 0:
			fs = w
		case n.scoreMode == "max":
			fs = math.Max(fs, w)
		case n.scoreMode == "min":
			fs = math.Min(fs, w)
		case n.scoreMode == "sum":
			fs += w
		default:
			fs *= w
		}
		applied++
	}
	if applied == 0 {
		if n.boostMode == "sum" {
			return qs, true
		}
		fs = 1
	}
	switch n.boostMode {
	case "sum":
		return qs + fs, true
	case "replace":
		return fs, true
	case "max":
		return math.Max(qs, fs), true
	default:
		return qs * fs, true
	}
}

// knnNode matches the documents chosen by an exact nearest-neighbour scan.
type knnNode map[int]float64

func (n knnNode) eval(d *memDoc) (float64, bool) {
	s, ok := n[d.pos]
	return s, ok
}

// knn scores documents by l2 distance as 1/(1+d²) and keeps the top K.
func (m *Memory) knn(q KNNQuery) knnNode {
	type cand struct {
		pos   int
		score float64
	}
	var cands []cand
	if q.Field == m.vectorField {
		for _, d := range m.docs {
			if len(d.vector) == 0 || len(d.vector) != len(q.Vector) {
				continue
			}
			var sq float64
			for i, v := range d.vector {
				diff := float64(v - q.Vector[i])
				sq += diff * diff
			}
			cands = append(cands, cand{d.pos, 1 / (1 + sq)})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if q.K > 0 && len(cands) > q.K {
		cands = cands[:q.K]
	}
	out := make(knnNode, len(cands))
	for _, c := range cands {
		out[c.pos] = c.score
	}
	return out
}
