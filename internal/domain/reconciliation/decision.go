package reconciliation

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Decision is the per-line classification made by the engine
type Decision string

const (
	DecisionAutoMatched Decision = "AUTO_MATCHED"
	DecisionNeedsReview Decision = "NEEDS_REVIEW"
	DecisionUnmatched   Decision = "UNMATCHED"
)

// String returns the string representation
func (d Decision) String() string {
	return string(d)
}

// LineOutcome is the engine's verdict for one statement line
type LineOutcome struct {
	Line     *BankStatementLine
	Decision Decision
	// Match is the assigned pair; set only for DecisionAutoMatched
	Match *ScoredCandidate
	// Suggestions are ranked free candidates for reviewers
	Suggestions    []MatchSuggestion
	CandidateCount int
}

// DefaultParallelThreshold is the line count above which scoring fans out
const DefaultParallelThreshold = 64

// MatchDecisionEngine runs candidate generation, scoring and assignment for
// a set of lines and classifies each line
type MatchDecisionEngine struct {
	generator         *CandidateGenerator
	scorer            *ScoringModel
	resolver          AssignmentResolver
	parallelThreshold int
	maxParallelism    int
}

// EngineOption configures a MatchDecisionEngine
type EngineOption func(*MatchDecisionEngine)

// WithAssignmentResolver replaces the greedy resolver
func WithAssignmentResolver(r AssignmentResolver) EngineOption {
	return func(e *MatchDecisionEngine) {
		if r != nil {
			e.resolver = r
		}
	}
}

// WithParallelism sets the fan-out threshold and the worker bound
func WithParallelism(threshold, maxWorkers int) EngineOption {
	return func(e *MatchDecisionEngine) {
		if threshold > 0 {
			e.parallelThreshold = threshold
		}
		if maxWorkers > 0 {
			e.maxParallelism = maxWorkers
		}
	}
}

// NewMatchDecisionEngine creates an engine with the weighted scorer and greedy resolver
func NewMatchDecisionEngine(opts ...EngineOption) *MatchDecisionEngine {
	e := &MatchDecisionEngine{
		generator:         NewCandidateGenerator(),
		scorer:            NewScoringModel(),
		resolver:          NewGreedyAssignmentResolver(),
		parallelThreshold: DefaultParallelThreshold,
		maxParallelism:    runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolver returns the configured assignment resolver
func (e *MatchDecisionEngine) Resolver() AssignmentResolver {
	return e.resolver
}

// Scorer returns the scoring model
func (e *MatchDecisionEngine) Scorer() *ScoringModel {
	return e.scorer
}

// BuildGraph generates and scores candidates for every line.
// Lines are independent, so above the threshold the work is spread over
// a bounded worker group; each worker writes only its own slot.
func (e *MatchDecisionEngine) BuildGraph(lines []*BankStatementLine, pool *TransactionPool, settings ReconciliationSettings) ([]LineCandidates, error) {
	graph := make([]LineCandidates, len(lines))
	build := func(i int) {
		line := lines[i]
		graph[i] = LineCandidates{
			Line:       line,
			Candidates: e.scorer.ScoreAll(line, e.generator.Generate(line, pool, settings), settings),
		}
	}

	if len(lines) <= e.parallelThreshold || e.maxParallelism <= 1 {
		for i := range lines {
			build(i)
		}
		return graph, nil
	}

	var g errgroup.Group
	g.SetLimit(e.maxParallelism)
	for i := range lines {
		g.Go(func() error {
			build(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return graph, nil
}

// Decide classifies lines against the pool.
//
// With automatic matching on, a line whose assigned edge clears the
// threshold is Auto-Matched; a line left with free candidates is
// Needs-Review; anything else is Unmatched. RequireManualApproval turns
// every line with candidates into Needs-Review, the proposed pair ranked
// first. With automatic matching off no assignment happens and lines stay
// Unmatched with suggestions attached.
func (e *MatchDecisionEngine) Decide(lines []*BankStatementLine, pool *TransactionPool, settings ReconciliationSettings) ([]LineOutcome, error) {
	graph, err := e.BuildGraph(lines, pool, settings)
	if err != nil {
		return nil, err
	}
	limit := settings.suggestionLimit()

	if !settings.UseAutomaticMatching {
		outcomes := make([]LineOutcome, len(graph))
		for i, node := range graph {
			outcomes[i] = LineOutcome{
				Line:           node.Line,
				Decision:       DecisionUnmatched,
				Suggestions:    topSuggestions(node.Line.ID, node.Candidates, limit),
				CandidateCount: len(node.Candidates),
			}
		}
		return outcomes, nil
	}

	assignment := e.resolver.Resolve(graph)

	outcomes := make([]LineOutcome, len(graph))
	for i, node := range graph {
		out := LineOutcome{Line: node.Line, CandidateCount: len(node.Candidates)}
		assigned, ok := assignment.For(node.Line.ID)

		switch {
		case settings.RequireManualApproval:
			ordered := node.Candidates
			if ok {
				ordered = promote(node.Candidates, assigned)
			}
			out.Suggestions = topSuggestions(node.Line.ID, ordered, limit)
		case ok && assigned.Confidence >= settings.MinimumConfidenceScore:
			picked := assigned
			out.Decision = DecisionAutoMatched
			out.Match = &picked
		default:
			out.Suggestions = topSuggestions(node.Line.ID, freeCandidates(node.Candidates, assignment), limit)
		}

		if out.Decision == "" {
			if len(out.Suggestions) > 0 {
				out.Decision = DecisionNeedsReview
			} else {
				out.Decision = DecisionUnmatched
			}
		}
		outcomes[i] = out
	}
	return outcomes, nil
}

// Suggest returns the top-N candidates for one line; it changes nothing
func (e *MatchDecisionEngine) Suggest(line *BankStatementLine, pool *TransactionPool, settings ReconciliationSettings) []MatchSuggestion {
	scored := e.scorer.ScoreAll(line, e.generator.Generate(line, pool, settings), settings)
	return topSuggestions(line.ID, scored, settings.suggestionLimit())
}

func freeCandidates(candidates []ScoredCandidate, a Assignment) []ScoredCandidate {
	free := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !a.IsClaimed(c.Transaction.ID) {
			free = append(free, c)
		}
	}
	return free
}

// promote moves first to the front, keeping the rest in order
func promote(candidates []ScoredCandidate, first ScoredCandidate) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(candidates))
	out = append(out, first)
	for _, c := range candidates {
		if c.Transaction.ID != first.Transaction.ID {
			out = append(out, c)
		}
	}
	return out
}
