package reconciliation

import (
	"sort"

	"github.com/erp/reconciler/internal/domain/shared/strategy"
	"github.com/google/uuid"
)

// LineCandidates is one node of the bipartite candidate graph
type LineCandidates struct {
	Line       *BankStatementLine
	Candidates []ScoredCandidate
}

// Assignment is a one-to-one pairing of lines and transactions
type Assignment struct {
	// ByLine holds the chosen candidate per line ID
	ByLine map[uuid.UUID]ScoredCandidate
	// ClaimedBy maps a transaction ID to the line ID that claimed it
	ClaimedBy map[uuid.UUID]uuid.UUID
}

// For returns the candidate assigned to lineID
func (a Assignment) For(lineID uuid.UUID) (ScoredCandidate, bool) {
	c, ok := a.ByLine[lineID]
	return c, ok
}

// IsClaimed reports whether a transaction was assigned to any line
func (a Assignment) IsClaimed(txnID uuid.UUID) bool {
	_, ok := a.ClaimedBy[txnID]
	return ok
}

// AssignmentResolver turns a candidate graph into a conflict-free assignment
type AssignmentResolver interface {
	strategy.Strategy
	Resolve(graph []LineCandidates) Assignment
}

// GreedyAssignmentResolver assigns highest confidence first.
// Edges are ordered by confidence desc, combined amount+date delta asc,
// line import order asc, then transaction (date, ID) asc; each edge is taken
// when both of its endpoints are still free. Only auto-eligible edges
// take part.
type GreedyAssignmentResolver struct {
	strategy.BaseStrategy
}

// NewGreedyAssignmentResolver creates the greedy resolver
func NewGreedyAssignmentResolver() *GreedyAssignmentResolver {
	return &GreedyAssignmentResolver{
		BaseStrategy: strategy.NewBaseStrategy(
			"greedy_confidence",
			strategy.StrategyTypeAssignment,
			"Greedy highest-confidence-first one-to-one assignment",
		),
	}
}

type edge struct {
	line      *BankStatementLine
	candidate ScoredCandidate
}

// Resolve runs single-threaded; it mutates the claimed sets as it walks
func (r *GreedyAssignmentResolver) Resolve(graph []LineCandidates) Assignment {
	var edges []edge
	for _, node := range graph {
		for _, c := range node.Candidates {
			if c.AutoEligible() {
				edges = append(edges, edge{line: node.Line, candidate: c})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		return edgeLess(edges[i], edges[j])
	})

	result := Assignment{
		ByLine:    make(map[uuid.UUID]ScoredCandidate),
		ClaimedBy: make(map[uuid.UUID]uuid.UUID),
	}
	for _, e := range edges {
		txnID := e.candidate.Transaction.ID
		if _, taken := result.ByLine[e.line.ID]; taken {
			continue
		}
		if _, taken := result.ClaimedBy[txnID]; taken {
			continue
		}
		result.ByLine[e.line.ID] = e.candidate
		result.ClaimedBy[txnID] = e.line.ID
	}
	return result
}

func edgeLess(a, b edge) bool {
	if a.candidate.Confidence != b.candidate.Confidence {
		return a.candidate.Confidence > b.candidate.Confidence
	}
	if cmp := a.candidate.combinedDelta().Cmp(b.candidate.combinedDelta()); cmp != 0 {
		return cmp < 0
	}
	if a.line.Sequence != b.line.Sequence {
		return a.line.Sequence < b.line.Sequence
	}
	if a.line.ID != b.line.ID {
		return a.line.ID.String() < b.line.ID.String()
	}
	return transactionLess(a.candidate.Transaction, b.candidate.Transaction)
}

// sortScored orders one line's candidates the same way edges are ordered
func sortScored(scored []ScoredCandidate) {
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if cmp := a.combinedDelta().Cmp(b.combinedDelta()); cmp != 0 {
			return cmp < 0
		}
		return transactionLess(a.Transaction, b.Transaction)
	})
}
