package roster

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
)

const (
	// ExactNameThreshold is the name similarity treated as the same person.
	ExactNameThreshold = 0.95
	// FuzzyNameThreshold is the lowest similarity offered for review.
	FuzzyNameThreshold = 0.70
)

func memberName(m models.RosterMember) string {
	if n := strings.TrimSpace(m.FullName); n != "" {
		return n
	}
	return strings.TrimSpace(strings.TrimSpace(m.FirstName) + " " + strings.TrimSpace(m.LastName))
}

// similarity is 1 minus the edit distance over the longer name, compared
// case-insensitively.
func similarity(a, b string) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 1
	}
	return levenshtein.Similarity(a, b, nil)
}

// matchRecords sorts records into exact matches, fuzzy candidates for review
// and new members.
func matchRecords(records []Record, members []models.RosterMember) (MatchSummary, []models.PendingMatch, error) {
	summary := MatchSummary{Exact: []ExactMatch{}, New: []int{}}
	var pending []models.PendingMatch

	for _, rec := range records {
		if m, reason, ok := exactMatch(rec, members); ok {
			summary.Exact = append(summary.Exact, ExactMatch{RowIndex: rec.RowIndex, MemberID: m.ID, Reason: reason})
			continue
		}

		name := rec.Name()
		if name == "" {
			summary.New = append(summary.New, rec.RowIndex)
			continue
		}

		var best *models.RosterMember
		bestScore := 0.0
		for i := range members {
			score := similarity(name, memberName(members[i]))
			if score > bestScore {
				best, bestScore = &members[i], score
			}
		}

		switch {
		case best != nil && bestScore >= ExactNameThreshold:
			summary.Exact = append(summary.Exact, ExactMatch{RowIndex: rec.RowIndex, MemberID: best.ID, Reason: "name"})
		case best != nil && bestScore >= FuzzyNameThreshold:
			raw, err := json.Marshal(rec)
			if err != nil {
				return MatchSummary{}, nil, fmt.Errorf("encode record %d: %w", rec.RowIndex, err)
			}
			pending = append(pending, models.PendingMatch{
				RowIndex:         rec.RowIndex,
				ParsedRecord:     raw,
				ParsedName:       name,
				ExistingMemberID: best.ID,
				ExistingName:     memberName(*best),
				MatchScore:       math.Round(bestScore*1000) / 1000,
				MatchReason:      matchReason(rec, *best, bestScore),
				Status:           config.MatchStatusPending,
			})
		default:
			summary.New = append(summary.New, rec.RowIndex)
		}
	}

	summary.Fuzzy = len(pending)
	return summary, pending, nil
}

func exactMatch(rec Record, members []models.RosterMember) (models.RosterMember, string, bool) {
	email := strings.ToLower(strings.TrimSpace(rec.Email))
	empID := strings.TrimSpace(rec.EmployeeID)

	for _, m := range members {
		if email != "" && strings.EqualFold(strings.TrimSpace(m.Email), email) {
			return m, "email", true
		}
		if empID != "" && strings.TrimSpace(m.EmployeeID) == empID {
			return m, "employee_id", true
		}
	}
	return models.RosterMember{}, "", false
}

func matchReason(rec Record, m models.RosterMember, score float64) string {
	var reasons []string
	if rec.Name() != memberName(m) {
		reasons = append(reasons, fmt.Sprintf("Name similar: %q vs %q", rec.Name(), memberName(m)))
	}
	if rec.Department != "" && m.Department != "" && !strings.EqualFold(rec.Department, m.Department) {
		reasons = append(reasons, "Different departments")
	}
	if len(reasons) == 0 {
		return fmt.Sprintf("%d%% name similarity", int(math.Round(score*100)))
	}
	return strings.Join(reasons, "; ")
}
