package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		kind     JobKind
		from, to JobStatus
		want     bool
	}{
		{"conflict claim", KindConflictAnalysis, JobStatusPending, JobStatusClaimed, true},
		{"conflict forward", KindConflictAnalysis, JobStatusExtracting, JobStatusAnalyzing, true},
		{"conflict cannot skip", KindConflictAnalysis, JobStatusExtracting, JobStatusNotifying, false},
		{"conflict cannot go back", KindConflictAnalysis, JobStatusAnalyzing, JobStatusExtracting, false},
		{"conflict has no parsing", KindConflictAnalysis, JobStatusClaimed, JobStatusParsing, false},
		{"roster skips approval", KindRosterImport, JobStatusMatching, JobStatusApplying, true},
		{"roster waits for approval", KindRosterImport, JobStatusMatching, JobStatusAwaitingApproval, true},
		{"roster approval resolves", KindRosterImport, JobStatusAwaitingApproval, JobStatusApplying, true},
		{"stay in place", KindRosterImport, JobStatusParsing, JobStatusParsing, true},
		{"any live status can fail", KindRosterImport, JobStatusAwaitingApproval, JobStatusError, true},
		{"complete is final", KindConflictAnalysis, JobStatusComplete, JobStatusComplete, false},
		{"error is final", KindConflictAnalysis, JobStatusError, JobStatusError, false},
		{"error cannot restart", KindRosterImport, JobStatusError, JobStatusPending, false},
		{"unknown kind", JobKind("email"), JobStatusPending, JobStatusClaimed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.kind, tt.from, tt.to))
		})
	}
}

func TestStatusSets(t *testing.T) {
	assert.NotContains(t, ClaimableStatuses, JobStatusAwaitingApproval)
	assert.NotContains(t, ClaimableStatuses, JobStatusComplete)
	assert.Contains(t, ClaimableStatuses, JobStatusClaimed)
	assert.True(t, IsTerminal(JobStatusError))
	assert.True(t, IsKnownKind(KindRosterImport))
	assert.False(t, IsKnownKind("webhook"))
}
