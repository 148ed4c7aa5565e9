package config

import "slices"

type JobKind string

type JobStatus string

type ErrorKind string

const (
	KindConflictAnalysis JobKind = "document-conflict-analysis"
	KindRosterImport     JobKind = "roster-import"
)

const (
	JobStatusPending          JobStatus = "pending"
	JobStatusClaimed          JobStatus = "claimed"
	JobStatusExtracting       JobStatus = "extracting"
	JobStatusAnalyzing        JobStatus = "analyzing"
	JobStatusNotifying        JobStatus = "notifying"
	JobStatusParsing          JobStatus = "parsing"
	JobStatusMatching         JobStatus = "matching"
	JobStatusAwaitingApproval JobStatus = "awaiting_approval"
	JobStatusApplying         JobStatus = "applying"
	JobStatusComplete         JobStatus = "complete"
	JobStatusError            JobStatus = "error"
)

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindParse     ErrorKind = "parse"
	ErrorKindTerminal  ErrorKind = "terminal"
)

const (
	MatchStatusPending  = "pending"
	MatchStatusApproved = "approved"
	MatchStatusRejected = "rejected"
)

var (
	AllowedJobKinds = []JobKind{KindConflictAnalysis, KindRosterImport}

	// ClaimableStatuses are the statuses a tick may pick up. awaiting_approval
	// is left out: only a match decision moves a job out of it.
	ClaimableStatuses = []JobStatus{
		JobStatusPending,
		JobStatusClaimed,
		JobStatusExtracting,
		JobStatusAnalyzing,
		JobStatusNotifying,
		JobStatusParsing,
		JobStatusMatching,
		JobStatusApplying,
	}

	TerminalStatuses = []JobStatus{JobStatusComplete, JobStatusError}
)

// transitions lists, per kind, every forward edge of the pipeline. Edges into
// error are implicit from any non-terminal status.
var transitions = map[JobKind]map[JobStatus][]JobStatus{
	KindConflictAnalysis: {
		JobStatusPending:    {JobStatusClaimed},
		JobStatusClaimed:    {JobStatusExtracting},
		JobStatusExtracting: {JobStatusAnalyzing},
		JobStatusAnalyzing:  {JobStatusNotifying},
		JobStatusNotifying:  {JobStatusComplete},
	},
	KindRosterImport: {
		JobStatusPending:          {JobStatusClaimed},
		JobStatusClaimed:          {JobStatusParsing},
		JobStatusParsing:          {JobStatusMatching},
		JobStatusMatching:         {JobStatusAwaitingApproval, JobStatusApplying},
		JobStatusAwaitingApproval: {JobStatusApplying},
		JobStatusApplying:         {JobStatusComplete},
	},
}

// CanTransition reports whether a job of the given kind may move from one
// status to another. Staying in place is always allowed.
func CanTransition(kind JobKind, from, to JobStatus) bool {
	if from == to {
		return !IsTerminal(from)
	}
	if to == JobStatusError {
		return !IsTerminal(from)
	}
	edges, ok := transitions[kind]
	if !ok {
		return false
	}
	return slices.Contains(edges[from], to)
}

func IsTerminal(s JobStatus) bool {
	return slices.Contains(TerminalStatuses, s)
}

func IsKnownKind(k JobKind) bool {
	return slices.Contains(AllowedJobKinds, k)
}

// Progress checkpoints written when a step starts or finishes.
const (
	ProgressExtractStarted = 5
	ProgressExtracted      = 40
	ProgressAnalyzeStarted = 50
	ProgressAnalyzed       = 80
	ProgressNotifyStarted  = 90
	ProgressParseStarted   = 5
	ProgressParsed         = 30
	ProgressMatched        = 60
	ProgressApplyStarted   = 70
	ProgressComplete       = 100
)
