// Package roster imports employee census files into a team's roster.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/extract"
	"github.com/joshu-sajeev/brokerjobs/internal/llm"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
	"gorm.io/datatypes"
)

type FileStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, documentURL string) (*extract.Document, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// MatchStore holds the fuzzy matches waiting for review.
type MatchStore interface {
	ReplaceForJob(ctx context.Context, jobID string, matches []models.PendingMatch) error
	ListByJob(ctx context.Context, jobID string) ([]models.PendingMatch, error)
}

type MemberStore interface {
	ListActive(ctx context.Context, teamID string) ([]models.RosterMember, error)
	InsertImported(ctx context.Context, m *models.RosterMember) (bool, error)
	Update(ctx context.Context, id uint, fields map[string]any) error
}

type Deps struct {
	Files     FileStore
	Extractor Extractor
	LLM       Completer
	Matches   MatchStore
	Members   MemberStore
	Logger    *slog.Logger
}

type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{deps: deps}
}

var _ pipeline.Pipeline = (*Pipeline)(nil)

func (p *Pipeline) Kind() config.JobKind {
	return config.KindRosterImport
}

func (p *Pipeline) StepFor(status config.JobStatus) (pipeline.Step, bool) {
	switch status {
	case config.JobStatusPending, config.JobStatusClaimed, config.JobStatusParsing:
		return pipeline.Step{
			Name:     "parseFile",
			Working:  config.JobStatusParsing,
			Progress: config.ProgressParseStarted,
			Label:    "Reading roster file",
			Run:      p.parseFile,
		}, true
	case config.JobStatusMatching:
		return pipeline.Step{
			Name:     "matchRecords",
			Working:  config.JobStatusMatching,
			Progress: config.ProgressParsed,
			Label:    "Finding matches with existing members",
			Run:      p.matchRecords,
		}, true
	case config.JobStatusApplying:
		return pipeline.Step{
			Name:     "applyImport",
			Working:  config.JobStatusApplying,
			Progress: config.ProgressApplyStarted,
			Label:    "Importing records",
			Run:      p.applyImport,
		}, true
	}
	return pipeline.Step{}, false
}

func decode(job *models.Job) (Payload, State, error) {
	payload, err := pipeline.DecodePayload[Payload](job.Payload)
	if err != nil {
		return Payload{}, State{}, err
	}
	state, err := pipeline.Decode[State](job.StepState, "step state")
	if err != nil {
		return Payload{}, State{}, err
	}
	return payload, state, nil
}

// DecodeState reads the step state of a roster import job.
func DecodeState(raw []byte) (State, error) {
	return pipeline.Decode[State](raw, "step state")
}

func (p *Pipeline) parseFile(ctx context.Context, job *models.Job) (pipeline.Outcome, error) {
	payload, state, err := decode(job)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	var records []Record
	switch kind := fileType(payload.Filename); kind {
	case "csv":
		records, err = p.readTable(ctx, payload.FileKey, parseCSV)
	case "xlsx", "xlsm":
		records, err = p.readTable(ctx, payload.FileKey, parseXLSX)
	case "pdf":
		records, err = p.structurePDF(ctx, payload.FileKey)
	default:
		err = policy.Terminal(fmt.Errorf("unsupported roster file type %q", kind), "Roster files must be CSV, Excel (.xlsx) or PDF.")
	}
	if err != nil {
		return pipeline.Outcome{}, err
	}

	valid, invalid := validateRecords(records)
	if len(valid) == 0 {
		return pipeline.Outcome{}, policy.Parse(
			fmt.Errorf("%d rows read, none usable", len(records)),
			"No employee records could be read from the roster file.",
		)
	}

	p.deps.Logger.Info("roster.parse.done", "job_id", job.ID, "file", payload.Filename, "records", len(valid), "invalid", len(invalid))

	state.Records = valid
	state.Invalid = invalid
	return pipeline.Outcome{
		State:    state,
		Status:   config.JobStatusMatching,
		Progress: config.ProgressParsed,
		Label:    "Finding matches with existing members",
	}, nil
}

func (p *Pipeline) readTable(ctx context.Context, key string, parse func([]byte) ([]Record, error)) ([]Record, error) {
	b, err := p.deps.Files.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return parse(b)
}

func (p *Pipeline) structurePDF(ctx context.Context, key string) ([]Record, error) {
	url, err := p.deps.Files.PresignGet(ctx, key, 0)
	if err != nil {
		return nil, err
	}
	doc, err := p.deps.Extractor.Extract(ctx, url)
	if err != nil {
		return nil, err
	}

	reply, err := p.deps.LLM.Complete(ctx, structurePrompt(doc.Text))
	if err != nil {
		return nil, err
	}

	var out structuredReply
	if err := llm.DecodeReply(reply, llm.RosterRecordsSchema(), &out); err != nil {
		return nil, err
	}
	return out.toRecords(), nil
}

func (p *Pipeline) matchRecords(ctx context.Context, job *models.Job) (pipeline.Outcome, error) {
	payload, state, err := decode(job)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if len(state.Records) == 0 {
		return pipeline.Outcome{}, policy.Terminal(errors.New("no parsed records"), "The roster was not read before matching.")
	}

	members, err := p.deps.Members.ListActive(ctx, payload.TeamID)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	summary, pending, err := matchRecords(state.Records, members)
	if err != nil {
		return pipeline.Outcome{}, policy.Terminal(err, "")
	}

	if err := p.deps.Matches.ReplaceForJob(ctx, job.ID, pending); err != nil {
		return pipeline.Outcome{}, err
	}

	p.deps.Logger.Info("roster.match.done",
		"job_id", job.ID,
		"members", len(members),
		"exact", len(summary.Exact),
		"fuzzy", summary.Fuzzy,
		"new", len(summary.New),
	)

	state.Match = &summary
	out := pipeline.Outcome{
		State:    state,
		Status:   config.JobStatusApplying,
		Progress: config.ProgressMatched,
		Label:    "Importing records",
	}
	if summary.Fuzzy > 0 {
		out.Status = config.JobStatusAwaitingApproval
		out.Label = "Awaiting your review"
	}
	return out, nil
}

// applyImport writes the decisions to the roster. Counts are derived from
// the decisions rather than from what the writes changed, so running the
// step again reports the same result.
func (p *Pipeline) applyImport(ctx context.Context, job *models.Job) (pipeline.Outcome, error) {
	payload, state, err := decode(job)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if state.Match == nil {
		return pipeline.Outcome{}, policy.Terminal(errors.New("no match summary"), "The roster was not matched before import.")
	}

	byRow := make(map[int]Record, len(state.Records))
	for _, r := range state.Records {
		byRow[r.RowIndex] = r
	}

	matches, err := p.deps.Matches.ListByJob(ctx, job.ID)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	result := ImportResult{Skipped: len(state.Invalid)}

	for _, ex := range state.Match.Exact {
		if err := p.deps.Members.Update(ctx, ex.MemberID, updateFields(byRow[ex.RowIndex])); err != nil {
			return pipeline.Outcome{}, err
		}
		result.Updated++
	}

	for _, row := range state.Match.New {
		if err := p.insert(ctx, job.ID, payload.TeamID, byRow[row]); err != nil {
			return pipeline.Outcome{}, err
		}
		result.Imported++
	}

	for _, m := range matches {
		rec, ok := byRow[m.RowIndex]
		if !ok {
			result.Skipped++
			continue
		}
		switch m.Status {
		case config.MatchStatusApproved:
			if err := p.deps.Members.Update(ctx, m.ExistingMemberID, updateFields(rec)); err != nil {
				return pipeline.Outcome{}, err
			}
			result.Updated++
		case config.MatchStatusRejected:
			if err := p.insert(ctx, job.ID, payload.TeamID, rec); err != nil {
				return pipeline.Outcome{}, err
			}
			result.Imported++
		default:
			result.Skipped++
		}
	}

	p.deps.Logger.Info("roster.apply.done",
		"job_id", job.ID,
		"imported", result.Imported,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)

	state.Import = &result
	return pipeline.Outcome{
		State:    state,
		Status:   config.JobStatusComplete,
		Progress: config.ProgressComplete,
		Label:    "Complete",
	}, nil
}

func (p *Pipeline) insert(ctx context.Context, jobID, teamID string, rec Record) error {
	m := toMember(rec)
	m.TeamID = teamID
	m.SourceJobID = &jobID
	m.SourceRow = &rec.RowIndex
	m.IsActive = true

	inserted, err := p.deps.Members.InsertImported(ctx, m)
	if err != nil {
		return err
	}
	if !inserted {
		p.deps.Logger.Debug("roster.apply.already_imported", "job_id", jobID, "row", rec.RowIndex)
	}
	return nil
}

func toMember(rec Record) *models.RosterMember {
	m := &models.RosterMember{
		EmployeeID:   rec.EmployeeID,
		FirstName:    rec.FirstName,
		LastName:     rec.LastName,
		FullName:     rec.Name(),
		Email:        rec.Email,
		DateOfBirth:  rec.DateOfBirth,
		HireDate:     rec.HireDate,
		Department:   rec.Department,
		JobTitle:     rec.JobTitle,
		Salary:       rec.Salary,
		CoverageTier: rec.CoverageTier,
		Gender:       rec.Gender,
	}
	if len(rec.RawData) > 0 {
		if raw, err := json.Marshal(rec.RawData); err == nil {
			m.RawData = datatypes.JSON(raw)
		}
	}
	return m
}

// updateFields lists the record's non-empty values. Blank cells never erase
// what the roster already knows.
func updateFields(rec Record) map[string]any {
	fields := map[string]any{}
	put := func(col, v string) {
		if v != "" {
			fields[col] = v
		}
	}
	put("employee_id", rec.EmployeeID)
	put("first_name", rec.FirstName)
	put("last_name", rec.LastName)
	put("full_name", rec.FullName)
	put("email", rec.Email)
	put("date_of_birth", rec.DateOfBirth)
	put("hire_date", rec.HireDate)
	put("department", rec.Department)
	put("job_title", rec.JobTitle)
	put("coverage_tier", rec.CoverageTier)
	put("gender", rec.Gender)
	if rec.Salary > 0 {
		fields["salary"] = rec.Salary
	}
	return fields
}
