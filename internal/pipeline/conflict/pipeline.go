// Package conflict compares a Summary Plan Description against an employee
// handbook and mails the resulting report.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/extract"
	"github.com/joshu-sajeev/brokerjobs/internal/llm"
	"github.com/joshu-sajeev/brokerjobs/internal/mailer"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
)

type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, documentURL string) (*extract.Document, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) (string, error)
}

// DeliveryLedger remembers which recipients already got a job's report.
type DeliveryLedger interface {
	Delivered(ctx context.Context, jobID string) (map[string]models.Delivery, error)
	Record(ctx context.Context, d *models.Delivery) error
}

type Deps struct {
	Storage   Presigner
	Extractor Extractor
	LLM       Completer
	Mailer    Mailer
	Ledger    DeliveryLedger

	// SectionBudget caps the characters of both documents sent for analysis.
	SectionBudget int
	SendSpacing   time.Duration
	Sleep         pipeline.Sleeper
	Now           func() time.Time
	Logger        *slog.Logger
}

type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	if deps.Sleep == nil {
		deps.Sleep = pipeline.Sleep
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SectionBudget <= 0 {
		deps.SectionBudget = 60000
	}
	return &Pipeline{deps: deps}
}

var _ pipeline.Pipeline = (*Pipeline)(nil)

func (p *Pipeline) Kind() config.JobKind {
	return config.KindConflictAnalysis
}

func (p *Pipeline) StepFor(status config.JobStatus) (pipeline.Step, bool) {
	switch status {
	case config.JobStatusPending, config.JobStatusClaimed, config.JobStatusExtracting:
		return pipeline.Step{
			Name:     "extractSections",
			Working:  config.JobStatusExtracting,
			Progress: config.ProgressExtractStarted,
			Label:    "Extracting documents",
			Run:      p.extractSections,
		}, true
	case config.JobStatusAnalyzing:
		return pipeline.Step{
			Name:     "analyzeConflicts",
			Working:  config.JobStatusAnalyzing,
			Progress: config.ProgressAnalyzeStarted,
			Label:    "Analyzing conflicts",
			Run:      p.analyzeConflicts,
		}, true
	case config.JobStatusNotifying:
		return pipeline.Step{
			Name:     "renderAndSend",
			Working:  config.JobStatusNotifying,
			Progress: config.ProgressNotifyStarted,
			Label:    "Sending report",
			Run:      p.renderAndSend,
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

// DecodeState reads the step state of a conflict analysis job.
func DecodeState(raw []byte) (State, error) {
	return pipeline.Decode[State](raw, "step state")
}

// extractSections pulls the text of both documents and keeps the sections
// relevant to the focus areas. A document already extracted by an earlier
// attempt is not fetched again.
func (p *Pipeline) extractSections(ctx context.Context, job *models.Job) (pipeline.Outcome, error) {
	payload, state, err := decode(job)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	budget := p.deps.SectionBudget / 2

	if state.SPD == nil {
		doc, err := p.extractDocument(ctx, payload.SPDKey, payload.SPDFilename, payload.FocusAreas, budget)
		if err != nil {
			return pipeline.Outcome{}, fmt.Errorf("extract SPD: %w", err)
		}
		state.SPD = doc
	}

	if state.Handbook == nil {
		doc, err := p.extractDocument(ctx, payload.HandbookKey, payload.HandbookFilename, payload.FocusAreas, budget)
		if err != nil {
			// keep the SPD so the retry only fetches the handbook
			return pipeline.Outcome{State: state}, fmt.Errorf("extract handbook: %w", err)
		}
		state.Handbook = doc
	}

	return pipeline.Outcome{
		State:    state,
		Status:   config.JobStatusAnalyzing,
		Progress: config.ProgressExtracted,
		Label:    "Analyzing conflicts",
	}, nil
}

func (p *Pipeline) extractDocument(ctx context.Context, key, filename string, focusAreas []string, budget int) (*ExtractedDocument, error) {
	url, err := p.deps.Storage.PresignGet(ctx, key, 0)
	if err != nil {
		return nil, err
	}

	doc, err := p.deps.Extractor.Extract(ctx, url)
	if err != nil {
		return nil, err
	}

	sections, truncated := selectSections(splitSections(doc.Text), focusAreas, budget)
	if len(sections) == 0 {
		return nil, policy.Terminal(
			fmt.Errorf("%s: no sections found in %d chars", filename, len(doc.Text)),
			"No text could be read from the document. It may be a scanned PDF that needs OCR, or the file is corrupted.",
		)
	}

	p.deps.Logger.Info("conflict.extract.done",
		"file", filename,
		"pages", doc.Pages,
		"chars", len(doc.Text),
		"sections", len(sections),
		"truncated", truncated,
	)

	return &ExtractedDocument{
		Filename:  filename,
		Pages:     doc.Pages,
		Chars:     len(doc.Text),
		Sections:  sections,
		Truncated: truncated,
	}, nil
}

func (p *Pipeline) analyzeConflicts(ctx context.Context, job *models.Job) (pipeline.Outcome, error) {
	payload, state, err := decode(job)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	done := pipeline.Outcome{
		State:    state,
		Status:   config.JobStatusNotifying,
		Progress: config.ProgressAnalyzed,
		Label:    "Sending report",
	}
	if state.Analysis != nil {
		return done, nil
	}
	if state.SPD == nil || state.Handbook == nil {
		return pipeline.Outcome{}, policy.Terminal(errors.New("documents were not extracted"), "The documents were not read before analysis.")
	}

	reply, err := p.deps.LLM.Complete(ctx, buildPrompt(state.SPD, state.Handbook, payload.FocusAreas))
	if err != nil {
		return pipeline.Outcome{}, err
	}

	var analysis Analysis
	if err := llm.DecodeReply(reply, llm.ConflictAnalysisSchema(), &analysis); err != nil {
		p.deps.Logger.Warn("conflict.analyze.bad_reply", "job_id", job.ID, "error", err, "reply_prefix", cut(reply, 300))
		return pipeline.Outcome{}, err
	}
	summarize(&analysis)

	p.deps.Logger.Info("conflict.analyze.done",
		"job_id", job.ID,
		"conflicts", len(analysis.Conflicts),
		"alignments", len(analysis.Alignments),
		"overall_risk", analysis.ExecutiveSummary.OverallRisk,
	)

	state.Analysis = &analysis
	done.State = state
	return done, nil
}

// renderAndSend mails the report to every recipient not yet in the
// delivery ledger or the step state, one at a time with SendSpacing between
// sends.
func (p *Pipeline) renderAndSend(ctx context.Context, job *models.Job) (pipeline.Outcome, error) {
	payload, state, err := decode(job)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if state.Analysis == nil {
		return pipeline.Outcome{}, policy.Terminal(errors.New("no analysis to report"), "The analysis results are missing.")
	}

	html, err := renderReport(payload, state, p.deps.Now())
	if err != nil {
		return pipeline.Outcome{}, policy.Terminal(err, "The report could not be generated.")
	}

	delivered, err := p.deps.Ledger.Delivered(ctx, job.ID)
	if err != nil {
		return pipeline.Outcome{}, policy.Transient(err, "")
	}

	subject := reportSubject(payload.ClientName)
	sent := 0
	for _, to := range recipients(payload.EmailRecipients) {
		if _, ok := delivered[to]; ok || slices.Contains(state.SentTo, to) {
			state.SentTo = appendOnce(state.SentTo, to)
			continue
		}

		if sent > 0 {
			if err := p.deps.Sleep(ctx, p.deps.SendSpacing); err != nil {
				return pipeline.Outcome{State: state}, err
			}
		}

		id, err := p.deps.Mailer.Send(ctx, mailer.Message{
			To:             to,
			Subject:        subject,
			HTML:           html,
			IdempotencyKey: job.ID + "/" + to,
		})
		if err != nil {
			return pipeline.Outcome{State: state}, fmt.Errorf("send report to %s: %w", to, err)
		}
		sent++
		state.SentTo = appendOnce(state.SentTo, to)

		if err := p.deps.Ledger.Record(ctx, &models.Delivery{
			JobID:             job.ID,
			Recipient:         to,
			ProviderMessageID: id,
			SentAt:            p.deps.Now(),
		}); err != nil {
			// SentTo goes out with the partial state; if that write is lost
			// too, the provider dedupes the repeat on the idempotency key
			return pipeline.Outcome{State: state}, policy.Transient(err, "")
		}
	}

	now := p.deps.Now()
	state.NotifiedAt = &now

	p.deps.Logger.Info("conflict.notify.done", "job_id", job.ID, "sent", sent, "recipients", len(state.SentTo))

	return pipeline.Outcome{
		State:    state,
		Status:   config.JobStatusComplete,
		Progress: config.ProgressComplete,
		Label:    "Complete",
	}, nil
}

func recipients(in []string) []string {
	var out []string
	for _, r := range in {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			out = appendOnce(out, r)
		}
	}
	return out
}

func appendOnce(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
