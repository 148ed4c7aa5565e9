package llm

import (
	"testing"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{
			name: "fenced block wins",
			text: "Here you go:\n```json\n{\"a\": 1}\n```\nand {\"b\": 2}",
			want: `{"a": 1}`,
		},
		{
			name: "bare object with prose around it",
			text: `Sure. {"a": {"b": 2}} Let me know.`,
			want: `{"a": {"b": 2}}`,
		},
		{
			name:    "no object",
			text:    "I could not find any conflicts.",
			wantErr: true,
		},
		{
			name:    "closing brace before opening",
			text:    "} nothing {",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeReply_ConflictAnalysis(t *testing.T) {
	type summary struct {
		TotalConflicts int    `json:"total_conflicts"`
		OverallRisk    string `json:"overall_risk"`
	}
	type analysis struct {
		Conflicts []struct {
			Topic    string `json:"topic"`
			Severity string `json:"severity"`
		} `json:"conflicts"`
		ExecutiveSummary summary `json:"executive_summary"`
	}

	valid := "```json\n" + `{
		"conflicts": [{"topic": "FMLA", "severity": "CRITICAL", "issue": "handbook says 6 weeks"}],
		"alignments": [{"topic": "COBRA"}],
		"executive_summary": {"total_conflicts": 1, "critical": 1, "overall_risk": "HIGH"}
	}` + "\n```"

	var got analysis
	require.NoError(t, DecodeReply(valid, ConflictAnalysisSchema(), &got))
	require.Len(t, got.Conflicts, 1)
	assert.Equal(t, "CRITICAL", got.Conflicts[0].Severity)
	assert.Equal(t, "HIGH", got.ExecutiveSummary.OverallRisk)

	badSeverity := `{"conflicts":[{"topic":"FMLA","severity":"SEVERE","issue":"x"}],"alignments":[],"executive_summary":{"total_conflicts":1,"overall_risk":"HIGH"}}`
	err := DecodeReply(badSeverity, ConflictAnalysisSchema(), &got)
	kind, _ := policy.Classify(err)
	assert.Equal(t, config.ErrorKindParse, kind)

	err = DecodeReply("no json here", ConflictAnalysisSchema(), &got)
	kind, _ = policy.Classify(err)
	assert.Equal(t, config.ErrorKindParse, kind)
}
