package conflict

import (
	"fmt"
	"strings"
)

func buildPrompt(spd, handbook *ExtractedDocument, focusAreas []string) string {
	areas := "All benefit areas"
	if len(focusAreas) > 0 {
		areas = strings.Join(focusAreas, ", ")
	}

	var b strings.Builder
	b.WriteString(`You are a benefits compliance expert analyzing two documents for conflicts.

**CRITICAL RULES:**
1. A CONFLICT exists when the Employee Handbook promises MORE than the Summary Plan Description (SPD) covers
2. The SPD is the legal governing document - it defines what's actually covered
3. If the Handbook promises benefits the SPD doesn't cover, that's a CRITICAL conflict
4. Focus on: coverage duration, amounts, eligibility, waiting periods, benefit percentages
5. Categorize severity: CRITICAL (major legal/financial risk), MEDIUM (moderate risk), LOW (minor discrepancy)

`)
	fmt.Fprintf(&b, "**FOCUS AREAS:**\n%s\n\n", areas)
	b.WriteString(`**YOUR TASK:**
1. Read the excerpts from both documents
2. Compare the sections related to the focus areas to identify conflicts
3. Identify areas where they align well

Return your analysis as JSON:

` + "```json" + `
{
  "conflicts": [
    {
      "topic": "Specific benefit topic",
      "severity": "CRITICAL|MEDIUM|LOW",
      "spd_text": "Exact quote from SPD showing what's covered",
      "handbook_text": "Exact quote from handbook showing the promise",
      "issue": "Clear description of the conflict",
      "risk_analysis": "Financial and legal implications if not addressed",
      "recommendations": ["Specific action 1", "Specific action 2"]
    }
  ],
  "alignments": [
    {
      "topic": "Topic where they align",
      "description": "How the SPD and Handbook are consistent"
    }
  ],
  "executive_summary": {
    "total_conflicts": 0,
    "critical": 0,
    "medium": 0,
    "low": 0,
    "overall_risk": "HIGH|MEDIUM|LOW",
    "key_findings": "2-3 sentence summary of most important findings"
  }
}
` + "```" + `

`)
	b.WriteString("**SUMMARY PLAN DESCRIPTION (SPD):**\n")
	writeSections(&b, spd)
	b.WriteString("\n**EMPLOYEE HANDBOOK:**\n")
	writeSections(&b, handbook)
	b.WriteString("\nAnalyze thoroughly and return ONLY the JSON response.")
	return b.String()
}

func writeSections(b *strings.Builder, doc *ExtractedDocument) {
	for _, s := range doc.Sections {
		fmt.Fprintf(b, "[Page %d]", s.Page)
		if s.Heading != "" {
			b.WriteString(" " + s.Heading)
		}
		b.WriteString("\n")
		b.WriteString(s.Text)
		b.WriteString("\n\n")
	}
}
