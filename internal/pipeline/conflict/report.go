package conflict

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed report.html.tmpl
var reportSource string

var reportTemplate = template.Must(template.New("report").Parse(reportSource))

var severityOrder = []string{"CRITICAL", "MEDIUM", "LOW"}

var severityColors = map[string]string{
	"CRITICAL": "#dc2626",
	"MEDIUM":   "#d97706",
	"LOW":      "#2563eb",
}

type severityGroup struct {
	Severity  string
	Color     string
	Conflicts []Conflict
}

type reportData struct {
	ClientName       string
	Branding         Branding
	GeneratedAt      time.Time
	Summary          ExecutiveSummary
	Groups           []severityGroup
	Alignments       []Alignment
	SPDFilename      string
	SPDPages         int
	HandbookFilename string
	HandbookPages    int
}

func (reportData) SeverityColor(s string) string {
	if c, ok := severityColors[s]; ok {
		return c
	}
	return "#6b7280"
}

func reportSubject(clientName string) string {
	if clientName == "" {
		clientName = "Client"
	}
	return "Benefits Alignment Report: " + clientName
}

func renderReport(p Payload, st State, generatedAt time.Time) (string, error) {
	branding := defaultBranding
	if p.Branding != nil {
		if p.Branding.BrokerName != "" {
			branding.BrokerName = p.Branding.BrokerName
		}
		if p.Branding.PrimaryColor != "" {
			branding.PrimaryColor = p.Branding.PrimaryColor
		}
		if p.Branding.SecondaryColor != "" {
			branding.SecondaryColor = p.Branding.SecondaryColor
		}
		branding.LogoURL = p.Branding.LogoURL
	}

	data := reportData{
		ClientName:       p.ClientName,
		Branding:         branding,
		GeneratedAt:      generatedAt,
		Summary:          st.Analysis.ExecutiveSummary,
		Alignments:       st.Analysis.Alignments,
		SPDFilename:      p.SPDFilename,
		HandbookFilename: p.HandbookFilename,
	}
	if st.SPD != nil {
		data.SPDPages = st.SPD.Pages
	}
	if st.Handbook != nil {
		data.HandbookPages = st.Handbook.Pages
	}
	for _, sev := range severityOrder {
		g := severityGroup{Severity: sev, Color: severityColors[sev]}
		for _, c := range st.Analysis.Conflicts {
			if strings.EqualFold(c.Severity, sev) {
				g.Conflicts = append(g.Conflicts, c)
			}
		}
		data.Groups = append(data.Groups, g)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// summarize recounts the severities so the summary always agrees with the
// conflict list it heads.
func summarize(a *Analysis) {
	s := &a.ExecutiveSummary
	s.TotalConflicts = len(a.Conflicts)
	s.Critical, s.Medium, s.Low = 0, 0, 0
	for i := range a.Conflicts {
		c := &a.Conflicts[i]
		c.Severity = strings.ToUpper(c.Severity)
		switch c.Severity {
		case "CRITICAL":
			s.Critical++
		case "MEDIUM":
			s.Medium++
		case "LOW":
			s.Low++
		}
	}
}
