package conflict

import "time"

// Payload is the request a conflict analysis job is created with.
type Payload struct {
	ClientName       string    `json:"client_name" validate:"required"`
	SPDKey           string    `json:"spd_key" validate:"required"`
	SPDFilename      string    `json:"spd_filename"`
	HandbookKey      string    `json:"handbook_key" validate:"required"`
	HandbookFilename string    `json:"handbook_filename"`
	FocusAreas       []string  `json:"focus_areas"`
	EmailRecipients  []string  `json:"email_recipients" validate:"required,min=1,dive,email"`
	Branding         *Branding `json:"branding,omitempty"`
}

type Branding struct {
	BrokerName     string `json:"broker_name"`
	LogoURL        string `json:"logo_url,omitempty"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
}

var defaultBranding = Branding{
	BrokerName:     "XL Benefits",
	PrimaryColor:   "#0066cc",
	SecondaryColor: "#003d7a",
}

type Section struct {
	Heading string `json:"heading,omitempty"`
	Page    int    `json:"page"`
	Text    string `json:"text"`
}

// ExtractedDocument is the part of one document kept for analysis.
type ExtractedDocument struct {
	Filename  string    `json:"filename"`
	Pages     int       `json:"pages"`
	Chars     int       `json:"chars"`
	Sections  []Section `json:"sections"`
	Truncated bool      `json:"truncated,omitempty"`
}

type Conflict struct {
	Topic           string   `json:"topic"`
	Severity        string   `json:"severity"`
	SPDText         string   `json:"spd_text,omitempty"`
	HandbookText    string   `json:"handbook_text,omitempty"`
	Issue           string   `json:"issue"`
	RiskAnalysis    string   `json:"risk_analysis,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type Alignment struct {
	Topic       string `json:"topic"`
	Description string `json:"description,omitempty"`
}

type ExecutiveSummary struct {
	TotalConflicts int    `json:"total_conflicts"`
	Critical       int    `json:"critical"`
	Medium         int    `json:"medium"`
	Low            int    `json:"low"`
	OverallRisk    string `json:"overall_risk"`
	KeyFindings    string `json:"key_findings,omitempty"`
}

type Analysis struct {
	Conflicts        []Conflict       `json:"conflicts"`
	Alignments       []Alignment      `json:"alignments"`
	ExecutiveSummary ExecutiveSummary `json:"executive_summary"`
}

// State is the step state of a conflict analysis job. Each field is filled
// by one step and read by the ones after it.
type State struct {
	SPD        *ExtractedDocument `json:"spd,omitempty"`
	Handbook   *ExtractedDocument `json:"handbook,omitempty"`
	Analysis   *Analysis          `json:"analysis,omitempty"`
	SentTo     []string           `json:"sent_to,omitempty"`
	NotifiedAt *time.Time         `json:"notified_at,omitempty"`
}
