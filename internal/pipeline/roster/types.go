package roster

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Payload is the request a roster import job is created with.
type Payload struct {
	TeamID     string `json:"team_id" validate:"required"`
	FileKey    string `json:"file_key" validate:"required"`
	Filename   string `json:"filename" validate:"required"`
	UploadedBy string `json:"uploaded_by,omitempty"`
}

// Record is one employee row read from a census file.
type Record struct {
	RowIndex     int               `json:"row_index"`
	EmployeeID   string            `json:"employee_id,omitempty" validate:"max=64"`
	FirstName    string            `json:"first_name,omitempty" validate:"max=128"`
	LastName     string            `json:"last_name,omitempty" validate:"max=128"`
	FullName     string            `json:"full_name,omitempty" validate:"max=255"`
	Email        string            `json:"email,omitempty" validate:"omitempty,email,max=255"`
	DateOfBirth  string            `json:"date_of_birth,omitempty"`
	HireDate     string            `json:"hire_date,omitempty"`
	Department   string            `json:"department,omitempty" validate:"max=128"`
	JobTitle     string            `json:"job_title,omitempty" validate:"max=128"`
	Salary       float64           `json:"salary,omitempty" validate:"gte=0"`
	CoverageTier string            `json:"coverage_tier,omitempty" validate:"max=64"`
	Gender       string            `json:"gender,omitempty" validate:"max=16"`
	RawData      map[string]string `json:"raw_data,omitempty"`
}

// Name is the record's full name, built from its parts when the file has
// no single name column.
func (r Record) Name() string {
	if n := strings.TrimSpace(r.FullName); n != "" {
		return n
	}
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}

type InvalidRow struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
}

type ExactMatch struct {
	RowIndex int    `json:"row_index"`
	MemberID uint   `json:"member_id"`
	Reason   string `json:"reason"`
}

type MatchSummary struct {
	Exact []ExactMatch `json:"exact"`
	Fuzzy int          `json:"fuzzy"`
	New   []int        `json:"new"`
}

type ImportResult struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// State is the step state of a roster import job.
type State struct {
	Records []Record      `json:"records,omitempty"`
	Invalid []InvalidRow  `json:"invalid,omitempty"`
	Match   *MatchSummary `json:"match,omitempty"`
	Import  *ImportResult `json:"import,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(Record)
		if r.Name() == "" && strings.TrimSpace(r.Email) == "" {
			sl.ReportError(r.FullName, "FullName", "full_name", "name_or_email", "")
		}
	}, Record{})
	return v
}

// validateRecords splits records into the usable ones and the rows that
// were rejected, with a short reason each.
func validateRecords(records []Record) ([]Record, []InvalidRow) {
	var valid []Record
	var invalid []InvalidRow
	for _, r := range records {
		if err := validate.Struct(r); err != nil {
			invalid = append(invalid, InvalidRow{RowIndex: r.RowIndex, Reason: describe(err)})
			continue
		}
		valid = append(valid, r)
	}
	return valid, invalid
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	var parts []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "name_or_email":
			parts = append(parts, "row has no name or email")
		case "email":
			parts = append(parts, "email is not valid")
		case "max":
			parts = append(parts, strings.ToLower(fe.Field())+" is too long")
		default:
			parts = append(parts, strings.ToLower(fe.Field())+" is not valid")
		}
	}
	return strings.Join(parts, "; ")
}
