package roster

import (
	"fmt"
	"strings"
)

const structureTextLimit = 50000

func structurePrompt(text string) string {
	return fmt.Sprintf(`You are a data extraction specialist. Parse the following employee roster/census data and extract structured employee records.

For each employee found, extract these fields (use null if not found):
- employee_id: Employee ID or SSN (last 4 only)
- first_name: First name
- last_name: Last name
- full_name: Full name if provided as single field
- email: Email address
- date_of_birth: Date of birth (YYYY-MM-DD format)
- hire_date: Hire date (YYYY-MM-DD format)
- department: Department name
- job_title: Job title/position
- salary: Annual salary (number only)
- coverage_tier: Benefits coverage tier (Employee Only, EE+Spouse, EE+Children, Family)
- gender: Gender (M/F)

Return a JSON object of the form {"records": [ ... ]} with one object per employee.

Roster text:
%s

Return ONLY the JSON object, no other text.`, truncateText(text, structureTextLimit))
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

// structuredRecord is the loose shape the model answers with: every field
// may be null, and salary may come back as a number or a string.
type structuredRecord struct {
	EmployeeID   *string `json:"employee_id"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	FullName     *string `json:"full_name"`
	Email        *string `json:"email"`
	DateOfBirth  *string `json:"date_of_birth"`
	HireDate     *string `json:"hire_date"`
	Department   *string `json:"department"`
	JobTitle     *string `json:"job_title"`
	Salary       any     `json:"salary"`
	CoverageTier *string `json:"coverage_tier"`
	Gender       *string `json:"gender"`
}

type structuredReply struct {
	Records []structuredRecord `json:"records"`
}

func (s structuredReply) toRecords() []Record {
	out := make([]Record, 0, len(s.Records))
	for i, sr := range s.Records {
		rec := Record{RowIndex: i}
		set := func(f field, v *string) {
			if v != nil && strings.TrimSpace(*v) != "" {
				assign(&rec, f, strings.TrimSpace(*v))
			}
		}
		set(fieldEmployeeID, sr.EmployeeID)
		set(fieldFirstName, sr.FirstName)
		set(fieldLastName, sr.LastName)
		set(fieldFullName, sr.FullName)
		set(fieldEmail, sr.Email)
		set(fieldDateOfBirth, sr.DateOfBirth)
		set(fieldHireDate, sr.HireDate)
		set(fieldDepartment, sr.Department)
		set(fieldJobTitle, sr.JobTitle)
		set(fieldCoverageTier, sr.CoverageTier)
		set(fieldGender, sr.Gender)

		switch v := sr.Salary.(type) {
		case float64:
			if v >= 0 {
				rec.Salary = v
			}
		case string:
			assign(&rec, fieldSalary, v)
		}
		out = append(out, rec)
	}
	return out
}
