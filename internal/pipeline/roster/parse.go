package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joshu-sajeev/brokerjobs/internal/policy"
	"github.com/xuri/excelize/v2"
)

type field int

const (
	fieldUnknown field = iota
	fieldEmployeeID
	fieldFirstName
	fieldLastName
	fieldFullName
	fieldEmail
	fieldDateOfBirth
	fieldHireDate
	fieldDepartment
	fieldJobTitle
	fieldSalary
	fieldCoverageTier
	fieldGender
)

// headerAliases maps normalized column headers to record fields.
var headerAliases = map[string]field{
	"employeeid": fieldEmployeeID, "empid": fieldEmployeeID, "eeid": fieldEmployeeID,
	"employeenumber": fieldEmployeeID, "employeeno": fieldEmployeeID, "id": fieldEmployeeID,
	"ssn": fieldEmployeeID, "ssnlast4": fieldEmployeeID, "last4ssn": fieldEmployeeID,

	"firstname": fieldFirstName, "first": fieldFirstName, "fname": fieldFirstName, "givenname": fieldFirstName,
	"lastname": fieldLastName, "last": fieldLastName, "lname": fieldLastName, "surname": fieldLastName,
	"familyname": fieldLastName,
	"fullname": fieldFullName, "name": fieldFullName, "employeename": fieldFullName, "employee": fieldFullName,

	"email": fieldEmail, "emailaddress": fieldEmail, "workemail": fieldEmail, "email1": fieldEmail,

	"dob": fieldDateOfBirth, "dateofbirth": fieldDateOfBirth, "birthdate": fieldDateOfBirth,
	"birthday": fieldDateOfBirth,
	"hiredate": fieldHireDate, "datehired": fieldHireDate, "dateofhire": fieldHireDate,
	"startdate": fieldHireDate, "doh": fieldHireDate,

	"department": fieldDepartment, "dept": fieldDepartment, "division": fieldDepartment,
	"jobtitle": fieldJobTitle, "title": fieldJobTitle, "position": fieldJobTitle, "role": fieldJobTitle,
	"salary": fieldSalary, "annualsalary": fieldSalary, "annualpay": fieldSalary,
	"compensation": fieldSalary, "pay": fieldSalary,
	"coveragetier": fieldCoverageTier, "tier": fieldCoverageTier, "coverage": fieldCoverageTier,
	"coveragelevel": fieldCoverageTier,
	"gender": fieldGender, "sex": fieldGender,
}

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fileType returns the lowercased extension of filename without the dot.
func fileType(filename string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
}

func parseCSV(b []byte) ([]Record, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, policy.Parse(fmt.Errorf("read csv: %w", err), "The roster file is not a valid CSV file.")
		}
		rows = append(rows, row)
	}
	return parseTable(rows)
}

func parseXLSX(b []byte) ([]Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, policy.Parse(fmt.Errorf("open xlsx: %w", err), "The roster file is not a valid Excel workbook.")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, policy.Parse(errors.New("workbook has no sheets"), "The roster workbook is empty.")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, policy.Parse(fmt.Errorf("read sheet %q: %w", sheets[0], err), "The roster workbook could not be read.")
	}
	return parseTable(rows)
}

// parseTable reads a header row followed by data rows. Leading rows with
// fewer than two filled cells (titles, blank lines) are skipped.
func parseTable(rows [][]string) ([]Record, error) {
	start := -1
	for i, row := range rows {
		if filled(row) >= 2 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, policy.Parse(errors.New("no header row"), "The roster file has no column headers.")
	}

	header := rows[start]
	fields := make([]field, len(header))
	known := false
	for i, h := range header {
		fields[i] = headerAliases[normalizeHeader(h)]
		switch fields[i] {
		case fieldFullName, fieldFirstName, fieldLastName, fieldEmail:
			known = true
		}
	}
	if !known {
		return nil, policy.Parse(
			fmt.Errorf("no name or email column in header %q", header),
			"The roster file needs a name or email column.",
		)
	}

	var records []Record
	for _, row := range rows[start+1:] {
		if filled(row) == 0 {
			continue
		}
		rec := Record{RowIndex: len(records)}
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if i >= len(fields) {
				setRaw(&rec, fmt.Sprintf("column_%d", i+1), cell)
				continue
			}
			if fields[i] == fieldUnknown {
				setRaw(&rec, strings.TrimSpace(header[i]), cell)
				continue
			}
			assign(&rec, fields[i], cell)
		}
		records = append(records, rec)
	}
	return records, nil
}

func filled(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

func setRaw(rec *Record, key, value string) {
	if key == "" {
		return
	}
	if rec.RawData == nil {
		rec.RawData = map[string]string{}
	}
	rec.RawData[key] = value
}

func assign(rec *Record, f field, v string) {
	switch f {
	case fieldEmployeeID:
		rec.EmployeeID = v
	case fieldFirstName:
		rec.FirstName = v
	case fieldLastName:
		rec.LastName = v
	case fieldFullName:
		rec.FullName = v
	case fieldEmail:
		rec.Email = strings.ToLower(v)
	case fieldDateOfBirth:
		rec.DateOfBirth = normalizeDate(v)
	case fieldHireDate:
		rec.HireDate = normalizeDate(v)
	case fieldDepartment:
		rec.Department = v
	case fieldJobTitle:
		rec.JobTitle = v
	case fieldSalary:
		if s, ok := parseSalary(v); ok {
			rec.Salary = s
		} else {
			setRaw(rec, "salary", v)
		}
	case fieldCoverageTier:
		rec.CoverageTier = v
	case fieldGender:
		rec.Gender = normalizeGender(v)
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1/2/06",
	"01/02/06",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-2006",
	"02-Jan-06",
}

// normalizeDate rewrites recognizable dates as YYYY-MM-DD and leaves
// anything else as written.
func normalizeDate(v string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return v
}

func parseSalary(v string) (float64, bool) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
	s, err := strconv.ParseFloat(clean, 64)
	if err != nil || s < 0 {
		return 0, false
	}
	return s, true
}

func normalizeGender(v string) string {
	switch strings.ToLower(v) {
	case "m", "male":
		return "M"
	case "f", "female":
		return "F"
	}
	return v
}
