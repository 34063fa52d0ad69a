package portal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	userInfoSelector        = "div.user-info .user-name"
	creditSummarySelector   = "table.credit-summary"
	semesterSelector        = "div.semester"
	semesterTitleSelector   = ".semester-title"
	semesterSummarySelector = "table.semester-summary"
	courseRowSelector       = "table.grades tbody tr"

	// GPAKey is the semester summary label for the grade point average.
	GPAKey = "평점평균"
	// GradeLevelKey is the semester summary label for the student's year of study.
	GradeLevelKey = "학년"

	courseRowCells = 5
	maxTracks      = 2
)

// gpaLabels are the accepted semester average labels, in priority order.
var gpaLabels = []string{GPAKey, "평균평점", "GPA"}

var semesterTitlePattern = regexp.MustCompile(`(\d{4})\D+([12])\s*학기`)

// UserInfo is the student's display name and the raw track labels listed above it.
type UserInfo struct {
	Name   string
	Tracks []string
}

// GradeReport is the parsed grade history page.
type GradeReport struct {
	CreditSummary map[string]string
	Semesters     []Semester
}

// Semester is one semester block. GradeLevel is 0 when the page omits it.
type Semester struct {
	Name       string
	Year       int
	Term       int
	GradeLevel int
	Summary    map[string]string
	Courses    []GradeRow
}

// GradeRow is a course line. An empty Grade means the course is still in progress.
type GradeRow struct {
	Code       string
	Name       string
	TrackLabel string
	Credits    int
	Grade      string
}

// CompletedRow is a graded course together with the semester it was taken in.
type CompletedRow struct {
	GradeRow
	Year       int
	Term       int
	GradeLevel int
}

// ParseUserInfo extracts the name and declared tracks. The region lists track labels
// on separate lines with the name on the last one. A missing region yields an empty
// result.
func ParseUserInfo(doc []byte) (*UserInfo, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(string(doc)))
	if err != nil {
		return nil, fmt.Errorf("parse user info: %w", err)
	}

	region := root.Find(userInfoSelector).First()
	if region.Length() == 0 {
		return &UserInfo{}, nil
	}

	lines := splitOnBreaks(region)
	if len(lines) == 0 {
		return &UserInfo{}, nil
	}

	info := &UserInfo{Name: lines[len(lines)-1]}
	tracks := lines[:len(lines)-1]
	if len(tracks) > maxTracks {
		tracks = tracks[:maxTracks]
	}
	info.Tracks = append([]string(nil), tracks...)
	return info, nil
}

// ParseGrades extracts the overall credit summary and every semester block.
func ParseGrades(doc []byte) (*GradeReport, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(string(doc)))
	if err != nil {
		return nil, fmt.Errorf("parse grades: %w", err)
	}

	report := &GradeReport{
		CreditSummary: parseSummaryTable(root.Find(creditSummarySelector).First()),
	}

	root.Find(semesterSelector).Each(func(_ int, block *goquery.Selection) {
		report.Semesters = append(report.Semesters, parseSemester(block))
	})

	return report, nil
}

// GPA returns the semester average from the first label in gpaLabels the summary
// carries. Totals such as 평점합계 are never read.
func (s Semester) GPA() (float64, bool) {
	for _, label := range gpaLabels {
		raw, ok := s.Summary[label]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// CompletedRows returns every graded course across all semesters.
func (r *GradeReport) CompletedRows() []CompletedRow {
	var rows []CompletedRow
	for _, sem := range r.Semesters {
		for _, course := range sem.Courses {
			if course.Grade == "" {
				continue
			}
			rows = append(rows, CompletedRow{
				GradeRow:   course,
				Year:       sem.Year,
				Term:       sem.Term,
				GradeLevel: sem.GradeLevel,
			})
		}
	}
	return rows
}

// EnrolledCourseNames returns names of ungraded courses in page order.
func (r *GradeReport) EnrolledCourseNames() []string {
	var names []string
	for _, sem := range r.Semesters {
		for _, course := range sem.Courses {
			if course.Grade == "" && course.Name != "" {
				names = append(names, course.Name)
			}
		}
	}
	return names
}

func parseSemester(block *goquery.Selection) Semester {
	sem := Semester{
		Name:    cleanText(block.Find(semesterTitleSelector).First().Text()),
		Summary: parseSummaryTable(block.Find(semesterSummarySelector).First()),
	}
	if m := semesterTitlePattern.FindStringSubmatch(sem.Name); m != nil {
		sem.Year, _ = strconv.Atoi(m[1])
		sem.Term, _ = strconv.Atoi(m[2])
	}
	if level, ok := sem.Summary[GradeLevelKey]; ok {
		sem.GradeLevel, _ = strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(level, GradeLevelKey)))
	}

	block.Find(courseRowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td").Map(func(_ int, cell *goquery.Selection) string {
			return cleanText(cell.Text())
		})
		if len(cells) < courseRowCells {
			return
		}
		// Some layouts prepend a sequence column.
		cells = cells[len(cells)-courseRowCells:]
		sem.Courses = append(sem.Courses, GradeRow{
			Code:       cells[0],
			Name:       cells[1],
			TrackLabel: cells[2],
			Credits:    parseCredits(cells[3]),
			Grade:      cells[4],
		})
	})

	return sem
}

// parseSummaryTable pairs header cells with value cells in document order, which
// covers both a header row followed by a value row and alternating th/td cells.
func parseSummaryTable(table *goquery.Selection) map[string]string {
	summary := make(map[string]string)
	if table.Length() == 0 {
		return summary
	}
	headers := table.Find("th").Map(func(_ int, s *goquery.Selection) string { return cleanText(s.Text()) })
	values := table.Find("td").Map(func(_ int, s *goquery.Selection) string { return cleanText(s.Text()) })
	for i := 0; i < len(headers) && i < len(values); i++ {
		if headers[i] == "" {
			continue
		}
		summary[headers[i]] = values[i]
	}
	return summary
}

func splitOnBreaks(region *goquery.Selection) []string {
	var (
		lines   []string
		current strings.Builder
	)
	flush := func() {
		if line := cleanText(current.String()); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	region.Contents().Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		switch {
		case node.Type == html.ElementNode && node.Data == "br":
			flush()
		case node.Type == html.TextNode:
			current.WriteString(node.Data)
		case node.Type == html.ElementNode:
			current.WriteString(s.Text())
		}
	})
	flush()
	return lines
}

func parseCredits(raw string) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return int(v)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
