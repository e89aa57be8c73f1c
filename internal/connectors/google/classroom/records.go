package classroom

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/classroom/v1"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/normalisers/html"
)

// dueLayout renders due dates in recorded assignment text.
const dueLayout = "January 02, 2006 at 03:04 PM"

// postedLayout renders announcement dates.
const postedLayout = "January 02, 2006"

// announcementTitleLength caps titles derived from announcement text.
const announcementTitleLength = 80

// Remote states that mark an item as gone.
const stateDeleted = "DELETED"

// recordMapper converts Classroom payloads into domain records.
type recordMapper struct {
	norm *html.Normaliser
}

func (m recordMapper) course(c *classroom.Course) domain.RemoteCourse {
	state := domain.CourseActive
	if c.CourseState != "" && c.CourseState != "ACTIVE" {
		state = domain.CourseArchived
	}
	return domain.RemoteCourse{
		ExternalID: c.Id,
		Name:       m.norm.Title(c.Name),
		Section:    m.norm.Title(c.Section),
		State:      state,
		OwnerID:    c.OwnerId,
	}
}

func (m recordMapper) courseWork(w *classroom.CourseWork) domain.RemoteRecord {
	var b strings.Builder
	b.WriteString(m.norm.Text(w.Description))
	if due, ok := dueDate(w.DueDate, w.DueTime); ok {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Due date: " + due.Format(dueLayout))
	}
	if w.MaxPoints > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Points: " + strconv.FormatFloat(w.MaxPoints, 'f', -1, 64))
	}

	title := m.norm.Title(w.Title)
	if title == "" {
		title = "Untitled"
	}
	return domain.RemoteRecord{
		ExternalID: w.Id,
		Kind:       domain.KindAssignment,
		Title:      title,
		Body:       b.String(),
		URL:        w.AlternateLink,
		UpdatedAt:  parseTime(w.UpdateTime),
		Deleted:    w.State == stateDeleted,
	}
}

func (m recordMapper) announcement(a *classroom.Announcement) domain.RemoteRecord {
	body := m.norm.Text(a.Text)
	if posted := parseTime(a.CreationTime); !posted.IsZero() {
		body += "\n\nPosted: " + posted.Format(postedLayout)
	}
	return domain.RemoteRecord{
		ExternalID: a.Id,
		Kind:       domain.KindAnnouncement,
		Title:      headline(m.norm.Title(a.Text)),
		Body:       strings.TrimSpace(body),
		URL:        a.AlternateLink,
		UpdatedAt:  parseTime(a.UpdateTime),
		Deleted:    a.State == stateDeleted,
	}
}

func (m recordMapper) material(c *classroom.CourseWorkMaterial) domain.RemoteRecord {
	var b strings.Builder
	b.WriteString(m.norm.Text(c.Description))
	if attached := attachmentTitles(c.Materials); len(attached) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Attachments: " + m.norm.Title(strings.Join(attached, ", ")))
	}

	title := m.norm.Title(c.Title)
	if title == "" {
		title = "Untitled"
	}
	return domain.RemoteRecord{
		ExternalID: c.Id,
		Kind:       domain.KindMaterial,
		Title:      title,
		Body:       b.String(),
		URL:        c.AlternateLink,
		UpdatedAt:  parseTime(c.UpdateTime),
		Deleted:    c.State == stateDeleted,
	}
}

func (m recordMapper) submission(s *classroom.StudentSubmission) domain.RemoteRecord {
	rec := domain.RemoteRecord{
		ExternalID: s.Id,
		Kind:       domain.KindSubmission,
		Title:      fmt.Sprintf("Submission %s", s.Id),
		URL:        s.AlternateLink,
		UpdatedAt:  parseTime(s.UpdateTime),
		Deleted:    s.State == stateDeleted,
		Submission: &domain.SubmissionRecord{
			AssignmentID: s.CourseWorkId,
			StudentID:    s.UserId,
			State:        s.State,
			Late:         s.Late,
		},
	}
	// AssignedGrade is omitted on the wire until a grade is set.
	if s.AssignedGrade != 0 || s.State == "RETURNED" {
		grade := s.AssignedGrade
		rec.Submission.Grade = &grade
	}
	return rec
}

// dueDate combines a Classroom date and time of day in UTC.
// A due date without a time falls due at the end of the day.
func dueDate(d *classroom.Date, t *classroom.TimeOfDay) (time.Time, bool) {
	if d == nil || d.Year == 0 {
		return time.Time{}, false
	}
	month, day := d.Month, d.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	hour, minute := int64(23), int64(59)
	if t != nil {
		hour, minute = t.Hours, t.Minutes
	}
	return time.Date(int(d.Year), time.Month(month), int(day), int(hour), int(minute), 0, 0, time.UTC), true
}

func attachmentTitles(materials []*classroom.Material) []string {
	var titles []string
	for _, m := range materials {
		switch {
		case m == nil:
		case m.DriveFile != nil && m.DriveFile.DriveFile != nil && m.DriveFile.DriveFile.Title != "":
			titles = append(titles, m.DriveFile.DriveFile.Title)
		case m.Link != nil && m.Link.Title != "":
			titles = append(titles, m.Link.Title)
		case m.YoutubeVideo != nil && m.YoutubeVideo.Title != "":
			titles = append(titles, m.YoutubeVideo.Title)
		case m.Form != nil && m.Form.Title != "":
			titles = append(titles, m.Form.Title)
		}
	}
	return titles
}

// headline derives a title from announcement text, cut at a word boundary.
func headline(text string) string {
	if text == "" {
		return "Announcement"
	}
	runes := []rune(text)
	if len(runes) <= announcementTitleLength {
		return text
	}
	cut := string(runes[:announcementTitleLength])
	if i := strings.LastIndexByte(cut, ' '); i > announcementTitleLength/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
