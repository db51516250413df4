package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/emersion/go-message/mail"

	"taskboard/domain/entity"
)

var reminderTemplate = template.Must(template.New("reminder").Parse(`<h2>Task Reminder</h2>
<p>This is a reminder for your task:</p>
<h3>{{.Title}}</h3>
<p><strong>Description:</strong> {{if .Description}}{{.Description}}{{else}}No description{{end}}</p>
<p><strong>Due Date:</strong> {{if .DueDate}}{{.DueDate}}{{else}}No due date{{end}}</p>
<p><strong>Priority:</strong> {{.Priority}}</p>
<p><strong>Category:</strong> {{if .Category}}{{.Category}}{{else}}No category{{end}}</p>
<p>Please complete this task before the due date.</p>
`))

const dueDateLayout = "Mon, 02 Jan 2006 15:04 MST"

type reminderView struct {
	Title       string
	Description string
	DueDate     string
	Priority    string
	Category    string
}

// Subject is the mail subject line for a task reminder
func Subject(task *entity.Task) string {
	return fmt.Sprintf("Reminder: %s - Due Soon", task.Title)
}

// renderBody renders the HTML reminder body with every task field escaped
func renderBody(task *entity.Task) (string, error) {
	view := reminderView{
		Title:       task.Title,
		Description: task.Description,
		Priority:    string(task.Priority),
		Category:    task.Category,
	}
	if task.DueDate != nil {
		view.DueDate = task.DueDate.UTC().Format(dueDateLayout)
	}

	var buf bytes.Buffer
	if err := reminderTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("rendering reminder: %w", err)
	}
	return buf.String(), nil
}

// composeReminder builds a complete RFC 5322 message for one reminder
func composeReminder(from *mail.Address, to *mail.Address, task *entity.Task, now time.Time) ([]byte, error) {
	body, err := renderBody(task)
	if err != nil {
		return nil, err
	}

	var h mail.Header
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(Subject(task))
	h.SetDate(now)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	return buf.Bytes(), nil
}
