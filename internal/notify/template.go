package notify

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// DefaultSubjectTemplate names the process when only one is flagged.
const DefaultSubjectTemplate = `{{ if eq (len .Processes) 1 -}}
Service {{ (index .Processes 0).Name }} has restarted too many times!
{{- else -}}
{{ len .Processes }} services have restarted too many times!
{{- end }}`

// DefaultBodyTemplate lists every flagged process with its restart count.
const DefaultBodyTemplate = `{{- range .Processes }}
The service {{ .Name }} has restarted {{ .Restarts }} times!
{{- end }}
The current max is {{ .MaxRestarts }} restarts!

Reported by {{ .Hostname }} at {{ .Time | date "2006-01-02 15:04:05 MST" }}.
`

// Message is the data passed to the subject and body templates.
type Message struct {
	Processes   []Record
	MaxRestarts int
	Hostname    string
	Time        time.Time
}

// Templates renders alert subjects and bodies.
// Templates have the sprig function set available.
type Templates struct {
	subject *template.Template
	body    *template.Template
}

// NewTemplates parses the subject and body templates.
// An empty string selects the corresponding default template.
func NewTemplates(subject, body string) (*Templates, error) {
	if subject == "" {
		subject = DefaultSubjectTemplate
	}
	if body == "" {
		body = DefaultBodyTemplate
	}

	subjectTmpl, err := parseTemplate("subject", subject)
	if err != nil {
		return nil, err
	}
	bodyTmpl, err := parseTemplate("body", body)
	if err != nil {
		return nil, err
	}

	return &Templates{subject: subjectTmpl, body: bodyTmpl}, nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing %s template: %w", name, err)
	}
	return tmpl, nil
}

// Render executes both templates for msg.
// The subject is collapsed to a single trimmed line.
func (t *Templates) Render(msg Message) (subject, body string, err error) {
	var sb strings.Builder
	if err := t.subject.Execute(&sb, msg); err != nil {
		return "", "", fmt.Errorf("%w: subject: %w", ErrRender, err)
	}
	subject = strings.Join(strings.Fields(sb.String()), " ")

	sb.Reset()
	if err := t.body.Execute(&sb, msg); err != nil {
		return "", "", fmt.Errorf("%w: body: %w", ErrRender, err)
	}

	return subject, strings.TrimLeft(sb.String(), "\n"), nil
}
