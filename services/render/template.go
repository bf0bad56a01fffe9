package render

import (
	"html/template"
	"strings"
	"time"
)

// Fields are the inputs the certificate layout is a pure function of.
// Revoked is carried for callers that key behavior off it (export refusal,
// verification), but it does not change the rendered document: the archived
// historical view and the live preview must be identical.
type Fields struct {
	StudentName string
	Title       string
	Description string
	DateIssued  time.Time
	SessionName string
	Revoked     bool
}

// RenderedDocument is the rendered certificate markup. Export operates on
// this document alone, never on the raw fields.
type RenderedDocument struct {
	HTML string
}

// DefaultDescription is used when the issuer provides no description
const DefaultDescription = "For outstanding completion and achievement. We recognize your dedication and hard work."

var certificateTemplate = template.Must(template.New("certificate").Parse(`<!DOCTYPE html>
<html>
<body>
<div class="certificate">
  <h1 class="certificate-heading">CERTIFICATE</h1>
  <div class="certificate-subheading">OF COMPLETION</div>
  <div class="presented-to">THIS CERTIFICATE IS PROUDLY PRESENTED TO</div>
  <div class="student-name">{{.StudentName}}</div>
  <div class="certificate-description">{{.Description}}</div>
  <div class="certificate-title">{{.Title}}</div>
  <div class="session-name">{{.SessionName}}</div>
  <div class="date-issued">{{.DateIssued}}</div>
  <div class="seal">Official Seal</div>
</div>
</body>
</html>
`))

type templateData struct {
	StudentName string
	Title       string
	Description string
	SessionName string
	DateIssued  string
}

// Template renders the certificate document for the given fields. It is a
// pure function: identical fields always produce identical markup, and the
// revoked flag has no effect on the output.
func Template(fields Fields) (RenderedDocument, error) {
	description := fields.Description
	if description == "" {
		description = DefaultDescription
	}

	data := templateData{
		StudentName: fields.StudentName,
		Title:       fields.Title,
		Description: description,
		SessionName: fields.SessionName,
		DateIssued:  fields.DateIssued.UTC().Format("January 2, 2006"),
	}

	var buf strings.Builder
	if err := certificateTemplate.Execute(&buf, data); err != nil {
		return RenderedDocument{}, err
	}

	return RenderedDocument{HTML: buf.String()}, nil
}
