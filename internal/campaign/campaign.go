// Package campaign renders bulk email subjects and bodies for table rows.
package campaign

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	sprig "github.com/Masterminds/sprig/v3"
	"github.com/kong/rosterctl/internal/config"
	"github.com/kong/rosterctl/internal/datatable"
)

// Template is the unrendered subject and body of a campaign. It is also
// the payload of the send-email bulk action.
type Template struct {
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body" yaml:"body"`
}

// FromConfig reads the campaign template from configuration.
func FromConfig(cfg config.Hook) Template {
	return Template{
		Subject: cfg.GetString(config.CampaignSubjectPath),
		Body:    cfg.GetString(config.CampaignTemplatePath),
	}
}

// Message is a campaign rendered for one recipient.
type Message struct {
	ID      datatable.ID `json:"id" yaml:"id"`
	To      string       `json:"to" yaml:"to"`
	Subject string       `json:"subject" yaml:"subject"`
	Body    string       `json:"body" yaml:"body"`
}

// Campaign is a parsed Template.
type Campaign struct {
	tmpl    Template
	subject *template.Template
	body    *template.Template
}

// Compile parses both templates with the sprig function set.
func Compile(t Template) (*Campaign, error) {
	if strings.TrimSpace(t.Subject) == "" {
		return nil, errors.New("campaign subject is empty")
	}
	subject, err := parse("subject", t.Subject)
	if err != nil {
		return nil, err
	}
	body, err := parse("body", t.Body)
	if err != nil {
		return nil, err
	}
	return &Campaign{tmpl: t, subject: subject, body: body}, nil
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid campaign %s: %w", name, err)
	}
	return t, nil
}

// Template returns the source the campaign was compiled from.
func (c *Campaign) Template() Template { return c.tmpl }

// Render fills the templates with the fields of row. Missing fields render
// as empty strings.
func (c *Campaign) Render(row datatable.Row) (Message, error) {
	data := make(map[string]any, len(row))
	for k, v := range row {
		data[k] = v
	}
	var msg Message
	msg.ID, _ = row.ID()
	msg.To, _ = row.Email()

	subject, err := execute(c.subject, data)
	if err != nil {
		return Message{}, err
	}
	body, err := execute(c.body, data)
	if err != nil {
		return Message{}, err
	}
	msg.Subject = strings.TrimSpace(subject)
	msg.Body = body
	return msg, nil
}

// RenderAll renders a message per row and stops at the first failure.
func (c *Campaign) RenderAll(rows []datatable.Row) ([]Message, error) {
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		m, err := c.Render(r)
		if err != nil {
			id, _ := r.ID()
			return nil, fmt.Errorf("row %s: %w", id, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func execute(t *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render campaign %s: %w", t.Name(), err)
	}
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}
