package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/masomo-fees/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates tmplCache
	tmplErr   error
	tmplInit  sync.Once
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName string
		Data    interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (m *EmailMessage) renderText(data ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".txt")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, data); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML(data ContextData) error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, data); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render renders the message's text and HTML contents from its template, if any.
func (m *EmailMessage) Render(conf *Config) error {
	if m.TemplateName != "" {
		// only parse once, during the first render
		tmplInit.Do(func() { templates, tmplErr = parseTemplates(appfs.FS, conf.Debug || conf.TestMode) })
		if tmplErr != nil {
			return tmplErr
		}
	}
	data := ContextData{AppName: conf.AppName, Data: m.TemplateData}
	if err := m.renderText(data); err != nil {
		return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
	}
	return errors.Wrapf(m.renderHTML(data), "rendering %s.gohtml", m.TemplateName)
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

func parseTemplates(fsys fs.FS, strict bool) (tmplCache, error) {
	cache := make(tmplCache)

	tmplFS, err := fs.Sub(fsys, emailTemplatesDir)
	if err != nil {
		return nil, errors.Wrap(err, "core.parseTemplates")
	}
	fnames, err := fs.Glob(tmplFS, "*")
	if err != nil {
		return nil, errors.Wrap(err, "core.parseTemplates")
	}

	for _, fname := range fnames {
		dot := strings.LastIndex(fname, ".")
		if dot < 0 || strings.HasPrefix(fname, "_") {
			continue
		}
		name, ext := fname[:dot], fname[dot:]
		if !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		entry, ok := cache[name]
		if !ok {
			entry = make(tmplCacheEntry)
			cache[name] = entry
		}
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(tmplFS, "_base.txt", fname)
			if err != nil {
				return nil, errors.Wrap(err, "core.parseTemplates")
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(tmplFS, "_base.gohtml", fname)
			if err != nil {
				return nil, errors.Wrap(err, "core.parseTemplates")
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		}
	}
	return cache, nil
}
