package handlers

import (
	"html/template"
	"net/http"

	"factlens/internal/details"
	"factlens/internal/models"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"github.com/ternarybob/arbor"
)

// UIHandlers serves the history and details pages
type UIHandlers struct {
	config    *Config
	storage   Storage
	logger    arbor.ILogger
	templates *template.Template
}

// TemplateData represents data passed to templates
type TemplateData struct {
	Title       string
	ServiceName string
	Version     string
	Build       string
	Environment string
	Entries     []HistoryItem
	Entry       *models.HistoryEntry
	Sources     []SourceGroup
	Band        models.ScoreBand
	Error       string
	ErrorDetail string
}

// SourceGroup is the claims of one fact-check source
type SourceGroup struct {
	Source string
	Claims []models.Claim
}

const pageTemplates = `
{{define "header"}}<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8"><title>{{.Title}}</title></head><body>
<header><h1>{{.ServiceName}}</h1><small>v{{.Version}} ({{.Environment}})</small></header>
{{end}}

{{define "footer"}}</body></html>{{end}}

{{define "index.html"}}{{template "header" .}}
<main>
<h2>Scan history</h2>
{{if .Entries}}<ul class="history">
{{range .Entries}}<li class="score-{{.Band}}"><a href="{{.DetailsLink}}">{{if .Title}}{{.Title}}{{else}}Untitled Page{{end}}</a>
<span class="score">{{.Results.CredibilityScore}}%</span> <span class="url">{{.URL}}</span></li>
{{end}}</ul>{{else}}<p class="no-results">No pages scanned yet.</p>{{end}}
</main>
{{template "footer" .}}{{end}}

{{define "details.html"}}{{template "header" .}}
<main id="details-content">
{{if .Error}}<div class="error-message"><h3>Error</h3><div>{{.Error}}</div>{{if .ErrorDetail}}<div class="debug-info">{{.ErrorDetail}}</div>{{end}}</div>
{{else}}{{with .Entry}}
<div class="header"><h1 class="title">{{if .Title}}{{.Title}}{{else}}Untitled Page{{end}}</h1>
<div class="url">{{.URL}}</div><div class="date">Scanned on {{.Timestamp}}</div></div>
<div class="score-container score-{{$.Band}}"><h3>Credibility Score</h3><span class="meter-text">{{.Results.CredibilityScore}}%</span></div>
{{end}}
{{if .Sources}}<div class="claims-container"><h3>Fact Check Results</h3>
{{range .Sources}}<div class="source-group"><div class="source-name">{{.Source}}</div>
{{range .Claims}}<div class="claim-item"><div class="claim-text">{{.Text}}</div>
{{with .FirstReview}}<div class="claim-rating">{{.TextualRating}}</div>{{if .URL}}<a href="{{.URL}}" target="_blank" class="claim-source">View Source</a>{{end}}{{end}}
</div>{{end}}</div>{{end}}</div>{{end}}
{{with .Entry}}{{if .Results.Summary}}<div class="summary-card"><h3>Analysis Summary</h3><div>{{.Results.Summary}}</div></div>{{end}}{{end}}
{{end}}
</main>
{{template "footer" .}}{{end}}
`

// NewUIHandlers creates a new UI handlers instance
func NewUIHandlers(config *Config, storage Storage, logger arbor.ILogger) (*UIHandlers, error) {
	templates, err := template.New("pages").Parse(pageTemplates)
	if err != nil {
		return nil, err
	}

	return &UIHandlers{
		config:    config,
		storage:   storage,
		logger:    logger,
		templates: templates,
	}, nil
}

func (h *UIHandlers) baseData(title string) TemplateData {
	return TemplateData{
		Title:       title,
		ServiceName: h.config.Server.Name,
		Version:     GetVersion(),
		Build:       GetBuild(),
		Environment: h.config.Server.Environment,
	}
}

// IndexHandler serves the history page
func (h *UIHandlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := h.baseData("FactLens History")
	entries, err := h.storage.LoadHistory()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load history")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	for _, entry := range entries {
		item := HistoryItem{HistoryEntry: entry, Band: models.BandFor(entry.Results.CredibilityScore)}
		if link, err := details.Link("/details", entry); err == nil {
			item.DetailsLink = link
		}
		data.Entries = append(data.Entries, item)
	}

	h.render(w, http.StatusOK, "index.html", data)
}

// DetailsHandler renders one history entry from its encoded link
func (h *UIHandlers) DetailsHandler(w http.ResponseWriter, r *http.Request) {
	data := h.baseData("FactLens Details")

	entry, err := details.Decode(r.URL.Query().Get(details.QueryParam))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Invalid details payload")
		data.Error = "Error processing history data"
		data.ErrorDetail = detailMessage(err)
		h.render(w, http.StatusBadRequest, "details.html", data)
		return
	}

	data.Entry = entry
	data.Band = models.BandFor(entry.Results.CredibilityScore)
	data.Sources = groupBySource(entry.Results.Claims)
	h.render(w, http.StatusOK, "details.html", data)
}

func (h *UIHandlers) render(w http.ResponseWriter, status int, name string, data TemplateData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to execute template")
	}
}

// groupBySource keeps the first-seen order of sources.
func groupBySource(claims []models.Claim) []SourceGroup {
	var groups []SourceGroup
	index := make(map[string]int)
	for _, c := range claims {
		source := c.Source
		if source == "" {
			source = "Unknown Source"
		}
		i, ok := index[source]
		if !ok {
			i = len(groups)
			index[source] = i
			groups = append(groups, SourceGroup{Source: source})
		}
		groups[i].Claims = append(groups[i].Claims, c)
	}
	return groups
}

func detailMessage(err error) string {
	if se, ok := err.(*ScanError); ok {
		return se.Message
	}
	return err.Error()
}
