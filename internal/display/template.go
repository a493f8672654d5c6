package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pixil98/go-colony/internal/game"
	"github.com/pixil98/go-colony/internal/world"
)

// templateFuncs provides utility functions for templates.
var templateFuncs = func() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["title"] = Title
	funcs["capitalize"] = Capitalize
	return funcs
}()

// ExpandTemplate expands a template string using the provided data.
func ExpandTemplate(tmplStr string, data any) (string, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}

// recordTemplates turn a change or event into a line for a player. Templates
// see the record's JSON fields.
var recordTemplates = map[string]string{
	world.KindTickStart:       `-- Tick {{ .tick }} --`,
	world.KindTickEnd:         `{{ if gt (int .skipped) 0 }}Tick {{ .tick }} ended without {{ .skipped }} {{ if eq (int .skipped) 1 }}actor{{ else }}actors{{ end }}.{{ end }}`,
	world.KindActionRequired:  `It is your turn. What will you do?`,
	world.KindActionFault:     `Your action failed: {{ .error }}`,
	game.KindActionProgress:   `Working... ({{ .ticks_used }}/{{ .total_ticks }})`,
	game.KindActionDone:       `{{ if .error }}You could not {{ .action.kind }}{{ with .action.direction }} {{ . }}{{ end }}: {{ .error }}.{{ else }}You finish: {{ .action.kind }}{{ with .action.direction }} {{ . }}{{ end }}.{{ end }}`,
	game.KindObjectCreated:    `{{ .name | title }} appears at {{ .location.x }},{{ .location.y }}.`,
	game.KindObjectDestructed: `{{ .name | title }} is gone.`,
	game.KindObjectMove:       `{{ .name | title }} moves to {{ .to.x }},{{ .to.y }}.`,
	game.KindMap:              `The {{ .tile.material | default "ground" }} at {{ .location.x }},{{ .location.y }} is now {{ .tile.terrain }}.`,
}

var compiledRecordTemplates = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(recordTemplates))
	for kind, src := range recordTemplates {
		out[kind] = template.Must(template.New(kind).Funcs(templateFuncs).Parse(src))
	}
	return out
}()

// RenderRecord renders a wire record. It reports false for kinds that have no
// player-facing text, or that render to nothing.
func RenderRecord(kind string, data json.RawMessage) (string, bool, error) {
	tmpl, ok := compiledRecordTemplates[kind]
	if !ok {
		return "", false, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", false, fmt.Errorf("decoding %s: %w", kind, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, fields); err != nil {
		return "", false, fmt.Errorf("rendering %s: %w", kind, err)
	}

	if buf.Len() == 0 {
		return "", false, nil
	}
	return buf.String(), true, nil
}
