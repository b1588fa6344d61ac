package mdemitter

import (
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"cell": cell,
	"join": strings.Join,
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}

var templates = template.Must(template.New("md").Funcs(funcs).Parse(`
{{- define "params" -}}
| Name | Type | Required | Default | Description |
|------|------|----------|---------|-------------|
{{ range . -}}
| ` + "`{{ .Name }}`" + ` | {{ .TypeLink }} | {{ yesno .Required }} | {{ if .Default }}` + "`{{ cell .Default }}`" + `{{ end }} | {{ cell .Description }}{{ if .Deprecated }} **Deprecated** {{ cell .Deprecated }}{{ end }} |
{{ end -}}
{{- end -}}

{{- define "operation" -}}
# {{ .Op.Name }}

{{ if .Op.Description }}{{ .Op.Description }}

{{ end -}}
{{ if .Op.URLs -}}
## Endpoints

{{ range .Op.URLs }}- ` + "`{{ join .Methods \"|\" }} {{ .Path }}`" + `
{{ end }}
{{ end -}}
## Availability

{{ range .Op.Availability }}- **{{ .Flavor }}**: {{ .Stability }}{{ if .Since }}, since {{ .Since }}{{ end }}{{ if ne .Visibility "public" }}, {{ .Visibility }}{{ end }}
{{ end }}
{{ if .Op.Privileges -}}
## Required privileges

{{ range .Op.Privileges }}- {{ .Kind }}: ` + "`{{ .Name }}`" + `
{{ end }}
{{ end -}}
{{ if .Path -}}
## Path parameters

{{ template "params" .Path }}
{{ end -}}
{{ if .Query -}}
## Query parameters

{{ template "params" .Query }}
{{ end -}}
{{ if .HasBody -}}
## Request body

{{ if .Body }}{{ template "params" .Body }}{{ else }}The request body takes no fields.
{{ end }}
{{ end -}}
{{ if .Resp -}}
## Response

{{ .Resp }}

{{ end -}}
{{ if or .Op.DocID .Op.DocURL .Op.ExtDocID -}}
## References

{{ if .Op.DocID }}- Documentation id: ` + "`{{ .Op.DocID }}`" + `
{{ end }}{{ if .Op.DocURL }}- Documentation: {{ .Op.DocURL }}
{{ end }}{{ if .Op.ExtDocID }}- External documentation id: ` + "`{{ .Op.ExtDocID }}`" + `
{{ end }}
{{ end -}}
{{ if .Extra -}}
## Other metadata

{{ range .Extra }}- {{ . }}
{{ end }}
{{ end -}}
{{- end -}}

{{- define "type" -}}
# {{ .Def.Name }}

{{ if .Def.Description }}{{ .Def.Description }}

{{ end -}}
Kind: {{ .Def.Kind }}
{{ if .Target }}
Alias of {{ .Target }}
{{ end -}}
{{ if .Def.Members }}
| Value |
|-------|
{{ range .Def.Members }}| ` + "`{{ . }}`" + ` |
{{ end -}}
{{ end -}}
{{ if .Variants }}
One of:

{{ range .Variants }}- {{ . }}
{{ end -}}
{{ end -}}
{{ if .Props }}
| Property | Type | Required | Description |
|----------|------|----------|-------------|
{{ range .Props }}| ` + "`{{ .Name }}`" + ` | {{ .TypeLink }} | {{ yesno .Required }} | {{ cell .Description }} |
{{ end -}}
{{ end -}}
{{- end -}}

{{- define "index" -}}
# {{ .Title }}

## Operations
{{ range .Groups }}
### {{ .Name }}

{{ range .Ops }}- [{{ .Name }}](operations/{{ .Name }}.md){{ if .Summary }}: {{ .Summary }}{{ end }}
{{ end -}}
{{ end }}
## Types

{{ range .Defs }}- [{{ .Name }}](types/{{ .Name }}.md) ({{ .Kind }})
{{ end -}}
{{- end -}}
`))
