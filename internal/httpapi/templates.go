package httpapi

import _ "embed"

//go:embed templates/shell.tmpl
var shellTemplateHTML string
