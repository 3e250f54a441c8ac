package estimate

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/estimate.html
var templateFS embed.FS

var htmlTemplate = template.Must(template.ParseFS(templateFS, "templates/estimate.html"))

type htmlData struct {
	Subject    string
	Paragraphs [][]string
	Procedure  string
	Variant    *string
	Items      []priceLine
	TotalLabel string
	Total      string
	Phone      string
}

func renderHTML(data htmlData) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.ExecuteTemplate(&buf, "estimate.html", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
