package certificate

import (
	"bytes"
	"html/template"
	"sync"

	"github.com/pkg/errors"

	appfs "github.com/cadence/academy/fs"
)

const svgTemplatePath = "assets/templates/certificate/certificate.svg"

// SVGGenerator renders certificates from the embedded SVG template.
type SVGGenerator struct {
	once sync.Once
	tmpl *template.Template
	err  error
}

func NewSVGGenerator() *SVGGenerator {
	return &SVGGenerator{}
}

func (g *SVGGenerator) ContentType() string { return "image/svg+xml" }
func (g *SVGGenerator) Ext() string         { return ".svg" }

func (g *SVGGenerator) Generate(data ArtifactData) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl, g.err = template.New("certificate.svg").Funcs(template.FuncMap{
			"date": func(d ArtifactData) string { return d.CompletionDate.Format("January 2, 2006") },
		}).ParseFS(appfs.FS, svgTemplatePath)
	})
	if g.err != nil {
		return nil, errors.Wrap(g.err, "parsing certificate template")
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, "rendering certificate")
	}
	return buf.Bytes(), nil
}
