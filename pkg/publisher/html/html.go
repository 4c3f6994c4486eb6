package html

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

//go:embed templates/report.html
var defaultTemplate embed.FS

type HTMLPublisher struct {
	outputPath   string
	templatePath string // empty uses the embedded default template
}

func NewHTMLPublisher(outputPath, templatePath string) *HTMLPublisher {
	return &HTMLPublisher{
		outputPath:   outputPath,
		templatePath: templatePath,
	}
}

func (p *HTMLPublisher) PublishScanResult(result *models.ScanResult) error {
	if result == nil {
		return fmt.Errorf("cannot publish nil scan result")
	}
	if p.outputPath == "" {
		return fmt.Errorf("invalid configuration: missing output path")
	}

	if err := os.MkdirAll(filepath.Dir(p.outputPath), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpl, err := p.loadTemplate()
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	file, err := os.Create(p.outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	data := map[string]interface{}{
		"Result":      result,
		"GeneratedAt": time.Now().Format(time.RFC1123),
	}

	if err := tmpl.Execute(file, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

func (p *HTMLPublisher) loadTemplate() (*template.Template, error) {
	if p.templatePath != "" {
		return template.ParseFiles(p.templatePath)
	}
	return template.ParseFS(defaultTemplate, "templates/report.html")
}

func (p *HTMLPublisher) GetName() string {
	return "html"
}
