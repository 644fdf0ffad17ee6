// Package templates provides the embedded files "strait init"
// scaffolds into a new project.
package templates

import (
	"embed"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed init
var FS embed.FS

// Data holds the values substituted into the init templates.
type Data struct {
	ProjectName string
	ModulePath  string
}

// Process renders a template string with the given data.
func Process(content string, data Data) (string, error) {
	tmpl, err := template.New("").Parse(content)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ReadFile reads a file from the embedded filesystem.
func ReadFile(path string) ([]byte, error) {
	return FS.ReadFile(path)
}

// InitFiles lists the embedded init template paths.
func InitFiles() ([]string, error) {
	var files []string
	err := fs.WalkDir(FS, "init", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}
