package render

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// VersionParam is the query parameter carrying an asset's content version.
const VersionParam = "v"

const versionLength = 12

// Engine renders the embedded page templates. Templates reference static files through
// the asset function, which resolves them against the assets given to WithAssets.
type Engine struct {
	templates *template.Template
	assetBase string
	versions  map[string]string
}

// Option configures an Engine.
type Option func(*Engine) error

// WithAssets makes every regular file in fsys addressable from templates as
// {{ asset "name" }}, rendered as base/name?v=<content hash>.
func WithAssets(fsys fs.FS, base string) Option {
	return func(e *Engine) error {
		if fsys == nil {
			return fmt.Errorf("assets: nil filesystem")
		}
		e.assetBase = strings.TrimSuffix(base, "/")
		return fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := fs.ReadFile(fsys, name)
			if err != nil {
				return fmt.Errorf("assets: read %s: %w", name, err)
			}
			sum := sha256.Sum256(data)
			e.versions[name] = hex.EncodeToString(sum[:])[:versionLength]
			return nil
		})
	}
}

// New parses the embedded templates and applies opts.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{versions: make(map[string]string)}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	t, err := template.New("render").Funcs(template.FuncMap{
		"asset": e.AssetURL,
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	e.templates = t
	return e, nil
}

// AssetURL returns the versioned URL of a registered asset. Unknown names are an error
// so a template cannot link a file that will not be served.
func (e *Engine) AssetURL(name string) (string, error) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	version, ok := e.versions[name]
	if !ok {
		return "", fmt.Errorf("unknown asset %q", name)
	}
	url := name
	if e.assetBase != "" {
		url = e.assetBase + "/" + name
	}
	return url + "?" + VersionParam + "=" + version, nil
}

// Render executes the named template with the provided data and returns the rendered bytes.
func (e *Engine) Render(name string, data any) ([]byte, error) {
	if e == nil || e.templates == nil {
		return nil, fmt.Errorf("nil engine")
	}

	buf := bytes.NewBuffer(nil)
	if err := e.templates.ExecuteTemplate(buf, name, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
