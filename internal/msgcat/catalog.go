package msgcat

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	_ "embed"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultMessages []byte

// Catalog holds user-facing message templates keyed by flattened dot paths
// ("challenge.not_found"). Templates come from the embedded defaults, with an
// optional override directory layered on top, and are compiled once at load;
// the catalog is immutable afterwards.
type Catalog struct {
	templates map[string]*template.Template
}

// New builds the catalog from the embedded defaults plus overrides from dir
// if provided. A bad template or a duplicate override key fails here, not at
// render time.
func New(overrideDir string) (*Catalog, error) {
	flat, err := flatten(defaultMessages)
	if err != nil {
		return nil, fmt.Errorf("embedded messages: %w", err)
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := mergeOverrides(overrideDir, flat); err != nil {
			return nil, err
		}
	}

	c := &Catalog{templates: make(map[string]*template.Template, len(flat))}
	for key, text := range flat {
		t, err := template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", key, err)
		}
		c.templates[key] = t
	}
	return c, nil
}

// mergeOverrides reads every yaml file in dir in name order and layers its
// keys over flat. The same key appearing in two override files is a config
// error, not a silent last-writer-wins.
func mergeOverrides(dir string, flat map[string]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read override dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	seen := make(map[string]string) // key -> filename
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		keys, err := flatten(b)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for k, v := range keys {
			if prev, dup := seen[k]; dup {
				return fmt.Errorf("override key %q defined in both %s and %s", k, prev, name)
			}
			seen[k] = name
			flat[k] = v
		}
	}
	return nil
}

// flatten parses a yaml document of nested string maps into dot-joined keys.
// Only string leaves are allowed.
func flatten(b []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if err := walk(doc, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(node any, prefix string, out map[string]string) error {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := walk(child, key, out); err != nil {
				return err
			}
		}
		return nil
	case string:
		if prefix == "" {
			return errors.New("string value without key prefix")
		}
		out[prefix] = v
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported value at %s: %T", prefix, v)
	}
}

// Render executes the template for key with the given data. Unknown keys are
// errors; callers needing a safe fallback use MustRender.
func (c *Catalog) Render(key string, data any) (string, error) {
	t, ok := c.templates[strings.TrimSpace(key)]
	if !ok {
		return "", fmt.Errorf("message not found: %s", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// MustRender renders the message or falls back to the key itself, so the
// engine never fails an event send over a missing message.
func (c *Catalog) MustRender(key string, data any) string {
	s, err := c.Render(key, data)
	if err != nil {
		return key
	}
	return s
}
