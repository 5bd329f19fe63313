package skill

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Spec is skill metadata loaded from a SKILL.md file, plus any prompt
// template overrides found next to it. Specs override the built-in
// descriptor fields of a registered skill; they never define new skills.
type Spec struct {
	Name        string
	Description string
	Version     string
	Tags        []string
	Metadata    map[string]string
	Body        string
	Path        string
	Dir         string

	// Prompts maps a template name (file stem under prompts/) to its text.
	Prompts map[string]string
}

const (
	maxNameLen        = 64
	maxDescriptionLen = 1024
)

var namePattern = regexp.MustCompile(`^[a-z0-9]+(?:_[a-z0-9]+)*$`)

// LoadSpecDir scans a directory for skill subdirectories with SKILL.md.
func LoadSpecDir(root string) ([]Spec, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []Spec
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		specPath := filepath.Join(root, entry.Name(), "SKILL.md")
		if _, err := os.Stat(specPath); err != nil {
			continue
		}
		spec, err := LoadSpecFile(specPath)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// LoadSpecFile parses a single SKILL.md file and its prompts directory.
func LoadSpecFile(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, err
	}
	fm, body, err := splitFrontmatter(string(data))
	if err != nil {
		return Spec{}, err
	}
	var parsed frontmatter
	if err := yaml.Unmarshal([]byte(fm), &parsed); err != nil {
		return Spec{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	dir := filepath.Dir(path)
	spec := Spec{
		Name:        parsed.Name,
		Description: parsed.Description,
		Version:     parsed.Version,
		Tags:        parsed.Tags,
		Metadata:    parsed.Metadata,
		Body:        strings.TrimSpace(body),
		Path:        path,
		Dir:         dir,
	}
	if err := validateSpec(spec); err != nil {
		return Spec{}, err
	}
	spec.Prompts, err = loadPrompts(filepath.Join(dir, "prompts"))
	if err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// Apply overlays the spec's metadata onto a descriptor. Empty spec fields
// leave the descriptor untouched.
func (s Spec) Apply(d *Descriptor) {
	if d == nil {
		return
	}
	if s.Description != "" {
		d.Description = s.Description
	}
	if s.Version != "" {
		d.Version = s.Version
	}
	if len(s.Tags) > 0 {
		d.Tags = append([]string(nil), s.Tags...)
	}
}

type frontmatter struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Version     string            `yaml:"version"`
	Tags        []string          `yaml:"tags"`
	Metadata    map[string]string `yaml:"metadata"`
}

func splitFrontmatter(content string) (string, string, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", errors.New("missing frontmatter")
	}
	parts := strings.SplitN(trimmed, "---", 3)
	if len(parts) < 3 {
		return "", "", errors.New("invalid frontmatter")
	}
	return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), nil
}

func validateSpec(spec Spec) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("name exceeds %d characters", maxNameLen)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name must match %s", namePattern.String())
	}
	dirName := filepath.Base(spec.Dir)
	if dirName != name {
		return fmt.Errorf("name must match directory name (%s)", dirName)
	}
	desc := strings.TrimSpace(spec.Description)
	if desc == "" {
		return errors.New("description is required")
	}
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d characters", maxDescriptionLen)
	}
	return nil
}

func loadPrompts(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	prompts := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(entry.Name(), ".txt")
		prompts[name] = string(data)
	}
	return prompts, nil
}
