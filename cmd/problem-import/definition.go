package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"interviewoj/internal/judge/harness"
	"interviewoj/internal/judge/model"
	problemRepo "interviewoj/internal/problem/repository"
	appErr "interviewoj/pkg/errors"

	"gopkg.in/yaml.v3"
)

// ProblemDefinition is the authoring format of one problem. Submit judges the
// visible cases followed by the hidden pack.
type ProblemDefinition struct {
	ID                int64                     `yaml:"id"`
	Title             string                    `yaml:"title"`
	Signature         model.Signature           `yaml:"signature"`
	TimeLimitMs       int64                     `yaml:"timeLimitMs"`
	MemoryLimitKb     int64                     `yaml:"memoryLimitKb"`
	VisibleTestCases  []model.TestCase          `yaml:"visibleTestCases"`
	HiddenTestCases   []model.TestCase          `yaml:"hiddenTestCases"`
	StartCode         map[model.Language]string `yaml:"startCode"`
	ReferenceSolution map[model.Language]string `yaml:"referenceSolution"`
	DriverTemplates   map[model.Language]string `yaml:"driverTemplates"`
}

func loadDefinition(path string) (*ProblemDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem file failed: %w", err)
	}
	var def ProblemDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse %s failed: %w", path, err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &def, nil
}

// definitionFiles expands path into the problem files it names.
func definitionFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Validate checks the definition before anything is uploaded and
// canonicalizes its language keys.
func (d *ProblemDefinition) Validate() error {
	if d.ID <= 0 {
		return appErr.ValidationError("id", "must be positive")
	}
	if strings.TrimSpace(d.Title) == "" {
		return appErr.ValidationError("title", "is required")
	}
	if d.Signature.Function != "" {
		if err := harness.ValidateSignature(d.Signature); err != nil {
			return err
		}
	}
	if d.TimeLimitMs <= 0 {
		return appErr.ValidationError("timeLimitMs", "must be positive")
	}
	if d.MemoryLimitKb <= 0 {
		return appErr.ValidationError("memoryLimitKb", "must be positive")
	}
	if len(d.VisibleTestCases) == 0 {
		return appErr.ValidationError("visibleTestCases", "at least one case is required")
	}
	if len(d.HiddenCases()) == 0 {
		return appErr.ValidationError("hiddenTestCases", "at least one case beyond the visible ones is required")
	}
	for field, byLang := range map[string]*map[model.Language]string{
		"startCode":         &d.StartCode,
		"referenceSolution": &d.ReferenceSolution,
		"driverTemplates":   &d.DriverTemplates,
	} {
		normalized, err := normalizeLanguages(field, *byLang)
		if err != nil {
			return err
		}
		*byLang = normalized
	}
	return nil
}

// normalizeLanguages rewrites aliases such as "c++" or "js" to canonical keys.
func normalizeLanguages(field string, byLang map[model.Language]string) (map[model.Language]string, error) {
	if len(byLang) == 0 {
		return byLang, nil
	}
	out := make(map[model.Language]string, len(byLang))
	for name, source := range byLang {
		lang, ok := harness.ParseLanguage(string(name))
		if !ok {
			return nil, appErr.ValidationError(field, "unsupported language "+string(name))
		}
		if _, dup := out[lang]; dup {
			return nil, appErr.ValidationError(field, "duplicate language "+string(lang))
		}
		out[lang] = source
	}
	return out, nil
}

// HiddenCases is the pack content: hidden cases that do not repeat a visible
// case, in authoring order.
func (d *ProblemDefinition) HiddenCases() []model.TestCase {
	seen := make(map[model.TestCase]struct{}, len(d.VisibleTestCases)+len(d.HiddenTestCases))
	for _, tc := range d.VisibleTestCases {
		seen[model.TestCase{Input: tc.Input, Output: tc.Output}] = struct{}{}
	}
	out := make([]model.TestCase, 0, len(d.HiddenTestCases))
	for _, tc := range d.HiddenTestCases {
		key := model.TestCase{Input: tc.Input, Output: tc.Output}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tc)
	}
	return out
}

// PackKey is the object key of the problem's hidden case pack.
func (d *ProblemDefinition) PackKey(prefix string) string {
	return fmt.Sprintf("%s%d/cases.json.zst", prefix, d.ID)
}

// Record returns the row to upsert once the pack is stored.
func (d *ProblemDefinition) Record(packKey, packSum string) *problemRepo.ProblemRecord {
	return &problemRepo.ProblemRecord{
		ID:                d.ID,
		Title:             d.Title,
		Signature:         d.Signature,
		VisibleTestCases:  d.VisibleTestCases,
		StartCode:         d.StartCode,
		ReferenceSolution: d.ReferenceSolution,
		DriverTemplates:   d.DriverTemplates,
		TimeLimitMs:       d.TimeLimitMs,
		MemoryLimitKb:     d.MemoryLimitKb,
		HiddenPackKey:     packKey,
		HiddenPackSHA256:  packSum,
	}
}

// Problem is the judgeable view used to verify reference solutions.
func (d *ProblemDefinition) Problem() *model.Problem {
	return &model.Problem{
		ID:                d.ID,
		Title:             d.Title,
		Signature:         d.Signature,
		VisibleTestCases:  d.VisibleTestCases,
		HiddenTestCases:   d.HiddenCases(),
		StartCode:         d.StartCode,
		ReferenceSolution: d.ReferenceSolution,
		DriverTemplates:   d.DriverTemplates,
		TimeLimitMs:       d.TimeLimitMs,
		MemoryLimitKb:     d.MemoryLimitKb,
	}
}
