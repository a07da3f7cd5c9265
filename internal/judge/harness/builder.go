// Package harness assembles user solutions with per-language stdin/stdout drivers.
package harness

import (
	"bytes"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"interviewoj/internal/judge/model"
	appErr "interviewoj/pkg/errors"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// driverData is what every driver template, built-in or per-problem, renders from.
type driverData struct {
	UserCode string
	Function string
	Reads    string
	Call     string
}

// Builder composes source text; it never runs anything.
type Builder struct {
	languages map[model.Language]*languageSpec
}

// NewBuilder returns a builder for the supported languages. sandboxIDs
// overrides the execution-service id of a language, e.g. for a Judge0
// install with a different compiler set.
func NewBuilder(sandboxIDs map[model.Language]int) *Builder {
	languages := defaultLanguages()
	for lang, id := range sandboxIDs {
		if spec, ok := languages[lang]; ok && id > 0 {
			spec.sandboxID = id
		}
	}
	return &Builder{languages: languages}
}

// Languages lists the supported languages in a stable order.
func (b *Builder) Languages() []model.Language {
	out := make([]model.Language, 0, len(b.languages))
	for lang := range b.languages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SandboxID returns the execution-service language id for lang.
func (b *Builder) SandboxID(lang model.Language) (int, error) {
	spec, ok := b.languages[lang]
	if !ok {
		return 0, unsupported(lang)
	}
	return spec.sandboxID, nil
}

// Build wraps userCode with the driver for lang. templateSource replaces the
// built-in driver when non-empty. A signature without a function name means
// the problem expects a complete program, and userCode is returned as is.
func (b *Builder) Build(lang model.Language, templateSource, userCode string, shape model.Signature) (string, error) {
	spec, ok := b.languages[lang]
	if !ok {
		return "", unsupported(lang)
	}
	if strings.TrimSpace(userCode) == "" {
		return "", appErr.ValidationError("code", "required")
	}
	if spec.prepare != nil {
		userCode = spec.prepare(userCode)
	}
	if shape.Function == "" && templateSource == "" {
		return userCode, nil
	}
	data := driverData{UserCode: userCode, Function: shape.Function}
	if shape.Function != "" {
		if err := ValidateSignature(shape); err != nil {
			return "", err
		}
		args := make([]string, 0, len(shape.Params))
		reads := make([]string, 0, len(shape.Params))
		for _, p := range shape.Params {
			reads = append(reads, spec.indent+spec.read(p))
			args = append(args, p.Name)
		}
		data.Reads = strings.Join(reads, "\n")
		data.Call = spec.indent + spec.call(shape, args)
	}

	tmpl := spec.driver
	if templateSource != "" {
		custom, err := template.New(string(lang) + "-custom").Parse(templateSource)
		if err != nil {
			return "", appErr.Wrapf(err, appErr.JudgeSystemError, "parse %s driver template failed", lang)
		}
		tmpl = custom
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", appErr.Wrapf(err, appErr.JudgeSystemError, "render %s driver failed", lang)
	}
	return buf.String(), nil
}

// ValidateSignature rejects shapes the drivers cannot express.
func ValidateSignature(sig model.Signature) error {
	if !identifier.MatchString(sig.Function) {
		return appErr.ValidationError("signature.function", "invalid identifier")
	}
	if !knownType(sig.Returns) {
		return appErr.ValidationError("signature.returns", "unsupported type "+string(sig.Returns))
	}
	seen := make(map[string]struct{}, len(sig.Params))
	for _, p := range sig.Params {
		if !identifier.MatchString(p.Name) || strings.HasPrefix(p.Name, "judge") {
			return appErr.ValidationError("signature.params", "invalid parameter name "+p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return appErr.ValidationError("signature.params", "duplicate parameter "+p.Name)
		}
		seen[p.Name] = struct{}{}
		if !knownType(p.Type) {
			return appErr.ValidationError("signature.params", "unsupported type "+string(p.Type))
		}
	}
	return nil
}

func knownType(t model.ParamType) bool {
	switch t {
	case model.TypeInt, model.TypeLong, model.TypeDouble, model.TypeBool,
		model.TypeString, model.TypeIntArray, model.TypeStringArray, model.TypeIntMatrix:
		return true
	}
	return false
}

func unsupported(lang model.Language) error {
	return appErr.New(appErr.LanguageNotSupported).
		WithMessagef("language %q is not supported", string(lang)).
		WithDetail("language", string(lang))
}
