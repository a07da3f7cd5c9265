package model

import "fmt"

// Language identifies a supported source language.
type Language string

const (
	LanguageCPP        Language = "cpp"
	LanguageJava       Language = "java"
	LanguageJavaScript Language = "javascript"
)

// ParamType is the wire type of one function argument or return value.
type ParamType string

const (
	TypeInt         ParamType = "int"
	TypeLong        ParamType = "long"
	TypeDouble      ParamType = "double"
	TypeBool        ParamType = "bool"
	TypeString      ParamType = "string"
	TypeIntArray    ParamType = "int[]"
	TypeStringArray ParamType = "string[]"
	TypeIntMatrix   ParamType = "int[][]"
)

// Param is one named argument of the function under test.
type Param struct {
	Name string    `json:"name" yaml:"name"`
	Type ParamType `json:"type" yaml:"type"`
}

// Signature is the function-call shape the harness drives.
type Signature struct {
	Function string    `json:"function" yaml:"function"`
	Params   []Param   `json:"params" yaml:"params"`
	Returns  ParamType `json:"returns" yaml:"returns"`
}

// TestCase is one input/expected-output pair.
type TestCase struct {
	Input       string `json:"input" yaml:"input"`
	Output      string `json:"output" yaml:"output"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// Problem is the read-only view of an authored problem.
type Problem struct {
	ID                int64               `json:"id"`
	Title             string              `json:"title"`
	Signature         Signature           `json:"signature"`
	VisibleTestCases  []TestCase          `json:"visible_test_cases"`
	HiddenTestCases   []TestCase          `json:"hidden_test_cases"`
	StartCode         map[Language]string `json:"start_code,omitempty"`
	ReferenceSolution map[Language]string `json:"reference_solution,omitempty"`
	DriverTemplates   map[Language]string `json:"driver_templates,omitempty"`
	TimeLimitMs       int64               `json:"time_limit_ms"`
	MemoryLimitKb     int64               `json:"memory_limit_kb"`
}

// Validate checks the invariants every judged problem must hold.
func (p *Problem) Validate() error {
	if p == nil {
		return fmt.Errorf("problem is nil")
	}
	if len(p.VisibleTestCases) == 0 {
		return fmt.Errorf("problem %d has no visible test cases", p.ID)
	}
	if len(p.HiddenTestCases) == 0 {
		return fmt.Errorf("problem %d has no hidden test cases", p.ID)
	}
	if p.TimeLimitMs <= 0 {
		return fmt.Errorf("problem %d has non-positive time limit", p.ID)
	}
	if p.MemoryLimitKb <= 0 {
		return fmt.Errorf("problem %d has non-positive memory limit", p.ID)
	}
	return nil
}
