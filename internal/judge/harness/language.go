package harness

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"interviewoj/internal/judge/model"
)

// Judge0 CE language ids.
const (
	judge0CPP        = 54 // C++ (GCC 9.2.0)
	judge0Java       = 62 // Java (OpenJDK 13.0.1)
	judge0JavaScript = 63 // JavaScript (Node.js 12.14.0)
)

// languageSpec is everything language-specific the builder needs:
// a driver template, the sandbox id and how to emit reads and the call.
type languageSpec struct {
	sandboxID int
	driver    *template.Template
	indent    string
	read      func(p model.Param) string
	call      func(sig model.Signature, args []string) string
	prepare   func(userCode string) string
}

var publicSolution = regexp.MustCompile(`(?m)^(\s*)public\s+(final\s+)?class\s+Solution\b`)

func defaultLanguages() map[model.Language]*languageSpec {
	return map[model.Language]*languageSpec{
		model.LanguageCPP: {
			sandboxID: judge0CPP,
			driver:    template.Must(template.New("cpp").Parse(cppDriver)),
			indent:    "    ",
			read: func(p model.Param) string {
				switch p.Type {
				case model.TypeInt:
					return "int " + p.Name + " = judge_read_int();"
				case model.TypeLong:
					return "long long " + p.Name + " = judge_read_long();"
				case model.TypeDouble:
					return "double " + p.Name + " = judge_read_double();"
				case model.TypeBool:
					return "bool " + p.Name + " = judge_read_bool();"
				case model.TypeString:
					return "string " + p.Name + " = judge_read_string();"
				case model.TypeIntArray:
					return "vector<int> " + p.Name + " = judge_read_ints();"
				case model.TypeStringArray:
					return "vector<string> " + p.Name + " = judge_read_words();"
				case model.TypeIntMatrix:
					return "vector<vector<int>> " + p.Name + " = judge_read_matrix();"
				}
				return ""
			},
			call: func(sig model.Signature, args []string) string {
				return fmt.Sprintf("Solution judge_solution;\n    judge_print(judge_solution.%s(%s));", sig.Function, strings.Join(args, ", "))
			},
		},
		model.LanguageJava: {
			sandboxID: judge0Java,
			driver:    template.Must(template.New("java").Parse(javaDriver)),
			indent:    "        ",
			read: func(p model.Param) string {
				switch p.Type {
				case model.TypeInt:
					return "int " + p.Name + " = readInt();"
				case model.TypeLong:
					return "long " + p.Name + " = readLong();"
				case model.TypeDouble:
					return "double " + p.Name + " = readDouble();"
				case model.TypeBool:
					return "boolean " + p.Name + " = readBool();"
				case model.TypeString:
					return "String " + p.Name + " = readString();"
				case model.TypeIntArray:
					return "int[] " + p.Name + " = readInts();"
				case model.TypeStringArray:
					return "String[] " + p.Name + " = readWords();"
				case model.TypeIntMatrix:
					return "int[][] " + p.Name + " = readMatrix();"
				}
				return ""
			},
			call: func(sig model.Signature, args []string) string {
				return fmt.Sprintf("print(new Solution().%s(%s));", sig.Function, strings.Join(args, ", "))
			},
			// Judge0 compiles Main.java, so only Main may be public.
			prepare: func(userCode string) string {
				return publicSolution.ReplaceAllString(userCode, "${1}${2}class Solution")
			},
		},
		model.LanguageJavaScript: {
			sandboxID: judge0JavaScript,
			driver:    template.Must(template.New("javascript").Parse(javascriptDriver)),
			read: func(p model.Param) string {
				switch p.Type {
				case model.TypeInt:
					return "const " + p.Name + " = judgeReadInt();"
				case model.TypeLong:
					return "const " + p.Name + " = judgeReadLong();"
				case model.TypeDouble:
					return "const " + p.Name + " = judgeReadDouble();"
				case model.TypeBool:
					return "const " + p.Name + " = judgeReadBool();"
				case model.TypeString:
					return "const " + p.Name + " = judgeReadString();"
				case model.TypeIntArray:
					return "const " + p.Name + " = judgeReadInts();"
				case model.TypeStringArray:
					return "const " + p.Name + " = judgeReadWords();"
				case model.TypeIntMatrix:
					return "const " + p.Name + " = judgeReadMatrix();"
				}
				return ""
			},
			call: func(sig model.Signature, args []string) string {
				result := fmt.Sprintf("%s(%s)", sig.Function, strings.Join(args, ", "))
				switch sig.Returns {
				case model.TypeDouble:
					return "console.log(Number(" + result + ").toFixed(5));"
				case model.TypeBool:
					return "console.log(" + result + " ? 'true' : 'false');"
				case model.TypeIntArray, model.TypeStringArray:
					return "console.log(" + result + ".join(' '));"
				case model.TypeIntMatrix:
					return "console.log(" + result + ".map((row) => row.join(' ')).join('\\n'));"
				}
				return "console.log(String(" + result + "));"
			},
		},
	}
}

// ParseLanguage accepts the canonical names plus common aliases.
func ParseLanguage(name string) (model.Language, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cpp", "c++", "cxx":
		return model.LanguageCPP, true
	case "java":
		return model.LanguageJava, true
	case "javascript", "js", "node":
		return model.LanguageJavaScript, true
	}
	return "", false
}
