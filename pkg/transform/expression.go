package transform

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExpressionValidator checks condition and switch expressions for
// syntactic correctness before the graph is lowered.
//
// Supports:
//   - Comparison operators: >, <, >=, <=, ==, !=
//   - Logical operators: && (AND), || (OR), ! (NOT)
//   - Arithmetic operators: +, -, *, /, %
//   - Member access (resp.code) and indexing (items[0])
//   - Parentheses for precedence control
//
// Sandboxed for security - no arbitrary code execution.
type ExpressionValidator interface {
	// ValidateSyntax compiles the expression against the given variable
	// names and returns an error when it cannot ever evaluate.
	ValidateSyntax(expression string, variables []string) error
}

// exprValidator implements ExpressionValidator using github.com/expr-lang/expr
type exprValidator struct {
	programCache map[string]*vm.Program
}

// NewExpressionValidator creates a new expression validator with sandboxing
func NewExpressionValidator() ExpressionValidator {
	return &exprValidator{
		programCache: make(map[string]*vm.Program),
	}
}

// unsafePatterns are substrings that indicate an expression is trying
// to reach outside the workflow variable environment.
var unsafePatterns = []string{
	"os.",
	"exec.",
	"syscall.",
	"unsafe.",
	"__proto__",
	"readfile",
	"writefile",
}

// ValidateSyntax compiles the expression with placeholder values bound
// for every declared variable. A compile failure that is not a type
// mismatch means the expression can never evaluate.
func (v *exprValidator) ValidateSyntax(expression string, variables []string) error {
	if strings.TrimSpace(expression) == "" {
		return fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	lower := strings.ToLower(expression)
	for _, pattern := range unsafePatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: %s", ErrUnsafeExpression, pattern)
		}
	}

	if _, ok := v.programCache[expression]; ok {
		return nil
	}

	// Bind every declared variable to a placeholder map so member
	// access like resp.code compiles regardless of the runtime shape.
	env := make(map[string]interface{}, len(variables))
	for _, name := range variables {
		env[name] = map[string]interface{}{}
	}

	program, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		// Type mismatches against placeholder values are expected;
		// real values arrive only at runtime.
		if strings.Contains(err.Error(), "mismatched types") || strings.Contains(err.Error(), "invalid operation") {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	v.programCache[expression] = program
	return nil
}

// ExtractVariables returns the base variable names referenced by an
// expression. Dotted access like resp.code yields only "resp"; string
// literal contents are ignored.
func ExtractVariables(expression string) []string {
	cleaned := removeStringLiterals(expression)

	var vars []string
	seen := make(map[string]bool)

	i := 0
	for i < len(cleaned) {
		ch := cleaned[i]
		if isIdentifierStart(ch) {
			j := i
			for j < len(cleaned) && isIdentifierChar(cleaned[j]) {
				j++
			}
			word := cleaned[i:j]

			// Skip members of dotted access and keywords.
			dotted := i > 0 && cleaned[i-1] == '.'
			if !dotted && !isKeyword(word) && !seen[word] {
				seen[word] = true
				vars = append(vars, word)
			}
			i = j
		} else {
			i++
		}
	}

	return vars
}

// removeStringLiterals blanks out quoted sections so identifiers inside
// them are not mistaken for variable references.
func removeStringLiterals(expression string) string {
	var b strings.Builder
	inString := false
	var quote byte

	for i := 0; i < len(expression); i++ {
		ch := expression[i]
		if i > 0 && expression[i-1] == '\\' {
			continue
		}
		switch {
		case !inString && (ch == '\'' || ch == '"'):
			inString = true
			quote = ch
		case inString && ch == quote:
			inString = false
		case !inString:
			b.WriteByte(ch)
		}
	}

	return b.String()
}

func isIdentifierStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentifierChar(ch byte) bool {
	return isIdentifierStart(ch) || (ch >= '0' && ch <= '9')
}

// isKeyword reports whether a token is an expression keyword or
// built-in rather than a workflow variable.
func isKeyword(s string) bool {
	switch s {
	case "true", "false", "nil", "null", "and", "or", "not", "in",
		"contains", "len", "all", "any", "none", "one", "filter", "map":
		return true
	}
	return false
}
