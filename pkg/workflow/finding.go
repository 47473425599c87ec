package workflow

import "fmt"

// Severity classifies a validation finding.
type Severity string

const (
	// SeverityError findings block compilation.
	SeverityError Severity = "error"
	// SeverityWarning findings are informational and never block.
	SeverityWarning Severity = "warning"
)

// FindingCode is a stable identifier for a class of validation finding.
type FindingCode string

const (
	CodeUnknownRef        FindingCode = "UNKNOWN_REF"
	CodeBadTerminals      FindingCode = "BAD_TERMINALS"
	CodeUnreachableNode   FindingCode = "UNREACHABLE_NODE"
	CodeNoPathToEnd       FindingCode = "NO_PATH_TO_END"
	CodeIllegalCycle      FindingCode = "ILLEGAL_CYCLE"
	CodeBadBranchArity    FindingCode = "BAD_BRANCH_ARITY"
	CodeMissingConfig     FindingCode = "MISSING_CONFIG"
	CodeBadConfigType     FindingCode = "BAD_CONFIG_TYPE"
	CodeUndefinedVariable FindingCode = "UNDEFINED_VARIABLE"
	CodeBadExpression     FindingCode = "BAD_EXPRESSION"
)

// Finding is a single validation result. Findings never mutate the
// workflow; they are a pure function of it.
type Finding struct {
	Severity     Severity    `json:"severity"`
	Code         FindingCode `json:"code"`
	Message      string      `json:"message"`
	NodeID       string      `json:"node_id,omitempty"`
	ConnectionID string      `json:"connection_id,omitempty"`
}

// String renders the finding for CLI output.
func (f Finding) String() string {
	if f.NodeID != "" {
		return fmt.Sprintf("%s %s: %s (node %s)", f.Severity, f.Code, f.Message, f.NodeID)
	}
	return fmt.Sprintf("%s %s: %s", f.Severity, f.Code, f.Message)
}

// Report is the outcome of validating one workflow.
type Report struct {
	Findings []Finding `json:"findings"`
	// Compilable is true when the graph is structurally sound: no
	// reference-integrity or terminal errors. Other error findings
	// still block emission but leave Compilable set.
	Compilable bool `json:"compilable"`
}

// Errors returns only the error-severity findings.
func (r *Report) Errors() []Finding {
	var errs []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			errs = append(errs, f)
		}
	}
	return errs
}

// Warnings returns only the warning-severity findings.
func (r *Report) Warnings() []Finding {
	var warns []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityWarning {
			warns = append(warns, f)
		}
	}
	return warns
}
