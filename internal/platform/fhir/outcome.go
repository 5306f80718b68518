package fhir

const (
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"

	IssueTypeProcessing = "processing"
	IssueTypeNotFound   = "not-found"
	IssueTypeInvalid    = "invalid"
	IssueTypeConflict   = "conflict"
	IssueTypeStructure  = "structure"
	IssueTypeThrottled  = "throttled"
)

// OperationOutcome is returned on the /fhir routes for errors and for import
// results with per-resource issues.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue:        []OperationOutcomeIssue{{Severity: severity, Code: code, Diagnostics: diagnostics}},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, diagnostics)
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, resourceType+"/"+id+" not found")
}

// WarningsOutcome lists each message as a warning issue. An empty list yields
// a single informational issue.
func WarningsOutcome(messages []string) *OperationOutcome {
	if len(messages) == 0 {
		return NewOperationOutcome(IssueSeverityInformation, IssueTypeProcessing, "All resources processed")
	}
	oo := &OperationOutcome{ResourceType: "OperationOutcome"}
	for _, m := range messages {
		oo.Issue = append(oo.Issue, OperationOutcomeIssue{Severity: IssueSeverityWarning, Code: IssueTypeProcessing, Diagnostics: m})
	}
	return oo
}
