package httpapi

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validateStruct runs go-playground/validator/v10 over s and returns a
// human-readable issue per failed field, or nil if s is valid. Validation
// failures never reach the engine — CreateJob is only called once this
// returns nil, per §7's "validation errors never create a Job" policy.
func validateStruct(s any) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	issues := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, fmt.Sprintf("%s: failed %q validation", fe.Namespace(), fe.Tag()))
	}
	return issues
}
