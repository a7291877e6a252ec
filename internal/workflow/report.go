package workflow

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	reportIndentationConstant      = 2
	reportEncodeErrorTemplateConst = "unable to write outcome report: %w"
)

// WriteReport renders the outcome as a YAML document.
func WriteReport(writer io.Writer, outcome Outcome) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(reportIndentationConstant)
	if encodeError := encoder.Encode(outcome); encodeError != nil {
		return fmt.Errorf(reportEncodeErrorTemplateConst, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(reportEncodeErrorTemplateConst, closeError)
	}
	return nil
}
