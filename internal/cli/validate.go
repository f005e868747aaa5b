package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantprep/quantprep/internal/compiler"
)

// ValidationResult holds validation results for a graph document.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph-file-or-dir>",
		Short: "Validate a graph document without running the pass",
		Long: `Validate a CUE graph document: compile it, check annotation
references, and lint share_with chains for cycles. No observers are
inserted and nothing is written.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, err := LoadGraph(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			// Compile errors are a property of the document, not the
			// command invocation.
			if isCompileCode(loadErr.Code) {
				return outputValidationErrors(formatter, []compiler.ValidationError{{
					Field:   "graph",
					Message: loadErr.Message,
					Code:    loadErr.Code,
				}}, nil)
			}
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error())
	}

	formatter.VerboseLog("Loaded %d CUE file(s) from %s", result.FileCount, path)
	formatter.VerboseLog("Graph has %d node(s)", len(result.Graph.Nodes()))

	validationErrors := compiler.Validate(result.Graph)
	warnings := compiler.AnalyzeSharing(result.Graph)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors, warnings)
	}
	return outputValidateSuccess(formatter, warnings)
}

func isCompileCode(code string) bool {
	switch code {
	case ErrCodeInvalidNode, ErrCodeInvalidArgs, ErrCodeInvalidAnnotation, ErrCodeNoGraph, ErrCodeBuildFailed:
		return true
	}
	return false
}

func outputValidateSuccess(formatter *OutputFormatter, warnings []compiler.CycleWarning) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Warnings: warnings})
	}

	fmt.Fprintln(formatter.Writer, "graph valid")
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "warning: %s\n", w.Message)
	}
	return nil
}

func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError, warnings []compiler.CycleWarning) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs, Warnings: warnings},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
	}
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s\n", w.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
