package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/quantprep/quantprep/internal/compiler"
	"github.com/quantprep/quantprep/internal/ir"
)

// LoadResult contains the result of loading a graph document.
type LoadResult struct {
	Graph     *ir.Graph
	CUEValue  cue.Value // raw value for additional processing
	FileCount int
}

// LoadError represents an error that occurred during graph loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeNoGraph     = "E007" // No graph field in document

	// Graph compile errors
	ErrCodeInvalidNode       = "E011" // Bad node declaration
	ErrCodeInvalidArgs       = "E012" // Bad argument list
	ErrCodeInvalidAnnotation = "E013" // Bad annotation block or spec
)

// LoadGraph loads and compiles a graph document from a CUE file or a
// directory of CUE files. Directories are loaded as a single unified
// instance, so a graph may be split across files.
func LoadGraph(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing graph path: %v", err)}
	}

	var value cue.Value
	fileCount := 1
	ctx := cuecontext.New()

	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(cueFiles) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		fileCount = len(cueFiles)

		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
		}
		inst := instances[0]
		if inst.Err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
		}
		value = ctx.BuildInstance(inst)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
		}
		value = ctx.CompileString(string(data), cue.Filename(path))
	}

	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	graphVal := value.LookupPath(cue.ParsePath("graph"))
	if !graphVal.Exists() {
		return nil, &LoadError{Code: ErrCodeNoGraph, Message: "document has no top-level graph field"}
	}

	g, err := compiler.CompileGraph(graphVal)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{Graph: g, CUEValue: value, FileCount: fileCount}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with
// position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// MapFieldToErrorCode maps a compile error field path to an error code.
// Field paths are hierarchical ("nodes.cat1.annotation.inputs"), so the
// most specific suffix wins.
func MapFieldToErrorCode(field string) string {
	switch {
	case strings.Contains(field, "annotation"):
		return ErrCodeInvalidAnnotation
	case strings.HasSuffix(field, "args"), strings.HasSuffix(field, "kwargs"):
		return ErrCodeInvalidArgs
	case strings.HasPrefix(field, "nodes"), field == "op", field == "target":
		return ErrCodeInvalidNode
	default:
		return ErrCodeGeneric
	}
}
