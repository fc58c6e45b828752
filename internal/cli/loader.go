package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rsparser/internal/schema"
)

// Loader error codes.
const (
	ErrCodeNotFound      = "TYPES_DIR_NOT_FOUND"
	ErrCodeNoFiles       = "NO_CUE_FILES"
	ErrCodeScanError     = "SCAN_ERROR"
	ErrCodeLoadFailed    = "CUE_LOAD_FAILED"
	ErrCodeBuildFailed   = "CUE_BUILD_FAILED"
	ErrCodeDecodeFailed  = "CUE_DECODE_FAILED"
	ErrCodeSchemaInvalid = "SCHEMA_INVALID"
)

// LoadError represents an error that occurred during record-type loading.
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

// LoadResult contains the results of loading a record-types library.
type LoadResult struct {
	Definition *schema.LibraryDefinition
	Library    *schema.Library
	FileCount  int // Number of CUE files found
}

// LoadTypes loads CUE record-type definitions from a directory and builds
// the validated record-types library.
//
// The CUE files define a top-level "recordTypes" struct keyed by record
// type name, mirroring schema.LibraryDefinition.
func LoadTypes(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("record types directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing record types directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	var def schema.LibraryDefinition
	if err := value.Decode(&def); err != nil {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("decoding record types: %v", err)}
	}

	lib, err := schema.Build(&def)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeSchemaInvalid, Message: err.Error()}
	}

	return &LoadResult{
		Definition: &def,
		Library:    lib,
		FileCount:  len(cueFiles),
	}, nil
}

// FindCUEFiles returns the .cue files directly inside a directory.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cue") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}
