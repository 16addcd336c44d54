package domain

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// TimedOutExitCode is the exit code recorded when the deadline killed the process.
const TimedOutExitCode = -1

// ScriptName is the file the learner's code is written to inside the workspace.
const ScriptName = "main.py"

const timedOutMessage = "Execution timed out"

// ExecutionRequest is passed to the executor for a single program invocation.
type ExecutionRequest struct {
	Code  string
	Stdin string
	// Timeout overrides the executor's configured deadline when positive.
	Timeout   time.Duration
	DataFiles []DataFile
}

// ExecutionResult is returned by the executor after one program invocation.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// IsSuccess reports whether the program finished in time with exit code 0.
func (r *ExecutionResult) IsSuccess() bool {
	return !r.TimedOut && r.ExitCode == 0
}

// ErrorMessage returns the human-readable failure reason, or "" on success.
func (r *ExecutionResult) ErrorMessage() string {
	switch {
	case r.TimedOut:
		return timedOutMessage
	case r.Stderr != "":
		return r.Stderr
	case r.ExitCode != 0:
		return fmt.Sprintf("Process exited with code %d", r.ExitCode)
	}
	return ""
}

type executionResultJSON struct {
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	ExitCode     int    `json:"exit_code"`
	TimedOut     bool   `json:"timed_out"`
	DurationMs   int64  `json:"duration_ms"`
	IsSuccess    bool   `json:"is_success"`
	ErrorMessage string `json:"error_message"`
}

// MarshalJSON includes the derived is_success and error_message fields.
func (r ExecutionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(executionResultJSON{
		Stdout:       r.Stdout,
		Stderr:       r.Stderr,
		ExitCode:     r.ExitCode,
		TimedOut:     r.TimedOut,
		DurationMs:   r.Duration.Milliseconds(),
		IsSuccess:    r.IsSuccess(),
		ErrorMessage: r.ErrorMessage(),
	})
}

// UnmarshalJSON reads the stored fields and ignores the derived ones.
func (r *ExecutionResult) UnmarshalJSON(data []byte) error {
	var raw executionResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ExecutionResult{
		Stdout:   raw.Stdout,
		Stderr:   raw.Stderr,
		ExitCode: raw.ExitCode,
		TimedOut: raw.TimedOut,
		Duration: time.Duration(raw.DurationMs) * time.Millisecond,
	}
	return nil
}

// DataFile is an auxiliary input file staged into the workspace before execution.
// A nil Content means the file was declared but never materialized.
type DataFile struct {
	Name    string
	Path    string
	Content []byte
}

// NewDataFile builds a materialized data file.
func NewDataFile(name, relPath string, content []byte) DataFile {
	return DataFile{Name: name, Path: relPath, Content: content}
}

// HasContent reports whether the file carries bytes to stage. Empty files count.
func (f DataFile) HasContent() bool {
	return f.Content != nil
}

// CleanPath returns the slash-separated, cleaned form of Path.
func (f DataFile) CleanPath() string {
	return path.Clean(strings.ReplaceAll(f.Path, "\\", "/"))
}

// ValidatePath checks that Path stays inside the workspace.
func (f DataFile) ValidatePath() error {
	if f.Path == "" {
		return fmt.Errorf("%w: %q has no path", ErrInvalidDataFile, f.Name)
	}
	if path.IsAbs(strings.ReplaceAll(f.Path, "\\", "/")) {
		return fmt.Errorf("%w: %q is absolute", ErrInvalidDataFile, f.Path)
	}
	clean := f.CleanPath()
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q escapes the workspace", ErrInvalidDataFile, f.Path)
	}
	return nil
}

// Validate checks that the file has content and a workspace-relative path.
func (f DataFile) Validate() error {
	if err := f.ValidatePath(); err != nil {
		return err
	}
	if !f.HasContent() {
		return fmt.Errorf("%w: %q", ErrDataFileContentMissing, f.Path)
	}
	return nil
}

// ValidateDataFiles validates every file, including its content, and the layout of the set.
func ValidateDataFiles(files []DataFile) error {
	for _, f := range files {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return ValidateDataFileLayout(files)
}

// ValidateDataFileLayout checks that the paths can all be staged in one workspace:
// no duplicates, no file that is also a parent directory of another, and nothing
// at or under ScriptName. Content is not checked.
func ValidateDataFileLayout(files []DataFile) error {
	paths := make(map[string]struct{}, len(files))
	for _, f := range files {
		if err := f.ValidatePath(); err != nil {
			return err
		}
		key := f.CleanPath()
		if first, _, _ := strings.Cut(key, "/"); first == ScriptName {
			return fmt.Errorf("%w: %q is reserved for the program", ErrInvalidDataFile, f.Path)
		}
		if _, dup := paths[key]; dup {
			return fmt.Errorf("%w: duplicate path %q", ErrInvalidDataFile, f.Path)
		}
		paths[key] = struct{}{}
	}
	for key := range paths {
		for dir := path.Dir(key); dir != "."; dir = path.Dir(dir) {
			if _, clash := paths[dir]; clash {
				return fmt.Errorf("%w: %q is both a file and the directory of %q", ErrInvalidDataFile, dir, key)
			}
		}
	}
	return nil
}

type dataFileOut struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type dataFileIn struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Content *[]byte `json:"content,omitempty"`
}

// MarshalJSON never writes the content back out.
func (f DataFile) MarshalJSON() ([]byte, error) {
	return json.Marshal(dataFileOut{Name: f.Name, Path: f.Path})
}

// UnmarshalJSON accepts base64 content on input.
func (f *DataFile) UnmarshalJSON(data []byte) error {
	var raw dataFileIn
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = DataFile{Name: raw.Name, Path: raw.Path}
	if raw.Content != nil {
		f.Content = *raw.Content
		if f.Content == nil {
			f.Content = []byte{}
		}
	}
	return nil
}

// Declarations strips content from a list of data files.
func Declarations(files []DataFile) []DataFile {
	out := make([]DataFile, len(files))
	for i, f := range files {
		out[i] = DataFile{Name: f.Name, Path: f.Path}
	}
	return out
}
