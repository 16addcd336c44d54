// Package casefile loads grading scenarios for a lesson from a YAML file.
//
//	test_cases:
//	  - stdin: "3\n"
//	    expected_output: "9"
//	    description: squares the input
//	data_files:
//	  - name: numbers
//	    path: data/numbers.csv
//
// Data file paths are relative to the directory holding the cases file; the same
// relative path is where the file is staged next to the learner's script.
package casefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dkedar7/pyshala/internal/domain"
)

// Cases is a parsed cases file with data file contents loaded.
type Cases struct {
	TestCases []domain.TestCase
	DataFiles []domain.DataFile
}

type fileFormat struct {
	TestCases []testCaseEntry `yaml:"test_cases"`
	DataFiles []dataFileEntry `yaml:"data_files"`
}

type testCaseEntry struct {
	Stdin          string `yaml:"stdin"`
	ExpectedOutput string `yaml:"expected_output"`
	Description    string `yaml:"description"`
	Hidden         bool   `yaml:"hidden"`
}

type dataFileEntry struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// Load reads and parses the cases file at path.
func Load(path string) (*Cases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("casefile: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes a cases document and reads data files relative to baseDir.
// Unknown keys are rejected.
func Parse(data []byte, baseDir string) (*Cases, error) {
	var doc fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("casefile: decode: %w", err)
	}

	cases := &Cases{
		TestCases: make([]domain.TestCase, 0, len(doc.TestCases)),
		DataFiles: make([]domain.DataFile, 0, len(doc.DataFiles)),
	}
	for _, tc := range doc.TestCases {
		cases.TestCases = append(cases.TestCases, domain.TestCase{
			Stdin:          tc.Stdin,
			ExpectedOutput: tc.ExpectedOutput,
			Description:    tc.Description,
			Hidden:         tc.Hidden,
		})
	}

	for _, df := range doc.DataFiles {
		name := df.Name
		if name == "" {
			name = filepath.Base(df.Path)
		}
		cases.DataFiles = append(cases.DataFiles, domain.DataFile{Name: name, Path: df.Path})
	}
	if err := domain.ValidateDataFileLayout(cases.DataFiles); err != nil {
		return nil, fmt.Errorf("casefile: %w", err)
	}

	for i, f := range cases.DataFiles {
		content, err := os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(f.CleanPath())))
		if err != nil {
			return nil, fmt.Errorf("casefile: data file %q: %w", f.Name, err)
		}
		cases.DataFiles[i].Content = content
	}
	return cases, nil
}
