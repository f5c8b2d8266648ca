package extraction

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lovbench/lovrank/internal/pkg/errors"
)

// ManifestFile is the name of the run manifest inside the run directory.
const ManifestFile = "manifest.yaml"

// Manifest describes one extraction run.
type Manifest struct {
	RunID             string    `yaml:"run_id" json:"run_id"`
	Mode              string    `yaml:"mode" json:"mode"`
	Features          []string  `yaml:"features" json:"features"`
	GroundTruth       string    `yaml:"ground_truth,omitempty" json:"ground_truth,omitempty"`
	GroundTruthSHA256 string    `yaml:"ground_truth_sha256,omitempty" json:"ground_truth_sha256,omitempty"`
	Filter            string    `yaml:"filter,omitempty" json:"filter,omitempty"`
	Rows              int       `yaml:"rows" json:"rows"`
	Files             []string  `yaml:"files,omitempty" json:"files,omitempty"`
	StartedAt         time.Time `yaml:"started_at" json:"started_at"`
	CompletedAt       time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`

	// Dir is the run directory; it is not serialised.
	Dir string `yaml:"-" json:"-"`
}

// Write stores m as YAML at path.
func (m *Manifest) Write(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.InternalError("encoding manifest", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.IOError("writing manifest", err)
	}
	return nil
}

// ReadManifest loads a manifest written by Write.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IOError("reading manifest", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "decoding manifest", err)
	}
	return &m, nil
}
