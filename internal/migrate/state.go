package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jellytools/jfmigrate/internal/logger"
)

// Step is one checkpointable pipeline phase.
type Step string

const (
	StepPaths   Step = "paths"
	StepIDPaths Step = "id_paths"
	StepDBIDs   Step = "db_ids"
	StepDates   Step = "dates"
)

func knownStep(s Step) bool {
	switch s {
	case StepPaths, StepIDPaths, StepDBIDs, StepDates:
		return true
	}
	return false
}

// State records pipeline progress across runs. The library database paths
// are kept so a resumed run can re-derive identifiers without redoing target
// resolution.
type State struct {
	CompletedSteps      []Step `json:"completed_steps"`
	LibraryDBSourcePath string `json:"library_db_source_path"`
	LibraryDBTargetPath string `json:"library_db_target_path"`
}

// LoadState reads the state file. A missing file yields empty state; corrupt
// content is logged and treated as empty, never fatal. Unknown step names
// are logged and dropped.
func LoadState(path string, log logger.Logger) *State {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}
	}
	if err != nil {
		log.Warnf("failed to read state file %s: %v", path, err)
		return &State{}
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		log.Warnf("failed to parse state file %s: %v", path, err)
		return &State{}
	}
	kept := s.CompletedSteps[:0]
	for _, step := range s.CompletedSteps {
		if !knownStep(step) {
			log.Warnf("unknown step in state file: %s", step)
			continue
		}
		kept = append(kept, step)
	}
	s.CompletedSteps = kept
	return &s
}

// Save writes the state file.
func (s *State) Save(path string) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// IsComplete reports whether step has been checkpointed.
func (s *State) IsComplete(step Step) bool {
	for _, done := range s.CompletedSteps {
		if done == step {
			return true
		}
	}
	return false
}

// MarkComplete checkpoints step.
func (s *State) MarkComplete(step Step) {
	if !s.IsComplete(step) {
		s.CompletedSteps = append(s.CompletedSteps, step)
	}
}

// ResetState deletes the state file so the next run starts from the
// beginning.
func ResetState(path string, log logger.Logger) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	log.Infof("progress reset, migration will start from the beginning")
	return nil
}
