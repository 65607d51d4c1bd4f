package run

import (
	"crypto/sha256"
	"fmt"

	"srgscan/domain/core"
)

// RunFingerprint identifies a run by everything that determines its output:
// the input content, the classification parameters and the code version.
// Two runs with equal fingerprints produce identical tables and hit lists.
type RunFingerprint struct {
	InputHash   core.InputHash  `json:"input_hash"`
	ConfigHash  core.ConfigHash `json:"config_hash"`
	CodeVersion string          `json:"code_version"`
	Fingerprint core.Hash       `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(inputHash core.InputHash, configHash core.ConfigHash, codeVersion string) RunFingerprint {
	return RunFingerprint{
		InputHash:   inputHash,
		ConfigHash:  configHash,
		CodeVersion: codeVersion,
		Fingerprint: computeRunFingerprint(inputHash, configHash, codeVersion),
	}
}

// computeRunFingerprint generates deterministic hash from all determinism parameters
func computeRunFingerprint(inputHash core.InputHash, configHash core.ConfigHash, codeVersion string) core.Hash {
	data := fmt.Sprintf("input:%s|config:%s|code:%s", inputHash, configHash, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
