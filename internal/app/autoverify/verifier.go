package autoverify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"polyboard/internal/common"
	"polyboard/internal/domain/model"
)

// VerificationTimeout bounds one run of the external verifier. On timeout the
// wait is abandoned; the verifier process may keep running as an orphan.
const VerificationTimeout = 60 * time.Second

// ExternalVerifier replays a solve's log file and reports measured facts.
// Implementations return the parsed facts together with their raw JSON, which
// is persisted verbatim in the audit trail.
type ExternalVerifier interface {
	Verify(ctx context.Context, logFile []byte) (*model.VerificationFacts, json.RawMessage, error)
}

// ProgramVerifier shells out to the analyzer binary ("<path> verify <file>").
// Exactly one invocation per solve; no retries.
type ProgramVerifier struct {
	BinPath string
}

func NewProgramVerifier(binPath string) *ProgramVerifier {
	return &ProgramVerifier{BinPath: binPath}
}

func (v *ProgramVerifier) Verify(ctx context.Context, logFile []byte) (*model.VerificationFacts, json.RawMessage, error) {
	f, err := os.CreateTemp("", "solve-evidence-*.log")
	if err != nil {
		return nil, nil, fmt.Errorf("verifier: create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(logFile); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("verifier: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, nil, fmt.Errorf("verifier: close temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, VerificationTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.BinPath, "verify", f.Name())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, common.ErrVerificationTimeout
		}
		return nil, nil, fmt.Errorf("verifier: %s: %w (stderr: %s)", v.BinPath, err, stderr.String())
	}

	return ParseVerifierOutput(stdout.Bytes(), stderr.Bytes())
}

// ParseVerifierOutput decodes the analyzer's stdout, a JSON array whose first
// element is the verification facts. An empty array or malformed output is a
// verifier failure carrying the captured stderr for diagnostics.
func ParseVerifierOutput(stdout, stderr []byte) (*model.VerificationFacts, json.RawMessage, error) {
	var reports []json.RawMessage
	if err := json.Unmarshal(stdout, &reports); err != nil {
		return nil, nil, fmt.Errorf("verifier: malformed output: %w. stderr:\n%s", err, stderr)
	}
	if len(reports) == 0 {
		return nil, nil, fmt.Errorf("verifier: no verification output. stderr:\n%s", stderr)
	}

	var facts model.VerificationFacts
	if err := json.Unmarshal(reports[0], &facts); err != nil {
		return nil, nil, fmt.Errorf("verifier: malformed report: %w. stderr:\n%s", err, stderr)
	}
	return &facts, reports[0], nil
}
