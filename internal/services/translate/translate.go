// Package translate wraps the neural machine-translation collaborator as an
// explicit resource handle. The model offloads weights to a scratch
// directory while loaded; Close removes it on every exit path, replacing the
// process-global model state the pipeline used to rely on.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dubflow/dubflow/internal/utils"
)

// Config selects the model and language pair for a translator handle
type Config struct {
	// Command is the translation helper CLI (default "nllb-translate")
	Command string
	// Model is the checkpoint name passed to the helper
	Model string
	// SourceLang and TargetLang are FLORES-200 language codes
	SourceLang string
	TargetLang string
	// WorkDir hosts the model offload scratch directory
	WorkDir string
}

func (c Config) withDefaults() Config {
	if c.Command == "" {
		c.Command = "nllb-translate"
	}
	if c.Model == "" {
		c.Model = "facebook/nllb-200-distilled-600M"
	}
	return c
}

// CommandRunner abstracts the helper invocation with stdin/stdout piping
type CommandRunner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

func realRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var out bytes.Buffer
	var errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w (stderr: %s)", err, errBuf.String())
	}
	return out.Bytes(), nil
}

// Translator is a live handle to the translation model
type Translator struct {
	cfg        Config
	run        CommandRunner
	offloadDir string
	closed     bool
}

// New acquires a translator handle and its offload scratch directory
func New(cfg Config) (*Translator, error) {
	return NewWithRunner(cfg, realRunner)
}

// NewWithRunner acquires a handle with a mockable command runner
func NewWithRunner(cfg Config, run CommandRunner) (*Translator, error) {
	cfg = cfg.withDefaults()
	if cfg.SourceLang == "" || cfg.TargetLang == "" {
		return nil, fmt.Errorf("source and target languages are required")
	}

	offloadDir, err := os.MkdirTemp(cfg.WorkDir, "offload-")
	if err != nil {
		return nil, fmt.Errorf("failed to create offload directory: %w", err)
	}

	return &Translator{cfg: cfg, run: run, offloadDir: offloadDir}, nil
}

// OffloadDir exposes the scratch directory path for inspection
func (t *Translator) OffloadDir() string { return t.offloadDir }

type translateRequest struct {
	Texts []string `json:"texts"`
}

type translateResponse struct {
	Translations []string `json:"translations"`
}

// Translate renders a batch of source-language texts into the target
// language, preserving order.
func (t *Translator) Translate(ctx context.Context, texts []string) ([]string, error) {
	if t.closed {
		return nil, fmt.Errorf("translator is closed")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	stdin, err := json.Marshal(translateRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode translation request: %w", err)
	}

	args := []string{
		"--model", t.cfg.Model,
		"--src-lang", t.cfg.SourceLang,
		"--tgt-lang", t.cfg.TargetLang,
		"--offload-dir", t.offloadDir,
	}
	out, err := t.run(ctx, t.cfg.Command, args, stdin)
	if err != nil {
		return nil, fmt.Errorf("translation helper failed: %w", err)
	}

	var resp translateResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse translation output: %w", err)
	}
	if len(resp.Translations) != len(texts) {
		return nil, fmt.Errorf("translation count mismatch: sent %d, got %d", len(texts), len(resp.Translations))
	}

	return resp.Translations, nil
}

// Close releases the handle and removes the offload directory. Safe to call
// more than once.
func (t *Translator) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	if t.offloadDir != "" && filepath.IsAbs(t.offloadDir) {
		if err := os.RemoveAll(t.offloadDir); err != nil {
			utils.LogWarning("Failed to remove offload directory %s: %v", t.offloadDir, err)
			return err
		}
	}
	return nil
}
