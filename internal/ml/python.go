package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"diabetes-risk/internal/features"

	"github.com/rs/zerolog/log"
)

const pythonImportCheck = "import sys, joblib, pandas; print('Python', sys.version)"

// PythonClassifier runs a joblib artifact through a short-lived Python
// process per inference. The artifact is opaque to Go; only the request and
// response JSON are shared.
type PythonClassifier struct {
	modelPath  string
	pythonPath string
	scriptPath string
	ownScript  bool
	timeout    time.Duration
}

type bridgeRequest struct {
	Features     []float64 `json:"features"`
	FeatureNames []string  `json:"feature_names"`
}

type bridgeResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Prediction    int       `json:"prediction"`
	Error         string    `json:"error,omitempty"`
}

// NewPythonClassifier locates a Python interpreter with joblib and pandas,
// prepares the inference script and runs a health check with the contract
// default vector.
func NewPythonClassifier(modelPath, pythonPath string, timeout time.Duration) (*PythonClassifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		if os.IsNotExist(err) {
			return nil, &ModelNotFoundError{Path: modelPath}
		}
		return nil, fmt.Errorf("failed to stat model artifact: %w", err)
	}

	if pythonPath == "" {
		var err error
		pythonPath, err = findPython()
		if err != nil {
			return nil, err
		}
	}

	c := &PythonClassifier{
		modelPath:  modelPath,
		pythonPath: pythonPath,
		timeout:    timeout,
	}

	// Prefer a script shipped next to the artifact.
	scriptPath := filepath.Join(filepath.Dir(modelPath), "joblib_inference.py")
	if _, err := os.Stat(scriptPath); err == nil {
		c.scriptPath = scriptPath
	} else {
		path, err := createInferenceScript()
		if err != nil {
			return nil, fmt.Errorf("failed to create inference script: %w", err)
		}
		c.scriptPath = path
		c.ownScript = true
	}

	if err := c.healthCheck(); err != nil {
		c.Close()
		return nil, fmt.Errorf("model health check failed: %w", err)
	}

	log.Info().
		Str("model_path", modelPath).
		Str("python_path", pythonPath).
		Str("script_path", c.scriptPath).
		Msg("joblib model loaded through python bridge")

	return c, nil
}

func (c *PythonClassifier) Predict(ctx context.Context, x features.Vector) (int, error) {
	class, _, err := c.Evaluate(ctx, x)
	return class, err
}

func (c *PythonClassifier) PredictProba(ctx context.Context, x features.Vector) ([2]float64, error) {
	_, probs, err := c.Evaluate(ctx, x)
	return probs, err
}

func (c *PythonClassifier) Evaluate(ctx context.Context, x features.Vector) (int, [2]float64, error) {
	var probs [2]float64

	reqJSON, err := json.Marshal(bridgeRequest{Features: x.Slice(), FeatureNames: features.Names()})
	if err != nil {
		return 0, probs, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.pythonPath, c.scriptPath, c.modelPath)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("python_path", c.pythonPath).
			Str("script_path", c.scriptPath).
			Str("model_path", c.modelPath).
			Str("stderr", stderr.String()).
			Str("stdout", stdout.String()).
			Dur("timeout", c.timeout).
			Bool("context_cancelled", ctx.Err() != nil).
			Msg("Python inference execution failed")

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, probs, fmt.Errorf("prediction timeout after %v: %w", c.timeout, context.DeadlineExceeded)
		}

		// The script reports its own failures as JSON on stdout.
		var resp bridgeResponse
		if json.Unmarshal(stdout.Bytes(), &resp) == nil && resp.Error != "" {
			return 0, probs, fmt.Errorf("python inference error: %s", resp.Error)
		}
		if strings.Contains(stderr.String(), "No module named") {
			return 0, probs, fmt.Errorf("python dependency missing: %w, stderr: %s", err, stderr.String())
		}
		return 0, probs, fmt.Errorf("python inference failed: %w, stderr: %s", err, stderr.String())
	}

	var resp bridgeResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return 0, probs, fmt.Errorf("failed to parse response: %w, stdout: %s", err, stdout.String())
	}
	if resp.Error != "" {
		return 0, probs, fmt.Errorf("python inference error: %s", resp.Error)
	}
	if len(resp.Probabilities) != 2 {
		return 0, probs, fmt.Errorf("expected 2 probabilities, got %d", len(resp.Probabilities))
	}

	probs[0], probs[1] = resp.Probabilities[0], resp.Probabilities[1]
	return resp.Prediction, probs, nil
}

// Close removes the generated inference script, if any.
func (c *PythonClassifier) Close() error {
	if c.ownScript && c.scriptPath != "" {
		return os.Remove(c.scriptPath)
	}
	return nil
}

func (c *PythonClassifier) healthCheck() error {
	var v features.Vector
	copy(v[:], features.Defaults())
	_, _, err := c.Evaluate(context.Background(), v)
	return err
}

func findPython() (string, error) {
	var candidates []string

	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		candidates = append(candidates,
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
			filepath.Join(venvPath, "Scripts", "python.exe"),
		)
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		for _, root := range []string{execDir, filepath.Dir(execDir)} {
			candidates = append(candidates,
				filepath.Join(root, "venv", "bin", "python3"),
				filepath.Join(root, ".venv", "bin", "python3"),
			)
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, path)
		}
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		cmd := exec.Command(candidate, "-c", pythonImportCheck)
		if output, err := cmd.Output(); err == nil && strings.Contains(string(output), "Python 3") {
			log.Info().Str("python_path", candidate).Msg("Using Python interpreter")
			return candidate, nil
		}
	}

	return "", errors.New("no Python 3 interpreter with joblib and pandas found; set PYTHON_PATH")
}

func createInferenceScript() (string, error) {
	f, err := os.CreateTemp("", "joblib_inference_*.py")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString(inferenceScript); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

const inferenceScript = `#!/usr/bin/env python3
import json
import sys

def fail(msg):
    print(json.dumps({"error": msg}))
    sys.exit(1)

try:
    import joblib
    import pandas as pd
except ImportError as e:
    fail("missing dependency: %s" % e)

def main():
    if len(sys.argv) != 2:
        fail("usage: joblib_inference.py <model_path>")
    try:
        request = json.load(sys.stdin)
        model = joblib.load(sys.argv[1])
        frame = pd.DataFrame([request["features"]], columns=request["feature_names"])
        prediction = int(model.predict(frame)[0])
        probabilities = [float(p) for p in model.predict_proba(frame)[0]]
        print(json.dumps({"prediction": prediction, "probabilities": probabilities}))
    except Exception as e:
        fail(str(e))

if __name__ == "__main__":
    main()
`
