package envs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseEnvList(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected []string
	}{
		{
			name: "typical listing",
			output: `# conda environments:
#
base                  *  /opt/conda
yolo                     /opt/conda/envs/yolo
detectron                /opt/conda/envs/detectron
`,
			expected: []string{"base", "yolo", "detectron"},
		},
		{
			name:     "empty output",
			output:   "",
			expected: nil,
		},
		{
			name: "comments only",
			output: `# conda environments:
#
`,
			expected: nil,
		},
		{
			name: "prefix-only rows are skipped",
			output: `# conda environments:
yolo                     /opt/conda/envs/yolo
                         /tmp/throwaway-prefix
/home/user/envs/adhoc
`,
			expected: []string{"yolo"},
		},
		{
			name:     "windows line endings",
			output:   "# conda environments:\r\nbase  *  C:\\conda\r\nyolo     C:\\conda\\envs\\yolo\r\n",
			expected: []string{"base", "yolo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEnvList(tt.output)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, got)

					break
				}
			}
		})
	}
}

// fakeRunner scripts Exec responses per command prefix and records calls.
type fakeRunner struct {
	calls     []string
	responses map[string]execResult
}

type execResult struct {
	stdout string
	stderr string
	status int
	err    error
}

func (r *fakeRunner) Exec(command string) (string, string, int, error) {
	r.calls = append(r.calls, command)
	for prefix, res := range r.responses {
		if strings.HasPrefix(command, prefix) {
			return res.stdout, res.stderr, res.status, res.err
		}
	}

	return "", "", 0, nil
}

func (r *fakeRunner) called(prefix string) bool {
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}

	return false
}

const envListing = `# conda environments:
base     /opt/conda
yolo     /opt/conda/envs/yolo
`

func TestBootstrapEnsure(t *testing.T) {
	tests := []struct {
		name          string
		env           string
		responses     map[string]execResult
		expectCreate  bool
		expectInstall bool
		expectedError string
	}{
		{
			name: "existing provisioned environment untouched",
			env:  "yolo",
			responses: map[string]execResult{
				"conda env list": {stdout: envListing},
			},
		},
		{
			name: "missing environment is created and provisioned",
			env:  "fresh",
			responses: map[string]execResult{
				"conda env list":               {stdout: envListing},
				"conda run -n fresh python -c": {status: 1},
			},
			expectCreate:  true,
			expectInstall: true,
		},
		{
			name: "existing environment missing the training package",
			env:  "yolo",
			responses: map[string]execResult{
				"conda env list":              {stdout: envListing},
				"conda run -n yolo python -c": {status: 1},
			},
			expectInstall: true,
		},
		{
			name: "listing failure propagates",
			env:  "yolo",
			responses: map[string]execResult{
				"conda env list": {err: errors.New("connection reset")},
			},
			expectedError: "error listing remote environments",
		},
		{
			name: "create failure propagates",
			env:  "fresh",
			responses: map[string]execResult{
				"conda env list":  {stdout: envListing},
				"conda create -n": {status: 1, stderr: "CondaError: out of disk"},
			},
			expectedError: "error creating environment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{responses: tt.responses}
			boot := NewCondaBootstrap(runner, testLogger())

			err := boot.Ensure(tt.env)
			if tt.expectedError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.expectedError) {
					t.Fatalf("expected error containing %q, got %v", tt.expectedError, err)
				}

				return
			}
			if err != nil {
				t.Fatalf("Ensure: %v", err)
			}

			if got := runner.called("conda create"); got != tt.expectCreate {
				t.Errorf("create issued = %v, expected %v", got, tt.expectCreate)
			}
			installPrefix := fmt.Sprintf("conda run -n %s pip install", tt.env)
			if got := runner.called(installPrefix); got != tt.expectInstall {
				t.Errorf("install issued = %v, expected %v", got, tt.expectInstall)
			}
		})
	}
}
