package command

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

// testEnv runs the CLI against a file backend in a temporary directory.
type testEnv struct {
	t     *testing.T
	dir   string
	input string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{t: t, dir: t.TempDir()}
}

func (e *testEnv) configPath() string {
	return filepath.Join(e.dir, "cli.yaml")
}

func (e *testEnv) app(out, errOut *bytes.Buffer) *cli.App {
	app := App()
	app.Writer = out
	app.ErrWriter = errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	if e.input != "" {
		app.Reader = strings.NewReader(e.input)
	}
	return app
}

// run executes one invocation and returns its standard output.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{
		"mirrorsync-cli",
		"--config", e.configPath(),
		"--backend", "file",
		"--dir", filepath.Join(e.dir, "data"),
	}, args...)
	err := e.app(&out, &errOut).Run(full)
	return out.String(), err
}

// mustRun fails the test when the invocation fails.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("%v: %v", args, err)
	}
	return out
}
