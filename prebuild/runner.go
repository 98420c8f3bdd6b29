package prebuild

import (
	"bytes"
	"os/exec"

	"github.com/rs/zerolog"
)

// Runner executes the external helper tools (mount, umount, magiskboot).
// The pipeline only talks to this interface, so tests can record commands
// instead of needing root and a magiskboot install.
type Runner interface {
	Run(dir string, name string, args ...string) error
}

// ExecRunner runs the tools as real child processes. Output is captured and
// only shown on failure, or always when Debug is set.
type ExecRunner struct {
	Logger zerolog.Logger
	Debug  bool
}

func (r *ExecRunner) Run(dir string, name string, args ...string) error {
	if r.Debug {
		r.Logger.Info().Str("cwd", dir).Strs("args", args).Str("cmd", name).Msg("Running command")
	}
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	err := cmd.Run()
	if err != nil {
		r.Logger.Warn().Err(err).Str("cmd", name).Str("output", output.String()).Msg("Command failed")
		return err
	}
	if r.Debug && output.Len() > 0 {
		r.Logger.Info().Str("cmd", name).Msg(output.String())
	}
	return nil
}
