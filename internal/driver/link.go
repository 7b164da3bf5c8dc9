package driver

import (
	"bytes"
	"fmt"
	"os/exec"
)

// LinkError is a linker failure with the captured stderr.
type LinkError struct {
	Stderr string
	Err    error
}

func (e *LinkError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("linking failed: %v\n%s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("linking failed: %v", e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// link invokes the system linker on the primary object followed by the
// foreign objects, in order. The objects themselves are scratch-owned;
// removal happens with the scratch directory, on success or failure.
func link(output, primary string, foreign []string) error {
	cc, err := exec.LookPath("cc")
	if err != nil {
		return fmt.Errorf("cc not found in PATH")
	}
	args := []string{"-o", output, primary}
	args = append(args, foreign...)
	cmd := exec.Command(cc, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &LinkError{Stderr: stderr.String(), Err: err}
	}
	return nil
}
