package engine

import (
	"context"
	"os/exec"

	"github.com/shirou/gopsutil/v3/process"
)

// runningExecutables lists executable paths of visible processes. Processes
// whose executable cannot be read are skipped.
func runningExecutables(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	exes := make([]string, 0, len(procs))
	for _, p := range procs {
		exe, err := p.ExeWithContext(ctx)
		if err != nil || exe == "" {
			continue
		}
		exes = append(exes, exe)
	}
	return exes, nil
}

// startDetached starts the engine without tying it to the caller's context.
// The process is reaped in the background.
func startDetached(binary string, args []string, dir string) (int, error) {
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	go func() { _ = cmd.Wait() }()
	return cmd.Process.Pid, nil
}
