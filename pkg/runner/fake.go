package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FakeResponse is the scripted result of a FakeRunner call
type FakeResponse struct {
	Output string
	Err    error
	// Files are written next to cmd.OutputFile, keyed by file name
	Files map[string]string
}

// FakeRunner records commands and replays scripted responses. It is used by
// tests of packages that shell out.
type FakeRunner struct {
	mu        sync.Mutex
	Commands  []Command
	Responses map[string]FakeResponse // keyed by tool name
	Default   FakeResponse
}

// Run implements Runner
func (f *FakeRunner) Run(_ context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.Commands = append(f.Commands, cmd)
	resp, ok := f.Responses[cmd.Name]
	if !ok {
		resp = f.Default
	}
	f.mu.Unlock()

	if cmd.OutputFile != "" {
		dir := filepath.Dir(cmd.OutputFile)
		_ = os.MkdirAll(dir, 0755)
		for name, content := range resp.Files {
			_ = os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
		}
		writeOutput(cmd.OutputFile, resp.Output, resp.Err)
	}
	return Result{Output: resp.Output}, resp.Err
}

// Last returns the most recent command
func (f *FakeRunner) Last() Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Commands) == 0 {
		return Command{}
	}
	return f.Commands[len(f.Commands)-1]
}

// Joined returns the most recent command line
func (f *FakeRunner) Joined() string {
	c := f.Last()
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}
