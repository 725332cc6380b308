package logger

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// PromptPicker asks for a directory on a line-oriented terminal.
// An empty answer counts as a cancelled pick.
type PromptPicker struct {
	In  io.Reader
	Out io.Writer
}

// PickDirectory prompts for a path and checks that it names an existing directory.
func (p PromptPicker) PickDirectory(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	if p.Out != nil {
		fmt.Fprint(p.Out, "Save directory: ")
	}

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, fmt.Errorf("read directory: %w", err)
	}

	dir := strings.TrimSpace(line)
	if dir == "" {
		return "", false, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", false, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", false, fmt.Errorf("%s is not a directory", dir)
	}
	return dir, true, nil
}
