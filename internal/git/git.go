package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// HeadCommit returns the commit checked out in the repository containing dir.
func HeadCommit(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ModifiedFiles lists the paths with uncommitted changes, relative to the
// repository root.
func ModifiedFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseStatus(out), nil
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return output, nil
}

func parseStatus(output []byte) []string {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var files []string
	for scanner.Scan() {
		line := scanner.Text()
		// "XY path" or "XY old -> new"
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		if _, renamed, ok := strings.Cut(path, " -> "); ok {
			path = renamed
		}
		files = append(files, strings.Trim(path, `"`))
	}
	return files
}
