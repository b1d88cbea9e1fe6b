package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandSource runs an external capture tool through sh -c. The command may
// use {account}, {count} and {since}; each is substituted shell-quoted. The
// tool prints one screenshot path per line.
type CommandSource struct {
	command string
}

func NewCommandSource(command string) *CommandSource {
	return &CommandSource{command: command}
}

func (c *CommandSource) Name() string {
	return "command"
}

func (c *CommandSource) Available() bool {
	fields := strings.Fields(c.command)
	if len(fields) == 0 {
		return false
	}
	if _, err := exec.LookPath("sh"); err != nil {
		return false
	}
	// Placeholders or shell syntax in the first word can't be resolved here.
	if strings.ContainsAny(fields[0], "{}$=") {
		return true
	}
	_, err := exec.LookPath(fields[0])
	return err == nil
}

func (c *CommandSource) Capture(ctx context.Context, req Request) ([]string, error) {
	line := c.Expand(req)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("capture command failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("capture command failed: %w", err)
	}

	var paths []string
	sc := bufio.NewScanner(&stdout)
	for sc.Scan() {
		if p := strings.TrimSpace(sc.Text()); p != "" {
			paths = append(paths, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read capture output: %w", err)
	}

	if req.Count > 0 && len(paths) > req.Count {
		paths = paths[:req.Count]
	}
	return paths, nil
}

// Expand returns the command line with placeholders filled in.
func (c *CommandSource) Expand(req Request) string {
	r := strings.NewReplacer(
		"{account}", shellQuote(req.Account),
		"{count}", strconv.Itoa(req.Count),
		"{since}", shellQuote(req.Since),
	)
	return r.Replace(c.command)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
