package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "mirror-batch/internal/platform/errors"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to create script: %v", err)
	}
	return path
}

func TestResolveBin(t *testing.T) {
	tmpDir := t.TempDir()
	writeScript(t, tmpDir, "toolB", "exit 0\n")
	t.Setenv("PATH", tmpDir)

	path, err := ResolveBin("toolB")
	if err != nil {
		t.Fatalf("ResolveBin: %v", err)
	}
	if path != filepath.Join(tmpDir, "toolB") {
		t.Fatalf("unexpected path %q", path)
	}

	if _, err := ResolveBin("missing"); !apperrors.IsMissingBinary(err) {
		t.Fatalf("expected missing binary error, got %v", err)
	}
}

func TestRunCombinedInterleavesStdoutAndStderr(t *testing.T) {
	script := writeScript(t, t.TempDir(), "mixed.sh",
		"echo out1\necho err1 1>&2\necho out2\necho err2 1>&2\n")

	var buf bytes.Buffer
	outcome, err := RunCombined(context.Background(), Command{Name: script}, &buf)
	if err != nil {
		t.Fatalf("RunCombined: %v", err)
	}

	if diff := cmp.Diff("out1\nerr1\nout2\nerr2\n", buf.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
	if outcome.ExitCode != 0 || outcome.Lines != 4 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestRunCombinedPassesArgsAndDir(t *testing.T) {
	workDir := t.TempDir()
	script := writeScript(t, t.TempDir(), "args.sh", "pwd\nfor a in \"$@\"; do echo \"$a\"; done\n")

	var buf bytes.Buffer
	_, err := RunCombined(context.Background(), Command{Name: script, Args: []string{"-L1", "with space"}, Dir: workDir}, &buf)
	if err != nil {
		t.Fatalf("RunCombined: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	resolved, _ := filepath.EvalSymlinks(workDir)
	if lines[0] != workDir && lines[0] != resolved {
		t.Fatalf("expected working dir %q, got %q", workDir, lines[0])
	}
	if diff := cmp.Diff([]string{"-L1", "with space"}, lines[1:]); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCombinedNonZeroExitIsNotAnError(t *testing.T) {
	script := writeScript(t, t.TempDir(), "fail.sh", "echo partial\nexit 3\n")

	var buf bytes.Buffer
	outcome, err := RunCombined(context.Background(), Command{Name: script}, &buf)
	if err != nil {
		t.Fatalf("expected nil error for non-zero exit, got %v", err)
	}
	if outcome.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", outcome.ExitCode)
	}
	if buf.String() != "partial\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRunCombinedMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := RunCombined(context.Background(), Command{Name: "httrack"}, &bytes.Buffer{})
	if !apperrors.IsMissingBinary(err) {
		t.Fatalf("expected missing binary error, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRunCombinedWriteErrorStopsProcess(t *testing.T) {
	script := writeScript(t, t.TempDir(), "chatty.sh", "while true; do echo line; sleep 0.05; done\n")

	done := make(chan error, 1)
	go func() {
		_, err := RunCombined(context.Background(), Command{Name: script}, failingWriter{})
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "disk full") {
			t.Fatalf("expected write error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunCombined did not return after write error")
	}
}

type lineChan chan string

func (c lineChan) Write(p []byte) (int, error) {
	c <- strings.TrimSpace(string(p))
	return len(p), nil
}

func TestRunCombinedCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	script := writeScript(t, t.TempDir(), "block.sh", "\necho $$\nwhile true; do sleep 1; done\n")

	out := make(lineChan, 1)
	done := make(chan error, 1)

	go func() {
		_, err := RunCombined(ctx, Command{Name: script}, out)
		done <- err
	}()

	var pidLine string
	select {
	case pidLine = <-out:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for process pid")
	}
	if pidLine == "" {
		t.Fatal("empty pid line from process")
	}

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context cancellation, got %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("RunCombined did not return after cancellation")
	}

	procPath := filepath.Join("/proc", pidLine)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(procPath); os.IsNotExist(err) {
			break
		} else if err != nil {
			t.Fatalf("stat %s: %v", procPath, err)
		}

		if time.Now().After(deadline) {
			t.Fatalf("process %s still running after cancellation", pidLine)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestCommandString(t *testing.T) {
	if got := (Command{Name: "httrack"}).String(); got != "httrack" {
		t.Fatalf("unexpected %q", got)
	}
	if got := (Command{Name: "httrack", Args: []string{"https://a.pl", "-O", "x"}}).String(); got != "httrack https://a.pl -O x" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestRunCombinedSplitsCarriageReturns(t *testing.T) {
	script := writeScript(t, t.TempDir(), "progress.sh", `printf 'a\rb\r\nc\nd\r'`+"\n")

	var buf bytes.Buffer
	outcome, err := RunCombined(context.Background(), Command{Name: script}, &buf)
	if err != nil {
		t.Fatalf("RunCombined: %v", err)
	}
	if diff := cmp.Diff("a\nb\nc\nd\n", buf.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
	if outcome.Lines != 4 {
		t.Fatalf("expected 4 lines, got %d", outcome.Lines)
	}
}

func TestScanLines(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"a\nb\n":     {"a", "b"},
		"a\r\nb":     {"a", "b"},
		"10%\r20%\r": {"10%", "20%"},
		"x\r\r\ny":   {"x", "", "y"},
		"":           nil,
		"no newline": {"no newline"},
		"\n":         {""},
	}

	for input, want := range tests {
		input, want := input, want
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			sc := bufio.NewScanner(strings.NewReader(input))
			sc.Split(scanLines)
			var got []string
			for sc.Scan() {
				got = append(got, sc.Text())
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("scanLines(%q) mismatch (-want +got):\n%s", input, diff)
			}
		})
	}
}
