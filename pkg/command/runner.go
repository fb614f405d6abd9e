package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner 执行外部命令（yt-dlp、ffmpeg、ffprobe、whisper-cli）
// 测试中替换为假实现
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Exec 基于 os/exec 的 Runner
type Exec struct{}

// Run 执行命令并分别捕获 stdout 与 stderr
func (Exec) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stdout.Bytes(), stderr.Bytes(), ctxErr
		}
		return stdout.Bytes(), stderr.Bytes(), &Error{Name: name, Stderr: tail(stderr.String(), 2000), Err: err}
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// Error 命令以非零状态退出
type Error struct {
	Name   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s 执行失败: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s 执行失败: %v (stderr: %s)", e.Name, e.Err, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

// tail 只保留输出末尾，错误信息通常在最后几行
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
