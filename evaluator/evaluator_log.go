package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/podhmo/roller/object"
)

// logc logs a message with the current function context from the call stack.
func (e *Evaluator) logc(ctx context.Context, level slog.Level, msg string, args ...any) {
	// usually depth is 2, because logc is called from other functions
	e.logcWithCallerDepth(ctx, level, 2, msg, args...)
}

// for user, use logc instead of this function
func (e *Evaluator) logcWithCallerDepth(ctx context.Context, level slog.Level, depth int, msg string, args ...any) {
	if !e.logger.Enabled(ctx, level) {
		return
	}

	if _, file, line, ok := runtime.Caller(depth); ok {
		args = append([]any{slog.String("exec_pos", fmt.Sprintf("%s:%d", file, line))}, args...)
	}

	if len(e.callStack) > 0 {
		args = append([]any{
			slog.String("in_func", e.callStack[len(e.callStack)-1]),
			slog.Int("depth", len(e.callStack)),
		}, args...)
	}

	for i, arg := range args {
		switch v := arg.(type) {
		case *object.Error:
			args[i] = v.Error()
		case object.Object:
			args[i] = v.Inspect()
		}
	}

	e.logger.Log(ctx, level, msg, args...)
}
