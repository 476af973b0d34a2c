package feed

import (
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"github.com/murmurchat/murmur/store"
)

// Filter is a compiled CEL expression over a chat entry, for example
// `username == "alice" && created_ts > 1700000000`.
type Filter struct {
	expr    string
	program cel.Program
}

func filterEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("username", cel.StringType),
		cel.Variable("thread_id", cel.StringType),
		cel.Variable("message", cel.StringType),
		cel.Variable("response", cel.StringType),
		cel.Variable("created_ts", cel.IntType),
	)
}

// CompileFilter parses and checks expr. The expression must evaluate to a bool.
func CompileFilter(expr string) (*Filter, error) {
	env, err := filterEnv()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filter environment")
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid filter %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("filter %q must evaluate to a bool, got %s", expr, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build filter program")
	}
	return &Filter{expr: expr, program: program}, nil
}

// Match reports whether entry satisfies the filter.
func (f *Filter) Match(entry *store.ChatEntry) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"username":   entry.Username,
		"thread_id":  entry.ThreadID,
		"message":    entry.Message,
		"response":   entry.Response,
		"created_ts": entry.CreatedTs,
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to evaluate filter")
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("filter returned %T", out.Value())
	}
	return matched, nil
}

// Select returns the entries matching the filter. A nil filter matches everything.
// Entries the filter fails to evaluate on are left out.
func (f *Filter) Select(entries []*store.ChatEntry) []*store.ChatEntry {
	if f == nil {
		return entries
	}
	out := make([]*store.ChatEntry, 0, len(entries))
	for _, entry := range entries {
		matched, err := f.Match(entry)
		if err != nil {
			slog.Warn("skipping chat entry in filter", slog.String("filter", f.expr), slog.Int("id", int(entry.ID)), slog.Any("err", err))
			continue
		}
		if matched {
			out = append(out, entry)
		}
	}
	return out
}
