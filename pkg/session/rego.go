package session

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
	"github.com/openngo/sitecms/pkg/utils/logging"
)

// RegoQuery is evaluated with input {"path": <request path>} and must yield
// a boolean. An undefined result means the path is public.
const RegoQuery = "data.cms.route.protected"

// RegoPolicy is a RoutePolicy written in Rego.
type RegoPolicy struct {
	query *rego.PreparedEvalQuery
}

type regoPrintHook struct {
	ctx context.Context
}

func (h *regoPrintHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// LoadRegoPolicy reads a .rego file, or every .rego file in a directory.
func LoadRegoPolicy(ctx context.Context, path string) (*RegoPolicy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat policy path", goerr.V("path", path))
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.rego"))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("path", path))
		}
		if len(files) == 0 {
			return nil, goerr.New("no policy files found", goerr.V("path", path))
		}
	}

	modules := make(map[string]string, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules[file] = string(data)
	}

	return NewRegoPolicy(ctx, modules)
}

// NewRegoPolicy compiles modules keyed by file name.
func NewRegoPolicy(ctx context.Context, modules map[string]string) (*RegoPolicy, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+2)
	options = append(options, rego.Query(RegoQuery), rego.EnablePrintStatements(true))
	for name, src := range modules {
		options = append(options, rego.Module(name, src))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare route policy", goerr.V("query", RegoQuery))
	}

	return &RegoPolicy{query: &prepared}, nil
}

func (x *RegoPolicy) Protected(ctx context.Context, path string) (bool, error) {
	input := map[string]any{"path": cleanPath(path)}

	rs, err := x.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&regoPrintHook{ctx: ctx}))
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate route policy", goerr.V("path", path))
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}

	protected, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, goerr.New("route policy must yield a boolean",
			goerr.V("path", path), goerr.V("value", rs[0].Expressions[0].Value))
	}
	return protected, nil
}
