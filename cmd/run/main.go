// Command run is a thin CLI wrapper around the vm package: it parses a wasm
// binary, instantiates it with no host imports, invokes one exported
// function (or the module's start function if -f is omitted), and prints
// the results. An external collaborator, kept separate from the engine
// itself.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wasmcore/vm"
	"github.com/wasmcore/vm/api"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{Use: "run"}
	root.AddCommand(newRunCommand())
	return root
}

func newRunCommand() *cobra.Command {
	var funcName string
	var rawArgs []string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run <wasm_file>",
		Short: "Instantiate a wasm binary and invoke one of its exported functions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(verbose)
			defer logger.Sync()
			return runModule(logger, args[0], funcName, rawArgs)
		},
	}

	cmd.Flags().StringVarP(&funcName, "func", "f", "", "exported function to invoke (default: the module's start function)")
	cmd.Flags().StringArrayVarP(&rawArgs, "arg", "a", nil, "argument as type:value, e.g. i32:42 (repeatable)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log interpreter progress at debug level")
	return cmd
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func runModule(logger *zap.Logger, path, funcName string, rawArgs []string) error {
	logger.Debug("parsing module", zap.String("path", path))
	mod, err := vm.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	args, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}

	store := vm.NewStore()
	logger.Debug("instantiating module", zap.Uint64("store_id", store.ID()))
	inst, err := mod.Instantiate(store, nil)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	var handle *vm.FuncHandle
	if funcName == "" {
		h, ok := inst.GetStartFunc()
		if !ok {
			return fmt.Errorf("module declares no start function; specify one with -f")
		}
		handle = h
	} else {
		h, ok := inst.GetFunc(funcName)
		if !ok {
			return fmt.Errorf("no exported function %q", funcName)
		}
		handle = h
	}

	logger.Debug("invoking function", zap.String("func", funcName), zap.Int("argc", len(args)))
	results, err := handle.Call(args)
	if err != nil {
		return fmt.Errorf("trap: %w", err)
	}

	for _, r := range results {
		fmt.Println(r.String())
	}
	return nil
}

// parseArgs converts "type:value" flag strings into typed api.Value
// arguments; type is one of i32, i64, f32, f64.
func parseArgs(raw []string) ([]api.Value, error) {
	out := make([]api.Value, 0, len(raw))
	for _, a := range raw {
		v, err := parseArg(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseArg(a string) (api.Value, error) {
	typ, val, ok := splitOnce(a, ':')
	if !ok {
		return api.Value{}, fmt.Errorf("invalid argument %q: expected type:value", a)
	}
	switch typ {
	case "i32":
		var n int32
		if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
			return api.Value{}, fmt.Errorf("invalid i32 argument %q: %w", a, err)
		}
		return api.I32(n), nil
	case "i64":
		var n int64
		if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
			return api.Value{}, fmt.Errorf("invalid i64 argument %q: %w", a, err)
		}
		return api.I64(n), nil
	case "f32":
		var f float32
		if _, err := fmt.Sscanf(val, "%g", &f); err != nil {
			return api.Value{}, fmt.Errorf("invalid f32 argument %q: %w", a, err)
		}
		return api.F32(f), nil
	case "f64":
		var f float64
		if _, err := fmt.Sscanf(val, "%g", &f); err != nil {
			return api.Value{}, fmt.Errorf("invalid f64 argument %q: %w", a, err)
		}
		return api.F64(f), nil
	default:
		return api.Value{}, fmt.Errorf("invalid argument %q: unknown type %q", a, typ)
	}
}

func splitOnce(s string, sep byte) (before, after string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
