package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/searchparams/internal/errors"
	"github.com/vango-dev/searchparams/pkg/action"
	"github.com/vango-dev/searchparams/pkg/adapter/history"
	"github.com/vango-dev/searchparams/pkg/adapter/ssr"
	"github.com/vango-dev/searchparams/pkg/codec"
	"github.com/vango-dev/searchparams/pkg/middleware"
	"github.com/vango-dev/searchparams/pkg/provider"
	"github.com/vango-dev/searchparams/pkg/searchparams"
)

// opFlags are shared by every operation command.
type opFlags struct {
	url        string
	provider   string
	parse      bool
	serialize  bool
	forceArray bool
	parser     string
	jsonValues bool
	verbose    bool
}

func (f *opFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.url, "url", "u", "/", "Page URL to operate on")
	cmd.Flags().StringVar(&f.provider, "provider", string(provider.Browser), "Host to simulate: browser or server (read-only)")
	cmd.Flags().BoolVarP(&f.parse, "parse", "p", false, "Decode stored values")
	cmd.Flags().BoolVarP(&f.serialize, "serialize", "s", false, "Serialize written values")
	cmd.Flags().BoolVarP(&f.forceArray, "force-array", "a", false, "Always return arrays")
	cmd.Flags().StringVar(&f.parser, "parser", "", "Named parser: "+strings.Join(action.ParserNames(), ", "))
	cmd.Flags().BoolVarP(&f.jsonValues, "json", "j", false, "Read value arguments as JSON")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log debug output to stderr")
}

// value turns value arguments into one value or a slice.
func (f *opFlags) value(args []string) (any, error) {
	values := make([]any, len(args))
	for i, arg := range args {
		v, err := f.scalar(arg)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return values, nil
}

func (f *opFlags) scalar(arg string) (any, error) {
	if !f.jsonValues {
		return arg, nil
	}
	v, ok := codec.Deserialize(arg)
	if !ok {
		return nil, errors.New("E002").WithDetail("not valid JSON: " + arg)
	}
	return v, nil
}

type buildFunc func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error)

func opCmd(use, short string, args cobra.PositionalArgs, build buildFunc) *cobra.Command {
	var f opFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := build(cmd, &f, args)
			if err != nil {
				return err
			}
			req.Options = searchparams.Options{
				Parse:      f.parse,
				Serialize:  f.serialize,
				ForceArray: f.forceArray,
			}
			req.Parser = f.parser
			return runOp(cmd, &f, req)
		},
	}
	f.register(cmd)
	return cmd
}

func opCmds() []*cobra.Command {
	var def string
	get := opCmd("get KEY", "Print the value of KEY", cobra.ExactArgs(1),
		func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
			if !cmd.Flags().Changed("default") {
				return action.Request{Op: action.OpGet, Key: args[0]}, nil
			}
			d, err := f.scalar(def)
			return action.Request{Op: action.OpGetWithDefault, Key: args[0], Default: d}, err
		})
	get.Flags().StringVarP(&def, "default", "d", "", "Value printed when KEY is absent or fails to decode")

	return []*cobra.Command{
		get,
		opCmd("get-all", "Print every parameter", cobra.NoArgs,
			func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
				return action.Request{Op: action.OpGetAll}, nil
			}),
		opCmd("matches KEY VALUE", "Print whether KEY holds VALUE", cobra.ExactArgs(2),
			func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
				v, err := f.scalar(args[1])
				return action.Request{Op: action.OpMatches, Key: args[0], Value: v}, err
			}),
		opCmd("set KEY VALUE...", "Replace the values of KEY", cobra.MinimumNArgs(2),
			func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
				v, err := f.value(args[1:])
				return action.Request{Op: action.OpSet, Key: args[0], Values: v}, err
			}),
		opCmd("add KEY VALUE...", "Append values to KEY, skipping duplicates", cobra.MinimumNArgs(2),
			func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
				v, err := f.value(args[1:])
				return action.Request{Op: action.OpAdd, Key: args[0], Values: v}, err
			}),
		opCmd("remove KEY VALUE...", "Remove values from KEY", cobra.MinimumNArgs(2),
			func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
				v, err := f.value(args[1:])
				return action.Request{Op: action.OpRemove, Key: args[0], Values: v}, err
			}),
		opCmd("toggle KEY [VALUE]", "Add VALUE to KEY if absent, remove it if present (default \"true\")", cobra.RangeArgs(1, 2),
			func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
				req := action.Request{Op: action.OpToggle, Key: args[0]}
				if len(args) == 2 {
					v, err := f.scalar(args[1])
					if err != nil {
						return req, err
					}
					req.Value = v
				}
				return req, nil
			}),
		opCmd("update KEY OLD NEW", "Replace OLD with NEW in KEY", cobra.ExactArgs(3),
			func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
				oldValue, err := f.scalar(args[1])
				if err != nil {
					return action.Request{}, err
				}
				newValue, err := f.scalar(args[2])
				return action.Request{Op: action.OpUpdate, Key: args[0], Old: oldValue, New: newValue}, err
			}),
		opCmd("clear KEY", "Remove KEY", cobra.ExactArgs(1),
			func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
				return action.Request{Op: action.OpClear, Key: args[0]}, nil
			}),
		opCmd("reset", "Remove every parameter", cobra.NoArgs,
			func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
				return action.Request{Op: action.OpReset}, nil
			}),
		opCmd("set-many KEY=VALUE...", "Replace several keys in one navigation", cobra.MinimumNArgs(1),
			func(cmd *cobra.Command, f *opFlags, args []string) (action.Request, error) {
				params, err := f.pairs(args)
				return action.Request{Op: action.OpSetMany, Params: params}, err
			}),
	}
}

// pairs parses KEY=VALUE arguments. A repeated key collects its values.
func (f *opFlags) pairs(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	counts := make(map[string]int, len(args))
	for _, arg := range args {
		k, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, errors.New("E002").WithDetail("expected KEY=VALUE, got " + arg)
		}
		v, err := f.scalar(raw)
		if err != nil {
			return nil, err
		}
		switch counts[k] {
		case 0:
			params[k] = v
		case 1:
			params[k] = []any{params[k], v}
		default:
			params[k] = append(params[k].([]any), v)
		}
		counts[k]++
	}
	return params, nil
}

// runOp applies req to the page URL and prints the result: the navigated
// URL for writes, JSON for reads.
func runOp(cmd *cobra.Command, f *opFlags, req action.Request) error {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(cmd.ErrOrStderr(), level, "text")

	id, err := provider.ParseID(f.provider)
	if err != nil {
		return err
	}
	host, location, err := simulateHost(id, f.url, logger)
	if err != nil {
		return err
	}
	a, err := provider.Select(id, host)
	if err != nil {
		return err
	}

	gate := middleware.NewGate(string(id), middleware.WithGateLogger(logger))
	p := searchparams.FromAdapter(gate.Wrap(cmd.Context(), a, string(req.Op)), searchparams.WithLogger(logger))

	res, err := action.Apply(p, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if req.Op.IsWrite() {
		fmt.Fprintln(out, location())
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return enc.Encode(res.Value)
}

// simulateHost builds the host context for id from a page URL and returns
// a function reporting the location after the operation.
func simulateHost(id provider.ID, pageURL string, logger *slog.Logger) (provider.Host, func() string, error) {
	switch id {
	case provider.Browser:
		h := history.New(pageURL, history.WithLogger(logger))
		return provider.Host{History: h}, h.Location, nil

	case provider.Server:
		r, err := http.NewRequest(http.MethodGet, "/", nil)
		if err != nil {
			return provider.Host{}, nil, err
		}
		r.Header.Set(ssr.DefaultURLHeader, pageURL)
		a, err := ssr.New(r, ssr.WithLogger(logger))
		if err != nil {
			return provider.Host{}, nil, err
		}
		return provider.Host{Request: r, SSROptions: []ssr.Option{ssr.WithLogger(logger)}}, a.URL, nil
	}
	return provider.Host{}, nil, errors.New("E020").
		WithDetail(string(id) + " provider needs a live client; use serve and connect to /ws")
}
