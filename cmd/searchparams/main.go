// Command searchparams reads and rewrites URL search parameters from the
// command line and serves the engine over HTTP and WebSocket.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/searchparams/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "searchparams",
		Short: "Read and rewrite URL search parameters",
		Long: `searchparams treats a URL's query string as application state.

Every operation reads a page URL, applies one change and prints the URL
the browser would navigate to. Reads print JSON.

  searchparams set --url '/products?view=list' view grid
  searchparams add --url '/products' tags go react
  searchparams get --url '/products?f=%7B%22x%22%3A1%7D' f --parse
  searchparams serve --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(opCmds()...)
	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	return rootCmd
}

// newLogger builds the slog handler named by format ("text" or "json").
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}
