// Package cmd implements the todosync command line interface.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"todosync/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// Options holds invocation overrides, mostly for testing.
type Options struct {
	NoPrompt   bool
	Verbose    bool
	ConfigPath string // Path to config file (for testing)
	DBPath     string // Path to database file (for testing)
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, opts *Options) int {
	rootCmd := NewTodoSync(stdout, stderr, opts)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewTodoSync creates the root command with injectable IO
func NewTodoSync(stdout, stderr io.Writer, opts *Options) *cobra.Command {
	if opts == nil {
		opts = &Options{}
	}

	cmd := &cobra.Command{
		Use:     "todosync",
		Short:   "An offline-first task manager with real-time sync",
		Long:    "todosync keeps tasks in a local database and mirrors them to a remote realtime tree when an account is configured. All commands work offline; changes queue and sync when connectivity returns.",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose || opts.Verbose {
				utils.SetVerboseMode(true)
			}
			noPrompt, _ := cmd.Flags().GetBool("no-prompt")
			if noPrompt {
				opts.NoPrompt = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")

	cmd.AddCommand(newAddCmd(stdout, opts))
	cmd.AddCommand(newListCmd(stdout, opts))
	cmd.AddCommand(newDoneCmd(stdout, opts))
	cmd.AddCommand(newUpdateCmd(stdout, opts))
	cmd.AddCommand(newDeleteCmd(stdout, opts))
	cmd.AddCommand(newCategoryCmd(stdout, opts))
	cmd.AddCommand(newExportCmd(stdout, opts))
	cmd.AddCommand(newSyncCmd(stdout, opts))
	cmd.AddCommand(newShareCmd(stdout, opts))
	cmd.AddCommand(newSetupCmd(stdout, stderr, opts))
	cmd.AddCommand(newWatchCmd(stdout, opts))

	return cmd
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}

	jsonBytes, _ := json.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}
