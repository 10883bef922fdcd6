package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"todosync/internal/config"
	"todosync/internal/credentials"
)

// newSetupCmd creates the 'setup' subcommand
func newSetupCmd(stdout, stderr io.Writer, opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure account and sync",
		Long:  "Set the account email and remote host in the config file and store the auth token in the system keyring. Values can be passed as flags or entered interactively.",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag, _ := cmd.Flags().GetString("config")
			configPath := configFlag
			if configPath == "" && opts != nil {
				configPath = opts.ConfigPath
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			reader := bufio.NewReader(cmd.InOrStdin())

			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				email, err = promptLine(reader, stdout, "Account email: ")
				if err != nil {
					return err
				}
			}
			if !strings.Contains(email, "@") {
				return fmt.Errorf("account email %q is not valid", email)
			}

			host, _ := cmd.Flags().GetString("host")
			if host == "" {
				host, err = promptLine(reader, stdout, "Sync host (e.g. https://myapp.firebaseio.com): ")
				if err != nil {
					return err
				}
			}

			cfg.Account.Email = email
			cfg.Sync.Host = host
			cfg.Sync.Enabled = host != ""
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(configPath); err != nil {
				return err
			}

			token, _ := cmd.Flags().GetString("token")
			if token == "" && host != "" && !cmd.Flags().Changed("token") {
				token, err = promptToken(reader, stdout)
				if err != nil {
					return err
				}
			}
			if token != "" {
				mgr := credentials.NewManager()
				if err := mgr.Set(context.Background(), email, token); err != nil {
					_, _ = fmt.Fprintf(stderr, "Warning: could not store token in keyring: %v\n", err)
					_, _ = fmt.Fprintf(stderr, "Set %s in the environment instead.\n", credentials.EnvToken)
				} else {
					_, _ = fmt.Fprintln(stdout, "Token stored in system keyring.")
				}
			}

			_, _ = fmt.Fprintf(stdout, "Configured account %s", email)
			if host != "" {
				_, _ = fmt.Fprintf(stdout, " syncing to %s", host)
			}
			_, _ = fmt.Fprintln(stdout)
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("host", "", "Remote sync host URL")
	cmd.Flags().String("token", "", "Auth token (prefer the interactive prompt; flags leak into shell history)")
	return cmd
}

func promptLine(reader *bufio.Reader, stdout io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(stdout, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("input aborted: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptToken reads the auth token without echoing when stdin is a terminal,
// falling back to a plain line read otherwise (pipes, tests).
func promptToken(reader *bufio.Reader, stdout io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		_, _ = fmt.Fprint(stdout, "Auth token (input hidden): ")
		raw, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(stdout)
		if err != nil {
			return "", fmt.Errorf("could not read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return promptLine(reader, stdout, "Auth token: ")
}
