package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talkcents/talkcents/internal/api"
)

func newLoginCommand(a *app) *cobra.Command {
	var username, password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				p, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
				password = p
			}
			if password == "" {
				return errors.New("a password is required (--password or --password-stdin)")
			}

			tokens, err := a.persistentTokens()
			if err != nil {
				return err
			}

			token, err := a.client.Login(cmd.Context(), username, password)
			if err != nil {
				if api.IsUnauthorized(err) {
					return errors.New("login failed: wrong username or password")
				}
				return fmt.Errorf("login failed: %w", err)
			}
			if err := tokens.Set(cmd.Context(), token); err != nil {
				return fmt.Errorf("storing token: %w", err)
			}
			a.log.Info().Str("username", username).Msg("logged in")
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account e-mail (required)")
	_ = cmd.MarkFlagRequired("username")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.tokens.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Check the stored token against the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := a.client.Me(cmd.Context())
			if api.IsUnauthorized(err) {
				return errors.New("not logged in (run `talkcents login`)")
			}
			if err != nil {
				return err
			}
			for _, k := range []string{"username", "email", "name"} {
				if v, ok := me[k].(string); ok && v != "" {
					fmt.Fprintln(cmd.OutOrStdout(), v)
					return nil
				}
			}
			return writeJSON(cmd.OutOrStdout(), me)
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
