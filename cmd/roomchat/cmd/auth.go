package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/api"
	"github.com/nfrund/roomchat/internal/domain/auth_errors"
)

var (
	authUsername string
	authPassword string
	authEmail    string
	authRole     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session token",
	Long: `Sign in with a username and password. The token, username and role are
stored in the session file and used by every other command.

If --password is omitted it is read from the first line of stdin.

Examples:
  roomchat login -u alice -p secret
  echo secret | roomchat login -u alice`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := passwordFrom(cmd)
		if err != nil {
			return err
		}
		resp, err := a.API.Login(cmd.Context(), api.Credentials{Username: authUsername, Password: password})
		if errors.Is(err, auth_errors.ErrInvalidCredentials) {
			return fmt.Errorf("login failed: %s", apiDetail(err))
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", resp.User.Username, resp.Profile.Role)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in with it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := passwordFrom(cmd)
		if err != nil {
			return err
		}
		resp, err := a.API.Register(cmd.Context(), api.Registration{
			Username: authUsername,
			Password: password,
			Email:    authEmail,
			Role:     strings.ToUpper(authRole),
		})
		if errors.Is(err, auth_errors.ErrUserAlreadyExists) {
			return fmt.Errorf("username %q is taken", authUsername)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", resp.User.Username, resp.Profile.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.API.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Session.Credential() == "" {
			return errNotLoggedIn
		}
		p, err := a.API.Profile(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Username: %s\n", p.Username)
		fmt.Fprintf(out, "Email:    %s\n", p.Email)
		fmt.Fprintf(out, "Role:     %s\n", p.Role)
		return nil
	},
}

var errNotLoggedIn = errors.New("not logged in; run 'roomchat login' first")

func passwordFrom(cmd *cobra.Command) (string, error) {
	if authPassword != "" {
		return authPassword, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("password is required")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func apiDetail(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if d := apiErr.Detail(); d != "" {
			return d
		}
	}
	return err.Error()
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&authUsername, "username", "u", "", "account username")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "account password (read from stdin when omitted)")
		_ = c.MarkFlagRequired("username")
	}
	registerCmd.Flags().StringVar(&authEmail, "email", "", "contact email")
	registerCmd.Flags().StringVar(&authRole, "role", "", "CUSTOMER, BOOSTER or ADMIN (default CUSTOMER)")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}
