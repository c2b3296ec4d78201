package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fluxloop/fluxloop-cli/internal/client"
)

type LoginOptions struct {
	GlobalOptions

	ServerUrl string
	Token     string
	Project   string
}

func DefaultLoginOptions() *LoginOptions {
	return &LoginOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdLogin() *cobra.Command {
	o := DefaultLoginOptions()
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store credentials for the FluxLoop service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())

	if err := validateFlags(cmd, "token"); err != nil {
		panic(err)
	}

	return cmd
}

func (o *LoginOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.ServerUrl, "server-url", o.ServerUrl, "FluxLoop API server to log in to")
	fs.StringVar(&o.Token, "token", o.Token, "API token (JWT) issued by FluxLoop")
	fs.StringVar(&o.Project, "project", o.Project, "Select this Web Project after login")
}

func (o *LoginOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if strings.TrimSpace(o.Token) == "" {
		return fmt.Errorf("--token must not be empty")
	}
	return nil
}

func (o *LoginOptions) Run(ctx context.Context, args []string) error {
	config, err := o.Config()
	if err != nil {
		return err
	}
	if o.ServerUrl != "" {
		config.Service.Server = strings.TrimSpace(o.ServerUrl)
	}
	config.Service.Token = strings.TrimSpace(o.Token)

	if err := config.Validate(); err != nil {
		return err
	}

	inspectToken(config.Service.Token)

	c, err := client.NewFromConfig(config)
	if err != nil {
		return err
	}
	workspaces, err := c.ListWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("verifying credentials: %w", err)
	}

	if o.Project != "" {
		config.Context.ProjectId = o.Project
	}
	if err := config.Persist(o.ConfigFilePath); err != nil {
		return fmt.Errorf("persisting config: %w", err)
	}

	fmt.Printf("✓ Logged in to %s\n", config.Service.Server)
	if len(workspaces) > 0 {
		names := make([]string, 0, len(workspaces))
		for _, workspace := range workspaces {
			if workspace.Name != "" {
				names = append(names, workspace.Name)
			} else {
				names = append(names, workspace.Id)
			}
		}
		fmt.Printf("  Workspaces: %s\n", strings.Join(names, ", "))
	}
	if o.Project != "" {
		fmt.Printf("  Selected project: %s\n", o.Project)
	}

	return nil
}

// inspectToken prints subject and expiry of a JWT without verifying the
// signature. Opaque tokens are accepted silently.
func inspectToken(token string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return
	}

	if subject, err := claims.GetSubject(); err == nil && subject != "" {
		fmt.Printf("  Subject: %s\n", subject)
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return
	}
	fmt.Printf("  Token expires: %s\n", expiry.Format(time.RFC3339))
	if expiry.Before(time.Now()) {
		pterm.Warning.Println("Token is already expired. Request a fresh one before calling the service.")
	}
}

type LogoutOptions struct {
	GlobalOptions
}

func NewCmdLogout() *cobra.Command {
	o := &LogoutOptions{GlobalOptions: DefaultGlobalOptions()}
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *LogoutOptions) Run(ctx context.Context, args []string) error {
	config, err := client.ParseConfigFile(o.ConfigFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("Not logged in.")
			return nil
		}
		return err
	}

	config.Service.Token = ""
	if err := config.Persist(o.ConfigFilePath); err != nil {
		return fmt.Errorf("persisting config: %w", err)
	}

	fmt.Println("✓ Logged out")
	return nil
}
