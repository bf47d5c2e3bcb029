// Package cli implements approvalctl, a terminal front end for the
// approvals API.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"procurement/internal/client"
	"procurement/internal/config"
	"procurement/internal/logger"
)

const envPrefix = "APPROVALCTL"

type app struct {
	v   *viper.Viper
	out io.Writer
	log *zap.Logger
}

// NewRootCmd builds the approvalctl command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, log: zap.NewNop()}

	root := &cobra.Command{
		Use:           "approvalctl",
		Short:         "Review and decide procurement approval requests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(config.LoggerConfig{
				Level:      a.v.GetString("log_level"),
				Format:     "console",
				OutputPath: "stderr",
			})
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.String("server", "http://localhost:8080", "approvals API base URL")
	pf.String("token", "", "bearer token (defaults to the saved login)")
	pf.String("token-file", defaultTokenFile(), "where login stores the token")
	pf.Bool("no-color", false, "disable ANSI colors")
	pf.String("log-level", "warn", "log level for diagnostics on stderr")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	for _, name := range []string{"server", "token", "token-file", "no-color", "log-level"} {
		_ = a.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), pf.Lookup(name))
	}

	root.AddCommand(
		a.loginCmd(),
		a.listCmd(),
		a.statsCmd(),
		a.approveCmd(),
		a.rejectCmd(),
		a.bulkApproveCmd(),
		a.seedCmd(),
	)
	return root
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".approvalctl-token"
	}
	return filepath.Join(dir, "approvalctl", "token")
}

// client returns an API client authenticated with the flag, env or saved token.
func (a *app) client() *client.Client {
	token := a.v.GetString("token")
	if token == "" {
		if b, err := os.ReadFile(a.v.GetString("token_file")); err == nil {
			token = strings.TrimSpace(string(b))
		}
	}
	return client.New(a.v.GetString("server"), client.WithToken(token))
}

func (a *app) saveToken(token string) error {
	path := a.v.GetString("token_file")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

func (a *app) color() bool { return !a.v.GetBool("no_color") }

// fail turns an API error into a single readable line.
func fail(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(client.Describe(err))
}
