// Package cli is the captchactl command tree, an operator client for captchad
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"captchahub/internal/adapters/captchaclient"
	"captchahub/internal/core/version"
	"captchahub/internal/platform/config"
	"captchahub/internal/services/captcha/domain"
)

// globals holds the persistent flags shared by every subcommand
type globals struct {
	server   string
	token    string
	clientID string
	timeout  time.Duration
}

// serviceFunc builds the port a subcommand talks to
type serviceFunc func(g *globals) domain.ServicePort

func remote(g *globals) domain.ServicePort {
	return captchaclient.NewClient(captchaclient.Options{
		BaseURL:  g.server,
		Token:    g.token,
		ClientID: g.clientID,
		Timeout:  g.timeout,
	})
}

var rootCmd = newRootCmd(remote)

func newRootCmd(svc serviceFunc) *cobra.Command {
	cfg := config.New().Prefix("CAPTCHACTL_")
	g := &globals{}

	root := &cobra.Command{
		Use:           "captchactl",
		Short:         "Operator client for the captcha registry",
		Long:          `captchactl claims, answers and drives captcha tasks held by a running captchad.`,
		Version:       version.Info().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.server, "server", cfg.MayString("SERVER", "http://127.0.0.1:4000"), "captchad base url")
	pf.StringVar(&g.token, "token", cfg.MayString("TOKEN", ""), "bearer token")
	pf.StringVar(&g.clientID, "client", cfg.MayString("CLIENT_ID", ""), "client id reported to the registry")
	pf.DurationVar(&g.timeout, "timeout", cfg.MayDuration("TIMEOUT", 15*time.Second), "per request timeout")

	port := func() domain.ServicePort { return svc(g) }

	root.AddCommand(
		listCmd(port),
		nextCmd(port),
		statusCmd(port),
		solveCmd(port),
		startCmd(port),
		interactCmd(port),
		reloadCmd(port),
		verdictCmd(port),
		abortCmd(port),
		submitCmd(port),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
