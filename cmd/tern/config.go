package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tern-dev/tern/internal/config"
)

const redacted = "<redacted>"

func configCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, tern.yaml and TERN_* environment
variables are applied. Secrets are redacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if p := cfg.Path(); p != "" {
				fmt.Fprintf(out, "# loaded from %s\n", p)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(redact(cfg)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func redact(cfg *config.Config) config.Config {
	c := *cfg
	if c.Auth.JWT != nil {
		jwt := *c.Auth.JWT
		if jwt.Secret != "" {
			jwt.Secret = redacted
		}
		c.Auth.JWT = &jwt
	}
	return c
}
