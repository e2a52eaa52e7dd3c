package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/tern-dev/tern"
	"github.com/tern-dev/tern/internal/config"
	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/middleware"
	"github.com/tern-dev/tern/pkg/static"
)

const defaultRegion = "us-east-1"

func serveCmd(configPath *string) *cobra.Command {
	var (
		host    string
		port    int
		workers int
		admin   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Long: `Start the server and block until SIGINT or SIGTERM.

Every request gets a request ID and an access log line. CORS, JWT
authentication and static mounts are enabled from tern.yaml.

Examples:
  tern serve
  tern serve --port=9090 --workers=8
  tern serve --config=deploy/tern.yaml --admin=127.0.0.1:9091`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("workers") {
				cfg.Server.Workers = workers
			}
			if flags.Changed("admin") {
				cfg.Admin.Address = admin
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w: %w", config.ErrInvalid, err)
			}

			logger := cfg.Logger(cmd.ErrOrStderr())
			app, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			app.OnStartup(func(context.Context) error {
				logger.Info("starting", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), "workers", cfg.Server.Workers)
				return nil
			})
			if err := app.Run(); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from tern.yaml)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from tern.yaml)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of workers (default: number of CPUs)")
	cmd.Flags().StringVar(&admin, "admin", "", "Address of the admin listener")

	return cmd
}

// buildApp wires the configured middleware and static mounts.
func buildApp(cfg *config.Config, logger *slog.Logger) (*tern.App, error) {
	app := tern.New(cfg.ServerConfig(logger))

	var mw []tern.Middleware
	mw = append(mw, middleware.RequestID()...)
	mw = append(mw, middleware.AccessLog(logger)...)
	mw = append(mw, middleware.Trace()...)

	if c := cfg.CORS; c != nil {
		mw = append(mw, middleware.CORS(middleware.CORSConfig{
			AllowOrigins:     c.AllowOrigins,
			AllowMethods:     c.AllowMethods,
			AllowHeaders:     c.AllowHeaders,
			ExposeHeaders:    c.ExposeHeaders,
			AllowCredentials: c.AllowCredentials,
			MaxAge:           c.MaxAge,
		})...)
		// Preflights only reach middleware on a registered route.
		preflight := tern.Sync(func(context.Context, *tern.Request) (*tern.Response, error) {
			return handler.Status(http.StatusNoContent), nil
		})
		for _, pattern := range []string{"/", "/*path"} {
			if err := app.Route(http.MethodOptions, pattern, preflight); err != nil {
				return nil, err
			}
		}
	}

	if j := cfg.Auth.JWT; j != nil {
		auth, err := middleware.JWT(middleware.JWTConfig{
			Secret:   []byte(j.Secret),
			Issuer:   j.Issuer,
			Audience: j.Audience,
		})
		if err != nil {
			return nil, err
		}
		mw = append(mw, auth)
	}

	if err := app.Use(mw...); err != nil {
		return nil, err
	}

	for _, sc := range cfg.Static {
		var src static.Source
		if sc.S3 != nil {
			src = static.S3(newS3Client(sc.S3), sc.S3.Bucket, sc.S3.Prefix)
		} else {
			src = static.Dir(sc.Dir)
		}
		opts := static.Options{Index: sc.Index, CacheControl: sc.CacheControl}
		if err := app.Static(sc.Prefix, src, opts); err != nil {
			return nil, err
		}
		logger.Debug("static mount", "prefix", sc.Prefix, "dir", sc.Dir, "s3", sc.S3 != nil)
	}
	return app, nil
}

func newS3Client(c *config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       c.Region,
		UsePathStyle: c.PathStyle,
		Credentials:  envCredentials(os.LookupEnv),
	}
	if opts.Region == "" {
		opts.Region = defaultRegion
	}
	if c.Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.Endpoint)
	}
	return s3.New(opts)
}

// envCredentials reads the standard AWS_* variables. Without an access key
// requests are sent unsigned, which works for public buckets.
func envCredentials(lookup func(string) (string, bool)) aws.CredentialsProvider {
	id, ok := lookup("AWS_ACCESS_KEY_ID")
	if !ok || id == "" {
		return aws.AnonymousCredentials{}
	}
	secret, _ := lookup("AWS_SECRET_ACCESS_KEY")
	token, _ := lookup("AWS_SESSION_TOKEN")
	creds := aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    token,
		Source:          "Environment",
	}
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return creds, nil
	})
}
