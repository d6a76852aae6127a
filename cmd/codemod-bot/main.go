/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/sethvargo/go-envconfig"

	"github.com/chainguard-dev/codemod-bot/pkg/archive"
	"github.com/chainguard-dev/codemod-bot/pkg/codemod"
	"github.com/chainguard-dev/codemod-bot/pkg/codemodbot"
	"github.com/chainguard-dev/codemod-bot/pkg/githubbot"
	"github.com/chainguard-dev/codemod-bot/pkg/githubclient"
	"github.com/chainguard-dev/codemod-bot/pkg/httpmetrics"
	mce "github.com/chainguard-dev/codemod-bot/pkg/httpmetrics/cloudevents"
	"github.com/chainguard-dev/codemod-bot/pkg/profiler"
)

const name = "codemod-bot"

var env = envconfig.MustProcess(context.Background(), &struct {
	Port          int    `env:"PORT, default=8080"`
	WorkspaceRoot string `env:"WORKSPACE_ROOT, default=/tmp/codemods"`

	// When unset, codemods run through the codemod CLI published on npm.
	CodemodCommand     string        `env:"CODEMOD_COMMAND"`
	CodemodArgs        []string      `env:"CODEMOD_ARGS"`
	CodemodFlags       []string      `env:"CODEMOD_FLAGS"`
	CodemodTimeout     time.Duration `env:"CODEMOD_TIMEOUT, default=30s"`
	CodemodGracePeriod time.Duration `env:"CODEMOD_GRACE_PERIOD"` // zero kills immediately
	Concurrency        int           `env:"CODEMOD_CONCURRENCY, default=4"`

	// Credentials, in order of preference: a GitHub App, an Octo STS
	// identity, a static token.
	AppID          int64  `env:"GITHUB_APP_ID"`
	InstallationID int64  `env:"GITHUB_INSTALLATION_ID"`
	AppPrivateKey  string `env:"GITHUB_APP_PRIVATE_KEY"`
	OctoIdentity   string `env:"OCTO_IDENTITY"`
	Token          string `env:"GITHUB_TOKEN"`
	APIURL         string `env:"GITHUB_API_URL"`

	ArchiveBucket string `env:"ARCHIVE_BUCKET"`
	IngressURI    string `env:"EVENT_INGRESS_URI"`
	// Note: any environment variable starting with "WEBHOOK_SECRET" is
	// accepted as a webhook secret.
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}{})

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	http.DefaultTransport = httpmetrics.Transport
	go httpmetrics.ServeMetrics(ctx)
	defer httpmetrics.SetupTracer(ctx)()
	profiler.Setup(ctx)

	if err := os.MkdirAll(env.WorkspaceRoot, 0o700); err != nil {
		clog.FatalContextf(ctx, "creating workspace root: %v", err)
	}
	go httpmetrics.ScrapeDiskUsage(ctx, env.WorkspaceRoot)

	tsf, err := tokenSource(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "configuring GitHub credentials: %v", err)
	}
	var copts []githubclient.CacheOption
	if env.APIURL != "" {
		copts = append(copts, githubclient.WithBaseURL(env.APIURL))
	}
	cc, err := githubclient.NewClientCache(tsf, copts...)
	if err != nil {
		clog.FatalContextf(ctx, "creating GitHub client cache: %v", err)
	}

	exec := codemod.NPX()
	if env.CodemodCommand != "" {
		exec = &codemod.CommandExecutor{
			Path:  env.CodemodCommand,
			Args:  env.CodemodArgs,
			Flags: env.CodemodFlags,
		}
	}
	exec.GracePeriod = env.CodemodGracePeriod
	runner := codemod.New(exec,
		codemod.WithRoot(env.WorkspaceRoot),
		codemod.WithDefaultTimeout(env.CodemodTimeout),
	)

	opts := []codemodbot.Option{codemodbot.WithConcurrency(env.Concurrency)}
	if env.ArchiveBucket != "" {
		a, err := archive.Open(ctx, env.ArchiveBucket)
		if err != nil {
			clog.FatalContextf(ctx, "opening archive: %v", err)
		}
		defer a.Close()
		opts = append(opts, codemodbot.WithArchive(a))
	}
	if env.IngressURI != "" {
		topts, err := mce.WithTarget(ctx, env.IngressURI)
		if err != nil {
			clog.FatalContextf(ctx, "configuring event target: %v", err)
		}
		ceclient, err := mce.NewClientHTTP(name, topts...)
		if err != nil {
			clog.FatalContextf(ctx, "failed to create cloudevents client: %v", err)
		}
		opts = append(opts, codemodbot.WithNotifier(codemodbot.NewNotifier(ceclient, name)))
	}

	bot := codemodbot.New(codemodbot.CachedClients(cc), runner, opts...).Bot(name)

	p, err := cehttp.New()
	if err != nil {
		clog.FatalContextf(ctx, "failed to create cloudevents protocol: %v", err)
	}
	receiver, err := cloudevents.NewHTTPReceiveHandler(ctx, p, bot.Receive)
	if err != nil {
		clog.FatalContextf(ctx, "failed to create cloudevents handler: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", receiver)
	mux.Handle("/webhook", bot.WebhookHandler(githubbot.LoadSecretsFromEnv(ctx)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", env.Port),
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           httpmetrics.Handler(name, mux),
	}
	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			clog.ErrorContextf(ctx, "Shutdown: %v", err)
		}
	}()

	clog.InfoContextf(ctx, "starting %s on port %d", name, env.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.FatalContextf(ctx, "ListenAndServe: %v", err)
	}
}

func tokenSource(ctx context.Context) (githubclient.TokenSourceFunc, error) {
	switch {
	case env.AppID != 0:
		signer, err := githubclient.NewSigner(ctx, env.AppPrivateKey)
		if err != nil {
			return nil, err
		}
		return githubclient.AppTokenSource(githubclient.App{
			ID:             env.AppID,
			InstallationID: env.InstallationID,
			Signer:         signer,
			BaseURL:        env.APIURL,
		})
	case env.OctoIdentity != "":
		return githubclient.OctoSTSTokenSource(env.OctoIdentity), nil
	case env.Token != "":
		return githubclient.StaticTokenSource(env.Token), nil
	default:
		return nil, errors.New("one of GITHUB_APP_ID, OCTO_IDENTITY or GITHUB_TOKEN is required")
	}
}
