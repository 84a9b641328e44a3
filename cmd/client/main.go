package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/containifyci/go-self-update/pkg/updater"

	"github.com/containifyci/assertion-login/internal/config"
	"github.com/containifyci/assertion-login/internal/logging"
	"github.com/containifyci/assertion-login/internal/provider"
	"github.com/containifyci/assertion-login/internal/secretstore"
	"github.com/containifyci/assertion-login/pkg/binder"
	"github.com/containifyci/assertion-login/pkg/client"
	"github.com/containifyci/assertion-login/pkg/model"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	fmt.Printf("assertion-login-client %s, commit %s, built at %s\n", version, commit, date)

	command, args := "login", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	switch command {
	case "update":
		u := updater.NewUpdater(
			"assertion-login-client", "containifyci", "assertion-login", version,
		)
		updated, err := u.SelfUpdate()
		if err != nil {
			fmt.Printf("Update failed %+v\n", err)
		}
		if updated {
			fmt.Println("Update completed successfully!")
			return
		}
		fmt.Println("Already up-to-date")
	case "generate":
		if err := generate(cfg, args, logger); err != nil {
			fmt.Printf("Error generating token: %v\n", err)
			os.Exit(1)
		}
	case "login":
		fallthrough
	default:
		os.Exit(login(cfg, args, logger))
	}
}

func parseFlags(cfg *config.Config, args []string) (ack bool) {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.StringVar(&cfg.LoginHost, "host", cfg.LoginHost, "The host of the login endpoint")
	fs.StringVar(&cfg.AssertionProvider, "provider", cfg.AssertionProvider, "The assertion provider: idtoken, secret or static")
	fs.StringVar(&cfg.ServiceName, "serviceName", cfg.ServiceName, "The name of the service")
	fs.StringVar(&cfg.AssertionValue, "assertion", cfg.AssertionValue, "The assertion used by the static provider")
	fs.BoolVar(&ack, "ack", false, "Only acknowledge the assertion, do not forward it")
	_ = fs.Parse(args)
	return ack
}

// login binds a single trigger button, clicks it once and maps the outcome to
// an exit code.
func login(cfg *config.Config, args []string, logger *slog.Logger) int {
	acknowledgeOnly := parseFlags(cfg, args)
	if err := cfg.ValidateClient(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		return 1
	}

	ctx := context.Background()
	requester, closeFn, err := newRequester(ctx, cfg, logger)
	if err != nil {
		fmt.Printf("Error creating assertion provider: %v\n", err)
		return 1
	}
	defer closeFn()

	opts := []binder.Option{
		binder.WithRequester(requester),
		binder.WithTriggerClass(cfg.TriggerClass),
		binder.WithLogger(logger),
		binder.WithNotifier(binder.NotifierFunc(func(msg string) {
			fmt.Println(msg)
		})),
		binder.OnLoggedIn(func(u model.User) {
			fmt.Printf("Logged in as %s (%s), expires %s\n", u.Email, u.ID, u.Expires.Format("2006-01-02 15:04:05 MST"))
		}),
		binder.OnLoggedOut(func() {
			fmt.Println("Logged out")
		}),
	}
	if !acknowledgeOnly {
		opts = append(opts, binder.WithForwarder(
			client.NewForwarder(cfg.LoginHost, cfg.LoginTimeout, client.WithLogger(logger)),
		))
	}

	var outcome binder.Outcome
	opts = append(opts, binder.OnOutcome(func(o binder.Outcome) { outcome = o }))

	button := binder.NewButton(cfg.TriggerClass)
	if _, err := binder.Bind(binder.NewContainer(button), opts...); err != nil {
		fmt.Printf("Error binding login trigger: %v\n", err)
		return 1
	}

	button.Click(ctx)
	if outcome.Failed() {
		return 1
	}
	return 0
}

func newRequester(ctx context.Context, cfg *config.Config, logger *slog.Logger) (binder.Requester, func(), error) {
	opts := provider.Options{
		Kind:        cfg.AssertionProvider,
		Audience:    cfg.AssertionAudience,
		ServiceName: cfg.ServiceName,
		Email:       cfg.Email,
		Value:       cfg.AssertionValue,
		Logger:      logger,
	}
	closeFn := func() {}
	if cfg.AssertionProvider == provider.KindSecret {
		store, err := secretstore.Dial(ctx, cfg.GCPProjectID, logger)
		if err != nil {
			return nil, nil, err
		}
		opts.Store = store
		closeFn = func() {
			if err := store.Close(); err != nil {
				fmt.Printf("Error closing Secret Manager client: %v\n", err)
			}
		}
	}
	requester, err := provider.New(ctx, opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return requester, closeFn, nil
}

// generate publishes a one-time token and prints it so it can be handed to
// another login client as a static assertion.
func generate(cfg *config.Config, args []string, logger *slog.Logger) error {
	parseFlags(cfg, args)
	if cfg.ServiceName == "" {
		return fmt.Errorf("the --serviceName flag is required")
	}
	if cfg.GCPProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID is required")
	}

	ctx := context.Background()
	store, err := secretstore.Dial(ctx, cfg.GCPProjectID, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Error closing Secret Manager client: %v\n", err)
		}
	}()

	assertion, err := provider.NewSecret(store, cfg.ServiceName, cfg.Email, logger).RequestAssertion(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Generated Token: %s\n", assertion)
	return nil
}
