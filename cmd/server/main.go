package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/clinicore/clinicore/internal/api"
	"github.com/clinicore/clinicore/internal/api/handler"
	"github.com/clinicore/clinicore/internal/authz"
	"github.com/clinicore/clinicore/internal/config"
	"github.com/clinicore/clinicore/internal/idempotency"
	"github.com/clinicore/clinicore/internal/identity"
	"github.com/clinicore/clinicore/internal/metrics"
	"github.com/clinicore/clinicore/internal/profile"
	"github.com/clinicore/clinicore/internal/provision"
	"github.com/clinicore/clinicore/internal/reconciler"
	"github.com/clinicore/clinicore/internal/role"
)

func main() {
	root := &cobra.Command{
		Use:          "clinicore",
		Short:        "Clinic administration backend",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd(), seedCmd(), reconcileCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// deps is the wired set of collaborators shared by all commands.
type deps struct {
	cfg      *config.Config
	provider identity.Provider
	store    profile.Store
	pinger   handler.Pinger
	policy   *authz.Policy
	recorder idempotency.Recorder
	cleanup  func()
}

func wire(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	setupLogger(cfg.LogLevel)

	d := &deps{cfg: cfg, policy: authz.New(cfg.BootstrapEmail), cleanup: func() {}}

	switch cfg.ProfileStoreDriver {
	case "postgres":
		pool, err := profile.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store := profile.NewPostgresStore(pool)
		if err := store.InitSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		d.store = store
		d.pinger = pool
		d.cleanup = pool.Close
	default:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("pinging mongo: %w", err)
		}
		d.store = profile.NewMongoStore(client.Database(cfg.MongoDatabase))
		d.pinger = mongoPinger{client: client}
		d.cleanup = func() { _ = client.Disconnect(context.Background()) }
	}

	switch cfg.IdentityMode {
	case "local":
		d.provider = identity.NewLocalProvider(cfg.BcryptCost, []byte(cfg.TokenSecret), cfg.TokenIssuer)
	default:
		d.provider = identity.NewRESTProvider(identity.RESTProviderConfig{
			BaseURL: cfg.IdentityURL,
			APIKey:  cfg.IdentityAdminAPIKey,
		})
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			d.cleanup()
			return nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		d.recorder = idempotency.NewRedisRecorder(redis.NewClient(opts), 0)
	} else {
		d.recorder = idempotency.NewMemoryRecorder(0)
	}

	return d, nil
}

type mongoPinger struct {
	client *mongo.Client
}

func (p mongoPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			d, err := wire(ctx)
			if err != nil {
				return err
			}
			defer d.cleanup()

			m := metrics.New()
			svc := provision.NewService(d.provider, d.store, d.policy, d.recorder)

			router := api.NewRouter(api.RouterDeps{
				Verifier:    identity.NewJWTVerifier([]byte(d.cfg.TokenSecret), d.cfg.TokenIssuer),
				Provision:   svc,
				Metrics:     m,
				StorePinger: d.pinger,
				Version:     d.cfg.Version,
			})

			if d.cfg.ReconcilerEnabled {
				opts := []reconciler.Option{
					reconciler.WithMetrics(m),
					reconciler.WithGrace(time.Duration(d.cfg.ReconcilerGrace) * time.Second),
				}
				if d.cfg.ReconcilerRepair {
					opts = append(opts, reconciler.WithRepair())
				}
				rec := reconciler.New(d.provider, d.store,
					time.Duration(d.cfg.ReconcilerInterval)*time.Second, opts...)
				go rec.Start(ctx)
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", d.cfg.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("starting server", "port", d.cfg.Port, "version", d.cfg.Version)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					serverErr <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-quit:
				slog.Info("shutting down server", "signal", sig.String())
			case err := <-serverErr:
				slog.Error("server error", "error", err)
				return err
			}
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer shutdownCancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down: %w", err)
			}

			slog.Info("server stopped gracefully")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var email, password, firstName, lastName string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial superadmin (one-time, out-of-band)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := wire(ctx)
			if err != nil {
				return err
			}
			defer d.cleanup()

			account, err := d.provider.CreateAccount(ctx, identity.NewAccount{
				Email:       email,
				Password:    password,
				DisplayName: firstName + " " + lastName,
			})
			if err != nil {
				if !errors.Is(err, identity.ErrEmailTaken) {
					return fmt.Errorf("creating superadmin account: %w", err)
				}
				account, err = findAccountByEmail(ctx, d.provider, email)
				if err != nil {
					return err
				}
				slog.Info("account already exists, reusing", "uid", account.UID)
			}

			p := profile.Profile{
				UID:       account.UID,
				Email:     email,
				FirstName: firstName,
				LastName:  lastName,
				Role:      role.RoleSuperadmin,
				CreatedAt: time.Now().UTC(),
			}
			if err := d.store.Put(ctx, &p); err != nil {
				if errors.Is(err, profile.ErrDuplicateProfile) {
					slog.Info("superadmin already seeded", "uid", account.UID)
					return nil
				}
				return fmt.Errorf("writing superadmin profile: %w", err)
			}

			slog.Info("superadmin seeded", "uid", account.UID, "email", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "superadmin email")
	cmd.Flags().StringVar(&password, "password", "", "superadmin password")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func findAccountByEmail(ctx context.Context, provider identity.Provider, email string) (*identity.Account, error) {
	accounts, err := provider.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	for i := range accounts {
		if accounts[i].Email == email {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("no account found for %s", email)
}

func reconcileCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run a single cross-store reconciliation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := wire(ctx)
			if err != nil {
				return err
			}
			defer d.cleanup()

			opts := []reconciler.Option{
				reconciler.WithGrace(time.Duration(d.cfg.ReconcilerGrace) * time.Second),
			}
			if repair {
				opts = append(opts, reconciler.WithRepair())
			}

			rec := reconciler.New(d.provider, d.store, time.Minute, opts...)
			report, err := rec.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("reconciliation failed: %w", err)
			}

			fmt.Printf("orphaned accounts: %d\n", len(report.OrphanAccounts))
			for _, uid := range report.OrphanAccounts {
				fmt.Printf("  account %s has no profile document\n", uid)
			}
			fmt.Printf("orphaned profiles: %d\n", len(report.OrphanProfiles))
			for _, uid := range report.OrphanProfiles {
				fmt.Printf("  profile %s has no identity-provider account\n", uid)
			}
			if repair {
				fmt.Printf("repaired: %d\n", len(report.Repaired))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "delete orphaned identity-provider accounts")

	return cmd
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
