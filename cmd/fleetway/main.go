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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fleetway/fleetway/internal/app"
	"github.com/fleetway/fleetway/internal/config"
	"github.com/fleetway/fleetway/internal/observability"
	"github.com/fleetway/fleetway/internal/repository"
	"github.com/fleetway/fleetway/internal/tools/sessiontop"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fleetway",
		Short:         "Fleetway authentication and session service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is not an error; the environment wins either way.
			_ = godotenv.Load()
		},
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newBootstrapCommand())
	root.AddCommand(newSessionsCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
			if err != nil {
				return err
			}
			runtime, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
			if err != nil {
				return err
			}

			application, err := app.New(ctx, cfg, logger, runtime)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("http server listening", "addr", cfg.ListenAddr)
				if err := application.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				application.SweepExpiredSessions(gctx, cfg.SessionSweepInterval)
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				logger.Info("shutting down")
				if err := application.Server.Shutdown(shutdownCtx); err != nil {
					return err
				}
				return application.Close(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func newBootstrapCommand() *cobra.Command {
	var username, password string
	var elevated bool
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create an account directly in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, loggerProvider, err := observability.InitLogging(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if loggerProvider != nil {
					_ = loggerProvider.Shutdown(cmd.Context())
				}
			}()

			application, err := app.New(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			account, err := application.Credentials.CreateAccount(username, password, elevated)
			if err != nil {
				return err
			}
			fmt.Printf("created account %s (%s)\n", account.Username, account.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&elevated, "elevated", false, "grant platform-wide admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSessionsCommand() *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Interactive dashboard over active sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, loggerProvider, err := observability.InitLogging(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if loggerProvider != nil {
					_ = loggerProvider.Shutdown(cmd.Context())
				}
			}()

			application, err := app.New(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			return sessiontop.Run(&storeSource{app: application}, refresh)
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 2*time.Second, "dashboard refresh interval")
	return cmd
}

// storeSource adapts the repositories to the dashboard's Source interface.
type storeSource struct {
	app *app.App
}

func (s *storeSource) ActiveSessions() ([]sessiontop.Row, error) {
	sessions, err := s.app.Sessions.ListActive()
	if err != nil {
		return nil, err
	}
	accounts := repository.NewAccountRepository(s.app.DB)
	names := make(map[string]string)
	rows := make([]sessiontop.Row, 0, len(sessions))
	for _, session := range sessions {
		name, ok := names[session.AccountID]
		if !ok {
			if account, err := accounts.FindByID(session.AccountID); err == nil {
				name = account.Username
			}
			names[session.AccountID] = name
		}
		rows = append(rows, sessiontop.Row{
			SessionID: session.ID,
			Username:  name,
			FamilyID:  session.FamilyID,
			IP:        session.IP,
			UserAgent: session.UserAgent,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		})
	}
	return rows, nil
}

func (s *storeSource) RevokeSession(sessionID string) error {
	_, err := s.app.Sessions.DeleteByID(sessionID)
	return err
}
