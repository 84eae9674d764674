package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"devecho/bot"
	"devecho/server"
	"devecho/telegram"
)

var (
	serveAddr  string
	noTelegram bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and the HTTP chat API",
	Long: `Start the conversation service. Telegram updates are long-polled when
telegram.token (or BOT_TOKEN) is set; the JSON chat API is always served.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "http listen address (overrides config.server_addr)")
	serveCmd.Flags().BoolVar(&noTelegram, "no-telegram", false, "serve only the HTTP API")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.ServerAddr = serveAddr
	}
	cfg.LinkedIn.Verbose = cfg.LinkedIn.Verbose || verbose
	logger := log.Default()

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	router := bot.NewRouter()
	outbox := server.NewOutbox()
	router.Register(server.Transport, outbox)

	var linker bot.Linker
	if a.linker != nil {
		linker = a.linker
		logger.Printf("[cli] linkedin sign-in enabled, redirect %s", cfg.LinkedIn.RedirectURL)
	}
	machine, err := bot.NewMachine(bot.Config{
		Sessions:    bot.NewSessionStore(),
		Linker:      linker,
		Pipeline:    a.runner,
		Publisher:   a.publisher,
		Tones:       a.tones,
		Notifier:    router,
		MaxDrafts:   cfg.Session.MaxDrafts,
		Attribution: cfg.LinkedIn.Attribution,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	srv, err := server.New(machine, a.runner, outbox, logger)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var dispatcher *bot.Dispatcher
	switch {
	case noTelegram:
	case cfg.Telegram.Token == "":
		logger.Printf("[cli] BOT_TOKEN not set, telegram transport disabled")
	default:
		tg, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.Debug, logger)
		if err != nil {
			return fmt.Errorf("telegram login: %w", err)
		}
		router.Register(telegram.Transport, tg)
		dispatcher = bot.NewDispatcher(machine, tg.Reply, logger)
		g.Go(func() error { return tg.Run(ctx, dispatcher) })
	}

	idle, err := cfg.IdleTimeout()
	if err != nil {
		return err
	}
	if idle > 0 {
		sweeper, err := bot.NewSweeper(machine.Sessions(), idle, cfg.Session.SweepSchedule, logger)
		if err != nil {
			return err
		}
		sweeper.Start()
		defer func() { <-sweeper.Stop().Done() }()
	}

	g.Go(func() error {
		log.Printf("Starting web server on %s", cfg.ServerAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	logger.Printf("[cli] waiting for in-flight runs")
	machine.Wait()
	return err
}
