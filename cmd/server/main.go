package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"polyboard/internal/api"
	"polyboard/internal/api/handler"
	"polyboard/internal/app/autoverify"
	"polyboard/internal/app/service"
	"polyboard/internal/app/worker"
	"polyboard/internal/common"
	"polyboard/internal/common/security"
	"polyboard/internal/domain/model"
	"polyboard/internal/domain/repository"
	"polyboard/internal/platform/cache"
	"polyboard/internal/platform/config"
	"polyboard/internal/platform/database"

	"github.com/spf13/cobra"
)

type app struct {
	queue       *autoverify.Queue
	autoWorker  *worker.AutoVerifyWorker
	authHandler *handler.AuthHandler
	solveHdl    *handler.SolveHandler
	modHdl      *handler.ModerationHandler
}

func buildApp() *app {
	// Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	solveRepo := repository.NewPgSolveRepository(database.DB)
	puzzleRepo := repository.NewPgPuzzleRepository(database.DB)
	auditRepo := repository.NewPgAuditLogRepository(database.DB)

	// Shared state
	queue := autoverify.NewQueue()
	switches := &common.Switches{}
	notifier := service.NewNotifier(config.AppConfig.NotifyWebhookURL)

	// Services
	authService := service.NewAuthService(userRepo, switches)
	solveService := service.NewSolveService(solveRepo, auditRepo, notifier, database.DB)
	submitService := service.NewSubmitService(
		solveRepo, puzzleRepo, queue, cache.RDB, switches,
		config.AppConfig.SubmitDedupTTL, database.DB)

	// Autoverification pipeline
	engine := autoverify.NewEngine(config.AppConfig.TrustedProgramAbbr)
	verifier := autoverify.NewProgramVerifier(config.AppConfig.VerifierPath)
	autoWorker := worker.NewAutoVerifyWorker(
		queue, engine, verifier, solveService, notifier,
		solveRepo, puzzleRepo, userRepo)

	return &app{
		queue:       queue,
		autoWorker:  autoWorker,
		authHandler: handler.NewAuthHandler(authService),
		solveHdl:    handler.NewSolveHandler(solveService, submitService, queue, userRepo),
		modHdl: handler.NewModerationHandler(
			solveService, autoWorker, queue, switches, auditRepo, userRepo),
	}
}

func serve() {
	a := buildApp()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go a.autoWorker.Start(workerCtx)

	// Pick up solves left pending by a previous run.
	if n, err := a.autoWorker.EnqueueAllPending(workerCtx); err != nil {
		log.Printf("WARN: Failed to enqueue pending solves at startup: %v", err)
	} else if n > 0 {
		log.Printf("Enqueued %d pending solves at startup", n)
	}

	router := api.NewRouter(a.authHandler, a.solveHdl, a.modHdl)
	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop

	log.Println("Shutting down server...")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server and worker stopped gracefully.")
}

func connect() {
	config.Load()
	fmt.Println("Configuration loaded.")

	security.InitJWT()

	database.Connect()
	cache.ConnectRedis()
}

func disconnect() {
	cache.CloseRedis()
	database.Close()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "polyboard",
		Short: "Puzzle leaderboard server with solve autoverification",
		Run: func(cmd *cobra.Command, args []string) {
			connect()
			defer disconnect()
			serve()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Runs the API server and autoverification worker",
		Run: func(cmd *cobra.Command, args []string) {
			connect()
			defer disconnect()
			serve()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "verify <solve-id>",
		Short: "Autoverifies one solve immediately and exits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid solve id %q", args[0])
			}

			connect()
			defer disconnect()

			a := buildApp()
			return a.autoWorker.ProcessSolve(cmd.Context(), model.SolveID(id))
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
