package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"overlay-sync/internal/config"
	"overlay-sync/internal/handlers"
	"overlay-sync/internal/history"
	"overlay-sync/internal/middleware"
	"overlay-sync/internal/observability"
	"overlay-sync/internal/remote"
	"overlay-sync/internal/roomsync"
	"overlay-sync/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		log.Fatalf("failed to open history db: %v", err)
	}
	defer store.Close()

	client := remote.NewLogClient(cfg.RemoteBaseURL, cfg.RemoteAuthToken, nil)

	hub := ws.NewHub()
	sink := roomsync.MultiSink(hub, history.NewRecorder(store))

	engine := roomsync.NewEngine(client, sink, roomsync.Config{
		PollInterval:    cfg.PollInterval,
		InitialPageSize: cfg.InitialPageSize,
		BackoffBase:     cfg.BackoffBase,
		BackoffCap:      cfg.BackoffCap,
	})
	dispatcher := roomsync.NewDispatcher(engine, client, cfg.SenderName, cfg.SenderAvatar)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		log.Fatalf("failed to start sync engine: %v", err)
	}

	go pruneHistory(ctx, engine, store, cfg.HistoryKeep)

	roomHandler := handlers.NewRoomHandler(engine, dispatcher, store)
	socketHandler := ws.NewSocketHandler(hub, engine, cfg.APIToken)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.APIToken)

	router.GET("/healthz", roomHandler.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.GET("/rooms/:room", authMiddleware, roomHandler.GetRoom)
	router.POST("/rooms/:room/open", authMiddleware, roomHandler.OpenRoom)
	router.DELETE("/rooms/:room", authMiddleware, roomHandler.CloseRoom)
	router.GET("/rooms/:room/messages", authMiddleware, roomHandler.GetHistory)
	router.POST("/rooms/:room/messages", authMiddleware, roomHandler.SendMessage)
	router.POST("/rooms/:room/notices", authMiddleware, roomHandler.PostNotice)

	router.GET("/ws/rooms/:room", socketHandler.HandleRoom)
	router.GET("/ws/events", socketHandler.HandleEvents)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	engine.Shutdown()
}

// pruneHistory trims each open room's archive in the background.
func pruneHistory(ctx context.Context, engine *roomsync.Engine, store *history.Store, keep int) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, state := range engine.States() {
				if err := store.Prune(ctx, state.Room, keep); err != nil {
					log.Printf("history: prune %s: %v", state.Room, err)
				}
			}
		}
	}
}
