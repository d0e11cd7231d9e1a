package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/forumhub/messenger/internal/auth"
	"github.com/forumhub/messenger/internal/chat"
	"github.com/forumhub/messenger/internal/data"
	"github.com/forumhub/messenger/internal/db"
	"github.com/forumhub/messenger/internal/hub"
	"github.com/forumhub/messenger/internal/images"
	"github.com/forumhub/messenger/internal/middleware"
)

func main() {
	// Read configuration from environment
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Fatal("MONGODB_URI must be set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	imagesDir := os.Getenv("CHAT_IMAGES_DIR")
	if imagesDir == "" {
		imagesDir = "./uploads/chat"
	}
	// ALLOWED_ORIGINS is a comma-separated list of browser origins allowed
	// to open websocket connections. Unset means same-origin only.
	var allowedOrigins []string
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, mongoURI)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	// Create stores
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())

	// Token verification shares the secret with the outer forum app, which
	// mints the tokens (24h validity there as well).
	jwtMgr := auth.NewJWTManager(jwtSecret, 24*time.Hour)

	imageStore, err := images.NewDiskStore(imagesDir)
	if err != nil {
		log.Fatalf("failed to prepare image storage: %v", err)
	}

	// Real-time core: registry + rooms + dispatcher behind the gateway
	registry := hub.NewRegistry()
	rooms := hub.NewRooms()
	dispatcher := chat.NewDispatcher(usersStore, msgsStore, rooms, imageStore)
	gateway := chat.NewGateway(jwtMgr, registry, rooms, dispatcher, allowedOrigins)

	// RATE_LIMIT_RPM controls requests per minute per client IP.
	rateRPM := 60
	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateRPM = n
		}
	}
	limiterStore := middleware.NewLimiterStore(rateRPM, 5, 1*time.Minute)
	defer limiterStore.Stop()

	srv := newServer(usersStore, msgsStore, registry)

	mux := http.NewServeMux()
	// The gateway authenticates the handshake itself (token in query or
	// header) and refuses before upgrading.
	mux.HandleFunc("GET /ws", gateway.HandleWS)
	mux.Handle("GET /chat/messages/{userID}", requireAuth(jwtMgr, http.HandlerFunc(srv.handleHistory)))
	mux.Handle("GET /chat/unread-count", requireAuth(jwtMgr, http.HandlerFunc(srv.handleUnreadCount)))
	mux.Handle("GET /chat/partners", requireAuth(jwtMgr, http.HandlerFunc(srv.handlePartners)))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           middleware.RateLimit(limiterStore, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("messenger listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM. Live connections are dropped;
	// clients reconnect against the next process.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
