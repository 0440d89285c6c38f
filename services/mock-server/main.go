package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stoik/timeline/services/mock-server/internal/mock"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	store := mock.NewStore(50, time.Now().UnixNano())
	stop := make(chan struct{})
	go store.GeneratePeriodically(mock.GenerateInterval, stop)

	r := gin.Default()
	mock.Routes(r, store)

	addr := fmt.Sprintf(":%s", port)
	slog.Info("starting mock GitHub API", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("mock server stopped", "error", err)
		os.Exit(1)
	}
}
