package main

import (
	"context"
	"os"
	"time"

	"github.com/cppla/topichub/config"
	"github.com/cppla/topichub/fanout"
	"github.com/cppla/topichub/models"
	"github.com/cppla/topichub/registry"
	"github.com/cppla/topichub/routes"
	"github.com/cppla/topichub/store"
	"github.com/cppla/topichub/utils"
	"github.com/cppla/topichub/ws"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	_ = os.MkdirAll(cfg.UploadDir, 0o755)

	// Durable subscriptions live in MySQL and are reloaded at boot.
	db := config.InitDatabase(&models.Subscription{})
	reg := registry.New(registry.NewGormSubscriptionStore(db))
	if err := reg.Restore(); err != nil {
		utils.Sugar.Fatalf("restore subscriptions failed: %v", err)
	}

	// The search cluster holds posts and the notification backlog. Without
	// configured addresses both fall back to process-resident stores, which
	// do not survive a restart.
	var content store.ContentStore
	var nlog store.NotificationLog
	if len(cfg.SearchAddresses) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := store.NewSearchClient(ctx, cfg)
		if err != nil {
			cancel()
			utils.Sugar.Fatalf("search cluster unreachable: %v", err)
		}
		if err := store.EnsureIndexes(ctx, client, cfg); err != nil {
			cancel()
			utils.Sugar.Fatalf("index provisioning failed: %v", err)
		}
		cancel()
		content = store.NewSearchContentStore(client, cfg.SearchPostIndex)
		nlog = store.NewSearchNotificationLog(client, cfg.SearchNotificationIndex)
	} else {
		utils.Sugar.Warn("no search cluster configured, using in-memory stores")
		content = store.NewMemoryContentStore()
		nlog = store.NewMemoryNotificationLog()
	}

	hub := ws.NewHub(reg)
	go hub.Run()

	engine := fanout.New(content, nlog, reg, hub)

	r := routes.SetupRouter(engine, content, nlog, reg, hub)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
