package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"contractdesk/access"
	"contractdesk/audit"
	"contractdesk/config"
	"contractdesk/contract"
	"contractdesk/db"
	"contractdesk/logger"
	"contractdesk/notify"
	"contractdesk/record"
	"contractdesk/verify"
)

func main() {
	ctx := context.Background()

	cfg := loadConfig()

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "contractdesk")
	if err != nil {
		log.Fatalf("bootstrap logger: %v", err)
	}
	defer zlog.Sync()

	var (
		recordRepo record.Repository
		staffRepo  access.StaffRepository
		credStore  access.CredentialStore
		ledger     audit.Ledger
	)
	if cfg.DBEnabled {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("bootstrap database pool", zap.Error(err))
		}
		defer pool.Close()

		recordRepo = record.NewPGRepository(pool)
		staffRepo = access.NewPGStaffRepository(pool)
		credStore = access.NewPGCredentialStore(pool)
		ledger = audit.NewPGLedger(pool)
		zlog.Info("record store backed by postgres")
	} else {
		recordRepo = record.NewMemoryRepository()
		staffRepo = access.NewMemoryStaffRepository()
		credStore = access.NewMemoryCredentialStore("")
		ledger = audit.NewMemoryLedger()
		zlog.Warn("database disabled, using in-memory stores")
	}

	var sessions verify.SessionStore
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			zlog.Fatal("bootstrap redis", zap.Error(err))
		}
		defer client.Close()
		sessions = verify.NewRedisStore(client, time.Hour)
		zlog.Info("verification sessions backed by redis")
	} else {
		sessions = verify.NewMemoryStore()
	}

	var notifier notify.Notifier
	if cfg.SMSGate.Enabled {
		notifier = notify.NewGateway(notify.GatewayConfig{
			BaseURL: cfg.SMSGate.BaseURL,
			APIKey:  cfg.SMSGate.APIKey,
			Sender:  cfg.SMSGate.Sender,
		}, zlog)
	} else {
		notifier = notify.NewSimulated(zlog)
	}

	accessSvc := access.NewService(staffRepo, credStore, ledger, cfg.JWTSecret)
	if err := accessSvc.EnsureAdminSeed(ctx, cfg.AdminSeedPassword); err != nil {
		zlog.Fatal("seed admin credential", zap.Error(err))
	}

	recordSvc := record.NewService(recordRepo, ledger)
	verifySvc := verify.NewService(sessions, notifier, ledger, zlog)
	facade := contract.NewService(recordSvc, verifySvc, accessSvc, ledger, zlog)

	admin := access.Actor{Role: access.RoleAdmin, Username: access.AdminUsername}
	boot := facade.ListRecords(ctx, admin)
	if !boot.Success {
		zlog.Fatal("record store check failed", zap.String("message", boot.Message))
	}
	zlog.Info("contract desk core ready", zap.Int("records", len(boot.Data)))
}

func loadConfig() *config.Config {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			log.Fatalf("load config file: %v", err)
		}
		return cfg
	}
	return config.Load()
}
