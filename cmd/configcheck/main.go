package main

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"taskboard/configs"
)

func main() {
	cfg, err := configs.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Println("Configuration loaded")
	fmt.Println("==================================")
	fmt.Printf("Server:\n")
	fmt.Printf("  Address: %s\n", cfg.Server.Address())
	fmt.Printf("  Shutdown Timeout: %v\n", cfg.Server.ShutdownTimeout)
	fmt.Printf("  CORS Origins: %s\n", strings.Join(cfg.Server.CORSOrigins, ", "))

	fmt.Printf("\nDatabase:\n")
	fmt.Printf("  Driver: %s\n", cfg.Database.Driver)
	fmt.Printf("  URL: %s\n", maskURL(cfg.Database.URL))
	fmt.Printf("  Max Open Conns: %d\n", cfg.Database.MaxOpenConns)
	fmt.Printf("  Auto Migrate: %t\n", cfg.Database.AutoMigrate)

	fmt.Printf("\nScheduler:\n")
	fmt.Printf("  Poll Interval: %v\n", cfg.Scheduler.PollInterval)
	fmt.Printf("  Catch-up Window: %v\n", cfg.Scheduler.CatchUpWindow)
	fmt.Printf("  Batch Size: %d\n", cfg.Scheduler.BatchSize)

	fmt.Printf("\nWorker:\n")
	fmt.Printf("  Pool Size: %d\n", cfg.Worker.PoolSize)

	fmt.Printf("\nMail:\n")
	fmt.Printf("  Enabled: %t\n", cfg.Mail.Enabled)
	fmt.Printf("  Server: %s:%d (implicit TLS: %t)\n", cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.ImplicitTLS)
	fmt.Printf("  Username: %s\n", cfg.Mail.Username)
	fmt.Printf("  Password: %s\n", maskSecret(cfg.Mail.Password))
	fmt.Printf("  From: %s <%s>\n", cfg.Mail.FromName, cfg.Mail.From)
	fmt.Printf("  Timeout: %v\n", cfg.Mail.Timeout)

	fmt.Printf("\nCircuit Breaker:\n")
	fmt.Printf("  Max Failures: %d\n", cfg.Breaker.MaxFailures)
	fmt.Printf("  Reset Timeout: %v\n", cfg.Breaker.ResetTimeout)

	fmt.Printf("\nAuth:\n")
	fmt.Printf("  Mode: %s\n", cfg.Auth.Mode)
	if cfg.Auth.Mode == "session" {
		fmt.Printf("  Redis: %s (db %d)\n", cfg.Auth.RedisAddr, cfg.Auth.RedisDB)
		fmt.Printf("  Redis Password: %s\n", maskSecret(cfg.Auth.RedisPassword))
		fmt.Printf("  Session TTL: %v\n", cfg.Auth.SessionTTL)
	}

	fmt.Printf("\nLogging:\n")
	fmt.Printf("  Environment: %s\n", cfg.Log.Environment)
	fmt.Printf("  Level: %s\n", cfg.Log.Level)
	fmt.Printf("  Format: %s\n", cfg.Log.Format)
	if cfg.Log.File != "" {
		fmt.Printf("  File: %s (%d MB x %d, %d days)\n", cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays)
	}

	fmt.Println("\n==================================")
	fmt.Println("All configurations are valid")
}

func maskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}

// maskURL hides the password of a URL-style or MySQL-style DSN
func maskURL(raw string) string {
	if !strings.Contains(raw, "://") {
		at := strings.LastIndex(raw, "@")
		colon := strings.Index(raw, ":")
		if at > 0 && colon >= 0 && colon < at {
			return raw[:colon+1] + "***" + raw[at:]
		}
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
