// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/uptimeguard/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.FromEnv()
	if err != nil {
		fail(err.Error())
	}

	if len(cfg.AdminAPIKeys) == 0 {
		fail("ADMIN_API_KEYS is empty (GET /api/check-servers will 401).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty; only admin keys can run single checks.")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for _, name := range []string{"ADMIN_API_KEYS", "PUBLIC_API_KEYS"} {
		if strings.Contains(os.Getenv(name), " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	ok("API_ADDR=" + cfg.Addr)

	switch cfg.Store {
	case config.StoreMemory:
		if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
			fail("STORE=memory under Lambda; every cold start begins with no targets.")
		}
		warn("STORE=memory; history and status are lost on restart.")
	case config.StoreDynamo:
		ok("STORE=dynamodb region=" + cfg.AWSRegion + " prefix=" + cfg.DynamoTablePrefix)
	default:
		ok("STORE=" + cfg.Store + " (DATABASE_URL present)")
	}

	loc, _ := cfg.Location()
	ok("TIMEZONE=" + loc.String() + " (schedule windows and daily rollup use this zone)")

	switch {
	case cfg.ResendAPIKey != "":
		ok("mail via Resend")
	case cfg.SMTPHost != "":
		ok(fmt.Sprintf("mail via SMTP %s:%d", cfg.SMTPHost, cfg.SMTPPort))
	default:
		warn("no RESEND_API_KEY or SMTP_HOST; alert mails will only be logged.")
	}
	if cfg.SlackWebhookURL != "" {
		ok("Slack ops mirror enabled")
	}

	if cfg.TriggerInterval > 0 {
		ok("in-process trigger every " + cfg.TriggerInterval.String())
	} else {
		warn("TRIGGER_INTERVAL=0; an external scheduler must call GET /api/check-servers.")
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		warn("ALLOWED_ORIGINS=*; any browser origin may call the API.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ok("preflight passed")
}
