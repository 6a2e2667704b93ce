// Command initdata prints a signed TON transport credential for local testing.
//
//	TELEGRAM_BOT_TOKEN=... go run ./cmd/initdata -user 42
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/sheikh-saqib/split-ledger-gateway/internal/config"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/identity/tma"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		config.Exitf("config: %v", err)
	}

	userID := flag.Int64("user", 0, "subject id to embed")
	age := flag.Duration("age", 0, "backdate auth_date by this duration")
	flag.Parse()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		config.Exitf("TELEGRAM_BOT_TOKEN is required")
	}
	if *userID <= 0 {
		config.Exitf("-user must be a positive integer")
	}

	fields := url.Values{}
	fields.Set("auth_date", strconv.FormatInt(time.Now().Add(-*age).Unix(), 10))
	fields.Set("query_id", "local")
	fields.Set("user", fmt.Sprintf(`{"id":%d}`, *userID))
	fmt.Println(tma.Sign(fields, token))
}
