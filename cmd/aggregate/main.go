package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/charity-iap-backend/internal/app"
	"github.com/yungbote/charity-iap-backend/internal/modules/reports"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/platform/shutdown"
)

func main() {
	var month string
	var async bool
	flag.StringVar(&month, "month", "", "month to aggregate as YYYY-MM (default: previous UTC month)")
	flag.BoolVar(&async, "async", false, "enqueue a monthly_report job instead of running inline")
	flag.Parse()

	if month == "" {
		month = reports.PreviousMonth(time.Now())
	}

	_ = godotenv.Load()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	var out any
	if async {
		job, err := application.Services.Reports.EnqueueGenerate(dbctx.Context{Ctx: ctx}, month)
		if err != nil {
			fmt.Printf("enqueue %s: %v\n", month, err)
			os.Exit(1)
		}
		out = job
	} else {
		report, err := application.Services.Reports.Generate(ctx, month)
		if err != nil {
			fmt.Printf("aggregate %s: %v\n", month, err)
			os.Exit(1)
		}
		out = report
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Printf("encode: %v\n", err)
		os.Exit(1)
	}
}
