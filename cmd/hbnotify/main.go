// Package main implements the hbnotify CLI tool for reporting one-off
// errors from shell scripts, cron jobs, and deploy hooks.
//
// Usage:
//
//	hbnotify -message "nightly backup failed: disk full"
//	hbnotify -class CronError -message "sync aborted" -tag cron -tag backups
//	hbnotify -message "deploy rolled back" -context release=v1.42.0 -context region=eu-west-1
//	hbnotify -dry-run -message "preview the payload without sending"
//
// The tool reads HONEYBADGER_API_KEY and the other HONEYBADGER_* variables
// from the environment (or a .env file via godotenv). In -dry-run mode it
// prints the constructed notice JSON to stdout without sending anything;
// the API key never appears in preview output.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	honeybadger "github.com/fussybeaver/honeybadger-go"
	"github.com/fussybeaver/honeybadger-go/notice"
)

// kvFlag collects repeatable key=value pairs into a map.
type kvFlag map[string]string

func (f kvFlag) String() string {
	pairs := make([]string, 0, len(f))
	for k, v := range f {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (f kvFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	f[k] = v
	return nil
}

// listFlag collects repeatable string values in order.
type listFlag []string

func (f *listFlag) String() string { return strings.Join(*f, ",") }

func (f *listFlag) Set(s string) error {
	*f = append(*f, s)
	return nil
}

func main() {
	contexts := kvFlag{}
	var tags listFlag

	messageFlag := flag.String("message", "", "Error message to report (required)")
	classFlag := flag.String("class", "CommandError", "Error class used for grouping")
	fingerprintFlag := flag.String("fingerprint", "", "Override the grouping fingerprint")
	componentFlag := flag.String("component", "", "Component (module) to attribute the error to")
	actionFlag := flag.String("action", "", "Action within the component")
	timeoutFlag := flag.Duration("timeout", 0, "Override delivery timeout (e.g., 10s; default HONEYBADGER_TIMEOUT or 5s)")
	dryRunFlag := flag.Bool("dry-run", false, "Print the notice JSON without sending")
	flag.Var(contexts, "context", "Context entry as key=value (repeatable)")
	flag.Var(&tags, "tag", "Tag to attach to the notice (repeatable)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hbnotify [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Report a one-off error notice from the command line.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nConfiguration is read from HONEYBADGER_* environment variables or a .env file.\n")
	}

	flag.Parse()

	if *messageFlag == "" {
		fmt.Fprintf(os.Stderr, "error: -message is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	// Initialize structured logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	var cfgOpts []honeybadger.ConfigOption
	if *timeoutFlag > 0 {
		cfgOpts = append(cfgOpts, honeybadger.WithTimeout(*timeoutFlag))
	}

	// LoadConfig reads the environment and a .env file if one is present.
	cfg, err := honeybadger.LoadConfig(cfgOpts...)
	if err != nil {
		if !*dryRunFlag {
			logger.Error("configuration failed", "error", err)
			os.Exit(1)
		}
		// Dry-run never sends, so a missing or invalid environment falls
		// back to defaults with a placeholder key.
		cfg, err = honeybadger.NewConfig("dry-run", cfgOpts...)
		if err != nil {
			logger.Error("configuration failed", "error", err)
			os.Exit(1)
		}
	}

	client, err := honeybadger.New(cfg, honeybadger.WithLogger(logger))
	if err != nil {
		logger.Error("client initialization failed", "error", err)
		os.Exit(1)
	}

	var noticeOpts []honeybadger.NoticeOption
	if len(contexts) > 0 {
		ctxMap := make(map[string]any, len(contexts))
		for k, v := range contexts {
			ctxMap[k] = v
		}
		noticeOpts = append(noticeOpts, honeybadger.WithContext(ctxMap))
	}
	if len(tags) > 0 {
		noticeOpts = append(noticeOpts, honeybadger.WithTags(tags...))
	}
	if *fingerprintFlag != "" {
		noticeOpts = append(noticeOpts, honeybadger.WithFingerprint(*fingerprintFlag))
	}
	if *componentFlag != "" {
		noticeOpts = append(noticeOpts, honeybadger.WithComponent(*componentFlag))
	}
	if *actionFlag != "" {
		noticeOpts = append(noticeOpts, honeybadger.WithAction(*actionFlag))
	}

	reported := notice.New(*classFlag, *messageFlag)

	// If dry-run, print the notice JSON and exit.
	if *dryRunFlag {
		printNotice(client, reported, noticeOpts, cfg.Endpoint)
		return
	}

	// Set up cancellation context with signal handling.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := client.Notify(ctx, reported, noticeOpts...)
	if err != nil {
		var herr *honeybadger.Error
		if errors.As(err, &herr) {
			logger.Error("notice delivery failed",
				"code", string(herr.Code),
				"status", herr.StatusCode,
				"error", err,
			)
		} else {
			logger.Error("notice delivery failed", "error", err)
		}
		os.Exit(1)
	}

	logger.Info("notice delivered",
		"notice_id", result.ID,
		"status", result.StatusCode,
	)
}

// printNotice marshals the constructed notice to pretty-printed JSON and
// writes it to stdout for inspection or piping.
func printNotice(client *honeybadger.Client, reported notice.Error, opts []honeybadger.NoticeOption, endpoint string) {
	n, err := client.NewNotice(reported, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to build notice: %v\n", err)
		os.Exit(1)
	}

	// Never echo the key in preview output.
	n.APIKey = ""

	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to marshal notice: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
	fmt.Fprintf(os.Stderr, "\nDry run: nothing sent. Target endpoint: %s\n", endpoint)
}
