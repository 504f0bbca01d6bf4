package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camwatch/internal/broadcast"
	"github.com/smazurov/camwatch/internal/config"
	"github.com/smazurov/camwatch/internal/detection"
	"github.com/smazurov/camwatch/internal/logging"
)

// SubscribeOptions are the flags of the subscribe command.
type SubscribeOptions struct {
	URL         string
	CameraID    string
	ThrottleN   int
	Deduplicate bool
	PerCamera   bool
	JSON        bool
	Snapshots   bool
}

// CreateSubscribeCmd creates the subscribe command.
func CreateSubscribeCmd() *cobra.Command {
	var opts SubscribeOptions
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Print detection events from a running camwatch",
		Long: `Connects to the broadcast channel of a camwatch service and prints every event that passes ` +
			`the local throttle and dedup filters. Filtering happens here; the publisher is unaffected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The service's [logging] table applies here too when a config
			// file is given on the root command.
			logCfg := logging.Config{Level: "info", Format: "text"}
			if f := cmd.Flags().Lookup("config"); f != nil {
				logCfg = config.LoadLoggingConfig(f.Value.String())
			}
			if logJSON {
				logCfg.Format = "json"
			}
			logging.Initialize(logCfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return RunSubscribe(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "nats://127.0.0.1:5555", "Broadcast channel address")
	cmd.Flags().StringVar(&opts.CameraID, "camera", "", "Only receive events from this camera")
	cmd.Flags().IntVar(&opts.ThrottleN, "throttle-n", 0, "Surface every n-th event, 0 disables throttling")
	cmd.Flags().BoolVar(&opts.Deduplicate, "deduplicate", true, "Suppress events whose label set did not change")
	cmd.Flags().BoolVar(&opts.PerCamera, "per-camera", false, "Track dedup state per camera")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print events as JSON lines")
	cmd.Flags().BoolVar(&opts.Snapshots, "snapshots", false, "Keep base64 snapshots in JSON output")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Log in JSON format")
	return cmd
}

// RunSubscribe prints surfaced events to w until ctx is done.
func RunSubscribe(ctx context.Context, opts SubscribeOptions, w io.Writer) error {
	logger := logging.GetLogger("broadcast")
	sub := broadcast.NewSubscriber(broadcast.SubscriberOptions{
		URL:      opts.URL,
		CameraID: opts.CameraID,
		Filter: broadcast.FilterOptions{
			ThrottleN:   opts.ThrottleN,
			Deduplicate: opts.Deduplicate,
			PerCamera:   opts.PerCamera,
		},
		Logger: logger,
	})

	var writeErr error
	err := sub.Run(ctx, func(e detection.Event) {
		if writeErr != nil {
			return
		}
		line, err := formatEvent(e, opts)
		if err != nil {
			logger.Warn("Cannot format event", "error", err)
			return
		}
		_, writeErr = fmt.Fprintln(w, line)
	})

	stats := sub.Stats()
	logger.Info("Subscriber finished",
		"received", stats.Received,
		"surfaced", stats.Surfaced,
		"malformed", stats.Malformed,
		"dropped", stats.Dropped,
		"foreign", stats.Foreign)
	if err != nil {
		return err
	}
	return writeErr
}

// formatEvent renders one event as a text line or a JSON object.
func formatEvent(e detection.Event, opts SubscribeOptions) (string, error) {
	if !opts.Snapshots {
		e.Snapshot = ""
	}
	if opts.JSON {
		data, err := json.Marshal(e)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	camera := e.CameraID
	if camera == "" {
		camera = "-"
	}
	labels := "none"
	if len(e.Labels) > 0 {
		labels = strings.Join(e.Labels, ",")
	}
	return fmt.Sprintf("%s camera=%s detections=%d labels=%s",
		e.Time().UTC().Format(time.RFC3339Nano), camera, len(e.Labels), labels), nil
}
