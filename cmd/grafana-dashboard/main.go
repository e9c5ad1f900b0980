package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/grafana/grafana-foundation-sdk/go/prometheus"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

func main() {
	builder := dashboard.NewDashboardBuilder("Prompthook").
		Uid("prompthook").
		Tags([]string{"prompthook", "webhooks", "prometheus"}).
		Refresh("1m").
		Time("now-6h", "now").
		Timezone(common.TimeZoneBrowser)

	builder = builder.WithRow(dashboard.NewRowBuilder("Webhook intake"))
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Events received / accepted").
			WithTarget(
				prometheus.NewDataqueryBuilder().
					Expr(`sum(rate(prompthook_events_received_total[5m]))`).
					LegendFormat("received"),
			).
			WithTarget(
				prometheus.NewDataqueryBuilder().
					Expr(`sum(rate(prompthook_events_accepted_total[5m]))`).
					LegendFormat("accepted"),
			),
	)
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Events rejected / rate limited").
			WithTarget(
				prometheus.NewDataqueryBuilder().
					Expr(`sum(rate(prompthook_events_rejected_total[5m]))`).
					LegendFormat("rejected"),
			).
			WithTarget(
				prometheus.NewDataqueryBuilder().
					Expr(`sum(rate(prompthook_events_rate_limited_total[5m]))`).
					LegendFormat("rate_limited"),
			),
	)

	builder = builder.WithRow(dashboard.NewRowBuilder("GitHub commits"))
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Commit rate").
			WithTarget(
				prometheus.NewDataqueryBuilder().
					Expr(`sum(rate(prompthook_github_commits_total[5m]))`).
					LegendFormat("commits"),
			).
			WithTarget(
				prometheus.NewDataqueryBuilder().
					Expr(`sum(rate(prompthook_github_commit_errors_total[5m]))`).
					LegendFormat("errors"),
			),
	)
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Commit duration avg").
			WithTarget(
				prometheus.NewDataqueryBuilder().
					Expr(`sum(rate(prompthook_github_commit_duration_seconds_sum[5m])) / sum(rate(prompthook_github_commit_duration_seconds_count[5m]))`).
					LegendFormat("avg"),
			),
	)

	builder = builder.WithRow(dashboard.NewRowBuilder("Fan-out"))
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Sink deliveries").
			WithTarget(
				prometheus.NewDataqueryBuilder().
					Expr(`sum(rate(prompthook_notify_publishes_total[5m]))`).
					LegendFormat("delivered"),
			).
			WithTarget(
				prometheus.NewDataqueryBuilder().
					Expr(`sum(rate(prompthook_notify_publish_errors_total[5m]))`).
					LegendFormat("failed"),
			),
	)

	dashboardJSON, err := builder.Build()
	if err != nil {
		panic(err)
	}

	outputPath := os.Getenv("DASHBOARD_OUT")
	if outputPath == "" {
		outputPath = "dashboard.json"
	}

	payload, err := json.MarshalIndent(dashboardJSON, "", "  ")
	if err != nil {
		panic(err)
	}

	if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
		panic(err)
	}

	fmt.Printf("dashboard written to %s\n", outputPath)
}
