package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jwolfsohn/Atlas-Sentinel/forecast"
	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

var (
	topLimit       int
	topCached      bool
	alertThreshold float64
	alertWeather   string
	ingestForce    bool
)

var assessCmd = &cobra.Command{
	Use:   "assess [route-id]",
	Short: "Score every route, or one route in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAssess,
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the riskiest routes with predicted delays",
	Args:  cobra.NoArgs,
	RunE:  runTop,
}

var delaysCmd = &cobra.Command{
	Use:   "delays [file]",
	Short: "Forecast cascading delays for assessments read from a file or stdin",
	Long: `Reads {"assessments": [...], "graph": {...}} as JSON from the named file,
or from stdin when the file is omitted or "-", and prints one forecast per assessment.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDelays,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass over every port, region and news feed",
	Args:  cobra.NoArgs,
	RunE:  runIngest,
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List routes at or above a risk threshold and active weather alerts",
	Args:  cobra.NoArgs,
	RunE:  runAlerts,
}

func init() {
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", 10, "number of routes to show")
	topCmd.Flags().BoolVar(&topCached, "cached", false, "rank routes by their stored scores without re-evaluating")
	alertsCmd.Flags().Float64Var(&alertThreshold, "threshold", 0.7, "minimum route risk")
	alertsCmd.Flags().StringVar(&alertWeather, "min-severity", string(models.SeverityModerate), "minimum weather severity")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", true, "bypass fresh cache entries")

	rootCmd.AddCommand(assessCmd, topCmd, delaysCmd, ingestCmd, alertsCmd)
}

func runAssess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) == 1 {
		rr, err := engine.Orchestrator.EvaluateRoute(ctx, args[0], false)
		if err != nil {
			return err
		}
		if opts.json {
			return outputJSON(cmd, rr)
		}
		printRouteDetail(cmd, rr)
		return nil
	}

	results, err := engine.Orchestrator.Evaluate(ctx, false)
	if err != nil {
		return err
	}
	if opts.json {
		return outputJSON(cmd, results)
	}
	cmd.Println(titleStyle.Render(fmt.Sprintf("%d routes by risk", len(results))))
	for _, rr := range results {
		printRouteLine(cmd, rr, nil)
	}
	return nil
}

func runTop(cmd *cobra.Command, _ []string) error {
	if topLimit <= 0 {
		return errors.New("--limit must be positive")
	}
	if topCached {
		return printCachedTop(cmd)
	}
	results, err := engine.Orchestrator.Evaluate(cmd.Context(), false)
	if err != nil {
		return err
	}
	if len(results) > topLimit {
		results = results[:topLimit]
	}

	assessments := make([]models.RiskAssessment, len(results))
	for i, rr := range results {
		assessments[i] = rr.Assessment
	}
	forecasts := engine.Orchestrator.PredictDelays(assessments, nil)

	if opts.json {
		type topRoute struct {
			Assessment models.RiskAssessment `json:"risk_assessment"`
			Delay      models.DelayForecast  `json:"delay"`
		}
		out := make([]topRoute, len(results))
		for i := range results {
			out[i] = topRoute{Assessment: results[i].Assessment, Delay: forecasts[i]}
		}
		return outputJSON(cmd, out)
	}

	cmd.Println(titleStyle.Render(fmt.Sprintf("Top %d routes", len(results))))
	for i, rr := range results {
		printRouteLine(cmd, rr, &forecasts[i])
	}
	return nil
}

// printCachedTop ranks routes by the scores the registry holds from the last evaluation.
func printCachedTop(cmd *cobra.Command) error {
	routes := engine.Orchestrator.TopRiskRoutes(topLimit)
	if opts.json {
		return outputJSON(cmd, routes)
	}
	cmd.Println(titleStyle.Render(fmt.Sprintf("Top %d routes (stored scores)", len(routes))))
	for _, r := range routes {
		line := fmt.Sprintf("  %-12s %s %.3f  %s", r.ID, renderLevel(r.RiskLevel), r.RiskScore, r.Name)
		if r.UpdatedAt.IsZero() {
			line += mutedStyle.Render("  never scored")
		}
		cmd.Println(line)
	}
	return nil
}

type delayInput struct {
	Assessments []models.RiskAssessment  `json:"assessments"`
	Graph       forecast.DependencyGraph `json:"graph"`
}

func runDelays(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	var in delayInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("decode delay input: %w", err)
	}
	for i, a := range in.Assessments {
		if a.RouteID == "" {
			return fmt.Errorf("assessment %d has no route_id", i)
		}
		if a.TotalRisk < 0 || a.TotalRisk > 1 {
			return fmt.Errorf("assessment %d: total_risk %.3f is outside [0, 1]", i, a.TotalRisk)
		}
		level := engine.Orchestrator.Classify(a.TotalRisk)
		switch a.RiskLevel {
		case "":
			in.Assessments[i].RiskLevel = level
		case level:
		default:
			return fmt.Errorf("assessment %d: risk_level %q does not match total_risk %.3f (%s)", i, a.RiskLevel, a.TotalRisk, level)
		}
	}

	forecasts := engine.Orchestrator.PredictDelays(in.Assessments, in.Graph)
	if opts.json {
		return outputJSON(cmd, forecasts)
	}
	cmd.Println(titleStyle.Render("Delay forecasts"))
	for _, f := range forecasts {
		cmd.Printf("  %-12s %s  %6.1fh (base %.1fh + cascade %.1fh)  %s\n",
			f.RouteID, renderLevel(f.RiskLevel), f.PredictedDelayHours, f.BaseDelay, f.CascadingDelay,
			mutedStyle.Render(fmt.Sprintf("confidence %.1f", f.Confidence)))
	}
	return nil
}

func runIngest(cmd *cobra.Command, _ []string) error {
	summary, err := engine.Orchestrator.IngestAll(cmd.Context(), ingestForce)
	if err != nil {
		return err
	}
	if opts.json {
		return outputJSON(cmd, summary)
	}

	cmd.Println(titleStyle.Render("Ingestion complete"))
	cmd.Printf("  ports:          %d\n", summary.Ports)
	cmd.Printf("  weather alerts: %d\n", summary.WeatherAlerts)
	regions := make([]string, 0, len(summary.NewsArticles))
	for region := range summary.NewsArticles {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	for _, region := range regions {
		cmd.Printf("  news %-14s %d\n", region+":", summary.NewsArticles[region])
	}
	cmd.Println(mutedStyle.Render(fmt.Sprintf("  took %s", summary.Duration)))
	return nil
}

func runAlerts(cmd *cobra.Command, _ []string) error {
	minSeverity, ok := models.ParseSeverity(alertWeather)
	if !ok {
		return fmt.Errorf("unknown severity %q", alertWeather)
	}

	results, err := engine.Orchestrator.Evaluate(cmd.Context(), false)
	if err != nil {
		return err
	}
	var flagged []models.RouteRisk
	for _, rr := range results {
		if rr.Assessment.TotalRisk >= alertThreshold {
			flagged = append(flagged, rr)
		}
	}
	weather, err := engine.Weather.ActiveAlerts(cmd.Context(), minSeverity)
	if err != nil {
		return err
	}

	if opts.json {
		return outputJSON(cmd, map[string]any{
			"routes":    flagged,
			"weather":   weather,
			"threshold": alertThreshold,
		})
	}

	cmd.Println(titleStyle.Render(fmt.Sprintf("%d routes at or above %.2f", len(flagged), alertThreshold)))
	for _, rr := range flagged {
		printRouteLine(cmd, rr, nil)
	}
	cmd.Println()
	cmd.Println(titleStyle.Render(fmt.Sprintf("%d active weather alerts", len(weather))))
	for _, a := range weather {
		cmd.Printf("  %s %-14s %-10s %5.1fh  %s\n",
			renderSeverity(a.Severity), a.Zone, a.Type, a.DurationHours, a.AffectedPortName)
	}
	return nil
}

func printRouteLine(cmd *cobra.Command, rr models.RouteRisk, delay *models.DelayForecast) {
	line := fmt.Sprintf("  %-12s %s %.3f  %s", rr.Route.ID, renderLevel(rr.Assessment.RiskLevel),
		rr.Assessment.TotalRisk, rr.Route.Name)
	if delay != nil {
		line += mutedStyle.Render(fmt.Sprintf("  delay %.1fh", delay.PredictedDelayHours))
	}
	cmd.Println(line)
}

func printRouteDetail(cmd *cobra.Command, rr models.RouteRisk) {
	a := rr.Assessment
	cmd.Println(titleStyle.Render(rr.Route.Name))
	cmd.Printf("  risk       %s %.3f (%s)\n", renderLevel(a.RiskLevel), a.TotalRisk, a.Model)
	cmd.Printf("  weather    %.3f  %s %s\n", a.Components.Weather, renderSeverity(rr.Weather.Severity), rr.Weather.Type)
	cmd.Printf("  sentiment  %.3f  score %.2f over %d articles\n",
		a.Components.Sentiment, rr.Sentiment.SentimentScore, rr.Sentiment.ArticleCount)
	cmd.Printf("  congestion %.3f  index %.2f, %d vessels, %.1fh wait\n",
		a.Components.Congestion, rr.Congestion.CongestionIndex, rr.Congestion.VesselCount, rr.Congestion.WaitTimeHours)
	cmd.Printf("  historical %.3f\n", a.Components.Historical)
	for _, end := range []models.EndpointSignals{rr.Origin, rr.Destination} {
		cmd.Println(mutedStyle.Render(fmt.Sprintf("  %s: congestion %.2f (%s), %d articles",
			end.PortName, end.Congestion.CongestionIndex, end.Congestion.Trend, len(end.News))))
	}
}
