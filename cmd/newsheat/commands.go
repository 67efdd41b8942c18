package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doctadg/perpstrader-sub004/internal/heatmap"
	"github.com/doctadg/perpstrader-sub004/internal/news"
)

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- heatmap ---

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Show the ranked news heatmap",
	Long: `Show the ranked news heatmap.

Examples:
  newsheat heatmap
  newsheat heatmap --hours 48 --limit 20
  newsheat heatmap --category crypto --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, _ := cmd.Flags().GetInt("hours")
		limit, _ := cmd.Flags().GetInt("limit")
		category, _ := cmd.Flags().GetString("category")
		force, _ := cmd.Flags().GetBool("force")
		asJSON, _ := cmd.Flags().GetBool("json")

		q := url.Values{}
		if hours > 0 {
			q.Set("hours", strconv.Itoa(hours))
		}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}
		if category != "" {
			q.Set("category", category)
		}
		if force {
			q.Set("force", "true")
		}

		client := newAPIClient()
		resp, err := client.get(cmd.Context(), withQuery("/v1/news/heatmap", q))
		if err != nil {
			return err
		}

		var result heatmap.Result
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if asJSON {
			return printJSON(result)
		}

		fmt.Printf("%s  %dh window, %d clusters, %d articles\n",
			colorize(colorBold, "News heatmap"), result.Hours, result.TotalClusters, result.TotalArticles)
		if result.LLM.Enabled {
			fmt.Printf("Labels: %s (%.0f%% coverage)\n", result.LLM.Model, result.LLM.Coverage*100)
		}

		if len(result.Clusters) == 0 {
			fmt.Println("\nNo clusters in this window.")
			return nil
		}

		for i, cl := range result.Clusters {
			topic := cl.Topic
			if len(topic) > 70 {
				topic = topic[:70] + "..."
			}
			fmt.Printf("\n%3d. %s %s  %s\n",
				i+1, heatColor(cl.HeatScore), trendArrow(cl.Trend), colorize(colorBold, topic))
			fmt.Printf("     %s, %d articles from %d sources, %s, velocity %+.1f\n",
				cl.Category, cl.ArticleCount, cl.SourceCount,
				strings.ToLower(string(cl.Sentiment)), cl.Velocity)
		}
		return nil
	},
}

func init() {
	heatmapCmd.Flags().Int("hours", 0, "lookback window in hours (default 24)")
	heatmapCmd.Flags().Int("limit", 0, "maximum clusters to show (default 60)")
	heatmapCmd.Flags().String("category", "", "filter by category (crypto, equities, macro, ...)")
	heatmapCmd.Flags().Bool("force", false, "bypass the cache and rebuild")
	heatmapCmd.Flags().Bool("json", false, "print the raw JSON response")
}

// --- timeline ---

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show bucketed heat history",
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, _ := cmd.Flags().GetInt("hours")
		bucketHours, _ := cmd.Flags().GetInt("bucket-hours")
		category, _ := cmd.Flags().GetString("category")
		asJSON, _ := cmd.Flags().GetBool("json")

		q := url.Values{}
		if hours > 0 {
			q.Set("hours", strconv.Itoa(hours))
		}
		if bucketHours > 0 {
			q.Set("bucketHours", strconv.Itoa(bucketHours))
		}
		if category != "" {
			q.Set("category", category)
		}

		client := newAPIClient()
		resp, err := client.get(cmd.Context(), withQuery("/v1/news/heatmap/timeline", q))
		if err != nil {
			return err
		}

		var tl heatmap.Timeline
		if err := decodeJSON(resp, &tl); err != nil {
			return err
		}

		if asJSON {
			return printJSON(tl)
		}

		if len(tl.Points) == 0 {
			fmt.Println("No heat history in this window.")
			return nil
		}

		fmt.Printf("%s  last %dh in %dh buckets (%s)\n\n",
			colorize(colorBold, "Heat timeline"), tl.Hours, tl.BucketHours, tl.Category)

		maxHeat := 0.0
		for _, p := range tl.Points {
			if p.MeanHeat > maxHeat {
				maxHeat = p.MeanHeat
			}
		}
		for _, p := range tl.Points {
			width := 0
			if maxHeat > 0 {
				width = int(p.MeanHeat / maxHeat * 30)
			}
			fmt.Printf("%s  %s %s (%d articles)\n",
				p.BucketStart.Local().Format("Jan 02 15:04"),
				heatColor(p.MeanHeat),
				strings.Repeat("█", width),
				p.ArticleCount)
		}
		return nil
	},
}

func init() {
	timelineCmd.Flags().Int("hours", 0, "lookback window in hours (default 24)")
	timelineCmd.Flags().Int("bucket-hours", 0, "bucket size in hours (default 2)")
	timelineCmd.Flags().String("category", "", "filter by category")
	timelineCmd.Flags().Bool("json", false, "print the raw JSON response")
}

// --- rebuild ---

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Force a heatmap rebuild",
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, _ := cmd.Flags().GetInt("hours")
		category, _ := cmd.Flags().GetString("category")
		asJSON, _ := cmd.Flags().GetBool("json")

		q := url.Values{}
		if hours > 0 {
			q.Set("hours", strconv.Itoa(hours))
		}
		if category != "" {
			q.Set("category", category)
		}

		client := newAPIClient()
		printStep("Rebuilding heatmap...")
		resp, err := client.post(cmd.Context(), withQuery("/v1/news/heatmap/rebuild", q))
		if err != nil {
			return err
		}

		var result heatmap.Result
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if asJSON {
			return printJSON(result)
		}

		printSuccess("Rebuilt heatmap: %d clusters from %d articles", result.TotalClusters, result.TotalArticles)
		return nil
	},
}

func init() {
	rebuildCmd.Flags().Int("hours", 0, "lookback window in hours (default 24)")
	rebuildCmd.Flags().String("category", "", "restrict the rebuild to one category")
	rebuildCmd.Flags().Bool("json", false, "print the raw JSON response")
}

// --- articles ---

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List recent source articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, _ := cmd.Flags().GetInt("hours")
		limit, _ := cmd.Flags().GetInt("limit")
		source, _ := cmd.Flags().GetString("source")
		importance, _ := cmd.Flags().GetString("importance")
		sentiment, _ := cmd.Flags().GetString("sentiment")
		category, _ := cmd.Flags().GetString("category")
		asJSON, _ := cmd.Flags().GetBool("json")

		q := url.Values{}
		if hours > 0 {
			q.Set("hours", strconv.Itoa(hours))
		}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}
		if source != "" {
			q.Set("source", source)
		}
		if importance != "" {
			q.Set("importance", importance)
		}
		if sentiment != "" {
			q.Set("sentiment", sentiment)
		}
		if category != "" {
			q.Set("category", category)
		}

		client := newAPIClient()
		resp, err := client.get(cmd.Context(), withQuery("/v1/news/articles", q))
		if err != nil {
			return err
		}

		var list []news.SourceArticle
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		if asJSON {
			return printJSON(list)
		}

		if len(list) == 0 {
			fmt.Println("No articles found.")
			return nil
		}

		for _, a := range list {
			title := a.Title
			if len(title) > 80 {
				title = title[:80] + "..."
			}
			fmt.Printf("%s  %s %-8s %s\n",
				a.EventTime().Local().Format("Jan 02 15:04"),
				colorize(colorCyan, fmt.Sprintf("%-14s", a.Source)),
				strings.ToLower(string(a.Importance)),
				title)
		}
		return nil
	},
}

func init() {
	articlesCmd.Flags().Int("hours", 0, "lookback window in hours (default 24)")
	articlesCmd.Flags().Int("limit", 50, "maximum articles to list")
	articlesCmd.Flags().String("source", "", "filter by source name")
	articlesCmd.Flags().String("importance", "", "filter by importance (low, medium, high, critical)")
	articlesCmd.Flags().String("sentiment", "", "filter by sentiment (bullish, bearish, neutral)")
	articlesCmd.Flags().String("category", "", "filter by category")
	articlesCmd.Flags().Bool("json", false, "print the raw JSON response")
}
