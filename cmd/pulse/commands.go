package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/pulse/internal/config"
	"github.com/kalambet/pulse/internal/dashboard"
	"github.com/kalambet/pulse/internal/pipeline"
	"github.com/kalambet/pulse/internal/scheduler"
)

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one pulse in-process and print the summary",
	Long: `Run one pulse in-process and print the summary.

Examples:
  pulse run
  pulse run --manual
  pulse run --tenant 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manual, _ := cmd.Flags().GetBool("manual")
		tenantID, _ := cmd.Flags().GetString("tenant")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		if tenantID != "" {
			printStep("Running pulse for tenant %s", tenantID)
			o, err := a.scheduler.RunTenant(ctx, strings.TrimSpace(tenantID), true)
			if err != nil {
				return err
			}
			printPipelineOutcome(o)
			if o.Status == pipeline.StatusFailed {
				return fmt.Errorf("tenant %s failed", o.TenantID)
			}
			return nil
		}

		printStep("Running pulse (manual=%v)", manual)
		sum, err := a.scheduler.Run(ctx, manual)
		if err != nil {
			return err
		}
		printSummary(sum)
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("manual", false, "ignore delivery hours (trial expiry still applies)")
	runCmd.Flags().String("tenant", "", "run a single tenant, always manual")
}

func printSummary(sum scheduler.Summary) {
	if sum.Total == 0 {
		printWarning("No active users.")
		return
	}
	for _, o := range sum.Outcomes {
		printPipelineOutcome(o)
	}
	printStatus("Run", "%s", sum.RunID)
	printStatus("Tenants", "%d total, %d succeeded, %d skipped, %d failed", sum.Total, sum.Succeeded, sum.Skipped, sum.Failed)
	printStatus("Duration", "%s", sum.Duration.Round(time.Millisecond))
}

func printPipelineOutcome(o pipeline.Outcome) {
	var errMsg string
	if o.Err != nil {
		errMsg = o.Err.Error()
	}
	printOutcome(o.TenantID, string(o.Status), o.Reason, errMsg, o.Warnings)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage process configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			return writeYAML(os.Stdout, keys)
		}
		for _, k := range keys {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

// writeYAML prints the keys as a flat YAML mapping in table order.
func writeYAML(w io.Writer, keys []config.KeyInfo) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k.Value},
		)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	configShowCmd.Flags().Bool("yaml", false, "print as YAML")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- dump ---

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Capture and list a tenant's raw notes",
}

var dumpAddCmd = &cobra.Command{
	Use:   "add <tenant> <text>",
	Short: "Capture a note for the tenant's next pulse",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.TrimSpace(strings.Join(args[1:], " "))
		if content == "" {
			return errors.New("note text is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		id, err := addDump(cmd.Context(), client, args[0], content)
		if err != nil {
			return err
		}
		printSuccess("Captured note %s", id)
		return nil
	},
}

var dumpListCmd = &cobra.Command{
	Use:   "list <tenant>",
	Short: "List notes waiting for the next pulse",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), tenantPath(args[0], "/dumps"))
		if err != nil {
			return err
		}
		var dumps []struct {
			ID        string    `json:"id"`
			Content   string    `json:"content"`
			CreatedAt time.Time `json:"created_at"`
		}
		if err := decodeJSON(resp, &dumps); err != nil {
			return err
		}
		if len(dumps) == 0 {
			fmt.Println("No pending notes.")
			return nil
		}
		for _, d := range dumps {
			fmt.Printf("  %s  %s  %s\n", colorize(colorBold, d.ID), d.CreatedAt.Format("2006-01-02 15:04"), d.Content)
		}
		return nil
	},
}

func init() {
	dumpCmd.AddCommand(dumpAddCmd)
	dumpCmd.AddCommand(dumpListCmd)
}

func addDump(ctx context.Context, client *apiClient, tenantID, content string) (string, error) {
	resp, err := client.post(ctx, tenantPath(tenantID, "/dumps"), map[string]string{"content": content})
	if err != nil {
		return "", err
	}
	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		return "", err
	}
	return result["id"], nil
}

// --- tasks ---

type taskLine struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

var tasksCmd = &cobra.Command{
	Use:   "tasks <tenant>",
	Short: "List a tenant's tasks, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		tasks, err := listTasks(cmd.Context(), client, args[0], status, limit)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("The list is empty.")
			return nil
		}
		for _, t := range tasks {
			marker := "⚪"
			if t.Priority == "urgent" {
				marker = "🔴"
			}
			fmt.Printf("  %s %s  %s  %s\n", marker, colorize(colorBold, t.ID), t.Status, t.Title)
		}
		return nil
	},
}

func init() {
	tasksCmd.Flags().String("status", "", "filter by status (todo, done, cancelled)")
	tasksCmd.Flags().Int("limit", 20, "maximum number of tasks")
}

func listTasks(ctx context.Context, client *apiClient, tenantID, status string, limit int) ([]taskLine, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := tenantPath(tenantID, "/tasks")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := client.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var tasks []taskLine
	if err := decodeJSON(resp, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// --- view ---

var viewCmd = &cobra.Command{
	Use:   "view <tenant> <view>",
	Short: "Render a dashboard view (urgent, brief, vault, people, main-goal)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, ok := dashboard.ParseView(args[1])
		if !ok {
			return fmt.Errorf("unknown view %q", args[1])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		text, err := renderView(cmd.Context(), client, args[0], v)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

func renderView(ctx context.Context, client *apiClient, tenantID string, v dashboard.View) (string, error) {
	resp, err := client.get(ctx, tenantPath(tenantID, "/views/"+string(v)))
	if err != nil {
		return "", err
	}
	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		return "", err
	}
	return result["text"], nil
}

// --- pulse ---

var pulseCmd = &cobra.Command{
	Use:   "pulse <tenant>",
	Short: "Ask the running server to brief one tenant now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), tenantPath(args[0], "/pulse"), nil)
		if err != nil {
			return err
		}
		var o struct {
			TenantID string   `json:"tenant_id"`
			Status   string   `json:"status"`
			Reason   string   `json:"reason"`
			Error    string   `json:"error"`
			Warnings []string `json:"warnings"`
		}
		if err := decodeJSON(resp, &o); err != nil {
			return err
		}
		printOutcome(o.TenantID, o.Status, o.Reason, o.Error, o.Warnings)
		return nil
	},
}
