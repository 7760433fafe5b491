package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/juskvi/internal/api"
	"github.com/kalambet/juskvi/internal/config"
	"github.com/kalambet/juskvi/internal/synthesis"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Ask for a judged verdict on a prompt",
	Long: `Ask for a judged verdict on a prompt.

Examples:
  juskvi ask "Will remote work persist?"
  juskvi ask "What is wrong with this chart?" --image ./chart.png
  juskvi ask "Summarize the risks" --image ./report.pdf --local --raw`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		imagePath, _ := cmd.Flags().GetString("image")
		raw, _ := cmd.Flags().GetBool("raw")
		local, _ := cmd.Flags().GetBool("local")

		req := synthesis.Request{Prompt: strings.Join(args, " ")}
		if imagePath != "" {
			dataURL, err := fileDataURL(imagePath)
			if err != nil {
				return err
			}
			req.Image = dataURL
		}

		var (
			res synthesis.Result
			err error
		)
		if local {
			res, err = askLocal(cmd.Context(), req)
		} else {
			res, err = askServer(cmd.Context(), req)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if raw {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprint(out, renderResult(res))
		return nil
	},
}

func init() {
	askCmd.Flags().String("image", "", "image or PDF file to attach")
	askCmd.Flags().Bool("raw", false, "print the JSON response")
	askCmd.Flags().Bool("local", false, "run the pipeline in this process instead of calling the server")
}

func askServer(ctx context.Context, req synthesis.Request) (synthesis.Result, error) {
	client, err := newAPIClient()
	if err != nil {
		return synthesis.Result{}, err
	}
	return askWith(ctx, client, req)
}

func askWith(ctx context.Context, client *apiClient, req synthesis.Request) (synthesis.Result, error) {
	resp, err := client.post(ctx, api.SynthesisPath, req)
	if err != nil {
		return synthesis.Result{}, err
	}
	var res synthesis.Result
	if err := decodeJSON(resp, &res); err != nil {
		return synthesis.Result{}, err
	}
	return res, nil
}

func askLocal(ctx context.Context, req synthesis.Request) (synthesis.Result, error) {
	cfg, err := config.Load()
	if err != nil {
		return synthesis.Result{}, err
	}
	setupLogging(cfg.Log.Level)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return synthesis.Result{}, err
	}
	printStep("Consulting the Visionary and the Skeptic")
	res := a.orchestrator.Synthesize(ctx, req)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Synthesis.ShutdownGrace)
	defer cancel()
	a.close(drainCtx)
	return res, nil
}

// fileDataURL reads path and encodes it as a data URL with a sniffed MIME type.
func fileDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading attachment: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func resultMarkdown(res synthesis.Result) string {
	var sb strings.Builder
	sb.WriteString("## The Visionary\n\n")
	sb.WriteString(res.Visionary)
	sb.WriteString("\n\n## The Skeptic\n\n")
	sb.WriteString(res.Skeptic)
	sb.WriteString("\n\n## Verdict\n\n")
	sb.WriteString(res.FinalSynthesis)
	sb.WriteString("\n")
	return sb.String()
}

func renderResult(res synthesis.Result) string {
	md := resultMarkdown(res)
	if noColor {
		return md
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve juskvi tools over MCP on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		// stdout carries the protocol; logs stay on stderr.
		setupLogging(cfg.Log.Level)

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Synthesis.ShutdownGrace)
			defer cancel()
			a.close(drainCtx)
		}()

		stdio := server.NewStdioServer(api.NewMCPServer(a.orchestrator, version))
		slog.Info("MCP server started (stdio transport)")
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", bold(k.Key), k.Value)
		}
		for _, k := range config.Credentials(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", bold(k.EnvVar), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file.\n\nKeys:\n  " +
		strings.Join(config.ValidKeys(), "\n  ") +
		"\n\nCredentials are read from the environment only.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
