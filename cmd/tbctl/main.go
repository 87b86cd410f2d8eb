// tbctl is a small CLI over the remote invocation client: it discovers the
// tools a ticketbridge server advertises and invokes them by name.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ticketbridge/ticketbridge/configs"
	"github.com/ticketbridge/ticketbridge/internal/client"
)

var (
	serverURL    string
	invokeWait   time.Duration
	forceRefresh bool
	callArgs     []string
	logLevel     string
)

func main() {
	root := &cobra.Command{
		Use:           "tbctl",
		Short:         "Discover and invoke ticketbridge tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8081", "Base URL of the ticketbridge API server")
	root.PersistentFlags().DurationVar(&invokeWait, "timeout", 30*time.Second, "Per-invocation timeout")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the server advertises",
		RunE:  runTools,
	}
	toolsCmd.Flags().BoolVar(&forceRefresh, "refresh", false, "Bypass the discovery cache")

	callCmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a tool by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runCall,
	}
	callCmd.Flags().StringArrayVar(&callArgs, "arg", nil, "Tool argument as key=value; values are parsed as JSON when possible (repeatable)")

	root.AddCommand(toolsCmd, callCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newClient builds the invocation client from TICKETBRIDGE_* environment
// settings, with command-line flags taking precedence.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := configs.Load()
	if err != nil {
		return nil, err
	}
	invokeTimeout := cfg.InvokeTimeout
	if cmd.Flags().Changed("timeout") || invokeTimeout <= 0 {
		invokeTimeout = invokeWait
	}
	return client.New(client.Config{
		BaseURL:       serverURL,
		HTTPClient:    &http.Client{Timeout: cfg.HTTPClientTimeout},
		CacheTTL:      cfg.DiscoveryCacheTTL,
		InvokeTimeout: invokeTimeout,
		MaxInFlight:   cfg.InvokeConcurrency,
		Logger:        logger,
	})
}

func runTools(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	adapters, err := c.Adapters(cmd.Context(), forceRefresh)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		fmt.Printf("%s: %s\n", a.Name(), a.Description())
		for _, p := range a.InputSchema().Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			line := fmt.Sprintf("    %s (%s, %s)", p.Name, p.Type, required)
			if len(p.Enum) > 0 {
				line += " one of: " + strings.Join(p.Enum, ", ")
			}
			fmt.Println(line)
		}
	}
	return nil
}

func runCall(cmd *cobra.Command, args []string) error {
	toolName := args[0]

	arguments, err := parseArgs(callArgs)
	if err != nil {
		return err
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	adapters, err := c.Adapters(cmd.Context(), false)
	if err != nil {
		return err
	}

	var adapter *client.FunctionAdapter
	for _, a := range adapters {
		if a.Name() == toolName {
			adapter = a
			break
		}
	}
	if adapter == nil {
		return fmt.Errorf("tool %q not advertised by %s (try 'tbctl tools')", toolName, serverURL)
	}

	result := adapter.Call(cmd.Context(), arguments)
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// parseArgs turns repeated key=value flags into an argument map. Values are
// decoded as JSON when they parse (numbers, booleans, arrays); anything else
// is passed through as a string.
func parseArgs(pairs []string) (map[string]any, error) {
	arguments := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q, expected key=value", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			arguments[key] = parsed
		} else {
			arguments[key] = value
		}
	}
	return arguments, nil
}
