package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tutorgate/tutorgate/internal/config"
	"github.com/tutorgate/tutorgate/internal/handlers"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the tutoring gateway configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for agent endpoint details.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("TutorGate Configuration Setup")
	color.Yellow("Follow the prompts to configure your first agent.")

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("\nAgent Key (e.g., chem_tutor): ")
	agentKey, _ := reader.ReadString('\n')
	agentKey = strings.TrimSpace(agentKey)

	fmt.Print("Endpoint URL: ")
	endpoint, _ := reader.ReadString('\n')
	endpoint = strings.TrimSpace(endpoint)

	fmt.Print("API Key: ")
	apiKey, _ := reader.ReadString('\n')
	apiKey = strings.TrimSpace(apiKey)

	fmt.Print("Model: ")
	model, _ := reader.ReadString('\n')
	model = strings.TrimSpace(model)

	fmt.Print("Gateway API Key (optional, for authentication): ")
	gatewayKey, _ := reader.ReadString('\n')
	gatewayKey = strings.TrimSpace(gatewayKey)

	fnEndpoint := config.FunctionEndpoint{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Model:    model,
	}

	cfg := &config.Config{
		Host:        config.DefaultHost,
		Port:        config.DefaultPort,
		APIKey:      gatewayKey,
		MainSubject: config.DefaultMainSubject,
		Agents: map[string]config.AgentConfig{
			agentKey: {
				handlers.FunctionAskAgent: fnEndpoint,
				handlers.FunctionMCQ:      fnEndpoint,
			},
		},
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start the gateway with: tutorgate start")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run 'tutorgate config init' to create one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-15s: %s\n", "Host", cfg.Host)
	fmt.Printf("  %-15s: %d\n", "Port", cfg.Port)
	fmt.Printf("  %-15s: %s\n", "API Key", maskString(cfg.APIKey))
	fmt.Printf("  %-15s: %s\n", "Main Subject", cfg.MainSubject)
	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.GetPath())

	fmt.Println("\nAgents:")
	for agentKey, agent := range cfg.Agents {
		fmt.Printf("  - %s\n", agentKey)
		for fn, ep := range agent {
			fmt.Printf("    %s:\n", fn)
			fmt.Printf("      Endpoint: %s\n", ep.Endpoint)
			fmt.Printf("      API Key: %s\n", maskString(ep.APIKey))
			if ep.Model != "" {
				fmt.Printf("      Model: %s\n", ep.Model)
			}
			if ep.APIVersion != "" {
				fmt.Printf("      API Version: %s\n", ep.APIVersion)
			}
		}
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var problems []string

	if len(cfg.Agents) == 0 {
		problems = append(problems, "no agents configured")
	}

	for agentKey, agent := range cfg.Agents {
		if len(agent) == 0 {
			problems = append(problems, fmt.Sprintf("agent %q: no functions configured", agentKey))
		}
		for fn, ep := range agent {
			if ep.Endpoint == "" {
				problems = append(problems, fmt.Sprintf("agent %q function %q: endpoint is required", agentKey, fn))
			}
			if ep.APIKey == "" {
				problems = append(problems, fmt.Sprintf("agent %q function %q: API key is required", agentKey, fn))
			}
		}
	}

	if len(problems) > 0 {
		color.Red("Configuration validation failed:")
		for _, problem := range problems {
			fmt.Printf("  - %s\n", problem)
		}
		return fmt.Errorf("configuration validation failed")
	}

	color.Green("Configuration is valid!")
	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
