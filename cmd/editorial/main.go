package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jayascript1/ai-editorial-team/config"
	core "github.com/jayascript1/ai-editorial-team/internal/agent/core"
	srv "github.com/jayascript1/ai-editorial-team/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "editorial"}

	var configPath string
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the editorial pipeline HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			if cfg.Server.Address == "" {
				cfg.Server.Address = ":5001"
			}
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to config file")
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	var stages = &cobra.Command{
		Use:   "stages",
		Short: "Print the editorial stages in execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			for _, s := range core.EditorialStages() {
				fmt.Printf("%d. %s (%s) -> model %s\n", s.Index+1, s.Name, s.Role, cfg.LLM.Routing.ModelFor(s.Name))
			}
			return nil
		},
	}
	stages.Flags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(serve, stages)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
