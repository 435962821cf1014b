package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scenestudio/internal/gateway/app"
	"scenestudio/internal/playground/compiler"
	"scenestudio/internal/playground/modules"
	"scenestudio/internal/playground/registry"
)

var (
	servePort     string
	compileParams string
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Scene Studio gateway: live scene compilation and media proxies",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), app.Options{Port: servePort})
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		go func() {
			if err := a.Start(); err != nil {
				log.Printf("Server error: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Println("Server exiting")
		return nil
	},
}

var compileCmd = &cobra.Command{
	Use:   "compile <file>",
	Short: "Compile a scene source file and print the project JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var params compiler.ParameterMap
		if compileParams != "" {
			if err := json.Unmarshal([]byte(compileParams), &params); err != nil {
				return fmt.Errorf("invalid --params: %w", err)
			}
		}

		reg := registry.New()
		modules.Install(reg)
		comp := compiler.New(reg)
		if err := comp.Initialize(cmd.Context()); err != nil {
			return fmt.Errorf("initialize toolchain: %w", err)
		}

		project, err := comp.ProcessCode(cmd.Context(), string(source), compiler.Options{Parameters: params})
		if err != nil {
			return err
		}
		if project == nil {
			return fmt.Errorf("%s contains no scene source", args[0])
		}

		out, err := json.MarshalIndent(project, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen address (overrides PORT)")
	compileCmd.Flags().StringVar(&compileParams, "params", "", "parameter map as JSON")
	rootCmd.AddCommand(serveCmd, compileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
