// Package main provides an offline pipeline runner: it executes a
// pipeline definition file against a seed file without the API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/loomhq/loom/pkg/cmd"
	"github.com/loomhq/loom/pkg/log"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/pipeline"
)

func main() {
	logger := log.WithModule("runner")

	command := &cli.Command{
		Name:                  "loom-runner",
		Usage:                 "Run a pipeline definition against a seed batch, offline",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "pipeline",
				Aliases:  []string{"f"},
				Usage:    "Path to a pipeline definition JSON file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "seeds",
				Aliases: []string{"s"},
				Usage:   "Path to a seed batch JSON file (defaults to one empty seed)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write run results as JSON Lines to this file",
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing block plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			return run(ctx, logger, command)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runResult is one line of the runner's JSONL output.
type runResult struct {
	SeedIndex  int            `json:"seed_index"`
	Repetition int            `json:"repetition"`
	TraceID    string         `json:"trace_id"`
	Result     map[string]any `json:"result,omitempty"`
	Trace      models.Trace   `json:"trace"`
	Error      string         `json:"error,omitempty"`
}

func run(ctx context.Context, logger *slog.Logger, command *cli.Command) error {
	def, err := loadDefinition(command.String("pipeline"))
	if err != nil {
		return err
	}

	seeds, err := loadSeeds(command.String("seeds"))
	if err != nil {
		return err
	}

	registry, err := cmd.NewRegistry(logger, command.String("plugins-path"))
	if err != nil {
		return err
	}

	if err := pipeline.Validate(*def, registry); err != nil {
		return err
	}

	executor := pipeline.NewExecutor(registry, logger)

	var encoder *json.Encoder

	if outputPath := command.String("output"); outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}

		defer func() {
			_ = file.Close()
		}()

		encoder = json.NewEncoder(file)
	}

	succeeded, failed := 0, 0

	for seedIndex, seed := range seeds {
		for repetition := 0; repetition < seed.PlannedRuns(); repetition++ {
			result, trace, traceID, runErr := executor.Run(ctx, *def, models.CopyState(seed.Metadata))

			line := runResult{
				SeedIndex:  seedIndex,
				Repetition: repetition,
				TraceID:    traceID,
				Trace:      trace,
			}

			if runErr != nil {
				failed++
				line.Error = runErr.Error()

				fmt.Printf("seed %d run %d: FAILED (%s): %v\n", seedIndex, repetition, traceID, runErr)
			} else {
				succeeded++
				line.Result = result

				fmt.Printf("seed %d run %d: ok (%s)\n", seedIndex, repetition, traceID)
			}

			if encoder != nil {
				if err := encoder.Encode(line); err != nil {
					return fmt.Errorf("failed to write result: %w", err)
				}
			}
		}
	}

	fmt.Printf("\n%s: %d run(s), %d succeeded, %d failed\n", def.Name, succeeded+failed, succeeded, failed)

	return nil
}

func loadDefinition(path string) (*models.PipelineDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}

	var def models.PipelineDefinition

	err = json.Unmarshal(data, &def)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pipeline file: %w", err)
	}

	return &def, nil
}

// loadSeeds accepts a single seed object or an array of seeds. A missing
// path yields one seed with empty metadata, running the pipeline once.
func loadSeeds(path string) ([]models.SeedInput, error) {
	if path == "" {
		return []models.SeedInput{{Repetitions: 1, Metadata: map[string]any{}}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds file: %w", err)
	}

	var seeds []models.SeedInput
	if err := json.Unmarshal(data, &seeds); err == nil {
		return seeds, nil
	}

	var seed models.SeedInput

	err = json.Unmarshal(data, &seed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seeds file: %w", err)
	}

	return []models.SeedInput{seed}, nil
}
