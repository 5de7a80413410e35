package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voyagerhq/voyager/internal/actions"
	"github.com/voyagerhq/voyager/internal/analytics"
	"github.com/voyagerhq/voyager/internal/artifact"
	"github.com/voyagerhq/voyager/internal/browser"
	"github.com/voyagerhq/voyager/internal/config"
	"github.com/voyagerhq/voyager/internal/constants"
	"github.com/voyagerhq/voyager/internal/domain"
	"github.com/voyagerhq/voyager/internal/engine"
	"github.com/voyagerhq/voyager/internal/llm"
	"github.com/voyagerhq/voyager/internal/logging"
	"github.com/voyagerhq/voyager/internal/prompt"
	"github.com/voyagerhq/voyager/internal/scrape"
	"github.com/voyagerhq/voyager/internal/store"
	"github.com/voyagerhq/voyager/internal/webhook"
)

// newRunCommand builds the run subcommand: execute one task from a JSON
// request file and print the outcome.
func newRunCommand(flags *rootFlags) *cobra.Command {
	var apiKey string
	var maxStepsOverride int

	cmd := &cobra.Command{
		Use:   "run <task-request.json>",
		Short: "Execute a task from a JSON request file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadFromFile(flags.configPath)
			if err != nil {
				return err
			}
			if flags.debug {
				settings.DebugMode = true
			}
			logger := logging.Init(settings.DebugMode)

			requestData, err := os.ReadFile(args[0]) //#nosec G304 -- user-provided request file
			if err != nil {
				return fmt.Errorf("failed to read task request: %w", err)
			}
			var request domain.TaskRequest
			if err := json.Unmarshal(requestData, &request); err != nil {
				return fmt.Errorf("failed to parse task request: %w", err)
			}

			db, err := store.Open(settings.DatabasePath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			prompts, err := prompt.NewEngine()
			if err != nil {
				return err
			}
			llmHandler, err := llm.NewOpenAIFromEnv(settings.LLMTimeout, logger)
			if err != nil {
				return err
			}

			browsers := browser.NewManager(settings.Browser, logger)
			defer func() { _ = browsers.Close() }()

			agent := engine.NewAgent(engine.Capabilities{
				Database: db,
				Browsers: browsers,
				Artifacts: artifact.NewManager(db,
					artifact.NewLocalStorage(settings.Artifact.StorageRoot, settings.Artifact.ShareBaseURL),
					logger),
				LLM:       llmHandler,
				Scraper:   scrape.NewPlaywrightScraper(),
				Prompts:   prompts,
				Handlers:  actions.NewDefaultRegistry(),
				Webhooks:  webhook.NewSender(settings.WebhookTimeout, logger),
				Analytics: analytics.NewLogCapturer(logger),
			}, settings, logger)

			ctx := cmd.Context()
			if maxStepsOverride > 0 {
				ctx = engine.WithMaxStepsOverride(ctx, maxStepsOverride)
			}

			task, err := runTask(ctx, agent, db, &request, apiKey)
			if err != nil {
				return err
			}

			outcome, err := json.MarshalIndent(task.ToTaskResponse("", ""), "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(outcome))
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "api key used to sign the outcome webhook")
	cmd.Flags().IntVar(&maxStepsOverride, "max-steps", 0, "override the step ceiling for this run")
	return cmd
}

// runTask creates the task, starts it and drives it to its end.
func runTask(ctx context.Context, agent *engine.Agent, db store.Database, request *domain.TaskRequest, apiKey string) (*domain.Task, error) {
	task, err := agent.CreateTask(ctx, request, "")
	if err != nil {
		return nil, err
	}

	running := constants.TaskStatusRunning
	task, err = agent.Recorder().UpdateTask(ctx, task, store.TaskUpdate{Status: &running})
	if err != nil {
		return nil, err
	}

	step, err := db.CreateStep(ctx, task.ID, task.OrganizationID, 0, 0)
	if err != nil {
		return nil, err
	}

	if _, err := agent.ExecuteStep(ctx, nil, task, step, engine.ExecuteStepOptions{
		APIKey:                   apiKey,
		CloseBrowserOnCompletion: true,
	}); err != nil {
		return nil, err
	}

	return db.GetTask(ctx, task.ID, task.OrganizationID)
}
