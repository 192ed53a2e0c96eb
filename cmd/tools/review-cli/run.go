package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/spf13/cobra"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/bootstrap"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/config"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/pkg/registry"
)

func newRunCmd() *cobra.Command {
	var (
		vars     string
		varsFile string
		key      int64
	)

	cmd := &cobra.Command{
		Use:   "run <task-type>",
		Short: "Run one review task with the given variables",
		Long: `Runs the worker for <task-type> in-process against the configured
database, directories and notification provider. The job key is used as the
correlation id of the recorded audit events.`,
		Example: `  review-cli run review.assignment.assign \
    --vars '{"applicationId":"...","performingUserId":"...","role":"AdminOfficer","assignedUserId":"..."}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variables, err := readVariables(vars, varsFile)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.NewStructured(cfg.Logging.Level, "console")

			reg, err := registry.Default()
			if err != nil {
				return err
			}

			app, err := bootstrap.Build(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			workers, err := bootstrap.NewWorkers(bootstrap.WorkerDeps{
				AppConfig: cfg,
				Registry:  reg,
				Service:   app.Service,
				Logger:    log,
			})
			if err != nil {
				return err
			}
			w, ok := bootstrap.Find(workers, args[0])
			if !ok {
				return fmt.Errorf("unknown task type %s", args[0])
			}

			if key == 0 {
				key = time.Now().UnixNano()
			}
			out, err := w.Process(cmd.Context(), entities.Job{ActivatedJob: &pb.ActivatedJob{
				Key:       key,
				Type:      args[0],
				Variables: variables,
			}})
			if err != nil {
				return describe(err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&vars, "vars", "", "Job variables as a JSON object")
	cmd.Flags().StringVar(&varsFile, "vars-file", "", "File holding the job variables")
	cmd.Flags().Int64Var(&key, "key", 0, "Job key (defaults to the current time in nanoseconds)")
	return cmd
}

func readVariables(inline, file string) (string, error) {
	switch {
	case inline != "" && file != "":
		return "", fmt.Errorf("--vars and --vars-file are mutually exclusive")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		inline = string(data)
	case inline == "":
		return "", fmt.Errorf("one of --vars or --vars-file is required")
	}

	var probe map[string]interface{}
	if err := json.Unmarshal([]byte(inline), &probe); err != nil {
		return "", fmt.Errorf("variables must be a JSON object: %w", err)
	}
	return inline, nil
}

func describe(err error) error {
	stdErr := errors.Normalize(err)
	if stdErr.Details != "" {
		return fmt.Errorf("%s: %s (%s)", stdErr.Code, stdErr.Message, stdErr.Details)
	}
	return fmt.Errorf("%s: %s", stdErr.Code, stdErr.Message)
}
