package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	relay "github.com/relaykit/relay-go"
)

// jobFile is the YAML schema accepted by `relayctl submit`.
type jobFile struct {
	URL           string            `yaml:"url"`
	Method        string            `yaml:"method"`
	Headers       map[string]string `yaml:"headers"`
	Body          string            `yaml:"body"`
	Metadata      map[string]any    `yaml:"metadata"`
	Regions       []string          `yaml:"regions"`
	RegionPolicy  string            `yaml:"region_policy"`
	Competition   string            `yaml:"competition"`
	Quorum        int               `yaml:"quorum"`
	IdempotentKey string            `yaml:"idempotent_key"`
	Unique        bool              `yaml:"unique"`
	Webhooks      []struct {
		URL     string   `yaml:"url"`
		Regions []string `yaml:"regions"`
	} `yaml:"webhooks"`
	Retry struct {
		MaxRetries      int   `yaml:"max_retries"`
		MaxReroutes     int   `yaml:"max_reroutes"`
		RetryOnStatus   []int `yaml:"retry_on_status"`
		RerouteOnStatus []int `yaml:"reroute_on_status"`
	} `yaml:"retry"`
}

var submitCmd = &cobra.Command{
	Use:   "submit <job.yaml>",
	Short: "Submit a job description to the service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := relay.LoadConfig(configPath)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		client, err := relay.NewClient(cfg, logger)
		if err != nil {
			return err
		}

		step, err := stepFromFile(args[0])
		if err != nil {
			return err
		}

		executor := relay.NewExecutor(logger, client)
		out, err := executor.Execute(cmd.Context(), step)
		if err != nil {
			return err
		}

		fmt.Printf("job %s %s\n", out.Job.ID, out.Job.Status)
		return nil
	},
}

func stepFromFile(path string) (*relay.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file %s: %w", path, err)
	}

	var jf jobFile
	if err := yaml.Unmarshal(data, &jf); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}

	step := relay.NewStep().
		URL(jf.URL).
		Mode(relay.Performance)

	if jf.Method != "" {
		step.Method(jf.Method)
	}
	if len(jf.Headers) > 0 {
		step.Headers(jf.Headers)
	}
	if jf.Body != "" {
		step.Body(jf.Body)
	}
	for k, v := range jf.Metadata {
		step.Meta(k, v)
	}
	if len(jf.Regions) > 0 {
		step.Regions(jf.Regions...)
	}
	if jf.RegionPolicy != "" {
		step.RegionPolicy(jf.RegionPolicy)
	}
	if jf.Competition != "" {
		step.Competition(jf.Competition)
	}
	if jf.Quorum > 0 {
		step.Quorum(jf.Quorum)
	}
	for _, w := range jf.Webhooks {
		step.Webhook(w.URL, w.Regions...)
	}
	if jf.IdempotentKey != "" {
		step.IdempotentKey(jf.IdempotentKey)
	} else if jf.Unique {
		step.Dedup(relay.DedupUnique)
	}
	if jf.Retry.MaxRetries > 0 || jf.Retry.MaxReroutes > 0 {
		step.Retry(relay.RetryPolicy{
			MaxRetries:      jf.Retry.MaxRetries,
			MaxReroutes:     jf.Retry.MaxReroutes,
			RetryOnStatus:   jf.Retry.RetryOnStatus,
			RerouteOnStatus: jf.Retry.RerouteOnStatus,
		})
	}

	return step, nil
}
