// Command freeplay-grader scores a batch of YAML test cases against a
// Freeplay prompt template and records a simulated completion and trace for
// each one. No real model is invoked; the grader stands in for the example
// callers of the client library.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"freeplay"
)

const usage = `freeplay-grader records simulated completions for a batch of test cases.

Usage:
  freeplay-grader --cases <path> --template <name> [flags]

Flags:
  --cases string        Path to YAML test-case file (required)
  --template string     Prompt template name (required)
  --config string       Optional YAML config file; defaults to FREEPLAY_* env vars
  --environment string  Template environment (default "latest")
  --delay duration      Pause between cases to stay under rate limits (default 1s)
  --verbose             Log every request and response`

type testCase struct {
	Name      string            `yaml:"name"`
	Variables map[string]string `yaml:"variables"`
	Expected  string            `yaml:"expected"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "shutdown requested, exiting")
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("freeplay-grader", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
	}

	var casesPath, templateName, cfgPath, environment string
	var delay time.Duration
	var verbose bool
	fs.StringVar(&casesPath, "cases", "", "path to YAML test-case file")
	fs.StringVar(&templateName, "template", "", "prompt template name")
	fs.StringVar(&cfgPath, "config", "", "path to YAML config file")
	fs.StringVar(&environment, "environment", freeplay.DefaultEnvironment, "template environment")
	fs.DurationVar(&delay, "delay", time.Second, "pause between cases")
	fs.BoolVar(&verbose, "verbose", false, "log requests and responses")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse flags: %w", err)
	}
	if casesPath == "" || templateName == "" {
		return errors.New("freeplay-grader requires --cases <path> and --template <name>")
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	client, err := freeplay.New(cfg,
		freeplay.WithLogger(logger),
		freeplay.WithVerbose(verbose),
	)
	if err != nil {
		return err
	}

	cases, err := loadCases(casesPath)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	logger.Info("starting batch",
		zap.String("session_id", sessionID),
		zap.String("template", templateName),
		zap.Int("cases", len(cases)),
	)

	failures := 0
	for i, tc := range cases {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := gradeCase(ctx, client, logger, sessionID, templateName, environment, tc); err != nil {
			// Keep grading the remaining cases after a recorded failure.
			failures++
			logger.Warn("case failed", zap.String("case", tc.Name), zap.Error(err))
		}
	}

	logger.Info("batch complete",
		zap.String("session_id", sessionID),
		zap.Int("cases", len(cases)),
		zap.Int("failures", failures),
	)
	if failures > 0 {
		return fmt.Errorf("%d of %d cases failed", failures, len(cases))
	}
	return nil
}

func gradeCase(ctx context.Context, client *freeplay.Client, logger *zap.Logger, sessionID, templateName, environment string, tc testCase) error {
	res, err := client.FetchTemplate(ctx, freeplay.TemplateQuery{
		Name:        templateName,
		Environment: environment,
	})
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("fetch template %q: status %d: %s", templateName, res.StatusCode, res.ErrorMessage)
	}

	var template freeplay.PromptTemplate
	if err := res.Decode(&template); err != nil {
		return err
	}

	messages := template.Render(tc.Variables)
	start := time.Now()
	answer := simulateModel(messages)
	end := time.Now()

	promptText := ""
	for _, m := range messages {
		promptText += m.Content
	}
	callInfo := freeplay.NewCallInfo(template.Metadata.Model, template.Metadata.Provider, start, end, freeplay.Usage{
		PromptTokens:     freeplay.EstimateTokens(promptText),
		CompletionTokens: freeplay.EstimateTokens(answer),
	})

	traceID := uuid.NewString()
	recorded := append(messages, freeplay.Message{Role: "assistant", Content: answer})

	inputs := make(map[string]any, len(tc.Variables))
	for k, v := range tc.Variables {
		inputs[k] = v
	}

	completion := client.RecordCompletion(ctx, sessionID, recorded, inputs, freeplay.CompletionOptions{
		CallInfo:        callInfo,
		TraceID:         traceID,
		PromptVersionID: template.VersionID,
		Environment:     environment,
		Metadata:        map[string]any{"case": tc.Name},
	})
	if !completion.Ok() {
		return fmt.Errorf("record completion: status %d: %s", completion.StatusCode, completion.ErrorMessage)
	}

	verdict := "fail"
	if tc.Expected == "" || answer == tc.Expected {
		verdict = "pass"
	}
	trace := client.RecordTrace(ctx, sessionID, traceID, promptText, answer, freeplay.TraceOptions{
		AgentName: "batch-grader",
		Metadata:  map[string]any{"case": tc.Name, "verdict": verdict},
	})
	if !trace.Ok() {
		return fmt.Errorf("record trace: status %d: %s", trace.StatusCode, trace.ErrorMessage)
	}

	logger.Info("case graded",
		zap.String("case", tc.Name),
		zap.String("trace_id", traceID),
		zap.String("verdict", verdict),
	)
	return nil
}

// simulateModel stands in for a real LLM invocation; example callers of the
// library never contact a provider.
func simulateModel(messages []freeplay.Message) string {
	if len(messages) == 0 {
		return "no input"
	}
	last := messages[len(messages)-1]
	return fmt.Sprintf("evaluated %d characters of %s input", len(last.Content), last.Role)
}

func loadConfig(path string) (freeplay.Config, error) {
	if path == "" {
		return freeplay.ConfigFromEnv(), nil
	}
	return freeplay.LoadConfigFile(path)
}

func loadCases(path string) ([]testCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test cases %q: %w", path, err)
	}

	var cases []testCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse test cases %q: %w", path, err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("test case file %q holds no cases", path)
	}
	return cases, nil
}
