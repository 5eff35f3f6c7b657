// Command textgen sends prompts to Grok and prints the answers.
//
//	textgen --env-file .env --config grok.yaml "Write a haiku about Go"
//
// With several prompts, or prompts read line by line from stdin, the
// prompts are sent as one batch and failed items are printed in place.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/run-bigpig/grok-textgen/pkg/config"
	"github.com/run-bigpig/grok-textgen/pkg/interfaces"
	"github.com/run-bigpig/grok-textgen/pkg/llm"
	"github.com/run-bigpig/grok-textgen/pkg/llm/grok"
	"github.com/run-bigpig/grok-textgen/pkg/logging"
	"github.com/run-bigpig/grok-textgen/pkg/multitenancy"
)

// CLI holds the command line flags
type CLI struct {
	Config        string   `help:"YAML client configuration file." placeholder:"FILE"`
	EnvFile       []string `name:"env-file" help:"Env files to load before resolving the API key (default .env if present)." placeholder:"FILE"`
	BaseURL       string   `name:"base-url" help:"OpenAI-compatible endpoint." default:"https://api.x.ai/v1"`
	Model         string   `help:"Model name."`
	SystemMessage *string  `name:"system-message" help:"System message for every prompt."`
	Temperature   *float64 `help:"Sampling temperature."`
	MaxTokens     *int     `name:"max-tokens" help:"Maximum output tokens."`
	Parse         bool     `help:"Return the full message as JSON instead of plain text."`
	LogLevel      string   `name:"log-level" help:"Log level." default:"warn" enum:"debug,info,warn,error"`
	OrgID         string   `name:"org-id" env:"TEXTGEN_ORG_ID" help:"Organization ID sent as the request user."`

	Prompts []string `arg:"" name:"prompt" optional:"" help:"Prompts to send. Read from stdin, one per line, when omitted."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("textgen"),
		kong.Description("Generate text with Grok models."),
		kong.UsageOnError(),
	)

	err := run(context.Background(), &cli, os.Stdin, os.Stdout, os.Stderr)
	kctx.FatalIfErrorf(err)
}

func run(ctx context.Context, cli *CLI, stdin io.Reader, stdout, stderr io.Writer) error {
	logger := logging.New(logging.WithOutput(stderr), logging.WithLevel(cli.LogLevel))
	ctx = multitenancy.WithOrgID(ctx, cli.OrgID)

	if err := config.LoadEnv(cli.EnvFile...); err != nil {
		return err
	}

	cfg := llm.DefaultConfig()
	if cli.Config != "" {
		loaded, err := config.LoadClientConfig(cli.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cli.Model != "" {
		cfg.Model = cli.Model
	}
	if cli.MaxTokens != nil {
		cfg.MaxTokens = *cli.MaxTokens
	}

	prompts := cli.Prompts
	if len(prompts) == 0 {
		var err error
		prompts, err = readPrompts(stdin)
		if err != nil {
			return err
		}
	}
	if len(prompts) == 0 {
		return fmt.Errorf("no prompts given")
	}

	var overrides *llm.Overrides
	if cli.SystemMessage != nil || cli.Temperature != nil {
		overrides = &llm.Overrides{
			SystemMessage: cli.SystemMessage,
			Parameters:    llm.Parameters{Temperature: cli.Temperature},
		}
	}

	var generator interfaces.TextGenerator = grok.NewClient(&cfg,
		grok.WithLogger(logger),
		grok.WithBaseURL(cli.BaseURL),
	)

	if len(prompts) == 1 {
		result, err := generator.GenerateText(ctx, prompts[0], overrides, cli.Parse)
		if err != nil {
			return err
		}
		return printResult(stdout, result, cli.Parse)
	}

	var overridesList []llm.Overrides
	if overrides != nil {
		overridesList = make([]llm.Overrides, len(prompts))
		for i := range overridesList {
			overridesList[i] = *overrides
		}
	}
	parseList := make([]bool, len(prompts))
	for i := range parseList {
		parseList[i] = cli.Parse
	}

	results, err := generator.BatchGenerate(ctx, prompts, overridesList, parseList)
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Fprintf(stdout, "[%d] ", i)
		if !r.OK() {
			fmt.Fprintln(stdout, r.String())
			continue
		}
		if err := printResult(stdout, r.Result, cli.Parse); err != nil {
			return err
		}
	}
	return nil
}

func readPrompts(r io.Reader) ([]string, error) {
	var prompts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}
	return prompts, nil
}

func printResult(w io.Writer, result *llm.Result, parse bool) error {
	if !parse || result.Message == nil {
		_, err := fmt.Fprintln(w, result.Text)
		return err
	}
	data, err := json.Marshal(result.Message)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
