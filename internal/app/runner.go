package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ggonzalez94/dotsign/internal/approval"
	"github.com/ggonzalez94/dotsign/internal/chain"
	"github.com/ggonzalez94/dotsign/internal/config"
	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/httpx"
	"github.com/ggonzalez94/dotsign/internal/logging"
	"github.com/ggonzalez94/dotsign/internal/metacache"
	"github.com/ggonzalez94/dotsign/internal/metrics"
	"github.com/ggonzalez94/dotsign/internal/model"
	"github.com/ggonzalez94/dotsign/internal/out"
	"github.com/ggonzalez94/dotsign/internal/policy"
	"github.com/ggonzalez94/dotsign/internal/prompt"
	"github.com/ggonzalez94/dotsign/internal/schema"
	"github.com/ggonzalez94/dotsign/internal/state"
	"github.com/ggonzalez94/dotsign/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	now    func() time.Time

	// Overrides used by tests. Nil values are built from settings.
	prompter  prompt.Host
	dial      chain.DialFunc
	stateHost state.Host
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		stdin:  os.Stdin,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	root        *cobra.Command
	lastCommand string
	lastChain   string
	started     time.Time

	log      *zap.Logger
	metrics  *metrics.PrometheusRecorder
	closers  []func() error
	host     state.Host
	cache    *metacache.Cache
	registry *chain.Registry
	dialer   *chain.Dialer
}

func (r *Runner) Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &runtimeState{runner: r, log: zap.NewNop(), started: r.now()}
	root := s.newRootCommand()
	s.root = root
	root.SetArgs(args)
	root.SetIn(r.stdin)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := normalizeRunError(root.ExecuteContext(ctx))
	code := 0
	if err != nil {
		s.log.Debug("command failed", zap.String("command", s.lastCommand), zap.Error(err))
		s.renderError(err)
		code = clierr.ExitCode(err)
	}
	s.shutdown()
	return code
}

func (s *runtimeState) shutdown() {
	if s.metrics != nil && s.settings.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.settings.MetricsFile); err != nil {
			s.log.Warn("write metrics textfile", zap.String("path", s.settings.MetricsFile), zap.Error(err))
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Debug("close resource", zap.Error(err))
		}
	}
	_ = s.log.Sync()
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Substrate signing assistant: metadata cache and transaction disclosure",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			log, err := logging.New(settings.LogLevel, settings.LogPath)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "configure logging", err)
			}
			s.log = log
			s.metrics = metrics.NewPrometheusRecorder()

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			return policy.CheckCommandAllowed(settings.EnableCommands, path)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	pf := cmd.PersistentFlags()
	pf.BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	pf.BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	pf.StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	pf.BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	pf.StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	pf.StringVar(&s.flags.Timeout, "timeout", "", "Chain request timeout")
	pf.IntVar(&s.flags.Retries, "retries", -1, "Retries per chain request")
	pf.StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&s.flags.StateBackend, "state-backend", "", "Persistent state backend (sqlite, redis, memory)")
	pf.StringVar(&s.flags.RPCURL, "rpc-url", "", "Override the chain RPC endpoint")
	pf.StringVar(&s.flags.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	pf.StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newMetadataCommand())
	cmd.AddCommand(s.newTxCommand())
	cmd.AddCommand(s.newChainsCommand())
	cmd.AddCommand(s.newAccountCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(data, nil)
		},
	}
}

// stateHost opens the configured backend once per run.
func (s *runtimeState) stateHost() (state.Host, error) {
	if s.host != nil {
		return s.host, nil
	}
	if s.runner.stateHost != nil {
		s.host = s.runner.stateHost
		return s.host, nil
	}
	switch s.settings.StateBackend {
	case config.BackendMemory:
		s.host = state.NewMemoryHost()
	case config.BackendRedis:
		h := state.NewRedisHost(redis.NewClient(&redis.Options{Addr: s.settings.RedisAddr}), s.settings.RedisKey)
		s.closers = append(s.closers, h.Close)
		s.host = h
	default:
		h, err := state.OpenSQLite(s.settings.StatePath, s.settings.StateLockPath)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "open state store", err)
		}
		s.closers = append(s.closers, h.Close)
		s.host = h
	}
	s.log.Debug("state store ready", zap.String("backend", s.settings.StateBackend))
	return s.host, nil
}

func (s *runtimeState) metadataCache() (*metacache.Cache, error) {
	if s.cache != nil {
		return s.cache, nil
	}
	host, err := s.stateHost()
	if err != nil {
		return nil, err
	}
	s.cache = metacache.New(state.NewStore(host), s.prompter(),
		metacache.WithLogger(s.log),
		metacache.WithMetrics(s.metrics),
	)
	return s.cache, nil
}

func (s *runtimeState) chainRegistry() (*chain.Registry, error) {
	if s.registry != nil {
		return s.registry, nil
	}
	extra := make([]chain.Info, 0, len(s.settings.Chains))
	for _, c := range s.settings.Chains {
		extra = append(extra, chain.Info{
			Name:          c.Name,
			Slug:          c.Slug,
			GenesisHash:   c.GenesisHash,
			SS58Format:    c.SS58Format,
			TokenSymbol:   c.TokenSymbol,
			TokenDecimals: c.TokenDecimals,
			Endpoints:     c.Endpoints,
		})
	}
	registry, err := chain.NewRegistry(extra...)
	if err != nil {
		return nil, err
	}
	s.registry = registry
	return registry, nil
}

func (s *runtimeState) chainDialer() (*chain.Dialer, error) {
	if s.dialer != nil {
		return s.dialer, nil
	}
	registry, err := s.chainRegistry()
	if err != nil {
		return nil, err
	}
	opts := []chain.DialerOption{
		chain.WithRPCOverride(s.settings.RPCURL),
		chain.WithRetries(s.settings.Retries),
		chain.WithLogger(s.log),
	}
	if s.runner.dial != nil {
		opts = append(opts, chain.WithDialFunc(s.runner.dial))
	}
	s.dialer = chain.NewDialer(registry, httpx.New(s.settings.Timeout, s.settings.Retries), opts...)
	return s.dialer, nil
}

func (s *runtimeState) prompter() prompt.Host {
	if s.runner.prompter != nil {
		return s.runner.prompter
	}
	return prompt.NewTerminal(s.runner.stdin, s.runner.stderr, s.settings.RequireTTY)
}

func (s *runtimeState) approvalService() (*approval.Service, error) {
	cache, err := s.metadataCache()
	if err != nil {
		return nil, err
	}
	dialer, err := s.chainDialer()
	if err != nil {
		return nil, err
	}
	return approval.NewService(dialer, cache, s.prompter(),
		approval.WithLogger(s.log),
		approval.WithMetrics(s.metrics),
		approval.WithDenylist(s.settings.DenyOrigins),
	), nil
}

func (s *runtimeState) emitSuccess(data any, warnings []string) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Warnings: warnings,
		Meta:     s.meta(),
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(err error) {
	message := err.Error()
	code := clierr.ExitCode(err)
	typ := clierr.TypeName(clierr.CodeInternal)
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		typ = clierr.TypeName(cErr.Code)
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Meta: s.meta(),
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) meta() model.EnvelopeMeta {
	command := s.lastCommand
	if command == "" {
		command = version.CLIName
	}
	now := s.runner.now()
	return model.EnvelopeMeta{
		RequestID: uuid.NewString(),
		Timestamp: now.UTC(),
		Command:   command,
		Chain:     s.lastChain,
		LatencyMS: now.Sub(s.started).Milliseconds(),
	}
}

// readInput reads a file argument; "-" means stdin.
func (s *runtimeState) readInput(path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, clierr.New(clierr.CodeUsage, "input path is required")
	}
	var (
		buf []byte
		err error
	)
	if path == "-" {
		buf, err = io.ReadAll(s.runner.stdin)
	} else {
		buf, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("read %s", path), err)
	}
	return buf, nil
}

// readPromptedInput is readInput for commands that prompt: stdin carries
// the user's answer, so it cannot also carry the input.
func (s *runtimeState) readPromptedInput(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "-" {
		return nil, clierr.New(clierr.CodeUsage, "stdin is reserved for the approval prompt; pass the input as a file path")
	}
	return s.readInput(path)
}

func hexString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
