// Package cli implements the learnmap command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Liggi/ai-learning-assistant-sub003/internal/config"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/buildinfo"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/session"
)

// =============================================================================
// Constants
// =============================================================================

const appName = "learnmap"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Learnmap grows a map of articles from the questions you ask",
		Long: `Learnmap is a learning assistant that grows a graph of generated articles.
Each article surfaces follow-up questions; picking one generates the next
article and links it into the map.`,
		Version:           buildinfo.Get().Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.loadConfig,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: "+config.DefaultPath()+")")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configuration and attaches the logger to the
// command context. --verbose overrides the configured level.
func (c *CLI) loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level := cfg.LogLevel()
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}

// =============================================================================
// Session Factory
// =============================================================================

// openSession opens the subject's session from the configured backends. The
// returned close function releases the session and everything it opened.
func (c *CLI) openSession(ctx context.Context, subject string, measured bool) (*session.Session, func(), error) {
	res, err := c.cfg.Open(ctx, c.Logger)
	if err != nil {
		return nil, nil, err
	}
	opts := res.Options
	opts.Subject = subject
	if !measured {
		opts.Measurer = nil
	}
	sess, err := session.Open(ctx, opts)
	if err != nil {
		res.Close()
		return nil, nil, fmt.Errorf("open %s: %w", subject, err)
	}
	return sess, func() {
		sess.Close()
		if err := res.Close(); err != nil {
			c.Logger.Warn("close resources", "error", err)
		}
	}, nil
}
