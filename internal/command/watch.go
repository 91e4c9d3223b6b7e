package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/adamavenir/pairchat/internal/chat"
	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/types"
)

const metricsShutdownTimeout = 2 * time.Second

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <channel>",
		Short: "Follow a channel live",
		Long:  "Stream new messages, edits, reactions and typing in a channel until interrupted. Reconnects automatically.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
			channelID := args[0]

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := ctx.Sync.RefreshChannels(runCtx); err != nil {
				ctx.Logger.Warn("channel refresh failed", "error", err)
			}
			if err := ctx.Open(runCtx, channelID); err != nil {
				return writeCommandError(cmd, err)
			}
			ctx.Sync.MarkRead(channelID)

			w := &watcher{
				out:       cmd.OutOrStdout(),
				jsonMode:  ctx.JSONMode,
				self:      ctx.Self,
				channelID: channelID,
				seen:      make(map[int64]string),
			}
			if err := w.flush(ctx.Sync); err != nil {
				return err
			}

			ctx.Client.Connect(runCtx)

			g, gctx := errgroup.WithContext(runCtx)
			g.Go(func() error {
				return ctx.Sync.Run(gctx)
			})
			g.Go(func() error {
				return w.follow(gctx, ctx.Sync)
			})
			if metricsAddr != "" {
				g.Go(func() error {
					return serveMetrics(gctx, metricsAddr, ctx)
				})
			}
			if ctx.ConfigPath != "" {
				g.Go(func() error {
					return core.WatchConfig(gctx, ctx.ConfigPath, ctx.Logger, func(cfg core.Config) {
						if err := ctx.Sync.SetConfig(cfg); err != nil {
							ctx.Logger.Warn("config rejected", "error", err)
						}
					})
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9464")

	return cmd
}

func serveMetrics(ctx context.Context, addr string, cc *CommandContext) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", cc.Metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		cc.Logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	}
}

// watcher prints what changed in one channel since the last flush.
type watcher struct {
	out       io.Writer
	jsonMode  bool
	self      string
	channelID string

	// seen maps printed message ids to a fingerprint of what was printed.
	seen      map[int64]string
	typing    string
	connected bool
}

func (w *watcher) follow(ctx context.Context, coord *chat.Coordinator) error {
	w.connected = coord.Connected()
	changes := coord.Changes()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if change.ChannelID != "" && change.ChannelID != w.channelID {
				continue
			}
			switch change.Kind {
			case chat.ChangeMessages:
				if err := w.flush(coord); err != nil {
					return err
				}
			case chat.ChangeTyping:
				w.showTyping(coord.Typing(w.channelID))
			case chat.ChangeConnection:
				w.showConnection(coord.Connected())
			}
		}
	}
}

// flush prints messages that are new or changed since they were last printed.
func (w *watcher) flush(coord *chat.Coordinator) error {
	now := time.Now()
	for _, msg := range coord.Messages(w.channelID) {
		if !msg.Confirmed() {
			continue
		}
		fp := fingerprint(msg)
		prev, printed := w.seen[msg.ID]
		if printed && prev == fp {
			continue
		}
		w.seen[msg.ID] = fp
		if w.jsonMode {
			if err := json.NewEncoder(w.out).Encode(msg); err != nil {
				return err
			}
			continue
		}
		line := formatMessage(msg, w.self, now)
		if printed {
			line = render(metaStyle, "~") + " " + line
		}
		fmt.Fprintln(w.out, line)
	}
	return nil
}

func (w *watcher) showTyping(users []string) {
	status := ""
	if len(users) > 0 {
		status = "@" + strings.Join(users, ", @") + " typing…"
	}
	if status == w.typing || w.jsonMode {
		w.typing = status
		return
	}
	w.typing = status
	if status != "" {
		fmt.Fprintln(w.out, render(metaStyle, status))
	}
}

func (w *watcher) showConnection(connected bool) {
	if connected == w.connected {
		return
	}
	w.connected = connected
	if w.jsonMode {
		return
	}
	if connected {
		fmt.Fprintln(w.out, render(metaStyle, "reconnected"))
	} else {
		fmt.Fprintln(w.out, render(failedStyle, "connection lost, retrying…"))
	}
}

func fingerprint(msg types.Message) string {
	var b strings.Builder
	b.WriteString(msg.Text)
	if msg.EditedAt != nil {
		fmt.Fprintf(&b, "|e%d", *msg.EditedAt)
	}
	b.WriteString("|" + formatReactions(msg.Reactions))
	if msg.Thread != nil {
		fmt.Fprintf(&b, "|t%d", msg.Thread.ReplyCount)
	}
	return b.String()
}
