package command

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/adamavenir/pairchat/internal/chat"
	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/profile"
	"github.com/adamavenir/pairchat/internal/types"
)

const maxPreviewWidth = 72

var (
	noColor = os.Getenv("NO_COLOR") != ""

	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	senderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	selfStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("157"))
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	unreadStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("216"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	mentionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
)

func render(style lipgloss.Style, text string) string {
	if noColor {
		return text
	}
	return style.Render(text)
}

// formatMessage renders one message line with its reactions and thread summary.
func formatMessage(msg types.Message, self string, now time.Time) string {
	var b strings.Builder

	if msg.SenderID != self && core.Mentions(msg.Text, self) {
		b.WriteString(render(mentionStyle, "●"))
		b.WriteString(" ")
	}

	id := "#" + fmt.Sprint(msg.ID)
	if !msg.Confirmed() {
		id = "#-"
	}
	b.WriteString(render(idStyle, id))
	b.WriteString(" ")

	sender := "@" + msg.SenderID
	if msg.SenderID == self {
		b.WriteString(render(selfStyle, sender))
	} else {
		b.WriteString(render(senderStyle, sender))
	}
	b.WriteString(": ")
	b.WriteString(messageBody(msg))

	var meta []string
	if msg.TS > 0 {
		meta = append(meta, humanize.RelTime(time.UnixMilli(msg.TS), now, "ago", "from now"))
	}
	if msg.EditedAt != nil {
		meta = append(meta, "edited")
	}
	if len(meta) > 0 {
		b.WriteString(" ")
		b.WriteString(render(metaStyle, "("+strings.Join(meta, ", ")+")"))
	}

	switch msg.State {
	case types.SendStatePending:
		b.WriteString(" " + render(pendingStyle, "[sending]"))
	case types.SendStateFailed:
		b.WriteString(" " + render(failedStyle, "[failed: "+msg.LastError+"]"))
	}

	if reactions := formatReactions(msg.Reactions); reactions != "" {
		b.WriteString("\n    ")
		b.WriteString(reactions)
	}
	if msg.Thread != nil && msg.Thread.ReplyCount > 0 {
		b.WriteString("\n    ")
		b.WriteString(render(metaStyle, fmt.Sprintf("↳ %s", pluralize(msg.Thread.ReplyCount, "reply", "replies"))))
	}
	return b.String()
}

func messageBody(msg types.Message) string {
	if msg.Kind == types.MessageKindFile && msg.File != nil {
		return fmt.Sprintf("[file] %s (%s, %s)", msg.File.Name, msg.File.MimeType, humanize.IBytes(uint64(msg.File.Size)))
	}
	return msg.Text
}

// formatReactions renders reactions as "key×count" sorted by count, then key.
func formatReactions(reactions map[string][]string) string {
	if len(reactions) == 0 {
		return ""
	}
	keys := make([]string, 0, len(reactions))
	for key := range reactions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := len(reactions[keys[i]]), len(reactions[keys[j]])
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s×%d", key, len(reactions[key])))
	}
	return strings.Join(parts, "  ")
}

// formatChannelRow renders one directory row.
func formatChannelRow(row chat.ChannelRow, now time.Time) string {
	name := row.Channel.Name
	if name == "" {
		name = peerName(row.Peer)
	}
	line := fmt.Sprintf("%s  %s", render(idStyle, row.Channel.ID), render(headerStyle, name))
	if row.Channel.Provisional {
		line += " " + render(pendingStyle, "[creating]")
	}
	if row.Channel.UnreadCount > 0 {
		line += " " + render(unreadStyle, fmt.Sprintf("(%s unread)", humanize.Comma(int64(row.Channel.UnreadCount))))
	}
	if last := row.Channel.LastMessage; last != nil {
		line += "\n    " + render(metaStyle, truncate(last.Preview, maxPreviewWidth))
		if last.TS > 0 {
			line += " " + render(metaStyle, "· "+humanize.RelTime(time.UnixMilli(last.TS), now, "ago", "from now"))
		}
	}
	return line
}

func peerName(p types.Profile) string {
	name := profile.Name(p)
	switch {
	case name == "":
		return "(empty channel)"
	case name == p.ID:
		return "@" + name
	default:
		return name
	}
}

func truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width-1]) + "…"
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
