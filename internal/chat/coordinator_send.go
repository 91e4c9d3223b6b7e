package chat

import (
	"context"
	"errors"

	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/types"
)

// SendText posts a text message. The entry shows up as pending immediately,
// becomes sent once the server confirms it, or stays as failed with its
// correlation id so it can be retried or discarded.
func (c *Coordinator) SendText(ctx context.Context, channelID, text string) (types.Message, error) {
	return c.sendText(ctx, channelID, text, core.NewCorrelationID())
}

func (c *Coordinator) sendText(ctx context.Context, channelID, text, correlationID string) (types.Message, error) {
	if err := requireChannel(channelID); err != nil {
		return types.Message{}, c.observe("send_text", err)
	}
	if err := core.ValidateText(text); err != nil {
		return types.Message{}, c.observe("send_text", err)
	}
	return c.send(ctx, outbound{channelID: channelID, text: text}, correlationID)
}

// SendFile uploads one file message.
func (c *Coordinator) SendFile(ctx context.Context, channelID string, file types.FileUpload) (types.Message, error) {
	if err := requireChannel(channelID); err != nil {
		return types.Message{}, c.observe("send_file", err)
	}
	file, err := core.ValidateFile(file, c.Config().MaxFileSize)
	if err != nil {
		return types.Message{}, c.observe("send_file", err)
	}
	return c.send(ctx, outbound{channelID: channelID, file: &file}, core.NewCorrelationID())
}

// SendFiles validates every file before uploading any, then sends them in order,
// each with its own correlation id. Failures do not stop the remaining uploads.
func (c *Coordinator) SendFiles(ctx context.Context, channelID string, files []types.FileUpload) ([]types.Message, error) {
	if err := requireChannel(channelID); err != nil {
		return nil, c.observe("send_file", err)
	}
	if len(files) == 0 {
		return nil, c.observe("send_file", &core.ValidationError{Field: "files", Reason: "cannot be empty"})
	}
	maxSize := c.Config().MaxFileSize
	validated := make([]types.FileUpload, 0, len(files))
	for _, file := range files {
		file, err := core.ValidateFile(file, maxSize)
		if err != nil {
			return nil, c.observe("send_file", err)
		}
		validated = append(validated, file)
	}

	sent := make([]types.Message, 0, len(validated))
	var errs []error
	for i := range validated {
		msg, err := c.send(ctx, outbound{channelID: channelID, file: &validated[i]}, core.NewCorrelationID())
		if errors.Is(err, core.ErrNotConnected) {
			return sent, err
		}
		if err != nil {
			errs = append(errs, err)
		}
		sent = append(sent, msg)
	}
	return sent, errors.Join(errs...)
}

// RetrySend re-issues a failed send with its original correlation id.
// Unknown ids are a no-op; a send still in flight is not duplicated.
func (c *Coordinator) RetrySend(ctx context.Context, correlationID string) (types.Message, error) {
	c.mu.Lock()
	out, ok := c.outbound[correlationID]
	if !ok {
		c.mu.Unlock()
		return types.Message{}, nil
	}
	if !c.readyLocked() {
		c.mu.Unlock()
		return types.Message{}, c.observe("retry_send", core.ErrNotConnected)
	}
	w, ok := c.outboundWindowLocked(out)
	if !ok {
		delete(c.outbound, correlationID)
		c.mu.Unlock()
		return types.Message{}, nil
	}
	local, ok := w.store.FindUnconfirmed(correlationID)
	if !ok || local.State != types.SendStateFailed {
		c.mu.Unlock()
		return local, nil
	}
	w.store.UpdateUnconfirmed(correlationID, func(m *types.Message) {
		m.State = types.SendStatePending
		m.LastError = ""
	})
	c.mu.Unlock()
	c.emitOutbound(out)

	return c.deliver(ctx, out, correlationID)
}

// DiscardFailed drops a failed send from local state.
func (c *Coordinator) DiscardFailed(correlationID string) bool {
	c.mu.Lock()
	out, ok := c.outbound[correlationID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if w, ok := c.outboundWindowLocked(out); ok {
		local, found := w.store.FindUnconfirmed(correlationID)
		if found && local.State != types.SendStateFailed {
			c.mu.Unlock()
			return false
		}
		w.store.RemoveUnconfirmed(correlationID)
	}
	delete(c.outbound, correlationID)
	c.updateUnconfirmedLocked()
	c.mu.Unlock()
	c.emitOutbound(out)
	return true
}

// send places the optimistic entry and delivers it.
func (c *Coordinator) send(ctx context.Context, out outbound, correlationID string) (types.Message, error) {
	c.mu.Lock()
	if !c.readyLocked() {
		c.mu.Unlock()
		return types.Message{}, c.observe(out.intent(), core.ErrNotConnected)
	}
	local := types.Message{
		ChannelID:     out.channelID,
		SenderID:      c.self,
		TS:            c.now().UnixMilli(),
		Kind:          types.MessageKindText,
		Text:          out.text,
		State:         types.SendStatePending,
		CorrelationID: correlationID,
		ParentID:      out.parentID,
	}
	if out.file != nil {
		local.Kind = types.MessageKindFile
		local.Text = ""
		local.File = &types.FilePayload{
			Name:     out.file.Name,
			MimeType: out.file.MimeType,
			Size:     out.file.Size(),
		}
	}
	if out.parentID == 0 {
		c.stateLocked(out.channelID)
	}
	if w, ok := c.outboundWindowLocked(out); ok {
		w.put(local)
	}
	c.outbound[correlationID] = out
	c.updateUnconfirmedLocked()
	c.mu.Unlock()
	c.emitOutbound(out)

	c.logger.Debug("send issued", "intent", out.intent(), "channel_id", out.channelID, "correlation_id", correlationID)
	return c.deliver(ctx, out, correlationID)
}

// deliver performs the remote call of a send and reconciles the result.
func (c *Coordinator) deliver(ctx context.Context, out outbound, correlationID string) (types.Message, error) {
	var (
		msg types.Message
		err error
	)
	switch {
	case out.parentID != 0:
		msg, err = c.client.SendThreadReply(ctx, out.channelID, out.parentID,
			types.ReplyContent{Text: out.text, File: out.file}, correlationID)
	case out.file != nil:
		msg, err = c.client.SendFile(ctx, out.channelID, *out.file, correlationID)
	default:
		msg, err = c.client.SendText(ctx, out.channelID, out.text, correlationID)
	}

	if err != nil {
		err = core.Remote(out.intent(), err)
		c.mu.Lock()
		var failed types.Message
		if w, ok := c.outboundWindowLocked(out); ok {
			w.store.UpdateUnconfirmed(correlationID, func(m *types.Message) {
				m.State = types.SendStateFailed
				m.LastError = err.Error()
			})
			failed, _ = w.store.FindUnconfirmed(correlationID)
		}
		c.updateUnconfirmedLocked()
		c.mu.Unlock()
		c.emitOutbound(out)
		return failed, c.observe(out.intent(), err)
	}

	msg = authoritative(msg, out.channelID)
	if msg.CorrelationID == "" {
		msg.CorrelationID = correlationID
	}
	c.mu.Lock()
	delete(c.outbound, correlationID)
	if w, ok := c.outboundWindowLocked(out); ok {
		if !msg.IsReply() && out.parentID != 0 {
			// Server dropped the parent link; keep the entry where it was sent.
			msg.ParentID = out.parentID
		}
		w.put(msg)
	}
	touched := false
	if out.parentID == 0 {
		touched = c.directory.Touch(out.channelID, types.SummaryOf(msg), false)
	}
	c.updateUnconfirmedLocked()
	c.mu.Unlock()

	c.emitOutbound(out)
	if touched {
		c.emit(ChangeChannels, out.channelID)
	}
	c.observe(out.intent(), nil)

	if out.parentID != 0 {
		// Reply counts are re-read from the server, not incremented locally.
		_ = c.refetchMessage(ctx, out.channelID, out.parentID)
	}
	return msg, nil
}

// outboundWindowLocked returns the collection a send lives in.
func (c *Coordinator) outboundWindowLocked(out outbound) (window, bool) {
	if out.parentID != 0 {
		if c.thread.matches(out.channelID, out.parentID) {
			return c.thread.replies, true
		}
		return window{}, false
	}
	st, ok := c.channels[out.channelID]
	if !ok {
		return window{}, false
	}
	return st.window, true
}

func (c *Coordinator) emitOutbound(out outbound) {
	if out.parentID != 0 {
		c.emit(ChangeThread, out.channelID)
		return
	}
	c.emit(ChangeMessages, out.channelID)
}
