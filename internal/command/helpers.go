package command

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/types"
)

// parseMessageID accepts "42" or "#42".
func parseMessageID(raw string) (int64, error) {
	value := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid message id: %q", raw)
	}
	return id, nil
}

func readUpload(path string) (types.FileUpload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.FileUpload{}, err
	}
	return types.FileUpload{Name: filepath.Base(path), Data: data}, nil
}

// requireLocal turns a zero message from an intent on something outside
// the loaded history into core.ErrNotFound.
func requireLocal(msg types.Message, channelID string, id int64) error {
	if msg.ID != 0 {
		return nil
	}
	return notLocal(channelID, id)
}

func notLocal(channelID string, id int64) error {
	return fmt.Errorf("message #%d in %s: %w", id, channelID, core.ErrNotFound)
}

func writeMessages(out io.Writer, jsonMode bool, msgs []types.Message, self string) error {
	if jsonMode {
		if msgs == nil {
			msgs = []types.Message{}
		}
		return json.NewEncoder(out).Encode(msgs)
	}
	if len(msgs) == 0 {
		fmt.Fprintln(out, "No messages")
		return nil
	}
	now := time.Now()
	for _, msg := range msgs {
		fmt.Fprintln(out, formatMessage(msg, self, now))
	}
	return nil
}

func writeMessage(out io.Writer, jsonMode bool, verb string, msg types.Message, self string) error {
	if jsonMode {
		return json.NewEncoder(out).Encode(msg)
	}
	fmt.Fprintf(out, "%s %s\n", verb, formatMessage(msg, self, time.Now()))
	return nil
}
