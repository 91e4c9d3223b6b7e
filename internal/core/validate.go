package core

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"

	"github.com/adamavenir/pairchat/internal/types"
)

const maxReactionKeyLength = 64

// ValidateText rejects text that is empty once surrounding whitespace is ignored.
// The text itself is sent as typed.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "text", Reason: "is empty"}
	}
	return nil
}

// ValidateFile checks an upload against the size limit and fills in a mime type.
func ValidateFile(file types.FileUpload, maxSize int64) (types.FileUpload, error) {
	if strings.TrimSpace(file.Name) == "" {
		return file, &ValidationError{Field: "file", Reason: "has no name"}
	}
	if file.Size() == 0 {
		return file, &ValidationError{Field: "file", Reason: fmt.Sprintf("%s is empty", file.Name)}
	}
	if file.Size() > maxSize {
		return file, &ValidationError{
			Field: "file",
			Reason: fmt.Sprintf("%s is %s, limit is %s",
				file.Name, humanize.IBytes(uint64(file.Size())), humanize.IBytes(uint64(maxSize))),
		}
	}
	if file.MimeType == "" {
		file.MimeType = DetectMimeType(file.Name, file.Data)
	}
	return file, nil
}

// DetectMimeType guesses a mime type from the file extension, then the content.
func DetectMimeType(name string, data []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}

// NormalizeReactionKey accepts "👍", ":thumbsup:" or "thumbsup" and returns the stored key.
func NormalizeReactionKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if len(key) > 2 && strings.HasPrefix(key, ":") && strings.HasSuffix(key, ":") {
		key = key[1 : len(key)-1]
	}
	if key == "" {
		return "", &ValidationError{Field: "reaction", Reason: "is empty"}
	}
	if len(key) > maxReactionKeyLength {
		return "", &ValidationError{Field: "reaction", Reason: "is too long"}
	}
	for _, r := range key {
		if unicode.IsSpace(r) {
			return "", &ValidationError{Field: "reaction", Reason: fmt.Sprintf("%q contains whitespace", raw)}
		}
	}
	return key, nil
}

// NormalizeMembers trims, drops empties and de-duplicates member ids, keeping order.
func NormalizeMembers(self string, members []string) ([]string, error) {
	seen := make(map[string]struct{}, len(members)+1)
	out := make([]string, 0, len(members)+1)
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(self)
	for _, member := range members {
		add(member)
	}
	if len(out) < 2 {
		return nil, &ValidationError{Field: "members", Reason: "needs at least one other member"}
	}
	return out, nil
}
