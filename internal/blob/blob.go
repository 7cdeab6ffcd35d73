// Package blob fetches the ticket collection from S3 or the local disk.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/agenthands/ticketkg/internal/ticket"
)

// ErrNotFound is returned when the object or file does not exist.
var ErrNotFound = errors.New("blob not found")

// Fetcher loads a ticket collection from a bucket/key or a path.
type Fetcher interface {
	FetchTickets(ctx context.Context, bucket, key string) ([]ticket.Ticket, error)
}

// DecodeTickets reads a JSON array of ticket objects, or an object wrapping
// the array under "tickets". Entries that are not objects are skipped.
func DecodeTickets(r io.Reader) ([]ticket.Ticket, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode tickets: %w", err)
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Tickets []any `json:"tickets"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("tickets must be a JSON array: %w", err)
		}
		list = wrapped.Tickets
	}

	out := make([]ticket.Ticket, 0, len(list))
	for _, v := range list {
		if obj := ticket.AsObject(v); obj != nil {
			out = append(out, obj)
		}
	}
	return out, nil
}

// FileFetcher reads tickets from the local filesystem. The bucket argument
// is ignored and key is the file path.
type FileFetcher struct{}

func (FileFetcher) FetchTickets(_ context.Context, _, path string) ([]ticket.Ticket, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return DecodeTickets(f)
}

// WriteLocal caches tickets at path, creating parent directories. The file is
// written to a temporary name first and renamed into place.
func WriteLocal(path string, tickets []ticket.Ticket) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(tickets, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tickets: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
