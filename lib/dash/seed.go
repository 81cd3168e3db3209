package dash

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed holds the records the users and chats collections are seeded with.
type Seed struct {
	Users []User      `yaml:"users"`
	Chats []ChatBoard `yaml:"chats"`
}

// DefaultSeed returns the built-in seed records. Messages without a timestamp get now.
func DefaultSeed(now time.Time) Seed {
	seed, err := ParseSeed(defaultSeed, now)
	if err != nil {
		panic(fmt.Sprintf("dash: embedded seed is invalid: %v", err))
	}
	return seed
}

// LoadSeed reads seed records from a YAML file. An empty path yields the built-in seed.
func LoadSeed(path string, now time.Time) (Seed, error) {
	if path == "" {
		return DefaultSeed(now), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	seed, err := ParseSeed(data, now)
	if err != nil {
		return Seed{}, fmt.Errorf("seed file %s: %w", path, err)
	}
	return seed, nil
}

// ParseSeed decodes seed YAML. Unknown fields are rejected, every record needs an id,
// message chat ids default to their board.
func ParseSeed(data []byte, now time.Time) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}

	for _, u := range seed.Users {
		if u.ID == "" {
			return Seed{}, fmt.Errorf("user %q has no id", u.Name)
		}
	}
	for i := range seed.Chats {
		board := &seed.Chats[i]
		if board.ID == "" {
			return Seed{}, fmt.Errorf("chat %q has no id", board.Title)
		}
		if board.Messages == nil {
			board.Messages = []ChatMessage{}
		}
		for j := range board.Messages {
			msg := &board.Messages[j]
			if msg.ID == "" {
				return Seed{}, fmt.Errorf("chat %s: message %d has no id", board.ID, j)
			}
			if msg.ChatID == "" {
				msg.ChatID = board.ID
			}
			if msg.ChatID != board.ID {
				return Seed{}, fmt.Errorf("chat %s: message %s belongs to chat %s", board.ID, msg.ID, msg.ChatID)
			}
			if msg.TS == 0 {
				msg.TS = now.UnixMilli()
			}
		}
	}
	return seed, nil
}
