package console

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/session"
)

const squadIDFile = "squad_id"

// LoadOrCreateSquadID returns the squad id remembered in dir, creating and
// saving a fresh one when none is stored or the stored one is invalid.
func LoadOrCreateSquadID(dir string, r interface{ IntN(int) int }) (string, error) {
	path := filepath.Join(dir, squadIDFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if id, err := squads.NormalizeID(strings.TrimSpace(string(data))); err == nil {
			return id, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read squad id: %w", err)
	}

	id := session.NewSquadID(r)
	if err := SaveSquadID(dir, id); err != nil {
		return "", err
	}
	return id, nil
}

// SaveSquadID remembers id in dir.
func SaveSquadID(dir, id string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, squadIDFile), []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("write squad id: %w", err)
	}
	return nil
}
