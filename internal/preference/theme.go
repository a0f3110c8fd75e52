// Package preference persists the terminal theme selector in a one-line file.
package preference

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"taskdesk/internal/domain"
	"taskdesk/internal/repository/csvfile"
)

const (
	ThemeLight = 0
	ThemeDark  = 1

	DefaultTheme = ThemeDark
)

type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Theme returns the stored selector, or DefaultTheme when the file is absent,
// unreadable or holds anything other than 0 or 1.
func (s *Store) Theme() int {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return DefaultTheme
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || !validTheme(value) {
		return DefaultTheme
	}
	return value
}

func (s *Store) SetTheme(theme int) error {
	if !validTheme(theme) {
		return domain.NewValidationError("theme", fmt.Sprintf("theme must be %d or %d", ThemeLight, ThemeDark))
	}
	if err := csvfile.WriteFileAtomic(s.path, []byte(strconv.Itoa(theme)+"\n"), 0o644); err != nil {
		return domain.IOFailure("write", s.path, err)
	}
	return nil
}

// Toggle flips between light and dark and returns the new selector.
func (s *Store) Toggle() (int, error) {
	next := ThemeLight
	if s.Theme() == ThemeLight {
		next = ThemeDark
	}
	if err := s.SetTheme(next); err != nil {
		return 0, err
	}
	return next, nil
}

func ThemeName(theme int) string {
	if theme == ThemeLight {
		return "light"
	}
	return "dark"
}

// ParseTheme accepts "light", "dark", "0" or "1".
func ParseTheme(raw string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "light", "0":
		return ThemeLight, nil
	case "dark", "1":
		return ThemeDark, nil
	default:
		return 0, domain.NewValidationError("theme", fmt.Sprintf("unknown theme %q", raw))
	}
}

func validTheme(v int) bool {
	return v == ThemeLight || v == ThemeDark
}
