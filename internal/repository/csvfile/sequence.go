package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"taskdesk/internal/domain"
)

// sequence persists the highest task id ever issued so deleted ids are not reissued.
type sequence struct {
	path string
}

func (s sequence) load(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, domain.IOFailure("read", s.path, err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: sequence file %s holds %q", domain.ErrMalformedRecord, s.path, raw)
	}
	return value, nil
}

func (s sequence) store(ctx context.Context, value int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := WriteFileAtomic(s.path, []byte(strconv.FormatInt(value, 10)+"\n"), 0o644); err != nil {
		return domain.IOFailure("write", s.path, err)
	}
	return nil
}
