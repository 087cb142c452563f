package legacy

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

// FileGateway hands store events to the legacy store manager, which picks
// them up as one short-lived record file per event.
type FileGateway struct {
	dir    string
	logger *zap.Logger
}

func NewFileGateway(dir string, logger *zap.Logger) *FileGateway {
	if dir == "" {
		dir = os.TempDir()
	}
	return &FileGateway{dir: dir, logger: logger}
}

func (g *FileGateway) Sync(ctx context.Context, event domain.StoreEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.CreateTemp(g.dir, safeFilePrefix(event.Store.Name)+"-*.txt")
	if err != nil {
		return fmt.Errorf("create legacy record: %w", err)
	}
	path := file.Name()
	defer os.Remove(path)

	if _, err := file.WriteString(Record(event)); err != nil {
		file.Close()
		return fmt.Errorf("write legacy record: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close legacy record: %w", err)
	}

	written, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read back legacy record: %w", err)
	}

	g.logger.Debug("legacy record written",
		zap.String("event_id", event.ID),
		zap.String("path", path),
		zap.ByteString("content", written),
	)
	return nil
}

// Record renders the legacy line format for an event.
func Record(event domain.StoreEvent) string {
	return fmt.Sprintf("Store %s. [ name =%s ] [ items on stock =%d]",
		event.Type, event.Store.Name, event.Store.Occupancy)
}

func safeFilePrefix(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '*' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "store"
	}
	return name
}
