package docdump

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

const (
	fileExt      = ".csv"
	maxAttempts  = 4
	filePerm     = 0600
	suffixLength = 8
)

var nameReplacer = strings.NewReplacer("/", "_", `\`, "_")

// BaseName returns the backup file name without extension:
// backup_<database>_<collection>_<epoch-millis>.
func BaseName(database, collection string, at time.Time) string {
	return fmt.Sprintf("backup_%s_%s_%d",
		nameReplacer.Replace(database), nameReplacer.Replace(collection), at.UnixMilli())
}

// createOutput creates base+ext in dir without overwriting anything.
// When the name is taken, an 8 hex digit suffix is appended to base.
func createOutput(dir, base, ext string) (*os.File, string, error) {
	name := base + ext
	for attempt := 0; ; attempt++ {
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) || attempt+1 >= maxAttempts {
			return nil, path, err
		}
		suffix, err := randomSuffix()
		if err != nil {
			return nil, path, err
		}
		name = base + "_" + suffix + ext
	}
}

func randomSuffix() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", "")[:suffixLength], nil
}
