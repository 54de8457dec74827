package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// DatabaseEntry is the name of the merged tables inside database.zip
const DatabaseEntry = "database.json"

// PackageDatabase merges the extracted data tables into one JSON document,
// keyed by table name, and stores it compressed in database.zip
func (t *Toolkit) PackageDatabase(ctx context.Context) (bool, error) {
	return done(t.packageDatabase(ctx))
}

func (t *Toolkit) packageDatabase(ctx context.Context) error {
	names, err := listFiles(t.dataDir(), ".json")
	if err != nil {
		return fmt.Errorf("list data tables: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no data tables found in %s", t.dataDir())
	}

	tables := make(map[string]json.RawMessage, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(t.dataDir(), name))
		if err != nil {
			return err
		}
		if !json.Valid(data) {
			return fmt.Errorf("data table %s is not valid JSON", name)
		}
		tables[baseName(name)] = json.RawMessage(data)
	}

	merged, err := json.Marshal(tables)
	if err != nil {
		return fmt.Errorf("merge data tables: %w", err)
	}

	if err := removeIfExists(t.databaseZip()); err != nil {
		return err
	}
	if err := writeZip(t.databaseZip(), DatabaseEntry, merged); err != nil {
		return fmt.Errorf("write database: %w", err)
	}

	t.logger.Info("database packaged",
		zap.Int("tables", len(tables)),
		zap.Int("bytes", len(merged)))
	return nil
}

// writeZip creates an archive holding a single deflated entry
func writeZip(path, entry string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Deflate})
	if err != nil {
		f.Close()
		return err
	}
	if _, err := w.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TableNames lists the tables stored in a database archive
func TableNames(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != DatabaseEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		var tables map[string]json.RawMessage
		err = json.NewDecoder(rc).Decode(&tables)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", DatabaseEntry, err)
		}

		names := make([]string, 0, len(tables))
		for name := range tables {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	return nil, fmt.Errorf("%s not found in %s", DatabaseEntry, path)
}
