package backup

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"cmsbackup/internal/model"
)

// Exporter serializes entity collections into a snapshot document stored in the vault.
type Exporter struct {
	store EntityStore
	vault Vault
	clock Clock
	idgen IDGenerator
}

// NewExporter creates an Exporter.
func NewExporter(store EntityStore, vault Vault, clock Clock, idgen IDGenerator) *Exporter {
	return &Exporter{store: store, vault: vault, clock: clock, idgen: idgen}
}

// ExportSnapshot reads every row of collections, writes them as one document
// and returns the vault key and its size in bytes. Source data is only read.
// Any failure is returned as *ExportError.
func (e *Exporter) ExportSnapshot(ctx context.Context, kind model.Kind, collections []string) (string, int64, error) {
	doc, err := e.buildDocument(ctx, collections)
	if err != nil {
		return "", 0, &ExportError{Kind: kind, Err: err}
	}

	var buf bytes.Buffer
	if err := EncodeDocument(&buf, doc); err != nil {
		return "", 0, &ExportError{Kind: kind, Err: err}
	}

	key := e.payloadKey(kind)
	size := int64(buf.Len())
	if err := e.vault.PutPayload(ctx, key, &buf, size); err != nil {
		return "", 0, &ExportError{Kind: kind, Err: fmt.Errorf("writing payload %s: %w", key, err)}
	}

	return key, size, nil
}

func (e *Exporter) buildDocument(ctx context.Context, collections []string) (Document, error) {
	rows, err := e.store.ReadCollections(ctx, collections)
	if err != nil {
		return nil, fmt.Errorf("reading collections: %w", err)
	}

	doc := make(Document, len(collections))
	for _, id := range collections {
		records := make([]Record, 0, len(rows[id]))
		for i, row := range rows[id] {
			rec, err := portableRecord(row)
			if err != nil {
				return nil, fmt.Errorf("collection %s: row %d: %w", id, i, err)
			}
			records = append(records, rec)
		}
		doc[id] = records
	}
	return doc, nil
}

// payloadKey names the artifact backup_{kind}_{timestamp}_{id}.json.
// The id suffix keeps two exports within the same second apart.
func (e *Exporter) payloadKey(kind model.Kind) string {
	suffix := strings.ReplaceAll(e.idgen.New(), "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("backup_%s_%s_%s.json", kind, e.clock.Now().UTC().Format("20060102_150405"), suffix)
}
