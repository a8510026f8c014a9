package services

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

// gzipMagic is the gzip header prefix (ID1, ID2, CM=deflate).
var gzipMagic = []byte{0x1f, 0x8b, 0x08}

// readUploadPayload reads an upload file, transparently decompressing gzip content.
func readUploadPayload(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	return decodePayload(f)
}

// decodePayload returns r's bytes, gunzipped when they start with the gzip magic.
func decodePayload(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	var src io.Reader = br
	if bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

// IngestPayload decodes a possibly gzipped JSON payload and ingests it for owner.
func IngestPayload(ctx context.Context, ingestion IngestionService, owner *models.User, r io.Reader) (*IngestResult, error) {
	payload, err := decodePayload(r)
	if err != nil {
		return nil, err
	}
	doc, err := ParseReportDocument(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return ingestion.Ingest(ctx, owner, doc)
}
