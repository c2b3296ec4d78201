package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"
)

// uploadTimeout bounds the signed URL content push. Uploads go straight
// to object storage, so they get a larger budget than API calls.
const uploadTimeout = 120 * time.Second

// HashContent returns the hex encoded SHA-256 digest the confirm step
// reports back to the service.
func HashContent(content []byte) string {
	digest := sha256.Sum256(content)
	return hex.EncodeToString(digest[:])
}

// UploadContent pushes file content to the signed upload URL returned by
// the data create endpoint. The headers come from the same response and
// are sent verbatim.
func UploadContent(ctx context.Context, uploadURL string, headers map[string]string, content []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	uploadClient := &http.Client{
		Timeout: uploadTimeout,
	}
	resp, err := uploadClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload content: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Drain body to enable connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	return nil
}
