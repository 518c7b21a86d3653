package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/logging"
)

// DecodeResponse decodes a JSON response body into target and closes it.
func DecodeResponse(resp *http.Response, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		name := "response"
		if resp.Request != nil && resp.Request.URL != nil {
			name = resp.Request.URL.String()
		}
		return errors.WrapParse("json", name, err)
	}
	return nil
}
