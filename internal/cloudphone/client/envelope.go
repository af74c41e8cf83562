package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"cloudphone/internal/cloudphone/cloudphoneerr"
	"cloudphone/pkg/cloudphone"
)

// doEnvelope POSTs body as JSON to path with bearer auth, decodes the
// {code, msg, data} envelope, and classifies a non-zero code into the
// typed errors of spec §7. A non-2xx HTTP status raises a transport
// error regardless of body contents (spec §4.1 "Error surface").
//
// This is a free function, not a *Client method, because Go methods
// cannot carry their own type parameters; it takes the *Client as an
// argument and hands its HTTP round trip to c.doWithRetry as a closure,
// the same shape bmc.Service.doWithRetry threads a
// func(context.Context) (*http.Response, error) through.
func doEnvelope[T any](ctx context.Context, c *Client, op, path string, body any) (T, error) {
	var zero T

	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("encode request: %w", err)
		}
	}

	var result T
	err := c.doWithRetry(ctx, op, func(ctx context.Context) error {
		// A fresh reader per attempt: the previous attempt's reader is
		// drained to EOF by httpClient.Do, so reusing it here would send
		// an empty body on every retry.
		var reqBody io.Reader
		if encoded != nil {
			reqBody = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
		if err != nil {
			return cloudphoneerr.Transport(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return cloudphoneerr.Transport(err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return cloudphoneerr.Transport(err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return cloudphoneerr.Transport(fmt.Errorf("http %d: %s", resp.StatusCode, string(raw)))
		}

		var env cloudphone.RawEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return cloudphoneerr.Transport(fmt.Errorf("decode envelope: %w", err))
		}

		if env.Code != cloudphone.CodeSuccess {
			return cloudphoneerr.FromProviderCode(env.Code, env.Msg)
		}

		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &result); err != nil {
				return cloudphoneerr.Transport(fmt.Errorf("decode data: %w", err))
			}
		}
		return nil
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}
