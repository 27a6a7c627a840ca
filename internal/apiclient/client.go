// Package apiclient is the HTTP half of the client core: it implements the
// game machine's persistence sink against the server's /api surface.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/emlhoward/chatterbox/internal/capture"
	"github.com/emlhoward/chatterbox/internal/store"
)

// Client talks to a chatterbox server. Timeouts and retries belong to the
// injected http.Client; the Client itself adds none.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) CreateSession(ctx context.Context, in store.SessionInput) error {
	_, err := c.postJSON(ctx, "/api/sessions", in, http.StatusCreated)
	return err
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	var sess store.Session
	err := c.getJSON(ctx, "/api/sessions/"+sessionID, &sess)
	return sess, err
}

func (c *Client) UpdateProgress(ctx context.Context, sessionID string, currentIndex int, isCompleted bool) error {
	body, err := json.Marshal(store.SessionUpdate{CurrentIndex: &currentIndex, IsCompleted: &isCompleted})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/api/sessions/"+sessionID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drainClose(res.Body)
	if res.StatusCode != http.StatusOK {
		return responseError(res)
	}
	return nil
}

func (c *Client) UploadRecording(ctx context.Context, sessionID string, clip capture.Clip) error {
	fields := map[string]string{"sessionId": sessionID}
	if clip.Duration > 0 {
		fields["duration"] = strconv.Itoa(int(clip.Duration.Seconds()))
	}
	return c.uploadMultipart(ctx, "/api/recordings", fields, sessionID, clip)
}

func (c *Client) UploadPartialRecording(ctx context.Context, sessionID string, currentIndex int, clip capture.Clip) error {
	fields := map[string]string{
		"sessionId":    sessionID,
		"currentIndex": strconv.Itoa(currentIndex),
	}
	if clip.Duration > 0 {
		fields["duration"] = strconv.Itoa(int(clip.Duration.Seconds()))
	}
	return c.uploadMultipart(ctx, "/api/recordings/partial", fields, sessionID, clip)
}

func (c *Client) GetRecording(ctx context.Context, sessionID string) (store.Recording, error) {
	var rec store.Recording
	err := c.getJSON(ctx, "/api/recordings/"+sessionID, &rec)
	return rec, err
}

// DownloadRecording streams the stored audio and reports the attachment
// filename. The caller owns closing the reader.
func (c *Client) DownloadRecording(ctx context.Context, sessionID string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/recordings/"+sessionID+"/download", nil)
	if err != nil {
		return nil, "", err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	if res.StatusCode != http.StatusOK {
		defer drainClose(res.Body)
		return nil, "", responseError(res)
	}

	filename := ""
	if cd := res.Header.Get("Content-Disposition"); cd != "" {
		if i := strings.Index(cd, `filename="`); i >= 0 {
			rest := cd[i+len(`filename="`):]
			if j := strings.Index(rest, `"`); j >= 0 {
				filename = rest[:j]
			}
		}
	}
	return res.Body, filename, nil
}

func (c *Client) uploadMultipart(ctx context.Context, path string, fields map[string]string, sessionID string, clip capture.Clip) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("audio", fmt.Sprintf("recording_%s.wav", sessionID))
	if err != nil {
		return err
	}
	if _, err := fw.Write(clip.Data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drainClose(res.Body)
	if res.StatusCode != http.StatusCreated {
		return responseError(res)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in any, wantStatus int) ([]byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer drainClose(res.Body)
	if res.StatusCode != wantStatus {
		return nil, responseError(res)
	}
	return io.ReadAll(res.Body)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drainClose(res.Body)
	if res.StatusCode != http.StatusOK {
		return responseError(res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func responseError(res *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 4<<10)).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("server %d (%s): %s", res.StatusCode, body.Code, body.Error)
	}
	return fmt.Errorf("server returned status %d", res.StatusCode)
}

func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	body.Close()
}
