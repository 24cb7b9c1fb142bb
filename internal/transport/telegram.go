package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://api.telegram.org"

// Client is a Telegram Bot API client. It covers the slice of the API
// the relay needs: sending text, fetching uploaded documents and
// registering the webhook.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new Telegram Bot API client
func NewClient(token string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client against a non-default API host
// (used by tests and local bot-api servers).
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = baseURL
	return c
}

// sendMessageRequest represents a sendMessage call
type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// apiResponse is the envelope every Bot API call returns
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// fileResult is the payload of a getFile call
type fileResult struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// SendMessage delivers a text message to a chat. Failures are
// recoverable errors for the caller; no retry is attempted here.
func (c *Client) SendMessage(chatID int64, text string) error {
	var resp apiResponse
	err := c.call("sendMessage", sendMessageRequest{ChatID: chatID, Text: text}, &resp)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("telegram sendMessage failed: %s", resp.Description)
	}
	return nil
}

// FetchDocument downloads the bytes of a document previously uploaded
// to the bot, identified by its platform file id.
func (c *Client) FetchDocument(fileID string) ([]byte, error) {
	var resp apiResponse
	if err := c.call("getFile", map[string]string{"file_id": fileID}, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("telegram getFile failed: %s", resp.Description)
	}

	var file fileResult
	if err := json.Unmarshal(resp.Result, &file); err != nil {
		return nil, fmt.Errorf("failed to decode getFile result: %w", err)
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, file.FilePath)
	httpResp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", httpResp.StatusCode)
	}
	return io.ReadAll(httpResp.Body)
}

// SetWebhook registers the webhook URL with the platform. The secret is
// echoed back by Telegram on every update and checked by the webhook
// handler.
func (c *Client) SetWebhook(url, secret string) error {
	var resp apiResponse
	payload := map[string]string{"url": url}
	if secret != "" {
		payload["secret_token"] = secret
	}
	if err := c.call("setWebhook", payload, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("telegram setWebhook failed: %s", resp.Description)
	}
	log.Info().Str("url", url).Msg("Telegram webhook registered")
	return nil
}

func (c *Client) call(method string, payload interface{}, out *apiResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpResp, err := c.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer httpResp.Body.Close()

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}
