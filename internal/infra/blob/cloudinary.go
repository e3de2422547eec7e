package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultCloudinaryEndpoint = "https://api.cloudinary.com/v1_1"

// CloudinaryStore unsigned upload，只需要 cloud name 與 upload preset
type CloudinaryStore struct {
	endpoint     string
	cloudName    string
	uploadPreset string
	client       *http.Client
}

type CloudinaryOption func(*CloudinaryStore)

func WithEndpoint(endpoint string) CloudinaryOption {
	return func(c *CloudinaryStore) {
		c.endpoint = endpoint
	}
}

func WithHTTPClient(client *http.Client) CloudinaryOption {
	return func(c *CloudinaryStore) {
		c.client = client
	}
}

func NewCloudinaryStore(cloudName, uploadPreset string, opts ...CloudinaryOption) *CloudinaryStore {
	c := &CloudinaryStore{
		endpoint:     defaultCloudinaryEndpoint,
		cloudName:    cloudName,
		uploadPreset: uploadPreset,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *CloudinaryStore) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	n, err := io.Copy(fw, r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if n == 0 {
		return "", ErrEmptyFile
	}
	if err := mw.WriteField("upload_preset", c.uploadPreset); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	url := fmt.Sprintf("%s/%s/image/upload", c.endpoint, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	var res cloudinaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("%w: status %d: %v", ErrUploadFailed, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || res.SecureURL == "" {
		msg := "missing secure_url"
		if res.Error != nil {
			msg = res.Error.Message
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrUploadFailed, resp.StatusCode, msg)
	}
	return res.SecureURL, nil
}

var _ Store = (*CloudinaryStore)(nil)
