package backendsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/purchase"
	"github.com/trezcool/elimu/core/quiz"
)

// Client talks to the course backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

var (
	_ quiz.Source          = (*Client)(nil)
	_ course.Backend       = (*Client)(nil)
	_ course.ImageUploader = (*Client)(nil)
	_ catalog.Backend      = (*Client)(nil)
	_ purchase.QRCreator   = (*Client)(nil)
)

func NewClient(conf *core.Config) *Client {
	return &Client{
		baseURL: conf.Backend.BaseURL,
		http:    &http.Client{Timeout: conf.Backend.Timeout},
	}
}

// NewClientWith is used in tests to target an httptest server.
func NewClientWith(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

func (c *Client) FetchCourse(ctx context.Context, id, userID string) (course.Course, error) {
	p := "/api/courses/" + url.PathEscape(id)
	if userID != "" {
		p += "?" + url.Values{"userId": {userID}}.Encode()
	}
	var crs course.Course
	err := c.do(ctx, http.MethodGet, p, "", nil, "", &crs)
	return crs, err
}

func (c *Client) FetchQuiz(ctx context.Context, courseID string) ([]quiz.Question, error) {
	var resp struct {
		Quiz []quiz.Question `json:"quiz"`
	}
	err := c.do(ctx, http.MethodGet, "/api/courses/"+url.PathEscape(courseID)+"/quiz", "", nil, "", &resp)
	return resp.Quiz, err
}

func (c *Client) CreateCourse(ctx context.Context, token string, nc course.NewCourse) error {
	body, err := jsonBody(nc)
	if err != nil {
		return err
	}
	status, err := c.send(ctx, http.MethodPost, "/api/courses", token, body, "application/json", nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return &core.RequestError{Status: status}
	}
	return nil
}

func (c *Client) UploadImage(ctx context.Context, name string, r io.Reader, _ int64) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		return "", errors.Wrap(err, "creating multipart body")
	}
	if _, err = io.Copy(part, r); err != nil {
		return "", errors.Wrap(err, "reading image")
	}
	if err = mw.Close(); err != nil {
		return "", errors.Wrap(err, "creating multipart body")
	}

	var resp struct {
		ImageURL string `json:"imageUrl"`
	}
	err = c.do(ctx, http.MethodPost, "/api/upload", "", &buf, mw.FormDataContentType(), &resp)
	return resp.ImageURL, err
}

func (c *Client) CreateQR(ctx context.Context, courseID, userID string) (string, error) {
	body, err := jsonBody(map[string]string{"courseId": courseID, "userId": userID})
	if err != nil {
		return "", err
	}
	var resp struct {
		URL string `json:"url"`
	}
	err = c.do(ctx, http.MethodPost, "/api/create-qr", "", body, "application/json", &resp)
	return resp.URL, err
}

func (c *Client) ToggleFavorite(ctx context.Context, token, courseID string) (bool, error) {
	body, err := jsonBody(map[string]string{"courseId": courseID})
	if err != nil {
		return false, err
	}
	var resp struct {
		IsFavorite bool `json:"isFavorite"`
	}
	err = c.do(ctx, http.MethodPost, "/api/favorites/toggle", token, body, "application/json", &resp)
	return resp.IsFavorite, err
}

func jsonBody(v interface{}) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding request body")
	}
	return bytes.NewReader(data), nil
}

// do sends a request and decodes a 2xx JSON response into out (when not nil).
// Transport failures are reported as core.ErrConnection, other statuses as *core.RequestError.
func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader, contentType string, out interface{}) error {
	_, err := c.send(ctx, method, path, token, body, contentType, out)
	return err
}

// send is do returning the response status.
func (c *Client) send(ctx context.Context, method, path, token string, body io.Reader, contentType string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, errors.Wrapf(err, "building %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrapf(core.ErrConnection, "%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrapf(core.ErrConnection, "%s %s: reading body: %v", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &msg)
		return resp.StatusCode, &core.RequestError{Status: resp.StatusCode, Message: msg.Message}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, errors.Wrap(err, fmt.Sprintf("decoding %s %s response", method, path))
	}
	return resp.StatusCode, nil
}
