// Package gateway talks to the remote spreadsheet-backed endpoint. The
// endpoint is a black box that accepts url-encoded form posts and answers
// with a JSON body; a transport-level 2xx is necessary but not sufficient,
// the body must also carry the application-level success marker.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/common"
	"github.com/ecodata/fieldsync/internal/logging"
)

// statusSuccess is the application-level marker the endpoint returns for an
// accepted record.
const statusSuccess = "success"

// Result is the decoded endpoint response. HasSignedIn and PropertyName are
// only populated for sign-in related actions.
type Result struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	HasSignedIn  bool   `json:"hasSignedIn"`
	PropertyName string `json:"propertyName"`
}

type Client struct {
	endpointURL string
	httpc       *http.Client
	log         logging.Logger
}

// NewClient builds a client for the given endpoint. Every request uses the
// supplied timeout so a delivery attempt can never hang indefinitely.
func NewClient(endpointURL string, timeout time.Duration, log logging.Logger) *Client {
	return &Client{
		endpointURL: endpointURL,
		httpc:       &http.Client{Timeout: timeout},
		log:         log.With("component", "gateway"),
	}
}

// Deliver posts one record's outbound fields. The form type's action name is
// added unless the fields already carry one. Failures are classified as
// common.ErrTransport or common.ErrApplication; both mean "keep the record
// queued and retry later".
func (c *Client) Deliver(ctx context.Context, formType models.FormType, fields map[string]string) (*Result, error) {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	if form.Get("action") == "" {
		form.Set("action", formType.Action())
	}
	return c.postForm(ctx, form)
}

// UpdateLocation patches the location trail of an already-delivered record.
func (c *Client) UpdateLocation(ctx context.Context, upd models.PendingLocationUpdate, extra map[string]string) error {
	form := url.Values{}
	for k, v := range extra {
		form.Set(k, v)
	}
	form.Set("action", "updateLocation")
	form.Set("formId", upd.FormID)
	form.Set("locationHistory", upd.LocationTrail)

	_, err := c.postForm(ctx, form)
	return err
}

// SignOut tells the endpoint the tracked visit is over.
func (c *Client) SignOut(ctx context.Context, formID string) error {
	form := url.Values{}
	form.Set("action", "site_sign_out")
	form.Set("formId", formID)

	_, err := c.postForm(ctx, form)
	return err
}

// CheckSignIn asks the endpoint whether the user has completed today's site
// sign-in. This is the only read the client performs.
func (c *Client) CheckSignIn(ctx context.Context, username string) (*models.SignInStatus, error) {
	u := fmt.Sprintf("%s?action=checkSignIn&username=%s", c.endpointURL, url.QueryEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %s", common.ErrTransport, resp.Status)
	}

	var body struct {
		HasSignedIn  bool   `json:"hasSignedIn"`
		PropertyName string `json:"propertyName"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", common.ErrApplication, err)
	}

	return &models.SignInStatus{
		HasSignedIn:  body.HasSignedIn,
		PropertyName: body.PropertyName,
		FetchedAt:    time.Now(),
	}, nil
}

// Probe is a lightweight reachability check: any completed HTTP exchange
// counts as online, only a transport failure counts as offline.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpointURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	_ = resp.Body.Close()
	return nil
}

func (c *Client) postForm(ctx context.Context, form url.Values) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %s", common.ErrTransport, resp.Status)
	}

	var result Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: no success marker in response: %v", common.ErrApplication, err)
	}
	if result.Status != statusSuccess {
		return nil, fmt.Errorf("%w: %s", common.ErrApplication, result.Message)
	}
	return &result, nil
}
