// Package client talks to a running slurmdash server.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	resty "github.com/go-resty/resty/v2"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/query"
)

// Client reads cluster status from the slurmdash HTTP API.
type Client struct {
	baseURL string
	http    *resty.Client
}

type listEnvelope struct {
	Count   int            `json:"count"`
	Results []query.Status `json:"results"`
	Detail  string         `json:"detail"`
}

type singleEnvelope struct {
	Count   int          `json:"count"`
	Results query.Status `json:"results"`
	Detail  string       `json:"detail"`
}

// New creates a client for the server at baseURL, e.g. http://127.0.0.1:5001.
// A bare host:port is accepted.
func New(baseURL string, timeout time.Duration) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{baseURL: baseURL, http: r}
}

// Clusters returns the status of every cluster the server knows.
func (c *Client) Clusters(ctx context.Context, mode query.Mode) ([]query.Status, error) {
	var env listEnvelope
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("mode", string(mode)).
		SetResult(&env).
		SetError(&env).
		Get("/api/v1/clusters")
	if err != nil {
		return nil, c.unreachable(err)
	}
	if res.IsError() {
		return nil, c.responseError(res, env.Detail, "")
	}
	return env.Results, nil
}

// Cluster returns the status of one cluster.
func (c *Client) Cluster(ctx context.Context, id string, mode query.Mode) (query.Status, error) {
	var env singleEnvelope
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetQueryParam("mode", string(mode)).
		SetResult(&env).
		SetError(&env).
		Get("/api/v1/clusters/{id}")
	if err != nil {
		return query.Status{}, c.unreachable(err)
	}
	if res.IsError() {
		return query.Status{}, c.responseError(res, env.Detail, id)
	}
	return env.Results, nil
}

func (c *Client) unreachable(err error) error {
	return errors.WrapWithCode(err, errors.ErrServer,
		fmt.Sprintf("Couldn't reach slurmdash at %s", c.baseURL),
		"Check that 'slurmdash serve' is running and --server points at its listen address.")
}

func (c *Client) responseError(res *resty.Response, detail, id string) error {
	if res.StatusCode() == http.StatusNotFound && id != "" {
		return errors.NewNotFound(id)
	}
	if detail == "" {
		detail = res.Status()
	}
	return errors.New(errors.ErrServer,
		fmt.Sprintf("slurmdash at %s answered %d: %s", c.baseURL, res.StatusCode(), detail), "")
}
