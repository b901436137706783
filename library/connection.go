// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

// Package library is the HTTP client for the Chorus server: stream
// URL resolution, podcast cache status, and listening progress. The
// library itself (metadata, downloads, recommendations) lives on the
// server; this client only asks narrow questions about playables.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/chorusfm/chorus/logger"
)

// ErrUnavailable is returned when the server cannot produce a stream
// for an item: no local file and the external fallback lookup came up
// empty. Load-error handling consumes it like any other load failure.
var ErrUnavailable = errors.New("no stream available for item")

type Connection struct {
	Username string
	Token    string
	Host     string

	clientName    string
	clientVersion string

	logger logger.LoggerInterface
}

func Init(logger logger.LoggerInterface) *Connection {
	return &Connection{
		clientName:    "chorus",
		clientVersion: "1",
		logger:        logger,
	}
}

func (c *Connection) SetClientInfo(name, version string) {
	c.clientName = name
	c.clientVersion = version
}

func defaultQuery(connection *Connection) url.Values {
	query := url.Values{}
	query.Set("u", connection.Username)
	query.Set("t", connection.Token)
	query.Set("c", connection.clientName)
	query.Set("v", connection.clientVersion)
	query.Set("f", "json")
	return query
}

type responseWrapper struct {
	Chorus Response `json:"chorus"`
}

// Response is the server's uniform reply envelope. Fields beyond
// Status are set per endpoint.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	Stream   *StreamInfo  `json:"stream,omitempty"`
	Cache    *CacheStatus `json:"cacheStatus,omitempty"`
	Progress *Progress    `json:"progress,omitempty"`
}

func (c *Connection) getResponse(caller, requestUrl string) (Response, error) {
	zero := Response{}
	res, err := http.Get(requestUrl)
	if err != nil {
		return zero, fmt.Errorf("[%s] failed to make GET request: %v", caller, err)
	}

	if res.Body != nil {
		defer res.Body.Close()
	} else {
		return zero, fmt.Errorf("[%s] response body is nil", caller)
	}

	if res.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("[%s] unexpected status code: %d, status: %s", caller, res.StatusCode, res.Status)
	}

	responseBody, readErr := io.ReadAll(res.Body)
	if readErr != nil {
		return zero, fmt.Errorf("[%s] failed to read response body: %v", caller, readErr)
	}

	var decodedBody responseWrapper
	err = json.Unmarshal(responseBody, &decodedBody)
	if err != nil {
		return zero, fmt.Errorf("[%s] failed to unmarshal response body: %v", caller, err)
	}

	if decodedBody.Chorus.Status != "" && decodedBody.Chorus.Status != "ok" {
		return decodedBody.Chorus, fmt.Errorf("[%s] server reported an error: %s", caller, decodedBody.Chorus.Error)
	}

	return decodedBody.Chorus, nil
}
