package client

import (
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// ErrMalformedHostname is returned when a host string cannot be parsed as a
// url or host:port pair.
var ErrMalformedHostname = errors.New("hostname must include port, separated by one colon, like example.com:3500")

// ErrNotOK is used to indicate when an HTTP request to the API failed with any non-2xx response code.
// More specific errors may be returned, but an error in reaction to a non-2xx response will always wrap ErrNotOK.
var ErrNotOK = errors.New("did not receive 2xx response from API")

// ErrNotFound specifically means that a '404 - NOT FOUND' response was received from the API.
var ErrNotFound = errors.Wrap(ErrNotOK, "recv 404 NotFound response from API")

func non200Err(response *http.Response) error {
	bodyBytes, err := io.ReadAll(response.Body)
	var body string
	if err != nil {
		body = "(Unable to read response body.)"
	} else {
		body = "response body:\n" + string(bodyBytes)
	}
	msg := "error requesting " + response.Request.URL.String()
	switch response.StatusCode {
	case http.StatusNotFound:
		return errors.Wrap(ErrNotFound, msg)
	default:
		return errors.Wrapf(ErrNotOK, "code=%d, url=%s, %s", response.StatusCode, response.Request.URL, body)
	}
}
