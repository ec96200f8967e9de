package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// newClient builds the shared HTTP client against the --api base URL.
func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiFlag).
		SetTimeout(30 * time.Second)
}

// checkStatus turns a non-2xx response into an error carrying the body.
func checkStatus(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
}
