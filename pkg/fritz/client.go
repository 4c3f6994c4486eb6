package fritz

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPort is the plain-HTTP TR-064 port of a FRITZ!Box.
	DefaultPort = 49000

	serviceNamespace = "urn:dslforum-org:service:"
	defaultTimeout   = 30 * time.Second
)

// Client talks TR-064 (SOAP over HTTP with digest authentication) to a
// FRITZ!Box. It covers exactly the actions this toolkit needs; it is not
// a general UPnP stack.
type Client struct {
	address  string
	username string
	password string

	httpClient *http.Client

	// baseURL is derived from address and port, overridable for tests.
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithPort sets a non-default TR-064 port.
func WithPort(port int) Option {
	return func(c *Client) {
		c.baseURL = fmt.Sprintf("http://%s:%d", c.address, port)
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithBaseURL points the client at an arbitrary endpoint instead of
// http://<address>:<port>. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// NewClient creates a TR-064 client for the box at the given address,
// authenticating with the given credentials.
func NewClient(address, username, password string, opts ...Option) *Client {
	c := &Client{
		address:    address,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    fmt.Sprintf("http://%s:%d", address, DefaultPort),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the router address the client was created for.
func (c *Client) Address() string {
	return c.address
}

// Call invokes a TR-064 action and returns its output arguments as a
// name/value map. service is the TR-064 service identifier, for example
// "DeviceInfo:1". The first request is sent unauthenticated; the digest
// challenge in the 401 answer is then solved and the request repeated.
func (c *Client) Call(ctx context.Context, service, action string, args map[string]string) (map[string]string, error) {
	path := controlPath(service)
	envelope := buildEnvelope(service, action, args)
	soapAction := fmt.Sprintf("%q", serviceNamespace+service+"#"+action)

	logrus.WithFields(logrus.Fields{
		"router":  c.address,
		"service": service,
		"action":  action,
	}).Debug("Calling TR-064 action")

	resp, err := c.post(ctx, path, soapAction, envelope, "")
	if err != nil {
		return nil, fmt.Errorf("call %s#%s on %s: %w", service, action, c.address, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		challenge := resp.Header.Get("WWW-Authenticate")
		drainAndClose(resp)

		ch, err := parseDigestChallenge(challenge)
		if err != nil {
			return nil, fmt.Errorf("call %s#%s on %s: %w", service, action, c.address, err)
		}
		auth := ch.authorize(http.MethodPost, path, c.username, c.password)

		resp, err = c.post(ctx, path, soapAction, envelope, auth)
		if err != nil {
			return nil, fmt.Errorf("call %s#%s on %s: %w", service, action, c.address, err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drainAndClose(resp)
			return nil, fmt.Errorf("authentication rejected for user %q on %s", c.username, c.address)
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s#%s response from %s: %w", service, action, c.address, err)
	}

	if resp.StatusCode != http.StatusOK {
		if fault := parseFault(data); fault != nil {
			return nil, fmt.Errorf("call %s#%s on %s: %w", service, action, c.address, fault)
		}
		return nil, fmt.Errorf("call %s#%s on %s: unexpected status %d", service, action, c.address, resp.StatusCode)
	}

	out, err := parseResponse(data, action)
	if err != nil {
		return nil, fmt.Errorf("call %s#%s on %s: %w", service, action, c.address, err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path, soapAction string, envelope []byte, authorization string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", soapAction)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return c.httpClient.Do(req)
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// controlPath maps a TR-064 service identifier to its control URL on the
// box. The AVM paths are not uniformly derivable from the service name,
// so the known ones are listed and the lowercase name is the fallback.
func controlPath(service string) string {
	known := map[string]string{
		"DeviceInfo:1":        "/upnp/control/deviceinfo",
		"DeviceConfig:1":      "/upnp/control/deviceconfig",
		"LANConfigSecurity:1": "/upnp/control/lanconfigsecurity",
		"WANPPPConnection:1":  "/upnp/control/wanpppconn1",
		"WANIPConnection:1":   "/upnp/control/wanipconnection1",
	}
	if path, ok := known[service]; ok {
		return path
	}
	name := strings.ToLower(service)
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	return "/upnp/control/" + name
}

// buildEnvelope renders the SOAP request body for an action call.
// Argument order is sorted so the payload is deterministic.
func buildEnvelope(service, action string, args map[string]string) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	buf.WriteString(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`)
	buf.WriteString(`<s:Body>`)
	fmt.Fprintf(&buf, `<u:%s xmlns:u="%s%s">`, action, serviceNamespace, service)

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&buf, "<%s>", name)
		_ = xml.EscapeText(&buf, []byte(args[name]))
		fmt.Fprintf(&buf, "</%s>", name)
	}

	fmt.Fprintf(&buf, `</u:%s>`, action)
	buf.WriteString(`</s:Body></s:Envelope>`)
	return buf.Bytes()
}

// parseResponse extracts the output arguments from a successful action
// response: the children of the <u:<action>Response> element.
func parseResponse(data []byte, action string) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	responseName := action + "Response"

	out := make(map[string]string)
	found := false
	inResponse := false
	current := ""

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse soap response: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == responseName {
				found = true
				inResponse = true
				continue
			}
			if inResponse {
				current = t.Name.Local
				out[current] = ""
			}
		case xml.CharData:
			if inResponse && current != "" {
				out[current] += string(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case responseName:
				inResponse = false
			case current:
				current = ""
			}
		}
	}

	if !found {
		return nil, fmt.Errorf("response carries no %s element", responseName)
	}
	return out, nil
}

// soapFault is the error form of a TR-064 fault answer. The box wraps
// UPnP error codes into the detail element of a standard SOAP fault.
type soapFault struct {
	Code        string
	Description string
}

func (f *soapFault) Error() string {
	if f.Description == "" {
		return fmt.Sprintf("soap fault %s", f.Code)
	}
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.Description)
}

// parseFault extracts fault information from an error response body.
// Returns nil when the body is not a parsable fault.
func parseFault(data []byte) *soapFault {
	dec := xml.NewDecoder(bytes.NewReader(data))
	fault := &soapFault{}
	current := ""

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.CharData:
			value := strings.TrimSpace(string(t))
			if value == "" {
				continue
			}
			// The UPnP errorCode in the fault detail is more specific
			// than the outer faultcode, so it always wins.
			switch current {
			case "errorCode":
				fault.Code = value
			case "faultcode":
				if fault.Code == "" {
					fault.Code = value
				}
			case "errorDescription":
				fault.Description = value
			case "faultstring":
				if fault.Description == "" {
					fault.Description = value
				}
			}
		case xml.EndElement:
			current = ""
		}
	}

	if fault.Code == "" && fault.Description == "" {
		return nil
	}
	return fault
}
