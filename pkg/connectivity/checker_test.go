package connectivity

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

const testDescriptor = `<?xml version="1.0"?>
<root xmlns="urn:dslforum-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:dslforum-org:device:InternetGatewayDevice:1</deviceType>
    <friendlyName>FRITZ!Box 7590</friendlyName>
    <manufacturer>AVM Berlin</manufacturer>
    <modelName>FRITZ!Box 7590</modelName>
    <modelNumber>7590</modelNumber>
  </device>
</root>`

// testConfig derives a checker config from an httptest server URL.
func testConfig(t *testing.T, serverURL string) Config {
	t.Helper()

	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}

	return Config{
		Address:       u.Hostname(),
		Port:          port,
		MaxRetries:    1,
		RetryInterval: 1,
		Timeout:       1,
	}
}

func descriptorHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tr64desc.xml" {
			t.Errorf("Expected request for /tr64desc.xml, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(testDescriptor))
	}
}

func TestNewChecker(t *testing.T) {
	// Test with default values
	config := Config{
		Address: "fritz.box",
	}
	checker := NewChecker(config)

	if checker.config.Port != 49000 {
		t.Errorf("Expected default Port to be 49000, got %d", checker.config.Port)
	}
	if checker.config.MaxRetries != 3 {
		t.Errorf("Expected default MaxRetries to be 3, got %d", checker.config.MaxRetries)
	}
	if checker.config.RetryInterval != 5 {
		t.Errorf("Expected default RetryInterval to be 5, got %d", checker.config.RetryInterval)
	}
	if checker.config.Timeout != 5 {
		t.Errorf("Expected default Timeout to be 5, got %d", checker.config.Timeout)
	}

	// Test with custom values
	customConfig := Config{
		Address:       "fritz.box",
		Port:          49443,
		MaxRetries:    5,
		RetryInterval: 2,
		Timeout:       15,
	}
	customChecker := NewChecker(customConfig)

	if customChecker.config.Port != 49443 {
		t.Errorf("Expected Port to be 49443, got %d", customChecker.config.Port)
	}
	if customChecker.config.MaxRetries != 5 {
		t.Errorf("Expected MaxRetries to be 5, got %d", customChecker.config.MaxRetries)
	}
	if customChecker.config.RetryInterval != 2 {
		t.Errorf("Expected RetryInterval to be 2, got %d", customChecker.config.RetryInterval)
	}
	if customChecker.config.Timeout != 15 {
		t.Errorf("Expected Timeout to be 15, got %d", customChecker.config.Timeout)
	}
}

func TestVerifyConnectivitySuccess(t *testing.T) {
	server := httptest.NewServer(descriptorHandler(t))
	defer server.Close()

	checker := NewChecker(testConfig(t, server.URL))

	if err := checker.VerifyConnectivity(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestVerifyConnectivityFailure(t *testing.T) {
	// Create a test server that returns a 500 Internal Server Error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := testConfig(t, server.URL)
	config.MaxRetries = 2
	checker := NewChecker(config)

	err := checker.VerifyConnectivity()
	if err == nil {
		t.Error("Expected an error, got nil")
	}
}

func TestVerifyConnectivityNoAddress(t *testing.T) {
	checker := NewChecker(Config{})

	if err := checker.VerifyConnectivity(); err == nil {
		t.Error("Expected an error for missing address, got nil")
	}
}

func TestVerifyConnectivityTimeout(t *testing.T) {
	// Create a test server that sleeps longer than the timeout
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewChecker(testConfig(t, server.URL))

	err := checker.VerifyConnectivity()
	if err == nil {
		t.Error("Expected a timeout error, got nil")
	}
}

func TestGetRouterInfo(t *testing.T) {
	server := httptest.NewServer(descriptorHandler(t))
	defer server.Close()

	checker := NewChecker(testConfig(t, server.URL))

	info, err := checker.GetRouterInfo()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if info == nil {
		t.Fatal("Expected router info, got nil")
	}

	if info.FriendlyName != "FRITZ!Box 7590" {
		t.Errorf("Expected friendly name %q, got %q", "FRITZ!Box 7590", info.FriendlyName)
	}
	if info.Manufacturer != "AVM Berlin" {
		t.Errorf("Expected manufacturer %q, got %q", "AVM Berlin", info.Manufacturer)
	}
	if info.ModelNumber != "7590" {
		t.Errorf("Expected model number %q, got %q", "7590", info.ModelNumber)
	}
}

func TestGetRouterInfoFailure(t *testing.T) {
	// Create a test server that returns a 500 Internal Server Error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	checker := NewChecker(testConfig(t, server.URL))

	info, err := checker.GetRouterInfo()
	if err == nil {
		t.Error("Expected an error, got nil")
	}

	if info != nil {
		t.Errorf("Expected nil router info, got %+v", info)
	}
}

func TestGetRouterInfoInvalidXML(t *testing.T) {
	// Create a test server that returns a body that is not XML
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{not xml}"))
	}))
	defer server.Close()

	checker := NewChecker(testConfig(t, server.URL))

	info, err := checker.GetRouterInfo()
	if err == nil {
		t.Error("Expected an error for invalid XML, got nil")
	}

	if info != nil {
		t.Errorf("Expected nil router info, got %+v", info)
	}
}

func TestMustVerifyConnectivity(t *testing.T) {
	server := httptest.NewServer(descriptorHandler(t))
	defer server.Close()

	checker := NewChecker(testConfig(t, server.URL))

	// This should not panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustVerifyConnectivity panicked unexpectedly: %v", r)
		}
	}()

	checker.MustVerifyConnectivity()
}

func TestMustVerifyConnectivityPanic(t *testing.T) {
	// Create a test server that returns a 500 Internal Server Error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	checker := NewChecker(testConfig(t, server.URL))

	// This should panic
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustVerifyConnectivity did not panic as expected")
		}
	}()

	checker.MustVerifyConnectivity()
}
