package scanner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/analyzer"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/fritz"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/logstore"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

// DeviceClient is the slice of the TR-064 client the scanner needs.
// Tests inject fakes through it.
type DeviceClient interface {
	FetchDeviceLog(ctx context.Context) ([]models.LogEntry, error)
	GetDeviceInfo(ctx context.Context) (*fritz.DeviceInfo, error)
}

// ClientFactory returns a device client for the given router address.
type ClientFactory func(address string) DeviceClient

// Scanner runs one scan cycle per router: load the known entries, fetch
// the device log, diff, persist what is new, classify events.
type Scanner struct {
	newClient       ClientFactory
	store           logstore.Store
	analyzer        *analyzer.Analyzer
	concurrentScans int
}

// NewScanner creates a Scanner with the given client factory, entry store,
// analyzer and concurrent scan limit.
func NewScanner(newClient ClientFactory, store logstore.Store, analyzer *analyzer.Analyzer, concurrentScans int) *Scanner {
	if concurrentScans <= 0 {
		concurrentScans = 1
	}
	return &Scanner{
		newClient:       newClient,
		store:           store,
		analyzer:        analyzer,
		concurrentScans: concurrentScans,
	}
}

// Scan runs one scan cycle against the router at the given address and
// returns everything the publishers need to report on it.
func (s *Scanner) Scan(ctx context.Context, address string) (*models.ScanResult, error) {
	start := time.Now()
	client := s.newClient(address)

	known, err := s.store.Load(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("load known entries for %s: %w", address, err)
	}

	device, err := client.FetchDeviceLog(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch device log from %s: %w", address, err)
	}

	newEntries := logstore.NewEntries(device, known)
	if err := s.store.Append(ctx, address, newEntries); err != nil {
		return nil, fmt.Errorf("persist new entries for %s: %w", address, err)
	}

	events, outages := s.analyzer.Analyze(newEntries)

	// The model name only decorates reports, so a failing info call must
	// not lose the entries we already persisted.
	model := ""
	if info, err := client.GetDeviceInfo(ctx); err != nil {
		logrus.WithError(err).WithField("router", address).Warn("Could not read device info")
	} else {
		model = info.ModelName
	}

	result := &models.ScanResult{
		RunID:         uuid.NewString(),
		RouterAddress: address,
		RouterModel:   model,
		NewEntries:    newEntries,
		KnownEntries:  len(known),
		DeviceEntries: len(device),
		Events:        events,
		Outages:       outages,
		ScannedAt:     start,
		ScanDuration:  time.Since(start),
	}

	logrus.WithFields(logrus.Fields{
		"router":     address,
		"runID":      result.RunID,
		"newEntries": len(newEntries),
		"known":      len(known),
		"device":     len(device),
		"outages":    len(outages),
		"duration":   result.ScanDuration.String(),
	}).Info("Router scan finished")

	return result, nil
}

// ScanAll scans every router concurrently, bounded by the configured
// limit. Results keep the input order. Any failing router fails the call
// after all scans have finished.
func (s *Scanner) ScanAll(ctx context.Context, addresses []string) ([]*models.ScanResult, error) {
	start := time.Now()
	maxRoutines := int32(0)
	activeRoutines := int32(0)

	// Each goroutine writes only its own slot, which keeps the results in
	// input order without a mutex.
	slots := make([]*models.ScanResult, len(addresses))
	var scanErrors []error
	var errorMutex sync.Mutex

	sem := make(chan struct{}, s.concurrentScans)
	var wg sync.WaitGroup

	for i, address := range addresses {
		logrus.Infof("Scanning router (%d/%d): %s", i+1, len(addresses), address)
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, address string) {
			atomic.AddInt32(&activeRoutines, 1)
			atomic.CompareAndSwapInt32(&maxRoutines, atomic.LoadInt32(&activeRoutines)-1, atomic.LoadInt32(&activeRoutines))

			defer func() {
				atomic.AddInt32(&activeRoutines, -1)
				wg.Done()
				<-sem
			}()

			result, err := s.Scan(ctx, address)
			if err != nil {
				errorMutex.Lock()
				scanErrors = append(scanErrors, err)
				errorMutex.Unlock()
				return
			}
			slots[idx] = result
		}(i, address)
	}

	wg.Wait()
	logrus.Infof("Scan completed: %d routers in %v with max %d concurrent goroutines",
		len(addresses), time.Since(start), maxRoutines)

	if len(scanErrors) > 0 {
		for _, err := range scanErrors {
			logrus.WithError(err).Error("Router scan failed")
		}
		return nil, fmt.Errorf("encountered %d errors during scan", len(scanErrors))
	}

	results := make([]*models.ScanResult, 0, len(addresses))
	for _, result := range slots {
		if result != nil {
			results = append(results, result)
		}
	}
	return results, nil
}
