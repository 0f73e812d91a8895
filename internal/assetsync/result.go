package assetsync

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/open-edge-platform/asset-sync/internal/config"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
)

// Source says where an installed asset came from.
type Source int

const (
	SourceNone Source = iota
	SourceCache
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceRemote:
		return "remote"
	default:
		return "none"
	}
}

// Result is the outcome of synchronizing one asset.
type Result struct {
	Asset     config.AssetEntry
	Source    Source
	Bytes     int64
	CachePath string
	Target    string
	Err       error
	Duration  time.Duration
}

// OK reports whether the asset was installed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Results is the outcome of a run, one Result per asset in list order.
type Results struct {
	RunID           string
	ManifestVersion string
	UsedManifest    bool
	Items           []Result
}

// Failed returns the results that carry an error.
func (r *Results) Failed() []Result {
	var out []Result
	for _, item := range r.Items {
		if !item.OK() {
			out = append(out, item)
		}
	}
	return out
}

// Succeeded returns the results that were installed.
func (r *Results) Succeeded() []Result {
	var out []Result
	for _, item := range r.Items {
		if item.OK() {
			out = append(out, item)
		}
	}
	return out
}

// Err combines every per-asset failure into one error, or returns nil when
// all assets were installed.
func (r *Results) Err() error {
	var result *multierror.Error
	for _, item := range r.Failed() {
		result = multierror.Append(result, fmt.Errorf("%s: %w", item.Asset.Name, item.Err))
	}
	return result.ErrorOrNil()
}

// Report converts the results into the run report written under the report
// directory.
func (r *Results) Report() *logger.SyncReport {
	report := logger.NewSyncReport(r.RunID)
	for _, item := range r.Items {
		if !item.OK() {
			report.Failed.Items = append(report.Failed.Items, fmt.Sprintf("%s: %v", item.Asset.Name, item.Err))
			continue
		}
		if item.Source == SourceRemote {
			report.Fetched.Items = append(report.Fetched.Items, fmt.Sprintf("%s (%d bytes)", item.Asset.Name, item.Bytes))
		}
		report.Installed.Items = append(report.Installed.Items, fmt.Sprintf("%s -> %s", item.Asset.Name, item.Target))
	}
	return report
}
