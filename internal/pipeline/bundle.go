// Package pipeline implements the Batch Orchestrator / Stream Emitter: it
// drives every bundle identifier through Classifier → Fetcher(listing) →
// Extractor → Fetcher(app-ads.txt) → Analyzer, then assembles either a
// batch response or a stream of per-bundle records.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/appads"
	"github.com/devx/appads-extractor/internal/extract"
	"github.com/devx/appads-extractor/internal/fetch"
	"github.com/devx/appads-extractor/internal/models"
	"github.com/devx/appads-extractor/internal/store"
)

// processBundle runs the full per-bundle state machine described in
// spec.md §4.7 and returns its BundleResult. It never returns a Go error;
// all failure modes are encoded in the result itself so the batch never
// fails because of one bundle.
func (o *Orchestrator) processBundle(ctx context.Context, bundleId string, query models.SearchQuery) models.BundleResult {
	bundleId = strings.TrimSpace(bundleId)
	result := models.BundleResult{BundleId: bundleId}

	kind := store.Classify(bundleId)
	result.StoreKind = kind

	if kind == models.StoreUnknown || kind == models.StoreRokuNumeric {
		result.Success = false
		result.ErrorKind = string(ErrUnsupportedBundle)
		result.Error = "Unsupported bundle identifier"
		o.metrics.IncrementBundle(string(kind), "error")
		o.logBundleError(bundleId, result.ErrorKind, result.Error)
		return result
	}

	listingURL, ok := store.ListingURL(kind, bundleId)
	if !ok {
		result.Success = false
		result.ErrorKind = string(ErrUnsupportedBundle)
		result.Error = "Unsupported bundle identifier"
		o.metrics.IncrementBundle(string(kind), "error")
		o.logBundleError(bundleId, result.ErrorKind, result.Error)
		return result
	}

	listing, err := o.fetcher.Fetch(ctx, listingURL, kind, fetch.Options{TTL: o.listingTTL})
	if err != nil {
		result.Success = false
		result.ErrorKind = string(ErrFetchError)
		result.Error = err.Error()
		o.metrics.IncrementBundle(string(kind), "error")
		o.logBundleError(bundleId, result.ErrorKind, result.Error)
		return result
	}

	domain, err := extract.Extract(kind, listing.Body)
	if err != nil {
		result.Success = false
		result.ErrorKind = string(ErrDomainNotFound)
		result.Error = "Developer domain not found"
		o.metrics.IncrementBundle(string(kind), "error")
		o.logBundleError(bundleId, result.ErrorKind, result.Error)
		return result
	}
	result.Domain = string(domain)

	appAdsURL := fmt.Sprintf("https://%s/app-ads.txt", domain)
	doc, err := o.fetcher.Fetch(ctx, appAdsURL, kind, fetch.Options{TTL: o.appAdsTTL})
	if err != nil {
		if fetch.IsNotFound(err) {
			result.Success = true
			result.AppAdsTxt = &models.AppAdsPayload{Exists: false}
			o.metrics.IncrementBundle(string(kind), "success")
			return result
		}
		result.Success = false
		result.ErrorKind = string(ErrFetchError)
		result.Error = err.Error()
		o.metrics.IncrementBundle(string(kind), "error")
		o.logBundleError(bundleId, result.ErrorKind, result.Error)
		return result
	}

	analyzeCtx, cancel := context.WithTimeout(ctx, o.taskTimeout)
	defer cancel()

	future := o.pool.Submit(func(taskCtx context.Context) (interface{}, error) {
		return appads.Analyze(taskCtx, doc.Body, query, o.memThresholds, o.capBounds, nil)
	}, appads.PriorityNormal)

	raw, err := future.Wait(analyzeCtx)
	if err != nil {
		result.Success = false
		if analyzeCtx.Err() != nil {
			result.ErrorKind = string(ErrWorkerTimeout)
			result.Error = "analyzer task timed out"
		} else if err == appads.ErrMemoryExceeded {
			result.ErrorKind = string(ErrWorkerMemoryExceed)
			result.Error = "worker memory exceeded"
		} else {
			result.ErrorKind = string(ErrInternal)
			result.Error = err.Error()
		}
		o.metrics.IncrementBundle(string(kind), "error")
		o.logBundleError(bundleId, result.ErrorKind, result.Error)
		return result
	}

	out := raw.(appads.Output)
	payload := &models.AppAdsPayload{
		Exists:           true,
		URL:              appAdsURL,
		Content:          truncateContent(doc.Body, o.maxContentBytes),
		ContentTruncated: o.maxContentBytes > 0 && len(doc.Body) > o.maxContentBytes,
		Analyzed:         &out.Analyzed,
	}
	if out.SearchResults != nil {
		payload.SearchResults = out.SearchResults
	}
	result.Success = true
	result.AppAdsTxt = payload
	o.metrics.IncrementBundle(string(kind), "success")
	return result
}

// logBundleError records a per-bundle failure at debug level, tagged with
// the bundle identifier so a noisy batch's individual failures can be
// correlated back to a specific bundle in the logs.
func (o *Orchestrator) logBundleError(bundleId, errorKind, msg string) {
	o.logger.Debug("bundle processing failed",
		zap.String("bundle_id", bundleId),
		zap.String("error_kind", errorKind),
		zap.String("error", msg),
	)
}

func truncateContent(body string, maxBytes int) string {
	if maxBytes <= 0 || len(body) <= maxBytes {
		return body
	}
	return body[:maxBytes]
}
