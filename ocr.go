package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// TableRecognizer turns a photo of a table into rows of text.
type TableRecognizer interface {
	RecognizeTable(ctx context.Context, image []byte) (*Table, error)
}

// Async result state from get_request_result once the workbook is ready.  1 is queued, 2 is running.
const retDone = 3

// BaiduClient calls Baidu's table OCR API.
type BaiduClient struct {
	client     *http.Client
	tokens     *TokenManager
	apiURL     string
	resultURL  string
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewBaiduClient(cfg APIConfig) *BaiduClient {
	client := &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}

	limit := rate.Inf
	if cfg.QPS > 0 {
		limit = rate.Limit(cfg.QPS)
	}

	return &BaiduClient{
		client:     client,
		tokens:     NewTokenManager(client, cfg),
		apiURL:     cfg.APIURL,
		resultURL:  cfg.ResultURL,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryDelay) * time.Second,
		limiter:    rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "baidu-ocr",
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				sugar.Warnf("Circuit %s: %s -> %s", name, from, to)
			},
		}),
	}
}

func (c *BaiduClient) RecognizeTable(ctx context.Context, image []byte) (*Table, error) {
	res, err := c.recognize(ctx, image)
	if err != nil {
		return nil, err
	}

	tables := res.Tables()
	for _, table := range tables {
		if len(table.Body) > 0 {
			t := CellTable(tables)
			sugar.Infof("Recognised %d tables, %d rows", len(tables), len(t.Rows))
			return t, nil
		}
	}

	var data []byte

	if encoded := res.ExcelData(); encoded != "" {
		data, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode workbook: %w", err)
		}
	} else if id := res.AsyncRequestID(); id != "" {
		sugar.Infof("No table in response, fetching result %s", id)

		data, err = c.fetchResult(ctx, id)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, ErrNoExcelData
	}

	return ReadWorkbookBytes(data)
}

// recognize posts the image, retrying transport failures and rejected tokens with exponential backoff.
func (c *BaiduClient) recognize(ctx context.Context, image []byte) (*OCRResponse, error) {
	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(image))
	form.Set("is_sync", "true")
	form.Set("request_type", "excel")
	form.Set("return_excel", "true")

	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retryDelay * time.Duration(1<<(attempt-1))
			sugar.Infof("Retry in %v", wait)

			if err := sleepContext(ctx, wait); err != nil {
				return nil, err
			}
		}

		body, err := c.call(ctx, c.apiURL, form)
		if err != nil {
			if errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrTokenUnavailable) {
				return nil, err
			}

			lastErr = err
			sugar.Warnf("Table recognition failed (attempt %d/%d): %v", attempt+1, c.maxRetries, err)
			continue
		}

		res, err := ParseOCRResponse(body)
		if err != nil {
			if isAuthError(err) {
				sugar.Infof("Token rejected, refreshing: %v", err)
				c.tokens.Invalidate()
				lastErr = err
				continue
			}

			return nil, err
		}

		return res, nil
	}

	return nil, fmt.Errorf("table recognition failed after %d attempts: %w", c.maxRetries, lastErr)
}

// fetchResult polls for the workbook of an asynchronous request.
func (c *BaiduClient) fetchResult(ctx context.Context, requestID string) ([]byte, error) {
	form := url.Values{}
	form.Set("request_id", requestID)
	form.Set("result_type", "excel")

	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, c.retryDelay*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}

		body, err := c.call(ctx, c.resultURL, form)
		if err != nil {
			sugar.Warnf("Fetching result %s failed (attempt %d/%d): %v", requestID, attempt+1, c.maxRetries, err)
			lastErr = err
			continue
		}

		lastErr = nil

		res, err := ParseOCRResponse(body)
		if err != nil {
			return nil, err
		}

		nested := res.Nested()
		if nested == nil {
			return nil, fmt.Errorf("result %s: %w", requestID, ErrNoExcelData)
		}

		if nested.RetCode != nil && *nested.RetCode != retDone {
			sugar.Infof("Result %s still processing (attempt %d/%d)", requestID, attempt+1, c.maxRetries)
			continue
		}

		if nested.ResultData == "" {
			return nil, fmt.Errorf("result %s: %s: %w", requestID, nested.RetMsg, ErrNoExcelData)
		}

		data, err := base64.StdEncoding.DecodeString(nested.ResultData)
		if err != nil {
			return nil, fmt.Errorf("failed to decode workbook: %w", err)
		}

		return data, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("result %s: %w: %w", requestID, ErrResultPending, lastErr)
	}

	return nil, fmt.Errorf("result %s: %w", requestID, ErrResultPending)
}

// call makes one authenticated, rate limited, form POST through the circuit breaker.
func (c *BaiduClient) call(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?access_token="+url.QueryEscape(token),
			strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		res, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}

		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, err
		}

		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d: %s", res.StatusCode, body)
		}

		return body, nil
	})
}
